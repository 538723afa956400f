package versions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobvm/bob/pkg/errors"
	"github.com/bobvm/bob/pkg/github"
)

type fakeLister struct {
	releases []github.Release
	err      error
	calls    int
}

func (f *fakeLister) Releases(ctx context.Context, perPage int) ([]github.Release, error) {
	f.calls++
	return f.releases, f.err
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantKind Kind
		wantTag  string
		wantErr  bool
	}{
		{name: "nightly literal", input: "nightly", wantKind: Nightly, wantTag: "nightly"},
		{name: "tagged with v", input: "v0.9.5", wantKind: Tagged, wantTag: "v0.9.5"},
		{name: "tagged without v gets prefixed", input: "0.9.5", wantKind: Tagged, wantTag: "v0.9.5"},
		{name: "two component version", input: "0.9", wantKind: Tagged, wantTag: "v0.9"},
		{name: "single component version", input: "10", wantKind: Tagged, wantTag: "v10"},
		{name: "hash of five chars", input: "abc12", wantKind: Hash, wantTag: "abc12"},
		{name: "full forty char hash", input: "0123456789abcdef0123456789abcdef01234567", wantKind: Hash, wantTag: "0123456789abcdef0123456789abcdef01234567"},
		{name: "rollback tag", input: "nightly-1a2b3c4", wantKind: NightlyRollback, wantTag: "nightly-1a2b3c4"},
		{name: "four char hash rejected", input: "abcd", wantErr: true},
		{name: "forty one char hash rejected", input: "0123456789abcdef0123456789abcdef012345678", wantErr: true},
		{name: "uppercase hash rejected", input: "ABC1234", wantErr: true},
		{name: "short rollback hash rejected", input: "nightly-1a2b3c", wantErr: true},
		{name: "garbage rejected", input: "definitely-not-a-version", wantErr: true},
		{name: "empty rejected", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lister := &fakeLister{}
			rv, err := Resolve(context.Background(), lister, tt.input)

			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.ErrInvalidVersion))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, rv.Kind)
			assert.Equal(t, tt.wantTag, rv.Tag)
			assert.Equal(t, tt.input, rv.Raw)
			assert.Zero(t, lister.calls, "only stable/latest may reach the network")
		})
	}
}

func TestResolveTaggedHasSemver(t *testing.T) {
	rv, err := Resolve(context.Background(), &fakeLister{}, "v0.9.5")
	require.NoError(t, err)
	require.NotNil(t, rv.Semver)
	assert.Equal(t, Semver{Major: 0, Minor: 9, Patch: 5}, *rv.Semver)
}

func TestResolveStable(t *testing.T) {
	lister := &fakeLister{releases: []github.Release{
		{TagName: "nightly", PublishedAt: time.Now()},
		{TagName: "v0.9.5", PublishedAt: time.Now().Add(-time.Hour)},
	}}

	for _, input := range []string{"stable", "latest"} {
		rv, err := Resolve(context.Background(), lister, input)
		require.NoError(t, err)
		assert.Equal(t, Stable, rv.Kind)
		// index 0 can be the still-publishing nightly; index 1 is taken
		assert.Equal(t, "v0.9.5", rv.Tag)
		require.NotNil(t, rv.Semver)
		assert.Equal(t, input, rv.Raw)
	}
}

func TestResolveStableTooFewReleases(t *testing.T) {
	lister := &fakeLister{releases: []github.Release{{TagName: "v0.9.5"}}}
	_, err := Resolve(context.Background(), lister, "stable")
	require.Error(t, err)
}

func TestParseSemver(t *testing.T) {
	tests := []struct {
		input   string
		want    Semver
		wantErr bool
	}{
		{input: "v0.9.5", want: Semver{0, 9, 5}},
		{input: "0.9.5", want: Semver{0, 9, 5}},
		{input: "0.9", want: Semver{0, 9, 0}},
		{input: "3", want: Semver{3, 0, 0}},
		{input: "v0.10.4", want: Semver{0, 10, 4}},
		{input: "not.a.version", wantErr: true},
		{input: "1.2.3.4", wantErr: true},
		{input: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSemver(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSemverCompare(t *testing.T) {
	floor := Semver{0, 2, 2}
	assert.True(t, Semver{0, 2, 2}.LessOrEqual(floor))
	assert.False(t, Semver{0, 2, 3}.LessOrEqual(floor))
	assert.True(t, Semver{0, 10, 5}.GreaterThan(Semver{0, 10, 4}))
	assert.False(t, Semver{0, 10, 4}.GreaterThan(Semver{0, 10, 4}))
	assert.True(t, Semver{1, 0, 0}.GreaterThan(Semver{0, 99, 99}))
}

func TestRollbackHash(t *testing.T) {
	assert.Equal(t, "1a2b3c4", RollbackHash("nightly-1a2b3c4"))
}
