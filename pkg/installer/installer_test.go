package installer

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobvm/bob/pkg/config"
	"github.com/bobvm/bob/pkg/errors"
	"github.com/bobvm/bob/pkg/github"
	"github.com/bobvm/bob/pkg/paths"
	"github.com/bobvm/bob/pkg/versions"
)

type fakeUpstream struct {
	nightly      *github.Release
	releaseErr   error
	commits      []github.Commit
	releaseCalls int
}

func (f *fakeUpstream) ReleaseByTag(ctx context.Context, tag string) (*github.Release, error) {
	f.releaseCalls++
	if f.releaseErr != nil {
		return nil, f.releaseErr
	}
	return f.nightly, nil
}

func (f *fakeUpstream) CommitsBetween(ctx context.Context, since, until time.Time) ([]github.Commit, error) {
	return f.commits, nil
}

// archiveBytes builds a minimal release archive with bin/<editor>
// inside, in whichever format assetName implies for this platform.
func archiveBytes(t *testing.T, asset string) []byte {
	t.Helper()
	editor := paths.EditorBinary()
	var buf bytes.Buffer

	if strings.HasSuffix(asset, ".zip") {
		zw := zip.NewWriter(&buf)
		w, err := zw.Create("nvim-win64/bin/" + editor)
		require.NoError(t, err)
		_, err = w.Write([]byte("pe"))
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		return buf.Bytes()
	}

	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	body := []byte("elf")
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "bin/", Typeflag: tar.TypeDir, Mode: 0o755}))
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "bin/" + editor, Mode: 0o755, Size: int64(len(body))}))
	_, err := tw.Write(body)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

// mirrorServer serves release assets under the upstream download URL
// layout. files maps "<tag>/<name>" to content.
func mirrorServer(t *testing.T, files map[string][]byte) *httptest.Server {
	t.Helper()
	prefix := "/" + github.Repo + "/releases/download/"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, prefix)
		content, ok := files[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(content)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestInstaller(t *testing.T, mirror string, client UpstreamClient) (*Installer, paths.Paths, *config.Config) {
	t.Helper()
	cfg := &config.Config{
		DownloadsLocation: t.TempDir(),
		GithubMirror:      mirror,
	}
	p, err := cfg.Paths()
	require.NoError(t, err)
	return New(cfg, p, client), p, cfg
}

func taggedVersion(t *testing.T, raw string) *versions.ResolvedVersion {
	t.Helper()
	rv, err := versions.Resolve(context.Background(), nil, raw)
	require.NoError(t, err)
	return rv
}

func TestInstallRejectsPreAssetVersions(t *testing.T) {
	inst, _, _ := newTestInstaller(t, "", &fakeUpstream{})

	for _, raw := range []string{"v0.2.2", "v0.1.0", "0.2"} {
		_, err := inst.Install(context.Background(), taggedVersion(t, raw))
		require.Error(t, err, raw)
		assert.True(t, errors.IsCode(err, errors.ErrUnsupportedVersion), raw)
	}
}

func TestInstallRollbackSnapshotIsNeverRebuilt(t *testing.T) {
	client := &fakeUpstream{}
	inst, _, _ := newTestInstaller(t, "", client)

	rv := &versions.ResolvedVersion{Tag: "nightly-1a2b3c4", Kind: versions.NightlyRollback, Raw: "nightly-1a2b3c4"}
	outcome, err := inst.Install(context.Background(), rv)
	require.NoError(t, err)
	assert.Equal(t, AlreadyInstalled, outcome)
	assert.Zero(t, client.releaseCalls)
}

func TestInstallAlreadyInstalledFastPath(t *testing.T) {
	client := &fakeUpstream{}
	inst, p, _ := newTestInstaller(t, "", client)
	require.NoError(t, os.MkdirAll(p.VersionDir("v0.9.5"), 0o755))

	outcome, err := inst.Install(context.Background(), taggedVersion(t, "v0.9.5"))
	require.NoError(t, err)
	assert.Equal(t, AlreadyInstalled, outcome)
	assert.Zero(t, client.releaseCalls)
}

func TestInstallTaggedDownloadsVerifiesExtracts(t *testing.T) {
	rv := taggedVersion(t, "v0.9.5")
	asset := assetName(rv)
	archive := archiveBytes(t, asset)
	sum := sha256.Sum256(archive)

	srv := mirrorServer(t, map[string][]byte{
		"v0.9.5/" + asset:                archive,
		"v0.9.5/" + asset + ".sha256sum": []byte(hex.EncodeToString(sum[:]) + "  " + asset + "\n"),
	})

	inst, p, _ := newTestInstaller(t, srv.URL, &fakeUpstream{})
	outcome, err := inst.Install(context.Background(), rv)
	require.NoError(t, err)
	assert.Equal(t, Installed, outcome)

	assert.FileExists(t, p.VersionBinary("v0.9.5"))
	assert.NoFileExists(t, filepath.Join(p.DownloadsRoot(), asset))
	assert.NoFileExists(t, filepath.Join(p.DownloadsRoot(), asset+".sha256sum"))
}

func TestInstallChecksumMismatchFailsAndCleansUp(t *testing.T) {
	rv := taggedVersion(t, "v0.9.5")
	asset := assetName(rv)

	srv := mirrorServer(t, map[string][]byte{
		"v0.9.5/" + asset:                archiveBytes(t, asset),
		"v0.9.5/" + asset + ".sha256sum": []byte(strings.Repeat("0", 64) + "  " + asset + "\n"),
	})

	inst, p, _ := newTestInstaller(t, srv.URL, &fakeUpstream{})
	_, err := inst.Install(context.Background(), rv)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrChecksumMismatch))

	assert.NoDirExists(t, p.VersionDir("v0.9.5"))
	assert.NoFileExists(t, filepath.Join(p.DownloadsRoot(), asset))
	assert.NoFileExists(t, filepath.Join(p.DownloadsRoot(), asset+".sha256sum"))
}

func TestInstallChecksumFetchFailureIsFatal(t *testing.T) {
	rv := taggedVersion(t, "v0.9.5")
	asset := assetName(rv)
	archive := archiveBytes(t, asset)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, ".sha256sum") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write(archive)
	}))
	defer srv.Close()

	inst, p, _ := newTestInstaller(t, srv.URL, &fakeUpstream{})
	_, err := inst.Install(context.Background(), rv)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrNetwork))
	assert.NoDirExists(t, p.VersionDir("v0.9.5"))
}

func TestInstallMissingChecksumWarnsButProceeds(t *testing.T) {
	rv := taggedVersion(t, "v0.9.5")
	asset := assetName(rv)

	srv := mirrorServer(t, map[string][]byte{
		"v0.9.5/" + asset: archiveBytes(t, asset),
	})

	inst, p, _ := newTestInstaller(t, srv.URL, &fakeUpstream{})
	outcome, err := inst.Install(context.Background(), rv)
	require.NoError(t, err)
	assert.Equal(t, Installed, outcome)
	assert.FileExists(t, p.VersionBinary("v0.9.5"))
}

func nightlyVersion() *versions.ResolvedVersion {
	return &versions.ResolvedVersion{Tag: "nightly", Kind: versions.Nightly, Raw: "nightly"}
}

func seedNightlyInstall(t *testing.T, p paths.Paths, commitish string, published time.Time) {
	t.Helper()
	dir := p.VersionDir("nightly")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bin", paths.EditorBinary()), []byte("elf"), 0o755))
	require.NoError(t, github.WriteReleaseFile(filepath.Join(dir, paths.NightlyMetaFile), &github.Release{
		TagName:         "nightly",
		TargetCommitish: commitish,
		PublishedAt:     published,
	}))
}

func TestInstallNightlyUpToDate(t *testing.T) {
	published := time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)
	client := &fakeUpstream{nightly: &github.Release{
		TagName: "nightly", TargetCommitish: "1a2b3c4d5e", PublishedAt: published,
	}}

	inst, p, _ := newTestInstaller(t, "", client)
	seedNightlyInstall(t, p, "1a2b3c4d5e", published)

	outcome, err := inst.Install(context.Background(), nightlyVersion())
	require.NoError(t, err)
	assert.Equal(t, NightlyUpToDate, outcome)
	assert.Equal(t, 1, client.releaseCalls)
}

func TestInstallNightlyUpdateSnapshotsActiveInstall(t *testing.T) {
	old := time.Date(2024, 4, 30, 6, 0, 0, 0, time.UTC)
	fresh := old.Add(24 * time.Hour)
	client := &fakeUpstream{nightly: &github.Release{
		TagName: "nightly", TargetCommitish: "9f8e7d6c5b", PublishedAt: fresh,
	}}

	rv := nightlyVersion()
	asset := assetName(rv)
	archive := archiveBytes(t, asset)
	sum := sha256.Sum256(archive)
	srv := mirrorServer(t, map[string][]byte{
		"nightly/" + asset:      archive,
		"nightly/shasum.txt": []byte(hex.EncodeToString(sum[:]) + "  " + asset + "\n"),
	})

	inst, p, _ := newTestInstaller(t, srv.URL, client)
	seedNightlyInstall(t, p, "1a2b3c4d5e", old)
	require.NoError(t, os.WriteFile(p.UsedFilePath(), []byte("nightly"), 0o644))

	outcome, err := inst.Install(context.Background(), rv)
	require.NoError(t, err)
	assert.Equal(t, Installed, outcome)

	// Old nightly snapshotted under its commit prefix.
	assert.DirExists(t, filepath.Join(p.DownloadsRoot(), "nightly-1a2b3c4"))

	// New metadata recorded for the fresh install.
	meta, err := github.ReadReleaseFile(filepath.Join(p.VersionDir("nightly"), paths.NightlyMetaFile))
	require.NoError(t, err)
	assert.Equal(t, "9f8e7d6c5b", meta.TargetCommitish)
	assert.True(t, meta.PublishedAt.Equal(fresh))
}

func TestInstallNightlyNotActiveSkipsSnapshot(t *testing.T) {
	old := time.Date(2024, 4, 30, 6, 0, 0, 0, time.UTC)
	client := &fakeUpstream{nightly: &github.Release{
		TagName: "nightly", TargetCommitish: "9f8e7d6c5b", PublishedAt: old.Add(24 * time.Hour),
	}}

	rv := nightlyVersion()
	asset := assetName(rv)
	archive := archiveBytes(t, asset)
	sum := sha256.Sum256(archive)
	srv := mirrorServer(t, map[string][]byte{
		"nightly/" + asset:      archive,
		"nightly/shasum.txt": []byte(hex.EncodeToString(sum[:]) + "  " + asset + "\n"),
	})

	inst, p, _ := newTestInstaller(t, srv.URL, client)
	seedNightlyInstall(t, p, "1a2b3c4d5e", old)
	require.NoError(t, os.WriteFile(p.UsedFilePath(), []byte("v0.9.5"), 0o644))

	_, err := inst.Install(context.Background(), rv)
	require.NoError(t, err)
	assert.NoDirExists(t, filepath.Join(p.DownloadsRoot(), "nightly-1a2b3c4"))
}

func TestInstallNightlyReleaseBuildNeedsTargetCommit(t *testing.T) {
	client := &fakeUpstream{nightly: &github.Release{
		TagName: "nightly", PublishedAt: time.Now().UTC(),
	}}
	inst, _, cfg := newTestInstaller(t, "", client)
	yes := true
	cfg.EnableReleaseBuild = &yes

	_, err := inst.Install(context.Background(), nightlyVersion())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrNetwork))
	assert.Contains(t, err.Error(), "target commit")
}

func TestDirName(t *testing.T) {
	tests := []struct {
		rv   versions.ResolvedVersion
		want string
	}{
		{versions.ResolvedVersion{Tag: "v0.9.5", Kind: versions.Tagged, Raw: "0.9.5"}, "v0.9.5"},
		{versions.ResolvedVersion{Tag: "nightly", Kind: versions.Nightly, Raw: "nightly"}, "nightly"},
		{versions.ResolvedVersion{Tag: "1a2b3c4d5e6f", Kind: versions.Hash, Raw: "1a2b3c4d5e6f"}, "1a2b3c4"},
		{versions.ResolvedVersion{Tag: "1a2b3", Kind: versions.Hash, Raw: "1a2b3"}, "1a2b3"},
		{versions.ResolvedVersion{Tag: "nightly-1a2b3c4", Kind: versions.NightlyRollback, Raw: "nightly-1a2b3c4"}, "nightly-1a2b3c4"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DirName(&tt.rv))
	}
}

func TestChecksumPolicy(t *testing.T) {
	semver := func(major, minor, patch int) *versions.Semver {
		return &versions.Semver{Major: major, Minor: minor, Patch: patch}
	}

	old := &versions.ResolvedVersion{Tag: "v0.4.4", Kind: versions.Tagged, Semver: semver(0, 4, 4)}
	mid := &versions.ResolvedVersion{Tag: "v0.9.5", Kind: versions.Tagged, Semver: semver(0, 9, 5)}
	newer := &versions.ResolvedVersion{Tag: "v0.10.5", Kind: versions.Tagged, Semver: semver(0, 10, 5)}
	nightly := nightlyVersion()

	assert.False(t, checksumRequired(old))
	assert.True(t, checksumRequired(mid))
	assert.True(t, checksumRequired(newer))
	assert.True(t, checksumRequired(nightly))

	assert.Equal(t, "asset.sha256sum", checksumFileName(mid, "asset"))
	assert.Equal(t, "shasum.txt", checksumFileName(newer, "asset"))
	assert.Equal(t, "shasum.txt", checksumFileName(nightly, "asset"))
}

func TestExpectedChecksum(t *testing.T) {
	dir := t.TempDir()
	hash := strings.Repeat("ab", 32)

	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	t.Run("bare hash", func(t *testing.T) {
		got, err := expectedChecksum(write("bare", hash+"\n"), "nvim-linux64.tar.gz")
		require.NoError(t, err)
		assert.Equal(t, hash, got)
	})

	t.Run("multi entry list", func(t *testing.T) {
		content := fmt.Sprintf("%s  other.zip\n%s  nvim-linux64.tar.gz\n", strings.Repeat("cd", 32), hash)
		got, err := expectedChecksum(write("list", content), "nvim-linux64.tar.gz")
		require.NoError(t, err)
		assert.Equal(t, hash, got)
	})

	t.Run("binary mode marker", func(t *testing.T) {
		got, err := expectedChecksum(write("star", hash+"  *nvim-linux64.tar.gz\n"), "nvim-linux64.tar.gz")
		require.NoError(t, err)
		assert.Equal(t, hash, got)
	})

	t.Run("no matching entry", func(t *testing.T) {
		_, err := expectedChecksum(write("miss", hash+"  other.zip\n"), "nvim-linux64.tar.gz")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrChecksumMismatch))
	})
}
