package bob

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobvm/bob/pkg/paths"
)

func TestReadSyncFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("first non-empty line wins", func(t *testing.T) {
		path := filepath.Join(dir, "pinned")
		require.NoError(t, os.WriteFile(path, []byte("\n  v0.9.5  \nnightly\n"), 0o644))
		got, err := readSyncFile(path)
		require.NoError(t, err)
		assert.Equal(t, "v0.9.5", got)
	})

	t.Run("empty file rejected", func(t *testing.T) {
		path := filepath.Join(dir, "empty")
		require.NoError(t, os.WriteFile(path, []byte("\n\n"), 0o644))
		_, err := readSyncFile(path)
		require.Error(t, err)
	})

	t.Run("missing file rejected", func(t *testing.T) {
		_, err := readSyncFile(filepath.Join(dir, "nope"))
		require.Error(t, err)
	})
}

func TestIsActiveDir(t *testing.T) {
	tests := []struct {
		name   string
		dir    string
		active string
		want   bool
	}{
		{"exact tag match", "v0.9.5", "v0.9.5", true},
		{"no active version", "v0.9.5", "", false},
		{"different tag", "nightly", "v0.9.5", false},
		{"hash dir against full hash payload", "1a2b3c4", "1a2b3c4d5e6f7a8b9c0d1e2f3a4b5c6d7e8f9a0b", true},
		{"hash dir against other hash", "9f8e7d6", "1a2b3c4d5e6f7a8b9c0d1e2f3a4b5c6d7e8f9a0b", false},
		{"nightly not marked while a snapshot is active", "nightly", "nightly-1a2b3c4", false},
		{"active snapshot marked exactly", "nightly-1a2b3c4", "nightly-1a2b3c4", true},
		{"tag prefix of a longer tag", "v0.9", "v0.9.5", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isActiveDir(tt.dir, tt.active))
		})
	}
}

func TestInstalledVersions(t *testing.T) {
	root := t.TempDir()
	p, err := paths.New(root, "")
	require.NoError(t, err)

	for _, name := range []string{"v0.9.5", "nightly", "nightly-1a2b3c4", paths.ShimDirName, paths.BuildDirName, paths.EnvDirName} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, name), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, paths.UsedFile), []byte("nightly"), 0o644))

	got, err := installedVersions(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"nightly", "nightly-1a2b3c4", "v0.9.5"}, got)
}

func TestInstalledVersionsMissingRoot(t *testing.T) {
	p, err := paths.New(filepath.Join(t.TempDir(), "nonexistent"), "")
	require.NoError(t, err)

	got, err := installedVersions(p)
	require.NoError(t, err)
	assert.Empty(t, got)
}
