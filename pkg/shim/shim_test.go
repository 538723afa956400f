package shim

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobvm/bob/pkg/errors"
	"github.com/bobvm/bob/pkg/extract"
	"github.com/bobvm/bob/pkg/paths"
)

func TestIsShimInvocation(t *testing.T) {
	tests := []struct {
		argv0 string
		want  bool
	}{
		{"nvim", true},
		{"/usr/local/bin/nvim", true},
		{`C:\tools\nvim.exe`, runtime.GOOS == "windows"},
		{"nvim.exe", true},
		{"NVIM", true},
		{"bob", false},
		{"/usr/bin/bob", false},
		{"nvim-qt", false},
	}
	for _, tt := range tests {
		t.Run(tt.argv0, func(t *testing.T) {
			assert.Equal(t, tt.want, IsShimInvocation(tt.argv0))
		})
	}
}

func newTestPaths(t *testing.T) paths.Paths {
	t.Helper()
	p, err := paths.New(t.TempDir(), "")
	require.NoError(t, err)
	return p
}

func placeBinary(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, paths.EditorBinary()), []byte("elf"), 0o755))
}

func TestBinaryForStandardLayout(t *testing.T) {
	p := newTestPaths(t)
	placeBinary(t, filepath.Join(p.VersionDir("v0.9.5"), "bin"))

	bin, err := BinaryFor(p, "v0.9.5")
	require.NoError(t, err)
	assert.Equal(t, p.VersionBinary("v0.9.5"), bin)
}

func TestBinaryForPlatformDirFallback(t *testing.T) {
	p := newTestPaths(t)
	placeBinary(t, filepath.Join(p.VersionDir("nightly"), extract.PlatformDirName(), "bin"))

	bin, err := BinaryFor(p, "nightly")
	require.NoError(t, err)
	assert.Contains(t, bin, extract.PlatformDirName())
}

func TestBinaryForFullHashUsesPrefixDir(t *testing.T) {
	p := newTestPaths(t)
	placeBinary(t, filepath.Join(p.VersionDir("1a2b3c4"), "bin"))

	bin, err := BinaryFor(p, "1a2b3c4d5e6f7a8b9c0d1e2f3a4b5c6d7e8f9a0b")
	require.NoError(t, err)
	assert.Equal(t, p.VersionBinary("1a2b3c4"), bin)
}

func TestBinaryForMissingInstall(t *testing.T) {
	_, err := BinaryFor(newTestPaths(t), "v0.9.5")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrNotInstalled))
}

func TestIsHexHash(t *testing.T) {
	assert.True(t, IsHexHash("abc12"))
	assert.True(t, IsHexHash("1a2b3c4d5e6f7a8b9c0d1e2f3a4b5c6d7e8f9a0b"))
	assert.False(t, IsHexHash("abcd"))
	assert.False(t, IsHexHash("nightly"))
	assert.False(t, IsHexHash("nightly-1a2b3c4"))
	assert.False(t, IsHexHash("ABC1234"))
}
