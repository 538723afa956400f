// Package paths provides centralized path handling for bob.
// It implements XDG Base Directory specification compliance and
// provides a consistent API for all path operations in the codebase.
//
// Paths are recomputed from config + environment on every construction;
// nothing here is cached at module level, so tests can inject alternate
// roots trivially.
package paths

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/adrg/xdg"

	"github.com/bobvm/bob/pkg/errors"
)

// Environment variable names
const (
	// EnvDownloadsDir overrides the downloads root
	EnvDownloadsDir = "BOB_DOWNLOADS_DIR"

	// EnvConfigDir overrides the config directory
	EnvConfigDir = "BOB_CONFIG_DIR"
)

// Fixed names inside the downloads root. These define bob's on-disk
// layout and are NOT user-configurable; user-configurable locations
// belong in pkg/config.
const (
	// BobDirName is the directory name for bob-specific files
	BobDirName = "bob"

	// UsedFile is the active-version pointer file
	UsedFile = "used"

	// NightlyMetaFile records the upstream release of a nightly install
	NightlyMetaFile = "bob.json"

	// FullHashFile records the full commit hash of a source build
	FullHashFile = "full-hash.txt"

	// ShimDirName is the default shim directory under the downloads root
	ShimDirName = "nvim-bin"

	// BuildDirName is the shared build-from-source workspace
	BuildDirName = "neovim-git"

	// EnvDirName holds the generated shell fragments
	EnvDirName = "env"
)

// Paths provides centralized path management for bob
type Paths interface {
	DownloadsRoot() string
	InstallationDir() string
	VersionDir(tag string) string
	VersionBinary(tag string) string
	UsedFilePath() string
	ShimPath() string
	BuildWorkspace() string
	EnvDir() string
	EnvShPath() string
	EnvFishPath() string
}

type paths struct {
	downloadsRoot   string
	installationDir string
}

// New computes the path set from the given config overrides. Empty
// overrides fall back to BOB_DOWNLOADS_DIR, then the XDG data directory.
func New(downloadsOverride, installationOverride string) (Paths, error) {
	root := downloadsOverride
	if root == "" {
		root = os.Getenv(EnvDownloadsDir)
	}
	if root == "" {
		root = filepath.Join(xdg.DataHome, BobDirName)
	}
	root, err := expandTilde(root)
	if err != nil {
		return nil, err
	}

	install := installationOverride
	if install == "" {
		install = filepath.Join(root, ShimDirName)
	} else if install, err = expandTilde(install); err != nil {
		return nil, err
	}

	return &paths{downloadsRoot: root, installationDir: install}, nil
}

func (p *paths) DownloadsRoot() string   { return p.downloadsRoot }
func (p *paths) InstallationDir() string { return p.installationDir }

func (p *paths) VersionDir(tag string) string {
	return filepath.Join(p.downloadsRoot, tag)
}

func (p *paths) VersionBinary(tag string) string {
	return filepath.Join(p.VersionDir(tag), "bin", EditorBinary())
}

func (p *paths) UsedFilePath() string {
	return filepath.Join(p.downloadsRoot, UsedFile)
}

func (p *paths) ShimPath() string {
	return filepath.Join(p.installationDir, EditorBinary())
}

func (p *paths) BuildWorkspace() string {
	return filepath.Join(p.downloadsRoot, BuildDirName)
}

func (p *paths) EnvDir() string {
	return filepath.Join(p.downloadsRoot, EnvDirName)
}

func (p *paths) EnvShPath() string {
	return filepath.Join(p.EnvDir(), "env.sh")
}

func (p *paths) EnvFishPath() string {
	return filepath.Join(p.EnvDir(), "env.fish")
}

// EditorBinary returns the editor executable name for the current platform.
func EditorBinary() string {
	if runtime.GOOS == "windows" {
		return "nvim.exe"
	}
	return "nvim"
}

// ConfigDir returns the directory holding bob's config file.
func ConfigDir() string {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return dir
	}
	return filepath.Join(xdg.ConfigHome, BobDirName)
}

// expandTilde expands a leading ~ to the user's home directory
func expandTilde(path string) (string, error) {
	if path == "~" || len(path) >= 2 && path[0] == '~' && os.IsPathSeparator(path[1]) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, errors.ErrNotFound, "cannot resolve home directory")
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}
