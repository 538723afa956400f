// Package shim is the code path taken when this binary runs under the
// editor's name from the installation directory. It resolves the
// active version and re-execs it. Deliberately tiny: no flag parsing,
// no network, no output unless resolution fails.
package shim

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bobvm/bob/internal/version"
	"github.com/bobvm/bob/pkg/config"
	"github.com/bobvm/bob/pkg/errors"
	"github.com/bobvm/bob/pkg/extract"
	"github.com/bobvm/bob/pkg/paths"
)

// VersionSentinel makes the shim print its embedded bob version and
// exit; the switcher uses it to decide whether the shim needs
// replacing.
const VersionSentinel = "--bob-shim-version"

// IsShimInvocation reports whether argv says we are running as the
// editor shim rather than as bob itself.
func IsShimInvocation(argv0 string) bool {
	name := strings.TrimSuffix(strings.ToLower(filepath.Base(argv0)), ".exe")
	return name == strings.TrimSuffix(paths.EditorBinary(), ".exe")
}

// Main runs the shim: resolve the active install, exec it with all
// arguments and the full environment. Returns only on error (on POSIX
// a successful exec replaces the process).
func Main(args []string) error {
	if len(args) > 0 && args[0] == VersionSentinel {
		fmt.Println(version.Version)
		return nil
	}

	binary, err := ResolveActiveBinary()
	if err != nil {
		return err
	}
	return Exec(binary, args)
}

// ResolveActiveBinary locates the editor binary of the active version.
func ResolveActiveBinary() (string, error) {
	// The downloads root is a function of config + environment; the
	// config read here is the only file the shim touches besides the
	// pointer itself.
	cfg, err := config.Load()
	if err != nil {
		cfg = &config.Config{}
	}
	p, err := cfg.Paths()
	if err != nil {
		return "", err
	}

	payload, err := readUsed(p)
	if err != nil {
		return "", err
	}
	if payload == "" {
		return "", errors.New(errors.ErrNoActiveVersion,
			"no active version; install one with `bob install <version>` and activate it with `bob use <version>`")
	}
	return BinaryFor(p, payload)
}

// BinaryFor maps a used-file payload to the editor binary path.
// Hash payloads live under the first seven characters of the hash.
// Some older releases nest the binary inside a platform-named
// directory; that layout is probed as a fallback.
func BinaryFor(p paths.Paths, payload string) (string, error) {
	dir := payload
	if IsHexHash(payload) && len(payload) > 7 {
		dir = payload[:7]
	}

	candidates := []string{
		p.VersionBinary(dir),
		filepath.Join(p.VersionDir(dir), extract.PlatformDirName(), "bin", paths.EditorBinary()),
	}
	for _, bin := range candidates {
		if info, err := os.Stat(bin); err == nil && !info.IsDir() {
			return bin, nil
		}
	}
	return "", errors.Newf(errors.ErrNotInstalled,
		"active version %s is not installed correctly; reinstall it with `bob install %s`", payload, payload)
}

func readUsed(p paths.Paths) (string, error) {
	data, err := os.ReadFile(p.UsedFilePath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.Wrap(err, errors.ErrNotFound, "cannot read active version pointer")
	}
	return strings.TrimSpace(string(data)), nil
}

// IsHexHash reports whether s looks like a commit hash: lowercase hex,
// at least five characters.
func IsHexHash(s string) bool {
	if len(s) < 5 {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
