package installer

import (
	"runtime"

	"github.com/bobvm/bob/pkg/versions"
)

// macOS archives grew an architecture suffix after this release; the
// same release also switched the checksum file to shasum.txt.
var archSuffixSince = versions.Semver{Major: 0, Minor: 10, Patch: 4}

// Checksum files only exist for releases after this one.
var checksumSince = versions.Semver{Major: 0, Minor: 4, Patch: 4}

// Old Linux releases shipped as self-extracting AppImages instead of
// tarballs.
var linuxTarballSince = versions.Semver{Major: 0, Minor: 4, Patch: 4}

// assetName returns the upstream release asset for rv on this platform.
func assetName(rv *versions.ResolvedVersion) string {
	switch runtime.GOOS {
	case "windows":
		return "nvim-win64.zip"
	case "darwin":
		if hasArchSuffix(rv) {
			if runtime.GOARCH == "arm64" {
				return "nvim-macos-arm64.tar.gz"
			}
			return "nvim-macos-x86_64.tar.gz"
		}
		return "nvim-macos.tar.gz"
	default:
		if rv.Semver != nil && !rv.Semver.GreaterThan(linuxTarballSince) {
			return "nvim.appimage"
		}
		return "nvim-linux64.tar.gz"
	}
}

// hasArchSuffix reports whether rv's assets use the newer macOS naming.
func hasArchSuffix(rv *versions.ResolvedVersion) bool {
	if rv.Kind == versions.Nightly {
		return true
	}
	return rv.Semver != nil && rv.Semver.GreaterThan(archSuffixSince)
}

// checksumRequired reports whether a checksum file is expected for rv.
func checksumRequired(rv *versions.ResolvedVersion) bool {
	if rv.Kind == versions.Nightly {
		return true
	}
	return rv.Semver != nil && rv.Semver.GreaterThan(checksumSince)
}

// checksumFileName is shasum.txt for nightly and post-0.10.4 releases,
// and <asset>.sha256sum before that.
func checksumFileName(rv *versions.ResolvedVersion, asset string) string {
	if rv.Kind == versions.Nightly || (rv.Semver != nil && rv.Semver.GreaterThan(archSuffixSince)) {
		return "shasum.txt"
	}
	return asset + ".sha256sum"
}
