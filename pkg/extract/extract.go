// Package extract unpacks downloaded release archives and normalizes
// their layout so that <root>/<tag>/bin/<editor> always exists
// afterwards, regardless of how upstream arranged the archive.
package extract

import (
	"archive/tar"
	"archive/zip"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/bobvm/bob/pkg/errors"
	"github.com/bobvm/bob/pkg/logging"
	"github.com/bobvm/bob/pkg/paths"
)

// binaryMode is applied to the editor binary after extraction on POSIX.
const binaryMode = 0o551

// Extract unpacks archivePath into root under the name tag. The
// archive file is deleted on success. Extraction happens in a staging
// directory first so a failed run never leaves a half-built install
// under the final name.
func Extract(ctx context.Context, archivePath, root, tag string) error {
	logger := logging.GetLogger("extract")
	logger.Debug().Str("archive", archivePath).Str("tag", tag).Msg("Extracting archive")

	staging, err := os.MkdirTemp(root, "extract-*")
	if err != nil {
		return errors.Wrap(err, errors.ErrDirCreate, "cannot create staging directory")
	}
	defer os.RemoveAll(staging)

	switch {
	case strings.HasSuffix(archivePath, ".zip"):
		err = extractZip(archivePath, staging)
	case strings.HasSuffix(archivePath, ".tar.gz"):
		err = extractTarGz(archivePath, staging)
	case strings.HasSuffix(archivePath, ".appimage"):
		err = extractAppImage(ctx, archivePath, staging)
	default:
		err = errors.Newf(errors.ErrExtract, "unsupported archive format %q", filepath.Ext(archivePath))
	}
	if err != nil {
		return err
	}

	installDir, err := normalize(staging)
	if err != nil {
		return err
	}

	target := filepath.Join(root, tag)
	if err := os.RemoveAll(target); err != nil {
		return errors.Wrapf(err, errors.ErrExtract, "cannot clear %s", target)
	}
	if err := os.Rename(installDir, target); err != nil {
		return errors.Wrapf(err, errors.ErrExtract, "cannot move install into place at %s", target)
	}

	if runtime.GOOS != "windows" {
		if err := markExecutable(target); err != nil {
			return err
		}
	}

	if err := os.Remove(archivePath); err != nil {
		logger.Warn().Err(err).Str("archive", archivePath).Msg("Could not delete archive after extraction")
	}
	return nil
}

// normalize locates the directory inside staging that holds
// bin/<editor> and returns it. Upstream top-level names have changed
// across releases (nvim-osx64, nvim-macos, squashfs-root, ...), so the
// layout is probed rather than matched against historical names.
func normalize(staging string) (string, error) {
	editor := paths.EditorBinary()

	// Archive entries may sit directly in staging.
	if fileExists(filepath.Join(staging, "bin", editor)) {
		return staging, nil
	}

	entries, err := os.ReadDir(staging)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrExtract, "cannot read staging directory")
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(staging, entry.Name())
		if fileExists(filepath.Join(dir, "bin", editor)) {
			return dir, nil
		}
		// AppImage layout: squashfs-root/usr/bin/<editor>. The inner
		// usr/ becomes the platform directory, leaving the binary one
		// level deeper; the shim knows this fallback.
		if fileExists(filepath.Join(dir, "usr", "bin", editor)) {
			platform := filepath.Join(dir, PlatformDirName())
			if err := os.Rename(filepath.Join(dir, "usr"), platform); err != nil {
				return "", errors.Wrap(err, errors.ErrExtract, "cannot rearrange AppImage layout")
			}
			return dir, nil
		}
	}
	return "", errors.New(errors.ErrExtract, "extracted archive has no bin/"+editor)
}

// PlatformDirName is the expected upstream platform directory name.
func PlatformDirName() string {
	switch runtime.GOOS {
	case "windows":
		return "nvim-win64"
	case "darwin":
		return "nvim-macos"
	default:
		return "nvim-linux64"
	}
}

func extractTarGz(archivePath, dest string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return errors.Wrap(err, errors.ErrExtract, "cannot open archive")
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return errors.Wrap(err, errors.ErrExtract, "cannot read gzip stream")
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrExtract, "cannot read archive entry")
		}

		target := filepath.Join(dest, filepath.FromSlash(header.Name))
		if err := ensureWithinRoot(dest, target); err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(header.Mode)); err != nil {
				return errors.Wrapf(err, errors.ErrExtract, "cannot create %s", target)
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, os.FileMode(header.Mode)); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return errors.Wrapf(err, errors.ErrExtract, "cannot create %s", filepath.Dir(target))
			}
			if err := os.Symlink(header.Linkname, target); err != nil && !os.IsExist(err) {
				return errors.Wrapf(err, errors.ErrExtract, "cannot link %s", target)
			}
		default:
			// Hard links and other entry types do not appear in
			// upstream archives; skip rather than fail.
		}
	}
	return nil
}

func extractZip(archivePath, dest string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return errors.Wrap(err, errors.ErrExtract, "cannot open archive")
	}
	defer reader.Close()

	for _, f := range reader.File {
		target := filepath.Join(dest, filepath.FromSlash(f.Name))
		if err := ensureWithinRoot(dest, target); err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, f.Mode()); err != nil {
				return errors.Wrapf(err, errors.ErrExtract, "cannot create %s", target)
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return errors.Wrapf(err, errors.ErrExtract, "cannot read %s", f.Name)
		}
		err = writeFile(target, rc, f.Mode())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// extractAppImage runs the self-extracting AppImage, which drops a
// squashfs-root directory into the working directory.
func extractAppImage(ctx context.Context, archivePath, dest string) error {
	if err := os.Chmod(archivePath, 0o755); err != nil {
		return errors.Wrap(err, errors.ErrExtract, "cannot make AppImage executable")
	}
	abs, err := filepath.Abs(archivePath)
	if err != nil {
		return errors.Wrap(err, errors.ErrExtract, "cannot resolve AppImage path")
	}
	cmd := exec.CommandContext(ctx, abs, "--appimage-extract")
	cmd.Dir = dest
	if out, err := cmd.CombinedOutput(); err != nil {
		return errors.Wrapf(err, errors.ErrExtract, "AppImage extraction failed: %s", strings.TrimSpace(string(out)))
	}
	return nil
}

func writeFile(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.Wrapf(err, errors.ErrExtract, "cannot create %s", filepath.Dir(target))
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return errors.Wrapf(err, errors.ErrExtract, "cannot create %s", target)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return errors.Wrapf(err, errors.ErrExtract, "cannot write %s", target)
	}
	return f.Close()
}

func ensureWithinRoot(root, target string) error {
	root = filepath.Clean(root)
	target = filepath.Clean(target)
	if target == root {
		return nil
	}
	if !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return errors.Newf(errors.ErrExtract, "archive entry escapes extraction root: %s", target)
	}
	return nil
}

// markExecutable sets the editor binary's permissions after extraction.
func markExecutable(installDir string) error {
	editor := paths.EditorBinary()
	candidates := []string{
		filepath.Join(installDir, "bin", editor),
		filepath.Join(installDir, PlatformDirName(), "bin", editor),
	}
	for _, bin := range candidates {
		if !fileExists(bin) {
			continue
		}
		if err := os.Chmod(bin, binaryMode); err != nil {
			return errors.Wrapf(err, errors.ErrPermission, "cannot set permissions on %s", bin)
		}
		return nil
	}
	return errors.New(errors.ErrExtract, "editor binary missing after extraction")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
