package installer

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bobvm/bob/pkg/errors"
	"github.com/bobvm/bob/pkg/logging"
	"github.com/bobvm/bob/pkg/versions"
)

// verifyChecksum downloads the checksum file for rv and compares it to
// the archive's SHA-256. A missing checksum file is a warning; a
// mismatch deletes both files and fails hard. On success the checksum
// file is removed and the archive kept.
func (i *Installer) verifyChecksum(ctx context.Context, rv *versions.ResolvedVersion, asset, archivePath string) error {
	logger := logging.GetLogger("installer")

	if !checksumRequired(rv) {
		logger.Debug().Str("version", rv.Tag).Msg("Release predates checksum files, skipping verification")
		return nil
	}

	checksumName := checksumFileName(rv, asset)
	checksumPath := filepath.Join(i.paths.DownloadsRoot(), checksumName)
	url := downloadURL(i.cfg.Mirror(), rv.Tag, checksumName)

	if err := i.download(ctx, url, checksumPath); err != nil {
		os.Remove(checksumPath)
		// An absent checksum file is not fatal; upstream has gaps.
		// Anything else is a real network failure and must surface.
		if errors.IsCode(err, errors.ErrNotFound) {
			logger.Warn().Err(err).Str("file", checksumName).Msg("No checksum file published, proceeding unverified")
			return nil
		}
		return err
	}

	expected, err := expectedChecksum(checksumPath, asset)
	if err != nil {
		os.Remove(checksumPath)
		return err
	}

	actual, err := fileSHA256(archivePath)
	if err != nil {
		os.Remove(checksumPath)
		return err
	}

	if !strings.EqualFold(expected, actual) {
		os.Remove(archivePath)
		os.Remove(checksumPath)
		return errors.Newf(errors.ErrChecksumMismatch,
			"Checksum mismatch for %s: expected %s, got %s", asset, expected, actual)
	}

	logger.Debug().Str("asset", asset).Msg("Checksum verified")
	os.Remove(checksumPath)
	return nil
}

// expectedChecksum reads the hash for asset out of a checksum file.
// Both formats are handled: multi-entry "<hash>  <filename>" lists
// (shasum.txt) and single-entry <asset>.sha256sum files, which may
// contain only the bare hash.
func expectedChecksum(checksumPath, asset string) (string, error) {
	f, err := os.Open(checksumPath)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrFileNotFound, "cannot open checksum file")
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		switch len(fields) {
		case 1:
			return fields[0], nil
		case 2:
			// shasum-style names may carry a leading * for binary mode.
			if strings.TrimPrefix(fields[1], "*") == asset {
				return fields[0], nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", errors.Wrap(err, errors.ErrFileNotFound, "cannot read checksum file")
	}
	return "", errors.Newf(errors.ErrChecksumMismatch, "checksum file has no entry for %s", asset)
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrFileNotFound, "cannot open %s", path)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrapf(err, errors.ErrInternal, "cannot hash %s", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
