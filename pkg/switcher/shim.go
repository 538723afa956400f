package switcher

import (
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/bobvm/bob/internal/version"
	"github.com/bobvm/bob/pkg/errors"
	"github.com/bobvm/bob/pkg/logging"
	"github.com/bobvm/bob/pkg/shim"
)

// ensureShim installs or refreshes the shim binary in the installation
// directory. The shim is this executable copied under the editor's
// name; it is only replaced when its embedded version differs from the
// running tool, so a running shim is normally never overwritten.
func (s *Switcher) ensureShim(ctx context.Context) error {
	logger := logging.GetLogger("switcher")
	shimPath := s.paths.ShimPath()

	if current, err := shimVersion(ctx, shimPath); err == nil {
		if current == version.Version {
			logger.Debug().Str("shim", shimPath).Msg("Shim is up to date")
			return nil
		}
		logger.Info().Str("have", current).Str("want", version.Version).Msg("Refreshing shim")
	}

	self, err := os.Executable()
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "cannot locate own executable")
	}

	if err := os.MkdirAll(s.paths.InstallationDir(), 0o755); err != nil {
		return errors.Wrap(err, errors.ErrDirCreate, "cannot create installation directory")
	}

	if err := copyExecutable(self, shimPath); err != nil {
		if isFileBusy(err) {
			return errors.Wrap(err, errors.ErrFileBusy,
				"the shim file is busy; close running editor instances (or anything holding it open) and retry")
		}
		return errors.Wrap(err, errors.ErrFileWrite, "cannot install shim")
	}
	logger.Info().Str("shim", shimPath).Msg("Shim installed")
	return nil
}

// shimVersion probes an existing shim with the sentinel flag.
func shimVersion(ctx context.Context, shimPath string) (string, error) {
	if _, err := os.Stat(shimPath); err != nil {
		return "", err
	}
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	out, err := exec.CommandContext(probeCtx, shimPath, shim.VersionSentinel).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func copyExecutable(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	// Write to a sibling temp file then rename, so a failed copy does
	// not leave a truncated shim behind.
	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
