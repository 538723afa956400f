// Package switcher updates the active-version pointer, keeps the shim
// fresh, and writes the optional sync file.
package switcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/bobvm/bob/pkg/config"
	"github.com/bobvm/bob/pkg/errors"
	"github.com/bobvm/bob/pkg/logging"
	"github.com/bobvm/bob/pkg/paths"
	"github.com/bobvm/bob/pkg/versions"
)

// PathIntegrator ensures the shim directory is reachable via PATH.
// Implemented by pkg/shellpath; injected so tests can stub it out.
type PathIntegrator interface {
	Ensure(ctx context.Context) error
}

// Switcher flips which installed version is active.
type Switcher struct {
	cfg        *config.Config
	paths      paths.Paths
	integrator PathIntegrator
}

// New creates a Switcher. integrator may be nil to skip PATH handling.
func New(cfg *config.Config, p paths.Paths, integrator PathIntegrator) *Switcher {
	return &Switcher{cfg: cfg, paths: p, integrator: integrator}
}

// Switch makes rv the active version: writes the used pointer
// atomically, refreshes the shim, updates the sync file and runs PATH
// integration. Idempotent.
func (s *Switcher) Switch(ctx context.Context, rv *versions.ResolvedVersion) error {
	logger := logging.GetLogger("switcher")

	payload, err := s.Payload(rv)
	if err != nil {
		return err
	}

	if err := writeUsed(s.paths, payload); err != nil {
		return err
	}
	logger.Info().Str("version", payload).Msg("Active version updated")

	if err := s.ensureShim(ctx); err != nil {
		return err
	}

	if err := s.updateSyncFile(payload); err != nil {
		return err
	}

	if s.integrator != nil {
		if err := s.integrator.Ensure(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Payload computes the exact string stored in the used file for rv:
// the full commit hash for source builds, the tag for everything else.
func (s *Switcher) Payload(rv *versions.ResolvedVersion) (string, error) {
	switch rv.Kind {
	case versions.Hash:
		if len(rv.Raw) > 7 {
			return rv.Raw, nil
		}
		hashFile := filepath.Join(s.paths.VersionDir(rv.Raw), paths.FullHashFile)
		data, err := os.ReadFile(hashFile)
		if err != nil {
			return "", errors.Wrapf(err, errors.ErrNotInstalled,
				"version %s has no recorded full hash; was it installed?", rv.Raw)
		}
		return strings.TrimSpace(string(data)), nil
	case versions.Tagged, versions.Stable, versions.Nightly, versions.NightlyRollback:
		return rv.Tag, nil
	}
	return "", errors.Newf(errors.ErrInternal, "unhandled version kind %v", rv.Kind)
}

// IsActive reports whether rv is the currently active version, by
// exact string equality on the payload.
func (s *Switcher) IsActive(rv *versions.ResolvedVersion) (bool, error) {
	payload, err := s.Payload(rv)
	if err != nil {
		// A hash version that was never installed cannot be active.
		if errors.IsCode(err, errors.ErrNotInstalled) {
			return false, nil
		}
		return false, err
	}
	active, err := ActivePayload(s.paths)
	if err != nil {
		return false, err
	}
	return active == payload, nil
}

// ActivePayload reads the used file. An absent file yields "".
func ActivePayload(p paths.Paths) (string, error) {
	data, err := os.ReadFile(p.UsedFilePath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.Wrap(err, errors.ErrNotFound, "cannot read active version pointer")
	}
	return strings.TrimSpace(string(data)), nil
}

// writeUsed replaces the pointer with an atomic rename so concurrent
// readers see either the old or the new value, never a partial write.
func writeUsed(p paths.Paths, payload string) error {
	if err := os.MkdirAll(p.DownloadsRoot(), 0o755); err != nil {
		return errors.Wrap(err, errors.ErrDirCreate, "cannot create downloads root")
	}
	tmp := p.UsedFilePath() + ".tmp"
	if err := os.WriteFile(tmp, []byte(payload), 0o644); err != nil {
		return errors.Wrap(err, errors.ErrFileWrite, "cannot write active version pointer")
	}
	if err := os.Rename(tmp, p.UsedFilePath()); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, errors.ErrFileWrite, "cannot replace active version pointer")
	}
	return nil
}

// updateSyncFile writes the new version to the configured sync file,
// only when the content actually differs.
func (s *Switcher) updateSyncFile(payload string) error {
	syncPath := s.cfg.VersionSyncFileLocation
	if syncPath == "" {
		return nil
	}
	current, err := os.ReadFile(syncPath)
	if err == nil && strings.TrimSpace(string(current)) == payload {
		return nil
	}
	if err := os.WriteFile(syncPath, []byte(payload+"\n"), 0o644); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "cannot update sync file %s", syncPath)
	}
	logger := logging.GetLogger("switcher")
	logger.Debug().Str("file", syncPath).Msg("Sync file updated")
	return nil
}
