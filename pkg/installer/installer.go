// Package installer implements the install pipeline: resolve an
// artifact for a version, download + verify + extract it, or build it
// from source, with rollback of failed attempts and the nightly
// snapshot trigger.
package installer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bobvm/bob/pkg/config"
	"github.com/bobvm/bob/pkg/errors"
	"github.com/bobvm/bob/pkg/extract"
	"github.com/bobvm/bob/pkg/github"
	"github.com/bobvm/bob/pkg/logging"
	"github.com/bobvm/bob/pkg/paths"
	"github.com/bobvm/bob/pkg/rollback"
	"github.com/bobvm/bob/pkg/switcher"
	"github.com/bobvm/bob/pkg/ui/styles"
	"github.com/bobvm/bob/pkg/versions"
)

// Outcome is the result of an install attempt.
type Outcome int

const (
	// Installed means a fresh install landed on disk.
	Installed Outcome = iota
	// AlreadyInstalled means the version was present and untouched.
	AlreadyInstalled
	// NightlyUpToDate means the local nightly matches upstream.
	NightlyUpToDate
)

func (o Outcome) String() string {
	switch o {
	case Installed:
		return "installed"
	case AlreadyInstalled:
		return "already installed"
	case NightlyUpToDate:
		return "nightly up to date"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// UpstreamClient is the slice of the API client the pipeline needs.
type UpstreamClient interface {
	ReleaseByTag(ctx context.Context, tag string) (*github.Release, error)
	CommitsBetween(ctx context.Context, since, until time.Time) ([]github.Commit, error)
}

// Installer drives the pipeline for one downloads root.
type Installer struct {
	cfg    *config.Config
	paths  paths.Paths
	client UpstreamClient
	ring   *rollback.Ring
}

// New creates an Installer.
func New(cfg *config.Config, p paths.Paths, client UpstreamClient) *Installer {
	return &Installer{
		cfg:    cfg,
		paths:  p,
		client: client,
		ring:   rollback.New(p, cfg.RollbackRingSize()),
	}
}

// Install installs rv, returning what happened. Failed attempts leave
// no partially verified artifacts behind.
func (i *Installer) Install(ctx context.Context, rv *versions.ResolvedVersion) (Outcome, error) {
	logger := logging.GetLogger("installer")

	switch rv.Kind {
	case versions.Tagged, versions.Stable:
		if rv.Semver != nil && rv.Semver.LessOrEqual(versions.NonInstallable) {
			return 0, errors.Newf(errors.ErrUnsupportedVersion,
				"version %s is not supported; releases at or below v%s predate downloadable assets", rv.Raw, versions.NonInstallable)
		}
	case versions.NightlyRollback:
		// Snapshots exist or they don't; they cannot be re-created.
		return AlreadyInstalled, nil
	case versions.Nightly, versions.Hash:
	default:
		return 0, errors.Newf(errors.ErrInternal, "unhandled version kind %v", rv.Kind)
	}

	if err := os.MkdirAll(i.paths.DownloadsRoot(), 0o755); err != nil {
		return 0, errors.Wrap(err, errors.ErrDirCreate, "cannot create downloads root")
	}

	installName := i.installName(rv)
	installed := dirExists(i.paths.VersionDir(installName))
	if installed && rv.Kind != versions.Nightly {
		logger.Debug().Str("version", installName).Msg("Already installed")
		return AlreadyInstalled, nil
	}

	var nightlyRelease *github.Release
	if rv.Kind == versions.Nightly {
		release, outcome, err := i.checkNightly(ctx, installed)
		if err != nil {
			return 0, err
		}
		if outcome == NightlyUpToDate {
			return NightlyUpToDate, nil
		}
		nightlyRelease = release
	}

	switch rv.Kind {
	case versions.Tagged, versions.Stable:
		if err := i.downloadAndExtract(ctx, rv, rv.Tag); err != nil {
			return 0, err
		}
	case versions.Nightly:
		if i.cfg.ReleaseBuild() {
			// Release builds turn nightly into a source build of the
			// upstream HEAD the release points at.
			if nightlyRelease.TargetCommitish == "" {
				return 0, errors.New(errors.ErrNetwork,
					"upstream nightly release carries no target commit to build from")
			}
			if err := i.buildFromSource(ctx, nightlyRelease.TargetCommitish, "nightly"); err != nil {
				return 0, err
			}
		} else if err := i.downloadAndExtract(ctx, rv, "nightly"); err != nil {
			return 0, err
		}
		metaPath := filepath.Join(i.paths.VersionDir("nightly"), paths.NightlyMetaFile)
		if err := github.WriteReleaseFile(metaPath, nightlyRelease); err != nil {
			return 0, errors.Wrap(err, errors.ErrFileWrite, "cannot record nightly metadata")
		}
	case versions.Hash:
		if err := i.buildFromSource(ctx, rv.Raw, installName); err != nil {
			return 0, err
		}
	case versions.NightlyRollback:
		// unreachable, handled by the precondition switch
	}

	logger.Info().Str("version", installName).Msg("Install complete")
	return Installed, nil
}

// checkNightly compares the local nightly against upstream and, when an
// update is due, snapshots the current one if it is active.
func (i *Installer) checkNightly(ctx context.Context, installed bool) (*github.Release, Outcome, error) {
	logger := logging.GetLogger("installer")

	upstream, err := i.client.ReleaseByTag(ctx, "nightly")
	if err != nil {
		return nil, 0, err
	}
	if !installed {
		return upstream, Installed, nil
	}

	local, err := github.ReadReleaseFile(filepath.Join(i.paths.VersionDir("nightly"), paths.NightlyMetaFile))
	if err != nil {
		// Unreadable metadata: treat as outdated, a fresh install fixes it.
		logger.Warn().Err(err).Msg("Local nightly metadata unreadable, reinstalling")
		return upstream, Installed, nil
	}

	if local.PublishedAt.Equal(upstream.PublishedAt) {
		return upstream, NightlyUpToDate, nil
	}

	active, err := switcher.ActivePayload(i.paths)
	if err != nil {
		return nil, 0, err
	}
	if active == "nightly" && i.cfg.RollbackRingSize() > 0 {
		if err := i.ring.Snapshot(); err != nil {
			return nil, 0, err
		}
	}

	if i.cfg.NightlyInfo() {
		i.printCommitLog(ctx, local.PublishedAt, upstream.PublishedAt)
	}
	return upstream, Installed, nil
}

// printCommitLog shows the first line of each commit between two
// nightlies. Failures here never block the install.
func (i *Installer) printCommitLog(ctx context.Context, since, until time.Time) {
	commits, err := i.client.CommitsBetween(ctx, since, until)
	if err != nil {
		logger := logging.GetLogger("installer")
		logger.Warn().Err(err).Msg("Could not fetch commit log")
		return
	}
	dim := styles.GetStyle("Dim")
	for _, c := range commits {
		subject := c.Commit.Message
		if idx := strings.IndexByte(subject, '\n'); idx >= 0 {
			subject = subject[:idx]
		}
		short := c.SHA
		if len(short) > 7 {
			short = short[:7]
		}
		fmt.Printf("%s %s\n", dim.Render(short), subject)
	}
}

// installName is the directory name an install lands under.
func (i *Installer) installName(rv *versions.ResolvedVersion) string {
	return DirName(rv)
}

// DirName is the downloads-root directory name for rv: the tag, or the
// first seven characters of a commit hash.
func DirName(rv *versions.ResolvedVersion) string {
	switch rv.Kind {
	case versions.Hash:
		if len(rv.Raw) > 7 {
			return rv.Raw[:7]
		}
		return rv.Raw
	case versions.Tagged, versions.Stable, versions.Nightly, versions.NightlyRollback:
		return rv.Tag
	}
	return rv.Tag
}

// downloadAndExtract fetches the platform archive for rv, verifies it
// and unpacks it under installName.
func (i *Installer) downloadAndExtract(ctx context.Context, rv *versions.ResolvedVersion, installName string) error {
	asset := assetName(rv)
	archivePath := filepath.Join(i.paths.DownloadsRoot(), asset)

	if err := i.download(ctx, downloadURL(i.cfg.Mirror(), rv.Tag, asset), archivePath); err != nil {
		return err
	}

	if err := i.verifyChecksum(ctx, rv, asset, archivePath); err != nil {
		return err
	}

	return extract.Extract(ctx, archivePath, i.paths.DownloadsRoot(), installName)
}

func downloadURL(mirror, tag, asset string) string {
	return fmt.Sprintf("%s/%s/releases/download/%s/%s", mirror, github.Repo, tag, asset)
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
