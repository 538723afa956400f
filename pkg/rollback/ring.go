// Package rollback maintains the bounded, content-addressed history of
// past nightly installs. Entries are directories named nightly-<7hex>
// where <7hex> is the snapshotted nightly's commit hash prefix.
package rollback

import (
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/bobvm/bob/pkg/errors"
	"github.com/bobvm/bob/pkg/github"
	"github.com/bobvm/bob/pkg/logging"
	"github.com/bobvm/bob/pkg/paths"
)

var entryPattern = regexp.MustCompile(`^nightly-[0-9a-f]{7}$`)

// Entry is one snapshot in the ring.
type Entry struct {
	// Tag is the directory name, nightly-<7hex>.
	Tag string
	// Release is the snapshot's bob.json contents.
	Release github.Release
	// Path is the snapshot directory.
	Path string
}

// Ring is the snapshot history rooted in the downloads root.
type Ring struct {
	paths paths.Paths
	limit int
}

// New creates a Ring with the configured size limit. A limit of zero
// disables snapshotting.
func New(p paths.Paths, limit int) *Ring {
	return &Ring{paths: p, limit: limit}
}

// List returns the snapshots newest-first by published_at. Directories
// matching the naming scheme but missing a readable bob.json are
// skipped.
func (r *Ring) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(r.paths.DownloadsRoot())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.ErrNotFound, "cannot read downloads root")
	}

	var entries []Entry
	for _, de := range dirEntries {
		if !de.IsDir() || !entryPattern.MatchString(de.Name()) {
			continue
		}
		dir := filepath.Join(r.paths.DownloadsRoot(), de.Name())
		release, err := github.ReadReleaseFile(filepath.Join(dir, paths.NightlyMetaFile))
		if err != nil {
			logger := logging.GetLogger("rollback")
			logger.Warn().Err(err).Str("entry", de.Name()).Msg("Skipping snapshot without readable metadata")
			continue
		}
		entries = append(entries, Entry{Tag: de.Name(), Release: *release, Path: dir})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Release.PublishedAt.After(entries[j].Release.PublishedAt)
	})
	return entries, nil
}

// Snapshot copies the current nightly install into the ring, keyed by
// its commit hash, and evicts the oldest entry when the ring would
// exceed its limit. With limit zero it is a no-op.
func (r *Ring) Snapshot() error {
	if r.limit <= 0 {
		return nil
	}
	logger := logging.GetLogger("rollback")

	nightlyDir := r.paths.VersionDir("nightly")
	release, err := github.ReadReleaseFile(filepath.Join(nightlyDir, paths.NightlyMetaFile))
	if err != nil {
		return errors.Wrap(err, errors.ErrNotFound, "current nightly has no readable metadata")
	}
	if len(release.TargetCommitish) < 7 {
		return errors.New(errors.ErrInternal, "nightly metadata has no commit hash")
	}

	short := release.TargetCommitish[:7]
	tag := "nightly-" + short
	target := filepath.Join(r.paths.DownloadsRoot(), tag)
	if _, err := os.Stat(target); err == nil {
		logger.Debug().Str("tag", tag).Msg("Snapshot already exists")
		return nil
	}

	logger.Info().Str("tag", tag).Msg("Snapshotting current nightly")
	if err := copyDir(nightlyDir, target); err != nil {
		os.RemoveAll(target)
		return errors.Wrapf(err, errors.ErrFileWrite, "cannot snapshot nightly to %s", tag)
	}

	// The snapshot's metadata carries the suffixed tag so listings can
	// tell entries apart without parsing directory names.
	snapped := *release
	snapped.TagName = release.TagName + "-" + short
	if err := github.WriteReleaseFile(filepath.Join(target, paths.NightlyMetaFile), &snapped); err != nil {
		os.RemoveAll(target)
		return errors.Wrap(err, errors.ErrFileWrite, "cannot rewrite snapshot metadata")
	}

	return r.evict()
}

// evict removes the oldest snapshots until the ring fits its limit.
func (r *Ring) evict() error {
	entries, err := r.List()
	if err != nil {
		return err
	}
	for len(entries) > r.limit {
		oldest := entries[len(entries)-1]
		logger := logging.GetLogger("rollback")
		logger.Info().Str("tag", oldest.Tag).Msg("Evicting oldest snapshot")
		if err := os.RemoveAll(oldest.Path); err != nil {
			return errors.Wrapf(err, errors.ErrFileWrite, "cannot remove snapshot %s", oldest.Tag)
		}
		entries = entries[:len(entries)-1]
	}
	return nil
}

// copyDir copies src into dst recursively, preserving file modes.
// Symlinks are recreated rather than followed.
func copyDir(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if info.Mode()&os.ModeSymlink != 0 {
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		}
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm())
		}
		return copyFile(path, target, info.Mode().Perm())
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
