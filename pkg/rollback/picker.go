package rollback

import (
	"fmt"

	"github.com/pterm/pterm"

	"github.com/bobvm/bob/pkg/errors"
)

// Pick presents the snapshots newest-first and returns the chosen one.
func (r *Ring) Pick() (*Entry, error) {
	entries, err := r.List()
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errors.New(errors.ErrNotFound, "no nightly snapshots to roll back to")
	}

	labels := make([]string, len(entries))
	byLabel := make(map[string]*Entry, len(entries))
	for idx := range entries {
		entry := &entries[idx]
		label := fmt.Sprintf("%s (published %s)", entry.Tag, entry.Release.PublishedAt.Format("2006-01-02 15:04"))
		labels[idx] = label
		byLabel[label] = entry
	}

	chosen, err := pterm.DefaultInteractiveSelect.
		WithOptions(labels).
		WithDefaultText("Roll back to which nightly?").
		Show()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "selection failed")
	}
	return byLabel[chosen], nil
}
