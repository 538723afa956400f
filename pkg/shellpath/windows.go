//go:build windows

package shellpath

import (
	"strings"

	"golang.org/x/sys/windows/registry"

	"github.com/bobvm/bob/pkg/errors"
	"github.com/bobvm/bob/pkg/logging"
)

func samePathEntry(entry, dir string) bool {
	norm := func(s string) string {
		return strings.ToLower(strings.ReplaceAll(normalizeEntry(s), "/", `\`))
	}
	return norm(entry) == norm(dir)
}

// integrate appends dir to the user Environment Path value. The change
// reaches new sessions only.
func (in *Integrator) integrate(dir string) error {
	key, err := registry.OpenKey(registry.CURRENT_USER, "Environment", registry.QUERY_VALUE|registry.SET_VALUE)
	if err != nil {
		return errors.Wrap(err, errors.ErrPermission, "cannot open user Environment registry key")
	}
	defer key.Close()

	current, _, err := key.GetStringValue("Path")
	if err != nil && err != registry.ErrNotExist {
		return errors.Wrap(err, errors.ErrPermission, "cannot read user Path value")
	}

	for _, entry := range strings.Split(current, ";") {
		if samePathEntry(entry, dir) {
			return nil
		}
	}

	updated := dir
	if current != "" {
		updated = current + ";" + dir
	}
	if err := key.SetStringValue("Path", updated); err != nil {
		return errors.Wrap(err, errors.ErrPermission, "cannot write user Path value")
	}
	logging.GetLogger("shellpath").Info().Str("dir", dir).Msg("Added to user PATH; takes effect in new sessions")
	return nil
}

// Remove strips every occurrence of the installation directory from the
// user Path value. Used by erase.
func (in *Integrator) Remove() error {
	dir := in.paths.InstallationDir()
	key, err := registry.OpenKey(registry.CURRENT_USER, "Environment", registry.QUERY_VALUE|registry.SET_VALUE)
	if err != nil {
		return errors.Wrap(err, errors.ErrPermission, "cannot open user Environment registry key")
	}
	defer key.Close()

	current, _, err := key.GetStringValue("Path")
	if err != nil {
		if err == registry.ErrNotExist {
			return nil
		}
		return errors.Wrap(err, errors.ErrPermission, "cannot read user Path value")
	}

	var kept []string
	for _, entry := range strings.Split(current, ";") {
		if entry == "" || samePathEntry(entry, dir) {
			continue
		}
		kept = append(kept, entry)
	}
	if err := key.SetStringValue("Path", strings.Join(kept, ";")); err != nil {
		return errors.Wrap(err, errors.ErrPermission, "cannot write user Path value")
	}
	return nil
}
