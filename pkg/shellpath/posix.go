//go:build !windows

package shellpath

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"

	"github.com/bobvm/bob/pkg/errors"
	"github.com/bobvm/bob/pkg/logging"
)

func samePathEntry(entry, dir string) bool {
	return normalizeEntry(entry) == filepath.Clean(dir)
}

// integrate writes the env scripts and hooks the login shell's rc
// files up to source them. Appends happen only when no equivalent line
// is present already.
func (in *Integrator) integrate(dir string) error {
	logger := logging.GetLogger("shellpath")

	if err := in.writeEnvScripts(dir); err != nil {
		return err
	}

	shell := filepath.Base(os.Getenv("SHELL"))
	if shell == "fish" {
		return in.hookFish()
	}

	sourceLine := fmt.Sprintf(`. "%s"`, in.paths.EnvShPath())
	for _, rc := range rcFiles(shell) {
		changed, err := appendOnce(rc, sourceLine)
		if err != nil {
			return err
		}
		if changed {
			logger.Info().Str("file", rc).Msg("Hooked env script into shell rc")
		}
	}
	fmt.Println("PATH updated; restart your shell or source the new env file to pick it up.")
	return nil
}

// writeEnvScripts generates env.sh and env.fish under <root>/env.
func (in *Integrator) writeEnvScripts(dir string) error {
	if err := os.MkdirAll(in.paths.EnvDir(), 0o755); err != nil {
		return errors.Wrap(err, errors.ErrDirCreate, "cannot create env directory")
	}

	sh := fmt.Sprintf(`# Generated by bob. Do not edit.
case ":${PATH}:" in
    *:"%s":*) ;;
    *) export PATH="%s:$PATH" ;;
esac
`, dir, dir)
	if err := os.WriteFile(in.paths.EnvShPath(), []byte(sh), 0o644); err != nil {
		return errors.Wrap(err, errors.ErrFileWrite, "cannot write env.sh")
	}

	fish := fmt.Sprintf(`# Generated by bob. Do not edit.
if not contains "%s" $PATH
    set -gx PATH "%s" $PATH
end
`, dir, dir)
	if err := os.WriteFile(in.paths.EnvFishPath(), []byte(fish), 0o644); err != nil {
		return errors.Wrap(err, errors.ErrFileWrite, "cannot write env.fish")
	}
	return nil
}

func fishHookPath() string {
	return filepath.Join(xdg.ConfigHome, "fish", "conf.d", "bob.fish")
}

// hookFish drops a conf.d snippet sourcing env.fish, only if absent.
func (in *Integrator) hookFish() error {
	hook := fishHookPath()
	if err := os.MkdirAll(filepath.Dir(hook), 0o755); err != nil {
		return errors.Wrap(err, errors.ErrDirCreate, "cannot create fish conf.d")
	}
	if _, err := os.Stat(hook); err == nil {
		return nil
	}
	content := fmt.Sprintf("source \"%s\"\n", in.paths.EnvFishPath())
	if err := os.WriteFile(hook, []byte(content), 0o644); err != nil {
		return errors.Wrap(err, errors.ErrFileWrite, "cannot write fish hook")
	}
	logger := logging.GetLogger("shellpath")
	logger.Info().Str("file", hook).Msg("Installed fish hook")
	return nil
}

// rcFiles lists the rc files a given shell reads on login.
func rcFiles(shell string) []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	switch shell {
	case "bash":
		return existingOrFirst(
			filepath.Join(home, ".bashrc"),
			filepath.Join(home, ".bash_profile"),
		)
	case "zsh":
		zdot := os.Getenv("ZDOTDIR")
		if zdot == "" {
			zdot = home
		}
		return []string{filepath.Join(zdot, ".zshrc")}
	default:
		return []string{filepath.Join(home, ".profile")}
	}
}

// existingOrFirst returns the candidates that exist, or the first one
// so at least one file gets the hook.
func existingOrFirst(candidates ...string) []string {
	var out []string
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			out = append(out, c)
		}
	}
	if len(out) == 0 && len(candidates) > 0 {
		out = candidates[:1]
	}
	return out
}

// appendOnce appends line to path unless an equivalent line exists.
func appendOnce(path, line string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return false, errors.Wrapf(err, errors.ErrFileNotFound, "cannot read %s", path)
	}
	for _, existing := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(existing) == line {
			return false, nil
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return false, errors.Wrapf(err, errors.ErrFileWrite, "cannot open %s", path)
	}
	defer f.Close()

	prefix := "\n"
	if len(data) == 0 || strings.HasSuffix(string(data), "\n") {
		prefix = ""
	}
	if _, err := f.WriteString(prefix + line + "\n"); err != nil {
		return false, errors.Wrapf(err, errors.ErrFileWrite, "cannot append to %s", path)
	}
	return true, nil
}

// Remove undoes the shell integration: the fish hook and any rc lines
// sourcing the env script. The env scripts themselves live under the
// downloads root and are deleted with it, so a stale hook would break
// every subsequent shell startup.
func (in *Integrator) Remove() error {
	if err := os.Remove(fishHookPath()); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, errors.ErrPermission, "cannot remove fish hook")
	}

	sourceLine := fmt.Sprintf(`. "%s"`, in.paths.EnvShPath())
	seen := map[string]bool{}
	for _, shell := range []string{"bash", "zsh", "sh"} {
		for _, rc := range rcFiles(shell) {
			if seen[rc] {
				continue
			}
			seen[rc] = true
			if err := removeLine(rc, sourceLine); err != nil {
				return err
			}
		}
	}
	return nil
}

// removeLine strips every line equal to line from path, if present.
func removeLine(path, line string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, errors.ErrFileNotFound, "cannot read %s", path)
	}

	var kept []string
	changed := false
	for _, existing := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(existing) == line {
			changed = true
			continue
		}
		kept = append(kept, existing)
	}
	if !changed {
		return nil
	}
	if err := os.WriteFile(path, []byte(strings.Join(kept, "\n")), 0o644); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "cannot rewrite %s", path)
	}
	return nil
}
