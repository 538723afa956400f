// Package shellpath makes the shim directory reachable via PATH,
// idempotently and without clobbering what the user already has.
//
// On POSIX it writes generated env scripts into <root>/env and hooks
// them into the login shell's rc files; on Windows it edits the user
// Environment registry key.
package shellpath

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"

	"github.com/bobvm/bob/pkg/config"
	"github.com/bobvm/bob/pkg/logging"
	"github.com/bobvm/bob/pkg/paths"
)

// promptTimeout bounds the interactive PATH prompt.
const promptTimeout = 120 * time.Second

// Integrator implements switcher.PathIntegrator.
type Integrator struct {
	cfg   *config.Config
	paths paths.Paths
}

// New creates an Integrator.
func New(cfg *config.Config, p paths.Paths) *Integrator {
	return &Integrator{cfg: cfg, paths: p}
}

// Ensure makes the installation directory reachable via PATH according
// to config and, where needed, an interactive prompt. Decisions are
// persisted so the user is asked at most once.
func (in *Integrator) Ensure(ctx context.Context) error {
	logger := logging.GetLogger("shellpath")
	dir := in.paths.InstallationDir()

	if OnPath(dir) {
		logger.Debug().Str("dir", dir).Msg("Installation directory already on PATH")
		return nil
	}

	switch {
	case in.cfg.AddNeovimBinaryToPath != nil && !*in.cfg.AddNeovimBinaryToPath:
		fmt.Printf("Add %q to your PATH to use the installed editor.\n", dir)
		return nil
	case in.cfg.AddNeovimBinaryToPath != nil:
		// explicit yes, no prompt
	case !isatty.IsTerminal(os.Stdin.Fd()):
		// Non-interactive with the option unset: assume yes and record it.
		in.persistDecision(true)
	default:
		ok := in.prompt()
		in.persistDecision(ok)
		if !ok {
			return nil
		}
	}

	return in.integrate(dir)
}

// prompt asks the user, giving up after the timeout as if they said no.
func (in *Integrator) prompt() bool {
	result := make(chan bool, 1)
	go func() {
		ok, _ := pterm.DefaultInteractiveConfirm.
			WithDefaultText(fmt.Sprintf("Add %q to your PATH?", in.paths.InstallationDir())).
			Show()
		result <- ok
	}()

	select {
	case ok := <-result:
		return ok
	case <-time.After(promptTimeout):
		pterm.Warning.Println("No answer within two minutes, leaving PATH unchanged.")
		return false
	}
}

func (in *Integrator) persistDecision(add bool) {
	in.cfg.AddNeovimBinaryToPath = &add
	if err := in.cfg.Save(); err != nil {
		logger := logging.GetLogger("shellpath")
		logger.Warn().Err(err).Msg("Could not persist PATH decision")
	}
}

// OnPath reports whether dir is already resolvable via PATH.
func OnPath(dir string) bool {
	for _, entry := range filepath.SplitList(os.Getenv("PATH")) {
		if samePathEntry(entry, dir) {
			return true
		}
	}
	return false
}

func normalizeEntry(entry string) string {
	entry = strings.TrimSpace(entry)
	entry = strings.Trim(entry, `"`)
	return filepath.Clean(entry)
}
