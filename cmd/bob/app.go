package bob

import (
	"github.com/bobvm/bob/pkg/config"
	"github.com/bobvm/bob/pkg/github"
	"github.com/bobvm/bob/pkg/installer"
	"github.com/bobvm/bob/pkg/paths"
	"github.com/bobvm/bob/pkg/rollback"
	"github.com/bobvm/bob/pkg/shellpath"
	"github.com/bobvm/bob/pkg/switcher"
)

// app bundles the per-invocation wiring. Paths and config are
// recomputed on every run; nothing is cached process-wide.
type app struct {
	cfg    *config.Config
	paths  paths.Paths
	client *github.Client
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	p, err := cfg.Paths()
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:    cfg,
		paths:  p,
		client: github.NewClient(),
	}, nil
}

func (a *app) installer() *installer.Installer {
	return installer.New(a.cfg, a.paths, a.client)
}

func (a *app) switcher() *switcher.Switcher {
	return switcher.New(a.cfg, a.paths, shellpath.New(a.cfg, a.paths))
}

func (a *app) ring() *rollback.Ring {
	return rollback.New(a.paths, a.cfg.RollbackRingSize())
}
