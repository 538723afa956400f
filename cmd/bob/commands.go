package bob

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bobvm/bob/pkg/errors"
	"github.com/bobvm/bob/pkg/installer"
	"github.com/bobvm/bob/pkg/paths"
	"github.com/bobvm/bob/pkg/shellpath"
	"github.com/bobvm/bob/pkg/shim"
	"github.com/bobvm/bob/pkg/switcher"
	"github.com/bobvm/bob/pkg/ui/styles"
	"github.com/bobvm/bob/pkg/versions"
)

func newUseCmd() *cobra.Command {
	var noInstall bool
	cmd := &cobra.Command{
		Use:   "use <version>",
		Short: MsgUseShort,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			rv, err := versions.Resolve(cmd.Context(), a.client, args[0])
			if err != nil {
				return err
			}

			sw := a.switcher()
			if active, err := sw.IsActive(rv); err == nil && active {
				fmt.Printf(MsgAlreadyActive, rv.Tag)
				return nil
			}

			if noInstall {
				if !dirExists(a.paths.VersionDir(installer.DirName(rv))) {
					return errors.Newf(errors.ErrNotInstalled,
						"version %s is not installed; drop --no-install or run `bob install %s`", rv.Raw, rv.Raw)
				}
			} else if _, err := a.installer().Install(cmd.Context(), rv); err != nil {
				return err
			}

			if err := sw.Switch(cmd.Context(), rv); err != nil {
				return err
			}
			fmt.Printf(MsgSwitched, rv.Tag)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noInstall, "no-install", false, "Fail instead of installing a missing version")
	return cmd
}

func newInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install <version>",
		Short: MsgInstallShort,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			rv, err := versions.Resolve(cmd.Context(), a.client, args[0])
			if err != nil {
				return err
			}
			outcome, err := a.installer().Install(cmd.Context(), rv)
			if err != nil {
				return err
			}
			printOutcome(outcome, rv.Tag)
			return nil
		},
	}
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: MsgSyncShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if a.cfg.VersionSyncFileLocation == "" {
				return errors.New(errors.ErrConfigLoad,
					"no sync file configured; set version_sync_file_location in the config to use sync")
			}
			pinned, err := readSyncFile(a.cfg.VersionSyncFileLocation)
			if err != nil {
				return err
			}
			rv, err := versions.Resolve(cmd.Context(), a.client, pinned)
			if err != nil {
				return err
			}
			if _, err := a.installer().Install(cmd.Context(), rv); err != nil {
				return err
			}
			if err := a.switcher().Switch(cmd.Context(), rv); err != nil {
				return err
			}
			fmt.Printf(MsgSwitched, rv.Tag)
			return nil
		},
	}
}

func newUninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "uninstall <version>",
		Aliases: []string{"rm"},
		Short:   MsgUninstallShort,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			rv, err := versions.Resolve(cmd.Context(), a.client, args[0])
			if err != nil {
				return err
			}

			dir := a.paths.VersionDir(installer.DirName(rv))
			if !dirExists(dir) {
				return errors.Newf(errors.ErrNotInstalled, "version %s is not installed", rv.Raw)
			}
			if active, err := a.switcher().IsActive(rv); err != nil {
				return err
			} else if active {
				return errors.Newf(errors.ErrVersionActive,
					"version %s is active; switch to another version before uninstalling it", rv.Raw)
			}
			if err := os.RemoveAll(dir); err != nil {
				return errors.Wrapf(err, errors.ErrPermission, "cannot remove %s", dir)
			}
			fmt.Printf(MsgUninstalled, rv.Tag)
			return nil
		},
	}
}

func newRollbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback",
		Short: MsgRollbackShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			entry, err := a.ring().Pick()
			if err != nil {
				return err
			}
			rv := &versions.ResolvedVersion{Tag: entry.Tag, Kind: versions.NightlyRollback, Raw: entry.Tag}
			if err := a.switcher().Switch(cmd.Context(), rv); err != nil {
				return err
			}
			fmt.Printf(MsgSwitched, entry.Tag)
			return nil
		},
	}
}

func newEraseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "erase",
		Short: MsgEraseShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := shellpath.New(a.cfg, a.paths).Remove(); err != nil {
				return err
			}
			// The shim dir may live outside the downloads root.
			if err := os.RemoveAll(a.paths.InstallationDir()); err != nil {
				return errors.Wrap(err, errors.ErrPermission, "cannot remove installation directory")
			}
			if err := os.RemoveAll(a.paths.DownloadsRoot()); err != nil {
				return errors.Wrap(err, errors.ErrPermission, "cannot remove downloads root")
			}
			fmt.Print(MsgErased)
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   MsgListShort,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			installed, err := installedVersions(a.paths)
			if err != nil {
				return err
			}
			if len(installed) == 0 {
				fmt.Println("No versions installed")
				return nil
			}

			active, _ := switcher.ActivePayload(a.paths)
			activeStyle := styles.GetStyle("Active")
			versionStyle := styles.GetStyle("Version")
			for _, name := range installed {
				if isActiveDir(name, active) {
					fmt.Printf("%s (active)\n", activeStyle.Render(name))
				} else {
					fmt.Println(versionStyle.Render(name))
				}
			}
			return nil
		},
	}
}

func newListRemoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-remote",
		Short: MsgListRemoteShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			releases, err := a.client.Releases(cmd.Context(), 30)
			if err != nil {
				return err
			}
			dim := styles.GetStyle("Dim")
			for _, release := range releases {
				if dirExists(a.paths.VersionDir(release.TagName)) {
					fmt.Printf("%s %s\n", release.TagName, dim.Render("(installed)"))
				} else {
					fmt.Println(release.TagName)
				}
			}
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <version> -- <args...>",
		Short: MsgRunShort,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			rv, err := versions.Resolve(cmd.Context(), a.client, args[0])
			if err != nil {
				return err
			}
			payload, err := a.switcher().Payload(rv)
			if err != nil {
				return err
			}
			binary, err := shim.BinaryFor(a.paths, payload)
			if err != nil {
				return err
			}
			return shim.Exec(binary, args[1:])
		},
	}
}

func newUpdateCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "update [--all | <version>]",
		Short: MsgUpdateShort,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if !all && len(args) == 0 {
				return errors.New(errors.ErrInvalidInput, "update needs a version or --all")
			}

			targets := args
			if all {
				if dirExists(a.paths.VersionDir("nightly")) {
					targets = append(targets, "nightly")
				}
				targets = append(targets, "stable")
			}
			if len(targets) == 0 {
				fmt.Print(MsgNothingToUpdate)
				return nil
			}

			updated := false
			for _, target := range targets {
				rv, err := versions.Resolve(cmd.Context(), a.client, target)
				if err != nil {
					return err
				}
				outcome, err := a.installer().Install(cmd.Context(), rv)
				if err != nil {
					return err
				}
				if outcome == installer.Installed {
					fmt.Printf(MsgInstalled, rv.Tag)
					updated = true
				}
			}
			if !updated {
				fmt.Print(MsgNothingToUpdate)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Update every installed channel")
	return cmd
}

func printOutcome(outcome installer.Outcome, tag string) {
	switch outcome {
	case installer.Installed:
		fmt.Printf(MsgInstalled, tag)
	case installer.AlreadyInstalled:
		fmt.Printf(MsgAlreadyThere, tag)
	case installer.NightlyUpToDate:
		fmt.Print(MsgNightlyCurrent)
	}
}

// installedVersions lists version directories in the downloads root,
// skipping bob's own bookkeeping directories.
func installedVersions(p paths.Paths) ([]string, error) {
	entries, err := os.ReadDir(p.DownloadsRoot())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.ErrNotFound, "cannot read downloads root")
	}
	skip := map[string]bool{
		paths.ShimDirName:  true,
		paths.BuildDirName: true,
		paths.EnvDirName:   true,
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() && !skip[entry.Name()] {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// isActiveDir matches a directory name against the used payload; hash
// payloads are stored in full but install under their 7-char prefix.
func isActiveDir(name, active string) bool {
	if active == "" {
		return false
	}
	if name == active {
		return true
	}
	return shim.IsHexHash(active) && len(active) > 7 && name == active[:7]
}

func readSyncFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrFileNotFound, "cannot read sync file %s", path)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed, nil
		}
	}
	return "", errors.Newf(errors.ErrInvalidInput, "sync file %s is empty", path)
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
