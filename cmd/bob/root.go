package bob

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bobvm/bob/internal/version"
	"github.com/bobvm/bob/pkg/logging"
)

var verbosity int

// NewRootCmd builds the bob command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bob",
		Short: MsgRootShort,
		Long: `bob installs, switches and removes Neovim versions: tagged releases,
the latest stable, the rolling nightly, or any commit built from source.
A shim on your PATH always launches whichever version is active.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupLogger(verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")

	rootCmd.AddCommand(
		newUseCmd(),
		newInstallCmd(),
		newSyncCmd(),
		newUninstallCmd(),
		newRollbackCmd(),
		newEraseCmd(),
		newListCmd(),
		newListRemoteCmd(),
		newRunCmd(),
		newUpdateCmd(),
		versionCmd(),
	)
	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: MsgVersionShort,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("bob version %s\n", version.Version)
			fmt.Printf("  commit: %s\n", version.Commit)
			fmt.Printf("  built:  %s\n", version.Date)
		},
	}
}
