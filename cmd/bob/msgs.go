package bob

// Short messages (one-liners)
const (
	// Command descriptions
	MsgRootShort       = "A version manager for Neovim"
	MsgUseShort        = "Switch to a version, installing it first if needed"
	MsgInstallShort    = "Install a version without switching to it"
	MsgSyncShort       = "Switch to the version pinned in the sync file"
	MsgUninstallShort  = "Uninstall an installed version"
	MsgRollbackShort   = "Roll back to a previous nightly"
	MsgEraseShort      = "Remove everything bob has ever created"
	MsgListShort       = "List installed versions"
	MsgListRemoteShort = "List versions available upstream"
	MsgRunShort        = "Run a specific installed version without switching"
	MsgUpdateShort     = "Update installed channels to their latest build"
	MsgVersionShort    = "Print version information"

	// Status messages
	MsgAlreadyActive   = "Version %s is already active\n"
	MsgSwitched        = "Now using %s\n"
	MsgInstalled       = "Installed %s\n"
	MsgAlreadyThere    = "Version %s is already installed\n"
	MsgNightlyCurrent  = "Nightly is up to date\n"
	MsgUninstalled     = "Uninstalled %s\n"
	MsgErased          = "Removed all of bob's files\n"
	MsgNothingToUpdate = "Nothing to update\n"
)
