package keeper

import (
	"github.com/spf13/cobra"

	"github.com/seaneb/seaneb-auth/internal/business"
	"github.com/seaneb/seaneb-auth/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"keeper",
		"SeaNeB Auth session keeper",
		"SeaNeB Auth session keeper renews access tokens before they expire and clears sessions whose window has ended.",
		buildInfo,
		cmdutils.RunAsService,
		business.KeeperMain,
	)
}
