package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kliiq/kliiq/internal/upgrade"
	"github.com/kliiq/kliiq/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print kliiq version",
	Run: func(cmd *cobra.Command, args []string) {
		info := version.Info()
		fmt.Fprintf(cmd.OutOrStdout(), "kliiq %s\n", info["version"])
		fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n  built:  %s\n  go:     %s\n",
			info["git_commit"], info["build_time"], info["go_version"])
	},
}

var upgradeForce bool

var upgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Upgrade kliiq to the latest release",
	RunE: func(cmd *cobra.Command, args []string) error {
		return upgrade.NewChecker("").Run(cmd.Context(), cmd.OutOrStdout(), "kliiq", upgradeForce)
	},
}

func init() {
	upgradeCmd.Flags().BoolVarP(&upgradeForce, "force", "f", false, "reinstall even when up to date")
	rootCmd.AddCommand(versionCmd, upgradeCmd)
}
