package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// versionCmd prints the build version, matching the root --version flag.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), getVersionString())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
