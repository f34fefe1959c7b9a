package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lugondev/fixed-ratio-trading/internal/program"
)

var (
	// Version information set at build time
	Version   = "dev"
	GitCommit = "none"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the CLI build information and the version reported by the program.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "fixedratio CLI\n")
		fmt.Fprintf(out, "  Version:         %s\n", Version)
		fmt.Fprintf(out, "  Git Commit:      %s\n", GitCommit)
		fmt.Fprintf(out, "  Build Date:      %s\n", BuildDate)
		fmt.Fprintf(out, "  Program Version: %s\n", program.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
