package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "slidewizard",
	Short:         "Slide Wizard server: template placeholder configuration and batch generation",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the XML config file (default: SlideWizard.config next to the binary)")
	rootCmd.AddCommand(serveCmd, settingsCmd, versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "slidewizard %s (built %s)\n", Version, BuildTime)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
