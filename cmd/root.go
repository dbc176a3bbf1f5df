package cmd

import (
	"os"

	"github.com/bluwireless/blade/log"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "blade",
	Short: "The BLADE hardware description elaborator",
	Long: `BLADE elaborates tagged YAML hardware descriptions into a fully resolved
design: module hierarchies are expanded and wired, register maps laid out
bit-exactly, and address maps closed over, ready for downstream generators.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.PersistentFlags().BoolVarP(&log.Verbose, "verbose", "v", false, "Print debug output")
	if rootCmd.Execute() != nil {
		os.Exit(1)
	}
}
