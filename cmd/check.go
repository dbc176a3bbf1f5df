package cmd

import (
	"os"

	"github.com/bluwireless/blade/checker"
	"github.com/bluwireless/blade/log"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] <schema files or directories>",
	Args:  cobra.MinimumNArgs(1),
	Short: "Elaborates a design and runs the rule checks on it",
	Long: `Elaborates the named top declaration like 'blade elaborate' and runs the
design rule checks on the result, without writing the project to disk.`,
	Run: runCheck,
}

func init() {
	checkCmd.Flags().StringVarP(&elaborateTop, "top", "t", "", "Name of the top declaration to elaborate")
	checkCmd.Flags().StringArrayVarP(&elaborateIncludes, "include", "I", nil, "Additional directories searched for schema files")
	checkCmd.Flags().IntVarP(&elaborateDepth, "depth", "d", 0, "Maximum hierarchy depth to elaborate (0: unlimited)")
	checkCmd.Flags().BoolVar(&elaborateStrict, "strict", false, "Treat field layout warnings as errors")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) {
	project, err := elaborateProject(args)
	if err != nil {
		log.Fatal("%s\n", err)
	}

	violations := checker.Run(project)
	if len(violations) > 0 {
		log.Fatal("%d rule violations detected\n", len(violations))
	}
	log.Success("All checks passed\n")
	if log.ErrorOccured() {
		os.Exit(1)
	}
}
