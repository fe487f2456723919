package cmd

import (
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the complete diagnostic pass",
	Long: `Run every phase in order: bus ownership, stuck-at verification, crosstalk and
the memory suite of every selected region. TEST is released before the
command returns, whatever happened in between.

Exit status is 2 when the bus could not be acquired or released.

Examples:
  retrodiag run --adapter simulator --output report.json
  retrodiag run --adapter usb --profile myboard.board --timeout 30m`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPass(runPhases)
	},
}

var runPhases = phases{stuck: true, crosstalk: true, memory: true}

func init() {
	rootCmd.AddCommand(runCmd)
	addPassFlags(runCmd, runPhases)
}
