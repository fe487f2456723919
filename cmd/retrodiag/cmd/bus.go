package cmd

import (
	"github.com/spf13/cobra"
)

var busCmd = &cobra.Command{
	Use:   "bus",
	Short: "Check the bus lines for stuck-at faults and crosstalk",
	Long: `Take the bus through TEST, check every data, address and control line for
stuck-at faults, then drive each line in turn and look for crosstalk.

The algorithm:
  1. Confirm TEST is free, assert it and confirm the host let go of the bus
  2. Drive the data and address buses low, then high, and read them back
  3. Exercise every control signal the controller is allowed to drive
  4. Drive each line against its idle level and watch every other line
  5. Release TEST

Examples:
  retrodiag bus --adapter simulator --sim-stuck D3=1
  retrodiag bus --adapter simulator --sim-short A4:D2 --output bus.json
  retrodiag bus --adapter usb --no-crosstalk`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPass(busPhases)
	},
}

var busPhases = phases{stuck: true, crosstalk: true}

func init() {
	rootCmd.AddCommand(busCmd)
	addPassFlags(busCmd, busPhases)
}
