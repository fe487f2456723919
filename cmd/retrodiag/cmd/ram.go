package cmd

import (
	"github.com/spf13/cobra"
)

var ramCmd = &cobra.Command{
	Use:   "ram",
	Short: "Run the memory test suite",
	Long: `Take the bus through TEST and run the memory test sequence over the regions of
the board profile. Errors are counted per data bit and attributed to the chip
that holds the bit.

The default sequence runs 19 tests: repeated write/read, checkerboards,
walking ones and zeros, March C-, March SS, March LA, moving inversion,
retention, read-destructive and address uniqueness. --quick runs four.

Examples:
  retrodiag ram --region DRAM
  retrodiag ram --quick --adapter simulator --sim-mem-stuck 5=0
  retrodiag ram --profile trs80-model1-4k --output ram.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPass(ramPhases)
	},
}

var ramPhases = phases{memory: true}

func init() {
	rootCmd.AddCommand(ramCmd)
	addPassFlags(ramCmd, ramPhases)
}
