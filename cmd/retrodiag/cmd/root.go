package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/RetroBusDiag/pkg/diag"
)

var (
	// Global flags
	verbose     bool
	debug       bool
	profileName string
)

var rootCmd = &cobra.Command{
	Use:   "retrodiag",
	Short: "Bus and memory diagnostics for the TRS-80 expansion bus",
	Long: `retrodiag takes over the expansion bus of a TRS-80 through its TEST line and
checks the bus lines for stuck-at faults and crosstalk, then runs a suite of
memory tests over each RAM region and names the chip behind every failing bit.

Examples:
  retrodiag interfaces                                  # List bus adapters
  retrodiag profile                                     # Show the default board profile
  retrodiag bus --adapter simulator --sim-stuck D3=1    # Check the bus lines
  retrodiag ram --region DRAM --quick                   # Quick memory check
  retrodiag run --output report.json                    # Full diagnostic pass`,
	Version:       "0.9.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		switch {
		case debug:
			log.SetLevel(log.DebugLevel)
		case verbose:
			log.SetLevel(log.InfoLevel)
		default:
			log.SetLevel(log.WarnLevel)
		}
	},
}

// Execute runs the root command. A fatal bus ownership fault exits with
// status 2, any other error with status 1.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if diag.IsFatal(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "debug logging")
	rootCmd.PersistentFlags().StringVarP(&profileName, "profile", "p", "",
		"board profile: builtin name, file, or file:board (default trs80-model1)")
	addAdapterFlags(rootCmd)
}
