package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/RetroBusDiag/pkg/profile"
	"github.com/OpenTraceLab/RetroBusDiag/pkg/suite"
)

var profileListOnly bool

var profileCmd = &cobra.Command{
	Use:   "profile [name|file]",
	Short: "Show a board profile",
	Long: `Print the memory regions, chip designators and timing of a board profile.
Without an argument the profile selected with --profile (or the default
TRS-80 Model I profile) is shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProfile,
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.Flags().BoolVarP(&profileListOnly, "list", "l", false, "list builtin profiles")
}

func runProfile(cmd *cobra.Command, args []string) error {
	if profileListOnly {
		fmt.Println("Builtin profiles:")
		for _, name := range profile.Builtin() {
			fmt.Printf("  - %s\n", name)
		}
		return nil
	}

	name := profileName
	if len(args) == 1 {
		name = args[0]
	}
	p, err := profile.Load(name)
	if err != nil {
		return err
	}

	fmt.Println("╔════════════════════════════════════════════════════════════════╗")
	fmt.Printf("║ Board: %-55s ║\n", p.Name)
	fmt.Println("╚════════════════════════════════════════════════════════════════╝")
	if p.Description != "" {
		fmt.Printf("%s\n", p.Description)
	}

	fmt.Println("\nRegions:")
	for _, r := range p.Regions {
		fmt.Printf("  %s\n", r)
		printChips(r)
	}

	c := p.Diag
	fmt.Println("\nTiming:")
	fmt.Printf("  Settle delay:         %s\n", c.SettleDelay)
	fmt.Printf("  Confirm delay:        %s\n", c.ConfirmDelay)
	fmt.Printf("  Confirm loops:        %d\n", c.ConfirmLoops)
	fmt.Printf("  Stuck threshold:      %.0f%%\n", c.StuckThreshold*100)
	fmt.Printf("  Crosstalk threshold:  %.0f%%\n", c.CrosstalkThreshold*100)
	fmt.Printf("  Ownership threshold:  %.0f%%\n", c.OwnershipThreshold*100)
	fmt.Printf("  Retention:            %s x %d\n", p.Suite.RetentionDelay, p.Suite.RetentionRepeat)
	fmt.Printf("  Destructive reads:    %d\n", p.Suite.DestructiveReads)
	return nil
}

func printChips(r suite.Region) {
	for bit := 0; bit < 8; bit++ {
		if r.ICRefs[bit] == "" {
			continue
		}
		fmt.Printf("    D%d -> %s\n", bit, r.ICRefs[bit])
	}
}
