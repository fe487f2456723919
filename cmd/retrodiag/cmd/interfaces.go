package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/RetroBusDiag/pkg/probe"
)

var interfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "List available bus adapters",
	Long: `Scan the host for bus controllers on USB and print a summary of the detected
adapters. The simulator and loopback adapters are always listed.`,
	RunE: runInterfaces,
}

func init() {
	rootCmd.AddCommand(interfacesCmd)
}

func runInterfaces(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	infos, err := probe.DiscoverInterfaces(ctx)
	if err != nil {
		return fmt.Errorf("discover interfaces: %w", err)
	}

	fmt.Println("Detected bus adapters:")
	for _, iface := range infos {
		fmt.Printf("  - %s [%s]\n", iface.Label(), iface.Kind)
	}
	return nil
}
