package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/RetroBusDiag/pkg/diag"
	"github.com/OpenTraceLab/RetroBusDiag/pkg/profile"
	"github.com/OpenTraceLab/RetroBusDiag/pkg/session"
	"github.com/OpenTraceLab/RetroBusDiag/pkg/suite"
)

var (
	// Flags shared by bus, ram and run
	passRegions     []string
	passOutput      string
	passTimeout     time.Duration
	passHaltOnFatal bool
	passQuick       bool
	passNoCrosstalk bool
	passNoProgress  bool
)

// phases selects what a command runs inside the activation gate.
type phases struct {
	stuck     bool
	crosstalk bool
	memory    bool
}

func addPassFlags(c *cobra.Command, p phases) {
	f := c.Flags()
	f.StringVarP(&passOutput, "output", "o", "", "write the JSON report to this file")
	f.DurationVar(&passTimeout, "timeout", 0, "abort after this long (0 = no timeout)")
	f.BoolVar(&passHaltOnFatal, "halt-on-fatal", false,
		"on a bus ownership fault, stop and wait for Ctrl-C instead of exiting")
	f.BoolVar(&passNoProgress, "no-progress", false, "do not draw progress")
	if p.crosstalk {
		f.BoolVar(&passNoCrosstalk, "no-crosstalk", false, "skip the crosstalk scan")
	}
	if p.memory {
		f.StringSliceVarP(&passRegions, "region", "r", nil,
			"memory regions to test (default: every region of the profile)")
		f.BoolVarP(&passQuick, "quick", "q", false, "run the short memory sequence")
	}
}

// runPass loads the profile, opens the adapter and runs one diagnostic pass.
func runPass(p phases) error {
	startTime := time.Now()

	prof, err := profile.Load(profileName)
	if err != nil {
		return err
	}
	if verbose {
		fmt.Printf("Board profile: %s\n", prof.Name)
	}

	plan := session.Plan{
		Stuck:     p.stuck,
		Crosstalk: p.crosstalk && !passNoCrosstalk,
	}
	if p.memory {
		regions, err := selectRegions(prof, passRegions)
		if err != nil {
			return err
		}
		plan.Regions = regions
		if passQuick {
			plan.Steps = suite.QuickSequence()
		} else {
			plan.Steps = suite.DefaultSequence(prof.Suite)
		}
	}

	adapter, closeAdapter, err := createAdapter()
	if err != nil {
		return fmt.Errorf("failed to create adapter: %w", err)
	}
	defer closeAdapter()

	cfg := *prof.Diag
	dc := diag.NewContext(adapter, &cfg)
	dc.Log = log.StandardLogger()
	if adapterType != "usb" {
		// The simulated bus settles instantly.
		dc.Sleep = func(time.Duration) {}
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx := sigCtx
	if passTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(sigCtx, passTimeout)
		defer cancel()
	}

	progressCh := make(chan diag.Progress, 16)
	done := make(chan struct{})
	go func() {
		displayProgress(progressCh, !passNoProgress)
		close(done)
	}()

	rep, runErr := session.Run(ctx, dc, plan, progressCh)
	close(progressCh)
	<-done

	fmt.Println()
	printReport(rep, time.Since(startTime))

	if passOutput != "" {
		if err := writeReport(rep, passOutput); err != nil {
			return err
		}
		fmt.Printf("\n✓ JSON report saved to: %s\n", passOutput)
	}

	if runErr != nil && diag.IsFatal(runErr) && passHaltOnFatal {
		fmt.Println("\nHalted after a bus ownership fault. Press Ctrl-C to exit.")
		diag.Halt(sigCtx)
	}
	return runErr
}

// selectRegions resolves region names against the profile.
func selectRegions(prof *profile.Profile, names []string) ([]suite.Region, error) {
	if len(names) == 0 {
		if len(prof.Regions) == 0 {
			return nil, fmt.Errorf("profile %q declares no memory region", prof.Name)
		}
		return prof.Regions, nil
	}
	var out []suite.Region
	for _, name := range names {
		r, ok := prof.Region(name)
		if !ok {
			return nil, fmt.Errorf("profile %q has no region %q", prof.Name, name)
		}
		out = append(out, r)
	}
	return out, nil
}

// writeReport saves the report as JSON.
func writeReport(rep *session.Report, path string) error {
	data, err := rep.ExportJSON()
	if err != nil {
		return fmt.Errorf("failed to export JSON: %w", err)
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write JSON file: %w", err)
	}
	return nil
}
