package cmd

import (
	"fmt"
	"time"

	"github.com/OpenTraceLab/RetroBusDiag/pkg/bus"
	"github.com/OpenTraceLab/RetroBusDiag/pkg/diag"
	"github.com/OpenTraceLab/RetroBusDiag/pkg/session"
	"github.com/OpenTraceLab/RetroBusDiag/pkg/suite"
)

// printReport displays a summary of a diagnostic pass.
func printReport(rep *session.Report, elapsed time.Duration) {
	fmt.Println("╔════════════════════════════════════════════════════════════════╗")
	fmt.Println("║ Diagnostic Summary                                             ║")
	fmt.Println("╚════════════════════════════════════════════════════════════════╝")
	fmt.Println()

	if rep.Fatal != nil {
		fmt.Printf("✗ FATAL: %s\n\n", rep.Fatal)
	}

	if rep.Data != nil || rep.Address != nil || rep.Control != nil {
		fmt.Println("Stuck-at faults:")
		for _, rec := range []*diag.FaultRecord{rep.Data, rep.Address, rep.Control} {
			if rec != nil {
				printFaultRecord(rec)
			}
		}
		fmt.Println()
	}

	if rep.Crosstalk != nil {
		printCrosstalk(rep.Crosstalk, rep.Groups)
		fmt.Println()
	}

	for _, res := range rep.Suites {
		printSuite(res)
		fmt.Println()
	}

	fmt.Println("Phases:")
	for _, ph := range rep.Phases {
		status := "ok"
		if ph.Failed {
			status = "FAILED"
		}
		fmt.Printf("  %-20s %10s  %s\n", ph.Name, ph.Duration.Round(time.Millisecond), status)
	}
	fmt.Printf("\nTime elapsed:          %s\n", elapsed.Round(time.Millisecond))

	if rep.HasIssues() {
		fmt.Println("Result:                ISSUES FOUND")
	} else {
		fmt.Println("Result:                PASS")
	}
}

func printFaultRecord(rec *diag.FaultRecord) {
	label := fmt.Sprintf("%s bus:", rec.Bus)
	if !rec.HasIssues() {
		fmt.Printf("  %-14s OK\n", label)
		return
	}
	high, low := rec.Lines()
	fmt.Printf("  %-14s stuck high: %s  stuck low: %s\n", label, high, low)
}

func printCrosstalk(xt *diag.CrosstalkResult, groups []bus.Mask) {
	fmt.Printf("Crosstalk (%d lines scanned):\n", xt.Scanned)
	if !xt.HasIssues() {
		fmt.Println("  none detected")
		return
	}
	for _, c := range xt.Couplings {
		fmt.Printf("  • %s -> %s (%.0f%%)\n", c.SourceName, c.Destination, c.Ratio*100)
	}
	if len(groups) > 0 {
		fmt.Println("  Coupled line groups:")
		for _, g := range groups {
			fmt.Printf("    %s\n", g)
		}
	}
}

func printSuite(res *suite.Result) {
	fmt.Printf("Memory %s:\n", res.Region)
	for _, run := range res.Runs {
		status := "ok"
		if run.Result.HasIssues() {
			status = fmt.Sprintf("%d errors", run.Result.TotalErrors)
		}
		fmt.Printf("  %-28s %s\n", run.Name, status)
	}

	if !res.HasIssues() {
		fmt.Println("  All chips OK")
		return
	}
	fmt.Printf("  Failing cells: %d\n", res.FailingCells())
	if off, ok := res.FirstFailingCell(); ok {
		fmt.Printf("  First failing address: 0x%04X\n", uint32(res.Region.Start)+off)
	}
	if run, ok := res.FirstFailure(); ok {
		fmt.Printf("  First failing test: %s\n", run.Name)
	}
	fmt.Println("  Suspect chips:")
	for _, c := range res.Chips() {
		if c.Errors == 0 {
			continue
		}
		fmt.Printf("    • %s (D%d): %d errors\n", c.Ref, c.Bit, c.Errors)
	}
}
