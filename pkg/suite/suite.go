// Package suite sequences the memory-test algorithms over a region and maps
// the aggregated per-bit error counts to chip designators.
package suite

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/OpenTraceLab/RetroBusDiag/pkg/diag"
	"github.com/OpenTraceLab/RetroBusDiag/pkg/memtest"
)

// Run is the outcome of one step.
type Run struct {
	Kind     Kind           `json:"kind"`
	Name     string         `json:"name"`
	Result   memtest.Result `json:"result"`
	Duration time.Duration  `json:"duration_ns"`
}

// Result is the outcome of a suite over one region. The embedded
// memtest.Result holds the totals folded across every run.
type Result struct {
	Region Region `json:"region"`
	Runs   []Run  `json:"runs"`
	memtest.Result
}

// ChipStatus is the error count attributed to one chip.
type ChipStatus struct {
	Bit    int    `json:"bit"`
	Ref    string `json:"ref"`
	Errors uint32 `json:"errors"`
}

// Chips maps the aggregated per-bit totals to the region's chip designators.
func (r *Result) Chips() []ChipStatus {
	out := make([]ChipStatus, len(r.BitErrors))
	for b, n := range r.BitErrors {
		out[b] = ChipStatus{Bit: b, Ref: r.Region.Chip(b), Errors: n}
	}
	return out
}

// FailingChips lists the designators of chips with at least one error, in
// bit order.
func (r *Result) FailingChips() []string {
	var out []string
	for _, c := range r.Chips() {
		if c.Errors != 0 {
			out = append(out, c.Ref)
		}
	}
	return out
}

// FirstFailure returns the first run that recorded errors.
func (r *Result) FirstFailure() (Run, bool) {
	for _, run := range r.Runs {
		if run.Result.HasIssues() {
			return run, true
		}
	}
	return Run{}, false
}

// RunSuite executes steps over region, one whole algorithm at a time. A nil
// steps selects DefaultSequence(DefaultOptions()).
//
// Cancellation and adapter errors are checked between steps only; the result
// of the completed steps is returned along with the error.
func RunSuite(
	ctx context.Context,
	dc *diag.Context,
	region Region,
	steps []Step,
	progress chan<- diag.Progress,
) (*Result, error) {
	if err := region.Validate(); err != nil {
		return nil, err
	}
	if steps == nil {
		steps = DefaultSequence(DefaultOptions())
	}

	tester := memtest.New(dc.Adapter)
	tester.Sleep = dc.Sleep
	log := dc.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("region", region.String())

	res := &Result{Region: region, Runs: make([]Run, 0, len(steps))}
	diag.Report(progress, diag.Progress{Phase: "suite", Item: region.Name, Total: len(steps)})

	for i, step := range steps {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}

		diag.Report(progress, diag.Progress{
			Phase:   "suite",
			Item:    step.Name(),
			Index:   i,
			Total:   len(steps),
			Percent: diag.Percent(i, len(steps)),
		})

		began := time.Now()
		r := step.Run(tester, region)
		run := Run{Kind: step.Kind, Name: step.Name(), Result: r, Duration: time.Since(began)}
		res.Runs = append(res.Runs, run)
		res.Add(r)

		entry := log.WithFields(logrus.Fields{
			"step":   run.Name,
			"errors": r.TotalErrors,
		})
		if r.HasIssues() {
			entry.WithField("bits", fmt.Sprintf("%08b", r.FailingBits())).Info("step failed")
		} else {
			entry.Debug("step passed")
		}

		if err := dc.Adapter.Err(); err != nil {
			return res, fmt.Errorf("suite: %s: %w", run.Name, err)
		}
	}

	diag.Report(progress, diag.Progress{
		Phase:   "suite",
		Item:    region.Name,
		Index:   len(steps),
		Total:   len(steps),
		Percent: 100,
	})
	return res, nil
}
