// Package session runs a complete diagnostic pass: bus ownership, stuck-at
// verification, crosstalk and the memory suite of every region, with TEST
// released on every exit path once it has been acquired.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OpenTraceLab/RetroBusDiag/pkg/diag"
	"github.com/OpenTraceLab/RetroBusDiag/pkg/suite"
)

// Plan selects the phases of a pass.
type Plan struct {
	Stuck     bool
	Crosstalk bool
	Regions   []suite.Region
	Steps     []suite.Step // nil selects the default 19-call sequence
}

// FullPlan runs every phase over the given regions.
func FullPlan(regions ...suite.Region) Plan {
	return Plan{Stuck: true, Crosstalk: true, Regions: regions}
}

// Run executes the plan. The activation protocol always runs first; if it
// fails nothing else touches the bus and the returned error satisfies
// diag.IsFatal. The report is returned even when err is non-nil.
func Run(ctx context.Context, dc *diag.Context, plan Plan, progress chan<- diag.Progress) (rep *Report, err error) {
	rep = &Report{Started: time.Now()}
	defer func() { rep.Finished = time.Now() }()

	if err := ctx.Err(); err != nil {
		return rep, err
	}

	if err := rep.phase("acquire", func() error { return diag.Acquire(dc) }); err != nil {
		rep.noteFatal(err)
		return rep, err
	}

	defer func() {
		relErr := rep.phase("release", func() error { return diag.Release(dc) })
		if relErr != nil {
			rep.noteFatal(relErr)
			err = errors.Join(err, relErr)
		}
	}()

	if plan.Stuck {
		if err := rep.phase("stuck", func() error { return runStuck(dc, rep, progress) }); err != nil {
			return rep, err
		}
	}

	if plan.Crosstalk {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		err := rep.phase("crosstalk", func() error {
			xt, err := diag.DetectCrosstalk(ctx, dc, progress)
			rep.Crosstalk = xt
			rep.Groups = diag.CouplingGroups(xt)
			return err
		})
		if err != nil {
			return rep, err
		}
	}

	for _, region := range plan.Regions {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		err := rep.phase("suite "+region.Name, func() error {
			res, err := suite.RunSuite(ctx, dc, region, plan.Steps, progress)
			if res != nil {
				rep.Suites = append(rep.Suites, res)
			}
			return err
		})
		if err != nil {
			return rep, err
		}
	}

	return rep, nil
}

// runStuck verifies the three buses, polling the adapter for transport errors
// between them.
func runStuck(dc *diag.Context, rep *Report, progress chan<- diag.Progress) error {
	steps := []struct {
		name string
		run  func(*diag.Context) diag.FaultRecord
		dst  **diag.FaultRecord
	}{
		{"data", diag.VerifyDataBus, &rep.Data},
		{"address", diag.VerifyAddressBus, &rep.Address},
		{"control", diag.VerifyControl, &rep.Control},
	}

	for i, s := range steps {
		diag.Report(progress, diag.Progress{
			Phase:   "stuck",
			Item:    s.name,
			Index:   i,
			Total:   len(steps),
			Percent: diag.Percent(i, len(steps)),
		})
		rec := s.run(dc)
		*s.dst = &rec
		if err := dc.Adapter.Err(); err != nil {
			return fmt.Errorf("session: %s bus: %w", s.name, err)
		}
	}
	diag.Report(progress, diag.Progress{Phase: "stuck", Index: len(steps), Total: len(steps), Percent: 100})
	return nil
}
