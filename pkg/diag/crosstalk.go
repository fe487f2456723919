package diag

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/OpenTraceLab/RetroBusDiag/pkg/bus"
)

// Coupling is one confirmed crosstalk finding: driving Source disturbed the
// Destination lines.
type Coupling struct {
	Source      bus.Line `json:"-"`
	SourceName  string   `json:"source"`
	Destination bus.Mask `json:"destination"`
	Ratio       float64  `json:"ratio"` // lowest confirmation ratio among the destinations
}

// CrosstalkResult collects every confirmed coupling of a crosstalk scan.
type CrosstalkResult struct {
	Baseline    bus.Snapshot `json:"baseline"`
	Source      bus.Mask     `json:"source"`
	Destination bus.Mask     `json:"destination"`
	Couplings   []Coupling   `json:"couplings,omitempty"`
	Scanned     int          `json:"scanned"`
}

// HasIssues reports whether any crosstalk was confirmed.
func (r *CrosstalkResult) HasIssues() bool {
	return r != nil && !r.Source.Empty()
}

// MarshalJSON adds has_issues to the encoded result.
func (r CrosstalkResult) MarshalJSON() ([]byte, error) {
	type result CrosstalkResult
	return json.Marshal(struct {
		result
		HasIssues bool `json:"has_issues"`
	}{result(r), r.HasIssues()})
}

// DetectCrosstalk drives every drivable line in isolation against its
// quiescent level and looks for unexpected changes elsewhere on the bus.
//
// The algorithm:
//  1. Float every line except TEST and sample the baseline snapshot
//  2. For each drivable line (data, address, then control):
//     a. Drive the line to the opposite of its baseline level and settle
//     b. Sample; unexpected = (current ^ baseline) &^ driven line
//     c. If anything changed, take ConfirmLoops further samples and count
//     how often each line differed
//     d. Lines reaching CrosstalkThreshold are confirmed destinations
//     e. Float the line again
//
// Cancellation is honoured between lines only; the result gathered so far is
// returned together with the context error.
func DetectCrosstalk(ctx context.Context, dc *Context, progress chan<- Progress) (*CrosstalkResult, error) {
	if err := dc.Config.Validate(); err != nil {
		return nil, fmt.Errorf("diag: invalid config: %w", err)
	}
	a := dc.Adapter
	log := dc.logger()

	quiesce(a)
	dc.settle()
	baseline := bus.Sample(a)
	res := &CrosstalkResult{Baseline: baseline}

	lines := bus.DrivableLines()
	Report(progress, Progress{Phase: "crosstalk", Index: 0, Total: len(lines), Percent: 0})

	for i, l := range lines {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}

		Report(progress, Progress{
			Phase:   "crosstalk",
			Item:    l.String(),
			Index:   i,
			Total:   len(lines),
			Percent: Percent(i, len(lines)),
		})

		if c, ok := probeLine(dc, l, baseline); ok {
			res.Source |= bus.LineMask(l)
			res.Destination |= c.Destination
			res.Couplings = append(res.Couplings, c)
			log.WithFields(logrus.Fields{
				"line":        l.String(),
				"destination": c.Destination.String(),
				"ratio":       c.Ratio,
			}).Info("crosstalk confirmed")
		}
		res.Scanned++

		if err := a.Err(); err != nil {
			return res, fmt.Errorf("diag: crosstalk at %s: %w", l, err)
		}
	}

	Report(progress, Progress{Phase: "crosstalk", Index: len(lines), Total: len(lines), Percent: 100})
	return res, nil
}

// probeLine drives one line, checks for unexpected changes and confirms them
// per destination line.
func probeLine(dc *Context, l bus.Line, baseline bus.Snapshot) (Coupling, bool) {
	a := dc.Adapter
	self := bus.LineMask(l)

	drive(a, l, baseline)
	defer release(a, l)
	dc.settle()

	unexpected := bus.Sample(a).Diff(baseline) &^ self
	if unexpected.Empty() {
		return Coupling{}, false
	}
	dc.logger().WithFields(logrus.Fields{
		"line":       l.String(),
		"unexpected": unexpected.String(),
	}).Debug("crosstalk candidate")

	var counts [bus.NumLines]int
	for i := 0; i < dc.Config.ConfirmLoops; i++ {
		dc.wait(dc.Config.ConfirmDelay)
		diff := bus.Sample(a).Diff(baseline) &^ self
		for _, d := range diff.Lines() {
			counts[d]++
		}
	}

	c := Coupling{Source: l, SourceName: l.String(), Ratio: 1}
	for d, n := range counts {
		if n == 0 || !dc.Config.confirmed(n, dc.Config.CrosstalkThreshold) {
			continue
		}
		c.Destination |= bus.LineMask(bus.Line(d))
		if r := ratio(n, dc.Config.ConfirmLoops); r < c.Ratio {
			c.Ratio = r
		}
	}
	return c, !c.Destination.Empty()
}

// quiesce floats every line except TEST, which keeps whatever state the
// activation protocol left it in.
func quiesce(a bus.Adapter) {
	a.ConfigData(bus.Input)
	a.ConfigAddress(bus.Input)
	for _, sig := range bus.AllSignals() {
		if sig == bus.TEST || sig.Access() == bus.ReadOnly {
			continue
		}
		a.Write(sig, false)
		a.Config(sig, bus.Input)
	}
}

// drive forces l to the opposite of its baseline level. Data and address
// lines can only be driven as a whole bus, so the rest of that bus is held at
// its baseline value.
func drive(a bus.Adapter, l bus.Line, baseline bus.Snapshot) {
	switch l.Group() {
	case bus.DataGroup:
		a.WriteData(baseline.Data() ^ uint8(1)<<l.Bit())
		a.ConfigData(bus.Output)
	case bus.AddressGroup:
		a.WriteAddress(baseline.Address() ^ uint16(1)<<l.Bit())
		a.ConfigAddress(bus.Output)
	default:
		sig, _ := l.Signal()
		a.Write(sig, bus.Active(sig, !baseline.Level(l)))
		a.Config(sig, bus.Output)
	}
}

func release(a bus.Adapter, l bus.Line) {
	switch l.Group() {
	case bus.DataGroup:
		a.ConfigData(bus.Input)
	case bus.AddressGroup:
		a.ConfigAddress(bus.Input)
	default:
		sig, _ := l.Signal()
		a.Write(sig, false)
		a.Config(sig, bus.Input)
	}
}
