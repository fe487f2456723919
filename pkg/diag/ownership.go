package diag

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/OpenTraceLab/RetroBusDiag/pkg/bus"
)

// Acquire runs the activation protocol on TEST: it checks that nobody else
// holds the bus, then drives TEST active and confirms the hold over
// ConfirmLoops samples. Any failure is returned as an *OwnershipFault.
func Acquire(dc *Context) error {
	if err := dc.Config.Validate(); err != nil {
		return fmt.Errorf("diag: invalid config: %w", err)
	}
	a := dc.Adapter
	log := dc.logger().WithField("signal", bus.TEST.String())

	a.Config(bus.TEST, bus.Input)
	dc.settle()
	if a.Read(bus.TEST) {
		log.Error("TEST already active before activation")
		return &OwnershipFault{Stage: StagePrecheck, Ratio: 1}
	}
	if err := a.Err(); err != nil {
		return fmt.Errorf("diag: precheck: %w", err)
	}

	a.Write(bus.TEST, true)
	a.Config(bus.TEST, bus.Output)
	dc.settle()

	// From here on TEST may be active: every failure backs out before
	// returning.
	hits := dc.sample(func() bool { return a.Read(bus.TEST) })
	r := ratio(hits, dc.Config.ConfirmLoops)
	if err := a.Err(); err != nil {
		log.WithError(err).Error("adapter failed during activation")
		backOut(a)
		return &OwnershipFault{Stage: StageActivate, Ratio: r, Err: err}
	}
	if !dc.Config.confirmed(hits, dc.Config.OwnershipThreshold) {
		log.WithField("ratio", r).Error("TEST activation not confirmed")
		backOut(a)
		return &OwnershipFault{Stage: StageActivate, Ratio: r, Err: a.Err()}
	}

	log.WithField("ratio", r).Info("bus acquired")
	return nil
}

// Release drives TEST inactive, confirms the release with the same threshold
// as Acquire and floats the line again.
func Release(dc *Context) error {
	a := dc.Adapter
	log := dc.logger().WithField("signal", bus.TEST.String())

	a.Write(bus.TEST, false)
	dc.settle()

	hits := dc.sample(func() bool { return !a.Read(bus.TEST) })
	r := ratio(hits, dc.Config.ConfirmLoops)
	if err := a.Err(); err != nil {
		log.WithError(err).Error("adapter failed during release")
		backOut(a)
		return &OwnershipFault{Stage: StageRelease, Ratio: r, Err: err}
	}
	if !dc.Config.confirmed(hits, dc.Config.OwnershipThreshold) {
		log.WithFields(logrus.Fields{"ratio": r}).Error("TEST release not confirmed")
		return &OwnershipFault{Stage: StageRelease, Ratio: r}
	}

	a.Config(bus.TEST, bus.Input)
	log.WithField("ratio", r).Info("bus released")
	return nil
}

// backOut drives TEST inactive and floats it. A failed adapter drops both
// requests, which is why callers report the fault as fatal either way.
func backOut(a bus.Adapter) {
	a.Write(bus.TEST, false)
	a.Config(bus.TEST, bus.Input)
}
