package diag

import (
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/OpenTraceLab/RetroBusDiag/pkg/bus"
)

// FaultRecord is the stuck-at outcome for one bus. Bit n of StuckHigh and
// StuckLow refers to bit n of the bus; for the control bus n is the Signal.
type FaultRecord struct {
	Bus       bus.Group `json:"bus"`
	Width     int       `json:"width"`
	StuckHigh uint16    `json:"stuck_high"`
	StuckLow  uint16    `json:"stuck_low"`
}

// HasIssues reports whether any stuck bit was found.
func (r FaultRecord) HasIssues() bool {
	return r.StuckHigh != 0 || r.StuckLow != 0
}

// MarshalJSON adds has_issues to the encoded record.
func (r FaultRecord) MarshalJSON() ([]byte, error) {
	type record FaultRecord
	return json.Marshal(struct {
		record
		HasIssues bool `json:"has_issues"`
	}{record(r), r.HasIssues()})
}

// Lines returns the faulty lines as a mask over the unified bit space.
func (r FaultRecord) Lines() (high, low bus.Mask) {
	for i := 0; i < r.Width; i++ {
		l := lineOf(r.Bus, uint(i))
		if r.StuckHigh&(1<<i) != 0 {
			high |= bus.LineMask(l)
		}
		if r.StuckLow&(1<<i) != 0 {
			low |= bus.LineMask(l)
		}
	}
	return high, low
}

func lineOf(g bus.Group, bit uint) bus.Line {
	switch g {
	case bus.AddressGroup:
		return bus.AddressLine(bit)
	case bus.DataGroup:
		return bus.DataLine(bit)
	default:
		return bus.Signal(bit).Line()
	}
}

// parallelBus abstracts the data and address buses for the stuck-at state
// machine.
type parallelBus struct {
	group  bus.Group
	width  int
	config func(bus.Direction)
	write  func(uint16)
	read   func() uint16
}

// VerifyDataBus runs stuck-at detection on the 8-bit data bus.
func VerifyDataBus(dc *Context) FaultRecord {
	a := dc.Adapter
	return verifyParallel(dc, parallelBus{
		group:  bus.DataGroup,
		width:  bus.DataWidth,
		config: a.ConfigData,
		write:  func(v uint16) { a.WriteData(uint8(v)) },
		read:   func() uint16 { return uint16(a.ReadData()) },
	})
}

// VerifyAddressBus runs stuck-at detection on the 16-bit address bus.
func VerifyAddressBus(dc *Context) FaultRecord {
	a := dc.Adapter
	return verifyParallel(dc, parallelBus{
		group:  bus.AddressGroup,
		width:  bus.AddressWidth,
		config: a.ConfigAddress,
		write:  a.WriteAddress,
		read:   a.ReadAddress,
	})
}

// verifyParallel drives all-zero and confirms every bit that reads high, then
// drives all-ones and records every bit that reads low. The stuck-low pass
// takes a single sample.
func verifyParallel(dc *Context, pb parallelBus) FaultRecord {
	rec := FaultRecord{Bus: pb.group, Width: pb.width}
	all := uint16(1<<pb.width - 1)
	log := dc.logger().WithField("bus", pb.group.String())

	pb.write(0)
	pb.config(bus.Output)
	dc.settle()
	candidates := pb.read() & all

	if candidates != 0 {
		log.WithField("candidates", candidates).Debug("stuck-high candidates")
		var counts [16]int
		for i := 0; i < dc.Config.ConfirmLoops; i++ {
			dc.wait(dc.Config.ConfirmDelay)
			v := pb.read()
			for b := 0; b < pb.width; b++ {
				if candidates&(1<<b) != 0 && v&(1<<b) != 0 {
					counts[b]++
				}
			}
		}
		for b := 0; b < pb.width; b++ {
			if candidates&(1<<b) != 0 && dc.Config.confirmed(counts[b], dc.Config.StuckThreshold) {
				rec.StuckHigh |= 1 << b
			}
		}
	}

	pb.write(all)
	dc.settle()
	rec.StuckLow = ^pb.read() & all

	pb.config(bus.Input)
	pb.write(0)

	logRecord(log, rec)
	return rec
}

// VerifyControl runs stuck-at detection on the control signals. Read-write
// signals are driven low then high; write-only signals are floated and
// checked for stuck-low; read-only signals are only sampled, and reading them
// active while the host is held counts as stuck-low. TEST is excluded: the
// activation protocol covers it.
func VerifyControl(dc *Context) FaultRecord {
	a := dc.Adapter
	rec := FaultRecord{Bus: bus.ControlGroup, Width: bus.NumSignals}
	log := dc.logger().WithField("bus", bus.ControlGroup.String())

	// level reads the electrical level of sig.
	level := func(sig bus.Signal) bool { return bus.Level(sig, a.Read(sig)) }

	for _, sig := range bus.AllSignals() {
		bit := uint16(1) << sig
		switch {
		case sig == bus.TEST:
			continue

		case sig.Access() == bus.ReadOnly:
			if a.Read(sig) {
				rec.StuckLow |= bit
			}

		case sig.Access() == bus.WriteOnly:
			a.Config(sig, bus.Input)
			dc.settle()
			if !level(sig) {
				rec.StuckLow |= bit
			}
			a.Write(sig, false)
			a.Config(sig, bus.Output)

		default:
			a.Write(sig, bus.Active(sig, false))
			a.Config(sig, bus.Output)
			dc.settle()
			if level(sig) {
				log.WithField("signal", sig.String()).Debug("stuck-high candidate")
				hits := dc.sample(func() bool { return level(sig) })
				if dc.Config.confirmed(hits, dc.Config.StuckThreshold) {
					rec.StuckHigh |= bit
				}
			}

			a.Write(sig, bus.Active(sig, true))
			dc.settle()
			if !level(sig) {
				rec.StuckLow |= bit
			}

			a.Write(sig, false)
			a.Config(sig, bus.Input)
		}
	}

	logRecord(log, rec)
	return rec
}

func logRecord(log logrus.FieldLogger, rec FaultRecord) {
	if !rec.HasIssues() {
		log.Debug("no stuck lines")
		return
	}
	high, low := rec.Lines()
	log.WithFields(logrus.Fields{
		"stuck_high": high.String(),
		"stuck_low":  low.String(),
	}).Info("stuck lines found")
}
