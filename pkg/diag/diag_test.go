package diag

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/OpenTraceLab/RetroBusDiag/pkg/bus"
)

func newTestContext(a bus.Adapter) *Context {
	log := logrus.New()
	log.SetOutput(io.Discard)

	dc := NewContext(a, DefaultConfig())
	dc.Log = log
	dc.Sleep = func(time.Duration) {}
	return dc
}

// failAfterTEST reports err from Err once TEST has been driven active, the
// way a transport that dies mid-activation would.
type failAfterTEST struct {
	*bus.SimAdapter
	err   error
	armed bool
}

func (f *failAfterTEST) Write(sig bus.Signal, active bool) {
	f.SimAdapter.Write(sig, active)
	if sig == bus.TEST && active {
		f.armed = true
	}
}

func (f *failAfterTEST) Err() error {
	if f.armed {
		return f.err
	}
	return f.SimAdapter.Err()
}

// latchCheck records every output enable that was not preceded by a write
// of the level to drive, and every write-only signal that reads active the
// moment its driver is enabled.
type latchCheck struct {
	*bus.SimAdapter
	written    map[bus.Line]bool
	violations []string
}

func newLatchCheck(sim *bus.SimAdapter) *latchCheck {
	return &latchCheck{SimAdapter: sim, written: make(map[bus.Line]bool)}
}

func (c *latchCheck) enable(l bus.Line) {
	if !c.written[l] {
		c.violations = append(c.violations, l.String()+" enabled with a stale latch")
	}
	delete(c.written, l)
}

func (c *latchCheck) WriteData(v uint8) {
	c.SimAdapter.WriteData(v)
	c.written[bus.DataLine(0)] = true
}

func (c *latchCheck) ConfigData(dir bus.Direction) {
	if dir == bus.Output {
		c.enable(bus.DataLine(0))
	}
	c.SimAdapter.ConfigData(dir)
}

func (c *latchCheck) WriteAddress(v uint16) {
	c.SimAdapter.WriteAddress(v)
	c.written[bus.AddressLine(0)] = true
}

func (c *latchCheck) ConfigAddress(dir bus.Direction) {
	if dir == bus.Output {
		c.enable(bus.AddressLine(0))
	}
	c.SimAdapter.ConfigAddress(dir)
}

func (c *latchCheck) Write(sig bus.Signal, active bool) {
	c.SimAdapter.Write(sig, active)
	c.written[sig.Line()] = true
}

func (c *latchCheck) Config(sig bus.Signal, dir bus.Direction) {
	if dir == bus.Output {
		c.enable(sig.Line())
	}
	c.SimAdapter.Config(sig, dir)
	if dir == bus.Output && sig.Access() == bus.WriteOnly && c.SimAdapter.Read(sig) {
		c.violations = append(c.violations, sig.String()+" asserted on output enable")
	}
}
