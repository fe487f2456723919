package bus

import (
	"fmt"
	"math/rand"
)

// LineFault pins a line to a fixed electrical level. Duty is the fraction of
// reads on which the fault shows; zero (or anything >= 1) means always.
type LineFault struct {
	Line Line
	High bool
	Duty float64
}

// Short couples two lines. When one of them is driven against its idle level
// and the other is not, the other follows it. Duty works as for LineFault.
type Short struct {
	A, B Line
	Duty float64
}

// MemFault forces one data bit of every cell in [Start, Start+Length) to a
// fixed value on read. A zero Length covers the whole address space.
type MemFault struct {
	Bit    uint8
	High   bool
	Start  uint16
	Length uint32
	Duty   float64
}

func (f MemFault) covers(addr uint16) bool {
	if f.Length == 0 {
		return true
	}
	off := uint32(addr-f.Start) & 0xFFFF
	return off < f.Length
}

// MemOp distinguishes read and write accesses reported to OnMemAccess.
type MemOp uint8

const (
	MemRead MemOp = iota
	MemWrite
)

func (op MemOp) String() string {
	if op == MemWrite {
		return "write"
	}
	return "read"
}

// MemHook observes every memory access made through the simulator. v is the
// value written, or the value returned to the caller for reads.
type MemHook func(op MemOp, addr uint16, v uint8)

// ReadHook may override the level of any line whenever it is sampled.
type ReadHook func(l Line, level bool) bool

// SimStats counts operations issued against a SimAdapter.
type SimStats struct {
	DataWrites    int
	AddressWrites int
	SignalWrites  int
	LineReads     int
	MemReads      int
	MemWrites     int
}

// SimAdapter is an in-memory bus useful for unit tests and for dry runs of
// the CLI. Every line floats to its idle level when not driven: control lines
// are pulled high, address and data lines low. Faults are injected through
// the exported fields before use.
type SimAdapter struct {
	Stuck     []LineFault
	Shorts    []Short
	MemFaults []MemFault

	// AliasMask lists address bits that the memory array ignores, emulating
	// shorted or open address lines on the RAM side.
	AliasMask uint16

	OnMemAccess MemHook
	OnRead      ReadHook

	dir   [NumLines]Direction
	out   [NumLines]bool
	idle  [NumLines]bool
	mem   []byte
	rng   *rand.Rand
	stats SimStats
	err   error
}

// NewSimAdapter returns a fault-free simulated bus. seed drives the random
// source used for intermittent faults.
func NewSimAdapter(seed int64) *SimAdapter {
	s := &SimAdapter{
		mem: make([]byte, 1<<16),
		rng: rand.New(rand.NewSource(seed)),
	}
	for _, sig := range AllSignals() {
		s.idle[sig.Line()] = true
	}
	return s
}

// IdleLevel reports the level a floating line settles to.
func (s *SimAdapter) IdleLevel(l Line) bool {
	return l.Valid() && s.idle[l]
}

// Stats returns the operation counters.
func (s *SimAdapter) Stats() SimStats { return s.stats }

// Peek returns the raw content of a memory cell, bypassing faults and hooks.
func (s *SimAdapter) Peek(addr uint16) uint8 { return s.mem[addr] }

// Poke sets the raw content of a memory cell.
func (s *SimAdapter) Poke(addr uint16, v uint8) { s.mem[addr] = v }

func (s *SimAdapter) Err() error { return s.err }

func (s *SimAdapter) fail(err error) {
	if s.err == nil {
		s.err = err
	}
}

func (s *SimAdapter) hit(duty float64) bool {
	if duty <= 0 || duty >= 1 {
		return true
	}
	return s.rng.Float64() < duty
}

func (s *SimAdapter) asserted(l Line) bool {
	return s.dir[l] == Output && s.out[l] != s.idle[l]
}

// level resolves the electrical level of a line: driver or pull, then
// shorts, then stuck faults, then the read hook.
func (s *SimAdapter) level(l Line) bool {
	v := s.idle[l]
	if s.dir[l] == Output {
		v = s.out[l]
	}
	if !s.asserted(l) {
		for _, sh := range s.Shorts {
			p, ok := partner(sh, l)
			if !ok || !p.Valid() || !s.asserted(p) {
				continue
			}
			if s.hit(sh.Duty) {
				v = s.out[p]
				break
			}
		}
	}
	for _, f := range s.Stuck {
		if f.Line == l && s.hit(f.Duty) {
			v = f.High
		}
	}
	if s.OnRead != nil {
		v = s.OnRead(l, v)
	}
	return v
}

func partner(sh Short, l Line) (Line, bool) {
	switch l {
	case sh.A:
		return sh.B, true
	case sh.B:
		return sh.A, true
	}
	return 0, false
}

func (s *SimAdapter) readField(shift, width uint) uint16 {
	var v uint16
	for i := uint(0); i < width; i++ {
		if s.level(Line(shift + i)) {
			v |= 1 << i
		}
	}
	s.stats.LineReads++
	return v
}

func (s *SimAdapter) writeField(shift, width uint, v uint16) {
	for i := uint(0); i < width; i++ {
		s.out[shift+i] = v&(1<<i) != 0
	}
}

func (s *SimAdapter) configField(shift, width uint, dir Direction) {
	for i := uint(0); i < width; i++ {
		s.dir[shift+i] = dir
	}
}

func (s *SimAdapter) ReadData() uint8 {
	return uint8(s.readField(DataShift, DataWidth))
}

func (s *SimAdapter) WriteData(v uint8) {
	s.stats.DataWrites++
	s.writeField(DataShift, DataWidth, uint16(v))
}

func (s *SimAdapter) ConfigData(dir Direction) {
	s.configField(DataShift, DataWidth, dir)
}

func (s *SimAdapter) ReadAddress() uint16 {
	return s.readField(AddressShift, AddressWidth)
}

func (s *SimAdapter) WriteAddress(v uint16) {
	s.stats.AddressWrites++
	s.writeField(AddressShift, AddressWidth, v)
}

func (s *SimAdapter) ConfigAddress(dir Direction) {
	s.configField(AddressShift, AddressWidth, dir)
}

func (s *SimAdapter) Read(sig Signal) bool {
	if int(sig) >= NumSignals {
		s.fail(fmt.Errorf("bus: unknown signal %d", sig))
		return false
	}
	s.stats.LineReads++
	return Active(sig, s.level(sig.Line()))
}

func (s *SimAdapter) Write(sig Signal, active bool) {
	if int(sig) >= NumSignals {
		s.fail(fmt.Errorf("bus: unknown signal %d", sig))
		return
	}
	if sig.Access() == ReadOnly {
		s.fail(ReadOnlyError(sig))
		return
	}
	s.stats.SignalWrites++
	s.out[sig.Line()] = Level(sig, active)
}

func (s *SimAdapter) Config(sig Signal, dir Direction) {
	if int(sig) >= NumSignals {
		s.fail(fmt.Errorf("bus: unknown signal %d", sig))
		return
	}
	if sig.Access() == ReadOnly && dir == Output {
		s.fail(ReadOnlyError(sig))
		return
	}
	s.dir[sig.Line()] = dir
}

// cell maps a bus address onto the memory array, honouring stuck address
// lines and the alias mask.
func (s *SimAdapter) cell(addr uint16) uint16 {
	for _, f := range s.Stuck {
		if f.Line.Group() != AddressGroup || !s.hit(f.Duty) {
			continue
		}
		bit := uint16(1) << f.Line.Bit()
		if f.High {
			addr |= bit
		} else {
			addr &^= bit
		}
	}
	return addr &^ s.AliasMask
}

func (s *SimAdapter) ReadMem(addr uint16) uint8 {
	v := s.mem[s.cell(addr)]
	for _, f := range s.MemFaults {
		if f.Bit > 7 || !f.covers(addr) || !s.hit(f.Duty) {
			continue
		}
		if f.High {
			v |= 1 << f.Bit
		} else {
			v &^= 1 << f.Bit
		}
	}
	for _, f := range s.Stuck {
		if f.Line.Group() != DataGroup || !s.hit(f.Duty) {
			continue
		}
		if f.High {
			v |= 1 << f.Line.Bit()
		} else {
			v &^= 1 << f.Line.Bit()
		}
	}
	s.stats.MemReads++
	if s.OnMemAccess != nil {
		s.OnMemAccess(MemRead, addr, v)
	}
	return v
}

func (s *SimAdapter) WriteMem(addr uint16, v uint8) {
	s.mem[s.cell(addr)] = v
	s.stats.MemWrites++
	if s.OnMemAccess != nil {
		s.OnMemAccess(MemWrite, addr, v)
	}
}

// Reset releases every line and clears the sticky error. Memory content and
// injected faults are kept.
func (s *SimAdapter) Reset() {
	s.dir = [NumLines]Direction{}
	s.out = [NumLines]bool{}
	s.stats = SimStats{}
	s.err = nil
}
