package memtest

import (
	"testing"
	"time"

	"github.com/OpenTraceLab/RetroBusDiag/pkg/bus"
)

type algorithm struct {
	name string
	run  func(t *Tester, start uint16, length uint32) Result
}

var algorithms = []algorithm{
	{"RepeatedWrite", func(t *Tester, s uint16, n uint32) Result { return t.RepeatedWrite(s, n, 0x55, true) }},
	{"RepeatedRead", func(t *Tester, s uint16, n uint32) Result { return t.RepeatedRead(s, n, 0xAA) }},
	{"Checkerboard", func(t *Tester, s uint16, n uint32) Result { return t.Checkerboard(s, n, false) }},
	{"CheckerboardToggled", func(t *Tester, s uint16, n uint32) Result { return t.Checkerboard(s, n, true) }},
	{"WalkingOnes", func(t *Tester, s uint16, n uint32) Result { return t.WalkingOnes(s, n) }},
	{"WalkingZeros", func(t *Tester, s uint16, n uint32) Result { return t.WalkingZeros(s, n) }},
	{"MarchC-", func(t *Tester, s uint16, n uint32) Result { return t.MarchCMinus(s, n) }},
	{"MarchSS", func(t *Tester, s uint16, n uint32) Result { return t.MarchSS(s, n) }},
	{"MarchLA", func(t *Tester, s uint16, n uint32) Result { return t.MarchLA(s, n) }},
	{"MovingInversion", func(t *Tester, s uint16, n uint32) Result { return t.MovingInversion(s, n, 0x0F) }},
	{"Retention", func(t *Tester, s uint16, n uint32) Result { return t.Retention(s, n, 0xAA, time.Millisecond, 3) }},
	{"ReadDestructive", func(t *Tester, s uint16, n uint32) Result { return t.ReadDestructive(s, n, 0xAA, 4) }},
	{"AddressUniqueness", func(t *Tester, s uint16, n uint32) Result { return t.AddressUniqueness(s, n, 0xFF) }},
}

func newTester(mem bus.Memory) *Tester {
	tt := New(mem)
	tt.Sleep = func(time.Duration) {}
	return tt
}

func TestAlgorithmsFaultFree(t *testing.T) {
	for _, alg := range algorithms {
		t.Run(alg.name, func(t *testing.T) {
			sim := bus.NewSimAdapter(1)
			res := alg.run(newTester(sim), 0x4000, 1024)
			if res.HasIssues() {
				t.Fatalf("fault-free region reported %d errors (%v)", res.TotalErrors, res.BitErrors)
			}
			if res.FailingCells() != 0 {
				t.Fatalf("fault-free region marked %d cells", res.FailingCells())
			}
		})
	}
}

func TestAlgorithmsStayInRegion(t *testing.T) {
	cases := []struct {
		start  uint16
		length uint32
	}{
		{0x4000, 256},
		{0xFF00, 256},
		{0xFFF0, 32}, // wraps to 0x0000-0x000F
		{0x1234, 1},
	}
	for _, alg := range algorithms {
		for _, c := range cases {
			sim := bus.NewSimAdapter(1)
			touched := make(map[uint16]bool)
			sim.OnMemAccess = func(_ bus.MemOp, addr uint16, _ uint8) {
				touched[addr] = true
			}
			alg.run(newTester(sim), c.start, c.length)

			if uint32(len(touched)) != c.length {
				t.Errorf("%s @%04X+%d touched %d cells", alg.name, c.start, c.length, len(touched))
			}
			for i := uint32(0); i < c.length; i++ {
				if a := uint16(uint32(c.start) + i); !touched[a] {
					t.Errorf("%s @%04X+%d skipped %04X", alg.name, c.start, c.length, a)
				}
			}
		}
	}
}

func TestWalkingRoundTrip(t *testing.T) {
	sim := bus.NewSimAdapter(1)
	tt := newTester(sim)
	for _, start := range []uint16{0x0000, 0x3C00, 0x4000, 0x7FFF} {
		var res Result
		res.Add(tt.WalkingOnes(start, 512))
		res.Add(tt.WalkingZeros(start, 512))
		for b, n := range res.BitErrors {
			if n != 0 {
				t.Fatalf("start %04X: bit %d has %d errors", start, b, n)
			}
		}
	}
}

func TestStuckBitIsolated(t *testing.T) {
	for _, alg := range algorithms {
		t.Run(alg.name, func(t *testing.T) {
			sim := bus.NewSimAdapter(1)
			sim.MemFaults = []bus.MemFault{{Bit: 5, High: false}}

			res := alg.run(newTester(sim), 0x4000, 256)
			if res.BitErrors[5] == 0 {
				t.Fatalf("bit 5 stuck-at-0 not detected")
			}
			if res.FailingBits() != 1<<5 {
				t.Fatalf("errors on other bits: %v", res.BitErrors)
			}
		})
	}
}

func TestMovingInversionRestoresPattern(t *testing.T) {
	for _, p := range []uint8{0x00, 0x55, 0xFF} {
		sim := bus.NewSimAdapter(1)
		res := newTester(sim).MovingInversion(0x4000, 512, p)
		if res.HasIssues() {
			t.Fatalf("pattern %02X: %d errors", p, res.TotalErrors)
		}
		for i := uint16(0); i < 512; i++ {
			if got := sim.Peek(0x4000 + i); got != p {
				t.Fatalf("pattern %02X: cell %04X = %02X", p, 0x4000+i, got)
			}
		}
	}
}

func TestMarchAccessCounts(t *testing.T) {
	tests := []struct {
		name          string
		run           func(*Tester, uint16, uint32) Result
		reads, writes int
	}{
		{"MarchC-", (*Tester).MarchCMinus, 3, 3},
		{"MarchSS", (*Tester).MarchSS, 13, 9},
		{"MarchLA", (*Tester).MarchLA, 5, 7},
	}

	const start, length = 0x4000, 300
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := bus.NewSimAdapter(1)
			reads := make(map[uint16]int)
			writes := make(map[uint16]int)
			sim.OnMemAccess = func(op bus.MemOp, addr uint16, _ uint8) {
				if op == bus.MemRead {
					reads[addr]++
				} else {
					writes[addr]++
				}
			}
			tt.run(newTester(sim), start, length)

			if len(reads) != length || len(writes) != length {
				t.Fatalf("touched %d/%d cells, want %d", len(reads), len(writes), length)
			}
			for a := uint16(start); a < start+length; a++ {
				if reads[a] != tt.reads || writes[a] != tt.writes {
					t.Fatalf("cell %04X: %d reads / %d writes, want %d / %d",
						a, reads[a], writes[a], tt.reads, tt.writes)
				}
			}
		})
	}
}

func TestMarchCMinusPassOrder(t *testing.T) {
	const start, length = 0x4000, 64
	sim := bus.NewSimAdapter(1)
	var trace []uint16
	sim.OnMemAccess = func(op bus.MemOp, addr uint16, _ uint8) {
		if op == bus.MemRead {
			trace = append(trace, addr)
		}
	}
	newTester(sim).MarchCMinus(start, length)

	if len(trace) != 3*length {
		t.Fatalf("got %d reads, want %d", len(trace), 3*length)
	}
	// Reads come from ⇑(r0,w1), ⇓(r1,w0), ⇓(r0).
	for i := 0; i < length; i++ {
		if trace[i] != start+uint16(i) {
			t.Fatalf("pass 2 read %d at %04X, want ascending", i, trace[i])
		}
		if trace[length+i] != start+length-1-uint16(i) {
			t.Fatalf("pass 3 read %d at %04X, want descending", i, trace[length+i])
		}
		if trace[2*length+i] != start+length-1-uint16(i) {
			t.Fatalf("pass 4 read %d at %04X, want descending", i, trace[2*length+i])
		}
	}
}

func TestAddressUniquenessDetectsAliasing(t *testing.T) {
	sim := bus.NewSimAdapter(1)
	sim.AliasMask = 1 << 4

	res := newTester(sim).AddressUniqueness(0x4000, 256, 0x00)
	if !res.HasIssues() {
		t.Fatalf("aliased address line not detected")
	}
	if res.FailingBits() != 1<<4 {
		t.Fatalf("unexpected failing bits %08b", res.FailingBits())
	}
}

// decayMemory corrupts a cell on its second read.
type decayMemory struct {
	cells map[uint16]uint8
	reads map[uint16]int
}

func (m *decayMemory) ReadMem(addr uint16) uint8 {
	m.reads[addr]++
	if m.reads[addr] >= 2 {
		return m.cells[addr] ^ 0x01
	}
	return m.cells[addr]
}

func (m *decayMemory) WriteMem(addr uint16, v uint8) { m.cells[addr] = v }

func TestReadDestructiveStopsEarly(t *testing.T) {
	mem := &decayMemory{cells: map[uint16]uint8{}, reads: map[uint16]int{}}
	res := newTester(mem).ReadDestructive(0x4000, 16, 0x55, 10)

	if res.TotalErrors != 16 || res.BitErrors[0] != 16 {
		t.Fatalf("result = %+v, want one bit-0 error per cell", res)
	}
	for a, n := range mem.reads {
		if n != 2 {
			t.Fatalf("cell %04X read %d times, want 2", a, n)
		}
	}
}

func TestReadDestructiveReadsAtLeastOnce(t *testing.T) {
	sim := bus.NewSimAdapter(1)
	sim.MemFaults = []bus.MemFault{{Bit: 2, High: false}}

	res := newTester(sim).ReadDestructive(0x4000, 16, 0xFF, 0)
	if res.TotalErrors != 16 || res.BitErrors[2] != 16 {
		t.Fatalf("result = %+v, want one bit-2 error per cell", res)
	}
}

func TestRetentionWaits(t *testing.T) {
	sim := bus.NewSimAdapter(1)
	tt := New(sim)
	var waited time.Duration
	tt.Sleep = func(d time.Duration) {
		waited += d
		sim.Poke(0x4010, 0x54) // bit 0 leaks away
	}

	res := tt.Retention(0x4000, 64, 0x55, 10*time.Millisecond, 4)
	if waited != 40*time.Millisecond {
		t.Fatalf("waited %v, want 40ms", waited)
	}
	if res.TotalErrors != 1 || res.BitErrors[0] != 1 {
		t.Fatalf("result = %+v, want one bit-0 error", res)
	}
	if off, ok := res.FirstFailingCell(); !ok || off != 0x10 {
		t.Fatalf("first failing cell = %d, %v", off, ok)
	}
}

func TestResultAdd(t *testing.T) {
	a := newResult(16)
	a.record(3, 0x00, 0x01)
	b := newResult(16)
	b.record(3, 0x00, 0x81)
	b.record(7, 0xFF, 0x7F)

	var sum Result
	sum.Add(a)
	sum.Add(b)
	if sum.TotalErrors != 3 {
		t.Fatalf("TotalErrors = %d, want 3", sum.TotalErrors)
	}
	if sum.BitErrors[0] != 2 || sum.BitErrors[7] != 2 {
		t.Fatalf("BitErrors = %v", sum.BitErrors)
	}
	if sum.FailingCells() != 2 {
		t.Fatalf("FailingCells = %d, want 2", sum.FailingCells())
	}
	if a.FailingCells() != 1 {
		t.Fatalf("Add must not alias the first operand's cell map")
	}
}
