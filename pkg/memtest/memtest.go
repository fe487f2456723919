// Package memtest implements classic RAM test algorithms over a region of
// the target's mapped memory.
package memtest

import (
	"time"

	"github.com/OpenTraceLab/RetroBusDiag/pkg/bus"
)

// MaxLength is the size of the 16-bit address space.
const MaxLength = 1 << 16

// accessesPerCell is how many writes RepeatedWrite and reads RepeatedRead
// issue to each cell.
const accessesPerCell = 5

// Tester runs algorithms against a memory. Every algorithm takes the region
// start and length and returns a fresh Result; a failing cell never stops the
// scan of the rest of the region.
type Tester struct {
	Mem   bus.Memory
	Sleep func(time.Duration)
}

// New returns a Tester using time.Sleep for retention delays.
func New(mem bus.Memory) *Tester {
	return &Tester{Mem: mem, Sleep: time.Sleep}
}

// region addresses [start, start+length) with 16-bit wrap-around.
type region struct {
	start  uint16
	length uint32
}

func newRegion(start uint16, length uint32) region {
	if length > MaxLength {
		length = MaxLength
	}
	return region{start: start, length: length}
}

func (r region) addr(off uint32) uint16 { return uint16(uint32(r.start) + off) }

func (t *Tester) fill(rg region, value func(off uint32) uint8) {
	for i := uint32(0); i < rg.length; i++ {
		t.Mem.WriteMem(rg.addr(i), value(i))
	}
}

func (t *Tester) verify(rg region, res *Result, value func(off uint32) uint8) {
	for i := uint32(0); i < rg.length; i++ {
		res.record(i, value(i), t.Mem.ReadMem(rg.addr(i)))
	}
}

func constant(p uint8) func(uint32) uint8 {
	return func(uint32) uint8 { return p }
}

// RepeatedWrite writes each cell five times, then verifies the region once.
// With toggle set, odd offsets get the inverted pattern.
func (t *Tester) RepeatedWrite(start uint16, length uint32, pattern uint8, toggle bool) Result {
	rg := newRegion(start, length)
	res := newResult(rg.length)
	value := func(off uint32) uint8 {
		if toggle && off%2 == 1 {
			return ^pattern
		}
		return pattern
	}

	for i := uint32(0); i < rg.length; i++ {
		v := value(i)
		for n := 0; n < accessesPerCell; n++ {
			t.Mem.WriteMem(rg.addr(i), v)
		}
	}
	t.verify(rg, &res, value)
	return res
}

// RepeatedRead writes each cell once, reads it five times and compares the
// last read.
func (t *Tester) RepeatedRead(start uint16, length uint32, pattern uint8) Result {
	rg := newRegion(start, length)
	res := newResult(rg.length)

	for i := uint32(0); i < rg.length; i++ {
		a := rg.addr(i)
		t.Mem.WriteMem(a, pattern)
		var got uint8
		for n := 0; n < accessesPerCell; n++ {
			got = t.Mem.ReadMem(a)
		}
		res.record(i, pattern, got)
	}
	return res
}

// Checkerboard alternates 0x55 and 0xAA by cell parity. toggleStart selects
// 0xAA for even offsets.
func (t *Tester) Checkerboard(start uint16, length uint32, toggleStart bool) Result {
	rg := newRegion(start, length)
	res := newResult(rg.length)
	value := func(off uint32) uint8 {
		if (off%2 == 0) != toggleStart {
			return 0x55
		}
		return 0xAA
	}

	t.fill(rg, value)
	t.verify(rg, &res, value)
	return res
}

// WalkingOnes fills the region with each single-bit pattern in turn and
// verifies it before moving to the next bit.
func (t *Tester) WalkingOnes(start uint16, length uint32) Result {
	return t.walking(start, length, false)
}

// WalkingZeros is WalkingOnes with every pattern inverted.
func (t *Tester) WalkingZeros(start uint16, length uint32) Result {
	return t.walking(start, length, true)
}

func (t *Tester) walking(start uint16, length uint32, invert bool) Result {
	rg := newRegion(start, length)
	res := newResult(rg.length)
	for b := 0; b < 8; b++ {
		p := uint8(1) << b
		if invert {
			p = ^p
		}
		t.fill(rg, constant(p))
		t.verify(rg, &res, constant(p))
	}
	return res
}

// MovingInversion writes pattern, then in one ascending pass checks each cell
// and writes its inverse, in one descending pass checks the inverse and
// restores the pattern, and finally verifies the pattern. A fault-free region
// ends up holding pattern.
func (t *Tester) MovingInversion(start uint16, length uint32, pattern uint8) Result {
	rg := newRegion(start, length)
	res := newResult(rg.length)
	inv := ^pattern

	t.fill(rg, constant(pattern))
	for i := uint32(0); i < rg.length; i++ {
		a := rg.addr(i)
		res.record(i, pattern, t.Mem.ReadMem(a))
		t.Mem.WriteMem(a, inv)
	}
	for i := rg.length; i > 0; i-- {
		a := rg.addr(i - 1)
		res.record(i-1, inv, t.Mem.ReadMem(a))
		t.Mem.WriteMem(a, pattern)
	}
	t.verify(rg, &res, constant(pattern))
	return res
}

// Retention writes pattern, waits repeat times delay and verifies, catching
// cells that leak charge.
func (t *Tester) Retention(start uint16, length uint32, pattern uint8, delay time.Duration, repeat int) Result {
	rg := newRegion(start, length)
	res := newResult(rg.length)

	t.fill(rg, constant(pattern))
	for n := 0; n < repeat; n++ {
		if t.Sleep != nil && delay > 0 {
			t.Sleep(delay)
		}
	}
	t.verify(rg, &res, constant(pattern))
	return res
}

// ReadDestructive writes each cell once and reads it back up to reads times
// without rewriting, stopping at the first mismatch for that cell. Every
// cell is read at least once.
func (t *Tester) ReadDestructive(start uint16, length uint32, pattern uint8, reads int) Result {
	if reads < 1 {
		reads = 1
	}
	rg := newRegion(start, length)
	res := newResult(rg.length)

	for i := uint32(0); i < rg.length; i++ {
		a := rg.addr(i)
		t.Mem.WriteMem(a, pattern)
		for n := 0; n < reads; n++ {
			if !res.record(i, pattern, t.Mem.ReadMem(a)) {
				break
			}
		}
	}
	return res
}

// AddressUniqueness writes the low byte of each address XOR pattern and
// verifies, so cells that alias each other through a bad address line read
// back the wrong value.
func (t *Tester) AddressUniqueness(start uint16, length uint32, pattern uint8) Result {
	rg := newRegion(start, length)
	res := newResult(rg.length)
	value := func(off uint32) uint8 { return uint8(rg.addr(off)) ^ pattern }

	t.fill(rg, value)
	t.verify(rg, &res, value)
	return res
}
