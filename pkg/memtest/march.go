package memtest

// marchOp is a single read or write of the all-zero or all-one background.
type marchOp struct {
	read bool
	one  bool
}

var (
	r0 = marchOp{read: true}
	r1 = marchOp{read: true, one: true}
	w0 = marchOp{}
	w1 = marchOp{one: true}
)

// marchElement applies ops to every cell in one direction before moving to
// the next cell.
type marchElement struct {
	down bool
	ops  []marchOp
}

func up(ops ...marchOp) marchElement { return marchElement{ops: ops} }
func down(ops ...marchOp) marchElement { return marchElement{down: true, ops: ops} }

var (
	// March C-: ⇑(w0) ⇑(r0,w1) ⇓(r1,w0) ⇓(r0)
	marchCMinus = []marchElement{
		up(w0),
		up(r0, w1),
		down(r1, w0),
		down(r0),
	}

	// March SS: ⇑(w0) ⇑(r0,r0,w0,r0,w1) ⇓(r1,r1,w1,r1,w0)
	// ⇑(r0,r0,w0,r0,w1) ⇓(r1,r1,w1,r1,w0) ⇑(r0)
	marchSS = []marchElement{
		up(w0),
		up(r0, r0, w0, r0, w1),
		down(r1, r1, w1, r1, w0),
		up(r0, r0, w0, r0, w1),
		down(r1, r1, w1, r1, w0),
		up(r0),
	}

	// March LA: ⇑(w0) ⇑(r0,w1,w0,w1,r1) ⇓(r1,w0,w1,w0,r0) ⇓(r0)
	marchLA = []marchElement{
		up(w0),
		up(r0, w1, w0, w1, r1),
		down(r1, w0, w1, w0, r0),
		down(r0),
	}
)

func (t *Tester) march(start uint16, length uint32, elements []marchElement) Result {
	rg := newRegion(start, length)
	res := newResult(rg.length)

	for _, el := range elements {
		for n := uint32(0); n < rg.length; n++ {
			off := n
			if el.down {
				off = rg.length - 1 - n
			}
			a := rg.addr(off)
			for _, op := range el.ops {
				v := uint8(0x00)
				if op.one {
					v = 0xFF
				}
				if op.read {
					res.record(off, v, t.Mem.ReadMem(a))
				} else {
					t.Mem.WriteMem(a, v)
				}
			}
		}
	}
	return res
}

// MarchCMinus runs March C-, detecting stuck-at, transition and most
// coupling faults.
func (t *Tester) MarchCMinus(start uint16, length uint32) Result {
	return t.march(start, length, marchCMinus)
}

// MarchSS runs March SS, which adds repeated reads and non-transition writes
// to catch static simple faults.
func (t *Tester) MarchSS(start uint16, length uint32) Result {
	return t.march(start, length, marchSS)
}

// MarchLA runs March LA, aimed at linked faults.
func (t *Tester) MarchLA(start uint16, length uint32) Result {
	return t.march(start, length, marchLA)
}
