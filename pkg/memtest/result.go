package memtest

import (
	"github.com/bits-and-blooms/bitset"
)

// Result accumulates the mismatches of one algorithm run over a region.
// TotalErrors counts failing reads; BitErrors counts, per data bit, how many
// of those reads had that bit wrong. Cells marks the failing region offsets.
type Result struct {
	TotalErrors uint32         `json:"total_errors"`
	BitErrors   [8]uint32      `json:"bit_errors"`
	Cells       *bitset.BitSet `json:"-"`
}

func newResult(length uint32) Result {
	return Result{Cells: bitset.New(uint(length))}
}

// record compares an expected and an actual byte read at region offset off.
// It reports whether they matched.
func (r *Result) record(off uint32, want, got uint8) bool {
	diff := want ^ got
	if diff == 0 {
		return true
	}
	r.TotalErrors++
	for b := 0; b < 8; b++ {
		if diff&(1<<b) != 0 {
			r.BitErrors[b]++
		}
	}
	if r.Cells == nil {
		r.Cells = bitset.New(0)
	}
	r.Cells.Set(uint(off))
	return false
}

// Add folds o into r.
func (r *Result) Add(o Result) {
	r.TotalErrors += o.TotalErrors
	for b := range r.BitErrors {
		r.BitErrors[b] += o.BitErrors[b]
	}
	if o.Cells == nil {
		return
	}
	if r.Cells == nil {
		r.Cells = o.Cells.Clone()
		return
	}
	r.Cells.InPlaceUnion(o.Cells)
}

// HasIssues reports whether any mismatch was recorded.
func (r Result) HasIssues() bool { return r.TotalErrors != 0 }

// FailingCells returns the number of distinct failing offsets.
func (r Result) FailingCells() uint {
	if r.Cells == nil {
		return 0
	}
	return r.Cells.Count()
}

// FirstFailingCell returns the lowest failing offset.
func (r Result) FirstFailingCell() (uint32, bool) {
	if r.Cells == nil {
		return 0, false
	}
	off, ok := r.Cells.NextSet(0)
	return uint32(off), ok
}

// FailingBits returns the mask of data bits with at least one error.
func (r Result) FailingBits() uint8 {
	var m uint8
	for b, n := range r.BitErrors {
		if n != 0 {
			m |= 1 << b
		}
	}
	return m
}
