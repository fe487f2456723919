package suite

import (
	"fmt"

	"github.com/OpenTraceLab/RetroBusDiag/pkg/memtest"
)

// Region is a memory area to test, with the chip that holds each data bit.
type Region struct {
	Name   string    `json:"name"`
	Start  uint16    `json:"start"`
	Length uint32    `json:"length"`
	ICRefs [8]string `json:"ic_refs"`
}

// End returns the first address past the region.
func (r Region) End() uint32 { return uint32(r.Start) + r.Length }

// Validate checks that the region is non-empty and fits in the 16-bit
// address space.
func (r Region) Validate() error {
	if r.Length == 0 {
		return fmt.Errorf("suite: region %q is empty", r.Name)
	}
	if r.End() > memtest.MaxLength {
		return fmt.Errorf("suite: region %q (0x%04X+%d) exceeds the 64K address space", r.Name, r.Start, r.Length)
	}
	return nil
}

// Chip returns the chip designator for a data bit, or "bit N" when the region
// does not name one.
func (r Region) Chip(bit int) string {
	if bit >= 0 && bit < len(r.ICRefs) && r.ICRefs[bit] != "" {
		return r.ICRefs[bit]
	}
	return fmt.Sprintf("bit %d", bit)
}

func (r Region) String() string {
	name := r.Name
	if name == "" {
		name = "region"
	}
	return fmt.Sprintf("%s 0x%04X-0x%04X", name, r.Start, r.End()-1)
}
