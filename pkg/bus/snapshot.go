package bus

import (
	"math/bits"
	"strings"
)

// usedBits covers every defined position of the unified bit space.
const usedBits uint64 = 1<<NumLines - 1

// Snapshot is the bit-packed electrical state of the whole bus: address bus
// in bits 0-15, data bus in bits 16-23 and the control signals in bits
// 24-35 (RAS first, WAIT last). A set bit means the line is high. Bits 36-63
// are reserved and always zero.
type Snapshot uint64

// Mask is a set of lines in the same bit space as Snapshot.
type Mask uint64

// Pack builds a snapshot from raw bus values. ctrl holds control-line levels
// indexed by Signal.
func Pack(addr uint16, data uint8, ctrl uint16) Snapshot {
	v := uint64(addr)<<AddressShift |
		uint64(data)<<DataShift |
		uint64(ctrl&(1<<ControlWidth-1))<<ControlShift
	return Snapshot(v & usedBits)
}

// Address returns the address-bus field.
func (s Snapshot) Address() uint16 { return uint16(s >> AddressShift) }

// Data returns the data-bus field.
func (s Snapshot) Data() uint8 { return uint8(s >> DataShift) }

// Control returns the control field, one bit per Signal.
func (s Snapshot) Control() uint16 {
	return uint16(s>>ControlShift) & (1<<ControlWidth - 1)
}

// Level reports whether the given line was high.
func (s Snapshot) Level(l Line) bool {
	return l.Valid() && s&(1<<l) != 0
}

// Diff returns the lines whose level differs between the two snapshots.
func (s Snapshot) Diff(other Snapshot) Mask {
	return Mask((s ^ other) & Snapshot(usedBits))
}

// LineMask returns the single-line mask for l.
func LineMask(l Line) Mask {
	if !l.Valid() {
		return 0
	}
	return Mask(1) << l
}

// MaskOf builds a mask from a list of lines.
func MaskOf(lines ...Line) Mask {
	var m Mask
	for _, l := range lines {
		m |= LineMask(l)
	}
	return m
}

// Has reports whether l is in the mask.
func (m Mask) Has(l Line) bool { return m&LineMask(l) != 0 }

// Empty reports whether no line is set.
func (m Mask) Empty() bool { return m&Mask(usedBits) == 0 }

// Count returns the number of lines in the mask.
func (m Mask) Count() int { return bits.OnesCount64(uint64(m & Mask(usedBits))) }

// Lines lists the lines in the mask in bit-space order.
func (m Mask) Lines() []Line {
	var out []Line
	for v := uint64(m & Mask(usedBits)); v != 0; v &= v - 1 {
		out = append(out, Line(bits.TrailingZeros64(v)))
	}
	return out
}

func (m Mask) String() string {
	lines := m.Lines()
	if len(lines) == 0 {
		return "-"
	}
	names := make([]string, len(lines))
	for i, l := range lines {
		names[i] = l.String()
	}
	return strings.Join(names, "|")
}

// MarshalText renders the mask the same way as String, so reports carry
// line names instead of raw numbers.
func (m Mask) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText parses the output of MarshalText.
func (m *Mask) UnmarshalText(text []byte) error {
	var out Mask
	s := strings.TrimSpace(string(text))
	if s != "" && s != "-" {
		for _, name := range strings.Split(s, "|") {
			l, err := ParseLine(strings.TrimSpace(name))
			if err != nil {
				return err
			}
			out |= LineMask(l)
		}
	}
	*m = out
	return nil
}

// Sample reads every line of the bus through the adapter and packs the
// result. Control signals are converted back to electrical levels.
func Sample(a Adapter) Snapshot {
	addr := a.ReadAddress()
	data := a.ReadData()
	var ctrl uint16
	for _, sig := range AllSignals() {
		if Level(sig, a.Read(sig)) {
			ctrl |= 1 << sig
		}
	}
	return Pack(addr, data, ctrl)
}
