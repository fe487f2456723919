package bus

import (
	"fmt"
	"strconv"
)

// Direction selects whether a line (or a whole bus) is driven by the
// diagnostic controller or left floating as an input.
type Direction int

const (
	// Input leaves the line floating so its level can be observed.
	Input Direction = iota
	// Output actively drives the line.
	Output
)

func (d Direction) String() string {
	if d == Output {
		return "output"
	}
	return "input"
}

// Signal names one of the control lines of the expansion bus.
// The order is fixed and is the order used in the unified bit space.
type Signal uint8

const (
	RAS Signal = iota
	MUX
	CAS
	RD
	WR
	IN
	OUT
	SysRes
	IntAck
	INT
	TEST
	WAIT

	// NumSignals is the number of control signals.
	NumSignals = 12
)

// Access describes what the diagnostic controller may do with a signal.
type Access uint8

const (
	// ReadWrite signals can be driven and sampled.
	ReadWrite Access = iota
	// WriteOnly signals are normally only driven, but may be switched to
	// input for self-test.
	WriteOnly
	// ReadOnly signals are sampled and must never be driven.
	ReadOnly
)

func (a Access) String() string {
	switch a {
	case WriteOnly:
		return "write-only"
	case ReadOnly:
		return "read-only"
	default:
		return "read-write"
	}
}

// SignalInfo describes a control signal.
type SignalInfo struct {
	Name        string
	Description string
	Access      Access
	ActiveLow   bool
}

var signalTable = [NumSignals]SignalInfo{
	RAS:    {Name: "RAS", Description: "Row Address Strobe", Access: ReadWrite, ActiveLow: true},
	MUX:    {Name: "MUX", Description: "DRAM Address Multiplexer", Access: ReadWrite, ActiveLow: true},
	CAS:    {Name: "CAS", Description: "Column Address Strobe", Access: ReadWrite, ActiveLow: true},
	RD:     {Name: "RD", Description: "Memory Read", Access: ReadWrite, ActiveLow: true},
	WR:     {Name: "WR", Description: "Memory Write", Access: ReadWrite, ActiveLow: true},
	IN:     {Name: "IN", Description: "Port Input", Access: ReadWrite, ActiveLow: true},
	OUT:    {Name: "OUT", Description: "Port Output", Access: ReadWrite, ActiveLow: true},
	SysRes: {Name: "SYS_RES", Description: "System Reset", Access: ReadOnly, ActiveLow: true},
	IntAck: {Name: "INT_ACK", Description: "Interrupt Acknowledge", Access: ReadOnly, ActiveLow: true},
	INT:    {Name: "INT", Description: "Interrupt Request", Access: WriteOnly, ActiveLow: true},
	TEST:   {Name: "TEST", Description: "Bus Hold (ownership)", Access: ReadWrite, ActiveLow: true},
	WAIT:   {Name: "WAIT", Description: "Wait State Request", Access: WriteOnly, ActiveLow: true},
}

// Info returns the capability record for the signal.
func (s Signal) Info() SignalInfo {
	if int(s) >= NumSignals {
		return SignalInfo{Name: fmt.Sprintf("SIG%d", s)}
	}
	return signalTable[s]
}

func (s Signal) String() string {
	return s.Info().Name
}

// Access reports the access class of the signal.
func (s Signal) Access() Access {
	return s.Info().Access
}

// Drivable reports whether the signal may be driven during crosstalk
// analysis. Read-only signals and the bus-ownership signal are excluded.
func (s Signal) Drivable() bool {
	return s != TEST && s.Access() != ReadOnly
}

// Line returns the position of the signal in the unified bit space.
func (s Signal) Line() Line {
	return Line(ControlShift + uint(s))
}

// AllSignals returns every control signal in bit-space order.
func AllSignals() []Signal {
	out := make([]Signal, NumSignals)
	for i := range out {
		out[i] = Signal(i)
	}
	return out
}

// ParseSignal looks up a control signal by name (case-sensitive, as printed
// by String).
func ParseSignal(name string) (Signal, bool) {
	for i, info := range signalTable {
		if info.Name == name {
			return Signal(i), true
		}
	}
	return 0, false
}

// Group identifies which bus a line belongs to.
type Group uint8

const (
	AddressGroup Group = iota
	DataGroup
	ControlGroup
)

func (g Group) String() string {
	switch g {
	case AddressGroup:
		return "address"
	case DataGroup:
		return "data"
	default:
		return "control"
	}
}

// MarshalText lets reports carry the group name.
func (g Group) MarshalText() ([]byte, error) { return []byte(g.String()), nil }

// Line is a bit position in the unified bus bit space shared by Snapshot
// and Mask.
type Line uint8

// Bit layout of the unified bit space.
const (
	AddressShift = 0
	AddressWidth = 16
	DataShift    = AddressShift + AddressWidth
	DataWidth    = 8
	ControlShift = DataShift + DataWidth
	ControlWidth = NumSignals

	// NumLines is the number of used positions; higher bits are reserved.
	NumLines = ControlShift + ControlWidth
)

// AddressLine returns the line for address bit n.
func AddressLine(n uint) Line { return Line(AddressShift + n) }

// DataLine returns the line for data bit n.
func DataLine(n uint) Line { return Line(DataShift + n) }

// Valid reports whether l is inside the used part of the bit space.
func (l Line) Valid() bool { return l < NumLines }

// Group reports which bus the line belongs to.
func (l Line) Group() Group {
	switch {
	case l < DataShift:
		return AddressGroup
	case l < ControlShift:
		return DataGroup
	default:
		return ControlGroup
	}
}

// Bit returns the bit index of the line within its own bus.
func (l Line) Bit() uint {
	switch l.Group() {
	case AddressGroup:
		return uint(l) - AddressShift
	case DataGroup:
		return uint(l) - DataShift
	default:
		return uint(l) - ControlShift
	}
}

// Signal returns the control signal for a control line.
func (l Line) Signal() (Signal, bool) {
	if l.Group() != ControlGroup || !l.Valid() {
		return 0, false
	}
	return Signal(l.Bit()), true
}

// Drivable reports whether the line takes part in crosstalk driving.
func (l Line) Drivable() bool {
	if !l.Valid() {
		return false
	}
	if sig, ok := l.Signal(); ok {
		return sig.Drivable()
	}
	return true
}

func (l Line) String() string {
	if !l.Valid() {
		return fmt.Sprintf("RSV%d", uint8(l))
	}
	switch l.Group() {
	case AddressGroup:
		return fmt.Sprintf("A%d", l.Bit())
	case DataGroup:
		return fmt.Sprintf("D%d", l.Bit())
	default:
		return Signal(l.Bit()).String()
	}
}

// ParseLine accepts A0-A15, D0-D7 or a control signal name.
func ParseLine(name string) (Line, error) {
	if sig, ok := ParseSignal(name); ok {
		return sig.Line(), nil
	}
	if len(name) >= 2 {
		if n, err := strconv.Atoi(name[1:]); err == nil && n >= 0 {
			switch name[0] {
			case 'A', 'a':
				if n < AddressWidth {
					return AddressLine(uint(n)), nil
				}
			case 'D', 'd':
				if n < DataWidth {
					return DataLine(uint(n)), nil
				}
			}
		}
	}
	return 0, fmt.Errorf("bus: unknown line %q", name)
}

// DrivableLines returns every line that crosstalk analysis drives, in
// scan order: data first, then address, then control.
func DrivableLines() []Line {
	lines := make([]Line, 0, NumLines)
	for i := uint(0); i < DataWidth; i++ {
		lines = append(lines, DataLine(i))
	}
	for i := uint(0); i < AddressWidth; i++ {
		lines = append(lines, AddressLine(i))
	}
	for _, sig := range AllSignals() {
		if sig.Drivable() {
			lines = append(lines, sig.Line())
		}
	}
	return lines
}
