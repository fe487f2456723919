package suite

import (
	"fmt"
	"time"

	"github.com/OpenTraceLab/RetroBusDiag/pkg/memtest"
)

// Kind identifies a memory-test algorithm.
type Kind int

const (
	RepeatedWrite Kind = iota
	RepeatedRead
	Checkerboard
	WalkingOnes
	WalkingZeros
	MarchCMinus
	MarchSS
	MarchLA
	MovingInversion
	Retention
	ReadDestructive
	AddressUniqueness
)

var kindNames = [...]string{
	RepeatedWrite:     "RepeatedWrite",
	RepeatedRead:      "RepeatedRead",
	Checkerboard:      "Checkerboard",
	WalkingOnes:       "WalkingOnes",
	WalkingZeros:      "WalkingZeros",
	MarchCMinus:       "MarchC-",
	MarchSS:           "MarchSS",
	MarchLA:           "MarchLA",
	MovingInversion:   "MovingInversion",
	Retention:         "Retention",
	ReadDestructive:   "ReadDestructive",
	AddressUniqueness: "AddressUniqueness",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MarshalText lets reports carry the algorithm name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Step is one algorithm call with its parameters. Fields an algorithm does
// not use are ignored.
type Step struct {
	Kind    Kind
	Pattern uint8         // RepeatedWrite, RepeatedRead, MovingInversion, Retention, ReadDestructive; XOR mask for AddressUniqueness
	Toggle  bool          // RepeatedWrite inverts odd cells; Checkerboard starts with 0xAA
	Delay   time.Duration // Retention
	Repeat  int           // Retention
	Reads   int           // ReadDestructive
}

// Name renders the step with its parameters, e.g. "MovingInversion(0x55)".
func (s Step) Name() string {
	switch s.Kind {
	case RepeatedWrite:
		if s.Toggle {
			return fmt.Sprintf("%s(0x%02X, toggle)", s.Kind, s.Pattern)
		}
		return fmt.Sprintf("%s(0x%02X)", s.Kind, s.Pattern)
	case RepeatedRead, MovingInversion, AddressUniqueness:
		return fmt.Sprintf("%s(0x%02X)", s.Kind, s.Pattern)
	case Checkerboard:
		if s.Toggle {
			return fmt.Sprintf("%s(0xAA)", s.Kind)
		}
		return fmt.Sprintf("%s(0x55)", s.Kind)
	case Retention:
		return fmt.Sprintf("%s(0x%02X, %v x%d)", s.Kind, s.Pattern, s.Delay, s.Repeat)
	case ReadDestructive:
		return fmt.Sprintf("%s(0x%02X, %d reads)", s.Kind, s.Pattern, s.Reads)
	default:
		return s.Kind.String()
	}
}

// Run executes the step on the region.
func (s Step) Run(t *memtest.Tester, r Region) memtest.Result {
	start, n := r.Start, r.Length
	switch s.Kind {
	case RepeatedWrite:
		return t.RepeatedWrite(start, n, s.Pattern, s.Toggle)
	case RepeatedRead:
		return t.RepeatedRead(start, n, s.Pattern)
	case Checkerboard:
		return t.Checkerboard(start, n, s.Toggle)
	case WalkingOnes:
		return t.WalkingOnes(start, n)
	case WalkingZeros:
		return t.WalkingZeros(start, n)
	case MarchCMinus:
		return t.MarchCMinus(start, n)
	case MarchSS:
		return t.MarchSS(start, n)
	case MarchLA:
		return t.MarchLA(start, n)
	case MovingInversion:
		return t.MovingInversion(start, n, s.Pattern)
	case Retention:
		return t.Retention(start, n, s.Pattern, s.Delay, s.Repeat)
	case ReadDestructive:
		return t.ReadDestructive(start, n, s.Pattern, s.Reads)
	case AddressUniqueness:
		return t.AddressUniqueness(start, n, s.Pattern)
	}
	return memtest.Result{}
}

// Options tunes the timing-dependent steps of the default sequence.
type Options struct {
	RetentionDelay   time.Duration // Wait per retention repeat (default: 100ms)
	RetentionRepeat  int           // Number of retention waits (default: 10)
	DestructiveReads int           // Reads per cell in ReadDestructive (default: 10)
}

// DefaultOptions returns the retention and read-destructive settings used on
// 4116-class DRAM.
func DefaultOptions() Options {
	return Options{
		RetentionDelay:   100 * time.Millisecond,
		RetentionRepeat:  10,
		DestructiveReads: 10,
	}
}

// DefaultSequence returns the full 19-call test sequence.
func DefaultSequence(opts Options) []Step {
	return []Step{
		{Kind: RepeatedWrite, Pattern: 0x00},
		{Kind: RepeatedWrite, Pattern: 0xFF},
		{Kind: RepeatedWrite, Pattern: 0x55, Toggle: true},
		{Kind: RepeatedRead, Pattern: 0xAA},
		{Kind: Checkerboard},
		{Kind: Checkerboard, Toggle: true},
		{Kind: WalkingOnes},
		{Kind: WalkingZeros},
		{Kind: MarchCMinus},
		{Kind: MarchSS},
		{Kind: MarchLA},
		{Kind: MovingInversion, Pattern: 0x00},
		{Kind: MovingInversion, Pattern: 0x55},
		{Kind: MovingInversion, Pattern: 0xFF},
		{Kind: Retention, Pattern: 0x55, Delay: opts.RetentionDelay, Repeat: opts.RetentionRepeat},
		{Kind: Retention, Pattern: 0xAA, Delay: opts.RetentionDelay, Repeat: opts.RetentionRepeat},
		{Kind: ReadDestructive, Pattern: 0x55, Reads: opts.DestructiveReads},
		{Kind: AddressUniqueness, Pattern: 0x00},
		{Kind: AddressUniqueness, Pattern: 0xFF},
	}
}

// QuickSequence is a short smoke test: one march, both walking passes and
// address uniqueness.
func QuickSequence() []Step {
	return []Step{
		{Kind: WalkingOnes},
		{Kind: WalkingZeros},
		{Kind: MarchCMinus},
		{Kind: AddressUniqueness, Pattern: 0x00},
	}
}
