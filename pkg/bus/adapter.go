// Package bus models the expansion bus of the target machine: its address,
// data and control lines, the bit-packed snapshot used for crosstalk analysis,
// the Adapter contract every diagnostic engine talks to, and an in-memory
// simulated bus with fault injection.
package bus

import (
	"errors"
	"fmt"
)

// Adapter abstracts a physical or simulated bus-access controller attached to
// the target machine's expansion bus.
//
// Control-signal reads and writes are logical: true means the signal is
// asserted. Implementations perform the active-low inversion, so callers
// never deal with electrical levels when using Read or Write.
//
// Transport problems do not interrupt a scan. Implementations record the
// first error they hit and keep answering with zero values; callers poll Err
// at algorithm boundaries.
type Adapter interface {
	ReadData() uint8
	WriteData(v uint8)
	ConfigData(dir Direction)

	ReadAddress() uint16
	WriteAddress(v uint16)
	ConfigAddress(dir Direction)

	Read(sig Signal) bool
	Write(sig Signal, active bool)
	Config(sig Signal, dir Direction)

	// ReadMem and WriteMem access the mapped memory space through a full
	// bus cycle.
	ReadMem(addr uint16) uint8
	WriteMem(addr uint16, v uint8)

	Err() error
}

// Memory is the subset of Adapter used by the memory-test algorithms.
type Memory interface {
	ReadMem(addr uint16) uint8
	WriteMem(addr uint16, v uint8)
}

// ErrReadOnly is recorded by adapters when a caller tries to drive a
// read-only signal.
var ErrReadOnly = errors.New("bus: signal is read-only")

// ReadOnlyError wraps ErrReadOnly with the offending signal.
func ReadOnlyError(sig Signal) error {
	return fmt.Errorf("%w: %s", ErrReadOnly, sig)
}

// Level converts a logical signal state into the electrical level seen on an
// active-low line (true = high).
func Level(sig Signal, active bool) bool {
	if sig.Info().ActiveLow {
		return !active
	}
	return active
}

// Active is the inverse of Level.
func Active(sig Signal, level bool) bool {
	if sig.Info().ActiveLow {
		return !level
	}
	return level
}
