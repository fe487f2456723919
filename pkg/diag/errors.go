package diag

import (
	"context"
	"errors"
	"fmt"
)

// Stage names the point of the activation protocol at which bus ownership
// could not be established or given back.
type Stage int

const (
	// StagePrecheck: TEST was already active before we touched it.
	StagePrecheck Stage = iota
	// StageActivate: driving TEST active did not take.
	StageActivate
	// StageRelease: TEST did not return to inactive; the host CPU stays
	// suspended.
	StageRelease
)

func (s Stage) String() string {
	switch s {
	case StagePrecheck:
		return "precheck"
	case StageActivate:
		return "activate"
	case StageRelease:
		return "release"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// MarshalText lets reports carry the stage name.
func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// OwnershipFault is the fatal fault class. It means the bus is unsafe to test
// any further: either another agent owns it or the host CPU would be left
// suspended.
type OwnershipFault struct {
	Stage Stage   `json:"stage"`
	Ratio float64 `json:"ratio"` // fraction of samples that agreed with the expected state

	// Err is the adapter error that left the state of TEST unknown, if any.
	Err error `json:"-"`
}

func (f *OwnershipFault) Error() string {
	var msg string
	switch f.Stage {
	case StagePrecheck:
		msg = "diag: bus ownership fault: TEST already active, another agent holds the bus"
	case StageActivate:
		msg = fmt.Sprintf("diag: bus ownership fault: TEST failed to activate (%.0f%% of samples)", f.Ratio*100)
	default:
		msg = fmt.Sprintf("diag: bus ownership fault: TEST failed to release (%.0f%% of samples), host CPU left suspended", f.Ratio*100)
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *OwnershipFault) Unwrap() error { return f.Err }

// IsFatal reports whether err carries an OwnershipFault.
func IsFatal(err error) bool {
	var f *OwnershipFault
	return errors.As(err, &f)
}

// AsOwnershipFault extracts the fault from err, if any.
func AsOwnershipFault(err error) (*OwnershipFault, bool) {
	var f *OwnershipFault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// Halt blocks until ctx ends and returns its error. Callers use it after a
// fatal ownership fault to stop all forward progress without touching the
// bus again.
func Halt(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}
