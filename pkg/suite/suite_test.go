package suite

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/OpenTraceLab/RetroBusDiag/pkg/bus"
	"github.com/OpenTraceLab/RetroBusDiag/pkg/diag"
)

var dram = Region{
	Name:   "DRAM",
	Start:  0x4000,
	Length: 16384,
	ICRefs: [8]string{"Z17", "Z16", "Z18", "Z19", "Z15", "Z20", "Z14", "Z13"},
}

func newTestContext(a bus.Adapter) *diag.Context {
	log := logrus.New()
	log.SetOutput(io.Discard)

	dc := diag.NewContext(a, diag.DefaultConfig())
	dc.Log = log
	dc.Sleep = func(time.Duration) {}
	return dc
}

func TestDefaultSequence(t *testing.T) {
	steps := DefaultSequence(DefaultOptions())
	if len(steps) != 19 {
		t.Fatalf("got %d steps, want 19", len(steps))
	}

	names := make(map[string]bool)
	inversions := 0
	for _, s := range steps {
		if names[s.Name()] {
			t.Errorf("duplicate step %s", s.Name())
		}
		names[s.Name()] = true
		if s.Kind == MovingInversion {
			inversions++
		}
	}
	if inversions != 3 {
		t.Fatalf("got %d MovingInversion variants, want 3", inversions)
	}

	kinds := make(map[Kind]bool)
	for _, s := range steps {
		kinds[s.Kind] = true
	}
	for k := RepeatedWrite; k <= AddressUniqueness; k++ {
		if !kinds[k] {
			t.Errorf("sequence never runs %s", k)
		}
	}
}

func TestStepNames(t *testing.T) {
	cases := map[string]Step{
		"RepeatedWrite(0x55, toggle)":     {Kind: RepeatedWrite, Pattern: 0x55, Toggle: true},
		"MarchC-":                         {Kind: MarchCMinus},
		"MovingInversion(0xFF)":           {Kind: MovingInversion, Pattern: 0xFF},
		"Checkerboard(0xAA)":              {Kind: Checkerboard, Toggle: true},
		"ReadDestructive(0x55, 10 reads)": {Kind: ReadDestructive, Pattern: 0x55, Reads: 10},
		"Retention(0xAA, 100ms x10)":      {Kind: Retention, Pattern: 0xAA, Delay: 100 * time.Millisecond, Repeat: 10},
	}
	for want, s := range cases {
		if got := s.Name(); got != want {
			t.Errorf("Name() = %q, want %q", got, want)
		}
	}
}

func TestRegionValidate(t *testing.T) {
	if err := dram.Validate(); err != nil {
		t.Fatalf("DRAM region invalid: %v", err)
	}
	if err := (Region{Name: "empty", Start: 0x4000}).Validate(); err == nil {
		t.Fatalf("expected error for empty region")
	}
	if err := (Region{Name: "big", Start: 0xC000, Length: 0x8000}).Validate(); err == nil {
		t.Fatalf("expected error for region past 64K")
	}
	if err := (Region{Name: "top", Start: 0xC000, Length: 0x4000}).Validate(); err != nil {
		t.Fatalf("region ending at 0xFFFF rejected: %v", err)
	}
	if got := (Region{}).Chip(3); got != "bit 3" {
		t.Fatalf("Chip(3) = %q", got)
	}
}

func TestRunSuiteFaultFree(t *testing.T) {
	sim := bus.NewSimAdapter(1)
	res, err := RunSuite(context.Background(), newTestContext(sim), dram, nil, nil)
	if err != nil {
		t.Fatalf("RunSuite: %v", err)
	}
	if len(res.Runs) != 19 {
		t.Fatalf("got %d runs, want 19", len(res.Runs))
	}
	if res.TotalErrors != 0 {
		t.Fatalf("fault-free region: total_errors = %d", res.TotalErrors)
	}
	if chips := res.FailingChips(); len(chips) != 0 {
		t.Fatalf("fault-free region blamed %v", chips)
	}
	if _, ok := res.FirstFailure(); ok {
		t.Fatalf("fault-free region has a failing run")
	}
}

func TestRunSuiteStuckBit(t *testing.T) {
	sim := bus.NewSimAdapter(1)
	sim.MemFaults = []bus.MemFault{{Bit: 5, High: false}}

	res, err := RunSuite(context.Background(), newTestContext(sim), dram, nil, nil)
	if err != nil {
		t.Fatalf("RunSuite: %v", err)
	}
	for b, n := range res.BitErrors {
		if b == 5 && n == 0 {
			t.Fatalf("bit 5 stuck-at-0 not detected")
		}
		if b != 5 && n != 0 {
			t.Fatalf("bit %d has %d errors, want 0", b, n)
		}
	}

	chips := res.FailingChips()
	if len(chips) != 1 || chips[0] != "Z20" {
		t.Fatalf("failing chips = %v, want [Z20]", chips)
	}
	first, ok := res.FirstFailure()
	if !ok || first.Kind != RepeatedWrite {
		t.Fatalf("first failure = %+v", first)
	}
	if res.FailingCells() != uint(dram.Length) {
		t.Fatalf("failing cells = %d, want %d", res.FailingCells(), dram.Length)
	}
}

func TestRunSuiteCancelBetweenSteps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	region := Region{Name: "VRAM", Start: 0x3C00, Length: 1024}
	sim := bus.NewSimAdapter(1)
	writes := 0
	sim.OnMemAccess = func(op bus.MemOp, _ uint16, _ uint8) {
		if op == bus.MemWrite {
			writes++
			cancel()
		}
	}

	res, err := RunSuite(ctx, newTestContext(sim), region, nil, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(res.Runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(res.Runs))
	}
	// RepeatedWrite writes every cell five times; it must not be cut short.
	if writes != 5*1024 {
		t.Fatalf("first step issued %d writes, want %d", writes, 5*1024)
	}
}

type failingAdapter struct {
	*bus.SimAdapter
	err error
}

func (f *failingAdapter) Err() error { return f.err }

func TestRunSuiteAdapterError(t *testing.T) {
	a := &failingAdapter{SimAdapter: bus.NewSimAdapter(1), err: errors.New("usb: device gone")}
	region := Region{Name: "VRAM", Start: 0x3C00, Length: 64}

	res, err := RunSuite(context.Background(), newTestContext(a), region, QuickSequence(), nil)
	if err == nil {
		t.Fatalf("expected adapter error")
	}
	if len(res.Runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(res.Runs))
	}
}

func TestRunSuiteProgress(t *testing.T) {
	progress := make(chan diag.Progress, 16)
	region := Region{Name: "VRAM", Start: 0x3C00, Length: 64}

	_, err := RunSuite(context.Background(), newTestContext(bus.NewSimAdapter(1)), region, QuickSequence(), progress)
	if err != nil {
		t.Fatalf("RunSuite: %v", err)
	}
	close(progress)

	last := -1
	count := 0
	for p := range progress {
		if p.Percent < last {
			t.Fatalf("progress went backwards: %d -> %d", last, p.Percent)
		}
		last = p.Percent
		count++
	}
	if count != len(QuickSequence())+2 || last != 100 {
		t.Fatalf("got %d updates ending at %d", count, last)
	}
}
