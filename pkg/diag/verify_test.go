package diag

import (
	"context"
	"testing"

	"github.com/OpenTraceLab/RetroBusDiag/pkg/bus"
)

func TestVerifyDataBusClean(t *testing.T) {
	sim := bus.NewSimAdapter(1)
	rec := VerifyDataBus(newTestContext(sim))
	if rec.HasIssues() {
		t.Fatalf("clean bus reported %+v", rec)
	}
	if rec.Width != 8 || rec.Bus != bus.DataGroup {
		t.Fatalf("unexpected record header %+v", rec)
	}
}

func TestVerifyDataBusStuckHigh(t *testing.T) {
	sim := bus.NewSimAdapter(1)
	sim.Stuck = []bus.LineFault{{Line: bus.DataLine(3), High: true}}

	rec := VerifyDataBus(newTestContext(sim))
	if rec.StuckHigh != 1<<3 {
		t.Fatalf("StuckHigh = %08b, want bit 3", rec.StuckHigh)
	}
	if rec.StuckLow != 0 {
		t.Fatalf("StuckLow = %08b, want 0", rec.StuckLow)
	}
}

func TestVerifyDataBusIntermittentHigh(t *testing.T) {
	sim := bus.NewSimAdapter(3)
	sim.Stuck = []bus.LineFault{{Line: bus.DataLine(3), High: true, Duty: 0.5}}

	rec := VerifyDataBus(newTestContext(sim))
	if rec.HasIssues() {
		t.Fatalf("intermittent glitch confirmed as stuck: %+v", rec)
	}
}

func TestVerifyDataBusStuckLow(t *testing.T) {
	sim := bus.NewSimAdapter(1)
	sim.Stuck = []bus.LineFault{{Line: bus.DataLine(5), High: false}}

	rec := VerifyDataBus(newTestContext(sim))
	if rec.StuckLow != 1<<5 || rec.StuckHigh != 0 {
		t.Fatalf("record = %+v, want stuck-low bit 5 only", rec)
	}
	high, low := rec.Lines()
	if !high.Empty() || low != bus.LineMask(bus.DataLine(5)) {
		t.Fatalf("Lines = %s / %s", high, low)
	}
}

func TestVerifyDataBusLeavesBusFloating(t *testing.T) {
	sim := bus.NewSimAdapter(1)
	VerifyDataBus(newTestContext(sim))
	if got := bus.Sample(sim).Data(); got != 0 {
		t.Fatalf("data bus left at %02X", got)
	}
}

func TestVerifyAddressBus(t *testing.T) {
	sim := bus.NewSimAdapter(1)
	sim.Stuck = []bus.LineFault{
		{Line: bus.AddressLine(12), High: true},
		{Line: bus.AddressLine(0), High: false},
	}

	rec := VerifyAddressBus(newTestContext(sim))
	if rec.StuckHigh != 1<<12 {
		t.Fatalf("StuckHigh = %016b, want bit 12", rec.StuckHigh)
	}
	if rec.StuckLow != 1 {
		t.Fatalf("StuckLow = %016b, want bit 0", rec.StuckLow)
	}
}

func TestVerifyControl(t *testing.T) {
	tests := []struct {
		name     string
		fault    bus.LineFault
		wantHigh uint16
		wantLow  uint16
	}{
		{"clean", bus.LineFault{Line: bus.Line(99)}, 0, 0},
		{"RD stuck high", bus.LineFault{Line: bus.RD.Line(), High: true}, 1 << bus.RD, 0},
		{"CAS stuck low", bus.LineFault{Line: bus.CAS.Line(), High: false}, 0, 1 << bus.CAS},
		{"WAIT stuck low", bus.LineFault{Line: bus.WAIT.Line(), High: false}, 0, 1 << bus.WAIT},
		{"SYS_RES asserted", bus.LineFault{Line: bus.SysRes.Line(), High: false}, 0, 1 << bus.SysRes},
		{"TEST excluded", bus.LineFault{Line: bus.TEST.Line(), High: false}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := bus.NewSimAdapter(1)
			sim.Stuck = []bus.LineFault{tt.fault}

			rec := VerifyControl(newTestContext(sim))
			if rec.StuckHigh != tt.wantHigh || rec.StuckLow != tt.wantLow {
				t.Fatalf("record = high %012b low %012b, want high %012b low %012b",
					rec.StuckHigh, rec.StuckLow, tt.wantHigh, tt.wantLow)
			}
			if err := sim.Err(); err != nil {
				t.Fatalf("adapter error: %v", err)
			}
		})
	}
}

func TestOutputsEnabledWithLevelLatched(t *testing.T) {
	c := newLatchCheck(bus.NewSimAdapter(1))
	dc := newTestContext(c)

	if err := Acquire(dc); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	VerifyDataBus(dc)
	VerifyAddressBus(dc)
	VerifyControl(dc)
	if _, err := DetectCrosstalk(context.Background(), dc, nil); err != nil {
		t.Fatalf("DetectCrosstalk: %v", err)
	}
	if err := Release(dc); err != nil {
		t.Fatalf("Release: %v", err)
	}

	for _, v := range c.violations {
		t.Errorf("%s", v)
	}
}
