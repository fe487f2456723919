package probe

import (
	"errors"
	"testing"
	"time"

	"github.com/google/gousb"

	"github.com/OpenTraceLab/RetroBusDiag/pkg/bus"
	"github.com/OpenTraceLab/RetroBusDiag/pkg/diag"
	"github.com/OpenTraceLab/RetroBusDiag/pkg/memtest"
)

func newLoopbackAdapter(t *testing.T, sim *bus.SimAdapter) (*Adapter, *Loopback) {
	t.Helper()
	lb := NewLoopback(sim)
	a, err := New(lb, DefaultPacketSize)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a, lb
}

func TestProtocolDecodeErrors(t *testing.T) {
	p := NewProtocol(DefaultPacketSize)

	tests := []struct {
		name string
		resp []byte
	}{
		{"empty", nil},
		{"short", []byte{CmdDataRead}},
		{"wrong command", []byte{CmdAddressRead, StatusOK, 0x12}},
		{"bad status", []byte{CmdDataRead, StatusError, 0x12}},
		{"truncated", []byte{CmdDataRead, StatusOK}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.DecodeDataRead(tt.resp); err == nil {
				t.Fatalf("expected error for %v", tt.resp)
			}
		})
	}

	err := p.DecodeStatus([]byte{CmdSignalWrite, StatusReadOnly}, CmdSignalWrite)
	if !errors.Is(err, ErrStatus) {
		t.Fatalf("DecodeStatus error %v does not wrap ErrStatus", err)
	}
}

func TestProtocolAddressEncoding(t *testing.T) {
	p := NewProtocol(DefaultPacketSize)
	cmd := p.EncodeMemWrite(0x3C01, 0x5A)
	want := []byte{CmdMemWrite, 0x01, 0x3C, 0x5A}
	if string(cmd) != string(want) {
		t.Fatalf("EncodeMemWrite = % X, want % X", cmd, want)
	}
	v, err := p.DecodeAddressRead([]byte{CmdAddressRead, StatusOK, 0xEF, 0xBE})
	if err != nil || v != 0xBEEF {
		t.Fatalf("DecodeAddressRead = %04X, %v", v, err)
	}
	s, err := p.DecodeInfo([]byte{CmdInfo, StatusOK, 3, 'a', 'b', 'c'})
	if err != nil || s != "abc" {
		t.Fatalf("DecodeInfo = %q, %v", s, err)
	}
}

func TestAdapterInfo(t *testing.T) {
	a, _ := newLoopbackAdapter(t, bus.NewSimAdapter(1))
	if info := a.Info(); info.Board != "loopback" || info.Firmware != "sim" {
		t.Fatalf("Info = %+v", info)
	}
}

func TestAdapterActiveLowInversion(t *testing.T) {
	sim := bus.NewSimAdapter(1)
	a, _ := newLoopbackAdapter(t, sim)

	a.Config(bus.RD, bus.Output)
	a.Write(bus.RD, true)
	if !a.Read(bus.RD) {
		t.Fatalf("RD should read active through the adapter")
	}
	if !sim.Read(bus.RD) {
		t.Fatalf("RD should be active on the bus")
	}
	if bus.Sample(sim).Level(bus.RD.Line()) {
		t.Fatalf("active RD must be electrically low")
	}
	if err := a.Err(); err != nil {
		t.Fatalf("Err = %v", err)
	}
}

func TestAdapterBusRoundTrip(t *testing.T) {
	sim := bus.NewSimAdapter(1)
	a, _ := newLoopbackAdapter(t, sim)

	a.ConfigData(bus.Output)
	a.WriteData(0xA5)
	if got := a.ReadData(); got != 0xA5 {
		t.Fatalf("ReadData = %02X, want A5", got)
	}
	a.ConfigAddress(bus.Output)
	a.WriteAddress(0x1234)
	if got := a.ReadAddress(); got != 0x1234 {
		t.Fatalf("ReadAddress = %04X, want 1234", got)
	}
	a.WriteMem(0x4000, 0x77)
	if got := a.ReadMem(0x4000); got != 0x77 {
		t.Fatalf("ReadMem = %02X, want 77", got)
	}
	if sim.Peek(0x4000) != 0x77 {
		t.Fatalf("write did not reach the simulated memory")
	}
}

func TestAdapterRefusesReadOnly(t *testing.T) {
	a, lb := newLoopbackAdapter(t, bus.NewSimAdapter(1))
	before := lb.Requests()
	a.Write(bus.SysRes, true)
	if !errors.Is(a.Err(), bus.ErrReadOnly) {
		t.Fatalf("Err = %v, want ErrReadOnly", a.Err())
	}
	if lb.Requests() != before {
		t.Fatalf("read-only write must not reach the controller")
	}
}

func TestAdapterStickyError(t *testing.T) {
	a, lb := newLoopbackAdapter(t, bus.NewSimAdapter(1))
	lb.FailAfter = lb.Requests() + 1

	a.WriteData(1)
	if a.Err() != nil {
		t.Fatalf("first request should succeed: %v", a.Err())
	}
	if got := a.ReadData(); got != 0 {
		t.Fatalf("failed read = %02X, want 0", got)
	}
	first := a.Err()
	if !errors.Is(first, ErrStatus) {
		t.Fatalf("Err = %v, want ErrStatus", first)
	}

	served := lb.Requests()
	a.WriteMem(0, 0)
	a.ReadAddress()
	if lb.Requests() != served {
		t.Fatalf("failed adapter kept issuing requests")
	}
	if a.Err() != first {
		t.Fatalf("sticky error changed to %v", a.Err())
	}
}

func TestAdapterClosedTransport(t *testing.T) {
	a, lb := newLoopbackAdapter(t, bus.NewSimAdapter(1))
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	a.ReadData()
	if !errors.Is(a.Err(), ErrClosed) {
		t.Fatalf("Err = %v, want ErrClosed", a.Err())
	}
	if _, err := lb.WriteRead(nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("closed loopback answered: %v", err)
	}
}

func TestAdapterRunsDiagnostics(t *testing.T) {
	sim := bus.NewSimAdapter(1)
	sim.Stuck = []bus.LineFault{{Line: bus.DataLine(3), High: true}}
	a, _ := newLoopbackAdapter(t, sim)

	cfg := diag.DefaultConfig()
	cfg.ConfirmLoops = 8
	dc := diag.NewContext(a, cfg)
	dc.Sleep = func(_ time.Duration) {}

	if err := diag.Acquire(dc); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	rec := diag.VerifyDataBus(dc)
	if rec.StuckHigh != 0x08 || rec.StuckLow != 0 {
		t.Fatalf("data record = %+v, want D3 stuck high", rec)
	}

	res := memtest.New(a).WalkingOnes(0x4000, 64)
	if res.BitErrors[3] == 0 {
		t.Fatalf("walking ones missed stuck D3: %+v", res.BitErrors)
	}
	if err := diag.Release(dc); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestControllerName(t *testing.T) {
	desc := &gousb.DeviceDesc{Bus: 1, Address: 4, Vendor: DefaultVendorID, Product: DefaultProductID}
	if _, ok := controllerName(desc); !ok {
		t.Fatalf("controller not recognised")
	}
	if _, ok := controllerName(&gousb.DeviceDesc{Vendor: 0x1234, Product: 0x5678}); ok {
		t.Fatalf("unknown device classified as controller")
	}

	usb := InterfaceInfo{
		Kind:   InterfaceKindUSB,
		Name:   "RP2040 bus controller",
		ID:     [2]gousb.ID{DefaultVendorID, DefaultProductID},
		Port:   "1.4",
		Serial: "E66",
	}
	if got, want := usb.Label(), "RP2040 bus controller 2e8a:10b5 at 1.4 serial E66"; got != want {
		t.Fatalf("Label = %q, want %q", got, want)
	}
	if got := (InterfaceInfo{Kind: InterfaceKindSimulator}).Label(); got != "simulator" {
		t.Fatalf("Label = %q", got)
	}
}

func TestUSBTransportHardware(t *testing.T) {
	t.Skip("requires a bus controller on USB")
}
