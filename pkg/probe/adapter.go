// Package probe implements bus.Adapter on top of a USB bus controller
// plugged into the target machine's expansion connector.
package probe

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/OpenTraceLab/RetroBusDiag/pkg/bus"
)

// Info describes the controller firmware.
type Info struct {
	Board    string
	Firmware string
	Serial   string
}

func (i Info) String() string {
	return fmt.Sprintf("%s (firmware %s, serial %s)", i.Board, i.Firmware, i.Serial)
}

// Adapter drives the bus through a Transport. Control signals are inverted
// here; the controller only sees electrical levels.
//
// After the first transport or protocol failure the adapter stops issuing
// transactions, answers with zero values and reports the failure from Err.
type Adapter struct {
	transport Transport
	protocol  *Protocol
	info      Info

	mu  sync.Mutex
	err error
}

// Open connects to a USB controller.
func Open(vid, pid uint16) (*Adapter, error) {
	t, err := NewUSBTransport(vid, pid)
	if err != nil {
		return nil, err
	}
	a, err := New(t, t.PacketSize())
	if err != nil {
		t.Close()
		return nil, err
	}
	return a, nil
}

// New wraps an open transport and queries the controller's identity.
func New(t Transport, packetSize int) (*Adapter, error) {
	a := &Adapter{
		transport: t,
		protocol:  NewProtocol(packetSize),
	}
	if err := a.queryInfo(); err != nil {
		return nil, errors.Wrap(err, "probe: query info")
	}
	return a, nil
}

func (a *Adapter) queryInfo() error {
	fields := []struct {
		id  byte
		dst *string
	}{
		{InfoBoard, &a.info.Board},
		{InfoFirmware, &a.info.Firmware},
		{InfoSerial, &a.info.Serial},
	}
	for _, f := range fields {
		resp, err := a.transport.WriteRead(a.protocol.EncodeInfo(f.id))
		if err != nil {
			return err
		}
		s, err := a.protocol.DecodeInfo(resp)
		if err != nil {
			return err
		}
		*f.dst = s
	}
	return nil
}

// Info returns the identity read when the adapter was created.
func (a *Adapter) Info() Info { return a.info }

// Close closes the transport.
func (a *Adapter) Close() error { return a.transport.Close() }

func (a *Adapter) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

func (a *Adapter) fail(err error) {
	if a.err == nil {
		a.err = err
	}
}

// transact runs one request. Callers hold mu.
func (a *Adapter) transact(cmd []byte) []byte {
	if a.err != nil {
		return nil
	}
	resp, err := a.transport.WriteRead(cmd)
	if err != nil {
		a.fail(err)
		return nil
	}
	return resp
}

func (a *Adapter) command(cmd []byte) {
	resp := a.transact(cmd)
	if resp == nil {
		return
	}
	if err := a.protocol.DecodeStatus(resp, cmd[0]); err != nil {
		a.fail(err)
	}
}

func (a *Adapter) ReadData() uint8 {
	a.mu.Lock()
	defer a.mu.Unlock()
	resp := a.transact(a.protocol.EncodeDataRead())
	if resp == nil {
		return 0
	}
	v, err := a.protocol.DecodeDataRead(resp)
	if err != nil {
		a.fail(err)
	}
	return v
}

func (a *Adapter) WriteData(v uint8) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.command(a.protocol.EncodeDataWrite(v))
}

func (a *Adapter) ConfigData(dir bus.Direction) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.command(a.protocol.EncodeDataDir(dir))
}

func (a *Adapter) ReadAddress() uint16 {
	a.mu.Lock()
	defer a.mu.Unlock()
	resp := a.transact(a.protocol.EncodeAddressRead())
	if resp == nil {
		return 0
	}
	v, err := a.protocol.DecodeAddressRead(resp)
	if err != nil {
		a.fail(err)
	}
	return v
}

func (a *Adapter) WriteAddress(v uint16) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.command(a.protocol.EncodeAddressWrite(v))
}

func (a *Adapter) ConfigAddress(dir bus.Direction) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.command(a.protocol.EncodeAddressDir(dir))
}

// Read returns the logical state of sig. A failed adapter reports inactive.
func (a *Adapter) Read(sig bus.Signal) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if int(sig) >= bus.NumSignals {
		a.fail(errors.Errorf("probe: unknown signal %d", sig))
		return false
	}
	resp := a.transact(a.protocol.EncodeSignalRead(sig))
	if resp == nil {
		return false
	}
	high, err := a.protocol.DecodeSignalRead(resp)
	if err != nil {
		a.fail(err)
		return false
	}
	return bus.Active(sig, high)
}

func (a *Adapter) Write(sig bus.Signal, active bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if int(sig) >= bus.NumSignals {
		a.fail(errors.Errorf("probe: unknown signal %d", sig))
		return
	}
	if sig.Access() == bus.ReadOnly {
		a.fail(bus.ReadOnlyError(sig))
		return
	}
	a.command(a.protocol.EncodeSignalWrite(sig, bus.Level(sig, active)))
}

func (a *Adapter) Config(sig bus.Signal, dir bus.Direction) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if int(sig) >= bus.NumSignals {
		a.fail(errors.Errorf("probe: unknown signal %d", sig))
		return
	}
	if sig.Access() == bus.ReadOnly && dir == bus.Output {
		a.fail(bus.ReadOnlyError(sig))
		return
	}
	a.command(a.protocol.EncodeSignalDir(sig, dir))
}

func (a *Adapter) ReadMem(addr uint16) uint8 {
	a.mu.Lock()
	defer a.mu.Unlock()
	resp := a.transact(a.protocol.EncodeMemRead(addr))
	if resp == nil {
		return 0
	}
	v, err := a.protocol.DecodeMemRead(resp)
	if err != nil {
		a.fail(errors.WithMessagef(err, "address 0x%04X", addr))
	}
	return v
}

func (a *Adapter) WriteMem(addr uint16, v uint8) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.command(a.protocol.EncodeMemWrite(addr, v))
}

var _ bus.Adapter = (*Adapter)(nil)
