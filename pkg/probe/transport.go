package probe

import (
	"context"
	"time"

	"github.com/google/gousb"
	"github.com/pkg/errors"
)

const (
	// Default USB identifiers of the bus controller firmware.
	DefaultVendorID  = 0x2E8A
	DefaultProductID = 0x10B5

	DefaultPacketSize = 64
	DefaultTimeout    = 2 * time.Second
)

// Transport carries one request packet to the controller and returns its
// response packet.
type Transport interface {
	WriteRead(cmd []byte) ([]byte, error)
	Close() error
}

// USBTransport talks to the controller over a pair of bulk endpoints on its
// vendor-specific interface.
type USBTransport struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface

	epOut *gousb.OutEndpoint
	epIn  *gousb.InEndpoint

	packetSize int
	timeout    time.Duration
}

// NewUSBTransport opens the first device matching vid:pid.
func NewUSBTransport(vid, pid uint16) (*USBTransport, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		ctx.Close()
		return nil, errors.Wrapf(err, "probe: open %04X:%04X", vid, pid)
	}
	if dev == nil {
		ctx.Close()
		return nil, errors.Errorf("probe: device %04X:%04X not found", vid, pid)
	}

	// Not supported everywhere; the claim below reports real problems.
	_ = dev.SetAutoDetach(true)

	t := &USBTransport{
		ctx:        ctx,
		dev:        dev,
		packetSize: DefaultPacketSize,
		timeout:    DefaultTimeout,
	}
	if err := t.claimInterface(); err != nil {
		dev.Close()
		ctx.Close()
		return nil, err
	}
	return t, nil
}

func (t *USBTransport) claimInterface() error {
	cfgNum, err := t.dev.ActiveConfigNum()
	if err != nil {
		cfgNum = 1
	}
	cfg, err := t.dev.Config(cfgNum)
	if err != nil {
		return errors.Wrapf(err, "probe: config %d", cfgNum)
	}

	num := 0
	for _, intf := range cfg.Desc.Interfaces {
		if len(intf.AltSettings) > 0 && intf.AltSettings[0].Class == gousb.ClassVendorSpec {
			num = intf.Number
			break
		}
	}

	intf, err := cfg.Interface(num, 0)
	if err != nil {
		cfg.Close()
		return errors.Wrapf(err, "probe: claim interface %d", num)
	}
	t.cfg = cfg
	t.intf = intf

	if err := t.findEndpoints(); err != nil {
		intf.Close()
		cfg.Close()
		return err
	}
	return nil
}

func (t *USBTransport) findEndpoints() error {
	outAddr, inAddr := -1, -1
	for _, ep := range t.intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		switch {
		case ep.Direction == gousb.EndpointDirectionOut && outAddr < 0:
			outAddr = ep.Number
		case ep.Direction == gousb.EndpointDirectionIn && inAddr < 0:
			inAddr = ep.Number
			t.packetSize = ep.MaxPacketSize
		}
	}
	if outAddr < 0 {
		return errors.New("probe: bulk OUT endpoint not found")
	}
	if inAddr < 0 {
		return errors.New("probe: bulk IN endpoint not found")
	}

	epOut, err := t.intf.OutEndpoint(outAddr)
	if err != nil {
		return errors.Wrap(err, "probe: open OUT endpoint")
	}
	epIn, err := t.intf.InEndpoint(inAddr)
	if err != nil {
		return errors.Wrap(err, "probe: open IN endpoint")
	}
	t.epOut, t.epIn = epOut, epIn
	return nil
}

// PacketSize reports the maximum packet size of the IN endpoint.
func (t *USBTransport) PacketSize() int { return t.packetSize }

// WriteRead sends cmd, padded to the packet size, and reads one response.
func (t *USBTransport) WriteRead(cmd []byte) ([]byte, error) {
	if len(cmd) > t.packetSize {
		return nil, errors.Errorf("probe: command of %d bytes exceeds packet size %d", len(cmd), t.packetSize)
	}
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	packet := make([]byte, t.packetSize)
	copy(packet, cmd)
	if _, err := t.epOut.WriteContext(ctx, packet); err != nil {
		return nil, errors.Wrapf(err, "probe: write command 0x%02X", cmd[0])
	}

	resp := make([]byte, t.packetSize)
	n, err := t.epIn.ReadContext(ctx, resp)
	if err != nil {
		return nil, errors.Wrapf(err, "probe: read response to 0x%02X", cmd[0])
	}
	return resp[:n], nil
}

// Close releases the interface and the USB context.
func (t *USBTransport) Close() error {
	if t.intf != nil {
		t.intf.Close()
	}
	if t.cfg != nil {
		t.cfg.Close()
	}
	var err error
	if t.dev != nil {
		err = t.dev.Close()
	}
	if t.ctx != nil {
		if cerr := t.ctx.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
