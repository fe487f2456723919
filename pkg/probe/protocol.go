package probe

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/OpenTraceLab/RetroBusDiag/pkg/bus"
)

// Command IDs. Every response echoes the command byte followed by a status
// byte and the command's payload.
const (
	CmdInfo = 0x00

	CmdDataRead  = 0x10
	CmdDataWrite = 0x11
	CmdDataDir   = 0x12

	CmdAddressRead  = 0x20
	CmdAddressWrite = 0x21
	CmdAddressDir   = 0x22

	CmdSignalRead  = 0x30
	CmdSignalWrite = 0x31
	CmdSignalDir   = 0x32

	CmdMemRead  = 0x40
	CmdMemWrite = 0x41
)

// Info IDs
const (
	InfoFirmware = 0x01
	InfoSerial   = 0x02
	InfoBoard    = 0x03
)

// Status codes
const (
	StatusOK       = 0x00
	StatusReadOnly = 0x01
	StatusBadArg   = 0x02
	StatusError    = 0xFF
)

var (
	// ErrStatus is the cause of every error built from a non-OK status byte.
	ErrStatus = errors.New("probe: controller reported failure")

	ErrClosed       = errors.New("probe: transport closed")
	ErrEmptyCommand = errors.New("probe: empty command")
)

// Protocol encodes requests and decodes responses of the controller's
// command set. Levels on the wire are electrical: true means high.
type Protocol struct {
	PacketSize int
}

// NewProtocol creates a codec for the given packet size.
func NewProtocol(packetSize int) *Protocol {
	return &Protocol{PacketSize: packetSize}
}

func dirByte(d bus.Direction) byte {
	if d == bus.Output {
		return 1
	}
	return 0
}

func levelByte(high bool) byte {
	if high {
		return 1
	}
	return 0
}

// payload validates the response header and returns at least n payload bytes.
func (p *Protocol) payload(resp []byte, cmd byte, n int) ([]byte, error) {
	if len(resp) < 2 {
		return nil, errors.Errorf("probe: response to 0x%02X too short", cmd)
	}
	if resp[0] != cmd {
		return nil, errors.Errorf("probe: invalid command ID 0x%02X, want 0x%02X", resp[0], cmd)
	}
	switch resp[1] {
	case StatusOK:
	case StatusReadOnly:
		return nil, errors.Wrapf(ErrStatus, "command 0x%02X: read-only signal", cmd)
	case StatusBadArg:
		return nil, errors.Wrapf(ErrStatus, "command 0x%02X: bad argument", cmd)
	default:
		return nil, errors.Wrapf(ErrStatus, "command 0x%02X: status 0x%02X", cmd, resp[1])
	}
	if len(resp) < 2+n {
		return nil, errors.Errorf("probe: response to 0x%02X truncated", cmd)
	}
	return resp[2:], nil
}

// EncodeInfo builds an info query.
func (p *Protocol) EncodeInfo(id byte) []byte {
	return []byte{CmdInfo, id}
}

// DecodeInfo returns the length-prefixed info string.
func (p *Protocol) DecodeInfo(resp []byte) (string, error) {
	pl, err := p.payload(resp, CmdInfo, 1)
	if err != nil {
		return "", err
	}
	n := int(pl[0])
	if len(pl) < 1+n {
		return "", errors.New("probe: incomplete info string")
	}
	return string(pl[1 : 1+n]), nil
}

func (p *Protocol) EncodeDataRead() []byte { return []byte{CmdDataRead} }

func (p *Protocol) DecodeDataRead(resp []byte) (uint8, error) {
	pl, err := p.payload(resp, CmdDataRead, 1)
	if err != nil {
		return 0, err
	}
	return pl[0], nil
}

func (p *Protocol) EncodeDataWrite(v uint8) []byte { return []byte{CmdDataWrite, v} }

func (p *Protocol) EncodeDataDir(d bus.Direction) []byte {
	return []byte{CmdDataDir, dirByte(d)}
}

func (p *Protocol) EncodeAddressRead() []byte { return []byte{CmdAddressRead} }

func (p *Protocol) DecodeAddressRead(resp []byte) (uint16, error) {
	pl, err := p.payload(resp, CmdAddressRead, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(pl), nil
}

func (p *Protocol) EncodeAddressWrite(v uint16) []byte {
	cmd := []byte{CmdAddressWrite, 0, 0}
	binary.LittleEndian.PutUint16(cmd[1:], v)
	return cmd
}

func (p *Protocol) EncodeAddressDir(d bus.Direction) []byte {
	return []byte{CmdAddressDir, dirByte(d)}
}

func (p *Protocol) EncodeSignalRead(sig bus.Signal) []byte {
	return []byte{CmdSignalRead, byte(sig)}
}

// DecodeSignalRead returns the electrical level of the signal.
func (p *Protocol) DecodeSignalRead(resp []byte) (bool, error) {
	pl, err := p.payload(resp, CmdSignalRead, 1)
	if err != nil {
		return false, err
	}
	return pl[0] != 0, nil
}

// EncodeSignalWrite drives sig to an electrical level.
func (p *Protocol) EncodeSignalWrite(sig bus.Signal, high bool) []byte {
	return []byte{CmdSignalWrite, byte(sig), levelByte(high)}
}

func (p *Protocol) EncodeSignalDir(sig bus.Signal, d bus.Direction) []byte {
	return []byte{CmdSignalDir, byte(sig), dirByte(d)}
}

func (p *Protocol) EncodeMemRead(addr uint16) []byte {
	cmd := []byte{CmdMemRead, 0, 0}
	binary.LittleEndian.PutUint16(cmd[1:], addr)
	return cmd
}

func (p *Protocol) DecodeMemRead(resp []byte) (uint8, error) {
	pl, err := p.payload(resp, CmdMemRead, 1)
	if err != nil {
		return 0, err
	}
	return pl[0], nil
}

func (p *Protocol) EncodeMemWrite(addr uint16, v uint8) []byte {
	cmd := []byte{CmdMemWrite, 0, 0, v}
	binary.LittleEndian.PutUint16(cmd[1:], addr)
	return cmd
}

// DecodeStatus checks the header of a response that carries no payload.
func (p *Protocol) DecodeStatus(resp []byte, cmd byte) error {
	_, err := p.payload(resp, cmd, 0)
	return err
}
