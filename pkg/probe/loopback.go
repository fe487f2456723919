package probe

import (
	"encoding/binary"
	"sync"

	"github.com/OpenTraceLab/RetroBusDiag/pkg/bus"
)

// Loopback is a Transport that answers requests the way the controller
// firmware does, against a simulated bus. It lets the whole USB command path
// run without hardware.
type Loopback struct {
	Sim  *bus.SimAdapter
	Info Info

	// FailAfter makes every request after the first n fail with ErrStatus.
	// Zero disables it.
	FailAfter int

	mu       sync.Mutex
	requests int
	closed   bool
}

// NewLoopback serves requests from sim.
func NewLoopback(sim *bus.SimAdapter) *Loopback {
	return &Loopback{
		Sim:  sim,
		Info: Info{Board: "loopback", Firmware: "sim", Serial: "0"},
	}
}

// Requests returns the number of requests served so far.
func (l *Loopback) Requests() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.requests
}

func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

func (l *Loopback) WriteRead(cmd []byte) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}
	if len(cmd) == 0 {
		return nil, ErrEmptyCommand
	}
	l.requests++
	if l.FailAfter > 0 && l.requests > l.FailAfter {
		return []byte{cmd[0], StatusError}, nil
	}
	return l.serve(cmd), nil
}

func reply(cmd byte, status byte, payload ...byte) []byte {
	return append([]byte{cmd, status}, payload...)
}

func direction(b byte) bus.Direction {
	if b != 0 {
		return bus.Output
	}
	return bus.Input
}

func (l *Loopback) serve(cmd []byte) []byte {
	id, args := cmd[0], cmd[1:]
	need := map[byte]int{
		CmdInfo: 1, CmdDataWrite: 1, CmdDataDir: 1,
		CmdAddressWrite: 2, CmdAddressDir: 1,
		CmdSignalRead: 1, CmdSignalWrite: 2, CmdSignalDir: 2,
		CmdMemRead: 2, CmdMemWrite: 3,
	}
	if len(args) < need[id] {
		return reply(id, StatusBadArg)
	}
	sim := l.Sim

	switch id {
	case CmdInfo:
		var s string
		switch args[0] {
		case InfoBoard:
			s = l.Info.Board
		case InfoFirmware:
			s = l.Info.Firmware
		case InfoSerial:
			s = l.Info.Serial
		default:
			return reply(id, StatusBadArg)
		}
		return reply(id, StatusOK, append([]byte{byte(len(s))}, s...)...)

	case CmdDataRead:
		return reply(id, StatusOK, sim.ReadData())
	case CmdDataWrite:
		sim.WriteData(args[0])
	case CmdDataDir:
		sim.ConfigData(direction(args[0]))

	case CmdAddressRead:
		out := make([]byte, 2)
		binary.LittleEndian.PutUint16(out, sim.ReadAddress())
		return reply(id, StatusOK, out...)
	case CmdAddressWrite:
		sim.WriteAddress(binary.LittleEndian.Uint16(args))
	case CmdAddressDir:
		sim.ConfigAddress(direction(args[0]))

	case CmdSignalRead, CmdSignalWrite, CmdSignalDir:
		sig := bus.Signal(args[0])
		if int(sig) >= bus.NumSignals {
			return reply(id, StatusBadArg)
		}
		switch id {
		case CmdSignalRead:
			return reply(id, StatusOK, levelByte(bus.Level(sig, sim.Read(sig))))
		case CmdSignalWrite:
			if sig.Access() == bus.ReadOnly {
				return reply(id, StatusReadOnly)
			}
			sim.Write(sig, bus.Active(sig, args[1] != 0))
		case CmdSignalDir:
			d := direction(args[1])
			if sig.Access() == bus.ReadOnly && d == bus.Output {
				return reply(id, StatusReadOnly)
			}
			sim.Config(sig, d)
		}

	case CmdMemRead:
		return reply(id, StatusOK, sim.ReadMem(binary.LittleEndian.Uint16(args)))
	case CmdMemWrite:
		sim.WriteMem(binary.LittleEndian.Uint16(args), args[2])

	default:
		return reply(id, StatusBadArg)
	}
	return reply(id, StatusOK)
}
