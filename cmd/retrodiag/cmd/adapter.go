package cmd

import (
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/RetroBusDiag/pkg/bus"
	"github.com/OpenTraceLab/RetroBusDiag/pkg/probe"
)

var (
	// Adapter selection
	adapterType string
	usbVID      uint16
	usbPID      uint16

	// Simulator fault injection
	simSeed     int64
	simStuck    []string
	simShort    []string
	simMemStuck []string
	simHeld     bool
)

func addAdapterFlags(c *cobra.Command) {
	f := c.PersistentFlags()
	f.StringVarP(&adapterType, "adapter", "a", "simulator",
		"bus adapter type (simulator, loopback, usb)")
	f.Uint16Var(&usbVID, "vid", probe.DefaultVendorID, "USB vendor ID of the bus controller")
	f.Uint16Var(&usbPID, "pid", probe.DefaultProductID, "USB product ID of the bus controller")

	f.Int64Var(&simSeed, "sim-seed", 1, "simulator: random seed for intermittent faults")
	f.StringArrayVar(&simStuck, "sim-stuck", nil,
		"simulator: stuck line LINE=0|1[@duty], e.g. D3=1 or A7=0@0.5")
	f.StringArrayVar(&simShort, "sim-short", nil,
		"simulator: shorted lines A:B[@duty], e.g. A4:D2")
	f.StringArrayVar(&simMemStuck, "sim-mem-stuck", nil,
		"simulator: stuck RAM data bit BIT=0|1[@duty], e.g. 5=0")
	f.BoolVar(&simHeld, "sim-held", false,
		"simulator: another agent already holds TEST")
}

// createAdapter opens the selected adapter. The returned close function is
// never nil.
func createAdapter() (bus.Adapter, func() error, error) {
	noop := func() error { return nil }

	switch adapterType {
	case "simulator", "sim":
		sim, err := newSimulator()
		if err != nil {
			return nil, noop, err
		}
		log.Debug("using simulator adapter")
		return sim, noop, nil

	case "loopback":
		sim, err := newSimulator()
		if err != nil {
			return nil, noop, err
		}
		a, err := probe.New(probe.NewLoopback(sim), probe.DefaultPacketSize)
		if err != nil {
			return nil, noop, err
		}
		log.WithField("controller", a.Info().String()).Debug("using loopback controller")
		return a, a.Close, nil

	case "usb":
		a, err := probe.Open(usbVID, usbPID)
		if err != nil {
			return nil, noop, err
		}
		if verbose {
			fmt.Printf("Controller: %s\n", a.Info())
		}
		return a, a.Close, nil

	default:
		return nil, noop, fmt.Errorf("unknown adapter type %q (want simulator, loopback or usb)", adapterType)
	}
}

// newSimulator builds a simulated bus with the faults given on the command
// line.
func newSimulator() (*bus.SimAdapter, error) {
	sim := bus.NewSimAdapter(simSeed)

	for _, spec := range simStuck {
		name, high, duty, err := parseAssignment(spec)
		if err != nil {
			return nil, fmt.Errorf("invalid --sim-stuck %q: %w", spec, err)
		}
		l, err := bus.ParseLine(name)
		if err != nil {
			return nil, fmt.Errorf("invalid --sim-stuck %q: %w", spec, err)
		}
		sim.Stuck = append(sim.Stuck, bus.LineFault{Line: l, High: high, Duty: duty})
	}

	for _, spec := range simShort {
		pair, duty, err := splitDuty(spec)
		if err != nil {
			return nil, fmt.Errorf("invalid --sim-short %q: %w", spec, err)
		}
		a, b, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("invalid --sim-short %q: want LINE:LINE", spec)
		}
		la, err := bus.ParseLine(a)
		if err != nil {
			return nil, fmt.Errorf("invalid --sim-short %q: %w", spec, err)
		}
		lb, err := bus.ParseLine(b)
		if err != nil {
			return nil, fmt.Errorf("invalid --sim-short %q: %w", spec, err)
		}
		sim.Shorts = append(sim.Shorts, bus.Short{A: la, B: lb, Duty: duty})
	}

	for _, spec := range simMemStuck {
		name, high, duty, err := parseAssignment(spec)
		if err != nil {
			return nil, fmt.Errorf("invalid --sim-mem-stuck %q: %w", spec, err)
		}
		bit, err := strconv.ParseUint(name, 10, 8)
		if err != nil || bit > 7 {
			return nil, fmt.Errorf("invalid --sim-mem-stuck %q: bit must be 0-7", spec)
		}
		sim.MemFaults = append(sim.MemFaults, bus.MemFault{Bit: uint8(bit), High: high, Duty: duty})
	}

	if simHeld {
		// TEST is active-low: another agent holding it pulls the line low.
		sim.Stuck = append(sim.Stuck, bus.LineFault{Line: bus.TEST.Line(), High: false})
	}
	return sim, nil
}

// parseAssignment parses NAME=0|1[@duty].
func parseAssignment(spec string) (name string, high bool, duty float64, err error) {
	body, duty, err := splitDuty(spec)
	if err != nil {
		return "", false, 0, err
	}
	name, level, ok := strings.Cut(body, "=")
	if !ok {
		return "", false, 0, fmt.Errorf("want NAME=0|1")
	}
	switch level {
	case "1", "H", "h":
		high = true
	case "0", "L", "l":
	default:
		return "", false, 0, fmt.Errorf("level %q is not 0 or 1", level)
	}
	return strings.TrimSpace(name), high, duty, nil
}

func splitDuty(spec string) (string, float64, error) {
	body, d, ok := strings.Cut(spec, "@")
	if !ok {
		return spec, 0, nil
	}
	duty, err := strconv.ParseFloat(d, 64)
	if err != nil || duty <= 0 || duty > 1 {
		return "", 0, fmt.Errorf("duty %q must be in (0,1]", d)
	}
	return body, duty, nil
}
