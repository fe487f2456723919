package probe

import (
	"context"
	"fmt"

	"github.com/google/gousb"
	"github.com/pkg/errors"
)

// InterfaceKind categorizes bus adapters.
type InterfaceKind string

const (
	InterfaceKindUSB       InterfaceKind = "usb"
	InterfaceKindSimulator InterfaceKind = "simulator"
	InterfaceKindLoopback  InterfaceKind = "loopback"
)

// InterfaceInfo describes a detected adapter.
type InterfaceInfo struct {
	Kind   InterfaceKind
	Name   string
	ID     [2]gousb.ID // vendor, product
	Serial string
	Port   string // bus.address for USB devices
}

// Label returns a one-line description.
func (i InterfaceInfo) Label() string {
	if i.Kind != InterfaceKindUSB {
		if i.Name == "" {
			return string(i.Kind)
		}
		return i.Name
	}
	s := fmt.Sprintf("%s %s:%s at %s", i.Name, i.ID[0], i.ID[1], i.Port)
	if i.Serial != "" {
		s += " serial " + i.Serial
	}
	return s
}

// controllers maps vendor/product pairs to a product name.
var controllers = map[[2]gousb.ID]string{
	{DefaultVendorID, DefaultProductID}: "RP2040 bus controller",
}

func controllerName(desc *gousb.DeviceDesc) (string, bool) {
	name, ok := controllers[[2]gousb.ID{desc.Vendor, desc.Product}]
	return name, ok
}

// DiscoverInterfaces lists connected bus controllers. Matching devices are
// opened briefly to read their serial number. The simulator and loopback
// adapters are always appended so the tool is usable without hardware.
func DiscoverInterfaces(ctx context.Context) ([]InterfaceInfo, error) {
	usb := gousb.NewContext()
	defer usb.Close()

	devs, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if ctx.Err() != nil {
			return false
		}
		_, ok := controllerName(desc)
		return ok
	})
	// Devices we may not open are still worth listing; access errors are
	// not reported.
	if err != nil && err != gousb.ErrorAccess {
		err = errors.Wrap(err, "probe: enumerate USB devices")
	} else {
		err = nil
	}

	var out []InterfaceInfo
	for _, dev := range devs {
		name, _ := controllerName(dev.Desc)
		info := InterfaceInfo{
			Kind: InterfaceKindUSB,
			Name: name,
			ID:   [2]gousb.ID{dev.Desc.Vendor, dev.Desc.Product},
			Port: fmt.Sprintf("%d.%d", dev.Desc.Bus, dev.Desc.Address),
		}
		if serial, serr := dev.SerialNumber(); serr == nil {
			info.Serial = serial
		}
		dev.Close()
		out = append(out, info)
	}

	out = append(out,
		InterfaceInfo{Kind: InterfaceKindSimulator, Name: "Simulator (no hardware)"},
		InterfaceInfo{Kind: InterfaceKindLoopback, Name: "Simulator behind the USB command protocol"},
	)
	return out, err
}
