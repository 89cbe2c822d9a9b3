package picker

import (
	"context"
	"time"

	"github.com/icarus-itcs/lazyflutter/internal/daemon"
	"github.com/icarus-itcs/lazyflutter/internal/device"
	"github.com/icarus-itcs/lazyflutter/internal/logging"
	"github.com/icarus-itcs/lazyflutter/internal/metrics"
)

const (
	CreatorLabel        = "Create Android Emulator"
	OfflineDescription  = "Emulator (offline)"
	DevicePlaceholder   = "Select a device to use"
	EmulatorPlaceholder = "Connect a device or select an emulator to launch"
)

// Item is one pick-list entry. Exactly one of Device and Emulator is set,
// or neither for the creator entry.
type Item struct {
	Kind        device.Kind
	Device      *device.Device
	Emulator    *device.Emulator
	Label       string
	Description string
	Picked      bool
	AlwaysShow  bool
}

// DeviceItem wraps a connected device.
func DeviceItem(d device.Device, active bool) Item {
	return Item{
		Kind:        device.KindDevice,
		Device:      &d,
		Label:       d.Name,
		Description: d.Platform,
		Picked:      active,
	}
}

// EmulatorItem wraps an offline emulator.
func EmulatorItem(e device.Emulator, description string) Item {
	return Item{
		Kind:        device.KindEmulator,
		Emulator:    &e,
		Label:       e.DisplayName(),
		Description: description,
	}
}

// CreatorItem is the "create a new emulator" entry.
func CreatorItem() Item {
	return Item{
		Kind:       device.KindEmulatorCreator,
		Label:      CreatorLabel,
		AlwaysShow: true,
	}
}

// DeviceItems builds entries for an already sorted device list, marking the
// active one as picked.
func DeviceItems(devices []device.Device, active *device.Device) []Item {
	items := make([]Item, 0, len(devices))
	for _, d := range devices {
		items = append(items, DeviceItem(d, active != nil && d.ID == active.ID))
	}
	return items
}

// EmulatorItems lists the daemon's emulators as pick-list entries, plus the
// creator entry when the daemon can create emulators. With offline set the
// entries are described as offline emulators, otherwise by their ID.
//
// A listing failure is logged and yields no emulator entries.
func EmulatorItems(ctx context.Context, d daemon.Daemon, offline bool, logger *logging.Logger, m *metrics.Metrics) []Item {
	start := time.Now()
	emus, err := d.ListEmulators(ctx)
	switch {
	case ctx.Err() != nil:
		// The caller stopped waiting; an abandoned fetch is not a fault.
		logger.Debug("emulator discovery abandoned", "error", ctx.Err())
		emus = nil
	case err != nil:
		m.ObserveFetch(time.Since(start).Seconds())
		logger.Warn("emulator discovery failed", "error", err)
		emus = nil
	default:
		m.ObserveFetch(time.Since(start).Seconds())
	}

	items := make([]Item, 0, len(emus)+1)
	for _, e := range emus {
		desc := e.ID
		if offline {
			desc = OfflineDescription
		}
		items = append(items, EmulatorItem(e, desc))
	}
	if d.Capabilities().CanCreateEmulators {
		items = append(items, CreatorItem())
	}
	return items
}
