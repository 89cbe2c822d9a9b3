package picker

import (
	"fmt"

	"github.com/agnivade/levenshtein"
	"github.com/gobwas/glob"

	"github.com/icarus-itcs/lazyflutter/internal/device"
)

// FindEmulator returns the emulator with the given ID.
func FindEmulator(emus []device.Emulator, id string) (device.Emulator, bool) {
	for _, e := range emus {
		if e.ID == id {
			return e, true
		}
	}
	return device.Emulator{}, false
}

// ClosestEmulator returns the emulator whose ID is the smallest edit
// distance from id, provided the distance is small enough to be a typo.
func ClosestEmulator(emus []device.Emulator, id string) (device.Emulator, bool) {
	best := -1
	var match device.Emulator
	for _, e := range emus {
		d := levenshtein.ComputeDistance(id, e.ID)
		if best < 0 || d < best {
			best, match = d, e
		}
	}
	if best < 0 || best > maxTypoDistance(id) {
		return device.Emulator{}, false
	}
	return match, true
}

func maxTypoDistance(s string) int {
	if n := len(s) / 3; n > 2 {
		return n
	}
	return 2
}

// FilterDevices keeps the devices whose ID or name matches the glob pattern.
// An empty pattern keeps everything.
func FilterDevices(devices []device.Device, pattern string) ([]device.Device, error) {
	if pattern == "" {
		return devices, nil
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", pattern, err)
	}
	var out []device.Device
	for _, d := range devices {
		if g.Match(d.ID) || g.Match(d.Name) {
			out = append(out, d)
		}
	}
	return out, nil
}
