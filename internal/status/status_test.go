package status

import (
	"strings"
	"testing"

	"github.com/icarus-itcs/lazyflutter/internal/device"
)

func TestCompute(t *testing.T) {
	pixel := &device.Device{ID: "emulator-5554", Name: "Pixel 7", Platform: "android-x64", Emulator: true}
	phone := &device.Device{ID: "R5CT", Name: "Galaxy S24", Platform: "android-arm64"}

	tests := []struct {
		name    string
		current *device.Device
		count   int
		ready   bool
		want    Status
	}{
		{"no devices", nil, 0, true, Status{Text: "No Devices", Visible: true}},
		{"not ready", nil, 0, false, Status{Text: "No Devices"}},
		{"emulator", pixel, 1, true, Status{Text: "Pixel 7 (android-x64 Emulator)", Tooltip: "1 Device Connected", Visible: true}},
		{"physical", phone, 3, true, Status{Text: "Galaxy S24 (android-arm64)", Tooltip: "3 Devices Connected", Visible: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compute(tt.current, tt.count, tt.ready); got != tt.want {
				t.Errorf("Compute() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRender(t *testing.T) {
	if got := (Status{Text: "No Devices"}).Render(); got != "" {
		t.Errorf("invisible status rendered %q", got)
	}

	out := Status{Text: "Pixel 7 (android-x64)", Tooltip: "2 Devices Connected", Visible: true}.Render()
	if !strings.Contains(out, "Pixel 7") || !strings.Contains(out, "2 Devices Connected") {
		t.Errorf("Render() = %q", out)
	}
}
