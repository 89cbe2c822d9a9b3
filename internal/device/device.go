package device

import "strings"

// Kind identifies what a pickable target wraps
type Kind string

const (
	KindDevice          Kind = "device"
	KindEmulator        Kind = "emulator"
	KindEmulatorCreator Kind = "emulator-creator"
)

// Device represents a connected physical device or running emulator
type Device struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Platform string `json:"platform" yaml:"platform"` // "android-arm64", "ios", ...
	Emulator bool   `json:"emulator" yaml:"emulator"`
	Kind     Kind   `json:"type,omitempty" yaml:"-"`
}

// String returns a display string for the device
func (d Device) String() string {
	var b strings.Builder
	b.WriteString(d.Name)
	b.WriteString(" (")
	b.WriteString(d.Platform)
	if d.Emulator {
		b.WriteString(" Emulator")
	}
	b.WriteString(")")
	return b.String()
}

// Emulator is a launchable emulator that is not connected yet
type Emulator struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// DisplayName returns the emulator name, falling back to its ID
func (e Emulator) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	return e.ID
}
