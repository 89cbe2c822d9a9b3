// Package daemon defines the device event source contract and a scripted
// simulator implementing it.
//
// A Daemon reports device connects and disconnects through subscriptions and
// services emulator requests. It owns no state the rest of the app reads;
// the registry builds its own view from the notifications.
package daemon

import (
	"context"
	"regexp"

	"github.com/icarus-itcs/lazyflutter/internal/device"
	"github.com/icarus-itcs/lazyflutter/internal/event"
)

// Capabilities describes optional daemon features.
type Capabilities struct {
	CanCreateEmulators bool `yaml:"can_create_emulators"`
}

// CreateResult is the daemon's answer to an emulator creation request.
type CreateResult struct {
	Success      bool
	EmulatorName string
	Error        string
}

// Daemon is the device event source.
type Daemon interface {
	// OnDeviceAdded subscribes to device connects. Events arrive in
	// emission order.
	OnDeviceAdded(func(device.Device)) event.UnsubscribeFunc
	// OnDeviceRemoved subscribes to device disconnects.
	OnDeviceRemoved(func(device.Device)) event.UnsubscribeFunc
	// OnReady subscribes to the daemon becoming ready.
	OnReady(func()) event.UnsubscribeFunc

	IsReady() bool
	Capabilities() Capabilities

	ListEmulators(ctx context.Context) ([]device.Emulator, error)
	// CreateEmulator creates an emulator. An empty name lets the daemon pick one.
	CreateEmulator(ctx context.Context, name string) (CreateResult, error)
	LaunchEmulator(ctx context.Context, id string) error
}

var emulatorNameRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// InvalidEmulatorNameMessage is returned for names failing ValidateEmulatorName.
const InvalidEmulatorNameMessage = "Emulator names should contain only letters, numbers, dots, underscores and dashes"

// ValidateEmulatorName returns a user-facing message for an invalid name,
// or "" when the name is acceptable.
func ValidateEmulatorName(name string) string {
	if !emulatorNameRegex.MatchString(name) {
		return InvalidEmulatorNameMessage
	}
	return ""
}
