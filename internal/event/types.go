package event

import (
	"time"

	"github.com/icarus-itcs/lazyflutter/internal/device"
)

// Event types
const (
	TypeDeviceAdded    = "device.added"
	TypeDeviceRemoved  = "device.removed"
	TypeDeviceSelected = "device.selected"
	TypeDaemonReady    = "daemon.ready"
	TypeStatusChanged  = "status.changed"
	TypeLaunchState    = "launch.state"
)

// Event is implemented by everything published on the Bus.
type Event interface {
	EventType() string
	Timestamp() time.Time
}

type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{eventType: eventType, timestamp: time.Now()}
}

// DeviceEvent is emitted when a device connects, disconnects, or becomes active.
type DeviceEvent struct {
	baseEvent
	Device device.Device
}

// NewDeviceAddedEvent creates a device.added event.
func NewDeviceAddedEvent(d device.Device) DeviceEvent {
	return DeviceEvent{baseEvent: newBaseEvent(TypeDeviceAdded), Device: d}
}

// NewDeviceRemovedEvent creates a device.removed event.
func NewDeviceRemovedEvent(d device.Device) DeviceEvent {
	return DeviceEvent{baseEvent: newBaseEvent(TypeDeviceRemoved), Device: d}
}

// NewDeviceSelectedEvent creates a device.selected event.
func NewDeviceSelectedEvent(d device.Device) DeviceEvent {
	return DeviceEvent{baseEvent: newBaseEvent(TypeDeviceSelected), Device: d}
}

// ReadyEvent is emitted once the daemon can service requests.
type ReadyEvent struct {
	baseEvent
}

// NewReadyEvent creates a daemon.ready event.
func NewReadyEvent() ReadyEvent {
	return ReadyEvent{baseEvent: newBaseEvent(TypeDaemonReady)}
}

// StatusEvent carries the recomputed status line.
type StatusEvent struct {
	baseEvent
	Text    string
	Tooltip string
	Visible bool
}

// NewStatusEvent creates a status.changed event.
func NewStatusEvent(text, tooltip string, visible bool) StatusEvent {
	return StatusEvent{baseEvent: newBaseEvent(TypeStatusChanged), Text: text, Tooltip: tooltip, Visible: visible}
}

// LaunchStateEvent reports a transition of an emulator launch attempt.
type LaunchStateEvent struct {
	baseEvent
	AttemptID  string
	EmulatorID string
	State      string
	Err        error
}

// NewLaunchStateEvent creates a launch.state event.
func NewLaunchStateEvent(attemptID, emulatorID, state string, err error) LaunchStateEvent {
	return LaunchStateEvent{
		baseEvent:  newBaseEvent(TypeLaunchState),
		AttemptID:  attemptID,
		EmulatorID: emulatorID,
		State:      state,
		Err:        err,
	}
}
