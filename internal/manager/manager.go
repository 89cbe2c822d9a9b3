// Package manager ties the daemon, the registry and the flows built on them
// together for the lifetime of one daemon connection.
package manager

import (
	"context"
	"sync"

	"github.com/icarus-itcs/lazyflutter/internal/daemon"
	"github.com/icarus-itcs/lazyflutter/internal/device"
	"github.com/icarus-itcs/lazyflutter/internal/event"
	"github.com/icarus-itcs/lazyflutter/internal/launch"
	"github.com/icarus-itcs/lazyflutter/internal/logging"
	"github.com/icarus-itcs/lazyflutter/internal/metrics"
	"github.com/icarus-itcs/lazyflutter/internal/picker"
	"github.com/icarus-itcs/lazyflutter/internal/registry"
	"github.com/icarus-itcs/lazyflutter/internal/status"
)

// Options configures a Manager. Every field is optional.
type Options struct {
	// SelectOnConnect is consulted each time a device connects.
	SelectOnConnect func() bool
	// Bus receives device.selected, status.changed and launch.state events.
	Bus     *event.Bus
	Logger  *logging.Logger
	Metrics *metrics.Metrics
	// Launch options are passed to the launch orchestrator.
	Launch []launch.Option
}

// Manager owns the daemon subscriptions and the registry they feed.
type Manager struct {
	daemon   daemon.Daemon
	registry *registry.Registry
	picker   *picker.Presenter
	launcher *launch.Orchestrator
	bus      *event.Bus
	logger   *logging.Logger
	metrics  *metrics.Metrics

	refreshMu     sync.Mutex
	mu            sync.Mutex
	status        status.Status
	subscriptions []event.UnsubscribeFunc
	closed        bool
}

// New subscribes to d and starts tracking devices.
func New(d daemon.Daemon, surface picker.Surface, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	bus := opts.Bus
	if bus == nil {
		bus = event.NewBus(logger)
	}

	m := &Manager{
		daemon:  d,
		bus:     bus,
		logger:  logger.WithComponent("manager"),
		metrics: opts.Metrics,
	}

	regOpts := []registry.Option{registry.WithOnChange(m.refreshStatus)}
	if opts.SelectOnConnect != nil {
		regOpts = append(regOpts, registry.WithSelectOnConnect(opts.SelectOnConnect))
	}
	m.registry = registry.New(regOpts...)
	m.picker = picker.NewPresenter(m.registry, d, surface, logger, opts.Metrics)

	launchOpts := []launch.Option{
		launch.WithLogger(logger),
		launch.WithMetrics(opts.Metrics),
		launch.WithBus(bus),
	}
	m.launcher = launch.New(m.registry, d, surface, append(launchOpts, opts.Launch...)...)

	m.subscriptions = append(m.subscriptions,
		d.OnDeviceAdded(m.deviceAdded),
		d.OnDeviceRemoved(m.deviceRemoved),
		d.OnReady(m.refreshStatus),
	)
	m.refreshStatus()
	return m
}

func (m *Manager) deviceAdded(d device.Device) {
	m.logger.Info("device connected", "device_id", d.ID, "name", d.Name, "platform", d.Platform)
	m.registry.Add(d)
}

func (m *Manager) deviceRemoved(d device.Device) {
	m.logger.Info("device disconnected", "device_id", d.ID)
	m.registry.Remove(d.ID)
}

// refreshStatus is serialized so the last status stored and published is
// computed from the newest registry state. status.changed handlers must not
// mutate the registry synchronously.
func (m *Manager) refreshStatus() {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	current, count := m.registry.Snapshot()
	s := status.Compute(current, count, m.daemon.IsReady())
	m.metrics.SetDevices(count)

	m.mu.Lock()
	m.status = s
	m.mu.Unlock()

	m.bus.Publish(event.NewStatusEvent(s.Text, s.Tooltip, s.Visible))
}

// ShowDevicePicker lets the user choose a device, or an emulator to launch
// or create. It returns whether a choice was made and carried out.
func (m *Manager) ShowDevicePicker(ctx context.Context) bool {
	item := m.picker.PickDevice(ctx)
	if item == nil {
		return false
	}

	if item.Kind != device.KindDevice {
		return m.launcher.Dispatch(ctx, *item)
	}
	if item.Device == nil || !m.SelectDevice(item.Device.ID) {
		m.logger.Warn("picked device is no longer connected", "label", item.Label)
		return false
	}
	return true
}

// SelectDevice makes a connected device active.
func (m *Manager) SelectDevice(id string) bool {
	if !m.registry.Select(id) {
		return false
	}
	if cur := m.registry.Current(); cur != nil {
		m.logger.Info("device selected", "device_id", cur.ID)
		m.bus.Publish(event.NewDeviceSelectedEvent(*cur))
	}
	return true
}

// PromptForAndLaunchEmulator offers the emulators to launch. See
// launch.Orchestrator.PromptAndLaunch.
func (m *Manager) PromptForAndLaunchEmulator(ctx context.Context, allowAutoSelect bool) bool {
	return m.launcher.PromptAndLaunch(ctx, allowAutoSelect)
}

// CreateAndLaunchEmulator creates a new emulator and launches it.
func (m *Manager) CreateAndLaunchEmulator(ctx context.Context) bool {
	return m.launcher.CreateAndLaunch(ctx)
}

// LaunchEmulator launches a known emulator and waits for it to connect.
func (m *Manager) LaunchEmulator(ctx context.Context, emu device.Emulator) bool {
	return m.launcher.Launch(ctx, emu)
}

// ListEmulators lists the daemon's emulators.
func (m *Manager) ListEmulators(ctx context.Context) ([]device.Emulator, error) {
	return m.daemon.ListEmulators(ctx)
}

// Status returns the last computed status.
func (m *Manager) Status() status.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Manager) Registry() *registry.Registry {
	return m.registry
}

func (m *Manager) Bus() *event.Bus {
	return m.bus
}

// Close drops every daemon subscription. Calling it again does nothing.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	subs := m.subscriptions
	m.subscriptions = nil
	m.mu.Unlock()

	for _, unsubscribe := range subs {
		unsubscribe()
	}
	m.logger.Debug("manager closed", "subscriptions", len(subs))
}
