// Package launch creates and launches emulators and waits for them to
// connect as devices.
//
// A launch succeeds once a device has been added to the registry after the
// launch was requested and the registry has an active device. The wait is
// bounded and polls on a ticker; once started it runs to success or
// timeout. Failures are shown on the surface and reported as false, never
// returned to the caller.
package launch

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/icarus-itcs/lazyflutter/internal/daemon"
	"github.com/icarus-itcs/lazyflutter/internal/device"
	"github.com/icarus-itcs/lazyflutter/internal/event"
	"github.com/icarus-itcs/lazyflutter/internal/logging"
	"github.com/icarus-itcs/lazyflutter/internal/metrics"
	"github.com/icarus-itcs/lazyflutter/internal/picker"
	"github.com/icarus-itcs/lazyflutter/internal/registry"
)

const (
	DefaultTimeout      = 60 * time.Second
	DefaultPollInterval = 500 * time.Millisecond
	DefaultGracePeriod  = time.Second
)

// Orchestrator runs the create and launch flows.
type Orchestrator struct {
	registry *registry.Registry
	daemon   daemon.Daemon
	surface  picker.Surface

	clock    clock.Clock
	logger   *logging.Logger
	metrics  *metrics.Metrics
	bus      *event.Bus
	observer func(Attempt)

	timeout      time.Duration
	pollInterval time.Duration
	grace        time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock sets the clock used for the connect wait.
func WithClock(c clock.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithBus publishes every attempt transition as a launch.state event.
func WithBus(b *event.Bus) Option {
	return func(o *Orchestrator) { o.bus = b }
}

// WithObserver is called synchronously on every attempt transition.
func WithObserver(fn func(Attempt)) Option {
	return func(o *Orchestrator) { o.observer = fn }
}

// WithTimings overrides the connect timeout, the poll interval and the
// grace period after a successful connect. Zero values keep the defaults.
func WithTimings(timeout, poll, grace time.Duration) Option {
	return func(o *Orchestrator) {
		if timeout > 0 {
			o.timeout = timeout
		}
		if poll > 0 {
			o.pollInterval = poll
		}
		if grace > 0 {
			o.grace = grace
		}
	}
}

// New creates an orchestrator.
func New(reg *registry.Registry, d daemon.Daemon, surface picker.Surface, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:     reg,
		daemon:       d,
		surface:      surface,
		clock:        clock.New(),
		logger:       logging.NopLogger(),
		timeout:      DefaultTimeout,
		pollInterval: DefaultPollInterval,
		grace:        DefaultGracePeriod,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.WithComponent("launch")
	return o
}

// PromptAndLaunch offers the emulators (and the creator entry) and launches
// the chosen one. A device connecting while the prompt is open cancels it.
// With allowAutoSelect, a device that became active while the emulators were
// being listed is used without prompting.
//
// It returns whether a device is active once the prompt and any launch
// have finished.
func (o *Orchestrator) PromptAndLaunch(ctx context.Context, allowAutoSelect bool) bool {
	items := picker.EmulatorItems(ctx, o.daemon, false, o.logger, o.metrics)

	if allowAutoSelect && o.registry.Current() != nil {
		o.logger.Debug("device became active while listing emulators")
		return true
	}
	if len(items) == 0 {
		o.logger.Warn("nothing to launch", "error", ErrEmptyTargetSet)
		o.surface.ShowError(ErrEmptyTargetSet.Error())
		return false
	}

	promptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var deviceArrived atomic.Bool
	unsubscribe := o.daemon.OnDeviceAdded(func(device.Device) {
		deviceArrived.Store(true)
		cancel()
	})
	defer unsubscribe()

	list := o.surface.OpenList(picker.EmulatorPlaceholder, items, false)
	var chosen *picker.Item
	select {
	case sel, ok := <-list.Done():
		if ok {
			chosen = sel.Item
		}
	case <-promptCtx.Done():
	}
	unsubscribe()
	list.Close()

	if deviceArrived.Load() {
		o.metrics.PromptCancelled()
		o.logger.Info("launch prompt cancelled by a connected device")
		chosen = nil
	}

	if chosen != nil {
		o.Dispatch(ctx, *chosen)
	}
	return o.registry.Current() != nil
}

// Dispatch runs the flow for an accepted emulator or creator entry and
// returns its result. Device entries are not handled here.
func (o *Orchestrator) Dispatch(ctx context.Context, item picker.Item) bool {
	switch item.Kind {
	case device.KindEmulator:
		if item.Emulator == nil {
			return false
		}
		return o.Launch(ctx, *item.Emulator)
	case device.KindEmulatorCreator:
		return o.CreateAndLaunch(ctx)
	}
	return false
}

// CreateAndLaunch asks the daemon for a new emulator and launches it.
// A refusal is shown exactly as the daemon worded it; nothing is retried.
func (o *Orchestrator) CreateAndLaunch(ctx context.Context) bool {
	progress := o.surface.ShowProgress("Creating emulator...")
	res, err := o.daemon.CreateEmulator(ctx, "")
	progress.Done()

	if err != nil {
		derr := &DaemonError{Op: "create emulator", Err: err}
		o.logger.Error("emulator creation failed", "error", derr)
		o.metrics.ObserveLaunch(metrics.OutcomeDaemonError)
		o.surface.ShowError(fmt.Sprintf("Failed to create emulator: %v", err))
		return false
	}
	if !res.Success {
		cerr := &CreationError{Message: res.Error}
		o.logger.Warn("daemon refused to create emulator", "error", cerr)
		o.metrics.ObserveLaunch(metrics.OutcomeCreateError)
		o.surface.ShowError(cerr.Message)
		return false
	}

	o.logger.Info("emulator created", "emulator_id", res.EmulatorName)
	return o.Launch(ctx, device.Emulator{ID: res.EmulatorName, Name: res.EmulatorName})
}

// Launch starts the emulator and waits for it to connect.
func (o *Orchestrator) Launch(ctx context.Context, emu device.Emulator) bool {
	a := &Attempt{ID: uuid.NewString(), EmulatorID: emu.ID, State: StateIdle}
	name := emu.DisplayName()
	log := o.logger.With("attempt_id", a.ID, "emulator_id", emu.ID)

	progress := o.surface.ShowProgress("Launching emulator")
	defer progress.Done()

	since := o.registry.Generation()
	o.transition(log, a, StateRequested, nil)
	progress.Report(fmt.Sprintf("Launching %s...", name))

	if err := o.daemon.LaunchEmulator(ctx, emu.ID); err != nil {
		derr := &DaemonError{Op: "launch emulator", Err: err}
		o.transition(log, a, StateDaemonError, derr)
		o.metrics.ObserveLaunch(metrics.OutcomeDaemonError)
		o.surface.ShowError(fmt.Sprintf("Failed to launch emulator: %v", err))
		return false
	}

	progress.Report(fmt.Sprintf("Waiting for %s to connect...", name))
	if !o.waitForConnect(log, a, since) {
		o.metrics.ObserveLaunch(metrics.OutcomeTimedOut)
		o.surface.ShowError(fmt.Sprintf("Failed to launch emulator: %v", a.Err))
		return false
	}

	o.metrics.ObserveLaunch(metrics.OutcomeConnected)
	return true
}

// waitForConnect polls until a device has been added since the given
// registry generation, or the timeout passes. On success it also sits out
// the grace period before returning.
func (o *Orchestrator) waitForConnect(log *logging.Logger, a *Attempt, since uint64) bool {
	ticker := o.clock.Ticker(o.pollInterval)
	defer ticker.Stop()
	deadline := o.clock.Timer(o.timeout)
	defer deadline.Stop()

	o.transition(log, a, StateWaitingForConnect, nil)

wait:
	for {
		select {
		case <-ticker.C:
			if o.connectedSince(since) {
				break wait
			}
		case <-deadline.C:
			if o.connectedSince(since) {
				break wait
			}
			o.transition(log, a, StateTimedOut, fmt.Errorf("%w within %s", ErrLaunchTimeout, o.timeout))
			return false
		}
	}

	grace := o.clock.Timer(o.grace)
	defer grace.Stop()
	o.transition(log, a, StateConnected, nil)
	<-grace.C
	return true
}

func (o *Orchestrator) connectedSince(generation uint64) bool {
	return o.registry.Generation() > generation && o.registry.Current() != nil
}

func (o *Orchestrator) transition(log *logging.Logger, a *Attempt, to State, err error) {
	if !canTransition(a.State, to) {
		log.Error("invalid launch state transition", "from", string(a.State), "to", string(to))
		return
	}
	from := a.State
	a.State, a.Err = to, err

	if err != nil {
		log.Warn("launch state changed", "from", string(from), "to", string(to), "error", err)
	} else {
		log.Debug("launch state changed", "from", string(from), "to", string(to))
	}
	if o.observer != nil {
		o.observer(*a)
	}
	if o.bus != nil {
		o.bus.Publish(event.NewLaunchStateEvent(a.ID, a.EmulatorID, string(to), err))
	}
}
