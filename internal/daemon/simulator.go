package daemon

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/icarus-itcs/lazyflutter/internal/device"
	"github.com/icarus-itcs/lazyflutter/internal/event"
	"github.com/icarus-itcs/lazyflutter/internal/logging"
)

// ErrCreateUnsupported is returned by CreateEmulator when the scenario
// does not allow emulator creation.
var ErrCreateUnsupported = errors.New("emulator creation is not supported by this daemon")

type scheduled struct {
	at   time.Time
	seq  uint64
	fire func()
}

// Simulator is an in-process Daemon driven by a Scenario. Timed events are
// emitted from a single goroutine in due order, so subscribers see them in
// the order they were scheduled.
type Simulator struct {
	scenario *Scenario
	clock    clock.Clock
	bus      *event.Bus
	logger   *logging.Logger

	mu        sync.Mutex
	ready     bool
	emulators []ScenarioEmulator
	queue     []scheduled
	seq       uint64
	nextPort  int
	connected map[string]device.Device

	publishMu sync.Mutex
	wake      chan struct{}
	done      chan struct{}
	started   bool
}

// SimulatorOption configures a Simulator.
type SimulatorOption func(*Simulator)

// WithClock overrides the clock used for scheduling.
func WithClock(c clock.Clock) SimulatorOption {
	return func(s *Simulator) { s.clock = c }
}

// WithLogger sets the simulator logger.
func WithLogger(l *logging.Logger) SimulatorOption {
	return func(s *Simulator) { s.logger = l }
}

// WithBus publishes simulator events on an existing bus.
func WithBus(b *event.Bus) SimulatorOption {
	return func(s *Simulator) { s.bus = b }
}

// NewSimulator creates a simulator. Call Start to begin emitting events.
func NewSimulator(scenario *Scenario, opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		scenario:  scenario,
		clock:     clock.New(),
		logger:    logging.NopLogger(),
		emulators: append([]ScenarioEmulator(nil), scenario.Emulators...),
		nextPort:  5554,
		connected: make(map[string]device.Device),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bus == nil {
		s.bus = event.NewBus(s.logger)
	}
	return s
}

// Bus returns the bus the simulator publishes on.
func (s *Simulator) Bus() *event.Bus {
	return s.bus
}

// Start emits everything due immediately (readiness, devices without a
// connect delay) before returning, then runs the timed schedule until ctx
// is cancelled.
func (s *Simulator) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	if s.scenario.ReadyAfter <= 0 {
		s.markReady()
	} else {
		s.schedule(s.scenario.ReadyAfter, s.markReady)
	}

	for _, sd := range s.scenario.Devices {
		sd := sd
		connect := func() {
			s.Connect(sd.Device)
			if sd.DisconnectAfter > 0 {
				s.schedule(sd.DisconnectAfter, func() { s.Disconnect(sd.ID) })
			}
		}
		if sd.ConnectAfter <= 0 {
			connect()
		} else {
			s.schedule(sd.ConnectAfter, connect)
		}
	}

	go s.run(ctx)
}

// Done is closed when the schedule loop exits.
func (s *Simulator) Done() <-chan struct{} {
	return s.done
}

func (s *Simulator) run(ctx context.Context) {
	defer close(s.done)

	for {
		var timerC <-chan time.Time
		var timer *clock.Timer

		s.mu.Lock()
		if len(s.queue) > 0 {
			wait := s.queue[0].at.Sub(s.clock.Now())
			if wait < 0 {
				wait = 0
			}
			timer = s.clock.Timer(wait)
			timerC = timer.C
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-s.wake:
			if timer != nil {
				timer.Stop()
			}
		case <-timerC:
			for _, fn := range s.popDue() {
				fn()
			}
		}
	}
}

func (s *Simulator) popDue() []func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	var due []func()
	for len(s.queue) > 0 && !s.queue[0].at.After(now) {
		due = append(due, s.queue[0].fire)
		s.queue = s.queue[1:]
	}
	return due
}

func (s *Simulator) schedule(after time.Duration, fn func()) {
	s.mu.Lock()
	s.seq++
	s.queue = append(s.queue, scheduled{at: s.clock.Now().Add(after), seq: s.seq, fire: fn})
	sort.SliceStable(s.queue, func(i, j int) bool {
		if s.queue[i].at.Equal(s.queue[j].at) {
			return s.queue[i].seq < s.queue[j].seq
		}
		return s.queue[i].at.Before(s.queue[j].at)
	})
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Simulator) markReady() {
	s.mu.Lock()
	already := s.ready
	s.ready = true
	s.mu.Unlock()

	if !already {
		s.publish(event.NewReadyEvent())
	}
}

func (s *Simulator) publish(e event.Event) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	s.bus.Publish(e)
}

// Connect reports a device as connected.
func (s *Simulator) Connect(d device.Device) {
	s.mu.Lock()
	s.connected[d.ID] = d
	s.mu.Unlock()

	s.logger.Debug("device connected", "device_id", d.ID, "name", d.Name)
	s.publish(event.NewDeviceAddedEvent(d))
}

// Disconnect reports a device as gone. Unknown IDs are ignored.
func (s *Simulator) Disconnect(id string) {
	s.mu.Lock()
	d, ok := s.connected[id]
	delete(s.connected, id)
	s.mu.Unlock()

	if !ok {
		return
	}
	s.logger.Debug("device disconnected", "device_id", id)
	s.publish(event.NewDeviceRemovedEvent(d))
}

// OnDeviceAdded implements Daemon.
func (s *Simulator) OnDeviceAdded(fn func(device.Device)) event.UnsubscribeFunc {
	return s.bus.Subscribe(event.TypeDeviceAdded, func(e event.Event) {
		fn(e.(event.DeviceEvent).Device)
	})
}

// OnDeviceRemoved implements Daemon.
func (s *Simulator) OnDeviceRemoved(fn func(device.Device)) event.UnsubscribeFunc {
	return s.bus.Subscribe(event.TypeDeviceRemoved, func(e event.Event) {
		fn(e.(event.DeviceEvent).Device)
	})
}

// OnReady implements Daemon.
func (s *Simulator) OnReady(fn func()) event.UnsubscribeFunc {
	return s.bus.Subscribe(event.TypeDaemonReady, func(event.Event) { fn() })
}

// IsReady implements Daemon.
func (s *Simulator) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Capabilities implements Daemon.
func (s *Simulator) Capabilities() Capabilities {
	return Capabilities{CanCreateEmulators: s.scenario.CanCreateEmulators}
}

// ListEmulators implements Daemon.
func (s *Simulator) ListEmulators(ctx context.Context) ([]device.Emulator, error) {
	if err := s.sleep(ctx, s.scenario.ListDelay); err != nil {
		return nil, err
	}
	if s.scenario.ListError != "" {
		return nil, errors.New(s.scenario.ListError)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]device.Emulator, 0, len(s.emulators))
	for _, e := range s.emulators {
		out = append(out, e.Emulator)
	}
	return out, nil
}

// CreateEmulator implements Daemon.
func (s *Simulator) CreateEmulator(ctx context.Context, name string) (CreateResult, error) {
	if !s.scenario.CanCreateEmulators {
		return CreateResult{}, ErrCreateUnsupported
	}
	if err := s.sleep(ctx, s.scenario.Create.Delay); err != nil {
		return CreateResult{}, err
	}
	if msg := s.scenario.Create.FailWith; msg != "" {
		return CreateResult{Success: false, Error: msg}, nil
	}
	if name != "" {
		if msg := ValidateEmulatorName(name); msg != "" {
			return CreateResult{Success: false, Error: msg}, nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" {
		name = s.freeNameLocked()
	} else if s.findLocked(name) != nil {
		return CreateResult{Success: false, Error: fmt.Sprintf("An emulator with the name %q already exists", name)}, nil
	}

	platform := s.scenario.Create.Platform
	if platform == "" {
		platform = "android-x64"
	}
	s.emulators = append(s.emulators, ScenarioEmulator{
		Emulator: device.Emulator{ID: name, Name: name},
		Platform: platform,
		BootTime: s.scenario.Create.BootTime,
	})
	return CreateResult{Success: true, EmulatorName: name}, nil
}

func (s *Simulator) freeNameLocked() string {
	name := "flutter_emulator"
	for i := 1; s.findLocked(name) != nil; i++ {
		name = fmt.Sprintf("flutter_emulator_%d", i)
	}
	return name
}

func (s *Simulator) findLocked(id string) *ScenarioEmulator {
	for i := range s.emulators {
		if s.emulators[i].ID == id {
			return &s.emulators[i]
		}
	}
	return nil
}

// LaunchEmulator implements Daemon. The emulator connects as a device after
// its boot time.
func (s *Simulator) LaunchEmulator(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	emu := s.findLocked(id)
	if emu == nil {
		s.mu.Unlock()
		return fmt.Errorf("no emulator with id %q", id)
	}
	e := *emu
	var deviceID string
	if strings.HasPrefix(e.Platform, "ios") {
		deviceID = strings.ToUpper(uuid.NewString())
	} else {
		deviceID = fmt.Sprintf("emulator-%d", s.nextPort)
		s.nextPort += 2
	}
	s.mu.Unlock()

	if e.FailLaunch != "" {
		return errors.New(e.FailLaunch)
	}
	if e.NeverBoots {
		s.logger.Debug("emulator launched but will never connect", "emulator_id", id)
		return nil
	}

	platform := e.Platform
	if platform == "" {
		platform = "android-x64"
	}
	d := device.Device{ID: deviceID, Name: e.DisplayName(), Platform: platform, Emulator: true}
	s.schedule(e.BootTime, func() { s.Connect(d) })
	return nil
}

func (s *Simulator) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := s.clock.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ Daemon = (*Simulator)(nil)
