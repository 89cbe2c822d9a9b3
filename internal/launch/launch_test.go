package launch

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/icarus-itcs/lazyflutter/internal/device"
	"github.com/icarus-itcs/lazyflutter/internal/event"
	"github.com/icarus-itcs/lazyflutter/internal/metrics"
	"github.com/icarus-itcs/lazyflutter/internal/registry"
	"github.com/icarus-itcs/lazyflutter/internal/testutil"
)

type harness struct {
	reg     *registry.Registry
	daemon  *testutil.FakeDaemon
	surface *testutil.FakeSurface
	clock   *clock.Mock
	metrics *metrics.Metrics
	states  chan Attempt
	orch    *Orchestrator
}

func newHarness(opts ...Option) *harness {
	h := &harness{
		reg:     registry.New(),
		daemon:  testutil.NewFakeDaemon(),
		surface: testutil.NewFakeSurface(),
		clock:   clock.NewMock(),
		metrics: metrics.New(),
		states:  make(chan Attempt, 32),
	}
	h.daemon.OnDeviceAdded(h.reg.Add)
	h.daemon.OnDeviceRemoved(func(d device.Device) { h.reg.Remove(d.ID) })

	base := []Option{
		WithClock(h.clock),
		WithMetrics(h.metrics),
		WithObserver(func(a Attempt) { h.states <- a }),
	}
	h.orch = New(h.reg, h.daemon, h.surface, append(base, opts...)...)
	return h
}

func (h *harness) waitState(t *testing.T, want State) Attempt {
	t.Helper()
	for {
		select {
		case a := <-h.states:
			if a.State == want {
				return a
			}
		case <-time.After(testutil.WaitTimeout):
			t.Fatalf("attempt never reached %s", want)
			return Attempt{}
		}
	}
}

func async(fn func() bool) <-chan bool {
	out := make(chan bool, 1)
	go func() { out <- fn() }()
	return out
}

func waitResult(t *testing.T, ch <-chan bool) bool {
	t.Helper()
	select {
	case ok := <-ch:
		return ok
	case <-time.After(testutil.WaitTimeout):
		t.Fatal("flow did not finish")
		return false
	}
}

func assertPending(t *testing.T, ch <-chan bool) {
	t.Helper()
	select {
	case ok := <-ch:
		t.Fatalf("flow finished early with %v", ok)
	default:
	}
}

var emulatorDevice = device.Device{ID: "emulator-5554", Name: "Pixel 7", Platform: "android-x64", Emulator: true}

func TestLaunchTimesOutAfterBound(t *testing.T) {
	h := newHarness()
	// An already active device is not a connect.
	h.reg.Add(device.Device{ID: "phone", Name: "Phone"})

	res := async(func() bool {
		return h.orch.Launch(context.Background(), device.Emulator{ID: "Pixel_7", Name: "Pixel 7"})
	})
	h.waitState(t, StateWaitingForConnect)

	for i := 0; i < 119; i++ {
		h.clock.Add(DefaultPollInterval)
		assertPending(t, res)
	}
	h.clock.Add(DefaultPollInterval)

	if waitResult(t, res) {
		t.Fatal("Launch should fail when nothing connects")
	}
	a := h.waitState(t, StateTimedOut)
	if !errors.Is(a.Err, ErrLaunchTimeout) {
		t.Errorf("attempt error = %v, want ErrLaunchTimeout", a.Err)
	}
	want := []string{"Failed to launch emulator: emulator did not connect within 1m0s"}
	if got := h.surface.Errors(); !reflect.DeepEqual(got, want) {
		t.Errorf("errors = %v, want %v", got, want)
	}
	if n := promtest.ToFloat64(h.metrics.LaunchAttempts.WithLabelValues(metrics.OutcomeTimedOut)); n != 1 {
		t.Errorf("timed_out attempts = %v", n)
	}
}

func TestLaunchSucceedsAfterConnectAndGrace(t *testing.T) {
	bus := event.NewBus(nil)
	var published []string
	bus.Subscribe(event.TypeLaunchState, func(e event.Event) {
		published = append(published, e.(event.LaunchStateEvent).State)
	})

	h := newHarness(WithBus(bus))
	res := async(func() bool {
		return h.orch.Launch(context.Background(), device.Emulator{ID: "Pixel_7", Name: "Pixel 7"})
	})
	h.waitState(t, StateWaitingForConnect)

	h.clock.Add(10 * DefaultPollInterval)
	assertPending(t, res)

	h.daemon.Connect(emulatorDevice)
	h.clock.Add(DefaultPollInterval)
	h.waitState(t, StateConnected)

	h.clock.Add(DefaultGracePeriod - time.Millisecond)
	assertPending(t, res)
	h.clock.Add(time.Millisecond)

	if !waitResult(t, res) {
		t.Fatal("Launch should succeed")
	}
	if cur := h.reg.Current(); cur == nil || cur.ID != emulatorDevice.ID {
		t.Errorf("active = %+v", cur)
	}
	if errs := h.surface.Errors(); len(errs) != 0 {
		t.Errorf("unexpected errors %v", errs)
	}

	progress := h.surface.Progress()
	if len(progress) != 1 || !progress[0].Finished() {
		t.Fatalf("progress = %+v", progress)
	}
	wantMsgs := []string{"Launching Pixel 7...", "Waiting for Pixel 7 to connect..."}
	if got := progress[0].Messages(); !reflect.DeepEqual(got, wantMsgs) {
		t.Errorf("progress messages = %v, want %v", got, wantMsgs)
	}

	wantStates := []string{"requested", "waiting_for_connect", "connected"}
	if !reflect.DeepEqual(published, wantStates) {
		t.Errorf("published states = %v, want %v", published, wantStates)
	}
	if !h.daemon.Called("launch:Pixel_7") {
		t.Errorf("calls = %v", h.daemon.Calls())
	}
}

func TestLaunchConnectBeforeWaitStarts(t *testing.T) {
	h := newHarness()
	h.daemon.OnLaunch = func(string) { h.daemon.Connect(emulatorDevice) }

	res := async(func() bool {
		return h.orch.Launch(context.Background(), device.Emulator{ID: "Pixel_7"})
	})
	h.waitState(t, StateWaitingForConnect)
	h.clock.Add(DefaultPollInterval)
	h.waitState(t, StateConnected)
	h.clock.Add(DefaultGracePeriod)

	if !waitResult(t, res) {
		t.Fatal("Launch should succeed")
	}
}

func TestLaunchDaemonError(t *testing.T) {
	h := newHarness()
	h.daemon.LaunchErr = errors.New("emulator binary not found")

	if h.orch.Launch(context.Background(), device.Emulator{ID: "Pixel_7"}) {
		t.Fatal("Launch should fail")
	}
	a := h.waitState(t, StateDaemonError)
	var derr *DaemonError
	if !errors.As(a.Err, &derr) || derr.Op != "launch emulator" {
		t.Errorf("attempt error = %v", a.Err)
	}
	want := []string{"Failed to launch emulator: emulator binary not found"}
	if got := h.surface.Errors(); !reflect.DeepEqual(got, want) {
		t.Errorf("errors = %v, want %v", got, want)
	}
	select {
	case a := <-h.states:
		t.Errorf("unexpected transition to %s", a.State)
	default:
	}
}

func TestLaunchCustomTimings(t *testing.T) {
	h := newHarness(WithTimings(2*time.Second, time.Second, 0))
	res := async(func() bool {
		return h.orch.Launch(context.Background(), device.Emulator{ID: "x"})
	})
	h.waitState(t, StateWaitingForConnect)
	h.clock.Add(time.Second)
	assertPending(t, res)
	h.clock.Add(time.Second)
	if waitResult(t, res) {
		t.Fatal("Launch should time out after the configured bound")
	}
}

func TestCreateAndLaunchFailure(t *testing.T) {
	h := newHarness()
	h.daemon.CanCreate = true
	h.daemon.CreateResult.Error = "disk full"

	if h.orch.CreateAndLaunch(context.Background()) {
		t.Fatal("CreateAndLaunch should fail")
	}
	if got := h.surface.Errors(); !reflect.DeepEqual(got, []string{"disk full"}) {
		t.Errorf("errors = %v, want [disk full]", got)
	}
	if got := h.daemon.Calls(); !reflect.DeepEqual(got, []string{"create"}) {
		t.Errorf("calls = %v, want only create", got)
	}
	progress := h.surface.Progress()
	if len(progress) != 1 || progress[0].Title != "Creating emulator..." || !progress[0].Finished() {
		t.Errorf("progress = %+v", progress)
	}
	if n := promtest.ToFloat64(h.metrics.LaunchAttempts.WithLabelValues(metrics.OutcomeCreateError)); n != 1 {
		t.Errorf("create_failed = %v", n)
	}
}

func TestCreateAndLaunchTransportError(t *testing.T) {
	h := newHarness()
	h.daemon.CreateErr = errors.New("daemon went away")

	if h.orch.CreateAndLaunch(context.Background()) {
		t.Fatal("CreateAndLaunch should fail")
	}
	want := []string{"Failed to create emulator: daemon went away"}
	if got := h.surface.Errors(); !reflect.DeepEqual(got, want) {
		t.Errorf("errors = %v, want %v", got, want)
	}
}

func TestCreateAndLaunchSuccess(t *testing.T) {
	h := newHarness()
	h.daemon.CanCreate = true
	h.daemon.CreateResult.Success = true
	h.daemon.CreateResult.EmulatorName = "flutter_emulator"
	h.daemon.OnLaunch = func(string) { h.daemon.Connect(emulatorDevice) }

	res := async(func() bool { return h.orch.CreateAndLaunch(context.Background()) })
	h.waitState(t, StateWaitingForConnect)
	h.clock.Add(DefaultPollInterval)
	h.waitState(t, StateConnected)
	h.clock.Add(DefaultGracePeriod)

	if !waitResult(t, res) {
		t.Fatal("CreateAndLaunch should succeed")
	}
	if got := h.daemon.Calls(); !reflect.DeepEqual(got, []string{"create", "launch:flutter_emulator"}) {
		t.Errorf("calls = %v", got)
	}
}

func TestPromptAndLaunchAutoSelect(t *testing.T) {
	h := newHarness()
	h.daemon.Emulators = []device.Emulator{{ID: "Pixel_7"}}
	h.daemon.BeforeListReturn = func() { h.daemon.Connect(emulatorDevice) }

	if !h.orch.PromptAndLaunch(context.Background(), true) {
		t.Fatal("PromptAndLaunch(true) should use the device that connected")
	}
	if n := len(h.surface.Lists()); n != 0 {
		t.Errorf("%d lists opened, want none", n)
	}
}

func TestPromptAndLaunchEmpty(t *testing.T) {
	h := newHarness()

	if h.orch.PromptAndLaunch(context.Background(), false) {
		t.Fatal("PromptAndLaunch should fail with nothing to offer")
	}
	if got := h.surface.Errors(); !reflect.DeepEqual(got, []string{ErrEmptyTargetSet.Error()}) {
		t.Errorf("errors = %v", got)
	}
	if n := len(h.surface.Lists()); n != 0 {
		t.Errorf("%d lists opened, want none", n)
	}
}

func TestPromptAndLaunchCancelledByDevice(t *testing.T) {
	h := newHarness()
	h.daemon.Emulators = []device.Emulator{{ID: "Pixel_7", Name: "Pixel 7"}}
	h.daemon.CanCreate = true

	res := async(func() bool { return h.orch.PromptAndLaunch(context.Background(), false) })
	list := h.surface.NextList(t)
	if got := testutil.Labels(list.Items()); !reflect.DeepEqual(got, []string{"Pixel 7", "Create Android Emulator"}) {
		t.Fatalf("labels = %v", got)
	}
	if list.Items()[0].Description != "Pixel_7" {
		t.Errorf("description = %q, want the emulator id", list.Items()[0].Description)
	}

	h.daemon.Connect(device.Device{ID: "phone", Name: "Phone"})
	if !waitResult(t, res) {
		t.Fatal("PromptAndLaunch should report the connected device")
	}
	list.Accept(0)

	if !list.Closed() {
		t.Error("prompt should be closed")
	}
	for _, c := range h.daemon.Calls() {
		if c != "list" {
			t.Errorf("unexpected daemon call %q after cancellation", c)
		}
	}
	if n := promtest.ToFloat64(h.metrics.PromptCancellation); n != 1 {
		t.Errorf("prompt cancellations = %v", n)
	}
	if subs := h.daemon.Bus.SubscriptionCount(); subs != 2 {
		t.Errorf("%d subscriptions left, want the registry's 2", subs)
	}
}

func TestPromptAndLaunchDispatch(t *testing.T) {
	t.Run("emulator", func(t *testing.T) {
		h := newHarness()
		h.daemon.Emulators = []device.Emulator{{ID: "Pixel_7", Name: "Pixel 7"}}
		h.daemon.OnLaunch = func(string) { h.daemon.Connect(emulatorDevice) }

		res := async(func() bool { return h.orch.PromptAndLaunch(context.Background(), false) })
		h.surface.NextList(t).AcceptLabel(t, "Pixel 7")
		h.waitState(t, StateWaitingForConnect)
		h.clock.Add(DefaultPollInterval)
		h.waitState(t, StateConnected)
		h.clock.Add(DefaultGracePeriod)

		if !waitResult(t, res) {
			t.Fatal("PromptAndLaunch should succeed")
		}
		if n := promtest.ToFloat64(h.metrics.PromptCancellation); n != 0 {
			t.Errorf("our own emulator connecting must not count as a cancellation, got %v", n)
		}
	})

	t.Run("creator", func(t *testing.T) {
		h := newHarness()
		h.daemon.CanCreate = true
		h.daemon.CreateResult.Error = "disk full"

		res := async(func() bool { return h.orch.PromptAndLaunch(context.Background(), false) })
		h.surface.NextList(t).AcceptLabel(t, "Create Android Emulator")
		if waitResult(t, res) {
			t.Fatal("PromptAndLaunch should fail when creation fails")
		}
		if got := h.surface.Errors(); !reflect.DeepEqual(got, []string{"disk full"}) {
			t.Errorf("errors = %v", got)
		}
	})

	t.Run("dismissed", func(t *testing.T) {
		for _, active := range []bool{false, true} {
			h := newHarness()
			h.daemon.Emulators = []device.Emulator{{ID: "Pixel_7"}}
			if active {
				h.reg.Add(device.Device{ID: "phone"})
			}
			res := async(func() bool { return h.orch.PromptAndLaunch(context.Background(), false) })
			h.surface.NextList(t).Dismiss()
			if got := waitResult(t, res); got != active {
				t.Errorf("active=%v: PromptAndLaunch = %v", active, got)
			}
			if n := len(h.daemon.Calls()); n != 1 {
				t.Errorf("calls = %v, want only list", h.daemon.Calls())
			}
		}
	})
}

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateIdle, StateRequested, true},
		{StateRequested, StateWaitingForConnect, true},
		{StateRequested, StateDaemonError, true},
		{StateWaitingForConnect, StateConnected, true},
		{StateWaitingForConnect, StateTimedOut, true},
		{StateIdle, StateConnected, false},
		{StateConnected, StateRequested, false},
		{StateTimedOut, StateWaitingForConnect, false},
	}
	for _, tt := range tests {
		if got := canTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("canTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
	for _, s := range []State{StateConnected, StateTimedOut, StateDaemonError} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}
