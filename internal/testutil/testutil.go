// Package testutil provides daemon and surface doubles for lazyflutter tests.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/icarus-itcs/lazyflutter/internal/daemon"
	"github.com/icarus-itcs/lazyflutter/internal/device"
	"github.com/icarus-itcs/lazyflutter/internal/event"
	"github.com/icarus-itcs/lazyflutter/internal/logging"
	"github.com/icarus-itcs/lazyflutter/internal/picker"
)

// WaitTimeout bounds every blocking helper in this package.
const WaitTimeout = 2 * time.Second

// FakeDaemon is a scriptable daemon.Daemon. Fields may be set before use;
// the mutex guards the call log.
type FakeDaemon struct {
	Bus *event.Bus

	Ready     bool
	CanCreate bool
	Emulators []device.Emulator
	ListErr   error
	// ListGate, when non-nil, blocks ListEmulators until it is closed.
	// The context is ignored while blocked.
	ListGate chan struct{}
	// BeforeListReturn runs just before ListEmulators returns.
	BeforeListReturn func()

	CreateResult daemon.CreateResult
	CreateErr    error
	LaunchErr    error
	// OnLaunch runs after a successful LaunchEmulator call.
	OnLaunch func(id string)

	mu    sync.Mutex
	calls []string
}

// NewFakeDaemon creates a ready fake daemon with its own bus.
func NewFakeDaemon() *FakeDaemon {
	return &FakeDaemon{Bus: event.NewBus(logging.NopLogger()), Ready: true}
}

func (f *FakeDaemon) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

// Calls returns the recorded calls, e.g. "list", "create", "launch:Pixel_7".
func (f *FakeDaemon) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Called reports whether call was recorded.
func (f *FakeDaemon) Called(call string) bool {
	for _, c := range f.Calls() {
		if c == call {
			return true
		}
	}
	return false
}

// Connect publishes a device-added event.
func (f *FakeDaemon) Connect(d device.Device) {
	f.Bus.Publish(event.NewDeviceAddedEvent(d))
}

// Disconnect publishes a device-removed event.
func (f *FakeDaemon) Disconnect(d device.Device) {
	f.Bus.Publish(event.NewDeviceRemovedEvent(d))
}

// MarkReady publishes a ready event.
func (f *FakeDaemon) MarkReady() {
	f.Ready = true
	f.Bus.Publish(event.NewReadyEvent())
}

func (f *FakeDaemon) OnDeviceAdded(fn func(device.Device)) event.UnsubscribeFunc {
	return f.Bus.Subscribe(event.TypeDeviceAdded, func(e event.Event) { fn(e.(event.DeviceEvent).Device) })
}

func (f *FakeDaemon) OnDeviceRemoved(fn func(device.Device)) event.UnsubscribeFunc {
	return f.Bus.Subscribe(event.TypeDeviceRemoved, func(e event.Event) { fn(e.(event.DeviceEvent).Device) })
}

func (f *FakeDaemon) OnReady(fn func()) event.UnsubscribeFunc {
	return f.Bus.Subscribe(event.TypeDaemonReady, func(event.Event) { fn() })
}

func (f *FakeDaemon) IsReady() bool { return f.Ready }

func (f *FakeDaemon) Capabilities() daemon.Capabilities {
	return daemon.Capabilities{CanCreateEmulators: f.CanCreate}
}

func (f *FakeDaemon) ListEmulators(ctx context.Context) ([]device.Emulator, error) {
	f.record("list")
	if f.ListGate != nil {
		<-f.ListGate
	}
	if f.BeforeListReturn != nil {
		f.BeforeListReturn()
	}
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return append([]device.Emulator(nil), f.Emulators...), nil
}

func (f *FakeDaemon) CreateEmulator(ctx context.Context, name string) (daemon.CreateResult, error) {
	f.record("create")
	return f.CreateResult, f.CreateErr
}

func (f *FakeDaemon) LaunchEmulator(ctx context.Context, id string) error {
	f.record("launch:" + id)
	if f.LaunchErr != nil {
		return f.LaunchErr
	}
	if f.OnLaunch != nil {
		f.OnLaunch(id)
	}
	return nil
}

var _ daemon.Daemon = (*FakeDaemon)(nil)

// FakeSurface records everything shown on it.
type FakeSurface struct {
	mu       sync.Mutex
	lists    []*FakeList
	errors   []string
	progress []*FakeProgress
	opened   chan *FakeList
}

// NewFakeSurface creates an empty surface.
func NewFakeSurface() *FakeSurface {
	return &FakeSurface{opened: make(chan *FakeList, 16)}
}

func (s *FakeSurface) OpenList(placeholder string, items []picker.Item, busy bool) picker.List {
	l := &FakeList{
		Placeholder: placeholder,
		items:       append([]picker.Item(nil), items...),
		busy:        busy,
		done:        make(chan picker.Selection, 1),
	}
	s.mu.Lock()
	s.lists = append(s.lists, l)
	s.mu.Unlock()
	s.opened <- l
	return l
}

func (s *FakeSurface) ShowProgress(title string) picker.Progress {
	p := &FakeProgress{Title: title}
	s.mu.Lock()
	s.progress = append(s.progress, p)
	s.mu.Unlock()
	return p
}

func (s *FakeSurface) ShowError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, msg)
}

// NextList waits for the next OpenList call.
func (s *FakeSurface) NextList(t *testing.T) *FakeList {
	t.Helper()
	select {
	case l := <-s.opened:
		return l
	case <-time.After(WaitTimeout):
		t.Fatal("no list was opened")
		return nil
	}
}

// Lists returns every list opened so far.
func (s *FakeSurface) Lists() []*FakeList {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*FakeList(nil), s.lists...)
}

// Errors returns the error messages shown so far.
func (s *FakeSurface) Errors() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.errors...)
}

// Progress returns the progress indicators shown so far.
func (s *FakeSurface) Progress() []*FakeProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*FakeProgress(nil), s.progress...)
}

// FakeList is an open list driven by the test.
type FakeList struct {
	Placeholder string

	mu       sync.Mutex
	items    []picker.Item
	busy     bool
	setCalls int
	closed   bool
	resolved bool
	done     chan picker.Selection
}

func (l *FakeList) SetItems(items []picker.Item) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append([]picker.Item(nil), items...)
	l.setCalls++
}

func (l *FakeList) SetBusy(busy bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.busy = busy
}

func (l *FakeList) Done() <-chan picker.Selection { return l.done }

func (l *FakeList) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.resolve(picker.Selection{})
}

func (l *FakeList) resolve(sel picker.Selection) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.resolved {
		return
	}
	l.resolved = true
	l.done <- sel
}

// Accept picks the item at index i.
func (l *FakeList) Accept(i int) {
	l.mu.Lock()
	item := l.items[i]
	l.mu.Unlock()
	l.resolve(picker.Selection{Item: &item})
}

// AcceptLabel picks the first item with the given label.
func (l *FakeList) AcceptLabel(t *testing.T, label string) {
	t.Helper()
	for i, it := range l.Items() {
		if it.Label == label {
			l.Accept(i)
			return
		}
	}
	t.Fatalf("no item labelled %q in %v", label, Labels(l.Items()))
}

// Dismiss closes the list without a choice.
func (l *FakeList) Dismiss() {
	l.resolve(picker.Selection{})
}

func (l *FakeList) Items() []picker.Item {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]picker.Item(nil), l.items...)
}

func (l *FakeList) Busy() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.busy
}

// SetItemsCalls counts SetItems calls.
func (l *FakeList) SetItemsCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.setCalls
}

func (l *FakeList) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// WaitItems waits until the list holds n items.
func (l *FakeList) WaitItems(t *testing.T, n int) []picker.Item {
	t.Helper()
	deadline := time.Now().Add(WaitTimeout)
	for time.Now().Before(deadline) {
		if items := l.Items(); len(items) == n {
			return items
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("list has %d items, want %d", len(l.Items()), n)
	return nil
}

// FakeProgress records reported messages.
type FakeProgress struct {
	Title string

	mu       sync.Mutex
	messages []string
	done     bool
}

func (p *FakeProgress) Report(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
}

func (p *FakeProgress) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = true
}

func (p *FakeProgress) Messages() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.messages...)
}

func (p *FakeProgress) Finished() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Labels returns the item labels in order.
func Labels(items []picker.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Label
	}
	return out
}
