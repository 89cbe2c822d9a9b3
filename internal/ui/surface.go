package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/icarus-itcs/lazyflutter/internal/device"
	"github.com/icarus-itcs/lazyflutter/internal/event"
	"github.com/icarus-itcs/lazyflutter/internal/picker"
	"github.com/icarus-itcs/lazyflutter/internal/status"
)

// Sender delivers messages to a running program. *tea.Program implements it.
type Sender interface {
	Send(msg tea.Msg)
}

// Surface shows lists, progress and errors inside the TUI. Calls made from
// flow goroutines are turned into messages for the program; the model
// answers lists by resolving their handles.
//
// Surface methods must not be called from Model.Update, since delivering a
// message waits for the program loop.
type Surface struct {
	mu     sync.Mutex
	sender Sender
	nextID int
}

// NewSurface creates a surface. Messages are dropped until Attach is called.
func NewSurface() *Surface {
	return &Surface{}
}

// Attach routes messages to the program.
func (s *Surface) Attach(sender Sender) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sender = sender
}

func (s *Surface) post(msg tea.Msg) {
	s.mu.Lock()
	sender := s.sender
	s.mu.Unlock()
	if sender != nil {
		sender.Send(msg)
	}
}

func (s *Surface) id() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return s.nextID
}

type listOpenedMsg struct {
	handle      *listHandle
	placeholder string
	items       []picker.Item
	busy        bool
}

type listItemsMsg struct {
	id    int
	items []picker.Item
}

type listBusyMsg struct {
	id   int
	busy bool
}

type listClosedMsg struct{ id int }

type progressStartedMsg struct {
	id    int
	title string
}

type progressReportMsg struct {
	id  int
	msg string
}

type progressDoneMsg struct{ id int }

type errorMsg struct{ msg string }

type statusMsg struct{ status status.Status }

type deviceSelectedMsg struct{ device device.Device }

type launchStateMsg struct{ event event.LaunchStateEvent }

// OpenList implements picker.Surface.
func (s *Surface) OpenList(placeholder string, items []picker.Item, busy bool) picker.List {
	h := &listHandle{
		id:      s.id(),
		surface: s,
		done:    make(chan picker.Selection, 1),
	}
	s.post(listOpenedMsg{
		handle:      h,
		placeholder: placeholder,
		items:       append([]picker.Item(nil), items...),
		busy:        busy,
	})
	return h
}

// ShowProgress implements picker.Surface.
func (s *Surface) ShowProgress(title string) picker.Progress {
	p := &progressHandle{id: s.id(), surface: s}
	s.post(progressStartedMsg{id: p.id, title: title})
	return p
}

// ShowError implements picker.Surface.
func (s *Surface) ShowError(msg string) {
	s.post(errorMsg{msg: msg})
}

// Watch forwards status, selection and launch events from bus to the
// program until the returned func is called.
func (s *Surface) Watch(bus *event.Bus) func() {
	unsubs := []event.UnsubscribeFunc{
		bus.Subscribe(event.TypeStatusChanged, func(e event.Event) {
			se := e.(event.StatusEvent)
			s.post(statusMsg{status: status.Status{Text: se.Text, Tooltip: se.Tooltip, Visible: se.Visible}})
		}),
		bus.Subscribe(event.TypeDeviceSelected, func(e event.Event) {
			s.post(deviceSelectedMsg{device: e.(event.DeviceEvent).Device})
		}),
		bus.Subscribe(event.TypeLaunchState, func(e event.Event) {
			s.post(launchStateMsg{event: e.(event.LaunchStateEvent)})
		}),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

type listHandle struct {
	id      int
	surface *Surface
	once    sync.Once
	done    chan picker.Selection
}

func (h *listHandle) SetItems(items []picker.Item) {
	h.surface.post(listItemsMsg{id: h.id, items: append([]picker.Item(nil), items...)})
}

func (h *listHandle) SetBusy(busy bool) {
	h.surface.post(listBusyMsg{id: h.id, busy: busy})
}

func (h *listHandle) Done() <-chan picker.Selection {
	return h.done
}

func (h *listHandle) Close() {
	h.resolve(picker.Selection{})
	h.surface.post(listClosedMsg{id: h.id})
}

// resolve delivers the first selection; later ones are dropped.
func (h *listHandle) resolve(sel picker.Selection) {
	h.once.Do(func() { h.done <- sel })
}

type progressHandle struct {
	id      int
	surface *Surface
}

func (p *progressHandle) Report(msg string) {
	p.surface.post(progressReportMsg{id: p.id, msg: msg})
}

func (p *progressHandle) Done() {
	p.surface.post(progressDoneMsg{id: p.id})
}

var _ picker.Surface = (*Surface)(nil)
