package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/icarus-itcs/lazyflutter/internal/device"
	"github.com/icarus-itcs/lazyflutter/internal/launch"
	"github.com/icarus-itcs/lazyflutter/internal/manager"
	"github.com/icarus-itcs/lazyflutter/internal/status"
)

// Focus tracks which pane is active
type Focus int

const (
	FocusDevices Focus = iota
	FocusActivity
)

const (
	statusMessageTTL = 4 * time.Second
	quitConfirmTTL   = 3 * time.Second
	devicePaneWidth  = 34
)

// StartFunc starts the daemon once the program is running.
type StartFunc func(ctx context.Context)

type progressEntry struct {
	id      int
	title   string
	message string
}

// Model is the main app state
type Model struct {
	ctx     context.Context
	manager *manager.Manager
	surface *Surface
	start   StartFunc

	// Devices, active first
	devices        []device.Device
	activeID       string
	selectedDevice int
	status         status.Status

	// Activity tabs: the system log, then one per launch attempt
	activities       []*Activity
	selectedActivity int
	attempts         map[string]*Activity

	list     *listOverlay
	progress []progressEntry
	flows    int

	// UI
	focus         Focus
	logViewport   viewport.Model
	spinner       spinner.Model
	help          help.Model
	keys          keyMap
	width         int
	height        int
	showHelp      bool
	statusMessage string
	statusIsError bool
	statusTime    time.Time

	confirmQuit bool
	quitTime    time.Time

	now func() time.Time
}

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Left    key.Binding
	Right   key.Binding
	Tab     key.Binding
	Enter   key.Binding
	Devices key.Binding
	Launch  key.Binding
	Create  key.Binding
	Copy    key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Left:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "prev tab")),
		Right:   key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "next tab")),
		Tab:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch pane")),
		Enter:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "use device")),
		Devices: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "pick device")),
		Launch:  key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "launch emulator")),
		Create:  key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new emulator")),
		Copy:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy device id")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Devices, k.Launch, k.Create, k.Tab, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Enter},
		{k.Devices, k.Launch, k.Create},
		{k.Left, k.Right, k.Tab},
		{k.Copy, k.Help, k.Quit},
	}
}

// NewModel creates the model. start may be nil when the daemon is already
// running.
func NewModel(ctx context.Context, mgr *manager.Manager, surface *Surface, start StartFunc) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(flutterSky)

	system := &Activity{ID: "system", Name: "System", Status: ActivityRunning, StartTime: time.Now()}

	m := Model{
		ctx:         ctx,
		manager:     mgr,
		surface:     surface,
		start:       start,
		status:      mgr.Status(),
		activities:  []*Activity{system},
		attempts:    make(map[string]*Activity),
		focus:       FocusDevices,
		spinner:     s,
		logViewport: viewport.New(0, 0),
		help:        help.New(),
		keys:        defaultKeyMap(),
		now:         time.Now,
	}
	m.refreshDevices()
	m.updateLogViewport()
	return m
}

// Run starts the program and blocks until it exits or ctx is cancelled.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	m.surface.Attach(p)
	stop := m.surface.Watch(m.manager.Bus())
	defer stop()

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

type daemonStartedMsg struct{}

type flowDoneMsg struct {
	name string
	ok   bool
}

// Init starts the daemon
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, tea.SetWindowTitle(m.terminalTitle())}
	if m.start != nil {
		start, ctx := m.start, m.ctx
		cmds = append(cmds, func() tea.Msg {
			start(ctx)
			return daemonStartedMsg{}
		})
	}
	return tea.Batch(cmds...)
}

func (m *Model) terminalTitle() string {
	if m.flows > 0 {
		return "lazyflutter - working..."
	}
	if m.status.Visible {
		return "lazyflutter - " + m.status.Text
	}
	return "lazyflutter"
}

// runFlow runs a manager flow off the program loop
func (m *Model) runFlow(name string, fn func(ctx context.Context) bool) tea.Cmd {
	m.flows++
	ctx := m.ctx
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		return flowDoneMsg{name: name, ok: fn(ctx)}
	})
}

// Update handles all messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.list != nil {
			return m.handleListInput(msg)
		}
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()

	case spinner.TickMsg:
		if m.busy() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case daemonStartedMsg:
		m.addLog("Daemon started")

	case statusMsg:
		m.status = msg.status
		m.refreshDevices()
		cmds = append(cmds, tea.SetWindowTitle(m.terminalTitle()))

	case deviceSelectedMsg:
		m.addLog(fmt.Sprintf("Using %s", msg.device.String()))
		m.refreshDevices()

	case launchStateMsg:
		m.applyLaunchState(msg)

	case listOpenedMsg:
		if m.list != nil {
			m.list.dismiss()
		}
		m.list = newListOverlay(msg)
		cmds = append(cmds, m.spinner.Tick)

	case listItemsMsg:
		if m.list != nil && m.list.id() == msg.id {
			m.list.setItems(msg.items)
		}

	case listBusyMsg:
		if m.list != nil && m.list.id() == msg.id {
			m.list.busy = msg.busy
		}

	case listClosedMsg:
		if m.list != nil && m.list.id() == msg.id {
			m.list = nil
		}

	case progressStartedMsg:
		m.progress = append(m.progress, progressEntry{id: msg.id, title: msg.title})
		cmds = append(cmds, m.spinner.Tick)

	case progressReportMsg:
		for i := range m.progress {
			if m.progress[i].id == msg.id {
				m.progress[i].message = msg.msg
				m.addLog(msg.msg)
			}
		}

	case progressDoneMsg:
		for i := range m.progress {
			if m.progress[i].id == msg.id {
				m.progress = append(m.progress[:i], m.progress[i+1:]...)
				break
			}
		}

	case errorMsg:
		m.setStatus(msg.msg, true)
		m.addLog("Error: " + msg.msg)

	case flowDoneMsg:
		if m.flows > 0 {
			m.flows--
		}
		if msg.ok {
			m.addLog(msg.name + " done")
		} else {
			m.addLog(msg.name + " finished without a device change")
		}
		cmds = append(cmds, tea.SetWindowTitle(m.terminalTitle()))
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !key.Matches(msg, m.keys.Quit) && m.confirmQuit && m.now().Sub(m.quitTime) > quitConfirmTTL {
		m.confirmQuit = false
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.confirmQuit && m.now().Sub(m.quitTime) < quitConfirmTTL {
			return m, tea.Quit
		}
		m.confirmQuit = true
		m.quitTime = m.now()
		if m.flows > 0 {
			m.setStatus("⚠ an emulator launch is in progress! Press q again to quit", false)
		} else {
			m.setStatus("Press q again to quit", false)
		}
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
		return m, nil

	case key.Matches(msg, m.keys.Tab):
		if m.focus == FocusDevices {
			m.focus = FocusActivity
		} else {
			m.focus = FocusDevices
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.focus == FocusDevices {
			if m.selectedDevice > 0 {
				m.selectedDevice--
			}
		} else {
			m.logViewport.LineUp(3)
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.focus == FocusDevices {
			if m.selectedDevice < len(m.devices)-1 {
				m.selectedDevice++
			}
		} else {
			m.logViewport.LineDown(3)
		}
		return m, nil

	case key.Matches(msg, m.keys.Left):
		if m.focus == FocusActivity && m.selectedActivity > 0 {
			m.selectedActivity--
			m.updateLogViewport()
		}
		return m, nil

	case key.Matches(msg, m.keys.Right):
		if m.focus == FocusActivity && m.selectedActivity < len(m.activities)-1 {
			m.selectedActivity++
			m.updateLogViewport()
		}
		return m, nil

	case key.Matches(msg, m.keys.Enter):
		if m.focus != FocusDevices || m.selectedDevice >= len(m.devices) {
			return m, nil
		}
		id := m.devices[m.selectedDevice].ID
		mgr := m.manager
		return m, func() tea.Msg {
			mgr.SelectDevice(id)
			return nil
		}

	case key.Matches(msg, m.keys.Devices):
		mgr := m.manager
		return m, m.runFlow("Device picker", mgr.ShowDevicePicker)

	case key.Matches(msg, m.keys.Launch):
		mgr := m.manager
		return m, m.runFlow("Emulator launch", func(ctx context.Context) bool {
			return mgr.PromptForAndLaunchEmulator(ctx, false)
		})

	case key.Matches(msg, m.keys.Create):
		mgr := m.manager
		return m, m.runFlow("Emulator creation", mgr.CreateAndLaunchEmulator)

	case key.Matches(msg, m.keys.Copy):
		if m.activeID == "" {
			m.setStatus("No active device", false)
			return m, nil
		}
		if err := clipboard.WriteAll(m.activeID); err != nil {
			m.setStatus("Copy failed: "+err.Error(), true)
		} else {
			m.setStatus("Copied "+m.activeID+" to clipboard", false)
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleListInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.list.dismiss()
		m.list = nil
		return m, tea.Quit
	case tea.KeyEsc:
		m.list.dismiss()
		m.list = nil
	case tea.KeyEnter:
		if m.list.accept() {
			m.list = nil
		}
	case tea.KeyUp:
		m.list.move(-1)
	case tea.KeyDown:
		m.list.move(1)
	case tea.KeyBackspace:
		m.list.backspace()
	case tea.KeyRunes, tea.KeySpace:
		m.list.typeRunes(msg.Runes)
	}
	return m, nil
}

func (m *Model) busy() bool {
	return m.flows > 0 || len(m.progress) > 0 || (m.list != nil && m.list.busy)
}

func (m *Model) refreshDevices() {
	reg := m.manager.Registry()
	m.devices = reg.ListSorted()
	m.activeID = ""
	if cur := reg.Current(); cur != nil {
		m.activeID = cur.ID
	}
	if m.selectedDevice >= len(m.devices) {
		m.selectedDevice = len(m.devices) - 1
	}
	if m.selectedDevice < 0 {
		m.selectedDevice = 0
	}
}

func (m *Model) applyLaunchState(msg launchStateMsg) {
	e := msg.event
	act, ok := m.attempts[e.AttemptID]
	if !ok {
		act = &Activity{ID: e.AttemptID, Name: e.EmulatorID, Status: ActivityRunning, StartTime: e.Timestamp()}
		m.attempts[e.AttemptID] = act
		m.activities = append(m.activities, act)
		m.selectedActivity = len(m.activities) - 1
	}

	line := strings.ReplaceAll(e.State, "_", " ")
	if e.Err != nil {
		line += ": " + e.Err.Error()
	}
	act.AddLog(e.Timestamp(), line)

	state := launch.State(e.State)
	if state.Terminal() {
		act.Finish(e.Timestamp(), state == launch.StateConnected)
	}
	m.updateLogViewport()
}

func (m *Model) updateLayout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	logWidth := m.width - devicePaneWidth - 10
	logHeight := m.height - 12
	if logHeight < 5 {
		logHeight = 5
	}
	m.logViewport.Width = logWidth
	m.logViewport.Height = logHeight
}

func (m *Model) selectedActivityTab() *Activity {
	if m.selectedActivity < 0 || m.selectedActivity >= len(m.activities) {
		return nil
	}
	return m.activities[m.selectedActivity]
}

func (m *Model) updateLogViewport() {
	a := m.selectedActivityTab()
	if a == nil || len(a.Logs) == 0 {
		m.logViewport.SetContent(logEmptyStyle.Render("\n  Device and launch activity shows up here..."))
		return
	}
	m.logViewport.SetContent(strings.Join(a.Logs, "\n"))
	m.logViewport.GotoBottom()
}

func (m *Model) addLog(line string) {
	m.activities[0].AddLog(m.now(), line)
	if m.selectedActivity == 0 {
		m.updateLogViewport()
	}
}

func (m *Model) setStatus(msg string, isError bool) {
	m.statusMessage = msg
	m.statusIsError = isError
	m.statusTime = m.now()
}

// View renders the app
func (m Model) View() string {
	if m.showHelp {
		return lipgloss.JoinVertical(lipgloss.Left, "", m.renderHeader(), "", m.help.View(m.keys))
	}

	left := m.renderDevices()
	var right string
	if m.list != nil {
		right = m.list.view(m.spinner.View(), m.width-devicePaneWidth-10)
	} else {
		right = m.renderActivity()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		"",
		m.renderHeader(),
		"",
		lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right),
		"",
		m.renderHelp(),
	)
}

func (m *Model) renderHeader() string {
	parts := []string{"  " + LogoCompact()}

	if s := m.status.Render(); s != "" {
		parts = append(parts, s)
	} else {
		parts = append(parts, m.spinner.View()+mutedStyle.Render(" waiting for daemon..."))
	}

	if n := len(m.progress); n > 0 {
		p := m.progress[n-1]
		text := p.title
		if p.message != "" {
			text = p.message
		}
		parts = append(parts, m.spinner.View()+" "+text)
	}

	if m.statusMessage != "" && m.now().Sub(m.statusTime) < statusMessageTTL {
		if m.statusIsError {
			parts = append(parts, errorStyle.Render(m.statusMessage))
		} else {
			parts = append(parts, successStyle.Render(m.statusMessage))
		}
	}

	return headerStyle.Render(strings.Join(parts, "  "))
}

func (m *Model) renderDevices() string {
	title := titleStyle.Render("DEVICES")

	var items []string
	for i, d := range m.devices {
		marker := " "
		if d.ID == m.activeID {
			marker = onlineStyle.Render("●")
		}

		kind := mutedStyle.Render("dev")
		if d.Emulator {
			kind = mutedStyle.Render("emu")
		}

		name := d.Name
		if len(name) > 18 {
			name = name[:15] + "..."
		}

		if i == m.selectedDevice && m.focus == FocusDevices {
			arrow := lipgloss.NewStyle().Foreground(flutterSky).Bold(true).Render("▶")
			nameStyled := lipgloss.NewStyle().Foreground(flutterSky).Bold(true).Render(name)
			items = append(items, fmt.Sprintf(" %s %s %s %s  %s", arrow, marker, PlatformBadge(d.Platform), nameStyled, kind))
			continue
		}
		items = append(items, fmt.Sprintf("   %s %s %s  %s", marker, PlatformBadge(d.Platform), name, kind))
	}

	if len(items) == 0 {
		items = append(items,
			mutedStyle.Render("  No devices connected"),
			"",
			mutedStyle.Render("  Press e to launch an emulator"),
		)
	}

	paneHeight := m.height - 10
	if paneHeight < 5 {
		paneHeight = 5
	}
	inner := lipgloss.JoinVertical(lipgloss.Left, title, "", lipgloss.JoinVertical(lipgloss.Left, items...))
	if m.focus == FocusDevices {
		return activePaneStyle.Width(devicePaneWidth).Height(paneHeight).Render(inner)
	}
	return inactivePaneStyle.Width(devicePaneWidth).Height(paneHeight).Render(inner)
}

func (m *Model) renderActivity() string {
	paneWidth := m.width - devicePaneWidth - 10
	paneHeight := m.height - 10
	if paneHeight < 5 {
		paneHeight = 5
	}
	if paneWidth < 20 {
		paneWidth = 20
	}

	var tabs []string
	for i, a := range m.activities {
		var icon string
		switch a.Status {
		case ActivityRunning:
			icon = m.spinner.View()
			if a.ID == "system" {
				icon = mutedStyle.Render("•")
			}
		case ActivitySuccess:
			icon = successStyle.Render(a.StatusIcon())
		case ActivityFailed:
			icon = failedStyle.Render(a.StatusIcon())
		}

		name := a.Name
		if len(name) > 14 {
			name = name[:12] + ".."
		}
		if i == m.selectedActivity {
			tabs = append(tabs, fmt.Sprintf("%s [%s]", icon, lipgloss.NewStyle().Foreground(flutterSky).Bold(true).Render(name)))
		} else {
			tabs = append(tabs, fmt.Sprintf("%s %s", icon, mutedStyle.Render(name)))
		}
	}

	inner := lipgloss.JoinVertical(lipgloss.Left, strings.Join(tabs, "  │  "), "", m.logViewport.View())
	if m.focus == FocusActivity {
		return activeLogPaneStyle.Width(paneWidth).Height(paneHeight).Render(inner)
	}
	return logPaneStyle.Width(paneWidth).Height(paneHeight).Render(inner)
}

func (m *Model) renderHelp() string {
	if m.list != nil {
		keys := []string{
			helpKeyStyle.Render("↑/↓") + " move",
			helpKeyStyle.Render("enter") + " choose",
			helpKeyStyle.Render("esc") + " cancel",
			mutedStyle.Render("type to filter"),
		}
		return helpStyle.Render("  " + strings.Join(keys, "  "))
	}
	keys := []string{
		helpKeyStyle.Render("d") + " devices",
		helpKeyStyle.Render("e") + " launch",
		helpKeyStyle.Render("n") + " new emulator",
		helpKeyStyle.Render("c") + " copy id",
		helpKeyStyle.Render("tab") + " pane",
		helpKeyStyle.Render("?") + " help",
		helpKeyStyle.Render("q") + " quit",
	}
	if m.flows > 0 {
		keys = append(keys, warnStyle.Render(fmt.Sprintf("%d running", m.flows)))
	}
	return helpStyle.Render("  " + strings.Join(keys, "  "))
}
