package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/icarus-itcs/lazyflutter/internal/picker"
)

// listOverlay is the open pick-list. Typing filters on label and
// description; entries marked AlwaysShow survive any filter.
type listOverlay struct {
	handle      *listHandle
	placeholder string
	items       []picker.Item
	busy        bool
	filter      string
	cursor      int
}

func newListOverlay(msg listOpenedMsg) *listOverlay {
	l := &listOverlay{
		handle:      msg.handle,
		placeholder: msg.placeholder,
		items:       msg.items,
		busy:        msg.busy,
	}
	for i, it := range l.items {
		if it.Picked {
			l.cursor = i
			break
		}
	}
	return l
}

func (l *listOverlay) id() int {
	return l.handle.id
}

func (l *listOverlay) visible() []picker.Item {
	if l.filter == "" {
		return l.items
	}
	f := strings.ToLower(l.filter)
	var out []picker.Item
	for _, it := range l.items {
		if it.AlwaysShow ||
			strings.Contains(strings.ToLower(it.Label), f) ||
			strings.Contains(strings.ToLower(it.Description), f) {
			out = append(out, it)
		}
	}
	return out
}

func (l *listOverlay) setItems(items []picker.Item) {
	l.items = items
	l.clamp()
}

func (l *listOverlay) move(delta int) {
	l.cursor += delta
	l.clamp()
}

func (l *listOverlay) clamp() {
	n := len(l.visible())
	if l.cursor >= n {
		l.cursor = n - 1
	}
	if l.cursor < 0 {
		l.cursor = 0
	}
}

func (l *listOverlay) typeRunes(r []rune) {
	l.filter += string(r)
	l.cursor = 0
}

func (l *listOverlay) backspace() {
	if l.filter == "" {
		return
	}
	r := []rune(l.filter)
	l.filter = string(r[:len(r)-1])
	l.clamp()
}

// current returns the highlighted entry, or nil when nothing is visible.
func (l *listOverlay) current() *picker.Item {
	vis := l.visible()
	if l.cursor < 0 || l.cursor >= len(vis) {
		return nil
	}
	it := vis[l.cursor]
	return &it
}

// accept resolves the list with the highlighted entry.
func (l *listOverlay) accept() bool {
	it := l.current()
	if it == nil {
		return false
	}
	l.handle.resolve(picker.Selection{Item: it})
	return true
}

func (l *listOverlay) dismiss() {
	l.handle.resolve(picker.Selection{})
}

func (l *listOverlay) view(spin string, width int) string {
	var lines []string

	prompt := l.filter
	if prompt == "" {
		prompt = placeholderStyle.Render(l.placeholder)
	}
	lines = append(lines, helpKeyStyle.Render("> ")+prompt, "")

	vis := l.visible()
	for i, it := range vis {
		label := it.Label
		if it.Picked {
			label = pickedStyle.Render("● ") + label
		}
		desc := mutedStyle.Render(it.Description)
		if i == l.cursor {
			lines = append(lines, cursorStyle.Render(label)+" "+desc)
			continue
		}
		lines = append(lines, itemStyle.Render(label)+" "+desc)
	}
	if len(vis) == 0 && !l.busy {
		lines = append(lines, mutedStyle.Render("  No matching entries"))
	}
	if l.busy {
		lines = append(lines, "", spin+mutedStyle.Render(" looking for emulators..."))
	}

	if width < 30 {
		width = 30
	}
	return overlayStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
