// Package status computes the short status line describing the active device.
package status

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/icarus-itcs/lazyflutter/internal/device"
)

// Status is what the status surface shows.
type Status struct {
	Text    string
	Tooltip string
	Visible bool
}

// Compute builds the status from the active device, the number of connected
// devices and whether the daemon is ready. It is shown only once ready.
func Compute(current *device.Device, count int, ready bool) Status {
	s := Status{Text: "No Devices", Visible: ready}
	if current != nil {
		s.Text = current.String()
	}

	switch {
	case count > 1:
		s.Tooltip = fmt.Sprintf("%d Devices Connected", count)
	case count == 1:
		s.Tooltip = "1 Device Connected"
	}
	return s
}

var (
	textStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#ECEDEE")).Bold(true)
	noneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#64748B"))
	tooltipStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#64748B")).Italic(true)
)

// Render returns a styled one-line rendering, or "" when not visible.
func (s Status) Render() string {
	if !s.Visible {
		return ""
	}
	text := textStyle.Render(s.Text)
	if s.Text == "No Devices" {
		text = noneStyle.Render(s.Text)
	}
	if s.Tooltip == "" {
		return text
	}
	return text + "  " + tooltipStyle.Render(s.Tooltip)
}
