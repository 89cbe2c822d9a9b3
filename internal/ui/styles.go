package ui

import "github.com/charmbracelet/lipgloss"

// Flutter brand colors
var (
	flutterNavy  = lipgloss.Color("#042B59")
	flutterBlue  = lipgloss.Color("#0175C2")
	flutterSky   = lipgloss.Color("#13B9FD")
	flutterLight = lipgloss.Color("#ECEDEE")
	flutterGray  = lipgloss.Color("#4A4A5A")

	successColor = lipgloss.Color("#4ADE80")
	errorColor   = lipgloss.Color("#F87171")
	warnColor    = lipgloss.Color("#FBBF24")
	mutedColor   = lipgloss.Color("#64748B")

	iosColor     = lipgloss.Color("#0A84FF")
	androidColor = lipgloss.Color("#34D399")
)

// LogoCompact returns the inline logo for the header
func LogoCompact() string {
	mark := lipgloss.NewStyle().Foreground(flutterSky).Bold(true).Render("◢◤")
	name := lipgloss.NewStyle().Foreground(flutterLight).Bold(true).Render("lazyflutter")
	return mark + " " + name
}

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(flutterLight).
			Bold(true).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Foreground(flutterSky).
			Bold(true).
			MarginBottom(1)

	activePaneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(flutterSky).
			Padding(1, 2)

	inactivePaneStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(flutterGray).
				Padding(1, 2)

	logPaneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(flutterGray).
			Padding(0, 1)

	activeLogPaneStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(flutterSky).
				Padding(0, 1)

	logEmptyStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	// Pick-list overlay
	overlayStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(flutterBlue).
			Padding(1, 2)

	placeholderStyle = lipgloss.NewStyle().
				Foreground(mutedColor).
				Italic(true)

	cursorStyle = lipgloss.NewStyle().
			Foreground(flutterNavy).
			Background(flutterSky).
			Bold(true).
			Padding(0, 1)

	itemStyle = lipgloss.NewStyle().
			Foreground(flutterLight).
			Padding(0, 1)

	pickedStyle = lipgloss.NewStyle().
			Foreground(successColor)

	onlineStyle = lipgloss.NewStyle().
			Foreground(successColor)

	successStyle = lipgloss.NewStyle().
			Foreground(successColor)

	failedStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	warnStyle = lipgloss.NewStyle().
			Foreground(warnColor)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(flutterSky).
			Bold(true)

	iosBadge = lipgloss.NewStyle().
			Foreground(iosColor).
			Bold(true)

	androidBadge = lipgloss.NewStyle().
			Foreground(androidColor).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor)
)

// PlatformBadge returns a short styled platform label. Flutter reports
// platforms such as "android-arm64" or "ios".
func PlatformBadge(platform string) string {
	switch {
	case len(platform) >= 3 && platform[:3] == "ios":
		return iosBadge.Render("iOS")
	case len(platform) >= 7 && platform[:7] == "android":
		return androidBadge.Render("And")
	case platform == "":
		return mutedStyle.Render("?")
	}
	return mutedStyle.Render(platform)
}
