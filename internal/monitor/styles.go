package monitor

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rileyhilliard/nodeboard/internal/telemetry"
)

// Dashboard color palette
const (
	ColorDarkBg    = lipgloss.Color("#0A0A0F")
	ColorSurfaceBg = lipgloss.Color("#12121A")
	ColorBorder    = lipgloss.Color("#2A2A4A")

	// Usage classes, low to high
	ColorHealthy  = lipgloss.Color("#39FF14")
	ColorCaution  = lipgloss.Color("#FFE600")
	ColorWarning  = lipgloss.Color("#FFAA00")
	ColorCritical = lipgloss.Color("#FF0055")

	ColorTextPrimary   = lipgloss.Color("#FFFFFF")
	ColorTextSecondary = lipgloss.Color("#B4B4D0")
	ColorTextMuted     = lipgloss.Color("#6B6B8D")

	ColorAccent    = lipgloss.Color("#FF2E97")
	ColorAccentDim = lipgloss.Color("#BF40FF")
	ColorHighlight = lipgloss.Color("#00FFFF")
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(ColorTextPrimary).
			Background(ColorSurfaceBg).
			Bold(true).
			Padding(0, 1)

	AnnouncementStyle = lipgloss.NewStyle().
				Foreground(ColorDarkBg).
				Background(ColorCaution).
				Bold(true).
				Padding(0, 1)

	FooterStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Padding(0, 1)

	CardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1).
			MarginRight(1).
			MarginBottom(1)

	CardSelectedStyle = CardStyle.
				BorderForeground(ColorAccent)

	CardDisabledStyle = CardStyle.
				BorderForeground(ColorTextMuted).
				BorderStyle(lipgloss.NormalBorder())

	NodeNameStyle = lipgloss.NewStyle().
			Foreground(ColorTextPrimary).
			Bold(true)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorTextSecondary)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	ValueStyle = lipgloss.NewStyle().
			Foreground(ColorTextPrimary)

	NoticeStyle = lipgloss.NewStyle().
			Foreground(ColorCaution)

	OfflineStyle = lipgloss.NewStyle().
			Foreground(ColorCritical).
			Bold(true)

	StatusOnlineStyle = lipgloss.NewStyle().
				Foreground(ColorHealthy)

	StatusOfflineStyle = lipgloss.NewStyle().
				Foreground(ColorCritical)

	StatusDisabledStyle = lipgloss.NewStyle().
				Foreground(ColorTextMuted)

	ProcessStyle = lipgloss.NewStyle().
			Foreground(ColorAccentDim)
)

// Status indicator glyphs
const (
	StatusOnline   = "◉"
	StatusOffline  = "◌"
	StatusDisabled = "⊘"
)

// ConnectingSpinnerFrames animate the indicator of a node waiting for its
// first snapshot.
var ConnectingSpinnerFrames = []string{"◐", "◓", "◑", "◒"}

// ClassColor maps a usage class to its terminal color.
func ClassColor(c telemetry.ColorClass) lipgloss.Color {
	switch c {
	case telemetry.Red:
		return ColorCritical
	case telemetry.Orange:
		return ColorWarning
	case telemetry.Yellow:
		return ColorCaution
	default:
		return ColorHealthy
	}
}

// ClassStyle returns a foreground style for a usage class.
func ClassStyle(c telemetry.ColorClass) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(ClassColor(c))
}

// ProgressBar renders a bracketless bar of the given width, filled to the
// clamped percentage and colored by its usage class.
func ProgressBar(width int, percent float64) string {
	if width < 1 {
		width = 1
	}
	percent = telemetry.ClampPercent(percent)

	filled := int(percent / 100.0 * float64(width))
	if filled > width {
		filled = width
	}

	bar := strings.Repeat("▰", filled) + strings.Repeat("▱", width-filled)
	return ClassStyle(telemetry.ColorClassFor(percent)).Render(bar)
}

// SectionHeader renders a section header with the title on the left and value on the right.
// Format: ╭─ Title ────────────────────────────────────── Value ╮
func SectionHeader(title, value string, width int) string {
	if width < 10 {
		width = 10
	}

	leftWidth := 3 + lipgloss.Width(title) + 1
	rightWidth := 1 + lipgloss.Width(value) + 2

	fillWidth := width - leftWidth - rightWidth
	if fillWidth < 1 {
		fillWidth = 1
	}
	middle := strings.Repeat("─", fillWidth)

	borderStyle := lipgloss.NewStyle().Foreground(ColorBorder)
	titleStyle := lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	valueStyle := lipgloss.NewStyle().Foreground(ColorHighlight).Bold(true)

	return borderStyle.Render("╭─ ") +
		titleStyle.Render(title) +
		borderStyle.Render(" "+middle+" ") +
		valueStyle.Render(value) +
		borderStyle.Render(" ╮")
}

// SectionFooter renders the bottom border of a section.
func SectionFooter(width int) string {
	if width < 2 {
		width = 2
	}
	borderStyle := lipgloss.NewStyle().Foreground(ColorBorder)
	return borderStyle.Render("╰" + strings.Repeat("─", width-2) + "╯")
}

// SectionContentLine renders a content line with left and right borders, padded to width.
// Format: │ content                                              │
func SectionContentLine(content string, width int) string {
	if width < 4 {
		width = 4
	}

	borderStyle := lipgloss.NewStyle().Foreground(ColorBorder)
	padding := width - 4 - lipgloss.Width(content)
	if padding < 0 {
		padding = 0
	}

	return borderStyle.Render("│") + " " + content + strings.Repeat(" ", padding) + " " + borderStyle.Render("│")
}
