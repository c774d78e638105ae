package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/rileyhilliard/nodeboard/internal/telemetry"
)

// Semantic colors for status indication. ANSI codes keep plain terminals readable.
const (
	ColorSuccess lipgloss.Color = "2" // Green
	ColorError   lipgloss.Color = "1" // Red
	ColorWarning lipgloss.Color = "3" // Yellow
	ColorInfo    lipgloss.Color = "6" // Cyan
)

// Text colors for content hierarchy
const (
	ColorPrimary   lipgloss.Color = "7" // White/default
	ColorSecondary lipgloss.Color = "4" // Blue
	ColorMuted     lipgloss.Color = "8" // Gray (bright black)
)

// Usage class colors. Orange has no basic ANSI slot, so it uses the 256-color palette.
const (
	ColorUsageGreen  lipgloss.Color = "2"
	ColorUsageYellow lipgloss.Color = "3"
	ColorUsageOrange lipgloss.Color = "208"
	ColorUsageRed    lipgloss.Color = "1"
)

// GradientColors cycle through the spinner animation.
var GradientColors = []lipgloss.Color{"5", "4", "6", "2"}

// UsageColor maps a usage class to its color.
func UsageColor(c telemetry.ColorClass) lipgloss.Color {
	switch c {
	case telemetry.Red:
		return ColorUsageRed
	case telemetry.Orange:
		return ColorUsageOrange
	case telemetry.Yellow:
		return ColorUsageYellow
	default:
		return ColorUsageGreen
	}
}

// UsageStyle renders text in the color of the percentage's usage class.
func UsageStyle(percent float64) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(UsageColor(telemetry.ColorClassFor(percent)))
}

// SuccessStyle renders text in the success color.
func SuccessStyle() lipgloss.Style { return lipgloss.NewStyle().Foreground(ColorSuccess) }

// ErrorStyle renders text in the error color.
func ErrorStyle() lipgloss.Style { return lipgloss.NewStyle().Foreground(ColorError) }

// WarningStyle renders text in the warning color.
func WarningStyle() lipgloss.Style { return lipgloss.NewStyle().Foreground(ColorWarning) }

// MutedStyle renders secondary text.
func MutedStyle() lipgloss.Style { return lipgloss.NewStyle().Foreground(ColorMuted) }

// DisableColors switches all lipgloss output to plain text (--no-color,
// NO_COLOR, or output that isn't a terminal).
func DisableColors() {
	lipgloss.SetColorProfile(termenv.Ascii)
}
