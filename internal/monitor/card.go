package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rileyhilliard/nodeboard/internal/panel"
)

// Card layout constants
const (
	cardDefaultWidth = 52
	cardMinWidth     = 34
	cardLabelWidth   = 11
	cardMinBarWidth  = 8
)

// renderCard renders a single node panel.
func (m Model) renderCard(p panel.Panel, width int, selected bool) string {
	style := CardStyle
	switch {
	case selected:
		style = CardSelectedStyle
	case p.Body.Kind == panel.BodyDisabled:
		style = CardDisabledStyle
	}
	inner := width - 4 // border + padding

	lines := []string{m.renderCardTitle(p, inner)}
	if p.Notice != "" {
		lines = append(lines, NoticeStyle.Render(truncateWithEllipsis("! "+p.Notice, inner)))
	}
	lines = append(lines, renderCardDivider(inner))
	lines = append(lines, m.renderBody(p.Body, inner)...)

	return style.Width(width - 2).Render(strings.Join(lines, "\n"))
}

// renderCardTitle renders "<indicator> <node>" on the left and the status
// label on the right.
func (m Model) renderCardTitle(p panel.Panel, width int) string {
	indicator, indicatorStyle := m.statusIndicator(p)
	left := indicatorStyle.Render(indicator) + " " + NodeNameStyle.Render(p.Node)
	right := MutedStyle.Render(p.Label)

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return left + " " + right
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m Model) statusIndicator(p panel.Panel) (string, lipgloss.Style) {
	switch p.Body.Kind {
	case panel.BodyDisabled:
		return StatusDisabled, StatusDisabledStyle
	case panel.BodyOffline:
		return StatusOffline, StatusOfflineStyle
	case panel.BodyMetrics:
		return StatusOnline, StatusOnlineStyle
	default:
		return m.ConnectingSpinner(), LabelStyle
	}
}

// renderBody renders the lines below the card title for any body kind.
func (m Model) renderBody(b panel.Body, width int) []string {
	switch b.Kind {
	case panel.BodyDisabled:
		return []string{
			LabelStyle.Render(panel.DisabledTitle),
			MutedStyle.Render(truncateWithEllipsis(b.Message, width)),
		}
	case panel.BodyOffline:
		lines := []string{OfflineStyle.Render(b.Message)}
		if b.Detail != "" {
			lines = append(lines, MutedStyle.Render(truncateWithEllipsis(b.Detail, width)))
		}
		return lines
	case panel.BodyConnecting:
		return []string{LabelStyle.Render(m.ConnectingSpinner() + " " + b.Message)}
	}

	lines := []string{
		renderBarLine(b.CPU, width),
		renderBarLine(b.RAM, width),
	}
	for _, d := range b.Disks {
		lines = append(lines, renderBarLine(d, width))
	}

	lines = append(lines, renderCardDivider(width))
	if len(b.GPUs) == 0 {
		lines = append(lines, MutedStyle.Render(panel.NoGPUMessage))
	}
	for _, g := range b.GPUs {
		lines = append(lines, m.renderGPULines(g, width)...)
	}

	switch {
	case b.Usage != nil:
		lines = append(lines, renderCardDivider(width))
		lines = append(lines, renderUsageLines(b.Usage, width)...)
	case b.UsageNotice != "":
		lines = append(lines, renderCardDivider(width))
		lines = append(lines, MutedStyle.Render(b.UsageNotice))
	}
	return lines
}

// renderBarLine renders "<label> <bar> <text>" sized to width.
func renderBarLine(b panel.Bar, width int) string {
	label := LabelStyle.Render(padRight(truncateWithEllipsis(b.Label, cardLabelWidth), cardLabelWidth))
	text := ValueStyle.Render(b.Text)

	barWidth := width - cardLabelWidth - lipgloss.Width(b.Text) - 2
	if barWidth < cardMinBarWidth {
		barWidth = cardMinBarWidth
	}
	return label + " " + ProgressBar(barWidth, b.Percent) + " " + text
}

// renderGPULines renders a GPU's header, its VRAM and utilization bars and,
// outside the minimal layout, its process tags.
func (m Model) renderGPULines(g panel.GPURow, width int) []string {
	title := ValueStyle.Render("GPU "+g.ID) + " " + LabelStyle.Render(truncateWithEllipsis(g.Name, width-len(g.ID)-5))
	lines := []string{
		title,
		renderBarLine(g.VRAM, width),
		renderBarLine(g.Util, width),
	}
	if m.LayoutMode() != LayoutMinimal {
		lines = append(lines, ProcessStyle.Render(truncateWithEllipsis(g.ProcessText(), width)))
	}
	return lines
}

// renderUsageLines renders the usage table compactly: title then
// "user  hours  avg%  max%" rows.
func renderUsageLines(t *panel.UsageTable, width int) []string {
	lines := []string{LabelStyle.Render(truncateWithEllipsis(t.Title, width))}
	userWidth := width - 24
	if userWidth < 6 {
		userWidth = 6
	}
	lines = append(lines, MutedStyle.Render(
		padRight("user", userWidth)+fmt.Sprintf("%8s%8s%8s", "hours", "avg%", "max%")))
	for _, r := range t.Rows {
		lines = append(lines, padRight(truncateWithEllipsis(r.User, userWidth), userWidth)+
			ValueStyle.Render(fmt.Sprintf("%8s%8s%8s", r.ActiveHours, r.AvgVRAM, r.MaxVRAM)))
	}
	return lines
}

func renderCardDivider(width int) string {
	return lipgloss.NewStyle().Foreground(ColorBorder).Render(strings.Repeat("─", width))
}

// truncateWithEllipsis truncates a string to maxLen display cells, adding ellipsis if needed.
func truncateWithEllipsis(s string, maxLen int) string {
	if maxLen <= 3 || lipgloss.Width(s) <= maxLen {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r))+3 > maxLen {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}

// padRight pads s with spaces to width display cells.
func padRight(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}
