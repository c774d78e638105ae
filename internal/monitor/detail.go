package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rileyhilliard/nodeboard/internal/panel"
)

var detailContainerStyle = lipgloss.NewStyle().Padding(0, 2)

// renderDetailView renders the expanded view of the selected node: every
// bar, each GPU with all of its processes and PIDs, and the full usage table.
func (m Model) renderDetailView() string {
	if m.selected < 0 || m.selected >= len(m.panels) {
		return LabelStyle.Render("No node selected")
	}
	p := m.panels[m.selected]

	width := m.width - 4
	if width < 40 {
		width = 40
	}

	var b strings.Builder
	b.WriteString(m.renderDetailHeader(p))
	b.WriteString("\n")
	if p.Notice != "" {
		b.WriteString(NoticeStyle.Render("! " + p.Notice))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if p.Body.Kind != panel.BodyMetrics {
		for _, line := range m.renderBody(p.Body, width) {
			b.WriteString(line)
			b.WriteString("\n")
		}
		return detailContainerStyle.Render(b.String())
	}

	b.WriteString(renderSection("Resources", "", width, resourceLines(p.Body, width-4)))
	b.WriteString("\n")

	if len(p.Body.GPUs) == 0 {
		b.WriteString(renderSection("GPUs", "0", width, []string{MutedStyle.Render(panel.NoGPUMessage)}))
		b.WriteString("\n")
	}
	for _, g := range p.Body.GPUs {
		b.WriteString(renderSection("GPU "+g.ID, g.Name, width, gpuDetailLines(g, width-4)))
		b.WriteString("\n")
	}

	switch {
	case p.Body.Usage != nil:
		b.WriteString(renderSection("Usage", fmt.Sprintf("%d users", len(p.Body.Usage.Rows)), width,
			renderUsageLines(p.Body.Usage, width-4)))
	case p.Body.UsageNotice != "":
		b.WriteString(renderSection("Usage", "", width, []string{MutedStyle.Render(p.Body.UsageNotice)}))
	}

	return detailContainerStyle.Render(b.String())
}

func (m Model) renderDetailHeader(p panel.Panel) string {
	indicator, style := m.statusIndicator(p)
	name := lipgloss.NewStyle().Foreground(ColorAccent).Bold(true).Render(p.Node)
	return fmt.Sprintf("%s  %s  %s", name, style.Render(indicator+" "+p.Body.Kind.String()), MutedStyle.Render(p.Label))
}

func resourceLines(b panel.Body, width int) []string {
	lines := []string{renderBarLine(b.CPU, width), renderBarLine(b.RAM, width)}
	for _, d := range b.Disks {
		lines = append(lines, renderBarLine(d, width))
	}
	return lines
}

func gpuDetailLines(g panel.GPURow, width int) []string {
	lines := []string{
		renderBarLine(g.VRAM, width),
		renderBarLine(g.Util, width),
	}
	if len(g.Processes) == 0 {
		return append(lines, MutedStyle.Render("no processes"))
	}
	for _, proc := range g.Processes {
		lines = append(lines, ProcessStyle.Render(padRight(proc.Label, 24))+MutedStyle.Render(proc.Detail))
	}
	return lines
}

// renderSection wraps lines in a titled box.
func renderSection(title, value string, width int, lines []string) string {
	var b strings.Builder
	b.WriteString(SectionHeader(title, value, width))
	b.WriteString("\n")
	for _, line := range lines {
		b.WriteString(SectionContentLine(line, width))
		b.WriteString("\n")
	}
	b.WriteString(SectionFooter(width))
	return b.String()
}
