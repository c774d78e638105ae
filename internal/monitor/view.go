package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/rileyhilliard/nodeboard/internal/panel"
)

// renderDashboard renders the header, the scrollable panel area and the footer.
func (m Model) renderDashboard() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	if m.header.Announcement != "" {
		b.WriteString(m.renderAnnouncement())
		b.WriteString("\n")
	}
	b.WriteString("\n")

	switch {
	case m.viewportReady:
		b.WriteString(m.viewport.View())
	case m.viewMode == ViewDetail:
		b.WriteString(m.renderDetailView())
	default:
		b.WriteString(m.renderPanelGrid())
	}

	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

// chromeHeight is the number of lines taken by everything but the viewport.
func (m Model) chromeHeight() int {
	h := 4 // header, blank line, newline before footer, footer
	if m.header.Announcement != "" {
		h++
	}
	return h
}

// renderHeader renders the title with online counts and the last-updated clock.
func (m Model) renderHeader() string {
	title := lipgloss.NewStyle().
		Foreground(ColorAccent).
		Bold(true).
		Render(m.header.Title)

	stats := lipgloss.NewStyle().
		Foreground(ColorTextSecondary).
		Render(fmt.Sprintf(" | %d nodes | %d online | %s | every %ds",
			len(m.panels), m.OnlineCount(), m.updatedText(), m.header.RefreshSeconds))

	if m.refreshing {
		stats += lipgloss.NewStyle().Foreground(ColorHighlight).Render(" | refreshing")
	}
	return HeaderStyle.Render(title + stats)
}

// updatedText shows the wall-clock time of the last cycle and its age.
func (m Model) updatedText() string {
	if m.lastUpdate.IsZero() {
		return "not updated yet"
	}

	clock := m.lastUpdate.Format("15:04:05")
	switch ago := m.SecondsSinceUpdate(); ago {
	case 0:
		return "updated " + clock
	default:
		return fmt.Sprintf("updated %s (%ds ago)", clock, ago)
	}
}

func (m Model) renderAnnouncement() string {
	width := m.width
	if width <= 0 {
		width = lipgloss.Width(m.header.Announcement) + 2
	}
	return AnnouncementStyle.Width(width).Render(m.header.Announcement)
}

// renderPanelGrid renders every panel in display order.
func (m Model) renderPanelGrid() string {
	if len(m.panels) == 0 {
		return LabelStyle.Render("No nodes configured")
	}

	cardWidth := m.calculateCardWidth()
	cards := make([]string, len(m.panels))
	for i, p := range m.panels {
		cards[i] = m.renderCard(p, cardWidth, i == m.selected)
	}
	return m.layoutCards(cards, cardWidth)
}

// calculateCardWidth determines the card width based on terminal width.
func (m Model) calculateCardWidth() int {
	if m.width == 0 {
		return cardDefaultWidth
	}
	if m.width < cardDefaultWidth+1 {
		w := m.width - 1
		if w < cardMinWidth {
			w = cardMinWidth
		}
		return w
	}
	return cardDefaultWidth
}

// layoutCards arranges cards in rows based on terminal width.
func (m Model) layoutCards(cards []string, cardWidth int) string {
	if len(cards) == 0 {
		return ""
	}

	cardsPerRow := 1
	if m.width > 0 {
		// Card width plus its right margin
		cardsPerRow = m.width / (cardWidth + 1)
		if cardsPerRow < 1 {
			cardsPerRow = 1
		}
	}

	var rows []string
	for i := 0; i < len(cards); i += cardsPerRow {
		end := i + cardsPerRow
		if end > len(cards) {
			end = len(cards)
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cards[i:end]...))
	}

	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// renderFooter renders the keyboard help footer.
func (m Model) renderFooter() string {
	hints := []string{
		"q quit",
		"r refresh",
		"↑↓ select",
		"enter details",
		"? help",
	}
	if m.viewMode == ViewDetail {
		hints = []string{"esc back", "↑↓ scroll", "r refresh", "q quit"}
	}
	if m.lastCycle.failed > 0 && !m.refreshing {
		hints = append(hints, fmt.Sprintf("last refresh: %d/%d failed", m.lastCycle.failed, m.lastCycle.nodes))
	}

	return FooterStyle.Render(strings.Join(hints, " | "))
}

// Render draws the board once, without key hints, for non-interactive
// output. width <= 0 lays cards out one per line.
func Render(store *panel.Store, width int) string {
	m := Model{store: store, width: width, now: time.Now}
	m.sync()
	m.selected = -1

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	if m.header.Announcement != "" {
		b.WriteString(m.renderAnnouncement())
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.renderPanelGrid())
	b.WriteString("\n")
	return b.String()
}
