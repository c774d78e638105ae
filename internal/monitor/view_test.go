package monitor

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"

	"github.com/rileyhilliard/nodeboard/internal/card"
	"github.com/rileyhilliard/nodeboard/internal/config"
	"github.com/rileyhilliard/nodeboard/internal/panel"
	"github.com/rileyhilliard/nodeboard/internal/telemetry"
)

func TestView_InitialBoard(t *testing.T) {
	m, _ := newTestModel(t, nil)
	out := m.View()

	assert.Contains(t, out, "GPU Nodes")
	assert.Contains(t, out, "maintenance friday")
	assert.Contains(t, out, "3 nodes | 0 online")
	assert.Contains(t, out, "not updated yet")

	assert.Contains(t, out, "gpu-a")
	assert.Contains(t, out, panel.LabelWaiting)
	assert.Contains(t, out, panel.ConnectingMessage)
	assert.Contains(t, out, "scratch is full")

	assert.Contains(t, out, panel.LabelDisabled)
	assert.Contains(t, out, panel.DisabledTitle)
	assert.Contains(t, out, "decommissioned")

	// Display order follows the configured order.
	assert.Less(t, strings.Index(out, "gpu-a"), strings.Index(out, "gpu-b"))
}

func TestView_MetricsAndOffline(t *testing.T) {
	m, store := newTestModel(t, nil)
	r := card.NewRenderer(config.Global{UsageTopN: 6})
	r.Apply(store, "gpu-a", testSnapshot())
	r.Offline(store, "gpu-b", errors.New("connection refused"))

	updated, _ := m.Update(storeChangedMsg{})
	m = updated.(Model)
	updated, _ = m.Update(tea.WindowSizeMsg{Width: 200, Height: 120})
	m = updated.(Model)
	out := m.View()

	assert.Contains(t, out, "2024-05-01 10:00:00")
	assert.Contains(t, out, "CPU: 50%")
	assert.Contains(t, out, "RAM: 95%")
	assert.Contains(t, out, "Disk /home")
	assert.Contains(t, out, "GPU 0")
	assert.Contains(t, out, "A100")
	assert.Contains(t, out, "10240MB / 25%")
	assert.Contains(t, out, "alice(25%)")
	assert.Contains(t, out, "User usage (last 7 days)")
	assert.Contains(t, out, "12.5")

	assert.Contains(t, out, panel.OfflineMessage)
	assert.Contains(t, out, "connection refused")
	assert.Contains(t, out, "1 online")
}

func TestView_NoGPUAndUsageNotice(t *testing.T) {
	m, store := newTestModel(t, nil)
	snap := &telemetry.Snapshot{
		Timestamp: "t1",
		GPUs:      telemetry.List[telemetry.GPUStats]{},
		Usage:     &telemetry.UsageStats{Users: telemetry.List[telemetry.UserUsage]{}},
	}
	card.NewRenderer(config.Global{}).Apply(store, "gpu-a", snap)
	m.sync()

	out := m.renderPanelGrid()
	assert.Contains(t, out, panel.NoGPUMessage)
	assert.Contains(t, out, "User usage (last 7 days): no data")
	assert.Contains(t, out, "CPU: -")
}

func TestView_Detail(t *testing.T) {
	m, store := newTestModel(t, nil)
	card.NewRenderer(config.Global{}).Apply(store, "gpu-a", testSnapshot())
	m.sync()
	m.width = 100

	m.HandleKeyMsg(key("enter"))
	out := m.renderDetailView()
	assert.Contains(t, out, "gpu-a")
	assert.Contains(t, out, "metrics")
	assert.Contains(t, out, "Resources")
	assert.Contains(t, out, "PID: 4242")
	assert.Contains(t, out, "1 users")

	m.selected = 2
	out = m.renderDetailView()
	assert.Contains(t, out, "decommissioned")
}

func TestView_EmptyBoard(t *testing.T) {
	m := Model{}
	assert.Contains(t, m.renderPanelGrid(), "No nodes configured")
	assert.Contains(t, m.renderDetailView(), "No node selected")
}

func TestLayoutCards(t *testing.T) {
	m := Model{width: 160}
	cards := []string{"a", "b", "c", "d"}
	out := m.layoutCards(cards, 52)
	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 2, "three cards per row at 160 columns")

	m.width = 0
	out = m.layoutCards(cards, 52)
	assert.Len(t, strings.Split(out, "\n"), 4)
}

func TestCalculateCardWidth(t *testing.T) {
	assert.Equal(t, cardDefaultWidth, Model{}.calculateCardWidth())
	assert.Equal(t, cardDefaultWidth, Model{width: 200}.calculateCardWidth())
	assert.Equal(t, 44, Model{width: 45}.calculateCardWidth())
	assert.Equal(t, cardMinWidth, Model{width: 20}.calculateCardWidth())
}

func TestProgressBar(t *testing.T) {
	bar := ProgressBar(10, 50)
	assert.Equal(t, 5, strings.Count(bar, "▰"))
	assert.Equal(t, 5, strings.Count(bar, "▱"))
	assert.Equal(t, 10, lipgloss.Width(bar))

	assert.Equal(t, 10, strings.Count(ProgressBar(10, 250), "▰"), "clamped high")
	assert.Equal(t, 0, strings.Count(ProgressBar(10, -5), "▰"), "clamped low")
	assert.Equal(t, 1, lipgloss.Width(ProgressBar(0, 50)))
}

func TestClassColor(t *testing.T) {
	assert.Equal(t, ColorHealthy, ClassColor(telemetry.Green))
	assert.Equal(t, ColorCaution, ClassColor(telemetry.Yellow))
	assert.Equal(t, ColorWarning, ClassColor(telemetry.Orange))
	assert.Equal(t, ColorCritical, ClassColor(telemetry.Red))
}

func TestTruncateWithEllipsis(t *testing.T) {
	assert.Equal(t, "short", truncateWithEllipsis("short", 10))
	assert.Equal(t, "abcdefg...", truncateWithEllipsis("abcdefghijklmnop", 10))
	assert.Equal(t, "abcdef", truncateWithEllipsis("abcdef", 3))
}

func TestSectionLines(t *testing.T) {
	assert.Equal(t, 30, lipgloss.Width(SectionHeader("GPU 0", "A100", 30)))
	assert.Equal(t, 30, lipgloss.Width(SectionFooter(30)))
	assert.Equal(t, 30, lipgloss.Width(SectionContentLine("hello", 30)))
}

func TestRender_Static(t *testing.T) {
	store := panel.NewBoard(testDashboard())
	card.NewRenderer(config.Global{}).Apply(store, "gpu-a", testSnapshot())

	out := Render(store, 120)
	assert.Contains(t, out, "GPU Nodes")
	assert.Contains(t, out, "maintenance friday")
	assert.Contains(t, out, "CPU: 50%")
	assert.Contains(t, out, panel.ConnectingMessage)
	assert.NotContains(t, out, "quit", "no key hints")
}
