package monitor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/nodeboard/internal/card"
	"github.com/rileyhilliard/nodeboard/internal/config"
	"github.com/rileyhilliard/nodeboard/internal/panel"
	"github.com/rileyhilliard/nodeboard/internal/poll"
	"github.com/rileyhilliard/nodeboard/internal/telemetry"
)

func testDashboard() *config.Dashboard {
	return &config.Dashboard{
		Global: config.Global{Title: "GPU Nodes", Announcement: "maintenance friday", RefreshInterval: 30, UsageTopN: 6},
		Nodes: []config.Node{
			{Name: "gpu-b", Order: 2, Status: config.StatusActive},
			{Name: "gpu-a", Order: 1, Status: config.StatusActive, Notice: "scratch is full"},
			{Name: "old", Order: 3, Status: config.StatusDisabled, Notice: "decommissioned"},
		},
	}
}

func testSnapshot() *telemetry.Snapshot {
	return &telemetry.Snapshot{
		Timestamp: "2024-05-01 10:00:00",
		System: telemetry.SystemStats{
			CPUPercent: telemetry.Num(50),
			RAMPercent: telemetry.Num(95),
			SSDPercent: telemetry.Num(20),
		},
		GPUs: telemetry.List[telemetry.GPUStats]{
			{
				ID: "0", Name: "NVIDIA A100",
				VRAMUsedMB: telemetry.Num(10240), VRAMPercent: telemetry.Num(25), UtilPercent: telemetry.Num(70),
				Processes: telemetry.List[telemetry.ProcessStats]{
					{PID: telemetry.Num(4242), User: "alice", RAMPercent: telemetry.Num(25)},
				},
			},
		},
		Usage: &telemetry.UsageStats{
			WindowDays: telemetry.Num(7),
			Users: telemetry.List[telemetry.UserUsage]{
				{User: "alice", ActiveHours: telemetry.Num(12.5), AvgVRAMPercent: telemetry.Num(30), MaxVRAMPercent: telemetry.Num(80)},
			},
		},
	}
}

type fakeRefresher struct {
	ticks  int
	result []poll.Result
}

func (f *fakeRefresher) Tick(ctx context.Context) <-chan poll.Result {
	f.ticks++
	ch := make(chan poll.Result, len(f.result))
	for _, r := range f.result {
		ch <- r
	}
	close(ch)
	return ch
}

func newTestModel(t *testing.T, r Refresher) (Model, *panel.Store) {
	t.Helper()
	d := testDashboard()
	store := panel.NewBoard(d)
	m := NewModel(context.Background(), store, r)
	t.Cleanup(m.Close)
	return m, store
}

func key(s string) tea.KeyMsg {
	switch s {
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNewModel(t *testing.T) {
	m, _ := newTestModel(t, nil)

	require.Len(t, m.panels, 3)
	assert.Equal(t, "gpu-a", m.panels[0].Node)
	assert.Equal(t, "gpu-b", m.panels[1].Node)
	assert.Equal(t, "old", m.panels[2].Node)
	assert.Equal(t, "gpu-a", m.SelectedNode())
	assert.Equal(t, "GPU Nodes", m.header.Title)

	assert.Equal(t, 0, m.OnlineCount())
	assert.Equal(t, 2, m.ActiveCount())
}

func TestModel_StoreChangeResyncs(t *testing.T) {
	m, store := newTestModel(t, nil)

	card.NewRenderer(config.Global{}).Apply(store, "gpu-b", testSnapshot())

	updated, cmd := m.Update(storeChangedMsg{})
	m = updated.(Model)
	assert.NotNil(t, cmd, "keeps listening for changes")
	assert.Equal(t, 1, m.OnlineCount())
	assert.Equal(t, panel.BodyMetrics, m.panels[1].Body.Kind)
}

func TestWaitForChange(t *testing.T) {
	store := panel.NewBoard(testDashboard())
	changes, cancel := store.Subscribe()
	defer cancel()

	store.SetStatus("gpu-a", "x")
	msg := waitForChange(context.Background(), changes)()
	assert.IsType(t, storeChangedMsg{}, msg)

	ctx, stop := context.WithCancel(context.Background())
	stop()
	assert.Nil(t, waitForChange(ctx, changes)())
}

func TestModel_Navigation(t *testing.T) {
	m, _ := newTestModel(t, nil)

	m.HandleKeyMsg(key("up"))
	assert.Equal(t, 0, m.selected, "stays at the top")

	m.HandleKeyMsg(key("j"))
	m.HandleKeyMsg(key("down"))
	m.HandleKeyMsg(key("down"))
	assert.Equal(t, 2, m.selected, "stops at the last node")
	assert.Equal(t, "old", m.SelectedNode())

	m.HandleKeyMsg(key("k"))
	assert.Equal(t, 1, m.selected)

	m.HandleKeyMsg(tea.KeyMsg{Type: tea.KeyHome})
	assert.Equal(t, 0, m.selected)
	m.HandleKeyMsg(tea.KeyMsg{Type: tea.KeyEnd})
	assert.Equal(t, 2, m.selected)
}

func TestModel_DetailAndHelp(t *testing.T) {
	m, _ := newTestModel(t, nil)

	handled, _ := m.HandleKeyMsg(key("enter"))
	assert.True(t, handled)
	assert.Equal(t, ViewDetail, m.viewMode)

	handled, _ = m.HandleKeyMsg(key("down"))
	assert.False(t, handled, "arrows scroll the viewport in detail view")

	m.HandleKeyMsg(key("esc"))
	assert.Equal(t, ViewList, m.viewMode)

	m.HandleKeyMsg(key("?"))
	assert.True(t, m.showHelp)
	assert.Contains(t, m.View(), "Keyboard Shortcuts")
	m.HandleKeyMsg(key("esc"))
	assert.False(t, m.showHelp)
}

func TestModel_Quit(t *testing.T) {
	for _, k := range []string{"q", "ctrl+c"} {
		t.Run(k, func(t *testing.T) {
			m, _ := newTestModel(t, nil)
			handled, cmd := m.HandleKeyMsg(key(k))
			assert.True(t, handled)
			require.NotNil(t, cmd)
			assert.IsType(t, tea.QuitMsg{}, cmd())
			assert.Empty(t, m.View())
		})
	}
}

func TestModel_Refresh(t *testing.T) {
	r := &fakeRefresher{result: []poll.Result{
		{Node: "gpu-a"},
		{Node: "gpu-b", Err: errors.New("timeout")},
	}}
	m, _ := newTestModel(t, r)

	_, cmd := m.HandleKeyMsg(key("r"))
	require.NotNil(t, cmd)
	assert.True(t, m.refreshing)

	_, again := m.HandleKeyMsg(key("r"))
	assert.Nil(t, again, "one manual refresh at a time")

	msg := cmd()
	done, ok := msg.(refreshDoneMsg)
	require.True(t, ok)
	assert.Equal(t, 2, done.nodes)
	assert.Equal(t, 1, done.failed)
	assert.Equal(t, 1, r.ticks)

	updated, _ := m.Update(done)
	m = updated.(Model)
	assert.False(t, m.refreshing)
	assert.Contains(t, m.renderFooter(), "1/2 failed")
}

func TestModel_RefreshWithoutRefresher(t *testing.T) {
	m, _ := newTestModel(t, nil)
	handled, cmd := m.HandleKeyMsg(key("r"))
	assert.True(t, handled)
	assert.Nil(t, cmd)
}

func TestModel_WindowSize(t *testing.T) {
	m, _ := newTestModel(t, nil)

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 130, Height: 50})
	m = updated.(Model)
	assert.True(t, m.viewportReady)
	assert.Equal(t, 130, m.viewport.Width)
	assert.Equal(t, 50-m.chromeHeight(), m.viewport.Height)
	assert.Equal(t, LayoutStandard, m.LayoutMode())
}

func TestModel_SecondsSinceUpdate(t *testing.T) {
	m, store := newTestModel(t, nil)
	assert.Equal(t, 0, m.SecondsSinceUpdate())

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	store.SetLastUpdated(at)
	m.sync()
	m.now = func() time.Time { return at.Add(5 * time.Second) }
	assert.Equal(t, 5, m.SecondsSinceUpdate())
	assert.Contains(t, m.updatedText(), "(5s ago)")
}

func TestModel_LayoutMode(t *testing.T) {
	tests := []struct {
		width int
		want  LayoutMode
	}{
		{40, LayoutMinimal},
		{80, LayoutCompact},
		{119, LayoutCompact},
		{120, LayoutStandard},
		{160, LayoutWide},
	}
	for _, tt := range tests {
		m := Model{width: tt.width}
		assert.Equal(t, tt.want, m.LayoutMode(), "width %d", tt.width)
	}
}

func TestModel_SpinnerAdvances(t *testing.T) {
	m, _ := newTestModel(t, nil)
	first := m.ConnectingSpinner()

	updated, cmd := m.Update(spinnerTickMsg(time.Now()))
	m = updated.(Model)
	assert.NotNil(t, cmd)
	assert.NotEqual(t, first, m.ConnectingSpinner())
	assert.True(t, strings.Contains(strings.Join(ConnectingSpinnerFrames, ""), m.ConnectingSpinner()))
}
