package monitor

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rileyhilliard/nodeboard/internal/panel"
	"github.com/rileyhilliard/nodeboard/internal/poll"
)

// Refresher starts an out-of-band poll cycle. *poll.Scheduler implements it.
type Refresher interface {
	Tick(ctx context.Context) <-chan poll.Result
}

// LayoutMode represents the responsive layout mode based on terminal size.
type LayoutMode int

const (
	// LayoutMinimal is for terminals < 80 columns: single column, no process tags
	LayoutMinimal LayoutMode = iota
	// LayoutCompact is for terminals 80-120 columns
	LayoutCompact
	// LayoutStandard is for terminals 120-160 columns
	LayoutStandard
	// LayoutWide is for terminals 160+ columns
	LayoutWide
)

// Width breakpoints for layout modes
const (
	BreakpointCompact  = 80
	BreakpointStandard = 120
	BreakpointWide     = 160
)

// Model is the Bubble Tea model for the terminal dashboard. It never fetches
// on its own: the scheduler writes into the panel store and the model
// re-reads the store whenever the store signals a change.
type Model struct {
	ctx         context.Context
	store       *panel.Store
	refresher   Refresher
	changes     <-chan struct{}
	unsubscribe func()

	header     panel.Header
	panels     []panel.Panel
	lastUpdate time.Time

	selected   int
	width      int
	height     int
	quitting   bool
	viewMode   ViewMode
	showHelp   bool
	refreshing bool
	lastCycle  refreshDoneMsg

	spinnerFrame int

	viewport      viewport.Model
	viewportReady bool

	now func() time.Time
}

// storeChangedMsg signals that the panel store has new state.
type storeChangedMsg struct{}

// spinnerTickMsg advances the connecting animation and the "last update" clock.
type spinnerTickMsg time.Time

// refreshDoneMsg reports a manual refresh cycle.
type refreshDoneMsg struct {
	nodes   int
	failed  int
	skipped int
}

const spinnerInterval = 150 * time.Millisecond

// NewModel creates a dashboard model over store. refresher may be nil, in
// which case the refresh key does nothing. ctx bounds the store
// subscription and manual refresh cycles.
func NewModel(ctx context.Context, store *panel.Store, refresher Refresher) Model {
	changes, unsubscribe := store.Subscribe()
	m := Model{
		ctx:         ctx,
		store:       store,
		refresher:   refresher,
		changes:     changes,
		unsubscribe: unsubscribe,
		now:         time.Now,
	}
	m.sync()
	return m
}

// Init starts listening for store changes and the animation ticker.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForChange(m.ctx, m.changes),
		m.spinnerTickCmd(),
	)
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		handled, cmd := m.HandleKeyMsg(msg)
		if handled {
			m.updateViewportContent()
			return m, cmd
		}
		if m.viewportReady {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case tea.MouseMsg:
		if m.viewportReady {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewport()
		m.updateViewportContent()

	case storeChangedMsg:
		m.sync()
		m.updateViewportContent()
		return m, waitForChange(m.ctx, m.changes)

	case refreshDoneMsg:
		m.refreshing = false
		m.lastCycle = msg

	case spinnerTickMsg:
		m.spinnerFrame = (m.spinnerFrame + 1) % 10000
		if m.hasConnecting() {
			m.updateViewportContent()
		}
		return m, m.spinnerTickCmd()
	}

	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.showHelp {
		return m.renderHelpOverlay()
	}
	return m.renderDashboard()
}

// Close releases the store subscription.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// waitForChange blocks until the store publishes a change or ctx ends.
func waitForChange(ctx context.Context, changes <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			return storeChangedMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}

func (m Model) spinnerTickCmd() tea.Cmd {
	return tea.Tick(spinnerInterval, func(t time.Time) tea.Msg {
		return spinnerTickMsg(t)
	})
}

// refreshCmd runs one poll cycle and waits for every node to resolve.
// Panels update through the store as results land.
func (m *Model) refreshCmd() tea.Cmd {
	if m.refresher == nil || m.refreshing {
		return nil
	}
	m.refreshing = true

	ctx, refresher := m.ctx, m.refresher
	return func() tea.Msg {
		var done refreshDoneMsg
		for _, r := range poll.Drain(refresher.Tick(ctx)) {
			done.nodes++
			switch {
			case r.Skipped:
				done.skipped++
			case r.Err != nil:
				done.failed++
			}
		}
		return done
	}
}

// sync copies the current store state into the model.
func (m *Model) sync() {
	m.header = m.store.Header()
	m.panels = m.store.Panels()
	m.lastUpdate = m.store.LastUpdated()
	if m.selected >= len(m.panels) {
		m.selected = len(m.panels) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func (m *Model) resizeViewport() {
	h := m.height - m.chromeHeight()
	if h < 1 {
		h = 1
	}
	if !m.viewportReady {
		m.viewport = viewport.New(m.width, h)
		m.viewportReady = true
		return
	}
	m.viewport.Width = m.width
	m.viewport.Height = h
}

// updateViewportContent re-renders the scrollable area for the current mode.
func (m *Model) updateViewportContent() {
	if !m.viewportReady {
		return
	}
	if m.viewMode == ViewDetail {
		m.viewport.SetContent(m.renderDetailView())
		return
	}
	m.viewport.SetContent(m.renderPanelGrid())
}

func (m Model) hasConnecting() bool {
	for _, p := range m.panels {
		if p.Body.Kind == panel.BodyConnecting {
			return true
		}
	}
	return false
}

// OnlineCount returns the number of nodes whose last fetch succeeded.
func (m Model) OnlineCount() int {
	count := 0
	for _, p := range m.panels {
		if p.Body.Kind == panel.BodyMetrics {
			count++
		}
	}
	return count
}

// ActiveCount returns the number of nodes that are polled.
func (m Model) ActiveCount() int {
	count := 0
	for _, p := range m.panels {
		if p.Body.Kind != panel.BodyDisabled {
			count++
		}
	}
	return count
}

// SelectedNode returns the name of the selected node.
func (m Model) SelectedNode() string {
	if m.selected >= 0 && m.selected < len(m.panels) {
		return m.panels[m.selected].Node
	}
	return ""
}

// SecondsSinceUpdate returns how many seconds have passed since the last cycle started.
func (m Model) SecondsSinceUpdate() int {
	if m.lastUpdate.IsZero() {
		return 0
	}
	return int(m.now().Sub(m.lastUpdate).Seconds())
}

// ConnectingSpinner returns the current frame of the connecting animation.
func (m Model) ConnectingSpinner() string {
	return ConnectingSpinnerFrames[m.spinnerFrame%len(ConnectingSpinnerFrames)]
}

// LayoutMode returns the current layout mode based on terminal width.
func (m Model) LayoutMode() LayoutMode {
	switch {
	case m.width >= BreakpointWide:
		return LayoutWide
	case m.width >= BreakpointStandard:
		return LayoutStandard
	case m.width >= BreakpointCompact:
		return LayoutCompact
	default:
		return LayoutMinimal
	}
}
