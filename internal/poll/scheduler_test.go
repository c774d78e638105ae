package poll

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/nodeboard/internal/config"
	"github.com/rileyhilliard/nodeboard/internal/logger"
	"github.com/rileyhilliard/nodeboard/internal/panel"
	"github.com/rileyhilliard/nodeboard/internal/source"
	"github.com/rileyhilliard/nodeboard/internal/telemetry"
)

func dashboard(nodes ...config.Node) *config.Dashboard {
	return &config.Dashboard{
		Global: config.Global{Title: "test", RefreshInterval: 30, UsageTopN: 6},
		Nodes:  nodes,
	}
}

// funcFetcher adapts a function to Fetcher.
type funcFetcher func(ctx context.Context, node string) (*telemetry.Snapshot, error)

func (f funcFetcher) Fetch(ctx context.Context, node string) (*telemetry.Snapshot, error) {
	return f(ctx, node)
}

func TestTick_EndToEndOverHTTP(t *testing.T) {
	var mu sync.Mutex
	requested := map[string]int{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requested[r.URL.Path]++
		mu.Unlock()

		assert.NotEmpty(t, r.URL.Query().Get("t"), "requests carry a cache-busting parameter")

		switch r.URL.Path {
		case "/data/good.json":
			_, _ = w.Write([]byte(`{"timestamp":"2024-05-01 10:00:00","system":{"cpu_percent":12,"ram_percent":40},"gpus":[]}`))
		case "/data/broken.json":
			_, _ = w.Write([]byte(`{"timestamp":`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src, err := source.NewHTTP(srv.URL, source.Options{})
	require.NoError(t, err)

	d := dashboard(
		config.Node{Name: "good", Order: 1, Status: config.StatusActive},
		config.Node{Name: "broken", Order: 2, Status: config.StatusActive},
		config.Node{Name: "missing", Order: 3, Status: config.StatusActive},
		config.Node{Name: "retired", Order: 4, Status: config.StatusDisabled},
	)
	store := panel.NewBoard(d)
	log := logger.NewBufferLogger()

	s := New(d, store, telemetry.NewFetcher(src, "data"), Options{Logger: log, Timeout: 2 * time.Second})
	results := Drain(s.Tick(context.Background()))
	assert.Len(t, results, 3)

	good, _ := store.Panel("good")
	assert.Equal(t, panel.BodyMetrics, good.Body.Kind)
	assert.Equal(t, "2024-05-01 10:00:00", good.Label)
	assert.Equal(t, "CPU: 12%", good.Body.CPU.Label)

	for _, name := range []string{"broken", "missing"} {
		p, _ := store.Panel(name)
		assert.Equal(t, panel.BodyOffline, p.Body.Kind, name)
		assert.Equal(t, panel.LabelWaiting, p.Label, name)
	}

	retired, _ := store.Panel("retired")
	assert.Equal(t, panel.BodyDisabled, retired.Body.Kind)

	mu.Lock()
	assert.Zero(t, requested["/data/retired.json"], "disabled nodes are never fetched")
	assert.Equal(t, 1, requested["/data/good.json"])
	mu.Unlock()

	assert.True(t, log.HasLevel("warn"))
	warns := 0
	for _, m := range log.Snapshot() {
		if m.Level == "warn" {
			warns++
		}
	}
	assert.Equal(t, 2, warns)
}

func TestTick_SetsLastUpdated(t *testing.T) {
	d := dashboard(config.Node{Name: "a", Status: config.StatusActive})
	store := panel.NewBoard(d)
	at := time.Date(2024, 5, 1, 12, 30, 0, 0, time.Local)

	s := New(d, store, funcFetcher(func(context.Context, string) (*telemetry.Snapshot, error) {
		return &telemetry.Snapshot{}, nil
	}), Options{Now: func() time.Time { return at }})

	Drain(s.Tick(context.Background()))
	assert.Equal(t, at, store.LastUpdated())
}

func TestTick_FailureIsIsolated(t *testing.T) {
	d := dashboard(
		config.Node{Name: "ok", Order: 1},
		config.Node{Name: "down", Order: 2},
	)
	store := panel.NewBoard(d)

	s := New(d, store, funcFetcher(func(_ context.Context, node string) (*telemetry.Snapshot, error) {
		if node == "down" {
			return nil, fmt.Errorf("connection refused")
		}
		return &telemetry.Snapshot{Timestamp: "t1"}, nil
	}), Options{})

	results := Drain(s.Tick(context.Background()))
	require.Len(t, results, 2)

	byNode := map[string]Result{}
	for _, r := range results {
		byNode[r.Node] = r
	}
	assert.NoError(t, byNode["ok"].Err)
	assert.Error(t, byNode["down"].Err)

	ok, _ := store.Panel("ok")
	assert.Equal(t, panel.BodyMetrics, ok.Body.Kind)
	down, _ := store.Panel("down")
	assert.Equal(t, panel.BodyOffline, down.Body.Kind)
	assert.Equal(t, "connection refused", down.Body.Detail)
}

func TestTick_NoActiveNodes(t *testing.T) {
	d := dashboard(config.Node{Name: "off", Status: config.StatusDisabled})
	s := New(d, panel.NewBoard(d), funcFetcher(func(context.Context, string) (*telemetry.Snapshot, error) {
		t.Fatal("disabled node fetched")
		return nil, nil
	}), Options{})

	assert.Empty(t, Drain(s.Tick(context.Background())))
	assert.Empty(t, s.Nodes())
}

func TestTick_SkipsInflightNode(t *testing.T) {
	d := dashboard(config.Node{Name: "slow"}, config.Node{Name: "fast", Order: 1})
	store := panel.NewBoard(d)

	release := make(chan struct{})
	var calls atomic.Int32
	s := New(d, store, funcFetcher(func(ctx context.Context, node string) (*telemetry.Snapshot, error) {
		calls.Add(1)
		if node == "slow" {
			<-release
		}
		return &telemetry.Snapshot{Timestamp: "t"}, nil
	}), Options{SkipInflight: true})

	first := s.Tick(context.Background())

	// Wait for the fast node so only the slow fetch is outstanding.
	r := <-first
	assert.Equal(t, "fast", r.Node)

	second := Drain(s.Tick(context.Background()))
	var skipped []string
	for _, r := range second {
		if r.Skipped {
			skipped = append(skipped, r.Node)
		}
	}
	assert.Equal(t, []string{"slow"}, skipped)

	close(release)
	Drain(first)
	assert.Equal(t, int32(3), calls.Load())

	// Once resolved, the node is fetched again.
	third := Drain(s.Tick(context.Background()))
	for _, r := range third {
		assert.False(t, r.Skipped)
	}
}

func TestTick_OverlapWhenGuardDisabled(t *testing.T) {
	d := dashboard(config.Node{Name: "slow"})
	store := panel.NewBoard(d)

	release := make(chan struct{})
	var calls atomic.Int32
	s := New(d, store, funcFetcher(func(ctx context.Context, node string) (*telemetry.Snapshot, error) {
		calls.Add(1)
		<-release
		return &telemetry.Snapshot{}, nil
	}), Options{SkipInflight: false})

	first := s.Tick(context.Background())
	second := s.Tick(context.Background())

	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	close(release)
	Drain(first)
	Drain(second)
}

func TestTick_Timeout(t *testing.T) {
	d := dashboard(config.Node{Name: "hang"})
	store := panel.NewBoard(d)

	s := New(d, store, funcFetcher(func(ctx context.Context, node string) (*telemetry.Snapshot, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}), Options{Timeout: 20 * time.Millisecond})

	results := Drain(s.Tick(context.Background()))
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.DeadlineExceeded)

	p, _ := store.Panel("hang")
	assert.Equal(t, panel.BodyOffline, p.Body.Kind)
}

func TestTick_CancelledLeavesPanel(t *testing.T) {
	d := dashboard(config.Node{Name: "a"})
	store := panel.NewBoard(d)

	ctx, cancel := context.WithCancel(context.Background())
	s := New(d, store, funcFetcher(func(ctx context.Context, node string) (*telemetry.Snapshot, error) {
		cancel()
		return nil, ctx.Err()
	}), Options{})

	Drain(s.Tick(ctx))
	p, _ := store.Panel("a")
	assert.Equal(t, panel.BodyConnecting, p.Body.Kind)
}

func TestRun_TicksImmediatelyAndRepeats(t *testing.T) {
	d := dashboard(config.Node{Name: "a"})
	store := panel.NewBoard(d)

	var calls atomic.Int32
	s := New(d, store, funcFetcher(func(context.Context, string) (*telemetry.Snapshot, error) {
		calls.Add(1)
		return &telemetry.Snapshot{Timestamp: telemetry.Text(fmt.Sprint(time.Now().UnixNano()))}, nil
	}), Options{Interval: 20 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 500*time.Millisecond, time.Millisecond)
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestNew_Defaults(t *testing.T) {
	d := dashboard(
		config.Node{Name: "b", Order: 2},
		config.Node{Name: "a", Order: 1},
		config.Node{Name: "x", Order: 0, Status: config.StatusDisabled},
	)
	s := New(d, panel.NewBoard(d), funcFetcher(nil), Options{})
	assert.Equal(t, 30*time.Second, s.Interval())
	assert.Equal(t, []string{"a", "b"}, s.Nodes())
	assert.Equal(t, DefaultTimeout, s.timeout)
}

func TestDrain(t *testing.T) {
	ch := make(chan Result, 2)
	ch <- Result{Node: "a"}
	ch <- Result{Node: "b"}
	close(ch)
	got := Drain(ch)
	names := make([]string, len(got))
	for i, r := range got {
		names[i] = r.Node
	}
	assert.Equal(t, "a,b", strings.Join(names, ","))
}
