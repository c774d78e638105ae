// Package poll drives the refresh cycle: on every tick each active node is
// fetched independently and its panel updated as soon as its fetch resolves.
package poll

import (
	"context"
	"sync"
	"time"

	"github.com/rileyhilliard/nodeboard/internal/card"
	"github.com/rileyhilliard/nodeboard/internal/config"
	"github.com/rileyhilliard/nodeboard/internal/errors"
	"github.com/rileyhilliard/nodeboard/internal/logger"
	"github.com/rileyhilliard/nodeboard/internal/panel"
	"github.com/rileyhilliard/nodeboard/internal/telemetry"
)

// Fetcher retrieves the latest snapshot for a node.
type Fetcher interface {
	Fetch(ctx context.Context, node string) (*telemetry.Snapshot, error)
}

// Result is the outcome of one node's fetch within a cycle.
type Result struct {
	Node     string
	Snapshot *telemetry.Snapshot
	Err      error
	Latency  time.Duration
	// Skipped is set when the node's previous fetch was still in flight.
	Skipped bool
}

// Options configure a Scheduler.
type Options struct {
	// Interval between cycles. Defaults to the dashboard's refresh interval.
	Interval time.Duration
	// Timeout bounds a single node's fetch.
	Timeout time.Duration
	// SkipInflight skips a node whose previous fetch hasn't resolved.
	SkipInflight bool
	Logger       logger.Logger
	Now          func() time.Time
}

// DefaultTimeout bounds a node fetch when Options.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// Scheduler runs poll cycles against a panel store.
type Scheduler struct {
	nodes    []string
	fetcher  Fetcher
	renderer *card.Renderer
	store    *panel.Store
	interval time.Duration
	timeout  time.Duration
	skip     bool
	log      logger.Logger
	now      func() time.Time

	mu       sync.Mutex
	inflight map[string]bool
}

// New returns a Scheduler for the dashboard's active nodes. Disabled nodes
// are never fetched.
func New(d *config.Dashboard, store *panel.Store, fetcher Fetcher, opts Options) *Scheduler {
	s := &Scheduler{
		fetcher:  fetcher,
		renderer: card.NewRenderer(d.Global),
		store:    store,
		interval: opts.Interval,
		timeout:  opts.Timeout,
		skip:     opts.SkipInflight,
		log:      opts.Logger,
		now:      opts.Now,
		inflight: make(map[string]bool),
	}
	if s.interval <= 0 {
		s.interval = d.Global.Interval()
	}
	if s.interval <= 0 {
		s.interval = config.DefaultRefreshInterval * time.Second
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	if s.log == nil {
		s.log = logger.Noop()
	}
	if s.now == nil {
		s.now = time.Now
	}

	// Fetch in display order so the first results land at the top of the page.
	for _, name := range store.Nodes() {
		if n, ok := d.Node(name); ok && !n.Disabled() {
			s.nodes = append(s.nodes, name)
		}
	}
	return s
}

// Interval returns the time between cycles.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Nodes returns the nodes fetched each cycle.
func (s *Scheduler) Nodes() []string {
	return append([]string(nil), s.nodes...)
}

// Run starts a cycle immediately and then one per interval until ctx is
// done. The ticker doesn't wait for a cycle to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one cycle. It sets the board's last-updated time, launches one
// fetch per active node, and streams each node's Result as it completes.
// Panels are updated before the result is sent. The channel is buffered
// for every node, so callers may ignore it, and it closes when all
// fetches have finished.
func (s *Scheduler) Tick(ctx context.Context) <-chan Result {
	s.store.SetLastUpdated(s.now())

	results := make(chan Result, len(s.nodes))
	var wg sync.WaitGroup

	for _, node := range s.nodes {
		if !s.acquire(node) {
			s.log.Debug("%s: previous fetch still running, skipping", node)
			results <- Result{Node: node, Skipped: true}
			continue
		}

		wg.Add(1)
		go func(node string) {
			defer wg.Done()
			defer s.release(node)
			results <- s.pollOne(ctx, node)
		}(node)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

func (s *Scheduler) pollOne(ctx context.Context, node string) Result {
	nodeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	snap, err := s.fetcher.Fetch(nodeCtx, node)
	res := Result{Node: node, Snapshot: snap, Err: err, Latency: time.Since(start)}

	// Shutting down; leave the panel as it was.
	if ctx.Err() != nil {
		if res.Err == nil {
			res.Err = ctx.Err()
		}
		return res
	}

	if err != nil {
		s.log.Warn("%s: %s", node, errors.Summary(err))
		s.renderer.Offline(s.store, node, err)
		return res
	}

	s.log.Debug("%s: snapshot %s in %s", node, snap.Timestamp, res.Latency.Round(time.Millisecond))
	s.renderer.Apply(s.store, node, snap)
	return res
}

func (s *Scheduler) acquire(node string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.skip && s.inflight[node] {
		return false
	}
	s.inflight[node] = true
	return true
}

func (s *Scheduler) release(node string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, node)
}

// Drain waits for every result of a cycle and returns them.
func Drain(results <-chan Result) []Result {
	var out []Result
	for r := range results {
		out = append(out, r)
	}
	return out
}
