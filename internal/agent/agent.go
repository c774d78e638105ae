package agent

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rileyhilliard/nodeboard/internal/config"
	"github.com/rileyhilliard/nodeboard/internal/errors"
	"github.com/rileyhilliard/nodeboard/internal/logger"
)

// GPUSource reports the machine's GPUs.
type GPUSource interface {
	Collect(ctx context.Context) ([]GPU, error)
}

// SystemSource reports host utilization.
type SystemSource interface {
	Collect(ctx context.Context) (System, error)
}

// Options configure an Agent. Zero-valued sources default to nvidia-smi and
// gopsutil.
type Options struct {
	Settings config.AgentSettings
	GPUs     GPUSource
	System   SystemSource
	Logger   logger.Logger
	Now      func() time.Time

	// NoUsage leaves the usage section out of every report. A single
	// sample can't describe a multi-day window.
	NoUsage bool
}

// Agent samples one node and writes its snapshot file.
type Agent struct {
	node     string
	path     string
	interval time.Duration
	gpus     GPUSource
	system   SystemSource
	usage    *UsageWindow
	log      logger.Logger
	now      func() time.Time
}

// New validates node and prepares an agent writing <out>/<node>.json.
func New(node string, opts Options) (*Agent, error) {
	if !config.ValidNodeName(node) {
		return nil, errors.New(errors.ErrAgent,
			fmt.Sprintf("Node name %q can't be used as a file name", node),
			"Use the name listed in config/nodes.json, without '/' or '..'.")
	}

	s := opts.Settings
	if s.SampleInterval <= 0 {
		s.SampleInterval = config.DefaultSettings().Agent.SampleInterval
	}
	out := s.Out
	if out == "" {
		out = "."
	}

	a := &Agent{
		node:     node,
		path:     filepath.Join(out, node+".json"),
		interval: s.SampleInterval,
		gpus:     opts.GPUs,
		system:   opts.System,
		log:      opts.Logger,
		now:      opts.Now,
		usage: NewUsageWindow(UsageOptions{
			HistoryDays:    s.HistoryDays,
			SampleInterval: s.SampleInterval,
			MinUserPercent: s.MinUserPercent,
			ExcludeUsers:   s.ExcludeUsers,
		}),
	}
	if opts.NoUsage {
		a.usage = nil
	}
	if a.log == nil {
		a.log = logger.Noop()
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.gpus == nil {
		a.gpus = NewNvidiaCollector(s.NvidiaSMI, a.log)
	}
	if a.system == nil {
		a.system = NewSystemCollector(s.DiskMounts, a.log)
	}
	return a, nil
}

// Path returns the snapshot file the agent writes.
func (a *Agent) Path() string {
	return a.path
}

// Interval returns the time between samples.
func (a *Agent) Interval() time.Duration {
	return a.interval
}

// Sample collects one report. GPU and system collection run concurrently;
// a collector failure is logged and leaves its section empty.
func (a *Agent) Sample(ctx context.Context) (*Report, error) {
	var (
		gpus []GPU
		sys  System
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		gpus, err = a.gpus.Collect(gctx)
		if err != nil {
			a.log.Warn("gpu collection: %s", errors.Summary(err))
		}
		if gpus == nil {
			gpus = []GPU{}
		}
		return nil
	})
	g.Go(func() error {
		var err error
		sys, err = a.system.Collect(gctx)
		if err != nil && gctx.Err() == nil {
			a.log.Warn("system collection: %s", errors.Summary(err))
		}
		if sys.Disks == nil {
			sys.Disks = []Disk{}
		}
		return nil
	})
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := a.now()
	return &Report{
		Node:      a.node,
		Timestamp: now.Local().Format(TimestampFormat),
		System:    sys,
		GPUs:      gpus,
		Usage:     a.usage.Record(now, gpus),
	}, nil
}

// WriteOnce samples and writes one snapshot.
func (a *Agent) WriteOnce(ctx context.Context) (*Report, error) {
	r, err := a.Sample(ctx)
	if err != nil {
		return nil, err
	}
	if err := WriteReport(a.path, r); err != nil {
		return nil, err
	}
	a.log.Debug("wrote %s (%d GPUs)", a.path, len(r.GPUs))
	return r, nil
}

// Run writes a snapshot immediately and then every interval until ctx
// ends. Write failures are logged and retried on the next tick.
func (a *Agent) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		if _, err := a.WriteOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			a.log.Error("%s", errors.Summary(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
