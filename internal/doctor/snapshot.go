package doctor

import (
	"context"
	"fmt"
	"time"

	"github.com/rileyhilliard/nodeboard/internal/agent"
	"github.com/rileyhilliard/nodeboard/internal/telemetry"
)

// SnapshotFetcher reads a node's latest snapshot.
type SnapshotFetcher interface {
	Fetch(ctx context.Context, node string) (*telemetry.Snapshot, error)
}

// SnapshotCheck verifies an active node has a readable, recent snapshot.
type SnapshotCheck struct {
	Node    string
	Fetcher SnapshotFetcher
	Timeout time.Duration
	// MaxAge is how old a snapshot may be before it is reported as stale.
	MaxAge time.Duration
	Now    func() time.Time
}

// NewSnapshotChecks returns one check per node.
func NewSnapshotChecks(nodes []string, f SnapshotFetcher, timeout, maxAge time.Duration) []Check {
	checks := make([]Check, 0, len(nodes))
	for _, n := range nodes {
		checks = append(checks, &SnapshotCheck{Node: n, Fetcher: f, Timeout: timeout, MaxAge: maxAge})
	}
	return checks
}

func (c *SnapshotCheck) Name() string     { return "node:" + c.Node }
func (c *SnapshotCheck) Category() string { return "SNAPSHOTS" }

func (c *SnapshotCheck) Run(ctx context.Context) CheckResult {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	snap, err := c.Fetcher.Fetch(ctx, c.Node)
	if err != nil {
		res := failed(c.Name(), err)
		if res.Suggestion == "" {
			res.Suggestion = fmt.Sprintf("Run 'nodeboard agent %s' on the node", c.Node)
		}
		return res
	}

	ts := snap.Timestamp.String()
	written, err := time.ParseInLocation(agent.TimestampFormat, ts, time.Local)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    fmt.Sprintf("Snapshot readable but timestamp %q isn't in the agent format", ts),
			Suggestion: "The board shows it as-is; freshness can't be checked",
		}
	}

	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	age := now().Sub(written).Truncate(time.Second)
	if c.MaxAge > 0 && age > c.MaxAge {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    fmt.Sprintf("Snapshot is stale, last written %s (%s ago)", ts, age),
			Suggestion: fmt.Sprintf("Check 'nodeboard agent %s' is still running on the node", c.Node),
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("Written %s, %d GPU%s", ts, len(snap.GPUs), pluralize(len(snap.GPUs))),
	}
}

func (c *SnapshotCheck) Fix() error { return nil }
