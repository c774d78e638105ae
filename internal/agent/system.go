package agent

import (
	"context"
	"math"
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/rileyhilliard/nodeboard/internal/logger"
)

const gib = 1 << 30

// DiskUsageFunc reports usage for a mounted path.
type DiskUsageFunc func(ctx context.Context, path string) (*disk.UsageStat, error)

// SystemCollector samples CPU, memory and disk usage with gopsutil.
type SystemCollector struct {
	Mounts    []string
	CPUSample time.Duration
	Usage     DiskUsageFunc
	Log       logger.Logger
}

// NewSystemCollector reports the given disk mounts alongside CPU and RAM.
func NewSystemCollector(mounts []string, log logger.Logger) *SystemCollector {
	if log == nil {
		log = logger.Noop()
	}
	return &SystemCollector{
		Mounts:    mounts,
		CPUSample: time.Second,
		Usage:     disk.UsageWithContext,
		Log:       log,
	}
}

// Collect samples the host. A metric that can't be read is reported as 0.
// CPU usage blocks for CPUSample.
func (c *SystemCollector) Collect(ctx context.Context) (System, error) {
	sys := System{Disks: []Disk{}}

	if pct, err := cpu.PercentWithContext(ctx, c.CPUSample, false); err != nil || len(pct) == 0 {
		c.Log.Warn("cpu sample failed: %v", err)
	} else {
		sys.CPUPercent = math.Round(pct[0])
	}
	if err := ctx.Err(); err != nil {
		return sys, err
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		c.Log.Warn("memory sample failed: %v", err)
	} else {
		sys.RAMPercent = math.Round(vm.UsedPercent)
	}

	root := "/"
	if isDir("/home") {
		root = "/home"
	}
	if u, err := c.Usage(ctx, root); err != nil {
		c.Log.Warn("disk usage for %s failed: %v", root, err)
	} else {
		sys.SSDPercent = math.Round(u.UsedPercent)
	}

	for _, m := range UniqueMounts(c.Mounts) {
		if !isDir(m) {
			c.Log.Debug("skipping disk mount %s: not a directory", m)
			continue
		}
		u, err := c.Usage(ctx, m)
		if err != nil {
			c.Log.Warn("disk usage for %s failed: %v", m, err)
			continue
		}
		sys.Disks = append(sys.Disks, Disk{
			Mount:       m,
			UsedPercent: math.Round(u.UsedPercent),
			UsedGB:      round1(float64(u.Used) / gib),
			TotalGB:     round1(float64(u.Total) / gib),
		})
	}
	return sys, nil
}

// UniqueMounts drops blanks and repeats, keeping first-seen order.
func UniqueMounts(mounts []string) []string {
	seen := make(map[string]bool, len(mounts))
	var out []string
	for _, m := range mounts {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
