package agent

import (
	"context"
	stderrors "errors"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/rileyhilliard/nodeboard/internal/errors"
	"github.com/rileyhilliard/nodeboard/internal/logger"
)

// nvidia-smi queries. Field order matters to the parsers below.
var (
	gpuQueryArgs = []string{
		"--query-gpu=index,uuid,name,memory.total,memory.used,utilization.gpu",
		"--format=csv,noheader,nounits",
	}
	appQueryArgs = []string{
		"--query-compute-apps=gpu_uuid,pid,used_gpu_memory",
		"--format=csv,noheader,nounits",
	}
)

// UnknownUser is reported when a process owner can't be resolved.
const UnknownUser = "unknown"

// Runner runs a command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// OwnerFunc resolves the user name owning pid.
type OwnerFunc func(ctx context.Context, pid int) string

// ProcessOwner looks the owner up with gopsutil.
func ProcessOwner(ctx context.Context, pid int) string {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return UnknownUser
	}
	name, err := p.UsernameWithContext(ctx)
	if err != nil || name == "" {
		return UnknownUser
	}
	return name
}

// NvidiaCollector reads GPUs and their compute processes from nvidia-smi.
type NvidiaCollector struct {
	Binary string
	Run    Runner
	Owner  OwnerFunc
	Log    logger.Logger
}

// NewNvidiaCollector returns a collector that shells out to binary.
func NewNvidiaCollector(binary string, log logger.Logger) *NvidiaCollector {
	if binary == "" {
		binary = "nvidia-smi"
	}
	if log == nil {
		log = logger.Noop()
	}
	return &NvidiaCollector{Binary: binary, Run: ExecRunner, Owner: ProcessOwner, Log: log}
}

// Collect returns the machine's GPUs. A host without nvidia-smi has no GPUs
// and is not an error. The returned slice is never nil.
func (c *NvidiaCollector) Collect(ctx context.Context) ([]GPU, error) {
	out, err := c.Run(ctx, c.Binary, gpuQueryArgs...)
	if err != nil {
		if stderrors.Is(err, exec.ErrNotFound) {
			c.Log.Debug("%s not found, reporting no GPUs", c.Binary)
			return []GPU{}, nil
		}
		return []GPU{}, errors.WrapWithCode(err, errors.ErrAgent,
			"nvidia-smi GPU query failed",
			"Check the NVIDIA driver is loaded: run nvidia-smi by hand.")
	}
	gpus := ParseGPUs(string(out))

	// nvidia-smi exits non-zero on some drivers when no compute apps run.
	appOut, err := c.Run(ctx, c.Binary, appQueryArgs...)
	if err != nil {
		c.Log.Debug("compute-apps query failed: %v", err)
		return gpus, nil
	}

	byUUID := make(map[string]int, len(gpus))
	for i, g := range gpus {
		byUUID[g.UUID] = i
	}
	for _, app := range ParseComputeApps(string(appOut)) {
		i, ok := byUUID[app.UUID]
		if !ok {
			continue
		}
		g := &gpus[i]
		user := UnknownUser
		if c.Owner != nil {
			user = c.Owner(ctx, app.PID)
		}
		g.Processes = append(g.Processes, Process{
			PID:        app.PID,
			User:       user,
			RAMPercent: ratioPercent(app.UsedMB, g.VRAMTotalMB),
		})
	}
	return gpus, nil
}

// ParseGPUs parses the output of the GPU query. Lines with fewer than six
// fields or unreadable index/memory values are skipped; an unreadable
// utilization reads as 0.
func ParseGPUs(out string) []GPU {
	gpus := []GPU{}
	for _, fields := range csvLines(out) {
		if len(fields) < 6 {
			continue
		}
		idx, err1 := strconv.Atoi(fields[0])
		total, err2 := strconv.Atoi(fields[3])
		used, err3 := strconv.Atoi(fields[4])
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		util, _ := strconv.Atoi(fields[5])

		gpus = append(gpus, GPU{
			ID:          idx,
			UUID:        fields[1],
			Name:        fields[2],
			VRAMTotalMB: total,
			VRAMUsedMB:  used,
			VRAMPercent: ratioPercent(used, total),
			UtilPercent: util,
			Processes:   []Process{},
		})
	}
	return gpus
}

// ComputeApp is one line of the compute-apps query.
type ComputeApp struct {
	UUID   string
	PID    int
	UsedMB int
}

// ParseComputeApps parses the output of the compute-apps query. A memory
// value of "[N/A]" reads as 0.
func ParseComputeApps(out string) []ComputeApp {
	var apps []ComputeApp
	for _, fields := range csvLines(out) {
		if len(fields) < 3 {
			continue
		}
		pid, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		used, _ := strconv.Atoi(fields[2])
		apps = append(apps, ComputeApp{UUID: fields[0], PID: pid, UsedMB: used})
	}
	return apps
}

func csvLines(out string) [][]string {
	var lines [][]string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		lines = append(lines, fields)
	}
	return lines
}

func ratioPercent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}
