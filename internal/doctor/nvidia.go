package doctor

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/rileyhilliard/nodeboard/internal/agent"
)

// NvidiaCheck reports whether this machine can run the agent's GPU query.
// A missing nvidia-smi is only a warning: the board host often has no GPUs.
type NvidiaCheck struct {
	Binary    string
	Collector agent.GPUSource
	LookPath  func(file string) (string, error)
}

func (c *NvidiaCheck) Name() string     { return "nvidia_smi" }
func (c *NvidiaCheck) Category() string { return "AGENT" }

func (c *NvidiaCheck) Run(ctx context.Context) CheckResult {
	lookPath := c.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	path, err := lookPath(c.Binary)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    c.Binary + " not found, the agent would report no GPUs",
			Suggestion: "Only GPU nodes need it; set agent.nvidia_smi if it lives outside PATH",
		}
	}

	collector := c.Collector
	if collector == nil {
		collector = agent.NewNvidiaCollector(path, nil)
	}
	gpus, err := collector.Collect(ctx)
	if err != nil {
		return failed(c.Name(), err)
	}
	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("%s reports %d GPU%s", path, len(gpus), pluralize(len(gpus))),
	}
}

func (c *NvidiaCheck) Fix() error { return nil }
