package doctor

import (
	"context"
	"fmt"

	"github.com/rileyhilliard/nodeboard/internal/config"
	"github.com/rileyhilliard/nodeboard/internal/source"
)

// OpenFunc opens the source at uri.
type OpenFunc func(uri string, opts source.Options) (source.Source, error)

// SourceCheck opens the configured source. On success Source is set and
// later checks read through it; the caller closes it.
type SourceCheck struct {
	Settings *config.Settings
	Open     OpenFunc

	Source source.Source
}

func (c *SourceCheck) Name() string     { return "source" }
func (c *SourceCheck) Category() string { return "SOURCE" }

func (c *SourceCheck) Run(ctx context.Context) CheckResult {
	open := c.Open
	if open == nil {
		open = source.New
	}
	src, err := open(c.Settings.Source, source.Options{DialTimeout: c.Settings.Timeout})
	if err != nil {
		return failed(c.Name(), err)
	}
	c.Source = src
	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: "Reading documents from " + src.String(),
	}
}

func (c *SourceCheck) Fix() error { return nil }

// DashboardCheck loads the dashboard documents through an opened source.
// On success Dashboard is set.
type DashboardCheck struct {
	Source     *SourceCheck
	ConfigPath string

	Dashboard *config.Dashboard
}

func (c *DashboardCheck) Name() string     { return "dashboard" }
func (c *DashboardCheck) Category() string { return "SOURCE" }

func (c *DashboardCheck) Run(ctx context.Context) CheckResult {
	if c.Source == nil || c.Source.Source == nil {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusFail,
			Message: "Skipped, the source could not be opened",
		}
	}

	timeout := c.Source.Settings.Timeout
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	d, err := config.Load(ctx, c.Source.Source, c.ConfigPath)
	if err != nil {
		return failed(c.Name(), err)
	}
	c.Dashboard = d

	disabled := len(d.Nodes) - len(d.Active())
	return CheckResult{
		Name:   c.Name(),
		Status: StatusPass,
		Message: fmt.Sprintf("%q with %d node%s (%d disabled), refresh every %ds",
			d.Global.Title, len(d.Nodes), pluralize(len(d.Nodes)), disabled, d.Global.RefreshInterval),
	}
}

func (c *DashboardCheck) Fix() error { return nil }
