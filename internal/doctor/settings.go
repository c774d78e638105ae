package doctor

import (
	"context"
	"fmt"

	"github.com/rileyhilliard/nodeboard/internal/config"
)

// SettingsCheck reports how settings were resolved. Loading happens before
// any check runs, so the check only reports the outcome.
type SettingsCheck struct {
	Path     string
	Settings *config.Settings
	Err      error
}

func (c *SettingsCheck) Name() string     { return "settings" }
func (c *SettingsCheck) Category() string { return "SETTINGS" }

func (c *SettingsCheck) Run(ctx context.Context) CheckResult {
	if c.Err != nil {
		return failed(c.Name(), c.Err)
	}
	if c.Path == "" {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusPass,
			Message:    fmt.Sprintf("No settings file, using defaults (source %q)", c.Settings.Source),
			Suggestion: "Run 'nodeboard init' to write " + config.SettingsFileName,
		}
	}
	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("Loaded %s (source %q)", c.Path, c.Settings.Source),
	}
}

func (c *SettingsCheck) Fix() error { return nil }
