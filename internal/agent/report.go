// Package agent samples the local machine and writes <node>.json telemetry
// snapshots that the board polls.
package agent

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rileyhilliard/nodeboard/internal/errors"
)

// TimestampFormat is the local-time format of Report.Timestamp and
// UserSummary.LastSeen.
const TimestampFormat = "2006-01-02 15:04:05"

// Report is one snapshot document.
type Report struct {
	Node      string `json:"node"`
	Timestamp string `json:"timestamp"`
	System    System `json:"system"`
	GPUs      []GPU  `json:"gpus"`
	Usage     *Usage `json:"usage,omitempty"`
}

// System holds host-level utilization.
type System struct {
	CPUPercent float64 `json:"cpu_percent"`
	RAMPercent float64 `json:"ram_percent"`
	SSDPercent float64 `json:"ssd_percent"`
	Disks      []Disk  `json:"disks"`
}

// Disk is one configured mount.
type Disk struct {
	Mount       string  `json:"mount"`
	UsedPercent float64 `json:"used_percent"`
	UsedGB      float64 `json:"used_gb"`
	TotalGB     float64 `json:"total_gb"`
}

// GPU is one device as reported by nvidia-smi.
type GPU struct {
	ID          int       `json:"id"`
	UUID        string    `json:"uuid"`
	Name        string    `json:"name"`
	VRAMTotalMB int       `json:"vram_total_mb"`
	VRAMUsedMB  int       `json:"vram_used_mb"`
	VRAMPercent int       `json:"vram_percent"`
	UtilPercent int       `json:"util_percent"`
	Processes   []Process `json:"processes"`
}

// Process is a compute process on a GPU. RAMPercent is its share of the
// device's VRAM.
type Process struct {
	PID        int    `json:"pid"`
	User       string `json:"user"`
	RAMPercent int    `json:"ram_percent"`
}

// Usage summarizes per-user GPU memory use over the history window.
type Usage struct {
	WindowDays        int           `json:"window_days"`
	TotalSamples      int           `json:"total_samples"`
	SampleIntervalSec int           `json:"sample_interval_sec"`
	Users             []UserSummary `json:"users"`
}

// UserSummary is one user's line in Usage.
type UserSummary struct {
	User           string  `json:"user"`
	ActiveHours    float64 `json:"active_hours"`
	AvgVRAMPercent float64 `json:"avg_vram_percent"`
	MaxVRAMPercent float64 `json:"max_vram_percent"`
	Samples        int     `json:"samples"`
	LastSeen       string  `json:"last_seen"`
}

// WriteReport writes r to path through a temporary file and rename, so a
// poller never reads a half-written document.
func WriteReport(path string, r *Report) error {
	data, err := json.MarshalIndent(r, "", "    ")
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrAgent, "Couldn't encode the snapshot", "")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.WrapWithCode(err, errors.ErrAgent,
			"Couldn't create the output directory "+filepath.Dir(path),
			"Check permissions or pick another directory with --out.")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrAgent, "Couldn't write "+path, "Check permissions on the output directory.")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return errors.WrapWithCode(err, errors.ErrAgent, "Couldn't write "+path, "")
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return errors.WrapWithCode(err, errors.ErrAgent, "Couldn't write "+path, "")
	}
	if err := tmp.Close(); err != nil {
		return errors.WrapWithCode(err, errors.ErrAgent, "Couldn't write "+path, "")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.WrapWithCode(err, errors.ErrAgent, "Couldn't replace "+path, "")
	}
	return nil
}
