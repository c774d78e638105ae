package telemetry

// Snapshot is one point-in-time telemetry reading for a node.
// It is replaced wholesale on each successful poll.
type Snapshot struct {
	Node      Text           `json:"node,omitempty"`
	Timestamp Text           `json:"timestamp"`
	System    SystemStats    `json:"system"`
	GPUs      List[GPUStats] `json:"gpus"`
	Usage     *UsageStats    `json:"usage,omitempty"`
}

// SystemStats contains host resource usage.
type SystemStats struct {
	CPUPercent Number          `json:"cpu_percent"`
	RAMPercent Number          `json:"ram_percent"`
	SSDPercent Number          `json:"ssd_percent,omitzero"`
	Disks      List[DiskStats] `json:"disks,omitempty"`
}

// DiskStats describes a single mount point.
// Older agents report the percentage as "percent" instead of "used_percent".
type DiskStats struct {
	Mount       Text   `json:"mount,omitempty"`
	UsedPercent Number `json:"used_percent,omitzero"`
	Percent     Number `json:"percent,omitzero"`
	UsedGB      Number `json:"used_gb,omitzero"`
	TotalGB     Number `json:"total_gb,omitzero"`
}

// UsedFraction returns the disk usage percentage, preferring used_percent.
// The result is NaN when neither field holds a number.
func (d DiskStats) UsedFraction() float64 {
	if d.UsedPercent.Valid {
		return d.UsedPercent.Value
	}
	return d.Percent.Float()
}

// GPUStats contains usage for a single GPU.
type GPUStats struct {
	ID          Text               `json:"id"`
	UUID        Text               `json:"uuid,omitempty"`
	Name        Text               `json:"name"`
	VRAMTotalMB Number             `json:"vram_total_mb,omitzero"`
	VRAMUsedMB  Number             `json:"vram_used_mb"`
	VRAMPercent Number             `json:"vram_percent"`
	UtilPercent Number             `json:"util_percent"`
	Processes   List[ProcessStats] `json:"processes"`
}

// ProcessStats is a compute process running on a GPU.
type ProcessStats struct {
	PID        Number `json:"pid"`
	User       Text   `json:"user"`
	RAMPercent Number `json:"ram_percent"`
}

// DefaultWindowDays is used when a usage summary does not report its window.
const DefaultWindowDays = 7

// UsageStats summarizes per-user GPU usage over a rolling window.
type UsageStats struct {
	WindowDays        Number          `json:"window_days"`
	TotalSamples      Number          `json:"total_samples,omitzero"`
	SampleIntervalSec Number          `json:"sample_interval_sec,omitzero"`
	Users             List[UserUsage] `json:"users"`
}

// Window returns the reported window length in days, or DefaultWindowDays
// when the field is missing or not positive.
func (u *UsageStats) Window() int {
	if u == nil || !u.WindowDays.Valid || u.WindowDays.Value < 1 {
		return DefaultWindowDays
	}
	return int(u.WindowDays.Value)
}

// HasUserList reports whether the snapshot carried a users array, even an empty one.
// A missing or non-array "users" field is distinct from an empty list.
func (u *UsageStats) HasUserList() bool {
	return u != nil && u.Users != nil
}

// UserUsage is one user's row in a usage summary.
type UserUsage struct {
	User           Text   `json:"user"`
	ActiveHours    Number `json:"active_hours"`
	AvgVRAMPercent Number `json:"avg_vram_percent"`
	MaxVRAMPercent Number `json:"max_vram_percent"`
	Samples        Number `json:"samples,omitzero"`
	LastSeen       Text   `json:"last_seen,omitempty"`
}
