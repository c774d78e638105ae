package telemetry

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ColorClass is the severity bucket for a percentage.
type ColorClass int

const (
	Green ColorClass = iota
	Yellow
	Orange
	Red
)

// String returns the class name: green, yellow, orange or red.
func (c ColorClass) String() string {
	switch c {
	case Red:
		return "red"
	case Orange:
		return "orange"
	case Yellow:
		return "yellow"
	default:
		return "green"
	}
}

// CSSClass returns the stylesheet class used by the web page.
func (c ColorClass) CSSClass() string {
	return "bg-" + c.String()
}

// Color thresholds. Boundaries are exact: 90 is orange, 60 is yellow, 30 is yellow.
const (
	RedAbove    = 90.0
	OrangeAbove = 60.0
	YellowFrom  = 30.0
)

// DefaultTopUsers is the number of usage rows shown when not configured.
const DefaultTopUsers = 6

// HomeMount is the mount name given to the synthetic disk built from ssd_percent.
const HomeMount = "/home"

// ClampPercent bounds v to [0, 100]. Non-finite input yields 0.
func ClampPercent(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}

// ColorClassFor maps a percentage to its severity class.
func ColorClassFor(p float64) ColorClass {
	switch {
	case p > RedAbove:
		return Red
	case p > OrangeAbove:
		return Orange
	case p >= YellowFrom:
		return Yellow
	default:
		return Green
	}
}

// ResolveDiskList returns the disks to render. Agents that predate per-mount
// reporting only send ssd_percent, which becomes a single /home entry.
func ResolveDiskList(sys SystemStats) []DiskStats {
	if len(sys.Disks) > 0 {
		return sys.Disks
	}
	if sys.SSDPercent.Valid {
		return []DiskStats{{Mount: HomeMount, UsedPercent: sys.SSDPercent}}
	}
	return []DiskStats{}
}

// FormatSize renders a size in gigabytes: whole numbers from 100G up,
// one decimal below that, "-" when the value is not finite.
func FormatSize(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	if v >= 100 {
		return fmt.Sprintf("%dG", int64(math.Round(v)))
	}
	return fmt.Sprintf("%.1fG", v)
}

const nvidiaPrefix = "NVIDIA "

// ResolveGPUDisplayName returns the configured short name for raw, or raw
// with a single leading "NVIDIA " removed.
func ResolveGPUDisplayName(raw string, nameMap map[string]string) string {
	if mapped, ok := nameMap[raw]; ok && mapped != "" {
		return mapped
	}
	return strings.TrimPrefix(raw, nvidiaPrefix)
}

// TopUsers returns the first n users in the order the agent reported them.
// n <= 0 means DefaultTopUsers.
func TopUsers(usage *UsageStats, n int) []UserUsage {
	if usage == nil {
		return nil
	}
	if n <= 0 {
		n = DefaultTopUsers
	}
	if n > len(usage.Users) {
		n = len(usage.Users)
	}
	return usage.Users[:n]
}

// FormatPercent renders a clamped percentage without trailing zeros, or "-".
func FormatPercent(n Number) string {
	if !n.Valid {
		return "-"
	}
	return formatFloat(ClampPercent(n.Value))
}

// FormatNumber renders a number as reported, or "-" when it is missing.
func FormatNumber(n Number) string {
	if !n.Valid {
		return "-"
	}
	return formatFloat(n.Value)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}
