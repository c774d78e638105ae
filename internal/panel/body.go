// Package panel holds the per-node display state shared by every surface:
// the ordered set of panels built once at startup and the bodies that each
// poll replaces.
package panel

import (
	"strings"

	"github.com/rileyhilliard/nodeboard/internal/telemetry"
)

// BodyKind identifies what a panel body shows.
type BodyKind int

const (
	// BodyConnecting is shown until the first poll for an active node resolves.
	BodyConnecting BodyKind = iota
	// BodyDisabled is permanent for administratively disabled nodes.
	BodyDisabled
	// BodyMetrics shows a rendered snapshot.
	BodyMetrics
	// BodyOffline replaces the body when a fetch fails.
	BodyOffline
)

func (k BodyKind) String() string {
	switch k {
	case BodyDisabled:
		return "disabled"
	case BodyMetrics:
		return "metrics"
	case BodyOffline:
		return "offline"
	default:
		return "connecting"
	}
}

// Messages shown for non-metric bodies.
const (
	ConnectingMessage     = "Connecting..."
	DisabledTitle         = "This node is disabled"
	DefaultDisabledReason = "no explanation given"
	OfflineMessage        = "node offline"
	NoGPUMessage          = "no GPU data"
)

// Status labels set at layout time. After the first successful poll the
// label holds the snapshot timestamp.
const (
	LabelDisabled = "Disabled"
	LabelWaiting  = "Waiting..."
)

// Body is a structured, surface-independent rendering of one panel.
// Bodies are replaced wholesale and never mutated after being stored.
type Body struct {
	Kind BodyKind `json:"kind"`
	// Message is the disabled reason, or the offline/connecting text.
	Message string `json:"message,omitempty"`
	// Detail carries the failure summary behind an offline body.
	Detail string `json:"detail,omitempty"`

	CPU   Bar      `json:"cpu"`
	RAM   Bar      `json:"ram"`
	Disks []Bar    `json:"disks,omitempty"`
	GPUs  []GPURow `json:"gpus,omitempty"`

	Usage *UsageTable `json:"usage,omitempty"`
	// UsageNotice is set instead of Usage when the agent reported an empty user list.
	UsageNotice string `json:"usage_notice,omitempty"`
}

// Bar is a labelled percentage bar.
type Bar struct {
	Label   string               `json:"label"`
	Text    string               `json:"text"`
	Percent float64              `json:"percent"`
	Color   telemetry.ColorClass `json:"-"`
	Class   string               `json:"class"`
}

// NewBar builds a bar whose width and color come from the clamped percentage.
func NewBar(label, text string, percent float64) Bar {
	p := telemetry.ClampPercent(percent)
	c := telemetry.ColorClassFor(p)
	return Bar{Label: label, Text: text, Percent: p, Color: c, Class: c.CSSClass()}
}

// GPURow is one row of the GPU table.
type GPURow struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	VRAM      Bar          `json:"vram"`
	Util      Bar          `json:"util"`
	Processes []ProcessTag `json:"processes"`
}

// ProcessTag is a compact "user(ram%)" label with the PID as detail.
type ProcessTag struct {
	Label  string `json:"label"`
	Detail string `json:"detail"`
}

// UsageTable is the per-user usage summary.
type UsageTable struct {
	Title string     `json:"title"`
	Rows  []UsageRow `json:"rows"`
}

// UsageRow is one user's line in the usage table.
type UsageRow struct {
	User        string `json:"user"`
	ActiveHours string `json:"active_hours"`
	AvgVRAM     string `json:"avg_vram_percent"`
	MaxVRAM     string `json:"max_vram_percent"`
}

// ConnectingBody is the initial body of an active node.
func ConnectingBody() Body {
	return Body{Kind: BodyConnecting, Message: ConnectingMessage}
}

// DisabledBody is the permanent body of a disabled node.
func DisabledBody(reason string) Body {
	if reason == "" {
		reason = DefaultDisabledReason
	}
	return Body{Kind: BodyDisabled, Message: reason}
}

// OfflineBody replaces a node's body after a failed fetch.
func OfflineBody() Body {
	return Body{Kind: BodyOffline, Message: OfflineMessage}
}

// ProcessText joins the process labels, or returns "-" when the GPU is idle.
func (r GPURow) ProcessText() string {
	if len(r.Processes) == 0 {
		return "-"
	}
	labels := make([]string, len(r.Processes))
	for i, p := range r.Processes {
		labels[i] = p.Label
	}
	return strings.Join(labels, " ")
}
