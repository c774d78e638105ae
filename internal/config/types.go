package config

import "time"

// Status is a node's administrative state.
type Status string

const (
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
)

// Default values for the global document.
const (
	DefaultRefreshInterval = 30
	MinRefreshInterval     = 1
	DefaultUsageTopN       = 6
	DefaultTitle           = "GPU Nodes"
)

// Node describes one monitored machine. Loaded once, never changed.
type Node struct {
	Name   string `json:"name" validate:"required,nodename"`
	Order  int    `json:"order"`
	Status Status `json:"status" validate:"oneof=active disabled"`
	Notice string `json:"notice,omitempty"`
}

// Disabled reports whether the node is administratively excluded from polling.
func (n Node) Disabled() bool {
	return n.Status == StatusDisabled
}

// Global holds the page-wide settings from config/global.json.
type Global struct {
	Title           string            `json:"title"`
	Announcement    string            `json:"announcement,omitempty"`
	RefreshInterval int               `json:"refresh_interval_seconds" validate:"gte=1"`
	GPUNameMap      map[string]string `json:"gpu_name_map,omitempty"`
	UsageTopN       int               `json:"usage_top_n" validate:"gte=1"`
}

// Interval returns the polling period.
func (g Global) Interval() time.Duration {
	return time.Duration(g.RefreshInterval) * time.Second
}

// Dashboard is the validated, immutable pair of configuration documents.
type Dashboard struct {
	Global Global
	// Nodes in document order. Use panel.BuildLayout for display order.
	Nodes []Node
}

// Node returns the node with the given name.
func (d *Dashboard) Node(name string) (Node, bool) {
	for _, n := range d.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return Node{}, false
}

// Active returns the nodes that are polled each tick, in document order.
func (d *Dashboard) Active() []Node {
	var active []Node
	for _, n := range d.Nodes {
		if !n.Disabled() {
			active = append(active, n)
		}
	}
	return active
}
