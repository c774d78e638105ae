package panel

import (
	"cmp"
	"slices"
	"strings"

	"github.com/rileyhilliard/nodeboard/internal/config"
)

// BuildLayout creates one panel per node, sorted ascending by order with
// ties kept in document order. It runs once per session; afterwards only
// bodies and status labels change.
func BuildLayout(nodes []config.Node) *Store {
	sorted := slices.Clone(nodes)
	slices.SortStableFunc(sorted, func(a, b config.Node) int {
		return cmp.Compare(a.Order, b.Order)
	})

	s := newStore()
	for _, n := range sorted {
		if _, dup := s.panels[n.Name]; dup {
			continue
		}

		p := &Panel{Node: n.Name, Status: n.Status}
		if p.Status == "" {
			p.Status = config.StatusActive
		}

		if p.Status == config.StatusDisabled {
			p.Label = LabelDisabled
			p.Body = DisabledBody(strings.TrimSpace(n.Notice))
		} else {
			p.Label = LabelWaiting
			p.Notice = strings.TrimSpace(n.Notice)
			p.Body = ConnectingBody()
		}

		s.order = append(s.order, n.Name)
		s.panels[n.Name] = p
	}
	return s
}

// NewBoard builds the layout for a dashboard and sets the page header.
func NewBoard(d *config.Dashboard) *Store {
	s := BuildLayout(d.Nodes)
	s.header = Header{
		Title:          d.Global.Title,
		Announcement:   d.Global.Announcement,
		RefreshSeconds: d.Global.RefreshInterval,
	}
	return s
}
