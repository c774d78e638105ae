package panel

import (
	"sync"
	"time"

	"github.com/rileyhilliard/nodeboard/internal/config"
)

// Panel is a copy of one node's display state.
type Panel struct {
	Node string `json:"node"`
	// Status is the node's configured state and drives the status indicator.
	Status config.Status `json:"status"`
	// Label is "Disabled", "Waiting..." or the latest snapshot timestamp.
	Label string `json:"label"`
	// Notice is shown in a notice box above the body of active nodes.
	Notice  string    `json:"notice,omitempty"`
	Body    Body      `json:"body"`
	Version uint64    `json:"version"`
	Updated time.Time `json:"updated"`
}

// Header is the page-level state shown above the panels.
type Header struct {
	Title          string `json:"title"`
	Announcement   string `json:"announcement,omitempty"`
	RefreshSeconds int    `json:"refresh_seconds"`
}

// Store is the addressable render target: panels keyed by node name, in
// display order. It is safe for concurrent use. Each write bumps a version
// and wakes subscribers.
type Store struct {
	mu          sync.RWMutex
	header      Header
	order       []string
	panels      map[string]*Panel
	lastUpdated time.Time
	version     uint64

	subMu  sync.Mutex
	subs   map[int]chan struct{}
	nextID int
}

func newStore() *Store {
	return &Store{
		panels: make(map[string]*Panel),
		subs:   make(map[int]chan struct{}),
	}
}

// SetHeader replaces the page header.
func (s *Store) SetHeader(h Header) {
	s.mu.Lock()
	s.header = h
	s.version++
	s.mu.Unlock()
	s.notify()
}

// Header returns the page header.
func (s *Store) Header() Header {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.header
}

// SetBody replaces a node's body. It returns false for unknown nodes and
// for disabled nodes, whose body never changes after layout.
func (s *Store) SetBody(node string, body Body) bool {
	return s.update(node, func(p *Panel) {
		p.Body = body
	})
}

// SetStatus replaces a node's status label.
func (s *Store) SetStatus(node, label string) bool {
	return s.update(node, func(p *Panel) {
		p.Label = label
	})
}

// Set replaces a node's status label and body in one step.
func (s *Store) Set(node, label string, body Body) bool {
	return s.update(node, func(p *Panel) {
		p.Label = label
		p.Body = body
	})
}

func (s *Store) update(node string, fn func(*Panel)) bool {
	s.mu.Lock()
	p, ok := s.panels[node]
	if !ok || p.Status == config.StatusDisabled {
		s.mu.Unlock()
		return false
	}
	fn(p)
	s.version++
	p.Version = s.version
	p.Updated = time.Now()
	s.mu.Unlock()

	s.notify()
	return true
}

// SetLastUpdated records when the most recent poll cycle started.
func (s *Store) SetLastUpdated(t time.Time) {
	s.mu.Lock()
	s.lastUpdated = t
	s.version++
	s.mu.Unlock()
	s.notify()
}

// LastUpdated returns the start time of the most recent poll cycle.
func (s *Store) LastUpdated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdated
}

// Version returns a counter that increases with every change.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Panel returns a copy of one node's panel.
func (s *Store) Panel(node string) (Panel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.panels[node]
	if !ok {
		return Panel{}, false
	}
	return *p, true
}

// Panels returns copies of all panels in display order.
func (s *Store) Panels() []Panel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Panel, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, *s.panels[name])
	}
	return out
}

// Nodes returns node names in display order.
func (s *Store) Nodes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Subscribe returns a channel that receives a value after changes. Sends
// coalesce: the channel holds at most one pending notification, so a slow
// subscriber sees one wake-up for many changes and should re-read the
// store. Call cancel to unsubscribe.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
	return ch, cancel
}

func (s *Store) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
