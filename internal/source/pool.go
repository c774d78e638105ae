package source

import (
	"context"
	"sync"
	"time"

	"github.com/rileyhilliard/nodeboard/pkg/sshutil"
)

// Pool keeps SSH connections open between refresh cycles so each tick
// doesn't pay for a new handshake.
type Pool struct {
	mu          sync.Mutex
	connections map[string]*poolEntry
	timeout     time.Duration
	dial        DialFunc
}

type poolEntry struct {
	client   sshutil.SSHClient
	lastUsed time.Time
}

// NewPool creates a pool that dials with the given timeout.
func NewPool(timeout time.Duration, dial DialFunc) *Pool {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	if dial == nil {
		dial = func(ctx context.Context, host string, timeout time.Duration) (sshutil.SSHClient, error) {
			c, err := sshutil.Dial(ctx, host, timeout)
			if err != nil {
				return nil, err
			}
			return c, nil
		}
	}
	return &Pool{
		connections: make(map[string]*poolEntry),
		timeout:     timeout,
		dial:        dial,
	}
}

// Get returns the open connection for host, replacing it if it went stale.
func (p *Pool) Get(ctx context.Context, host string) (sshutil.SSHClient, error) {
	p.mu.Lock()
	entry, exists := p.connections[host]
	p.mu.Unlock()

	if exists && entry.client != nil {
		if entry.client.Alive() {
			p.mu.Lock()
			entry.lastUsed = time.Now()
			p.mu.Unlock()
			return entry.client, nil
		}
		p.CloseOne(host)
	}

	client, err := p.dial(ctx, host, p.timeout)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// Another fetch may have dialed the same host concurrently; keep the first.
	if existing, ok := p.connections[host]; ok && existing.client != nil {
		_ = client.Close()
		existing.lastUsed = time.Now()
		return existing.client, nil
	}
	p.connections[host] = &poolEntry{client: client, lastUsed: time.Now()}
	return client, nil
}

// CloseOne closes and removes the connection for host.
func (p *Pool) CloseOne(host string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if entry, ok := p.connections[host]; ok {
		if entry.client != nil {
			_ = entry.client.Close()
		}
		delete(p.connections, host)
	}
}

// Close closes every pooled connection.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for host, entry := range p.connections {
		if entry.client != nil {
			_ = entry.client.Close()
		}
		delete(p.connections, host)
	}
}

// Size returns the number of open connections.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.connections)
}
