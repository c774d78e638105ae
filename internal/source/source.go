// Package source reads dashboard documents (configuration and per-node
// snapshots) from an HTTP server, a local directory, or a host over SSH.
package source

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/rileyhilliard/nodeboard/internal/errors"
	"github.com/rileyhilliard/nodeboard/pkg/sshutil"
)

// Source reads documents by slash-separated path relative to its root.
type Source interface {
	Read(ctx context.Context, name string) ([]byte, error)
	String() string
	Close() error
}

// DialFunc opens an SSH connection. sshutil.Dial is used when nil.
type DialFunc func(ctx context.Context, host string, timeout time.Duration) (sshutil.SSHClient, error)

// Options tune the transports. The zero value is usable.
type Options struct {
	HTTPClient  *http.Client
	DialTimeout time.Duration
	Dial        DialFunc
	Now         func() time.Time
}

// MaxDocumentSize bounds how much of a single document is read.
const MaxDocumentSize = 16 << 20

// New returns the Source for uri: http(s):// URLs, ssh://[user@]host[:port]/dir,
// or a local directory for anything else.
func New(uri string, opts Options) (Source, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, errors.New(errors.ErrSource,
			"No source configured",
			"Set 'source' in .nodeboard.yaml, NODEBOARD_SOURCE, or pass --source.")
	}

	switch {
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return NewHTTP(uri, opts)
	case strings.HasPrefix(uri, "ssh://"):
		return NewSSH(uri, opts)
	default:
		return NewDir(uri)
	}
}

// checkName rejects names that would escape the source root.
func checkName(name string) error {
	if name == "" || !filepath.IsLocal(filepath.FromSlash(name)) {
		return errors.New(errors.ErrSource,
			fmt.Sprintf("Invalid document path %q", name),
			"Node names must not contain path separators or '..'.")
	}
	return nil
}
