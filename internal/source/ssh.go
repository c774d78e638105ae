package source

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"path"

	"github.com/rileyhilliard/nodeboard/internal/errors"
	"github.com/rileyhilliard/nodeboard/pkg/sshutil"
)

// SSH reads documents from a directory on a remote host. The connection
// is pooled and reused across ticks.
type SSH struct {
	uri  string
	host string
	dir  string
	pool *Pool
}

// NewSSH parses ssh://[user@]host[:port]/abs/dir.
func NewSSH(uri string, opts Options) (*SSH, error) {
	host, dir, err := ParseSSH(uri)
	if err != nil {
		return nil, err
	}
	return &SSH{
		uri:  uri,
		host: host,
		dir:  dir,
		pool: NewPool(opts.DialTimeout, opts.Dial),
	}, nil
}

// SSHURI builds an ssh:// source for host, which may be an ssh_config alias,
// and a remote directory.
func SSHURI(host, dir string) string {
	return "ssh://" + host + path.Join("/", dir)
}

// ParseSSH splits an ssh:// source into its destination ([user@]host[:port])
// and remote directory.
func ParseSSH(uri string) (host, dir string, err error) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "ssh" || u.Host == "" {
		return "", "", errors.WrapWithCode(err, errors.ErrSource,
			fmt.Sprintf("Invalid SSH source %q", uri),
			"Use ssh://[user@]host[:port]/absolute/dir")
	}
	if u.Path == "" || u.Path == "/" {
		return "", "", errors.New(errors.ErrSource,
			fmt.Sprintf("SSH source %q has no directory", uri),
			"Add the remote directory, e.g. ssh://gpu-head/srv/nodeboard")
	}

	host = u.Host
	if u.User != nil && u.User.Username() != "" {
		host = u.User.Username() + "@" + host
	}
	return host, path.Clean(u.Path), nil
}

// Read implements Source.
func (s *SSH) Read(ctx context.Context, name string) ([]byte, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}

	client, err := s.pool.Get(ctx, s.host)
	if err != nil {
		return nil, err
	}

	body, err := sshutil.ReadFile(ctx, client, path.Join(s.dir, name))
	if err != nil {
		// A transport failure (as opposed to a missing file) likely means
		// the connection is gone; redial on the next read.
		var nbErr *errors.Error
		if !stderrors.As(err, &nbErr) || nbErr.Cause != nil {
			s.pool.CloseOne(s.host)
		}
		return nil, err
	}
	return body, nil
}

// Host returns the SSH destination, including the user when given.
func (s *SSH) Host() string {
	return s.host
}

// Dir returns the remote directory.
func (s *SSH) Dir() string {
	return s.dir
}

// String returns the source URI.
func (s *SSH) String() string {
	return s.uri
}

// Close closes the pooled connection.
func (s *SSH) Close() error {
	s.pool.Close()
	return nil
}
