package sshutil

import "context"

// SSHClient is the part of an SSH connection the rest of the module uses.
// Both *Client and the mock in pkg/sshutil/testing satisfy it.
type SSHClient interface {
	// Exec runs a command and returns stdout, stderr, and exit code.
	// Exit code is -1 if the command couldn't be executed at all.
	Exec(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error)

	// Alive reports whether the connection can still carry requests.
	Alive() bool

	// GetHost returns the original host/alias used to connect.
	GetHost() string

	Close() error
}

var _ SSHClient = (*Client)(nil)
