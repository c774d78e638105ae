package sshutil

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/rileyhilliard/nodeboard/internal/errors"
)

// Exec runs cmd on the remote host. A non-zero exit is reported through
// exitCode with a nil error; exitCode is -1 when the command never ran.
// Cancelling ctx closes the session.
func (c *Client) Exec(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error) {
	session, err := c.Client.NewSession()
	if err != nil {
		return nil, nil, -1, errors.WrapWithCode(err, errors.ErrSource,
			"Failed to create SSH session",
			"Connection may have been closed. It will be reopened on the next read.")
	}
	defer session.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	session.Stdout = &stdoutBuf
	session.Stderr = &stderrBuf

	done := make(chan error, 1)
	go func() { done <- session.Run(cmd) }()

	select {
	case <-ctx.Done():
		_ = session.Close()
		return nil, nil, -1, errors.WrapWithCode(ctx.Err(), errors.ErrSource,
			fmt.Sprintf("Command on '%s' didn't finish in time", c.Host),
			"Raise the timeout setting if the host is slow to respond.")
	case err = <-done:
	}

	if err != nil {
		var exitErr *ssh.ExitError
		if !stderrors.As(err, &exitErr) {
			return nil, nil, -1, errors.WrapWithCode(err, errors.ErrSource,
				fmt.Sprintf("Failed to execute command: %s", cmd),
				"Check that the remote shell is usable: ssh <host> true")
		}
		return stdoutBuf.Bytes(), stderrBuf.Bytes(), exitErr.ExitStatus(), nil
	}

	return stdoutBuf.Bytes(), stderrBuf.Bytes(), 0, nil
}

// ReadFile returns the contents of a remote file using cat.
func ReadFile(ctx context.Context, c SSHClient, path string) ([]byte, error) {
	stdout, stderr, code, err := c.Exec(ctx, "cat -- "+ShellQuote(path))
	if err != nil {
		return nil, err
	}
	if code != 0 {
		return nil, errors.New(errors.ErrSource,
			fmt.Sprintf("Couldn't read %s on '%s'", path, c.GetHost()),
			strings.TrimSpace(string(stderr)))
	}
	return stdout, nil
}

// ShellQuote wraps s in single quotes for a POSIX shell.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
