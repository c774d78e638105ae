// Package testing provides an in-memory SSH client for tests.
package testing

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"

	"github.com/rileyhilliard/nodeboard/pkg/sshutil"
)

// CommandResponse is a canned response for a command pattern.
type CommandResponse struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Error    error
}

// MockClient simulates a remote host holding a set of files. It answers
// `cat -- '<path>'` from those files and anything else from canned responses.
type MockClient struct {
	mu       sync.Mutex
	host     string
	files    map[string][]byte
	commands map[string]CommandResponse
	closed   bool
	execs    int
}

var _ sshutil.SSHClient = (*MockClient)(nil)

// NewMockClient creates a mock client with no files.
func NewMockClient(host string) *MockClient {
	return &MockClient{
		host:     host,
		files:    make(map[string][]byte),
		commands: make(map[string]CommandResponse),
	}
}

// WithFiles adds files to the mock remote and returns the client.
func (m *MockClient) WithFiles(files map[string]string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	for path, content := range files {
		m.files[path] = []byte(content)
	}
	return m
}

// SetFile replaces a single file.
func (m *MockClient) SetFile(path, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = []byte(content)
}

// SetCommandResponse registers a response for an exact command or regex pattern.
func (m *MockClient) SetCommandResponse(pattern string, resp CommandResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands[pattern] = resp
}

// Exec implements sshutil.SSHClient.
func (m *MockClient) Exec(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, -1, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, nil, -1, errors.New("connection closed")
	}
	m.execs++

	if resp, ok := m.commands[cmd]; ok {
		return resp.Stdout, resp.Stderr, resp.ExitCode, resp.Error
	}
	for pattern, resp := range m.commands {
		if matched, _ := regexp.MatchString(pattern, cmd); matched {
			return resp.Stdout, resp.Stderr, resp.ExitCode, resp.Error
		}
	}

	if rest, ok := strings.CutPrefix(cmd, "cat -- "); ok {
		path := unquote(rest)
		content, found := m.files[path]
		if !found {
			return nil, []byte("cat: " + path + ": No such file or directory"), 1, nil
		}
		return content, nil, 0, nil
	}

	return nil, []byte("sh: command not found"), 127, nil
}

// Alive reports whether Close has not been called.
func (m *MockClient) Alive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

// GetHost returns the host name.
func (m *MockClient) GetHost() string {
	return m.host
}

// Close marks the connection as closed.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockClient) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// ExecCount returns how many commands were run.
func (m *MockClient) ExecCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.execs
}

// unquote reverses sshutil.ShellQuote.
func unquote(arg string) string {
	arg = strings.TrimSpace(arg)
	if len(arg) >= 2 && arg[0] == '\'' && arg[len(arg)-1] == '\'' {
		return strings.ReplaceAll(arg[1:len(arg)-1], `'\''`, "'")
	}
	return arg
}
