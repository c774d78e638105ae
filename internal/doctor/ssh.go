package doctor

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"github.com/rileyhilliard/nodeboard/pkg/sshutil"
)

// Resolver maps an SSH destination to the endpoint and keys a dial would use.
type Resolver func(host string) sshutil.Endpoint

func resolve(r Resolver, host string) sshutil.Endpoint {
	if r == nil {
		r = sshutil.Resolve
	}
	return r(host)
}

// NewSSHChecks returns the checks for reading documents from host over ssh://.
func NewSSHChecks(host string) []Check {
	return []Check{
		&SSHKeyCheck{Host: host},
		&SSHAgentCheck{},
		&SSHKeyPermissionsCheck{Host: host},
	}
}

// SSHKeyCheck verifies the source host has a private key to offer: the
// IdentityFile from ssh_config when one is set, otherwise a default key.
type SSHKeyCheck struct {
	Host    string
	Resolve Resolver
}

func (c *SSHKeyCheck) Name() string     { return "ssh_key" }
func (c *SSHKeyCheck) Category() string { return "SSH" }

func (c *SSHKeyCheck) Run(ctx context.Context) CheckResult {
	e := resolve(c.Resolve, c.Host)

	if e.IdentityFile != "" {
		if _, err := os.Stat(e.IdentityFile); err != nil {
			return CheckResult{
				Name:       c.Name(),
				Status:     StatusFail,
				Message:    fmt.Sprintf("IdentityFile %s for %s does not exist", tildify(e.IdentityFile), c.Host),
				Suggestion: fmt.Sprintf("Fix the IdentityFile entry for Host %s in ~/.ssh/config", c.Host),
			}
		}
	}

	var found, locked []string
	for _, k := range e.Keys {
		data, err := os.ReadFile(k)
		if err != nil {
			continue
		}
		found = append(found, tildify(k))
		var missing *ssh.PassphraseMissingError
		if _, err := ssh.ParseRawPrivateKey(data); stderrors.As(err, &missing) {
			locked = append(locked, k)
		}
	}

	switch {
	case len(found) == 0 && os.Getenv("SSH_AUTH_SOCK") != "":
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    fmt.Sprintf("No key file for %s, relying on the SSH agent", e),
			Suggestion: "Make sure the agent holds the key authorized on " + e.HostName,
		}
	case len(found) == 0:
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("No SSH key for %s", e),
			Suggestion: fmt.Sprintf("Create one and authorize it:\n  ssh-keygen -t ed25519\n  ssh-copy-id %s@%s", e.User, e.HostName),
		}
	case len(locked) == len(found):
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    fmt.Sprintf("Keys for %s need a passphrase: %s", e, strings.Join(found, ", ")),
			Suggestion: "Load them into the agent: ssh-add " + locked[0],
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("%s will offer %s", e, strings.Join(found, ", ")),
	}
}

func (c *SSHKeyCheck) Fix() error { return nil }

// SSHAgentCheck reports the keys held by the SSH agent. An agent is
// optional when key files are usable, so its absence only warns.
type SSHAgentCheck struct {
	// Socket overrides SSH_AUTH_SOCK.
	Socket string
}

func (c *SSHAgentCheck) Name() string     { return "ssh_agent" }
func (c *SSHAgentCheck) Category() string { return "SSH" }

func (c *SSHAgentCheck) Run(ctx context.Context) CheckResult {
	socket := c.Socket
	if socket == "" {
		socket = os.Getenv("SSH_AUTH_SOCK")
	}
	if socket == "" {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "No SSH agent, only key files will be offered",
			Suggestion: "Start one with: eval $(ssh-agent) && ssh-add",
		}
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socket)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    "SSH agent socket not accessible: " + socket,
			Suggestion: "Restart the agent: eval $(ssh-agent) && ssh-add",
		}
	}
	defer conn.Close() //nolint:errcheck

	keys, err := agent.NewClient(conn).List()
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    "Cannot query SSH agent: " + err.Error(),
			Suggestion: "Check the agent with: ssh-add -l",
		}
	}
	if len(keys) == 0 {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "SSH agent running but holds no keys",
			Suggestion: "Add a key with: ssh-add",
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("SSH agent holds %d key%s", len(keys), pluralize(len(keys))),
	}
}

// Fix is a no-op: ssh-add may prompt for a passphrase.
func (c *SSHAgentCheck) Fix() error { return nil }

// SSHKeyPermissionsCheck verifies the keys offered to the source host are
// private to the user; ssh refuses keys readable by group or others.
type SSHKeyPermissionsCheck struct {
	Host    string
	Resolve Resolver
}

func (c *SSHKeyPermissionsCheck) Name() string     { return "ssh_key_permissions" }
func (c *SSHKeyPermissionsCheck) Category() string { return "SSH" }

// loose returns the existing key files with group or other permission bits.
func (c *SSHKeyPermissionsCheck) loose() (bad []string, found int) {
	for _, k := range resolve(c.Resolve, c.Host).Keys {
		info, err := os.Stat(k)
		if err != nil {
			continue
		}
		found++
		if info.Mode().Perm()&0o077 != 0 {
			bad = append(bad, k)
		}
	}
	return bad, found
}

func (c *SSHKeyPermissionsCheck) Run(ctx context.Context) CheckResult {
	bad, found := c.loose()
	switch {
	case found == 0:
		return CheckResult{Name: c.Name(), Status: StatusPass, Message: "No key files to check"}
	case len(bad) > 0:
		shown := make([]string, len(bad))
		for i, k := range bad {
			shown[i] = tildify(k)
		}
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "Key readable by others: " + strings.Join(shown, ", "),
			Suggestion: "Fix: chmod 600 " + strings.Join(shown, " "),
			Fixable:    true,
		}
	}
	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("%d key file%s private to you", found, pluralize(found)),
	}
}

func (c *SSHKeyPermissionsCheck) Fix() error {
	bad, _ := c.loose()
	for _, k := range bad {
		if err := os.Chmod(k, 0o600); err != nil {
			return fmt.Errorf("failed to fix permissions on %s: %w", k, err)
		}
	}
	return nil
}

// tildify shortens paths under the home directory to ~/...
func tildify(p string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return p
	}
	if rel, err := filepath.Rel(home, p); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.Join("~", rel)
	}
	return p
}
