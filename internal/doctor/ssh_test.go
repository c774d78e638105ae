package doctor

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"github.com/rileyhilliard/nodeboard/pkg/sshutil"
)

// writeKey writes a fresh ed25519 private key to path, encrypted when
// passphrase is non-empty.
func writeKey(t *testing.T, path, passphrase string, perm os.FileMode) {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(priv, "")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte(passphrase))
	}
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), perm))
}

// sshHome points HOME at a temp dir and returns a resolver for "head" that
// offers an optional configured key followed by the default key names.
func sshHome(t *testing.T, identity string) (string, Resolver) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("SSH_AUTH_SOCK", "")

	e := sshutil.Endpoint{Host: "head", HostName: "10.0.0.2", Port: "22", User: "board"}
	if identity != "" {
		e.IdentityFile = filepath.Join(home, ".ssh", identity)
		e.Keys = append(e.Keys, e.IdentityFile)
	}
	for _, name := range []string{"id_ed25519", "id_rsa"} {
		e.Keys = append(e.Keys, filepath.Join(home, ".ssh", name))
	}
	return home, func(host string) sshutil.Endpoint {
		assert.Equal(t, "head", host)
		return e
	}
}

func TestSSHKeyCheck_DefaultKey(t *testing.T) {
	home, r := sshHome(t, "")
	writeKey(t, filepath.Join(home, ".ssh", "id_rsa"), "", 0o600)

	res := (&SSHKeyCheck{Host: "head", Resolve: r}).Run(context.Background())
	assert.Equal(t, StatusPass, res.Status)
	assert.Equal(t, "board@10.0.0.2:22 will offer ~/.ssh/id_rsa", res.Message)
}

func TestSSHKeyCheck_ConfiguredIdentity(t *testing.T) {
	home, r := sshHome(t, "board_key")
	check := &SSHKeyCheck{Host: "head", Resolve: r}

	// A default key doesn't help when ssh_config names a missing IdentityFile.
	writeKey(t, filepath.Join(home, ".ssh", "id_ed25519"), "", 0o600)
	res := check.Run(context.Background())
	assert.Equal(t, StatusFail, res.Status)
	assert.Equal(t, "IdentityFile ~/.ssh/board_key for head does not exist", res.Message)
	assert.Contains(t, res.Suggestion, "Host head")

	writeKey(t, filepath.Join(home, ".ssh", "board_key"), "", 0o600)
	res = check.Run(context.Background())
	assert.Equal(t, StatusPass, res.Status)
	assert.Equal(t, "board@10.0.0.2:22 will offer ~/.ssh/board_key, ~/.ssh/id_ed25519", res.Message)
}

func TestSSHKeyCheck_NoKeys(t *testing.T) {
	_, r := sshHome(t, "")
	check := &SSHKeyCheck{Host: "head", Resolve: r}

	res := check.Run(context.Background())
	assert.Equal(t, StatusFail, res.Status)
	assert.Equal(t, "No SSH key for board@10.0.0.2:22", res.Message)
	assert.Contains(t, res.Suggestion, "ssh-copy-id board@10.0.0.2")

	t.Setenv("SSH_AUTH_SOCK", "/run/agent.sock")
	res = check.Run(context.Background())
	assert.Equal(t, StatusWarn, res.Status, "the agent may still hold a key")
}

func TestSSHKeyCheck_PassphraseOnly(t *testing.T) {
	home, r := sshHome(t, "")
	key := filepath.Join(home, ".ssh", "id_ed25519")
	writeKey(t, key, "secret", 0o600)

	res := (&SSHKeyCheck{Host: "head", Resolve: r}).Run(context.Background())
	assert.Equal(t, StatusWarn, res.Status)
	assert.Contains(t, res.Message, "need a passphrase")
	assert.Equal(t, "Load them into the agent: ssh-add "+key, res.Suggestion)
}

// serveAgent runs an in-memory SSH agent holding n keys on a unix socket.
func serveAgent(t *testing.T, n int) string {
	t.Helper()
	keyring := agent.NewKeyring()
	for i := 0; i < n; i++ {
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)
		require.NoError(t, keyring.Add(agent.AddedKey{PrivateKey: priv}))
	}

	sock := filepath.Join(t.TempDir(), "agent.sock")
	l, err := net.Listen("unix", sock)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				_ = agent.ServeAgent(keyring, conn)
			}()
		}
	}()
	return sock
}

func TestSSHAgentCheck(t *testing.T) {
	t.Run("keys loaded", func(t *testing.T) {
		res := (&SSHAgentCheck{Socket: serveAgent(t, 2)}).Run(context.Background())
		assert.Equal(t, StatusPass, res.Status, res.Message)
		assert.Equal(t, "SSH agent holds 2 keys", res.Message)
	})

	t.Run("empty agent", func(t *testing.T) {
		res := (&SSHAgentCheck{Socket: serveAgent(t, 0)}).Run(context.Background())
		assert.Equal(t, StatusWarn, res.Status)
		assert.Equal(t, "Add a key with: ssh-add", res.Suggestion)
	})

	t.Run("no agent", func(t *testing.T) {
		t.Setenv("SSH_AUTH_SOCK", "")
		res := (&SSHAgentCheck{}).Run(context.Background())
		assert.Equal(t, StatusWarn, res.Status)
	})

	t.Run("dead socket", func(t *testing.T) {
		res := (&SSHAgentCheck{Socket: filepath.Join(t.TempDir(), "gone.sock")}).Run(context.Background())
		assert.Equal(t, StatusFail, res.Status)
	})
}

func TestSSHKeyPermissionsCheck_Fix(t *testing.T) {
	home, r := sshHome(t, "board_key")
	loose := filepath.Join(home, ".ssh", "board_key")
	writeKey(t, loose, "", 0o644)
	writeKey(t, filepath.Join(home, ".ssh", "id_rsa"), "", 0o600)

	check := &SSHKeyPermissionsCheck{Host: "head", Resolve: r}
	res := check.Run(context.Background())
	assert.Equal(t, StatusWarn, res.Status)
	assert.True(t, res.Fixable)
	assert.Equal(t, "Key readable by others: ~/.ssh/board_key", res.Message)

	require.NoError(t, check.Fix())
	info, err := os.Stat(loose)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	res = check.Run(context.Background())
	assert.Equal(t, StatusPass, res.Status)
	assert.Equal(t, "2 key files private to you", res.Message)
}

func TestSSHKeyPermissionsCheck_NoKeys(t *testing.T) {
	_, r := sshHome(t, "")
	res := (&SSHKeyPermissionsCheck{Host: "head", Resolve: r}).Run(context.Background())
	assert.Equal(t, StatusPass, res.Status)
	assert.False(t, res.Fixable)
}

func TestNewSSHChecks(t *testing.T) {
	checks := NewSSHChecks("ops@head")
	require.Len(t, checks, 3)

	var names []string
	for _, c := range checks {
		assert.Equal(t, "SSH", c.Category())
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"ssh_key", "ssh_agent", "ssh_key_permissions"}, names)
	assert.Equal(t, "ops@head", checks[0].(*SSHKeyCheck).Host)
	assert.Equal(t, "ops@head", checks[2].(*SSHKeyPermissionsCheck).Host)
}
