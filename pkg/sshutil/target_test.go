package sshutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetAddress(t *testing.T) {
	tests := []struct {
		name   string
		target Target
		want   string
	}{
		{"default port", Target{Host: "10.0.0.5"}, "10.0.0.5:22"},
		{"explicit port", Target{Host: "10.0.0.5", Port: 2222}, "10.0.0.5:2222"},
		{"ipv6", Target{Host: "fd00::5", Port: 22}, "[fd00::5]:22"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.target.address())
		})
	}
}

func TestResolveDevAlias(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	sshDir := filepath.Join(home, ".ssh")
	require.NoError(t, os.MkdirAll(sshDir, 0o700))
	config := `Host devbox
  HostName 192.168.1.50
  Port 2200
  User dev
  IdentityFile ~/.ssh/dev_key
`
	require.NoError(t, os.WriteFile(filepath.Join(sshDir, "config"), []byte(config), 0o600))

	target := ResolveDevAlias("devbox")
	assert.Equal(t, "192.168.1.50", target.Host)
	assert.Equal(t, 2200, target.Port)
	assert.Equal(t, "dev", target.User)
	assert.Equal(t, filepath.Join(home, ".ssh", "dev_key"), target.KeyPath)
	assert.True(t, target.Insecure)
	assert.True(t, target.AllowAgent)
}

func TestResolveDevAliasNoConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	target := ResolveDevAlias("somewhere")
	assert.Equal(t, "somewhere", target.Host)
	assert.Zero(t, target.Port)
}

func TestResolveDevAliasStopsAtMatch(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	sshDir := filepath.Join(home, ".ssh")
	require.NoError(t, os.MkdirAll(sshDir, 0o700))
	config := `Host early
  HostName 10.1.1.1

Match exec "true"
  User hidden

Host late
  HostName 10.2.2.2
`
	require.NoError(t, os.WriteFile(filepath.Join(sshDir, "config"), []byte(config), 0o600))

	assert.Equal(t, "10.1.1.1", ResolveDevAlias("early").Host)
	// Entries after a Match block are invisible to the parser.
	assert.Equal(t, "late", ResolveDevAlias("late").Host)
}

func TestBuildConfigRefusesUnpinnedHost(t *testing.T) {
	key := filepath.Join(t.TempDir(), "missing")
	_, err := buildConfig(Target{Host: "10.0.0.5", KeyPath: key})
	require.Error(t, err)
}

func TestSetenv(t *testing.T) {
	cmd := Setenv("run.sh", map[string]string{
		"MACHINE_NAME": "web-1",
		"TEAM_NAME":    "core's team",
	})
	assert.Equal(t, `export MACHINE_NAME='web-1'; export TEAM_NAME='core'\''s team'; run.sh`, cmd)
}

func TestSetenvEmpty(t *testing.T) {
	assert.Equal(t, "ls", Setenv("ls", nil))
}

func TestShellQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "'plain'"},
		{"", "''"},
		{"with space", "'with space'"},
		{"it's", `'it'\''s'`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, shellQuote(tt.in))
	}
}
