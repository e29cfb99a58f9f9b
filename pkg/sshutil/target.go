package sshutil

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/kevinburke/ssh_config"
)

// Target describes one SSH endpoint with explicit credentials. Connection
// parameters come from a machine vault, never from ~/.ssh discovery, so two
// targets staged side by side cannot leak keys into each other.
type Target struct {
	Host string
	Port int
	User string

	// KeyPath points at a staged private key file. Required unless the
	// agent fallback is enabled.
	KeyPath string

	// KnownHostsPath pins the host key. Empty means no pinning, which is
	// only honored when Insecure is set.
	KnownHostsPath string

	// Insecure skips host key verification. Meant for development targets
	// behind --dev only.
	Insecure bool

	// AllowAgent adds the SSH agent as a fallback auth method.
	AllowAgent bool
}

func (t Target) address() string {
	port := t.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(t.Host, itoa(port))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var b [8]byte
	i := len(b)
	for n > 0 {
		i--
		b[i] = byte('0' + n%10)
		n /= 10
	}
	return string(b[i:])
}

// ResolveDevAlias fills in a target from a ~/.ssh/config alias. Development
// machines are often reachable only through an alias with a ProxyJump-free
// HostName/Port/User entry; production targets never take this path.
func ResolveDevAlias(alias string) Target {
	target := Target{Host: alias, User: currentUser(), Insecure: true, AllowAgent: true}

	content, err := preprocessConfig(filepath.Join(homeDir(), ".ssh", "config"))
	if err != nil {
		return target
	}
	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		return target
	}

	if hostname, _ := cfg.Get(alias, "HostName"); hostname != "" {
		target.Host = hostname
	}
	if port, _ := cfg.Get(alias, "Port"); port != "" {
		if n := atoi(port); n > 0 {
			target.Port = n
		}
	}
	if user, _ := cfg.Get(alias, "User"); user != "" {
		target.User = user
	}
	if identity, _ := cfg.Get(alias, "IdentityFile"); identity != "" {
		target.KeyPath = expandPath(identity)
	}
	return target
}

// preprocessConfig returns config content up to the first Match directive,
// which the ssh_config parser does not understand.
func preprocessConfig(path string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(string(content), "\n")
	var kept []string
	for _, line := range lines {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "match ") {
			break
		}
		kept = append(kept, line)
	}
	return []byte(strings.Join(kept, "\n")), nil
}

func atoi(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

func currentUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "root"
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}
