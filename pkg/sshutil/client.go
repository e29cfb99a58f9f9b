// Package sshutil dials and drives SSH connections with credentials handed
// to it explicitly.
package sshutil

import (
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/rediacc/desktop/internal/errors"
)

// Client wraps an SSH connection with the target metadata it was dialed for.
type Client struct {
	*ssh.Client
	Target  Target
	Address string
}

// Dial connects to the target. Host key handling:
//   - KnownHostsPath set: pinned to that file, mismatch is fatal
//   - Insecure set: verification skipped
//   - neither: refused
func Dial(target Target, timeout time.Duration) (*Client, error) {
	config, err := buildConfig(target)
	if err != nil {
		return nil, err
	}

	address := target.address()
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Can't reach '%s' at %s", target.Host, address),
			suggestionForDialError(err))
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if err != nil {
		conn.Close()

		var hostKeyErr *HostKeyMismatchError
		if stderrors.As(err, &hostKeyErr) {
			return nil, errors.New(errors.ErrSSH, hostKeyErr.Error(), hostKeyErr.Suggestion())
		}
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("SSH handshake with '%s' didn't go through", target.Host),
			suggestionForHandshakeError(err))
	}

	return &Client{
		Client:  ssh.NewClient(sshConn, chans, reqs),
		Target:  target,
		Address: address,
	}, nil
}

// Close closes the SSH connection.
func (c *Client) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// GetHost returns the host the client was dialed for.
func (c *Client) GetHost() string {
	return c.Target.Host
}

// GetAddress returns the resolved host:port.
func (c *Client) GetAddress() string {
	return c.Address
}

func (c *Client) newSSHSession() (*ssh.Session, error) {
	return c.Client.NewSession()
}

func buildConfig(target Target) (*ssh.ClientConfig, error) {
	var authMethods []ssh.AuthMethod

	if target.KeyPath != "" {
		keyAuth, err := keyFileAuth(target.KeyPath)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrSSH,
				fmt.Sprintf("Couldn't load the SSH key for '%s'", target.Host),
				"The vault key may be corrupt. Check SSH_PRIVATE_KEY in the team vault.")
		}
		authMethods = append(authMethods, keyAuth)
	}

	if target.AllowAgent {
		if agentAuth := sshAgentAuth(); agentAuth != nil {
			authMethods = append(authMethods, agentAuth)
		}
	}

	if len(authMethods) == 0 {
		return nil, errors.New(errors.ErrSSH,
			fmt.Sprintf("No SSH auth methods available for '%s'", target.Host),
			"The team vault must provide an SSH key, or run with an agent loaded: ssh-add -l")
	}

	var hostKeyCallback ssh.HostKeyCallback
	switch {
	case target.KnownHostsPath != "":
		var err error
		hostKeyCallback, err = createHostKeyCallback(target.KnownHostsPath)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrSSH,
				"Couldn't load the pinned host key", "")
		}
	case target.Insecure:
		hostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // Development targets only
	default:
		return nil, errors.New(errors.ErrSSH,
			fmt.Sprintf("No host key pin for '%s'", target.Host),
			"Add a host_entry field to the machine vault, or use --dev for development machines.")
	}

	user := target.User
	if user == "" {
		user = currentUser()
	}

	return &ssh.ClientConfig{
		User:            user,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         10 * time.Second,
	}, nil
}

// agentConn holds the reusable SSH agent connection.
var (
	agentConn     net.Conn
	agentClient   agent.ExtendedAgent
	agentConnOnce sync.Once
)

// sshAgentAuth returns an auth method using the SSH agent if it holds keys.
func sshAgentAuth() ssh.AuthMethod {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}

	agentConnOnce.Do(func() {
		conn, err := net.Dial("unix", socket)
		if err != nil {
			return
		}
		agentConn = conn
		agentClient = agent.NewClient(conn)
	})

	if agentClient == nil {
		return nil
	}
	signers, err := agentClient.Signers()
	if err != nil || len(signers) == 0 {
		return nil
	}
	return ssh.PublicKeysCallback(agentClient.Signers)
}

// CloseAgent closes the SSH agent connection if one is open.
func CloseAgent() {
	if agentConn != nil {
		agentConn.Close()
	}
}

func keyFileAuth(keyPath string) (ssh.AuthMethod, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, err
	}
	return ssh.PublicKeys(signer), nil
}

func suggestionForDialError(err error) string {
	errStr := err.Error()
	if strings.Contains(errStr, "connection refused") {
		return "Is SSH running on that machine? Check the port in the machine vault."
	}
	if strings.Contains(errStr, "no route to host") || strings.Contains(errStr, "network is unreachable") {
		return "Can't route to the machine. Check your network connection."
	}
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "i/o timeout") {
		return "Connection timed out. The machine might be offline or behind a firewall."
	}
	return "Check the ip and port fields in the machine vault."
}

func suggestionForHandshakeError(err error) string {
	errStr := err.Error()
	if strings.Contains(errStr, "unable to authenticate") || strings.Contains(errStr, "no supported methods") {
		return "The machine rejected the vault's SSH key. Check SSH_PRIVATE_KEY in the team vault and the user field in the machine vault."
	}
	if strings.Contains(errStr, "host key") {
		return "Host key issue. Check the host_entry field in the machine vault."
	}
	return "Something went wrong during SSH setup."
}

// HostKeyMismatchError provides context when pinned host key verification fails.
type HostKeyMismatchError struct {
	Hostname     string
	ReceivedType string
	KnownHosts   string
	Want         []knownhosts.KnownKey
}

func (e *HostKeyMismatchError) Error() string {
	return fmt.Sprintf("host key mismatch for %s: server sent %s key", e.Hostname, e.ReceivedType)
}

// Suggestion returns actionable steps to fix the host key mismatch.
func (e *HostKeyMismatchError) Suggestion() string {
	host := e.Hostname
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	var wantTypes []string
	for _, k := range e.Want {
		wantTypes = append(wantTypes, k.Key.Type())
	}
	wantStr := "unknown"
	if len(wantTypes) > 0 {
		wantStr = strings.Join(wantTypes, ", ")
	}

	return fmt.Sprintf(
		"The machine's host key doesn't match the vault's host_entry.\n"+
			"  Pinned types: %s\n"+
			"  Server sent: %s\n\n"+
			"  If the machine was legitimately reinstalled, refresh the pin:\n"+
			"    ssh-keyscan -t rsa,ecdsa,ed25519 %s\n"+
			"  and update host_entry in the Rediacc console.",
		wantStr, e.ReceivedType, host)
}

// createHostKeyCallback wraps the knownhosts callback to surface mismatches
// as HostKeyMismatchError.
func createHostKeyCallback(knownHostsPath string) (ssh.HostKeyCallback, error) {
	callback, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, err
	}
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := callback(hostname, remote, key)
		if err != nil {
			var keyErr *knownhosts.KeyError
			if stderrors.As(err, &keyErr) && len(keyErr.Want) > 0 {
				return &HostKeyMismatchError{
					Hostname:     hostname,
					ReceivedType: key.Type(),
					KnownHosts:   knownHostsPath,
					Want:         keyErr.Want,
				}
			}
		}
		return err
	}, nil
}
