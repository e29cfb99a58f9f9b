// Package testing provides a scripted SSH client for tests.
package testing

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Result is one canned response for a command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

// MockClient satisfies sshutil.SSHClient with scripted responses. Commands
// are matched by prefix, longest match wins, so a script can answer both
// "sha256sum" generally and one specific invocation precisely.
type MockClient struct {
	Host string

	mu      sync.Mutex
	scripts map[string]Result
	funcs   map[string]func(cmd string) Result
	calls   []string

	// Stdin captures the content piped into ExecInput calls, keyed by
	// the matched command.
	Stdin map[string]string
}

func NewMockClient(host string) *MockClient {
	return &MockClient{
		Host:    host,
		scripts: map[string]Result{},
		funcs:   map[string]func(cmd string) Result{},
		Stdin:   map[string]string{},
	}
}

// On registers a canned result for commands starting with prefix.
func (m *MockClient) On(prefix string, result Result) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[prefix] = result
	return m
}

// OnFunc registers a handler for commands starting with prefix, for
// responses that depend on call history.
func (m *MockClient) OnFunc(prefix string, fn func(cmd string) Result) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funcs[prefix] = fn
	return m
}

// Calls returns every command executed, in order.
func (m *MockClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockClient) lookup(cmd string) (Result, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, cmd)

	bestLen := -1
	var best Result
	var bestPrefix string
	var bestFn func(string) Result
	for prefix, result := range m.scripts {
		if strings.HasPrefix(cmd, prefix) && len(prefix) > bestLen {
			bestLen = len(prefix)
			best = result
			bestFn = nil
			bestPrefix = prefix
		}
	}
	for prefix, fn := range m.funcs {
		if strings.HasPrefix(cmd, prefix) && len(prefix) > bestLen {
			bestLen = len(prefix)
			bestFn = fn
			bestPrefix = prefix
		}
	}
	if bestLen < 0 {
		return Result{Stderr: fmt.Sprintf("sh: %s: command not scripted", cmd), ExitCode: 127}, ""
	}
	if bestFn != nil {
		return bestFn(cmd), bestPrefix
	}
	return best, bestPrefix
}

func (m *MockClient) Exec(cmd string) ([]byte, []byte, int, error) {
	r, _ := m.lookup(cmd)
	if r.Err != nil {
		return nil, nil, -1, r.Err
	}
	return []byte(r.Stdout), []byte(r.Stderr), r.ExitCode, nil
}

func (m *MockClient) ExecStream(cmd string, stdout, stderr io.Writer) (int, error) {
	r, _ := m.lookup(cmd)
	if r.Err != nil {
		return -1, r.Err
	}
	io.WriteString(stdout, r.Stdout)
	io.WriteString(stderr, r.Stderr)
	return r.ExitCode, nil
}

func (m *MockClient) ExecInput(cmd string, stdin io.Reader, stderr io.Writer) (int, error) {
	r, prefix := m.lookup(cmd)
	if r.Err != nil {
		return -1, r.Err
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return -1, err
	}
	m.mu.Lock()
	m.Stdin[prefix] = string(data)
	m.mu.Unlock()
	io.WriteString(stderr, r.Stderr)
	return r.ExitCode, nil
}

func (m *MockClient) ExecOutput(cmd string, stdout, stderr io.Writer) (int, error) {
	return m.ExecStream(cmd, stdout, stderr)
}

func (m *MockClient) Close() error       { return nil }
func (m *MockClient) GetHost() string    { return m.Host }
func (m *MockClient) GetAddress() string { return m.Host + ":22" }
