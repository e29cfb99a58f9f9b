// Package credential stages decrypted SSH key material on disk for the
// lifetime of a single operation. Files are owner-only, live under a private
// staging directory, and are removed on release, on process exit, and on
// SIGINT/SIGTERM.
package credential

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/rediacc/desktop/internal/errors"
	"github.com/rediacc/desktop/internal/logger"
	"github.com/rediacc/desktop/internal/vault"
)

// Staged is a set of credential files materialized for one target. Release
// is idempotent and safe to defer alongside signal cleanup.
type Staged struct {
	KeyPath        string
	KnownHostsPath string

	dir      string
	released bool
	mu       sync.Mutex
}

// Release removes the staged files. Errors removing an already-gone
// directory are ignored. A nil receiver is a no-op so callers that staged
// nothing can still defer the release.
func (s *Staged) Release() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	s.released = true
	if s.dir != "" {
		os.RemoveAll(s.dir)
	}
	unregister(s)
}

// Manager materializes vault key material into temporary files.
type Manager struct {
	log logger.Logger
}

func NewManager(log logger.Logger) *Manager {
	if log == nil {
		log = logger.Default()
	}
	return &Manager{log: log}
}

// Stage writes the secret's private key, and a host key entry when one is
// available, into a fresh 0700 directory as 0600 files. hostEntry overrides
// the secret's own host_entry field; machine vaults carry the pin while the
// team vault carries the key. The caller owns the returned handle and must
// Release it.
func (m *Manager) Stage(secret *vault.Secret, hostEntry string) (*Staged, error) {
	if secret == nil || !secret.HasKeyMaterial() {
		name := "<unknown>"
		kind := "team"
		if secret != nil {
			name = secret.OwnerName
			kind = string(secret.OwnerKind)
		}
		return nil, errors.New(errors.ErrVault,
			fmt.Sprintf("no SSH key material in the %s vault for %q", kind, name),
			"Add an SSH_PRIVATE_KEY field to the vault in the Rediacc console")
	}

	pem, err := secret.PrivateKeyPEM()
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "rediacc-cred-")
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrStaging,
			"could not create a private staging directory",
			"Check that the system temp directory is writable")
	}
	if err := os.Chmod(dir, 0o700); err != nil {
		os.RemoveAll(dir)
		return nil, errors.WrapWithCode(err, errors.ErrStaging,
			"could not restrict the staging directory", "")
	}

	staged := &Staged{dir: dir}
	cleanup := func(err error, what string) (*Staged, error) {
		os.RemoveAll(dir)
		return nil, errors.WrapWithCode(err, errors.ErrStaging,
			"could not stage "+what, "Check that the system temp directory is writable")
	}

	staged.KeyPath = filepath.Join(dir, "id_key")
	if err := writePrivate(staged.KeyPath, []byte(pem)); err != nil {
		return cleanup(err, "the SSH private key")
	}

	entry := hostEntry
	if entry == "" {
		entry = secret.HostEntry()
	}
	if entry != "" {
		staged.KnownHostsPath = filepath.Join(dir, "known_hosts")
		if err := writePrivate(staged.KnownHostsPath, []byte(entry+"\n")); err != nil {
			return cleanup(err, "the known_hosts entry")
		}
	}

	register(staged)
	m.log.Debug("staged credentials for %s %q in %s", secret.OwnerKind, secret.OwnerName, dir)
	return staged, nil
}

// writePrivate creates path with 0600 before any content is written, so the
// key is never readable by other users even mid-write.
func writePrivate(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

var (
	registryMu sync.Mutex
	registry   = map[*Staged]struct{}{}
	signalOnce sync.Once
)

func register(s *Staged) {
	registryMu.Lock()
	registry[s] = struct{}{}
	registryMu.Unlock()

	signalOnce.Do(func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		go func() {
			sig := <-ch
			ReleaseAll()
			signal.Stop(ch)
			// Re-raise so the process still dies with the right status.
			if p, err := os.FindProcess(os.Getpid()); err == nil {
				p.Signal(sig)
			}
		}()
	})
}

func unregister(s *Staged) {
	registryMu.Lock()
	delete(registry, s)
	registryMu.Unlock()
}

// ReleaseAll removes every staged credential still on disk. Called from the
// signal handler and again as a last-resort defer in main.
func ReleaseAll() {
	registryMu.Lock()
	live := make([]*Staged, 0, len(registry))
	for s := range registry {
		live = append(live, s)
	}
	registryMu.Unlock()

	for _, s := range live {
		s.Release()
	}
}
