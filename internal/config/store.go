package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rediacc/desktop/internal/errors"
)

const (
	// ConfigDirName is the per-user directory under ~/.config.
	ConfigDirName = "rediacc"
	// ConfigFileName is the persisted configuration file name.
	ConfigFileName = "config.json"
)

// Dir returns the configuration directory, honoring the REDIACC_CONFIG_DIR
// override used by tests and sandboxed installs.
func Dir() string {
	if dir := os.Getenv("REDIACC_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	return filepath.Join(home, ".config", ConfigDirName)
}

// Path returns the full path of the persisted configuration file.
func Path() string {
	return filepath.Join(Dir(), ConfigFileName)
}

// Store is the single serializing gateway to the on-disk configuration
// document. All reads and writes go through its mutex; nothing else in the
// process touches the file. Writes are atomic (temp file + rename) and
// fsynced before Save returns, because losing a freshly rotated token
// strands the whole session.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store for the default per-user config path.
func NewStore() *Store {
	return &Store{path: Path()}
}

// NewStoreAt creates a store for an explicit path. Used by tests.
func NewStoreAt(path string) *Store {
	return &Store{path: path}
}

// Load reads the current document. A missing file is not an error; it
// returns an empty document so first-run commands can proceed to login.
func (s *Store) Load() (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Document{}, nil
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Can't read the config file at "+s.path,
			"Check the file permissions")
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Config file at "+s.path+" is not valid JSON",
			"Fix or remove the file, then log in again")
	}
	return &doc, nil
}

// Save writes the document durably with owner-only permissions.
func (s *Store) Save(doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(doc)
}

func (s *Store) saveLocked(doc *Document) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Can't create the config directory",
			"Check permissions on "+filepath.Dir(s.path))
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Can't encode the config file", "")
	}

	// Write-to-temp + rename keeps a concurrent reader from ever seeing a
	// half-written document; the fsync makes the successor token durable
	// before the caller treats the request as complete.
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".config-*.json")
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Can't write the config file",
			"Check permissions on "+filepath.Dir(s.path))
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if err := tmp.Chmod(0o600); err != nil {
		cleanup()
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Can't restrict config file permissions", "")
	}
	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Can't write the config file", "")
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Can't flush the config file to disk", "")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Can't close the config file", "")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Can't replace the config file", "")
	}
	return nil
}

// Update applies fn to the current document and saves the result, all
// under the store lock. fn returning false skips the write.
func (s *Store) Update(fn func(doc *Document) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadLocked()
	if err != nil {
		return err
	}
	if !fn(doc) {
		return nil
	}
	return s.saveLocked(doc)
}
