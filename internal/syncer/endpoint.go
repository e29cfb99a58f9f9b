package syncer

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rediacc/desktop/internal/errors"
)

// Endpoint abstracts one side of a sync: the local filesystem or a remote
// tree reached over SSH. Paths are slash-separated and relative to the
// endpoint's root.
type Endpoint interface {
	// List enumerates the tree. Excluded entries are filtered out before
	// the diff ever sees them.
	List(excl *ExclusionSet) ([]Entry, error)

	// Open reads one file.
	Open(relPath string) (io.ReadCloser, error)

	// Write creates or replaces one file and sets its mtime.
	Write(relPath string, content io.Reader, mtime time.Time) error

	// Mkdir creates a directory, parents included.
	Mkdir(relPath string) error

	// Remove deletes a file or empty directory.
	Remove(relPath string, kind EntryKind) error

	// Checksum returns the hex SHA-256 of one file.
	Checksum(relPath string) (string, error)

	// Root describes the endpoint for reports and errors.
	Root() string
}

// LocalEndpoint serves a directory on the local filesystem.
type LocalEndpoint struct {
	root string
}

func NewLocalEndpoint(root string) *LocalEndpoint {
	return &LocalEndpoint{root: root}
}

func (l *LocalEndpoint) Root() string { return l.root }

func (l *LocalEndpoint) abs(relPath string) string {
	return filepath.Join(l.root, filepath.FromSlash(relPath))
}

func (l *LocalEndpoint) List(excl *ExclusionSet) ([]Entry, error) {
	var entries []Entry
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == l.root {
			return nil
		}
		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if excl.Match(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		entry := Entry{RelPath: rel, Size: info.Size(), Mtime: info.ModTime()}
		switch {
		case d.IsDir():
			entry.Kind = KindDir
			entry.Size = -1
		case info.Mode()&fs.ModeSymlink != 0:
			entry.Kind = KindSymlink
		default:
			entry.Kind = KindFile
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSync,
			"could not scan the local directory "+l.root,
			"Check that the --local path exists and is readable")
	}
	sortEntries(entries)
	return entries, nil
}

func (l *LocalEndpoint) Open(relPath string) (io.ReadCloser, error) {
	return os.Open(l.abs(relPath))
}

func (l *LocalEndpoint) Write(relPath string, content io.Reader, mtime time.Time) error {
	path := l.abs(relPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, content); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if !mtime.IsZero() {
		return os.Chtimes(path, mtime, mtime)
	}
	return nil
}

func (l *LocalEndpoint) Mkdir(relPath string) error {
	return os.MkdirAll(l.abs(relPath), 0o755)
}

func (l *LocalEndpoint) Remove(relPath string, kind EntryKind) error {
	return os.Remove(l.abs(relPath))
}

func (l *LocalEndpoint) Checksum(relPath string) (string, error) {
	f, err := os.Open(l.abs(relPath))
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// sortEntries orders parents before children, which is also the order the
// executor creates directories in.
func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].RelPath < entries[j].RelPath
	})
}

// depth counts path segments, used to delete children before parents.
func depth(relPath string) int {
	return strings.Count(relPath, "/")
}
