// Package syncer diffs a local directory tree against a remote one and
// applies the resulting plan over an SSH transport.
package syncer

import "time"

// EntryKind classifies one filesystem entity.
type EntryKind string

const (
	KindFile    EntryKind = "file"
	KindDir     EntryKind = "dir"
	KindSymlink EntryKind = "symlink"
)

// Entry is a positional record of one file, directory, or symlink, keyed by
// its slash-separated path relative to the tree root. Size is -1 when the
// listing source could not provide one. Checksum is empty until a
// verification pass asks for it.
type Entry struct {
	RelPath  string
	Kind     EntryKind
	Size     int64
	Mtime    time.Time
	Checksum string
}

// sameTime compares mtimes at second granularity. Remote listings only
// carry whole seconds, so finer comparison would flag every entry changed.
func sameTime(a, b time.Time) bool {
	return a.Unix() == b.Unix()
}
