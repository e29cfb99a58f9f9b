package syncer

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/rediacc/desktop/internal/errors"
	"github.com/rediacc/desktop/internal/util"
	"github.com/rediacc/desktop/pkg/sshutil"
)

// RemoteEndpoint serves a directory on a machine reached over SSH. It only
// needs coreutils on the far side: find, cat, mkdir, rm, touch, sha256sum.
type RemoteEndpoint struct {
	client sshutil.SSHClient
	root   string
}

func NewRemoteEndpoint(client sshutil.SSHClient, root string) *RemoteEndpoint {
	return &RemoteEndpoint{client: client, root: strings.TrimRight(root, "/")}
}

func (r *RemoteEndpoint) Root() string {
	return r.client.GetHost() + ":" + r.root
}

func (r *RemoteEndpoint) abs(relPath string) string {
	return path.Join(r.root, relPath)
}

// List probes the remote tree with one find invocation. %y is the entry
// type, %T@ the mtime in epoch seconds, %P the root-relative path.
func (r *RemoteEndpoint) List(excl *ExclusionSet) ([]Entry, error) {
	cmd := fmt.Sprintf(
		"if [ -d %[1]s ]; then find %[1]s -mindepth 1 \\( -type f -o -type d -o -type l \\) -printf '%%y\\t%%s\\t%%T@\\t%%P\\n'; fi",
		util.ShellQuote(r.root))
	stdout, stderr, code, err := r.client.Exec(cmd)
	if err != nil {
		return nil, err
	}
	if code != 0 {
		return nil, errors.New(errors.ErrSync,
			fmt.Sprintf("remote listing of %s failed: %s", r.Root(), strings.TrimSpace(string(stderr))),
			"Check that the remote path exists and is readable")
	}

	var entries []Entry
	for _, line := range strings.Split(string(stdout), "\n") {
		if line == "" {
			continue
		}
		entry, ok := parseListingLine(line)
		if !ok {
			continue
		}
		if excl.Match(entry.RelPath) {
			continue
		}
		entries = append(entries, entry)
	}
	sortEntries(entries)
	return entries, nil
}

func parseListingLine(line string) (Entry, bool) {
	parts := strings.SplitN(line, "\t", 4)
	if len(parts) != 4 {
		return Entry{}, false
	}
	entry := Entry{RelPath: parts[3]}
	switch parts[0] {
	case "f":
		entry.Kind = KindFile
	case "d":
		entry.Kind = KindDir
	case "l":
		entry.Kind = KindSymlink
	default:
		return Entry{}, false
	}

	size, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		size = -1
	}
	entry.Size = size
	if entry.Kind == KindDir {
		entry.Size = -1
	}

	// find prints fractional epoch seconds; whole seconds are enough.
	secStr := parts[2]
	if dot := strings.IndexByte(secStr, '.'); dot != -1 {
		secStr = secStr[:dot]
	}
	if sec, err := strconv.ParseInt(secStr, 10, 64); err == nil {
		entry.Mtime = time.Unix(sec, 0)
	}
	return entry, true
}

func (r *RemoteEndpoint) Open(relPath string) (io.ReadCloser, error) {
	pr, pw := io.Pipe()
	go func() {
		var stderr bytes.Buffer
		code, err := r.client.ExecOutput("cat "+util.ShellQuote(r.abs(relPath)), pw, &stderr)
		switch {
		case err != nil:
			pw.CloseWithError(err)
		case code != 0:
			pw.CloseWithError(errors.New(errors.ErrSync,
				fmt.Sprintf("remote read of %s failed: %s", relPath, strings.TrimSpace(stderr.String())), ""))
		default:
			pw.Close()
		}
	}()
	return pr, nil
}

func (r *RemoteEndpoint) Write(relPath string, content io.Reader, mtime time.Time) error {
	target := util.ShellQuote(r.abs(relPath))
	cmd := fmt.Sprintf("mkdir -p %s && cat > %s", util.ShellQuote(path.Dir(r.abs(relPath))), target)
	if !mtime.IsZero() {
		cmd += fmt.Sprintf(" && touch -m -d @%d %s", mtime.Unix(), target)
	}

	var stderr bytes.Buffer
	code, err := r.client.ExecInput(cmd, content, &stderr)
	if err != nil {
		return err
	}
	if code != 0 {
		return errors.New(errors.ErrSync,
			fmt.Sprintf("remote write of %s failed: %s", relPath, strings.TrimSpace(stderr.String())),
			"Check permissions on the remote directory")
	}
	return nil
}

func (r *RemoteEndpoint) Mkdir(relPath string) error {
	return r.run("mkdir -p " + util.ShellQuote(r.abs(relPath)))
}

// Remove deletes a file, or a directory only when it is empty, so entries
// excluded from mirror deletion keep their parent directories alive.
func (r *RemoteEndpoint) Remove(relPath string, kind EntryKind) error {
	if kind == KindDir {
		return r.run("rmdir " + util.ShellQuote(r.abs(relPath)))
	}
	return r.run("rm -f " + util.ShellQuote(r.abs(relPath)))
}

func (r *RemoteEndpoint) Checksum(relPath string) (string, error) {
	stdout, stderr, code, err := r.client.Exec("sha256sum " + util.ShellQuote(r.abs(relPath)))
	if err != nil {
		return "", err
	}
	if code != 0 {
		return "", errors.New(errors.ErrSync,
			fmt.Sprintf("remote checksum of %s failed: %s", relPath, strings.TrimSpace(string(stderr))), "")
	}
	fields := strings.Fields(string(stdout))
	if len(fields) == 0 {
		return "", errors.New(errors.ErrSync, "remote checksum of "+relPath+" returned no output", "")
	}
	return fields[0], nil
}

func (r *RemoteEndpoint) run(cmd string) error {
	_, stderr, code, err := r.client.Exec(cmd)
	if err != nil {
		return err
	}
	if code != 0 {
		return errors.New(errors.ErrSync,
			fmt.Sprintf("remote command failed: %s", strings.TrimSpace(string(stderr))), "")
	}
	return nil
}
