// Package lock serializes repository access across concurrent invocations
// using a lock directory on the remote machine. mkdir is the atomic
// primitive: it fails when the directory already exists.
package lock

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/rediacc/desktop/internal/errors"
	"github.com/rediacc/desktop/internal/util"
	"github.com/rediacc/desktop/pkg/sshutil"
)

// Config tunes lock acquisition.
type Config struct {
	// Timeout bounds how long Acquire waits for a held lock.
	Timeout time.Duration

	// Stale marks locks older than this as abandoned and removable.
	Stale time.Duration
}

// DefaultConfig waits two minutes and reclaims locks older than an hour.
func DefaultConfig() Config {
	return Config{Timeout: 2 * time.Minute, Stale: time.Hour}
}

// Lock is an acquired repository lock on a remote machine.
type Lock struct {
	Dir    string
	Info   *Info
	client sshutil.SSHClient
}

// Acquire takes the lock for one repository, retrying until timeout when it
// is held. Stale locks are reclaimed.
func Acquire(client sshutil.SSHClient, cfg Config, repoName string) (*Lock, error) {
	lockDir := path.Join("/tmp", fmt.Sprintf("rediacc-%s.lock", repoName))
	infoFile := path.Join(lockDir, "info.json")

	info := NewInfo("sync " + repoName)

	start := time.Now()
	for {
		if time.Since(start) > cfg.Timeout {
			holder := readHolder(client, infoFile)
			return nil, errors.New(errors.ErrLock,
				fmt.Sprintf("Timed out waiting for the repository lock after %s", cfg.Timeout),
				fmt.Sprintf("Lock held by: %s. Wait for it to release, or remove %s on the machine if it is abandoned.", holder, lockDir))
		}

		if isStale(client, infoFile, cfg.Stale) {
			if err := forceRemove(client, lockDir); err == nil {
				continue
			}
		}

		_, _, exitCode, err := client.Exec("mkdir " + util.ShellQuote(lockDir) + " 2>/dev/null")
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrLock,
				"Failed to execute the lock command",
				"Check the SSH connection")
		}
		if exitCode == 0 {
			infoJSON, err := info.Marshal()
			if err != nil {
				forceRemove(client, lockDir)
				return nil, errors.WrapWithCode(err, errors.ErrLock,
					"Failed to serialize lock info", "")
			}
			writeCmd := fmt.Sprintf("cat > %s << 'LOCKINFO'\n%s\nLOCKINFO",
				util.ShellQuote(infoFile), string(infoJSON))
			_, _, exitCode, err = client.Exec(writeCmd)
			if err != nil || exitCode != 0 {
				forceRemove(client, lockDir)
				return nil, errors.New(errors.ErrLock,
					"Failed to write the lock info file",
					"Check disk space and permissions on the machine")
			}
			return &Lock{Dir: lockDir, Info: info, client: client}, nil
		}

		time.Sleep(2 * time.Second)
	}
}

// Release removes the lock. Safe on a nil lock.
func (l *Lock) Release() error {
	if l == nil || l.client == nil {
		return nil
	}
	return forceRemove(l.client, l.Dir)
}

// Holder describes who holds the lock at lockDir, best effort.
func Holder(client sshutil.SSHClient, lockDir string) string {
	return readHolder(client, path.Join(lockDir, "info.json"))
}

func isStale(client sshutil.SSHClient, infoFile string, staleThreshold time.Duration) bool {
	if staleThreshold <= 0 {
		return false
	}
	stdout, _, exitCode, err := client.Exec("cat " + util.ShellQuote(infoFile) + " 2>/dev/null")
	if err != nil || exitCode != 0 {
		return false
	}
	info, err := ParseInfo(stdout)
	if err != nil {
		return false
	}
	return info.Age() > staleThreshold
}

func readHolder(client sshutil.SSHClient, infoFile string) string {
	stdout, _, exitCode, err := client.Exec("cat " + util.ShellQuote(infoFile) + " 2>/dev/null")
	if err != nil || exitCode != 0 {
		return "unknown"
	}
	info, err := ParseInfo(stdout)
	if err != nil {
		return strings.TrimSpace(string(stdout))
	}
	return info.String()
}

func forceRemove(client sshutil.SSHClient, dir string) error {
	_, stderr, exitCode, err := client.Exec("rm -rf " + util.ShellQuote(dir))
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrLock,
			"Failed to remove the lock directory "+dir,
			"Check the SSH connection")
	}
	if exitCode != 0 {
		return errors.New(errors.ErrLock,
			"Failed to remove the lock directory "+dir,
			string(stderr))
	}
	return nil
}
