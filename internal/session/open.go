package session

import (
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/rediacc/desktop/internal/errors"
	"github.com/rediacc/desktop/internal/util"
	"github.com/rediacc/desktop/pkg/sshutil"
)

const dialTimeout = 15 * time.Second

// Open attaches to the target. With command empty it starts an interactive
// shell; otherwise it runs exactly one command, streaming output live, and
// returns the remote exit status.
func Open(target *Target, command string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	client, err := sshutil.Dial(target.SSH, dialTimeout)
	if err != nil {
		return -1, err
	}
	defer client.Close()

	if command != "" {
		return client.ExecStream(remoteCommand(target, command), stdout, stderr)
	}
	return openShell(client, target, stdin, stdout, stderr)
}

// remoteCommand wraps a user command with the target's environment and
// working directory.
func remoteCommand(target *Target, command string) string {
	if target.Workdir != "" {
		command = fmt.Sprintf("cd %s && %s", util.ShellQuote(target.Workdir), command)
	}
	return sshutil.Setenv(command, target.Env)
}

// openShell runs an interactive login shell with the local terminal in raw
// mode so control sequences pass through.
func openShell(client *sshutil.Client, target *Target, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	cols, rows := 80, 24
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		if w, h, err := term.GetSize(fd); err == nil {
			cols, rows = w, h
		}
		state, err := term.MakeRaw(fd)
		if err != nil {
			return -1, errors.WrapWithCode(err, errors.ErrSSH,
				"could not switch the terminal to raw mode", "")
		}
		defer term.Restore(fd, state)
	}

	shellCmd := "exec \"$SHELL\" -l"
	if target.Workdir != "" {
		shellCmd = fmt.Sprintf("cd %s && %s", util.ShellQuote(target.Workdir), shellCmd)
	}
	shellCmd = sshutil.Setenv(shellCmd, target.Env)

	return client.ExecInteractive(shellCmd, stdin, stdout, stderr, cols, rows)
}
