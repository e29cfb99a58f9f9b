package sshutil

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/rediacc/desktop/internal/errors"
)

// Exec runs a command on the remote host and returns the output.
// Exit code is -1 if the command couldn't be executed at all; a non-zero
// exit code with nil error means the command ran but failed.
func (c *Client) Exec(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	session, err := c.newSSHSession()
	if err != nil {
		return nil, nil, -1, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to create SSH session",
			"Connection may have been closed. Try reconnecting.")
	}
	defer session.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	session.Stdout = &stdoutBuf
	session.Stderr = &stderrBuf

	exitCode, err = runAndClassify(session, cmd)
	if err != nil {
		return nil, nil, -1, err
	}
	return stdoutBuf.Bytes(), stderrBuf.Bytes(), exitCode, nil
}

// ExecStream runs a command and streams output to the provided writers.
func (c *Client) ExecStream(cmd string, stdout, stderr io.Writer) (exitCode int, err error) {
	session, err := c.newSSHSession()
	if err != nil {
		return -1, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to create SSH session",
			"Connection may have been closed. Try reconnecting.")
	}
	defer session.Close()

	session.Stdout = stdout
	session.Stderr = stderr
	return runAndClassify(session, cmd)
}

// ExecInput runs a command feeding stdin from the given reader. Used for
// streaming file content to a remote writer process.
func (c *Client) ExecInput(cmd string, stdin io.Reader, stderr io.Writer) (exitCode int, err error) {
	session, err := c.newSSHSession()
	if err != nil {
		return -1, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to create SSH session",
			"Connection may have been closed. Try reconnecting.")
	}
	defer session.Close()

	session.Stdin = stdin
	session.Stderr = stderr
	return runAndClassify(session, cmd)
}

// ExecOutput runs a command writing stdout to the given writer. Used for
// streaming a remote file back without buffering it in memory.
func (c *Client) ExecOutput(cmd string, stdout io.Writer, stderr io.Writer) (exitCode int, err error) {
	session, err := c.newSSHSession()
	if err != nil {
		return -1, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to create SSH session",
			"Connection may have been closed. Try reconnecting.")
	}
	defer session.Close()

	session.Stdout = stdout
	session.Stderr = stderr
	return runAndClassify(session, cmd)
}

// ExecInteractive runs a command with a PTY wired to the given streams,
// e.g. an interactive program inside a repository container.
func (c *Client) ExecInteractive(cmd string, stdin io.Reader, stdout, stderr io.Writer, cols, rows int) (exitCode int, err error) {
	session, err := c.newSSHSession()
	if err != nil {
		return -1, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to create SSH session",
			"Connection may have been closed. Try reconnecting.")
	}
	defer session.Close()

	if err := requestPTY(session, cols, rows); err != nil {
		return -1, err
	}

	session.Stdin = stdin
	session.Stdout = stdout
	session.Stderr = stderr
	return runAndClassify(session, cmd)
}

// Shell starts an interactive login shell with a PTY.
func (c *Client) Shell(stdin io.Reader, stdout, stderr io.Writer, cols, rows int) error {
	session, err := c.newSSHSession()
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to create SSH session",
			"Connection may have been closed. Try reconnecting.")
	}
	defer session.Close()

	if err := requestPTY(session, cols, rows); err != nil {
		return err
	}

	session.Stdin = stdin
	session.Stdout = stdout
	session.Stderr = stderr

	if err := session.Shell(); err != nil {
		return errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to start shell",
			"Check if your user has shell access on the remote host.")
	}
	return session.Wait()
}

// Setenv forwards environment variables to the session-less connection by
// returning a prefix that exports them for one command. The SSH server's
// AcceptEnv allowlist rarely includes custom names, so exports ride along in
// the command line instead of the protocol's env request.
func Setenv(cmd string, env map[string]string) string {
	if len(env) == 0 {
		return cmd
	}
	var b bytes.Buffer
	for _, k := range sortedKeys(env) {
		fmt.Fprintf(&b, "export %s=%s; ", k, shellQuote(env[k]))
	}
	b.WriteString(cmd)
	return b.String()
}

func requestPTY(session *ssh.Session, cols, rows int) error {
	if cols <= 0 {
		cols = 80
	}
	if rows <= 0 {
		rows = 24
	}
	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty("xterm-256color", rows, cols, modes); err != nil {
		return errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to allocate PTY",
			"The remote host may not support pseudo-terminals.")
	}
	return nil
}

func runAndClassify(session *ssh.Session, cmd string) (int, error) {
	err := session.Run(cmd)
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*ssh.ExitError); ok {
		return exitErr.ExitStatus(), nil
	}
	return -1, errors.WrapWithCode(err, errors.ErrExec,
		fmt.Sprintf("Failed to execute command: %s", cmd),
		"Check if the command exists on the remote host.")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// shellQuote wraps s in single quotes, escaping embedded quotes, so it is
// safe to splice into a remote shell command.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
