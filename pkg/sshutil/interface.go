package sshutil

import "io"

// SSHClient is the command-execution surface the rest of the tool depends
// on. Both the real Client and the testing mock satisfy it, so code built on
// top can be exercised without a live connection.
type SSHClient interface {
	// Exec runs a command and returns stdout, stderr, and exit code.
	// Exit code is -1 if the command couldn't be executed at all.
	Exec(cmd string) (stdout, stderr []byte, exitCode int, err error)

	// ExecStream runs a command and streams output to the provided writers.
	ExecStream(cmd string, stdout, stderr io.Writer) (exitCode int, err error)

	// ExecInput runs a command feeding stdin from the given reader.
	ExecInput(cmd string, stdin io.Reader, stderr io.Writer) (exitCode int, err error)

	// ExecOutput runs a command writing stdout to the given writer.
	ExecOutput(cmd string, stdout io.Writer, stderr io.Writer) (exitCode int, err error)

	// Close closes the SSH connection.
	Close() error

	// GetHost returns the host the client was dialed for.
	GetHost() string

	// GetAddress returns the resolved host:port address.
	GetAddress() string
}
