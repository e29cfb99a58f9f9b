// Package cli implements the rediacc command-line interface.
//
// The package is organized around Cobra commands, with each command
// delegating to a workflow function for the actual work. Commands stay
// thin: they validate flags, build the per-invocation session, and wire
// together the internal packages that do the job.
//
// # Command Structure
//
// The root command is "rediacc" with subcommands for different operations:
//
//	rediacc login                  - Authenticate and store a session token
//	rediacc logout                 - Revoke and clear the session token
//	rediacc list teams|machines|repositories
//	rediacc sync upload|download   - Transfer files to/from a repository
//	rediacc term                   - Open a remote session
//	rediacc version                - Print build information
//
// # Error Handling
//
// Workflow functions return structured errors from internal/errors; the
// Execute function is the only place that prints them and sets the process
// exit code. Staged credentials are released on every exit path, including
// error exits, via credential.ReleaseAll.
package cli
