package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/rediacc/desktop/internal/credential"
	"github.com/rediacc/desktop/internal/errors"
	"github.com/rediacc/desktop/internal/session"
)

// Term command flags
var (
	termMachineFlag    string
	termRepositoryFlag string
	termCommandFlag    string
)

// termCmd opens a session on a machine or inside a repository.
var termCmd = &cobra.Command{
	Use:   "term",
	Short: "Open a remote session on a machine or repository",
	Long: `Open a session on a machine, or inside a repository's working
directory with its environment pre-bound.

Without --command an interactive shell is attached. With --command the
command runs once, output streams live, and its exit status becomes the
process exit status.

Examples:
  rediacc term --machine web-1
  rediacc term --machine web-1 --repository billing
  rediacc term --machine web-1 --repository billing --command "make test"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return termCommand(termMachineFlag, termRepositoryFlag, termCommandFlag)
	},
}

func init() {
	termCmd.Flags().StringVar(&termMachineFlag, "machine", "", "target machine name (required)")
	termCmd.Flags().StringVar(&termRepositoryFlag, "repository", "", "repository whose environment to enter")
	termCmd.Flags().StringVar(&termCommandFlag, "command", "", "run a single command instead of a shell")

	rootCmd.AddCommand(termCmd)
}

func termCommand(machine, repository, command string) error {
	if machine == "" {
		return errors.New(errors.ErrConfig,
			"No machine specified",
			"Pass --machine with the target machine name")
	}

	sess, err := newSession()
	if err != nil {
		return err
	}
	team, err := requireTeam(sess)
	if err != nil {
		return err
	}

	client := newClient(sess)
	broker := session.NewBroker(client, credential.NewManager(sess.Log), masterPassword(), sess.Log)

	target, staged, err := broker.Resolve(team, machine, repository, sess.Settings.Dev)
	if err != nil {
		return err
	}
	defer staged.Release()

	status, err := session.Open(target, command, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		return err
	}
	if status != 0 {
		// The remote command's exit status is the only signal; release
		// staged material before propagating it.
		staged.Release()
		os.Exit(status)
	}
	return nil
}
