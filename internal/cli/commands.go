package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/rediacc/desktop/internal/config"
	"github.com/rediacc/desktop/internal/errors"
)

// Command-specific flags
var (
	loginEmailFlag string
)

// loginCmd authenticates against the API and stores the issued token.
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate and store a session token",
	Long: `Log in to the API and persist the issued request token.

The password is read interactively and never accepted as a flag.
Tokens are single-use: every subsequent call consumes the stored token
and persists its successor.

Examples:
  rediacc login
  rediacc login --email ops@example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return loginCommand(loginEmailFlag)
	},
}

// logoutCmd revokes the stored token.
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke the session token and clear it locally",
	Long: `Revoke the stored request token server-side and remove it from the
local config. The local token is cleared even when revocation fails, so a
dead session never lingers on disk.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return logoutCommand()
	},
}

// listCmd groups the read-only resource listings.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List teams, machines, or repositories",
	Long: `List resources visible to the current session.

Examples:
  rediacc list teams
  rediacc list machines --team platform
  rediacc list repositories --team platform`,
}

var listTeamsCmd = &cobra.Command{
	Use:   "teams",
	Short: "List teams in your organization",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listTeamsCommand()
	},
}

var listMachinesCmd = &cobra.Command{
	Use:   "machines",
	Short: "List machines of a team",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listMachinesCommand()
	},
}

var listRepositoriesCmd = &cobra.Command{
	Use:     "repositories",
	Aliases: []string{"repos"},
	Short:   "List repositories of a team",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listRepositoriesCommand()
	},
}

// completionCmd generates shell completion scripts
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion scripts for rediacc.

Examples:
  # Bash
  rediacc completion bash > /etc/bash_completion.d/rediacc

  # Zsh
  rediacc completion zsh > "${fpath[1]}/_rediacc"

  # Fish
  rediacc completion fish > ~/.config/fish/completions/rediacc.fish`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(os.Stdout)
		default:
			return errors.New(errors.ErrExec,
				"Unknown shell: "+args[0],
				"Supported shells: bash, zsh, fish, powershell")
		}
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmailFlag, "email", "", "account email (prompted when omitted)")

	listCmd.AddCommand(listTeamsCmd)
	listCmd.AddCommand(listMachinesCmd)
	listCmd.AddCommand(listRepositoriesCmd)

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(completionCmd)
}

func loginCommand(email string) error {
	sess, err := newSession()
	if err != nil {
		return err
	}

	var password string
	groups := []*huh.Group{}
	if email == "" {
		groups = append(groups, huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Placeholder("ops@example.com").
				Value(&email).
				Validate(func(s string) error {
					if !strings.Contains(s, "@") {
						return fmt.Errorf("enter a valid email address")
					}
					return nil
				}),
		))
	}
	groups = append(groups, huh.NewGroup(
		huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&password).
			Validate(func(s string) error {
				if s == "" {
					return fmt.Errorf("password is required")
				}
				return nil
			}),
	))

	if err := huh.NewForm(groups...).Run(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read credentials", "")
	}

	client := newClient(sess)
	if err := client.Authenticate(email, password, "rediacc-cli"); err != nil {
		return err
	}

	// Remember who this session belongs to alongside the token.
	if err := sess.Store.Update(func(doc *config.Document) bool {
		doc.Email = email
		return true
	}); err != nil {
		return err
	}

	fmt.Printf("✓ Logged in as %s\n", email)
	return nil
}

func logoutCommand() error {
	sess, err := newSession()
	if err != nil {
		return err
	}

	if err := newClient(sess).Logout(); err != nil {
		return err
	}

	if err := sess.Store.Update(func(doc *config.Document) bool {
		changed := doc.Email != "" || doc.Organization != ""
		doc.Email = ""
		doc.Organization = ""
		return changed
	}); err != nil {
		return err
	}

	fmt.Println("✓ Logged out")
	return nil
}

func listTeamsCommand() error {
	sess, err := newSession()
	if err != nil {
		return err
	}

	teams, err := newClient(sess).ListTeams()
	if err != nil {
		return err
	}

	rows := make([]resourceRow, 0, len(teams))
	for _, t := range teams {
		rows = append(rows, resourceRow{Name: t.Name, Vault: t.VaultContent != ""})
	}
	return renderResources(sess.Settings.OutputFormat, "TEAM", rows)
}

func listMachinesCommand() error {
	sess, err := newSession()
	if err != nil {
		return err
	}
	team, err := requireTeam(sess)
	if err != nil {
		return err
	}

	machines, err := newClient(sess).ListMachines(team)
	if err != nil {
		return err
	}

	rows := make([]resourceRow, 0, len(machines))
	for _, m := range machines {
		rows = append(rows, resourceRow{Name: m.Name, Vault: m.VaultContent != ""})
	}
	return renderResources(sess.Settings.OutputFormat, "MACHINE", rows)
}

func listRepositoriesCommand() error {
	sess, err := newSession()
	if err != nil {
		return err
	}
	team, err := requireTeam(sess)
	if err != nil {
		return err
	}

	repos, err := newClient(sess).ListRepositories(team)
	if err != nil {
		return err
	}

	rows := make([]resourceRow, 0, len(repos))
	for _, r := range repos {
		rows = append(rows, resourceRow{Name: r.Name, Detail: r.GUID, Vault: r.VaultContent != ""})
	}
	return renderResources(sess.Settings.OutputFormat, "REPOSITORY", rows)
}
