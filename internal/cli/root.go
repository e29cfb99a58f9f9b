package cli

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rediacc/desktop/internal/api"
	"github.com/rediacc/desktop/internal/config"
	"github.com/rediacc/desktop/internal/credential"
	"github.com/rediacc/desktop/internal/errors"
	"github.com/rediacc/desktop/internal/ui"
)

// Global flags, available on every subcommand.
var (
	tokenFlag     string
	apiURLFlag    string
	teamFlag      string
	outputFlag    string
	verifySSLFlag string
	verboseFlag   bool
	devFlag       bool
)

// rootCmd is the base command every subcommand registers against.
var rootCmd = &cobra.Command{
	Use:   "rediacc",
	Short: "Manage machines, repositories, and remote sessions",
	Long: `rediacc is the operator CLI for a fleet of machines hosting
containerized repositories.

Credentials live in encrypted vaults resolved through the API; SSH keys are
staged to disk only for the duration of an operation and removed afterward.

Common workflows:
  rediacc login
  rediacc list machines --team platform
  rediacc sync upload --local ./src --machine web-1 --repository billing
  rediacc term --machine web-1 --repository billing`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.ConfigureStyles()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "authentication token (overrides stored session)")
	rootCmd.PersistentFlags().StringVar(&apiURLFlag, "api-url", "", "API endpoint URL")
	rootCmd.PersistentFlags().StringVar(&teamFlag, "team", "", "team name (overrides configured default)")
	rootCmd.PersistentFlags().StringVar(&outputFlag, "output", "", "output format: table or json")
	rootCmd.PersistentFlags().StringVar(&verifySSLFlag, "verify-ssl", "", "verify API TLS certificates (true/false)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&devFlag, "dev", false, "development mode: relax host key verification for this invocation")
}

// Execute runs the root command. It is the single place that prints errors
// and decides the process exit code; everything below returns typed errors.
func Execute() {
	defer credential.ReleaseAll()

	if err := rootCmd.Execute(); err != nil {
		var structured *errors.Error
		if stderrors.As(err, &structured) {
			fmt.Fprintln(os.Stderr, structured.Error())
		} else {
			fmt.Fprintf(os.Stderr, "✗ %s\n", err.Error())
		}
		credential.ReleaseAll()
		os.Exit(1)
	}
}

// globalFlags collects the persistent flag values for config resolution.
func globalFlags() config.Flags {
	return config.Flags{
		Token:     tokenFlag,
		APIURL:    apiURLFlag,
		Team:      teamFlag,
		Output:    outputFlag,
		VerifySSL: verifySSLFlag,
		Verbose:   verboseFlag,
		Dev:       devFlag,
	}
}

// newSession resolves settings for this invocation.
func newSession() (*config.Session, error) {
	return config.NewSession(globalFlags())
}

// newClient builds the API client for a session.
func newClient(sess *config.Session) *api.Client {
	tokens := api.NewTokenStore(sess.Store)
	return api.NewClient(sess.Settings, tokens, sess.Log)
}

// masterPassword is the vault decryption key for this invocation. It is
// never accepted as a flag so it cannot leak through shell history or
// process listings.
func masterPassword() string {
	return os.Getenv("REDIACC_MASTER_PASSWORD")
}

// requireTeam resolves the effective team name, failing with guidance when
// none is configured.
func requireTeam(sess *config.Session) (string, error) {
	if sess.Settings.Team == "" {
		return "", errors.New(errors.ErrConfig,
			"No team specified",
			"Pass --team, set REDIACC_TEAM, or configure a default team")
	}
	return sess.Settings.Team, nil
}
