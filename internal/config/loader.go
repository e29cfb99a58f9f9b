package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/rediacc/desktop/internal/errors"
)

// Flags are the command-line overrides collected by the CLI layer.
// Empty strings mean "not given".
type Flags struct {
	Token     string
	APIURL    string
	Team      string
	Output    string
	VerifySSL string // tri-state: "", "true", "false"
	Verbose   bool
	Dev       bool
}

// Resolve produces the Settings for this invocation by layering
// flag > environment > config file > default. It is evaluated exactly once
// per operation; callers hold onto the result instead of re-reading sources,
// which keeps a mid-operation token rotation from changing which source wins.
func Resolve(store *Store, flags Flags) (Settings, error) {
	doc, err := store.Load()
	if err != nil {
		return Settings{}, err
	}

	v := viper.New()
	v.SetEnvPrefix("REDIACC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	for _, key := range []string{"token", "api_url", "team", "output", "verify_ssl", "dev", "debug"} {
		if err := v.BindEnv(key); err != nil {
			return Settings{}, errors.WrapWithCode(err, errors.ErrConfig,
				"Can't bind environment variables", "")
		}
	}

	settings := DefaultSettings()

	// Config file layer
	if doc.APIURL != "" {
		settings.APIURL = doc.APIURL
	}
	if doc.DefaultTeam != "" {
		settings.Team = doc.DefaultTeam
	}
	if doc.OutputFormat != "" {
		settings.OutputFormat = doc.OutputFormat
	}
	if doc.VerifySSL != nil {
		settings.VerifySSL = *doc.VerifySSL
	}

	// Environment layer
	if tok := v.GetString("token"); tok != "" {
		settings.Token = tok
	}
	if url := v.GetString("api_url"); url != "" {
		settings.APIURL = url
	}
	if team := v.GetString("team"); team != "" {
		settings.Team = team
	}
	if out := v.GetString("output"); out != "" {
		settings.OutputFormat = out
	}
	if raw := v.GetString("verify_ssl"); raw != "" {
		settings.VerifySSL = parseBool(raw, settings.VerifySSL)
	}
	if raw := v.GetString("dev"); raw != "" {
		settings.Dev = parseBool(raw, false)
	}
	if os.Getenv("REDIACC_DEBUG") != "" {
		settings.Verbose = true
	}

	// Flag layer wins over everything
	if flags.Token != "" {
		settings.Token = flags.Token
	}
	if flags.APIURL != "" {
		settings.APIURL = flags.APIURL
	}
	if flags.Team != "" {
		settings.Team = flags.Team
	}
	if flags.Output != "" {
		settings.OutputFormat = flags.Output
	}
	if flags.VerifySSL != "" {
		settings.VerifySSL = parseBool(flags.VerifySSL, settings.VerifySSL)
	}
	if flags.Verbose {
		settings.Verbose = true
	}
	if flags.Dev {
		settings.Dev = true
	}

	settings.APIURL = strings.TrimRight(settings.APIURL, "/")
	return settings, nil
}

func parseBool(raw string, def bool) bool {
	b, err := strconv.ParseBool(strings.ToLower(raw))
	if err != nil {
		return def
	}
	return b
}
