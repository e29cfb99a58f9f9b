package config

// Document is the persisted per-user configuration file.
// It lives at ~/.config/rediacc/config.json and is always written with
// owner-only permissions since it carries the session token.
type Document struct {
	Token          string `json:"token,omitempty"`
	TokenUpdatedAt string `json:"token_updated_at,omitempty"`
	Email          string `json:"email,omitempty"`
	Organization   string `json:"organization,omitempty"`
	APIURL         string `json:"api_url,omitempty"`
	DefaultTeam    string `json:"default_team,omitempty"`
	OutputFormat   string `json:"output_format,omitempty"`
	VerifySSL      *bool  `json:"verify_ssl,omitempty"`
}

// Settings is the fully resolved runtime configuration for one CLI
// invocation. Each field already reflects the precedence
// flag > environment > config file > built-in default, evaluated once at
// startup so later token rotations can't shift a source mid-operation.
type Settings struct {
	Token        string // explicit token, empty means "use the store"
	APIURL       string
	Team         string
	OutputFormat string
	VerifySSL    bool
	Verbose      bool
	Dev          bool // development mode, allows relaxed host verification
}

// DefaultAPIURL is used when neither flag, environment, nor config file
// names an endpoint.
const DefaultAPIURL = "http://localhost:7322/api"

// DefaultSettings returns Settings with the built-in defaults applied.
func DefaultSettings() Settings {
	return Settings{
		APIURL:       DefaultAPIURL,
		OutputFormat: "table",
		VerifySSL:    true,
	}
}
