package config

import "github.com/rediacc/desktop/internal/logger"

// Session bundles the per-invocation state every component needs: the
// resolved settings and the durable store. It is constructed once at CLI
// startup and passed explicitly; there are no ambient globals.
type Session struct {
	Settings Settings
	Store    *Store
	Log      logger.Logger
}

// NewSession resolves settings against the default store.
func NewSession(flags Flags) (*Session, error) {
	store := NewStore()
	settings, err := Resolve(store, flags)
	if err != nil {
		return nil, err
	}
	return &Session{
		Settings: settings,
		Store:    store,
		Log:      logger.NewEnvLogger("[cli]"),
	}, nil
}
