package api

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rediacc/desktop/internal/config"
	"github.com/rediacc/desktop/internal/errors"
)

// TokenStore persists the current request token durably, so a rotation
// survives the process dying right after the API accepted the old token.
// All mutation goes through compare-and-swap: a commit only lands when the
// stored token still equals the one the caller presented, which keeps a
// slow response from clobbering a newer token.
type TokenStore struct {
	store *config.Store
}

// NewTokenStore wraps the shared config store.
func NewTokenStore(store *config.Store) *TokenStore {
	return &TokenStore{store: store}
}

// ValidToken reports whether s looks like a request token (a GUID).
func ValidToken(s string) bool {
	_, err := uuid.Parse(strings.TrimSpace(s))
	return err == nil
}

// Current returns the stored token, or "" when logged out.
func (t *TokenStore) Current() (string, error) {
	doc, err := t.store.Load()
	if err != nil {
		return "", err
	}
	return doc.Token, nil
}

// Commit atomically replaces presented with successor. It returns false
// without writing when the stored token no longer matches presented.
func (t *TokenStore) Commit(presented, successor string) (bool, error) {
	if !ValidToken(successor) {
		return false, errors.New(errors.ErrAuth, "middleware returned a malformed request token", "Retry the operation; report this if it persists")
	}
	var swapped bool
	err := t.store.Update(func(doc *config.Document) bool {
		if doc.Token != presented {
			return false
		}
		doc.Token = successor
		doc.TokenUpdatedAt = time.Now().UTC().Format(time.RFC3339)
		swapped = true
		return true
	})
	if err != nil {
		return false, err
	}
	return swapped, nil
}

// Set installs a fresh token unconditionally (login).
func (t *TokenStore) Set(token string) error {
	if !ValidToken(token) {
		return errors.New(errors.ErrAuth, "login returned a malformed request token", "Retry the login; report this if it persists")
	}
	return t.store.Update(func(doc *config.Document) bool {
		doc.Token = token
		doc.TokenUpdatedAt = time.Now().UTC().Format(time.RFC3339)
		return true
	})
}

// Clear forgets the stored token (logout).
func (t *TokenStore) Clear() error {
	return t.store.Update(func(doc *config.Document) bool {
		if doc.Token == "" {
			return false
		}
		doc.Token = ""
		doc.TokenUpdatedAt = ""
		return true
	})
}
