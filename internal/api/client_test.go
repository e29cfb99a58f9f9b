package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rediacc/desktop/internal/config"
	"github.com/rediacc/desktop/internal/errors"
	"github.com/rediacc/desktop/internal/logger"
)

const (
	tokenA = "11111111-1111-1111-1111-111111111111"
	tokenB = "22222222-2222-2222-2222-222222222222"
	tokenC = "33333333-3333-3333-3333-333333333333"
)

func newTestStore(t *testing.T, token string) (*config.Store, *TokenStore) {
	t.Helper()
	store := config.NewStoreAt(filepath.Join(t.TempDir(), "config.json"))
	if token != "" {
		require.NoError(t, store.Update(func(doc *config.Document) bool {
			doc.Token = token
			return true
		}))
	}
	return store, NewTokenStore(store)
}

func newTestClient(t *testing.T, url, token string) (*Client, *TokenStore) {
	t.Helper()
	_, tokens := newTestStore(t, token)
	settings := config.DefaultSettings()
	settings.APIURL = url
	settings.VerifySSL = true
	return NewClient(settings, tokens, logger.Noop()), tokens
}

func envelope(next string, rows ...map[string]any) map[string]any {
	data := []map[string]any{{"nextRequestToken": next}}
	data = append(data, rows...)
	return map[string]any{
		"failure":    0,
		"resultSets": []map[string]any{{"data": data}},
	}
}

func TestCallRotatesToken(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Rediacc-RequestToken"))
		assert.Equal(t, "/StoredProcedure/GetCompanyTeams", r.URL.Path)
		json.NewEncoder(w).Encode(envelope(tokenB))
	}))
	defer srv.Close()

	client, tokens := newTestClient(t, srv.URL, tokenA)
	_, err := client.Call("GetCompanyTeams", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{tokenA}, seen)
	current, err := tokens.Current()
	require.NoError(t, err)
	assert.Equal(t, tokenB, current, "successor token must be committed")
}

func TestCallSerializesRotation(t *testing.T) {
	// Each request must present the successor issued to the previous one.
	var mu sync.Mutex
	issued := tokenA
	serial := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if r.Header.Get("Rediacc-RequestToken") != issued {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		serial++
		issued = fmt.Sprintf("%08d-1111-1111-1111-111111111111", serial)
		json.NewEncoder(w).Encode(envelope(issued))
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL, tokenA)
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = client.Call("GetCompanyTeams", nil)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestCallAuthExpiredNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL, tokenA)
	_, err := client.Call("GetCompanyTeams", nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrAuth))
	assert.Equal(t, 1, calls, "a rejected token must never be replayed")
}

func newExplicitClient(t *testing.T, url, explicit, stored string) (*Client, *TokenStore) {
	t.Helper()
	_, tokens := newTestStore(t, stored)
	settings := config.DefaultSettings()
	settings.APIURL = url
	settings.Token = explicit
	return NewClient(settings, tokens, logger.Noop()), tokens
}

func TestCallExplicitTokenWinsOverStore(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Rediacc-RequestToken"))
		json.NewEncoder(w).Encode(envelope(tokenC))
	}))
	defer srv.Close()

	client, tokens := newExplicitClient(t, srv.URL, tokenA, tokenB)
	_, err := client.Call("GetCompanyTeams", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{tokenA}, seen, "the explicit token must be presented, not the stored one")
	current, err := tokens.Current()
	require.NoError(t, err)
	assert.Equal(t, tokenB, current, "an explicit token's successor must not overwrite the stored session")
}

func TestCallExplicitTokenWithEmptyStore(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Rediacc-RequestToken"))
		json.NewEncoder(w).Encode(envelope(tokenB))
	}))
	defer srv.Close()

	client, _ := newExplicitClient(t, srv.URL, tokenA, "")
	_, err := client.Call("GetCompanyTeams", nil)
	require.NoError(t, err, "an explicit token needs no stored session")
	assert.Equal(t, []string{tokenA}, seen)
}

func TestCallExplicitTokenSuccessorRetained(t *testing.T) {
	var seen []string
	next := []string{tokenB, tokenC}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Rediacc-RequestToken"))
		json.NewEncoder(w).Encode(envelope(next[len(seen)-1]))
	}))
	defer srv.Close()

	client, tokens := newExplicitClient(t, srv.URL, tokenA, "")
	_, err := client.Call("GetCompanyTeams", nil)
	require.NoError(t, err)
	_, err = client.Call("GetCompanyTeams", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{tokenA, tokenB}, seen,
		"the second call must present the first call's successor")
	current, err := tokens.Current()
	require.NoError(t, err)
	assert.Empty(t, current, "explicit-token successors stay in memory")
}

func TestCallNoStoredToken(t *testing.T) {
	client, _ := newTestClient(t, "http://127.0.0.1:1", "")
	_, err := client.Call("GetCompanyTeams", nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrAuth))
}

func TestCallMiddlewareFailureStillRotates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"failure":    1,
			"errors":     []string{"no such team"},
			"resultSets": []map[string]any{{"data": []map[string]any{{"nextRequestToken": tokenB}}}},
		})
	}))
	defer srv.Close()

	client, tokens := newTestClient(t, srv.URL, tokenA)
	_, err := client.Call("GetTeamMachines", map[string]any{"teamName": "ghost"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such team")

	current, err := tokens.Current()
	require.NoError(t, err)
	assert.Equal(t, tokenB, current, "the presented token was consumed; its successor must be kept")
}

func TestCallConnectivityError(t *testing.T) {
	client, tokens := newTestClient(t, "http://127.0.0.1:1", tokenA)
	_, err := client.Call("GetCompanyTeams", nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConn))

	current, err := tokens.Current()
	require.NoError(t, err)
	assert.Equal(t, tokenA, current, "token must survive a transport failure")
}

func TestAuthenticateStoresToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/StoredProcedure/CreateAuthenticationRequest", r.URL.Path)
		assert.Equal(t, "user@example.com", r.Header.Get("Rediacc-UserEmail"))
		assert.Equal(t, HashPassword("hunter2"), r.Header.Get("Rediacc-UserHash"))
		assert.Empty(t, r.Header.Get("Rediacc-RequestToken"))
		json.NewEncoder(w).Encode(envelope(tokenC))
	}))
	defer srv.Close()

	client, tokens := newTestClient(t, srv.URL, "")
	require.NoError(t, client.Authenticate("user@example.com", "hunter2", "test"))

	current, err := tokens.Current()
	require.NoError(t, err)
	assert.Equal(t, tokenC, current)
}

func TestLogoutClearsTokenEvenOnAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, tokens := newTestClient(t, srv.URL, tokenA)
	require.NoError(t, client.Logout())

	current, err := tokens.Current()
	require.NoError(t, err)
	assert.Empty(t, current)
}

func TestHashPassword(t *testing.T) {
	h := HashPassword("hunter2")
	assert.True(t, len(h) == 66 && h[:2] == "0x")
	assert.Equal(t, h, HashPassword("hunter2"))
	assert.NotEqual(t, h, HashPassword("hunter3"))
}
