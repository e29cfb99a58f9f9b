package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStoreAt(filepath.Join(t.TempDir(), "config.json"))
}

func TestStoreLoadMissingFile(t *testing.T) {
	store := testStore(t)

	doc, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, &Document{}, doc)
}

func TestStoreSaveAndLoad(t *testing.T) {
	store := testStore(t)

	verify := false
	err := store.Save(&Document{
		Token:       "11111111-2222-3333-4444-555555555555",
		Email:       "ops@example.com",
		APIURL:      "https://api.example.com/api",
		DefaultTeam: "platform",
		VerifySSL:   &verify,
	})
	require.NoError(t, err)

	doc, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", doc.Token)
	assert.Equal(t, "platform", doc.DefaultTeam)
	require.NotNil(t, doc.VerifySSL)
	assert.False(t, *doc.VerifySSL)
}

func TestStoreWritesOwnerOnly(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("mode bits are not meaningful on windows")
	}
	store := testStore(t)

	require.NoError(t, store.Save(&Document{Token: "11111111-2222-3333-4444-555555555555"}))

	info, err := os.Stat(store.path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestStoreLoadRejectsBrokenJSON(t *testing.T) {
	store := testStore(t)
	require.NoError(t, os.WriteFile(store.path, []byte("{nope"), 0o600))

	_, err := store.Load()
	assert.Error(t, err)
}

func TestStoreUpdate(t *testing.T) {
	store := testStore(t)
	require.NoError(t, store.Save(&Document{Token: "old"}))

	err := store.Update(func(doc *Document) bool {
		if doc.Token != "old" {
			return false
		}
		doc.Token = "new"
		return true
	})
	require.NoError(t, err)

	doc, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "new", doc.Token)
}

func TestStoreUpdateSkipsWrite(t *testing.T) {
	store := testStore(t)
	require.NoError(t, store.Save(&Document{Token: "current"}))

	err := store.Update(func(doc *Document) bool { return false })
	require.NoError(t, err)

	doc, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "current", doc.Token)
}

func TestDocumentJSONShape(t *testing.T) {
	verify := true
	data, err := json.Marshal(&Document{
		Token:        "t",
		APIURL:       "u",
		DefaultTeam:  "d",
		OutputFormat: "json",
		VerifySSL:    &verify,
	})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"token", "api_url", "default_team", "output_format", "verify_ssl"} {
		assert.Contains(t, raw, key)
	}
}

func TestResolvePrecedence(t *testing.T) {
	store := testStore(t)
	require.NoError(t, store.Save(&Document{
		APIURL:      "https://file.example.com/api",
		DefaultTeam: "file-team",
	}))

	t.Setenv("REDIACC_API_URL", "https://env.example.com/api")
	t.Setenv("REDIACC_TEAM", "env-team")

	// Env beats file
	settings, err := Resolve(store, Flags{})
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com/api", settings.APIURL)
	assert.Equal(t, "env-team", settings.Team)

	// Flag beats env
	settings, err = Resolve(store, Flags{APIURL: "https://flag.example.com/api", Team: "flag-team"})
	require.NoError(t, err)
	assert.Equal(t, "https://flag.example.com/api", settings.APIURL)
	assert.Equal(t, "flag-team", settings.Team)
}

func TestResolveDefaults(t *testing.T) {
	store := testStore(t)

	settings, err := Resolve(store, Flags{})
	require.NoError(t, err)
	assert.Equal(t, DefaultAPIURL, settings.APIURL)
	assert.Equal(t, "table", settings.OutputFormat)
	assert.True(t, settings.VerifySSL)
	assert.False(t, settings.Dev)
}

func TestResolveVerifySSLToggle(t *testing.T) {
	store := testStore(t)
	t.Setenv("REDIACC_VERIFY_SSL", "false")

	settings, err := Resolve(store, Flags{})
	require.NoError(t, err)
	assert.False(t, settings.VerifySSL)

	settings, err = Resolve(store, Flags{VerifySSL: "true"})
	require.NoError(t, err)
	assert.True(t, settings.VerifySSL)
}

func TestResolveTrimsTrailingSlash(t *testing.T) {
	store := testStore(t)

	settings, err := Resolve(store, Flags{APIURL: "https://api.example.com/api/"})
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/api", settings.APIURL)
}
