package vault

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/rediacc/desktop/internal/errors"
)

// OwnerKind identifies which entity a vault belongs to.
type OwnerKind string

const (
	OwnerOrganization OwnerKind = "organization"
	OwnerTeam         OwnerKind = "team"
	OwnerMachine      OwnerKind = "machine"
	OwnerRepository   OwnerKind = "repository"
	OwnerStorage      OwnerKind = "storage"
)

// Well-known payload fields. Everything else in a vault is passthrough
// payload the CLI never interprets.
const (
	FieldSSHPrivateKey = "SSH_PRIVATE_KEY"
	FieldHostEntry     = "host_entry"
	FieldIP            = "ip"
	FieldUser          = "user"
	FieldPort          = "port"
	FieldUniversalUser = "universal_user"
	FieldDatastore     = "datastore"
	FieldMountPath     = "mount_path"
)

// Secret is a decrypted, entity-scoped vault payload. It lives only in
// memory: fetched on demand, never persisted decrypted, and dropped when the
// operation ends.
type Secret struct {
	OwnerKind OwnerKind
	OwnerName string
	payload   map[string]json.RawMessage
}

// ParseSecret builds a Secret from decrypted vault JSON. The payload shape
// varies per owner kind, so everything is kept as raw JSON and read through
// typed accessors.
func ParseSecret(kind OwnerKind, name string, payload []byte) (*Secret, error) {
	fields := make(map[string]json.RawMessage)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &fields); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrVault,
				"Vault payload for "+string(kind)+" '"+name+"' is not a JSON object",
				"The vault content may be corrupt.")
		}
	}
	return &Secret{OwnerKind: kind, OwnerName: name, payload: fields}, nil
}

// HasKeyMaterial reports whether the secret carries an SSH private key.
func (s *Secret) HasKeyMaterial() bool {
	_, ok := s.payload[FieldSSHPrivateKey]
	return ok
}

// RawPayload re-serializes the full payload. Used when a vault is passed
// through to the API untouched.
func (s *Secret) RawPayload() ([]byte, error) {
	return json.Marshal(s.payload)
}

// String returns the named field as a string, or "" when absent or not a
// JSON string.
func (s *Secret) String(field string) string {
	raw, ok := s.payload[field]
	if !ok {
		return ""
	}
	var out string
	if err := json.Unmarshal(raw, &out); err != nil {
		return ""
	}
	return out
}

// Int returns the named field as an int with a default for absent fields.
// Vault JSON sometimes carries ports as strings, so both forms are accepted.
func (s *Secret) Int(field string, def int) int {
	raw, ok := s.payload[field]
	if !ok {
		return def
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		var parsed int
		if err := json.Unmarshal([]byte(str), &parsed); err == nil {
			return parsed
		}
	}
	return def
}

// PrivateKeyPEM returns the SSH private key normalized to PEM form:
// base64 unwrapped if needed, CRLF line endings converted, and a trailing
// newline guaranteed. SSH tooling rejects keys that miss any of these.
func (s *Secret) PrivateKeyPEM() (string, error) {
	key := s.String(FieldSSHPrivateKey)
	if key == "" {
		return "", errors.New(errors.ErrVault,
			"No SSH key in the "+string(s.OwnerKind)+" vault for '"+s.OwnerName+"'",
			"Ask your administrator to add "+FieldSSHPrivateKey+" to the vault.")
	}
	return NormalizePrivateKey(key)
}

// HostEntry returns the pinned known_hosts line for a machine vault,
// unwrapping base64 when the stored form has no spaces (entries always
// contain at least "host keytype key").
func (s *Secret) HostEntry() string {
	entry := s.String(FieldHostEntry)
	if entry == "" {
		return ""
	}
	if !strings.Contains(entry, " ") && !strings.Contains(entry, "\n") {
		if decoded, err := base64.StdEncoding.DecodeString(entry); err == nil {
			entry = string(decoded)
		}
	}
	entry = strings.ReplaceAll(entry, "\r\n", "\n")
	entry = strings.ReplaceAll(entry, "\r", "\n")
	return strings.TrimRight(entry, "\n")
}

// NormalizePrivateKey validates and canonicalizes key material from a vault
// field. Keys may arrive base64-wrapped (single line, no PEM markers).
func NormalizePrivateKey(key string) (string, error) {
	if !strings.HasPrefix(key, "-----BEGIN") && !strings.Contains(key, "\n") {
		decoded, err := base64.StdEncoding.DecodeString(key)
		if err != nil {
			return "", errors.WrapWithCode(err, errors.ErrVault,
				"SSH key in vault is neither PEM nor base64",
				"Re-upload the key to the vault.")
		}
		key = string(decoded)
	}

	key = strings.ReplaceAll(key, "\r\n", "\n")
	key = strings.ReplaceAll(key, "\r", "\n")
	key = strings.TrimRight(key, "\n") + "\n"

	if !strings.Contains(key, "-----BEGIN") || !strings.Contains(key, "-----END") {
		return "", errors.New(errors.ErrVault,
			"SSH key in vault has no PEM markers",
			"Re-upload the key to the vault.")
	}
	return key, nil
}
