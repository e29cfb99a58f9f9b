// Package vault implements the encrypted, entity-scoped secret blobs used
// by organizations, teams, machines, repositories, and storages.
//
// A blob is base64(salt[16] || nonce[12] || ciphertext+tag) where the key is
// derived with PBKDF2-SHA256 (100 000 iterations) from the master password.
// This matches the format the platform's other clients produce, so blobs are
// portable across tools.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"github.com/rediacc/desktop/internal/errors"
)

const (
	saltSize   = 16
	nonceSize  = 12
	keySize    = 32
	kdfRounds  = 100_000
	minBlobLen = saltSize + nonceSize + 16 // 16 = GCM tag of an empty plaintext
)

// Decrypt opens an encrypted blob with the given master password. It never
// returns a partial payload: either the full plaintext authenticates or the
// call fails with a VAULT error.
func Decrypt(blob, masterPassword string) ([]byte, error) {
	combined, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrVault,
			"Vault blob is not valid base64",
			"The vault content may be corrupt. Re-fetch it from the API.")
	}
	if len(combined) < minBlobLen {
		return nil, errors.New(errors.ErrVault,
			"Vault blob is too short to contain a ciphertext",
			"The vault content may be corrupt. Re-fetch it from the API.")
	}

	salt := combined[:saltSize]
	nonce := combined[saltSize : saltSize+nonceSize]
	ciphertext := combined[saltSize+nonceSize:]

	key := pbkdf2.Key([]byte(masterPassword), salt, kdfRounds, keySize, sha256.New)
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrVault,
			"Couldn't decrypt the vault",
			"Check that your master password matches the one the vault was encrypted with.")
	}
	return plaintext, nil
}

// Encrypt seals a payload under the master password. Every call draws a
// fresh salt and nonce, so encrypting the same payload twice never yields
// the same blob; nonce reuse under a derived key would break GCM.
func Encrypt(payload []byte, masterPassword string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", errors.WrapWithCode(err, errors.ErrVault,
			"Couldn't draw randomness for vault encryption", "")
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.WrapWithCode(err, errors.ErrVault,
			"Couldn't draw randomness for vault encryption", "")
	}

	key := pbkdf2.Key([]byte(masterPassword), salt, kdfRounds, keySize, sha256.New)
	aead, err := newGCM(key)
	if err != nil {
		return "", err
	}

	ciphertext := aead.Seal(nil, nonce, payload, nil)

	combined := make([]byte, 0, len(salt)+len(nonce)+len(ciphertext))
	combined = append(combined, salt...)
	combined = append(combined, nonce...)
	combined = append(combined, ciphertext...)
	return base64.StdEncoding.EncodeToString(combined), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrVault,
			"Couldn't initialize the vault cipher", "")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrVault,
			"Couldn't initialize the vault cipher", "")
	}
	return aead, nil
}

// IsEncrypted reports whether a vault content string looks like an encrypted
// blob rather than plain JSON. Servers return either form depending on
// whether the organization has vault encryption enabled.
func IsEncrypted(value string) bool {
	if len(value) < 20 {
		return false
	}
	if json.Valid([]byte(value)) {
		return false
	}
	decoded, err := base64.StdEncoding.DecodeString(value)
	return err == nil && len(decoded) >= keySize
}
