package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"github.com/google/uuid"
)

const (
	credentialRawSize    = 48
	credentialSecretSize = 32
)

// ErrCredentialMalformed is returned when a presented refresh credential
// cannot be decoded into a session ID and secret.
var ErrCredentialMalformed = errors.New("malformed refresh credential")

// NewCredentialSecret returns fresh random secret material for a refresh
// credential. Only the SHA-256 of the secret is ever persisted.
func NewCredentialSecret() ([credentialSecretSize]byte, error) {
	var secret [credentialSecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

// HashCredentialSecret derives the stored one-way hash of a credential secret.
func HashCredentialSecret(secret [credentialSecretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

// EncodeCredential packs a session ID and secret into the opaque refresh
// credential handed to clients: base64url(sessionID ‖ secret), no padding.
func EncodeCredential(sessionID string, secret [credentialSecretSize]byte) (string, error) {
	sid, err := uuid.Parse(sessionID)
	if err != nil {
		return "", err
	}

	var raw [credentialRawSize]byte
	copy(raw[:len(sid)], sid[:])
	copy(raw[len(sid):], secret[:])

	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// DecodeCredential is the inverse of [EncodeCredential].
func DecodeCredential(credential string) (string, [credentialSecretSize]byte, error) {
	var secret [credentialSecretSize]byte

	raw, err := base64.RawURLEncoding.DecodeString(credential)
	if err != nil {
		return "", secret, ErrCredentialMalformed
	}
	if len(raw) != credentialRawSize {
		return "", secret, ErrCredentialMalformed
	}

	var sid uuid.UUID
	copy(sid[:], raw[:len(sid)])
	copy(secret[:], raw[len(sid):])

	return sid.String(), secret, nil
}
