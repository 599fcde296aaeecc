// Package crypto provides the password-based key derivation and AEAD
// sealing used to gate the data store and to protect the key bundles it
// persists. It is the concrete mechanism behind create(password)/open(password).
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	saltSize = 16
	keySize  = chacha20poly1305.KeySize

	// argon2id parameters, tuned for an interactive desktop unlock rather
	// than a server-side login (sub-second on commodity hardware).
	argonTime    = 1
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
)

// DerivedKey is a key derived from a password and a salt via argon2id. The
// salt must be persisted alongside any ciphertext sealed with it so the same
// key can be re-derived on open.
type DerivedKey struct {
	Salt []byte
	Key  []byte
}

// NewSalt generates a fresh random salt for a new create(password) call.
func NewSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKey derives a symmetric key from password and salt.
func DeriveKey(password string, salt []byte) *DerivedKey {
	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, keySize)
	return &DerivedKey{Salt: salt, Key: key}
}

// Equal constant-time compares two derived keys. Used to verify a password
// against a store that is already open: the key is re-derived from the
// stored salt and compared against the key held in memory, without
// decrypting anything. A first open instead unseals the stored verifier.
func (k *DerivedKey) Equal(other []byte) bool {
	return subtle.ConstantTimeCompare(k.Key, other) == 1
}

// Seal encrypts plaintext with the derived key using ChaCha20-Poly1305,
// returning nonce||ciphertext.
func Seal(key []byte, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("init aead: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a nonce||ciphertext blob produced by Seal. It returns an
// error if the key is wrong or the blob has been tampered with.
func Open(key []byte, sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("init aead: %w", err)
	}
	if len(sealed) < aead.NonceSize() {
		return nil, fmt.Errorf("sealed blob too short")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}
