package cryptoprim

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/kenneth/rbuvault/internal/containererr"
)

const (
	// KeySize is the derived key size in bytes (AES-256).
	KeySize = 32
	// PBKDF2Iterations is fixed and version-locked: changing it changes the
	// wire format's key derivation for every container written with this
	// version. A future format version may raise it; this build never does.
	PBKDF2Iterations = 600000
)

// DeriveKey derives a 256-bit AES key from password and salt using
// PBKDF2-HMAC-SHA-256. salt must be exactly SaltSize bytes, matching the
// value stored in the container header.
func DeriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, PBKDF2Iterations, KeySize, sha256.New)
}

// ZeroBytes overwrites b with zeros in place. Callers use it to scrub a
// derived key or a decoded plaintext buffer once an encode or decode
// operation no longer needs it, per the container's "keys live only for
// the duration of one encode or decode" lifetime rule.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// GenerateSalt returns a fresh random salt sized for the container header.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, containererr.Wrap(containererr.IoError, "generating salt", err)
	}
	return salt, nil
}

// GenerateNonce returns a fresh random 96-bit GCM nonce.
func GenerateNonce() ([]byte, error) {
	nonce := make([]byte, 12)
	if _, err := rand.Read(nonce); err != nil {
		return nil, containererr.Wrap(containererr.IoError, "generating nonce", err)
	}
	return nonce, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("constructing AES cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// Encrypt seals plaintext under key with a freshly generated nonce, returning
// the nonce and the ciphertext (with the 16-byte GCM tag appended).
func Encrypt(key, plaintext []byte) (nonce, ciphertext []byte, err error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, nil, containererr.Wrap(containererr.IoError, "constructing cipher", err)
	}

	nonce, err = GenerateNonce()
	if err != nil {
		return nil, nil, err
	}

	ciphertext = gcm.Seal(nil, nonce, plaintext, nil)
	return nonce, ciphertext, nil
}

// Decrypt opens ciphertext (with trailing GCM tag) under key and nonce. The
// caller is responsible for distinguishing InvalidPassword from Corrupt
// based on chunk position; Decrypt itself only reports the GCM failure.
func Decrypt(key, nonce, ciphertext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, containererr.Wrap(containererr.IoError, "constructing cipher", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("gcm open: %w", err)
	}
	return plaintext, nil
}
