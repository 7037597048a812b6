package cryptoprim

import (
	"bytes"
	"testing"
)

func TestDeriveKeyDeterministic(t *testing.T) {
	salt := []byte("0123456789abcdef")
	k1 := DeriveKey("correct horse", salt)
	k2 := DeriveKey("correct horse", salt)
	if !bytes.Equal(k1, k2) {
		t.Fatal("DeriveKey should be deterministic for the same password and salt")
	}
	if len(k1) != KeySize {
		t.Fatalf("key length = %d, want %d", len(k1), KeySize)
	}
}

func TestDeriveKeyDiffersBySaltAndPassword(t *testing.T) {
	salt1 := []byte("0123456789abcdef")
	salt2 := []byte("fedcba9876543210")

	if bytes.Equal(DeriveKey("pw", salt1), DeriveKey("pw", salt2)) {
		t.Fatal("different salts must derive different keys")
	}
	if bytes.Equal(DeriveKey("pw1", salt1), DeriveKey("pw2", salt1)) {
		t.Fatal("different passwords must derive different keys")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	salt, err := GenerateSalt()
	if err != nil {
		t.Fatal(err)
	}
	key := DeriveKey("hunter2", salt)

	plaintext := []byte("the quick brown fox jumps over the lazy dog")
	nonce, ciphertext, err := Encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if len(nonce) != 12 {
		t.Fatalf("nonce length = %d, want 12", len(nonce))
	}
	if len(ciphertext) != len(plaintext)+16 {
		t.Fatalf("ciphertext length = %d, want %d", len(ciphertext), len(plaintext)+16)
	}

	got, err := Decrypt(key, nonce, ciphertext)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch: got %q, want %q", got, plaintext)
	}
}

func TestDecryptWrongKeyFails(t *testing.T) {
	salt, _ := GenerateSalt()
	key := DeriveKey("right-password", salt)
	wrongKey := DeriveKey("wrong-password", salt)

	nonce, ciphertext, err := Encrypt(key, []byte("payload"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := Decrypt(wrongKey, nonce, ciphertext); err == nil {
		t.Fatal("expected authentication failure with wrong key")
	}
}

func TestDecryptTamperedCiphertextFails(t *testing.T) {
	salt, _ := GenerateSalt()
	key := DeriveKey("password", salt)

	nonce, ciphertext, err := Encrypt(key, []byte("payload"))
	if err != nil {
		t.Fatal(err)
	}
	ciphertext[0] ^= 0xFF

	if _, err := Decrypt(key, nonce, ciphertext); err == nil {
		t.Fatal("expected authentication failure on tampered ciphertext")
	}
}

func TestGenerateNonceUnique(t *testing.T) {
	n1, err := GenerateNonce()
	if err != nil {
		t.Fatal(err)
	}
	n2, err := GenerateNonce()
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(n1, n2) {
		t.Fatal("two generated nonces should not collide")
	}
}
