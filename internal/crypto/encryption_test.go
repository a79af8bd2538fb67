package encryption

import (
	"bytes"
	"errors"
	"testing"
)

// TestGenerateKey tests that key generation produces correct-length keys
func TestGenerateKey(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() failed: %v", err)
	}

	if len(key) != KeySize {
		t.Errorf("Expected key length %d, got %d", KeySize, len(key))
	}

	// Verify randomness: generate two keys, they should be different
	key2, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() second call failed: %v", err)
	}

	if bytes.Equal(key, key2) {
		t.Error("Two consecutive key generations produced identical keys (highly unlikely!)")
	}
}

// TestSealOpen tests that a sealed value opens with the same key and context
func TestSealOpen(t *testing.T) {
	key, _ := GenerateKey()
	plaintext := []byte(`{"items":[1,2,3]}`)

	nonce, ct, err := Seal(key, plaintext, []byte("inventory_1"))
	if err != nil {
		t.Fatalf("Seal() failed: %v", err)
	}
	if bytes.Contains(ct, plaintext) {
		t.Error("Ciphertext contains the plaintext")
	}

	got, err := Open(key, nonce, ct, []byte("inventory_1"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("Expected %q, got %q", plaintext, got)
	}
}

// TestOpenRejectsWrongKeyOrContext tests authentication failures
func TestOpenRejectsWrongKeyOrContext(t *testing.T) {
	key, _ := GenerateKey()
	other, _ := GenerateKey()

	nonce, ct, err := Seal(key, []byte("42"), []byte("valid_test"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := Open(other, nonce, ct, []byte("valid_test")); !errors.Is(err, ErrDecrypt) {
		t.Errorf("Expected ErrDecrypt for wrong key, got %v", err)
	}
	if _, err := Open(key, nonce, ct, []byte("other")); !errors.Is(err, ErrDecrypt) {
		t.Errorf("Expected ErrDecrypt for wrong context, got %v", err)
	}
	if _, err := Open(key, nonce[:4], ct, []byte("valid_test")); !errors.Is(err, ErrDecrypt) {
		t.Errorf("Expected ErrDecrypt for short nonce, got %v", err)
	}
	if _, _, err := Seal(key[:8], []byte("x"), nil); err == nil {
		t.Error("Expected error for short key")
	}
}

// TestDeriveKey tests determinism and purpose separation
func TestDeriveKey(t *testing.T) {
	master, _ := GenerateKey()

	a1, err := DeriveKey(master, "cache")
	if err != nil {
		t.Fatalf("DeriveKey() failed: %v", err)
	}
	a2, _ := DeriveKey(master, "cache")
	b, _ := DeriveKey(master, "other")

	if len(a1) != KeySize {
		t.Errorf("Expected key length %d, got %d", KeySize, len(a1))
	}
	if !bytes.Equal(a1, a2) {
		t.Error("Expected deterministic derivation")
	}
	if bytes.Equal(a1, b) {
		t.Error("Expected different purposes to yield different keys")
	}
	if _, err := DeriveKey(master[:16], "cache"); err == nil {
		t.Error("Expected error for short master key")
	}
}
