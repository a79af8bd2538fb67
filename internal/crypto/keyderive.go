package encryption

import (
	"crypto/hkdf"
	"crypto/sha256"
	"fmt"
)

// DeriveKey derives a purpose-bound AES-256 key from masterKey using
// HKDF-SHA256. The same (masterKey, purpose) always yields the same key,
// and different purposes yield independent keys.
func DeriveKey(masterKey []byte, purpose string) ([]byte, error) {
	if len(masterKey) != KeySize {
		return nil, fmt.Errorf("master key must be %d bytes, got %d", KeySize, len(masterKey))
	}
	if purpose == "" {
		return nil, fmt.Errorf("purpose is required")
	}
	key, err := hkdf.Key(sha256.New, masterKey, nil, purpose, KeySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key material: %w", err)
	}
	return key, nil
}
