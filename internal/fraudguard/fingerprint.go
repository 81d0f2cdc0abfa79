package fraudguard

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Hasher derives deterministic IP fingerprints with a keyed BLAKE2b hash.
// Deterministic so the same address maps to the same rate-limit key; keyed so
// the stored fingerprint cannot be reversed to an address by table lookup.
type Hasher struct {
	key []byte
}

// NewHasher validates the key against BLAKE2b's limits.
func NewHasher(key string) (*Hasher, error) {
	if key == "" {
		return nil, fmt.Errorf("fingerprint key is required")
	}
	if len(key) > blake2b.Size {
		return nil, fmt.Errorf("fingerprint key must be at most %d bytes", blake2b.Size)
	}
	return &Hasher{key: []byte(key)}, nil
}

// Fingerprint hashes a client address into its stored form.
func (h *Hasher) Fingerprint(clientIP string) string {
	mac, _ := blake2b.New256(h.key) // key length validated in NewHasher
	mac.Write([]byte(clientIP))
	return hex.EncodeToString(mac.Sum(nil))
}
