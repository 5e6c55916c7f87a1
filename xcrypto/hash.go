package xcrypto

import (
	"crypto/sha256"
	"hash"
)

func newSHA256() hash.Hash { return sha256.New() }

// HashAll hashes the concatenation of a list of byte strings. It is
// used throughout the shuffle and bulk round for commitments (hash of
// a server ciphertext before reveal) and Fiat-Shamir challenges (hash
// of the running transcript).
func HashAll(parts ...[]byte) []byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}
