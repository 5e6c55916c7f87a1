// Package xcrypto collects the cryptographic primitives shared by
// every round: long-term signing and Diffie-Hellman keys, verifiable
// broadcast signatures, per-phase PRG stretching for the bulk round,
// and the safe-prime group used by the Neff shuffle.
package xcrypto

import (
	cryptorand "crypto/rand"

	"golang.org/x/crypto/ed25519"
	"golang.org/x/crypto/nacl/box"

	"github.com/dedis/dissent/errors"
)

// Identity holds one participant's long-term key material: an ed25519
// signing key for authentication (verifiable broadcast, verdict
// certificates) and a Curve25519 Diffie-Hellman key for deriving the
// pairwise secrets the bulk round stretches into per-phase PRGs.
type Identity struct {
	SignPub  ed25519.PublicKey
	signPriv ed25519.PrivateKey

	DHPub  *[32]byte
	dhPriv *[32]byte
}

// GenerateIdentity creates a fresh signing key and DH key pair.
func GenerateIdentity() (*Identity, error) {
	signPub, signPriv, err := ed25519.GenerateKey(cryptorand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "generating signing key")
	}
	dhPub, dhPriv, err := box.GenerateKey(cryptorand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "generating DH key")
	}
	return &Identity{
		SignPub:  signPub,
		signPriv: signPriv,
		DHPub:    dhPub,
		dhPriv:   dhPriv,
	}, nil
}

// Sign signs data with the identity's long-term signing key.
func (id *Identity) Sign(data []byte) []byte {
	return ed25519.Sign(id.signPriv, data)
}

// Verify checks a signature against a verification key (usually read
// from the Group roster, not from this Identity).
func Verify(verifyKey ed25519.PublicKey, data, sig []byte) bool {
	if len(verifyKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(verifyKey, data, sig)
}

// SharedSecret derives the pairwise Diffie-Hellman secret with a peer
// given their DH public key. The result is precomputed (Curve25519
// scalar multiplication followed by HSalsa20), matching nacl/box's
// own key-agreement construction.
func (id *Identity) SharedSecret(peerPub *[32]byte) *[32]byte {
	shared := new([32]byte)
	box.Precompute(shared, peerPub, id.dhPriv)
	return shared
}
