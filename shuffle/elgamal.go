// Package shuffle implements the verifiable shuffle round: servers take
// turns applying a secret permutation and a layer of ElGamal
// re-encryption/partial-decryption to a list of client ciphertexts,
// each accompanied by a Fiat-Shamir transcript a server's peers (and
// any client) can check without learning the permutation. It mirrors
// the per-server "shuffle step" of the original NeffShuffle state
// machine, generalized from the single-purpose key shuffle to a
// tagged union over key shuffles, data shuffles, and a null shuffle
// used when a round has too few participants to shuffle usefully.
package shuffle

import (
	"math/big"

	"github.com/dedis/dissent/errors"
	"github.com/dedis/dissent/xcrypto/dsagroup"
)

// Ciphertext is a single ElGamal ciphertext (Gamma, Enc), encrypted
// under the product of a set of server public keys. Because all
// servers share the same Gamma term (g^r), a server can strip its own
// layer by dividing Enc by Gamma^x without knowing r, letting servers
// peel layers one at a time during the shuffle instead of needing a
// joint decryption at the end.
type Ciphertext struct {
	Gamma *big.Int
	Enc   *big.Int
}

// Encode turns a byte payload into a group element suitable for
// EncryptUnderKeys. Payloads must be shorter than the group modulus;
// NeffShuffle's keys and the bulk round's per-phase seeds both fit
// comfortably inside a 2048-bit or even 512-bit modulus.
func Encode(params *dsagroup.Params, payload []byte) (*big.Int, error) {
	m := new(big.Int).SetBytes(payload)
	if m.Cmp(params.P) >= 0 {
		return nil, errors.New("shuffle: payload too large for group modulus")
	}
	return m, nil
}

// EncryptUnderKeys builds a single ElGamal ciphertext encrypting m
// under the combined public key formed by the product of serverKeys,
// equivalent to serially layer-encrypting m under each server's public
// element in reverse order: Gamma = g^r, Enc = m * (prod serverKeys)^r.
func EncryptUnderKeys(params *dsagroup.Params, serverKeys []*big.Int, m *big.Int) (*Ciphertext, error) {
	r, err := params.RandomExponent(nil)
	if err != nil {
		return nil, errors.Wrap(err, "shuffle: sampling ephemeral exponent")
	}
	combined := big.NewInt(1)
	for _, y := range serverKeys {
		combined = params.MulMod(combined, y)
	}
	gamma := params.Exp(params.G, r)
	enc := params.MulMod(m, params.Exp(combined, r))
	return &Ciphertext{Gamma: gamma, Enc: enc}, nil
}

// PartialDecryptFactor returns Gamma^x, the multiplicative factor a
// server with private exponent x must divide out of Enc to strip its
// own encryption layer. It depends only on the server's own secret and
// the ciphertext's Gamma term, never on the ephemeral r the client
// used, which is what lets servers peel layers in any order without
// coordinating on r.
func PartialDecryptFactor(params *dsagroup.Params, c *Ciphertext, x *big.Int) *big.Int {
	return params.Exp(c.Gamma, x)
}

// StripLayer removes a previously computed partial-decrypt factor from
// a ciphertext's Enc term.
func StripLayer(params *dsagroup.Params, c *Ciphertext, factor *big.Int) *Ciphertext {
	return &Ciphertext{
		Gamma: new(big.Int).Set(c.Gamma),
		Enc:   params.MulMod(c.Enc, params.InverseMod(factor)),
	}
}

// ReRandomize rerandomizes a ciphertext so it is unlinkable to its
// pre-rerandomization form, given the product of the public keys of
// servers that have not yet stripped their layer (remainingKeys): the
// new Gamma picks up a g^delta factor, and Enc must pick up a matching
// remainingKeys^delta factor so later servers can still peel their
// layers correctly.
func ReRandomize(params *dsagroup.Params, c *Ciphertext, remainingKeys *big.Int, delta *big.Int) *Ciphertext {
	return &Ciphertext{
		Gamma: params.MulMod(c.Gamma, params.Exp(params.G, delta)),
		Enc:   params.MulMod(c.Enc, params.Exp(remainingKeys, delta)),
	}
}

// Decode recovers the final cleartext payload once every server's
// layer has been stripped (Enc should now equal m directly).
func Decode(m *big.Int) []byte {
	return m.Bytes()
}
