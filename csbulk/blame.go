package csbulk

import (
	"crypto/rand"
	"math/big"

	"github.com/dedis/dissent/errors"
	"github.com/dedis/dissent/group"
	"github.com/dedis/dissent/xcrypto/dsagroup"
)

// BlameBit is one server's claimed contribution to a single disputed
// bit position, revealed during the bit-pair exchange step so every
// other server can recompute the slot locally and see which server's
// claim disagrees with what it actually broadcast.
type BlameBit struct {
	Accused group.ID
	Bit     byte
}

// RebuttalProof is a non-interactive Schnorr proof of knowledge of
// the discrete log (base G of a dsagroup group) of an accused server's
// public key. It does not involve the pairwise DH secret, and it is a
// single-base proof, not a two-base DLEQ.
type RebuttalProof struct {
	Claimed *big.Int // G^secretExp as computed by the prover; VerifyRebuttal does not check it
	T       *big.Int
	S       *big.Int
}

// ProveRebuttal builds a Schnorr proof that the prover knows secretExp
// with G^secretExp == accusedPub: commitment T = G^w, a challenge
// derived from (accusedPub, T), and response S = w + challenge*secretExp
// mod Q.
func ProveRebuttal(params *dsagroup.Params, secretExp *big.Int, accusedPub *big.Int) (*RebuttalProof, error) {
	w, err := params.RandomExponent(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "csbulk: sampling rebuttal nonce")
	}
	t := params.Exp(params.G, w)
	challenge := fiatShamirChallenge(params, accusedPub, t)
	s := params.AddExp(w, params.MulExp(challenge, secretExp))
	return &RebuttalProof{Claimed: params.Exp(params.G, secretExp), T: t, S: s}, nil
}

// VerifyRebuttal checks that T and S satisfy the Schnorr verification
// equation G^S == T * accusedPub^challenge, with the challenge derived
// the same way the prover derived it. proof.Claimed is not consulted.
func VerifyRebuttal(params *dsagroup.Params, accusedPub *big.Int, proof *RebuttalProof) bool {
	challenge := fiatShamirChallenge(params, accusedPub, proof.T)
	lhs := params.Exp(params.G, proof.S)
	rhs := params.MulMod(proof.T, params.Exp(accusedPub, challenge))
	return lhs.Cmp(rhs) == 0
}

func fiatShamirChallenge(params *dsagroup.Params, parts ...*big.Int) *big.Int {
	buf := make([]byte, 0, 64*len(parts))
	for _, p := range parts {
		buf = append(buf, p.Bytes()...)
	}
	h := new(big.Int).SetBytes(buf)
	return new(big.Int).Mod(h, params.Q)
}

// Verdict is the signed outcome of a blame round: either the accuser
// was vindicated (the accused server really did disrupt the slot) or
// the accusation itself was unfounded, in which case the accuser is
// the one penalized.
type Verdict struct {
	Accused    group.ID
	Accuser    group.ID
	Vindicated bool
	// Signatures collects every server's signature over the verdict,
	// analogous to VerifiableBroadcast but specific to blame outcomes
	// since a verdict must outlive the round it was raised in (it
	// feeds the roster's next membership update).
	Signatures map[group.ID][]byte
}

// Resolve decides a blame dispute from the revealed bit claims: if the
// accused server's claimed bit for the disputed slot does not match
// the bit the accuser recomputes from its own pairwise keystream, the
// accusation is vindicated.
func Resolve(accuser, accused group.ID, claimedBit, recomputedBit byte) *Verdict {
	return &Verdict{
		Accused:    accused,
		Accuser:    accuser,
		Vindicated: claimedBit != recomputedBit,
		Signatures: make(map[group.ID][]byte),
	}
}

// Sign adds a server's signature to the verdict. A verdict is final
// once every server in the roster's subgroup has signed it, matching
// the round package's VerifiableBroadcast quorum-of-one-signature-each
// pattern used for every other protocol message.
func (v *Verdict) Sign(server group.ID, sig []byte) {
	v.Signatures[server] = sig
}

// Complete reports whether every server listed in servers has signed
// the verdict.
func (v *Verdict) Complete(servers []group.ID) bool {
	for _, s := range servers {
		if _, ok := v.Signatures[s]; !ok {
			return false
		}
	}
	return true
}
