package shuffle

import (
	"math/big"

	"github.com/dedis/dissent/errors"
	"github.com/dedis/dissent/xcrypto"
	"github.com/dedis/dissent/xcrypto/dsagroup"
)

// DecryptionProof is a Chaum-Pedersen DLEQ proof that a revealed
// partial-decrypt factor (Factor = in[i].Gamma^x) was computed with
// the same secret exponent x as the server's public key y = g^x, for
// input position i. Revealing Factor is harmless: knowing
// in[i].Gamma^x does not reveal x, and any verifier can already
// recompute Enc_after = Enc_before / Factor to confirm the
// division itself was applied correctly; the DLEQ is what rules out a
// server substituting an arbitrary Factor that makes the arithmetic
// balance without actually corresponding to its claimed key.
type DecryptionProof struct {
	Factor *big.Int
	T1     *big.Int // g^w
	T2     *big.Int // in[i].Gamma^w
	S      *big.Int // w + challenge*x
}

// Transcript is the Fiat-Shamir-derived proof that one server's
// shuffle step (permute + re-randomize + partially decrypt) was
// applied honestly, without revealing the permutation. It combines
// three sub-proofs: per-input decryption correctness (Outputs), a
// "simple k-shuffle" argument that a committed set of weights is a
// permutation of the canonical per-input weights (D/Theta/Alpha/Close),
// and an aggregate re-encryption equality tying the committed,
// permuted weights to the actual output ciphertexts (U/W/V/Sigma/Tau
// per output, Delta0/Delta1/AggS1/AggS2 for the aggregate check).
type Transcript struct {
	Gamma []*big.Int // g^{delta_j}, the rerandomization commitment folded into out[j].Gamma

	D    []*big.Int // Pedersen commitments to the hidden, permuted per-output weights
	C    []*big.Int // out[j].Enc ^ {hidden weight}, revealed
	Gout []*big.Int // out[j].Gamma ^ {hidden weight}, revealed

	U     []*big.Int
	W     []*big.Int
	V     []*big.Int
	Sigma []*big.Int
	Tau   []*big.Int

	Theta []*big.Int
	Alpha []*productResponse
	Close *big.Int // opens the k-shuffle chain's final commitment against the expected public product

	Delta0 *big.Int
	Delta1 *big.Int
	AggS1  *big.Int
	AggS2  *big.Int

	Outputs []DecryptionProof
}

func inputWeights(params *dsagroup.Params, seed []byte, k int) []*big.Int {
	weights := make([]*big.Int, k)
	for i := 0; i < k; i++ {
		h := xcrypto.HashAll(seed, []byte("w"), big.NewInt(int64(i)).Bytes())
		w := new(big.Int).SetBytes(h)
		weights[i] = w.Mod(w, params.Q)
	}
	return weights
}

func fiatShamirChallenge(params *dsagroup.Params, seed []byte, parts ...[]byte) *big.Int {
	h := xcrypto.HashAll(append([][]byte{seed}, parts...)...)
	c := new(big.Int).SetBytes(h)
	return c.Mod(c, params.Q)
}

func encodeAll(params *dsagroup.Params, elems []*big.Int) []byte {
	var buf []byte
	for _, e := range elems {
		buf = append(buf, params.EncodeElement(e)...)
	}
	return buf
}

// ProveShuffleStep applies permutation perm to in, partially decrypts
// with the server's secret x (public key y = g^x), re-randomizes
// against remainingKeys (the product of public keys of servers that
// have not yet stripped their layer), and produces a Transcript a peer
// can verify without learning perm. perm[j] is the input position that
// output position j was produced from.
func ProveShuffleStep(params *dsagroup.Params, seed []byte, x, y, remainingKeys *big.Int, in []*Ciphertext, perm []int) ([]*Ciphertext, *Transcript, error) {
	k := len(in)
	if len(perm) != k {
		return nil, nil, errors.New("shuffle: permutation length mismatch")
	}

	weights := inputWeights(params, seed, k)

	factors := make([]*big.Int, k)
	decProofs := make([]DecryptionProof, k)
	decW := make([]*big.Int, k)
	for i := 0; i < k; i++ {
		factors[i] = PartialDecryptFactor(params, in[i], x)
		w, err := params.RandomExponent(nil)
		if err != nil {
			return nil, nil, err
		}
		decW[i] = w
		decProofs[i].Factor = factors[i]
		decProofs[i].T1 = params.Exp(params.G, w)
		decProofs[i].T2 = params.Exp(in[i].Gamma, w)
	}

	delta := make([]*big.Int, k)
	gammaComm := make([]*big.Int, k)
	out := make([]*Ciphertext, k)
	for j := 0; j < k; j++ {
		src := in[perm[j]]
		stripped := StripLayer(params, src, factors[perm[j]])
		d, err := params.RandomExponent(nil)
		if err != nil {
			return nil, nil, err
		}
		delta[j] = d
		gammaComm[j] = params.Exp(params.G, d)
		out[j] = ReRandomize(params, stripped, remainingKeys, d)
	}

	dRand := make([]*big.Int, k)
	dComm := make([]*big.Int, k)
	eprime := make([]*big.Int, k) // e'_j = weights[perm[j]]
	h := pedersenHCache(params)
	for j := 0; j < k; j++ {
		r, err := params.RandomExponent(nil)
		if err != nil {
			return nil, nil, err
		}
		dRand[j] = r
		eprime[j] = weights[perm[j]]
		dComm[j] = commit(params, h, eprime[j], r)
	}

	cVals := make([]*big.Int, k)
	goutVals := make([]*big.Int, k)
	for j := 0; j < k; j++ {
		cVals[j] = params.Exp(out[j].Enc, eprime[j])
		goutVals[j] = params.Exp(out[j].Gamma, eprime[j])
	}

	challenge := fiatShamirChallenge(params, seed,
		encodeAll(params, gammaComm), encodeAll(params, dComm),
		encodeAll(params, cVals), encodeAll(params, goutVals))

	for i := 0; i < k; i++ {
		decProofs[i].S = params.AddExp(decW[i], params.MulExp(challenge, x))
	}

	uVals := make([]*big.Int, k)
	wVals := make([]*big.Int, k)
	vVals := make([]*big.Int, k)
	sigmaVals := make([]*big.Int, k)
	tauVals := make([]*big.Int, k)
	for j := 0; j < k; j++ {
		r1, err := params.RandomExponent(nil)
		if err != nil {
			return nil, nil, err
		}
		r2, err := params.RandomExponent(nil)
		if err != nil {
			return nil, nil, err
		}
		uVals[j] = params.MulMod(params.Exp(params.G, r1), params.Exp(h, r2))
		wVals[j] = params.Exp(out[j].Enc, r2)
		vVals[j] = params.Exp(out[j].Gamma, r2)

		sigmaVals[j] = params.AddExp(r1, params.MulExp(challenge, dRand[j]))
		tauVals[j] = params.AddExp(r2, params.MulExp(challenge, eprime[j]))
	}

	chain, err := proveKShuffle(params, challenge, weights, perm, dComm, eprime, dRand)
	if err != nil {
		return nil, nil, err
	}

	deltaAgg := big.NewInt(0)
	for j := 0; j < k; j++ {
		deltaAgg = params.AddExp(deltaAgg, params.MulExp(delta[j], eprime[j]))
	}
	u1, err := params.RandomExponent(nil)
	if err != nil {
		return nil, nil, err
	}
	u2, err := params.RandomExponent(nil)
	if err != nil {
		return nil, nil, err
	}
	aggInGamma := big.NewInt(1)
	for i := 0; i < k; i++ {
		aggInGamma = params.MulMod(aggInGamma, params.Exp(in[i].Gamma, weights[i]))
	}
	r1 := params.Exp(params.G, u1)
	r2 := params.MulMod(params.Exp(remainingKeys, u1), params.InverseMod(params.Exp(aggInGamma, u2)))
	aggS1 := params.AddExp(u1, params.MulExp(challenge, deltaAgg))
	aggS2 := params.AddExp(u2, params.MulExp(challenge, x))

	transcript := &Transcript{
		Gamma:   gammaComm,
		D:       dComm,
		C:       cVals,
		Gout:    goutVals,
		U:       uVals,
		W:       wVals,
		V:       vVals,
		Sigma:   sigmaVals,
		Tau:     tauVals,
		Theta:   chain.Theta,
		Alpha:   chain.Alpha,
		Close:   chain.Delta0,
		Delta0:  r1,
		Delta1:  r2,
		AggS1:   aggS1,
		AggS2:   aggS2,
		Outputs: decProofs,
	}
	return out, transcript, nil
}

// VerifyShuffleStep checks a Transcript against the claimed input and
// output ciphertext lists, the server's public key, the product of
// not-yet-stripped servers' public keys, and the round seed used to
// derive the Fiat-Shamir challenge.
func VerifyShuffleStep(params *dsagroup.Params, seed []byte, y, remainingKeys *big.Int, in, out []*Ciphertext, t *Transcript) bool {
	k := len(in)
	if len(out) != k || len(t.Outputs) != k || len(t.Gamma) != k || len(t.D) != k {
		return false
	}

	weights := inputWeights(params, seed, k)
	challenge := fiatShamirChallenge(params, seed,
		encodeAll(params, t.Gamma), encodeAll(params, t.D),
		encodeAll(params, t.C), encodeAll(params, t.Gout))

	for i := 0; i < k; i++ {
		p := t.Outputs[i]
		lhs1 := params.Exp(params.G, p.S)
		rhs1 := params.MulMod(p.T1, params.Exp(y, challenge))
		if lhs1.Cmp(rhs1) != 0 {
			return false
		}
		lhs2 := params.Exp(in[i].Gamma, p.S)
		rhs2 := params.MulMod(p.T2, params.Exp(p.Factor, challenge))
		if lhs2.Cmp(rhs2) != 0 {
			return false
		}
	}

	h := pedersenHCache(params)
	for j := 0; j < k; j++ {
		lhs1 := params.MulMod(params.Exp(params.G, t.Sigma[j]), params.Exp(h, t.Tau[j]))
		rhs1 := params.MulMod(t.U[j], params.Exp(t.D[j], challenge))
		if lhs1.Cmp(rhs1) != 0 {
			return false
		}
		lhs2 := params.Exp(out[j].Enc, t.Tau[j])
		rhs2 := params.MulMod(t.W[j], params.Exp(t.C[j], challenge))
		if lhs2.Cmp(rhs2) != 0 {
			return false
		}
		lhs3 := params.Exp(out[j].Gamma, t.Tau[j])
		rhs3 := params.MulMod(t.V[j], params.Exp(t.Gout[j], challenge))
		if lhs3.Cmp(rhs3) != 0 {
			return false
		}
	}

	chain := &kShuffleChain{Theta: t.Theta, Alpha: t.Alpha, Delta0: t.Close}
	if !verifyKShuffle(params, challenge, weights, t.D, chain) {
		return false
	}

	aggInGamma := big.NewInt(1)
	aggInEnc := big.NewInt(1)
	for i := 0; i < k; i++ {
		aggInGamma = params.MulMod(aggInGamma, params.Exp(in[i].Gamma, weights[i]))
		aggInEnc = params.MulMod(aggInEnc, params.Exp(in[i].Enc, weights[i]))
	}
	aggOutGamma := big.NewInt(1)
	aggOutEnc := big.NewInt(1)
	for j := 0; j < k; j++ {
		aggOutGamma = params.MulMod(aggOutGamma, t.Gout[j])
		aggOutEnc = params.MulMod(aggOutEnc, t.C[j])
	}

	l1 := params.MulMod(aggOutGamma, params.InverseMod(aggInGamma))
	l2 := params.MulMod(aggOutEnc, params.InverseMod(aggInEnc))

	lhsA := params.Exp(params.G, t.AggS1)
	rhsA := params.MulMod(t.Delta0, params.Exp(l1, challenge))
	if lhsA.Cmp(rhsA) != 0 {
		return false
	}
	lhsB := params.MulMod(params.Exp(remainingKeys, t.AggS1), params.InverseMod(params.Exp(aggInGamma, t.AggS2)))
	rhsB := params.MulMod(t.Delta1, params.Exp(l2, challenge))
	return lhsB.Cmp(rhsB) == 0
}
