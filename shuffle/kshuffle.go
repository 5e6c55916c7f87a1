package shuffle

import (
	"math/big"

	"github.com/dedis/dissent/xcrypto"
	"github.com/dedis/dissent/xcrypto/dsagroup"
)

// pedersenH derives the second Pedersen generator h by hashing g into
// the group, so that no party (including the prover) ever learns
// log_g(h); without that property a prover who knew log_g(h) could
// open a commitment to any value it liked.
func pedersenH(params *dsagroup.Params) *big.Int {
	seed := xcrypto.HashAll([]byte("dissent-shuffle-pedersen-h"), params.EncodeElement(params.G))
	h := new(big.Int).SetBytes(seed)
	h.Mod(h, params.P)
	// Raise to the cofactor (P-1)/Q, which maps any nonzero element of
	// Z_P^* into the order-Q subgroup. This is safe since h only needs
	// to land *inside* the subgroup, not preserve any particular
	// discrete log. A result of 0 or 1 is skipped by stepping h.
	cofactor := new(big.Int).Sub(params.P, big.NewInt(1))
	cofactor.Div(cofactor, params.Q)
	for {
		e := new(big.Int).Exp(h, cofactor, params.P)
		if e.Cmp(big.NewInt(1)) > 0 {
			return e
		}
		h.Add(h, big.NewInt(1))
	}
}

// commit computes a Pedersen commitment g^randomness * h^value.
func commit(params *dsagroup.Params, h, value, randomness *big.Int) *big.Int {
	return params.MulMod(params.Exp(params.G, randomness), params.Exp(h, value))
}

// productResponse is the response half of the Sigma protocol proving
// that a commitment Z = g^c h^(x*y) correctly commits to the product
// of the values hidden in X = g^a h^x and Y = g^b h^y, for a prover
// that knows (a, b, c, x, y). It is an AND-composition of two Schnorr
// proofs sharing the witness x: one proving knowledge of X's opening,
// the other proving Z = Y^x * g^e for e := c - b*x.
type productResponse struct {
	R1  *big.Int // g^{r_a} h^{r_x}
	R2  *big.Int // Y^{r_x} g^{r_e}
	SA  *big.Int
	SX  *big.Int
	SE  *big.Int
}

// proveProduct proves Z commits to x*y, where X commits to x (opening
// a,x) and Y commits to y (opening b,y), and Z = g^(c) h^(xy) with
// c = b*x + e for the e the prover supplies (proveKShuffle computes e
// from c and b*x with Params.SubExp before calling this).
func proveProduct(params *dsagroup.Params, challenge *big.Int, Y *big.Int, a, x, e *big.Int) (*productResponse, error) {
	ra, err := params.RandomExponent(nil)
	if err != nil {
		return nil, err
	}
	rx, err := params.RandomExponent(nil)
	if err != nil {
		return nil, err
	}
	re, err := params.RandomExponent(nil)
	if err != nil {
		return nil, err
	}
	R1 := params.MulMod(params.Exp(params.G, ra), params.Exp(pedersenHCache(params), rx))
	R2 := params.MulMod(params.Exp(Y, rx), params.Exp(params.G, re))

	sa := params.AddExp(ra, params.MulExp(challenge, a))
	sx := params.AddExp(rx, params.MulExp(challenge, x))
	se := params.AddExp(re, params.MulExp(challenge, e))

	return &productResponse{R1: R1, R2: R2, SA: sa, SX: sx, SE: se}, nil
}

// verifyProduct checks a productResponse against the claimed
// commitments X, Y, Z and the Fiat-Shamir challenge.
func verifyProduct(params *dsagroup.Params, challenge *big.Int, X, Y, Z *big.Int, resp *productResponse) bool {
	h := pedersenHCache(params)
	lhs1 := params.MulMod(params.Exp(params.G, resp.SA), params.Exp(h, resp.SX))
	rhs1 := params.MulMod(resp.R1, params.Exp(X, challenge))
	if lhs1.Cmp(rhs1) != 0 {
		return false
	}
	lhs2 := params.MulMod(params.Exp(Y, resp.SX), params.Exp(params.G, resp.SE))
	rhs2 := params.MulMod(resp.R2, params.Exp(Z, challenge))
	return lhs2.Cmp(rhs2) == 0
}

// pedersenHCache avoids recomputing the (deterministic) h generator
// repeatedly within a single process; it is cheap enough that a plain
// per-Params cache is unnecessary, but a named accessor keeps the
// derivation in one place in case a future change adds caching.
func pedersenHCache(params *dsagroup.Params) *big.Int {
	return pedersenH(params)
}

// kShuffleChain is the "simple k-shuffle" sub-proof: given per-input
// challenge weights e_1..e_k (derived from the Fiat-Shamir hash, one
// per canonical input position) and commitments D_1..D_k to a claimed
// permutation e'_1..e'_k of those weights, it proves {e'_j} really is
// a permutation of {e_i} by running a committed product chain:
// P_j = P_{j-1} * (challenge - e'_j), and checking the final product
// against the publicly computable product over the canonical weights.
type kShuffleChain struct {
	Theta []*big.Int         // running-product commitments P_1..P_k
	Alpha []*productResponse // product-proof responses tying Theta[j] to Theta[j-1] and D[j]
	Delta0 *big.Int          // opens Theta[k] against the expected public product
}

// proveKShuffle builds a kShuffleChain for a committed permutation of
// weights. perm maps output position j to input position perm[j], so
// weights[j] (the value committed in D[j]) must equal inputWeights[perm[j]].
func proveKShuffle(params *dsagroup.Params, challenge *big.Int, inputWeights []*big.Int, perm []int, d []*big.Int, dOpen []*big.Int, dRand []*big.Int) (*kShuffleChain, error) {
	k := len(perm)
	chain := &kShuffleChain{Theta: make([]*big.Int, k), Alpha: make([]*productResponse, k)}

	h := pedersenHCache(params)
	prevProduct := big.NewInt(1)
	prevRand := big.NewInt(0) // randomness opening "Theta[0]" = h^1 = g^0 h^1
	for j := 0; j < k; j++ {
		term := params.SubExp(challenge, dOpen[j])
		newProduct := params.MulExp(prevProduct, term)

		beta, err := params.RandomExponent(nil)
		if err != nil {
			return nil, err
		}
		theta := commit(params, h, newProduct, beta)
		chain.Theta[j] = theta

		// Y := commitment to "term" derived homomorphically from D[j]:
		// D[j] = g^{dRand[j]} h^{dOpen[j]}, so h^challenge / D[j] =
		// g^{-dRand[j]} h^{challenge-dOpen[j]} = g^{-dRand[j]} h^{term}.
		Y := params.MulMod(params.Exp(h, challenge), params.InverseMod(d[j]))
		yRand := params.SubExp(big.NewInt(0), dRand[j])

		e := params.SubExp(beta, params.MulExp(yRand, prevProduct))
		resp, err := proveProduct(params, challenge, Y, prevRand, prevProduct, e)
		if err != nil {
			return nil, err
		}
		chain.Alpha[j] = resp

		prevProduct = newProduct
		prevRand = beta
	}
	chain.Delta0 = prevRand
	return chain, nil
}

// verifyKShuffle checks a kShuffleChain against the committed
// permutation D and the expected public product over inputWeights.
func verifyKShuffle(params *dsagroup.Params, challenge *big.Int, inputWeights []*big.Int, d []*big.Int, chain *kShuffleChain) bool {
	k := len(d)
	if len(chain.Theta) != k || len(chain.Alpha) != k {
		return false
	}
	h := pedersenHCache(params)
	prevTheta := h // commitment to product=1 with randomness 0: g^0 h^1 = h
	for j := 0; j < k; j++ {
		Y := params.MulMod(params.Exp(h, challenge), params.InverseMod(d[j]))
		if !verifyProduct(params, challenge, prevTheta, Y, chain.Theta[j], chain.Alpha[j]) {
			return false
		}
		prevTheta = chain.Theta[j]
	}

	expected := big.NewInt(1)
	for _, w := range inputWeights {
		expected = params.MulExp(expected, params.SubExp(challenge, w))
	}
	want := commit(params, h, expected, chain.Delta0)
	return chain.Theta[k-1].Cmp(want) == 0
}
