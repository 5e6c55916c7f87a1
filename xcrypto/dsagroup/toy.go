package dsagroup

import (
	"crypto/rand"
	"io"
	"math/big"

	"github.com/dedis/dissent/errors"
)

// Generate searches for a fresh DSA-style group with a qBits-bit
// subgroup order and a pBits-bit modulus (qBits < pBits, q | p-1).
// Production deployments should negotiate a vetted, standard group
// (e.g. a 2048-bit safe prime with a 256-bit subgroup) at session
// setup rather than generating one per round; Generate exists so
// tests can build small, fast groups without embedding a specific
// standard's constants.
func Generate(random io.Reader, pBits, qBits int) (*Params, error) {
	if random == nil {
		random = rand.Reader
	}
	if qBits >= pBits {
		return nil, errors.New("dsagroup: qBits must be smaller than pBits")
	}

	for attempt := 0; attempt < 1<<16; attempt++ {
		q, err := rand.Prime(random, qBits)
		if err != nil {
			return nil, errors.Wrap(err, "dsagroup: generating Q")
		}

		// Search for a cofactor k such that p = k*q + 1 is prime. k must
		// be even, since q is odd and an odd k would make p even.
		kBits := pBits - qBits
		for kAttempt := 0; kAttempt < 1<<12; kAttempt++ {
			k, err := rand.Int(random, new(big.Int).Lsh(big.NewInt(1), uint(kBits)))
			if err != nil {
				continue
			}
			k.SetBit(k, kBits-1, 1)
			k.SetBit(k, 0, 0)
			p := new(big.Int).Mul(k, q)
			p.Add(p, big.NewInt(1))
			if p.BitLen() != pBits {
				continue
			}
			if !p.ProbablyPrime(20) {
				continue
			}

			g, ok := findGenerator(p, q, k)
			if !ok {
				continue
			}

			return NewParams(p, q, g)
		}
	}

	return nil, errors.New("dsagroup: failed to find suitable group after many attempts")
}

// findGenerator finds an element of order exactly q in Z_p^*, given
// p = k*q + 1.
func findGenerator(p, q, k *big.Int) (*big.Int, bool) {
	pMinus1 := new(big.Int).Sub(p, big.NewInt(1))
	for h := big.NewInt(2); h.Cmp(pMinus1) < 0; h.Add(h, big.NewInt(1)) {
		g := new(big.Int).Exp(h, k, p)
		if g.Cmp(big.NewInt(1)) == 0 {
			continue
		}
		if new(big.Int).Exp(g, q, p).Cmp(big.NewInt(1)) == 0 {
			return g, true
		}
	}
	return nil, false
}
