// Package dsagroup implements the DSA-style safe-prime group the Neff
// shuffle (shuffle package) runs over: a prime modulus p, a prime-order
// subgroup of order q dividing p-1, and a generator g of that
// subgroup. Modular exponentiation, the one operation that must run in
// constant time to avoid leaking the shuffle's secret permutation or a
// server's private exponents through timing, is delegated to
// saferith's constant-time bignum implementation rather than
// math/big's variable-time Exp.
//
// The abstraction here (Params, with Exp/MulMod/InverseMod on group
// elements and AddExp/SubExp/MulExp/RandomExponent on exponents) is
// deliberately small and swappable: tests substitute a short toy
// Params from Generate (a 64-bit modulus with a 40-bit subgroup order)
// so that generating and exercising a full shuffle transcript doesn't
// require minutes of key generation.
package dsagroup

import (
	"crypto/rand"
	"io"
	"math/big"

	"github.com/cronokirby/saferith"

	"github.com/dedis/dissent/errors"
)

// Params defines a DSA-style group: the modulus P, the subgroup order
// Q (Q | P-1), and a generator G of the order-Q subgroup of Z_P^*.
type Params struct {
	P *big.Int
	Q *big.Int
	G *big.Int

	modP *saferith.Modulus
	modQ *saferith.Modulus
}

func newModulus(n *big.Int) *saferith.Modulus {
	nat := new(saferith.Nat).SetBig(n, n.BitLen())
	return saferith.ModulusFromNat(nat)
}

// Finalize precomputes the saferith moduli for P and Q. Callers must
// call Finalize (directly, or implicitly via NewParams) before using a
// Params value; the zero value is not usable.
func (p *Params) Finalize() *Params {
	p.modP = newModulus(p.P)
	p.modQ = newModulus(p.Q)
	return p
}

// NewParams validates and finalizes a set of DSA-style group
// parameters.
func NewParams(p, q, g *big.Int) (*Params, error) {
	if p == nil || q == nil || g == nil {
		return nil, errors.New("dsagroup: nil parameter")
	}
	if !p.ProbablyPrime(20) {
		return nil, errors.New("dsagroup: P is not prime")
	}
	if !q.ProbablyPrime(20) {
		return nil, errors.New("dsagroup: Q is not prime")
	}
	pMinus1 := new(big.Int).Sub(p, big.NewInt(1))
	if new(big.Int).Mod(pMinus1, q).Sign() != 0 {
		return nil, errors.New("dsagroup: Q does not divide P-1")
	}
	params := &Params{P: p, Q: q, G: new(big.Int).Set(g)}
	return params.Finalize(), nil
}

// bigToNat converts a big.Int (reduced mod the given saferith modulus
// bit width) into a saferith.Nat of the matching capacity.
func bigToNat(x *big.Int, cap int) *saferith.Nat {
	return new(saferith.Nat).SetBig(x, cap)
}

// Exp computes base^exp mod P in constant time.
func (p *Params) Exp(base, exp *big.Int) *big.Int {
	b := bigToNat(base, p.P.BitLen())
	e := bigToNat(exp, p.Q.BitLen())
	r := new(saferith.Nat).Exp(b, e, p.modP)
	return r.Big()
}

// MulMod computes a*b mod P.
func (p *Params) MulMod(a, b *big.Int) *big.Int {
	an := bigToNat(a, p.P.BitLen())
	bn := bigToNat(b, p.P.BitLen())
	r := new(saferith.Nat).ModMul(an, bn, p.modP)
	return r.Big()
}

// InverseMod computes a^-1 mod P.
func (p *Params) InverseMod(a *big.Int) *big.Int {
	an := bigToNat(a, p.P.BitLen())
	r := new(saferith.Nat).ModInverse(an, p.modP)
	return r.Big()
}

// AddExp computes (a + b) mod Q, the scalar ring used for exponents,
// challenges, and responses in the Fiat-Shamir transcript.
func (p *Params) AddExp(a, b *big.Int) *big.Int {
	return new(big.Int).Mod(new(big.Int).Add(a, b), p.Q)
}

// SubExp computes (a - b) mod Q.
func (p *Params) SubExp(a, b *big.Int) *big.Int {
	r := new(big.Int).Mod(new(big.Int).Sub(a, b), p.Q)
	if r.Sign() < 0 {
		r.Add(r, p.Q)
	}
	return r
}

// MulExp computes (a * b) mod Q.
func (p *Params) MulExp(a, b *big.Int) *big.Int {
	return new(big.Int).Mod(new(big.Int).Mul(a, b), p.Q)
}

// RandomExponent draws a uniform random exponent in [1, Q-1].
func (p *Params) RandomExponent(r io.Reader) (*big.Int, error) {
	if r == nil {
		r = rand.Reader
	}
	qMinus1 := new(big.Int).Sub(p.Q, big.NewInt(1))
	x, err := rand.Int(r, qMinus1)
	if err != nil {
		return nil, errors.Wrap(err, "dsagroup: sampling exponent")
	}
	return x.Add(x, big.NewInt(1)), nil
}

// InGroup reports whether e is a valid element of the order-Q
// subgroup: 1 <= e < P and e^Q mod P == 1.
func (p *Params) InGroup(e *big.Int) bool {
	if e.Sign() <= 0 || e.Cmp(p.P) >= 0 {
		return false
	}
	return p.Exp(e, p.Q).Cmp(big.NewInt(1)) == 0
}

// ElementSize is the byte width of a serialized group element.
func (p *Params) ElementSize() int {
	return (p.P.BitLen() + 7) / 8
}

// EncodeElement serializes a group element to a fixed-width big-endian
// byte string.
func (p *Params) EncodeElement(e *big.Int) []byte {
	buf := make([]byte, p.ElementSize())
	b := e.Bytes()
	copy(buf[len(buf)-len(b):], b)
	return buf
}

// DecodeElement parses a fixed-width big-endian byte string back into
// a group element.
func (p *Params) DecodeElement(buf []byte) *big.Int {
	return new(big.Int).SetBytes(buf)
}
