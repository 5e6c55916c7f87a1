package dsagroup

import (
	"math/big"
	"testing"
)

func toyParams(t *testing.T) *Params {
	t.Helper()
	params, err := Generate(nil, 64, 40)
	if err != nil {
		t.Fatalf("Generate: %s", err)
	}
	return params
}

func TestGenerateSatisfiesGroupLaw(t *testing.T) {
	params := toyParams(t)
	if !params.InGroup(params.G) {
		t.Fatal("generator is not in the order-Q subgroup")
	}
}

func TestExpMatchesMathBig(t *testing.T) {
	params := toyParams(t)
	base := params.G
	exp := big.NewInt(17)
	got := params.Exp(base, exp)
	want := new(big.Int).Exp(base, exp, params.P)
	if got.Cmp(want) != 0 {
		t.Fatalf("Exp mismatch: got %s want %s", got, want)
	}
}

func TestEncodeDecodeElementRoundtrips(t *testing.T) {
	params := toyParams(t)
	enc := params.EncodeElement(params.G)
	if len(enc) != params.ElementSize() {
		t.Fatalf("EncodeElement length = %d, want %d", len(enc), params.ElementSize())
	}
	dec := params.DecodeElement(enc)
	if dec.Cmp(params.G) != 0 {
		t.Fatalf("roundtrip mismatch: got %s want %s", dec, params.G)
	}
}

func TestRandomExponentInRange(t *testing.T) {
	params := toyParams(t)
	for i := 0; i < 20; i++ {
		x, err := params.RandomExponent(nil)
		if err != nil {
			t.Fatalf("RandomExponent: %s", err)
		}
		if x.Sign() <= 0 || x.Cmp(params.Q) >= 0 {
			t.Fatalf("exponent %s out of range [1, Q)", x)
		}
	}
}
