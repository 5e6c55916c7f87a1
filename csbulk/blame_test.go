package csbulk

import (
	"testing"

	"github.com/dedis/dissent/group"
	"github.com/dedis/dissent/xcrypto/dsagroup"
)

func blameTestParams(t *testing.T) *dsagroup.Params {
	t.Helper()
	params, err := dsagroup.Generate(nil, 64, 40)
	if err != nil {
		t.Fatalf("dsagroup.Generate: %s", err)
	}
	return params
}

func TestRebuttalProofRoundTrip(t *testing.T) {
	params := blameTestParams(t)
	secret, _ := params.RandomExponent(nil)
	pub := params.Exp(params.G, secret)

	proof, err := ProveRebuttal(params, secret, pub)
	if err != nil {
		t.Fatalf("ProveRebuttal: %s", err)
	}
	if !VerifyRebuttal(params, pub, proof) {
		t.Fatal("valid rebuttal proof rejected")
	}
}

func TestRebuttalProofRejectsWrongSecret(t *testing.T) {
	params := blameTestParams(t)
	secret, _ := params.RandomExponent(nil)
	pub := params.Exp(params.G, secret)

	other, _ := params.RandomExponent(nil)
	proof, err := ProveRebuttal(params, other, pub)
	if err != nil {
		t.Fatalf("ProveRebuttal: %s", err)
	}
	if VerifyRebuttal(params, pub, proof) {
		t.Fatal("proof for the wrong secret was accepted")
	}
}

func TestResolveVindicatesOnBitMismatch(t *testing.T) {
	var accuser, accused group.ID
	accuser[0] = 1
	accused[0] = 2

	v := Resolve(accuser, accused, 1, 0)
	if !v.Vindicated {
		t.Fatal("expected accusation to be vindicated on bit mismatch")
	}

	v2 := Resolve(accuser, accused, 1, 1)
	if v2.Vindicated {
		t.Fatal("expected accusation to fail when bits match")
	}
}

func TestVerdictCompleteRequiresAllSignatures(t *testing.T) {
	var accuser, accused, s1, s2 group.ID
	s1[0], s2[0] = 1, 2

	v := Resolve(accuser, accused, 1, 0)
	servers := []group.ID{s1, s2}
	if v.Complete(servers) {
		t.Fatal("verdict should not be complete with no signatures")
	}
	v.Sign(s1, []byte("sig1"))
	if v.Complete(servers) {
		t.Fatal("verdict should not be complete with only one of two signatures")
	}
	v.Sign(s2, []byte("sig2"))
	if !v.Complete(servers) {
		t.Fatal("verdict should be complete once every server has signed")
	}
}
