package csbulk

import (
	"bytes"
	"testing"

	"github.com/dedis/dissent/group"
	"github.com/dedis/dissent/xcrypto"
)

func genMember(t *testing.T) (*xcrypto.Identity, group.Member) {
	t.Helper()
	id, err := xcrypto.GenerateIdentity()
	if err != nil {
		t.Fatalf("GenerateIdentity: %s", err)
	}
	gid := group.IDFromKey(id.SignPub)
	return id, group.Member{ID: gid, VerifyKey: id.SignPub, DHPublic: id.DHPub}
}

func TestClientServerCiphertextsCancel(t *testing.T) {
	aliceID, alice := genMember(t)
	bobID, bob := genMember(t)
	serverID, server := genMember(t)

	roster := []group.Member{alice, bob, server}

	aliceMember, err := NewMember(alice.ID, aliceID, roster)
	if err != nil {
		t.Fatal(err)
	}
	bobMember, err := NewMember(bob.ID, bobID, roster)
	if err != nil {
		t.Fatal(err)
	}
	serverMember, err := NewMember(server.ID, serverID, roster)
	if err != nil {
		t.Fatal(err)
	}

	roundID := []byte("round-1")
	var phase uint32 = 0
	slotCount := 2
	slotSize := 16

	payload := []byte("hello dissent!!!")
	if len(payload) != slotSize {
		t.Fatalf("test payload must be exactly %d bytes", slotSize)
	}

	aliceOut, err := ClientCiphertext(aliceMember, roundID, phase, 0, slotCount, slotSize, payload)
	if err != nil {
		t.Fatal(err)
	}
	bobOut, err := ClientCiphertext(bobMember, roundID, phase, 1, slotCount, slotSize, nil)
	if err != nil {
		t.Fatal(err)
	}
	serverOut, err := ServerCiphertext(serverMember, roundID, phase, slotCount, slotSize)
	if err != nil {
		t.Fatal(err)
	}

	combined := Combine(slotSize, slotCount, [][][]byte{aliceOut, bobOut, serverOut})

	if !bytes.Equal(combined[0], payload) {
		t.Fatalf("slot 0 = %q, want %q", combined[0], payload)
	}
	zero := make([]byte, slotSize)
	if !bytes.Equal(combined[1], zero) {
		t.Fatalf("slot 1 = %x, want all zero", combined[1])
	}
}

func TestCommitmentRevealRoundTrip(t *testing.T) {
	aliceID, alice := genMember(t)
	_, bob := genMember(t)
	aliceMember, err := NewMember(alice.ID, aliceID, []group.Member{alice, bob})
	if err != nil {
		t.Fatal(err)
	}

	out, err := ServerCiphertext(aliceMember, []byte("rid"), 0, 1, 32)
	if err != nil {
		t.Fatal(err)
	}
	commitment := CommitmentFor(out)
	if !ValidateReveal(commitment, out) {
		t.Fatal("valid reveal rejected")
	}
	tampered := make([][]byte, len(out))
	copy(tampered, out)
	tampered[0] = append([]byte{}, out[0]...)
	tampered[0][0] ^= 0xFF
	if ValidateReveal(commitment, tampered) {
		t.Fatal("tampered reveal accepted")
	}
}

func TestRecoverCleartextFlagsDisruption(t *testing.T) {
	params := DefaultParams()
	params.SlotSize = 8

	aliceID, alice := genMember(t)
	serverID, server := genMember(t)
	roster := []group.Member{alice, server}

	aliceMember, err := NewMember(alice.ID, aliceID, roster)
	if err != nil {
		t.Fatal(err)
	}
	serverMember, err := NewMember(server.ID, serverID, roster)
	if err != nil {
		t.Fatal(err)
	}

	roundID := []byte("rid-2")
	var phase uint32
	slotCount := 1
	payload := []byte("cleart!!")
	tag := xcrypto.HashAll(payload)[:DisruptionTagSize]
	framed := append(append([]byte{}, payload...), tag...)

	aliceOut, err := ClientCiphertext(aliceMember, roundID, phase, 0, slotCount, params.ciphertextSize(), framed)
	if err != nil {
		t.Fatal(err)
	}
	serverOut, err := ServerCiphertext(serverMember, roundID, phase, slotCount, params.ciphertextSize())
	if err != nil {
		t.Fatal(err)
	}

	r := &Round{Params: params, slotCount: slotCount}
	cleartext, disrupted := r.RecoverCleartext([][][]byte{aliceOut, serverOut})
	if len(disrupted) != 0 {
		t.Fatalf("unexpected disruption flagged: %v", disrupted)
	}
	if !bytes.Equal(cleartext[0], payload) {
		t.Fatalf("cleartext = %q, want %q", cleartext[0], payload)
	}

	corrupted := append([][]byte{}, aliceOut...)
	corrupted[0] = append([]byte{}, aliceOut[0]...)
	corrupted[0][0] ^= 0x01
	_, disrupted = r.RecoverCleartext([][][]byte{corrupted, serverOut})
	if len(disrupted) != 1 || disrupted[0] != 0 {
		t.Fatalf("disrupted = %v, want [0]", disrupted)
	}
}
