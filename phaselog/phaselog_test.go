package phaselog

import (
	"testing"

	"github.com/dedis/dissent/group"
)

func TestRecordAndRetrieve(t *testing.T) {
	log := NewPhaseLogDepth(2)
	var alice group.ID
	alice[0] = 1

	log.RecordCiphertext(0, alice, [][]byte{{1, 2, 3}})
	log.RecordOffset(0, alice, 4)

	e := log.Entry(0)
	if e == nil {
		t.Fatal("expected entry for phase 0")
	}
	if _, ok := e.Ciphertexts[alice]; !ok {
		t.Fatal("expected alice's ciphertext recorded")
	}
	if e.Offsets[alice] != 4 {
		t.Fatalf("offset = %d, want 4", e.Offsets[alice])
	}
}

func TestRingEvictsOldestPhase(t *testing.T) {
	log := NewPhaseLogDepth(2)
	var alice group.ID

	log.RecordCiphertext(0, alice, nil)
	log.RecordCiphertext(1, alice, nil)
	log.RecordCiphertext(2, alice, nil)

	if log.Entry(0) != nil {
		t.Fatal("expected phase 0 to have been evicted")
	}
	if log.Entry(1) == nil || log.Entry(2) == nil {
		t.Fatal("expected phases 1 and 2 to still be retained")
	}
}

func TestBlameBitRoundTrip(t *testing.T) {
	log := NewPhaseLog()
	var server group.ID
	server[0] = 9

	if _, _, ok := log.BlameBit(5, server); ok {
		t.Fatal("expected no blame bit recorded yet")
	}
	log.RecordBlameBit(5, server, 1, 0)
	actual, expected, ok := log.BlameBit(5, server)
	if !ok || actual != 1 || expected != 0 {
		t.Fatalf("BlameBit = (%d, %d, %v), want (1, 0, true)", actual, expected, ok)
	}
}
