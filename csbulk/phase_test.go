package csbulk

import (
	"testing"

	"github.com/dedis/dissent/group"
	"github.com/dedis/dissent/round"
	"github.com/dedis/dissent/xcrypto"
)

// newTestRound builds a minimal single-server, single-client roster
// and returns a Round for the server's own identity, ready to drive
// directly through its state machine. Group.New requires members in
// strict ascending ID order, so the two generated identities are
// sorted first and whichever sorts first becomes the lone server.
func newTestRound(t *testing.T) *Round {
	t.Helper()
	id1, m1 := genMember(t)
	id2, m2 := genMember(t)

	ids := []*xcrypto.Identity{id1, id2}
	members := []group.Member{m1, m2}
	if !members[0].ID.Less(members[1].ID) {
		members[0], members[1] = members[1], members[0]
		ids[0], ids[1] = ids[1], ids[0]
	}

	g, err := group.New(members, 1)
	if err != nil {
		t.Fatalf("group.New: %s", err)
	}

	serverMember := members[0]
	member, err := NewMember(serverMember.ID, ids[0], g.Members())
	if err != nil {
		t.Fatalf("NewMember: %s", err)
	}

	base := round.New(g, ids[0], []byte("rid"), noopNet{}, "csbulk", nil, nil)
	return NewRound(base, DefaultParams(), serverMember.ID, member)
}

type noopNet struct{}

func (noopNet) Send(peer group.ID, data []byte) error { return nil }
func (noopNet) Broadcast(data []byte) error            { return nil }
func (noopNet) HandleDisconnect(func(peer group.ID))   {}

func TestRoundCyclesThroughPhases(t *testing.T) {
	r := newTestRound(t)
	if r.Phase() != 0 {
		t.Fatalf("initial phase = %d, want 0", r.Phase())
	}

	if err := r.sm.SetState(stateAdmission); err != nil {
		t.Fatalf("SetState(admission): %s", err)
	}
	// Admission -> Commit -> Reveal -> Validate -> Publish -> Process
	// is five transitions; none of them cycle the phase counter since
	// Process has not yet been re-entered from itself.
	for i := 0; i < 5; i++ {
		if err := r.sm.StateComplete(); err != nil {
			t.Fatalf("StateComplete: %s", err)
		}
	}
	if r.sm.CurrentState() != stateProcess {
		t.Fatalf("current state = %s, want %s", r.sm.CurrentState(), stateProcess)
	}
	if r.Phase() != 0 {
		t.Fatalf("phase before any cycle = %d, want 0", r.Phase())
	}

	if err := r.sm.StateComplete(); err != nil {
		t.Fatal(err)
	}
	if r.Phase() != 1 {
		t.Fatalf("phase after first cycle = %d, want 1", r.Phase())
	}
	if err := r.sm.StateComplete(); err != nil {
		t.Fatal(err)
	}
	if r.Phase() != 2 {
		t.Fatalf("phase after second cycle = %d, want 2", r.Phase())
	}
}

func TestAccuseForcesImmediateJump(t *testing.T) {
	r := newTestRound(t)
	if err := r.sm.SetState(stateCommit); err != nil {
		t.Fatal(err)
	}
	if err := r.Accuse(0, errNotImplemented); err != nil {
		t.Fatalf("Accuse: %s", err)
	}
	if r.sm.CurrentState() != stateAccused {
		t.Fatalf("current state = %s, want %s", r.sm.CurrentState(), stateAccused)
	}

	if err := r.sm.StateComplete(); err != nil {
		t.Fatal(err)
	}
	if r.sm.CurrentState() != stateRebuttal {
		t.Fatalf("current state = %s, want %s", r.sm.CurrentState(), stateRebuttal)
	}
}

func TestComputeCiphertextRecordsOffset(t *testing.T) {
	r := newTestRound(t)
	payload := make([]byte, r.Params.SlotSize)
	copy(payload, []byte("hi"))

	if _, err := r.ComputeCiphertext(0, 0, payload); err != nil {
		t.Fatalf("ComputeCiphertext: %s", err)
	}
	entry := r.log.Entry(0)
	if entry == nil {
		t.Fatal("expected phase log entry for phase 0")
	}
	if off, ok := entry.Offsets[r.Self]; !ok || off != 0 {
		t.Fatalf("recorded offset = (%d, %v), want (0, true)", off, ok)
	}
}
