package round

import (
	"errors"
	"testing"

	"github.com/dedis/dissent/group"
	"github.com/dedis/dissent/xcrypto"
)

type nullNet struct {
	sent map[group.ID][][]byte
}

func newNullNet() *nullNet { return &nullNet{sent: make(map[group.ID][][]byte)} }

func (n *nullNet) Send(peer group.ID, data []byte) error {
	n.sent[peer] = append(n.sent[peer], data)
	return nil
}
func (n *nullNet) Broadcast(data []byte) error                 { return nil }
func (n *nullNet) HandleDisconnect(func(peer group.ID))        {}

func twoMemberGroup(t *testing.T) (*group.Group, *xcrypto.Identity, *xcrypto.Identity) {
	t.Helper()
	id1, err := xcrypto.GenerateIdentity()
	if err != nil {
		t.Fatal(err)
	}
	id2, err := xcrypto.GenerateIdentity()
	if err != nil {
		t.Fatal(err)
	}
	m1 := group.Member{ID: group.IDFromKey(id1.SignPub), VerifyKey: id1.SignPub, DHPublic: id1.DHPub}
	m2 := group.Member{ID: group.IDFromKey(id2.SignPub), VerifyKey: id2.SignPub, DHPublic: id2.DHPub}
	members := []group.Member{m1, m2}
	ids := []*xcrypto.Identity{id1, id2}
	if !members[0].ID.Less(members[1].ID) {
		members[0], members[1] = members[1], members[0]
		ids[0], ids[1] = ids[1], ids[0]
	}
	g, err := group.New(members, 1)
	if err != nil {
		t.Fatal(err)
	}
	return g, ids[0], ids[1]
}

func TestLifecycleTransitions(t *testing.T) {
	g, server, _ := twoMemberGroup(t)
	r := New(g, server, []byte("rid"), newNullNet(), "test", nil, nil)

	if r.Successful() || r.Interrupted() {
		t.Fatal("new round should be neither successful nor interrupted")
	}
	r.Start()

	var finished bool
	r.OnFinished(func(*Round) { finished = true })

	r.Finish()
	if !r.Successful() {
		t.Fatal("expected round to be successful after Finish")
	}
	if !finished {
		t.Fatal("expected OnFinished callback to run")
	}

	// A second Finish/Stop after the round already finished is a no-op.
	r.Stop(errors.New("too late"))
	if !r.Successful() || r.Interrupted() {
		t.Fatal("Stop after Finish should not change status")
	}
}

func TestStopRecordsReason(t *testing.T) {
	g, server, _ := twoMemberGroup(t)
	r := New(g, server, []byte("rid"), newNullNet(), "test", nil, nil)
	r.Start()

	reason := errors.New("peer disconnected")
	r.Stop(reason)
	if !r.Interrupted() {
		t.Fatal("expected round to be interrupted")
	}
	if r.StopError() != reason {
		t.Fatalf("StopError() = %v, want %v", r.StopError(), reason)
	}
}

func TestMarkBad(t *testing.T) {
	g, server, client := twoMemberGroup(t)
	r := New(g, server, []byte("rid"), newNullNet(), "test", nil, nil)
	clientID := group.IDFromKey(client.SignPub)

	if r.IsBad(clientID) {
		t.Fatal("no member should be bad yet")
	}
	r.MarkBad(clientID)
	if !r.IsBad(clientID) {
		t.Fatal("expected member to be marked bad")
	}
	bad := r.BadMembers()
	if len(bad) != 1 || bad[0] != clientID {
		t.Fatalf("BadMembers() = %v, want [%v]", bad, clientID)
	}
}

func TestVerifiableSendRoundTrips(t *testing.T) {
	g, server, _ := twoMemberGroup(t)
	net := newNullNet()
	r := New(g, server, []byte("rid"), net, "test", nil, nil)

	clientID := g.ClientMembers()[0].ID
	payload := []byte("hello")
	if err := r.VerifiableSend(clientID, payload); err != nil {
		t.Fatalf("VerifiableSend: %s", err)
	}

	msgs := net.sent[clientID]
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message sent to client, got %d", len(msgs))
	}

	serverID := group.IDFromKey(server.SignPub)
	got, err := VerifySigned(g, serverID, msgs[0])
	if err != nil {
		t.Fatalf("VerifySigned: %s", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("recovered payload = %q, want %q", got, payload)
	}
}

func TestVerifySignedRejectsTamperedPayload(t *testing.T) {
	g, server, _ := twoMemberGroup(t)
	net := newNullNet()
	r := New(g, server, []byte("rid"), net, "test", nil, nil)

	clientID := g.ClientMembers()[0].ID
	if err := r.VerifiableSend(clientID, []byte("hello")); err != nil {
		t.Fatal(err)
	}
	msg := net.sent[clientID][0]
	tampered := append([]byte{}, msg...)
	tampered[len(tampered)-1] ^= 0xFF

	serverID := group.IDFromKey(server.SignPub)
	if _, err := VerifySigned(g, serverID, tampered); err == nil {
		t.Fatal("expected tampered message to fail verification")
	}
}

func TestBroadcastToServersRejectsNonServer(t *testing.T) {
	g, _, client := twoMemberGroup(t)
	r := New(g, client, []byte("rid"), newNullNet(), "test", nil, nil)
	if err := r.VerifiableBroadcastToServers([]byte("x")); err == nil {
		t.Fatal("expected a client to be rejected from broadcasting to servers")
	}
}
