// Package round implements the base Round every protocol phase
// embeds: group membership, the local identity, the round id, a
// network handle, and the verifiable broadcast/send helpers used by
// both the shuffle and the bulk round to exchange signed messages.
package round

import (
	"fmt"

	"github.com/dedis/dissent/errors"
	"github.com/dedis/dissent/group"
	"github.com/dedis/dissent/log"
	"github.com/dedis/dissent/netadapter"
	"github.com/dedis/dissent/xcrypto"
	"github.com/dedis/dissent/xlog"
)

// GetData is called whenever the round needs the next chunk of
// application data a client wants broadcast (a bulk-round slot
// payload, or a key-shuffle's one-time key). It mirrors the original
// GetDataCallback: the round does not know or care where the bytes
// come from.
type GetData func(maxLen int) []byte

// PushData delivers application data the round has finished producing
// (a bulk round's recovered cleartext, a shuffle's anonymized output
// list) back to whatever owns the round.
type PushData func(data [][]byte)

// Status reports why a round stopped.
type Status int

const (
	// Running means the round has not yet finished.
	Running Status = iota
	// Successful means the round completed and pushed its output.
	Successful
	// Interrupted means the round was stopped before completing,
	// either by the caller or because it could not make progress.
	Interrupted
)

// Round is the base every shuffle or bulk round embeds. It is not
// itself a state machine; callers compose it with a
// statemachine.StateMachine and drive it from their own message loop.
type Round struct {
	Group     *group.Group
	Local     *xcrypto.Identity
	RoundID   []byte
	Net       netadapter.Network
	Component string

	GetData  GetData
	PushData PushData

	status    Status
	stopErr   error
	badMembers map[group.ID]struct{}

	finishedCallbacks []func(*Round)
}

// New builds a Round ready to be embedded by a specific protocol
// phase's own type. component names the embedding phase ("shuffle",
// "csbulk") for log scoping.
func New(g *group.Group, local *xcrypto.Identity, roundID []byte, net netadapter.Network, component string, getData GetData, pushData PushData) *Round {
	return &Round{
		Group:      g,
		Local:      local,
		RoundID:    roundID,
		Net:        net,
		Component:  component,
		GetData:    getData,
		PushData:   pushData,
		badMembers: make(map[group.ID]struct{}),
	}
}

func (r *Round) log() *log.Logger {
	return xlog.Round(r.RoundID, r.Component)
}

// Start marks the round as running. It exists mainly so embedding
// types have a single place to hook additional setup via a wrapped
// method without duplicating status bookkeeping.
func (r *Round) Start() {
	r.status = Running
	r.log().Info("round started")
}

// Stop marks the round interrupted with the given reason and runs any
// OnFinished callbacks. Calling Stop more than once is a no-op beyond
// the first call.
func (r *Round) Stop(reason error) {
	if r.status != Running {
		return
	}
	r.status = Interrupted
	r.stopErr = reason
	r.log().WithFields(log.Fields{"reason": reason}).Warn("round interrupted")
	r.notifyFinished()
}

// Finish marks the round successful and runs any OnFinished
// callbacks.
func (r *Round) Finish() {
	if r.status != Running {
		return
	}
	r.status = Successful
	r.log().Info("round finished")
	r.notifyFinished()
}

func (r *Round) notifyFinished() {
	for _, cb := range r.finishedCallbacks {
		cb(r)
	}
}

// OnFinished registers a callback run once the round transitions out
// of Running, whether by Finish or Stop.
func (r *Round) OnFinished(cb func(*Round)) {
	r.finishedCallbacks = append(r.finishedCallbacks, cb)
}

// Successful reports whether the round finished without error.
func (r *Round) Successful() bool { return r.status == Successful }

// Interrupted reports whether the round was stopped before finishing.
func (r *Round) Interrupted() bool { return r.status == Interrupted }

// StopError returns the reason the round was interrupted, if any.
func (r *Round) StopError() error { return r.stopErr }

// MarkBad records a member as having behaved badly during the round
// (sent an unverifiable message, timed out, disconnected mid-phase).
// It only records the id: Round does not exclude a marked member from
// later phases or from its output.
func (r *Round) MarkBad(id group.ID) {
	r.badMembers[id] = struct{}{}
}

// BadMembers returns the set of members marked bad so far.
func (r *Round) BadMembers() []group.ID {
	ids := make([]group.ID, 0, len(r.badMembers))
	for id := range r.badMembers {
		ids = append(ids, id)
	}
	return ids
}

// IsBad reports whether id has been marked bad.
func (r *Round) IsBad(id group.ID) bool {
	_, bad := r.badMembers[id]
	return bad
}

// VerifiableBroadcastToServers signs data with the local identity and
// sends it to every server in the group. Only a server may call this.
func (r *Round) VerifiableBroadcastToServers(data []byte) error {
	if !r.Group.IsServer(group.IDFromKey(r.Local.SignPub)) {
		return errors.New("round: only a server may broadcast to servers")
	}
	msg := r.sign(data)
	for _, m := range r.Group.ServerMembers() {
		if err := r.Net.Send(m.ID, msg); err != nil {
			return errors.Wrap(err, "round: sending to server %s", m.ID)
		}
	}
	return nil
}

// VerifiableBroadcastToClients signs data and sends it to every
// client in the group. Only a server may call this.
func (r *Round) VerifiableBroadcastToClients(data []byte) error {
	if !r.Group.IsServer(group.IDFromKey(r.Local.SignPub)) {
		return errors.New("round: only a server may broadcast to clients")
	}
	msg := r.sign(data)
	for _, m := range r.Group.ClientMembers() {
		if err := r.Net.Send(m.ID, msg); err != nil {
			return errors.Wrap(err, "round: sending to client %s", m.ID)
		}
	}
	return nil
}

// VerifiableSend signs data and sends it to a single peer.
func (r *Round) VerifiableSend(peer group.ID, data []byte) error {
	return r.Net.Send(peer, r.sign(data))
}

func (r *Round) sign(data []byte) []byte {
	sig := r.Local.Sign(data)
	out := make([]byte, 0, len(data)+len(sig)+2)
	out = append(out, byte(len(sig)>>8), byte(len(sig)))
	out = append(out, sig...)
	out = append(out, data...)
	return out
}

// VerifySigned splits a message produced by sign/VerifiableSend back
// into its signature and payload, and checks the signature against
// the claimed sender's verify key from the group roster.
func VerifySigned(g *group.Group, sender group.ID, msg []byte) (payload []byte, err error) {
	if len(msg) < 2 {
		return nil, errors.New("round: message too short to contain a signature length")
	}
	sigLen := int(msg[0])<<8 | int(msg[1])
	if len(msg) < 2+sigLen {
		return nil, errors.New("round: message too short to contain its signature")
	}
	sig := msg[2 : 2+sigLen]
	payload = msg[2+sigLen:]

	m, ok := g.ByID(sender)
	if !ok {
		return nil, fmt.Errorf("round: unknown sender %s", sender)
	}
	if !xcrypto.Verify(m.VerifyKey, payload, sig) {
		return nil, fmt.Errorf("round: bad signature from %s", sender)
	}
	return payload, nil
}
