// Package netadapter defines the network interface a Round consumes.
// A concrete transport (TLS, the coordinator's typesocket hub, an
// in-memory fake for tests) implements it; this package only declares
// the shape, the same way mixnet.go consumes a net/rpc client without
// caring how the connection was dialed.
package netadapter

import "github.com/dedis/dissent/group"

// Network is everything a round needs from the transport layer: point
// to point delivery to a single peer, broadcast to the whole group,
// and notification when a peer drops so blame and re-shuffle logic can
// treat it as a bad member instead of hanging on its messages forever.
type Network interface {
	Send(peer group.ID, data []byte) error
	Broadcast(data []byte) error
	HandleDisconnect(func(peer group.ID))
}
