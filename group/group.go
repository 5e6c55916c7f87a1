// Package group implements the immutable participant roster shared by
// every round: an ordered sequence of (id, verification key, DH key)
// tuples, split into a contiguous server subgroup and the remaining
// clients.
package group

import (
	"crypto/sha1"
	"sort"

	"golang.org/x/crypto/ed25519"

	"github.com/dedis/dissent/errors"
)

// IDLen is the width of a participant identifier: 160 bits, derived
// from the participant's long-term verification key.
const IDLen = 20

// ID is a participant identifier, totally ordered by byte value.
type ID [IDLen]byte

// IDFromKey derives the 160-bit identifier for a verification key.
func IDFromKey(verifyKey ed25519.PublicKey) ID {
	sum := sha1.Sum(verifyKey)
	var id ID
	copy(id[:], sum[:])
	return id
}

// Less reports whether id sorts before other.
func (id ID) Less(other ID) bool {
	for i := range id {
		if id[i] != other[i] {
			return id[i] < other[i]
		}
	}
	return false
}

func (id ID) String() string {
	const hextable = "0123456789abcdef"
	buf := make([]byte, 2*IDLen)
	for i, b := range id {
		buf[2*i] = hextable[b>>4]
		buf[2*i+1] = hextable[b&0xf]
	}
	return string(buf)
}

// Member is one participant's entry in the roster.
type Member struct {
	ID ID

	// VerifyKey authenticates everything this member signs:
	// verifiable broadcasts, shuffle transcripts, verdict certificates.
	VerifyKey ed25519.PublicKey

	// DHPublic is the member's long-lived Diffie-Hellman public key,
	// used to derive pairwise per-phase PRG seeds in the bulk round.
	DHPublic *[32]byte
}

// Group is an immutable ordered roster of participants, with a
// contiguous prefix (the "server subgroup") that performs shuffling,
// aggregation, and blame.
type Group struct {
	members    []Member
	numServers int
	index      map[ID]int
}

// New builds a Group from an ordered slice of members, where the
// first numServers entries constitute the server subgroup. The slice
// must already be in canonical order (ascending by ID); New does not
// sort it, since re-sorting would silently change which prefix is the
// server subgroup.
func New(members []Member, numServers int) (*Group, error) {
	if numServers < 0 || numServers > len(members) {
		return nil, errors.New("group: invalid server subgroup size %d for %d members", numServers, len(members))
	}
	if numServers == 0 {
		return nil, errors.New("group: anytrust requires at least one server")
	}

	index := make(map[ID]int, len(members))
	for i, m := range members {
		if i > 0 && !members[i-1].ID.Less(m.ID) {
			return nil, errors.New("group: members must be in strict ascending ID order")
		}
		if _, dup := index[m.ID]; dup {
			return nil, errors.New("group: duplicate member id %s", m.ID)
		}
		index[m.ID] = i
	}

	cp := make([]Member, len(members))
	copy(cp, members)

	return &Group{
		members:    cp,
		numServers: numServers,
		index:      index,
	}, nil
}

// Sorted returns members ordered canonically (ascending by ID), for
// callers building a Group from an unordered source (e.g. a config
// file). The caller then passes the result to New, whose numServers
// argument takes the server subgroup as a prefix of this order.
func Sorted(members []Member) []Member {
	cp := make([]Member, len(members))
	copy(cp, members)
	sort.Slice(cp, func(i, j int) bool { return cp[i].ID.Less(cp[j].ID) })
	return cp
}

// Count returns the total number of participants.
func (g *Group) Count() int { return len(g.members) }

// NumServers returns the size of the server subgroup.
func (g *Group) NumServers() int { return g.numServers }

// NumClients returns the number of non-server participants.
func (g *Group) NumClients() int { return len(g.members) - g.numServers }

// Member returns the member at the given position in canonical order.
func (g *Group) Member(idx int) Member { return g.members[idx] }

// Members returns the full roster in canonical order. The result must
// not be modified.
func (g *Group) Members() []Member { return g.members }

// ServerMembers returns the server subgroup, in canonical order. The
// result must not be modified.
func (g *Group) ServerMembers() []Member { return g.members[:g.numServers] }

// ClientMembers returns the client set, in canonical order. The
// result must not be modified.
func (g *Group) ClientMembers() []Member { return g.members[g.numServers:] }

// Index returns the canonical position of id, or -1 if id is not a
// member of the group.
func (g *Group) Index(id ID) int {
	idx, ok := g.index[id]
	if !ok {
		return -1
	}
	return idx
}

// Contains reports whether id is a member of the group.
func (g *Group) Contains(id ID) bool {
	_, ok := g.index[id]
	return ok
}

// IsServer reports whether id belongs to the server subgroup.
func (g *Group) IsServer(id ID) bool {
	idx := g.Index(id)
	return idx >= 0 && idx < g.numServers
}

// ByID looks up a member by id.
func (g *Group) ByID(id ID) (Member, bool) {
	idx, ok := g.index[id]
	if !ok {
		return Member{}, false
	}
	return g.members[idx], true
}

// ServerIndex returns id's position within the server subgroup
// specifically (0-based), or -1 if id is not a server.
func (g *Group) ServerIndex(id ID) int {
	idx := g.Index(id)
	if idx < 0 || idx >= g.numServers {
		return -1
	}
	return idx
}

// ClientIndex returns id's position within the client set
// specifically (0-based), or -1 if id is not a client.
func (g *Group) ClientIndex(id ID) int {
	idx := g.Index(id)
	if idx < g.numServers {
		return -1
	}
	return idx - g.numServers
}

// MyServer deterministically assigns a client to the server subgroup
// member it submits ciphertexts to, round-robin over the client's
// position among clients. This keeps server load roughly balanced
// without requiring any out-of-band assignment.
func (g *Group) MyServer(clientID ID) (Member, bool) {
	ci := g.ClientIndex(clientID)
	if ci < 0 {
		return Member{}, false
	}
	return g.members[ci%g.numServers], true
}
