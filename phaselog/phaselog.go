// Package phaselog retains the last several phases' worth of protocol
// state a CSBulk round needs to answer a blame accusation after the
// fact: each client's submitted ciphertext, the table mapping a
// client's slot to its offset within the combined cleartext vector,
// and each server's XOR contribution. A round only needs to go back
// far enough to cover RevealTimeout, so the log is a fixed-size ring
// rather than an unbounded history.
package phaselog

import "github.com/dedis/dissent/group"

// Entry is one phase's retained state.
type Entry struct {
	Phase uint32

	// Ciphertexts holds each client's submitted ciphertext contribution
	// for this phase, keyed by the client's group id.
	Ciphertexts map[group.ID][][]byte

	// ServerContributions holds each server's XOR contribution for this
	// phase, keyed by the server's group id.
	ServerContributions map[group.ID][][]byte

	// Offsets maps a client id to its slot index within the combined
	// cleartext vector for this phase.
	Offsets map[group.ID]int
}

func newEntry(phase uint32) *Entry {
	return &Entry{
		Phase:               phase,
		Ciphertexts:         make(map[group.ID][][]byte),
		ServerContributions: make(map[group.ID][][]byte),
		Offsets:             make(map[group.ID]int),
	}
}

// PhaseLog is a ring buffer of retained Entry values plus accusation
// state: for every server ever accused, the bit it actually claimed
// versus the bit blame resolution expects, so a repeated or disputed
// accusation over the same phase/server pair can be answered without
// re-running the whole exchange.
type PhaseLog struct {
	depth   int
	entries map[uint32]*Entry
	order   []uint32

	blameBits map[blameKey]bitClaim
}

type blameKey struct {
	phase   uint32
	accused group.ID
}

type bitClaim struct {
	actual, expected byte
}

// DefaultDepth is how many phases a log retains before evicting the
// oldest, enough to cover a generous RevealTimeout without growing
// unbounded over a long-running round.
const DefaultDepth = 5

// NewPhaseLog returns a log retaining DefaultDepth phases.
func NewPhaseLog() *PhaseLog {
	return NewPhaseLogDepth(DefaultDepth)
}

// NewPhaseLogDepth returns a log retaining the given number of phases.
func NewPhaseLogDepth(depth int) *PhaseLog {
	return &PhaseLog{
		depth:     depth,
		entries:   make(map[uint32]*Entry),
		blameBits: make(map[blameKey]bitClaim),
	}
}

// RecordCiphertext stores a client's ciphertext contribution for a
// phase, creating the phase's entry if this is the first contribution
// seen for it.
func (l *PhaseLog) RecordCiphertext(phase uint32, client group.ID, contribution [][]byte) {
	l.entry(phase).Ciphertexts[client] = contribution
}

// RecordServerContribution stores a server's XOR contribution for a
// phase.
func (l *PhaseLog) RecordServerContribution(phase uint32, server group.ID, contribution [][]byte) {
	l.entry(phase).ServerContributions[server] = contribution
}

// RecordOffset records which slot a client owns for a phase.
func (l *PhaseLog) RecordOffset(phase uint32, client group.ID, slot int) {
	l.entry(phase).Offsets[client] = slot
}

// Entry returns the retained state for a phase, or nil if it has
// already been evicted or was never recorded.
func (l *PhaseLog) Entry(phase uint32) *Entry {
	return l.entries[phase]
}

func (l *PhaseLog) entry(phase uint32) *Entry {
	if e, ok := l.entries[phase]; ok {
		return e
	}
	e := newEntry(phase)
	l.entries[phase] = e
	l.order = append(l.order, phase)
	if len(l.order) > l.depth {
		evict := l.order[0]
		l.order = l.order[1:]
		delete(l.entries, evict)
	}
	return e
}

// RecordBlameBit stores the actual bit a server broadcast against the
// bit blame resolution expected it to have broadcast, for a disputed
// phase/server pair.
func (l *PhaseLog) RecordBlameBit(phase uint32, accused group.ID, actual, expected byte) {
	l.blameBits[blameKey{phase, accused}] = bitClaim{actual, expected}
}

// BlameBit returns the recorded actual/expected bit pair for a
// disputed phase/server pair, if any.
func (l *PhaseLog) BlameBit(phase uint32, accused group.ID) (actual, expected byte, ok bool) {
	c, found := l.blameBits[blameKey{phase, accused}]
	return c.actual, c.expected, found
}
