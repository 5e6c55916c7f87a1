// Package csbulk implements the DC-net bulk round: once a shuffle
// round has anonymized a batch of one-time keys, each client is
// assigned a fixed-size slot in a cleartext vector, and every
// participant (client and server) contributes a pseudorandom
// keystream derived from its pairwise shared secrets with every other
// participant. XORing every contribution together cancels all the
// keystreams except the slot owner's actual message, recovering the
// cleartext without revealing who sent what. This mirrors the
// original CSBulkRound/MessageRandomizer machinery and the
// prifi-lib dcnet package's XOR-buffer relay decode, generalized from
// a fixed trustee/client/relay split to dissent's any-member roster.
package csbulk

import (
	"math/big"

	"github.com/dedis/dissent/errors"
	"github.com/dedis/dissent/group"
	"github.com/dedis/dissent/xcrypto"
)

// Params configures one bulk round's wire parameters.
type Params struct {
	// SlotSize is the fixed cleartext length each client's slot
	// carries per phase.
	SlotSize int
	// DisruptionProtection, when true, reserves DisruptionTagSize
	// bytes of every slot for a SHA-256 digest a slot's real owner
	// computes over the rest of the slot, letting a disruptor who
	// XORs garbage into a slot it doesn't own be caught immediately
	// at cleartext-recovery time rather than only discovered later
	// via blame.
	DisruptionProtection bool
	// RevealTimeout is a reveal deadline for a phase. Round does not
	// read it: the REVEAL state waits for reveals without a deadline,
	// and a server that commits but never reveals is not accused.
	RevealTimeout int
}

// DisruptionTagSize is the width of the per-slot disruption-protection
// tag (a SHA-256 digest), matching the 256-bit contribution reserved by the
// prifi-lib dcnet package's DISRUPTION_PROTECTION_CONTRIB_LENGTH.
const DisruptionTagSize = 32

// DefaultParams returns reasonable defaults for a text-chat-sized
// bulk round: 1KB slots, disruption protection on, a generous reveal
// timeout.
func DefaultParams() Params {
	return Params{SlotSize: 1024, DisruptionProtection: true, RevealTimeout: 30}
}

// ciphertextSize is the actual per-slot allocation: SlotSize plus the
// disruption tag when DisruptionProtection is on. The SlotLayout header
// fields (accusation flag, phase, next-phase length) are not added.
func (p Params) ciphertextSize() int {
	n := p.SlotSize
	if p.DisruptionProtection {
		n += DisruptionTagSize
	}
	return n
}

// SlotLayout matches spec's wire layout for one client's cleartext
// contribution within a phase: an accusation flag, the phase number
// it belongs to, the length of the NEXT phase's payload (so slot
// sizes can shrink or grow between phases without a side channel),
// the payload itself, and an optional disruption tag.
type SlotLayout struct {
	Accusation    bool
	Phase         uint32
	NextPhaseLen  uint32
	Payload       []byte
	DisruptionTag []byte
}

// Member tracks one participant's per-round DC-net state: the
// pairwise shared secrets it has with every other member (used to
// derive a per-phase keystream seed).
type Member struct {
	Self  group.ID
	Peers []group.ID

	secrets map[group.ID]*[32]byte
}

// NewMember builds a Member's pairwise-secret table from its identity
// and every peer's DH public key, using Identity.SharedSecret the same
// way the keywheel package derives a pairwise secret for message
// encryption.
func NewMember(self group.ID, local *xcrypto.Identity, peers []group.Member) (*Member, error) {
	m := &Member{Self: self, secrets: make(map[group.ID]*[32]byte)}
	for _, p := range peers {
		if p.ID == self {
			continue
		}
		m.Peers = append(m.Peers, p.ID)
		m.secrets[p.ID] = local.SharedSecret(p.DHPublic)
	}
	return m, nil
}

// PhaseKeystream derives this member's per-peer keystream
// contribution for one phase of one round, XORing every pairwise PRG
// expansion together: each pair of members agrees, without further
// communication, on a ChaCha20 keystream seeded from an HKDF
// expansion of their shared DH secret salted by phase and round id,
// matching the keywheel package's hash-ratchet idiom generalized from
// a single rolling key to a fresh-per-phase derivation.
func (m *Member) PhaseKeystream(roundID []byte, phase uint32, length int) ([]byte, error) {
	out := make([]byte, length)
	for _, peer := range m.Peers {
		secret := m.secrets[peer]
		seed, err := xcrypto.PhaseSeed(secret, phase, roundID)
		if err != nil {
			return nil, errors.Wrap(err, "csbulk: deriving phase seed for %s", peer)
		}
		stream, err := xcrypto.ExpandPRG(seed, length)
		if err != nil {
			return nil, errors.Wrap(err, "csbulk: expanding phase keystream for %s", peer)
		}
		xorInto(out, stream)
	}
	return out, nil
}

// slotSeed derives a per-slot round id by appending the slot index to
// the round id, without aliasing the caller's roundID backing array.
func slotSeed(roundID []byte, slot int) []byte {
	out := make([]byte, len(roundID)+1)
	copy(out, roundID)
	out[len(roundID)] = byte(slot)
	return out
}

func xorInto(dst, src []byte) {
	for i := range dst {
		dst[i] ^= src[i]
	}
}

// ClientCiphertext XORs a client's keystream with its cleartext slot
// contribution for this phase: every other slot position gets pure
// keystream (the client contributes nothing there beyond canceling
// out its own pairwise secrets), and the client's own slot gets
// keystream XOR cleartext.
func ClientCiphertext(m *Member, roundID []byte, phase uint32, slotIndex int, slotCount int, slotSize int, payload []byte) ([][]byte, error) {
	if len(payload) > slotSize {
		return nil, errors.New("csbulk: payload exceeds slot size")
	}
	out := make([][]byte, slotCount)
	for i := 0; i < slotCount; i++ {
		stream, err := m.PhaseKeystream(slotSeed(roundID, i), phase, slotSize)
		if err != nil {
			return nil, err
		}
		if i == slotIndex {
			padded := make([]byte, slotSize)
			copy(padded, payload)
			xorInto(stream, padded)
		}
		out[i] = stream
	}
	return out, nil
}

// ServerCiphertext produces a server's XOR contribution across every
// slot for this phase: a server has no cleartext of its own, so its
// ciphertext is pure keystream in every slot.
func ServerCiphertext(m *Member, roundID []byte, phase uint32, slotCount int, slotSize int) ([][]byte, error) {
	out := make([][]byte, slotCount)
	for i := 0; i < slotCount; i++ {
		stream, err := m.PhaseKeystream(slotSeed(roundID, i), phase, slotSize)
		if err != nil {
			return nil, err
		}
		out[i] = stream
	}
	return out, nil
}

// Combine XORs every participant's per-slot contribution together,
// recovering cleartext in slots whose owner actually transmitted and
// pure garbage (ideally all-zero, if everyone behaved) elsewhere.
func Combine(slotSize, slotCount int, contributions [][][]byte) [][]byte {
	result := make([][]byte, slotCount)
	for i := range result {
		result[i] = make([]byte, slotSize)
	}
	for _, c := range contributions {
		for i := 0; i < slotCount; i++ {
			xorInto(result[i], c[i])
		}
	}
	return result
}

// bigIntHash reads b as a big-endian unsigned integer; it does not
// hash b. The rebuttal proofs in blame.go do not call it.
func bigIntHash(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}
