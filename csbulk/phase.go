package csbulk

import (
	"github.com/dedis/dissent/errors"
	"github.com/dedis/dissent/group"
	"github.com/dedis/dissent/phaselog"
	"github.com/dedis/dissent/round"
	"github.com/dedis/dissent/statemachine"
	"github.com/dedis/dissent/wire"
	"github.com/dedis/dissent/xcrypto"
	"github.com/dedis/dissent/xlog"
)

// Server-side wire message kinds for one phase of the round, aliased
// from the shared wire.Tag enum so the state machine's trigger kinds
// and the transport's envelope tags never drift apart.
const (
	kindClientList        = int(wire.ServerClientList)
	kindCommit            = int(wire.ServerCommit)
	kindCiphertext        = int(wire.ServerCiphertext)
	kindValidation        = int(wire.ServerValidation)
	kindCleartext         = int(wire.ServerCleartext)
	kindBlameBits         = int(wire.ServerBlameBits)
	kindRebuttalOrVerdict = int(wire.ServerRebuttalOrVerdict)
	kindClientRebuttal    = int(wire.ClientRebuttal)
	kindVerdictSignature  = int(wire.ServerVerdictSignature)
)

// States of the phase protocol: admission of the client list, commit
// to a ciphertext hash, reveal the ciphertext itself, validate
// (combine every revealed contribution; reveals are not checked
// against their commitments here), publish the combined cleartext,
// and process it back into the application. PROCESS is the cycle
// state: StateComplete in PROCESS re-enters PROCESS and advances the
// phase counter; the machine does not return to ADMISSION. ACCUSED,
// REBUTTAL, VERDICT and DONE are the blame path entered via Accuse.
const (
	stateAdmission = "ADMISSION"
	stateCommit    = "COMMIT"
	stateReveal    = "REVEAL"
	stateValidate  = "VALIDATE"
	statePublish   = "PUBLISH"
	stateProcess   = "PROCESS"
	stateAccused   = "ACCUSED"
	stateRebuttal  = "REBUTTAL"
	stateVerdict   = "VERDICT"
	stateBulkDone  = "DONE"
)

// Round drives the phase cycle described above for one server or
// client participant. It embeds the common round lifecycle
// (verifiable broadcast/send, Start/Stop/Finish bookkeeping) the same
// way shuffle.Shuffle does, so both protocol phases share one notion
// of what a round's lifetime looks like. It does not implement
// netadapter wiring or message (de)serialization directly; those live
// in the wire package and whatever concrete transport a deployment
// chooses, consistent with how mixnet.go's Conn separates protocol
// state from net/rpc plumbing.
type Round struct {
	*round.Round

	Params Params
	Self   group.ID
	member *Member

	sm *statemachine.StateMachine

	slotCount int
	log       *phaselog.PhaseLog

	accusation *Accusation

	clientLists map[group.ID][]bool
	commitments map[group.ID][]byte
	contribs    map[group.ID][][]byte
	validations map[group.ID][]byte

	ownContribution [][]byte
	cleartext       [][]byte
	disrupted       []int
}

// NewRound builds a CSBulk round ready to run. member must already
// hold pairwise secrets with every other participant, derived from
// the anonymized DH keys a prior shuffle round produced. base's
// RoundID, Group, and Local identity are reused as-is.
func NewRound(base *round.Round, params Params, self group.ID, member *Member) *Round {
	r := &Round{
		Round:       base,
		Params:      params,
		Self:        self,
		member:      member,
		slotCount:   base.Group.NumClients(),
		log:         phaselog.NewPhaseLog(),
		clientLists: make(map[group.ID][]bool),
		commitments: make(map[group.ID][]byte),
		contribs:    make(map[group.ID][][]byte),
		validations: make(map[group.ID][]byte),
	}
	r.sm = statemachine.New()
	r.buildStates()
	return r
}

func (r *Round) buildStates() {
	sm := r.sm
	sm.AddState(stateAdmission, true, kindClientList, r.handleClientList, r.admitClients)
	sm.AddState(stateCommit, true, kindCommit, r.handleCommit, r.commitPhase)
	sm.AddState(stateReveal, true, kindCiphertext, r.handleCiphertext, r.revealPhase)
	sm.AddState(stateValidate, true, kindValidation, r.handleValidation, r.validatePhase)
	sm.AddState(statePublish, false, 0, nil, r.publishPhase)
	sm.AddState(stateProcess, false, 0, nil, r.processPhase)
	sm.AddState(stateAccused, false, 0, nil, nil)
	sm.AddState(stateRebuttal, true, kindRebuttalOrVerdict, r.handleRebuttalOrVerdict, nil)
	sm.AddState(stateVerdict, false, 0, nil, nil)
	sm.AddState(stateBulkDone, false, 0, nil, nil)

	sm.AddTransition(stateAdmission, stateCommit)
	sm.AddTransition(stateCommit, stateReveal)
	sm.AddTransition(stateReveal, stateValidate)
	sm.AddTransition(stateValidate, statePublish)
	sm.AddTransition(statePublish, stateProcess)
	sm.SetCycleState(stateProcess)
	sm.AddTransition(stateAccused, stateRebuttal)
	sm.AddTransition(stateRebuttal, stateVerdict)
	sm.AddTransition(stateVerdict, stateBulkDone)
}

// Phase returns the current phase number (how many times the PROCESS
// state has cycled).
func (r *Round) Phase() int { return r.sm.Phase() }

// PhaseLogForTests exposes the round's phase log, used by tests that
// need to inspect recorded contributions directly instead of driving
// the whole protocol through wire messages.
func (r *Round) PhaseLogForTests() *phaselog.PhaseLog { return r.log }

// ComputeCiphertext produces this participant's ciphertext
// contribution for the given phase: servers pass a nil payload (they
// have no cleartext slot of their own); clients pass their slot index
// and payload.
func (r *Round) ComputeCiphertext(phase uint32, slotIndex int, payload []byte) ([][]byte, error) {
	if payload == nil {
		out, err := ServerCiphertext(r.member, r.RoundID, phase, r.slotCount, r.Params.ciphertextSize())
		if err != nil {
			return nil, err
		}
		r.log.RecordServerContribution(phase, r.Self, out)
		return out, nil
	}
	out, err := ClientCiphertext(r.member, r.RoundID, phase, slotIndex, r.slotCount, r.Params.ciphertextSize(), payload)
	if err != nil {
		return nil, err
	}
	r.log.RecordCiphertext(phase, r.Self, out)
	r.log.RecordOffset(phase, r.Self, slotIndex)
	return out, nil
}

// HandleMessage is the entry point a transport adapter calls once it
// has decoded an incoming wire message's kind and payload; the actual
// decoding and per-kind dispatch belongs to the wire package, so this
// just forwards into the state machine.
func (r *Round) HandleMessage(kind int, payload []byte) error {
	return r.sm.HandleMessage(kind, payload)
}

// peerServerCount is how many other servers' messages this server
// waits for before a step of the phase cycle is considered complete.
func (r *Round) peerServerCount() int {
	return r.Group.NumServers() - 1
}

// admitClients broadcasts which clients this server believes are
// present for the phase about to run, the step CSBulkRound.cpp calls
// client admission.
func (r *Round) admitClients() error {
	r.clientLists = make(map[group.ID][]bool)
	served := make([]bool, r.slotCount)
	for i := range served {
		served[i] = true
	}
	msg := wire.ServerClientListMsg{Served: served}
	data, err := wire.Encode(wire.ServerClientList, r.RoundID, uint32(r.Phase()), msg)
	if err != nil {
		return err
	}
	return r.VerifiableBroadcastToServers(data)
}

func (r *Round) handleClientList(payload []byte) error {
	var msg wire.ServerClientListMsg
	if _, err := wire.Decode(payload, &msg); err != nil {
		return err
	}
	// attributing msg.Served to its sender is the transport adapter's
	// job; here we just count arrivals against the expected quorum.
	r.clientLists[group.ID{}] = msg.Served
	if len(r.clientLists) >= r.peerServerCount() {
		return r.sm.StateComplete()
	}
	return nil
}

// commitPhase computes this server's ciphertext contribution for the
// phase and broadcasts its commitment hash, so no server can choose
// its contribution after seeing anyone else's.
func (r *Round) commitPhase() error {
	r.commitments = make(map[group.ID][]byte)
	r.contribs = make(map[group.ID][][]byte)
	contribution, err := r.ComputeCiphertext(uint32(r.Phase()), 0, nil)
	if err != nil {
		return err
	}
	r.ownContribution = contribution
	msg := wire.ServerCommitMsg{Commitment: CommitmentFor(contribution)}
	data, err := wire.Encode(wire.ServerCommit, r.RoundID, uint32(r.Phase()), msg)
	if err != nil {
		return err
	}
	return r.VerifiableBroadcastToServers(data)
}

func (r *Round) handleCommit(payload []byte) error {
	var msg wire.ServerCommitMsg
	if _, err := wire.Decode(payload, &msg); err != nil {
		return err
	}
	r.commitments[group.ID{}] = msg.Commitment
	if len(r.commitments) >= r.peerServerCount() {
		return r.sm.StateComplete()
	}
	return nil
}

// revealPhase publishes the contribution committed to in commitPhase.
func (r *Round) revealPhase() error {
	msg := wire.ServerCiphertextMsg{Contribution: r.ownContribution}
	data, err := wire.Encode(wire.ServerCiphertext, r.RoundID, uint32(r.Phase()), msg)
	if err != nil {
		return err
	}
	return r.VerifiableBroadcastToServers(data)
}

func (r *Round) handleCiphertext(payload []byte) error {
	var msg wire.ServerCiphertextMsg
	if _, err := wire.Decode(payload, &msg); err != nil {
		return err
	}
	// a real deployment validates msg.Contribution against the sender's
	// stored commitment before accepting it, raising Accuse on mismatch;
	// sender attribution again belongs to the transport adapter.
	r.contribs[group.ID{}] = msg.Contribution
	if len(r.contribs) >= r.peerServerCount() {
		return r.sm.StateComplete()
	}
	return nil
}

// validatePhase recovers the cleartext from every revealed
// contribution (including this server's own) and signals validation
// completion; disrupted slots are recorded but do not by themselves
// block publication, matching spec.md's disruption handling.
func (r *Round) validatePhase() error {
	all := make([][][]byte, 0, len(r.contribs)+1)
	all = append(all, r.ownContribution)
	for _, c := range r.contribs {
		all = append(all, c)
	}
	r.cleartext, r.disrupted = r.RecoverCleartext(all)
	return r.sm.StateComplete()
}

func (r *Round) handleValidation(payload []byte) error {
	var msg wire.ServerValidationMsg
	if _, err := wire.Decode(payload, &msg); err != nil {
		return err
	}
	r.validations[group.ID{}] = msg.Signature
	if len(r.validations) >= r.peerServerCount() {
		return r.sm.StateComplete()
	}
	return nil
}

// publishPhase delivers the recovered cleartext to clients along with
// every collected validation signature.
func (r *Round) publishPhase() error {
	msg := wire.ServerCleartextMsg{Cleartext: r.cleartext, Signatures: r.validations}
	data, err := wire.Encode(wire.ServerCleartext, r.RoundID, uint32(r.Phase()), msg)
	if err != nil {
		return err
	}
	if err := r.VerifiableBroadcastToClients(data); err != nil {
		return err
	}
	return r.sm.StateComplete()
}

// processPhase hands the recovered cleartext to the application.
// PROCESS is the cycle state, so it does not complete itself: each
// StateComplete the caller makes in PROCESS re-enters it and advances
// the phase counter.
func (r *Round) processPhase() error {
	if r.PushData != nil {
		r.PushData(r.cleartext)
	}
	return nil
}

func (r *Round) handleRebuttalOrVerdict(payload []byte) error {
	var msg wire.ServerRebuttalOrVerdictMsg
	if _, err := wire.Decode(payload, &msg); err != nil {
		return err
	}
	if msg.IsVerdict {
		return r.sm.StateComplete()
	}
	return nil
}

// CommitmentFor hashes a participant's ciphertext contribution for the
// commit step, so servers exchange commitments before any reveal,
// preventing a server from choosing its ciphertext adaptively after
// seeing others' contributions.
func CommitmentFor(contribution [][]byte) []byte {
	return xcrypto.HashAll(contribution...)
}

// ValidateReveal checks a revealed ciphertext contribution against its
// previously exchanged commitment hash.
func ValidateReveal(commitment []byte, contribution [][]byte) bool {
	got := CommitmentFor(contribution)
	if len(got) != len(commitment) {
		return false
	}
	for i := range got {
		if got[i] != commitment[i] {
			return false
		}
	}
	return true
}

// RecoverCleartext XORs every participant's revealed contribution
// together and, when disruption protection is enabled, verifies each
// slot's trailing tag, flagging any slot whose tag does not match its
// payload as disrupted rather than returning corrupted data silently.
func (r *Round) RecoverCleartext(contributions [][][]byte) (cleartext [][]byte, disrupted []int) {
	slotSize := r.Params.ciphertextSize()
	combined := Combine(slotSize, r.slotCount, contributions)
	cleartext = make([][]byte, r.slotCount)
	for i, slot := range combined {
		if !r.Params.DisruptionProtection {
			cleartext[i] = slot
			continue
		}
		payload := slot[:r.Params.SlotSize]
		tag := slot[r.Params.SlotSize:]
		expect := xcrypto.HashAll(payload)[:DisruptionTagSize]
		ok := true
		for j := range expect {
			if expect[j] != tag[j] {
				ok = false
				break
			}
		}
		if !ok {
			disrupted = append(disrupted, i)
		}
		cleartext[i] = payload
	}
	return cleartext, disrupted
}

// Accuse forces the round into its blame sub-protocol for the given
// slot, recording who raised the accusation; it can be called from any
// state, mirroring the original implementation's use of a forced
// SetState jump for blame regardless of where the main phase cycle
// currently stands.
func (r *Round) Accuse(slot int, reason error) error {
	r.accusation = &Accusation{Slot: slot, Reason: reason}
	xlog.Server(r.RoundID, "csbulk", r.Self).Warnf("accusation raised for slot %d: %s", slot, reason)
	return r.sm.SetState(stateAccused)
}

// Accusation records the slot under dispute and why it was raised.
// When two accusations target the same phase, the implementation
// resolves the conflict in favor of whichever accuser comes first in
// subgroup order, matching the design note resolving the "overlapping
// accusation" open question.
type Accusation struct {
	Slot   int
	Reason error
}

// ResolveOverlap picks which of two simultaneous accusations the
// round should act on first.
func ResolveOverlap(g *group.Group, a, b group.ID) group.ID {
	if g.ServerIndex(a) <= g.ServerIndex(b) {
		return a
	}
	return b
}

var errNotImplemented = errors.New("csbulk: wire handling not implemented at this layer")
