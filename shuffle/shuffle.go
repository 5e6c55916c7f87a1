package shuffle

import (
	"crypto/rand"
	"math/big"

	"github.com/dedis/dissent/errors"
	"github.com/dedis/dissent/group"
	"github.com/dedis/dissent/round"
	"github.com/dedis/dissent/statemachine"
	"github.com/dedis/dissent/wire"
	"github.com/dedis/dissent/xcrypto/dsagroup"
)

// Kind distinguishes the three ways a Shuffle round can be used: to
// anonymize a batch of freshly generated one-time keys (KeyShuffle),
// to anonymize client-submitted application data under those
// anonymized keys (DataShuffle), or to run no shuffle at all
// (NullShuffle, for a group too small for a shuffle to provide any
// anonymity, where the round degenerates to a plain broadcast).
type Kind int

const (
	KeyShuffle Kind = iota
	DataShuffle
	NullShuffle
)

// wire message kinds exchanged during a shuffle round, aliased from
// the shared wire.Tag enum.
const (
	kindKeySubmit      = int(wire.KeySubmit)
	kindKeyShuffle     = int(wire.KeyShuffle)
	kindAnonymizedKeys = int(wire.AnonymizedKeys)
	kindMsgSubmit      = int(wire.MsgSubmit)
	kindMsgShuffle     = int(wire.MsgShuffle)
	kindMsgSignature   = int(wire.MsgSignature)
	kindMsgOutput      = int(wire.MsgOutput)
)

// states, named the way NeffShuffle.cpp names them.
const (
	stateOffline                      = "OFFLINE"
	stateKeyGeneration                = "KEY_GENERATION"
	stateKeyExchange                  = "KEY_EXCHANGE"
	stateWaitingForKeys               = "WAITING_FOR_KEYS"
	statePushServerKeys               = "PUSH_SERVER_KEYS"
	stateWaitingForMsgs               = "WAITING_FOR_MSGS"
	stateShuffling                    = "SHUFFLING"
	stateTransmitShuffle              = "TRANSMIT_SHUFFLE"
	stateWaitingForShufflesBeforeTurn = "WAITING_FOR_SHUFFLES_BEFORE_TURN"
	stateWaitingForShufflesAfterTurn  = "WAITING_FOR_SHUFFLES_AFTER_TURN"
	stateSubmitSignature              = "SUBMIT_SIGNATURE"
	stateWaitingForSignatures         = "WAITING_FOR_SIGNATURES"
	statePushOutput                   = "PUSH_OUTPUT"
	stateFinished                     = "FINISHED"
)

// keyMaterial is the per-server keypair generated fresh for one
// shuffle round: the DSA-style group element keypair used for the
// ElGamal layering, distinct from the server's long-term ed25519
// identity used only to sign transcripts.
type keyMaterial struct {
	Priv *big.Int
	Pub  *big.Int
}

// Shuffle drives one verifiable shuffle round through states for key
// agreement among the servers, client submission, each server's turn
// permuting and partially decrypting the ciphertext list in subgroup
// order, and a final signature exchange over the recovered cleartext
// list. KeyShuffle and DataShuffle run the same states; each server
// generates a fresh key in both. Several states only advance the
// state machine: handleKeySubmit does not record the received key,
// transmitShuffle and handleShuffle send and check no transcript, and
// submitSignature and handleSignature neither sign nor verify.
type Shuffle struct {
	*round.Round

	Kind   Kind
	Params *dsagroup.Params
	sm     *statemachine.StateMachine

	serverKey      keyMaterial
	serverPubKeys  map[group.ID]*big.Int
	keySigShares   map[group.ID][]byte

	submissions map[group.ID]*Ciphertext
	submitOrder []group.ID

	current []*Ciphertext
	turn    int

	outputs   [][]byte
	sigShares map[group.ID][]byte
}

// New constructs a Shuffle round. For NullShuffle, Run degenerates
// immediately to sending GetData's output to every client and pushing
// it locally, without any cryptographic shuffling, which is appropriate only when the roster
// is too small for a permutation to hide anything.
func New(base *round.Round, kind Kind, params *dsagroup.Params) *Shuffle {
	s := &Shuffle{
		Round:         base,
		Kind:          kind,
		Params:        params,
		serverPubKeys: make(map[group.ID]*big.Int),
		keySigShares:  make(map[group.ID][]byte),
		submissions:   make(map[group.ID]*Ciphertext),
		sigShares:     make(map[group.ID][]byte),
	}
	s.sm = statemachine.New()
	s.buildStates()
	return s
}

func (s *Shuffle) localID() group.ID {
	return group.IDFromKey(s.Local.SignPub)
}

func (s *Shuffle) isFirstServer() bool {
	return s.Group.ServerIndex(s.localID()) == 0
}

func (s *Shuffle) buildStates() {
	sm := s.sm
	g := s.Group
	isServer := g.IsServer(s.localID())

	sm.AddState(stateOffline, false, 0, nil, nil)
	sm.AddState(stateFinished, false, 0, nil, nil)

	if !isServer {
		sm.AddState(stateKeyGeneration, false, 0, nil, s.clientSubmit)
		sm.AddTransition(stateOffline, stateKeyGeneration)
		sm.AddTransition(stateKeyGeneration, stateFinished)
		return
	}

	sm.AddState(stateKeyGeneration, false, 0, nil, s.generateKey)
	sm.AddState(stateKeyExchange, false, 0, nil, s.submitKey)
	sm.AddState(stateWaitingForKeys, true, kindKeySubmit, s.handleKeySubmit, nil)
	sm.AddState(statePushServerKeys, false, 0, nil, s.pushServerKeys)

	if s.isFirstServer() {
		sm.AddState(stateWaitingForMsgs, true, kindMsgSubmit, s.handleMsgSubmit, s.prepareForSubmissions)
	} else {
		sm.AddState(stateWaitingForShufflesBeforeTurn, true, kindMsgShuffle, s.handleShuffle, nil)
	}

	sm.AddState(stateShuffling, false, 0, nil, s.shuffleMessages)
	sm.AddState(stateTransmitShuffle, false, 0, nil, s.transmitShuffle)
	sm.AddState(stateWaitingForShufflesAfterTurn, true, kindMsgShuffle, s.handleShuffle, nil)
	sm.AddState(stateSubmitSignature, false, 0, nil, s.submitSignature)
	sm.AddState(stateWaitingForSignatures, true, kindMsgSignature, s.handleSignature, nil)
	sm.AddState(statePushOutput, false, 0, nil, s.pushOutput)

	sm.AddTransition(stateOffline, stateKeyGeneration)
	sm.AddTransition(stateKeyGeneration, stateKeyExchange)
	sm.AddTransition(stateKeyExchange, stateWaitingForKeys)
	sm.AddTransition(stateWaitingForKeys, statePushServerKeys)

	if s.isFirstServer() {
		sm.AddTransition(statePushServerKeys, stateWaitingForMsgs)
		sm.AddTransition(stateWaitingForMsgs, stateShuffling)
	} else {
		sm.AddTransition(statePushServerKeys, stateWaitingForShufflesBeforeTurn)
		sm.AddTransition(stateWaitingForShufflesBeforeTurn, stateShuffling)
	}
	sm.AddTransition(stateShuffling, stateTransmitShuffle)

	if s.isLastServer() {
		sm.AddTransition(stateTransmitShuffle, stateSubmitSignature)
	} else {
		sm.AddTransition(stateTransmitShuffle, stateWaitingForShufflesAfterTurn)
		sm.AddTransition(stateWaitingForShufflesAfterTurn, stateSubmitSignature)
	}
	sm.AddTransition(stateSubmitSignature, stateWaitingForSignatures)
	sm.AddTransition(stateWaitingForSignatures, statePushOutput)
	sm.AddTransition(statePushOutput, stateFinished)
}

func (s *Shuffle) isLastServer() bool {
	return s.Group.ServerIndex(s.localID()) == s.Group.NumServers()-1
}

// Run starts the round by entering the first state.
func (s *Shuffle) Run() error {
	s.Start()
	if s.Kind == NullShuffle {
		return s.runNull()
	}
	return s.sm.SetState(stateOffline)
}

func (s *Shuffle) runNull() error {
	data := s.GetData(0)
	if err := s.VerifiableBroadcastToClients(data); err != nil {
		return err
	}
	s.PushData([][]byte{data})
	s.Finish()
	return nil
}

// HandleMessage feeds an incoming wire message of the given kind to
// the underlying state machine.
func (s *Shuffle) HandleMessage(kind int, payload []byte) error {
	return s.sm.HandleMessage(kind, payload)
}

func (s *Shuffle) generateKey() error {
	priv, err := s.Params.RandomExponent(nil)
	if err != nil {
		return errors.Wrap(err, "shuffle: generating server key")
	}
	s.serverKey = keyMaterial{Priv: priv, Pub: s.Params.Exp(s.Params.G, priv)}
	return s.sm.StateComplete()
}

func (s *Shuffle) submitKey() error {
	msg := wire.KeySubmitMsg{Pub: s.Params.EncodeElement(s.serverKey.Pub)}
	data, err := wire.Encode(wire.KeySubmit, s.RoundID, uint32(s.sm.Phase()), msg)
	if err != nil {
		return err
	}
	if err := s.VerifiableBroadcastToServers(data); err != nil {
		return err
	}
	return s.sm.StateComplete()
}

func (s *Shuffle) handleKeySubmit(payload []byte) error {
	var msg wire.KeySubmitMsg
	if _, err := wire.Decode(payload, &msg); err != nil {
		return err
	}
	pub := s.Params.DecodeElement(msg.Pub)
	if !s.Params.InGroup(pub) {
		return errors.New("shuffle: server key is not in the expected subgroup")
	}
	// sender identity is carried by the transport layer's envelope in
	// a full implementation; wiring it through here is left to the
	// concrete transport adapter.
	if len(s.serverPubKeys) >= s.Group.NumServers()-1 {
		return s.sm.StateComplete()
	}
	return nil
}

func (s *Shuffle) pushServerKeys() error {
	return s.sm.StateComplete()
}

func (s *Shuffle) prepareForSubmissions() error {
	return nil
}

func (s *Shuffle) handleMsgSubmit(payload []byte) error {
	var msg wire.MsgSubmitMsg
	if _, err := wire.Decode(payload, &msg); err != nil {
		return err
	}
	c := &Ciphertext{Gamma: s.Params.DecodeElement(msg.Gamma), Enc: s.Params.DecodeElement(msg.Enc)}
	// As with handleKeySubmit, attributing c to its sender id is the
	// transport adapter's job; here we just accumulate submissions in
	// arrival order.
	s.submitOrder = append(s.submitOrder, group.ID{})
	s.current = append(s.current, c)
	if len(s.current) >= s.Group.NumClients() {
		return s.sm.StateComplete()
	}
	return nil
}

func (s *Shuffle) clientSubmit() error {
	payload := s.GetData(s.Params.ElementSize())
	m, err := Encode(s.Params, payload)
	if err != nil {
		return err
	}
	serverKeys := make([]*big.Int, 0, s.Group.NumServers())
	for _, pub := range s.serverPubKeys {
		serverKeys = append(serverKeys, pub)
	}
	c, err := EncryptUnderKeys(s.Params, serverKeys, m)
	if err != nil {
		return err
	}
	msg := wire.MsgSubmitMsg{Gamma: s.Params.EncodeElement(c.Gamma), Enc: s.Params.EncodeElement(c.Enc)}
	data, err := wire.Encode(wire.MsgSubmit, s.RoundID, uint32(s.sm.Phase()), msg)
	if err != nil {
		return err
	}
	server, ok := s.Group.MyServer(s.localID())
	if !ok {
		return errors.New("shuffle: client has no assigned server")
	}
	if err := s.VerifiableSend(server.ID, data); err != nil {
		return err
	}
	return s.sm.StateComplete()
}

func (s *Shuffle) remainingServerKeys(fromTurn int) *big.Int {
	product := big.NewInt(1)
	servers := s.Group.ServerMembers()
	for i := fromTurn; i < len(servers); i++ {
		if pub, ok := s.serverPubKeys[servers[i].ID]; ok {
			product = s.Params.MulMod(product, pub)
		}
	}
	return product
}

func (s *Shuffle) shuffleMessages() error {
	k := len(s.current)
	perm := identityPermutation(k)
	fisherYatesShuffle(perm)

	remaining := s.remainingServerKeys(s.Group.ServerIndex(s.localID()) + 1)
	out, _, err := ProveShuffleStep(s.Params, s.RoundID, s.serverKey.Priv, s.serverKey.Pub, remaining, s.current, perm)
	if err != nil {
		return err
	}
	s.current = out
	return s.sm.StateComplete()
}

func (s *Shuffle) transmitShuffle() error {
	return s.sm.StateComplete()
}

func (s *Shuffle) handleShuffle(payload []byte) error {
	return s.sm.StateComplete()
}

func (s *Shuffle) submitSignature() error {
	s.outputs = make([][]byte, len(s.current))
	for i, c := range s.current {
		s.outputs[i] = Decode(c.Enc)
	}
	return s.sm.StateComplete()
}

func (s *Shuffle) handleSignature(payload []byte) error {
	return s.sm.StateComplete()
}

func (s *Shuffle) pushOutput() error {
	s.PushData(s.outputs)
	s.Finish()
	return s.sm.StateComplete()
}

func identityPermutation(k int) []int {
	p := make([]int, k)
	for i := range p {
		p[i] = i
	}
	return p
}

func fisherYatesShuffle(p []int) {
	for i := len(p) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			continue
		}
		j := int(n.Int64())
		p[i], p[j] = p[j], p[i]
	}
}
