// Package mailbox implements the per-chain message entry and exit point as
// transitions over consumable outputs.
//
// Outbound: every dispatch consumes the single mailbox state output and
// produces its successor, which serializes dispatches and makes the nonce a
// total order by construction. Inbound: deliveries never consume the mailbox
// output — they reference it, mint a per-message proof token for replay
// protection, and consume only the recipient's own state output. Deliveries
// to different recipients therefore never contend.
package mailbox

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/eigerco/hyperlane-utxo/ism"
	"github.com/eigerco/hyperlane-utxo/ledger"
	"github.com/eigerco/hyperlane-utxo/message"
	"github.com/eigerco/hyperlane-utxo/registry"
)

// Mailbox holds the static parameters of one deployed mailbox instance.
type Mailbox struct {
	// StateAddress is the script address holding the mailbox state output.
	StateAddress ledger.Address
	// Identity is the stable identity token minted at genesis. Locating and
	// authenticating the state output means finding this token, never
	// matching a script hash.
	Identity ledger.AssetID
	// ProofPolicy mints the one-per-message delivered-proof tokens.
	ProofPolicy ledger.PolicyID

	Registry *Registry
	log      zerolog.Logger
}

// Registry is the recipient registry dependency.
type Registry = registry.Registry

func New(stateAddress ledger.Address, identity ledger.AssetID, proofPolicy ledger.PolicyID, reg *Registry, log zerolog.Logger) *Mailbox {
	return &Mailbox{
		StateAddress: stateAddress,
		Identity:     identity,
		ProofPolicy:  proofPolicy,
		Registry:     reg,
		log:          log,
	}
}

// ProofAsset is the delivered-proof token class for one message id.
func (m *Mailbox) ProofAsset(id [32]byte) ledger.AssetID {
	return ledger.AssetID{Policy: m.ProofPolicy, Name: ledger.TokenNameForID(id)}
}

// Initialize creates the mailbox state output, funded by seed, and mints the
// identity token. The mint uniqueness rule makes a second initialization
// impossible for the lifetime of the ledger.
func (m *Mailbox) Initialize(snap *ledger.Snapshot, seed ledger.Outpoint, localDomain uint32, defaultISM ledger.Outpoint, owner ledger.Address) (*ledger.Snapshot, error) {
	if snap.WasMinted(m.Identity) {
		return nil, mbxerr(MBX_ERR_ALREADY_INITIALIZED, "identity token already minted")
	}
	seedUtxo, ok := snap.Resolve(seed)
	if !ok {
		return nil, mbxerr(MBX_ERR_STATE, "seed output not found")
	}
	state := &State{
		LocalDomain: localDomain,
		DefaultISM:  defaultISM,
		Owner:       owner,
	}
	datum, err := MarshalState(state)
	if err != nil {
		return nil, err
	}
	tx, err := ledger.NewTxBuilder().
		SpendInput(seed).
		MintAsset(m.Identity, 1).
		AddOutput(ledger.TxOut{
			Address: m.StateAddress,
			Value:   seedUtxo.Value.AddAsset(m.Identity, 1),
			Datum:   datum,
		}).
		RequireSigner(owner).
		Build()
	if err != nil {
		return nil, err
	}
	next, _, err := snap.Apply(tx)
	if err != nil {
		if ledger.CodeOf(err) == ledger.LEDGER_ERR_DUPLICATE_MINT {
			return nil, mbxwrap(MBX_ERR_ALREADY_INITIALIZED, err)
		}
		return nil, err
	}
	m.log.Info().Uint32("local_domain", localDomain).Msg("mailbox initialized")
	return next, nil
}

// locateState finds the live output holding the identity token.
func (m *Mailbox) locateState(snap *ledger.Snapshot) (ledger.Outpoint, *State, error) {
	op, u, found := snap.UtxoByAsset(m.Identity)
	if !found {
		return ledger.Outpoint{}, nil, mbxerr(MBX_ERR_NOT_INITIALIZED, "")
	}
	state, err := UnmarshalState(u.Datum)
	if err != nil {
		return ledger.Outpoint{}, nil, err
	}
	return op, state, nil
}

// Dispatch sends a message to (destination, recipient). It consumes the
// mailbox state output and produces the successor with the message id
// appended to the accumulator and the nonce advanced by exactly one; this is
// the only operation that moves the nonce. Returns the new snapshot and the
// message id.
func (m *Mailbox) Dispatch(snap *ledger.Snapshot, sender [32]byte, destination uint32, recipient [32]byte, body []byte) (*ledger.Snapshot, [32]byte, error) {
	stateOp, state, err := m.locateState(snap)
	if err != nil {
		return nil, [32]byte{}, err
	}
	stateUtxo, _ := snap.Resolve(stateOp)

	msg := &message.Message{
		Version:     message.CurrentVersion,
		Nonce:       state.Nonce,
		Origin:      state.LocalDomain,
		Sender:      sender,
		Destination: destination,
		Recipient:   recipient,
		Body:        body,
	}
	if err := message.Validate(msg); err != nil {
		return nil, [32]byte{}, mbxwrap(MBX_ERR_INVALID_MESSAGE, err)
	}
	id := message.ID(msg)

	next := *state
	if err := next.Tree.Insert(id); err != nil {
		return nil, [32]byte{}, err
	}
	next.Nonce = state.Nonce + 1
	next.LatestID = id

	datum, err := MarshalState(&next)
	if err != nil {
		return nil, [32]byte{}, err
	}
	action, err := MarshalAction(Action{Kind: ActionDispatch, MessageID: id[:], Message: message.Encode(msg)})
	if err != nil {
		return nil, [32]byte{}, err
	}
	tx, err := ledger.NewTxBuilder().
		SpendInput(stateOp).
		AddOutput(ledger.TxOut{
			Address: m.StateAddress,
			Value:   stateUtxo.Value.Clone(),
			Datum:   datum,
		}).
		RequireSigner(ledger.Address(sender)).
		AttachAction(action).
		Build()
	if err != nil {
		return nil, [32]byte{}, err
	}
	applied, _, err := snap.Apply(tx)
	if err != nil {
		return nil, [32]byte{}, err
	}
	m.log.Debug().
		Uint32("nonce", msg.Nonce).
		Uint32("destination", destination).
		Hex("id", id[:8]).
		Msg("dispatched")
	return applied, id, nil
}

// Deliver lands an inbound message. The mailbox state and the applicable
// security module state are reference inputs; the only exclusively-consumed
// output is the recipient's own. Replay protection is the proof-token mint:
// at most one transaction can ever mint the token for a given id, so marking
// the message delivered and running the recipient handler land in the same
// atomic transition.
func (m *Mailbox) Deliver(snap *ledger.Snapshot, msg *message.Message, metadata []byte) (*ledger.Snapshot, *ledger.Tx, error) {
	if err := message.Validate(msg); err != nil {
		return nil, nil, mbxwrap(MBX_ERR_INVALID_MESSAGE, err)
	}
	stateOp, state, err := m.locateState(snap)
	if err != nil {
		return nil, nil, err
	}
	if msg.Destination != state.LocalDomain {
		return nil, nil, mbxerr(MBX_ERR_WRONG_DESTINATION,
			fmt.Sprintf("message destination %d, local domain %d", msg.Destination, state.LocalDomain))
	}
	id := message.ID(msg)
	proof := m.ProofAsset(id)
	if snap.WasMinted(proof) {
		return nil, nil, mbxerr(MBX_ERR_ALREADY_DELIVERED, fmt.Sprintf("%x", id[:8]))
	}

	reg, ok := m.Registry.Lookup(registry.StableID(msg.Recipient))
	if !ok {
		return nil, nil, mbxerr(MBX_ERR_UNKNOWN_RECIPIENT, fmt.Sprintf("%x", msg.Recipient[:8]))
	}
	recipientOp, recipientUtxo, err := m.Registry.Resolve(snap, reg.Identity)
	if err != nil {
		return nil, nil, mbxwrap(MBX_ERR_UNKNOWN_RECIPIENT, err)
	}

	ismOp := state.DefaultISM
	if reg.CustomISM != nil {
		ismOp = *reg.CustomISM
	}
	set, originMailbox, err := m.routeAt(snap, ismOp, msg.Origin)
	if err != nil {
		return nil, nil, err
	}
	md, err := ism.ParseMetadata(metadata)
	if err != nil {
		return nil, nil, mbxwrap(MBX_ERR_ISM_REJECTED, err)
	}
	if err := ism.Verify(id, originMailbox, msg.Origin, md, set); err != nil {
		return nil, nil, mbxwrap(MBX_ERR_ISM_REJECTED, err)
	}

	newDatum, err := m.Registry.Handle(reg, msg.Origin, msg.Sender, msg.Body, recipientUtxo.Datum)
	if err != nil {
		return nil, nil, err
	}

	action, err := MarshalAction(Action{Kind: ActionDeliver, MessageID: id[:]})
	if err != nil {
		return nil, nil, err
	}
	tx, err := ledger.NewTxBuilder().
		ReferenceInput(stateOp).
		ReferenceInput(ismOp).
		SpendInput(recipientOp).
		MintAsset(proof, 1).
		AddOutput(ledger.TxOut{
			Address: recipientUtxo.Address,
			Value:   recipientUtxo.Value.AddAsset(proof, 1),
			Datum:   newDatum,
		}).
		AttachAction(action).
		Build()
	if err != nil {
		return nil, nil, err
	}
	applied, _, err := snap.Apply(tx)
	if err != nil {
		if ledger.CodeOf(err) == ledger.LEDGER_ERR_DUPLICATE_MINT {
			return nil, nil, mbxwrap(MBX_ERR_ALREADY_DELIVERED, err)
		}
		return nil, nil, err
	}
	m.log.Debug().
		Uint32("origin", msg.Origin).
		Hex("id", id[:8]).
		Msg("delivered")
	return applied, tx, nil
}

// Delivered reports whether id has ever been delivered. Pure read over the
// minted-token set.
func (m *Mailbox) Delivered(snap *ledger.Snapshot, id [32]byte) bool {
	return snap.WasMinted(m.ProofAsset(id))
}

// LatestDispatchedID returns the id of the most recent dispatch. This is the
// stand-in for an event log: indexers read it from the state datum.
func (m *Mailbox) LatestDispatchedID(snap *ledger.Snapshot) ([32]byte, error) {
	_, state, err := m.locateState(snap)
	if err != nil {
		return [32]byte{}, err
	}
	return state.LatestID, nil
}

// Nonce returns the current outbound nonce.
func (m *Mailbox) Nonce(snap *ledger.Snapshot) (uint32, error) {
	_, state, err := m.locateState(snap)
	if err != nil {
		return 0, err
	}
	return state.Nonce, nil
}

// Root returns the current accumulator root over dispatched ids.
func (m *Mailbox) Root(snap *ledger.Snapshot) ([32]byte, error) {
	_, state, err := m.locateState(snap)
	if err != nil {
		return [32]byte{}, err
	}
	return state.Tree.Root(), nil
}

// SetDefaultISM rotates the default security module. Owner only; consumes
// the state output like any other admin mutation.
func (m *Mailbox) SetDefaultISM(snap *ledger.Snapshot, caller ledger.Address, newISM ledger.Outpoint) (*ledger.Snapshot, error) {
	stateOp, state, err := m.locateState(snap)
	if err != nil {
		return nil, err
	}
	if caller != state.Owner {
		return nil, mbxerr(MBX_ERR_UNAUTHORIZED, "caller is not the mailbox owner")
	}
	stateUtxo, _ := snap.Resolve(stateOp)
	next := *state
	next.DefaultISM = newISM
	datum, err := MarshalState(&next)
	if err != nil {
		return nil, err
	}
	tx, err := ledger.NewTxBuilder().
		SpendInput(stateOp).
		AddOutput(ledger.TxOut{
			Address: m.StateAddress,
			Value:   stateUtxo.Value.Clone(),
			Datum:   datum,
		}).
		RequireSigner(caller).
		Build()
	if err != nil {
		return nil, err
	}
	applied, _, err := snap.Apply(tx)
	if err != nil {
		return nil, err
	}
	return applied, nil
}

func (m *Mailbox) routeAt(snap *ledger.Snapshot, op ledger.Outpoint, originDomain uint32) (ism.ValidatorSet, [32]byte, error) {
	u, ok := snap.Resolve(op)
	if !ok {
		return ism.ValidatorSet{}, [32]byte{}, mbxerr(MBX_ERR_STATE, "security module output not found")
	}
	var d ism.Datum
	if err := ledger.UnmarshalDatum(u.Datum, &d); err != nil {
		return ism.ValidatorSet{}, [32]byte{}, mbxwrap(MBX_ERR_STATE, err)
	}
	set, originMailbox, err := d.RouteFor(originDomain)
	if err != nil {
		return ism.ValidatorSet{}, [32]byte{}, mbxwrap(MBX_ERR_ISM_REJECTED, err)
	}
	return set, originMailbox, nil
}
