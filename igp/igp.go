// Package igp implements the interchain gas paymaster: oracle-based fee
// quoting, delivery-gas prepayment, and beneficiary claim accounting, all as
// transitions over the paymaster's single state output.
//
// The accounting invariant: a recorded payment amount is always the
// difference between the paymaster output's value before and after the
// transaction. Nothing is ever recorded from a value the payer claims.
package igp

import (
	"fmt"
	"math/big"

	"github.com/rs/zerolog"

	"github.com/eigerco/hyperlane-utxo/ledger"
)

// Precision is the protocol-wide fixed-point scale for exchange rates.
const Precision = 1e18

// InterchainGasPayment is one recorded prepayment.
type InterchainGasPayment struct {
	MessageID   [32]byte
	Destination uint32
	Payment     uint64
	GasAmount   uint64
}

// Paymaster holds the static parameters of one deployed gas paymaster.
type Paymaster struct {
	StateAddress ledger.Address
	// Identity is the stable identity token marking the state output.
	Identity ledger.AssetID

	log zerolog.Logger
}

func New(stateAddress ledger.Address, identity ledger.AssetID, log zerolog.Logger) *Paymaster {
	return &Paymaster{StateAddress: stateAddress, Identity: identity, log: log}
}

// Initialize creates the paymaster state output funded by seed; the seed
// coin becomes the permanent reserve. Mint uniqueness of the identity token
// makes a second initialization impossible.
func (p *Paymaster) Initialize(snap *ledger.Snapshot, seed ledger.Outpoint, owner, beneficiary ledger.Address, minPayment uint64) (*ledger.Snapshot, error) {
	if snap.WasMinted(p.Identity) {
		return nil, igperr(IGP_ERR_ALREADY_INITIALIZED, "identity token already minted")
	}
	seedUtxo, ok := snap.Resolve(seed)
	if !ok {
		return nil, igperr(IGP_ERR_STATE, "seed output not found")
	}
	state := &State{
		Owner:       owner,
		Beneficiary: beneficiary,
		MinPayment:  minPayment,
		Reserve:     seedUtxo.Value.Coin,
		Oracles:     make(map[uint32]GasOracleConfig),
	}
	datum, err := MarshalState(state)
	if err != nil {
		return nil, err
	}
	tx, err := ledger.NewTxBuilder().
		SpendInput(seed).
		MintAsset(p.Identity, 1).
		AddOutput(ledger.TxOut{
			Address: p.StateAddress,
			Value:   seedUtxo.Value.AddAsset(p.Identity, 1),
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
			return nil, igpwrap(IGP_ERR_ALREADY_INITIALIZED, err)
		}
		return nil, err
	}
	return next, nil
}

func (p *Paymaster) locateState(snap *ledger.Snapshot) (ledger.Outpoint, ledger.Utxo, *State, error) {
	op, u, found := snap.UtxoByAsset(p.Identity)
	if !found {
		return ledger.Outpoint{}, ledger.Utxo{}, nil, igperr(IGP_ERR_NOT_INITIALIZED, "")
	}
	state, err := UnmarshalState(u.Datum)
	if err != nil {
		return ledger.Outpoint{}, ledger.Utxo{}, nil, err
	}
	return op, u, state, nil
}

// QuoteWith prices gasAmount units of destination gas with cfg:
// gasAmount * gasPrice * exchangeRate / 1e18, in smallest local units.
func QuoteWith(cfg GasOracleConfig, gasAmount uint64) (uint64, error) {
	n := new(big.Int).SetUint64(gasAmount)
	n.Mul(n, new(big.Int).SetUint64(cfg.GasPrice))
	n.Mul(n, new(big.Int).SetUint64(cfg.ExchangeRate))
	n.Div(n, big.NewInt(Precision))
	if !n.IsUint64() {
		return 0, igperr(IGP_ERR_QUOTE_OVERFLOW, n.String())
	}
	return n.Uint64(), nil
}

// Quote prices a delivery on destination. Read-only; surfaces
// IGP_ERR_NO_ORACLE before any funds move.
func (p *Paymaster) Quote(snap *ledger.Snapshot, destination uint32, gasAmount uint64) (uint64, error) {
	_, _, state, err := p.locateState(snap)
	if err != nil {
		return 0, err
	}
	cfg, ok := state.Oracles[destination]
	if !ok {
		return 0, igperr(IGP_ERR_NO_ORACLE, fmt.Sprintf("destination %d", destination))
	}
	return QuoteWith(cfg, gasAmount)
}

// PayForGas deposits prepayment for delivering messageID on destination.
// The payer's funding output is consumed and the payer is the required
// signer; deposit coin moves into the paymaster output and the rest returns
// to the payer as change. The recorded payment is the paymaster value delta,
// taken from the outputs actually built. A deposit above the quote registers
// a pending refund for the difference. The built transaction is returned for
// submission alongside the locally applied snapshot.
func (p *Paymaster) PayForGas(snap *ledger.Snapshot, funding ledger.Outpoint, deposit uint64, messageID [32]byte, destination uint32, gasAmount uint64, refund ledger.Address) (*ledger.Snapshot, *ledger.Tx, *InterchainGasPayment, error) {
	stateOp, stateUtxo, state, err := p.locateState(snap)
	if err != nil {
		return nil, nil, nil, err
	}
	cfg, ok := state.Oracles[destination]
	if !ok {
		return nil, nil, nil, igperr(IGP_ERR_NO_ORACLE, fmt.Sprintf("destination %d", destination))
	}
	required, err := QuoteWith(cfg, gasAmount)
	if err != nil {
		return nil, nil, nil, err
	}
	if deposit < state.MinPayment {
		return nil, nil, nil, igperr(IGP_ERR_DUST_PAYMENT,
			fmt.Sprintf("deposit %d below floor %d", deposit, state.MinPayment))
	}
	if deposit < required {
		return nil, nil, nil, igperr(IGP_ERR_INSUFFICIENT_PAYMENT,
			fmt.Sprintf("deposit %d, quote %d", deposit, required))
	}
	fundingUtxo, ok := snap.Resolve(funding)
	if !ok {
		return nil, nil, nil, igperr(IGP_ERR_STATE, "funding output not found")
	}
	if fundingUtxo.Value.Coin < deposit {
		return nil, nil, nil, igperr(IGP_ERR_INSUFFICIENT_PAYMENT,
			fmt.Sprintf("funding holds %d, deposit %d", fundingUtxo.Value.Coin, deposit))
	}

	next := cloneState(state)
	if deposit > required {
		next.Pending = append(next.Pending, PendingPayment{
			MessageID:     messageID,
			RefundAddress: refund,
			MaxRefund:     deposit - required,
			GasAmount:     gasAmount,
			Destination:   destination,
		})
	}
	datum, err := MarshalState(next)
	if err != nil {
		return nil, nil, nil, err
	}

	successor := stateUtxo.Value.Clone()
	successor.Coin += deposit
	change := fundingUtxo.Value.Clone()
	change.Coin -= deposit

	action, err := MarshalAction(Action{
		Kind:        ActionPayForGas,
		MessageID:   messageID[:],
		Destination: destination,
		GasAmount:   gasAmount,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	b := ledger.NewTxBuilder().
		SpendInput(stateOp).
		SpendInput(funding).
		AddOutput(ledger.TxOut{Address: p.StateAddress, Value: successor, Datum: datum}).
		RequireSigner(fundingUtxo.Address).
		AttachAction(action)
	if change.Coin > 0 || len(change.Assets) > 0 {
		b.AddOutput(ledger.TxOut{Address: fundingUtxo.Address, Value: change})
	}
	tx, err := b.Build()
	if err != nil {
		return nil, nil, nil, err
	}
	applied, _, err := snap.Apply(tx)
	if err != nil {
		return nil, nil, nil, err
	}

	// Ledger-verified value delta, not the caller's word.
	received := successor.Coin - stateUtxo.Value.Coin
	payment := &InterchainGasPayment{
		MessageID:   messageID,
		Destination: destination,
		Payment:     received,
		GasAmount:   gasAmount,
	}
	p.log.Debug().
		Hex("id", messageID[:8]).
		Uint32("destination", destination).
		Uint64("payment", received).
		Msg("gas payment recorded")
	return applied, tx, payment, nil
}

// ProcessRefund pays out the pending overpayment for messageID and removes
// it from the state; a second call for the same id fails.
func (p *Paymaster) ProcessRefund(snap *ledger.Snapshot, messageID [32]byte) (*ledger.Snapshot, error) {
	stateOp, stateUtxo, state, err := p.locateState(snap)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, pp := range state.Pending {
		if pp.MessageID == messageID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, igperr(IGP_ERR_NO_PENDING_REFUND, fmt.Sprintf("%x", messageID[:8]))
	}
	pending := state.Pending[idx]

	next := cloneState(state)
	next.Pending = append(next.Pending[:idx], next.Pending[idx+1:]...)
	datum, err := MarshalState(next)
	if err != nil {
		return nil, err
	}
	successor := stateUtxo.Value.Clone()
	successor.Coin -= pending.MaxRefund

	action, err := MarshalAction(Action{Kind: ActionRefund, MessageID: messageID[:]})
	if err != nil {
		return nil, err
	}
	tx, err := ledger.NewTxBuilder().
		SpendInput(stateOp).
		AddOutput(ledger.TxOut{Address: p.StateAddress, Value: successor, Datum: datum}).
		AddOutput(ledger.TxOut{Address: pending.RefundAddress, Value: ledger.Value{Coin: pending.MaxRefund}}).
		AttachAction(action).
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

// ClaimableBalance is what the beneficiary may withdraw: coin above the
// reserve and any outstanding refunds.
func (p *Paymaster) ClaimableBalance(snap *ledger.Snapshot) (uint64, error) {
	_, stateUtxo, state, err := p.locateState(snap)
	if err != nil {
		return 0, err
	}
	return claimable(stateUtxo, state), nil
}

func claimable(stateUtxo ledger.Utxo, state *State) uint64 {
	held := stateUtxo.Value.Coin
	locked := state.Reserve
	for _, pp := range state.Pending {
		locked += pp.MaxRefund
	}
	if held <= locked {
		return 0
	}
	return held - locked
}

// Claim transfers amount of accumulated balance to the beneficiary.
func (p *Paymaster) Claim(snap *ledger.Snapshot, caller ledger.Address, amount uint64) (*ledger.Snapshot, error) {
	stateOp, stateUtxo, state, err := p.locateState(snap)
	if err != nil {
		return nil, err
	}
	if caller != state.Beneficiary {
		return nil, igperr(IGP_ERR_UNAUTHORIZED, "caller is not the beneficiary")
	}
	avail := claimable(stateUtxo, state)
	if amount > avail {
		return nil, igperr(IGP_ERR_INSUFFICIENT_BALANCE,
			fmt.Sprintf("requested %d, claimable %d", amount, avail))
	}
	datum, err := MarshalState(state)
	if err != nil {
		return nil, err
	}
	successor := stateUtxo.Value.Clone()
	successor.Coin -= amount

	action, err := MarshalAction(Action{Kind: ActionClaim, GasAmount: amount})
	if err != nil {
		return nil, err
	}
	tx, err := ledger.NewTxBuilder().
		SpendInput(stateOp).
		AddOutput(ledger.TxOut{Address: p.StateAddress, Value: successor, Datum: datum}).
		AddOutput(ledger.TxOut{Address: state.Beneficiary, Value: ledger.Value{Coin: amount}}).
		RequireSigner(caller).
		AttachAction(action).
		Build()
	if err != nil {
		return nil, err
	}
	applied, _, err := snap.Apply(tx)
	if err != nil {
		return nil, err
	}
	p.log.Info().Uint64("amount", amount).Msg("balance claimed")
	return applied, nil
}

// SetGasOracle upserts the oracle config for one destination. Owner only.
func (p *Paymaster) SetGasOracle(snap *ledger.Snapshot, caller ledger.Address, cfg GasOracleConfig) (*ledger.Snapshot, error) {
	stateOp, stateUtxo, state, err := p.locateState(snap)
	if err != nil {
		return nil, err
	}
	if caller != state.Owner {
		return nil, igperr(IGP_ERR_UNAUTHORIZED, "caller is not the owner")
	}
	next := cloneState(state)
	next.Oracles[cfg.Domain] = cfg
	datum, err := MarshalState(next)
	if err != nil {
		return nil, err
	}
	action, err := MarshalAction(Action{Kind: ActionSetOracle, Destination: cfg.Domain})
	if err != nil {
		return nil, err
	}
	tx, err := ledger.NewTxBuilder().
		SpendInput(stateOp).
		AddOutput(ledger.TxOut{Address: p.StateAddress, Value: stateUtxo.Value.Clone(), Datum: datum}).
		RequireSigner(caller).
		AttachAction(action).
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

func cloneState(s *State) *State {
	out := &State{
		Owner:       s.Owner,
		Beneficiary: s.Beneficiary,
		MinPayment:  s.MinPayment,
		Reserve:     s.Reserve,
		Oracles:     make(map[uint32]GasOracleConfig, len(s.Oracles)),
	}
	for d, cfg := range s.Oracles {
		out.Oracles[d] = cfg
	}
	out.Pending = append([]PendingPayment(nil), s.Pending...)
	return out
}
