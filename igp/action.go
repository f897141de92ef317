package igp

import (
	"github.com/eigerco/hyperlane-utxo/ledger"
)

// ActionKind tags the operation a paymaster transaction performed.
type ActionKind uint8

const (
	ActionPayForGas ActionKind = 1
	ActionClaim     ActionKind = 2
	ActionSetOracle ActionKind = 3
	ActionRefund    ActionKind = 4
)

// Action is the encoded operation attached to a paymaster transaction. For
// claims, GasAmount holds the claimed amount.
type Action struct {
	Kind        ActionKind `cbor:"0,keyasint"`
	MessageID   []byte     `cbor:"1,keyasint,omitempty"`
	Destination uint32     `cbor:"2,keyasint,omitempty"`
	GasAmount   uint64     `cbor:"3,keyasint,omitempty"`
}

func MarshalAction(a Action) ([]byte, error) {
	return ledger.MarshalDatum(a)
}

func ParseAction(b []byte) (Action, error) {
	var a Action
	if err := ledger.UnmarshalDatum(b, &a); err != nil {
		return Action{}, err
	}
	if a.Kind < ActionPayForGas || a.Kind > ActionRefund {
		return Action{}, igperr(IGP_ERR_STATE, "unknown action kind")
	}
	return a, nil
}
