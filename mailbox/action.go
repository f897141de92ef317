package mailbox

import (
	"github.com/eigerco/hyperlane-utxo/ledger"
)

// ActionKind tags the operation a mailbox transaction performed. Indexers
// decode these from confirmed transactions; there is no event log to read.
type ActionKind uint8

const (
	ActionDispatch ActionKind = 1
	ActionDeliver  ActionKind = 2
)

// Action is the encoded operation attached to a mailbox transaction.
// Dispatch actions carry the full message so indexers can serve it to
// relayers without reconstructing it from the accumulator.
type Action struct {
	Kind      ActionKind `cbor:"0,keyasint"`
	MessageID []byte     `cbor:"1,keyasint"`
	Message   []byte     `cbor:"2,keyasint,omitempty"`
}

func MarshalAction(a Action) ([]byte, error) {
	return ledger.MarshalDatum(a)
}

func ParseAction(b []byte) (Action, error) {
	var a Action
	if err := ledger.UnmarshalDatum(b, &a); err != nil {
		return Action{}, err
	}
	if a.Kind != ActionDispatch && a.Kind != ActionDeliver {
		return Action{}, mbxerr(MBX_ERR_STATE, "unknown action kind")
	}
	return a, nil
}
