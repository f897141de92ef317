package ledger

import (
	"fmt"
)

// InputMode says how a transaction uses an input.
type InputMode uint8

const (
	// Spend consumes the output exclusively. Two transactions spending the
	// same outpoint conflict; at most one confirms.
	Spend InputMode = 1
	// Reference reads the output without consuming it. Any number of
	// transactions may reference one outpoint in the same round.
	Reference InputMode = 2
)

type TxIn struct {
	Outpoint Outpoint
	Mode     InputMode
}

type TxOut struct {
	Address Address
	Value   Value
	Datum   []byte
}

// Mint creates Amount units of Asset. A given AssetID may be minted by at
// most one transaction over the lifetime of the ledger.
type Mint struct {
	Asset  AssetID
	Amount uint64
}

// Tx is an unsigned transaction body. Actions carry the opaque encoded
// operation (redeemer) each script input is being run with; indexers decode
// them to reconstruct history, since this execution model has no event log.
type Tx struct {
	Inputs  []TxIn
	Outputs []TxOut
	Mints   []Mint
	Signers []Address
	Actions [][]byte
}

// txBody is the canonical serialization used for the transaction id.
type txBody struct {
	Inputs  []txBodyIn  `cbor:"0,keyasint"`
	Outputs []txBodyOut `cbor:"1,keyasint"`
	Mints   []txBodyMin `cbor:"2,keyasint"`
	Signers [][]byte    `cbor:"3,keyasint"`
	Actions [][]byte    `cbor:"4,keyasint"`
}

type txBodyIn struct {
	TxID  []byte `cbor:"0,keyasint"`
	Index uint32 `cbor:"1,keyasint"`
	Mode  uint8  `cbor:"2,keyasint"`
}

type txBodyOut struct {
	Address []byte            `cbor:"0,keyasint"`
	Coin    uint64            `cbor:"1,keyasint"`
	Assets  map[string]uint64 `cbor:"2,keyasint,omitempty"`
	Datum   []byte            `cbor:"3,keyasint,omitempty"`
}

type txBodyMin struct {
	Policy []byte `cbor:"0,keyasint"`
	Name   []byte `cbor:"1,keyasint"`
	Amount uint64 `cbor:"2,keyasint"`
}

// ID computes the ledger-native transaction identifier.
func (tx *Tx) ID() [32]byte {
	body := txBody{
		Signers: make([][]byte, 0, len(tx.Signers)),
		Actions: tx.Actions,
	}
	for _, in := range tx.Inputs {
		body.Inputs = append(body.Inputs, txBodyIn{
			TxID:  append([]byte(nil), in.Outpoint.TxID[:]...),
			Index: in.Outpoint.Index,
			Mode:  uint8(in.Mode),
		})
	}
	for _, out := range tx.Outputs {
		o := txBodyOut{
			Address: append([]byte(nil), out.Address[:]...),
			Coin:    out.Value.Coin,
			Datum:   out.Datum,
		}
		if len(out.Value.Assets) > 0 {
			o.Assets = make(map[string]uint64, len(out.Value.Assets))
			for id, q := range out.Value.Assets {
				o.Assets[id.String()] = q
			}
		}
		body.Outputs = append(body.Outputs, o)
	}
	for _, m := range tx.Mints {
		body.Mints = append(body.Mints, txBodyMin{
			Policy: append([]byte(nil), m.Asset.Policy[:]...),
			Name:   []byte(m.Asset.Name),
			Amount: m.Amount,
		})
	}
	for _, s := range tx.Signers {
		body.Signers = append(body.Signers, append([]byte(nil), s[:]...))
	}
	b, err := MarshalDatum(body)
	if err != nil {
		// txBody contains nothing the canonical encoder can reject.
		panic(err)
	}
	return Blake2b256(b)
}

// SignedBy reports whether addr is among the required signers.
func (tx *Tx) SignedBy(addr Address) bool {
	for _, s := range tx.Signers {
		if s == addr {
			return true
		}
	}
	return false
}

// TxBuilder accumulates a transaction. Zero value is not usable; NewTxBuilder.
type TxBuilder struct {
	tx Tx
}

func NewTxBuilder() *TxBuilder {
	return &TxBuilder{}
}

func (b *TxBuilder) SpendInput(op Outpoint) *TxBuilder {
	b.tx.Inputs = append(b.tx.Inputs, TxIn{Outpoint: op, Mode: Spend})
	return b
}

func (b *TxBuilder) ReferenceInput(op Outpoint) *TxBuilder {
	b.tx.Inputs = append(b.tx.Inputs, TxIn{Outpoint: op, Mode: Reference})
	return b
}

func (b *TxBuilder) AddOutput(out TxOut) *TxBuilder {
	b.tx.Outputs = append(b.tx.Outputs, out)
	return b
}

func (b *TxBuilder) MintAsset(id AssetID, amount uint64) *TxBuilder {
	b.tx.Mints = append(b.tx.Mints, Mint{Asset: id, Amount: amount})
	return b
}

func (b *TxBuilder) RequireSigner(addr Address) *TxBuilder {
	b.tx.Signers = append(b.tx.Signers, addr)
	return b
}

func (b *TxBuilder) AttachAction(action []byte) *TxBuilder {
	b.tx.Actions = append(b.tx.Actions, action)
	return b
}

// Build runs the static checks that need no snapshot: at least one spent
// input, no duplicate spends inside the transaction itself, positive mints.
func (b *TxBuilder) Build() (*Tx, error) {
	spent := make(map[Outpoint]struct{}, len(b.tx.Inputs))
	spends := 0
	for _, in := range b.tx.Inputs {
		if in.Mode != Spend {
			continue
		}
		spends++
		if _, dup := spent[in.Outpoint]; dup {
			return nil, lederr(LEDGER_ERR_TX_INVALID, "duplicate spend of one outpoint")
		}
		spent[in.Outpoint] = struct{}{}
	}
	if spends == 0 {
		return nil, lederr(LEDGER_ERR_TX_INVALID, "transaction spends nothing")
	}
	for _, m := range b.tx.Mints {
		if m.Amount == 0 {
			return nil, lederr(LEDGER_ERR_TX_INVALID, fmt.Sprintf("zero mint of %s", m.Asset))
		}
	}
	tx := b.tx
	return &tx, nil
}
