// Package ledger models the slice of a UTXO ledger this client cares about:
// outputs with multi-asset values and inline datums, transactions that either
// consume an output exclusively or read it by reference, and minting with a
// once-ever uniqueness rule per asset.
//
// Fetching real chain state and submitting signed transactions are the
// Backend's problem; everything here is deterministic and runs against an
// in-memory Snapshot.
package ledger

import (
	"bytes"
	"encoding/hex"
)

// PolicyID identifies a minting policy (28-byte native script hash).
type PolicyID [28]byte

// AssetID names one token class. Name is kept as a string so AssetID is a
// valid map key; it holds raw bytes, not text.
type AssetID struct {
	Policy PolicyID
	Name   string
}

func (a AssetID) String() string {
	return hex.EncodeToString(a.Policy[:]) + "." + hex.EncodeToString([]byte(a.Name))
}

// Address is a ledger address in the 32-byte protocol-padded form.
type Address [32]byte

// Outpoint locates one transaction output.
type Outpoint struct {
	TxID  [32]byte
	Index uint32
}

// Value is coin plus any attached native assets.
type Value struct {
	Coin   uint64
	Assets map[AssetID]uint64
}

func (v Value) Clone() Value {
	out := Value{Coin: v.Coin}
	if len(v.Assets) > 0 {
		out.Assets = make(map[AssetID]uint64, len(v.Assets))
		for k, q := range v.Assets {
			out.Assets[k] = q
		}
	}
	return out
}

// Asset returns the quantity of one asset class (0 if absent).
func (v Value) Asset(id AssetID) uint64 {
	return v.Assets[id]
}

// AddAsset returns a copy of v with qty of id added.
func (v Value) AddAsset(id AssetID, qty uint64) Value {
	out := v.Clone()
	if out.Assets == nil {
		out.Assets = make(map[AssetID]uint64, 1)
	}
	out.Assets[id] += qty
	return out
}

// Utxo is one live output.
type Utxo struct {
	Address Address
	Value   Value
	Datum   []byte // inline datum bytes, nil when absent
}

func (u Utxo) Clone() Utxo {
	return Utxo{
		Address: u.Address,
		Value:   u.Value.Clone(),
		Datum:   append([]byte(nil), u.Datum...),
	}
}

// HasAsset reports whether the output carries at least one unit of id.
func (u Utxo) HasAsset(id AssetID) bool {
	return u.Value.Asset(id) > 0
}

func (u Utxo) DatumEqual(b []byte) bool {
	return bytes.Equal(u.Datum, b)
}
