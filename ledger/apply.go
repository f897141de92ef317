package ledger

import (
	"fmt"
)

// Snapshot is a point-in-time view of the outputs this client tracks, plus
// the two monotone sets the rules depend on: outpoints that have ever been
// consumed and assets that have ever been minted.
type Snapshot struct {
	Utxos  map[Outpoint]Utxo
	Spent  map[Outpoint]struct{}
	Minted map[AssetID]struct{}
}

func NewSnapshot() *Snapshot {
	return &Snapshot{
		Utxos:  make(map[Outpoint]Utxo),
		Spent:  make(map[Outpoint]struct{}),
		Minted: make(map[AssetID]struct{}),
	}
}

func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		Utxos:  make(map[Outpoint]Utxo, len(s.Utxos)),
		Spent:  make(map[Outpoint]struct{}, len(s.Spent)),
		Minted: make(map[AssetID]struct{}, len(s.Minted)),
	}
	for op, u := range s.Utxos {
		out.Utxos[op] = u.Clone()
	}
	for op := range s.Spent {
		out.Spent[op] = struct{}{}
	}
	for id := range s.Minted {
		out.Minted[id] = struct{}{}
	}
	return out
}

// Put registers a live output. Used for seeding and by Apply.
func (s *Snapshot) Put(op Outpoint, u Utxo) {
	s.Utxos[op] = u
}

// Resolve returns the live output at op.
func (s *Snapshot) Resolve(op Outpoint) (Utxo, bool) {
	u, ok := s.Utxos[op]
	return u, ok
}

// WasMinted reports whether the asset has ever been minted.
func (s *Snapshot) WasMinted(id AssetID) bool {
	_, ok := s.Minted[id]
	return ok
}

// UtxosByAddress returns the outpoints of every live output at addr.
func (s *Snapshot) UtxosByAddress(addr Address) []Outpoint {
	var out []Outpoint
	for op, u := range s.Utxos {
		if u.Address == addr {
			out = append(out, op)
		}
	}
	return out
}

// UtxoByAsset finds the unique live output carrying asset id. Identity and
// proof tokens are minted once, so at most one live output can hold one.
func (s *Snapshot) UtxoByAsset(id AssetID) (Outpoint, Utxo, bool) {
	for op, u := range s.Utxos {
		if u.HasAsset(id) {
			return op, u, true
		}
	}
	return Outpoint{}, Utxo{}, false
}

// Applied records what one confirmed transaction did, with spent inputs
// resolved to the outputs they consumed. Indexers work from these.
type Applied struct {
	TxID     [32]byte
	Tx       *Tx
	Consumed map[Outpoint]Utxo
	Produced map[Outpoint]Utxo
}

// Apply validates tx against s and returns the successor snapshot. s is not
// mutated; all-or-nothing per transaction.
//
// Rules, in check order:
//   - every referenced input must exist (spent-by-someone-else counts as
//     contention, never-existed is a hard failure)
//   - every spent input must exist; losing it to an earlier transaction is
//     the one retryable rejection
//   - no asset may be minted twice, ever
//   - coin out must not exceed coin in, and every output asset must come
//     from an input or this transaction's mints
func (s *Snapshot) Apply(tx *Tx) (*Snapshot, *Applied, error) {
	if tx == nil {
		return nil, nil, lederr(LEDGER_ERR_TX_INVALID, "nil tx")
	}
	work := s.Clone()
	applied := &Applied{
		TxID:     tx.ID(),
		Tx:       tx,
		Consumed: make(map[Outpoint]Utxo),
		Produced: make(map[Outpoint]Utxo),
	}

	var coinIn uint64
	assetIn := make(map[AssetID]uint64)
	for _, in := range tx.Inputs {
		u, ok := work.Utxos[in.Outpoint]
		if !ok {
			if _, gone := work.Spent[in.Outpoint]; gone {
				return nil, nil, lederr(LEDGER_ERR_UTXO_CONTENTION,
					fmt.Sprintf("input %x:%d already consumed", in.Outpoint.TxID[:4], in.Outpoint.Index))
			}
			return nil, nil, lederr(LEDGER_ERR_MISSING_UTXO,
				fmt.Sprintf("input %x:%d not found", in.Outpoint.TxID[:4], in.Outpoint.Index))
		}
		if in.Mode == Reference {
			continue
		}
		coinIn += u.Value.Coin
		for id, q := range u.Value.Assets {
			assetIn[id] += q
		}
		applied.Consumed[in.Outpoint] = u
		delete(work.Utxos, in.Outpoint)
		work.Spent[in.Outpoint] = struct{}{}
	}

	for _, m := range tx.Mints {
		if work.WasMinted(m.Asset) {
			return nil, nil, lederr(LEDGER_ERR_DUPLICATE_MINT, m.Asset.String())
		}
		work.Minted[m.Asset] = struct{}{}
		assetIn[m.Asset] += m.Amount
	}

	var coinOut uint64
	assetOut := make(map[AssetID]uint64)
	for _, o := range tx.Outputs {
		coinOut += o.Value.Coin
		for id, q := range o.Value.Assets {
			assetOut[id] += q
		}
	}
	if coinOut > coinIn {
		return nil, nil, lederr(LEDGER_ERR_VALUE_CONSERVATION,
			fmt.Sprintf("coin out %d exceeds coin in %d", coinOut, coinIn))
	}
	for id, q := range assetOut {
		if q > assetIn[id] {
			return nil, nil, lederr(LEDGER_ERR_VALUE_CONSERVATION,
				fmt.Sprintf("asset %s out %d exceeds available %d", id, q, assetIn[id]))
		}
	}

	for i, o := range tx.Outputs {
		op := Outpoint{TxID: applied.TxID, Index: uint32(i)}
		u := Utxo{Address: o.Address, Value: o.Value.Clone(), Datum: append([]byte(nil), o.Datum...)}
		work.Utxos[op] = u
		applied.Produced[op] = u
	}

	return work, applied, nil
}
