package ledger

import "context"

// Backend is the boundary to the real chain: an indexer-backed query side and
// a submission side. Implementations live outside this module; everything in
// here only needs these operations.
type Backend interface {
	// Snapshot returns a fresh view of the tracked outputs.
	Snapshot(ctx context.Context) (*Snapshot, error)

	// UtxosByAddress fetches the live outputs at addr.
	UtxosByAddress(ctx context.Context, addr Address) (map[Outpoint]Utxo, error)

	// UtxoByAsset fetches the unique live output holding asset id.
	UtxoByAsset(ctx context.Context, id AssetID) (Outpoint, Utxo, error)

	// Submit sends a signed transaction. A rejection for a consumed input
	// must be returned as a LEDGER_ERR_UTXO_CONTENTION error.
	Submit(ctx context.Context, tx *Tx) ([32]byte, error)

	// AwaitConfirmation blocks until txid is confirmed or ctx expires.
	// "ctx expired" means indeterminate, not failed: callers must re-query
	// before resubmitting anything logically equivalent.
	AwaitConfirmation(ctx context.Context, txid [32]byte) error
}
