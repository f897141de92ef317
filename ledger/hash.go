package ledger

import (
	"golang.org/x/crypto/blake2b"
)

// Blake2b256 is the ledger-native 32-byte hash. Only ever used for artifacts
// that stay on this chain (transaction ids, script hashes, token names);
// anything a remote validator signs over uses the protocol hash instead.
func Blake2b256(b []byte) [32]byte {
	return blake2b.Sum256(b)
}

// ScriptHash derives a 28-byte policy/script hash from script bytes.
func ScriptHash(script []byte) PolicyID {
	sum, err := blake2b.New(28, nil)
	if err != nil {
		panic(err)
	}
	_, _ = sum.Write(script)
	var out PolicyID
	copy(out[:], sum.Sum(nil))
	return out
}

// TokenNameForID derives the asset name of a per-message proof token.
// The full 32-byte identifier is the name; uniqueness of the mint under one
// policy then holds per message id.
func TokenNameForID(id [32]byte) string {
	return string(id[:])
}
