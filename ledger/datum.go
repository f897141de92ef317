package ledger

import (
	"github.com/fxamacker/cbor/v2"
)

var (
	datumEncMode cbor.EncMode
	datumDecMode cbor.DecMode
)

func init() {
	// Canonical options so datum bytes are deterministic: the same logical
	// state must always serialize to the same output bytes, or two honest
	// builders would produce conflicting successors.
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	dm, err := cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}.DecMode()
	if err != nil {
		panic(err)
	}
	datumEncMode = em
	datumDecMode = dm
}

// MarshalDatum encodes v into canonical inline-datum bytes.
func MarshalDatum(v any) ([]byte, error) {
	b, err := datumEncMode.Marshal(v)
	if err != nil {
		return nil, lederr(LEDGER_ERR_DATUM, err.Error())
	}
	return b, nil
}

// UnmarshalDatum decodes inline-datum bytes into v.
func UnmarshalDatum(b []byte, v any) error {
	if len(b) == 0 {
		return lederr(LEDGER_ERR_DATUM, "empty datum")
	}
	if err := datumDecMode.Unmarshal(b, v); err != nil {
		return lederr(LEDGER_ERR_DATUM, err.Error())
	}
	return nil
}
