package mailbox

import (
	"github.com/eigerco/hyperlane-utxo/ledger"
)

// State is the decoded mailbox state. It lives in the inline datum of the
// single mailbox state output; that output is consumed and replaced on every
// dispatch and only referenced on delivery.
type State struct {
	LocalDomain uint32
	DefaultISM  ledger.Outpoint
	Owner       ledger.Address
	Nonce       uint32
	Tree        Tree
	LatestID    [32]byte
}

// datumDisk is the CBOR layout of State. Fixed-size arrays are flattened to
// byte strings so the wire form stays stable across codec versions.
type datumDisk struct {
	LocalDomain uint32   `cbor:"0,keyasint"`
	IsmTxID     []byte   `cbor:"1,keyasint"`
	IsmIndex    uint32   `cbor:"2,keyasint"`
	Owner       []byte   `cbor:"3,keyasint"`
	Nonce       uint32   `cbor:"4,keyasint"`
	Branch      [][]byte `cbor:"5,keyasint"`
	Count       uint32   `cbor:"6,keyasint"`
	LatestID    []byte   `cbor:"7,keyasint"`
}

// MarshalState encodes s as inline-datum bytes.
func MarshalState(s *State) ([]byte, error) {
	d := datumDisk{
		LocalDomain: s.LocalDomain,
		IsmTxID:     s.DefaultISM.TxID[:],
		IsmIndex:    s.DefaultISM.Index,
		Owner:       s.Owner[:],
		Nonce:       s.Nonce,
		Count:       s.Tree.Count,
		LatestID:    s.LatestID[:],
	}
	d.Branch = make([][]byte, TreeDepth)
	for i := range s.Tree.Branch {
		d.Branch[i] = append([]byte(nil), s.Tree.Branch[i][:]...)
	}
	return ledger.MarshalDatum(d)
}

// UnmarshalState decodes inline-datum bytes back into a State.
func UnmarshalState(b []byte) (*State, error) {
	var d datumDisk
	if err := ledger.UnmarshalDatum(b, &d); err != nil {
		return nil, mbxwrap(MBX_ERR_STATE, err)
	}
	if len(d.Branch) != TreeDepth {
		return nil, mbxerr(MBX_ERR_STATE, "branch depth mismatch")
	}
	s := &State{
		LocalDomain: d.LocalDomain,
		Nonce:       d.Nonce,
	}
	copy(s.DefaultISM.TxID[:], d.IsmTxID)
	s.DefaultISM.Index = d.IsmIndex
	copy(s.Owner[:], d.Owner)
	s.Tree.Count = d.Count
	for i, raw := range d.Branch {
		if len(raw) != 32 {
			return nil, mbxerr(MBX_ERR_STATE, "branch node must be 32 bytes")
		}
		copy(s.Tree.Branch[i][:], raw)
	}
	copy(s.LatestID[:], d.LatestID)
	return s, nil
}
