package registry

import (
	"github.com/eigerco/hyperlane-utxo/ledger"
)

// registrationDisk is the stored form of a Registration.
type registrationDisk struct {
	Identity  []byte `cbor:"0,keyasint"`
	LocTxID   []byte `cbor:"1,keyasint"`
	LocIndex  uint32 `cbor:"2,keyasint"`
	Kind      uint8  `cbor:"3,keyasint"`
	IsmTxID   []byte `cbor:"4,keyasint,omitempty"`
	IsmIndex  uint32 `cbor:"5,keyasint,omitempty"`
	HasCustom bool   `cbor:"6,keyasint,omitempty"`
}

// MarshalRegistration encodes reg for persistence.
func MarshalRegistration(reg Registration) ([]byte, error) {
	d := registrationDisk{
		Identity: reg.Identity[:],
		LocTxID:  reg.Location.TxID[:],
		LocIndex: reg.Location.Index,
		Kind:     uint8(reg.Kind),
	}
	if reg.CustomISM != nil {
		d.HasCustom = true
		d.IsmTxID = reg.CustomISM.TxID[:]
		d.IsmIndex = reg.CustomISM.Index
	}
	return ledger.MarshalDatum(d)
}

// UnmarshalRegistration decodes a persisted entry.
func UnmarshalRegistration(b []byte) (Registration, error) {
	var d registrationDisk
	if err := ledger.UnmarshalDatum(b, &d); err != nil {
		return Registration{}, err
	}
	var reg Registration
	copy(reg.Identity[:], d.Identity)
	copy(reg.Location.TxID[:], d.LocTxID)
	reg.Location.Index = d.LocIndex
	reg.Kind = Kind(d.Kind)
	if !reg.Kind.valid() {
		return Registration{}, ErrUnknownKind
	}
	if d.HasCustom {
		var op ledger.Outpoint
		copy(op.TxID[:], d.IsmTxID)
		op.Index = d.IsmIndex
		reg.CustomISM = &op
	}
	return reg, nil
}
