package ism

import "fmt"

// Route is the verification config for one origin domain: which mailbox the
// validators checkpoint over there, who they are, and how many must sign.
type Route struct {
	OriginDomain  uint32   `cbor:"0,keyasint"`
	OriginMailbox []byte   `cbor:"1,keyasint"`
	Validators    [][]byte `cbor:"2,keyasint"`
	Threshold     uint8    `cbor:"3,keyasint"`
}

// Datum is the inline-datum form of a multisig module: routes keyed by
// origin domain. It lives in the module's own state output and is read by
// reference at delivery time.
type Datum struct {
	Routes []Route `cbor:"0,keyasint"`
}

// RouteFor returns the validator set and origin mailbox for one domain.
func (d Datum) RouteFor(originDomain uint32) (ValidatorSet, [32]byte, error) {
	for _, r := range d.Routes {
		if r.OriginDomain != originDomain {
			continue
		}
		if len(r.OriginMailbox) != 32 {
			return ValidatorSet{}, [32]byte{}, ismerr(ISM_ERR_BAD_SET, "origin mailbox must be 32 bytes")
		}
		vals := make([]Address, 0, len(r.Validators))
		for _, raw := range r.Validators {
			if len(raw) != 20 {
				return ValidatorSet{}, [32]byte{}, ismerr(ISM_ERR_BAD_SET, "validator address must be 20 bytes")
			}
			var a Address
			copy(a[:], raw)
			vals = append(vals, a)
		}
		set, err := NewValidatorSet(vals, r.Threshold)
		if err != nil {
			return ValidatorSet{}, [32]byte{}, err
		}
		var mbx [32]byte
		copy(mbx[:], r.OriginMailbox)
		return set, mbx, nil
	}
	return ValidatorSet{}, [32]byte{}, ismerr(ISM_ERR_NO_ROUTE, fmt.Sprintf("origin domain %d", originDomain))
}

// NewRoute builds a storable route from validated parts.
func NewRoute(originDomain uint32, originMailbox [32]byte, set ValidatorSet) Route {
	r := Route{
		OriginDomain:  originDomain,
		OriginMailbox: append([]byte(nil), originMailbox[:]...),
		Threshold:     set.Threshold,
	}
	for _, v := range set.Validators {
		r.Validators = append(r.Validators, append([]byte(nil), v[:]...))
	}
	return r
}
