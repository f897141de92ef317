package igp

import (
	"sort"

	"github.com/eigerco/hyperlane-utxo/ledger"
)

// GasOracleConfig prices delivery gas for one destination domain.
type GasOracleConfig struct {
	Domain       uint32
	GasPrice     uint64
	ExchangeRate uint64
}

// PendingPayment is an overpayment awaiting refund, consumed exactly once by
// ProcessRefund and correlated by message id.
type PendingPayment struct {
	MessageID     [32]byte
	RefundAddress ledger.Address
	MaxRefund     uint64
	GasAmount     uint64
	Destination   uint32
}

// State is the decoded paymaster state. Reserve is the coin locked at
// initialization that keeps the state output alive; everything above
// Reserve plus outstanding refunds is the beneficiary's claimable balance.
type State struct {
	Owner       ledger.Address
	Beneficiary ledger.Address
	MinPayment  uint64
	Reserve     uint64
	Oracles     map[uint32]GasOracleConfig
	Pending     []PendingPayment
}

type oracleDisk struct {
	Domain       uint32 `cbor:"0,keyasint"`
	GasPrice     uint64 `cbor:"1,keyasint"`
	ExchangeRate uint64 `cbor:"2,keyasint"`
}

type pendingDisk struct {
	MessageID     []byte `cbor:"0,keyasint"`
	RefundAddress []byte `cbor:"1,keyasint"`
	MaxRefund     uint64 `cbor:"2,keyasint"`
	GasAmount     uint64 `cbor:"3,keyasint"`
	Destination   uint32 `cbor:"4,keyasint"`
}

type datumDisk struct {
	Owner       []byte        `cbor:"0,keyasint"`
	Beneficiary []byte        `cbor:"1,keyasint"`
	MinPayment  uint64        `cbor:"2,keyasint"`
	Reserve     uint64        `cbor:"3,keyasint"`
	Oracles     []oracleDisk  `cbor:"4,keyasint"`
	Pending     []pendingDisk `cbor:"5,keyasint,omitempty"`
}

// MarshalState encodes s as inline-datum bytes. Oracles are sorted by domain
// so the canonical encoding is stable.
func MarshalState(s *State) ([]byte, error) {
	d := datumDisk{
		Owner:       s.Owner[:],
		Beneficiary: s.Beneficiary[:],
		MinPayment:  s.MinPayment,
		Reserve:     s.Reserve,
	}
	for _, domain := range sortedDomains(s.Oracles) {
		cfg := s.Oracles[domain]
		d.Oracles = append(d.Oracles, oracleDisk{
			Domain:       cfg.Domain,
			GasPrice:     cfg.GasPrice,
			ExchangeRate: cfg.ExchangeRate,
		})
	}
	for _, p := range s.Pending {
		d.Pending = append(d.Pending, pendingDisk{
			MessageID:     append([]byte(nil), p.MessageID[:]...),
			RefundAddress: append([]byte(nil), p.RefundAddress[:]...),
			MaxRefund:     p.MaxRefund,
			GasAmount:     p.GasAmount,
			Destination:   p.Destination,
		})
	}
	return ledger.MarshalDatum(d)
}

// UnmarshalState decodes inline-datum bytes back into a State.
func UnmarshalState(b []byte) (*State, error) {
	var d datumDisk
	if err := ledger.UnmarshalDatum(b, &d); err != nil {
		return nil, igpwrap(IGP_ERR_STATE, err)
	}
	s := &State{
		MinPayment: d.MinPayment,
		Reserve:    d.Reserve,
		Oracles:    make(map[uint32]GasOracleConfig, len(d.Oracles)),
	}
	copy(s.Owner[:], d.Owner)
	copy(s.Beneficiary[:], d.Beneficiary)
	for _, o := range d.Oracles {
		s.Oracles[o.Domain] = GasOracleConfig{
			Domain:       o.Domain,
			GasPrice:     o.GasPrice,
			ExchangeRate: o.ExchangeRate,
		}
	}
	for _, p := range d.Pending {
		var pp PendingPayment
		copy(pp.MessageID[:], p.MessageID)
		copy(pp.RefundAddress[:], p.RefundAddress)
		pp.MaxRefund = p.MaxRefund
		pp.GasAmount = p.GasAmount
		pp.Destination = p.Destination
		s.Pending = append(s.Pending, pp)
	}
	return s, nil
}

func sortedDomains(m map[uint32]GasOracleConfig) []uint32 {
	out := make([]uint32, 0, len(m))
	for d := range m {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
