package indexer

import (
	"encoding/binary"
	"fmt"
)

// PaymentRecord is a reconstructed gas payment. Payment is the coin delta
// between the consumed and produced paymaster output, never an amount the
// payer declared.
type PaymentRecord struct {
	MessageID   [32]byte
	TxID        [32]byte
	Destination uint32
	Payment     uint64
	GasAmount   uint64
}

// Stored value layout: txid(32) | destination(u32 BE) | payment(u64 BE) | gas(u64 BE).
func encodePaymentRecord(r PaymentRecord) []byte {
	out := make([]byte, 32+4+8+8)
	copy(out[0:32], r.TxID[:])
	binary.BigEndian.PutUint32(out[32:36], r.Destination)
	binary.BigEndian.PutUint64(out[36:44], r.Payment)
	binary.BigEndian.PutUint64(out[44:52], r.GasAmount)
	return out
}

func decodePaymentRecord(b []byte) (PaymentRecord, error) {
	if len(b) != 52 {
		return PaymentRecord{}, fmt.Errorf("payment record: expected 52 bytes, got %d", len(b))
	}
	var r PaymentRecord
	copy(r.TxID[:], b[0:32])
	r.Destination = binary.BigEndian.Uint32(b[32:36])
	r.Payment = binary.BigEndian.Uint64(b[36:44])
	r.GasAmount = binary.BigEndian.Uint64(b[44:52])
	return r, nil
}

// paymentKey gives payments a per-tx key under the message-id prefix so
// multiple payments for one message all survive.
func paymentKey(messageID, txid [32]byte) []byte {
	out := make([]byte, 64)
	copy(out[0:32], messageID[:])
	copy(out[32:64], txid[:])
	return out
}
