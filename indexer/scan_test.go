package indexer

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/hyperlane-utxo/igp"
	"github.com/eigerco/hyperlane-utxo/ledger"
	"github.com/eigerco/hyperlane-utxo/mailbox"
	"github.com/eigerco/hyperlane-utxo/message"
)

var (
	testPaymasterPolicy = ledger.PolicyID{0x51}
	testProofPolicy     = ledger.PolicyID{0x52}
)

func testScanner(t *testing.T) (*Scanner, *DB) {
	t.Helper()
	db, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	identity := ledger.AssetID{Policy: testPaymasterPolicy, Name: "igp"}
	return NewScanner(db, identity, testProofPolicy, zerolog.Nop()), db
}

func dispatchApplied(t *testing.T, nonce uint32, txByte byte) (*ledger.Applied, *message.Message) {
	t.Helper()
	msg := &message.Message{
		Version:     message.CurrentVersion,
		Nonce:       nonce,
		Origin:      2,
		Destination: 5,
		Body:        []byte{byte(nonce)},
	}
	id := message.ID(msg)
	action, err := mailbox.MarshalAction(mailbox.Action{
		Kind:      mailbox.ActionDispatch,
		MessageID: id[:],
		Message:   message.Encode(msg),
	})
	require.NoError(t, err)
	ap := &ledger.Applied{Tx: &ledger.Tx{Actions: [][]byte{action}}}
	ap.TxID[0] = txByte
	return ap, msg
}

func paymentApplied(t *testing.T, id [32]byte, before, after uint64, txByte byte) *ledger.Applied {
	t.Helper()
	identity := ledger.AssetID{Policy: testPaymasterPolicy, Name: "igp"}
	action, err := igp.MarshalAction(igp.Action{
		Kind:        igp.ActionPayForGas,
		MessageID:   id[:],
		Destination: 5,
		GasAmount:   200_000,
	})
	require.NoError(t, err)
	ap := &ledger.Applied{
		Tx: &ledger.Tx{Actions: [][]byte{action}},
		Consumed: map[ledger.Outpoint]ledger.Utxo{
			{TxID: [32]byte{0x01}}: {Value: ledger.Value{Coin: before}.AddAsset(identity, 1)},
		},
		Produced: map[ledger.Outpoint]ledger.Utxo{
			{TxID: [32]byte{0x02}}: {Value: ledger.Value{Coin: after}.AddAsset(identity, 1)},
		},
	}
	ap.TxID[0] = txByte
	return ap
}

func deliverApplied(id [32]byte, txByte byte) *ledger.Applied {
	ap := &ledger.Applied{Tx: &ledger.Tx{Mints: []ledger.Mint{
		{Asset: ledger.AssetID{Policy: testProofPolicy, Name: string(id[:])}, Amount: 1},
	}}}
	ap.TxID[0] = txByte
	return ap
}

func TestIndex_Dispatches(t *testing.T) {
	s, db := testScanner(t)

	ap0, msg0 := dispatchApplied(t, 0, 0x10)
	ap1, msg1 := dispatchApplied(t, 1, 0x11)
	require.NoError(t, s.Index([]*ledger.Applied{ap0, ap1}))

	raw, ok, err := db.DispatchByNonce(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, message.Encode(msg0), raw)

	raw, ok, err = db.MessageByID(message.ID(msg1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, message.Encode(msg1), raw)

	latest, ok, err := db.LatestDispatchedID()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, message.ID(msg1), latest)

	_, ok, err = db.DispatchByNonce(7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIndex_ForgedDispatchSkipped(t *testing.T) {
	s, db := testScanner(t)

	ap, _ := dispatchApplied(t, 0, 0x10)
	forged, err := mailbox.MarshalAction(mailbox.Action{
		Kind:      mailbox.ActionDispatch,
		MessageID: make([]byte, 32), // does not hash-match the message
		Message:   ap.Tx.Actions[0],
	})
	require.NoError(t, err)
	ap.Tx.Actions = [][]byte{forged}

	require.NoError(t, s.Index([]*ledger.Applied{ap}))
	_, ok, err := db.LatestDispatchedID()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIndex_PaymentsFromValueDelta(t *testing.T) {
	s, db := testScanner(t)
	id := [32]byte{0x61}

	require.NoError(t, s.Index([]*ledger.Applied{
		paymentApplied(t, id, 100, 5_000_100, 0x20),
		paymentApplied(t, id, 5_000_100, 5_500_100, 0x21), // topped up again
	}))

	recs, err := db.PaymentsByMessage(id)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, id, recs[0].MessageID)
	assert.Equal(t, id, recs[1].MessageID)
	assert.Equal(t, uint64(5_000_000), recs[0].Payment)
	assert.Equal(t, uint64(500_000), recs[1].Payment)
	assert.Equal(t, uint32(5), recs[0].Destination)
	assert.Equal(t, uint64(200_000), recs[0].GasAmount)

	recs, err = db.PaymentsByMessage([32]byte{0x7F})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestIndex_PaymasterDrainIgnored(t *testing.T) {
	s, db := testScanner(t)
	id := [32]byte{0x62}

	// produced below consumed: a claim, not a payment, whatever the action says
	require.NoError(t, s.Index([]*ledger.Applied{paymentApplied(t, id, 500, 100, 0x22)}))
	recs, err := db.PaymentsByMessage(id)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestIndex_DeliveredFromProofMint(t *testing.T) {
	s, db := testScanner(t)
	id := [32]byte{0x63}

	require.NoError(t, s.Index([]*ledger.Applied{deliverApplied(id, 0x30)}))

	ok, err := db.Delivered(id)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.Delivered([32]byte{0x7F})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFollow(t *testing.T) {
	s, db := testScanner(t)
	source := make(chan []*ledger.Applied, 1)

	ap, msg := dispatchApplied(t, 0, 0x10)
	source <- []*ledger.Applied{ap}
	close(source)

	require.NoError(t, s.Follow(context.Background(), source))

	_, ok, err := db.MessageByID(message.ID(msg))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFollow_Cancel(t *testing.T) {
	s, _ := testScanner(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Follow(ctx, make(chan []*ledger.Applied))
	}()
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not stop on cancel")
	}
}

func TestPaymentRecord_Codec(t *testing.T) {
	r := PaymentRecord{Destination: 9, Payment: 77, GasAmount: 88}
	r.MessageID[0] = 0x01
	r.TxID[0] = 0x02
	got, err := decodePaymentRecord(encodePaymentRecord(r))
	require.NoError(t, err)
	assert.Equal(t, r.TxID, got.TxID)
	assert.Equal(t, r.Payment, got.Payment)

	_, err = decodePaymentRecord([]byte{1, 2, 3})
	assert.Error(t, err)
}
