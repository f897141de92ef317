package indexer

import (
	"context"
	"sync"

	"github.com/gammazero/workerpool"
	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/sync/errgroup"

	"github.com/eigerco/hyperlane-utxo/igp"
	"github.com/eigerco/hyperlane-utxo/ledger"
	"github.com/eigerco/hyperlane-utxo/mailbox"
	"github.com/eigerco/hyperlane-utxo/message"
)

const defaultScanWorkers = 4

// Scanner turns confirmed transactions into index records. It recognizes the
// paymaster by its identity token on consumed/produced outputs and decodes
// the attached actions for correlation.
type Scanner struct {
	db                *DB
	paymasterIdentity ledger.AssetID
	proofPolicy       ledger.PolicyID
	workers           int
	log               zerolog.Logger
}

func NewScanner(db *DB, paymasterIdentity ledger.AssetID, proofPolicy ledger.PolicyID, log zerolog.Logger) *Scanner {
	return &Scanner{
		db:                db,
		paymasterIdentity: paymasterIdentity,
		proofPolicy:       proofPolicy,
		workers:           defaultScanWorkers,
		log:               log,
	}
}

// extracted is what one transaction contributed to the index.
type extracted struct {
	dispatches []dispatchRecord
	payments   []PaymentRecord
	delivered  [][32]byte
}

type dispatchRecord struct {
	id    [32]byte
	nonce uint32
	raw   []byte
}

// Index decodes a batch of confirmed transactions concurrently and writes
// all resulting records in one store transaction.
func (s *Scanner) Index(batch []*ledger.Applied) error {
	var mu sync.Mutex
	var all []extracted

	wp := workerpool.New(s.workers)
	for _, ap := range batch {
		ap := ap
		wp.Submit(func() {
			ex := s.extract(ap)
			if len(ex.dispatches) == 0 && len(ex.payments) == 0 && len(ex.delivered) == 0 {
				return
			}
			mu.Lock()
			all = append(all, ex)
			mu.Unlock()
		})
	}
	wp.StopWait()

	return s.write(all)
}

// Follow consumes batches from source until it closes or ctx is cancelled,
// indexing each as it arrives. Decode and store stages run concurrently.
func (s *Scanner) Follow(ctx context.Context, source <-chan []*ledger.Applied) error {
	g, ctx := errgroup.WithContext(ctx)
	staged := make(chan []*ledger.Applied)

	g.Go(func() error {
		defer close(staged)
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case batch, ok := <-source:
				if !ok {
					return nil
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case staged <- batch:
				}
			}
		}
	})
	g.Go(func() error {
		for batch := range staged {
			if err := s.Index(batch); err != nil {
				return err
			}
		}
		return nil
	})
	return g.Wait()
}

func (s *Scanner) extract(ap *ledger.Applied) extracted {
	var ex extracted

	for _, raw := range ap.Tx.Actions {
		if a, err := mailbox.ParseAction(raw); err == nil {
			s.extractMailbox(ap, a, &ex)
			continue
		}
		if a, err := igp.ParseAction(raw); err == nil {
			s.extractPaymaster(ap, a, &ex)
		}
	}

	// Proof-token mints mark deliveries even when the action is missing.
	for _, m := range ap.Tx.Mints {
		if m.Asset.Policy != s.proofPolicy || len(m.Asset.Name) != 32 {
			continue
		}
		var id [32]byte
		copy(id[:], m.Asset.Name)
		ex.delivered = append(ex.delivered, id)
	}
	return ex
}

func (s *Scanner) extractMailbox(ap *ledger.Applied, a mailbox.Action, ex *extracted) {
	if a.Kind != mailbox.ActionDispatch || len(a.MessageID) != 32 {
		return
	}
	msg, err := message.Parse(a.Message)
	if err != nil {
		s.log.Warn().Hex("txid", ap.TxID[:8]).Err(err).Msg("undecodable dispatch action")
		return
	}
	var id [32]byte
	copy(id[:], a.MessageID)
	if message.ID(msg) != id {
		s.log.Warn().Hex("txid", ap.TxID[:8]).Msg("dispatch action id mismatch")
		return
	}
	ex.dispatches = append(ex.dispatches, dispatchRecord{
		id:    id,
		nonce: msg.Nonce,
		raw:   a.Message,
	})
}

func (s *Scanner) extractPaymaster(ap *ledger.Applied, a igp.Action, ex *extracted) {
	if a.Kind != igp.ActionPayForGas || len(a.MessageID) != 32 {
		return
	}
	var before, after uint64
	var seen bool
	for _, u := range ap.Consumed {
		if u.HasAsset(s.paymasterIdentity) {
			before = u.Value.Coin
			seen = true
		}
	}
	for _, u := range ap.Produced {
		if u.HasAsset(s.paymasterIdentity) {
			after = u.Value.Coin
		}
	}
	if !seen || after < before {
		return
	}
	var id [32]byte
	copy(id[:], a.MessageID)
	ex.payments = append(ex.payments, PaymentRecord{
		MessageID:   id,
		TxID:        ap.TxID,
		Destination: a.Destination,
		// The verified delta between consumed and produced paymaster value.
		Payment:   after - before,
		GasAmount: a.GasAmount,
	})
}

func (s *Scanner) write(all []extracted) error {
	if len(all) == 0 {
		return nil
	}
	return s.db.db.Update(func(tx *bolt.Tx) error {
		dispatches := tx.Bucket(bucketDispatches)
		messages := tx.Bucket(bucketMessages)
		payments := tx.Bucket(bucketPayments)
		delivered := tx.Bucket(bucketDelivered)
		meta := tx.Bucket(bucketMeta)

		var latest *dispatchRecord
		for i := range all {
			ex := &all[i]
			for j := range ex.dispatches {
				d := &ex.dispatches[j]
				if err := dispatches.Put(nonceKey(d.nonce), d.raw); err != nil {
					return err
				}
				if err := messages.Put(d.id[:], d.raw); err != nil {
					return err
				}
				if latest == nil || d.nonce >= latest.nonce {
					latest = d
				}
			}
			for _, p := range ex.payments {
				if err := payments.Put(paymentKey(p.MessageID, p.TxID), encodePaymentRecord(p)); err != nil {
					return err
				}
			}
			for _, id := range ex.delivered {
				if err := delivered.Put(id[:], []byte{1}); err != nil {
					return err
				}
			}
		}
		if latest != nil {
			if err := meta.Put(keyLatestDispatch, latest.id[:]); err != nil {
				return err
			}
		}
		return nil
	})
}
