// Package relayer drives inbound delivery against a live ledger backend.
//
// Exactly one failure class is retried without operator involvement: losing
// the race for an exclusively-consumed output. Every retry rebuilds the
// transaction from a fresh snapshot; a rejection reproduced from identical
// inputs would just be reproduced again, so nothing else auto-retries.
package relayer

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/eigerco/hyperlane-utxo/ledger"
	"github.com/eigerco/hyperlane-utxo/mailbox"
	"github.com/eigerco/hyperlane-utxo/message"
)

// Relayer submits deliveries for one mailbox.
type Relayer struct {
	backend ledger.Backend
	mailbox *mailbox.Mailbox
	log     zerolog.Logger

	// NewBackOff builds the retry schedule for one delivery. Overridable
	// so tests do not sleep.
	NewBackOff func() backoff.BackOff
}

func New(backend ledger.Backend, mbx *mailbox.Mailbox, log zerolog.Logger) *Relayer {
	return &Relayer{
		backend: backend,
		mailbox: mbx,
		log:     log,
		NewBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = 500 * time.Millisecond
			bo.MaxElapsedTime = 2 * time.Minute
			return bo
		},
	}
}

// Deliver lands msg on the local chain, retrying contention until the
// backoff schedule gives up. Before every attempt the delivered-set is
// re-checked against fresh state, so a delayed confirmation from an earlier
// attempt counts as success instead of a double submission.
func (r *Relayer) Deliver(ctx context.Context, msg *message.Message, metadata []byte) error {
	id := message.ID(msg)
	attempt := 0

	op := func() error {
		attempt++
		snap, err := r.backend.Snapshot(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		if r.mailbox.Delivered(snap, id) {
			if attempt > 1 {
				r.log.Info().Hex("id", id[:8]).Msg("delivery confirmed by earlier attempt")
			}
			return nil
		}
		_, tx, err := r.mailbox.Deliver(snap, msg, metadata)
		if err != nil {
			return classify(err)
		}
		txid, err := r.backend.Submit(ctx, tx)
		if err != nil {
			return classify(err)
		}
		if err := r.backend.AwaitConfirmation(ctx, txid); err != nil {
			// Indeterminate, not failed: the next attempt re-queries
			// state before doing anything.
			r.log.Warn().Hex("id", id[:8]).Err(err).Msg("confirmation deadline passed")
			return err
		}
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(r.NewBackOff(), ctx))
	if err != nil {
		r.log.Error().Hex("id", id[:8]).Err(err).Msg("delivery failed")
		return err
	}
	return nil
}

// classify marks everything except output contention permanent.
func classify(err error) error {
	if ledger.IsContention(err) {
		return err
	}
	return backoff.Permanent(err)
}
