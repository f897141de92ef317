// Package indexer reconstructs protocol history from confirmed transactions.
// The execution model has no event log: dispatches, deliveries and gas
// payments are recovered from state-output transitions and the actions
// attached to them, then served from a local store.
package indexer

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketDispatches = []byte("dispatches_by_nonce")
	bucketMessages   = []byte("messages_by_id")
	bucketPayments   = []byte("payments_by_message")
	bucketDelivered  = []byte("delivered_by_id")
	bucketMeta       = []byte("meta")
)

var keyLatestDispatch = []byte("latest_dispatched_id")

// DB is the index store.
type DB struct {
	dir string
	db  *bolt.DB
}

func Open(datadir string) (*DB, error) {
	if datadir == "" {
		return nil, fmt.Errorf("datadir required")
	}
	if err := os.MkdirAll(datadir, 0o750); err != nil {
		return nil, err
	}
	path := filepath.Join(datadir, "index.db")
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open bbolt: %w", err)
	}
	d := &DB{dir: datadir, db: bdb}
	if err := d.db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketDispatches, bucketMessages, bucketPayments, bucketDelivered, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", string(b), err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func nonceKey(nonce uint32) []byte {
	// Big-endian so bucket order is dispatch order.
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, nonce)
	return out
}

// DispatchByNonce returns the raw message bytes dispatched at nonce.
func (d *DB) DispatchByNonce(nonce uint32) ([]byte, bool, error) {
	var out []byte
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketDispatches).Get(nonceKey(nonce))
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, out != nil, err
}

// MessageByID returns the raw message bytes for a dispatched id.
func (d *DB) MessageByID(id [32]byte) ([]byte, bool, error) {
	var out []byte
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketMessages).Get(id[:])
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, out != nil, err
}

// Delivered reports whether a proof-token mint for id has been indexed.
func (d *DB) Delivered(id [32]byte) (bool, error) {
	var ok bool
	err := d.db.View(func(tx *bolt.Tx) error {
		ok = tx.Bucket(bucketDelivered).Get(id[:]) != nil
		return nil
	})
	return ok, err
}

// PaymentsByMessage returns every indexed gas payment for id.
func (d *DB) PaymentsByMessage(id [32]byte) ([]PaymentRecord, error) {
	var out []PaymentRecord
	err := d.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketPayments).Cursor()
		prefix := id[:]
		for k, v := c.Seek(prefix); k != nil && len(k) >= 32 && string(k[:32]) == string(prefix); k, v = c.Next() {
			rec, err := decodePaymentRecord(v)
			if err != nil {
				return err
			}
			// The message id is the key prefix, not part of the stored value.
			copy(rec.MessageID[:], k[:32])
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

// LatestDispatchedID returns the most recently indexed dispatch id.
func (d *DB) LatestDispatchedID() ([32]byte, bool, error) {
	var id [32]byte
	var ok bool
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketMeta).Get(keyLatestDispatch)
		if len(v) == 32 {
			copy(id[:], v)
			ok = true
		}
		return nil
	})
	return id, ok, err
}
