// Copyright 2023-2026 The NVCaffe Authors. SPDX-License-Identifier: Apache-2.0

// Package recorddb stores datum records in a key-value database (github.com/cockroachdb/pebble),
// the way datasets of training samples are usually kept for ingestion.
//
// Values are the binary wire format of the record, prefixed by one header byte telling whether they
// are zstd compressed. Keys are ordered, so iterating the database yields the samples in the order
// they were keyed (see Key).
package recorddb

import (
	"fmt"

	"github.com/alpesis-fork/NVCaffe/pkg/core/datum"
	"github.com/cockroachdb/pebble"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/segmentio/ksuid"
	"k8s.io/klog/v2"
)

// Value header bytes.
const (
	valueRaw  byte = 0x00
	valueZstd byte = 0x01
)

// ErrNotFound is returned by Get when the key doesn't exist.
var ErrNotFound = errors.New("record not found")

// Options to Open a DB.
type Options struct {
	// Compress new values with zstd. Values are always readable, compressed or not.
	Compress bool

	// ReadOnly opens an existing database for reading only.
	ReadOnly bool

	// Sync every write to disk. Transactions are always synced on Commit.
	Sync bool
}

// DB is a database of datum records. It is safe for concurrent use.
type DB struct {
	path    string
	opts    Options
	db      *pebble.DB
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// Open the database in the directory path, creating it if needed (unless opts.ReadOnly is set).
func Open(path string, opts Options) (*DB, error) {
	db := &DB{path: path, opts: opts}
	var err error
	db.db, err = pebble.Open(path, &pebble.Options{ReadOnly: opts.ReadOnly, ErrorIfNotExists: opts.ReadOnly})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open record database %q", path)
	}
	db.decoder, err = zstd.NewReader(nil)
	if err != nil {
		_ = db.db.Close()
		return nil, errors.Wrap(err, "failed to create zstd decoder")
	}
	if opts.Compress {
		db.encoder, err = zstd.NewWriter(nil)
		if err != nil {
			db.decoder.Close()
			_ = db.db.Close()
			return nil, errors.Wrap(err, "failed to create zstd encoder")
		}
	}
	klog.V(1).Infof("opened record database %q (compress=%v, read-only=%v)", path, opts.Compress, opts.ReadOnly)
	return db, nil
}

// Path of the database directory.
func (db *DB) Path() string { return db.path }

// Close the database, flushing pending writes.
func (db *DB) Close() error {
	if db.encoder != nil {
		_ = db.encoder.Close()
	}
	db.decoder.Close()
	return errors.Wrapf(db.db.Close(), "failed to close record database %q", db.path)
}

// Key returns the key "%08d_name", which keeps samples ordered by index.
func Key(index int, name string) []byte {
	return []byte(fmt.Sprintf("%08d_%s", index, name))
}

// NewKey returns a new unique key, ordered by creation time.
func NewKey() []byte {
	return []byte(ksuid.New().String())
}

func (db *DB) writeOptions() *pebble.WriteOptions {
	if db.opts.Sync {
		return pebble.Sync
	}
	return pebble.NoSync
}

// encodeValue serializes d, compressing it if configured.
func (db *DB) encodeValue(d *datum.Datum) ([]byte, error) {
	b, err := datum.Marshal(d)
	if err != nil {
		return nil, err
	}
	if db.encoder == nil {
		return append([]byte{valueRaw}, b...), nil
	}
	return db.encoder.EncodeAll(b, []byte{valueZstd}), nil
}

// decodeValue parses a value into a new Datum. value may be reused after it returns.
func (db *DB) decodeValue(value []byte) (*datum.Datum, error) {
	if len(value) == 0 {
		return nil, errors.New("empty value in record database")
	}
	payload := value[1:]
	switch value[0] {
	case valueRaw:
	case valueZstd:
		var err error
		payload, err = db.decoder.DecodeAll(payload, nil)
		if err != nil {
			return nil, errors.Wrap(err, "failed to decompress record")
		}
	default:
		return nil, errors.Errorf("unknown value header 0x%02x in record database", value[0])
	}
	d := &datum.Datum{}
	if err := datum.Unmarshal(payload, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Put stores d under key, replacing any previous record.
func (db *DB) Put(key []byte, d *datum.Datum) error {
	value, err := db.encodeValue(d)
	if err != nil {
		return err
	}
	return errors.Wrapf(db.db.Set(key, value, db.writeOptions()), "failed to put record %q", key)
}

// Append stores d under a new unique key (see NewKey), which is returned.
func (db *DB) Append(d *datum.Datum) ([]byte, error) {
	key := NewKey()
	if err := db.Put(key, d); err != nil {
		return nil, err
	}
	return key, nil
}

// Get returns the record stored under key, or ErrNotFound.
func (db *DB) Get(key []byte) (*datum.Datum, error) {
	value, closer, err := db.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, errors.Wrapf(ErrNotFound, "key %q", key)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get record %q", key)
	}
	defer func() { _ = closer.Close() }()
	d, err := db.decodeValue(value)
	if err != nil {
		return nil, errors.WithMessagef(err, "record %q", key)
	}
	return d, nil
}

// Delete the record stored under key. Deleting a missing key is not an error.
func (db *DB) Delete(key []byte) error {
	return errors.Wrapf(db.db.Delete(key, db.writeOptions()), "failed to delete record %q", key)
}

// Iterate calls fn for every record, in key order. The key passed to fn is only valid during the
// call. If fn returns an error the iteration stops and the error is returned.
func (db *DB) Iterate(fn func(key []byte, d *datum.Datum) error) (err error) {
	iter, err := db.db.NewIter(nil)
	if err != nil {
		return errors.Wrapf(err, "failed to iterate record database %q", db.path)
	}
	defer func() {
		errClose := iter.Close()
		if err == nil && errClose != nil {
			err = errors.Wrapf(errClose, "failed iterating record database %q", db.path)
		}
	}()
	for valid := iter.First(); valid; valid = iter.Next() {
		d, err := db.decodeValue(iter.Value())
		if err != nil {
			return errors.WithMessagef(err, "record %q", iter.Key())
		}
		if err = fn(iter.Key(), d); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of records in the database. It scans all keys.
func (db *DB) Count() (int, error) {
	iter, err := db.db.NewIter(nil)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to iterate record database %q", db.path)
	}
	count := 0
	for valid := iter.First(); valid; valid = iter.Next() {
		count++
	}
	return count, errors.Wrapf(iter.Close(), "failed counting records of %q", db.path)
}

// Transaction accumulates records to be written atomically on Commit.
//
// It is not safe for concurrent use.
type Transaction struct {
	db    *DB
	batch *pebble.Batch
}

// NewTransaction starts a new Transaction.
func (db *DB) NewTransaction() *Transaction {
	return &Transaction{db: db, batch: db.db.NewBatch()}
}

// Put adds the record to the transaction.
func (t *Transaction) Put(key []byte, d *datum.Datum) error {
	value, err := t.db.encodeValue(d)
	if err != nil {
		return err
	}
	return errors.Wrapf(t.batch.Set(key, value, nil), "failed to add record %q to transaction", key)
}

// Len returns the number of records added since the last Commit.
func (t *Transaction) Len() int { return int(t.batch.Count()) }

// Commit writes all records added so far and syncs them to disk. The transaction can be reused
// afterwards.
func (t *Transaction) Commit() error {
	if err := t.batch.Commit(pebble.Sync); err != nil {
		return errors.Wrapf(err, "failed to commit %d records to %q", t.Len(), t.db.path)
	}
	_ = t.batch.Close()
	t.batch = t.db.db.NewBatch()
	return nil
}

// Close discards the records not committed.
func (t *Transaction) Close() error {
	return t.batch.Close()
}
