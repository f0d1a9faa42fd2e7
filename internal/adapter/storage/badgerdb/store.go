// Package badgerdb keeps the ledgers in an embedded BadgerDB for
// single-node deployments without PostgreSQL.
package badgerdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

const (
	prefixTx         = "tx:"
	prefixCommission = "com:"
	prefixUser       = "user:"
	prefixBonus      = "bonus:"

	maxConflictRetries = 5
)

// DB wraps a badger database shared by the ledger repositories.
type DB struct {
	db  *badger.DB
	log zerolog.Logger
}

// Open opens (or creates) the database at dir. An empty dir opens an
// in-memory database.
func Open(dir string, log zerolog.Logger) (*DB, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	log.Info().Str("dir", dir).Bool("in_memory", dir == "").Msg("badger ledger opened")
	return &DB{db: db, log: log}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping implements ports.HealthChecker.
func (d *DB) Ping(ctx context.Context) error {
	if d.db.IsClosed() {
		return errors.New("badger database closed")
	}
	return nil
}

// Name implements ports.HealthChecker.
func (d *DB) Name() string {
	return "badger"
}

// update runs fn in a read-write transaction, retrying when badger reports a
// conflicting concurrent commit.
func (d *DB) update(fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < maxConflictRetries; i++ {
		err = d.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// getJSON decodes the value at key into v. It reports false when the key
// does not exist.
func getJSON(txn *badger.Txn, key string, v any) (bool, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return txn.Set([]byte(key), data)
}

// scan calls fn with every value stored under prefix.
func scan(txn *badger.Txn, prefix string, fn func(val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
		if !strings.HasPrefix(string(it.Item().Key()), prefix) {
			continue
		}
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}
