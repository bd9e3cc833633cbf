package badger

import (
	"errors"

	"github.com/dgraph-io/badger/v4"
)

// Open opens the database described by cfg. Badger's own logger is disabled.
func Open(cfg Config) (*badger.DB, error) {
	opts := badger.DefaultOptions(cfg.Dir).WithLogger(nil)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Join(ErrFailedToOpen, err)
	}
	return db, nil
}
