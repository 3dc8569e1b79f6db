package pebble

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"
)

// Store is a small process-local key-value store on top of PebbleDB.
type Store struct {
	db *pebble.DB
}

func Open(dir string) (*Store, error) {
	opts := &pebble.Options{
		// The store only holds a handful of keys.
		MemTableSize: 1 << 20,
	}
	db, err := pebble.Open(filepath.Clean(dir), opts)
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Get returns the value for key and whether it was present.
func (s *Store) Get(key string) (string, bool, error) {
	v, closer, err := s.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("pebble get %s: %w", key, err)
	}
	defer closer.Close()
	return string(v), true, nil
}

// SetAll writes every pair in one synced batch.
func (s *Store) SetAll(values map[string]string) error {
	b := s.db.NewBatch()
	defer b.Close()
	for k, v := range values {
		if err := b.Set([]byte(k), []byte(v), nil); err != nil {
			return fmt.Errorf("pebble batch set %s: %w", k, err)
		}
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("pebble commit: %w", err)
	}
	return nil
}

// DeleteAll removes the given keys in one synced batch.
func (s *Store) DeleteAll(keys ...string) error {
	b := s.db.NewBatch()
	defer b.Close()
	for _, k := range keys {
		if err := b.Delete([]byte(k), nil); err != nil {
			return fmt.Errorf("pebble batch delete %s: %w", k, err)
		}
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("pebble commit: %w", err)
	}
	return nil
}
