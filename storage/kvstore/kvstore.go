// Package kvstore provides ordered key/value stores used to hold facts and rules.
package kvstore

import (
	"fmt"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

type Updater interface {
	Get(key []byte, fn func(val []byte) error) error
	Set(key, val []byte) error
	Delete(key []byte) error
	Commit() error
	Rollback()
}

// Iterator visits keys in ascending order; Item returns io.EOF when there are no more
// items.
type Iterator interface {
	Item(fn func(key, val []byte) error) error
	Close()
}

type KV interface {
	// Iterate returns an iterator over every key starting with prefix.
	Iterate(prefix []byte) (Iterator, error)
	// Get calls fn with the value of key or returns io.EOF if key is not found.
	Get(key []byte, fn func(val []byte) error) error
	Updater() (Updater, error)
	Close() error
}

// Open opens the store named by typ with its data in dataDir.
func Open(typ, dataDir string, logger *log.Logger) (KV, error) {
	switch typ {
	case "memory":
		return MakeBTreeKV()
	case "bbolt":
		return MakeBBoltKV(dataDir)
	case "badger":
		return MakeBadgerKV(filepath.Join(dataDir, "badger"), logger)
	case "pebble":
		return MakePebbleKV(filepath.Join(dataDir, "pebble"), logger)
	}
	return nil, fmt.Errorf("kvstore: got %s for store; want memory, bbolt, badger, or pebble",
		typ)
}

// PrefixEnd returns the smallest key greater than every key starting with prefix, or nil
// if there is no such key.
func PrefixEnd(prefix []byte) []byte {
	end := append(make([]byte, 0, len(prefix)), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i] += 1
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
