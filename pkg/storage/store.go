/*
Package storage provides key-value stores for compiled script blobs. Keys are
script names (paths), values are raw code block bytes.
*/
package storage

import (
	"errors"
	"fmt"
)

// ErrKeyNotFound is an error returned by Store implementations
// when a certain key is not found.
var ErrKeyNotFound = errors.New("key not found")

// Store is anything that can persist and retrieve script blobs.
type Store interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	// Seek calls f for every key with the given prefix in ascending order
	// until f returns false.
	Seek(prefix []byte, f func(k, v []byte) bool) error
	Close() error
}

// Store types.
const (
	BoltDB   = "boltdb"
	InMemory = "inmemory"
)

// DBConfiguration describes configuration for DB. Supported: 'boltdb',
// 'inmemory'.
type DBConfiguration struct {
	Type          string        `yaml:"Type"`
	BoltDBOptions BoltDBOptions `yaml:"BoltDBOptions"`
}

// NewStore creates storage with preselected in configuration database type.
func NewStore(cfg DBConfiguration) (Store, error) {
	switch cfg.Type {
	case BoltDB:
		return NewBoltDBStore(cfg.BoltDBOptions)
	case InMemory, "":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage: %s", cfg.Type)
	}
}
