/*
Package loader reads compiled scripts from files or a storage and decodes
them. Decoded code blocks are cached by content hash, so loading the same
script twice (even under different names) decodes it once.
*/
package loader

import (
	"errors"
	"fmt"
	"os"

	lru "github.com/hashicorp/golang-lru"
	"github.com/tribes-emu/dsovm/pkg/config"
	"github.com/tribes-emu/dsovm/pkg/dso"
	"github.com/tribes-emu/dsovm/pkg/storage"
	"github.com/twmb/murmur3"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
)

// ErrNoStore is returned for storage operations of a loader without one.
var ErrNoStore = errors.New("no script storage configured")

type cacheKey struct {
	h1, h2 uint64
	size   int
}

// Loader decodes compiled scripts caching the results. Decoded code blocks
// are shared and must not be modified.
type Loader struct {
	log   *zap.Logger
	dec   dso.Decoder
	store storage.Store
	cache *lru.Cache
}

// New creates a loader, store can be nil if only files are to be loaded.
func New(cfg config.Loader, charset encoding.Encoding, store storage.Store, log *zap.Logger) (*Loader, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cache, err := lru.New(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("loader cache: %w", err)
	}
	return &Loader{
		log:   log,
		dec:   dso.Decoder{Charset: charset},
		store: store,
		cache: cache,
	}, nil
}

func keyOf(data []byte) cacheKey {
	h1, h2 := murmur3.Sum128(data)
	return cacheKey{h1: h1, h2: h2, size: len(data)}
}

// Decode decodes the compiled script using the cache.
func (l *Loader) Decode(data []byte) (*dso.CodeBlock, error) {
	k := keyOf(data)
	if v, ok := l.cache.Get(k); ok {
		cacheHits.Inc()
		return v.(*dso.CodeBlock), nil
	}
	cacheMisses.Inc()
	cb, err := l.dec.Decode(data)
	if err != nil {
		return nil, err
	}
	l.cache.Add(k, cb)
	return cb, nil
}

// LoadFile reads and decodes the compiled script file.
func (l *Loader) LoadFile(path string) (*dso.CodeBlock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cb, err := l.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	l.log.Debug("script loaded", zap.String("path", path), zap.Int("functions", len(cb.Functions)))
	return cb, nil
}

// Put checks that data is a valid compiled script and saves it to the
// storage under the given name.
func (l *Loader) Put(name string, data []byte) error {
	if l.store == nil {
		return ErrNoStore
	}
	if _, err := l.Decode(data); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if err := l.store.Put([]byte(name), data); err != nil {
		return fmt.Errorf("failed to store %s: %w", name, err)
	}
	l.log.Debug("script stored", zap.String("name", name), zap.Int("size", len(data)))
	return nil
}

// Load gets the script from the storage and decodes it.
func (l *Loader) Load(name string) (*dso.CodeBlock, error) {
	data, err := l.Raw(name)
	if err != nil {
		return nil, err
	}
	cb, err := l.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return cb, nil
}

// Raw returns stored script bytes.
func (l *Loader) Raw(name string) ([]byte, error) {
	if l.store == nil {
		return nil, ErrNoStore
	}
	data, err := l.store.Get([]byte(name))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return data, nil
}

// Delete removes the script from the storage.
func (l *Loader) Delete(name string) error {
	if l.store == nil {
		return ErrNoStore
	}
	return l.store.Delete([]byte(name))
}

// List returns names of stored scripts with the given prefix.
func (l *Loader) List(prefix string) ([]string, error) {
	if l.store == nil {
		return nil, ErrNoStore
	}
	var names []string
	err := l.store.Seek([]byte(prefix), func(k, _ []byte) bool {
		names = append(names, string(k))
		return true
	})
	return names, err
}

// Cached returns the number of cached code blocks.
func (l *Loader) Cached() int {
	return l.cache.Len()
}
