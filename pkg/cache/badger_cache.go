// Package cache provides a persistent analysis result cache backed by
// Badger. It implements advisor.ResultCache, so it can replace the
// in-memory cache when results should survive restarts or carry a TTL.
package cache

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/kasuganosora/sqladvisor/pkg/advisor"
)

// keyPrefix namespaces analysis results inside the store
var keyPrefix = []byte("ar:")

// Options configures the Badger-backed cache.
type Options struct {
	// Dir is the on-disk location. Ignored in in-memory mode.
	Dir string
	// InMemory keeps the whole store in RAM, nothing touches disk.
	InMemory bool
	// TTL expires entries after the given duration. Zero keeps them forever.
	// Badger tracks expiry with second granularity.
	TTL time.Duration
	// SyncWrites makes every write wait for fsync.
	SyncWrites bool
}

// BadgerResultCache stores analysis results keyed by query fingerprint.
type BadgerResultCache struct {
	db     *badger.DB
	ttl    time.Duration
	hits   int64
	misses int64
}

var _ advisor.ResultCache = (*BadgerResultCache)(nil)

// Open opens or creates the cache store.
func Open(opts Options) (*BadgerResultCache, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Dir == "" {
			return nil, fmt.Errorf("cache dir must be set unless in-memory mode is enabled")
		}
		bopts = badger.DefaultOptions(opts.Dir)
	}
	bopts = bopts.WithSyncWrites(opts.SyncWrites)
	bopts = bopts.WithLogger(nil)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &BadgerResultCache{db: db, ttl: opts.TTL}, nil
}

func cacheKey(fingerprint uint64) []byte {
	key := make([]byte, len(keyPrefix)+8)
	copy(key, keyPrefix)
	binary.BigEndian.PutUint64(key[len(keyPrefix):], fingerprint)
	return key
}

// Get returns the cached result for the fingerprint, if present.
func (c *BadgerResultCache) Get(fingerprint uint64) (*advisor.OptimizationResult, bool) {
	var payload []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cacheKey(fingerprint))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			payload = append([]byte(nil), val...)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	if err != nil {
		log.Printf("[CACHE] failed to read cached result: %v", err)
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	var result advisor.OptimizationResult
	if err := json.Unmarshal(payload, &result); err != nil {
		// corrupt entries count as misses
		log.Printf("[CACHE] failed to decode cached result: %v", err)
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	atomic.AddInt64(&c.hits, 1)
	return &result, true
}

// Put stores the result. Failures are logged, the analysis itself
// never depends on the cache being writable.
func (c *BadgerResultCache) Put(fingerprint uint64, result *advisor.OptimizationResult) {
	if result == nil {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		log.Printf("[CACHE] failed to encode analysis result: %v", err)
		return
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(cacheKey(fingerprint), payload)
		if c.ttl > 0 {
			entry = entry.WithTTL(c.ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		log.Printf("[CACHE] failed to store analysis result: %v", err)
	}
}

// Invalidate drops every cached analysis result.
func (c *BadgerResultCache) Invalidate() {
	if err := c.db.DropPrefix(keyPrefix); err != nil {
		log.Printf("[CACHE] failed to drop cached results: %v", err)
	}
}

// Stats returns hit and miss counters for this process.
func (c *BadgerResultCache) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

// Close flushes and closes the underlying store.
func (c *BadgerResultCache) Close() error {
	return c.db.Close()
}
