//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

// Package kv is an ordered key-value index whose iteration order is defined
// by a caller supplied Comparator rather than by raw key bytes.
//
// All keys are held in an in-memory btree, which serves every read. A bbolt
// file persists the entries: writes only mark tree entries dirty and
// Sync writes all dirty entries in a single transaction. On Open the file is
// loaded back into the tree. Entries are never removed.
package kv

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/willf/bloom"
	bolt "go.etcd.io/bbolt"

	"github.com/weaviate/patchstore/usecases/monitoring"
)

var bucketName = []byte("index")

type DB struct {
	path string
	name string
	cmp  Comparator

	readOnly               bool
	noSync                 bool
	initialMmapSize        int
	openTimeout            time.Duration
	bloomCapacity          uint
	bloomFalsePositiveRate float64

	logger      logrus.FieldLogger
	promMetrics *monitoring.PrometheusMetrics
	metrics     *dbMetrics

	// lock guards everything below. Readers take the read lock per call.
	lock   sync.RWMutex
	bolt   *bolt.DB
	tree   *tree
	dirty  []*node
	bloom  *bloom.BloomFilter
	closed bool
}

// Open opens or creates the index file at path.
func Open(path string, cmp Comparator, opts ...Option) (*DB, error) {
	db := &DB{
		path:        path,
		name:        filepath.Base(path),
		cmp:         cmp,
		openTimeout: time.Second,
		logger:      logrus.New(),
	}

	for _, opt := range opts {
		if err := opt(db); err != nil {
			return nil, err
		}
	}

	db.logger = db.logger.WithField("index", db.name)
	db.metrics = newDBMetrics(db.promMetrics, db.name)
	db.tree = newTree(cmp)
	if db.bloomCapacity > 0 {
		db.bloom = bloom.NewWithEstimates(db.bloomCapacity, db.bloomFalsePositiveRate)
	}

	if !db.readOnly {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
	}

	boltDB, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout:         db.openTimeout,
		ReadOnly:        db.readOnly,
		InitialMmapSize: db.initialMmapSize,
		NoSync:          db.noSync,
	})
	if err != nil {
		return nil, fmt.Errorf("open bolt db %q: %w", path, err)
	}
	db.bolt = boltDB

	if !db.readOnly {
		if err := boltDB.Update(func(tx *bolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(bucketName)
			return err
		}); err != nil {
			boltDB.Close()
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	if err := db.load(); err != nil {
		boltDB.Close()
		return nil, err
	}

	return db, nil
}

func (db *DB) load() error {
	start := time.Now()
	defer db.metrics.load(start.UnixNano())

	err := db.bolt.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			key := copyBytes(k)
			db.tree.upsert(key, copyBytes(v))
			if db.bloom != nil {
				db.bloom.Add(key)
			}
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("load index %q: %w", db.path, err)
	}

	db.metrics.keys(db.tree.size)
	db.logger.WithField("action", "kv_load").
		WithField("keys", db.tree.size).
		WithField("took", time.Since(start)).
		Debug("loaded index into memory")
	return nil
}

func (db *DB) Name() string {
	return db.name
}

func (db *DB) Path() string {
	return db.path
}

func (db *DB) Comparator() Comparator {
	return db.cmp
}

func (db *DB) ReadOnly() bool {
	return db.readOnly
}

func (db *DB) Len() int {
	db.lock.RLock()
	defer db.lock.RUnlock()

	return db.tree.size
}

// Get returns the value stored under key, or NotFound. The returned slice
// must not be modified.
func (db *DB) Get(key []byte) ([]byte, error) {
	defer db.metrics.get(time.Now().UnixNano())

	db.lock.RLock()
	defer db.lock.RUnlock()

	if db.closed {
		return nil, ErrClosed
	}

	if db.bloom != nil && !db.bloom.Test(key) {
		db.metrics.bloomTrueNegative()
		return nil, NotFound
	}

	n := db.tree.get(key)
	if n == nil {
		if db.bloom != nil {
			db.metrics.bloomFalsePositive()
		}
		return nil, NotFound
	}
	if db.bloom != nil {
		db.metrics.bloomTruePositive()
	}
	return n.value, nil
}

// Set stores a copy of value under a copy of key. The entry becomes durable
// with the next Sync.
func (db *DB) Set(key, value []byte) error {
	defer db.metrics.set(time.Now().UnixNano())

	db.lock.Lock()
	defer db.lock.Unlock()

	if err := db.writable(); err != nil {
		return err
	}

	k := copyBytes(key)
	n := db.tree.upsert(k, copyBytes(value))
	db.markDirty(n)
	if db.bloom != nil {
		db.bloom.Add(k)
	}
	return nil
}

// Dirty is the number of entries changed since the last Sync.
func (db *DB) Dirty() int {
	db.lock.RLock()
	defer db.lock.RUnlock()

	return len(db.dirty)
}

// Sync writes all dirty entries to disk in one transaction.
func (db *DB) Sync() error {
	db.lock.Lock()
	defer db.lock.Unlock()

	return db.syncUnlocked()
}

func (db *DB) syncUnlocked() error {
	if db.closed || db.readOnly || len(db.dirty) == 0 {
		return nil
	}

	start := time.Now()
	defer db.metrics.sync(start.UnixNano())

	err := db.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		for _, n := range db.dirty {
			if err := b.Put(n.key, n.value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sync index %q: %w", db.path, err)
	}

	count := len(db.dirty)
	for _, n := range db.dirty {
		n.dirty = false
	}
	db.dirty = db.dirty[:0]
	db.metrics.keys(db.tree.size)

	db.logger.WithField("action", "kv_sync").
		WithField("entries", count).
		WithField("took", time.Since(start)).
		Trace("synced dirty entries")
	return nil
}

// Close syncs all dirty entries and releases the file. Calling Close more
// than once is a no-op.
func (db *DB) Close() error {
	db.lock.Lock()
	defer db.lock.Unlock()

	if db.closed {
		return nil
	}

	syncErr := db.syncUnlocked()
	db.closed = true
	if err := db.bolt.Close(); err != nil {
		return fmt.Errorf("close index %q: %w", db.path, err)
	}
	return syncErr
}

func (db *DB) writable() error {
	if db.closed {
		return ErrClosed
	}
	if db.readOnly {
		return ErrReadOnly
	}
	return nil
}

func (db *DB) markDirty(n *node) {
	if n.dirty {
		return
	}
	n.dirty = true
	db.dirty = append(db.dirty, n)
}

func copyBytes(in []byte) []byte {
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
