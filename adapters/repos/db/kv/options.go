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

package kv

import (
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/weaviate/patchstore/usecases/monitoring"
)

type Option func(db *DB) error

func WithReadOnly(readOnly bool) Option {
	return func(db *DB) error {
		db.readOnly = readOnly
		return nil
	}
}

// WithNoSync skips the fsync after each Sync. Only use it when losing the
// last synced state on a crash is acceptable, for example during bulk loads.
func WithNoSync(noSync bool) Option {
	return func(db *DB) error {
		db.noSync = noSync
		return nil
	}
}

func WithInitialMmapSize(size int) Option {
	return func(db *DB) error {
		if size < 0 {
			return errors.Errorf("invalid initial mmap size %d", size)
		}
		db.initialMmapSize = size
		return nil
	}
}

func WithOpenTimeout(timeout time.Duration) Option {
	return func(db *DB) error {
		db.openTimeout = timeout
		return nil
	}
}

// WithBloomFilter guards point lookups with a bloom filter sized for the given
// number of keys. The filter hashes raw key bytes, so it must only be used
// with comparators under which equal keys are byte-identical.
func WithBloomFilter(capacity uint, falsePositiveRate float64) Option {
	return func(db *DB) error {
		if capacity == 0 {
			return nil
		}
		if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
			return errors.Errorf("invalid bloom filter false positive rate %v", falsePositiveRate)
		}
		db.bloomCapacity = capacity
		db.bloomFalsePositiveRate = falsePositiveRate
		return nil
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(db *DB) error {
		db.logger = logger
		return nil
	}
}

func WithMetrics(metrics *monitoring.PrometheusMetrics) Option {
	return func(db *DB) error {
		db.promMetrics = metrics
		return nil
	}
}
