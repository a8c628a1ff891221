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

package config

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// FromEnv takes a *Config as it will respect initial config that has been
// provided by other means (e.g. a config file) and will only extend those that
// are set
func FromEnv(config *Config) error {
	if v := os.Getenv("PERSISTENCE_DATA_PATH"); v != "" {
		config.Persistence.DataPath = v
	}

	if v := os.Getenv("PERSISTENCE_BASE_NAME"); v != "" {
		config.Persistence.BaseName = v
	}

	if v := os.Getenv("STORE_FLUSH_TRIPLES_COUNT"); v != "" {
		asInt, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "parse STORE_FLUSH_TRIPLES_COUNT as int")
		}
		if asInt <= 0 {
			return errors.Errorf("STORE_FLUSH_TRIPLES_COUNT must be positive, got %d", asInt)
		}
		config.Store.FlushTriplesCount = asInt
	}

	if v := os.Getenv("STORE_MEMORY_MAP_SIZE"); v != "" {
		asInt, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "parse STORE_MEMORY_MAP_SIZE as int")
		}
		config.Store.MemoryMapSize = asInt
	}

	if v := os.Getenv("STORE_BLOOM_FILTER_CAPACITY"); v != "" {
		asUint, err := strconv.ParseUint(v, 10, 0)
		if err != nil {
			return errors.Wrapf(err, "parse STORE_BLOOM_FILTER_CAPACITY as uint")
		}
		config.Store.BloomFilterCapacity = uint(asUint)
	}

	if v := os.Getenv("STORE_BLOOM_FALSE_POSITIVE_RATE"); v != "" {
		asFloat, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrapf(err, "parse STORE_BLOOM_FALSE_POSITIVE_RATE as float")
		}
		config.Store.BloomFalsePositiveRate = asFloat
	}

	if v := os.Getenv("STORE_OPEN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "parse STORE_OPEN_TIMEOUT as duration")
		}
		config.Store.OpenTimeout = d
	}

	if enabled(os.Getenv("STORE_READ_ONLY")) {
		config.Store.ReadOnly = true
	}

	if enabled(os.Getenv("STORE_NO_SYNC")) {
		config.Store.NoSync = true
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		config.Logging.Format = v
	}

	if enabled(os.Getenv("PROMETHEUS_MONITORING_ENABLED")) {
		config.Monitoring.Enabled = true
	}

	if v := os.Getenv("PROMETHEUS_MONITORING_TEXTFILE"); v != "" {
		config.Monitoring.Textfile = v
	}

	return nil
}

func enabled(value string) bool {
	if value == "" {
		return false
	}

	if value == "on" ||
		value == "enabled" ||
		value == "1" ||
		value == "true" {
		return true
	}

	return false
}
