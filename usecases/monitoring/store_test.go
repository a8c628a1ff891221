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

package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheusMetrics(reg)

	t.Run("patches appended", func(t *testing.T) {
		m.PatchAppended("base")
		m.PatchAppended("base")
		assert.Equal(t, float64(2), testutil.ToFloat64(m.PatchesAppended.WithLabelValues("base")))
	})

	t.Run("triple writes by kind", func(t *testing.T) {
		m.TriplesWritten("base", "addition", 3)
		m.TriplesWritten("base", "deletion", 0)
		assert.Equal(t, float64(3), testutil.ToFloat64(m.TripleWrites.WithLabelValues("base", "addition")))
		assert.Equal(t, 1, testutil.CollectAndCount(m.TripleWrites))
	})

	t.Run("offset skips", func(t *testing.T) {
		m.OffsetSkipped("base", "spo", 10)
		assert.Equal(t, float64(10), testutil.ToFloat64(m.OffsetSkips.WithLabelValues("base", "spo")))
	})

	t.Run("index observers", func(t *testing.T) {
		observe := m.IndexOpObserver("base_spo", "get")
		observe(time.Now().UnixNano())
		assert.Equal(t, 1, testutil.CollectAndCount(m.IndexDurations))

		setKeys := m.IndexKeysSetter("base_spo")
		setKeys(42)
		assert.Equal(t, float64(42), testutil.ToFloat64(m.IndexKeys.WithLabelValues("base_spo")))

		trueNegative := m.IndexBloomCounter("base_spo", "get_true_negative")
		trueNegative()
		trueNegative()
		assert.Equal(t, float64(2), testutil.ToFloat64(m.IndexBloomChecks.WithLabelValues("base_spo", "get_true_negative")))
	})

	t.Run("collectors are registered", func(t *testing.T) {
		families, err := reg.Gather()
		require.NoError(t, err)
		assert.NotEmpty(t, families)
	})
}

func TestNilMetrics(t *testing.T) {
	var m *PrometheusMetrics

	assert.NotPanics(t, func() {
		m.PatchAppended("base")
		m.AppendPhase("base", "merge", time.Millisecond)
		m.TriplesWritten("base", "addition", 1)
		m.IndexesFlushed("base")
		m.OffsetSkipped("base", "spo", 1)
		m.IndexOpObserver("base_spo", "get")(time.Now().UnixNano())
		m.IndexKeysSetter("base_spo")(1)
		m.IndexBloomCounter("base_spo", "get_true_positive")()
	})
}

func TestNoopRegistry(t *testing.T) {
	first := NewPrometheusMetrics(nil)
	second := NewPrometheusMetrics(nil)

	first.PatchAppended("base")
	second.PatchAppended("base")
	assert.Equal(t, float64(1), testutil.ToFloat64(second.PatchesAppended.WithLabelValues("base")))
}
