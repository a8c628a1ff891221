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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "patchstore"

// PrometheusMetrics holds the collectors of a patch store process. A nil
// *PrometheusMetrics is valid and records nothing.
type PrometheusMetrics struct {
	Registerer prometheus.Registerer

	PatchesAppended  *prometheus.CounterVec
	AppendDurations  *prometheus.HistogramVec
	TripleWrites     *prometheus.CounterVec
	IndexFlushes     *prometheus.CounterVec
	OffsetSkips      *prometheus.CounterVec
	IndexDurations   *prometheus.HistogramVec
	IndexKeys        *prometheus.GaugeVec
	IndexBloomChecks *prometheus.CounterVec
}

// NewPrometheusMetrics registers all collectors on reg. A nil reg yields
// collectors that are never exported.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = noop
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		Registerer: reg,

		PatchesAppended: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "patches_appended_total",
			Help:      "Number of patches appended to the patch tree",
		}, []string{"store"}),
		AppendDurations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "append_duration_ms",
			Help:      "Duration of the phases of a patch append in ms",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 16),
		}, []string{"store", "phase"}),
		TripleWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triple_writes_total",
			Help:      "Number of triple records written, by addition or deletion",
		}, []string{"store", "kind"}),
		IndexFlushes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_flushes_total",
			Help:      "Number of times the dirty state of all indexes was synced to disk",
		}, []string{"store"}),
		OffsetSkips: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "offset_skipped_triples_total",
			Help:      "Number of triples scanned to satisfy addition iterator offsets",
		}, []string{"store", "index"}),
		IndexDurations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "index_operation_duration_ms",
			Help:      "Duration of index operations in ms",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 12),
		}, []string{"index", "operation"}),
		IndexKeys: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_keys",
			Help:      "Number of keys held by an index",
		}, []string{"index"}),
		IndexBloomChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_bloom_checks_total",
			Help:      "Outcomes of bloom filter checks on point lookups",
		}, []string{"index", "result"}),
	}
}
