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
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// NsObserver records the time passed since the given start in ns.
type NsObserver func(startNs int64)

func noopNsObserver(int64) {}

// PatchAppended counts one appended patch.
func (pm *PrometheusMetrics) PatchAppended(store string) {
	if pm == nil {
		return
	}

	pm.PatchesAppended.With(prometheus.Labels{"store": store}).Inc()
}

// AppendPhase records the duration of one phase of an append.
func (pm *PrometheusMetrics) AppendPhase(store, phase string, took time.Duration) {
	if pm == nil {
		return
	}

	pm.AppendDurations.With(prometheus.Labels{
		"store": store,
		"phase": phase,
	}).Observe(float64(took) / float64(time.Millisecond))
}

func (pm *PrometheusMetrics) TriplesWritten(store, kind string, count int) {
	if pm == nil || count == 0 {
		return
	}

	pm.TripleWrites.With(prometheus.Labels{
		"store": store,
		"kind":  kind,
	}).Add(float64(count))
}

func (pm *PrometheusMetrics) IndexesFlushed(store string) {
	if pm == nil {
		return
	}

	pm.IndexFlushes.With(prometheus.Labels{"store": store}).Inc()
}

func (pm *PrometheusMetrics) OffsetSkipped(store, index string, count int) {
	if pm == nil || count == 0 {
		return
	}

	pm.OffsetSkips.With(prometheus.Labels{
		"store": store,
		"index": index,
	}).Add(float64(count))
}

// IndexOpObserver curries the operation duration histogram once, so hot
// paths do not pay for the label lookup.
func (pm *PrometheusMetrics) IndexOpObserver(index, op string) NsObserver {
	if pm == nil {
		return noopNsObserver
	}

	curried := pm.IndexDurations.With(prometheus.Labels{
		"index":     index,
		"operation": op,
	})

	return func(startNs int64) {
		took := float64(time.Now().UnixNano()-startNs) / float64(time.Millisecond)
		curried.Observe(took)
	}
}

// IndexKeysSetter returns a setter for the key count gauge of index.
func (pm *PrometheusMetrics) IndexKeysSetter(index string) func(n int) {
	if pm == nil {
		return func(int) {}
	}

	gauge := pm.IndexKeys.With(prometheus.Labels{"index": index})
	return func(n int) {
		gauge.Set(float64(n))
	}
}

// IndexBloomCounter returns a counter for one kind of bloom filter outcome
// of index, such as get_true_negative.
func (pm *PrometheusMetrics) IndexBloomCounter(index, result string) func() {
	if pm == nil {
		return func() {}
	}

	counter := pm.IndexBloomChecks.With(prometheus.Labels{
		"index":  index,
		"result": result,
	})
	return counter.Inc
}
