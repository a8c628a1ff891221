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

import "github.com/weaviate/patchstore/usecases/monitoring"

type dbMetrics struct {
	get  monitoring.NsObserver
	set  monitoring.NsObserver
	seek monitoring.NsObserver
	sync monitoring.NsObserver
	load monitoring.NsObserver
	keys func(n int)

	bloomTrueNegative  func()
	bloomFalsePositive func()
	bloomTruePositive  func()
}

// newDBMetrics curries the prometheus-functions just once to make sure they
// don't have to be curried on the hotpath.
func newDBMetrics(metrics *monitoring.PrometheusMetrics, name string) *dbMetrics {
	return &dbMetrics{
		get:  metrics.IndexOpObserver(name, "get"),
		set:  metrics.IndexOpObserver(name, "set"),
		seek: metrics.IndexOpObserver(name, "seek"),
		sync: metrics.IndexOpObserver(name, "sync"),
		load: metrics.IndexOpObserver(name, "load"),
		keys: metrics.IndexKeysSetter(name),

		bloomTrueNegative:  metrics.IndexBloomCounter(name, "get_true_negative"),
		bloomFalsePositive: metrics.IndexBloomCounter(name, "get_false_positive"),
		bloomTruePositive:  metrics.IndexBloomCounter(name, "get_true_positive"),
	}
}
