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
	"bytes"

	"github.com/pkg/errors"
)

var (
	NotFound    = errors.New("not found")
	ErrReadOnly = errors.New("index is opened read-only")
	ErrClosed   = errors.New("index is closed")
)

// Comparator defines the iteration order of keys. Keys comparing equal are
// the same key.
type Comparator interface {
	Compare(a, b []byte) int
}

type ComparatorFunc func(a, b []byte) int

func (f ComparatorFunc) Compare(a, b []byte) int {
	return f(a, b)
}

// BytesComparator orders keys lexicographically.
var BytesComparator Comparator = ComparatorFunc(bytes.Compare)
