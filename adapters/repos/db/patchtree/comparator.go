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

package patchtree

import (
	"bytes"
	"strings"

	"github.com/weaviate/patchstore/adapters/repos/db/kv"
	"github.com/weaviate/patchstore/entities/triple"
)

// Dictionary is the part of the term dictionary the comparators rely on.
type Dictionary interface {
	IDToString(id triple.Identifier, role triple.Role) (string, error)
	// CompareComponent orders two resolved identifiers without materializing
	// their strings.
	CompareComponent(a, b triple.Identifier, role triple.Role) int
}

// Order is the sequence in which triple components are compared.
type Order [3]triple.Role

var (
	OrderSPO = Order{triple.Subject, triple.Predicate, triple.Object}
	OrderSOP = Order{triple.Subject, triple.Object, triple.Predicate}
	OrderPSO = Order{triple.Predicate, triple.Subject, triple.Object}
	OrderPOS = Order{triple.Predicate, triple.Object, triple.Subject}
	OrderOSP = Order{triple.Object, triple.Subject, triple.Predicate}
)

func (o Order) String() string {
	var sb strings.Builder
	for _, role := range o {
		sb.WriteByte(role.String()[0])
	}
	return sb.String()
}

// TripleComparator orders triples component by component in its Order.
type TripleComparator struct {
	order Order
	dict  Dictionary
}

func NewTripleComparator(order Order, dict Dictionary) *TripleComparator {
	return &TripleComparator{order: order, dict: dict}
}

func (c *TripleComparator) Order() Order {
	return c.order
}

func (c *TripleComparator) Compare(a, b triple.Triple) int {
	for _, role := range c.order {
		if res := c.compareComponent(a.Component(role), b.Component(role), role); res != 0 {
			return res
		}
	}
	return 0
}

// compareComponent is a total order over resolved and local identifiers.
// The wildcard sorts first and Max last. Two resolved identifiers use the
// dictionary order, every other pair is compared by string. Identifiers the
// dictionary cannot resolve fall back to their encoded value.
func (c *TripleComparator) compareComponent(a, b triple.Identifier, role triple.Role) int {
	if a == b {
		return 0
	}

	switch {
	case a.IsMax():
		return 1
	case b.IsMax():
		return -1
	case a.IsWildcard():
		return -1
	case b.IsWildcard():
		return 1
	}

	if a.IsResolved() && b.IsResolved() {
		return c.dict.CompareComponent(a, b, role)
	}

	as, errA := c.dict.IDToString(a, role)
	bs, errB := c.dict.IDToString(b, role)
	if errA != nil || errB != nil {
		return compareEncoded(a, b)
	}
	return strings.Compare(as, bs)
}

func compareEncoded(a, b triple.Identifier) int {
	switch ea, eb := a.Encode(), b.Encode(); {
	case ea < eb:
		return -1
	case ea > eb:
		return 1
	default:
		return 0
	}
}

// Keys returns the comparator over serialized triple keys used by the
// index of this order.
func (c *TripleComparator) Keys() kv.Comparator {
	return keyComparator{c}
}

type keyComparator struct {
	triples *TripleComparator
}

func (k keyComparator) Compare(a, b []byte) int {
	ta, errA := triple.FromKey(a)
	tb, errB := triple.FromKey(b)
	if errA != nil || errB != nil {
		return bytes.Compare(a, b)
	}
	return k.triples.Compare(ta, tb)
}
