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

import "github.com/google/btree"

const treeDegree = 32

// node is the tree item of one entry. Entries are never removed, so a *node
// stays valid for the lifetime of the tree and its value can be replaced in
// place.
type node struct {
	key   []byte
	value []byte
	dirty bool
	cmp   Comparator
}

func (n *node) Less(than btree.Item) bool {
	return n.cmp.Compare(n.key, than.(*node).key) < 0
}

func (n *node) kv() ([]byte, []byte) {
	if n == nil {
		return nil, nil
	}
	return n.key, n.value
}

// tree orders the entries of a DB by its Comparator.
type tree struct {
	cmp   Comparator
	items *btree.BTree
	size  int
}

func newTree(cmp Comparator) *tree {
	return &tree{cmp: cmp, items: btree.New(treeDegree)}
}

func (t *tree) probe(key []byte) *node {
	return &node{key: key, cmp: t.cmp}
}

// upsert stores value under key and returns the entry. An existing entry
// keeps its key.
func (t *tree) upsert(key, value []byte) *node {
	if n := t.get(key); n != nil {
		n.value = value
		return n
	}

	n := &node{key: key, value: value, cmp: t.cmp}
	t.items.ReplaceOrInsert(n)
	t.size++
	return n
}

func (t *tree) get(key []byte) *node {
	item := t.items.Get(t.probe(key))
	if item == nil {
		return nil
	}
	return item.(*node)
}

// ceiling is the smallest entry not less than key.
func (t *tree) ceiling(key []byte) *node {
	var found *node
	t.items.AscendGreaterOrEqual(t.probe(key), func(item btree.Item) bool {
		found = item.(*node)
		return false
	})
	return found
}

// floor is the largest entry not greater than key.
func (t *tree) floor(key []byte) *node {
	var found *node
	t.items.DescendLessOrEqual(t.probe(key), func(item btree.Item) bool {
		found = item.(*node)
		return false
	})
	return found
}

func (t *tree) min() *node {
	if item := t.items.Min(); item != nil {
		return item.(*node)
	}
	return nil
}

func (t *tree) max() *node {
	if item := t.items.Max(); item != nil {
		return item.(*node)
	}
	return nil
}

func (t *tree) successor(n *node) *node {
	var found *node
	t.items.AscendGreaterOrEqual(n, func(item btree.Item) bool {
		if !n.Less(item) {
			return true
		}
		found = item.(*node)
		return false
	})
	return found
}

func (t *tree) predecessor(n *node) *node {
	var found *node
	t.items.DescendLessOrEqual(n, func(item btree.Item) bool {
		if !item.Less(n) {
			return true
		}
		found = item.(*node)
		return false
	})
	return found
}
