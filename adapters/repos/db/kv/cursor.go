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

import "time"

// Cursor walks the index in comparator order. All positioning methods
// return the key and value they land on, or nil, nil once the cursor moved
// past either end. A cursor stays usable while the index is written to,
// newly inserted keys show up at their position in the order.
type Cursor struct {
	db      *DB
	current *node
}

func (db *DB) Cursor() *Cursor {
	return &Cursor{db: db}
}

func (c *Cursor) First() ([]byte, []byte) {
	c.db.lock.RLock()
	defer c.db.lock.RUnlock()

	c.current = c.db.tree.min()
	return c.current.kv()
}

func (c *Cursor) Last() ([]byte, []byte) {
	c.db.lock.RLock()
	defer c.db.lock.RUnlock()

	c.current = c.db.tree.max()
	return c.current.kv()
}

// Seek moves to the smallest key not less than key.
func (c *Cursor) Seek(key []byte) ([]byte, []byte) {
	defer c.db.metrics.seek(time.Now().UnixNano())

	c.db.lock.RLock()
	defer c.db.lock.RUnlock()

	c.current = c.db.tree.ceiling(key)
	return c.current.kv()
}

// SeekBack moves to the largest key not greater than key.
func (c *Cursor) SeekBack(key []byte) ([]byte, []byte) {
	defer c.db.metrics.seek(time.Now().UnixNano())

	c.db.lock.RLock()
	defer c.db.lock.RUnlock()

	c.current = c.db.tree.floor(key)
	return c.current.kv()
}

func (c *Cursor) Next() ([]byte, []byte) {
	c.db.lock.RLock()
	defer c.db.lock.RUnlock()

	if c.current != nil {
		c.current = c.db.tree.successor(c.current)
	}
	return c.current.kv()
}

func (c *Cursor) Prev() ([]byte, []byte) {
	c.db.lock.RLock()
	defer c.db.lock.RUnlock()

	if c.current != nil {
		c.current = c.db.tree.predecessor(c.current)
	}
	return c.current.kv()
}

func (c *Cursor) Valid() bool {
	return c.current != nil
}

func (c *Cursor) Key() []byte {
	c.db.lock.RLock()
	defer c.db.lock.RUnlock()

	k, _ := c.current.kv()
	return k
}

func (c *Cursor) Value() []byte {
	c.db.lock.RLock()
	defer c.db.lock.RUnlock()

	_, v := c.current.kv()
	return v
}

// SetValue replaces the value of the entry under the cursor in place.
func (c *Cursor) SetValue(value []byte) error {
	defer c.db.metrics.set(time.Now().UnixNano())

	c.db.lock.Lock()
	defer c.db.lock.Unlock()

	if err := c.db.writable(); err != nil {
		return err
	}
	if c.current == nil {
		return NotFound
	}

	c.current.value = copyBytes(value)
	c.db.markDirty(c.current)
	return nil
}

func (c *Cursor) Close() {
	c.current = nil
}
