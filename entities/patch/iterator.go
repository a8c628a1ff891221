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

package patch

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	enterrors "github.com/weaviate/patchstore/entities/errors"
)

// Iterator streams patch elements.
type Iterator interface {
	// Next returns the next element. It returns false once the iterator is
	// exhausted or failed, in which case Err reports the failure.
	Next() (Element, bool)
	Err() error
	Close() error
}

type sliceIterator struct {
	elements []Element
	pos      int
}

func NewSliceIterator(elements []Element) Iterator {
	return &sliceIterator{elements: elements}
}

func (it *sliceIterator) Next() (Element, bool) {
	if it.pos >= len(it.elements) {
		return Element{}, false
	}
	e := it.elements[it.pos]
	it.pos++
	return e, true
}

func (it *sliceIterator) Err() error   { return nil }
func (it *sliceIterator) Close() error { return nil }

// CombinedIterator drains its sources one after the other.
type CombinedIterator struct {
	sources []Iterator
	current int
	passed  int64
	err     error
}

func NewCombinedIterator(sources ...Iterator) *CombinedIterator {
	return &CombinedIterator{sources: sources}
}

func (c *CombinedIterator) Append(it Iterator) {
	c.sources = append(c.sources, it)
}

func (c *CombinedIterator) Next() (Element, bool) {
	for c.err == nil && c.current < len(c.sources) {
		src := c.sources[c.current]
		if e, ok := src.Next(); ok {
			c.passed++
			return e, true
		}
		if err := src.Err(); err != nil {
			c.err = err
			return Element{}, false
		}
		c.current++
	}
	return Element{}, false
}

// Passed is the number of elements returned so far.
func (c *CombinedIterator) Passed() int64 {
	return c.passed
}

func (c *CombinedIterator) Err() error {
	return c.err
}

func (c *CombinedIterator) Close() error {
	var firstErr error
	for _, src := range c.sources {
		if err := src.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// BufferedIterator reads its source ahead on a separate goroutine.
type BufferedIterator struct {
	source   Iterator
	buffer   chan Element
	done     chan struct{}
	finished chan struct{}
	once     sync.Once
	err      error
}

func NewBufferedIterator(source Iterator, size int, logger logrus.FieldLogger) *BufferedIterator {
	if size < 1 {
		size = 1
	}

	b := &BufferedIterator{
		source:   source,
		buffer:   make(chan Element, size),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}

	enterrors.GoWrapper(func() {
		defer close(b.finished)
		defer close(b.buffer)
		defer func() {
			if r := recover(); r != nil {
				b.err = errors.Errorf("reading patch elements panicked: %v", r)
			}
		}()
		for {
			e, ok := source.Next()
			if !ok {
				b.err = source.Err()
				return
			}
			select {
			case b.buffer <- e:
			case <-b.done:
				return
			}
		}
	}, logger)

	return b
}

func (b *BufferedIterator) Next() (Element, bool) {
	e, ok := <-b.buffer
	return e, ok
}

// Err must only be called after Next returned false.
func (b *BufferedIterator) Err() error {
	return b.err
}

// Close stops the read-ahead and closes the source.
func (b *BufferedIterator) Close() error {
	var err error
	b.once.Do(func() {
		close(b.done)
		<-b.finished
		err = b.source.Close()
	})
	return err
}

// Collect drains it into a new patch.
func Collect(it Iterator, cmp Comparator) (*Patch, error) {
	p := New(cmp)
	for {
		e, ok := it.Next()
		if !ok {
			break
		}
		p.Add(e)
	}
	return p, it.Err()
}
