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
	"github.com/pkg/errors"

	"github.com/weaviate/patchstore/adapters/repos/db/kv"
	"github.com/weaviate/patchstore/entities/patch"
	"github.com/weaviate/patchstore/entities/triple"
)

// State is the recorded state of a triple at some version.
type State struct {
	PatchID     int
	Addition    bool
	LocalChange bool
	// Positions is only set for deletions.
	Positions patch.Positions
}

// resolveState determines the state of a triple at id from its histories.
// An exact lookup requires an entry at id, otherwise the latest entry not
// after id counts. If both histories qualify, the more recent entry wins.
func resolveState(add *AdditionValue, del *DeletionValue, id int, exact bool) (State, bool) {
	var (
		a        AdditionElement
		d        DeletionElement
		aok, dok bool
	)
	if exact {
		a, aok = add.Get(id)
		d, dok = del.Get(id)
	} else {
		a, aok = add.Latest(id)
		d, dok = del.Latest(id)
	}

	switch {
	case aok && (!dok || a.PatchID >= d.PatchID):
		return State{PatchID: a.PatchID, Addition: true, LocalChange: a.LocalChange}, true
	case dok:
		return State{PatchID: d.PatchID, LocalChange: d.LocalChange, Positions: d.Positions}, true
	default:
		return State{}, false
	}
}

type elementKind int

const (
	anyKind elementKind = iota
	additionsOnly
	deletionsOnly
)

// filter selects the triples an iterator yields.
type filter struct {
	versioned    bool
	patchID      int
	exact        bool
	kind         elementKind
	pattern      triple.Triple
	excludeLocal bool
}

func (f filter) acceptsState(st State) bool {
	switch {
	case f.kind == additionsOnly && !st.Addition:
		return false
	case f.kind == deletionsOnly && st.Addition:
		return false
	case f.excludeLocal && st.LocalChange:
		return false
	default:
		return true
	}
}

// TripleIterator walks one index, applying a filter stack: range bounds
// derived from the pattern, the pattern itself, and optionally the state at a
// version, the element kind and local changes.
type TripleIterator struct {
	store     *TripleStore
	db        *kv.DB
	cmp       *TripleComparator
	cursor    *kv.Cursor
	deletions bool
	reverse   bool
	bounded   bool
	lower     triple.Triple
	upper     triple.Triple
	filter    filter

	started bool
	done    bool

	current  triple.Triple
	addition *AdditionValue
	deletion *DeletionValue
	state    State
	err      error
}

type iteratorConfig struct {
	index   indexID
	start   triple.Triple
	reverse bool
	bounded bool
	filter  filter
}

func (s *TripleStore) newTripleIterator(cfg iteratorConfig) *TripleIterator {
	db := s.index(cfg.index)
	it := &TripleIterator{
		store:     s,
		db:        db,
		cmp:       s.comparators[cfg.index],
		cursor:    db.Cursor(),
		deletions: cfg.index == indexDeletions,
		reverse:   cfg.reverse,
		bounded:   cfg.bounded,
		filter:    cfg.filter,
	}
	if cfg.bounded {
		it.lower, it.upper = triple.Bounds(cfg.filter.pattern)
	}

	start := cfg.start
	if it.reverse {
		if it.bounded && it.cmp.Compare(start, it.upper) > 0 {
			start = it.upper
		}
		it.cursor.SeekBack(start.Key())
	} else {
		if it.bounded && it.cmp.Compare(start, it.lower) < 0 {
			start = it.lower
		}
		it.cursor.Seek(start.Key())
	}
	return it
}

// Next advances to the next accepted triple.
func (it *TripleIterator) Next() bool {
	if it.done || it.err != nil {
		return false
	}

	for {
		var key, value []byte
		switch {
		case !it.started:
			it.started = true
			key, value = it.cursor.Key(), it.cursor.Value()
		case it.reverse:
			key, value = it.cursor.Prev()
		default:
			key, value = it.cursor.Next()
		}
		if key == nil {
			it.done = true
			return false
		}

		t, err := triple.FromKey(key)
		if err != nil {
			it.err = errors.Wrapf(err, "iterate %s", it.db.Name())
			return false
		}

		if it.bounded && it.outOfRange(t) {
			it.done = true
			return false
		}
		if !t.Matches(it.filter.pattern) {
			continue
		}

		ok, err := it.load(t, value)
		if err != nil {
			it.err = err
			return false
		}
		if ok {
			it.current = t
			return true
		}
	}
}

func (it *TripleIterator) outOfRange(t triple.Triple) bool {
	if it.reverse {
		return it.cmp.Compare(t, it.lower) < 0
	}
	return it.cmp.Compare(t, it.upper) > 0
}

// load decodes the value under the cursor, fetches the opposite history when
// the state at a version is needed and applies the version filters.
func (it *TripleIterator) load(t triple.Triple, value []byte) (bool, error) {
	var err error
	if it.deletions {
		if it.deletion, err = unmarshalDeletionValue(value); err != nil {
			return false, errors.Wrapf(err, "decode deletion value of %s", t)
		}
		it.addition = nil
	} else {
		if it.addition, err = unmarshalAdditionValue(value); err != nil {
			return false, errors.Wrapf(err, "decode addition value of %s", t)
		}
		it.deletion = nil
	}

	f := it.filter
	if !f.versioned {
		it.state = State{}
		return true, nil
	}

	// skip the second lookup when the own history rules the triple out
	if it.deletions && f.kind == deletionsOnly {
		if _, ok := it.deletion.Latest(f.patchID); !ok {
			return false, nil
		}
	}
	if !it.deletions && f.kind == additionsOnly {
		if _, ok := it.addition.Latest(f.patchID); !ok {
			return false, nil
		}
	}

	if it.deletions {
		if it.addition, err = it.store.AdditionValue(t); err != nil {
			return false, err
		}
	} else {
		if it.deletion, err = it.store.DeletionValue(t); err != nil {
			return false, err
		}
	}

	st, ok := resolveState(it.addition, it.deletion, f.patchID, f.exact)
	if !ok || !f.acceptsState(st) {
		return false, nil
	}
	it.state = st
	return true, nil
}

func (it *TripleIterator) Triple() triple.Triple {
	return it.current
}

// State is the state of the current triple at the filtered version. It is
// the zero State for unversioned iterators.
func (it *TripleIterator) State() State {
	return it.state
}

// AdditionValue is the addition history of the current triple. It is nil
// for unversioned iterators over the deletion index.
func (it *TripleIterator) AdditionValue() *AdditionValue {
	return it.addition
}

// DeletionValue is the deletion history of the current triple. It is nil for
// unversioned iterators over an addition index.
func (it *TripleIterator) DeletionValue() *DeletionValue {
	return it.deletion
}

func (it *TripleIterator) Err() error {
	return it.err
}

func (it *TripleIterator) Close() {
	it.done = true
	it.cursor.Close()
}

// PositionedTripleIterator yields deleted triples together with their rank
// among the deletions matching the pattern.
type PositionedTripleIterator struct {
	*TripleIterator
	pattern triple.Triple
}

// Position is the rank of the current triple for the iterator's pattern.
func (it *PositionedTripleIterator) Position() uint32 {
	return it.state.Positions.ByPattern(it.pattern)
}

// patchIterator scans the SPO addition index and the deletion index side by
// side, yielding every triple with its state at a version.
type patchIterator struct {
	store        *TripleStore
	keys         kv.Comparator
	additions    *kv.Cursor
	deletions    *kv.Cursor
	patchID      int
	exact        bool
	excludeLocal bool

	started          bool
	addKey, addValue []byte
	delKey, delValue []byte
	err              error
}

func (s *TripleStore) newPatchIterator(patchID int, exact, excludeLocal bool) *patchIterator {
	return &patchIterator{
		store:        s,
		keys:         s.comparators[indexSPO].Keys(),
		additions:    s.index(indexSPO).Cursor(),
		deletions:    s.index(indexDeletions).Cursor(),
		patchID:      patchID,
		exact:        exact,
		excludeLocal: excludeLocal,
	}
}

func (it *patchIterator) Next() (patch.Element, bool) {
	if it.err != nil {
		return patch.Element{}, false
	}
	if !it.started {
		it.started = true
		it.addKey, it.addValue = it.additions.First()
		it.delKey, it.delValue = it.deletions.First()
	}

	for it.addKey != nil || it.delKey != nil {
		var key, addValue, delValue []byte
		switch c := it.compareHeads(); {
		case c < 0:
			key, addValue = it.addKey, it.addValue
			it.addKey, it.addValue = it.additions.Next()
		case c > 0:
			key, delValue = it.delKey, it.delValue
			it.delKey, it.delValue = it.deletions.Next()
		default:
			key, addValue, delValue = it.addKey, it.addValue, it.delValue
			it.addKey, it.addValue = it.additions.Next()
			it.delKey, it.delValue = it.deletions.Next()
		}

		e, ok, err := it.element(key, addValue, delValue)
		if err != nil {
			it.err = err
			return patch.Element{}, false
		}
		if ok {
			return e, true
		}
	}
	return patch.Element{}, false
}

// compareHeads orders the current keys of both cursors, an exhausted cursor
// sorting last.
func (it *patchIterator) compareHeads() int {
	switch {
	case it.delKey == nil:
		return -1
	case it.addKey == nil:
		return 1
	default:
		return it.keys.Compare(it.addKey, it.delKey)
	}
}

func (it *patchIterator) element(key, addValue, delValue []byte) (patch.Element, bool, error) {
	t, err := triple.FromKey(key)
	if err != nil {
		return patch.Element{}, false, errors.Wrap(err, "iterate patch")
	}
	add, err := unmarshalAdditionValue(addValue)
	if err != nil {
		return patch.Element{}, false, errors.Wrapf(err, "decode addition value of %s", t)
	}
	del, err := unmarshalDeletionValue(delValue)
	if err != nil {
		return patch.Element{}, false, errors.Wrapf(err, "decode deletion value of %s", t)
	}

	st, ok := resolveState(add, del, it.patchID, it.exact)
	if !ok || (it.excludeLocal && st.LocalChange) {
		return patch.Element{}, false, nil
	}
	return patch.Element{Triple: t, Addition: st.Addition, LocalChange: st.LocalChange}, true, nil
}

func (it *patchIterator) Err() error {
	return it.err
}

func (it *patchIterator) Close() error {
	it.additions.Close()
	it.deletions.Close()
	return nil
}
