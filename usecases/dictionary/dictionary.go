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

// Package dictionary maps RDF terms to triple identifiers. A frozen, sorted
// base dictionary hands out resolved identifiers whose numeric order equals
// the string order of their terms. Terms first seen in patches are kept in a
// growing patch dictionary and get local identifiers.
package dictionary

import (
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/weaviate/patchstore/entities/triple"
)

var (
	ErrNotFound            = errors.New("term not found in dictionary")
	ErrEmptyTerm           = errors.New("empty term")
	ErrFullPatchDictionary = errors.New("patch dictionary is full")
)

const maxID = 1<<31 - 2

// Base is an immutable dictionary of sorted terms per role.
type Base struct {
	terms [3][]string
}

// NewBase sorts and deduplicates copies of the given terms.
func NewBase(subjects, predicates, objects []string) *Base {
	b := &Base{}
	for role, terms := range [3][]string{subjects, predicates, objects} {
		sorted := make([]string, 0, len(terms))
		for _, t := range terms {
			if t != "" {
				sorted = append(sorted, t)
			}
		}
		sort.Strings(sorted)
		b.terms[role] = compact(sorted)
	}
	return b
}

func compact(sorted []string) []string {
	if len(sorted) == 0 {
		return sorted
	}
	out := sorted[:1]
	for _, s := range sorted[1:] {
		if s != out[len(out)-1] {
			out = append(out, s)
		}
	}
	return out
}

func (b *Base) Len(role triple.Role) int {
	return len(b.terms[role])
}

// Lookup finds the resolved identifier of term. Identifiers start at 1.
func (b *Base) Lookup(term string, role triple.Role) (triple.Identifier, bool) {
	terms := b.terms[role]
	i := sort.SearchStrings(terms, term)
	if i < len(terms) && terms[i] == term {
		return triple.Resolved(uint32(i + 1)), true
	}
	return triple.Wildcard, false
}

func (b *Base) Term(id triple.Identifier, role triple.Role) (string, bool) {
	if !id.IsResolved() || id.IsMax() {
		return "", false
	}
	terms := b.terms[role]
	i := int(id.Value()) - 1
	if i < 0 || i >= len(terms) {
		return "", false
	}
	return terms[i], true
}

// Manager merges a base dictionary with a patch dictionary. It is safe for
// concurrent readers and a single writer.
type Manager struct {
	base *Base

	lock  sync.RWMutex
	patch [3][]string
	index [3]map[string]uint32
}

func NewManager(base *Base) *Manager {
	if base == nil {
		base = NewBase(nil, nil, nil)
	}
	m := &Manager{base: base}
	for role := range m.index {
		m.index[role] = map[string]uint32{}
	}
	return m
}

func (m *Manager) Base() *Base {
	return m.base
}

// PatchLen is the number of terms of role only known to the patch dictionary.
func (m *Manager) PatchLen(role triple.Role) int {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return len(m.patch[role])
}

func (m *Manager) IDToString(id triple.Identifier, role triple.Role) (string, error) {
	if id.IsResolved() {
		if term, ok := m.base.Term(id, role); ok {
			return term, nil
		}
		return "", errors.Wrapf(ErrNotFound, "%s id %s", role, id)
	}

	m.lock.RLock()
	defer m.lock.RUnlock()

	i := int(id.Value()) - 1
	if i < 0 || i >= len(m.patch[role]) {
		return "", errors.Wrapf(ErrNotFound, "%s id %s", role, id)
	}
	return m.patch[role][i], nil
}

func (m *Manager) StringToID(term string, role triple.Role) (triple.Identifier, error) {
	if id, ok := m.base.Lookup(term, role); ok {
		return id, nil
	}

	m.lock.RLock()
	defer m.lock.RUnlock()

	if v, ok := m.index[role][term]; ok {
		return triple.Local(v), nil
	}
	return triple.Wildcard, errors.Wrapf(ErrNotFound, "%s %q", role, term)
}

// Insert returns the identifier of term, adding it to the patch dictionary
// if neither dictionary knows it.
func (m *Manager) Insert(term string, role triple.Role) (triple.Identifier, error) {
	if term == "" {
		return triple.Wildcard, ErrEmptyTerm
	}
	if id, ok := m.base.Lookup(term, role); ok {
		return id, nil
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	if v, ok := m.index[role][term]; ok {
		return triple.Local(v), nil
	}
	if len(m.patch[role]) >= maxID {
		return triple.Wildcard, ErrFullPatchDictionary
	}

	m.patch[role] = append(m.patch[role], term)
	v := uint32(len(m.patch[role]))
	m.index[role][term] = v
	return triple.Local(v), nil
}

// CompareComponent orders two identifiers by their terms. Two resolved
// identifiers are ordered by value, which matches the term order of the base
// dictionary.
func (m *Manager) CompareComponent(a, b triple.Identifier, role triple.Role) int {
	if a.IsResolved() && b.IsResolved() {
		switch {
		case a.Value() < b.Value():
			return -1
		case a.Value() > b.Value():
			return 1
		default:
			return 0
		}
	}

	as, errA := m.IDToString(a, role)
	bs, errB := m.IDToString(b, role)
	if errA != nil || errB != nil {
		switch {
		case a.Encode() < b.Encode():
			return -1
		case a.Encode() > b.Encode():
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(as, bs)
}

// Encode inserts the terms of a triple and returns its identifiers.
func (m *Manager) Encode(s, p, o string) (triple.Triple, error) {
	var ids [3]triple.Identifier
	for role, term := range [3]string{s, p, o} {
		id, err := m.Insert(term, triple.Role(role))
		if err != nil {
			return triple.Triple{}, errors.Wrapf(err, "encode %s", triple.Role(role))
		}
		ids[role] = id
	}
	return triple.New(ids[0], ids[1], ids[2]), nil
}

// Decode returns the terms of t.
func (m *Manager) Decode(t triple.Triple) (s, p, o string, err error) {
	if s, err = m.IDToString(t.Subject, triple.Subject); err != nil {
		return "", "", "", err
	}
	if p, err = m.IDToString(t.Predicate, triple.Predicate); err != nil {
		return "", "", "", err
	}
	if o, err = m.IDToString(t.Object, triple.Object); err != nil {
		return "", "", "", err
	}
	return s, p, o, nil
}

// Pattern encodes a triple pattern from terms without inserting them. Empty
// or "?" terms are wildcards, unknown terms yield ErrNotFound.
func (m *Manager) Pattern(s, p, o string) (triple.Triple, error) {
	var ids [3]triple.Identifier
	for role, term := range [3]string{s, p, o} {
		if term == "" || term == "?" {
			continue
		}
		id, err := m.StringToID(term, triple.Role(role))
		if err != nil {
			return triple.Triple{}, err
		}
		ids[role] = id
	}
	return triple.New(ids[0], ids[1], ids[2]), nil
}
