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
	"sort"
	"strings"

	"github.com/weaviate/patchstore/entities/triple"
)

// Comparator defines the order of triples within a patch.
type Comparator interface {
	Compare(a, b triple.Triple) int
}

// Patch is a set of elements kept in comparator order, holding at most one
// element per triple. A Patch is not safe for concurrent mutation.
type Patch struct {
	cmp      Comparator
	elements []Element
	index    map[triple.Triple]int
	sorted   bool
}

func New(cmp Comparator) *Patch {
	return &Patch{
		cmp:    cmp,
		index:  map[triple.Triple]int{},
		sorted: true,
	}
}

// Add inserts e, replacing an existing element for the same triple.
func (p *Patch) Add(e Element) {
	if i, ok := p.index[e.Triple]; ok {
		p.elements[i] = e
		return
	}

	if p.sorted && len(p.elements) > 0 &&
		p.cmp.Compare(p.elements[len(p.elements)-1].Triple, e.Triple) >= 0 {
		p.sorted = false
	}

	p.index[e.Triple] = len(p.elements)
	p.elements = append(p.elements, e)
}

func (p *Patch) AddAll(elements ...Element) {
	for _, e := range elements {
		p.Add(e)
	}
}

func (p *Patch) Len() int {
	return len(p.elements)
}

func (p *Patch) Get(i int) Element {
	p.sort()
	return p.elements[i]
}

// Elements returns the elements in comparator order. The slice is owned by
// the patch and must not be modified.
func (p *Patch) Elements() []Element {
	p.sort()
	return p.elements
}

func (p *Patch) Find(t triple.Triple) (Element, bool) {
	i, ok := p.index[t]
	if !ok {
		return Element{}, false
	}
	return p.elements[i], true
}

// Index returns the ordinal of t in comparator order, or -1.
func (p *Patch) Index(t triple.Triple) int {
	p.sort()
	if i, ok := p.index[t]; ok {
		return i
	}
	return -1
}

func (p *Patch) Additions() int {
	count := 0
	for _, e := range p.elements {
		if e.Addition {
			count++
		}
	}
	return count
}

func (p *Patch) Deletions() int {
	return len(p.elements) - p.Additions()
}

func (p *Patch) Clone() *Patch {
	out := &Patch{
		cmp:      p.cmp,
		elements: make([]Element, len(p.elements)),
		index:    make(map[triple.Triple]int, len(p.index)),
		sorted:   p.sorted,
	}
	copy(out.elements, p.elements)
	for k, v := range p.index {
		out.index[k] = v
	}
	return out
}

// Apply merges incoming into a copy of p, where p is the full state right
// before incoming. The incoming flags always win. When an incoming element
// flips the state of an existing triple, its local change marker is flipped
// relative to the existing element: undoing a real change yields a local
// change and vice versa.
func (p *Patch) Apply(incoming *Patch) *Patch {
	merged := p.Clone()
	for _, e := range incoming.Elements() {
		if prev, ok := p.Find(e.Triple); ok {
			if prev.Addition != e.Addition {
				e.LocalChange = !prev.LocalChange
			} else {
				e.LocalChange = prev.LocalChange
			}
		}
		merged.Add(e)
	}
	return merged
}

// DeletionPositions computes the ranks of every deletion among the deletions
// of the patch, visiting them in comparator order. Additions get zero
// positions.
func (p *Patch) DeletionPositions() []Positions {
	p.sort()
	counter := NewPositionCounter()
	out := make([]Positions, len(p.elements))
	for i, e := range p.elements {
		if e.Addition {
			continue
		}
		out[i] = counter.Next(e.Triple)
	}
	return out
}

func (p *Patch) String() string {
	p.sort()
	var sb strings.Builder
	for _, e := range p.elements {
		sb.WriteString(e.String())
		sb.WriteString("\n")
	}
	return sb.String()
}

func (p *Patch) sort() {
	if p.sorted {
		return
	}

	sort.Slice(p.elements, func(i, j int) bool {
		return p.cmp.Compare(p.elements[i].Triple, p.elements[j].Triple) < 0
	})
	for i, e := range p.elements {
		p.index[e.Triple] = i
	}
	p.sorted = true
}
