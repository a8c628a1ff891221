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
	"fmt"

	"github.com/weaviate/patchstore/entities/triple"
)

// Positions holds the 0-based rank of a triple among the triples of the same
// version sharing, in order, (S,P), (S,O), (S), (P,O), (P), (O) and nothing.
type Positions struct {
	SP  uint32
	SO  uint32
	S   uint32
	PO  uint32
	P   uint32
	O   uint32
	All uint32
}

// ByPattern selects the rank matching the bound components of pattern. A
// fully bound pattern matches a single triple, so its rank is always 0.
func (p Positions) ByPattern(pattern triple.Triple) uint32 {
	s := !pattern.Subject.IsWildcard()
	pr := !pattern.Predicate.IsWildcard()
	o := !pattern.Object.IsWildcard()

	switch {
	case s && pr && o:
		return 0
	case s && pr:
		return p.SP
	case s && o:
		return p.SO
	case s:
		return p.S
	case pr && o:
		return p.PO
	case pr:
		return p.P
	case o:
		return p.O
	default:
		return p.All
	}
}

func (p Positions) String() string {
	return fmt.Sprintf("{ %d %d %d %d %d %d %d }", p.SP, p.SO, p.S, p.PO, p.P, p.O, p.All)
}

type pair struct {
	a, b triple.Identifier
}

// PositionCounter hands out ranks to triples visited in a fixed order. Each
// prefix has its own running count, so the rank of a triple equals the number
// of previously visited triples sharing that prefix.
type PositionCounter struct {
	sp  map[pair]uint32
	so  map[pair]uint32
	po  map[pair]uint32
	s   map[triple.Identifier]uint32
	p   map[triple.Identifier]uint32
	o   map[triple.Identifier]uint32
	all uint32
}

func NewPositionCounter() *PositionCounter {
	return &PositionCounter{
		sp: map[pair]uint32{},
		so: map[pair]uint32{},
		po: map[pair]uint32{},
		s:  map[triple.Identifier]uint32{},
		p:  map[triple.Identifier]uint32{},
		o:  map[triple.Identifier]uint32{},
	}
}

// Peek returns the ranks t would get without counting it.
func (c *PositionCounter) Peek(t triple.Triple) Positions {
	return Positions{
		SP:  c.sp[pair{t.Subject, t.Predicate}],
		SO:  c.so[pair{t.Subject, t.Object}],
		S:   c.s[t.Subject],
		PO:  c.po[pair{t.Predicate, t.Object}],
		P:   c.p[t.Predicate],
		O:   c.o[t.Object],
		All: c.all,
	}
}

// Next returns the ranks of t and counts it.
func (c *PositionCounter) Next(t triple.Triple) Positions {
	pos := c.Peek(t)

	c.sp[pair{t.Subject, t.Predicate}]++
	c.so[pair{t.Subject, t.Object}]++
	c.s[t.Subject]++
	c.po[pair{t.Predicate, t.Object}]++
	c.p[t.Predicate]++
	c.o[t.Object]++
	c.all++

	return pos
}
