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

package triple

import "fmt"

// Role is the position a term takes within a triple.
type Role uint8

const (
	Subject Role = iota
	Predicate
	Object
)

func (r Role) String() string {
	switch r {
	case Subject:
		return "subject"
	case Predicate:
		return "predicate"
	case Object:
		return "object"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

const (
	resolvedBit uint32 = 1 << 31
	valueMask   uint32 = resolvedBit - 1
)

// Identifier references a dictionary term. A resolved identifier belongs to
// the frozen base dictionary, a local identifier to the mutable patch
// dictionary. The zero value is the wildcard.
type Identifier struct {
	value    uint32
	resolved bool
}

var (
	// Wildcard matches any term in a pattern and sorts before every term.
	Wildcard = Identifier{}
	// Max sorts after every term. It is only used to probe range boundaries.
	Max = Identifier{value: valueMask, resolved: true}
)

// Resolved returns a base dictionary identifier. Values wider than 31 bits
// are truncated.
func Resolved(v uint32) Identifier {
	return Identifier{value: v & valueMask, resolved: true}
}

// Local returns a patch dictionary identifier. Values wider than 31 bits are
// truncated.
func Local(v uint32) Identifier {
	return Identifier{value: v & valueMask}
}

// Decode is the inverse of Identifier.Encode.
func Decode(raw uint32) Identifier {
	return Identifier{value: raw & valueMask, resolved: raw&resolvedBit != 0}
}

// Encode packs the identifier into its on-disk form, the most significant bit
// marking a resolved identifier.
func (id Identifier) Encode() uint32 {
	if id.resolved {
		return id.value | resolvedBit
	}
	return id.value
}

func (id Identifier) Value() uint32 {
	return id.value
}

func (id Identifier) IsResolved() bool {
	return id.resolved
}

func (id Identifier) IsWildcard() bool {
	return id == Wildcard
}

func (id Identifier) IsMax() bool {
	return id == Max
}

func (id Identifier) String() string {
	switch {
	case id.IsWildcard():
		return "?"
	case id.IsMax():
		return "max"
	case id.resolved:
		return fmt.Sprintf("r%d", id.value)
	default:
		return fmt.Sprintf("l%d", id.value)
	}
}
