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

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

// KeySize is the length of a serialized triple.
const KeySize = 12

var ErrKeySize = errors.New("invalid triple key size")

// Triple is a (subject, predicate, object) identifier triple. When used as a
// pattern, wildcard components match any term.
type Triple struct {
	Subject   Identifier
	Predicate Identifier
	Object    Identifier
}

func New(s, p, o Identifier) Triple {
	return Triple{Subject: s, Predicate: p, Object: o}
}

func (t Triple) Component(role Role) Identifier {
	switch role {
	case Subject:
		return t.Subject
	case Predicate:
		return t.Predicate
	default:
		return t.Object
	}
}

// Matches reports whether t satisfies the given pattern.
func (t Triple) Matches(pattern Triple) bool {
	return (pattern.Subject.IsWildcard() || pattern.Subject == t.Subject) &&
		(pattern.Predicate.IsWildcard() || pattern.Predicate == t.Predicate) &&
		(pattern.Object.IsWildcard() || pattern.Object == t.Object)
}

func (t Triple) IsAllWildcard() bool {
	return t.Subject.IsWildcard() && t.Predicate.IsWildcard() && t.Object.IsWildcard()
}

// Bounds returns the smallest and largest keys a triple matching pattern can
// have under any component ordering.
func Bounds(pattern Triple) (lower, upper Triple) {
	lower, upper = pattern, pattern
	if pattern.Subject.IsWildcard() {
		upper.Subject = Max
	}
	if pattern.Predicate.IsWildcard() {
		upper.Predicate = Max
	}
	if pattern.Object.IsWildcard() {
		upper.Object = Max
	}
	return lower, upper
}

func (t Triple) String() string {
	return fmt.Sprintf("%s %s %s.", t.Subject, t.Predicate, t.Object)
}

func (t Triple) MarshalBinary() ([]byte, error) {
	return t.AppendBinary(make([]byte, 0, KeySize)), nil
}

// AppendBinary appends the fixed width key encoding of t to buf.
func (t Triple) AppendBinary(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, t.Subject.Encode())
	buf = binary.LittleEndian.AppendUint32(buf, t.Predicate.Encode())
	return binary.LittleEndian.AppendUint32(buf, t.Object.Encode())
}

func (t *Triple) UnmarshalBinary(data []byte) error {
	if len(data) != KeySize {
		return errors.Wrapf(ErrKeySize, "got %d bytes, want %d", len(data), KeySize)
	}

	t.Subject = Decode(binary.LittleEndian.Uint32(data[0:4]))
	t.Predicate = Decode(binary.LittleEndian.Uint32(data[4:8]))
	t.Object = Decode(binary.LittleEndian.Uint32(data[8:12]))
	return nil
}

// Key is a shorthand for MarshalBinary, which cannot fail.
func (t Triple) Key() []byte {
	return t.AppendBinary(make([]byte, 0, KeySize))
}

// FromKey decodes a serialized triple.
func FromKey(key []byte) (Triple, error) {
	var t Triple
	err := t.UnmarshalBinary(key)
	return t, err
}
