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
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifierEncoding(t *testing.T) {
	t.Run("wildcard encodes to zero", func(t *testing.T) {
		assert.Equal(t, uint32(0), Wildcard.Encode())
		assert.True(t, Decode(0).IsWildcard())
	})

	t.Run("max encodes to all bits set", func(t *testing.T) {
		assert.Equal(t, uint32(0xFFFFFFFF), Max.Encode())
		assert.True(t, Decode(0xFFFFFFFF).IsMax())
	})

	t.Run("resolved sets the high bit", func(t *testing.T) {
		id := Resolved(42)
		assert.Equal(t, uint32(0x8000002A), id.Encode())
		assert.Equal(t, id, Decode(id.Encode()))
		assert.True(t, id.IsResolved())
		assert.Equal(t, uint32(42), id.Value())
	})

	t.Run("local keeps the high bit clear", func(t *testing.T) {
		id := Local(42)
		assert.Equal(t, uint32(42), id.Encode())
		assert.Equal(t, id, Decode(42))
		assert.False(t, id.IsResolved())
	})

	t.Run("same value in different spaces differs", func(t *testing.T) {
		assert.NotEqual(t, Resolved(7), Local(7))
	})
}

func TestTripleSerialization(t *testing.T) {
	in := New(Resolved(1), Local(2), Resolved(0x7FFFFFFE))

	data, err := in.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, KeySize)

	out, err := FromKey(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = FromKey(data[:KeySize-1])
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrKeySize))
}

func TestTripleMatches(t *testing.T) {
	tr := New(Local(1), Local(2), Local(3))

	tests := []struct {
		name    string
		pattern Triple
		matches bool
	}{
		{"all wildcard", Triple{}, true},
		{"exact", tr, true},
		{"subject bound", New(Local(1), Wildcard, Wildcard), true},
		{"predicate and object bound", New(Wildcard, Local(2), Local(3)), true},
		{"subject mismatch", New(Local(9), Wildcard, Wildcard), false},
		{"object mismatch", New(Local(1), Local(2), Local(9)), false},
		{"resolved vs local", New(Resolved(1), Wildcard, Wildcard), false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.matches, tr.Matches(test.pattern))
		})
	}
}

func TestBounds(t *testing.T) {
	lower, upper := Bounds(New(Wildcard, Local(5), Wildcard))
	assert.Equal(t, New(Wildcard, Local(5), Wildcard), lower)
	assert.Equal(t, New(Max, Local(5), Max), upper)

	assert.True(t, Triple{}.IsAllWildcard())
	assert.False(t, lower.IsAllWildcard())
}
