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
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weaviate/patchstore/adapters/repos/db/kv"
	"github.com/weaviate/patchstore/entities/triple"
)

func openTestStore(t *testing.T, basePath string, cfg storeConfig) *TripleStore {
	logger, _ := test.NewNullLogger()
	s, err := openTripleStore(basePath, testDictionary(), logger, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTripleStoreFiles(t *testing.T) {
	base := filepath.Join(t.TempDir(), "dataset")
	s := openTestStore(t, base, storeConfig{})

	for _, suffix := range []string{"spo", "sop", "pso", "pos", "osp", "spo_deletions"} {
		_, err := os.Stat(base + "_" + suffix)
		assert.NoError(t, err, suffix)
	}
	assert.Equal(t, "dataset_spo_deletions", s.index(indexDeletions).Name())
}

func TestTripleStoreInsert(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "store"), storeConfig{})
	tr := triple.New(triple.Resolved(1), triple.Resolved(2), triple.Resolved(1))

	t.Run("additions reach every addition index", func(t *testing.T) {
		require.NoError(t, s.InsertAddition(tr, 0, false, false))
		require.NoError(t, s.InsertAddition(tr, 3, true, false))

		for _, i := range additionIndexes {
			data, err := s.index(i).Get(tr.Key())
			require.NoError(t, err, i.suffix())
			v, err := unmarshalAdditionValue(data)
			require.NoError(t, err)
			assert.Equal(t, "{0,3*}", v.String(), i.suffix())
		}

		_, err := s.index(indexDeletions).Get(tr.Key())
		assert.True(t, errors.Is(err, kv.NotFound))
	})

	t.Run("duplicates are rejected", func(t *testing.T) {
		err := s.InsertAddition(tr, 3, false, false)
		assert.True(t, errors.Is(err, ErrDuplicatePatchEntry))

		v, err := s.AdditionValue(tr)
		require.NoError(t, err)
		assert.Equal(t, "{0,3*}", v.String())
	})

	t.Run("ignoring existing history replaces it", func(t *testing.T) {
		other := triple.New(triple.Resolved(2), triple.Resolved(2), triple.Resolved(2))
		require.NoError(t, s.InsertAddition(other, 1, false, false))
		require.NoError(t, s.InsertAddition(other, 1, false, true))

		v, err := s.AdditionValue(other)
		require.NoError(t, err)
		assert.Equal(t, "{1}", v.String())
	})

	t.Run("deletions only reach the deletion index", func(t *testing.T) {
		require.NoError(t, s.InsertDeletion(tr, positionsFrom(5), 4, false, false))

		v, err := s.DeletionValue(tr)
		require.NoError(t, err)
		assert.Equal(t, "{4:{ 5 6 7 8 9 10 11 }}", v.String())

		add, err := s.AdditionValue(tr)
		require.NoError(t, err)
		assert.Equal(t, 2, add.Len())
	})

	t.Run("missing triples have empty histories", func(t *testing.T) {
		missing := triple.New(triple.Resolved(9), triple.Resolved(9), triple.Resolved(9))
		add, err := s.AdditionValue(missing)
		require.NoError(t, err)
		assert.Equal(t, 0, add.Len())

		del, err := s.DeletionValue(missing)
		require.NoError(t, err)
		assert.Equal(t, 0, del.Len())
	})
}

func TestTripleStoreFlush(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "store"), storeConfig{flushTriplesCount: 2})
	tr := func(v uint32) triple.Triple {
		return triple.New(triple.Resolved(v), triple.Resolved(1), triple.Resolved(1))
	}

	require.NoError(t, s.InsertAddition(tr(1), 0, false, false))
	assert.Equal(t, 1, s.index(indexSPO).Dirty())

	require.NoError(t, s.InsertAddition(tr(2), 0, false, false))
	for i := indexID(0); i < indexCount; i++ {
		assert.Equal(t, 0, s.index(i).Dirty(), i.suffix())
	}
}

func TestTripleStorePersistence(t *testing.T) {
	base := filepath.Join(t.TempDir(), "store")
	logger, _ := test.NewNullLogger()
	tr := triple.New(triple.Resolved(1), triple.Resolved(1), triple.Resolved(2))

	s, err := openTripleStore(base, testDictionary(), logger, storeConfig{})
	require.NoError(t, err)
	require.NoError(t, s.InsertAddition(tr, 0, false, false))
	require.NoError(t, s.InsertDeletion(tr, positionsFrom(0), 1, true, false))
	require.NoError(t, s.Close())

	s = openTestStore(t, base, storeConfig{})
	add, err := s.AdditionValue(tr)
	require.NoError(t, err)
	assert.Equal(t, "{0}", add.String())

	del, err := s.DeletionValue(tr)
	require.NoError(t, err)
	assert.True(t, del.IsLocalChange(1))
	assert.Equal(t, 1, s.index(indexOSP).Len())
}

func TestTripleStoreOpenFailure(t *testing.T) {
	base := filepath.Join(t.TempDir(), "store")
	// a directory where an index file belongs
	require.NoError(t, os.MkdirAll(base+"_pso", 0o755))

	logger, hook := test.NewNullLogger()
	_, err := openTripleStore(base, testDictionary(), logger, storeConfig{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStorageOpen))
	assert.Empty(t, hook.AllEntries(), "opened indexes closed cleanly")

	require.NoError(t, os.Remove(base+"_pso"))
	openTestStore(t, base, storeConfig{})
}

func TestTripleStoreClose(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s, err := openTripleStore(filepath.Join(t.TempDir(), "store"), testDictionary(), logger, storeConfig{})
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "closing twice is a no-op")
	require.NoError(t, s.Sync(), "nothing to sync after close")
}
