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
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weaviate/patchstore/entities/patch"
	"github.com/weaviate/patchstore/entities/triple"
	"github.com/weaviate/patchstore/usecases/dictionary"
	"github.com/weaviate/patchstore/usecases/monitoring"
)

type fixture struct {
	t    *testing.T
	base string
	dict *dictionary.Manager
	tree *PatchTree
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	f := &fixture{
		t:    t,
		base: filepath.Join(t.TempDir(), "store"),
		dict: testDictionary(),
	}
	f.open(opts...)
	t.Cleanup(func() { f.tree.Close() })
	return f
}

func (f *fixture) open(opts ...Option) {
	logger, _ := test.NewNullLogger()
	tree, err := New(f.base, f.dict, logger, opts...)
	require.NoError(f.t, err)
	f.tree = tree
}

// triple encodes a whitespace separated "s p o".
func (f *fixture) triple(spo string) triple.Triple {
	terms := strings.Fields(spo)
	require.Len(f.t, terms, 3)
	tr, err := f.dict.Encode(terms[0], terms[1], terms[2])
	require.NoError(f.t, err)
	return tr
}

func (f *fixture) pattern(spo string) triple.Triple {
	terms := strings.Fields(spo)
	require.Len(f.t, terms, 3)
	tr, err := f.dict.Pattern(terms[0], terms[1], terms[2])
	require.NoError(f.t, err)
	return tr
}

// patch builds a patch from lines like "+ s p o" and "- s p o".
func (f *fixture) patch(lines ...string) *patch.Patch {
	p := f.tree.NewPatch()
	for _, line := range lines {
		e := patch.Element{Triple: f.triple(line[2:]), Addition: line[0] == '+'}
		p.Add(e)
	}
	return p
}

func (f *fixture) append(id int, lines ...string) {
	require.NoError(f.t, f.tree.Append(f.patch(lines...), id))
}

func (f *fixture) reconstruct(id int) []string {
	p, err := f.tree.ReconstructPatch(id)
	require.NoError(f.t, err)
	return f.render(p.Elements())
}

// reconstructAll includes local changes, like the merge of the next append.
func (f *fixture) reconstructAll(id int) []string {
	p, err := f.tree.reconstruct(id, false)
	require.NoError(f.t, err)
	return f.render(p.Elements())
}

func (f *fixture) render(elements []patch.Element) []string {
	out := make([]string, len(elements))
	for i, e := range elements {
		s, p, o, err := f.dict.Decode(e.Triple)
		require.NoError(f.t, err)
		op := "-"
		if e.Addition {
			op = "+"
		}
		out[i] = fmt.Sprintf("%s %s %s %s", op, s, p, o)
		if e.LocalChange {
			out[i] += " local"
		}
	}
	return out
}

func TestAppendSingleAddition(t *testing.T) {
	f := newFixture(t)
	f.append(0, "+ <a> <p> <o1>")

	abc := f.triple("<a> <p> <o1>")
	contained, err := f.tree.Contains(patch.Addition(abc), 0, true)
	require.NoError(t, err)
	assert.True(t, contained)

	assert.Equal(t, []string{"+ <a> <p> <o1>"}, f.reconstruct(0))
}

func TestAppendAdditionThenDeletion(t *testing.T) {
	f := newFixture(t)
	f.append(0, "+ <a> <p> <o1>")
	f.append(1, "- <a> <p> <o1>")

	abc := f.triple("<a> <p> <o1>")
	count, last, err := f.tree.DeletionCount(abc, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, abc, last)

	assert.Empty(t, f.reconstruct(1))
	assert.Equal(t, []string{"- <a> <p> <o1> local"}, f.reconstructAll(1))
	assert.Equal(t, []string{"+ <a> <p> <o1>"}, f.reconstruct(0), "earlier versions are unchanged")

	count, _, err = f.tree.DeletionCount(abc, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestAppendIsCumulative(t *testing.T) {
	f := newFixture(t)
	f.append(0, "+ <a> <p> <o1>", "- <b> <p> <o1>")
	f.append(1, "+ <c> <q> <o2>")
	f.append(2, "+ <b> <p> <o1>")

	assert.Equal(t, []string{
		"+ <a> <p> <o1>",
		"- <b> <p> <o1>",
	}, f.reconstruct(0))
	assert.Equal(t, []string{
		"+ <a> <p> <o1>",
		"- <b> <p> <o1>",
		"+ <c> <q> <o2>",
	}, f.reconstruct(1))

	t.Run("undoing a deletion is a local change", func(t *testing.T) {
		assert.Equal(t, []string{
			"+ <a> <p> <o1>",
			"+ <b> <p> <o1> local",
			"+ <c> <q> <o2>",
		}, f.reconstructAll(2))
		assert.Equal(t, []string{
			"+ <a> <p> <o1>",
			"+ <c> <q> <o2>",
		}, f.reconstruct(2))
	})

	t.Run("every triple gets an entry per version", func(t *testing.T) {
		add, err := f.tree.Store().AdditionValue(f.triple("<a> <p> <o1>"))
		require.NoError(t, err)
		assert.Equal(t, "{0,1,2}", add.String())

		del, err := f.tree.Store().DeletionValue(f.triple("<b> <p> <o1>"))
		require.NoError(t, err)
		assert.Equal(t, "{0:{ 0 0 0 0 0 0 0 },1:{ 0 0 0 0 0 0 0 }}", del.String())

		add, err = f.tree.Store().AdditionValue(f.triple("<b> <p> <o1>"))
		require.NoError(t, err)
		assert.Equal(t, "{2*}", add.String())
	})

	t.Run("versions", func(t *testing.T) {
		additions, deletions, err := f.tree.Versions(f.triple("<b> <p> <o1>"))
		require.NoError(t, err)
		assert.Equal(t, []uint64{2}, additions.ToArray())
		assert.Equal(t, []uint64{0, 1}, deletions.ToArray())

		additions, deletions, err = f.tree.Versions(f.triple("<d> <r> <o3>"))
		require.NoError(t, err)
		assert.Equal(t, 0, additions.GetCardinality())
		assert.Equal(t, 0, deletions.GetCardinality())
	})

	t.Run("reconstruction is idempotent", func(t *testing.T) {
		first, err := f.tree.ReconstructPatch(2)
		require.NoError(t, err)
		second, err := f.tree.ReconstructPatch(2)
		require.NoError(t, err)
		assert.Equal(t, first.Elements(), second.Elements())
	})
}

func TestAppendOrder(t *testing.T) {
	f := newFixture(t)
	_, ok := f.tree.LatestPatchID()
	assert.False(t, ok)

	f.append(0, "+ <a> <p> <o1>")
	f.append(1, "+ <b> <p> <o1>")

	t.Run("re-appending the first patch", func(t *testing.T) {
		err := f.tree.Append(f.patch("+ <c> <q> <o2>"), 0)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDuplicatePatch))

		assert.Equal(t, []string{"+ <a> <p> <o1>"}, f.reconstruct(0))
		contained, err := f.tree.Contains(patch.Addition(f.triple("<c> <q> <o2>")), 0, true)
		require.NoError(t, err)
		assert.False(t, contained)
	})

	t.Run("gaps are allowed", func(t *testing.T) {
		f.append(3, "+ <c> <q> <o2>")
		latest, ok := f.tree.LatestPatchID()
		require.True(t, ok)
		assert.Equal(t, 3, latest)
		assert.Equal(t, []uint64{0, 1, 3}, f.tree.PatchIDs())
	})

	t.Run("id below the latest", func(t *testing.T) {
		err := f.tree.Append(f.patch("+ <d> <r> <o3>"), 2)
		assert.True(t, errors.Is(err, ErrPatchOrder))
		assert.False(t, errors.Is(err, ErrDuplicatePatch))
	})

	t.Run("survives a reopen", func(t *testing.T) {
		require.NoError(t, f.tree.Close())
		f.open()

		assert.Equal(t, []uint64{0, 1, 3}, f.tree.PatchIDs())
		assert.True(t, errors.Is(f.tree.Append(f.patch("+ <d> <r> <o3>"), 1), ErrDuplicatePatch))
		assert.True(t, errors.Is(f.tree.Append(f.patch("+ <d> <r> <o3>"), 2), ErrPatchOrder))
		f.append(4, "+ <d> <r> <o3>")
	})
}

func TestContainsAfterAppend(t *testing.T) {
	f := newFixture(t)
	p := f.patch("+ <a> <p> <o1>", "- <b> <q> <o2>", "+ <d> <r> <o3>")
	require.NoError(t, f.tree.Append(p, 0))

	for _, e := range p.Elements() {
		contained, err := f.tree.Contains(e, 0, false)
		require.NoError(t, err)
		assert.True(t, contained, e.String())

		flipped := e
		flipped.Addition = !e.Addition
		contained, err = f.tree.Contains(flipped, 0, false)
		require.NoError(t, err)
		assert.False(t, contained, flipped.String())

		contained, err = f.tree.Contains(e, 1, true)
		require.NoError(t, err)
		assert.False(t, contained)
	}
}

func TestAppendRejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	f.append(0, "+ <a> <p> <o1>", "+ <b> <p> <o1>")
	f.append(1, "+ <c> <p> <o1>")

	before := f.reconstruct(1)

	t.Run("appended id again", func(t *testing.T) {
		err := f.tree.Append(f.patch("- <a> <p> <o1>"), 0)
		assert.True(t, errors.Is(err, ErrDuplicatePatch))
		err = f.tree.Append(f.patch("+ <d> <p> <o1>"), 1)
		assert.True(t, errors.Is(err, ErrDuplicatePatch))
	})

	// an entry under 2 without 2 in the patch log, as left by a failed
	// unsafe append
	require.NoError(t, f.tree.Store().InsertAddition(f.triple("<a> <p> <o1>"), 2, false, false))

	t.Run("new triple alongside a recorded one", func(t *testing.T) {
		err := f.tree.Append(f.patch("+ <d> <p> <o1>", "+ <a> <p> <o1>"), 2)
		assert.True(t, errors.Is(err, ErrDuplicatePatch))
	})

	t.Run("only carried over triples recorded", func(t *testing.T) {
		err := f.tree.Append(f.patch("+ <d> <r> <o3>"), 2)
		assert.True(t, errors.Is(err, ErrDuplicatePatch))
	})

	assert.Equal(t, before, f.reconstruct(1))
	assert.Equal(t, []uint64{0, 1}, f.tree.PatchIDs())
	add, err := f.tree.Store().AdditionValue(f.triple("<d> <p> <o1>"))
	require.NoError(t, err)
	assert.Equal(t, 0, add.Len())
	add, err = f.tree.Store().AdditionValue(f.triple("<d> <r> <o3>"))
	require.NoError(t, err)
	assert.Equal(t, 0, add.Len())

	t.Run("unsafe append fails on the conflicting entry", func(t *testing.T) {
		err := f.tree.AppendUnsafe(f.patch("+ <a> <p> <o1>"), 0)
		assert.True(t, errors.Is(err, ErrDuplicatePatchEntry))
	})

	t.Run("invalid patch id", func(t *testing.T) {
		err := f.tree.Append(f.patch("+ <a> <p> <o1>"), -1)
		assert.True(t, errors.Is(err, ErrInvalidPatchID))
	})
}

func TestPatchIterator(t *testing.T) {
	f := newFixture(t)
	f.append(0, "+ <a> <p> <o1>")
	f.append(1, "+ <b> <p> <o1>")

	collect := func(id int, exact bool) []string {
		p, err := patch.Collect(f.tree.PatchIterator(id, exact), f.tree.Comparator())
		require.NoError(t, err)
		return f.render(p.Elements())
	}

	assert.Equal(t, []string{"+ <a> <p> <o1>"}, collect(0, true))
	assert.Equal(t, []string{"+ <a> <p> <o1>", "+ <b> <p> <o1>"}, collect(1, true))
	assert.Empty(t, collect(2, true))
	assert.Equal(t, []string{"+ <a> <p> <o1>", "+ <b> <p> <o1>"}, collect(2, false))
}

func TestIterator(t *testing.T) {
	f := newFixture(t)
	f.append(0, "+ <a> <p> <o1>", "+ <c> <p> <o1>", "+ <d> <p> <o1>")

	it := f.tree.Iterator(f.triple("<b> <p> <o1>"))
	defer it.Close()

	var got []triple.Triple
	for it.Next() {
		got = append(got, it.Triple())
		assert.Equal(t, 1, it.AdditionValue().Len())
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []triple.Triple{f.triple("<c> <p> <o1>"), f.triple("<d> <p> <o1>")}, got)
}

func TestQueryIterators(t *testing.T) {
	f := newFixture(t)
	f.append(0,
		"+ <a> <p> <o1>",
		"+ <a> <q> <o2>",
		"+ <b> <p> <o2>",
		"+ <c> <p> <o1>",
		"+ <d> <r> <o3>",
		"- <b> <q> <o1>",
		"- <c> <q> <o1>",
		"- <d> <q> <o2>",
	)
	f.append(1, "- <c> <p> <o1>", "+ <e> <p> <o2>")

	t.Run("deletion count by pattern", func(t *testing.T) {
		count, last, err := f.tree.DeletionCount(f.pattern("? <q> ?"), 0)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
		assert.Equal(t, f.triple("<d> <q> <o2>"), last)

		count, last, err = f.tree.DeletionCount(f.pattern("? <q> <o1>"), 0)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
		assert.Equal(t, f.triple("<c> <q> <o1>"), last)

		count, _, err = f.tree.DeletionCount(f.pattern("? ? ?"), 1)
		require.NoError(t, err)
		assert.Equal(t, 4, count, "local deletions are counted")
	})

	t.Run("deletions from an offset", func(t *testing.T) {
		pattern := f.pattern("? <q> ?")
		it := f.tree.DeletionIteratorFrom(f.triple("<c> <q> <o1>"), 0, pattern)
		defer it.Close()

		var got []string
		for it.Next() {
			got = append(got, fmt.Sprintf("%s@%d", it.Triple(), it.Position()))
		}
		require.NoError(t, it.Err())
		assert.Equal(t, []string{
			fmt.Sprintf("%s@1", f.triple("<c> <q> <o1>")),
			fmt.Sprintf("%s@2", f.triple("<d> <q> <o2>")),
		}, got)
	})

	t.Run("deletions skip local changes", func(t *testing.T) {
		it := f.tree.DeletionIteratorFrom(triple.Triple{}, 1, f.pattern("<c> ? ?"))
		defer it.Close()

		var got []triple.Triple
		for it.Next() {
			got = append(got, it.Triple())
		}
		require.NoError(t, it.Err())
		assert.Equal(t, []triple.Triple{f.triple("<c> <q> <o1>")}, got)
	})

	t.Run("additions from an offset", func(t *testing.T) {
		additions := func(offset, id int, pattern string) []triple.Triple {
			it, err := f.tree.AdditionIteratorFrom(offset, id, f.pattern(pattern))
			require.NoError(t, err)
			defer it.Close()

			var out []triple.Triple
			for it.Next() {
				assert.True(t, it.State().Addition)
				out = append(out, it.Triple())
			}
			require.NoError(t, it.Err())
			return out
		}

		assert.Equal(t, []triple.Triple{
			f.triple("<a> <p> <o1>"),
			f.triple("<b> <p> <o2>"),
			f.triple("<c> <p> <o1>"),
		}, additions(0, 0, "? <p> ?"))
		assert.Equal(t, []triple.Triple{
			f.triple("<c> <p> <o1>"),
		}, additions(2, 0, "? <p> ?"))
		assert.Empty(t, additions(10, 0, "? <p> ?"))

		assert.Equal(t, []triple.Triple{
			f.triple("<a> <p> <o1>"),
			f.triple("<b> <p> <o2>"),
			f.triple("<e> <p> <o2>"),
		}, additions(0, 1, "? <p> ?"), "deleted at version 1")

		assert.Equal(t, []triple.Triple{
			f.triple("<a> <q> <o2>"),
			f.triple("<b> <p> <o2>"),
		}, additions(0, 0, "? ? <o2>"), "object routed index")
	})
}

// TestPositionsFollowIndexOrder appends random deletions and checks that,
// for every pattern, the deletions matching it are visited in comparator
// order with consecutive positions.
func TestPositionsFollowIndexOrder(t *testing.T) {
	f := newFixture(t)
	r := rand.New(rand.NewSource(7))

	subjects := []string{"<a>", "<b>", "<c>", "<d>", "<e>"}
	predicates := []string{"<p>", "<q>", "<r>"}
	objects := []string{"<o1>", "<o2>", "<o3>", "<o4>"}

	p := f.tree.NewPatch()
	for p.Len() < 30 {
		line := fmt.Sprintf("%s %s %s",
			subjects[r.Intn(len(subjects))],
			predicates[r.Intn(len(predicates))],
			objects[r.Intn(len(objects))])
		p.Add(patch.Deletion(f.triple(line)))
	}
	require.NoError(t, f.tree.Append(p, 0))

	spo := f.tree.Comparator()
	for _, e := range p.Elements() {
		tr := e.Triple
		for _, pattern := range []triple.Triple{
			triple.New(tr.Subject, tr.Predicate, triple.Wildcard),
			triple.New(tr.Subject, triple.Wildcard, tr.Object),
			triple.New(tr.Subject, triple.Wildcard, triple.Wildcard),
			triple.New(triple.Wildcard, tr.Predicate, tr.Object),
			triple.New(triple.Wildcard, tr.Predicate, triple.Wildcard),
			triple.New(triple.Wildcard, triple.Wildcard, tr.Object),
			{},
		} {
			it := f.tree.DeletionIteratorFrom(triple.Triple{}, 0, pattern)

			var previous *triple.Triple
			n := 0
			for it.Next() {
				current := it.Triple()
				require.Equal(t, uint32(n), it.Position(), "pattern %s", pattern)
				if previous != nil {
					require.Equal(t, -1, spo.Compare(*previous, current))
				}
				previous = &current
				n++
			}
			require.NoError(t, it.Err())
			it.Close()

			count, _, err := f.tree.DeletionCount(pattern, 0)
			require.NoError(t, err)
			require.Equal(t, n, count, "pattern %s", pattern)
		}
	}
}

func TestReopen(t *testing.T) {
	f := newFixture(t)
	f.append(0, "+ <a> <p> <o1>", "- <b> <q> <o2>")
	before := f.reconstruct(0)
	require.NoError(t, f.tree.Close())

	f.open()
	assert.Equal(t, before, f.reconstruct(0))
	f.append(1, "+ <c> <r> <o3>")
	assert.Len(t, f.reconstruct(1), 3)
}

func TestOptions(t *testing.T) {
	logger, _ := test.NewNullLogger()
	_, err := New(filepath.Join(t.TempDir(), "store"), testDictionary(), logger, WithFlushTriplesCount(0))
	assert.Error(t, err)

	f := newFixture(t, WithFlushTriplesCount(1))
	f.append(0, "+ <a> <p> <o1>", "- <b> <q> <o2>")
	for i := indexID(0); i < indexCount; i++ {
		assert.Equal(t, 0, f.tree.Store().index(i).Dirty(), i.suffix())
	}
}

type recordingListener struct {
	sync.Mutex
	messages []string
	ticks    int
}

func (l *recordingListener) Notify(msg string) {
	l.Lock()
	defer l.Unlock()
	l.messages = append(l.messages, msg)
}

func (l *recordingListener) Tick(string, int) {
	l.Lock()
	defer l.Unlock()
	l.ticks++
}

func TestAppendObservability(t *testing.T) {
	metrics := monitoring.NewPrometheusMetrics(prometheus.NewPedanticRegistry())
	listener := &recordingListener{}
	f := newFixture(t, WithMetrics(metrics), WithProgressListener(listener))

	f.append(0, "+ <a> <p> <o1>", "- <b> <q> <o2>")
	f.append(1, "+ <c> <r> <o3>")

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.PatchesAppended.WithLabelValues("store")))
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.TripleWrites.WithLabelValues("store", "addition")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.TripleWrites.WithLabelValues("store", "deletion")))
	assert.Equal(t, 6, testutil.CollectAndCount(metrics.IndexKeys), "one key gauge per index")

	assert.Contains(t, listener.messages, "writing 2 triples of patch 0")
	assert.Contains(t, listener.messages, "writing 3 triples of patch 1")
	assert.Equal(t, 5, listener.ticks)

	it, err := f.tree.AdditionIteratorFrom(1, 1, triple.Triple{})
	require.NoError(t, err)
	it.Close()
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.OffsetSkips.WithLabelValues("store", "spo")))
}
