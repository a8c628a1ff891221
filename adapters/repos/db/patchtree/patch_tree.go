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

// Package patchtree stores a sequence of patches against a base dataset and
// answers queries about any version.
//
// Every appended patch k is stored cumulatively: the full delta D_k between
// the base dataset and version k is reconstructed from version k-1, the
// incoming patch is merged in and every triple of D_k receives an entry at
// patch id k. Triples that were added are recorded in five addition indexes
// that only differ in their order, deleted triples are recorded in a
// separate deletion index together with their positions, the ranks among
// the deletions of the version sharing a pattern prefix.
//
// Appends must be serialized by the caller. Append only accepts patch ids
// above the latest appended one, the appended ids are kept in a patch log
// next to the indexes. A crash during an append can leave the
// indexes partially written. Detecting and repairing that is left to the
// caller.
package patchtree

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/weaviate/sroar"

	"github.com/weaviate/patchstore/adapters/repos/db/kv"
	"github.com/weaviate/patchstore/entities/patch"
	"github.com/weaviate/patchstore/entities/triple"
	"github.com/weaviate/patchstore/usecases/monitoring"
	"github.com/weaviate/patchstore/usecases/progress"
)

var ErrDuplicatePatch = errors.New("patch id already contains triple")

type PatchTree struct {
	basePath string
	name     string
	logger   logrus.FieldLogger
	progress progress.Listener
	metrics  *monitoring.PrometheusMetrics
	cfg      storeConfig

	store *TripleStore
	log   *patchLog
	spo   *TripleComparator
}

type Option func(pt *PatchTree) error

// WithFlushTriplesCount sets after how many record writes all indexes are
// synced to disk.
func WithFlushTriplesCount(count int) Option {
	return func(pt *PatchTree) error {
		if count < 1 {
			return errors.Errorf("invalid flush triples count %d", count)
		}
		pt.cfg.flushTriplesCount = count
		return nil
	}
}

// WithIndexOptions passes options to every index of the store.
func WithIndexOptions(opts ...kv.Option) Option {
	return func(pt *PatchTree) error {
		pt.cfg.indexOptions = append(pt.cfg.indexOptions, opts...)
		return nil
	}
}

func WithProgressListener(l progress.Listener) Option {
	return func(pt *PatchTree) error {
		pt.progress = l
		return nil
	}
}

func WithMetrics(metrics *monitoring.PrometheusMetrics) Option {
	return func(pt *PatchTree) error {
		pt.metrics = metrics
		pt.cfg.metrics = metrics
		return nil
	}
}

// New opens the six indexes of the patch tree stored at basePath.
func New(basePath string, dict Dictionary, logger logrus.FieldLogger, opts ...Option) (*PatchTree, error) {
	pt := &PatchTree{
		basePath: basePath,
		name:     filepath.Base(basePath),
		logger:   logger,
		progress: progress.Noop,
		cfg:      storeConfig{flushTriplesCount: FlushTriplesCount},
	}

	for _, opt := range opts {
		if err := opt(pt); err != nil {
			return nil, err
		}
	}

	store, err := openTripleStore(basePath, dict, logger, pt.cfg)
	if err != nil {
		return nil, err
	}
	pt.store = store
	pt.spo = store.Comparator(OrderSPO)

	patches, err := openPatchLog(basePath+"_patches", logger, pt.cfg.indexOptions)
	if err != nil {
		store.Close()
		return nil, err
	}
	pt.log = patches

	return pt, nil
}

func (pt *PatchTree) Close() error {
	var result *multierror.Error
	if err := pt.store.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := pt.log.db.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// Sync writes all pending index changes to disk.
func (pt *PatchTree) Sync() error {
	if err := pt.store.Sync(); err != nil {
		return err
	}
	return pt.log.db.Sync()
}

// LatestPatchID returns the highest appended patch id. ok is false for an
// empty tree.
func (pt *PatchTree) LatestPatchID() (id int, ok bool) {
	return pt.log.latest()
}

// PatchIDs returns the appended patch ids in ascending order.
func (pt *PatchTree) PatchIDs() []uint64 {
	return pt.log.appended()
}

func (pt *PatchTree) Store() *TripleStore {
	return pt.store
}

// Comparator returns the canonical SPO triple order.
func (pt *PatchTree) Comparator() *TripleComparator {
	return pt.spo
}

// NewPatch returns an empty patch in canonical SPO order.
func (pt *PatchTree) NewPatch() *patch.Patch {
	return patch.New(pt.spo)
}

// Append stores p as patch id. The append is rejected before anything is
// written with ErrDuplicatePatch if id was appended before or any triple of
// the resulting version is already recorded under id, and with
// ErrPatchOrder if id is below the latest appended patch.
func (pt *PatchTree) Append(p *patch.Patch, id int) error {
	if err := validatePatchID(id); err != nil {
		return err
	}
	if err := pt.log.check(id); err != nil {
		return err
	}

	for _, e := range p.Elements() {
		if err := pt.rejectContained(e, id); err != nil {
			return err
		}
	}

	merged, err := pt.merge(p, id)
	if err != nil {
		return err
	}

	// carried over triples must not be recorded under id either
	for _, e := range merged.Elements() {
		if _, ok := p.Find(e.Triple); ok {
			continue
		}
		if err := pt.rejectContained(e, id); err != nil {
			return err
		}
	}

	if err := pt.write(merged, id); err != nil {
		return err
	}
	return pt.log.record(id)
}

func (pt *PatchTree) rejectContained(e patch.Element, id int) error {
	contained, err := pt.Contains(e, id, true)
	if err != nil {
		return err
	}
	if contained {
		return errors.Wrapf(ErrDuplicatePatch, "patch %d, triple %s", id, e.Triple)
	}
	return nil
}

// AppendUnsafe stores p as patch id without checking for existing entries.
// A conflicting entry fails the append midway with ErrDuplicatePatchEntry.
func (pt *PatchTree) AppendUnsafe(p *patch.Patch, id int) error {
	if err := validatePatchID(id); err != nil {
		return err
	}

	merged, err := pt.merge(p, id)
	if err != nil {
		return err
	}
	if err := pt.write(merged, id); err != nil {
		return err
	}
	return pt.log.record(id)
}

// merge reconstructs the version before id, local changes included, and
// applies p to it.
func (pt *PatchTree) merge(p *patch.Patch, id int) (*patch.Patch, error) {
	start := time.Now()
	pt.progress.Notify(fmt.Sprintf("reconstructing version %d", id-1))

	prev, err := pt.reconstruct(id-1, false)
	if err != nil {
		return nil, errors.Wrapf(err, "reconstruct version before patch %d", id)
	}
	pt.metrics.AppendPhase(pt.name, "reconstruct", time.Since(start))

	start = time.Now()
	merged := prev.Apply(p)
	pt.metrics.AppendPhase(pt.name, "merge", time.Since(start))
	return merged, nil
}

func (pt *PatchTree) write(merged *patch.Patch, id int) error {
	start := time.Now()
	positions := merged.DeletionPositions()
	elements := merged.Elements()
	pt.metrics.AppendPhase(pt.name, "positions", time.Since(start))

	start = time.Now()
	pt.progress.Notify(fmt.Sprintf("writing %d triples of patch %d", len(elements), id))

	additions := pt.store.index(indexSPO).Cursor()
	defer additions.Close()
	deletions := pt.store.index(indexDeletions).Cursor()
	defer deletions.Close()

	added, deleted := 0, 0
	for i, e := range elements {
		var err error
		if e.Addition {
			err = pt.store.insertAdditionAt(additions, e.Triple, id, e.LocalChange)
			added++
		} else {
			err = pt.store.insertDeletionAt(deletions, e.Triple, positions[i], id, e.LocalChange)
			deleted++
		}
		if err != nil {
			return errors.Wrapf(err, "append patch %d", id)
		}
		pt.progress.Tick("triples written", i+1)
	}

	pt.metrics.AppendPhase(pt.name, "write", time.Since(start))
	pt.metrics.TriplesWritten(pt.name, "addition", added)
	pt.metrics.TriplesWritten(pt.name, "deletion", deleted)
	pt.metrics.PatchAppended(pt.name)

	pt.logger.WithField("action", "patch_tree_append").
		WithField("patch_id", id).
		WithField("additions", added).
		WithField("deletions", deleted).
		WithField("took", time.Since(start)).
		Debug("appended patch")
	return nil
}

// Contains reports whether the triple of e is recorded under patch id. Unless
// ignoreType is set, the recorded entry must also be of the same kind as e.
func (pt *PatchTree) Contains(e patch.Element, id int, ignoreType bool) (bool, error) {
	add, err := pt.store.AdditionValue(e.Triple)
	if err != nil {
		return false, err
	}
	del, err := pt.store.DeletionValue(e.Triple)
	if err != nil {
		return false, err
	}

	_, added := add.Get(id)
	_, deleted := del.Get(id)

	switch {
	case ignoreType:
		return added || deleted, nil
	case e.Addition:
		return added, nil
	default:
		return deleted, nil
	}
}

// ReconstructPatch returns the delta of version id against the base dataset.
// Local changes are left out: a triple whose state at id is back to its
// state in the base dataset is not part of the delta. PatchIterator yields
// them too.
func (pt *PatchTree) ReconstructPatch(id int) (*patch.Patch, error) {
	return pt.reconstruct(id, true)
}

func (pt *PatchTree) reconstruct(id int, ignoreLocalChanges bool) (*patch.Patch, error) {
	if id < 0 {
		return pt.NewPatch(), nil
	}

	it := pt.store.newPatchIterator(id, false, ignoreLocalChanges)
	defer it.Close()

	p, err := patch.Collect(it, pt.spo)
	if err != nil {
		return nil, errors.Wrapf(err, "reconstruct patch %d", id)
	}
	return p, nil
}

// Iterator walks the SPO addition index from key on, without any filter.
func (pt *PatchTree) Iterator(key triple.Triple) *TripleIterator {
	return pt.store.newTripleIterator(iteratorConfig{
		index: indexSPO,
		start: key,
	})
}

// PatchIterator yields every triple recorded at version id in SPO order. If
// exact is set, only triples with an entry at exactly id are returned.
func (pt *PatchTree) PatchIterator(id int, exact bool) patch.Iterator {
	return pt.store.newPatchIterator(id, exact, false)
}

// DeletionCount returns the number of triples matching pattern that are
// deleted at version id, together with the last of them in SPO order.
// Local changes are counted.
func (pt *PatchTree) DeletionCount(pattern triple.Triple, id int) (int, triple.Triple, error) {
	_, upper := triple.Bounds(pattern)
	it := pt.store.newTripleIterator(iteratorConfig{
		index:   indexDeletions,
		start:   upper,
		reverse: true,
		bounded: true,
		filter: filter{
			versioned: true,
			patchID:   id,
			kind:      deletionsOnly,
			pattern:   pattern,
		},
	})
	defer it.Close()

	if it.Next() {
		return int(it.State().Positions.ByPattern(pattern)) + 1, it.Triple(), nil
	}
	return 0, triple.Triple{}, it.Err()
}

// DeletionIteratorFrom iterates the triples matching pattern that are
// deleted at version id, starting at offset in SPO order. Local changes are
// skipped.
func (pt *PatchTree) DeletionIteratorFrom(offset triple.Triple, id int, pattern triple.Triple) *PositionedTripleIterator {
	it := pt.store.newTripleIterator(iteratorConfig{
		index:   indexDeletions,
		start:   offset,
		bounded: true,
		filter: filter{
			versioned:    true,
			patchID:      id,
			kind:         deletionsOnly,
			pattern:      pattern,
			excludeLocal: true,
		},
	})
	return &PositionedTripleIterator{TripleIterator: it, pattern: pattern}
}

// AdditionIteratorFrom iterates the triples matching pattern that are added
// at version id, in the order of the index selected for pattern, skipping
// the first offset of them. Skipping scans every skipped triple.
func (pt *PatchTree) AdditionIteratorFrom(offset, id int, pattern triple.Triple) (*TripleIterator, error) {
	i := indexForPattern(pattern)
	it := pt.store.newTripleIterator(iteratorConfig{
		index:   i,
		bounded: true,
		filter: filter{
			versioned:    true,
			patchID:      id,
			kind:         additionsOnly,
			pattern:      pattern,
			excludeLocal: true,
		},
	})

	skipped := 0
	for skipped < offset && it.Next() {
		skipped++
	}
	pt.metrics.OffsetSkipped(pt.name, i.suffix(), skipped)

	if err := it.Err(); err != nil {
		it.Close()
		return nil, err
	}
	return it, nil
}

// Versions returns the patch ids at which t is recorded as an addition and
// as a deletion.
func (pt *PatchTree) Versions(t triple.Triple) (additions, deletions *sroar.Bitmap, err error) {
	add, err := pt.store.AdditionValue(t)
	if err != nil {
		return nil, nil, err
	}
	del, err := pt.store.DeletionValue(t)
	if err != nil {
		return nil, nil, err
	}

	additions = sroar.NewBitmap()
	for _, e := range add.Elements() {
		additions.Set(uint64(e.PatchID))
	}
	deletions = sroar.NewBitmap()
	for _, e := range del.Elements() {
		deletions.Set(uint64(e.PatchID))
	}
	return additions, deletions, nil
}
