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
	"bytes"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/weaviate/patchstore/adapters/repos/db/kv"
	enterrors "github.com/weaviate/patchstore/entities/errors"
	"github.com/weaviate/patchstore/entities/patch"
	"github.com/weaviate/patchstore/entities/triple"
	"github.com/weaviate/patchstore/usecases/monitoring"
)

// FlushTriplesCount is the default number of record writes after which all
// indexes are synced to disk.
const FlushTriplesCount = 500000

var ErrStorageOpen = errors.New("cannot open triple store")

type indexID int

const (
	indexSPO indexID = iota
	indexSOP
	indexPSO
	indexPOS
	indexOSP
	indexDeletions

	indexCount
)

// additionIndexes hold the same addition records in different orders.
var additionIndexes = [...]indexID{indexSPO, indexSOP, indexPSO, indexPOS, indexOSP}

var indexOrders = [indexCount]Order{
	indexSPO:       OrderSPO,
	indexSOP:       OrderSOP,
	indexPSO:       OrderPSO,
	indexPOS:       OrderPOS,
	indexOSP:       OrderOSP,
	indexDeletions: OrderSPO,
}

func (i indexID) suffix() string {
	if i == indexDeletions {
		return "spo_deletions"
	}
	return indexOrders[i].String()
}

type storeConfig struct {
	flushTriplesCount int
	indexOptions      []kv.Option
	metrics           *monitoring.PrometheusMetrics
}

// TripleStore is the sole writer of the five addition indexes and the
// deletion index of a patch tree. All mutations operate on whole triples so
// the addition indexes never diverge.
type TripleStore struct {
	basePath string
	name     string
	logger   logrus.FieldLogger
	metrics  *monitoring.PrometheusMetrics

	comparators [indexCount]*TripleComparator
	indexes     [indexCount]*kv.DB

	flushEvery int
	writeLock  sync.Mutex
	writes     int
}

func openTripleStore(basePath string, dict Dictionary, logger logrus.FieldLogger,
	cfg storeConfig,
) (*TripleStore, error) {
	s := &TripleStore{
		basePath:   basePath,
		name:       filepath.Base(basePath),
		logger:     logger,
		metrics:    cfg.metrics,
		flushEvery: cfg.flushTriplesCount,
	}
	if s.flushEvery <= 0 {
		s.flushEvery = FlushTriplesCount
	}

	// comparators are shared by indexes of the same order
	byOrder := map[Order]*TripleComparator{}
	for i := indexID(0); i < indexCount; i++ {
		order := indexOrders[i]
		if _, ok := byOrder[order]; !ok {
			byOrder[order] = NewTripleComparator(order, dict)
		}
		s.comparators[i] = byOrder[order]
	}

	for i := indexID(0); i < indexCount; i++ {
		path := basePath + "_" + i.suffix()
		opts := append([]kv.Option{
			kv.WithLogger(logger),
			kv.WithMetrics(cfg.metrics),
		}, cfg.indexOptions...)

		db, err := kv.Open(path, s.comparators[i].Keys(), opts...)
		if err != nil {
			if closeErr := s.closeIndexes(); closeErr != nil {
				logger.WithField("action", "triple_store_open").
					WithError(closeErr).
					Error("closing partially opened triple store failed")
			}
			return nil, errors.Wrapf(ErrStorageOpen, "index %s: %v", path, err)
		}
		s.indexes[i] = db
	}

	logger.WithField("action", "triple_store_open").
		WithField("path", basePath).
		WithField("triples", s.indexes[indexSPO].Len()).
		WithField("deleted_triples", s.indexes[indexDeletions].Len()).
		Debug("opened triple store")

	return s, nil
}

// IndexFor returns the order of the index that groups the triples matching
// pattern contiguously.
func IndexFor(pattern triple.Triple) Order {
	return indexOrders[indexForPattern(pattern)]
}

func indexForPattern(pattern triple.Triple) indexID {
	s := !pattern.Subject.IsWildcard()
	p := !pattern.Predicate.IsWildcard()
	o := !pattern.Object.IsWildcard()

	switch {
	case s && !p && o:
		return indexSOP
	case !s && p && o:
		return indexPOS
	case !s && p && !o:
		return indexPSO
	case !s && !p && o:
		return indexOSP
	default:
		return indexSPO
	}
}

func (s *TripleStore) Comparator(order Order) *TripleComparator {
	for i, o := range indexOrders {
		if o == order {
			return s.comparators[i]
		}
	}
	return nil
}

// AdditionValue returns the addition history of t. A triple that was never
// added has an empty history.
func (s *TripleStore) AdditionValue(t triple.Triple) (*AdditionValue, error) {
	data, err := s.indexes[indexSPO].Get(t.Key())
	if err != nil {
		if errors.Is(err, kv.NotFound) {
			return &AdditionValue{}, nil
		}
		return nil, errors.Wrapf(err, "get addition value of %s", t)
	}

	v, err := unmarshalAdditionValue(data)
	return v, errors.Wrapf(err, "decode addition value of %s", t)
}

// DeletionValue returns the deletion history of t.
func (s *TripleStore) DeletionValue(t triple.Triple) (*DeletionValue, error) {
	data, err := s.indexes[indexDeletions].Get(t.Key())
	if err != nil {
		if errors.Is(err, kv.NotFound) {
			return &DeletionValue{}, nil
		}
		return nil, errors.Wrapf(err, "get deletion value of %s", t)
	}

	v, err := unmarshalDeletionValue(data)
	return v, errors.Wrapf(err, "decode deletion value of %s", t)
}

// InsertAddition records t as an addition at patchID in all addition
// indexes. With ignoreExisting the stored history is not read, which is only
// correct for triples known to have none.
func (s *TripleStore) InsertAddition(t triple.Triple, patchID int, localChange, ignoreExisting bool) error {
	v := &AdditionValue{}
	if !ignoreExisting {
		var err error
		if v, err = s.AdditionValue(t); err != nil {
			return err
		}
	}

	if err := v.Add(AdditionElement{PatchID: patchID, LocalChange: localChange}); err != nil {
		return errors.Wrapf(err, "insert addition %s", t)
	}
	return s.WriteAdditionValue(t, v)
}

// InsertDeletion records t as a deletion at patchID with the given positions.
func (s *TripleStore) InsertDeletion(t triple.Triple, positions patch.Positions, patchID int,
	localChange, ignoreExisting bool,
) error {
	v := &DeletionValue{}
	if !ignoreExisting {
		var err error
		if v, err = s.DeletionValue(t); err != nil {
			return err
		}
	}

	if err := v.Add(DeletionElement{
		PatchID:     patchID,
		LocalChange: localChange,
		Positions:   positions,
	}); err != nil {
		return errors.Wrapf(err, "insert deletion %s", t)
	}
	return s.WriteDeletionValue(t, v)
}

// WriteAdditionValue replaces the addition history of t in all addition
// indexes.
func (s *TripleStore) WriteAdditionValue(t triple.Triple, v *AdditionValue) error {
	data, err := v.MarshalBinary()
	if err != nil {
		return err
	}

	key := t.Key()
	for _, i := range additionIndexes {
		if err := s.indexes[i].Set(key, data); err != nil {
			return errors.Wrapf(err, "write addition value to %s", s.indexes[i].Name())
		}
	}
	return s.countWrite()
}

// WriteDeletionValue replaces the deletion history of t.
func (s *TripleStore) WriteDeletionValue(t triple.Triple, v *DeletionValue) error {
	data, err := v.MarshalBinary()
	if err != nil {
		return err
	}

	if err := s.indexes[indexDeletions].Set(t.Key(), data); err != nil {
		return errors.Wrapf(err, "write deletion value to %s", s.indexes[indexDeletions].Name())
	}
	return s.countWrite()
}

// insertAdditionAt is InsertAddition reusing c, an SPO index cursor, to read
// and replace the stored record in place.
func (s *TripleStore) insertAdditionAt(c *kv.Cursor, t triple.Triple, patchID int, localChange bool) error {
	key := t.Key()
	k, data := c.Seek(key)
	found := k != nil && bytes.Equal(k, key)

	v := &AdditionValue{}
	if found {
		var err error
		if v, err = unmarshalAdditionValue(data); err != nil {
			return errors.Wrapf(err, "decode addition value of %s", t)
		}
	}
	if err := v.Add(AdditionElement{PatchID: patchID, LocalChange: localChange}); err != nil {
		return errors.Wrapf(err, "insert addition %s", t)
	}
	if !found {
		return s.WriteAdditionValue(t, v)
	}

	encoded, err := v.MarshalBinary()
	if err != nil {
		return err
	}
	if err := c.SetValue(encoded); err != nil {
		return errors.Wrapf(err, "replace addition value of %s", t)
	}
	for _, i := range additionIndexes[1:] {
		if err := s.indexes[i].Set(key, encoded); err != nil {
			return errors.Wrapf(err, "write addition value to %s", s.indexes[i].Name())
		}
	}
	return s.countWrite()
}

// insertDeletionAt is InsertDeletion reusing c, a deletion index cursor.
func (s *TripleStore) insertDeletionAt(c *kv.Cursor, t triple.Triple, positions patch.Positions,
	patchID int, localChange bool,
) error {
	key := t.Key()
	k, data := c.Seek(key)
	found := k != nil && bytes.Equal(k, key)

	v := &DeletionValue{}
	if found {
		var err error
		if v, err = unmarshalDeletionValue(data); err != nil {
			return errors.Wrapf(err, "decode deletion value of %s", t)
		}
	}
	if err := v.Add(DeletionElement{
		PatchID:     patchID,
		LocalChange: localChange,
		Positions:   positions,
	}); err != nil {
		return errors.Wrapf(err, "insert deletion %s", t)
	}
	if !found {
		return s.WriteDeletionValue(t, v)
	}

	encoded, err := v.MarshalBinary()
	if err != nil {
		return err
	}
	if err := c.SetValue(encoded); err != nil {
		return errors.Wrapf(err, "replace deletion value of %s", t)
	}
	return s.countWrite()
}

func (s *TripleStore) countWrite() error {
	s.writeLock.Lock()
	s.writes++
	flush := s.writes >= s.flushEvery
	if flush {
		s.writes = 0
	}
	s.writeLock.Unlock()

	if !flush {
		return nil
	}
	return s.Sync()
}

// Sync writes the dirty state of all indexes to disk in parallel.
func (s *TripleStore) Sync() error {
	eg := enterrors.NewErrorGroupWrapper(s.logger, "triple store", s.basePath)
	for _, db := range s.indexes {
		if db == nil {
			continue
		}
		db := db
		eg.Go(func() error {
			return db.Sync()
		}, db.Name())
	}
	if err := eg.Wait(); err != nil {
		return errors.Wrap(err, "sync triple store")
	}

	s.metrics.IndexesFlushed(s.name)
	return nil
}

// Close closes all indexes. Every failure is logged and the combined error
// returned.
func (s *TripleStore) Close() error {
	return s.closeIndexes()
}

func (s *TripleStore) closeIndexes() error {
	var result *multierror.Error
	for i, db := range s.indexes {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil {
			s.logger.WithField("action", "triple_store_close").
				WithField("index", db.Name()).
				WithError(err).
				Error("closing index failed")
			result = multierror.Append(result, err)
		}
		s.indexes[i] = nil
	}
	return result.ErrorOrNil()
}

func (s *TripleStore) index(i indexID) *kv.DB {
	return s.indexes[i]
}
