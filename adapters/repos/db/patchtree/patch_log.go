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
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/weaviate/sroar"

	"github.com/weaviate/patchstore/adapters/repos/db/kv"
)

var ErrPatchOrder = errors.New("patch id is not above the latest appended patch")

var patchLogKey = []byte("appended")

// patchLog persists the ids of all appended patches as a bitmap in its own
// index file.
type patchLog struct {
	db  *kv.DB
	ids *sroar.Bitmap
}

func openPatchLog(path string, logger logrus.FieldLogger, opts []kv.Option) (*patchLog, error) {
	db, err := kv.Open(path, kv.BytesComparator, append([]kv.Option{kv.WithLogger(logger)}, opts...)...)
	if err != nil {
		return nil, errors.Wrapf(ErrStorageOpen, "patch log %s: %v", path, err)
	}

	l := &patchLog{db: db, ids: sroar.NewBitmap()}
	value, err := db.Get(patchLogKey)
	switch {
	case errors.Is(err, kv.NotFound):
	case err != nil:
		db.Close()
		return nil, errors.Wrapf(err, "read patch log %s", path)
	default:
		l.ids = sroar.FromBufferWithCopy(value)
	}
	return l, nil
}

// check rejects an id that was appended before or that is lower than the
// latest appended one.
func (l *patchLog) check(id int) error {
	if l.ids.Contains(uint64(id)) {
		return errors.Wrapf(ErrDuplicatePatch, "patch %d is already appended", id)
	}
	if !l.ids.IsEmpty() && uint64(id) < l.ids.Maximum() {
		return errors.Wrapf(ErrPatchOrder, "patch %d, latest %d", id, l.ids.Maximum())
	}
	return nil
}

func (l *patchLog) record(id int) error {
	l.ids.Set(uint64(id))
	if err := l.db.Set(patchLogKey, l.ids.ToBuffer()); err != nil {
		return errors.Wrapf(err, "record patch %d", id)
	}
	return nil
}

func (l *patchLog) latest() (int, bool) {
	if l.ids.IsEmpty() {
		return 0, false
	}
	return int(l.ids.Maximum()), true
}

func (l *patchLog) appended() []uint64 {
	return l.ids.ToArray()
}
