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

package dictionary

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

const containerVersion = 1

type container struct {
	Version uint32      `msgpack:"version"`
	Base    [3][]string `msgpack:"base"`
	Patch   [3][]string `msgpack:"patch"`
}

// Save writes both dictionaries to path, replacing it atomically.
func (m *Manager) Save(path string) error {
	m.lock.RLock()
	data, err := msgpack.Marshal(container{
		Version: containerVersion,
		Base:    m.base.terms,
		Patch:   m.patch,
	})
	m.lock.RUnlock()
	if err != nil {
		return errors.Wrap(err, "marshal dictionary")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create dictionary dir")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrap(err, "write dictionary")
	}
	return errors.Wrap(os.Rename(tmp, path), "replace dictionary")
}

// Load reads a dictionary written by Save. A missing file yields an empty
// dictionary.
func Load(path string) (*Manager, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewManager(nil), nil
		}
		return nil, errors.Wrap(err, "read dictionary")
	}

	var c container
	if err := msgpack.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrap(err, "unmarshal dictionary")
	}
	if c.Version != containerVersion {
		return nil, errors.Errorf("unsupported dictionary version %d", c.Version)
	}

	m := NewManager(&Base{terms: c.Base})
	for role, terms := range c.Patch {
		m.patch[role] = terms
		for i, term := range terms {
			m.index[role][term] = uint32(i + 1)
		}
	}
	return m, nil
}
