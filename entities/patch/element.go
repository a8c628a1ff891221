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

import "github.com/weaviate/patchstore/entities/triple"

// Element is a triple annotated as addition or deletion.
//
// LocalChange marks an element whose state was inferred while merging a patch
// into the previous version, as opposed to a change relative to the base
// dataset. A triple that was added by an earlier patch and is deleted again
// is such a local change.
type Element struct {
	Triple      triple.Triple
	Addition    bool
	LocalChange bool
}

func Addition(t triple.Triple) Element {
	return Element{Triple: t, Addition: true}
}

func Deletion(t triple.Triple) Element {
	return Element{Triple: t}
}

func (e Element) String() string {
	sign := "-"
	if e.Addition {
		sign = "+"
	}
	s := sign + " " + e.Triple.String()
	if e.LocalChange {
		s += " (local)"
	}
	return s
}
