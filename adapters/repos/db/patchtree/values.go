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
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/weaviate/patchstore/entities/patch"
)

const (
	// AdditionRecordSize is the serialized size of one addition entry: the
	// patch id and a flags byte.
	AdditionRecordSize = 4 + 1
	// DeletionRecordSize additionally holds the seven positions.
	DeletionRecordSize = 4 + 1 + 7*4

	flagAddition    byte = 1 << 0
	flagLocalChange byte = 1 << 1
)

var (
	ErrDuplicatePatchEntry       = errors.New("triple already has an entry for this patch id")
	ErrSerializationSizeMismatch = errors.New("serialized value size is not a multiple of the record size")
	ErrCorruptValue              = errors.New("corrupt value record")
	ErrInvalidPatchID            = errors.New("invalid patch id")
)

func validatePatchID(id int) error {
	if id < 0 || uint64(id) > math.MaxUint32 {
		return errors.Wrapf(ErrInvalidPatchID, "%d", id)
	}
	return nil
}

// AdditionElement records that a triple was visible as an addition at PatchID.
type AdditionElement struct {
	PatchID     int
	LocalChange bool
}

// DeletionElement records that a triple was deleted at PatchID, together with
// its ranks among the deletions of that version.
type DeletionElement struct {
	PatchID     int
	LocalChange bool
	Positions   patch.Positions
}

// searchPatchID returns the index of the first element with a patch id not
// less than id.
func searchPatchID[T any](elements []T, id int, patchID func(T) int) int {
	return sort.Search(len(elements), func(i int) bool {
		return patchID(elements[i]) >= id
	})
}

// latestIndex returns the index of the element with the greatest patch id
// not greater than id, or -1.
func latestIndex[T any](elements []T, id int, patchID func(T) int) int {
	i := searchPatchID(elements, id, patchID)
	if i < len(elements) && patchID(elements[i]) == id {
		return i
	}
	return i - 1
}

func additionPatchID(e AdditionElement) int { return e.PatchID }
func deletionPatchID(e DeletionElement) int { return e.PatchID }

// AdditionValue is the addition history of one triple, ordered by patch id.
type AdditionValue struct {
	elements []AdditionElement
}

// Add inserts e at its patch id position. It fails without modifying the
// value if an entry for the same patch id exists.
func (v *AdditionValue) Add(e AdditionElement) error {
	if err := validatePatchID(e.PatchID); err != nil {
		return err
	}

	i := searchPatchID(v.elements, e.PatchID, additionPatchID)
	if i < len(v.elements) && v.elements[i].PatchID == e.PatchID {
		return errors.Wrapf(ErrDuplicatePatchEntry, "patch %d", e.PatchID)
	}

	v.elements = append(v.elements, AdditionElement{})
	copy(v.elements[i+1:], v.elements[i:])
	v.elements[i] = e
	return nil
}

// Get returns the entry recorded exactly at id.
func (v *AdditionValue) Get(id int) (AdditionElement, bool) {
	if i := v.Index(id); i >= 0 {
		return v.elements[i], true
	}
	return AdditionElement{}, false
}

// Index returns the ordinal of the entry for id, or -1.
func (v *AdditionValue) Index(id int) int {
	i := searchPatchID(v.elements, id, additionPatchID)
	if i < len(v.elements) && v.elements[i].PatchID == id {
		return i
	}
	return -1
}

// Latest returns the entry with the greatest patch id not greater than id.
func (v *AdditionValue) Latest(id int) (AdditionElement, bool) {
	if i := latestIndex(v.elements, id, additionPatchID); i >= 0 {
		return v.elements[i], true
	}
	return AdditionElement{}, false
}

func (v *AdditionValue) IsLocalChange(id int) bool {
	e, ok := v.Latest(id)
	return ok && e.LocalChange
}

func (v *AdditionValue) Len() int {
	return len(v.elements)
}

func (v *AdditionValue) Elements() []AdditionElement {
	return v.elements
}

func (v *AdditionValue) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, len(v.elements)*AdditionRecordSize)
	for _, e := range v.elements {
		out = appendRecordHeader(out, e.PatchID, true, e.LocalChange)
	}
	return out, nil
}

func (v *AdditionValue) UnmarshalBinary(data []byte) error {
	if len(data)%AdditionRecordSize != 0 {
		return errors.Wrapf(ErrSerializationSizeMismatch,
			"addition value of %d bytes, record size %d", len(data), AdditionRecordSize)
	}

	elements := make([]AdditionElement, 0, len(data)/AdditionRecordSize)
	for offset := 0; offset < len(data); offset += AdditionRecordSize {
		id, addition, local := readRecordHeader(data[offset:])
		if !addition {
			return errors.Wrapf(ErrCorruptValue, "deletion record in addition value at offset %d", offset)
		}
		if n := len(elements); n > 0 && elements[n-1].PatchID >= id {
			return errors.Wrapf(ErrCorruptValue, "patch id %d out of order at offset %d", id, offset)
		}
		elements = append(elements, AdditionElement{PatchID: id, LocalChange: local})
	}
	v.elements = elements
	return nil
}

// String renders the patch ids, marking local changes with a star, e.g.
// {0,1*,10}.
func (v *AdditionValue) String() string {
	parts := make([]string, len(v.elements))
	for i, e := range v.elements {
		parts[i] = fmt.Sprintf("%d", e.PatchID)
		if e.LocalChange {
			parts[i] += "*"
		}
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// DeletionValue is the deletion history of one triple, ordered by patch id.
type DeletionValue struct {
	elements []DeletionElement
}

// Add inserts e at its patch id position. It fails without modifying the
// value if an entry for the same patch id exists.
func (v *DeletionValue) Add(e DeletionElement) error {
	if err := validatePatchID(e.PatchID); err != nil {
		return err
	}

	i := searchPatchID(v.elements, e.PatchID, deletionPatchID)
	if i < len(v.elements) && v.elements[i].PatchID == e.PatchID {
		return errors.Wrapf(ErrDuplicatePatchEntry, "patch %d", e.PatchID)
	}

	v.elements = append(v.elements, DeletionElement{})
	copy(v.elements[i+1:], v.elements[i:])
	v.elements[i] = e
	return nil
}

func (v *DeletionValue) Get(id int) (DeletionElement, bool) {
	if i := v.Index(id); i >= 0 {
		return v.elements[i], true
	}
	return DeletionElement{}, false
}

func (v *DeletionValue) Index(id int) int {
	i := searchPatchID(v.elements, id, deletionPatchID)
	if i < len(v.elements) && v.elements[i].PatchID == id {
		return i
	}
	return -1
}

func (v *DeletionValue) Latest(id int) (DeletionElement, bool) {
	if i := latestIndex(v.elements, id, deletionPatchID); i >= 0 {
		return v.elements[i], true
	}
	return DeletionElement{}, false
}

func (v *DeletionValue) IsLocalChange(id int) bool {
	e, ok := v.Latest(id)
	return ok && e.LocalChange
}

func (v *DeletionValue) Len() int {
	return len(v.elements)
}

func (v *DeletionValue) Elements() []DeletionElement {
	return v.elements
}

func (v *DeletionValue) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, len(v.elements)*DeletionRecordSize)
	for _, e := range v.elements {
		out = appendRecordHeader(out, e.PatchID, false, e.LocalChange)
		p := e.Positions
		for _, pos := range [7]uint32{p.SP, p.SO, p.S, p.PO, p.P, p.O, p.All} {
			out = binary.LittleEndian.AppendUint32(out, pos)
		}
	}
	return out, nil
}

func (v *DeletionValue) UnmarshalBinary(data []byte) error {
	if len(data)%DeletionRecordSize != 0 {
		return errors.Wrapf(ErrSerializationSizeMismatch,
			"deletion value of %d bytes, record size %d", len(data), DeletionRecordSize)
	}

	elements := make([]DeletionElement, 0, len(data)/DeletionRecordSize)
	for offset := 0; offset < len(data); offset += DeletionRecordSize {
		record := data[offset : offset+DeletionRecordSize]
		id, addition, local := readRecordHeader(record)
		if addition {
			return errors.Wrapf(ErrCorruptValue, "addition record in deletion value at offset %d", offset)
		}
		if n := len(elements); n > 0 && elements[n-1].PatchID >= id {
			return errors.Wrapf(ErrCorruptValue, "patch id %d out of order at offset %d", id, offset)
		}

		pos := record[AdditionRecordSize:]
		elements = append(elements, DeletionElement{
			PatchID:     id,
			LocalChange: local,
			Positions: patch.Positions{
				SP:  binary.LittleEndian.Uint32(pos[0:4]),
				SO:  binary.LittleEndian.Uint32(pos[4:8]),
				S:   binary.LittleEndian.Uint32(pos[8:12]),
				PO:  binary.LittleEndian.Uint32(pos[12:16]),
				P:   binary.LittleEndian.Uint32(pos[16:20]),
				O:   binary.LittleEndian.Uint32(pos[20:24]),
				All: binary.LittleEndian.Uint32(pos[24:28]),
			},
		})
	}
	v.elements = elements
	return nil
}

// String renders every entry as pid:positions, e.g.
// {0:{ 1 2 3 4 5 6 7 },10:{ 742 743 744 745 746 747 748 }}.
func (v *DeletionValue) String() string {
	parts := make([]string, len(v.elements))
	for i, e := range v.elements {
		parts[i] = fmt.Sprintf("%d:%s", e.PatchID, e.Positions)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func appendRecordHeader(out []byte, id int, addition, local bool) []byte {
	var flags byte
	if addition {
		flags |= flagAddition
	}
	if local {
		flags |= flagLocalChange
	}
	out = binary.LittleEndian.AppendUint32(out, uint32(id))
	return append(out, flags)
}

func readRecordHeader(record []byte) (id int, addition, local bool) {
	id = int(binary.LittleEndian.Uint32(record[0:4]))
	flags := record[4]
	return id, flags&flagAddition != 0, flags&flagLocalChange != 0
}

func unmarshalAdditionValue(data []byte) (*AdditionValue, error) {
	v := &AdditionValue{}
	if len(data) == 0 {
		return v, nil
	}
	if err := v.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return v, nil
}

func unmarshalDeletionValue(data []byte) (*DeletionValue, error) {
	v := &DeletionValue{}
	if len(data) == 0 {
		return v, nil
	}
	if err := v.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return v, nil
}
