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

// Package patchfile reads and writes patches as text, one change per line:
//
//	+ <http://example.org/s> <http://example.org/p> "added" .
//	- <http://example.org/s> <http://example.org/p> _:deleted .
//
// Terms use the N-Triples syntax. Lines starting with '#' and blank lines are
// ignored.
package patchfile

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/weaviate/patchstore/entities/patch"
	"github.com/weaviate/patchstore/entities/triple"
)

const maxLineSize = 1 << 20

// Encoder turns terms into triple identifiers, adding unknown terms.
type Encoder interface {
	Encode(s, p, o string) (triple.Triple, error)
}

// Decoder turns triple identifiers back into terms.
type Decoder interface {
	Decode(t triple.Triple) (s, p, o string, err error)
}

// Reader yields the elements of a patch file. It implements patch.Iterator.
type Reader struct {
	scanner *bufio.Scanner
	closer  io.Closer
	dict    Encoder
	line    int
	err     error
}

func NewReader(r io.Reader, dict Encoder) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	rd := &Reader{scanner: scanner, dict: dict}
	if c, ok := r.(io.Closer); ok {
		rd.closer = c
	}
	return rd
}

// Open reads the patch file at path. Close releases the file.
func Open(path string, dict Encoder) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open patch file")
	}
	return NewReader(f, dict), nil
}

func (r *Reader) Next() (patch.Element, bool) {
	if r.err != nil {
		return patch.Element{}, false
	}

	for r.scanner.Scan() {
		r.line++
		l, ok, err := ParseLine(r.scanner.Text())
		if err != nil {
			r.err = errors.Wrapf(err, "line %d", r.line)
			return patch.Element{}, false
		}
		if !ok {
			continue
		}

		t, err := r.dict.Encode(l.Subject, l.Predicate, l.Object)
		if err != nil {
			r.err = errors.Wrapf(err, "line %d", r.line)
			return patch.Element{}, false
		}
		return patch.Element{Triple: t, Addition: l.Addition}, true
	}

	if err := r.scanner.Err(); err != nil {
		r.err = errors.Wrapf(err, "line %d", r.line+1)
	}
	return patch.Element{}, false
}

// Line is the number of the last line read.
func (r *Reader) Line() int {
	return r.line
}

func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Writer prints elements in the format read by Reader.
type Writer struct {
	w    *bufio.Writer
	dict Decoder
}

func NewWriter(w io.Writer, dict Decoder) *Writer {
	return &Writer{w: bufio.NewWriter(w), dict: dict}
}

func (w *Writer) Write(e patch.Element) error {
	line, err := Format(e, w.dict)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w.w, line)
	return err
}

// Format renders e as a single patch line without the line break.
func Format(e patch.Element, dict Decoder) (string, error) {
	s, p, o, err := dict.Decode(e.Triple)
	if err != nil {
		return "", errors.Wrapf(err, "decode %s", e.Triple)
	}
	op := '-'
	if e.Addition {
		op = '+'
	}
	return fmt.Sprintf("%c %s %s %s .", op, s, p, o), nil
}

// WriteAll writes every element of it and flushes.
func (w *Writer) WriteAll(it patch.Iterator) (int, error) {
	n := 0
	for {
		e, ok := it.Next()
		if !ok {
			break
		}
		if err := w.Write(e); err != nil {
			return n, err
		}
		n++
	}
	if err := it.Err(); err != nil {
		return n, err
	}
	return n, w.Flush()
}

func (w *Writer) Flush() error {
	return w.w.Flush()
}
