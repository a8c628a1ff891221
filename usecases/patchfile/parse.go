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

package patchfile

import (
	"io"
	"strings"

	"github.com/knakk/rdf"
	"github.com/pkg/errors"
)

var ErrSyntax = errors.New("syntax error")

// Line is one parsed patch line. Terms are in their N-Triples form.
type Line struct {
	Addition  bool
	Subject   string
	Predicate string
	Object    string
}

// ParseLine parses a line of the form "+ <s> <p> <o> ." or "- <s> <p> <o> .".
// ok is false for blank lines and comments.
func ParseLine(text string) (l Line, ok bool, err error) {
	text = strings.TrimLeft(text, " \t")
	if text == "" || text[0] == '#' {
		return Line{}, false, nil
	}

	switch text[0] {
	case '+':
		l.Addition = true
	case '-':
	default:
		return Line{}, false, errors.Wrapf(ErrSyntax, "expected '+' or '-', got %q", text[0])
	}

	t, err := decodeTriple(text[1:])
	if err != nil {
		return Line{}, false, err
	}
	l.Subject, l.Predicate, l.Object = terms(t)
	return l, true, nil
}

// ParseTriple parses a single triple, "<s> <p> <o>", optionally followed by
// a dot.
func ParseTriple(text string) (s, p, o string, err error) {
	text = strings.TrimSpace(text)
	if !strings.HasSuffix(text, ".") {
		text += " ."
	}

	t, err := decodeTriple(text)
	if err != nil {
		return "", "", "", err
	}
	s, p, o = terms(t)
	return s, p, o, nil
}

// decodeTriple decodes text as exactly one N-Triples statement.
func decodeTriple(text string) (rdf.Triple, error) {
	dec := rdf.NewTripleDecoder(strings.NewReader(text), rdf.NTriples)

	t, err := dec.Decode()
	switch {
	case err == io.EOF:
		return rdf.Triple{}, errors.Wrap(ErrSyntax, "expected a triple")
	case err != nil:
		drain(dec)
		return rdf.Triple{}, errors.Wrap(ErrSyntax, err.Error())
	}

	if _, err := dec.Decode(); err != io.EOF {
		drain(dec)
		return rdf.Triple{}, errors.Wrap(ErrSyntax, "unexpected trailing input")
	}
	return t, nil
}

// drain consumes the remaining tokens of a failed decode, the lexer only
// stops once they are read.
func drain(dec rdf.TripleDecoder) {
	for {
		if _, err := dec.Decode(); err == io.EOF {
			return
		}
	}
}

func terms(t rdf.Triple) (s, p, o string) {
	return t.Subj.Serialize(rdf.NTriples),
		t.Pred.Serialize(rdf.NTriples),
		t.Obj.Serialize(rdf.NTriples)
}
