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

package main

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/weaviate/patchstore/entities/patch"
	"github.com/weaviate/patchstore/entities/triple"
	"github.com/weaviate/patchstore/usecases/dictionary"
	"github.com/weaviate/patchstore/usecases/patchfile"
)

type tripleArgs struct {
	Subject   string `positional-arg-name:"subject"`
	Predicate string `positional-arg-name:"predicate"`
	Object    string `positional-arg-name:"object"`
}

// pattern resolves the arguments without adding terms. Empty and "?"
// arguments are wildcards. found is false if a term is unknown, so nothing
// can match.
func (t tripleArgs) pattern(dict *dictionary.Manager) (p triple.Triple, found bool, err error) {
	p, err = dict.Pattern(t.Subject, t.Predicate, t.Object)
	if errors.Is(err, dictionary.ErrNotFound) {
		return triple.Triple{}, false, nil
	}
	if err != nil {
		return triple.Triple{}, false, err
	}
	return p, true, nil
}

type appendCommand struct {
	app *app

	ID     int  `long:"id" required:"true" description:"patch id to append"`
	Unsafe bool `long:"unsafe" description:"skip the duplicate check"`
	Buffer int  `long:"buffer" default:"4096" description:"number of changes read ahead"`
	Args   struct {
		Files []string `positional-arg-name:"patch-file" required:"1"`
	} `positional-args:"yes"`
}

func (c *appendCommand) Execute(args []string) error {
	s, err := c.app.open(true)
	if err != nil {
		return err
	}

	err = c.run(s)
	if closeErr := s.close(); err == nil {
		err = closeErr
	}
	return err
}

func (c *appendCommand) run(s *session) error {
	combined := patch.NewCombinedIterator()
	for _, file := range c.Args.Files {
		r, err := patchfile.Open(file, s.dict)
		if err != nil {
			combined.Close()
			return err
		}
		combined.Append(r)
	}

	it := patch.NewBufferedIterator(combined, c.Buffer, s.logger)
	p, err := patch.Collect(it, s.tree.Comparator())
	if closeErr := it.Close(); err == nil && closeErr != nil {
		err = errors.Wrap(closeErr, "close patch files")
	}
	if err != nil {
		return errors.Wrap(err, "read patch")
	}

	s.logger.WithField("action", "append").
		WithField("patch_id", c.ID).
		WithField("files", len(c.Args.Files)).
		WithField("read", combined.Passed()).
		Info("read patch files")

	if c.Unsafe {
		err = s.tree.AppendUnsafe(p, c.ID)
	} else {
		err = s.tree.Append(p, c.ID)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(c.app.out, "appended patch %d: %d additions, %d deletions\n",
		c.ID, p.Additions(), p.Deletions())
	return nil
}

type reconstructCommand struct {
	app *app

	ID                  int  `long:"id" required:"true" description:"patch id to reconstruct"`
	IncludeLocalChanges bool `long:"include-local-changes" description:"also print changes undone relative to the base dataset"`
}

func (c *reconstructCommand) Execute(args []string) error {
	return c.app.read(func(s *session) error {
		w := patchfile.NewWriter(c.app.out, s.dict)
		if c.IncludeLocalChanges {
			it := s.tree.PatchIterator(c.ID, false)
			defer it.Close()
			_, err := w.WriteAll(it)
			return err
		}

		p, err := s.tree.ReconstructPatch(c.ID)
		if err != nil {
			return err
		}
		_, err = w.WriteAll(patch.NewSliceIterator(p.Elements()))
		return err
	})
}

type containsCommand struct {
	app *app

	ID         int        `long:"id" required:"true" description:"patch id to look at"`
	Deletion   bool       `long:"deletion" description:"look for a deletion instead of an addition"`
	IgnoreType bool       `long:"ignore-type" description:"match additions and deletions alike"`
	Args       tripleArgs `positional-args:"yes" required:"yes"`
}

func (c *containsCommand) Execute(args []string) error {
	return c.app.read(func(s *session) error {
		t, found, err := c.Args.pattern(s.dict)
		if err != nil {
			return err
		}

		contained := false
		if found {
			e := patch.Element{Triple: t, Addition: !c.Deletion}
			if contained, err = s.tree.Contains(e, c.ID, c.IgnoreType); err != nil {
				return err
			}
		}
		fmt.Fprintln(c.app.out, contained)
		return nil
	})
}

type deletionsCommand struct {
	app *app

	ID     int        `long:"id" required:"true" description:"version to look at"`
	Offset string     `long:"offset" description:"triple to start at, e.g. '<http://ex.org/s> <http://ex.org/p> <http://ex.org/o>'"`
	Limit  int        `long:"limit" description:"maximum number of triples to print, 0 for all"`
	Args   tripleArgs `positional-args:"yes"`
}

func (c *deletionsCommand) Execute(args []string) error {
	return c.app.read(func(s *session) error {
		pattern, found, err := c.Args.pattern(s.dict)
		if err != nil || !found {
			return err
		}

		var offset triple.Triple
		if c.Offset != "" {
			subj, pred, obj, err := patchfile.ParseTriple(c.Offset)
			if err != nil {
				return errors.Wrap(err, "parse offset")
			}
			if offset, err = s.dict.Pattern(subj, pred, obj); err != nil {
				return errors.Wrap(err, "resolve offset")
			}
		}

		it := s.tree.DeletionIteratorFrom(offset, c.ID, pattern)
		defer it.Close()

		for n := 0; (c.Limit == 0 || n < c.Limit) && it.Next(); n++ {
			line, err := patchfile.Format(patch.Deletion(it.Triple()), s.dict)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.app.out, "%d\t%s\n", it.Position(), line)
		}
		return it.Err()
	})
}

type additionsCommand struct {
	app *app

	ID     int        `long:"id" required:"true" description:"version to look at"`
	Offset int        `long:"offset" description:"number of matching triples to skip"`
	Limit  int        `long:"limit" description:"maximum number of triples to print, 0 for all"`
	Args   tripleArgs `positional-args:"yes"`
}

func (c *additionsCommand) Execute(args []string) error {
	if c.Offset < 0 {
		return errors.Errorf("offset must not be negative, got %d", c.Offset)
	}

	return c.app.read(func(s *session) error {
		pattern, found, err := c.Args.pattern(s.dict)
		if err != nil || !found {
			return err
		}

		it, err := s.tree.AdditionIteratorFrom(c.Offset, c.ID, pattern)
		if err != nil {
			return err
		}
		defer it.Close()

		for n := 0; (c.Limit == 0 || n < c.Limit) && it.Next(); n++ {
			line, err := patchfile.Format(patch.Addition(it.Triple()), s.dict)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.app.out, line)
		}
		return it.Err()
	})
}

type countCommand struct {
	app *app

	ID   int        `long:"id" required:"true" description:"version to look at"`
	Args tripleArgs `positional-args:"yes"`
}

func (c *countCommand) Execute(args []string) error {
	return c.app.read(func(s *session) error {
		pattern, found, err := c.Args.pattern(s.dict)
		if err != nil {
			return err
		}
		if !found {
			fmt.Fprintln(c.app.out, 0)
			return nil
		}

		count, last, err := s.tree.DeletionCount(pattern, c.ID)
		if err != nil {
			return err
		}
		if count == 0 {
			fmt.Fprintln(c.app.out, 0)
			return nil
		}

		line, err := patchfile.Format(patch.Deletion(last), s.dict)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.app.out, "%d\t%s\n", count, line)
		return nil
	})
}

type versionsCommand struct {
	app *app

	Args tripleArgs `positional-args:"yes" required:"yes"`
}

func (c *versionsCommand) Execute(args []string) error {
	return c.app.read(func(s *session) error {
		t, found, err := c.Args.pattern(s.dict)
		if err != nil {
			return err
		}

		var additions, deletions []uint64
		if found {
			add, del, err := s.tree.Versions(t)
			if err != nil {
				return err
			}
			additions, deletions = add.ToArray(), del.ToArray()
		}

		fmt.Fprintf(c.app.out, "additions: %s\n", joinIDs(additions))
		fmt.Fprintf(c.app.out, "deletions: %s\n", joinIDs(deletions))
		return nil
	})
}

func joinIDs(ids []uint64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ",")
}

// read runs fn on a session that leaves the dictionary untouched.
func (a *app) read(fn func(s *session) error) error {
	s, err := a.open(false)
	if err != nil {
		return err
	}

	err = fn(s)
	if closeErr := s.close(); err == nil {
		err = closeErr
	}
	return err
}
