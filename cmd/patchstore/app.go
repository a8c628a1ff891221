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
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/weaviate/patchstore/adapters/repos/db/kv"
	"github.com/weaviate/patchstore/adapters/repos/db/patchtree"
	"github.com/weaviate/patchstore/usecases/config"
	"github.com/weaviate/patchstore/usecases/dictionary"
	"github.com/weaviate/patchstore/usecases/monitoring"
	"github.com/weaviate/patchstore/usecases/progress"
)

const progressEvery = 100000

// Options are the global command line options.
type Options struct {
	config.Flags `group:"Store Options"`
}

type app struct {
	opts   Options
	out    io.Writer
	cfg    config.Config
	logger logrus.FieldLogger
}

func newApp(out io.Writer) *app {
	return &app{out: out}
}

func (a *app) parser() *flags.Parser {
	parser := flags.NewParser(&a.opts, flags.Default)
	parser.CommandHandler = func(command flags.Commander, args []string) error {
		if command == nil {
			return nil
		}
		if err := a.setup(); err != nil {
			return err
		}
		return command.Execute(args)
	}

	commands := []struct {
		name, short, long string
		data              interface{}
	}{
		{"append", "Append a patch", "Append the patch read from one or more patch files.", &appendCommand{app: a}},
		{"reconstruct", "Print a patch", "Print the changes of a version relative to the first version.", &reconstructCommand{app: a}},
		{"contains", "Check a triple", "Report whether a triple is recorded exactly at a version.", &containsCommand{app: a}},
		{"deletions", "List deletions", "List the triples matching a pattern that are deleted at a version.", &deletionsCommand{app: a}},
		{"additions", "List additions", "List the triples matching a pattern that are added at a version.", &additionsCommand{app: a}},
		{"count", "Count deletions", "Count the triples matching a pattern that are deleted at a version.", &countCommand{app: a}},
		{"versions", "List versions of a triple", "List the patch ids recording a triple.", &versionsCommand{app: a}},
	}
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, c.long, c.data); err != nil {
			// only fails on malformed struct tags
			panic(err)
		}
	}
	return parser
}

func (a *app) setup() error {
	bootstrap := logrus.New()
	cfg, err := config.LoadConfig(&a.opts.Flags, bootstrap)
	if err != nil {
		return err
	}
	logger, err := cfg.Logging.Logger()
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger.WithField("app", "patchstore")
	return nil
}

// session is a store opened for the duration of one command.
type session struct {
	cfg      config.Config
	logger   logrus.FieldLogger
	dict     *dictionary.Manager
	tree     *patchtree.PatchTree
	registry *prometheus.Registry
	write    bool
	started  time.Time
}

// open loads the dictionary and the patch tree. Only write sessions persist
// the dictionary on close.
func (a *app) open(write bool) (*session, error) {
	cfg := a.cfg
	if write && cfg.Store.ReadOnly {
		return nil, errors.New("store is configured read-only")
	}

	if write {
		if err := os.MkdirAll(cfg.Persistence.DataPath, 0o755); err != nil {
			return nil, errors.Wrap(err, "create data path")
		}
	}

	dict, err := dictionary.Load(cfg.Persistence.DictionaryPath())
	if err != nil {
		return nil, errors.Wrap(err, "load dictionary")
	}

	indexOpts := []kv.Option{
		kv.WithReadOnly(cfg.Store.ReadOnly),
		kv.WithNoSync(cfg.Store.NoSync),
		kv.WithOpenTimeout(cfg.Store.OpenTimeout),
	}
	if cfg.Store.MemoryMapSize > 0 {
		indexOpts = append(indexOpts, kv.WithInitialMmapSize(cfg.Store.MemoryMapSize))
	}
	if cfg.Store.BloomFilterCapacity > 0 {
		indexOpts = append(indexOpts,
			kv.WithBloomFilter(cfg.Store.BloomFilterCapacity, cfg.Store.BloomFalsePositiveRate))
	}

	opts := []patchtree.Option{
		patchtree.WithFlushTriplesCount(cfg.Store.FlushTriplesCount),
		patchtree.WithIndexOptions(indexOpts...),
		patchtree.WithProgressListener(progress.NewLogListener(a.logger, progressEvery)),
	}

	var registry *prometheus.Registry
	if cfg.Monitoring.Enabled {
		registry = prometheus.NewRegistry()
		opts = append(opts, patchtree.WithMetrics(monitoring.NewPrometheusMetrics(registry)))
	}

	tree, err := patchtree.New(cfg.Persistence.BasePath(), dict, a.logger, opts...)
	if err != nil {
		return nil, err
	}

	return &session{
		cfg:      cfg,
		logger:   a.logger,
		dict:     dict,
		tree:     tree,
		registry: registry,
		write:    write,
		started:  time.Now(),
	}, nil
}

func (s *session) close() error {
	var result *multierror.Error

	if err := s.tree.Close(); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "close patch tree"))
	}
	if s.write {
		if err := s.dict.Save(s.cfg.Persistence.DictionaryPath()); err != nil {
			result = multierror.Append(result, errors.Wrap(err, "save dictionary"))
		}
	}
	if s.registry != nil {
		if err := prometheus.WriteToTextfile(s.cfg.TextfilePath(), s.registry); err != nil {
			result = multierror.Append(result, errors.Wrap(err, "write metrics"))
		}
	}

	s.logger.WithField("action", "close_store").
		WithField("took", time.Since(s.started)).
		Debug("store closed")

	return result.ErrorOrNil()
}
