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

package progress

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Listener observes long running operations. It never influences them.
type Listener interface {
	// Notify reports a milestone.
	Notify(msg string)
	// Tick reports that count items of the labelled step are done.
	Tick(label string, count int)
}

type noop struct{}

func (noop) Notify(string)    {}
func (noop) Tick(string, int) {}

// Noop discards all notifications.
var Noop Listener = noop{}

// LogListener logs milestones at info level and every n-th tick of a label
// at debug level.
type LogListener struct {
	logger logrus.FieldLogger
	every  int

	mu   sync.Mutex
	last map[string]int
}

func NewLogListener(logger logrus.FieldLogger, every int) *LogListener {
	if every < 1 {
		every = 1
	}
	return &LogListener{
		logger: logger,
		every:  every,
		last:   map[string]int{},
	}
}

func (l *LogListener) Notify(msg string) {
	l.logger.WithField("action", "progress").Info(msg)
}

func (l *LogListener) Tick(label string, count int) {
	l.mu.Lock()
	last, seen := l.last[label]
	due := !seen || count < last || count-last >= l.every
	if due {
		l.last[label] = count
	}
	l.mu.Unlock()

	if !due {
		return
	}
	l.logger.WithField("action", "progress").
		WithField("step", label).
		WithField("count", count).
		Debug("progress")
}
