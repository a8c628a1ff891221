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
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogListener(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	l := NewLogListener(logger, 10)

	t.Run("milestones are logged", func(t *testing.T) {
		hook.Reset()
		l.Notify("reconstructing")
		require.Len(t, hook.AllEntries(), 1)
		assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
		assert.Equal(t, "reconstructing", hook.LastEntry().Message)
	})

	t.Run("ticks are throttled per label", func(t *testing.T) {
		hook.Reset()
		for i := 1; i <= 25; i++ {
			l.Tick("written", i)
		}
		// 1, 11 and 21
		require.Len(t, hook.AllEntries(), 3)
		assert.Equal(t, 21, hook.LastEntry().Data["count"])

		l.Tick("read", 1)
		assert.Len(t, hook.AllEntries(), 4)
	})

	t.Run("a restarted count is logged again", func(t *testing.T) {
		hook.Reset()
		l.Tick("written", 2)
		assert.Len(t, hook.AllEntries(), 1)
	})
}

func TestNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		Noop.Notify("x")
		Noop.Tick("x", 1)
	})
}
