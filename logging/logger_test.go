// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNilLoggerIsSafeNoop(t *testing.T) {
	var l *Logger
	l.Iteration(0, 1, 1, 1, true)
	l.DerivativeMismatch(0, 1)
	l.Terminal("CONVERGED", 0, 1)
}

func TestLevelNoopSuppressesOutput(t *testing.T) {
	l := New(LevelNoop, "test")
	// Nothing to assert on output directly; this just exercises the
	// level-gated early return without panicking.
	l.Iteration(0, 1, 1, 1, true)
	l.DerivativeMismatch(0, 1)
	l.Terminal("CONVERGED", 0, 1)
}

func TestNewWithLoggerWrapsCallerLogger(t *testing.T) {
	base := logrus.New()
	l := NewWithLogger(LevelSummary, "my-optimizer", base)
	if l == nil || l.entry == nil {
		t.Fatal("expected a logger wrapping the caller-provided base")
	}
	if l.entry.Logger != base {
		t.Fatal("expected the entry to retain the caller's *logrus.Logger")
	}
}
