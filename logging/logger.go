// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package logging adapts the teacher's lbfgsb.Logger shape (a level plus
// writers) onto github.com/sirupsen/logrus, so per-iteration optimizer
// records carry structured fields instead of freeform printf output.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Level controls the frequency and type of logger output, keeping the
// teacher's named levels (lbfgsb.LogLevel) rather than logrus's own scale.
type Level int

const (
	// LevelNoop emits nothing.
	LevelNoop Level = iota
	// LevelSummary logs one Info line per accepted iteration, derivative-
	// check mismatches at Warn, and the terminal status.
	LevelSummary
	// LevelVerbose additionally logs rejected steps (with their increased
	// lambda) at Debug level.
	LevelVerbose
)

// Logger wraps a *logrus.Logger with the optimizer's fixed field set.
type Logger struct {
	level Level
	entry *logrus.Entry
}

// New returns a Logger at the given level. name is attached to every
// record as the "optimizer" field, matching spec.md §4.5's per-optimizer
// name.
func New(level Level, name string) *Logger {
	base := logrus.New()
	base.SetOutput(os.Stderr)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level >= LevelVerbose {
		base.SetLevel(logrus.DebugLevel)
	}
	return &Logger{level: level, entry: base.WithField("optimizer", name)}
}

// NewWithLogger wraps an existing *logrus.Logger instead of constructing
// one, so callers embedding this optimizer in a larger service can route
// its output through their own logger.
func NewWithLogger(level Level, name string, base *logrus.Logger) *Logger {
	return &Logger{level: level, entry: base.WithField("optimizer", name)}
}

// Iteration records one LM iteration (spec.md §3 "Optimization stats").
func (l *Logger) Iteration(iteration int, err, lambda, stepNorm float64, accepted bool) {
	if l == nil || l.level == LevelNoop {
		return
	}
	fields := logrus.Fields{
		"iteration": iteration,
		"error":     err,
		"lambda":    lambda,
		"step_norm": stepNorm,
		"accepted":  accepted,
	}
	if accepted {
		l.entry.WithFields(fields).Info("lm step")
	} else if l.level >= LevelVerbose {
		l.entry.WithFields(fields).Debug("lm step rejected")
	}
}

// DerivativeMismatch records a check_derivatives failure (spec.md §7,
// "reported but non-fatal by default").
func (l *Logger) DerivativeMismatch(factorIndex int, maxDeviation float64) {
	if l == nil || l.level == LevelNoop {
		return
	}
	l.entry.WithFields(logrus.Fields{
		"factor":        factorIndex,
		"max_deviation": maxDeviation,
	}).Warn("derivative check mismatch")
}

// Terminal records the final LM status when an optimize() call completes.
func (l *Logger) Terminal(status string, finalError float64, iterations int) {
	if l == nil || l.level == LevelNoop {
		return
	}
	l.entry.WithFields(logrus.Fields{
		"status":      status,
		"final_error": finalError,
		"iterations":  iterations,
	}).Info("optimize finished")
}
