// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package optimizer implements the lifecycle façade of spec.md §4.5: owns
// the factor list and variable index, binds factors to offsets in the
// state vector, sequences linearize/solve/retract, and exposes covariance
// extraction via Schur-complement marginalization.
package optimizer

import (
	"github.com/curioloop/nlsq/key"
	"github.com/curioloop/nlsq/lm"
	"github.com/curioloop/nlsq/logging"
)

// Options configures an Optimizer at construction. Go's functional/struct
// options idiom replaces the reference design's positional constructor
// arguments (see optimizer.h's Optimizer(params, factors, epsilon, keys,
// name, debug_stats, check_derivatives)), but the same knobs are carried.
type Options struct {
	// Name identifies the optimizer in logs and stats. Defaults to
	// "nlsq-optimize-<random suffix>" when left empty.
	Name string
	// Epsilon regularizes manifold operations near singularities. Defaults
	// to 1e-9.
	Epsilon float64
	// Params are the LM driver's knobs. Defaults to lm.DefaultParams().
	Params lm.Params
	// OptimizedKeys, if non-nil, is the explicit set of keys to optimize.
	// Defaults to the union of all keys referenced by any factor.
	OptimizedKeys []key.Key
	// LogLevel controls structured logging verbosity. Defaults to
	// logging.LevelNoop.
	LogLevel logging.Level
	// DisableDebugStats turns off retention of per-iteration IterationStats
	// records on the Result returned by Optimize (the inverse of
	// optimizer.h's debug_stats constructor flag, since Go's zero value for
	// a bool is false and the historical default here is to keep full
	// per-iteration history). When true, Stats() reports only the final
	// iteration's record, avoiding the slice growth of a long-running
	// optimize loop that never inspects per-iteration history.
	DisableDebugStats bool
}

func (o Options) withDefaults() Options {
	if o.Epsilon == 0 {
		o.Epsilon = 1e-9
	}
	if (o.Params == lm.Params{}) {
		o.Params = lm.DefaultParams()
	}
	return o
}
