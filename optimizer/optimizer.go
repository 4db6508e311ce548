// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optimizer

import (
	"fmt"
	"sort"

	"github.com/curioloop/nlsq/factor"
	"github.com/curioloop/nlsq/index"
	"github.com/curioloop/nlsq/key"
	"github.com/curioloop/nlsq/linearize"
	"github.com/curioloop/nlsq/linsolve"
	"github.com/curioloop/nlsq/lm"
	"github.com/curioloop/nlsq/logging"
	"github.com/curioloop/nlsq/values"
	"github.com/google/uuid"
)

// Optimizer owns a factor list and variable index and sequences the
// linearize/solve/retract loop (spec.md §4.5). A single Optimizer is
// stateful (cached linearization, damping state, scratch buffers) and is
// not safe to share across concurrent callers: create one per worker, per
// spec.md §5.
//
// Optimizer is explicitly non-movable/non-copyable in spirit: the
// Linearizer it owns holds precomputed offsets keyed to this Optimizer's
// own factor slice and Index, so copying an *Optimizer by value and using
// both copies concurrently would race on shared scratch buffers. noCopy
// makes `go vet`'s copylocks check flag an accidental `optimizer.Optimizer{}`
// value copy, the same trick sync.WaitGroup uses.
type Optimizer struct {
	noCopy noCopy

	factors    []*factor.Factor
	epsilon    float64
	name       string
	keys       []key.Key
	logger     *logging.Logger
	debugStats bool

	driver     *lm.Driver
	linearizer *linearize.Linearizer
	solver     *linsolve.Solver
	idx        *index.Index

	initialized bool
	lastResult  lm.Result
}

type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// New constructs an Optimizer over factors. Initialization that depends on
// the actual storage/tangent dimensions of a Values is deferred to the
// first Optimize/Linearize call, per spec.md §4.5.
func New(factors []*factor.Factor, opts Options) (*Optimizer, error) {
	if len(factors) == 0 {
		return nil, fmt.Errorf("optimizer: at least one factor is required")
	}
	opts = opts.withDefaults()
	if err := opts.Params.Validate(); err != nil {
		return nil, err
	}

	keys := opts.OptimizedKeys
	if keys == nil {
		keys = unionOfFactorKeys(factors)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("optimizer: configuration error: no keys to optimize")
	}

	name := opts.Name
	if name == "" {
		name = "nlsq-optimize-" + uuid.NewString()[:8]
	}

	return &Optimizer{
		factors:    append([]*factor.Factor{}, factors...),
		epsilon:    opts.Epsilon,
		name:       name,
		keys:       keys,
		logger:     logging.New(opts.LogLevel, name),
		debugStats: !opts.DisableDebugStats,
		driver:     lm.NewDriver(opts.Params),
	}, nil
}

func unionOfFactorKeys(factors []*factor.Factor) []key.Key {
	seen := make(map[key.Key]struct{})
	var out []key.Key
	for _, f := range factors {
		for _, k := range f.AllKeys() {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				out = append(out, k)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// IsInitialized reports whether the Optimizer's Index and Linearizer have
// been built from an actual Values.
func (o *Optimizer) IsInitialized() bool { return o.initialized }

// Keys returns the optimized keys.
func (o *Optimizer) Keys() []key.Key { return append([]key.Key{}, o.keys...) }

// Stats returns the per-iteration records from the last Optimize call.
func (o *Optimizer) Stats() []lm.IterationStats { return o.lastResult.Stats }

// Initialize builds the Index from the actual dimensions observed in
// values, initializes the Linearizer's sparsity pattern, and allocates the
// linear solver workspace. It is idempotent after the first successful
// call.
func (o *Optimizer) Initialize(vals *values.Values) error {
	if o.initialized {
		return nil
	}
	builder := index.NewBuilder(o.epsilon)
	for _, k := range o.keys {
		v, err := vals.Get(k)
		if err != nil {
			return fmt.Errorf("optimizer: configuration error: %w", err)
		}
		builder.Add(k, v.StorageDim(), v.TangentDim())
	}
	idx := builder.Build()

	lz := linearize.New()
	if err := lz.Initialize(o.factors, idx); err != nil {
		return err
	}

	o.idx = idx
	o.linearizer = lz
	o.solver = linsolve.New(idx.TangentSize())
	o.initialized = true
	return nil
}

// Optimize runs the LM driver against vals in place. numIterations < 0
// (the default) uses the configured iteration count. If bestLinearization
// is non-nil, it is filled with the linearization at the best values seen.
// Returns true iff the driver exited CONVERGED.
func (o *Optimizer) Optimize(vals *values.Values, numIterations int, bestLinearization *linearize.Linearization) (bool, error) {
	if err := o.Initialize(vals); err != nil {
		return false, err
	}
	result, err := o.driver.RunWithDebugStats(o.linearizer, o.solver, o.idx, vals, o.factors, numIterations, o.epsilon, bestLinearization, o.logger, o.debugStats)
	if err != nil {
		return false, err
	}
	o.lastResult = result
	if o.logger != nil {
		o.logger.Terminal(result.Status.String(), result.BestError, len(result.Stats))
	}
	return result.Status == lm.StatusConverged, nil
}

// Linearize performs a one-shot linearization at vals with no optimization
// loop (spec.md §4.5).
func (o *Optimizer) Linearize(vals *values.Values) (*linearize.Linearization, error) {
	if err := o.Initialize(vals); err != nil {
		return nil, err
	}
	lin := o.linearizer.NewLinearization(true)
	if err := o.linearizer.Relinearize(vals, lin); err != nil {
		return nil, err
	}
	return lin, nil
}

// UpdateParams hot-swaps the LM params; takes effect on the next
// iteration (spec.md §4.5, §9 copy-on-write semantics).
func (o *Optimizer) UpdateParams(p lm.Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	o.driver.UpdateParams(p)
	return nil
}

// Optimize is a package-level convenience wrapper (mirroring optimizer.h's
// free-function `Optimize`) for callers who don't need to reuse the
// Optimizer across calls.
func Optimize(factors []*factor.Factor, opts Options, vals *values.Values) (bool, error) {
	opt, err := New(factors, opts)
	if err != nil {
		return false, err
	}
	return opt.Optimize(vals, -1, nil)
}
