// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lm

import (
	"math"
	"time"

	"github.com/curioloop/nlsq/factor"
	"github.com/curioloop/nlsq/index"
	"github.com/curioloop/nlsq/linearize"
	"github.com/curioloop/nlsq/linsolve"
	"github.com/curioloop/nlsq/logging"
	"github.com/curioloop/nlsq/values"
	"gonum.org/v1/gonum/floats"
)

// Driver runs the damped trust-region loop of spec.md §4.4. A Driver holds
// only the damping state (lambda, reject streak) across calls; the heavy
// scratch buffers (linearization, solver workspace) are owned by the
// caller and passed in, per spec.md §5's resource lifecycle.
type Driver struct {
	params       Params
	lambda       float64
	rejectStreak int
}

// NewDriver returns a Driver with lambda initialized from params.
func NewDriver(params Params) *Driver {
	return &Driver{params: params, lambda: params.InitialLambda}
}

// UpdateParams hot-swaps the params; per spec.md §9 this takes effect at
// the start of the next iteration (copy-on-write: in-flight iterations
// already captured their own copy of the old params).
func (d *Driver) UpdateParams(p Params) { d.params = p }

// Params returns the driver's current configuration.
func (d *Driver) Params() Params { return d.params }

// Lambda returns the current damping parameter.
func (d *Driver) Lambda() float64 { return d.lambda }

// Run executes the damped trust-region loop for up to numIterations
// iterations (or Params.Iterations if numIterations < 0), mutating vals in
// place to hold the best values seen. If bestOut is non-nil, it is filled
// with the linearization at those best values.
func (d *Driver) Run(
	lz *linearize.Linearizer,
	solver *linsolve.Solver,
	idx *index.Index,
	vals *values.Values,
	factors []*factor.Factor,
	numIterations int,
	epsilon float64,
	bestOut *linearize.Linearization,
	logger *logging.Logger,
) (Result, error) {
	return d.run(lz, solver, idx, vals, factors, numIterations, epsilon, bestOut, logger, true)
}

// RunWithDebugStats behaves exactly like Run except debugStats controls
// whether every iteration's IterationStats record is retained on the
// returned Result, or only the last one seen (optimizer.h's debug_stats
// constructor flag): long-running optimizations that never inspect
// per-iteration history don't need an ever-growing stats slice.
func (d *Driver) RunWithDebugStats(
	lz *linearize.Linearizer,
	solver *linsolve.Solver,
	idx *index.Index,
	vals *values.Values,
	factors []*factor.Factor,
	numIterations int,
	epsilon float64,
	bestOut *linearize.Linearization,
	logger *logging.Logger,
	debugStats bool,
) (Result, error) {
	return d.run(lz, solver, idx, vals, factors, numIterations, epsilon, bestOut, logger, debugStats)
}

func (d *Driver) run(
	lz *linearize.Linearizer,
	solver *linsolve.Solver,
	idx *index.Index,
	vals *values.Values,
	factors []*factor.Factor,
	numIterations int,
	epsilon float64,
	bestOut *linearize.Linearization,
	logger *logging.Logger,
	debugStats bool,
) (Result, error) {
	maxIters := d.params.Iterations
	if numIterations >= 0 {
		maxIters = numIterations
	}

	wantJ := d.params.CheckDerivatives
	lin := lz.NewLinearization(wantJ)
	trialLin := lz.NewLinearization(wantJ)

	if err := lz.Relinearize(vals, lin); err != nil {
		return Result{Status: StatusNumericalFailure}, err
	}
	if !finiteSlice(lin.R) {
		return Result{Status: StatusNumericalFailure}, nil
	}

	var derivMax float64
	if d.params.CheckDerivatives {
		var err error
		derivMax, err = checkFactorDerivatives(factors, vals, epsilon, d.params.DerivativeCheckTolerance, logger)
		if err != nil {
			return Result{}, err
		}
	}

	result := Result{Status: StatusIterating, BestError: lin.Error}

	// vals already holds the only values ever committed (every accepted
	// step writes through to vals immediately in step()), and the LM
	// acceptance rule only ever commits a strictly-lower-error point, so
	// vals is the best-seen point at every instant — no separate
	// best-values buffer is needed, unlike the C++ reference's explicit
	// "best_linearization" bookkeeping across a restore-on-reject scheme.
	status := StatusIterating
	for iter := 0; iter < maxIters; iter++ {
		rec := IterationStats{Iteration: iter, Lambda: d.lambda, DerivativeCheckMax: derivMax}
		derivMax = 0 // only reported once, at the first linearization

		e0 := lin.Error
		accepted, delta, stepErr := d.step(lz, solver, idx, vals, lin, trialLin, &rec)
		if stepErr == errNumericalFailure {
			if d.lambda >= d.params.LambdaMax {
				status = StatusNumericalFailure
				appendStat(&result, rec, debugStats)
				break
			}
			appendStat(&result, rec, debugStats)
			continue
		} else if stepErr != nil {
			return Result{}, stepErr
		}

		appendStat(&result, rec, debugStats)

		if !accepted {
			d.rejectStreak++
			if d.lambda >= d.params.LambdaMax && d.rejectStreak >= d.params.MaxRejectStreak {
				status = StatusDiverged
				break
			}
			if logger != nil {
				logger.Iteration(rec.Iteration, lin.Error, d.lambda, rec.StepNorm, false)
			}
			continue
		}

		d.rejectStreak = 0
		result.BestError = lin.Error
		if logger != nil {
			logger.Iteration(rec.Iteration, lin.Error, d.lambda, rec.StepNorm, true)
		}

		relReduction := math.Abs(e0-lin.Error) / math.Max(e0, 1e-300)
		gradInf := infNorm(lin.G)
		if relReduction < d.params.EarlyExitMinReduction ||
			stepNormOf(delta) < d.params.StepTolerance ||
			gradInf < d.params.GradientTolerance {
			status = StatusConverged
			break
		}
	}
	if status == StatusIterating {
		status = StatusMaxIterations
	}
	result.Status = status

	if bestOut != nil {
		if err := lz.Relinearize(vals, bestOut); err != nil {
			return Result{}, err
		}
	}
	return result, nil
}

// appendStat records rec on result, either growing the full history
// (debugStats) or overwriting the single retained entry.
func appendStat(result *Result, rec IterationStats, debugStats bool) {
	if debugStats {
		result.Stats = append(result.Stats, rec)
		return
	}
	if len(result.Stats) == 0 {
		result.Stats = append(result.Stats, rec)
		return
	}
	result.Stats[0] = rec
}

var errNumericalFailure = &numericalFailureError{}

type numericalFailureError struct{}

func (*numericalFailureError) Error() string { return "lm: numerical failure" }

// step performs one outer LM iteration: damp, solve, retract, evaluate,
// accept/reject, adapt lambda. It returns whether the step was accepted
// and the tangent delta that was tried (all zeros when the factorization or
// solve fails).
func (d *Driver) step(
	lz *linearize.Linearizer,
	solver *linsolve.Solver,
	idx *index.Index,
	vals *values.Values,
	lin, trialLin *linearize.Linearization,
	rec *IterationStats,
) (accepted bool, delta []float64, err error) {
	n := idx.TangentSize()
	delta = make([]float64, n)
	negG := make([]float64, n)
	for i, g := range lin.G {
		negG[i] = -g
	}

	start := time.Now()
	solver.Assemble(lz, lin, d.lambda, d.params.UseDiagonalDamping)
	ok := solver.Factorize()
	if !ok {
		d.lambda = math.Min(d.lambda*d.params.LambdaUpFactor, d.params.LambdaMax)
		rec.LinearSolveNanos = time.Since(start).Nanoseconds()
		return false, delta, errNumericalFailure
	}
	if err := solver.Solve(negG, delta); err != nil {
		d.lambda = math.Min(d.lambda*d.params.LambdaUpFactor, d.params.LambdaMax)
		rec.LinearSolveNanos = time.Since(start).Nanoseconds()
		return false, delta, errNumericalFailure
	}
	rec.LinearSolveNanos = time.Since(start).Nanoseconds()
	rec.StepNorm = floats.Norm(delta, 2)

	trial := vals.Clone()
	if err := trial.Retract(idx, delta); err != nil {
		return false, delta, err
	}
	if err := lz.Relinearize(trial, trialLin); err != nil {
		return false, delta, err
	}
	if !finiteSlice(trialLin.R) {
		d.lambda = math.Min(d.lambda*d.params.LambdaUpFactor, d.params.LambdaMax)
		return false, delta, errNumericalFailure
	}

	e0, e1 := lin.Error, trialLin.Error
	predicted := predictedReduction(delta, negG, d.lambda, d.params.UseDiagonalDamping, solver)
	rho := math.Inf(-1)
	if predicted != 0 {
		rho = (e0 - e1) / predicted
	}

	accept := e1 < e0
	if d.params.AcceptThreshold > 0 {
		accept = rho > d.params.AcceptThreshold
	}

	rec.Accepted = accept
	rec.Error = e1
	if !accept {
		rec.Error = e0
	}

	if accept {
		copyValuesInto(vals, trial)
		copyLinearizationInto(lin, trialLin)
		if d.params.EnableBoldUpdates {
			d.lambda = d.params.LambdaMin
		} else {
			d.lambda = math.Max(d.lambda/d.params.LambdaDownFactor, d.params.LambdaMin)
		}
		return true, delta, nil
	}

	d.lambda = math.Min(d.lambda*d.params.LambdaUpFactor, d.params.LambdaMax)
	return false, delta, nil
}

// predictedReduction computes 1/2 * delta^T * (lambda*M*delta - g), with M
// the damping matrix (spec.md §4.4 step 6).
func predictedReduction(delta, negG []float64, lambda float64, diagonalDamping bool, solver *linsolve.Solver) float64 {
	// delta^T * g = -delta^T * negG
	dotDeltaG := floats.Dot(delta, negG)
	var dotDeltaMDelta float64
	if diagonalDamping {
		dense := solver.Dense()
		n, _ := dense.Dims()
		for i := 0; i < n; i++ {
			// dense already carries (1+lambda)*diag(H); isolate lambda*diag(H).
			diag := dense.At(i, i)
			undamped := diag / (1 + lambda)
			dotDeltaMDelta += delta[i] * delta[i] * lambda * undamped
		}
	} else {
		for i := range delta {
			dotDeltaMDelta += delta[i] * delta[i] * lambda
		}
	}
	return 0.5 * (dotDeltaMDelta + dotDeltaG)
}

func finiteSlice(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func infNorm(v []float64) float64 {
	m := 0.0
	for _, x := range v {
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return m
}

func stepNormOf(delta []float64) float64 {
	return floats.Norm(delta, 2)
}

// copyValuesInto overwrites dst's entries with src's, key by key, without
// reallocating dst's backing map/order slice.
func copyValuesInto(dst, src *values.Values) {
	idx := indexOfAll(src)
	_ = dst.Update(idx, idx, src)
}

func copyLinearizationInto(dst, src *linearize.Linearization) {
	copy(dst.R, src.R)
	copy(dst.Hvals, src.Hvals)
	copy(dst.G, src.G)
	dst.Error = src.Error
	if dst.J != nil && src.J != nil {
		dst.J.Copy(src.J)
	}
}

// indexOfAll builds a throwaway Index covering every key in v, in v's own
// iteration order, purely to drive values.Values.Update's key-by-key copy.
// It carries no tangent/storage dims because Update never reads them.
func indexOfAll(v *values.Values) *index.Index {
	b := index.NewBuilder(0)
	for _, k := range v.Keys() {
		b.Add(k, 0, 0)
	}
	return b.Build()
}
