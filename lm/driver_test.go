// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lm

import (
	"math"
	"testing"

	"github.com/curioloop/nlsq/factor"
	"github.com/curioloop/nlsq/factors"
	"github.com/curioloop/nlsq/index"
	"github.com/curioloop/nlsq/key"
	"github.com/curioloop/nlsq/linearize"
	"github.com/curioloop/nlsq/linsolve"
	"github.com/curioloop/nlsq/manifold"
	"github.com/curioloop/nlsq/values"
)

// buildScalarPrior constructs scenario 1 of spec.md §8: r(x) = w*(x-mu)/sigma.
func buildScalarPrior(t *testing.T) (*linearize.Linearizer, *linsolve.Solver, *index.Index, *values.Values, []*factor.Factor) {
	t.Helper()
	const mu, w, sigma = 3.0, 2.0, 0.5
	k := key.New('x', 0)
	f, err := factors.PriorVector(k, manifold.NewVector([]float64{mu}), []float64{w / sigma})
	if err != nil {
		t.Fatal(err)
	}
	idx := index.NewBuilder(1e-9).Add(k, 1, 1).Build()
	lz := linearize.New()
	if err := lz.Initialize([]*factor.Factor{f}, idx); err != nil {
		t.Fatal(err)
	}
	vals := values.New()
	vals.Set(k, manifold.NewVector([]float64{0}))
	return lz, linsolve.New(idx.TangentSize()), idx, vals, []*factor.Factor{f}
}

func TestRunConvergesOnScalarPrior(t *testing.T) {
	lz, solver, idx, vals, fs := buildScalarPrior(t)
	d := NewDriver(DefaultParams())
	result, err := d.Run(lz, solver, idx, vals, fs, -1, 1e-9, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != StatusConverged {
		t.Fatalf("status: got %v", result.Status)
	}
	if len(result.Stats) > 2 {
		t.Fatalf("expected convergence in 1-2 iterations, took %d", len(result.Stats))
	}
	x, err := values.GetAs[manifold.Vector](vals, key.New('x', 0))
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(x[0]-3.0) > 1e-6 {
		t.Fatalf("x: got %v want 3.0", x[0])
	}
	if result.BestError > 1e-9 {
		t.Fatalf("final error: got %v", result.BestError)
	}
}

func TestRunEarlyExitOnLargeMinReduction(t *testing.T) {
	lz, solver, idx, vals, fs := buildScalarPrior(t)
	p := DefaultParams()
	p.EarlyExitMinReduction = 0.5
	// With lambda = 10 and diagonal damping the first step covers 1/11 of the
	// way to the optimum: E' = 72*(10/11)^2 < E0, so it is accepted, and its
	// relative reduction 1-(10/11)^2 ~= 0.17 is below 0.5.
	p.InitialLambda = 10
	d := NewDriver(p)
	result, err := d.Run(lz, solver, idx, vals, fs, -1, 1e-9, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != StatusConverged {
		t.Fatalf("status: got %v", result.Status)
	}
	if len(result.Stats) != 1 {
		t.Fatalf("expected a single iteration, got %d", len(result.Stats))
	}
}

func TestRunRejectedStepsConsumeAnIterationSlot(t *testing.T) {
	lz, solver, idx, vals, fs := buildScalarPrior(t)
	p := DefaultParams()
	p.Iterations = 1
	p.InitialLambda = 1e9
	p.LambdaMax = 1e9
	// The gain ratio rho is 1 on this quadratic, so a threshold of 2 rejects
	// the only step.
	p.AcceptThreshold = 2
	d := NewDriver(p)
	result, err := d.Run(lz, solver, idx, vals, fs, -1, 1e-9, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Stats) != 1 {
		t.Fatalf("expected exactly 1 recorded iteration regardless of accept/reject, got %d", len(result.Stats))
	}
}

func TestStatusString(t *testing.T) {
	if StatusConverged.String() != "CONVERGED" {
		t.Fatalf("got %q", StatusConverged.String())
	}
	if Status(99).String() != "UNKNOWN" {
		t.Fatalf("got %q", Status(99).String())
	}
}

func TestParamsValidate(t *testing.T) {
	p := DefaultParams()
	if err := p.Validate(); err != nil {
		t.Fatal(err)
	}
	bad := p
	bad.Iterations = 0
	if err := bad.Validate(); err == nil {
		t.Fatal("expected a validation error for non-positive Iterations")
	}
}
