// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optimizer

import (
	"math"
	"testing"

	"github.com/curioloop/nlsq/factor"
	"github.com/curioloop/nlsq/factors"
	"github.com/curioloop/nlsq/key"
	"github.com/curioloop/nlsq/lm"
	"github.com/curioloop/nlsq/manifold"
	"github.com/curioloop/nlsq/values"
	"gonum.org/v1/gonum/mat"
)

// TestScalarPriorConverges is spec.md §8 scenario 1.
func TestScalarPriorConverges(t *testing.T) {
	const mu, w, sigma = 3.0, 2.0, 0.5
	k := key.New('x', 0)
	f, err := factors.PriorVector(k, manifold.NewVector([]float64{mu}), []float64{w / sigma})
	if err != nil {
		t.Fatal(err)
	}
	vals := values.New()
	vals.Set(k, manifold.NewVector([]float64{0}))

	opt, err := New([]*factor.Factor{f}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	converged, err := opt.Optimize(vals, -1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !converged {
		t.Fatalf("expected convergence, stats: %+v", opt.Stats())
	}
	if len(opt.Stats()) > 2 {
		t.Fatalf("expected convergence in 1-2 iterations, took %d", len(opt.Stats()))
	}
	x, _ := values.GetAs[manifold.Vector](vals, k)
	if math.Abs(x[0]-mu) > 1e-6 {
		t.Fatalf("x: got %v want %v", x[0], mu)
	}
}

// TestCovarianceConsistency is spec.md §8 scenario 6: on scenario 1,
// ComputeAllCovariances at the optimum must yield sigma^2 ~ (sigma/w)^2.
func TestCovarianceConsistency(t *testing.T) {
	const mu, w, sigma = 3.0, 2.0, 0.5
	k := key.New('x', 0)
	f, err := factors.PriorVector(k, manifold.NewVector([]float64{mu}), []float64{w / sigma})
	if err != nil {
		t.Fatal(err)
	}
	vals := values.New()
	vals.Set(k, manifold.NewVector([]float64{0}))

	opt, err := New([]*factor.Factor{f}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := opt.Optimize(vals, -1, nil); err != nil {
		t.Fatal(err)
	}

	lin, err := opt.Linearize(vals)
	if err != nil {
		t.Fatal(err)
	}
	covariancesByKey := make(map[key.Key]*mat.Dense)
	if err := opt.ComputeAllCovariances(lin, covariancesByKey); err != nil {
		t.Fatal(err)
	}
	cov := covariancesByKey[k]
	want := (sigma / w) * (sigma / w)
	if math.Abs(cov.At(0, 0)-want) > 1e-9 {
		t.Fatalf("covariance: got %v want %v", cov.At(0, 0), want)
	}
}

// TestEarlyExitOnLargeMinReduction is spec.md §8 scenario 5.
func TestEarlyExitOnLargeMinReduction(t *testing.T) {
	k := key.New('x', 0)
	f, err := factors.PriorVector(k, manifold.NewVector([]float64{1}), []float64{1})
	if err != nil {
		t.Fatal(err)
	}
	vals := values.New()
	vals.Set(k, manifold.NewVector([]float64{0}))

	params := lm.DefaultParams()
	params.EarlyExitMinReduction = 0.5
	// lambda = 10 keeps the first step short: E' = 0.5*(10/11)^2, a relative
	// reduction of ~0.17, below the 0.5 threshold.
	params.InitialLambda = 10

	opt, err := New([]*factor.Factor{f}, Options{Params: params})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := opt.Optimize(vals, -1, nil); err != nil {
		t.Fatal(err)
	}
	if len(opt.Stats()) != 1 {
		t.Fatalf("expected termination after the first successful step, took %d", len(opt.Stats()))
	}
}

// TestComputeCovariancesPrefixMatchesFull exercises the Schur-complement
// fast path (spec.md §4.5) against two decoupled priors, where marginalizing
// out the second key must leave the first key's covariance unchanged.
func TestComputeCovariancesPrefixMatchesFull(t *testing.T) {
	k0, k1 := key.New('x', 0), key.New('x', 1)
	f0, err := factors.PriorVector(k0, manifold.NewVector([]float64{1}), []float64{2})
	if err != nil {
		t.Fatal(err)
	}
	f1, err := factors.PriorVector(k1, manifold.NewVector([]float64{-1}), []float64{3})
	if err != nil {
		t.Fatal(err)
	}
	vals := values.New()
	vals.Set(k0, manifold.NewVector([]float64{0}))
	vals.Set(k1, manifold.NewVector([]float64{0}))

	opt, err := New([]*factor.Factor{f0, f1}, Options{OptimizedKeys: []key.Key{k0, k1}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := opt.Optimize(vals, -1, nil); err != nil {
		t.Fatal(err)
	}
	lin, err := opt.Linearize(vals)
	if err != nil {
		t.Fatal(err)
	}

	full := make(map[key.Key]*mat.Dense)
	if err := opt.ComputeAllCovariances(lin, full); err != nil {
		t.Fatal(err)
	}
	prefix := make(map[key.Key]*mat.Dense)
	if err := opt.ComputeCovariances(lin, []key.Key{k0}, prefix); err != nil {
		t.Fatal(err)
	}
	if math.Abs(prefix[k0].At(0, 0)-full[k0].At(0, 0)) > 1e-9 {
		t.Fatalf("schur-complement covariance %v != full covariance %v for decoupled keys", prefix[k0].At(0, 0), full[k0].At(0, 0))
	}
}

func TestComputeCovariancesRejectsNonPrefix(t *testing.T) {
	k0, k1 := key.New('x', 0), key.New('x', 1)
	f0, err := factors.PriorVector(k0, manifold.NewVector([]float64{1}), []float64{2})
	if err != nil {
		t.Fatal(err)
	}
	f1, err := factors.PriorVector(k1, manifold.NewVector([]float64{-1}), []float64{3})
	if err != nil {
		t.Fatal(err)
	}
	vals := values.New()
	vals.Set(k0, manifold.NewVector([]float64{0}))
	vals.Set(k1, manifold.NewVector([]float64{0}))

	opt, err := New([]*factor.Factor{f0, f1}, Options{OptimizedKeys: []key.Key{k0, k1}})
	if err != nil {
		t.Fatal(err)
	}
	lin, err := opt.Linearize(vals)
	if err != nil {
		t.Fatal(err)
	}
	if err := opt.ComputeCovariances(lin, []key.Key{k1}, make(map[key.Key]*mat.Dense)); err == nil {
		t.Fatal("expected a structural error: k1 alone is not an ordered prefix")
	}
}

// TestTwoRotationsPriorAndBetween is spec.md §8 scenario 2.
func TestTwoRotationsPriorAndBetween(t *testing.T) {
	r0, r1 := key.New('R', 0), key.New('R', 1)
	priorR0, err := factors.PriorRot3(r0, manifold.IdentityRot3(), nil, 1e-9)
	if err != nil {
		t.Fatal(err)
	}
	priorR1, err := factors.PriorRot3(r1, manifold.IdentityRot3(), nil, 1e-9)
	if err != nil {
		t.Fatal(err)
	}
	between, err := factors.BetweenRot3(r0, r1, manifold.IdentityRot3(), nil, 1e-9)
	if err != nil {
		t.Fatal(err)
	}

	vals := values.New()
	start := manifold.IdentityRot3().Retract([]float64{0.3, -0.2, 0.1}, 1e-9).(manifold.Rot3)
	vals.Set(r0, start)
	vals.Set(r1, start)

	opt, err := New([]*factor.Factor{priorR0, priorR1, between}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := opt.Optimize(vals, -1, nil); err != nil {
		t.Fatal(err)
	}

	lin, err := opt.Linearize(vals)
	if err != nil {
		t.Fatal(err)
	}
	if lin.Error > 1e-12 {
		t.Fatalf("expected a near-zero final error, got %v", lin.Error)
	}

	a, _ := values.GetAs[manifold.Rot3](vals, r0)
	b, _ := values.GetAs[manifold.Rot3](vals, r1)
	local := a.LocalCoordinates(b, 1e-9)
	if math.Abs(local[0]) > 1e-6 || math.Abs(local[1]) > 1e-6 || math.Abs(local[2]) > 1e-6 {
		t.Fatalf("expected both rotations to converge to the same value, local coords %v", local)
	}
}
