// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package numdiff computes a central-difference Jacobian approximation of
// an arbitrary residual function. It backs spec.md §4.4's check_derivatives
// option (lm.checkFactorDerivatives cross-checks a factor's analytic
// Jacobian against this) and the numeric Jacobians used by the example
// factor library's SO(3) priors and between-factors (factors.numericJacobian).
//
// Only the central-difference, unbounded case is implemented: both call
// sites in this module evaluate an already-retracted manifold residual at
// the origin of its tangent space, so there is no forward-difference mode
// and no bound handling to carry.
//
// # Reference
//
//   - https://en.wikipedia.org/wiki/Finite_difference
//   - https://github.com/scipy/scipy/blob/main/scipy/optimize/_numdiff.py
package numdiff

import (
	"errors"
	"math"
)

var cubeEps = math.Pow(math.Nextafter(1, 2)-1, float64(1)/3)

// ApproxSpec describes a central-difference Jacobian approximation of
// Object, an n-input m-output function.
type ApproxSpec struct {
	N, M int
	// Object is the function of which to estimate the Jacobian. The
	// argument x passed to Object is an n-vector; the result is stored
	// into an m-vector y.
	Object func(x, y []float64)
	// RelStep is the relative step size used to compute the absolute
	// step: h = RelStep * sign(x0) * abs(x0). When zero, a step size is
	// chosen automatically from machine epsilon.
	RelStep float64
	// AbsStep, if non-zero, overrides RelStep: h = AbsStep (sign
	// ignored, since the central scheme evaluates both x0-h and x0+h).
	AbsStep float64

	f0, f1, f2 []float64
	absStep    []float64
}

// Check validates the spec and x0/diff dimensions, and lazily allocates
// scratch buffers sized for repeated Diff calls on the same ApproxSpec.
func (as *ApproxSpec) Check(x0, diff []float64) error {
	switch {
	case as.N <= 0 || as.M <= 0:
		return errors.New("negative dimensions")
	case as.Object == nil:
		return errors.New("object function is required")
	case as.N != len(x0):
		return errors.New("invalid x0 dimensions")
	case as.N*as.M != len(diff):
		return errors.New("invalid diff dimensions")
	}

	if len(as.f0) != as.M {
		as.f0 = make([]float64, as.M)
		as.f1 = make([]float64, as.M)
		as.f2 = make([]float64, as.M)
	}
	if len(as.absStep) != as.N {
		as.absStep = make([]float64, as.N)
	}
	return nil
}

// Diff computes the central-difference Jacobian of Object at x0, storing
// the result in diff as a column-major n x m buffer: diff[i+j*N] is
// d(Object_j)/d(x_i).
func (as *ApproxSpec) Diff(x0, diff []float64) error {
	if err := as.Check(x0, diff); err != nil {
		return err
	}
	as.absoluteStep(x0)
	as.approxCentral(x0, diff)
	return nil
}

func (as *ApproxSpec) absoluteStep(x0 []float64) {
	h := as.absStep
	abs, rel := as.AbsStep, as.RelStep
	if abs == 0 && rel == 0 {
		for i, v := range x0 {
			h[i] = math.Copysign(cubeEps, v) * math.Max(1.0, math.Abs(v))
		}
		return
	}
	for i, v := range x0 {
		s := abs
		if s == 0 {
			s = math.Copysign(rel, v) * math.Abs(v)
		}
		if (v+s)-v == 0 {
			s = math.Copysign(cubeEps, v) * math.Max(1.0, math.Abs(v))
		}
		h[i] = math.Abs(s)
	}
}

func (as *ApproxSpec) approxCentral(x0, df []float64) {
	f0, f1, f2, h, n := as.f0, as.f1, as.f2, as.absStep, as.N
	fun := as.Object
	fun(x0, f0)
	for i, s := range h {
		x := x0[i]
		x0[i] = x - s
		fun(x0, f1)
		x0[i] = x + s
		fun(x0, f2)
		x0[i] = x
		d := 1.0 / (2 * s)
		for j := range f0 {
			df[i+j*n] = (f2[j] - f1[j]) * d
		}
	}
}
