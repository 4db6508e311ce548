// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lm

import (
	"math"

	"github.com/curioloop/nlsq/factor"
	"github.com/curioloop/nlsq/key"
	"github.com/curioloop/nlsq/logging"
	"github.com/curioloop/nlsq/manifold"
	"github.com/curioloop/nlsq/numdiff"
	"github.com/curioloop/nlsq/values"
)

// checkFactorDerivatives cross-checks every Jacobian-form factor's
// analytic Jacobian against a central-difference approximation at the
// current values, per spec.md §4.4's check_derivatives option, using
// package numdiff's central-difference approximation: the finite-difference
// algorithm doesn't know or care that its objective happens to be a factor
// residual.
func checkFactorDerivatives(factors []*factor.Factor, vals *values.Values, epsilon, tol float64, logger *logging.Logger) (float64, error) {
	maxDev := 0.0
	for fi, f := range factors {
		if f.IsHessianForm() {
			continue
		}

		allKeys := f.AllKeys()
		optKeys := f.OptimizedKeys()

		baseInputs := make([]manifold.Type, len(allKeys))
		for i, k := range allKeys {
			v, err := vals.Get(k)
			if err != nil {
				return 0, err
			}
			baseInputs[i] = v
		}

		offsets := make([]int, len(optKeys))
		positions := make([]int, len(optKeys))
		total := 0
		for i, k := range optKeys {
			positions[i] = indexOfKey(allKeys, k)
			dim := baseInputs[positions[i]].TangentDim()
			offsets[i] = total
			total += dim
		}
		if total == 0 {
			continue
		}

		m := f.ResidualDim()
		analytic, err := f.Linearize(baseInputs, true)
		if err != nil {
			return 0, err
		}

		var objErr error
		obj := func(x, y []float64) {
			inputs := make([]manifold.Type, len(allKeys))
			copy(inputs, baseInputs)
			for i := range optKeys {
				dim := baseInputs[positions[i]].TangentDim()
				seg := x[offsets[i] : offsets[i]+dim]
				inputs[positions[i]] = baseInputs[positions[i]].Retract(seg, epsilon)
			}
			lr, err := f.Linearize(inputs, false)
			if err != nil {
				objErr = err
				return
			}
			copy(y, lr.R)
		}

		x0 := make([]float64, total)
		numJ := make([]float64, total*m)
		as := numdiff.ApproxSpec{N: total, M: m, Object: obj}
		if err := as.Diff(x0, numJ); err != nil {
			return 0, err
		}
		if objErr != nil {
			return 0, objErr
		}

		localMax := 0.0
		for r := 0; r < m; r++ {
			for c := 0; c < total; c++ {
				d := math.Abs(analytic.J.At(r, c) - numJ[r*total+c])
				if d > localMax {
					localMax = d
				}
			}
		}
		if localMax > maxDev {
			maxDev = localMax
		}
		if localMax > tol && logger != nil {
			logger.DerivativeMismatch(fi, localMax)
		}
	}
	return maxDev, nil
}

func indexOfKey(ks []key.Key, target key.Key) int {
	for i, k := range ks {
		if k == target {
			return i
		}
	}
	return -1
}
