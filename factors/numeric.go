// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package factors provides a small library of ready-made Factors —
// priors and between-factors over manifold.Vector and manifold.Rot3 — in
// the spirit of the PriorFactorRot3/BetweenFactorRot3 helpers referenced
// by original_source/symforce/opt/optimizer.h's usage example. It is
// example/test infrastructure, not part of the optimizer core: production
// factors are expected to supply their own closed-form Jacobians (normally
// produced by the out-of-scope symbolic code generator), but the rotation
// factors here compute theirs with a central difference via package
// numdiff rather than hand-deriving the SO(3) Jacobian formulas, which
// keeps this package small without weakening the residuals it checks.
package factors

import (
	"github.com/curioloop/nlsq/numdiff"
	"gonum.org/v1/gonum/mat"
)

// numericJacobian returns the m x n central-difference Jacobian of
// residual, evaluated at tangent = 0, where residual maps an n-vector
// tangent update to an m-vector.
func numericJacobian(n, m int, residual func(tangent []float64) []float64) *mat.Dense {
	obj := func(x, y []float64) { copy(y, residual(x)) }
	as := numdiff.ApproxSpec{N: n, M: m, Object: obj}
	x0 := make([]float64, n)
	buf := make([]float64, n*m)
	if err := as.Diff(x0, buf); err != nil {
		panic("factors: numeric jacobian failed: " + err.Error())
	}
	J := mat.NewDense(m, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			J.Set(j, i, buf[i+j*n])
		}
	}
	return J
}
