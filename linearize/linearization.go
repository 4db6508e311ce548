// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package linearize assembles the global sparse Jacobian, Hessian, and
// gradient from per-factor local linearizations (spec.md §4.3), reusing a
// symbolic sparsity pattern computed once at Initialize.
package linearize

import "gonum.org/v1/gonum/mat"

// Linearization is the problem linearized at a specific Values (spec.md
// §3): residual R, optionally the stacked Jacobian J, the blocks of the
// symmetric Hessian H = JᵗJ (only the lower-position-ordered half
// materialized), and the gradient g = JᵗR.
type Linearization struct {
	R []float64
	J *mat.Dense // rows x tangentSize, nil unless explicitly requested

	// Hvals holds every materialized Hessian block, flattened in
	// row-major order back to back as assigned by blockOffset during
	// Initialize. Use Linearizer.HessianBlock to interpret a given block.
	Hvals []float64
	G     []float64

	Error float64 // 1/2 * ||R||^2, filled by the caller after Relinearize
}

// NewLinearization allocates a Linearization sized for this Linearizer's
// cached sparsity pattern. wantJacobian controls whether the dense J is
// allocated (spec.md §4.3 step 3: "J may be materialized only if the
// caller requests it").
func (lz *Linearizer) NewLinearization(wantJacobian bool) *Linearization {
	out := &Linearization{
		R:     make([]float64, lz.totalRows),
		Hvals: make([]float64, lz.hvalsLen),
		G:     make([]float64, lz.idx.TangentSize()),
	}
	if wantJacobian {
		out.J = mat.NewDense(lz.totalRows, lz.idx.TangentSize(), nil)
	}
	return out
}

func zero(v []float64) {
	for i := range v {
		v[i] = 0
	}
}
