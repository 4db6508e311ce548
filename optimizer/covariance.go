// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optimizer

import (
	"fmt"

	"github.com/curioloop/nlsq/index"
	"github.com/curioloop/nlsq/key"
	"github.com/curioloop/nlsq/linearize"
	"gonum.org/v1/gonum/mat"
)

// ComputeAllCovariances inverts H_damped fully and extracts the per-key
// diagonal blocks into covariancesByKey, reusing entries already present
// (spec.md §4.5).
func (o *Optimizer) ComputeAllCovariances(lin *linearize.Linearization, covariancesByKey map[key.Key]*mat.Dense) error {
	if !o.initialized {
		return fmt.Errorf("optimizer: ComputeAllCovariances called before initialization")
	}
	n := o.idx.TangentSize()
	o.solver.Assemble(o.linearizer, lin, o.driver.Lambda(), o.driver.Params().UseDiagonalDamping)
	if !o.solver.Factorize() {
		return fmt.Errorf("optimizer: numerical failure: damped Hessian is not positive definite")
	}
	full := mat.NewDense(n, n, nil)
	if err := o.solver.Inverse(full); err != nil {
		return fmt.Errorf("optimizer: numerical failure: %w", err)
	}

	for _, e := range o.idx.Entries() {
		block, ok := covariancesByKey[e.Key]
		if !ok || block == nil {
			block = mat.NewDense(e.TangentDim, e.TangentDim, nil)
			covariancesByKey[e.Key] = block
		}
		sub := full.Slice(e.TangentOffset, e.TangentOffset+e.TangentDim, e.TangentOffset, e.TangentOffset+e.TangentDim)
		block.Copy(sub)
	}
	return nil
}

// ComputeCovariances extracts covariances for the given subset of keys via
// the Schur complement, which is cheaper than ComputeAllCovariances when
// keys is a small prefix of the full optimized key list (spec.md §4.5).
//
// keys must be an ordered prefix of the Optimizer's full key list — see
// DESIGN.md's resolution of the corresponding Open Question. This
// implementation always falls back to the general (dense C-inversion) form
// of the Schur complement rather than exploiting a block-diagonal C, which
// spec.md §4.5 offers as an optional fast path.
func (o *Optimizer) ComputeCovariances(lin *linearize.Linearization, keys []key.Key, covariancesByKey map[key.Key]*mat.Dense) error {
	if !o.initialized {
		return fmt.Errorf("optimizer: ComputeCovariances called before initialization")
	}
	if !isOrderedPrefix(o.idx, keys) {
		return fmt.Errorf("optimizer: structural error: keys is not an ordered prefix of the optimized key list")
	}

	n := o.idx.TangentSize()
	o.solver.Assemble(o.linearizer, lin, o.driver.Lambda(), o.driver.Params().UseDiagonalDamping)
	full := o.solver.Dense()

	k := 0
	for _, key := range keys {
		e, _ := o.idx.EntryFor(key)
		k += e.TangentDim
	}
	if k == n {
		// keys is the whole problem: no elimination needed.
		return o.ComputeAllCovariances(lin, covariancesByKey)
	}

	B := mat.NewDense(k, k, nil)
	E := mat.NewDense(k, n-k, nil)
	C := mat.NewSymDense(n-k, nil)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			B.Set(i, j, full.At(i, j))
		}
		for j := k; j < n; j++ {
			E.Set(i, j-k, full.At(i, j))
		}
	}
	for i := k; i < n; i++ {
		for j := i; j < n; j++ {
			C.SetSym(i-k, j-k, full.At(i, j))
		}
	}

	var cChol mat.Cholesky
	if !cChol.Factorize(C) {
		return fmt.Errorf("optimizer: numerical failure: marginalized block C is not positive definite")
	}
	var cInvE mat.Dense
	if err := cChol.SolveTo(&cInvE, E.T()); err != nil {
		return fmt.Errorf("optimizer: numerical failure: %w", err)
	}
	var ecInvE mat.Dense
	ecInvE.Mul(E, &cInvE)

	var schur mat.Dense
	schur.Sub(B, &ecInvE)

	schurSym := mat.NewSymDense(k, nil)
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			schurSym.SetSym(i, j, schur.At(i, j))
		}
	}

	var schurChol mat.Cholesky
	if !schurChol.Factorize(schurSym) {
		return fmt.Errorf("optimizer: numerical failure: schur complement is not positive definite")
	}
	schurInvSym := mat.NewSymDense(k, nil)
	if err := schurChol.InverseTo(schurInvSym); err != nil {
		return fmt.Errorf("optimizer: numerical failure: %w", err)
	}
	schurInv := mat.NewDense(k, k, nil)
	schurInv.Copy(schurInvSym)

	off := 0
	for _, kk := range keys {
		e, _ := o.idx.EntryFor(kk)
		block, ok := covariancesByKey[kk]
		if !ok || block == nil {
			block = mat.NewDense(e.TangentDim, e.TangentDim, nil)
			covariancesByKey[kk] = block
		}
		sub := schurInv.Slice(off, off+e.TangentDim, off, off+e.TangentDim)
		block.Copy(sub)
		off += e.TangentDim
	}
	return nil
}

func isOrderedPrefix(idx *index.Index, keys []key.Key) bool {
	if len(keys) > idx.Len() {
		return false
	}
	for i, k := range keys {
		if idx.EntryAt(i).Key != k {
			return false
		}
	}
	return true
}
