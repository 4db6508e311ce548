// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package linsolve implements the linear solver contract spec.md §6
// treats as an external collaborator: factorize a sparse symmetric
// positive-definite system and solve it. It assembles the Linearizer's
// flat block storage into a dense gonum SymDense and factorizes with
// Cholesky, which for a damped-positive-definite normal-equations matrix
// is equivalent to the LDLᵗ factorization spec.md §4.4 calls for.
//
// Grounded on the gonum-derived dense factorization code recurring through
// the pack (kubernetes' vendored mat.Cholesky/mat.LQ, vladimir-ch's sparse
// dok.Matrix) rather than hand-rolling a sparse Cholesky.
package linsolve

import (
	"fmt"

	"github.com/curioloop/nlsq/linearize"
	"gonum.org/v1/gonum/mat"
)

// Solver factorizes and solves the damped normal equations H_damped·Δ = -g.
// A Solver is reused call over call: its internal SymDense and Cholesky
// workspace are cleared but not freed, per spec.md §5's resource lifecycle.
type Solver struct {
	n     int
	dense *mat.SymDense
	chol  mat.Cholesky
}

// New returns a Solver sized for an n-dimensional tangent space.
func New(n int) *Solver {
	return &Solver{n: n, dense: mat.NewSymDense(n, nil)}
}

// Assemble materializes the damped Hessian into the Solver's dense scratch
// matrix from the Linearizer's sparse block storage, applying Marquardt
// (diagonal) or Levenberg (unit) damping.
//
//   useDiagonalDamping == true:  H_damped = H + lambda * diag(H)
//   useDiagonalDamping == false: H_damped = H + lambda * I
func (s *Solver) Assemble(lz *linearize.Linearizer, lin *linearize.Linearization, lambda float64, useDiagonalDamping bool) {
	for i := 0; i < s.n; i++ {
		for j := i; j < s.n; j++ {
			s.dense.SetSym(i, j, 0)
		}
	}
	for _, bk := range lz.BlockList() {
		block, rowDim, colDim := lz.HessianBlock(lin, bk)
		rowOff := lz.Index().EntryAt(bk.Low).TangentOffset
		colOff := lz.Index().EntryAt(bk.High).TangentOffset
		for r := 0; r < rowDim; r++ {
			for c := 0; c < colDim; c++ {
				s.dense.SetSym(rowOff+r, colOff+c, block[r*colDim+c])
			}
		}
	}
	if useDiagonalDamping {
		for i := 0; i < s.n; i++ {
			s.dense.SetSym(i, i, s.dense.At(i, i)*(1+lambda))
		}
	} else {
		for i := 0; i < s.n; i++ {
			s.dense.SetSym(i, i, s.dense.At(i, i)+lambda)
		}
	}
}

// Factorize attempts a Cholesky factorization of the currently assembled
// damped Hessian. It reports false if the matrix is not positive definite
// after damping, mirroring spec.md §4.4 step 3's "factorization fails"
// case.
func (s *Solver) Factorize() bool {
	return s.chol.Factorize(s.dense)
}

// Solve computes delta = H_damped^-1 * rhs using the last successful
// Factorize, writing into delta (which must have length n).
func (s *Solver) Solve(rhs []float64, delta []float64) error {
	if len(rhs) != s.n || len(delta) != s.n {
		return fmt.Errorf("linsolve: dimension mismatch: n=%d rhs=%d delta=%d", s.n, len(rhs), len(delta))
	}
	dst := mat.NewVecDense(s.n, delta)
	b := mat.NewVecDense(s.n, rhs)
	return s.chol.SolveVecTo(dst, b)
}

// Dense exposes the assembled damped Hessian for covariance extraction.
func (s *Solver) Dense() *mat.SymDense { return s.dense }

// Inverse fills dst (n x n) with the inverse of the last successfully
// factorized matrix, used by Optimizer.ComputeAllCovariances.
func (s *Solver) Inverse(dst *mat.Dense) error {
	sym := mat.NewSymDense(s.n, nil)
	if err := s.chol.InverseTo(sym); err != nil {
		return err
	}
	dst.Copy(sym)
	return nil
}
