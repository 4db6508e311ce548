// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package factor implements the residual-producing functor bound to an
// ordered list of keys (spec.md §4.2). A Factor is immutable after
// construction; it does not know its global row/column offsets — those are
// supplied by the linearizer.
package factor

import (
	"fmt"

	"github.com/curioloop/nlsq/key"
	"github.com/curioloop/nlsq/manifold"
	"gonum.org/v1/gonum/mat"
)

// JacobianFunc computes the residual and Jacobian of a factor given the
// current values of its input keys, in declared key order. Either output
// pointer-equivalent may be unused (the caller passes nil to mean "don't
// need this") — in Go this is expressed by the needJacobian flag, since a
// nil *mat.Dense return is indistinguishable from "not computed" only if
// the caller checks it explicitly.
type JacobianFunc func(inputs []manifold.Type, needJacobian bool) (r []float64, J *mat.Dense, err error)

// HessianFunc computes the residual and the Gauss-Newton Hessian/gradient
// contribution directly, for factors that can do so more cheaply than
// forming the full Jacobian (spec.md §4.2 "Hessian form").
type HessianFunc func(inputs []manifold.Type) (r []float64, H *mat.Dense, g []float64, err error)

// Factor binds a residual functor to an ordered list of input keys.
type Factor struct {
	keys          []key.Key
	optimizedKeys []key.Key
	residualDim   int

	jacobianFn JacobianFunc
	hessianFn  HessianFunc
}

// NewJacobian builds a Jacobian-form Factor. optimizedKeys, if nil,
// defaults to keys (every input key is optimized); pass a strict subset
// when some of the factor's inputs are held constant (spec.md §4.2 edge
// case).
func NewJacobian(keys []key.Key, residualDim int, fn JacobianFunc, optimizedKeys []key.Key) (*Factor, error) {
	if fn == nil {
		return nil, fmt.Errorf("factor: jacobian function is required")
	}
	if residualDim <= 0 {
		return nil, fmt.Errorf("factor: residual dimension must be positive")
	}
	return &Factor{
		keys:          append([]key.Key{}, keys...),
		optimizedKeys: resolveOptimized(keys, optimizedKeys),
		residualDim:   residualDim,
		jacobianFn:    fn,
	}, nil
}

// NewHessian builds a Hessian-form Factor.
func NewHessian(keys []key.Key, residualDim int, fn HessianFunc, optimizedKeys []key.Key) (*Factor, error) {
	if fn == nil {
		return nil, fmt.Errorf("factor: hessian function is required")
	}
	if residualDim <= 0 {
		return nil, fmt.Errorf("factor: residual dimension must be positive")
	}
	return &Factor{
		keys:          append([]key.Key{}, keys...),
		optimizedKeys: resolveOptimized(keys, optimizedKeys),
		residualDim:   residualDim,
		hessianFn:     fn,
	}, nil
}

func resolveOptimized(all, subset []key.Key) []key.Key {
	if subset == nil {
		return append([]key.Key{}, all...)
	}
	return append([]key.Key{}, subset...)
}

// AllKeys returns the factor's full ordered input-key list.
func (f *Factor) AllKeys() []key.Key { return append([]key.Key{}, f.keys...) }

// OptimizedKeys returns the subset of AllKeys that are treated as
// optimized variables; the rest are held fixed during linearization.
func (f *Factor) OptimizedKeys() []key.Key { return append([]key.Key{}, f.optimizedKeys...) }

// ResidualDim is the fixed residual dimension m, invariant across
// iterations per spec.md §4.2.
func (f *Factor) ResidualDim() int { return f.residualDim }

// IsHessianForm reports whether the factor was constructed with a
// HessianFunc rather than a JacobianFunc.
func (f *Factor) IsHessianForm() bool { return f.hessianFn != nil }

// Linearization is the local result of evaluating a Factor at a specific
// set of input values: residual r, plus either a Jacobian J or a direct
// Hessian/gradient pair (H, g), in the factor's own tangent coordinate
// order (following its input-key order).
type Linearization struct {
	R []float64
	J *mat.Dense // m x k_tan, present only for Jacobian-form factors
	H *mat.Dense // k_tan x k_tan, present only for Hessian-form factors
	G []float64  // k_tan, present only for Hessian-form factors
}

// Linearize invokes the factor's functor against values resolved by the
// caller (the linearizer resolves keys to manifold.Type before calling
// this), returning the local linearization.
func (f *Factor) Linearize(inputs []manifold.Type, needJacobian bool) (Linearization, error) {
	if len(inputs) != len(f.keys) {
		return Linearization{}, fmt.Errorf("factor: expected %d inputs, got %d", len(f.keys), len(inputs))
	}
	if f.hessianFn != nil {
		r, h, g, err := f.hessianFn(inputs)
		if err != nil {
			return Linearization{}, err
		}
		if len(r) != f.residualDim {
			return Linearization{}, fmt.Errorf("factor: structural error: residual dim changed from %d to %d", f.residualDim, len(r))
		}
		return Linearization{R: r, H: h, G: g}, nil
	}
	r, j, err := f.jacobianFn(inputs, needJacobian)
	if err != nil {
		return Linearization{}, err
	}
	if len(r) != f.residualDim {
		return Linearization{}, fmt.Errorf("factor: structural error: residual dim changed from %d to %d", f.residualDim, len(r))
	}
	return Linearization{R: r, J: j}, nil
}
