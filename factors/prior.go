// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package factors

import (
	"fmt"

	"github.com/curioloop/nlsq/factor"
	"github.com/curioloop/nlsq/key"
	"github.com/curioloop/nlsq/manifold"
	"gonum.org/v1/gonum/mat"
)

// PriorVector builds a Factor anchoring key k's Vector value to prior,
// weighted elementwise by sqrtInfo (a diagonal square-root information
// vector, matching the convention of symforce's linear_factor prior
// examples). Residual r_i = sqrtInfo[i]*(x_i - prior_i); the Jacobian is
// the constant diagonal diag(sqrtInfo), so this factor is cheap enough to
// differentiate analytically rather than numerically.
func PriorVector(k key.Key, prior manifold.Vector, sqrtInfo []float64) (*factor.Factor, error) {
	n := len(prior)
	if len(sqrtInfo) != n {
		return nil, fmt.Errorf("factors: PriorVector sqrtInfo dimension %d != prior dimension %d", len(sqrtInfo), n)
	}
	fn := func(inputs []manifold.Type, needJacobian bool) ([]float64, *mat.Dense, error) {
		x, ok := inputs[0].(manifold.Vector)
		if !ok {
			return nil, nil, fmt.Errorf("factors: PriorVector expects a manifold.Vector input")
		}
		r := make([]float64, n)
		for i := 0; i < n; i++ {
			r[i] = sqrtInfo[i] * (x[i] - prior[i])
		}
		if !needJacobian {
			return r, nil, nil
		}
		J := mat.NewDense(n, n, nil)
		for i := 0; i < n; i++ {
			J.Set(i, i, sqrtInfo[i])
		}
		return r, J, nil
	}
	return factor.NewJacobian([]key.Key{k}, n, fn, nil)
}

// PriorRot3 builds a Factor anchoring key k's Rot3 value to prior.
// Residual r = sqrtInfo * prior.LocalCoordinates(x, epsilon), a 3-vector in
// prior's tangent frame. The Jacobian of the quaternion log map is
// approximated by a central difference (see numericJacobian) instead of
// derived symbolically, per this package's doc comment.
func PriorRot3(k key.Key, prior manifold.Rot3, sqrtInfo *mat.Dense, epsilon float64) (*factor.Factor, error) {
	if sqrtInfo != nil {
		r, c := sqrtInfo.Dims()
		if r != 3 || c != 3 {
			return nil, fmt.Errorf("factors: PriorRot3 sqrtInfo must be 3x3, got %dx%d", r, c)
		}
	}
	residual := func(x manifold.Rot3) []float64 {
		local := prior.LocalCoordinates(x, epsilon)
		if sqrtInfo == nil {
			return local
		}
		out := make([]float64, 3)
		lv := mat.NewVecDense(3, local)
		var ov mat.VecDense
		ov.MulVec(sqrtInfo, lv)
		copy(out, ov.RawVector().Data)
		return out
	}
	fn := func(inputs []manifold.Type, needJacobian bool) ([]float64, *mat.Dense, error) {
		x, ok := inputs[0].(manifold.Rot3)
		if !ok {
			return nil, nil, fmt.Errorf("factors: PriorRot3 expects a manifold.Rot3 input")
		}
		r := residual(x)
		if !needJacobian {
			return r, nil, nil
		}
		J := numericJacobian(3, 3, func(tangent []float64) []float64 {
			return residual(x.Retract(tangent, epsilon).(manifold.Rot3))
		})
		return r, J, nil
	}
	return factor.NewJacobian([]key.Key{k}, 3, fn, nil)
}
