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

// BetweenVector builds a Factor constraining the Vector difference between
// keys k1 and k2 to measured, weighted elementwise by sqrtInfo. Residual
// r = sqrtInfo .* ((x2 - x1) - measured); the Jacobian is the constant
// block [-diag(sqrtInfo), diag(sqrtInfo)], derived analytically since
// Vector's Between is exact subtraction.
func BetweenVector(k1, k2 key.Key, measured manifold.Vector, sqrtInfo []float64) (*factor.Factor, error) {
	n := len(measured)
	if len(sqrtInfo) != n {
		return nil, fmt.Errorf("factors: BetweenVector sqrtInfo dimension %d != measured dimension %d", len(sqrtInfo), n)
	}
	fn := func(inputs []manifold.Type, needJacobian bool) ([]float64, *mat.Dense, error) {
		x1, ok1 := inputs[0].(manifold.Vector)
		x2, ok2 := inputs[1].(manifold.Vector)
		if !ok1 || !ok2 {
			return nil, nil, fmt.Errorf("factors: BetweenVector expects manifold.Vector inputs")
		}
		r := make([]float64, n)
		for i := 0; i < n; i++ {
			r[i] = sqrtInfo[i] * ((x2[i] - x1[i]) - measured[i])
		}
		if !needJacobian {
			return r, nil, nil
		}
		J := mat.NewDense(n, 2*n, nil)
		for i := 0; i < n; i++ {
			J.Set(i, i, -sqrtInfo[i])
			J.Set(i, n+i, sqrtInfo[i])
		}
		return r, J, nil
	}
	return factor.NewJacobian([]key.Key{k1, k2}, n, fn, nil)
}

// BetweenRot3 builds a Factor constraining the relative rotation between
// keys k1 and k2 to measured (a1_R_b1 in the notation of symforce's
// BetweenFactorRot3). Residual r = sqrtInfo * measured.LocalCoordinates(
// a.Between(b), epsilon), a 3-vector in measured's tangent frame. The
// Jacobian is taken numerically over the joint 6-dimensional tangent space
// of (a, b), per this package's doc comment.
func BetweenRot3(k1, k2 key.Key, measured manifold.Rot3, sqrtInfo *mat.Dense, epsilon float64) (*factor.Factor, error) {
	if sqrtInfo != nil {
		r, c := sqrtInfo.Dims()
		if r != 3 || c != 3 {
			return nil, fmt.Errorf("factors: BetweenRot3 sqrtInfo must be 3x3, got %dx%d", r, c)
		}
	}
	residual := func(a, b manifold.Rot3) []float64 {
		actual := a.Between(b).(manifold.Rot3)
		local := measured.LocalCoordinates(actual, epsilon)
		if sqrtInfo == nil {
			return local
		}
		lv := mat.NewVecDense(3, local)
		var ov mat.VecDense
		ov.MulVec(sqrtInfo, lv)
		out := make([]float64, 3)
		copy(out, ov.RawVector().Data)
		return out
	}
	fn := func(inputs []manifold.Type, needJacobian bool) ([]float64, *mat.Dense, error) {
		a, ok1 := inputs[0].(manifold.Rot3)
		b, ok2 := inputs[1].(manifold.Rot3)
		if !ok1 || !ok2 {
			return nil, nil, fmt.Errorf("factors: BetweenRot3 expects manifold.Rot3 inputs")
		}
		r := residual(a, b)
		if !needJacobian {
			return r, nil, nil
		}
		J := numericJacobian(6, 3, func(tangent []float64) []float64 {
			da := a.Retract(tangent[:3], epsilon).(manifold.Rot3)
			db := b.Retract(tangent[3:], epsilon).(manifold.Rot3)
			return residual(da, db)
		})
		return r, J, nil
	}
	return factor.NewJacobian([]key.Key{k1, k2}, 3, fn, nil)
}
