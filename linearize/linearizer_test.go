// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package linearize

import (
	"math"
	"testing"

	"github.com/curioloop/nlsq/factor"
	"github.com/curioloop/nlsq/factors"
	"github.com/curioloop/nlsq/index"
	"github.com/curioloop/nlsq/key"
	"github.com/curioloop/nlsq/manifold"
	"github.com/curioloop/nlsq/values"
)

func buildChain(t *testing.T) (*Linearizer, *index.Index, *values.Values) {
	t.Helper()
	x0, x1 := key.New('x', 0), key.New('x', 1)

	prior, err := factors.PriorVector(x0, manifold.NewVector([]float64{1}), []float64{2})
	if err != nil {
		t.Fatal(err)
	}
	between, err := factors.BetweenVector(x0, x1, manifold.NewVector([]float64{3}), []float64{1})
	if err != nil {
		t.Fatal(err)
	}

	idx := index.NewBuilder(1e-9).Add(x0, 1, 1).Add(x1, 1, 1).Build()
	lz := New()
	if err := lz.Initialize([]*factor.Factor{prior, between}, idx); err != nil {
		t.Fatal(err)
	}

	vals := values.New()
	vals.Set(x0, manifold.NewVector([]float64{0}))
	vals.Set(x1, manifold.NewVector([]float64{0}))
	return lz, idx, vals
}

func TestRelinearizeResidualAndGradient(t *testing.T) {
	lz, _, vals := buildChain(t)
	lin := lz.NewLinearization(true)
	if err := lz.Relinearize(vals, lin); err != nil {
		t.Fatal(err)
	}
	// prior residual: 2*(0-1) = -2; between residual: 1*((0-0)-3) = -3
	if math.Abs(lin.R[0]+2) > 1e-12 || math.Abs(lin.R[1]+3) > 1e-12 {
		t.Fatalf("residual: got %v", lin.R)
	}
	wantError := 0.5 * (4 + 9)
	if math.Abs(lin.Error-wantError) > 1e-12 {
		t.Fatalf("error: got %v want %v", lin.Error, wantError)
	}
	// g = J^T R with J = [[2, 0], [-1, 1]]: g = [2*-2 + -1*-3, 1*-3] = [-1, -3]
	if math.Abs(lin.G[0]+1) > 1e-12 || math.Abs(lin.G[1]+3) > 1e-12 {
		t.Fatalf("gradient: got %v", lin.G)
	}
}

func TestHMatchesJTJ(t *testing.T) {
	lz, idx, vals := buildChain(t)
	lin := lz.NewLinearization(true)
	if err := lz.Relinearize(vals, lin); err != nil {
		t.Fatal(err)
	}

	n := idx.TangentSize()
	var jtj [2][2]float64
	rows, _ := lin.J.Dims()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			sum := 0.0
			for r := 0; r < rows; r++ {
				sum += lin.J.At(r, i) * lin.J.At(r, j)
			}
			jtj[i][j] = sum
		}
	}

	for _, bk := range lz.BlockList() {
		block, rowDim, colDim := lz.HessianBlock(lin, bk)
		rowOff := idx.EntryAt(bk.Low).TangentOffset
		colOff := idx.EntryAt(bk.High).TangentOffset
		for r := 0; r < rowDim; r++ {
			for c := 0; c < colDim; c++ {
				got := block[r*colDim+c]
				want := jtj[rowOff+r][colOff+c]
				if math.Abs(got-want) > 1e-9 {
					t.Fatalf("block(%d,%d)[%d][%d]: got %v want %v", bk.Low, bk.High, r, c, got, want)
				}
			}
		}
	}
}

func TestSparsityPatternStableAcrossRelinearize(t *testing.T) {
	lz, _, vals := buildChain(t)
	lin1 := lz.NewLinearization(false)
	if err := lz.Relinearize(vals, lin1); err != nil {
		t.Fatal(err)
	}
	before := lz.BlockList()

	vals2 := vals.Clone()
	vals2.Set(key.New('x', 0), manifold.NewVector([]float64{5}))
	lin2 := lz.NewLinearization(false)
	if err := lz.Relinearize(vals2, lin2); err != nil {
		t.Fatal(err)
	}
	after := lz.BlockList()

	if len(before) != len(after) {
		t.Fatalf("block list length changed: %d vs %d", len(before), len(after))
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("block %d changed: %v vs %v", i, before[i], after[i])
		}
	}
	if len(lin1.Hvals) != len(lin2.Hvals) || len(lin1.R) != len(lin2.R) {
		t.Fatal("residual/Hessian layout must be stable across relinearizations")
	}
}
