// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package linearize

import (
	"fmt"
	"sort"

	"github.com/curioloop/nlsq/factor"
	"github.com/curioloop/nlsq/index"
	"github.com/curioloop/nlsq/key"
	"github.com/curioloop/nlsq/manifold"
	"github.com/curioloop/nlsq/values"
	"gonum.org/v1/gonum/mat"
)

// factorPlan is the precomputed, factor-local accumulation schedule built
// once by Initialize and replayed by Relinearize on every iteration.
type factorPlan struct {
	f           *factor.Factor
	allKeys     []key.Key // AllKeys(), resolved from values every call
	localTotal  int       // sum of tangent dims of optimized keys (local J/H width)
	optimized   []localVar
	pairs       []pairAccum
	grads       []gradAccum
	rowOffset   int
	residualDim int
}

// Linearizer transforms a Values snapshot into a global Linearization,
// reusing a symbolic sparsity pattern computed once (spec.md §4.3).
type Linearizer struct {
	idx     *index.Index
	factors []*factor.Factor
	plans   []factorPlan

	blocks    map[blockKey]blockMeta
	blockList []blockKey // sorted, for deterministic materialization

	totalRows   int
	hvalsLen    int
	initialized bool
}

// New returns an uninitialized Linearizer.
func New() *Linearizer {
	return &Linearizer{}
}

// IsInitialized reports whether Initialize has run.
func (lz *Linearizer) IsInitialized() bool { return lz.initialized }

// Index returns the Index this Linearizer was initialized with.
func (lz *Linearizer) Index() *index.Index { return lz.idx }

// Initialize performs the one-shot setup spec.md §4.3 describes: for each
// factor, its row range; for each of its optimized keys, its column range;
// and the symbolic sparsity pattern of H as the union over factors of the
// Cartesian products of their optimized keys' column ranges.
func (lz *Linearizer) Initialize(factors []*factor.Factor, idx *index.Index) error {
	lz.idx = idx
	lz.factors = factors
	lz.plans = make([]factorPlan, len(factors))
	lz.blocks = make(map[blockKey]blockMeta)

	rowOff := 0
	for fi, f := range factors {
		plan := factorPlan{
			f:           f,
			allKeys:     f.AllKeys(),
			rowOffset:   rowOff,
			residualDim: f.ResidualDim(),
		}
		rowOff += f.ResidualDim()

		optKeys := f.OptimizedKeys()
		plan.optimized = make([]localVar, len(optKeys))
		localOff := 0
		for i, k := range optKeys {
			pos := idx.PositionFor(k)
			if pos < 0 {
				return fmt.Errorf("linearize: factor %d references unknown optimized key %s", fi, k)
			}
			entry := idx.EntryAt(pos)
			plan.optimized[i] = localVar{position: pos, offset: localOff, dim: entry.TangentDim, globalOffset: entry.TangentOffset}
			localOff += entry.TangentDim
		}
		plan.localTotal = localOff

		// gradient accumulation schedule: one entry per optimized key
		for _, lv := range plan.optimized {
			plan.grads = append(plan.grads, gradAccum{
				localOffset:  lv.offset,
				dim:          lv.dim,
				globalOffset: idx.EntryAt(lv.position).TangentOffset,
			})
		}

		// Hessian block accumulation schedule: every unordered pair
		// (including self-pairs) of the factor's optimized keys.
		for p := 0; p < len(plan.optimized); p++ {
			for q := p; q < len(plan.optimized); q++ {
				a, b := plan.optimized[p], plan.optimized[q]
				low, high := a, b
				if b.position < a.position {
					low, high = b, a
				}
				bk := blockKey{Low: low.position, High: high.position}
				meta, ok := lz.blocks[bk]
				if !ok {
					meta = blockMeta{
						RowDim: idx.EntryAt(bk.Low).TangentDim,
						ColDim: idx.EntryAt(bk.High).TangentDim,
						Offset: lz.hvalsLen,
					}
					lz.blocks[bk] = meta
					lz.hvalsLen += meta.RowDim * meta.ColDim
				}
				plan.pairs = append(plan.pairs, pairAccum{
					lowOffset: low.offset, lowDim: low.dim,
					highOffset: high.offset, highDim: high.dim,
					blockOffset: meta.Offset,
					blockRowDim: meta.RowDim, blockColDim: meta.ColDim,
				})
			}
		}

		lz.plans[fi] = plan
	}

	lz.totalRows = rowOff

	lz.blockList = make([]blockKey, 0, len(lz.blocks))
	for bk := range lz.blocks {
		lz.blockList = append(lz.blockList, bk)
	}
	sort.Slice(lz.blockList, func(i, j int) bool {
		if lz.blockList[i].Low != lz.blockList[j].Low {
			return lz.blockList[i].Low < lz.blockList[j].Low
		}
		return lz.blockList[i].High < lz.blockList[j].High
	})

	lz.initialized = true
	return nil
}

// BlockList returns the sorted list of materialized block keys, exposed so
// callers (the LM driver's damping step, the optimizer's covariance
// extraction) can walk the sparsity pattern without reaching into package
// internals.
func (lz *Linearizer) BlockList() []blockKey { return lz.blockList }

// HessianBlock returns the flat sub-slice of lin.Hvals holding the
// (lowPos, highPos) block, plus its row/column dims.
func (lz *Linearizer) HessianBlock(lin *Linearization, bk blockKey) (block []float64, rowDim, colDim int) {
	meta := lz.blocks[bk]
	return lin.Hvals[meta.Offset : meta.Offset+meta.RowDim*meta.ColDim], meta.RowDim, meta.ColDim
}

// Relinearize refills R, J (if allocated), Hvals, and G in out, reusing the
// sparsity pattern computed by Initialize (spec.md §4.3 "relinearize").
// Factors are evaluated in insertion order; Hessian block accumulation is
// associative/commutative, so floating-point rounding is the only source
// of order-dependence, and that order is fixed by iterating plans in slice
// order.
func (lz *Linearizer) Relinearize(vals *values.Values, out *Linearization) error {
	if !lz.initialized {
		return fmt.Errorf("linearize: Relinearize called before Initialize")
	}

	zero(out.R)
	zero(out.Hvals)
	zero(out.G)
	wantJ := out.J != nil
	if wantJ {
		out.J.Zero()
	}

	inputs := make([]manifold.Type, 0, 8)
	for fi := range lz.plans {
		plan := &lz.plans[fi]

		inputs = inputs[:0]
		for _, k := range plan.allKeys {
			v, err := vals.Get(k)
			if err != nil {
				return fmt.Errorf("linearize: factor %d: %w", fi, err)
			}
			inputs = append(inputs, v)
		}

		// The local Jacobian is always needed to accumulate H and g, even
		// when the caller didn't ask for the global stacked J.
		lr, err := plan.f.Linearize(inputs, true)
		if err != nil {
			return fmt.Errorf("linearize: factor %d: %w", fi, err)
		}
		if len(lr.R) != plan.residualDim {
			return fmt.Errorf("linearize: structural error: factor %d residual dim changed from %d to %d", fi, plan.residualDim, len(lr.R))
		}
		copy(out.R[plan.rowOffset:plan.rowOffset+plan.residualDim], lr.R)

		if plan.f.IsHessianForm() {
			accumulateHessianForm(out, plan, lr)
		} else {
			if wantJ {
				scatterJacobian(out.J, plan, lr.J)
			}
			accumulateJacobianForm(out, plan, lr)
		}
	}

	sumSq := 0.0
	for _, r := range out.R {
		sumSq += r * r
	}
	out.Error = 0.5 * sumSq

	return nil
}

func scatterJacobian(global *mat.Dense, plan *factorPlan, local *mat.Dense) {
	rows, _ := local.Dims()
	for _, lv := range plan.optimized {
		dst := global.Slice(plan.rowOffset, plan.rowOffset+rows, lv.globalOffset, lv.globalOffset+lv.dim).(*mat.Dense)
		src := local.Slice(0, rows, lv.offset, lv.offset+lv.dim)
		dst.Copy(src)
	}
}

func accumulateJacobianForm(out *Linearization, plan *factorPlan, lr factor.Linearization) {
	for _, pr := range plan.pairs {
		low := lr.J.Slice(0, len(lr.R), pr.lowOffset, pr.lowOffset+pr.lowDim)
		high := lr.J.Slice(0, len(lr.R), pr.highOffset, pr.highOffset+pr.highDim)
		var contrib mat.Dense
		contrib.Mul(low.T(), high)
		addInto(out.Hvals[pr.blockOffset:pr.blockOffset+pr.blockRowDim*pr.blockColDim], &contrib, pr.blockRowDim, pr.blockColDim)
	}
	for _, ga := range plan.grads {
		col := lr.J.Slice(0, len(lr.R), ga.localOffset, ga.localOffset+ga.dim)
		var contrib mat.VecDense
		contrib.MulVec(col.T(), mat.NewVecDense(len(lr.R), lr.R))
		for i := 0; i < ga.dim; i++ {
			out.G[ga.globalOffset+i] += contrib.AtVec(i)
		}
	}
}

func accumulateHessianForm(out *Linearization, plan *factorPlan, lr factor.Linearization) {
	for _, pr := range plan.pairs {
		sub := lr.H.Slice(pr.lowOffset, pr.lowOffset+pr.lowDim, pr.highOffset, pr.highOffset+pr.highDim)
		addInto(out.Hvals[pr.blockOffset:pr.blockOffset+pr.blockRowDim*pr.blockColDim], sub, pr.blockRowDim, pr.blockColDim)
	}
	for _, ga := range plan.grads {
		for i := 0; i < ga.dim; i++ {
			out.G[ga.globalOffset+i] += lr.G[ga.localOffset+i]
		}
	}
}

func addInto(dst []float64, src mat.Matrix, rows, cols int) {
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			dst[r*cols+c] += src.At(r, c)
		}
	}
}
