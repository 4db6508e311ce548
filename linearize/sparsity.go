// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package linearize

// blockKey identifies one symmetric Hessian block by the positions (in the
// Index) of the two keys it couples. Low <= High always: only the
// lower-position-ordered half of H is materialized, the other half is
// implicit by symmetry, per spec.md §4.3 step 2c.
type blockKey struct {
	Low, High int
}

// blockMeta records a block's shape and its flat offset into the shared
// Hvals array.
type blockMeta struct {
	RowDim, ColDim int
	Offset         int
}

// localVar is one optimized key's placement within a single factor's own
// local Jacobian/Hessian column layout (distinct from its placement in the
// global Index).
type localVar struct {
	position     int // position in the global Index
	offset       int // local column offset within this factor's J or H_loc
	dim          int // tangent dim
	globalOffset int // tangent-column offset in the global Index
}

// pairAccum is a precomputed instruction: accumulate the (low, high)
// sub-block of a factor's local contribution into Hvals at Offset. This is
// the "deterministic ordering" strategy from DESIGN.md: relinearize becomes
// a straight-line sequence of indexed accumulations with no map lookups.
type pairAccum struct {
	lowOffset, lowDim   int
	highOffset, highDim int
	blockOffset         int
	blockRowDim         int // == lowDim
	blockColDim         int // == highDim
}

// gradAccum is a precomputed instruction: accumulate a local key's gradient
// contribution into the global gradient vector at Offset.
type gradAccum struct {
	localOffset, dim int
	globalOffset      int
}
