// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package index implements the derived, immutable description of the
// subset of keys being optimized (spec.md §3 "Index"): an ordered list of
// (key, storage offset, storage dim, tangent offset, tangent dim). It is
// built once at Optimizer initialization and consumed by the linearizer
// and the retractor.
package index

import "github.com/curioloop/nlsq/key"

// Entry describes one key's placement within the flattened storage and
// tangent vectors.
type Entry struct {
	Key           key.Key
	StorageOffset int
	StorageDim    int
	TangentOffset int
	TangentDim    int
}

// Index is the immutable, ordered layout of a key set.
type Index struct {
	entries     []Entry
	byKey       map[key.Key]int // entry position, for O(1) lookup
	storageSize int
	tangentSize int
	epsilon     float64
}

// Builder accumulates entries in key order before Build freezes them into
// an Index with computed offsets.
type Builder struct {
	entries []entrySpec
	epsilon float64
}

type entrySpec struct {
	key        key.Key
	storageDim int
	tangentDim int
}

// NewBuilder starts an Index construction with the given epsilon, threaded
// into every manifold operation the resulting Index's consumers perform.
func NewBuilder(epsilon float64) *Builder {
	return &Builder{epsilon: epsilon}
}

// Add appends a key with its storage and tangent dimensions, in the order
// it should appear in the flattened vectors. Order matters: it determines
// both iteration order and the prefix constraint required by
// Optimizer.ComputeCovariances.
func (b *Builder) Add(k key.Key, storageDim, tangentDim int) *Builder {
	b.entries = append(b.entries, entrySpec{key: k, storageDim: storageDim, tangentDim: tangentDim})
	return b
}

// Build freezes the accumulated entries into an Index, computing flat
// storage and tangent offsets.
func (b *Builder) Build() *Index {
	idx := &Index{
		entries: make([]Entry, len(b.entries)),
		byKey:   make(map[key.Key]int, len(b.entries)),
		epsilon: b.epsilon,
	}
	storageOff, tangentOff := 0, 0
	for i, spec := range b.entries {
		idx.entries[i] = Entry{
			Key:           spec.key,
			StorageOffset: storageOff,
			StorageDim:    spec.storageDim,
			TangentOffset: tangentOff,
			TangentDim:    spec.tangentDim,
		}
		idx.byKey[spec.key] = i
		storageOff += spec.storageDim
		tangentOff += spec.tangentDim
	}
	idx.storageSize = storageOff
	idx.tangentSize = tangentOff
	return idx
}

// Entries returns the ordered entries.
func (idx *Index) Entries() []Entry { return idx.entries }

// Len returns the number of keys in the index.
func (idx *Index) Len() int { return len(idx.entries) }

// StorageSize is the total number of packed scalars across all entries.
func (idx *Index) StorageSize() int { return idx.storageSize }

// TangentSize is the total tangent-space dimension across all entries.
func (idx *Index) TangentSize() int { return idx.tangentSize }

// Epsilon is the regularization scalar this index's entries were built
// with, threaded into manifold operations performed against it.
func (idx *Index) Epsilon() float64 { return idx.epsilon }

// EntryFor returns the Entry for k and whether it was found.
func (idx *Index) EntryFor(k key.Key) (Entry, bool) {
	pos, ok := idx.byKey[k]
	if !ok {
		return Entry{}, false
	}
	return idx.entries[pos], true
}

// PositionFor returns k's position in the ordered entry list, or -1 if k
// is not in the index. Positions give the canonical ordering used to
// decide which half of a Hessian block pair is materialized.
func (idx *Index) PositionFor(k key.Key) int {
	pos, ok := idx.byKey[k]
	if !ok {
		return -1
	}
	return pos
}

// EntryAt returns the Entry at position pos.
func (idx *Index) EntryAt(pos int) Entry { return idx.entries[pos] }

// IsPrefixOf reports whether idx's key list, in order, is exactly the
// first idx.Len() keys of other's key list. This is the caller obligation
// spec.md §9 mandates for Optimizer.ComputeCovariances' Schur-complement
// fast path.
func (idx *Index) IsPrefixOf(other *Index) bool {
	if idx.Len() > other.Len() {
		return false
	}
	for i, e := range idx.entries {
		if other.entries[i].Key != e.Key {
			return false
		}
	}
	return true
}
