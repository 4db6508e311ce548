// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package key defines the compact, hashable, totally ordered identifier
// used to address variables throughout the optimizer: in Values, in
// Factor input lists, and in the derived Index.
package key

import "fmt"

// Key identifies a single optimized or held-constant variable.
//
// A Key carries no type information; the same (Letter, Sub, Super) triple
// always addresses the same slot regardless of what manifold type is
// stored there. Letter groups variables by role (e.g. 'R' for rotations,
// 'x' for landmarks); Sub disambiguates within a group; Super is an
// optional secondary index for variables that are themselves indexed along
// a second axis (e.g. a pose observed at multiple timestamps).
type Key struct {
	Letter byte
	Sub    uint64
	Super  int64 // -1 means "no super-index"
}

// NoSuper is the sentinel Super value meaning the key has no super-index.
const NoSuper int64 = -1

// New builds a Key with no super-index.
func New(letter byte, sub uint64) Key {
	return Key{Letter: letter, Sub: sub, Super: NoSuper}
}

// NewSuper builds a Key with an explicit super-index.
func NewSuper(letter byte, sub uint64, super int64) Key {
	return Key{Letter: letter, Sub: sub, Super: super}
}

// String renders the key in the conventional "Letter_sub" or
// "Letter_sub:super" form, e.g. "R_0" or "x_3:1".
func (k Key) String() string {
	if k.Super == NoSuper {
		return fmt.Sprintf("%c_%d", k.Letter, k.Sub)
	}
	return fmt.Sprintf("%c_%d:%d", k.Letter, k.Sub, k.Super)
}

// Less gives the total order used for deterministic iteration: by Letter,
// then Sub, then Super.
func (k Key) Less(other Key) bool {
	if k.Letter != other.Letter {
		return k.Letter < other.Letter
	}
	if k.Sub != other.Sub {
		return k.Sub < other.Sub
	}
	return k.Super < other.Super
}

// Compare returns -1, 0, or 1 following the same order as Less.
func Compare(a, b Key) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	default:
		return 0
	}
}

// SortKeys returns a new slice with ks sorted by Less. The input is not
// mutated.
func SortKeys(ks []Key) []Key {
	out := make([]Key, len(ks))
	copy(out, ks)
	// insertion sort: key lists handled by this package are small (a
	// factor's arity, or the optimized-key set of a toy problem), and an
	// in-place sort of the copy needs no allocation beyond out and none of
	// the sort package's interface overhead.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Less(out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
