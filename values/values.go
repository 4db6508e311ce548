// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package values implements the heterogeneous container mapping Key to
// manifold-typed data (spec.md §4.1). Insertion order is preserved for
// deterministic iteration; lookup is by key.
package values

import (
	"fmt"

	"github.com/curioloop/nlsq/index"
	"github.com/curioloop/nlsq/key"
	"github.com/curioloop/nlsq/manifold"
)

// Values is a mapping from key.Key to a manifold.Type value.
//
// It is not safe for concurrent use: per spec.md §5, a Values is
// exclusively borrowed for the duration of one Optimizer.Optimize call.
type Values struct {
	entries map[key.Key]manifold.Type
	order   []key.Key
}

// New returns an empty Values container.
func New() *Values {
	return &Values{entries: make(map[key.Key]manifold.Type)}
}

// Set inserts or overwrites the value at k.
func (v *Values) Set(k key.Key, val manifold.Type) {
	if _, exists := v.entries[k]; !exists {
		v.order = append(v.order, k)
	}
	v.entries[k] = val
}

// Has reports whether k is present.
func (v *Values) Has(k key.Key) bool {
	_, ok := v.entries[k]
	return ok
}

// Get returns the value at k and an error if k is absent.
func (v *Values) Get(k key.Key) (manifold.Type, error) {
	val, ok := v.entries[k]
	if !ok {
		return nil, fmt.Errorf("values: missing key %s", k)
	}
	return val, nil
}

// GetAs retrieves the value at k and asserts it has type T, failing with
// an error on either a missing key or a type mismatch.
func GetAs[T manifold.Type](v *Values, k key.Key) (T, error) {
	var zero T
	val, err := v.Get(k)
	if err != nil {
		return zero, err
	}
	typed, ok := val.(T)
	if !ok {
		return zero, fmt.Errorf("values: key %s has type %T, not %T", k, val, zero)
	}
	return typed, nil
}

// Keys returns all keys in insertion order.
func (v *Values) Keys() []key.Key {
	out := make([]key.Key, len(v.order))
	copy(out, v.order)
	return out
}

// Len returns the number of entries.
func (v *Values) Len() int { return len(v.order) }

// Retract applies a tangent-space increment to every key in idx, key by
// key, using each value's own Retract method. dx must have length equal to
// idx.TangentSize().
func (v *Values) Retract(idx *index.Index, dx []float64) error {
	if len(dx) != idx.TangentSize() {
		return fmt.Errorf("values: retract dimension mismatch: got %d want %d", len(dx), idx.TangentSize())
	}
	for _, e := range idx.Entries() {
		cur, err := v.Get(e.Key)
		if err != nil {
			return err
		}
		tangent := dx[e.TangentOffset : e.TangentOffset+e.TangentDim]
		v.entries[e.Key] = cur.Retract(tangent, idx.Epsilon())
	}
	return nil
}

// Update copies values from other at the keys listed in idxB into v at the
// corresponding positions of idxA. idxA and idxB must have the same length
// and are matched position-by-position, mirroring spec.md §4.1's
// `update(index_a, index_b, other)` contract. The LM driver uses it to
// commit an accepted trial Values into the caller's Values.
func (v *Values) Update(idxA, idxB *index.Index, other *Values) error {
	ea, eb := idxA.Entries(), idxB.Entries()
	if len(ea) != len(eb) {
		return fmt.Errorf("values: update index length mismatch: %d vs %d", len(ea), len(eb))
	}
	for i := range ea {
		val, err := other.Get(eb[i].Key)
		if err != nil {
			return err
		}
		v.entries[ea[i].Key] = val
	}
	return nil
}

// Clone returns a shallow copy: a new Values with the same key ordering and
// the same manifold.Type values (manifold values are treated as immutable
// after construction, so sharing them across clones is safe).
func (v *Values) Clone() *Values {
	out := New()
	out.order = make([]key.Key, len(v.order))
	copy(out.order, v.order)
	out.entries = make(map[key.Key]manifold.Type, len(v.entries))
	for k, val := range v.entries {
		out.entries[k] = val
	}
	return out
}
