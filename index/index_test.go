// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import (
	"testing"

	"github.com/curioloop/nlsq/key"
)

func TestBuildOffsets(t *testing.T) {
	k0, k1 := key.New('x', 0), key.New('R', 0)
	idx := NewBuilder(1e-9).Add(k0, 3, 3).Add(k1, 4, 3).Build()

	if idx.Len() != 2 {
		t.Fatalf("len: got %d", idx.Len())
	}
	if idx.StorageSize() != 7 || idx.TangentSize() != 6 {
		t.Fatalf("sizes: storage=%d tangent=%d", idx.StorageSize(), idx.TangentSize())
	}

	e0, ok := idx.EntryFor(k0)
	if !ok || e0.StorageOffset != 0 || e0.TangentOffset != 0 {
		t.Fatalf("entry 0: %+v", e0)
	}
	e1, ok := idx.EntryFor(k1)
	if !ok || e1.StorageOffset != 3 || e1.TangentOffset != 3 {
		t.Fatalf("entry 1: %+v", e1)
	}
}

func TestEntryForMissing(t *testing.T) {
	idx := NewBuilder(0).Add(key.New('x', 0), 1, 1).Build()
	if _, ok := idx.EntryFor(key.New('x', 1)); ok {
		t.Fatal("expected missing key to report ok=false")
	}
	if idx.PositionFor(key.New('x', 1)) != -1 {
		t.Fatal("expected PositionFor to return -1 for a missing key")
	}
}

func TestIsPrefixOf(t *testing.T) {
	a := key.New('x', 0)
	b := key.New('x', 1)
	c := key.New('x', 2)

	prefix := NewBuilder(0).Add(a, 1, 1).Add(b, 1, 1).Build()
	full := NewBuilder(0).Add(a, 1, 1).Add(b, 1, 1).Add(c, 1, 1).Build()
	notPrefix := NewBuilder(0).Add(b, 1, 1).Add(a, 1, 1).Build()

	if !prefix.IsPrefixOf(full) {
		t.Fatal("expected prefix.IsPrefixOf(full) to hold")
	}
	if notPrefix.IsPrefixOf(full) {
		t.Fatal("out-of-order keys must not be treated as a prefix")
	}
	if full.IsPrefixOf(prefix) {
		t.Fatal("a longer index cannot be a prefix of a shorter one")
	}
}

func TestEpsilonCarried(t *testing.T) {
	idx := NewBuilder(1e-6).Build()
	if idx.Epsilon() != 1e-6 {
		t.Fatalf("got %v", idx.Epsilon())
	}
}
