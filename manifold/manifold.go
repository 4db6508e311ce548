// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package manifold implements the external manifold contract spec.md §6
// requires but treats as a collaborator: retraction, local coordinates,
// and storage/tangent dimensions for the variable types a Values container
// can hold. The optimizer core never imports a concrete manifold type by
// name — it only ever sees the Type interface, so the set of supported
// manifolds stays open-ended without touching values, factor, or lm.
package manifold

// Type is the contract every manifold-valued variable must satisfy. It is
// the idiomatic-Go form of the "polymorphic table of operations" in
// DESIGN.md: Go's interface dispatch already is the vtable, so there is no
// separate struct of function pointers to maintain.
type Type interface {
	// StorageDim is the number of scalars in the packed representation.
	StorageDim() int
	// TangentDim is the dimension of the local linear tangent space, which
	// may be strictly less than StorageDim for over-parameterized manifolds
	// (e.g. a unit quaternion: 4 storage scalars, 3 tangent dimensions).
	TangentDim() int
	// ToStorage serializes the value into buf, which has length StorageDim().
	ToStorage(buf []float64)
	// Retract applies a tangent-space increment (length TangentDim()) to the
	// receiver and returns the resulting point on the manifold. epsilon
	// regularizes operations that are singular at specific points (e.g. the
	// quaternion log map at the identity rotation).
	Retract(tangent []float64, epsilon float64) Type
	// LocalCoordinates is the inverse of Retract: it returns the tangent
	// vector that retracts the receiver to other.
	LocalCoordinates(other Type, epsilon float64) []float64
}

// Group is the subset of the manifold contract available to types that
// form a group under composition (rotations, poses). Both Rot3 and Vector
// (a group under addition) implement Group.
type Group interface {
	Type
	Compose(other Type) Type
	Inverse() Type
	Between(other Type) Type
}
