// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package manifold

import (
	"math"
	"testing"
)

const testEpsilon = 1e-9

func approxEqual(a, b []float64, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}

func TestVectorRetractZero(t *testing.T) {
	v := NewVector([]float64{1, 2, 3})
	out := v.Retract([]float64{0, 0, 0}, testEpsilon).(Vector)
	if !approxEqual(out, v, 1e-12) {
		t.Fatalf("retract(x,0) != x: got %v want %v", out, v)
	}
}

func TestVectorLocalCoordinatesSelfIsZero(t *testing.T) {
	v := NewVector([]float64{4, -1, 0.5})
	lc := v.LocalCoordinates(v, testEpsilon)
	if !approxEqual(lc, []float64{0, 0, 0}, 1e-12) {
		t.Fatalf("local_coordinates(x,x) != 0: got %v", lc)
	}
}

func TestVectorRoundTrip(t *testing.T) {
	x := NewVector([]float64{1, 2, 3})
	y := NewVector([]float64{1.5, 1.9, 3.2})
	tangent := x.LocalCoordinates(y, testEpsilon)
	back := x.Retract(tangent, testEpsilon).(Vector)
	if !approxEqual(back, y, 1e-9) {
		t.Fatalf("retract(x, local(x,y)) != y: got %v want %v", back, y)
	}
}

func TestRot3RetractZero(t *testing.T) {
	r := Rot3{W: 0.7, X: 0.1, Y: 0.2, Z: math.Sqrt(1 - 0.7*0.7 - 0.1*0.1 - 0.2*0.2)}
	out := r.Retract([]float64{0, 0, 0}, testEpsilon).(Rot3)
	if math.Abs(out.W-r.W) > 1e-9 || math.Abs(out.X-r.X) > 1e-9 ||
		math.Abs(out.Y-r.Y) > 1e-9 || math.Abs(out.Z-r.Z) > 1e-9 {
		t.Fatalf("retract(x,0) != x: got %+v want %+v", out, r)
	}
}

func TestRot3LocalCoordinatesSelfIsZero(t *testing.T) {
	r := IdentityRot3()
	lc := r.LocalCoordinates(r, testEpsilon)
	if !approxEqual(lc, []float64{0, 0, 0}, 1e-9) {
		t.Fatalf("local_coordinates(x,x) != 0: got %v", lc)
	}
}

func TestRot3RoundTrip(t *testing.T) {
	a := IdentityRot3()
	tangent := []float64{0.1, -0.2, 0.05}
	b := a.Retract(tangent, testEpsilon).(Rot3)

	lc := a.LocalCoordinates(b, testEpsilon)
	if !approxEqual(lc, tangent, 1e-6) {
		t.Fatalf("local_coordinates(a,b) != tangent: got %v want %v", lc, tangent)
	}

	back := a.Retract(lc, testEpsilon).(Rot3)
	if math.Abs(back.W-b.W) > 1e-9 || math.Abs(back.X-b.X) > 1e-9 ||
		math.Abs(back.Y-b.Y) > 1e-9 || math.Abs(back.Z-b.Z) > 1e-9 {
		t.Fatalf("retract(a, local(a,b)) != b: got %+v want %+v", back, b)
	}
}

func TestRot3BetweenIdentity(t *testing.T) {
	r := IdentityRot3().Retract([]float64{0.3, 0.1, -0.2}, testEpsilon).(Rot3)
	between := r.Between(r).(Rot3)
	id := IdentityRot3()
	if math.Abs(between.W-id.W) > 1e-9 || math.Abs(between.X) > 1e-9 ||
		math.Abs(between.Y) > 1e-9 || math.Abs(between.Z) > 1e-9 {
		t.Fatalf("between(r,r) != identity: got %+v", between)
	}
}
