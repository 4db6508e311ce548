// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package manifold

import "math"

// Rot3 is a 3D rotation stored as a unit quaternion (W, X, Y, Z). Storage
// dimension is 4, tangent dimension is 3 — the over-parameterized case
// spec.md §3 calls out explicitly. Retraction is the quaternion exponential
// map composed on the right; local coordinates is its inverse, the
// quaternion logarithm. Every operation threads an epsilon that regularizes
// the map at the identity rotation, where the axis of an infinitesimal
// rotation is undefined (spec.md §9's "epsilon regularization" requirement).
type Rot3 struct {
	W, X, Y, Z float64
}

// IdentityRot3 returns the identity rotation.
func IdentityRot3() Rot3 {
	return Rot3{W: 1}
}

// Rot3FromStorage deserializes a Rot3 from its packed [w, x, y, z] form.
func Rot3FromStorage(buf []float64) Rot3 {
	if len(buf) != 4 {
		panic("manifold: Rot3 storage must have length 4")
	}
	return Rot3{W: buf[0], X: buf[1], Y: buf[2], Z: buf[3]}.normalized()
}

func (r Rot3) normalized() Rot3 {
	n := math.Sqrt(r.W*r.W + r.X*r.X + r.Y*r.Y + r.Z*r.Z)
	if n == 0 {
		return IdentityRot3()
	}
	return Rot3{W: r.W / n, X: r.X / n, Y: r.Y / n, Z: r.Z / n}
}

// canonical flips sign so W >= 0, giving the shorter-path representative
// of the double-covered rotation (q and -q represent the same rotation).
func (r Rot3) canonical() Rot3 {
	if r.W < 0 {
		return Rot3{W: -r.W, X: -r.X, Y: -r.Y, Z: -r.Z}
	}
	return r
}

func (Rot3) StorageDim() int { return 4 }
func (Rot3) TangentDim() int { return 3 }

func (r Rot3) ToStorage(buf []float64) {
	if len(buf) != 4 {
		panic("manifold: storage buffer size mismatch")
	}
	buf[0], buf[1], buf[2], buf[3] = r.W, r.X, r.Y, r.Z
}

func quatMul(a, b Rot3) Rot3 {
	return Rot3{
		W: a.W*b.W - a.X*b.X - a.Y*b.Y - a.Z*b.Z,
		X: a.W*b.X + a.X*b.W + a.Y*b.Z - a.Z*b.Y,
		Y: a.W*b.Y - a.X*b.Z + a.Y*b.W + a.Z*b.X,
		Z: a.W*b.Z + a.X*b.Y - a.Y*b.X + a.Z*b.W,
	}
}

// expTangent maps a tangent (rotation) vector to the quaternion exponential,
// regularized near the origin by epsilon so the axis/angle split never
// divides by zero.
func expTangent(tangent []float64, epsilon float64) Rot3 {
	wx, wy, wz := tangent[0], tangent[1], tangent[2]
	angle := math.Sqrt(wx*wx + wy*wy + wz*wz)
	halfAngle := 0.5 * angle
	var scale float64
	if angle > epsilon {
		scale = math.Sin(halfAngle) / angle
	} else {
		// sin(x)/x -> 1 as x -> 0; halve for the half-angle convention.
		scale = 0.5 - angle*angle/48
	}
	return Rot3{
		W: math.Cos(halfAngle),
		X: scale * wx,
		Y: scale * wy,
		Z: scale * wz,
	}
}

// logRot3 maps a unit quaternion to its tangent (rotation) vector,
// regularized near the identity by epsilon.
func logRot3(r Rot3, epsilon float64) []float64 {
	r = r.canonical()
	vNorm := math.Sqrt(r.X*r.X + r.Y*r.Y + r.Z*r.Z)
	var scale float64
	if vNorm > epsilon {
		angle := 2 * math.Atan2(vNorm, r.W)
		scale = angle / vNorm
	} else {
		// atan2(v, w) ~ v/w near the identity (w ~ 1); scale by 2 for the
		// half-angle convention, matching expTangent's Taylor branch.
		scale = 2
	}
	return []float64{scale * r.X, scale * r.Y, scale * r.Z}
}

func (r Rot3) Retract(tangent []float64, epsilon float64) Type {
	if len(tangent) != 3 {
		panic("manifold: tangent dimension mismatch")
	}
	return quatMul(r, expTangent(tangent, epsilon)).normalized()
}

func (r Rot3) LocalCoordinates(other Type, epsilon float64) []float64 {
	o, ok := other.(Rot3)
	if !ok {
		panic("manifold: local coordinates type mismatch")
	}
	return logRot3(quatMul(r.Inverse().(Rot3), o), epsilon)
}

// Identity returns the identity rotation.
func (Rot3) Identity() Type { return IdentityRot3() }

// Compose returns r * other (apply other's rotation, then r's).
func (r Rot3) Compose(other Type) Type {
	return quatMul(r, other.(Rot3)).normalized()
}

// Inverse returns the conjugate, which for a unit quaternion is the
// inverse rotation.
func (r Rot3) Inverse() Type {
	return Rot3{W: r.W, X: -r.X, Y: -r.Y, Z: -r.Z}
}

// Between returns r^-1 * other, the rotation taking r to other.
func (r Rot3) Between(other Type) Type {
	return quatMul(r.Inverse().(Rot3), other.(Rot3)).normalized()
}
