package utils

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

func Distance(p, q r3.Vec) float64 { return r3.Norm(r3.Sub(p, q)) }

func Distance2(p, q r3.Vec) float64 { return r3.Norm2(r3.Sub(p, q)) }

func Component(p r3.Vec, i int) float64 {
	switch i {
	case 0:
		return p.X
	case 1:
		return p.Y
	case 2:
		return p.Z
	}
	panic("vector component out of range")
}

func UnitVector(i int) (e r3.Vec) {
	switch i {
	case 0:
		e.X = 1
	case 1:
		e.Y = 1
	case 2:
		e.Z = 1
	default:
		panic("vector component out of range")
	}
	return
}

// Centroid3 returns the mean of three points.
func Centroid3(a, b, c r3.Vec) r3.Vec {
	return r3.Scale(1./3., r3.Add(r3.Add(a, b), c))
}

func VecFromSlice(v []float64) r3.Vec {
	if len(v) != 3 {
		panic("VecFromSlice requires three components")
	}
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}
}

func VecEqualWithin(p, q r3.Vec, tol float64) bool {
	return math.Abs(p.X-q.X) <= tol && math.Abs(p.Y-q.Y) <= tol && math.Abs(p.Z-q.Z) <= tol
}

// CVec is a complex 3-vector, used for field values and gradients.
type CVec [3]complex128

func (v CVec) Dot(p r3.Vec) complex128 {
	return v[0]*complex(p.X, 0) + v[1]*complex(p.Y, 0) + v[2]*complex(p.Z, 0)
}

func (v CVec) Scale(s complex128) (r CVec) {
	for i := range v {
		r[i] = s * v[i]
	}
	return
}

func (v CVec) Add(w CVec) (r CVec) {
	for i := range v {
		r[i] = v[i] + w[i]
	}
	return
}

// CVecFromReal promotes a real vector scaled by a complex factor.
func CVecFromReal(p r3.Vec, s complex128) CVec {
	return CVec{s * complex(p.X, 0), s * complex(p.Y, 0), s * complex(p.Z, 0)}
}

// CrossRC returns p x v for real p and complex v.
func CrossRC(p r3.Vec, v CVec) CVec {
	px, py, pz := complex(p.X, 0), complex(p.Y, 0), complex(p.Z, 0)
	return CVec{
		py*v[2] - pz*v[1],
		pz*v[0] - px*v[2],
		px*v[1] - py*v[0],
	}
}
