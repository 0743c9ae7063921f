package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

type LatticeKind uint8

const (
	OneD LatticeKind = iota + 1
	TwoD
)

// Lattice holds one or two lattice vectors in the xy plane.
type Lattice struct {
	Basis []r3.Vec
}

func NewLattice(basis ...r3.Vec) (L *Lattice, err error) {
	switch len(basis) {
	case 1:
		if r3.Norm(basis[0]) == 0 {
			return nil, fmt.Errorf("lattice vector is zero")
		}
	case 2:
		if math.Abs(r3.Cross(basis[0], basis[1]).Z) < 1.e-12*r3.Norm(basis[0])*r3.Norm(basis[1]) {
			return nil, fmt.Errorf("lattice vectors are collinear")
		}
	default:
		return nil, fmt.Errorf("lattice needs 1 or 2 vectors, have %d", len(basis))
	}
	for _, b := range basis {
		if b.Z != 0 {
			return nil, fmt.Errorf("lattice vectors must lie in the xy plane")
		}
	}
	return &Lattice{Basis: basis}, nil
}

func (L *Lattice) Dimension() int { return len(L.Basis) }

func (L *Lattice) Kind() LatticeKind {
	if len(L.Basis) == 1 {
		return OneD
	}
	return TwoD
}

// Vector returns n1*L1 + n2*L2; n2 is ignored for a 1D lattice.
func (L *Lattice) Vector(n1, n2 int) (v r3.Vec) {
	v = r3.Scale(float64(n1), L.Basis[0])
	if len(L.Basis) == 2 {
		v = r3.Add(v, r3.Scale(float64(n2), L.Basis[1]))
	}
	return
}

// CellSize is the unit cell length (1D) or area (2D).
func (L *Lattice) CellSize() float64 {
	if len(L.Basis) == 1 {
		return r3.Norm(L.Basis[0])
	}
	return math.Abs(r3.Cross(L.Basis[0], L.Basis[1]).Z)
}

// Reciprocal returns G_i with G_i . L_j = 2 pi delta_ij.
func (L *Lattice) Reciprocal() (G []r3.Vec) {
	if len(L.Basis) == 1 {
		b := L.Basis[0]
		return []r3.Vec{r3.Scale(2*math.Pi/r3.Norm2(b), b)}
	}
	var (
		a, b = L.Basis[0], L.Basis[1]
		det  = a.X*b.Y - a.Y*b.X
	)
	return []r3.Vec{
		{X: 2 * math.Pi * b.Y / det, Y: -2 * math.Pi * b.X / det},
		{X: -2 * math.Pi * a.Y / det, Y: 2 * math.Pi * a.X / det},
	}
}

// Spans reports whether the points cover a full unit cell along lattice
// vector d, as the mesh of a surface continued across cell faces does.
func (L *Lattice) Spans(V []r3.Vec, d int) bool {
	if d >= len(L.Basis) || len(V) == 0 {
		return false
	}
	var (
		g      = L.Reciprocal()[d]
		lo, hi = math.Inf(1), math.Inf(-1)
	)
	for _, v := range V {
		f := r3.Dot(g, v) / (2 * math.Pi)
		lo, hi = math.Min(lo, f), math.Max(hi, f)
	}
	return hi-lo > 1-1.e-6
}

// Sub returns the 1D lattice along vector d.
func (L *Lattice) Sub(d int) *Lattice { return &Lattice{Basis: []r3.Vec{L.Basis[d]}} }
