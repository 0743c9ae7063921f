package utils

import (
	"math"

	"gonum.org/v1/gonum/integrate/quad"
	"gonum.org/v1/gonum/spatial/r3"
)

// TriRule is a cubature rule on the reference triangle. A node (u, v) maps to
// V0 + u(V1-V0) + v(V2-V0); the weights sum to one, so the physical weight is
// Area*W.
type TriRule struct {
	U, V, W []float64
}

func (r *TriRule) Len() int { return len(r.W) }

// TriNode is a physical cubature point with its weight (area included).
type TriNode struct {
	X r3.Vec
	W float64
}

// Nodes maps the rule onto triangle T with area A, appending to dst.
func (r *TriRule) Nodes(T [3]r3.Vec, A float64, dst []TriNode) []TriNode {
	var (
		e1 = r3.Sub(T[1], T[0])
		e2 = r3.Sub(T[2], T[0])
	)
	for n := range r.W {
		x := r3.Add(T[0], r3.Add(r3.Scale(r.U[n], e1), r3.Scale(r.V[n], e2)))
		dst = append(dst, TriNode{X: x, W: A * r.W[n]})
	}
	return dst
}

// CentroidRule3 is exact for quadratics.
func CentroidRule3() *TriRule {
	var (
		a = 1. / 6.
		b = 2. / 3.
		w = 1. / 3.
	)
	return &TriRule{
		U: []float64{a, b, a},
		V: []float64{a, a, b},
		W: []float64{w, w, w},
	}
}

// RadonRule7 is Radon's seven point rule, exact through degree five.
func RadonRule7() *TriRule {
	var (
		s15 = math.Sqrt(15.)
		a1  = (6. - s15) / 21.
		a2  = (6. + s15) / 21.
		w0  = 9. / 40.
		w1  = (155. - s15) / 1200.
		w2  = (155. + s15) / 1200.
	)
	return &TriRule{
		U: []float64{1. / 3., a1, 1 - 2*a1, a1, a2, 1 - 2*a2, a2},
		V: []float64{1. / 3., a1, a1, 1 - 2*a1, a2, a2, 1 - 2*a2},
		W: []float64{w0, w1, w1, w1, w2, w2, w2},
	}
}

// ConicalRule collapses the unit square onto the triangle,
// (s,t) -> (s(1-t), st), and uses an n point Gauss-Legendre product rule.
// The Jacobian 2s is folded into the weights.
func ConicalRule(n int) *TriRule {
	if n < 1 {
		n = 1
	}
	var (
		x = make([]float64, n)
		w = make([]float64, n)
		r = &TriRule{
			U: make([]float64, 0, n*n),
			V: make([]float64, 0, n*n),
			W: make([]float64, 0, n*n),
		}
	)
	quad.Legendre{}.FixedLocations(x, w, 0, 1)
	for i := 0; i < n; i++ {
		s := x[i]
		for j := 0; j < n; j++ {
			t := x[j]
			r.U = append(r.U, s*(1-t))
			r.V = append(r.V, s*t)
			r.W = append(r.W, 2*s*w[i]*w[j])
		}
	}
	return r
}
