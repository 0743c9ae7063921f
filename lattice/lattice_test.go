package lattice

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gobem/geometry"
)

func relErr(a, b complex128) float64 {
	return cmplx.Abs(a-b) / math.Max(cmplx.Abs(b), 1.e-300)
}

func TestErfc(t *testing.T) {
	{ // Case: real axis against the standard library
		for _, x := range []float64{-5, -3.5, -1.2, 0, 0.3, 1, 2.9, 3.1, 5, 8} {
			assert.InEpsilon(t, math.Erfc(x), real(Erfc(complex(x, 0))), 1.e-10, "x=%g", x)
			assert.Equal(t, 0., imag(Erfc(complex(x, 0))))
		}
	}
	{ // Case: known complex values
		assert.Less(t, relErr(Erf(1+1i), 1.3161512816979476+0.19045346923783471i), 1.e-13)
		// erf(iy) = i erfi(y)
		assert.Less(t, relErr(Erf(1i), 1.6504257587975428i), 1.e-13)
	}
	{ // Case: conjugate symmetry and reflection
		for _, z := range []complex128{0.5 + 2i, 3 + 4i, -2 + 0.7i, 0.2 + 5i, 4 - 6i} {
			assert.Less(t, relErr(Erfc(cmplx.Conj(z)), cmplx.Conj(Erfc(z))), 1.e-13)
			assert.Less(t, relErr(Erfc(-z), 2-Erfc(z)), 1.e-12)
		}
	}
	{ // Case: series and continued fraction agree on the switch-over circle
		for _, a := range []float64{0, 0.3, 0.8, 1.2} {
			z := cmplx.Rect(3, a)
			assert.Less(t, relErr(1-erfSeries(z), erfcFraction(z)), 1.e-10)
		}
	}
}

func TestExpIntegralE(t *testing.T) {
	assert.InDelta(t, 0.21938393439552029, real(ExpIntegralE(1, 1)), 1.e-14)
	assert.InDelta(t, 0.32664386232455295, real(ExpIntegralE(2, 0.5)), 1.e-14)
	assert.InDelta(t, 0.04890051070806106, real(ExpIntegralE(1, 2)), 1.e-14)
	assert.InDelta(t, 0.5, real(ExpIntegralE(3, 0)), 1.e-15)
	{ // Case: below the branch cut E1(-x) = -Ei(x) + i pi
		v := ExpIntegralE(1, complex(-1, math.Copysign(0, -1)))
		assert.InDelta(t, -1.8951178163559368, real(v), 1.e-13)
		assert.InDelta(t, math.Pi, imag(v), 1.e-13)
	}
	{ // Case: both branches agree across Re z = 1
		for _, n := range []int{1, 3, 6} {
			z := complex(1, 0.7)
			assert.Less(t, relErr(expIntSeries(n, z), expIntFraction(n, z)), 1.e-11)
		}
	}
	{ // Case: recurrence n E_{n+1}(z) = exp(-z) - z E_n(z)
		for _, z := range []complex128{0.4 + 0.2i, 2.5 - 1i, -0.8 + 0.1i} {
			for n := 1; n < 6; n++ {
				lhs := complex(float64(n), 0) * ExpIntegralE(n+1, z)
				rhs := cmplx.Exp(-z) - z*ExpIntegralE(n, z)
				assert.Less(t, cmplx.Abs(lhs-rhs), 1.e-12)
			}
		}
	}
}

func newLattice(t *testing.T, basis ...r3.Vec) *geometry.Lattice {
	t.Helper()
	L, err := geometry.NewLattice(basis...)
	require.NoError(t, err)
	return L
}

func TestEwald2D(t *testing.T) {
	var (
		L  = newLattice(t, r3.Vec{X: 1}, r3.Vec{X: 0.3, Y: 1.1})
		kB = r3.Vec{X: 0.4, Y: -0.2}
		R  = r3.Vec{X: 0.2, Y: 0.35, Z: 0.15}
	)
	{ // Case: lossy medium against the direct image sum
		ew, err := NewEwald(L, 2+1.5i, kB, -1, 0)
		require.NoError(t, err)
		assert.Less(t, relErr(ew.Eval(R), ew.Direct(R, 25)), 1.e-9)
		assert.Less(t, relErr(ew.Eval(R), 0.023053968921265443+0.13247264287476207i), 1.e-9)
	}
	{ // Case: the splitting parameter drops out
		a, err := NewEwald(L, 3, kB, -1, 0)
		require.NoError(t, err)
		b, err := NewEwald(L, 3, kB, -1, 1.5*a.E)
		require.NoError(t, err)
		for _, P := range []r3.Vec{R, {X: -0.4, Y: 0.1, Z: 0.6}, {Y: 0.5, Z: -0.3}} {
			assert.Less(t, relErr(a.Eval(P), b.Eval(P)), 1.e-10)
		}
	}
	{ // Case: excluding the inner cells removes exactly their images
		full, err := NewEwald(L, 3, kB, -1, 0)
		require.NoError(t, err)
		tail, err := NewEwald(L, 3, kB, 1, 0)
		require.NoError(t, err)
		var inner complex128
		for n1 := -1; n1 <= 1; n1++ {
			for n2 := -1; n2 <= 1; n2++ {
				Lm := L.Vector(n1, n2)
				r := r3.Norm(r3.Sub(R, Lm))
				inner += cmplx.Exp(complex(0, r3.Dot(kB, Lm))) * cmplx.Exp(complex(0, 3*r)) / complex(4*math.Pi*r, 0)
			}
		}
		assert.Less(t, relErr(tail.Eval(R), full.Eval(R)-inner), 1.e-10)
		// smooth through the origin
		g0, g1 := tail.Eval(r3.Vec{}), tail.Eval(r3.Vec{X: 1.e-4})
		assert.Less(t, cmplx.Abs(g0-g1), 1.e-3*cmplx.Abs(g0))
	}
}

func TestEwald1D(t *testing.T) {
	var (
		L  = newLattice(t, r3.Vec{X: 1.2})
		kB = r3.Vec{X: 0.7}
		R  = r3.Vec{X: 0.2, Y: 0.3, Z: -0.25}
	)
	{ // Case: lossy medium against the direct image sum
		ew, err := NewEwald(L, 2+1i, kB, -1, 0)
		require.NoError(t, err)
		assert.Less(t, relErr(ew.Eval(R), 0.04506337494424416+0.10336486361531379i), 1.e-9)
		assert.Less(t, relErr(ew.Eval(R), ew.Direct(R, 200)), 1.e-9)
	}
	{ // Case: the splitting parameter drops out
		a, err := NewEwald(L, 4, kB, -1, 0)
		require.NoError(t, err)
		b, err := NewEwald(L, 4, kB, -1, 1.4*a.E)
		require.NoError(t, err)
		assert.Less(t, relErr(a.Eval(R), b.Eval(R)), 1.e-10)
	}
	{ // Case: invalid lattices
		_, err := geometry.NewLattice()
		assert.Error(t, err)
		_, err = NewEwald(nil, 1, r3.Vec{}, 1, 0)
		assert.Error(t, err)
	}
}

func TestGBarTable(t *testing.T) {
	var (
		L      = newLattice(t, r3.Vec{X: 1}, r3.Vec{Y: 1})
		ew, _  = NewEwald(L, 2.5, r3.Vec{X: 0.3}, 1, 0)
		rmin   = r3.Vec{X: -0.3, Y: -0.3, Z: -0.1}
		rmax   = r3.Vec{X: 0.3, Y: 0.3, Z: 0.1}
		T, err = NewGBarTable(ew, rmin, rmax, 0.05, 4)
	)
	require.NoError(t, err)
	{ // Case: exact at the nodes
		for _, n := range []int{0, 17, len(T.values) / 2, len(T.values) - 1} {
			i, j, k := T.unflatten(n)
			assert.Equal(t, n, T.index(i, j, k))
			g, _ := T.Eval(T.node(i, j, k))
			assert.Less(t, relErr(g, ew.Eval(T.node(i, j, k))), 1.e-12)
		}
	}
	{ // Case: interpolated values and gradients between the nodes
		h := 1.e-5
		for _, R := range []r3.Vec{{X: 0.123, Y: -0.211, Z: 0.071}, {X: -0.27, Y: 0.02, Z: -0.08}, {}} {
			require.True(t, T.Contains(R))
			g, grad := T.Eval(R)
			want := ew.Eval(R)
			assert.Less(t, relErr(g, want), 1.e-4)
			for c, e := range []r3.Vec{{X: h}, {Y: h}, {Z: h}} {
				fd := (ew.Eval(r3.Add(R, e)) - ew.Eval(r3.Sub(R, e))) / complex(2*h, 0)
				assert.Less(t, cmplx.Abs(grad[c]-fd), 5.e-3*math.Max(cmplx.Abs(fd), cmplx.Abs(want)))
			}
		}
	}
	{ // Case: degenerate extent and bad spacing
		flat, err := NewGBarTable(ew, r3.Vec{}, r3.Vec{X: 0.1}, 0.05, 1)
		require.NoError(t, err)
		assert.Equal(t, [3]int{7, 6, 6}, flat.N)
		_, err = NewGBarTable(ew, r3.Vec{}, r3.Vec{X: 0.1}, 0, 1)
		assert.Error(t, err)
		assert.False(t, T.Contains(r3.Vec{X: 2}))
	}
}
