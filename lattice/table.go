package lattice

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gobem/utils"
)

// GBarTable interpolates a smooth lattice sum on a regular grid by
// piecewise tricubic Lagrange polynomials. Values are exact at the nodes and
// the gradient is the derivative of the interpolant.
type GBarTable struct {
	Sum    *Ewald
	Min    r3.Vec
	Delta  r3.Vec
	N      [3]int
	values []complex128
}

// NewGBarTable tabulates sum over the box [rmin, rmax] with nodes at most h
// apart, padded by two nodes on every side so the four-point stencil never
// leaves the grid. The nodes are split into workers contiguous partitions.
func NewGBarTable(sum *Ewald, rmin, rmax r3.Vec, h float64, workers int) (T *GBarTable, err error) {
	if h <= 0 {
		return nil, fmt.Errorf("lattice: table spacing %g must be positive", h)
	}
	T = &GBarTable{Sum: sum}
	lo := [3]float64{rmin.X, rmin.Y, rmin.Z}
	hi := [3]float64{rmax.X, rmax.Y, rmax.Z}
	var min, delta [3]float64
	for c := 0; c < 3; c++ {
		if hi[c] < lo[c] {
			return nil, fmt.Errorf("lattice: empty table range along axis %d", c)
		}
		cells := int(math.Ceil((hi[c] - lo[c]) / h))
		if cells < 1 {
			cells = 1
		}
		delta[c] = h
		if hi[c] > lo[c] {
			delta[c] = (hi[c] - lo[c]) / float64(cells)
		}
		min[c] = lo[c] - 2*delta[c]
		T.N[c] = cells + 5
	}
	T.Min = r3.Vec{X: min[0], Y: min[1], Z: min[2]}
	T.Delta = r3.Vec{X: delta[0], Y: delta[1], Z: delta[2]}
	T.values = make([]complex128, T.N[0]*T.N[1]*T.N[2])
	if workers <= 0 {
		workers = utils.DefaultWorkers()
	}
	// each worker fills a contiguous run of nodes
	utils.NewPartitionMap(workers, len(T.values)).Run(func(_, nMin, nMax int) {
		for n := nMin; n < nMax; n++ {
			i, j, k := T.unflatten(n)
			T.values[n] = sum.Eval(T.node(i, j, k))
		}
	})
	return
}

func (T *GBarTable) String() string {
	return fmt.Sprintf("GBar table %dx%dx%d, spacing %v, origin %v (%v)",
		T.N[0], T.N[1], T.N[2], T.Delta, T.Min, T.Sum)
}

func (T *GBarTable) index(i, j, k int) int { return (i*T.N[1]+j)*T.N[2] + k }

func (T *GBarTable) unflatten(n int) (i, j, k int) {
	k = n % T.N[2]
	n /= T.N[2]
	return n / T.N[1], n % T.N[1], k
}

func (T *GBarTable) node(i, j, k int) r3.Vec {
	return r3.Vec{
		X: T.Min.X + float64(i)*T.Delta.X,
		Y: T.Min.Y + float64(j)*T.Delta.Y,
		Z: T.Min.Z + float64(k)*T.Delta.Z,
	}
}

// Contains reports whether R lies inside the unpadded range.
func (T *GBarTable) Contains(R r3.Vec) bool {
	p := [3]float64{R.X - T.Min.X, R.Y - T.Min.Y, R.Z - T.Min.Z}
	d := [3]float64{T.Delta.X, T.Delta.Y, T.Delta.Z}
	for c := 0; c < 3; c++ {
		t := p[c] / d[c]
		if t < 2-1.e-9 || t > float64(T.N[c]-3)+1.e-9 {
			return false
		}
	}
	return true
}

// lagrange returns the cubic Lagrange weights for nodes -1, 0, 1, 2 at t and
// their derivatives.
func lagrange(t float64) (w, dw [4]float64) {
	var (
		tm1 = t - 1
		tm2 = t - 2
		tp1 = t + 1
	)
	w[0] = -t * tm1 * tm2 / 6
	w[1] = tp1 * tm1 * tm2 / 2
	w[2] = -tp1 * t * tm2 / 2
	w[3] = tp1 * t * tm1 / 6
	dw[0] = -(3*t*t - 6*t + 2) / 6
	dw[1] = (3*t*t - 4*t - 1) / 2
	dw[2] = -(3*t*t - 2*t - 2) / 2
	dw[3] = (3*t*t - 1) / 6
	return
}

// Eval returns the interpolated value and gradient at R. Points outside the
// table are extrapolated from the nearest stencil.
func (T *GBarTable) Eval(R r3.Vec) (g complex128, grad [3]complex128) {
	var (
		p     = [3]float64{R.X - T.Min.X, R.Y - T.Min.Y, R.Z - T.Min.Z}
		d     = [3]float64{T.Delta.X, T.Delta.Y, T.Delta.Z}
		base  [3]int
		w, dw [3][4]float64
	)
	for c := 0; c < 3; c++ {
		s := p[c] / d[c]
		i := int(math.Floor(s))
		if i < 1 {
			i = 1
		}
		if i > T.N[c]-3 {
			i = T.N[c] - 3
		}
		base[c] = i - 1
		w[c], dw[c] = lagrange(s - float64(i))
		for a := range dw[c] {
			dw[c][a] /= d[c]
		}
	}
	for a := 0; a < 4; a++ {
		for b := 0; b < 4; b++ {
			for c := 0; c < 4; c++ {
				v := T.values[T.index(base[0]+a, base[1]+b, base[2]+c)]
				g += complex(w[0][a]*w[1][b]*w[2][c], 0) * v
				grad[0] += complex(dw[0][a]*w[1][b]*w[2][c], 0) * v
				grad[1] += complex(w[0][a]*dw[1][b]*w[2][c], 0) * v
				grad[2] += complex(w[0][a]*w[1][b]*dw[2][c], 0) * v
			}
		}
	}
	return
}
