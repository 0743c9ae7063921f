package lattice

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gobem/geometry"
)

// Ewald evaluates the Bloch-periodic Green's function
//
//	GBar(R) = sum_L exp(i kB.L) exp(ik|R-L|) / (4 pi |R-L|)
//
// over a 1D or 2D lattice in the xy plane by Ewald's method. Cells with
// |n1|, |n2| <= Inner are left out of the sum, so with Inner >= 0 the result
// is smooth where those cells are singular.
type Ewald struct {
	Basis      []r3.Vec
	Reciprocal []r3.Vec
	K          complex128
	KBloch     r3.Vec
	E          float64 // splitting parameter
	Inner      int
	cell       float64 // length (1D) or area (2D)
	axis       r3.Vec  // unit lattice direction (1D)
	nReal      int
	nSpectral  int
}

// NewEwald prepares the sum for wavenumber k and Bloch vector kBloch.
// inner < 0 keeps every cell; E <= 0 selects sqrt(pi/cell area) (2D) or
// sqrt(pi)/L (1D).
func NewEwald(L *geometry.Lattice, k complex128, kBloch r3.Vec, inner int, E float64) (ew *Ewald, err error) {
	if L == nil || L.Dimension() < 1 || L.Dimension() > 2 {
		return nil, fmt.Errorf("lattice: Ewald sum needs a 1D or 2D lattice")
	}
	ew = &Ewald{
		Basis:      L.Basis,
		Reciprocal: L.Reciprocal(),
		K:          k,
		KBloch:     kBloch,
		Inner:      inner,
		cell:       L.CellSize(),
	}
	switch L.Kind() {
	case geometry.OneD:
		ew.axis = r3.Unit(L.Basis[0])
		if E <= 0 {
			E = math.Sqrt(math.Pi) / ew.cell
		}
	case geometry.TwoD:
		if E <= 0 {
			E = math.Sqrt(math.Pi / ew.cell)
		}
	}
	ew.E = E
	ew.setShells()
	return
}

// setShells picks the real and reciprocal space truncations so the dropped
// terms fall below exp(-36) of the leading ones.
func (ew *Ewald) setShells() {
	var (
		E    = ew.E
		k2   = math.Max(0, real(ew.K*ew.K))
		lmin = math.Inf(1)
		gmin = math.Inf(1)
	)
	for _, b := range ew.Basis {
		lmin = math.Min(lmin, r3.Norm(b))
	}
	for _, g := range ew.Reciprocal {
		gmin = math.Min(gmin, r3.Norm(g))
	}
	rcut := math.Sqrt(36+k2/(4*E*E)) / E
	ew.nReal = int(math.Ceil(rcut/lmin)) + 2
	if ew.nReal <= ew.Inner+1 {
		ew.nReal = ew.Inner + 2
	}
	pcut := math.Sqrt(144*E*E + k2)
	ew.nSpectral = int(math.Ceil((pcut+r3.Norm(ew.KBloch))/gmin)) + 1
}

func (ew *Ewald) String() string {
	return fmt.Sprintf("%dD Ewald sum k=%v kB=%v E=%.4g, %d real and %d reciprocal shells, inner=%d",
		len(ew.Basis), ew.K, ew.KBloch, ew.E, ew.nReal, ew.nSpectral, ew.Inner)
}

func (ew *Ewald) latticeVector(n1, n2 int) (v r3.Vec) {
	v = r3.Scale(float64(n1), ew.Basis[0])
	if len(ew.Basis) == 2 {
		v = r3.Add(v, r3.Scale(float64(n2), ew.Basis[1]))
	}
	return
}

func (ew *Ewald) isInner(n1, n2 int) bool {
	return ew.Inner >= 0 && abs(n1) <= ew.Inner && abs(n2) <= ew.Inner
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Eval returns the lattice sum at R = x - x'.
func (ew *Ewald) Eval(R r3.Vec) (g complex128) {
	n2max := 0
	if len(ew.Basis) == 2 {
		n2max = ew.nReal
	}
	for n1 := -ew.nReal; n1 <= ew.nReal; n1++ {
		for n2 := -n2max; n2 <= n2max; n2++ {
			Lm := ew.latticeVector(n1, n2)
			phase := cmplx.Exp(complex(0, r3.Dot(ew.KBloch, Lm)))
			r := r3.Norm(r3.Sub(R, Lm))
			if ew.isInner(n1, n2) {
				g += phase * ew.spatialMinusDirect(r)
			} else {
				g += phase * ew.spatial(r)
			}
		}
	}
	if len(ew.Basis) == 1 {
		return g + ew.spectral1D(R)
	}
	return g + ew.spectral2D(R)
}

// spatial is the short-range part of one image,
// [exp(ikr) erfc(rE + ik/2E) + exp(-ikr) erfc(rE - ik/2E)] / (8 pi r).
func (ew *Ewald) spatial(r float64) complex128 {
	var (
		c   = 1i * ew.K / complex(2*ew.E, 0)
		rE  = complex(r*ew.E, 0)
		ikr = 1i * ew.K * complex(r, 0)
	)
	return (cmplx.Exp(ikr)*Erfc(rE+c) + cmplx.Exp(-ikr)*Erfc(rE-c)) / complex(8*math.Pi*r, 0)
}

// spatialMinusDirect is spatial(r) - exp(ikr)/(4 pi r), an even analytic
// function of r, with its limit taken at r = 0.
func (ew *Ewald) spatialMinusDirect(r float64) complex128 {
	var (
		c = 1i * ew.K / complex(2*ew.E, 0)
		E = ew.E
	)
	if r*E < 1.e-5 {
		return (-2i*ew.K*Erfc(-c) - complex(4*E/math.Sqrt(math.Pi), 0)*cmplx.Exp(-c*c)) / complex(8*math.Pi, 0)
	}
	var (
		rE  = complex(r*E, 0)
		ikr = 1i * ew.K * complex(r, 0)
	)
	return (cmplx.Exp(-ikr)*Erfc(rE-c) - cmplx.Exp(ikr)*Erfc(-rE-c)) / complex(8*math.Pi*r, 0)
}

// kappa2 returns |p|^2 - k^2 with a negative real result placed below the
// branch cut, the side reached from Im k > 0.
func (ew *Ewald) kappa2(p2 float64) complex128 {
	k2 := complex(p2, 0) - ew.K*ew.K
	if imag(k2) == 0 && real(k2) < 0 {
		k2 = complex(real(k2), math.Copysign(0, -1))
	}
	return k2
}

func (ew *Ewald) spectral2D(R r3.Vec) (g complex128) {
	var (
		E  = ew.E
		z  = R.Z
		G1 = ew.Reciprocal[0]
		G2 = ew.Reciprocal[1]
		N  = ew.nSpectral
		zE = complex(z*E, 0)
		pf = complex(4*ew.cell, 0)
	)
	for m1 := -N; m1 <= N; m1++ {
		for m2 := -N; m2 <= N; m2++ {
			p := r3.Add(ew.KBloch, r3.Add(r3.Scale(float64(m1), G1), r3.Scale(float64(m2), G2)))
			p.Z = 0
			var (
				kap = cmplx.Sqrt(ew.kappa2(r3.Norm2(p)))
				a   = kap / complex(2*E, 0)
				kz  = kap * complex(z, 0)
				ph  = cmplx.Exp(complex(0, p.X*R.X+p.Y*R.Y))
			)
			g += ph * (cmplx.Exp(kz)*Erfc(a+zE) + cmplx.Exp(-kz)*Erfc(a-zE)) / (pf * kap)
		}
	}
	return
}

func (ew *Ewald) spectral1D(R r3.Vec) (g complex128) {
	var (
		E    = ew.E
		x    = r3.Dot(R, ew.axis)
		rho2 = math.Max(0, r3.Norm2(R)-x*x)
		kB   = r3.Dot(ew.KBloch, ew.axis)
		G    = 2 * math.Pi / ew.cell
		N    = ew.nSpectral
		pf   = complex(4*math.Pi*ew.cell, 0)
	)
	for m := -N; m <= N; m++ {
		var (
			p    = kB + float64(m)*G
			w0   = ew.kappa2(p*p) / complex(4*E*E, 0)
			sum  complex128
			term = complex(1, 0)
		)
		for n := 0; n < maxTerms; n++ {
			if n > 0 {
				term *= complex(-rho2*E*E/float64(n), 0)
			}
			d := term * ExpIntegralE(n+1, w0)
			sum += d
			if n > 3 && cmplx.Abs(d) < epsilon*cmplx.Abs(sum) {
				break
			}
		}
		g += cmplx.Exp(complex(0, p*x)) * sum / pf
	}
	return
}

// Direct sums the free-space images over |n1|, |n2| <= n, skipping the
// inner cells. It converges only for Im k > 0 and serves as a reference.
func (ew *Ewald) Direct(R r3.Vec, n int) (g complex128) {
	n2max := 0
	if len(ew.Basis) == 2 {
		n2max = n
	}
	for n1 := -n; n1 <= n; n1++ {
		for n2 := -n2max; n2 <= n2max; n2++ {
			if ew.isInner(n1, n2) {
				continue
			}
			Lm := ew.latticeVector(n1, n2)
			r := r3.Norm(r3.Sub(R, Lm))
			g += cmplx.Exp(complex(0, r3.Dot(ew.KBloch, Lm))) * cmplx.Exp(1i*ew.K*complex(r, 0)) /
				complex(4*math.Pi*r, 0)
		}
	}
	return
}
