package interaction

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/spatial/r3"
)

// flatPanel carries the edge frames of a source triangle for the
// closed-form integrals of its static kernels.
type flatPanel struct {
	V    [3]r3.Vec
	N    r3.Vec
	L, M [3]r3.Vec // edge tangent and in-plane outward normal
}

func newFlatPanel(V [3]r3.Vec) (fp flatPanel) {
	fp.V = V
	fp.N = r3.Unit(r3.Cross(r3.Sub(V[1], V[0]), r3.Sub(V[2], V[0])))
	for i := 0; i < 3; i++ {
		fp.L[i] = r3.Unit(r3.Sub(V[(i+1)%3], V[i]))
		fp.M[i] = r3.Cross(fp.L[i], fp.N)
	}
	return
}

// statics are the source integrals over a flat triangle seen from x:
//
//	I0 = int 1/r          I1 = int (x'-p)/r
//	Omega n + Mf = int (x-x')/r^3 for x above the plane
//
// with h the height of x over the plane and p its projection.
type statics struct {
	H, I0, Omega float64
	P, I1, Mf    r3.Vec
}

// logRL is log(R+l), written to stay accurate for l < 0.
func logRL(R, l, R02 float64) float64 {
	if l >= 0 {
		return math.Log(R + l)
	}
	return math.Log(R02 / (R - l))
}

func (fp *flatPanel) statics(x r3.Vec) (s statics) {
	s.H = r3.Dot(r3.Sub(x, fp.V[0]), fp.N)
	s.P = r3.Sub(x, r3.Scale(s.H, fp.N))
	ah := math.Abs(s.H)
	for i := 0; i < 3; i++ {
		var (
			A, B  = r3.Sub(fp.V[i], s.P), r3.Sub(fp.V[(i+1)%3], s.P)
			lm    = r3.Dot(A, fp.L[i])
			lp    = r3.Dot(B, fp.L[i])
			t0    = r3.Dot(A, fp.M[i])
			R02   = t0*t0 + s.H*s.H
			Rp    = math.Sqrt(lp*lp + R02)
			Rm    = math.Sqrt(lm*lm + R02)
			f2    float64
			omega = math.Atan2(t0*lp, R02+ah*Rp) - math.Atan2(t0*lm, R02+ah*Rm)
		)
		// on the edge line the log terms carry zero weight
		if R02 > 1.e-30 {
			f2 = logRL(Rp, lp, R02) - logRL(Rm, lm, R02)
		}
		s.I0 += t0 * f2
		s.Omega += omega
		s.I1 = r3.Add(s.I1, r3.Scale(0.5*(R02*f2+lp*Rp-lm*Rm), fp.M[i]))
		s.Mf = r3.Add(s.Mf, r3.Scale(f2, fp.M[i]))
	}
	s.I0 -= ah * s.Omega
	return
}

// edgeDistance is the distance from x to the boundary of triangle V.
func edgeDistance(x r3.Vec, V *[3]r3.Vec) float64 {
	d := math.Inf(1)
	for i := 0; i < 3; i++ {
		var (
			a  = V[i]
			ab = r3.Sub(V[(i+1)%3], a)
			t  = r3.Dot(r3.Sub(x, a), ab) / r3.Dot(ab, ab)
		)
		t = math.Max(0, math.Min(1, t))
		d = math.Min(d, r3.Norm(r3.Sub(x, r3.Add(a, r3.Scale(t, ab)))))
	}
	return d
}

// smoothGreens returns Phi and Psi less their static parts 1/(4 pi r) and
// -1/(4 pi r^3) - k^2/(8 pi r). Both remainders are finite at r = 0.
func smoothGreens(k complex128, r float64) (phi, psi complex128) {
	var (
		ik = 1i * k
		z  = ik * complex(r, 0)
	)
	if cmplx.Abs(z) >= 0.5 {
		phi, psi, _ = greens(k, r)
		phi -= complex(1/(4*math.Pi*r), 0)
		psi += complex(1/(4*math.Pi*r*r*r), 0) + k*k/complex(8*math.Pi*r, 0)
		return
	}
	var (
		t = complex(1, 0)    // z^(n-1)/n!
		s = complex(1./6, 0) // z^(n-3)/n!
	)
	for n := 1; n <= 18; n++ {
		phi += t
		t *= z / complex(float64(n+1), 0)
	}
	for n := 3; n <= 20; n++ {
		psi += complex(float64(n-1), 0) * s
		s *= z / complex(float64(n+1), 0)
	}
	phi *= ik / (4 * math.Pi)
	psi *= ik * ik * ik / (4 * math.Pi)
	return
}

// addStatic adds the base moments of the static kernels at x, integrated
// over all of panel b in closed form.
func (ev *evaluator) addStatic(b []complex128, x r3.Vec, w float64, fp *flatPanel) {
	var (
		s  = fp.statics(x)
		sg float64
		c4 = w / (4 * math.Pi)
		ck = complex(w/(8*math.Pi), 0) * ev.k * ev.k
	)
	switch {
	case s.H > 0:
		sg = 1
	case s.H < 0:
		sg = -1
	}
	var (
		// int x'/r and the two parts of int Psi0 R
		xr = r3.Add(r3.Scale(s.I0, s.P), s.I1)
		a3 = r3.Add(r3.Scale(sg*s.Omega, fp.N), s.Mf)
		a1 = r3.Sub(r3.Scale(s.H*s.I0, fp.N), s.I1)
	)
	for i := 0; i < 3; i++ {
		u := r3.Sub(x, ev.Va[i])
		for j := 0; j < 3; j++ {
			var (
				n  = 3*i + j
				xv = r3.Sub(x, ev.Vb[j])
			)
			b[n] += complex(c4*r3.Dot(u, r3.Sub(xr, r3.Scale(s.I0, ev.Vb[j]))), 0)
			b[offsetC+n] -= complex(c4*r3.Dot(u, r3.Cross(a3, xv)), 0) + ck*complex(r3.Dot(u, r3.Cross(a1, xv)), 0)
		}
	}
	b[offsetM] += complex(c4*s.I0, 0)
}
