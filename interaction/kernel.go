package interaction

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gobem/utils"
)

// Moments of one panel pair are stored in blocks of blockLen values:
//
//	[0:9]   Gt_ij = <(x-Va_i).(x'-Vb_j) Phi>
//	[9]     M     = <Phi>
//	[10:19] C_ij  = <(x-Va_i).(grad Phi x (x'-Vb_j))>
//
// i and j run over the panel vertices, so one block serves every RWG
// function defined on the pair. A gradient block replaces Phi by its
// derivative with respect to a translation of panel a, a torque block by its
// derivative with respect to a rotation of panel a about an axis through the
// origin.
const blockLen = 19

const (
	offsetM = 9
	offsetC = 10
)

// TailKernel replaces the free-space Green's function, for instance by the
// long-range part of a lattice sum. grad is the gradient with respect to R.
type TailKernel interface {
	Eval(R r3.Vec) (g complex128, grad [3]complex128)
}

type layout struct {
	gradient bool
	axes     []r3.Vec
}

func (l layout) Len() int {
	n := 1 + len(l.axes)
	if l.gradient {
		n += 3
	}
	return n * blockLen
}

func (l layout) baseOnly() bool { return !l.gradient && len(l.axes) == 0 }

func (l layout) gradientOffset(c int) int { return blockLen * (1 + c) }

func (l layout) torqueOffset(a int) int {
	if l.gradient {
		return blockLen * (4 + a)
	}
	return blockLen * (1 + a)
}

// greens returns Phi = exp(ikr)/(4 pi r), Psi = (1/r) dPhi/dr and
// Chi = (1/r) dPsi/dr.
func greens(k complex128, r float64) (phi, psi, chi complex128) {
	var (
		ikr = 1i * k * complex(r, 0)
		r2  = complex(r*r, 0)
	)
	phi = cmplx.Exp(ikr) / complex(4*math.Pi*r, 0)
	psi = (ikr - 1) * phi / r2
	chi = (3 - 3*ikr + ikr*ikr) * phi / (r2 * r2)
	return
}

// evaluator accumulates the weighted integrand of all requested moment
// blocks at one point pair (x on panel a, x' on panel b).
type evaluator struct {
	k      complex128
	lay    layout
	Va, Vb [3]r3.Vec
	tail   TailKernel
	minR   float64
	step   float64 // finite difference step for the tail Hessian
	// smooth selects the remainder kernels of smoothGreens; only the base
	// block is accumulated.
	smooth   bool
	skipBase bool
}

func (ev *evaluator) add(dst []complex128, x, xp r3.Vec, w float64) {
	var (
		R    = r3.Sub(x, xp)
		r    = r3.Norm(R)
		u, v [3]r3.Vec
		cw   = complex(w, 0)
	)
	if r < ev.minR && ev.tail == nil && !ev.smooth {
		return
	}
	for i := 0; i < 3; i++ {
		u[i] = r3.Sub(x, ev.Va[i])
		v[i] = r3.Sub(xp, ev.Vb[i])
	}
	if ev.tail != nil {
		ev.addTail(dst, R, x, &u, &v, cw)
		return
	}
	var (
		phi, psi, chi complex128
		uw, trip      [9]float64
		Rxv           [3]r3.Vec
		b             = dst[:blockLen]
	)
	if ev.smooth {
		phi, psi = smoothGreens(ev.k, r)
	} else {
		phi, psi, chi = greens(ev.k, r)
	}
	var (
		wphi = cw * phi
		wpsi = cw * psi
		wchi = cw * chi
	)
	for j := 0; j < 3; j++ {
		Rxv[j] = r3.Cross(R, v[j])
		for i := 0; i < 3; i++ {
			uw[3*i+j] = r3.Dot(u[i], v[j])
			trip[3*i+j] = r3.Dot(u[i], Rxv[j])
		}
	}
	if !ev.skipBase {
		for n := 0; n < 9; n++ {
			b[n] += wphi * complex(uw[n], 0)
			b[offsetC+n] += wpsi * complex(trip[n], 0)
		}
		b[offsetM] += wphi
	}
	if ev.smooth {
		return
	}

	if ev.lay.gradient {
		for c := 0; c < 3; c++ {
			var (
				Rc = utils.Component(R, c)
				e  = utils.UnitVector(c)
				o  = ev.lay.gradientOffset(c)
				g  = dst[o : o+blockLen]
			)
			for j := 0; j < 3; j++ {
				exv := r3.Cross(e, v[j])
				for i := 0; i < 3; i++ {
					n := 3*i + j
					g[n] += wpsi * complex(uw[n]*Rc, 0)
					g[offsetC+n] += wpsi*complex(r3.Dot(u[i], exv), 0) + wchi*complex(trip[n]*Rc, 0)
				}
			}
			g[offsetM] += wpsi * complex(Rc, 0)
		}
	}

	for a, axis := range ev.lay.axes {
		var (
			t  = r3.Cross(axis, x)
			Rt = r3.Dot(R, t)
			o  = ev.lay.torqueOffset(a)
			g  = dst[o : o+blockLen]
			au [3]r3.Vec
		)
		for i := 0; i < 3; i++ {
			au[i] = r3.Cross(axis, u[i])
		}
		for j := 0; j < 3; j++ {
			txv := r3.Cross(t, v[j])
			for i := 0; i < 3; i++ {
				n := 3*i + j
				g[n] += wphi*complex(r3.Dot(au[i], v[j]), 0) + wpsi*complex(uw[n]*Rt, 0)
				g[offsetC+n] += wpsi*complex(r3.Dot(au[i], Rxv[j])+r3.Dot(u[i], txv), 0) +
					wchi*complex(trip[n]*Rt, 0)
			}
		}
		g[offsetM] += wpsi * complex(Rt, 0)
	}
}

// curlDot returns u.(g x v) for complex g.
func curlDot(u r3.Vec, g utils.CVec, v r3.Vec) complex128 {
	return -utils.CrossRC(v, g).Dot(u)
}

func (ev *evaluator) addTail(dst []complex128, R, x r3.Vec, u, v *[3]r3.Vec, cw complex128) {
	var (
		g, grad = ev.tail.Eval(R)
		gv      = utils.CVec(grad)
		b       = dst[:blockLen]
	)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			n := 3*i + j
			b[n] += cw * g * complex(r3.Dot(u[i], v[j]), 0)
			b[offsetC+n] += cw * curlDot(u[i], gv, v[j])
		}
	}
	b[offsetM] += cw * g
	if ev.lay.baseOnly() {
		return
	}

	// Hessian columns by central differences of the tail gradient.
	var H [3]utils.CVec
	for c := 0; c < 3; c++ {
		d := r3.Scale(ev.step, utils.UnitVector(c))
		_, gp := ev.tail.Eval(r3.Add(R, d))
		_, gm := ev.tail.Eval(r3.Sub(R, d))
		for m := 0; m < 3; m++ {
			H[c][m] = (gp[m] - gm[m]) / complex(2*ev.step, 0)
		}
	}
	if ev.lay.gradient {
		for c := 0; c < 3; c++ {
			o := ev.lay.gradientOffset(c)
			blk := dst[o : o+blockLen]
			for i := 0; i < 3; i++ {
				for j := 0; j < 3; j++ {
					n := 3*i + j
					blk[n] += cw * gv[c] * complex(r3.Dot(u[i], v[j]), 0)
					blk[offsetC+n] += cw * curlDot(u[i], H[c], v[j])
				}
			}
			blk[offsetM] += cw * gv[c]
		}
	}
	for a, axis := range ev.lay.axes {
		var (
			t  = r3.Cross(axis, x)
			Ht = H[0].Scale(complex(t.X, 0)).Add(H[1].Scale(complex(t.Y, 0))).Add(H[2].Scale(complex(t.Z, 0)))
			gt = gv.Dot(t)
			o  = ev.lay.torqueOffset(a)
		)
		blk := dst[o : o+blockLen]
		for i := 0; i < 3; i++ {
			au := r3.Cross(axis, u[i])
			for j := 0; j < 3; j++ {
				n := 3*i + j
				blk[n] += cw * (g*complex(r3.Dot(au, v[j]), 0) + gt*complex(r3.Dot(u[i], v[j]), 0))
				blk[offsetC+n] += cw * (curlDot(au, gv, v[j]) + curlDot(u[i], Ht, v[j]))
			}
		}
		blk[offsetM] += cw * gt
	}
}
