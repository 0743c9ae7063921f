package interaction

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gobem/geometry"
)

// Args describes one edge-edge interaction. Surface Sb is translated by
// Displacement before the integrals are evaluated.
type Args struct {
	Sa, Sb       *geometry.Surface
	EdgeA, EdgeB int
	K            complex128
	NeedGradient bool
	// TorqueAxes requests derivatives with respect to a rotation of Sa
	// about each axis through the origin.
	TorqueAxes   []r3.Vec
	Displacement r3.Vec
	// Tail, when set, replaces the free-space Green's function.
	Tail TailKernel
}

// Result holds
//
//	G = <fa, G fb> - (1/k^2) <div fa, G div fb>
//	C = (1/ik) <fa, grad G x fb>
//
// For k = 0, C is zero and G drops its divergence term. DG and DC are
// derivatives with respect to a translation of Sa, DGdTheta and DCdTheta
// with respect to rotations about Args.TorqueAxes. Derivatives of a
// surface's interaction with itself vanish.
type Result struct {
	G, C               complex128
	DG, DC             [3]complex128
	DGdTheta, DCdTheta []complex128
}

// half is one panel of an RWG function.
type half struct {
	panel int
	iq    int // index of the free vertex within the panel
	sign  float64
}

func halves(E *geometry.Edge) (h []half) {
	h = append(h, half{panel: E.PPanel, iq: E.PIndex, sign: 1})
	if !E.IsExterior() {
		h = append(h, half{panel: E.MPanel, iq: E.MIndex, sign: -1})
	}
	return
}

// GetEdgeEdgeInteractions sums the panel-pair moments of the up to four
// panel combinations of two RWG functions.
func GetEdgeEdgeInteractions(ctx *Context, args *Args) (res Result) {
	var (
		Sa, Sb  = args.Sa, args.Sb
		Ea, Eb  = &Sa.Edges[args.EdgeA], &Sb.Edges[args.EdgeB]
		derived = Sa != Sb
		lay     = layout{gradient: args.NeedGradient && derived}
		k       = args.K
		fourK2  complex128
		invIK   complex128
	)
	if derived {
		lay.axes = args.TorqueAxes
	}
	if k != 0 {
		fourK2 = 4 / (k * k)
		invIK = 1 / (1i * k)
	}
	if n := len(args.TorqueAxes); n > 0 {
		res.DGdTheta = make([]complex128, n)
		res.DCdTheta = make([]complex128, n)
	}
	var (
		small [blockLen]complex128
		buf   = small[:]
		ev    = evaluator{k: k, lay: lay, tail: args.Tail}
	)
	if !lay.baseOnly() {
		buf = make([]complex128, lay.Len())
	}
	combine := func(blk []complex128, n int, pf complex128) (g, c complex128) {
		return pf * (blk[n] - fourK2*blk[offsetM]), pf * invIK * blk[offsetC+n]
	}
	for _, ha := range halves(Ea) {
		for _, hb := range halves(Eb) {
			var (
				pg = newPairGeom(Sa, ha.panel, Sb, hb.panel, args.Displacement)
				n  = 3*ha.iq + hb.iq
				pf = complex(ha.sign*hb.sign*Ea.Length*Eb.Length/(4*pg.Aa*pg.Ab), 0)
			)
			clear(buf)
			ctx.panelPair(&ev, &pg, buf)
			g, c := combine(buf, n, pf)
			res.G += g
			res.C += c
			if lay.gradient {
				for m := 0; m < 3; m++ {
					o := lay.gradientOffset(m)
					g, c = combine(buf[o:o+blockLen], n, pf)
					res.DG[m] += g
					res.DC[m] += c
				}
			}
			for a := range lay.axes {
				o := lay.torqueOffset(a)
				g, c = combine(buf[o:o+blockLen], n, pf)
				res.DGdTheta[a] += g
				res.DCdTheta[a] += c
			}
		}
	}
	return
}
