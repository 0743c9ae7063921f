package interaction

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gobem/geometry"
	"github.com/notargets/gobem/utils"
)

type tier uint8

const (
	farTier tier = iota
	midTier
	closeTier
)

// pairGeom is a panel pair with panel b already displaced.
type pairGeom struct {
	Va, Vb [3]r3.Vec
	Ca, Cb r3.Vec
	Aa, Ab float64
	Ra, Rb float64
	Na, Nb r3.Vec
}

func newPairGeom(Sa *geometry.Surface, pa int, Sb *geometry.Surface, pb int, disp r3.Vec) (pg pairGeom) {
	var (
		Pa = &Sa.Panels[pa]
		Pb = &Sb.Panels[pb]
	)
	for i := 0; i < 3; i++ {
		pg.Va[i] = Sa.Vertices[Pa.VI[i]]
		pg.Vb[i] = r3.Add(Sb.Vertices[Pb.VI[i]], disp)
	}
	pg.Ca, pg.Cb = Pa.Centroid, r3.Add(Pb.Centroid, disp)
	pg.Aa, pg.Ab = Pa.Area, Pb.Area
	pg.Ra, pg.Rb = Pa.Radius, Pb.Radius
	pg.Na, pg.Nb = Pa.ZHat, Pb.ZHat
	return
}

func (pg *pairGeom) radius() float64 { return math.Max(pg.Ra, pg.Rb) }

// contact counts the coincident vertices and returns the smallest
// vertex-vertex distance.
func (pg *pairGeom) contact() (ncv int, gap float64) {
	var (
		tol = 1.e-8 * pg.radius()
	)
	gap = math.Inf(1)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			d := utils.Distance(pg.Va[i], pg.Vb[j])
			if d < tol {
				ncv++
			}
			gap = math.Min(gap, d)
		}
	}
	return
}

// shiftB displaces panel b by d.
func (pg pairGeom) shiftB(d r3.Vec) pairGeom {
	for i := range pg.Vb {
		pg.Vb[i] = r3.Add(pg.Vb[i], d)
	}
	pg.Cb = r3.Add(pg.Cb, d)
	return pg
}

func (pg pairGeom) swapped() pairGeom {
	return pairGeom{
		Va: pg.Vb, Vb: pg.Va,
		Ca: pg.Cb, Cb: pg.Ca,
		Aa: pg.Ab, Ab: pg.Aa,
		Ra: pg.Rb, Rb: pg.Ra,
		Na: pg.Nb, Nb: pg.Na,
	}
}

func (ctx *Context) tierOf(pg *pairGeom) tier {
	var (
		rho = pg.radius()
		d   = utils.Distance(pg.Ca, pg.Cb)
	)
	switch {
	case d >= ctx.cfg.FarRatio*rho:
		return farTier
	case d >= ctx.cfg.MidRatio*rho:
		return midTier
	}
	return closeTier
}

// integrateFixed applies product rules ra x rb.
func (ctx *Context) integrateFixed(ev *evaluator, pg *pairGeom, ra, rb *utils.TriRule, dst []complex128) {
	var (
		na = ra.Nodes(pg.Va, pg.Aa, make([]utils.TriNode, 0, ra.Len()))
		nb = rb.Nodes(pg.Vb, pg.Ab, make([]utils.TriNode, 0, rb.Len()))
	)
	ev.Va, ev.Vb = pg.Va, pg.Vb
	for _, p := range na {
		for _, q := range nb {
			ev.add(dst, p.X, q.X, p.W*q.W)
		}
	}
}

// integrateConical uses the conical rule on panel a and, for every outer
// point, an adaptive subdivision of panel b. It serves the derivative
// blocks of close pairs and reports false when the evaluation budget cut a
// subdivision short.
func (ctx *Context) integrateConical(ev *evaluator, pg *pairGeom, dst []complex128) (converged bool) {
	var (
		outer  = ctx.outer.Nodes(pg.Va, pg.Aa, make([]utils.TriNode, 0, ctx.outer.Len()))
		root   = newSubTriangle(pg.Vb, pg.Ab, pg.Rb)
		stack  = make([]subTriangle, 0, 64)
		leaves = make([]utils.TriNode, 0, ctx.leaf.Len())
		cost   = ctx.leaf.Len()
		ratio  = ctx.cfg.SubdivisionRatio
	)
	ev.Va, ev.Vb = pg.Va, pg.Vb
	converged = true
	for _, p := range outer {
		evals := 0
		stack = append(stack[:0], root)
		for len(stack) > 0 {
			t := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if utils.Distance(p.X, t.Centroid) < ratio*t.Radius {
				if evals+cost*(len(stack)+4) <= ctx.cfg.MaxEvals {
					children := t.split()
					stack = append(stack, children[:]...)
					continue
				}
				converged = false
			}
			leaves = ctx.leaf.Nodes(t.V, t.Area, leaves[:0])
			for _, q := range leaves {
				ev.add(dst, p.X, q.X, p.W*q.W)
			}
			evals += cost
		}
	}
	return
}

// integrateSingular computes the base block of a close pair. At every
// point of panel a the static kernels are integrated over panel b in
// closed form and the smooth remainder by a fixed rule. Panel a is split
// where it nears the boundary of panel b, the only place left where the
// integrand is rough. It reports false when MaxOuterCells cut the
// subdivision short.
func (ctx *Context) integrateSingular(ev *evaluator, pg *pairGeom, dst []complex128) (converged bool) {
	var (
		sev   = *ev
		fp    = newFlatPanel(pg.Vb)
		inner = uniformNodes(ctx.leaf, pg.Vb, pg.Ab, ctx.cfg.InnerLevels)
		nodes = make([]utils.TriNode, 0, ctx.leaf.Len())
		stack = append(make([]subTriangle, 0, 64), newSubTriangle(pg.Va, pg.Aa, pg.Ra))
		minR  = ctx.cfg.OuterMinFraction * pg.Ra
		cells int
		b     = dst[:blockLen]
	)
	sev.Va, sev.Vb = pg.Va, pg.Vb
	sev.smooth = true
	converged = true
	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if t.Radius > minR && edgeDistance(t.Centroid, &pg.Vb) < ctx.cfg.OuterRatio*t.Radius {
			if cells+len(stack)+4 <= ctx.cfg.MaxOuterCells {
				children := t.split()
				stack = append(stack, children[:]...)
				continue
			}
			converged = false
		}
		cells++
		nodes = ctx.leaf.Nodes(t.V, t.Area, nodes[:0])
		for _, p := range nodes {
			sev.addStatic(b, p.X, p.W, &fp)
			for _, q := range inner {
				sev.add(b, p.X, q.X, p.W*q.W)
			}
		}
	}
	return
}

func (ctx *Context) integrateTier(ev *evaluator, pg *pairGeom, t tier, dst []complex128) {
	switch t {
	case farTier:
		ctx.integrateFixed(ev, pg, ctx.far, ctx.far, dst)
	case midTier:
		ctx.integrateFixed(ev, pg, ctx.mid, ctx.mid, dst)
	case closeTier:
		if ev.skipBase {
			if !ctx.integrateConical(ev, pg, dst) {
				ctx.budgetExhausted("evaluation budget", ctx.cfg.MaxEvals, pg)
			}
			return
		}
		if !ctx.integrateSingular(ev, pg, dst) {
			ctx.budgetExhausted("outer cell budget", ctx.cfg.MaxOuterCells, pg)
		}
	}
}

func (ctx *Context) budgetExhausted(what string, budget int, pg *pairGeom) {
	if n := ctx.nonConverged.Add(1); n <= 10 {
		utils.Logf("interaction %s: %s %d exhausted for panels at %v and %v (radius %g)",
			ctx.ID, what, budget, pg.Ca, pg.Cb, pg.radius())
	}
}

// integrateExtrapolated displaces panel b along its normal to
// NumSamples offsets and extrapolates every moment to zero offset.
func (ctx *Context) integrateExtrapolated(ev *evaluator, pg *pairGeom, t tier, dst []complex128) {
	var (
		sample = make([]complex128, len(dst))
		z      = ctx.cfg.DeltaZFraction * pg.Rb
	)
	for n, w := range ctx.weights {
		if n > 0 {
			z *= ctx.cfg.Ratio
		}
		shifted := pg.shiftB(r3.Scale(z, pg.Nb))
		clear(sample)
		ctx.integrateTier(ev, &shifted, t, sample)
		cw := complex(w, 0)
		for i := range dst {
			dst[i] += cw * sample[i]
		}
	}
}

// pairKey identifies a panel pair up to translation at one wavenumber.
// Coordinates are quantized to 2^-32 of the power of two bounding the
// larger panel radius.
type pairKey struct {
	Q     [15]int64
	Scale int
	K     [2]uint64
}

func makeKey(pg *pairGeom, k complex128) (key pairKey) {
	_, key.Scale = math.Frexp(pg.radius())
	var (
		shift = 32 - key.Scale
		n     int
		o     = pg.Va[0]
		q     = func(x float64) int64 { return int64(math.Round(math.Ldexp(x, shift))) }
	)
	for _, v := range [5]r3.Vec{pg.Va[1], pg.Va[2], pg.Vb[0], pg.Vb[1], pg.Vb[2]} {
		d := r3.Sub(v, o)
		key.Q[n], key.Q[n+1], key.Q[n+2] = q(d.X), q(d.Y), q(d.Z)
		n += 3
	}
	key.K = [2]uint64{math.Float64bits(real(k)), math.Float64bits(imag(k))}
	return
}

func (k pairKey) less(o pairKey) bool {
	for i := range k.Q {
		if k.Q[i] != o.Q[i] {
			return k.Q[i] < o.Q[i]
		}
	}
	return false
}

// transposeBlock maps the moments of (b,a) onto those of (a,b).
func transposeBlock(src, dst []complex128) {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			dst[3*i+j] = src[3*j+i]
			dst[offsetC+3*i+j] = src[offsetC+3*j+i]
		}
	}
	dst[offsetM] = src[offsetM]
}

// panelPair adds the moments of one panel pair to dst.
func (ctx *Context) panelPair(ev *evaluator, pg *pairGeom, dst []complex128) {
	ev.minR = 1.e-12 * pg.radius()
	ev.step = 1.e-4 * pg.radius()
	if ev.tail != nil {
		ctx.integrateFixed(ev, pg, ctx.mid, ctx.mid, dst)
		return
	}
	var (
		t        = ctx.tierOf(pg)
		ncv, gap = pg.contact()
		extrap   = ctx.cfg.ForceExtrapolation ||
			(!ctx.cfg.ForceRegular && (ncv > 0 || gap < ctx.cfg.NearFieldRatio*pg.radius()))
	)
	if !extrap && t != closeTier {
		ctx.integrateTier(ev, pg, t, dst)
		return
	}
	ctx.baseBlock(ev, pg, t, extrap, ncv, dst[:blockLen])
	if ev.lay.baseOnly() {
		return
	}
	ev.skipBase = true
	if extrap {
		ctx.integrateExtrapolated(ev, pg, t, dst)
	} else {
		ctx.integrateTier(ev, pg, t, dst)
	}
	ev.skipBase = false
}

// baseBlock adds the base moments of a close or touching pair. They are
// computed once per translation class, in a canonical panel order.
func (ctx *Context) baseBlock(ev *evaluator, pg *pairGeom, t tier, extrap bool, ncv int, dst []complex128) {
	var (
		key      = makeKey(pg, ev.k)
		rpg      = pg.swapped()
		rkey     = makeKey(&rpg, ev.k)
		swap     bool
		canon    = pg
		blk      *[blockLen]complex128
		ok       bool
		useCache = !ctx.cfg.DisableCache
	)
	if rkey.less(key) {
		key, canon, swap = rkey, &rpg, true
	}
	if useCache {
		blk, ok = ctx.lookup(key)
	}
	if !ok {
		var (
			base = evaluator{k: ev.k, minR: ev.minR, step: ev.step}
		)
		blk = new([blockLen]complex128)
		if extrap {
			ctx.integrateExtrapolated(&base, canon, t, blk[:])
		} else {
			ctx.integrateTier(&base, canon, t, blk[:])
		}
		if ncv == 3 {
			// coplanar coincident panels: the curl moments vanish
			clear(blk[offsetC:])
		}
		if useCache {
			ctx.store(key, blk)
		}
	}
	if swap {
		var tmp [blockLen]complex128
		transposeBlock(blk[:], tmp[:])
		blk = &tmp
	}
	for i := range blk {
		dst[i] += blk[i]
	}
}
