package assembly

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gobem/geometry"
	"github.com/notargets/gobem/interaction"
	"github.com/notargets/gobem/overlap"
	"github.com/notargets/gobem/utils"
)

type blockKind uint8

const (
	PECPEC blockKind = iota
	PECDielectric
	DielectricPEC
	DielectricDielectric
)

func kindOf(a, b geometry.SurfaceKind) blockKind {
	switch {
	case a == geometry.PECSurface && b == geometry.PECSurface:
		return PECPEC
	case a == geometry.PECSurface:
		return PECDielectric
	case b == geometry.PECSurface:
		return DielectricPEC
	}
	return DielectricDielectric
}

func (k blockKind) String() string {
	switch k {
	case PECPEC:
		return "PEC-PEC"
	case PECDielectric:
		return "PEC-Dielectric"
	case DielectricPEC:
		return "Dielectric-PEC"
	case DielectricDielectric:
		return "Dielectric-Dielectric"
	}
	return fmt.Sprintf("blockKind(%d)", uint8(k))
}

// widths returns the number of unknowns per edge on each side.
func (k blockKind) widths() (ra, rb int) {
	switch k {
	case PECPEC:
		return 1, 1
	case PECDielectric:
		return 1, 2
	case DielectricPEC:
		return 2, 1
	case DielectricDielectric:
		return 2, 2
	}
	panic(fmt.Errorf("unknown block kind %d", uint8(k)))
}

// stamp adds the interaction of one edge pair in one region at local row X
// and column Y. Odd rows and columns are magnetic unknowns.
func (k blockKind) stamp(B *mat.CDense, X, Y int, t *regionTerm, G, C complex128) {
	add := func(i, j int, v complex128) { B.Set(i, j, B.At(i, j)+v) }
	switch k {
	case PECPEC:
		add(X, Y, t.P1*G)
	case PECDielectric:
		add(X, Y, t.P1*G)
		add(X, Y+1, t.P2*C)
	case DielectricPEC:
		add(X, Y, t.P1*G)
		add(X+1, Y, t.P2*C)
	case DielectricDielectric:
		add(X, Y, t.P1*G)
		add(X, Y+1, t.P2*C)
		add(X+1, Y, t.P2*C)
		add(X+1, Y+1, t.P3*G)
	}
}

// pass is one sweep over all edge pairs of a surface pair with surface b
// displaced by Displacement.
type pass struct {
	Sa, Sb       *geometry.Surface
	Kind         blockKind
	Terms        []regionTerm
	Displacement r3.Vec
	// Symmetric computes only neb >= nea and mirrors every buffer; valid for
	// a surface with itself in the home cell, whose derivative blocks vanish.
	Symmetric bool
	Gradient  bool
	Axes      []r3.Vec
}

// blockSet holds the matrix block of a pass and, if requested, its
// derivatives.
type blockSet struct {
	B     *mat.CDense
	Grad  [3]*mat.CDense
	Theta []*mat.CDense
}

func newBlockSet(nr, nc int, gradient bool, naxes int) (bs *blockSet) {
	bs = &blockSet{B: mat.NewCDense(nr, nc, nil)}
	if gradient {
		for c := range bs.Grad {
			bs.Grad[c] = mat.NewCDense(nr, nc, nil)
		}
	}
	for a := 0; a < naxes; a++ {
		bs.Theta = append(bs.Theta, mat.NewCDense(nr, nc, nil))
	}
	return
}

// buffers lists the matrix block and every derivative block.
func (bs *blockSet) buffers() (B []*mat.CDense) {
	B = append(B, bs.B)
	for _, D := range bs.Grad {
		if D != nil {
			B = append(B, D)
		}
	}
	return append(B, bs.Theta...)
}

// run evaluates the pass on the worker pool. Workers own their kernel
// arguments and write disjoint entries of the block buffers.
func (a *Assembler) run(p *pass) (bs *blockSet) {
	var (
		NEa, NEb = p.Sa.NumEdges(), p.Sb.NumEdges()
		ra, rb   = p.Kind.widths()
		args     = make([]interaction.Args, a.workers)
	)
	bs = newBlockSet(p.Sa.NumBFs, p.Sb.NumBFs, p.Gradient, len(p.Axes))
	for w := range args {
		args[w] = interaction.Args{
			Sa:           p.Sa,
			Sb:           p.Sb,
			NeedGradient: p.Gradient,
			TorqueAxes:   p.Axes,
			Displacement: p.Displacement,
		}
	}
	utils.RoundRobin(a.workers, NEa*NEb, func(w, n int) {
		var (
			nea, neb = n / NEb, n % NEb
			arg      = &args[w]
			X, Y     = ra * nea, rb * neb
		)
		if p.Symmetric && neb < nea {
			return
		}
		arg.EdgeA, arg.EdgeB = nea, neb
		for i := range p.Terms {
			t := &p.Terms[i]
			arg.K, arg.Tail = t.K, t.Tail
			res := interaction.GetEdgeEdgeInteractions(a.Ctx, arg)
			p.Kind.stamp(bs.B, X, Y, t, res.G, res.C)
			if p.Gradient {
				for c := 0; c < 3; c++ {
					p.Kind.stamp(bs.Grad[c], X, Y, t, res.DG[c], res.DC[c])
				}
			}
			for m := range bs.Theta {
				p.Kind.stamp(bs.Theta[m], X, Y, t, res.DGdTheta[m], res.DCdTheta[m])
			}
		}
		if p.Symmetric && nea != neb {
			for _, B := range bs.buffers() {
				for r := 0; r < ra; r++ {
					for c := 0; c < rb; c++ {
						B.Set(Y+c, X+r, B.At(X+r, Y+c))
					}
				}
			}
		}
	})
	return
}

// stampBlock adds phase*B, and with transpose also conj(phase)*B^T, into M
// at (row, col). Packed matrices receive the upper triangle only.
func stampBlock(M *utils.HMatrix, B *mat.CDense, row, col int, phase complex128, transpose bool) {
	var (
		nr, nc = B.Dims()
		cphase = complex(real(phase), -imag(phase))
		packed = M.IsSymmetric()
	)
	for i := 0; i < nr; i++ {
		for j := 0; j < nc; j++ {
			if packed && row+i > col+j {
				continue
			}
			v := phase * B.At(i, j)
			if transpose {
				v += cphase * B.At(j, i)
			}
			M.Add(row+i, col+j, v)
		}
	}
}

// addSurfaceSigma adds -2 Overlap/sigma between the edges of a conducting
// sheet S. Sigma is evaluated at the edge centroid on the diagonal and at the
// shared panel's centroid otherwise.
func addSurfaceSigma(M *utils.HMatrix, S *geometry.Surface, omega complex128, row, col int) (err error) {
	if S.Sigma == nil || !S.IsPEC {
		return
	}
	var (
		w    = omega * utils.FreqUnit
		seen = make(map[[2]int]bool)
	)
	for np := range S.Panels {
		P := &S.Panels[np]
		for _, na := range P.EI {
			for _, nb := range P.EI {
				if na < 0 || nb < na || seen[[2]int{na, nb}] {
					continue
				}
				seen[[2]int{na, nb}] = true
				O := overlap.GetOverlaps(S, na, nb)[overlap.Overlap]
				if O == 0 {
					continue
				}
				X := P.Centroid
				if na == nb {
					X = S.Edges[na].Centroid
				}
				var sigma complex128
				if sigma, err = S.Sigma.Eval(w, X); err != nil {
					return fmt.Errorf("surface %s: conductivity: %w", S.Label, err)
				}
				if sigma == 0 {
					continue
				}
				v := complex(-2*O, 0) / sigma
				M.Add(row+na, col+nb, v)
				if na != nb && !M.IsSymmetric() {
					M.Add(row+nb, col+na, v)
				}
			}
		}
	}
	return
}
