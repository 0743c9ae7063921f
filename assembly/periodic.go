package assembly

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gobem/geometry"
	"github.com/notargets/gobem/lattice"
	"github.com/notargets/gobem/utils"
)

// cell is a lattice translation n1*L1 + n2*L2.
type cell struct {
	N1, N2 int
	L      r3.Vec
}

func (c cell) isHome() bool { return c.N1 == 0 && c.N2 == 0 }

// neighbourCells lists the nearest cells, home cell included. With half set
// only the cells up to and including the home cell in the order (+1,+1),
// (+1,0), ..., (-1,-1) are returned; their mirror images follow from the
// transpose of the block.
func neighbourCells(L *geometry.Lattice, half bool) (cells []cell) {
	n2max := 1
	if L.Kind() == geometry.OneD {
		n2max = 0
	}
	for n1 := 1; n1 >= -1; n1-- {
		for n2 := n2max; n2 >= -n2max; n2-- {
			cells = append(cells, cell{N1: n1, N2: n2, L: L.Vector(n1, n2)})
			if half && n1 == 0 && n2 == 0 {
				return
			}
		}
	}
	return
}

// accelEntry keeps the nearest-cell blocks of one surface pair. The blocks
// do not depend on the Bloch vector and stay valid while omega and the
// positions of both surfaces are unchanged.
type accelEntry struct {
	Omega  complex128
	Ta, Tb geometry.Transformation
	Blocks []*blockSet
}

// tableCache holds the lattice sum tables of the extended regions, valid
// for one omega and Bloch vector.
type tableCache struct {
	Omega  complex128
	KB     r3.Vec
	tables map[int]*lattice.GBarTable
}

func newTableCache() *tableCache {
	return &tableCache{tables: make(map[int]*lattice.GBarTable)}
}

func (tc *tableCache) invalidate(omega complex128, kB r3.Vec) {
	if omega == tc.Omega && kB == tc.KB {
		return
	}
	tc.Omega, tc.KB = omega, kB
	clear(tc.tables)
}

// regionExtent returns the range of x - x' over the surfaces bounding
// region nr.
func regionExtent(G *geometry.Geometry, nr int) (rmin, rmax r3.Vec) {
	var (
		lo = r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
		hi = r3.Scale(-1, lo)
	)
	for _, S := range G.Surfaces {
		if S.RegionIndex[0] != nr && S.RegionIndex[1] != nr {
			continue
		}
		lo = r3.Vec{X: math.Min(lo.X, S.RMin.X), Y: math.Min(lo.Y, S.RMin.Y), Z: math.Min(lo.Z, S.RMin.Z)}
		hi = r3.Vec{X: math.Max(hi.X, S.RMax.X), Y: math.Max(hi.Y, S.RMax.Y), Z: math.Max(hi.Z, S.RMax.Z)}
	}
	return r3.Sub(lo, hi), r3.Sub(hi, lo)
}

// tableSpacing is a tenth of the shorter of the wavelength and the shortest
// lattice vector.
func (a *Assembler) tableSpacing(k complex128) float64 {
	if a.opts.TableSpacing > 0 {
		return a.opts.TableSpacing
	}
	h := math.Inf(1)
	for _, b := range a.G.Lattice.Basis {
		h = math.Min(h, r3.Norm(b))
	}
	if ak := cmplx.Abs(k); ak > 0 {
		h = math.Min(h, 2*math.Pi/ak)
	}
	return h / 10
}

// regionTable returns the lattice sum table of region nr without the
// nearest cells, building it on first use. A table that no longer covers
// the region after surfaces moved is rebuilt.
func (a *Assembler) regionTable(nr int, k complex128, kB r3.Vec) (T *lattice.GBarTable, err error) {
	rmin, rmax := regionExtent(a.G, nr)
	if T = a.tables.tables[nr]; T != nil && T.Contains(rmin) && T.Contains(rmax) {
		return
	}
	var ew *lattice.Ewald
	if ew, err = lattice.NewEwald(a.regionLattice(nr), k, kB, 1, 0); err != nil {
		return nil, err
	}
	if T, err = lattice.NewGBarTable(ew, rmin, rmax, a.tableSpacing(k), a.workers); err != nil {
		return nil, err
	}
	if a.G.LogLevel > 0 {
		utils.Logf("region %s: %v\n", a.G.Regions[nr].Label, T)
	}
	a.tables.tables[nr] = T
	return
}

// regionLattice is the lattice a region repeats on: the full lattice, or
// the 1D lattice of the one vector along which it is extended.
func (a *Assembler) regionLattice(nr int) *geometry.Lattice {
	var (
		L   = a.G.Lattice
		ext = a.G.Regions[nr].Extended
	)
	switch {
	case L.Dimension() == 2 && ext[0] && !ext[1]:
		return L.Sub(0)
	case L.Dimension() == 2 && !ext[0] && ext[1]:
		return L.Sub(1)
	}
	return L
}

// periodicTerms returns the region terms of a block in cell c. Regions
// that do not extend into neighbouring cells contribute to the home cell
// only.
func (a *Assembler) periodicTerms(args *BlockArgs, c cell) (terms []regionTerm) {
	n, regs, signs := CountCommonRegions(a.G, args.Sa, args.Sb)
	for i := 0; i < n; i++ {
		if !a.G.Regions[regs[i]].IsExtended(c.N1, c.N2) {
			continue
		}
		terms = append(terms, newRegionTerm(a.G, regs[i], signs[i], args.Omega))
	}
	return
}

// tailTerms returns the region terms of the lattice sum beyond the nearest
// cells, one for each common region extended along some lattice vector.
func (a *Assembler) tailTerms(args *BlockArgs) (terms []regionTerm) {
	n, regs, signs := CountCommonRegions(a.G, args.Sa, args.Sb)
	for i := 0; i < n; i++ {
		R := a.G.Regions[regs[i]]
		if !R.IsExtended(1, 0) && !R.IsExtended(0, 1) {
			continue
		}
		terms = append(terms, newRegionTerm(a.G, regs[i], signs[i], args.Omega))
	}
	return
}

// assemblePeriodicBlock sums the block over the nearest cells with Bloch
// phases exp(i kB.L) and adds the rest of the lattice through the
// interpolated lattice sum of each extended region.
func (a *Assembler) assemblePeriodicBlock(args *BlockArgs) (err error) {
	var (
		G        = a.G
		Sa, Sb   = G.Surfaces[args.Sa], G.Surfaces[args.Sb]
		same     = args.Sa == args.Sb
		kB       = blochVector(args.KBloch)
		kind     = kindOf(Sa.Kind(), Sb.Kind())
		gradient = args.GradM[2] != nil
		cells    = neighbourCells(G.Lattice, same)
		entry    *accelEntry
		clean    bool
	)
	if n, _, _ := CountCommonRegions(G, args.Sa, args.Sb); n == 0 {
		return
	}
	if a.accel != nil {
		key := [2]int{args.Sa, args.Sb}
		if entry = a.accel[key]; entry == nil {
			entry = &accelEntry{}
			a.accel[key] = entry
		}
		clean = entry.Omega == args.Omega && entry.Ta == Sa.Current && entry.Tb == Sb.Current &&
			len(entry.Blocks) == len(cells) && (!gradient || entry.hasGradient())
		if !clean {
			entry.Omega, entry.Ta, entry.Tb = args.Omega, Sa.Current, Sb.Current
			entry.Blocks = make([]*blockSet, len(cells))
		}
	}
	for i, c := range cells {
		var bs *blockSet
		if clean {
			bs = entry.Blocks[i]
		} else {
			if terms := a.periodicTerms(args, c); len(terms) > 0 {
				bs = a.run(&pass{
					Sa:           Sa,
					Sb:           Sb,
					Kind:         kind,
					Terms:        terms,
					Displacement: c.L,
					Symmetric:    same && c.isHome(),
					Gradient:     gradient,
				})
			}
			if entry != nil {
				entry.Blocks[i] = bs
			}
		}
		if bs == nil {
			continue
		}
		var (
			phase     = cmplx.Exp(complex(0, r3.Dot(kB, c.L)))
			transpose = same && !c.isHome()
		)
		stampBlock(args.M, bs.B, args.RowOffset, args.ColOffset, phase, transpose)
		if gradient {
			stampBlock(args.GradM[2], bs.Grad[2], args.RowOffset, args.ColOffset, phase, transpose)
		}
	}
	if a.opts.NoTail {
		return
	}

	a.tables.invalidate(args.Omega, kB)
	var terms []regionTerm
	for _, t := range a.tailTerms(args) {
		var T *lattice.GBarTable
		if T, err = a.regionTable(t.Region, t.K, kB); err != nil {
			return
		}
		t.Tail = T
		terms = append(terms, t)
	}
	if len(terms) == 0 {
		return
	}
	bs := a.run(&pass{
		Sa:       Sa,
		Sb:       Sb,
		Kind:     kind,
		Terms:    terms,
		Gradient: gradient,
	})
	stampBlock(args.M, bs.B, args.RowOffset, args.ColOffset, 1, false)
	if gradient {
		stampBlock(args.GradM[2], bs.Grad[2], args.RowOffset, args.ColOffset, 1, false)
	}
	return
}

func (e *accelEntry) hasGradient() bool {
	for _, bs := range e.Blocks {
		if bs != nil && bs.Grad[2] == nil {
			return false
		}
	}
	return true
}
