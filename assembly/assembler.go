package assembly

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gobem/geometry"
	"github.com/notargets/gobem/interaction"
	"github.com/notargets/gobem/utils"
)

var (
	ErrPeriodicDerivative = errors.New("lateral and angular derivatives are not supported for periodic geometries")
	ErrBlochUndefined     = errors.New("Bloch vector given for a compact geometry")
	ErrBlochRequired      = errors.New("periodic geometry requires a Bloch vector")
)

type Options struct {
	// Workers is the size of the worker pool, zero selects one per CPU.
	Workers int
	// Packed stores symmetric matrices as a packed upper triangle.
	Packed bool
	// UseAccelerator keeps the nearest-cell blocks of periodic geometries
	// between calls at the same frequency.
	UseAccelerator bool
	// NoTail drops the lattice sum beyond the nearest cells.
	NoTail bool
	// TableSpacing is the node spacing of the lattice sum tables, zero
	// selects a tenth of the shorter of wavelength and lattice vector.
	TableSpacing float64
	// Incremental keeps the blocks of surfaces that did not move when the
	// same matrix is reassembled at the same frequency and Bloch vector.
	Incremental bool
}

// Assembler fills BEM matrices for one geometry. An Assembler is not safe
// for concurrent use; each call parallelizes internally.
type Assembler struct {
	G       *geometry.Geometry
	Ctx     *interaction.Context
	opts    Options
	workers int
	tables  *tableCache
	accel   map[[2]int]*accelEntry
	last    struct {
		M     *utils.HMatrix
		Omega complex128
		KB    r3.Vec
	}
}

func NewAssembler(G *geometry.Geometry, ctx *interaction.Context, opts Options) (a *Assembler) {
	a = &Assembler{
		G:       G,
		Ctx:     ctx,
		opts:    opts,
		workers: opts.Workers,
		tables:  newTableCache(),
	}
	if a.workers <= 0 {
		a.workers = utils.DefaultWorkers()
	}
	if opts.UseAccelerator {
		a.accel = make(map[[2]int]*accelEntry)
	}
	return
}

func (a *Assembler) Workers() int { return a.workers }

// BlockArgs selects one surface-pair block. Derivative matrices are filled
// only when non-nil; GradM[c] is the derivative with respect to a
// translation of surface Sa along axis c and DMDTheta[n] with respect to a
// rotation of Sa about TorqueAxes[n].
type BlockArgs struct {
	Sa, Sb               int
	Omega                complex128
	KBloch               []float64
	M                    *utils.HMatrix
	GradM                [3]*utils.HMatrix
	DMDTheta             []*utils.HMatrix
	TorqueAxes           []r3.Vec
	RowOffset, ColOffset int
}

func blochVector(kBloch []float64) (kB r3.Vec) {
	if len(kBloch) > 0 {
		kB.X = kBloch[0]
	}
	if len(kBloch) > 1 {
		kB.Y = kBloch[1]
	}
	return
}

func (a *Assembler) checkBloch(kBloch []float64) (err error) {
	var (
		kB = blochVector(kBloch)
	)
	switch {
	case a.G.IsPeriodic() && kBloch == nil:
		return ErrBlochRequired
	case !a.G.IsPeriodic() && kB != (r3.Vec{}):
		return ErrBlochUndefined
	}
	return
}

// AllocateBEMMatrix returns a zero matrix of the geometry's size. Pure
// imaginary frequencies without Bloch phase give real matrices.
func (a *Assembler) AllocateBEMMatrix(omega complex128, kBloch []float64) *utils.HMatrix {
	var (
		n       = a.G.TotalBFs
		kind    = utils.ComplexKind
		storage = utils.Normal
		zeroKB  = blochVector(kBloch) == r3.Vec{}
	)
	if real(omega) == 0 && imag(omega) != 0 && zeroKB {
		kind = utils.RealKind
	}
	if a.opts.Packed && zeroKB {
		storage = utils.PackedSymmetric
	}
	return utils.NewHMatrix(n, n, kind, storage).SetName("M")
}

// AssembleBEMMatrix fills M at angular frequency omega and Bloch vector
// kBloch (nil for compact geometries). A nil M is allocated, a matrix of the
// wrong size or kind is replaced with a warning. The returned matrix is the
// one filled.
func (a *Assembler) AssembleBEMMatrix(omega complex128, kBloch []float64, M *utils.HMatrix) (*utils.HMatrix, error) {
	var (
		G         = a.G
		kB        = blochVector(kBloch)
		symmetric = kB == r3.Vec{}
		want      = a.AllocateBEMMatrix
		fresh     bool
	)
	if err := a.checkBloch(kBloch); err != nil {
		return M, err
	}
	switch {
	case M == nil:
		M, fresh = want(omega, kBloch), true
	case M.NR != G.TotalBFs || M.NC != G.TotalBFs:
		utils.Warnf("matrix %s is %dx%d, geometry has %d basis functions; reallocating\n",
			M.Name(), M.NR, M.NC, G.TotalBFs)
		M, fresh = want(omega, kBloch), true
	case M.IsReal() && !(real(omega) == 0 && symmetric):
		utils.Warnf("real matrix %s cannot hold the system at omega=%v; reallocating\n", M.Name(), omega)
		M, fresh = want(omega, kBloch), true
	case M.IsSymmetric() && !symmetric:
		utils.Warnf("packed matrix %s cannot hold a Bloch-phased system; reallocating\n", M.Name())
		M, fresh = want(omega, kBloch), true
	}
	G.UpdateCachedEpsMu(omega)

	incremental := a.opts.Incremental && !fresh && a.last.M == M && a.last.Omega == omega && a.last.KB == kB
	nsStart := 0
	for ns := 0; ns < G.NumSurfaces(); ns++ {
		if symmetric {
			nsStart = ns
		}
		for nsp := nsStart; nsp < G.NumSurfaces(); nsp++ {
			if incremental && !G.SurfaceMoved[ns] && !G.SurfaceMoved[nsp] {
				continue
			}
			var (
				row = G.BFIndexOffset[ns]
				col = G.BFIndexOffset[nsp]
			)
			if nsm := G.Mate[ns]; ns == nsp && nsm != -1 {
				if G.LogLevel > 0 {
					utils.Logf("block (%d,%d) is identical to block (%d,%d), reusing\n", ns, ns, nsm, nsm)
				}
				dim := G.Surfaces[ns].NumBFs
				M.CopyBlock(M, row, row, dim, dim, G.BFIndexOffset[nsm], G.BFIndexOffset[nsm])
				continue
			}
			err := a.AssembleBEMMatrixBlock(&BlockArgs{
				Sa: ns, Sb: nsp,
				Omega:     omega,
				KBloch:    kBloch,
				M:         M,
				RowOffset: row,
				ColOffset: col,
			})
			if err != nil {
				return M, err
			}
		}
	}
	if symmetric {
		M.Symmetrize()
	}
	a.last.M, a.last.Omega, a.last.KB = M, omega, kB
	return M, nil
}

// AssembleBEMMatrixBlock computes the block of surfaces Sa and Sb and writes
// it at (RowOffset, ColOffset), replacing what was there.
func (a *Assembler) AssembleBEMMatrixBlock(args *BlockArgs) (err error) {
	var (
		G  = a.G
		Sa = G.Surfaces[args.Sa]
		Sb = G.Surfaces[args.Sb]
	)
	if err = a.checkBloch(args.KBloch); err != nil {
		return
	}
	if G.IsPeriodic() && (args.GradM[0] != nil || args.GradM[1] != nil || len(args.DMDTheta) > 0) {
		return ErrPeriodicDerivative
	}
	if len(args.DMDTheta) != len(args.TorqueAxes) {
		return fmt.Errorf("%d torque matrices for %d axes", len(args.DMDTheta), len(args.TorqueAxes))
	}
	G.UpdateCachedEpsMu(args.Omega)
	args.M.ZeroBlock(args.RowOffset, Sa.NumBFs, args.ColOffset, Sb.NumBFs)
	for _, D := range args.GradM {
		if D != nil {
			D.ZeroBlock(args.RowOffset, Sa.NumBFs, args.ColOffset, Sb.NumBFs)
		}
	}
	for _, D := range args.DMDTheta {
		D.ZeroBlock(args.RowOffset, Sa.NumBFs, args.ColOffset, Sb.NumBFs)
	}
	if G.LogLevel > 1 {
		utils.Logf("block (%d,%d) %s at omega=%v\n", args.Sa, args.Sb, kindOf(Sa.Kind(), Sb.Kind()), args.Omega)
	}
	if G.IsPeriodic() {
		err = a.assemblePeriodicBlock(args)
	} else {
		a.assembleCompactBlock(args)
	}
	if err == nil && args.Sa == args.Sb {
		err = addSurfaceSigma(args.M, Sa, args.Omega, args.RowOffset, args.ColOffset)
	}
	return
}

func (a *Assembler) assembleCompactBlock(args *BlockArgs) {
	var (
		G              = a.G
		Sa, Sb         = G.Surfaces[args.Sa], G.Surfaces[args.Sb]
		n, regs, signs = CountCommonRegions(G, args.Sa, args.Sb)
		gradient       = args.GradM[0] != nil || args.GradM[1] != nil || args.GradM[2] != nil
		terms          []regionTerm
	)
	if n == 0 {
		return
	}
	for i := 0; i < n; i++ {
		terms = append(terms, newRegionTerm(G, regs[i], signs[i], args.Omega))
	}
	bs := a.run(&pass{
		Sa:        Sa,
		Sb:        Sb,
		Kind:      kindOf(Sa.Kind(), Sb.Kind()),
		Terms:     terms,
		Symmetric: args.Sa == args.Sb,
		Gradient:  gradient,
		Axes:      args.TorqueAxes,
	})
	stampBlock(args.M, bs.B, args.RowOffset, args.ColOffset, 1, false)
	for c, D := range args.GradM {
		if D != nil {
			stampBlock(D, bs.Grad[c], args.RowOffset, args.ColOffset, 1, false)
		}
	}
	for i, D := range args.DMDTheta {
		stampBlock(D, bs.Theta[i], args.RowOffset, args.ColOffset, 1, false)
	}
}
