package assembly

import (
	"errors"
	"math"
	"math/cmplx"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gobem/geometry"
	"github.com/notargets/gobem/interaction"
	"github.com/notargets/gobem/overlap"
	"github.com/notargets/gobem/utils"
)

func newAssembler(t *testing.T, src string, opts Options) *Assembler {
	t.Helper()
	G, err := geometry.NewGeometry(strings.NewReader(src), "test.scuffgeo")
	require.NoError(t, err)
	ctx, err := interaction.NewContext(interaction.DefaultConfig())
	require.NoError(t, err)
	return NewAssembler(G, ctx, opts)
}

func offset(t *testing.T, G *geometry.Geometry, label string) int {
	t.Helper()
	ns, S := G.GetSurfaceByLabel(label)
	require.NotNil(t, S, label)
	return G.BFIndexOffset[ns]
}

// parts flattens the nr x nc block at (r0, c0) into real and imaginary parts.
func parts(M *utils.HMatrix, r0, c0, nr, nc int) (p []float64) {
	for i := 0; i < nr; i++ {
		for j := 0; j < nc; j++ {
			v := M.Get(r0+i, c0+j)
			p = append(p, real(v), imag(v))
		}
	}
	return
}

// relBlockDiff is max|A-B| / max|B| over one block.
func relBlockDiff(A, B *utils.HMatrix, r0, c0, nr, nc int) float64 {
	var num, den float64
	for i := r0; i < r0+nr; i++ {
		for j := c0; j < c0+nc; j++ {
			num = math.Max(num, cmplx.Abs(A.Get(i, j)-B.Get(i, j)))
			den = math.Max(den, cmplx.Abs(B.Get(i, j)))
		}
	}
	return num / den
}

func relMaxDiff(A, B *utils.HMatrix) float64 { return relBlockDiff(A, B, 0, 0, B.NR, B.NC) }

const nestedSpheres = `
MATERIAL Glass
  EPS = 2.25
ENDMATERIAL

OBJECT Inner
  MESHFILE builtin:icosphere:1:0
ENDOBJECT

OBJECT Outer
  MESHFILE builtin:icosphere:2:0
  MATERIAL Glass
ENDOBJECT

OBJECT Far
  MESHFILE builtin:box:0.5:1
  DISPLACED 6 0 0
ENDOBJECT
`

func TestCountCommonRegions(t *testing.T) {
	a := newAssembler(t, nestedSpheres, Options{})
	G := a.G
	var (
		inner, _ = G.GetSurfaceByLabel("Inner")
		outer, _ = G.GetSurfaceByLabel("Outer")
		far, _   = G.GetSurfaceByLabel("Far")
		glass, _ = G.GetRegionByLabel("Outer")
	)
	{ // Case: a dielectric surface meets itself in both media
		n, regs, signs := CountCommonRegions(G, outer, outer)
		assert.Equal(t, 2, n)
		assert.Equal(t, [2]int{0, glass}, regs)
		assert.Equal(t, [2]float64{1, 1}, signs)
	}
	{ // Case: container and content
		n, regs, signs := CountCommonRegions(G, outer, inner)
		assert.Equal(t, 1, n)
		assert.Equal(t, glass, regs[0])
		assert.Equal(t, -1., signs[0])
		n, _, signs = CountCommonRegions(G, inner, outer)
		assert.Equal(t, 1, n)
		assert.Equal(t, -1., signs[0])
	}
	{ // Case: siblings in the exterior
		n, regs, signs := CountCommonRegions(G, outer, far)
		assert.Equal(t, 1, n)
		assert.Equal(t, [2]int{0, -1}, regs)
		assert.Equal(t, 1., signs[0])
	}
	{ // Case: a PEC surface meets itself only outside; separated surfaces not at all
		n, regs, _ := CountCommonRegions(G, inner, inner)
		assert.Equal(t, 1, n)
		assert.Equal(t, glass, regs[0])
		n, _, _ = CountCommonRegions(G, inner, far)
		assert.Equal(t, 0, n)
	}
}

const threeBoxes = `
OBJECT A
  MESHFILE builtin:box:0.5:1
  MATERIAL CONST_EPS_4
ENDOBJECT
OBJECT B
  MESHFILE builtin:box:0.5:1
  DISPLACED 1.5 0 0
ENDOBJECT
OBJECT C
  MESHFILE builtin:box:0.5:1
  MATERIAL CONST_EPS_4
  DISPLACED 0 1.5 0.2
ENDOBJECT
`

func TestAssembleBEMMatrix(t *testing.T) {
	var (
		omega = complex(0.9, 0)
		a     = newAssembler(t, threeBoxes, Options{Workers: 4})
		G     = a.G
	)
	require.Equal(t, []int{-1, -1, 0}, G.Mate)
	M, err := a.AssembleBEMMatrix(omega, nil, nil)
	require.NoError(t, err)
	require.Equal(t, G.TotalBFs, M.NR)
	assert.False(t, M.IsReal())
	var (
		oA, oB, oC = offset(t, G, "A"), offset(t, G, "B"), offset(t, G, "C")
		nA, nB     = G.Surfaces[0].NumBFs, G.Surfaces[1].NumBFs
	)
	{ // Case: complex symmetric
		for i := 0; i < M.NR; i++ {
			for j := 0; j < i; j++ {
				assert.Equal(t, M.Get(i, j), M.Get(j, i))
			}
		}
	}
	{ // Case: the lower block computed directly is the transpose of the upper
		P := utils.NewHMatrix(M.NR, M.NC, utils.ComplexKind)
		require.NoError(t, a.AssembleBEMMatrixBlock(&BlockArgs{
			Sa: 1, Sb: 0, Omega: omega, M: P, RowOffset: oB, ColOffset: oA}))
		assert.Less(t, relBlockDiff(P, M, oB, oA, nB, nA), 1.e-10)
	}
	{ // Case: the mate block is a copy, and equals a fresh computation
		assert.Equal(t, parts(M, oA, oA, nA, nA), parts(M, oC, oC, nA, nA))
		P := utils.NewHMatrix(M.NR, M.NC, utils.ComplexKind)
		require.NoError(t, a.AssembleBEMMatrixBlock(&BlockArgs{
			Sa: 2, Sb: 2, Omega: omega, M: P, RowOffset: oC, ColOffset: oC}))
		assert.Less(t, relBlockDiff(P, M, oC, oC, nA, nA), 1.e-10)
	}
	{ // Case: worker count does not change the result
		b := NewAssembler(G, a.Ctx, Options{Workers: 1})
		M1, err := b.AssembleBEMMatrix(omega, nil, nil)
		require.NoError(t, err)
		assert.True(t, cmp.Equal(parts(M, 0, 0, M.NR, M.NC), parts(M1, 0, 0, M.NR, M.NC)))
	}
	{ // Case: a wrong-size matrix is replaced
		small := utils.NewHMatrix(3, 3, utils.ComplexKind)
		M2, err := a.AssembleBEMMatrix(omega, nil, small)
		require.NoError(t, err)
		assert.NotSame(t, small, M2)
		assert.Equal(t, G.TotalBFs, M2.NR)
		assert.Less(t, relMaxDiff(M2, M), 1.e-12)
	}
	{ // Case: a Bloch vector without a lattice
		_, err := a.AssembleBEMMatrix(omega, []float64{0.1, 0}, nil)
		assert.True(t, errors.Is(err, ErrBlochUndefined))
	}
	{ // Case: packed storage holds the same matrix
		b := NewAssembler(G, a.Ctx, Options{Workers: 2, Packed: true})
		MP, err := b.AssembleBEMMatrix(omega, nil, nil)
		require.NoError(t, err)
		assert.True(t, MP.IsSymmetric())
		assert.Less(t, relMaxDiff(MP, M), 1.e-12)
	}
}

func TestBlockLayout(t *testing.T) {
	var (
		omega = complex(0.7, 0)
		a     = newAssembler(t, threeBoxes, Options{Workers: 3})
		G     = a.G
		SA    = G.Surfaces[0]
		SB    = G.Surfaces[1]
		n     = G.TotalBFs
		M     = utils.NewHMatrix(n, n, utils.ComplexKind)
		oA    = G.BFIndexOffset[0]
		oB    = G.BFIndexOffset[1]
	)
	require.NoError(t, a.AssembleBEMMatrixBlock(&BlockArgs{Sa: 0, Sb: 0, Omega: omega, M: M, RowOffset: oA, ColOffset: oA}))
	require.NoError(t, a.AssembleBEMMatrixBlock(&BlockArgs{Sa: 0, Sb: 1, Omega: omega, M: M, RowOffset: oA, ColOffset: oB}))
	eq := func(want, got complex128) {
		assert.Less(t, cmplx.Abs(want-got), 1.e-12*math.Max(1, cmplx.Abs(want)))
	}
	{ // Case: dielectric self block sums exterior and interior media
		var (
			k0 = omega
			k1 = omega * 2
			ea = 3
			eb = 7
		)
		r0 := interaction.GetEdgeEdgeInteractions(a.Ctx, &interaction.Args{Sa: SA, Sb: SA, EdgeA: ea, EdgeB: eb, K: k0})
		r1 := interaction.GetEdgeEdgeInteractions(a.Ctx, &interaction.Args{Sa: SA, Sb: SA, EdgeA: ea, EdgeB: eb, K: k1})
		X, Y := oA+2*ea, oA+2*eb
		eq(1i*omega*r0.G+1i*omega*r1.G, M.Get(X, Y))
		eq(-1i*k0*r0.C-1i*k1*r1.C, M.Get(X, Y+1))
		eq(-1i*k0*r0.C-1i*k1*r1.C, M.Get(X+1, Y))
		eq(-1i*omega*r0.G-1i*4*omega*r1.G, M.Get(X+1, Y+1))
		// mirrored half
		eq(M.Get(X, Y+1), M.Get(Y+1, X))
	}
	{ // Case: dielectric rows against PEC columns
		r := interaction.GetEdgeEdgeInteractions(a.Ctx, &interaction.Args{Sa: SA, Sb: SB, EdgeA: 2, EdgeB: 5, K: omega})
		X, Y := oA+4, oB+5
		eq(1i*omega*r.G, M.Get(X, Y))
		eq(-1i*omega*r.C, M.Get(X+1, Y))
	}
	assert.Equal(t, "Dielectric-PEC", kindOf(SA.Kind(), SB.Kind()).String())
}

const separatedPlates = `
SURFACE A
  MESHFILE builtin:plate:0.6:0.4:3:2
  REGIONS Exterior PEC
ENDSURFACE
SURFACE B
  MESHFILE builtin:plate:0.6:0.4:3:2
  REGIONS Exterior PEC
  ROTATED 40 ABOUT 1 0 0
  DISPLACED 1 5 2
ENDSURFACE
`

func TestDerivativeBlocks(t *testing.T) {
	var (
		omega = complex(1.1, 0)
		a     = newAssembler(t, separatedPlates, Options{Workers: 2})
		G     = a.G
		n     = G.TotalBFs
		oA    = G.BFIndexOffset[0]
		oB    = G.BFIndexOffset[1]
		nA    = G.Surfaces[0].NumBFs
		nB    = G.Surfaces[1].NumBFs
		axis  = r3.Vec{Z: 1}
		M     = utils.NewHMatrix(n, n, utils.ComplexKind)
		DX    = utils.NewHMatrix(n, n, utils.ComplexKind)
		DT    = utils.NewHMatrix(n, n, utils.ComplexKind)
	)
	require.NoError(t, a.AssembleBEMMatrixBlock(&BlockArgs{
		Sa: 0, Sb: 1, Omega: omega, M: M,
		GradM:    [3]*utils.HMatrix{DX, nil, nil},
		DMDTheta: []*utils.HMatrix{DT}, TorqueAxes: []r3.Vec{axis},
		RowOffset: oA, ColOffset: oB,
	}))
	moved := func(tr geometry.Transformation) *utils.HMatrix {
		require.NoError(t, G.Transform("A", tr))
		defer G.UnTransform()
		P := utils.NewHMatrix(n, n, utils.ComplexKind)
		require.NoError(t, a.AssembleBEMMatrixBlock(&BlockArgs{Sa: 0, Sb: 1, Omega: omega, M: P, RowOffset: oA, ColOffset: oB}))
		return P
	}
	h := 1.e-4
	var (
		Xp = moved(geometry.Displacement(r3.Vec{X: h}))
		Xm = moved(geometry.Displacement(r3.Vec{X: -h}))
		Tp = moved(geometry.Rotation(h*180/math.Pi, axis))
		Tm = moved(geometry.Rotation(-h*180/math.Pi, axis))
	)
	var scaleX, scaleT float64
	for i := oA; i < oA+nA; i++ {
		for j := oB; j < oB+nB; j++ {
			scaleX = math.Max(scaleX, cmplx.Abs(DX.Get(i, j)))
			scaleT = math.Max(scaleT, cmplx.Abs(DT.Get(i, j)))
		}
	}
	require.Positive(t, scaleX)
	for i := oA; i < oA+nA; i++ {
		for j := oB; j < oB+nB; j++ {
			fx := (Xp.Get(i, j) - Xm.Get(i, j)) / complex(2*h, 0)
			ft := (Tp.Get(i, j) - Tm.Get(i, j)) / complex(2*h, 0)
			assert.Less(t, cmplx.Abs(fx-DX.Get(i, j)), 1.e-5*scaleX)
			assert.Less(t, cmplx.Abs(ft-DT.Get(i, j)), 1.e-5*scaleT)
		}
	}
	{ // Case: torque matrices must match the axes
		err := a.AssembleBEMMatrixBlock(&BlockArgs{Sa: 0, Sb: 1, Omega: omega, M: M,
			TorqueAxes: []r3.Vec{axis}, RowOffset: oA, ColOffset: oB})
		assert.Error(t, err)
	}
}

func TestSelfPassDerivatives(t *testing.T) {
	var (
		omega          = complex(0.7, 0)
		a              = newAssembler(t, separatedPlates, Options{Workers: 3})
		S              = a.G.Surfaces[0]
		n, regs, signs = CountCommonRegions(a.G, 0, 0)
		terms          []regionTerm
	)
	a.G.UpdateCachedEpsMu(omega)
	for i := 0; i < n; i++ {
		terms = append(terms, newRegionTerm(a.G, regs[i], signs[i], omega))
	}
	self := func(symmetric bool) *blockSet {
		return a.run(&pass{
			Sa: S, Sb: S, Kind: PECPEC, Terms: terms,
			Symmetric: symmetric, Gradient: true,
			Axes: []r3.Vec{{Z: 1}},
		})
	}
	var (
		full  = self(false)
		sym   = self(true)
		nr    = S.NumBFs
		scale = cmplx.Abs(full.B.At(0, 0))
		same  = func(x, y complex128) bool { return cmplx.Abs(x-y) <= 1.e-9*scale }
	)
	require.Positive(t, scale)
	{ // Case: a symmetric pass fills every buffer like a full pass
		for i := 0; i < nr; i++ {
			for j := 0; j < nr; j++ {
				assert.True(t, same(full.B.At(i, j), sym.B.At(i, j)), "B %d %d", i, j)
				for c := 0; c < 3; c++ {
					assert.True(t, same(full.Grad[c].At(i, j), sym.Grad[c].At(i, j)), "Grad %d %d %d", c, i, j)
				}
				assert.True(t, same(full.Theta[0].At(i, j), sym.Theta[0].At(i, j)), "Theta %d %d", i, j)
			}
		}
	}
	{ // Case: derivatives of a surface with itself vanish
		for _, D := range sym.buffers()[1:] {
			assert.Zero(t, D.At(nr-1, 0))
			assert.Zero(t, D.At(0, nr-1))
		}
		assert.Len(t, sym.buffers(), 5)
	}
	{ // Case: the matrix block alone is mirrored
		mirrored := a.run(&pass{Sa: S, Sb: S, Kind: PECPEC, Terms: terms, Symmetric: true})
		for i := 0; i < nr; i++ {
			for j := 0; j < i; j++ {
				assert.Equal(t, mirrored.B.At(j, i), mirrored.B.At(i, j))
			}
		}
		assert.Less(t, cmplx.Abs(mirrored.B.At(1, 0)-full.B.At(1, 0)), 1.e-6*cmplx.Abs(full.B.At(0, 0)))
	}
}

func TestImaginaryFrequency(t *testing.T) {
	a := newAssembler(t, separatedPlates, Options{Workers: 2})
	M, err := a.AssembleBEMMatrix(0.8i, nil, nil)
	require.NoError(t, err)
	assert.True(t, M.IsReal())
	C := utils.NewHMatrix(M.NR, M.NC, utils.ComplexKind)
	_, err = a.AssembleBEMMatrix(0.8i, nil, C)
	require.NoError(t, err)
	for i := 0; i < M.NR; i++ {
		for j := 0; j < M.NC; j++ {
			assert.Less(t, math.Abs(imag(C.Get(i, j))), 1.e-10*math.Max(1, cmplx.Abs(C.Get(i, j))))
		}
	}
	assert.Less(t, relMaxDiff(M, C), 1.e-12)
}

func TestIncrementalAssembly(t *testing.T) {
	var (
		omega = complex(0.6, 0)
		a     = newAssembler(t, threeBoxes, Options{Workers: 3, Incremental: true})
	)
	M, err := a.AssembleBEMMatrix(omega, nil, nil)
	require.NoError(t, err)
	require.NoError(t, a.G.Transform("B", geometry.Displacement(r3.Vec{Z: 0.3})))
	_, err = a.AssembleBEMMatrix(omega, nil, M)
	require.NoError(t, err)

	b := NewAssembler(a.G, a.Ctx, Options{Workers: 3})
	want, err := b.AssembleBEMMatrix(omega, nil, nil)
	require.NoError(t, err)
	assert.Less(t, relMaxDiff(M, want), 1.e-12)
}

const sigmaPlate = `
SURFACE Sheet
  MESHFILE builtin:plate:1:1:3:3
  REGIONS Exterior PEC
  SIGMA 2.0
ENDSURFACE
`

func TestSurfaceSigma(t *testing.T) {
	var (
		omega = complex(0.5, 0)
		with  = newAssembler(t, sigmaPlate, Options{Workers: 2})
		plain = newAssembler(t, strings.Replace(sigmaPlate, "  SIGMA 2.0\n", "", 1), Options{Workers: 2})
	)
	M1, err := with.AssembleBEMMatrix(omega, nil, nil)
	require.NoError(t, err)
	M0, err := plain.AssembleBEMMatrix(omega, nil, nil)
	require.NoError(t, err)
	S := with.G.Surfaces[0]
	for i := 0; i < S.NumEdges(); i++ {
		for j := 0; j < S.NumEdges(); j++ {
			want := complex(-overlap.GetOverlaps(S, i, j)[overlap.Overlap], 0)
			assert.Less(t, cmplx.Abs(M1.Get(i, j)-M0.Get(i, j)-want), 1.e-12)
		}
	}
}

const sigmaSheets = `
SURFACE A
  MESHFILE builtin:plate:1:1:2:2
  REGIONS Exterior PEC
  SIGMA (+ 2.0 x)
ENDSURFACE
SURFACE B
  MESHFILE builtin:plate:1:1:2:2
  REGIONS Exterior PEC
  SIGMA (+ 2.0 x)
  DISPLACED 5 0 0
ENDSURFACE
`

// Sheets sharing a mesh but not a conductivity profile each get their own
// self block.
func TestPositionDependentSigmaHasNoMate(t *testing.T) {
	var (
		omega = complex(0.5, 0)
		pair  = newAssembler(t, sigmaSheets, Options{Workers: 2})
		alone = newAssembler(t, sigmaSheets[strings.Index(sigmaSheets, "SURFACE B"):], Options{Workers: 2})
	)
	require.Equal(t, []int{-1, -1}, pair.G.Mate)
	M, err := pair.AssembleBEMMatrix(omega, nil, nil)
	require.NoError(t, err)
	M1, err := alone.AssembleBEMMatrix(omega, nil, nil)
	require.NoError(t, err)
	var (
		n = pair.G.Surfaces[0].NumBFs
		b = offset(t, pair.G, "B")
	)
	want := utils.NewHMatrix(n, n, utils.ComplexKind)
	want.CopyBlock(M1, 0, 0, n, n, 0, 0)
	got := utils.NewHMatrix(n, n, utils.ComplexKind)
	got.CopyBlock(M, 0, 0, n, n, b, b)
	assert.Less(t, relMaxDiff(got, want), 1.e-9)
	// the copy a mate would have made
	got.CopyBlock(M, 0, 0, n, n, 0, 0)
	assert.Greater(t, relMaxDiff(got, want), 1.e-2)
}

const periodicStrip = `
SURFACE Strip
  MESHFILE builtin:plate:0.8:0.5:4:2
  REGIONS Exterior PEC
ENDSURFACE
LATTICE
  VECTOR 1 0
ENDLATTICE
`

const finiteStrip = `
SURFACE Left
  MESHFILE builtin:plate:0.8:0.5:4:2
  REGIONS Exterior PEC
  DISPLACED -1 0 0
ENDSURFACE
SURFACE Center
  MESHFILE builtin:plate:0.8:0.5:4:2
  REGIONS Exterior PEC
ENDSURFACE
SURFACE Right
  MESHFILE builtin:plate:0.8:0.5:4:2
  REGIONS Exterior PEC
  DISPLACED 1 0 0
ENDSURFACE
`

func TestPeriodicNeighbourCells(t *testing.T) {
	var (
		omega = complex(1.3, 0)
		per   = newAssembler(t, periodicStrip, Options{Workers: 4, NoTail: true})
		fin   = newAssembler(t, finiteStrip, Options{Workers: 4})
	)
	M3, err := fin.AssembleBEMMatrix(omega, nil, nil)
	require.NoError(t, err)
	var (
		c = offset(t, fin.G, "Center")
		l = offset(t, fin.G, "Left")
		r = offset(t, fin.G, "Right")
		n = per.G.TotalBFs
	)
	for _, kx := range []float64{0, 0.9} {
		M, err := per.AssembleBEMMatrix(omega, []float64{kx}, nil)
		require.NoError(t, err)
		want := utils.NewHMatrix(n, n, utils.ComplexKind)
		phase := cmplx.Exp(complex(0, kx))
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				want.Set(i, j, M3.Get(c+i, c+j)+phase*M3.Get(c+i, r+j)+M3.Get(c+i, l+j)/phase)
			}
		}
		assert.Less(t, relMaxDiff(M, want), 1.e-9, "kx=%g", kx)
	}
}

func TestPeriodicLatticeSum(t *testing.T) {
	var (
		omega = complex(1, 0)
		kB    = []float64{0.7}
		a     = newAssembler(t, periodicStrip, Options{Workers: 4})
	)
	{ // Case: lateral derivatives and missing Bloch vectors are rejected
		n := a.G.TotalBFs
		M := utils.NewHMatrix(n, n, utils.ComplexKind)
		err := a.AssembleBEMMatrixBlock(&BlockArgs{Omega: omega, KBloch: kB, M: M,
			GradM: [3]*utils.HMatrix{utils.NewHMatrix(n, n, utils.ComplexKind), nil, nil}})
		assert.True(t, errors.Is(err, ErrPeriodicDerivative))
		_, err = a.AssembleBEMMatrix(omega, nil, nil)
		assert.True(t, errors.Is(err, ErrBlochRequired))
	}
	Mp, err := a.AssembleBEMMatrix(omega, kB, nil)
	require.NoError(t, err)
	Mm, err := a.AssembleBEMMatrix(omega, []float64{-kB[0]}, nil)
	require.NoError(t, err)
	{ // Case: reversing the Bloch vector transposes the matrix
		T := utils.NewHMatrix(Mm.NR, Mm.NC, utils.ComplexKind)
		for i := 0; i < Mm.NR; i++ {
			for j := 0; j < Mm.NC; j++ {
				T.Set(i, j, Mm.Get(j, i))
			}
		}
		assert.Less(t, relMaxDiff(Mp, T), 1.e-9)
	}
	{ // Case: the remainder of the lattice contributes
		b := NewAssembler(a.G, a.Ctx, Options{Workers: 4, NoTail: true})
		Mn, err := b.AssembleBEMMatrix(omega, kB, nil)
		require.NoError(t, err)
		assert.Greater(t, relMaxDiff(Mp, Mn), 1.e-4)
	}
	{ // Case: the accelerator reuses the nearest cells across Bloch vectors
		b := NewAssembler(a.G, a.Ctx, Options{Workers: 4, UseAccelerator: true})
		_, err := b.AssembleBEMMatrix(omega, []float64{0.2}, nil)
		require.NoError(t, err)
		entry := b.accel[[2]int{0, 0}]
		require.NotNil(t, entry)
		first := entry.Blocks[0]
		Ma, err := b.AssembleBEMMatrix(omega, kB, nil)
		require.NoError(t, err)
		assert.Same(t, first, b.accel[[2]int{0, 0}].Blocks[0])
		assert.Less(t, relMaxDiff(Ma, Mp), 1.e-12)
		_, err = b.AssembleBEMMatrix(1.2, kB, nil)
		require.NoError(t, err)
		assert.NotSame(t, first, b.accel[[2]int{0, 0}].Blocks[0])
	}
	{ // Case: nearest cells of a 2D lattice
		L, err := geometry.NewLattice(r3.Vec{X: 1}, r3.Vec{Y: 1})
		require.NoError(t, err)
		assert.Len(t, neighbourCells(L, false), 9)
		half := neighbourCells(L, true)
		assert.Len(t, half, 5)
		assert.True(t, half[4].isHome())
		assert.Len(t, neighbourCells(a.G.Lattice, true), 2)
	}
}

const filmStrip = `
REGION Film MATERIAL CONST_EPS_3
SURFACE Strip
  MESHFILE builtin:plate:1:0.4:4:2
  REGIONS Exterior Film
ENDSURFACE
LATTICE
  VECTOR 1 0
  VECTOR 0 1
ENDLATTICE
`

func TestPartiallyExtendedRegion(t *testing.T) {
	var (
		a     = newAssembler(t, filmStrip, Options{Workers: 2})
		args  = &BlockArgs{Sa: 0, Sb: 0, Omega: complex(0.5, 0)}
		nf, _ = a.G.GetRegionByLabel("Film")
	)
	regions := func(terms []regionTerm) (nr []int) {
		for _, t := range terms {
			nr = append(nr, t.Region)
		}
		return
	}
	{ // Case: the film repeats along L1 only
		assert.Equal(t, []int{0, nf}, regions(a.periodicTerms(args, cell{})))
		assert.Equal(t, []int{0, nf}, regions(a.periodicTerms(args, cell{N1: -1})))
		assert.Equal(t, []int{0}, regions(a.periodicTerms(args, cell{N2: 1})))
		assert.Equal(t, []int{0}, regions(a.periodicTerms(args, cell{N1: 1, N2: 1})))
		assert.Equal(t, []int{0, nf}, regions(a.tailTerms(args)))
	}
	{ // Case: its lattice sum runs over the 1D sublattice
		assert.Equal(t, 2, a.regionLattice(0).Dimension())
		L := a.regionLattice(nf)
		assert.Equal(t, 1, L.Dimension())
		assert.Equal(t, r3.Vec{X: 1}, L.Basis[0])
	}
	{ // Case: the block assembles with both sums
		n := a.G.TotalBFs
		M := utils.NewHMatrix(n, n, utils.ComplexKind)
		args.M, args.KBloch = M, []float64{0.3, 0.2}
		require.NoError(t, a.AssembleBEMMatrixBlock(args))
		assert.False(t, cmplx.IsNaN(M.Get(0, 0)))
		assert.NotZero(t, M.Get(0, 0))
	}
}
