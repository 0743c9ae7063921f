package geometry

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func parse(t *testing.T, src string) (*Geometry, error) {
	t.Helper()
	return NewGeometry(strings.NewReader(src), "test.scuffgeo")
}

func TestBuiltinMeshTopology(t *testing.T) {
	cases := []struct {
		mesh                    string
		vertices, panels, edges int
		exterior, euler         int
	}{
		{"builtin:icosphere:1:1", 42, 80, 120, 0, 2},
		{"builtin:box:1:1", 8, 12, 18, 0, 2},
		{"builtin:box:2:3", 56, 108, 162, 0, 2},
		{"builtin:plate:1:1:2:2", 9, 8, 8, 8, 1},
	}
	for _, c := range cases {
		m, err := BuiltinMesh(c.mesh)
		require.NoError(t, err, c.mesh)
		S, err := NewSurface("S", m, false)
		require.NoError(t, err, c.mesh)
		assert.Equal(t, c.vertices, len(S.Vertices), c.mesh)
		assert.Equal(t, c.panels, len(S.Panels), c.mesh)
		assert.Equal(t, c.edges, len(S.Edges), c.mesh)
		assert.Equal(t, c.exterior, len(S.ExteriorEdges), c.mesh)
		assert.Equal(t, c.euler, len(S.Vertices)-len(S.Edges)-len(S.ExteriorEdges)+len(S.Panels), c.mesh)
		assert.Equal(t, c.exterior == 0, S.IsClosed, c.mesh)
		assert.Equal(t, 2*c.edges, S.NumBFs, c.mesh)
	}
	_, err := BuiltinMesh("builtin:torus:1:2")
	assert.Error(t, err)
	_, err = BuiltinMesh("builtin:plate:1:1:2")
	assert.Error(t, err)
}

func TestSurfaceConstruction(t *testing.T) {
	m, err := BuiltinMesh("builtin:icosphere:1:2")
	require.NoError(t, err)
	S, err := NewSurface("Sphere", m, true)
	require.NoError(t, err)
	assert.Equal(t, len(S.Edges), S.NumBFs)
	assert.InDelta(t, 12.3298, S.Area(), 1.e-3)
	for _, P := range S.Panels {
		// outward normals on a sphere centered at the origin
		assert.Greater(t, r3.Dot(P.ZHat, P.Centroid), 0.)
		assert.InDelta(t, 1, r3.Norm(P.ZHat), 1.e-12)
	}
	for ne, E := range S.Edges {
		assert.Equal(t, ne, E.Index)
		assert.Equal(t, E.IQP, S.Panels[E.PPanel].VI[E.PIndex])
		assert.Equal(t, E.IQM, S.Panels[E.MPanel].VI[E.MIndex])
		assert.Equal(t, ne, S.Panels[E.PPanel].EI[E.PIndex])
		assert.Equal(t, ne, S.Panels[E.MPanel].EI[E.MIndex])
		for _, iv := range []int{E.IV1, E.IV2} {
			assert.NotEqual(t, iv, E.IQP)
			assert.NotEqual(t, iv, E.IQM)
		}
		assert.InDelta(t, r3.Norm(r3.Sub(S.Vertices[E.IV1], S.Vertices[E.IV2])), E.Length, 1.e-14)
		assert.GreaterOrEqual(t, E.Radius, E.Length/2)
	}
	{ // Degenerate and non-manifold meshes are rejected
		bad := &TriMesh{
			Vertices: []r3.Vec{{}, {X: 1}, {X: 2}},
			Panels:   [][3]int{{0, 1, 2}},
		}
		_, err = NewSurface("Bad", bad, true)
		assert.True(t, errors.Is(err, ErrDegeneratePanel))
		fan := &TriMesh{
			Vertices: []r3.Vec{{}, {X: 1}, {Y: 1}, {Y: -1}, {Z: 1}},
			Panels:   [][3]int{{0, 1, 2}, {1, 0, 3}, {0, 1, 4}},
		}
		_, err = NewSurface("Fan", fan, true)
		assert.True(t, errors.Is(err, ErrNonManifold))
	}
	{ // Duplicate vertices are welded
		soup := &TriMesh{
			Vertices: []r3.Vec{{}, {X: 1}, {Y: 1}, {X: 1}, {Y: 1}, {X: 1, Y: 1}},
			Panels:   [][3]int{{0, 1, 2}, {3, 5, 4}},
		}
		S, err := NewSurface("Soup", soup, false)
		require.NoError(t, err)
		assert.Equal(t, 4, len(S.Vertices))
		assert.Equal(t, 1, len(S.Edges))
		assert.Equal(t, 1, S.boundaryContours())
	}
}

func TestReadGmsh22(t *testing.T) {
	msh := `$MeshFormat
2.2 0 8
$EndMeshFormat
$Nodes
4
1 0 0 0
2 1 0 0
3 0 1 0
4 1 1 0
$EndNodes
$Elements
4
1 1 2 5 1 1 2
2 2 2 7 1 1 2 3
3 2 2 7 1 2 4 3
4 2 2 8 1 1 3 4
$EndElements
`
	m, err := ReadGmsh22(strings.NewReader(msh), -1)
	require.NoError(t, err)
	assert.Equal(t, 3, len(m.Panels))
	m, err = ReadGmsh22(strings.NewReader(msh), 7)
	require.NoError(t, err)
	assert.Equal(t, [][3]int{{0, 1, 2}, {1, 3, 2}}, m.Panels)
	_, err = ReadGmsh22(strings.NewReader(msh), 99)
	assert.Error(t, err)
	_, err = ReadGmsh22(strings.NewReader("$MeshFormat\n4.1 0 8\n$EndMeshFormat\n"), -1)
	assert.Error(t, err)
}

const nestedSpheres = `
MATERIAL Glass
  EPS = 2.25
ENDMATERIAL

OBJECT Inner
  MESHFILE builtin:icosphere:1:1
ENDOBJECT

OBJECT Outer
  MESHFILE builtin:icosphere:2:1
  MATERIAL Glass
ENDOBJECT
`

func TestContainment(t *testing.T) {
	G, err := parse(t, nestedSpheres)
	require.NoError(t, err)
	require.Equal(t, 2, G.NumSurfaces())
	// containers precede contents
	assert.Equal(t, "Outer", G.Surfaces[0].Label)
	assert.Equal(t, "Inner", G.Surfaces[1].Label)
	nr, err := G.GetRegionByLabel("outer")
	require.NoError(t, err)
	assert.Equal(t, [2]int{0, nr}, G.Surfaces[0].RegionIndex)
	assert.Equal(t, [2]int{nr, -1}, G.Surfaces[1].RegionIndex)
	assert.True(t, G.Surfaces[1].IsPEC)
	assert.Equal(t, []int{0, G.Surfaces[0].NumBFs}, G.BFIndexOffset)
	assert.Equal(t, G.Surfaces[0].NumBFs+G.Surfaces[1].NumBFs, G.TotalBFs)
	assert.Equal(t, PECSurface, G.GetSurfaceKind(1))
	assert.Equal(t, DielectricSurface, G.GetSurfaceKind(0))

	assert.True(t, G.Surfaces[0].ContainsPoint(r3.Vec{X: 1.5}))
	assert.False(t, G.Surfaces[0].ContainsPoint(r3.Vec{X: 2.5}))
	assert.False(t, G.Surfaces[1].ContainsPoint(r3.Vec{Y: 1.5}))

	{ // A PEC container is a configuration error
		src := strings.Replace(nestedSpheres, "MATERIAL Glass\nENDOBJECT", "ENDOBJECT", 1)
		src = strings.Replace(src, "MESHFILE builtin:icosphere:1:1", "MESHFILE builtin:icosphere:1:1\n  MATERIAL Glass", 1)
		_, err = parse(t, src)
		assert.True(t, errors.Is(err, ErrPECContainment), "%v", err)
	}
	{ // Three levels: the innermost container wins
		src := nestedSpheres + "OBJECT Core\n MESHFILE builtin:icosphere:0.5:1\n MATERIAL Glass\nENDOBJECT\n"
		src = strings.Replace(src, "OBJECT Inner\n  MESHFILE builtin:icosphere:1:1\n", "OBJECT Inner\n  MESHFILE builtin:icosphere:1:1\n  MATERIAL Glass\n", 1)
		G, err := parse(t, src)
		require.NoError(t, err)
		labels := []string{}
		for _, S := range G.Surfaces {
			labels = append(labels, S.Label)
		}
		assert.Equal(t, []string{"Outer", "Inner", "Core"}, labels)
		inner, _ := G.GetRegionByLabel("Inner")
		assert.Equal(t, inner, G.Surfaces[2].RegionIndex[0])
	}
}

func TestParseErrors(t *testing.T) {
	{
		_, err := parse(t, "OBJECT A\n  MESHFILE builtin:box:1:1\n  COLOR red\nENDOBJECT\n")
		require.Error(t, err)
		var pe *ParseError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, 3, pe.Line)
		assert.True(t, errors.Is(err, ErrSyntax))
		assert.True(t, strings.HasPrefix(err.Error(), "test.scuffgeo:3:"))
	}
	{
		_, err := parse(t, "SURFACE S\n  MESHFILE builtin:plate:1:1:2:2\n  REGIONS Exterior Nowhere\nENDSURFACE\n")
		assert.True(t, errors.Is(err, ErrUnknownRegion), "%v", err)
	}
	{
		_, err := parse(t, "REGION PEC MATERIAL Vacuum\n")
		assert.Error(t, err)
	}
	{
		_, err := parse(t, "OBJECT A\n  MESHFILE builtin:box:1:1\n  MATERIAL Unobtainium\nENDOBJECT\n")
		assert.Error(t, err)
	}
	{
		_, err := parse(t, "OBJECT A\n  MESHFILE builtin:plate:1:1:2:2\nENDOBJECT\n")
		assert.Error(t, err)
	}
	{
		_, err := parse(t, "OBJECT A\n  MESHFILE builtin:box:1:1\n  MATERIAL CONST_EPS_4\n  SIGMA 2.0\nENDOBJECT\n")
		assert.Error(t, err)
		G, err := parse(t, "OBJECT A\n  MESHFILE builtin:box:1:1\n  SIGMA (+ 1.0 x)\nENDOBJECT\n")
		require.NoError(t, err)
		assert.True(t, G.Surfaces[0].Sigma.DependsOnPosition())
	}
	{
		_, err := parse(t, "OBJECT A\n  MESHFILE builtin:box:1:1\n")
		assert.Error(t, err)
		_, err = parse(t, "# nothing\n")
		assert.Error(t, err)
	}
}

func TestMates(t *testing.T) {
	src := `
OBJECT A
  MESHFILE builtin:box:1:1
  MATERIAL CONST_EPS_4
ENDOBJECT
OBJECT B
  MESHFILE builtin:box:1:1
  MATERIAL CONST_EPS_4
  DISPLACED 3 0 0
ENDOBJECT
OBJECT C
  MESHFILE builtin:box:1:1
  MATERIAL CONST_EPS_9
  DISPLACED 6 0 0
ENDOBJECT
OBJECT D
  MESHFILE builtin:box:1:1
  MATERIAL CONST_EPS_4
  ROTATED 30 ABOUT 0 0 1
  DISPLACED 0 5 0
ENDOBJECT
`
	G, err := parse(t, src)
	require.NoError(t, err)
	assert.Equal(t, []int{-1, 0, -1, 0}, G.Mate)
	assert.InDelta(t, 3, G.Surfaces[1].Panels[0].Centroid.X-G.Surfaces[0].Panels[0].Centroid.X, 1.e-12)
	st := G.Statistics()
	assert.Equal(t, "A", st.Surfaces[1].Mate)
	assert.Equal(t, 4*36, st.TotalBFs)

	{ // Case: a conductivity that varies with position rules out a mate
		sheets := func(sigma string) string {
			return fmt.Sprintf(`
SURFACE A
  MESHFILE builtin:plate:1:1:2:2
  REGIONS Exterior PEC
  SIGMA %[1]s
ENDSURFACE
SURFACE B
  MESHFILE builtin:plate:1:1:2:2
  REGIONS Exterior PEC
  SIGMA %[1]s
  DISPLACED 5 0 0
ENDSURFACE
`, sigma)
		}
		G, err := parse(t, sheets("2.0"))
		require.NoError(t, err)
		assert.Equal(t, []int{-1, 0}, G.Mate)
		G, err = parse(t, sheets("(+ 2.0 x)"))
		require.NoError(t, err)
		assert.Equal(t, []int{-1, -1}, G.Mate)
	}
}

func TestTransform(t *testing.T) {
	G, err := parse(t, nestedSpheres)
	require.NoError(t, err)
	_, S := G.GetSurfaceByLabel("inner")
	require.NotNil(t, S)
	c0 := S.Panels[3].Centroid
	require.NoError(t, G.Transform("Inner", Displacement(r3.Vec{Z: 0.25})))
	assert.Equal(t, []bool{false, true}, G.SurfaceMoved)
	assert.InDelta(t, c0.Z+0.25, S.Panels[3].Centroid.Z, 1.e-14)
	require.NoError(t, G.Transform("Inner", Rotation(90, r3.Vec{Z: 1})))
	G.UnTransform()
	assert.Equal(t, []bool{false, true}, G.SurfaceMoved)
	assert.Equal(t, c0, S.Panels[3].Centroid)
	G.UnTransform()
	assert.Equal(t, []bool{false, false}, G.SurfaceMoved)
	err = G.Transform("Nobody", Displacement(r3.Vec{X: 1}))
	assert.True(t, errors.Is(err, ErrUnknownSurface))

	{ // Composition
		a := Rotation(90, r3.Vec{Z: 1}).Then(Displacement(r3.Vec{X: 1}))
		p := a.Apply(r3.Vec{X: 1})
		assert.InDelta(t, 1, p.X, 1.e-14)
		assert.InDelta(t, 1, p.Y, 1.e-14)
		assert.True(t, NewTransformation().IsIdentity(1.e-14))
	}
}

func TestLatticeAndRegions(t *testing.T) {
	src := `
REGION Substrate MATERIAL CONST_EPS_2.25
SURFACE Interface
  MESHFILE builtin:plate:1:1:2:2
  REGIONS Exterior Substrate
ENDSURFACE
OBJECT Bump
  MESHFILE builtin:box:0.3:1
  MATERIAL CONST_EPS_4
  DISPLACED 0 0 0.5
ENDOBJECT
LATTICE
  VECTOR 1 0
  VECTOR 0 1
ENDLATTICE
`
	G, err := parse(t, src)
	require.NoError(t, err)
	require.True(t, G.IsPeriodic())
	assert.Equal(t, TwoD, G.Lattice.Kind())
	assert.Equal(t, [2]bool{true, true}, G.Regions[0].Extended)
	ns, _ := G.GetRegionByLabel("Substrate")
	assert.Equal(t, [2]bool{true, true}, G.Regions[ns].Extended)
	nb, _ := G.GetRegionByLabel("Bump")
	assert.Equal(t, [2]bool{false, false}, G.Regions[nb].Extended)
	assert.True(t, G.Regions[ns].IsExtended(1, -1))
	assert.True(t, G.Regions[nb].IsExtended(0, 0))
	assert.False(t, G.Regions[nb].IsExtended(0, 1))

	G.UpdateCachedEpsMu(1)
	assert.Equal(t, complex(2.25, 0), G.Regions[ns].Eps)
	assert.Equal(t, complex(1, 0), G.StoredOmega)

	Gr := G.Lattice.Reciprocal()
	for i := range Gr {
		for j := range G.Lattice.Basis {
			want := 0.
			if i == j {
				want = 2 * math.Pi
			}
			assert.InDelta(t, want, r3.Dot(Gr[i], G.Lattice.Basis[j]), 1.e-12)
		}
	}
	assert.InDelta(t, 1, G.Lattice.CellSize(), 1.e-14)
	assert.Equal(t, r3.Vec{X: 2, Y: -1}, G.Lattice.Vector(2, -1))

	_, err = NewLattice(r3.Vec{X: 1}, r3.Vec{X: 2})
	assert.Error(t, err)

	{ // Case: a strip spanning the cell along L1 only
		src := `
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
		G, err := parse(t, src)
		require.NoError(t, err)
		nf, _ := G.GetRegionByLabel("Film")
		F := G.Regions[nf]
		assert.Equal(t, [2]bool{true, false}, F.Extended)
		assert.True(t, F.IsExtended(-1, 0))
		assert.False(t, F.IsExtended(0, 1))
		assert.False(t, F.IsExtended(1, 1))
		_, S := G.GetSurfaceByLabel("Strip")
		assert.True(t, G.Lattice.Spans(S.Vertices, 0))
		assert.False(t, G.Lattice.Spans(S.Vertices, 1))
		assert.Equal(t, []r3.Vec{{X: 1}}, G.Lattice.Sub(0).Basis)
	}
	{ // Case: a skewed lattice measures spans in cell coordinates
		L, err := NewLattice(r3.Vec{X: 1}, r3.Vec{X: 0.5, Y: 1})
		require.NoError(t, err)
		V := []r3.Vec{{X: 0}, {X: 0.5, Y: 1}}
		assert.False(t, L.Spans(V, 0))
		assert.True(t, L.Spans(V, 1))
		assert.False(t, L.Spans(V, 2))
		assert.False(t, L.Spans(nil, 0))
	}
}
