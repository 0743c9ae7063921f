package geometry

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gobem/materials"
	"github.com/notargets/gobem/utils"
)

var (
	ErrDegeneratePanel = errors.New("degenerate (zero area) panel")
	ErrNonManifold     = errors.New("edge shared by more than two panels")
)

// Panel is a flat triangle. Edge i of the panel is the one opposite VI[i];
// EI[i] holds its interior edge index or -1 for an exterior edge.
type Panel struct {
	VI       [3]int
	EI       [3]int
	Centroid r3.Vec
	ZHat     r3.Vec
	Area     float64
	Radius   float64
	Index    int
}

// Edge is an RWG basis function. On the positive panel the current is
// +(L/2A)(x - QP), on the negative panel -(L/2A)(x - QM). Exterior edges have
// MPanel == -1 and IQM == -1.
type Edge struct {
	IV1, IV2       int
	IQP, IQM       int
	PPanel, MPanel int
	PIndex, MIndex int // position of QP (QM) within the panel's VI
	Centroid       r3.Vec
	Length         float64
	Radius         float64
	Index          int
}

func (e *Edge) IsExterior() bool { return e.MPanel < 0 }

type SurfaceKind uint8

const (
	PECSurface SurfaceKind = iota
	DielectricSurface
)

func (k SurfaceKind) String() string {
	switch k {
	case PECSurface:
		return "PEC"
	case DielectricSurface:
		return "Dielectric"
	}
	return fmt.Sprintf("SurfaceKind(%d)", uint8(k))
}

// Surface is one triangulated 2-manifold separating RegionIndex[0] (outside)
// from RegionIndex[1] (inside, -1 for PEC).
type Surface struct {
	Label         string
	MeshFile      string
	MeshTag       int
	Vertices      []r3.Vec
	Panels        []Panel
	Edges         []Edge
	ExteriorEdges []Edge
	NumBFs        int
	IsPEC         bool
	IsObject      bool
	IsClosed      bool
	RegionIndex   [2]int
	RegionLabel   [2]string
	Sigma         *materials.Expression
	RMin, RMax    r3.Vec
	// Loaded is the motion applied at load time (DISPLACED/ROTATED);
	// Current is the cumulative motion relative to the mesh file.
	Loaded, Current Transformation
	pristine        []r3.Vec
	declIndex       int
	kd              *containmentIndex
}

// NewSurface welds the mesh, builds panels and edges and classifies the
// topology.
func NewSurface(label string, mesh *TriMesh, isPEC bool) (S *Surface, err error) {
	if len(mesh.Panels) == 0 {
		return nil, fmt.Errorf("surface %s: mesh has no panels", label)
	}
	var (
		rmin, rmax = boundingBox(mesh.Vertices)
		tol        = 1.e-10 * math.Max(r3.Norm(r3.Sub(rmax, rmin)), 1.e-300)
	)
	S = &Surface{
		Label:   label,
		IsPEC:   isPEC,
		MeshTag: -1,
		Loaded:  NewTransformation(),
		Current: NewTransformation(),
	}
	var panelVI [][3]int
	S.Vertices, panelVI = mesh.weld(tol)
	S.Panels = make([]Panel, len(panelVI))
	for np := range panelVI {
		S.Panels[np] = Panel{VI: panelVI[np], Index: np, EI: [3]int{-1, -1, -1}}
		if err = S.InitPanel(np); err != nil {
			return nil, err
		}
	}
	if err = S.buildEdges(); err != nil {
		return nil, err
	}
	S.updateBoundingBox()
	S.pristine = append([]r3.Vec(nil), S.Vertices...)
	return
}

func (S *Surface) Kind() SurfaceKind {
	if S.IsPEC {
		return PECSurface
	}
	return DielectricSurface
}

func (S *Surface) NumEdges() int         { return len(S.Edges) }
func (S *Surface) NumPanels() int        { return len(S.Panels) }
func (S *Surface) NumExteriorEdges() int { return len(S.ExteriorEdges) }

// InitPanel recomputes the derived attributes of panel np from the vertices.
func (S *Surface) InitPanel(np int) error {
	var (
		P      = &S.Panels[np]
		v0, v1 = S.Vertices[P.VI[0]], S.Vertices[P.VI[1]]
		v2     = S.Vertices[P.VI[2]]
		cr     = r3.Cross(r3.Sub(v1, v0), r3.Sub(v2, v0))
		normCr = r3.Norm(cr)
		scale  = math.Max(r3.Norm2(r3.Sub(v1, v0)), r3.Norm2(r3.Sub(v2, v0)))
	)
	if normCr <= 1.e-12*scale || normCr == 0 {
		return fmt.Errorf("surface %s panel %d: %w", S.Label, np, ErrDegeneratePanel)
	}
	P.Area = 0.5 * normCr
	P.ZHat = r3.Scale(1/normCr, cr)
	P.Centroid = utils.Centroid3(v0, v1, v2)
	P.Radius = math.Max(utils.Distance(P.Centroid, v0),
		math.Max(utils.Distance(P.Centroid, v1), utils.Distance(P.Centroid, v2)))
	return nil
}

func (S *Surface) buildEdges() error {
	type side struct{ panel, iq int }
	var (
		order [][2]int
		sides = make(map[[2]int][]side)
	)
	for np, P := range S.Panels {
		for i := 0; i < 3; i++ {
			a, b := P.VI[(i+1)%3], P.VI[(i+2)%3]
			key := [2]int{a, b}
			if a > b {
				key = [2]int{b, a}
			}
			if _, ok := sides[key]; !ok {
				order = append(order, key)
			}
			sides[key] = append(sides[key], side{np, i})
		}
	}
	S.Edges, S.ExteriorEdges = nil, nil
	for _, key := range order {
		list := sides[key]
		if len(list) > 2 {
			return fmt.Errorf("surface %s: vertices %d-%d: %w", S.Label, key[0], key[1], ErrNonManifold)
		}
		pp := list[0]
		E := Edge{
			IV1:    S.Panels[pp.panel].VI[(pp.iq+1)%3],
			IV2:    S.Panels[pp.panel].VI[(pp.iq+2)%3],
			IQP:    S.Panels[pp.panel].VI[pp.iq],
			PPanel: pp.panel,
			PIndex: pp.iq,
			IQM:    -1,
			MPanel: -1,
			MIndex: -1,
		}
		if len(list) == 2 {
			mp := list[1]
			E.IQM, E.MPanel, E.MIndex = S.Panels[mp.panel].VI[mp.iq], mp.panel, mp.iq
			E.Index = len(S.Edges)
			S.Edges = append(S.Edges, E)
			S.Panels[pp.panel].EI[pp.iq] = E.Index
			S.Panels[mp.panel].EI[mp.iq] = E.Index
		} else {
			E.Index = len(S.ExteriorEdges)
			S.ExteriorEdges = append(S.ExteriorEdges, E)
		}
	}
	for ne := range S.Edges {
		S.initEdge(&S.Edges[ne])
	}
	for ne := range S.ExteriorEdges {
		S.initEdge(&S.ExteriorEdges[ne])
	}
	S.IsClosed = len(S.ExteriorEdges) == 0
	S.setNumBFs()
	return nil
}

func (S *Surface) setNumBFs() {
	S.NumBFs = len(S.Edges)
	if !S.IsPEC {
		S.NumBFs *= 2
	}
}

func (S *Surface) initEdge(E *Edge) {
	v1, v2 := S.Vertices[E.IV1], S.Vertices[E.IV2]
	E.Centroid = r3.Scale(0.5, r3.Add(v1, v2))
	E.Length = utils.Distance(v1, v2)
	E.Radius = math.Max(utils.Distance(E.Centroid, v1), utils.Distance(E.Centroid, S.Vertices[E.IQP]))
	if E.IQM >= 0 {
		E.Radius = math.Max(E.Radius, utils.Distance(E.Centroid, S.Vertices[E.IQM]))
	}
}

func boundingBox(vertices []r3.Vec) (rmin, rmax r3.Vec) {
	rmin = r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	rmax = r3.Scale(-1, rmin)
	for _, v := range vertices {
		rmin = r3.Vec{X: math.Min(rmin.X, v.X), Y: math.Min(rmin.Y, v.Y), Z: math.Min(rmin.Z, v.Z)}
		rmax = r3.Vec{X: math.Max(rmax.X, v.X), Y: math.Max(rmax.Y, v.Y), Z: math.Max(rmax.Z, v.Z)}
	}
	return
}

func (S *Surface) updateBoundingBox() {
	S.RMin, S.RMax = boundingBox(S.Vertices)
}

// refresh recomputes all derived panel and edge attributes after the
// vertices moved. Topology is unchanged.
func (S *Surface) refresh() {
	for np := range S.Panels {
		// a rigid motion cannot make a valid panel degenerate
		_ = S.InitPanel(np)
	}
	for ne := range S.Edges {
		S.initEdge(&S.Edges[ne])
	}
	for ne := range S.ExteriorEdges {
		S.initEdge(&S.ExteriorEdges[ne])
	}
	S.updateBoundingBox()
	S.kd = nil
}

// applyMotion moves the surface rigidly by t.
func (S *Surface) applyMotion(t Transformation) {
	for i, v := range S.Vertices {
		S.Vertices[i] = t.Apply(v)
	}
	S.Current = S.Current.Then(t)
	S.refresh()
}

// restore puts the vertices back to their post-load positions. It reports
// whether anything changed.
func (S *Surface) restore() (changed bool) {
	if S.Current == S.Loaded {
		return false
	}
	copy(S.Vertices, S.pristine)
	S.Current = S.Loaded
	S.refresh()
	return true
}

// markLoaded records the current vertex positions as the pristine state.
func (S *Surface) markLoaded() {
	S.Loaded = S.Current
	S.pristine = append(S.pristine[:0], S.Vertices...)
}

// Vertex returns the coordinates of panel np's vertex i.
func (S *Surface) Vertex(np, i int) r3.Vec {
	return S.Vertices[S.Panels[np].VI[i]]
}

// Area returns the total panel area.
func (S *Surface) Area() (area float64) {
	for _, P := range S.Panels {
		area += P.Area
	}
	return
}

// CommonVertices counts the vertices panel pa of S and panel pb of T share,
// compared geometrically with tolerance tol. Index pairs are returned for
// the shared vertices.
func CommonVertices(S *Surface, pa int, T *Surface, pb int, tol float64) (n int, pairs [3][2]int) {
	for i := 0; i < 3; i++ {
		va := S.Vertex(pa, i)
		for j := 0; j < 3; j++ {
			if utils.VecEqualWithin(va, T.Vertex(pb, j), tol) {
				pairs[n] = [2]int{i, j}
				n++
				break
			}
		}
	}
	return
}
