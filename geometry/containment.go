package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

// panelPoint is a panel centroid projected onto the plane normal to a ray.
type panelPoint struct {
	u, v  float64
	index int
}

func (p panelPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(panelPoint)
	if d == 0 {
		return p.u - q.u
	}
	return p.v - q.v
}
func (p panelPoint) Dims() int { return 2 }
func (p panelPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(panelPoint)
	du, dv := p.u-q.u, p.v-q.v
	return du*du + dv*dv
}

type panelPoints []panelPoint

func (p panelPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p panelPoints) Len() int                              { return len(p) }
func (p panelPoints) Pivot(d kdtree.Dim) int                { return panelPlane{Dim: d, panelPoints: p}.Pivot() }
func (p panelPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

type panelPlane struct {
	kdtree.Dim
	panelPoints
}

func (p panelPlane) Less(i, j int) bool {
	if p.Dim == 0 {
		return p.panelPoints[i].u < p.panelPoints[j].u
	}
	return p.panelPoints[i].v < p.panelPoints[j].v
}
func (p panelPlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p panelPlane) Slice(start, end int) kdtree.SortSlicer {
	p.panelPoints = p.panelPoints[start:end]
	return p
}
func (p panelPlane) Swap(i, j int) {
	p.panelPoints[i], p.panelPoints[j] = p.panelPoints[j], p.panelPoints[i]
}

// rayFrame indexes the panels of a surface for rays along d.
type rayFrame struct {
	d, e1, e2 r3.Vec
	tree      *kdtree.Tree
	maxRadius float64
}

// Three skewed directions; a point is inside when a majority of rays agree,
// which absorbs the occasional ray grazing an edge or vertex.
var rayDirections = [3]r3.Vec{
	{X: 0.3071, Y: 0.4513, Z: 0.8384},
	{X: -0.6213, Y: 0.2477, Z: -0.7433},
	{X: 0.5417, Y: -0.8109, Z: 0.2213},
}

type containmentIndex struct {
	frames [3]rayFrame
}

func newContainmentIndex(S *Surface) (ci *containmentIndex) {
	ci = &containmentIndex{}
	for i, dir := range rayDirections {
		var (
			d      = r3.Unit(dir)
			e1     = r3.Unit(r3.Cross(d, r3.Vec{Z: 1}))
			e2     = r3.Cross(d, e1)
			points = make(panelPoints, len(S.Panels))
			f      = &ci.frames[i]
		)
		for np, P := range S.Panels {
			points[np] = panelPoint{u: r3.Dot(P.Centroid, e1), v: r3.Dot(P.Centroid, e2), index: np}
			f.maxRadius = math.Max(f.maxRadius, P.Radius)
		}
		f.d, f.e1, f.e2 = d, e1, e2
		f.tree = kdtree.New(points, false)
	}
	return
}

// crossings counts the panels of S pierced by the ray X + t d, t > 0.
func (f *rayFrame) crossings(S *Surface, X r3.Vec) (n int) {
	var (
		q    = panelPoint{u: r3.Dot(X, f.e1), v: r3.Dot(X, f.e2), index: -1}
		keep = kdtree.NewDistKeeper(f.maxRadius * f.maxRadius)
	)
	f.tree.NearestSet(keep, q)
	for _, c := range keep.Heap {
		if c.Comparable == nil {
			continue
		}
		np := c.Comparable.(panelPoint).index
		P := &S.Panels[np]
		if c.Dist > P.Radius*P.Radius {
			continue
		}
		if rayHitsTriangle(X, f.d, S.Vertices[P.VI[0]], S.Vertices[P.VI[1]], S.Vertices[P.VI[2]]) {
			n++
		}
	}
	return
}

// rayHitsTriangle is the Moller-Trumbore intersection test for t > 0.
func rayHitsTriangle(o, d, v0, v1, v2 r3.Vec) bool {
	var (
		e1  = r3.Sub(v1, v0)
		e2  = r3.Sub(v2, v0)
		p   = r3.Cross(d, e2)
		det = r3.Dot(e1, p)
	)
	if math.Abs(det) < 1.e-14*r3.Norm(e1)*r3.Norm(e2) {
		return false
	}
	var (
		inv = 1 / det
		s   = r3.Sub(o, v0)
		u   = r3.Dot(s, p) * inv
	)
	if u < 0 || u > 1 {
		return false
	}
	q := r3.Cross(s, e1)
	v := r3.Dot(d, q) * inv
	if v < 0 || u+v > 1 {
		return false
	}
	return r3.Dot(e2, q)*inv > 0
}

// ContainsPoint reports whether X lies inside the closed surface S.
func (S *Surface) ContainsPoint(X r3.Vec) bool {
	if !S.IsClosed {
		return false
	}
	if X.X < S.RMin.X || X.Y < S.RMin.Y || X.Z < S.RMin.Z ||
		X.X > S.RMax.X || X.Y > S.RMax.Y || X.Z > S.RMax.Z {
		return false
	}
	if S.kd == nil {
		S.kd = newContainmentIndex(S)
	}
	votes := 0
	for i := range S.kd.frames {
		if S.kd.frames[i].crossings(S, X)%2 == 1 {
			votes++
		}
	}
	return votes >= 2
}

// Contains reports whether closed surface S encloses T. T is assumed not to
// intersect S, so one point of T decides.
func (S *Surface) Contains(T *Surface) bool {
	if !S.IsClosed || S == T {
		return false
	}
	return S.ContainsPoint(T.Panels[0].Centroid)
}
