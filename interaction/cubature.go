package interaction

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gobem/utils"
)

// subTriangle is one cell of an adaptive subdivision.
type subTriangle struct {
	V        [3]r3.Vec
	Centroid r3.Vec
	Area     float64
	Radius   float64
}

func newSubTriangle(V [3]r3.Vec, area, radius float64) subTriangle {
	return subTriangle{
		V:        V,
		Centroid: r3.Scale(1./3., r3.Add(r3.Add(V[0], V[1]), V[2])),
		Area:     area,
		Radius:   radius,
	}
}

// split divides the triangle into four congruent children by its midpoints.
func (t subTriangle) split() (c [4]subTriangle) {
	var (
		m01 = r3.Scale(0.5, r3.Add(t.V[0], t.V[1]))
		m12 = r3.Scale(0.5, r3.Add(t.V[1], t.V[2]))
		m20 = r3.Scale(0.5, r3.Add(t.V[2], t.V[0]))
		a   = 0.25 * t.Area
		r   = 0.5 * t.Radius
	)
	c[0] = newSubTriangle([3]r3.Vec{t.V[0], m01, m20}, a, r)
	c[1] = newSubTriangle([3]r3.Vec{m01, t.V[1], m12}, a, r)
	c[2] = newSubTriangle([3]r3.Vec{m20, m12, t.V[2]}, a, r)
	c[3] = newSubTriangle([3]r3.Vec{m01, m12, m20}, a, r)
	return
}

// uniformNodes maps r onto the 4^levels cells of a uniform subdivision of V.
func uniformNodes(r *utils.TriRule, V [3]r3.Vec, area float64, levels int) (nodes []utils.TriNode) {
	cells := []subTriangle{newSubTriangle(V, area, 0)}
	for ; levels > 0; levels-- {
		next := make([]subTriangle, 0, 4*len(cells))
		for _, c := range cells {
			children := c.split()
			next = append(next, children[:]...)
		}
		cells = next
	}
	nodes = make([]utils.TriNode, 0, r.Len()*len(cells))
	for _, c := range cells {
		nodes = r.Nodes(c.V, c.Area, nodes)
	}
	return
}
