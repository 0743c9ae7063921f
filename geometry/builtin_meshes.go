package geometry

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

const builtinPrefix = "builtin:"

// BuiltinMesh generates one of
//
//	builtin:icosphere:R:levels   sphere of radius R, 20*4^levels panels
//	builtin:plate:Lx:Ly:nx:ny    rectangle in the z=0 plane, normal +z
//	builtin:box:L:n              cube of side L, n x n cells per face
//
// All shapes are centered on the origin; closed shapes have outward normals.
func BuiltinMesh(name string) (m *TriMesh, err error) {
	fields := strings.Split(name, ":")
	if len(fields) < 2 {
		return nil, fmt.Errorf("bad builtin mesh %q", name)
	}
	args := make([]float64, len(fields)-2)
	for i, f := range fields[2:] {
		if args[i], err = strconv.ParseFloat(f, 64); err != nil {
			return nil, fmt.Errorf("bad builtin mesh %q: %v", name, err)
		}
	}
	need := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("builtin mesh %q needs %d parameters, have %d", name, n, len(args))
		}
		return nil
	}
	switch strings.ToLower(fields[1]) {
	case "icosphere":
		if err = need(2); err != nil {
			return
		}
		if args[0] <= 0 || args[1] < 0 || args[1] > 6 {
			return nil, fmt.Errorf("builtin mesh %q: need R > 0 and 0 <= levels <= 6", name)
		}
		return Icosphere(args[0], int(args[1])), nil
	case "plate":
		if err = need(4); err != nil {
			return
		}
		if args[0] <= 0 || args[1] <= 0 || args[2] < 1 || args[3] < 1 {
			return nil, fmt.Errorf("builtin mesh %q: need positive sizes and counts", name)
		}
		return Plate(args[0], args[1], int(args[2]), int(args[3])), nil
	case "box":
		if err = need(2); err != nil {
			return
		}
		if args[0] <= 0 || args[1] < 1 {
			return nil, fmt.Errorf("builtin mesh %q: need L > 0 and n >= 1", name)
		}
		return Box(args[0], int(args[1])), nil
	}
	return nil, fmt.Errorf("unknown builtin mesh %q", fields[1])
}

func Icosphere(R float64, levels int) (m *TriMesh) {
	t := (1 + math.Sqrt(5)) / 2
	m = &TriMesh{
		Vertices: []r3.Vec{
			{X: -1, Y: t}, {X: 1, Y: t}, {X: -1, Y: -t}, {X: 1, Y: -t},
			{Y: -1, Z: t}, {Y: 1, Z: t}, {Y: -1, Z: -t}, {Y: 1, Z: -t},
			{X: t, Z: -1}, {X: t, Z: 1}, {X: -t, Z: -1}, {X: -t, Z: 1},
		},
		Panels: [][3]int{
			{0, 11, 5}, {0, 5, 1}, {0, 1, 7}, {0, 7, 10}, {0, 10, 11},
			{1, 5, 9}, {5, 11, 4}, {11, 10, 2}, {10, 7, 6}, {7, 1, 8},
			{3, 9, 4}, {3, 4, 2}, {3, 2, 6}, {3, 6, 8}, {3, 8, 9},
			{4, 9, 5}, {2, 4, 11}, {6, 2, 10}, {8, 6, 7}, {9, 8, 1},
		},
	}
	for i := range m.Vertices {
		m.Vertices[i] = r3.Scale(R, r3.Unit(m.Vertices[i]))
	}
	for l := 0; l < levels; l++ {
		var (
			mid    = make(map[[2]int]int)
			panels = make([][3]int, 0, 4*len(m.Panels))
		)
		midpoint := func(a, b int) int {
			key := [2]int{a, b}
			if a > b {
				key = [2]int{b, a}
			}
			if iv, ok := mid[key]; ok {
				return iv
			}
			p := r3.Scale(0.5, r3.Add(m.Vertices[a], m.Vertices[b]))
			m.Vertices = append(m.Vertices, r3.Scale(R, r3.Unit(p)))
			mid[key] = len(m.Vertices) - 1
			return mid[key]
		}
		for _, tri := range m.Panels {
			a, b, c := tri[0], tri[1], tri[2]
			ab, bc, ca := midpoint(a, b), midpoint(b, c), midpoint(c, a)
			panels = append(panels,
				[3]int{a, ab, ca}, [3]int{b, bc, ab}, [3]int{c, ca, bc}, [3]int{ab, bc, ca})
		}
		m.Panels = panels
	}
	return
}

func Plate(Lx, Ly float64, nx, ny int) (m *TriMesh) {
	m = &TriMesh{}
	id := func(i, j int) int { return j*(nx+1) + i }
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			m.Vertices = append(m.Vertices, r3.Vec{
				X: -Lx/2 + Lx*float64(i)/float64(nx),
				Y: -Ly/2 + Ly*float64(j)/float64(ny),
			})
		}
	}
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			m.Panels = append(m.Panels,
				[3]int{id(i, j), id(i+1, j), id(i+1, j+1)},
				[3]int{id(i, j), id(i+1, j+1), id(i, j+1)})
		}
	}
	return
}

func Box(L float64, n int) (m *TriMesh) {
	var (
		ids = make(map[[3]int]int)
	)
	m = &TriMesh{}
	vertex := func(c [3]int) int {
		if iv, ok := ids[c]; ok {
			return iv
		}
		m.Vertices = append(m.Vertices, r3.Vec{
			X: L * (float64(c[0])/float64(n) - 0.5),
			Y: L * (float64(c[1])/float64(n) - 0.5),
			Z: L * (float64(c[2])/float64(n) - 0.5),
		})
		ids[c] = len(m.Vertices) - 1
		return ids[c]
	}
	for axis := 0; axis < 3; axis++ {
		u, v := (axis+1)%3, (axis+2)%3
		for _, side := range []int{0, n} {
			grid := func(i, j int) int {
				var c [3]int
				c[axis], c[u], c[v] = side, i, j
				return vertex(c)
			}
			for i := 0; i < n; i++ {
				for j := 0; j < n; j++ {
					p00, p10, p11, p01 := grid(i, j), grid(i+1, j), grid(i+1, j+1), grid(i, j+1)
					if side == n {
						m.Panels = append(m.Panels, [3]int{p00, p10, p11}, [3]int{p00, p11, p01})
					} else {
						m.Panels = append(m.Panels, [3]int{p00, p11, p10}, [3]int{p00, p01, p11})
					}
				}
			}
		}
	}
	return
}
