package geometry

import (
	"fmt"
)

type SurfaceStatistics struct {
	Label                  string
	Kind                   SurfaceKind
	Vertices, Panels       int
	InteriorEdges          int
	ExteriorEdges          int
	BasisFunctions         int
	BoundaryContours       int
	EulerCharacteristic    int
	Closed                 bool
	TotalArea, AverageArea float64
	Mate                   string
	Regions                [2]string
}

type Statistics struct {
	Surfaces         []SurfaceStatistics
	Regions          []string
	TotalBFs         int
	TotalPanels      int
	AveragePanelArea float64
	// MatrixBytes is the dense complex system matrix footprint.
	MatrixBytes int64
	Periodic    bool
}

// Statistics summarizes the mesh topology of every surface.
func (G *Geometry) Statistics() (st Statistics) {
	var totalArea float64
	for ns, S := range G.Surfaces {
		ss := SurfaceStatistics{
			Label:            S.Label,
			Kind:             S.Kind(),
			Vertices:         len(S.Vertices),
			Panels:           len(S.Panels),
			InteriorEdges:    len(S.Edges),
			ExteriorEdges:    len(S.ExteriorEdges),
			BasisFunctions:   S.NumBFs,
			BoundaryContours: S.boundaryContours(),
			Closed:           S.IsClosed,
			TotalArea:        S.Area(),
			Regions:          S.RegionLabel,
		}
		ss.EulerCharacteristic = ss.Vertices - ss.InteriorEdges - ss.ExteriorEdges + ss.Panels
		ss.AverageArea = ss.TotalArea / float64(ss.Panels)
		if G.Mate[ns] >= 0 {
			ss.Mate = G.Surfaces[G.Mate[ns]].Label
		}
		totalArea += ss.TotalArea
		st.Surfaces = append(st.Surfaces, ss)
	}
	for _, R := range G.Regions {
		st.Regions = append(st.Regions, fmt.Sprintf("%s (%s)", R.Label, R.Material.Name()))
	}
	st.TotalBFs, st.TotalPanels = G.TotalBFs, G.TotalPanels
	st.AveragePanelArea = totalArea / float64(G.TotalPanels)
	st.MatrixBytes = int64(G.TotalBFs) * int64(G.TotalBFs) * 16
	st.Periodic = G.Lattice != nil
	return
}

// boundaryContours counts the connected loops formed by exterior edges.
func (S *Surface) boundaryContours() (n int) {
	parent := make(map[int]int)
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	for _, E := range S.ExteriorEdges {
		for _, iv := range []int{E.IV1, E.IV2} {
			if _, ok := parent[iv]; !ok {
				parent[iv] = iv
			}
		}
		if a, b := find(E.IV1), find(E.IV2); a != b {
			parent[a] = b
		}
	}
	for i := range parent {
		if find(i) == i {
			n++
		}
	}
	return
}

func (st Statistics) Print() {
	fmt.Printf("%d regions:\n", len(st.Regions))
	for i, r := range st.Regions {
		fmt.Printf("  %2d: %s\n", i, r)
	}
	for _, ss := range st.Surfaces {
		fmt.Printf("Surface %s (%s, %s -> %s)\n", ss.Label, ss.Kind, ss.Regions[0], ss.Regions[1])
		fmt.Printf("  %d vertices, %d panels, %d interior edges, %d exterior edges\n",
			ss.Vertices, ss.Panels, ss.InteriorEdges, ss.ExteriorEdges)
		fmt.Printf("  %d basis functions, closed=%v, boundary contours=%d, Euler characteristic=%d\n",
			ss.BasisFunctions, ss.Closed, ss.BoundaryContours, ss.EulerCharacteristic)
		fmt.Printf("  total area %g, average panel area %g\n", ss.TotalArea, ss.AverageArea)
		if ss.Mate != "" {
			fmt.Printf("  identical to %s, diagonal block reused\n", ss.Mate)
		}
	}
	fmt.Printf("%d basis functions, %d panels, average panel area %g\n", st.TotalBFs, st.TotalPanels, st.AveragePanelArea)
	fmt.Printf("system matrix needs %.1f MB\n", float64(st.MatrixBytes)/1.e6)
	if st.Periodic {
		fmt.Printf("geometry is periodic\n")
	}
}
