package geometry

import (
	"fmt"
)

// resolveContainment finds which closed objects enclose which, rebinds the
// exterior region of every enclosed object to the interior of its innermost
// container and reorders the surfaces so containers precede contents.
// Ties keep declaration order.
func (G *Geometry) resolveContainment() error {
	var (
		n        = len(G.Surfaces)
		contains = make([][]bool, n)
		depth    = make([]int, n)
	)
	for i := range contains {
		contains[i] = make([]bool, n)
	}
	for i, S := range G.Surfaces {
		if !S.IsObject || !S.IsClosed {
			continue
		}
		for j, T := range G.Surfaces {
			if i == j || !T.IsObject || !T.IsClosed {
				continue
			}
			if S.Contains(T) {
				if S.IsPEC {
					return fmt.Errorf("%w: %s contains %s", ErrPECContainment, S.Label, T.Label)
				}
				contains[i][j] = true
				depth[j]++
			}
		}
	}
	for j, T := range G.Surfaces {
		inner := -1
		for i := range G.Surfaces {
			if contains[i][j] && (inner < 0 || depth[i] > depth[inner]) {
				inner = i
			}
		}
		if inner < 0 {
			continue
		}
		C := G.Surfaces[inner]
		if contains[j][inner] {
			return fmt.Errorf("objects %s and %s contain each other", C.Label, T.Label)
		}
		T.RegionIndex[0], T.RegionLabel[0] = C.RegionIndex[1], C.RegionLabel[1]
	}
	order, err := kahnOrder(contains)
	if err != nil {
		return err
	}
	sorted := make([]*Surface, n)
	for k, ns := range order {
		sorted[k] = G.Surfaces[ns]
	}
	G.Surfaces = sorted
	return nil
}

// kahnOrder topologically sorts the "contains" relation, always emitting the
// lowest-indexed ready node first.
func kahnOrder(contains [][]bool) (order []int, err error) {
	var (
		n        = len(contains)
		indegree = make([]int, n)
		done     = make([]bool, n)
	)
	for i := range contains {
		for j := range contains[i] {
			if contains[i][j] {
				indegree[j]++
			}
		}
	}
	for len(order) < n {
		next := -1
		for i := 0; i < n; i++ {
			if !done[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			return nil, fmt.Errorf("cyclic containment among surfaces")
		}
		done[next] = true
		order = append(order, next)
		for j := range contains[next] {
			if contains[next][j] {
				indegree[j]--
			}
		}
	}
	return
}
