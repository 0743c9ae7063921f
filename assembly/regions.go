package assembly

import (
	"math/cmplx"

	"github.com/notargets/gobem/geometry"
	"github.com/notargets/gobem/interaction"
)

// CountCommonRegions returns the regions bounded by both surfaces. The sign
// of a region is +1 when it lies on the same side of both surfaces (siblings,
// or a surface with itself) and -1 when it lies outside one and inside the
// other (containment). Unused slots of regions hold -1.
func CountCommonRegions(G *geometry.Geometry, sa, sb int) (n int, regions [2]int, signs [2]float64) {
	var (
		A = G.Surfaces[sa].RegionIndex
		B = G.Surfaces[sb].RegionIndex
	)
	regions = [2]int{-1, -1}
	for ia, ra := range A {
		if ra < 0 {
			continue
		}
		for ib, rb := range B {
			if ra != rb {
				continue
			}
			regions[n] = ra
			signs[n] = 1
			if ia != ib {
				signs[n] = -1
			}
			n++
			break
		}
	}
	return
}

// regionTerm is the contribution of one common region to a block.
//
//	electric-electric  P1 = s i mu omega
//	electric-magnetic  P2 = -s i k
//	magnetic-magnetic  P3 = -s i eps omega
type regionTerm struct {
	Region     int
	Sign       float64
	K          complex128
	P1, P2, P3 complex128
	Tail       interaction.TailKernel
}

func newRegionTerm(G *geometry.Geometry, nr int, sign float64, omega complex128) (t regionTerm) {
	var (
		R   = G.Regions[nr]
		s   = complex(sign, 0)
		eps = R.Eps
		mu  = R.Mu
	)
	t = regionTerm{Region: nr, Sign: sign}
	t.K = omega * cmplx.Sqrt(eps*mu)
	t.P1 = s * 1i * mu * omega
	t.P2 = -s * 1i * t.K
	t.P3 = -s * 1i * eps * omega
	return
}
