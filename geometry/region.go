package geometry

import (
	"math/cmplx"

	"github.com/notargets/gobem/materials"
)

// Region is a homogeneous material domain. Region 0 is the ambient exterior.
type Region struct {
	Label    string
	Material materials.Material
	Index    int
	// Extended[d] is set for regions that continue into the neighbouring
	// cells along lattice vector d.
	Extended [2]bool
	// Eps and Mu are valid at the owning geometry's StoredOmega.
	Eps, Mu complex128
}

// K returns the wavenumber omega*sqrt(eps*mu) at the cached frequency.
func (R *Region) K(omega complex128) complex128 {
	return omega * cmplx.Sqrt(R.Eps*R.Mu)
}

func (R *Region) IsPEC() bool { return R.Material != nil && R.Material.IsPEC() }

// IsExtended reports whether the region reaches the cell displaced by
// n1*L1 + n2*L2.
func (R *Region) IsExtended(n1, n2 int) bool {
	return (n1 == 0 || R.Extended[0]) && (n2 == 0 || R.Extended[1])
}
