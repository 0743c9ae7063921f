package overlap

import (
	"fmt"
	"math/cmplx"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gobem/geometry"
	"github.com/notargets/gobem/utils"
)

// Selection is a bit set of the overlap matrices to build.
type Selection uint8

const (
	SelectOverlap Selection = 1 << iota
	SelectPower
	SelectForce
	SelectTorque
	SelectAll = SelectOverlap | SelectPower | SelectForce | SelectTorque
)

func (s Selection) Has(o Selection) bool { return s&o != 0 }

func (s Selection) String() string {
	var names []string
	for _, n := range []struct {
		bit  Selection
		name string
	}{
		{SelectOverlap, "overlap"},
		{SelectPower, "power"},
		{SelectForce, "force"},
		{SelectTorque, "torque"},
	} {
		if s.Has(n.bit) {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// Matrices holds the sparse overlap matrices of one surface, indexed by
// basis function. Matrices that were not selected are nil. Torque is taken
// about the coordinate origin. Built matrices are read-only.
type Matrices struct {
	Overlap *utils.ComplexDOK
	Power   *utils.ComplexDOK
	Force   [3]*utils.ComplexDOK
	Torque  [3]*utils.ComplexDOK
}

// GetOverlapMatrices builds the selected matrices for surface S embedded in
// a medium with relative permittivity eps and permeability mu at angular
// frequency omega.
//
// For a PEC surface the matrices are NumEdges square and the power matrix
// has no entries. Otherwise basis functions 2n and 2n+1 are the electric
// and magnetic currents of edge n and every entry becomes a 2x2 block.
func GetOverlapMatrices(S *geometry.Surface, omega, eps, mu complex128, which Selection) (M *Matrices) {
	var (
		N    = S.NumBFs
		pec  = S.IsPEC
		K2   = omega * omega * eps * mu
		Z    = complex(utils.ZVAC, 0) * cmplx.Sqrt(mu/eps)
		iw   = complex(0, 1) * omega
		axes = [3]string{"x", "y", "z"}
	)
	M = &Matrices{}
	if which.Has(SelectOverlap) {
		M.Overlap = utils.NewComplexDOK(N, N, S.Label+" overlap")
	}
	if which.Has(SelectPower) {
		M.Power = utils.NewComplexDOK(N, N, S.Label+" power")
	}
	for d := 0; d < 3; d++ {
		if which.Has(SelectForce) {
			M.Force[d] = utils.NewComplexDOK(N, N, fmt.Sprintf("%s %s-force", S.Label, axes[d]))
		}
		if which.Has(SelectTorque) {
			M.Torque[d] = utils.NewComplexDOK(N, N, fmt.Sprintf("%s %s-torque", S.Label, axes[d]))
		}
	}
	// stamp writes the electric/magnetic block of a force-like quantity
	stamp := func(D *utils.ComplexDOK, na, nb int, f1, f2 complex128) {
		if pec {
			D.Set(na, nb, Z*f1)
			return
		}
		D.Set(2*na, 2*nb, Z*f1)
		D.Set(2*na, 2*nb+1, f2)
		D.Set(2*na+1, 2*nb, -f2)
		D.Set(2*na+1, 2*nb+1, f1/Z)
	}
	var origin r3.Vec
	for na := range S.Edges {
		for nb := range S.Edges {
			o := GetOverlaps(S, na, nb)
			if o[Overlap] == 0 {
				continue
			}
			if M.Overlap != nil {
				v := complex(o[Overlap], 0)
				if pec {
					M.Overlap.Set(na, nb, v)
				} else {
					M.Overlap.Set(2*na, 2*nb, v)
					M.Overlap.Set(2*na+1, 2*nb+1, v)
				}
			}
			if M.Power != nil && !pec {
				v := complex(o[Cross], 0)
				M.Power.Set(2*na, 2*nb+1, v)
				M.Power.Set(2*na+1, 2*nb, v)
			}
			if which.Has(SelectForce) {
				for d := 0; d < 3; d++ {
					f1 := complex(o[Bullet(d)], 0) - complex(o[NablaNabla(d)], 0)/K2
					f2 := 2 * complex(o[TimesNabla(d)], 0) / iw
					stamp(M.Force[d], na, nb, f1, f2)
				}
			}
			if which.Has(SelectTorque) {
				t := GetTorqueOverlaps(S, na, nb, origin)
				for d := 0; d < 3; d++ {
					f1 := complex(t[3*d], 0) - complex(t[3*d+1], 0)/K2
					f2 := 2 * complex(t[3*d+2], 0) / iw
					stamp(M.Torque[d], na, nb, f1, f2)
				}
			}
		}
	}
	for _, D := range M.all() {
		D.SetReadOnly()
	}
	return
}

func (M *Matrices) all() (list []*utils.ComplexDOK) {
	for _, D := range append([]*utils.ComplexDOK{M.Overlap, M.Power}, append(M.Force[:], M.Torque[:]...)...) {
		if D != nil {
			list = append(list, D)
		}
	}
	return
}
