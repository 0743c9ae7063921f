package incident

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gobem/assembly"
	"github.com/notargets/gobem/geometry"
	"github.com/notargets/gobem/utils"
)

var radon = utils.RadonRule7()

// edgeProducts returns <f, E> and <f, H> for the RWG function of edge ne
// with E, H a plane wave in a medium of relative eps and mu.
func edgeProducts(S *geometry.Surface, ne int, pw *PlaneWave, omega, eps, mu complex128) (vE, vH complex128) {
	var (
		E     = &S.Edges[ne]
		nodes = make([]utils.TriNode, 0, radon.Len())
	)
	add := func(np, iq int, sign float64) {
		P := &S.Panels[np]
		var (
			Q  = S.Vertices[iq]
			pf = sign * E.Length / (2 * P.Area)
		)
		nodes = radon.Nodes([3]r3.Vec{S.Vertex(np, 0), S.Vertex(np, 1), S.Vertex(np, 2)}, P.Area, nodes[:0])
		for _, n := range nodes {
			var (
				Einc, Hinc = pw.Fields(n.X, omega, eps, mu)
				f          = r3.Sub(n.X, Q)
				w          = complex(pf*n.W, 0)
			)
			vE += w * Einc.Dot(f)
			vH += w * Hinc.Dot(f)
		}
	}
	add(E.PPanel, E.IQP, 1)
	if !E.IsExterior() {
		add(E.MPanel, E.IQM, -1)
	}
	return
}

// isMagnetic reports whether basis function n is the magnetic current of a
// dielectric surface edge.
func isMagnetic(G *geometry.Geometry, n int) bool {
	for ns, S := range G.Surfaces {
		o := G.BFIndexOffset[ns]
		if n >= o && n < o+S.NumBFs {
			return S.Kind() == geometry.DielectricSurface && (n-o)%2 == 1
		}
	}
	return false
}

// IncidentProducts returns the products of the incident field with all
// basis functions: V[n] = <f_n, E_inc> for electric currents and
// V[n] = ZVAC <f_n, H_inc> for the magnetic currents of dielectric surfaces.
// Only surfaces bounding the exterior region are illuminated; the products
// change sign when the exterior lies on the inner side of a surface.
func IncidentProducts(G *geometry.Geometry, omega complex128, pw *PlaneWave, workers int) (V []complex128) {
	G.UpdateCachedEpsMu(omega)
	var (
		R0 = G.Regions[0]
	)
	V = make([]complex128, G.TotalBFs)
	for ns, S := range G.Surfaces {
		var sign complex128
		switch {
		case S.RegionIndex[0] == 0:
			sign = 1
		case S.RegionIndex[1] == 0:
			sign = -1
		default:
			continue
		}
		var (
			offset     = G.BFIndexOffset[ns]
			dielectric = S.Kind() == geometry.DielectricSurface
		)
		utils.RoundRobin(workers, S.NumEdges(), func(_, ne int) {
			vE, vH := edgeProducts(S, ne, pw, omega, R0.Eps, R0.Mu)
			if !dielectric {
				V[offset+ne] = sign * vE
				return
			}
			V[offset+2*ne] = sign * vE
			V[offset+2*ne+1] = sign * complex(utils.ZVAC, 0) * vH
		})
	}
	return
}

// rhs converts incident products to the excitation of the BEM system
// M K = B: -V/ZVAC on electric rows, V/ZVAC on magnetic rows.
func rhs(G *geometry.Geometry, V []complex128) (B []complex128) {
	B = make([]complex128, len(V))
	for i, v := range V {
		B[i] = -v / utils.ZVAC
		if isMagnetic(G, i) {
			B[i] = -B[i]
		}
	}
	return
}

// AssembleRHS returns the excitation B of the BEM system M K = B.
func AssembleRHS(G *geometry.Geometry, omega complex128, pw *PlaneWave, workers int) (B []complex128) {
	return rhs(G, IncidentProducts(G, omega, pw, workers))
}

// Solution holds the surface current coefficients of one scattering
// problem and the incident products they were solved against.
type Solution struct {
	Omega complex128
	K     []complex128
	V     []complex128
}

// Solve assembles and factors the BEM matrix of a compact geometry and
// solves for the surface currents excited by pw.
func Solve(a *assembly.Assembler, omega complex128, pw *PlaneWave) (sol *Solution, err error) {
	var (
		M *utils.HMatrix
		G = a.G
	)
	if G.IsPeriodic() {
		return nil, fmt.Errorf("plane wave solve: %w", assembly.ErrBlochRequired)
	}
	sol = &Solution{Omega: omega}
	sol.V = IncidentProducts(G, omega, pw, a.Workers())
	if M, err = a.AssembleBEMMatrix(omega, nil, nil); err != nil {
		return nil, err
	}
	if utils.IsNan(M) {
		return nil, fmt.Errorf("%s at omega=%v has NaN entries", M.Name(), omega)
	}
	if err = M.LUFactorize(); err != nil {
		return nil, fmt.Errorf("factorizing %s: %w", M.Name(), err)
	}
	sol.K = rhs(G, sol.V)
	if err = M.LUSolve(sol.K); err != nil {
		return nil, err
	}
	if G.LogLevel > 0 {
		utils.Logf("solved %d unknowns at omega=%v, scattered power %.6e W\n", len(sol.K), omega, sol.ScatteredPower())
	}
	return
}

// ScatteredPower is 1/2 Re sum_n conj(K_n) V_n, the power the induced
// currents take from the incident wave. For a lossless scatterer this is the
// scattered power, in W when lengths are in meters.
func (sol *Solution) ScatteredPower() (P float64) {
	for i, k := range sol.K {
		P += real(complex(real(k), -imag(k)) * sol.V[i])
	}
	return P / 2
}

// CrossSection is the scattered power divided by the incident intensity
// |E0|^2 / (2 ZVAC).
func (sol *Solution) CrossSection(pw *PlaneWave) float64 {
	e0 := pw.Amplitude()
	return sol.ScatteredPower() / (e0 * e0 / (2 * utils.ZVAC))
}

// MaxCurrent returns max |K_n|, used in run summaries.
func (sol *Solution) MaxCurrent() (m float64) {
	for _, k := range sol.K {
		m = math.Max(m, math.Hypot(real(k), imag(k)))
	}
	return
}
