package overlap

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gobem/geometry"
	"github.com/notargets/gobem/utils"
)

// Indices into the array returned by GetOverlaps. For each Cartesian
// direction mu there is a bullet, a nabla-nabla and a times-nabla entry:
//
//	Overlap         = int fa . fb
//	Cross           = int fa . (n x fb)
//	Bullet[mu]      = int n_mu fa . fb
//	NablaNabla[mu]  = int n_mu (div fa)(div fb)
//	TimesNabla[mu]  = int (n x fa)_mu (div fb)
const (
	Overlap = iota
	Cross
	XBullet
	XNablaNabla
	XTimesNabla
	YBullet
	YNablaNabla
	YTimesNabla
	ZBullet
	ZNablaNabla
	ZTimesNabla
	NumOverlaps
)

// Bullet, NablaNabla and TimesNabla return the index of the direction-mu
// entry of each family.
func Bullet(mu int) int     { return XBullet + 3*mu }
func NablaNabla(mu int) int { return XNablaNabla + 3*mu }
func TimesNabla(mu int) int { return XTimesNabla + 3*mu }

// sharedPanel is one panel common to the supports of two RWG functions.
type sharedPanel struct {
	panel    int
	iqa, iqb int
	sign     float64
}

func sharedPanels(Ea, Eb *geometry.Edge) (s []sharedPanel) {
	if Ea.PPanel == Eb.PPanel {
		s = append(s, sharedPanel{Ea.PPanel, Ea.PIndex, Eb.PIndex, 1})
	}
	if Ea.PPanel == Eb.MPanel {
		s = append(s, sharedPanel{Ea.PPanel, Ea.PIndex, Eb.MIndex, -1})
	}
	if Ea.MPanel == Eb.PPanel {
		s = append(s, sharedPanel{Ea.MPanel, Ea.MIndex, Eb.PIndex, -1})
	}
	if Ea.MPanel == Eb.MPanel {
		s = append(s, sharedPanel{Ea.MPanel, Ea.MIndex, Eb.MIndex, 1})
	}
	return
}

// GetOverlaps returns the closed-form overlap integrals between interior
// edges neA and neB of S. All entries vanish unless the two basis
// functions share a panel.
func GetOverlaps(S *geometry.Surface, neA, neB int) (o [NumOverlaps]float64) {
	var (
		Ea = &S.Edges[neA]
		Eb = &S.Edges[neB]
		LL = Ea.Length * Eb.Length
	)
	for _, sp := range sharedPanels(Ea, Eb) {
		addPanelOverlaps(S, sp, LL, &o)
	}
	return
}

func addPanelOverlaps(S *geometry.Surface, sp sharedPanel, LL float64, o *[NumOverlaps]float64) {
	var (
		P    = &S.Panels[sp.panel]
		Qa   = S.Vertex(sp.panel, sp.iqa)
		Qa1  = S.Vertex(sp.panel, (sp.iqa+1)%3)
		Qa2  = S.Vertex(sp.panel, (sp.iqa+2)%3)
		Qb   = S.Vertex(sp.panel, sp.iqb)
		A    = r3.Sub(Qa1, Qa)
		B    = r3.Sub(Qa2, Qa1)
		DQ   = r3.Sub(Qa, Qb)
		Z    = P.ZHat
		ZxA  = r3.Cross(Z, A)
		ZxB  = r3.Cross(Z, B)
		ZxDQ = r3.Cross(Z, DQ)
		pf   = sp.sign * LL / (2 * P.Area)
	)
	bullet := r3.Dot(A, r3.Add(r3.Scale(0.25, r3.Add(A, B)), r3.Scale(1./3., DQ))) +
		r3.Dot(B, r3.Add(r3.Scale(1./12., B), r3.Scale(1./6., DQ)))
	times := r3.Dot(r3.Add(A, r3.Scale(0.5, B)), ZxDQ) / 3

	o[Overlap] += pf * bullet
	o[Cross] += pf * times
	for mu := 0; mu < 3; mu++ {
		o[Bullet(mu)] += pf * utils.Component(Z, mu) * bullet
		o[NablaNabla(mu)] += pf * utils.Component(Z, mu) * 2
		o[TimesNabla(mu)] += pf * (utils.Component(ZxA, mu)/3 + utils.Component(ZxB, mu)/6) * 2
	}
}

// NumTorqueOverlaps is the length of the array returned by GetTorqueOverlaps.
const NumTorqueOverlaps = 9

// GetTorqueOverlaps returns the moment-arm analogues of the force overlaps
// about origin. For direction mu, with r = x - origin,
//
//	t[3mu+0] = int (r x n)_mu fa . fb
//	t[3mu+1] = int (r x n)_mu (div fa)(div fb)
//	t[3mu+2] = int (r x (n x fa))_mu (div fb)
//
// The integrands are cubic on each panel, so the 7-point rule is exact.
func GetTorqueOverlaps(S *geometry.Surface, neA, neB int, origin r3.Vec) (t [NumTorqueOverlaps]float64) {
	var (
		Ea    = &S.Edges[neA]
		Eb    = &S.Edges[neB]
		rule  = utils.RadonRule7()
		nodes = make([]utils.TriNode, 0, rule.Len())
	)
	for _, sp := range sharedPanels(Ea, Eb) {
		var (
			P    = &S.Panels[sp.panel]
			Qa   = S.Vertex(sp.panel, sp.iqa)
			Qb   = S.Vertex(sp.panel, sp.iqb)
			ca   = Ea.Length / (2 * P.Area)
			cb   = sp.sign * Eb.Length / (2 * P.Area)
			divs = 4 * ca * cb // (div fa)(div fb), signs included through cb
			T    = [3]r3.Vec{S.Vertex(sp.panel, 0), S.Vertex(sp.panel, 1), S.Vertex(sp.panel, 2)}
		)
		nodes = rule.Nodes(T, P.Area, nodes[:0])
		for _, n := range nodes {
			var (
				fa    = r3.Scale(ca, r3.Sub(n.X, Qa))
				fb    = r3.Scale(cb, r3.Sub(n.X, Qb))
				arm   = r3.Sub(n.X, origin)
				rxn   = r3.Cross(arm, P.ZHat)
				rxnxf = r3.Cross(arm, r3.Cross(P.ZHat, fa))
				dot   = r3.Dot(fa, fb)
			)
			for mu := 0; mu < 3; mu++ {
				t[3*mu] += n.W * utils.Component(rxn, mu) * dot
				t[3*mu+1] += n.W * utils.Component(rxn, mu) * divs
				t[3*mu+2] += n.W * utils.Component(rxnxf, mu) * 2 * cb
			}
		}
	}
	return
}
