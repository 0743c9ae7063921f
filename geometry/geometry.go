package geometry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/notargets/gobem/materials"
	"github.com/notargets/gobem/utils"
)

var (
	ErrUnknownRegion  = errors.New("unknown region")
	ErrUnknownSurface = errors.New("unknown surface")
	ErrPECContainment = errors.New("PEC object cannot contain another object")
)

// Geometry owns the regions and surfaces of a problem. Surfaces and regions
// refer to each other by index only.
type Geometry struct {
	Name             string
	Regions          []*Region
	Surfaces         []*Surface
	BFIndexOffset    []int
	PanelIndexOffset []int
	TotalBFs         int
	TotalPanels      int
	// Mate[ns] is the index of an earlier identical surface, or -1.
	Mate []int
	// SurfaceMoved flags the surfaces changed by the last transformation.
	SurfaceMoved []bool
	Lattice      *Lattice
	StoredOmega  complex128
	haveStored   bool
	Materials    *materials.Database
	LogLevel     int
}

func (G *Geometry) NumSurfaces() int { return len(G.Surfaces) }
func (G *Geometry) NumRegions() int  { return len(G.Regions) }
func (G *Geometry) IsPeriodic() bool { return G.Lattice != nil }

// GetRegionByLabel returns the region index for label, or ErrUnknownRegion.
func (G *Geometry) GetRegionByLabel(label string) (int, error) {
	for i, R := range G.Regions {
		if strings.EqualFold(R.Label, label) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrUnknownRegion, label)
}

// GetSurfaceByLabel returns the surface index and surface, or -1 and nil.
func (G *Geometry) GetSurfaceByLabel(label string) (int, *Surface) {
	for i, S := range G.Surfaces {
		if strings.EqualFold(S.Label, label) {
			return i, S
		}
	}
	return -1, nil
}

func (G *Geometry) GetSurfaceKind(ns int) SurfaceKind { return G.Surfaces[ns].Kind() }

// finalize runs after all blocks are parsed: containment resolution, region
// extendedness, offsets and mates.
func (G *Geometry) finalize() (err error) {
	if err = G.resolveContainment(); err != nil {
		return
	}
	for _, R := range G.Regions {
		R.Extended = [2]bool{R.Index == 0, R.Index == 0}
	}
	// an open surface extends its regions along each lattice vector it spans
	for _, S := range G.Surfaces {
		if S.IsObject || S.IsClosed {
			continue
		}
		for d := 0; d < 2; d++ {
			if G.Lattice != nil && !G.Lattice.Spans(S.Vertices, d) {
				continue
			}
			for _, nr := range S.RegionIndex {
				if nr >= 0 {
					G.Regions[nr].Extended[d] = true
				}
			}
		}
	}
	G.computeOffsets()
	G.findMates()
	G.SurfaceMoved = make([]bool, len(G.Surfaces))
	return
}

func (G *Geometry) computeOffsets() {
	var (
		n = len(G.Surfaces)
	)
	G.BFIndexOffset = make([]int, n)
	G.PanelIndexOffset = make([]int, n)
	G.TotalBFs, G.TotalPanels = 0, 0
	for ns, S := range G.Surfaces {
		G.BFIndexOffset[ns] = G.TotalBFs
		G.PanelIndexOffset[ns] = G.TotalPanels
		G.TotalBFs += S.NumBFs
		G.TotalPanels += len(S.Panels)
	}
}

func (G *Geometry) regionMaterialName(nr int) string {
	if nr < 0 {
		return "PEC"
	}
	return strings.ToUpper(G.Regions[nr].Material.Name())
}

// findMates marks surfaces read from the same mesh and tag that bound the
// same materials. Under a lattice the orientation must match too. A surface
// conductivity that varies with position has no mate, since the copied
// self block would carry the conductivity at the other surface's place.
func (G *Geometry) findMates() {
	G.Mate = make([]int, len(G.Surfaces))
	for ns, S := range G.Surfaces {
		G.Mate[ns] = -1
		if S.Sigma.DependsOnPosition() {
			continue
		}
		for nsp := 0; nsp < ns; nsp++ {
			SP := G.Surfaces[nsp]
			if G.Mate[nsp] != -1 {
				continue
			}
			if S.MeshFile != SP.MeshFile || S.MeshTag != SP.MeshTag || S.IsPEC != SP.IsPEC {
				continue
			}
			if G.regionMaterialName(S.RegionIndex[0]) != G.regionMaterialName(SP.RegionIndex[0]) {
				continue
			}
			if !S.IsPEC && G.regionMaterialName(S.RegionIndex[1]) != G.regionMaterialName(SP.RegionIndex[1]) {
				continue
			}
			if G.Lattice != nil && !S.Loaded.SameRotation(SP.Loaded, 1.e-12) {
				continue
			}
			if S.Sigma.String() != SP.Sigma.String() {
				continue
			}
			G.Mate[ns] = nsp
			break
		}
	}
}

// UpdateCachedEpsMu evaluates every region material at omega unless omega is
// already cached. It must not run concurrently with assembly.
func (G *Geometry) UpdateCachedEpsMu(omega complex128) {
	if G.haveStored && omega == G.StoredOmega {
		return
	}
	for _, R := range G.Regions {
		R.Eps, R.Mu = R.Material.GetEpsMu(omega)
	}
	G.StoredOmega, G.haveStored = omega, true
}

// LabeledTransformation moves the surface named Label.
type LabeledTransformation struct {
	Label string
	T     Transformation
}

// Transform moves one surface rigidly and marks it as the only moved one.
func (G *Geometry) Transform(label string, t Transformation) error {
	return G.ApplyTransformations([]LabeledTransformation{{Label: label, T: t}})
}

// ApplyTransformations resets the moved flags, then applies each motion in
// order on top of the current positions.
func (G *Geometry) ApplyTransformations(list []LabeledTransformation) error {
	for _, lt := range list {
		if ns, _ := G.GetSurfaceByLabel(lt.Label); ns < 0 {
			return fmt.Errorf("%w: %q", ErrUnknownSurface, lt.Label)
		}
	}
	for ns := range G.SurfaceMoved {
		G.SurfaceMoved[ns] = false
	}
	for _, lt := range list {
		ns, S := G.GetSurfaceByLabel(lt.Label)
		S.applyMotion(lt.T)
		G.SurfaceMoved[ns] = true
	}
	if G.LogLevel > 0 {
		utils.Logf("applied %d surface transformations\n", len(list))
	}
	return nil
}

// UnTransform returns every surface to its post-load position. Surfaces that
// actually move back are flagged as moved.
func (G *Geometry) UnTransform() {
	for ns, S := range G.Surfaces {
		G.SurfaceMoved[ns] = S.restore()
	}
}
