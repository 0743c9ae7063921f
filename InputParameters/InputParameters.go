package InputParameters

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ghodss/yaml"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gobem/assembly"
	"github.com/notargets/gobem/geometry"
	"github.com/notargets/gobem/utils"
)

// Motion is one rigid motion of a labeled surface, applied after loading.
type Motion struct {
	Label     string    `json:"Label"`
	Displaced []float64 `json:"Displaced,omitempty"`
	Angle     float64   `json:"Angle,omitempty"` // degrees
	Axis      []float64 `json:"Axis,omitempty"`
}

// RunParameters obtained from the YAML input file
type RunParameters struct {
	Title          string      `json:"Title"`
	GeometryFile   string      `json:"GeometryFile"`
	MeshDirectory  string      `json:"MeshDirectory"`
	Omega          []float64   `json:"Omega"`     // real angular frequencies, units of c / 1 micron
	ImagOmega      []float64   `json:"ImagOmega"` // imaginary angular frequencies (Matsubara / Wick-rotated)
	KBloch         [][]float64 `json:"KBloch"`
	Workers        int         `json:"Workers"`
	Packed         bool        `json:"Packed"`
	UseAccelerator bool        `json:"UseAccelerator"`
	NoTail         bool        `json:"NoTail"`
	Incremental    bool        `json:"Incremental"`
	TableSpacing   float64     `json:"TableSpacing"`
	LogLevel       int         `json:"LogLevel"`
	Polarization   []float64   `json:"Polarization"` // plane wave E0, V/m
	Direction      []float64   `json:"Direction"`    // plane wave propagation direction
	Motions        []Motion    `json:"Motions"`

	// Tags are free-form annotations echoed in outputs.
	Tags map[string]string `json:"Tags"`
}

func (rp *RunParameters) Parse(data []byte) (err error) {
	if err = yaml.Unmarshal(data, rp); err != nil {
		return
	}
	return rp.Validate()
}

func vec3(name string, v []float64) (r r3.Vec, err error) {
	if len(v) != 3 {
		return r, fmt.Errorf("%s needs 3 components, have %d", name, len(v))
	}
	return utils.VecFromSlice(v), nil
}

// Validate checks the fields that cannot be checked by the geometry loader.
func (rp *RunParameters) Validate() (err error) {
	if len(rp.GeometryFile) == 0 {
		return fmt.Errorf("GeometryFile is required")
	}
	if len(rp.Omega)+len(rp.ImagOmega) == 0 {
		return fmt.Errorf("at least one of Omega or ImagOmega is required")
	}
	if rp.Workers < 0 {
		return fmt.Errorf("Workers must be >= 0, have %d", rp.Workers)
	}
	for i, kb := range rp.KBloch {
		if len(kb) < 1 || len(kb) > 2 {
			return fmt.Errorf("KBloch[%d] needs 1 or 2 components, have %d", i, len(kb))
		}
	}
	if rp.Polarization != nil || rp.Direction != nil {
		if _, err = vec3("Polarization", rp.Polarization); err != nil {
			return
		}
		if _, err = vec3("Direction", rp.Direction); err != nil {
			return
		}
	}
	for i, m := range rp.Motions {
		if len(m.Label) == 0 {
			return fmt.Errorf("Motions[%d] has no Label", i)
		}
		if m.Displaced != nil {
			if _, err = vec3("Displaced", m.Displaced); err != nil {
				return fmt.Errorf("Motions[%d]: %w", i, err)
			}
		}
		if m.Angle != 0 {
			if _, err = vec3("Axis", m.Axis); err != nil {
				return fmt.Errorf("Motions[%d]: %w", i, err)
			}
		}
	}
	return
}

// Frequencies lists the real frequencies followed by the imaginary ones.
func (rp *RunParameters) Frequencies() (omegas []complex128) {
	for _, w := range rp.Omega {
		omegas = append(omegas, complex(w, 0))
	}
	for _, xi := range rp.ImagOmega {
		omegas = append(omegas, complex(0, xi))
	}
	return
}

// BlochVectors returns the Bloch vectors to sweep, or a single nil entry
// for compact geometries.
func (rp *RunParameters) BlochVectors() [][]float64 {
	if len(rp.KBloch) == 0 {
		return [][]float64{nil}
	}
	return rp.KBloch
}

func (rp *RunParameters) AssemblerOptions() assembly.Options {
	return assembly.Options{
		Workers:        rp.Workers,
		Packed:         rp.Packed,
		UseAccelerator: rp.UseAccelerator,
		NoTail:         rp.NoTail,
		TableSpacing:   rp.TableSpacing,
		Incremental:    rp.Incremental,
	}
}

// Transformations converts the motions, rotation first when a motion has
// both.
func (rp *RunParameters) Transformations() (list []geometry.LabeledTransformation) {
	for _, m := range rp.Motions {
		t := geometry.NewTransformation()
		if m.Angle != 0 {
			t = t.Then(geometry.Rotation(m.Angle, utils.VecFromSlice(m.Axis)))
		}
		if m.Displaced != nil {
			t = t.Then(geometry.Displacement(utils.VecFromSlice(m.Displaced)))
		}
		list = append(list, geometry.LabeledTransformation{Label: m.Label, T: t})
	}
	return
}

func (rp *RunParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", rp.Title)
	fmt.Printf("[%s]\t= Geometry\n", rp.GeometryFile)
	fmt.Printf("%v\t\t= Omega\n", rp.Omega)
	if len(rp.ImagOmega) != 0 {
		fmt.Printf("%v\t\t= Imaginary Omega\n", rp.ImagOmega)
	}
	if len(rp.KBloch) != 0 {
		fmt.Printf("%v\t\t= Bloch Vectors\n", rp.KBloch)
	}
	fmt.Printf("[%d]\t\t\t\t= Workers\n", rp.Workers)
	var flags []string
	for _, f := range []struct {
		name string
		on   bool
	}{
		{"Packed", rp.Packed},
		{"UseAccelerator", rp.UseAccelerator},
		{"NoTail", rp.NoTail},
		{"Incremental", rp.Incremental},
	} {
		if f.on {
			flags = append(flags, f.name)
		}
	}
	if len(flags) != 0 {
		fmt.Printf("[%s]\t= Options\n", strings.Join(flags, ","))
	}
	if rp.Polarization != nil {
		fmt.Printf("E0 = %v, kHat = %v\n", rp.Polarization, rp.Direction)
	}
	for _, m := range rp.Motions {
		fmt.Printf("Motion[%s] = displaced %v, rotated %g about %v\n", m.Label, m.Displaced, m.Angle, m.Axis)
	}
	keys := make([]string, len(rp.Tags))
	i := 0
	for k := range rp.Tags {
		keys[i] = k
		i++
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("Tags[%s] = %v\n", key, rp.Tags[key])
	}
}
