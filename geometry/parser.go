package geometry

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gobem/materials"
	"github.com/notargets/gobem/utils"
)

var ErrSyntax = errors.New("syntax error")

// ParseError locates a configuration error in the geometry description.
type ParseError struct {
	File string
	Line int
	Err  error
}

func (e *ParseError) Error() string { return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

type options struct {
	db      *materials.Database
	meshDir string
	log     int
}

type Option func(*options)

// WithMaterials supplies the material database; the default is
// materials.NewDatabase().
func WithMaterials(db *materials.Database) Option { return func(o *options) { o.db = db } }

// WithMeshDirectory sets the directory relative mesh paths resolve against.
func WithMeshDirectory(dir string) Option { return func(o *options) { o.meshDir = dir } }

func WithLogLevel(level int) Option { return func(o *options) { o.log = level } }

// ReadGeometryFile parses a geometry file, resolving meshes next to it.
func ReadGeometryFile(path string, opts ...Option) (G *Geometry, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	opts = append([]Option{WithMeshDirectory(filepath.Dir(path))}, opts...)
	return NewGeometry(file, path, opts...)
}

// pendingSurface collects the directives of one OBJECT or SURFACE block.
type pendingSurface struct {
	label    string
	isObject bool
	meshFile string
	meshTag  int
	material string
	regions  []string
	sigma    string
	motions  []Transformation
	line     int
}

// NewGeometry parses the declarative description read from r. name is used
// in error messages.
func NewGeometry(r io.Reader, name string, opts ...Option) (G *Geometry, err error) {
	var (
		o = options{}
	)
	for _, opt := range opts {
		opt(&o)
	}
	if o.db == nil {
		o.db = materials.NewDatabase()
	}
	G = &Geometry{
		Name:      name,
		Materials: o.db,
		LogLevel:  o.log,
		Regions:   []*Region{{Label: "Exterior", Material: materials.Vacuum{}, Index: 0}},
	}
	p := &parser{G: G, db: o.db, name: name, meshDir: o.meshDir}
	if err = p.run(r); err != nil {
		return nil, err
	}
	if len(G.Surfaces) == 0 {
		return nil, &ParseError{File: name, Line: p.lineNo, Err: fmt.Errorf("%w: no OBJECT or SURFACE defined", ErrSyntax)}
	}
	if err = G.finalize(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if G.LogLevel > 0 {
		utils.Logf("%s: %d regions, %d surfaces, %d basis functions\n", name, len(G.Regions), len(G.Surfaces), G.TotalBFs)
	}
	return
}

type parser struct {
	G       *Geometry
	db      *materials.Database
	name    string
	meshDir string
	lineNo  int
	scanner *bufio.Scanner
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return &ParseError{File: p.name, Line: p.lineNo, Err: fmt.Errorf(format, args...)}
}

func (p *parser) wrap(err error) error {
	return &ParseError{File: p.name, Line: p.lineNo, Err: err}
}

// next returns the next non-blank line with comments removed.
func (p *parser) next() (fields []string, raw string, ok bool) {
	for p.scanner.Scan() {
		p.lineNo++
		raw = p.scanner.Text()
		if i := strings.IndexByte(raw, '#'); i >= 0 {
			raw = raw[:i]
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		return strings.Fields(raw), raw, true
	}
	return nil, "", false
}

func (p *parser) run(r io.Reader) (err error) {
	p.scanner = bufio.NewScanner(r)
	for {
		fields, _, ok := p.next()
		if !ok {
			break
		}
		switch keyword := strings.ToUpper(fields[0]); keyword {
		case "MATERIAL":
			if len(fields) != 2 {
				return p.errorf("%w: MATERIAL block needs a name", ErrSyntax)
			}
			err = p.materialBlock(fields[1])
		case "MEDIUM":
			err = p.mediumBlock()
		case "REGION":
			err = p.region(fields)
		case "OBJECT", "SURFACE":
			label := fmt.Sprintf("%s%s%d", keyword[:1], strings.ToLower(keyword[1:]), len(p.G.Surfaces)+1)
			if len(fields) >= 2 {
				label = fields[1]
			}
			err = p.surfaceBlock(label, keyword == "OBJECT")
		case "LATTICE":
			err = p.latticeBlock()
		default:
			err = p.errorf("%w: unknown keyword %s", ErrSyntax, fields[0])
		}
		if err != nil {
			return
		}
	}
	return p.scanner.Err()
}

func (p *parser) materialBlock(name string) error {
	var epsSrc, muSrc string
	start := p.lineNo
	for {
		fields, raw, ok := p.next()
		if !ok {
			p.lineNo = start
			return p.errorf("%w: MATERIAL %s has no ENDMATERIAL", ErrSyntax, name)
		}
		if strings.EqualFold(fields[0], "ENDMATERIAL") {
			break
		}
		eq := strings.IndexByte(raw, '=')
		if eq < 0 {
			return p.errorf("%w: expected EPS = ... or MU = ...", ErrSyntax)
		}
		key := strings.ToUpper(strings.TrimSpace(raw[:eq]))
		value := strings.TrimSpace(raw[eq+1:])
		switch {
		case strings.HasPrefix(key, "EPS"):
			epsSrc = value
		case strings.HasPrefix(key, "MU"):
			muSrc = value
		default:
			return p.errorf("%w: unknown material parameter %s", ErrSyntax, key)
		}
	}
	if _, err := p.db.AddExpression(name, epsSrc, muSrc); err != nil {
		return p.wrap(err)
	}
	return nil
}

func (p *parser) mediumBlock() error {
	for {
		fields, _, ok := p.next()
		if !ok {
			return p.errorf("%w: MEDIUM has no ENDMEDIUM", ErrSyntax)
		}
		switch strings.ToUpper(fields[0]) {
		case "ENDMEDIUM":
			return nil
		case "MATERIAL":
			if len(fields) != 2 {
				return p.errorf("%w: MATERIAL needs a name", ErrSyntax)
			}
			m, err := p.db.Lookup(fields[1])
			if err != nil {
				return p.wrap(err)
			}
			if m.IsPEC() {
				return p.errorf("the exterior medium cannot be PEC")
			}
			p.G.Regions[0].Material = m
		default:
			return p.errorf("%w: unknown MEDIUM keyword %s", ErrSyntax, fields[0])
		}
	}
}

func (p *parser) region(fields []string) error {
	if len(fields) != 4 || !strings.EqualFold(fields[2], "MATERIAL") {
		return p.errorf("%w: syntax is REGION label MATERIAL name", ErrSyntax)
	}
	label := fields[1]
	if strings.EqualFold(label, "PEC") {
		return p.errorf("PEC is not a valid region label")
	}
	m, err := p.db.Lookup(fields[3])
	if err != nil {
		return p.wrap(err)
	}
	if m.IsPEC() {
		return p.errorf("region %s cannot be PEC; use PEC in a REGIONS line instead", label)
	}
	if strings.EqualFold(label, "EXTERIOR") {
		p.G.Regions[0].Material = m
		return nil
	}
	if _, err := p.G.GetRegionByLabel(label); err == nil {
		return p.errorf("duplicate region %s", label)
	}
	p.G.Regions = append(p.G.Regions, &Region{Label: label, Material: m, Index: len(p.G.Regions)})
	return nil
}

func (p *parser) latticeBlock() error {
	var basis []r3.Vec
	for {
		fields, _, ok := p.next()
		if !ok {
			return p.errorf("%w: LATTICE has no ENDLATTICE", ErrSyntax)
		}
		switch strings.ToUpper(fields[0]) {
		case "ENDLATTICE":
			if p.G.Lattice != nil {
				return p.errorf("duplicate LATTICE block")
			}
			L, err := NewLattice(basis...)
			if err != nil {
				return p.wrap(err)
			}
			p.G.Lattice = L
			return nil
		case "VECTOR":
			if len(fields) != 3 {
				return p.errorf("%w: syntax is VECTOR x y", ErrSyntax)
			}
			x, errX := strconv.ParseFloat(fields[1], 64)
			y, errY := strconv.ParseFloat(fields[2], 64)
			if errX != nil || errY != nil {
				return p.errorf("%w: bad lattice vector", ErrSyntax)
			}
			basis = append(basis, r3.Vec{X: x, Y: y})
		default:
			return p.errorf("%w: unknown LATTICE keyword %s", ErrSyntax, fields[0])
		}
	}
}

func (p *parser) surfaceBlock(label string, isObject bool) (err error) {
	var (
		ps = pendingSurface{label: label, isObject: isObject, meshTag: -1, line: p.lineNo}
		kw = "ENDSURFACE"
	)
	if isObject {
		kw = "ENDOBJECT"
	}
	if _, S := p.G.GetSurfaceByLabel(label); S != nil {
		return p.errorf("duplicate surface label %s", label)
	}
	for {
		fields, raw, ok := p.next()
		if !ok {
			p.lineNo = ps.line
			return p.errorf("%w: %s has no %s", ErrSyntax, label, kw)
		}
		keyword := strings.ToUpper(fields[0])
		if keyword == kw {
			break
		}
		switch keyword {
		case "MESHFILE":
			if len(fields) != 2 {
				return p.errorf("%w: MESHFILE needs a file name", ErrSyntax)
			}
			ps.meshFile = fields[1]
		case "MESHTAG", "PHYSICAL_REGION":
			if len(fields) != 2 {
				return p.errorf("%w: %s needs an integer", ErrSyntax, keyword)
			}
			if ps.meshTag, err = strconv.Atoi(fields[1]); err != nil {
				return p.errorf("%w: bad %s %q", ErrSyntax, keyword, fields[1])
			}
		case "MATERIAL":
			if !isObject {
				return p.errorf("%w: SURFACE uses REGIONS, not MATERIAL", ErrSyntax)
			}
			if len(fields) != 2 {
				return p.errorf("%w: MATERIAL needs a name", ErrSyntax)
			}
			ps.material = fields[1]
		case "REGIONS":
			if isObject {
				return p.errorf("%w: OBJECT uses MATERIAL, not REGIONS", ErrSyntax)
			}
			if len(fields) != 3 {
				return p.errorf("%w: syntax is REGIONS exterior interior", ErrSyntax)
			}
			ps.regions = fields[1:]
		case "DISPLACED", "ROTATED":
			t, terr := parseTransformation(keyword, fields[1:])
			if terr != nil {
				return p.errorf("%w: %v", ErrSyntax, terr)
			}
			ps.motions = append(ps.motions, t)
		case "SIGMA":
			ps.sigma = strings.TrimSpace(raw[len(fields[0]):])
		default:
			return p.errorf("%w: unknown keyword %s in %s", ErrSyntax, fields[0], label)
		}
	}
	if ps.meshFile == "" {
		p.lineNo = ps.line
		return p.errorf("%w: %s has no MESHFILE", ErrSyntax, label)
	}
	return p.build(&ps)
}

// build reads the mesh and binds regions for one parsed block.
func (p *parser) build(ps *pendingSurface) (err error) {
	var (
		regionIndex [2]int
		regionLabel [2]string
		isPEC       bool
	)
	if ps.isObject {
		isPEC = ps.material == "" || strings.EqualFold(ps.material, "PEC")
		regionIndex, regionLabel = [2]int{0, -1}, [2]string{p.G.Regions[0].Label, "PEC"}
		if !isPEC {
			var m materials.Material
			if m, err = p.db.Lookup(ps.material); err != nil {
				p.lineNo = ps.line
				return p.wrap(err)
			}
			if m.IsPEC() {
				isPEC = true
			} else {
				R := &Region{Label: ps.label, Material: m, Index: len(p.G.Regions)}
				p.G.Regions = append(p.G.Regions, R)
				regionIndex[1], regionLabel[1] = R.Index, R.Label
			}
		}
	} else {
		for i, label := range ps.regions {
			if i == 1 && strings.EqualFold(label, "PEC") {
				regionIndex[1], regionLabel[1], isPEC = -1, "PEC", true
				continue
			}
			nr, lerr := p.G.GetRegionByLabel(label)
			if lerr != nil {
				p.lineNo = ps.line
				return p.wrap(lerr)
			}
			regionIndex[i], regionLabel[i] = nr, p.G.Regions[nr].Label
		}
		if len(ps.regions) != 2 {
			p.lineNo = ps.line
			return p.errorf("%w: SURFACE %s has no REGIONS line", ErrSyntax, ps.label)
		}
	}
	mesh, err := ReadMesh(ps.meshFile, ps.meshTag, p.meshDir)
	if err != nil {
		p.lineNo = ps.line
		return p.wrap(err)
	}
	S, err := NewSurface(ps.label, mesh, isPEC)
	if err != nil {
		p.lineNo = ps.line
		return p.wrap(err)
	}
	S.MeshFile, S.MeshTag, S.IsObject = ps.meshFile, ps.meshTag, ps.isObject
	S.RegionIndex, S.RegionLabel = regionIndex, regionLabel
	S.declIndex = len(p.G.Surfaces)
	if ps.isObject && !S.IsClosed {
		p.lineNo = ps.line
		return p.errorf("OBJECT %s is not a closed surface; use SURFACE", ps.label)
	}
	if ps.sigma != "" {
		if !isPEC {
			p.lineNo = ps.line
			return p.errorf("SIGMA on %s requires a PEC surface", ps.label)
		}
		if S.Sigma, err = materials.NewExpression(ps.sigma); err != nil {
			p.lineNo = ps.line
			return p.wrap(err)
		}
	}
	for _, t := range ps.motions {
		S.applyMotion(t)
	}
	S.markLoaded()
	p.G.Surfaces = append(p.G.Surfaces, S)
	return nil
}
