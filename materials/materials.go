package materials

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gobem/utils"
)

// Material supplies the relative permittivity and permeability at angular
// frequency omega, given in units of utils.FreqUnit rad/s.
type Material interface {
	Name() string
	GetEpsMu(omega complex128) (eps, mu complex128)
	IsPEC() bool
}

type Vacuum struct{}

func (Vacuum) Name() string                             { return "VACUUM" }
func (Vacuum) GetEpsMu(complex128) (eps, mu complex128) { return 1, 1 }
func (Vacuum) IsPEC() bool                              { return false }

// PEC marks a perfect electric conductor. Its eps/mu are never used by the
// matrix assembly; the values returned keep downstream arithmetic finite.
type PEC struct{}

func (PEC) Name() string                             { return "PEC" }
func (PEC) GetEpsMu(complex128) (eps, mu complex128) { return -1.e30, 1 }
func (PEC) IsPEC() bool                              { return true }

type Constant struct {
	Label   string
	Eps, Mu complex128
}

func (c *Constant) Name() string                             { return c.Label }
func (c *Constant) GetEpsMu(complex128) (eps, mu complex128) { return c.Eps, c.Mu }
func (c *Constant) IsPEC() bool                              { return false }

// Drude is eps(w) = 1 - wp^2/(w (w + i gamma)) with w, wp, gamma in rad/s.
type Drude struct {
	Label     string
	WP, Gamma float64
}

func (d *Drude) Name() string { return d.Label }
func (d *Drude) IsPEC() bool  { return false }
func (d *Drude) GetEpsMu(omega complex128) (eps, mu complex128) {
	w := omega * utils.FreqUnit
	return 1 - complex(d.WP*d.WP, 0)/(w*(w+complex(0, d.Gamma))), 1
}

// ExpressionMaterial evaluates EPS and MU programs of w (rad/s). A nil
// program means 1.
type ExpressionMaterial struct {
	Label   string
	Eps, Mu *Expression
}

func (m *ExpressionMaterial) Name() string { return m.Label }
func (m *ExpressionMaterial) IsPEC() bool  { return false }
func (m *ExpressionMaterial) GetEpsMu(omega complex128) (eps, mu complex128) {
	var (
		w = omega * utils.FreqUnit
	)
	eps, mu = 1, 1
	if m.Eps != nil {
		eps = m.Eps.mustEval(w, r3.Vec{}, 1)
	}
	if m.Mu != nil {
		mu = m.Mu.mustEval(w, r3.Vec{}, 1)
	}
	return
}

// Database resolves material names case-insensitively. Built in names are
// VACUUM, PEC, GOLD and CONST_EPS_x[_MU_y].
type Database struct {
	entries map[string]Material
}

func NewDatabase() (db *Database) {
	db = &Database{entries: make(map[string]Material)}
	db.Add(Vacuum{})
	db.Add(PEC{})
	db.Add(&Drude{Label: "GOLD", WP: 1.37e16, Gamma: 5.32e13})
	return
}

func (db *Database) Add(m Material) {
	db.entries[strings.ToUpper(m.Name())] = m
}

// AddExpression defines a named material from EPS/MU program text; an empty
// string leaves that parameter at 1.
func (db *Database) AddExpression(name, epsSrc, muSrc string) (m *ExpressionMaterial, err error) {
	m = &ExpressionMaterial{Label: name}
	if epsSrc != "" {
		if m.Eps, err = NewExpression(epsSrc); err != nil {
			return nil, fmt.Errorf("material %s EPS: %w", name, err)
		}
	}
	if muSrc != "" {
		if m.Mu, err = NewExpression(muSrc); err != nil {
			return nil, fmt.Errorf("material %s MU: %w", name, err)
		}
	}
	db.Add(m)
	return
}

func (db *Database) Lookup(name string) (m Material, err error) {
	var (
		ok  bool
		key = strings.ToUpper(name)
	)
	if m, ok = db.entries[key]; ok {
		return
	}
	if strings.HasPrefix(key, "CONST_EPS_") {
		if m, err = parseConstName(name); err != nil {
			return nil, err
		}
		db.Add(m)
		return
	}
	return nil, fmt.Errorf("unknown material %q", name)
}

func (db *Database) Names() (names []string) {
	for _, m := range db.entries {
		names = append(names, m.Name())
	}
	sort.Strings(names)
	return
}

func parseConstName(name string) (m Material, err error) {
	var (
		c    = &Constant{Label: name, Eps: 1, Mu: 1}
		rest = name[len("CONST_EPS_"):]
	)
	epsStr, muStr := rest, ""
	if i := strings.Index(strings.ToUpper(rest), "_MU_"); i >= 0 {
		epsStr, muStr = rest[:i], rest[i+len("_MU_"):]
	}
	if c.Eps, err = strconv.ParseComplex(epsStr, 128); err != nil {
		return nil, fmt.Errorf("material %q: bad permittivity %q", name, epsStr)
	}
	if muStr != "" {
		if c.Mu, err = strconv.ParseComplex(muStr, 128); err != nil {
			return nil, fmt.Errorf("material %q: bad permeability %q", name, muStr)
		}
	}
	return c, nil
}
