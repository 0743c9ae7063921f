package interaction

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gobem/utils"
)

// Config holds the numerical parameters of the kernel.
type Config struct {
	// Displaced-panel extrapolation: NumSamples offsets z_n = DeltaZ*Ratio^n
	// along the normal of panel b, DeltaZ = DeltaZFraction*radius(b), fitted
	// by a least-squares polynomial of the given Degree. With LogTerm the
	// quadratic term gives way to z log z, which the moments of panels
	// meeting at an edge carry.
	NumSamples     int
	Degree         int
	DeltaZFraction float64
	Ratio          float64
	LogTerm        bool
	// Panels closer than NearFieldRatio*radius are extrapolated even when
	// they share no vertex.
	NearFieldRatio float64
	// Cubature tiers by centroid distance in units of the larger radius.
	FarRatio, MidRatio float64
	// Base moments of close pairs: a cell of panel a is split while it is
	// closer than OuterRatio*radius(cell) to the boundary of panel b and
	// larger than OuterMinFraction*radius(a). The smooth remainder is
	// integrated over InnerLevels uniform subdivisions of panel b.
	OuterRatio       float64
	OuterMinFraction float64
	MaxOuterCells    int
	InnerLevels      int
	// Derivative moments of close pairs.
	ConicalOrder     int     // Gauss-Legendre order of the outer rule
	SubdivisionRatio float64 // a source cell is accepted when dist >= ratio*radius
	MaxEvals         int     // evaluation budget of one adaptive inner integral
	MaxCacheEntries  int
	DisableCache       bool
	// ForceExtrapolation and ForceRegular override the choice of path.
	ForceExtrapolation bool
	ForceRegular       bool
}

func DefaultConfig() Config {
	return Config{
		NumSamples:       10,
		Degree:           4,
		DeltaZFraction:   0.01,
		Ratio:            1.2,
		LogTerm:          true,
		NearFieldRatio:   1.e-3,
		FarRatio:         10,
		MidRatio:         4,
		OuterRatio:       1,
		OuterMinFraction: 1.e-3,
		MaxOuterCells:    1 << 14,
		ConicalOrder:     3,
		SubdivisionRatio: 3,
		MaxEvals:         20000,
		MaxCacheEntries:  1 << 18,
	}
}

func (cfg Config) validate() error {
	switch {
	case cfg.NumSamples < 2:
		return fmt.Errorf("interaction: need at least two extrapolation samples, have %d", cfg.NumSamples)
	case cfg.Degree < 0 || cfg.Degree >= cfg.NumSamples:
		return fmt.Errorf("interaction: extrapolation degree %d must be below the sample count %d",
			cfg.Degree, cfg.NumSamples)
	case cfg.Ratio <= 1:
		return fmt.Errorf("interaction: displacement ratio %g must exceed one", cfg.Ratio)
	case cfg.DeltaZFraction <= 0:
		return fmt.Errorf("interaction: DeltaZFraction %g must be positive", cfg.DeltaZFraction)
	case cfg.MidRatio <= 0 || cfg.FarRatio < cfg.MidRatio:
		return fmt.Errorf("interaction: tier ratios far=%g mid=%g out of order", cfg.FarRatio, cfg.MidRatio)
	case cfg.OuterRatio <= 0 || cfg.OuterMinFraction <= 0:
		return fmt.Errorf("interaction: outer subdivision ratio %g and minimum %g must be positive",
			cfg.OuterRatio, cfg.OuterMinFraction)
	case cfg.MaxOuterCells < 1:
		return fmt.Errorf("interaction: outer cell budget %d", cfg.MaxOuterCells)
	case cfg.InnerLevels < 0 || cfg.InnerLevels > 6:
		return fmt.Errorf("interaction: inner subdivision levels %d out of range [0,6]", cfg.InnerLevels)
	case cfg.ConicalOrder < 1:
		return fmt.Errorf("interaction: conical order %d", cfg.ConicalOrder)
	case cfg.SubdivisionRatio <= 0:
		return fmt.Errorf("interaction: subdivision ratio %g", cfg.SubdivisionRatio)
	case cfg.MaxEvals < 7:
		return fmt.Errorf("interaction: evaluation budget %d too small", cfg.MaxEvals)
	case cfg.ForceExtrapolation && cfg.ForceRegular:
		return fmt.Errorf("interaction: ForceExtrapolation and ForceRegular are exclusive")
	}
	return nil
}

// Context carries everything the kernel shares between calls: rules,
// extrapolation weights and the panel-pair cache. A Context is safe for
// concurrent use.
type Context struct {
	ID      string // tags the log lines and Stats of this context
	cfg     Config
	weights []float64

	far, mid, leaf, outer *utils.TriRule

	cache        sync.Map // pairKey -> *[blockLen]complex128
	entries      atomic.Int64
	hits, misses atomic.Int64
	nonConverged atomic.Int64
}

func NewContext(cfg Config) (ctx *Context, err error) {
	if err = cfg.validate(); err != nil {
		return
	}
	ctx = &Context{
		ID:    uuid.New().String(),
		cfg:   cfg,
		far:   utils.CentroidRule3(),
		mid:   utils.RadonRule7(),
		leaf:  utils.RadonRule7(),
		outer: utils.ConicalRule(cfg.ConicalOrder),
	}
	if ctx.weights, err = extrapolationWeights(cfg.NumSamples, cfg.Degree, cfg.Ratio, cfg.LogTerm); err != nil {
		return nil, err
	}
	return
}

func (ctx *Context) Config() Config { return ctx.cfg }

// extrapolationWeights returns w such that sum_n w_n f(t_n) is the constant
// term of the least-squares fit through the samples at t_n = ratio^n. The
// basis is 1, t, ..., t^degree, or 1, t, t log t, t^2, ..., t^(degree-1)
// with logTerm.
func extrapolationWeights(n, degree int, ratio float64, logTerm bool) (w []float64, err error) {
	var (
		V = mat.NewDense(n, degree+1, nil)
		I = mat.NewDense(n, n, nil)
		X mat.Dense
		t = 1.
	)
	for i := 0; i < n; i++ {
		p := 1.
		for j := 0; j <= degree; j++ {
			if logTerm && j == 2 {
				V.Set(i, j, t*math.Log(t))
				continue
			}
			V.Set(i, j, p)
			p *= t
		}
		I.Set(i, i, 1)
		t *= ratio
	}
	if err = X.Solve(V, I); err != nil {
		return nil, fmt.Errorf("interaction: extrapolation fit: %w", err)
	}
	w = make([]float64, n)
	for i := range w {
		w[i] = X.At(0, i)
	}
	return
}

type Stats struct {
	ID           string
	Hits, Misses int64
	Entries      int64
	NonConverged int64
}

func (s Stats) String() string {
	var rate float64
	if s.Hits+s.Misses > 0 {
		rate = 100 * float64(s.Hits) / float64(s.Hits+s.Misses)
	}
	return fmt.Sprintf("context %s: %d entries, %d hits, %d misses (%.1f%% hit rate), %d unconverged integrals",
		s.ID, s.Entries, s.Hits, s.Misses, rate, s.NonConverged)
}

// Stats reports the cache counters. The counters are advisory.
func (ctx *Context) Stats() Stats {
	return Stats{
		ID:           ctx.ID,
		Hits:         ctx.hits.Load(),
		Misses:       ctx.misses.Load(),
		Entries:      ctx.entries.Load(),
		NonConverged: ctx.nonConverged.Load(),
	}
}

// ResetCache drops every cached panel pair, keeping the counters.
func (ctx *Context) ResetCache() {
	ctx.cache.Range(func(key, _ any) bool {
		ctx.cache.Delete(key)
		return true
	})
	ctx.entries.Store(0)
}

func (ctx *Context) lookup(key pairKey) (blk *[blockLen]complex128, ok bool) {
	v, found := ctx.cache.Load(key)
	if !found {
		ctx.misses.Add(1)
		return
	}
	ctx.hits.Add(1)
	return v.(*[blockLen]complex128), true
}

func (ctx *Context) store(key pairKey, blk *[blockLen]complex128) {
	if _, loaded := ctx.cache.LoadOrStore(key, blk); loaded {
		return
	}
	if ctx.entries.Add(1) > int64(ctx.cfg.MaxCacheEntries) {
		ctx.ResetCache()
	}
}
