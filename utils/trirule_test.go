package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestTriRules(t *testing.T) {
	// mean of u^a v^b over the reference triangle: 2 a! b! / (a+b+2)!
	mean := func(a, b int) float64 {
		fact := func(n int) float64 {
			f := 1.
			for i := 2; i <= n; i++ {
				f *= float64(i)
			}
			return f
		}
		return 2 * fact(a) * fact(b) / fact(a+b+2)
	}
	apply := func(r *TriRule, a, b int) (s float64) {
		for n := range r.W {
			s += r.W[n] * math.Pow(r.U[n], float64(a)) * math.Pow(r.V[n], float64(b))
		}
		return
	}
	{ // Case: weights sum to one
		for _, r := range []*TriRule{CentroidRule3(), RadonRule7(), ConicalRule(3), ConicalRule(5)} {
			assert.InDelta(t, 1, apply(r, 0, 0), 1.e-14)
		}
	}
	{ // Case: polynomial exactness
		assert.InDelta(t, mean(2, 0), apply(CentroidRule3(), 2, 0), 1.e-14)
		assert.InDelta(t, mean(1, 1), apply(CentroidRule3(), 1, 1), 1.e-14)
		assert.InDelta(t, mean(2, 3), apply(RadonRule7(), 2, 3), 1.e-14)
		assert.InDelta(t, mean(5, 0), apply(RadonRule7(), 5, 0), 1.e-14)
		assert.InDelta(t, mean(2, 2), apply(ConicalRule(3), 2, 2), 1.e-14)
		assert.InDelta(t, mean(4, 4), apply(ConicalRule(5), 4, 4), 1.e-14)
	}
	{ // Case: physical nodes carry the triangle area
		T := [3]r3.Vec{{}, {X: 2}, {Y: 3}}
		var area float64
		for _, n := range RadonRule7().Nodes(T, 3, nil) {
			area += n.W
		}
		assert.InDelta(t, 3, area, 1.e-13)
	}
}
