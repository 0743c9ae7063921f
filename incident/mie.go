package incident

import (
	"math"
	"math/cmplx"

	"github.com/notargets/gobem/utils"
)

// sphericalBessel returns j_n(x) and y_n(x) for n = 0..nmax. j_n is computed
// by downward recurrence normalized to j_0, y_n by upward recurrence.
func sphericalBessel(nmax int, x float64) (j, y []float64) {
	var (
		start = nmax + int(math.Sqrt(40*float64(nmax+1))) + 20
		jp1   = 0.
		jn    = 1.e-300
	)
	j = make([]float64, nmax+1)
	y = make([]float64, nmax+1)
	for n := start; n > 0; n-- {
		jm1 := float64(2*n+1)/x*jn - jp1
		if n-1 <= nmax {
			j[n-1] = jm1
		}
		jp1, jn = jn, jm1
		if math.Abs(jn) > 1.e250 {
			jp1 *= 1.e-250
			jn *= 1.e-250
			for i := n - 1; i <= nmax; i++ {
				j[i] *= 1.e-250
			}
		}
	}
	scale := math.Sin(x) / x / j[0]
	for n := range j {
		j[n] *= scale
	}
	y[0] = -math.Cos(x) / x
	if nmax > 0 {
		y[1] = -math.Cos(x)/(x*x) - math.Sin(x)/x
	}
	for n := 1; n < nmax; n++ {
		y[n+1] = float64(2*n+1)/x*y[n] - y[n-1]
	}
	return
}

// MiePECCrossSection returns the scattering cross section of a perfectly
// conducting sphere of radius R at wavenumber k,
//
//	sigma = (2 pi / k^2) sum_n (2n+1) (|a_n|^2 + |b_n|^2)
//	a_n = j_n(x) / h_n(x),  b_n = [x j_n(x)]' / [x h_n(x)]'
//
// with x = kR and h_n = j_n + i y_n.
func MiePECCrossSection(k, R float64) (sigma float64) {
	var (
		x    = k * R
		nmax = int(x+4*math.Cbrt(x)) + 2
	)
	j, y := sphericalBessel(nmax, x)
	for n := 1; n <= nmax; n++ {
		var (
			h   = complex(j[n], y[n])
			dj  = x*j[n-1] - float64(n)*j[n]
			dh  = complex(x*j[n-1]-float64(n)*j[n], x*y[n-1]-float64(n)*y[n])
			an  = complex(j[n], 0) / h
			bn  = complex(dj, 0) / dh
			sum = cmplx.Abs(an)*cmplx.Abs(an) + cmplx.Abs(bn)*cmplx.Abs(bn)
		)
		sigma += float64(2*n+1) * sum
	}
	return 2 * math.Pi / (k * k) * sigma
}

// MiePECPower returns the power scattered by a PEC sphere from a plane wave
// of amplitude E0.
func MiePECPower(k, R, E0 float64) float64 {
	return MiePECCrossSection(k, R) * E0 * E0 / (2 * utils.ZVAC)
}

// MieDielectricCrossSection returns the scattering cross section of a
// lossless dielectric sphere of radius R and refractive index m relative to
// the exterior medium, at exterior wavenumber k:
//
//	a_n = [m psi_n(mx) psi_n'(x) - psi_n(x) psi_n'(mx)] / [m psi_n(mx) xi_n'(x) - xi_n(x) psi_n'(mx)]
//	b_n = [psi_n(mx) psi_n'(x) - m psi_n(x) psi_n'(mx)] / [psi_n(mx) xi_n'(x) - m xi_n(x) psi_n'(mx)]
//
// with psi_n(z) = z j_n(z) and xi_n(z) = z h_n(z).
func MieDielectricCrossSection(k, R, m float64) (sigma float64) {
	var (
		x    = k * R
		mx   = m * x
		nmax = int(math.Max(x, mx)+4*math.Cbrt(math.Max(x, mx))) + 2
	)
	j, y := sphericalBessel(nmax, x)
	jm, _ := sphericalBessel(nmax, mx)
	for n := 1; n <= nmax; n++ {
		var (
			fn  = float64(n)
			psi = complex(x*j[n], 0)
			dps = complex(x*j[n-1]-fn*j[n], 0)
			xi  = complex(x*j[n], x*y[n])
			dxi = complex(x*j[n-1]-fn*j[n], x*y[n-1]-fn*y[n])
			pm  = complex(mx*jm[n], 0)
			dpm = complex(mx*jm[n-1]-fn*jm[n], 0)
			cm  = complex(m, 0)
			an  = (cm*pm*dps - psi*dpm) / (cm*pm*dxi - xi*dpm)
			bn  = (pm*dps - cm*psi*dpm) / (pm*dxi - cm*xi*dpm)
			sum = cmplx.Abs(an)*cmplx.Abs(an) + cmplx.Abs(bn)*cmplx.Abs(bn)
		)
		sigma += float64(2*n+1) * sum
	}
	return 2 * math.Pi / (k * k) * sigma
}
