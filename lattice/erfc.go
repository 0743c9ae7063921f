package lattice

import (
	"math"
	"math/cmplx"
)

const (
	eulerGamma = 0.57721566490153286061
	maxTerms   = 500
	epsilon    = 1.e-16
	tiny       = 1.e-300
)

var twoOverSqrtPi = 2 / math.Sqrt(math.Pi)

// Erfc is the complementary error function of a complex argument.
//
// Inside |z| < 3, and in a strip about the imaginary axis where the
// continued fraction converges poorly, a power series is summed: the
// Maclaurin series of erf when z is closer to the imaginary axis, and the
// Kummer form erf z = 2z/sqrt(pi) exp(-z^2) sum (2z^2)^n/(2n+1)!! near the
// real axis, which has no cancellation there. Elsewhere the Laplace
// continued fraction is evaluated in the right half plane and reflected for
// Re z < 0.
func Erfc(z complex128) complex128 {
	switch {
	case cmplx.IsNaN(z):
		return cmplx.NaN()
	case useSeries(z):
		return 1 - erfSeries(z)
	case real(z) < 0:
		return 2 - erfcFraction(-z)
	}
	return erfcFraction(z)
}

// Erf is 1 - Erfc(z).
func Erf(z complex128) complex128 {
	if useSeries(z) {
		return erfSeries(z)
	}
	return 1 - Erfc(z)
}

func useSeries(z complex128) bool {
	r := cmplx.Abs(z)
	return r < 3 || (math.Abs(real(z)) < 0.5 && r < 12)
}

func erfSeries(z complex128) (sum complex128) {
	z2 := z * z
	if math.Abs(real(z)) >= math.Abs(imag(z)) {
		term := z
		sum = term
		for n := 1; n < maxTerms; n++ {
			term *= 2 * z2 / complex(float64(2*n+1), 0)
			sum += term
			if cmplx.Abs(term) < epsilon*cmplx.Abs(sum) {
				break
			}
		}
		return complex(twoOverSqrtPi, 0) * cmplx.Exp(-z2) * sum
	}
	// z^(2n+1) (-1)^n / (n! (2n+1))
	power := z
	sum = z
	for n := 1; n < maxTerms; n++ {
		power *= -z2 / complex(float64(n), 0)
		term := power / complex(float64(2*n+1), 0)
		sum += term
		if cmplx.Abs(term) < epsilon*cmplx.Abs(sum) {
			break
		}
	}
	return complex(twoOverSqrtPi, 0) * sum
}

// erfcFraction evaluates
//
//	erfc z = exp(-z^2)/sqrt(pi) * 1/(z + (1/2)/(z + 1/(z + (3/2)/(z + ...))))
//
// by the modified Lentz method. Re z >= 0.
func erfcFraction(z complex128) complex128 {
	var (
		f = z
		C = z
		D complex128
	)
	if f == 0 {
		f = tiny
		C = tiny
	}
	for n := 1; n < maxTerms; n++ {
		a := complex(0.5*float64(n), 0)
		D = z + a*D
		if D == 0 {
			D = tiny
		}
		C = z + a/C
		if C == 0 {
			C = tiny
		}
		D = 1 / D
		delta := C * D
		f *= delta
		if cmplx.Abs(delta-1) < epsilon {
			break
		}
	}
	return cmplx.Exp(-z*z) / (complex(math.Sqrt(math.Pi), 0) * f)
}

// ExpIntegralE is the generalized exponential integral
//
//	E_n(z) = int_1^inf exp(-z t) / t^n dt
//
// for n >= 0. For Re z > 1 the continued fraction is used, otherwise the
// power series about zero. The branch cut of E_1 lies along the negative
// real axis; the sign of a zero imaginary part selects the side.
func ExpIntegralE(n int, z complex128) complex128 {
	switch {
	case n < 0:
		return cmplx.NaN()
	case n == 0:
		return cmplx.Exp(-z) / z
	case z == 0:
		if n == 1 {
			return cmplx.Inf()
		}
		return complex(1/float64(n-1), 0)
	case real(z) > 1:
		return expIntFraction(n, z)
	}
	return expIntSeries(n, z)
}

func expIntFraction(n int, z complex128) complex128 {
	var (
		b = z + complex(float64(n), 0)
		c = complex(1/tiny, 0)
		d = 1 / b
		h = d
	)
	for i := 1; i < maxTerms; i++ {
		an := complex(-float64(i*(n-1+i)), 0)
		b += 2
		d = 1 / (an*d + b)
		c = b + an/c
		del := c * d
		h *= del
		if cmplx.Abs(del-1) < epsilon {
			break
		}
	}
	return h * cmplx.Exp(-z)
}

func expIntSeries(n int, z complex128) (sum complex128) {
	var (
		nm1  = n - 1
		fact = complex(1, 0)
		logZ = cmplx.Log(z)
	)
	if nm1 != 0 {
		sum = complex(1/float64(nm1), 0)
	} else {
		sum = -logZ - eulerGamma
	}
	for i := 1; i < maxTerms; i++ {
		fact *= -z / complex(float64(i), 0)
		var del complex128
		if i != nm1 {
			del = -fact / complex(float64(i-nm1), 0)
		} else {
			psi := -eulerGamma
			for ii := 1; ii <= nm1; ii++ {
				psi += 1 / float64(ii)
			}
			del = fact * (-logZ + complex(psi, 0))
		}
		sum += del
		if cmplx.Abs(del) < epsilon*cmplx.Abs(sum) {
			break
		}
	}
	return
}
