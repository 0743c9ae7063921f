package incident

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gobem/utils"
)

var (
	ErrNotTransverse = errors.New("plane wave polarization is not transverse to the propagation direction")
)

// PlaneWave is E(x) = E0 exp(i k KHat.x) in the exterior medium. E0 is in
// volts per meter.
type PlaneWave struct {
	E0   utils.CVec
	KHat r3.Vec
}

func NewPlaneWave(E0 utils.CVec, kHat r3.Vec) (pw *PlaneWave, err error) {
	var (
		n = r3.Norm(kHat)
	)
	if n == 0 {
		return nil, fmt.Errorf("plane wave direction is zero")
	}
	kHat = r3.Scale(1/n, kHat)
	var e0 float64
	for _, c := range E0 {
		e0 += real(c * cmplx.Conj(c))
	}
	if e0 == 0 {
		return nil, fmt.Errorf("plane wave amplitude is zero")
	}
	if cmplx.Abs(E0.Dot(kHat)) > 1.e-10*math.Sqrt(e0) {
		return nil, ErrNotTransverse
	}
	return &PlaneWave{E0: E0, KHat: kHat}, nil
}

// Amplitude returns |E0|.
func (pw *PlaneWave) Amplitude() (a float64) {
	for _, c := range pw.E0 {
		a += real(c * cmplx.Conj(c))
	}
	return math.Sqrt(a)
}

// Fields returns E and H at X in a medium of relative eps and mu.
// H = (KHat x E) / (ZVAC sqrt(mu/eps)).
func (pw *PlaneWave) Fields(X r3.Vec, omega, eps, mu complex128) (E, H utils.CVec) {
	var (
		k     = omega * cmplx.Sqrt(eps*mu)
		phase = cmplx.Exp(1i * k * complex(r3.Dot(pw.KHat, X), 0))
		z     = complex(utils.ZVAC, 0) * cmplx.Sqrt(mu/eps)
	)
	E = pw.E0.Scale(phase)
	H = utils.CrossRC(pw.KHat, E).Scale(1 / z)
	return
}
