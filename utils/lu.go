package utils

import (
	"errors"
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

var ErrSingular = errors.New("matrix is singular to working precision")

type luFactors struct {
	real *mat.LU
	// complex factors, row-major, unit-lower L below the diagonal
	data []complex128
	piv  []int
}

// LUFactorize factors the matrix in place of its cached factorization. Real
// matrices use gonum's LAPACK-backed LU; complex matrices use a partial
// pivoting Doolittle factorization on a row-major copy.
func (m *HMatrix) LUFactorize() (err error) {
	if m.NR != m.NC {
		return fmt.Errorf("cannot factor non-square matrix %s [%dx%d]", m.name, m.NR, m.NC)
	}
	var (
		n = m.NR
	)
	if m.Kind == RealKind {
		var (
			lu  = &mat.LU{}
			src mat.Matrix
		)
		if m.re != nil {
			src = m.re
		} else {
			src = m.sym
		}
		lu.Factorize(src)
		if lu.Det() == 0 {
			return ErrSingular
		}
		m.lu = &luFactors{real: lu}
		return
	}
	var (
		a   = make([]complex128, n*n)
		piv = make([]int, n)
	)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a[i*n+j] = m.Get(i, j)
		}
	}
	for k := 0; k < n; k++ {
		p, pmax := k, cmplx.Abs(a[k*n+k])
		for i := k + 1; i < n; i++ {
			if v := cmplx.Abs(a[i*n+k]); v > pmax {
				p, pmax = i, v
			}
		}
		if pmax == 0 {
			return ErrSingular
		}
		piv[k] = p
		if p != k {
			for j := 0; j < n; j++ {
				a[k*n+j], a[p*n+j] = a[p*n+j], a[k*n+j]
			}
		}
		inv := 1 / a[k*n+k]
		for i := k + 1; i < n; i++ {
			l := a[i*n+k] * inv
			a[i*n+k] = l
			if l == 0 {
				continue
			}
			for j := k + 1; j < n; j++ {
				a[i*n+j] -= l * a[k*n+j]
			}
		}
	}
	m.lu = &luFactors{data: a, piv: piv}
	return
}

// LUSolve overwrites b with the solution of M x = b. LUFactorize must have
// been called since the last modification of M.
func (m *HMatrix) LUSolve(b []complex128) (err error) {
	if m.lu == nil {
		return fmt.Errorf("matrix %s has not been factorized", m.name)
	}
	if len(b) != m.NR {
		return fmt.Errorf("dimension mismatch: matrix %d rows, rhs length %d", m.NR, len(b))
	}
	var (
		n = m.NR
	)
	if lu := m.lu.real; lu != nil {
		var (
			bre = mat.NewVecDense(n, nil)
			bim = mat.NewVecDense(n, nil)
			xre = mat.NewVecDense(n, nil)
			xim = mat.NewVecDense(n, nil)
		)
		for i, v := range b {
			bre.SetVec(i, real(v))
			bim.SetVec(i, imag(v))
		}
		if err = lu.SolveVecTo(xre, false, bre); err != nil {
			return
		}
		if err = lu.SolveVecTo(xim, false, bim); err != nil {
			return
		}
		for i := range b {
			b[i] = complex(xre.AtVec(i), xim.AtVec(i))
		}
		return
	}
	a, piv := m.lu.data, m.lu.piv
	for k := 0; k < n; k++ {
		if p := piv[k]; p != k {
			b[k], b[p] = b[p], b[k]
		}
	}
	for i := 1; i < n; i++ {
		var sum = b[i]
		for j := 0; j < i; j++ {
			sum -= a[i*n+j] * b[j]
		}
		b[i] = sum
	}
	for i := n - 1; i >= 0; i-- {
		var sum = b[i]
		for j := i + 1; j < n; j++ {
			sum -= a[i*n+j] * b[j]
		}
		b[i] = sum / a[i*n+i]
	}
	return
}
