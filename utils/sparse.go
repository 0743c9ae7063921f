package utils

import (
	"fmt"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

type DOK struct {
	M        *sparse.DOK
	readOnly bool
	name     string
}

func NewDOK(nr, nc int) (R DOK) {
	R = DOK{
		sparse.NewDOK(nr, nc),
		false,
		"unnamed - hint: pass a variable name to SetReadOnly()",
	}
	return
}

// Dims, At and T minimally satisfy the mat.Matrix interface.
func (m DOK) Dims() (r, c int)    { return m.M.Dims() }
func (m DOK) At(i, j int) float64 { return m.M.At(i, j) }
func (m DOK) T() mat.Matrix       { return m.M.T() }
func (m DOK) NNZ() int            { return m.M.NNZ() }

func (m DOK) Set(i, j int, val float64) {
	m.checkWritable()
	m.M.Set(i, j, val)
}

func (m DOK) Add(i, j int, val float64) {
	if val == 0 {
		return
	}
	m.checkWritable()
	m.M.Set(i, j, m.M.At(i, j)+val)
}

func (m *DOK) SetReadOnly(name ...string) DOK {
	if len(name) != 0 {
		m.name = name[0]
	}
	m.readOnly = true
	return *m
}

func (m DOK) checkWritable() {
	if m.readOnly {
		err := fmt.Errorf("attempt to write to a read only matrix named: \"%v\"", m.name)
		panic(err)
	}
}

// ComplexDOK is a complex sparse matrix held as two real DOK matrices.
type ComplexDOK struct {
	Re, Im DOK
	name   string
}

func NewComplexDOK(nr, nc int, nameO ...string) (R *ComplexDOK) {
	R = &ComplexDOK{Re: NewDOK(nr, nc), Im: NewDOK(nr, nc), name: "unnamed"}
	if len(nameO) != 0 {
		R.name = nameO[0]
	}
	return
}

func (m *ComplexDOK) Name() string     { return m.name }
func (m *ComplexDOK) Dims() (r, c int) { return m.Re.Dims() }

func (m *ComplexDOK) At(i, j int) complex128 {
	return complex(m.Re.At(i, j), m.Im.At(i, j))
}

func (m *ComplexDOK) Set(i, j int, v complex128) {
	m.Re.Set(i, j, real(v))
	m.Im.Set(i, j, imag(v))
}

func (m *ComplexDOK) Add(i, j int, v complex128) {
	m.Re.Add(i, j, real(v))
	m.Im.Add(i, j, imag(v))
}

// SetReadOnly freezes both parts; later writes panic.
func (m *ComplexDOK) SetReadOnly() *ComplexDOK {
	m.Re.SetReadOnly(m.name + " (real)")
	m.Im.SetReadOnly(m.name + " (imag)")
	return m
}

// NNZ counts the nonzero entries.
func (m *ComplexDOK) NNZ() (n int) {
	seen := make(map[[2]int]struct{})
	m.DoNonZero(func(i, j int, _ complex128) {
		seen[[2]int{i, j}] = struct{}{}
	})
	return len(seen)
}

// DoNonZero visits every nonzero entry once in unspecified order.
func (m *ComplexDOK) DoNonZero(fn func(i, j int, v complex128)) {
	seen := make(map[[2]int]struct{})
	visit := func(i, j int, _ float64) {
		key := [2]int{i, j}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		if v := m.At(i, j); v != 0 {
			fn(i, j, v)
		}
	}
	m.Re.M.DoNonZero(visit)
	m.Im.M.DoNonZero(visit)
}

// BilinearForm returns conj(x)^T M y.
func (m *ComplexDOK) BilinearForm(x, y []complex128) (sum complex128) {
	m.DoNonZero(func(i, j int, v complex128) {
		sum += complex(real(x[i]), -imag(x[i])) * v * y[j]
	})
	return
}
