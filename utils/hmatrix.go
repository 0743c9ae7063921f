package utils

import (
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

type Kind uint8

const (
	RealKind Kind = iota
	ComplexKind
)

type Storage uint8

const (
	Normal Storage = iota
	PackedSymmetric
)

// HMatrix is the dense system-matrix storage. Real matrices live in a
// mat.Dense (or mat.SymDense when packed), complex ones in a mat.CDense or
// in a packed upper triangle. Entries are always read and written as
// complex128; real storage keeps only the real part.
type HMatrix struct {
	NR, NC  int
	Kind    Kind
	Storage Storage
	re      *mat.Dense
	sym     *mat.SymDense
	cx      *mat.CDense
	packed  []complex128
	lu      *luFactors
	name    string
}

func NewHMatrix(nr, nc int, kind Kind, storageO ...Storage) (m *HMatrix) {
	var (
		storage = Normal
	)
	if len(storageO) != 0 {
		storage = storageO[0]
	}
	if storage == PackedSymmetric && nr != nc {
		panic(fmt.Errorf("packed symmetric storage requires a square matrix, have %dx%d", nr, nc))
	}
	m = &HMatrix{NR: nr, NC: nc, Kind: kind, Storage: storage, name: "unnamed"}
	switch {
	case kind == RealKind && storage == Normal:
		m.re = mat.NewDense(nr, nc, make([]float64, nr*nc))
	case kind == RealKind && storage == PackedSymmetric:
		m.sym = mat.NewSymDense(nr, make([]float64, nr*nr))
	case kind == ComplexKind && storage == Normal:
		m.cx = mat.NewCDense(nr, nc, make([]complex128, nr*nc))
	case kind == ComplexKind && storage == PackedSymmetric:
		m.packed = make([]complex128, nr*(nr+1)/2)
	}
	return
}

func (m *HMatrix) SetName(name string) *HMatrix {
	m.name = name
	return m
}

func (m *HMatrix) Name() string      { return m.name }
func (m *HMatrix) Dims() (r, c int)  { return m.NR, m.NC }
func (m *HMatrix) IsReal() bool      { return m.Kind == RealKind }
func (m *HMatrix) IsSymmetric() bool { return m.Storage == PackedSymmetric }

func packedIndex(i, j int) int {
	if i > j {
		i, j = j, i
	}
	return j*(j+1)/2 + i
}

func (m *HMatrix) Get(i, j int) complex128 {
	switch {
	case m.re != nil:
		return complex(m.re.At(i, j), 0)
	case m.sym != nil:
		return complex(m.sym.At(i, j), 0)
	case m.cx != nil:
		return m.cx.At(i, j)
	default:
		return m.packed[packedIndex(i, j)]
	}
}

func (m *HMatrix) Set(i, j int, v complex128) {
	m.lu = nil
	switch {
	case m.re != nil:
		m.re.Set(i, j, real(v))
	case m.sym != nil:
		m.sym.SetSym(i, j, real(v))
	case m.cx != nil:
		m.cx.Set(i, j, v)
	default:
		m.packed[packedIndex(i, j)] = v
	}
}

func (m *HMatrix) Add(i, j int, v complex128) {
	m.Set(i, j, m.Get(i, j)+v)
}

func (m *HMatrix) Zero() {
	m.lu = nil
	switch {
	case m.re != nil:
		m.re.Zero()
	case m.sym != nil:
		m.sym.Zero()
	case m.cx != nil:
		m.cx.Zero()
	default:
		for i := range m.packed {
			m.packed[i] = 0
		}
	}
}

// ZeroBlock zeroes the nr x nc block starting at (r0, c0).
func (m *HMatrix) ZeroBlock(r0, nr, c0, nc int) {
	for i := r0; i < r0+nr; i++ {
		for j := c0; j < c0+nc; j++ {
			m.Set(i, j, 0)
		}
	}
}

// ExtractBlock copies the block of m starting at (r0, c0) into B, filling all of B.
func (m *HMatrix) ExtractBlock(r0, c0 int, B *HMatrix) {
	for i := 0; i < B.NR; i++ {
		for j := 0; j < B.NC; j++ {
			B.Set(i, j, m.Get(r0+i, c0+j))
		}
	}
}

// InsertBlock copies all of B into m with B's (0,0) landing at (r0, c0).
func (m *HMatrix) InsertBlock(B *HMatrix, r0, c0 int) {
	m.CopyBlock(B, r0, c0, B.NR, B.NC, 0, 0)
}

// CopyBlock copies the nr x nc block of src starting at (sr0, sc0) into m at
// (r0, c0). src may be m itself when the blocks do not overlap.
func (m *HMatrix) CopyBlock(src *HMatrix, r0, c0, nr, nc, sr0, sc0 int) {
	for i := 0; i < nr; i++ {
		for j := 0; j < nc; j++ {
			m.Set(r0+i, c0+j, src.Get(sr0+i, sc0+j))
		}
	}
}

// Symmetrize copies the upper triangle onto the lower one.
func (m *HMatrix) Symmetrize() {
	if m.Storage == PackedSymmetric {
		return
	}
	for i := 1; i < m.NR; i++ {
		for j := 0; j < i; j++ {
			m.Set(i, j, m.Get(j, i))
		}
	}
}

// Dense returns a full real copy of a real matrix.
func (m *HMatrix) Dense() (D *mat.Dense) {
	if m.Kind != RealKind {
		panic(fmt.Errorf("matrix %s is complex", m.name))
	}
	if m.re != nil {
		return mat.DenseCopyOf(m.re)
	}
	return mat.DenseCopyOf(m.sym)
}

// CDense returns a full complex copy.
func (m *HMatrix) CDense() (C *mat.CDense) {
	C = mat.NewCDense(m.NR, m.NC, nil)
	for i := 0; i < m.NR; i++ {
		for j := 0; j < m.NC; j++ {
			C.Set(i, j, m.Get(i, j))
		}
	}
	return
}

// Copy returns a deep copy with the same kind and storage.
func (m *HMatrix) Copy() (R *HMatrix) {
	R = NewHMatrix(m.NR, m.NC, m.Kind, m.Storage)
	R.name = m.name
	R.InsertBlock(m, 0, 0)
	return
}

// MaxAbs returns the largest entry magnitude.
func (m *HMatrix) MaxAbs() (max float64) {
	for i := 0; i < m.NR; i++ {
		for j := 0; j < m.NC; j++ {
			if a := cmplx.Abs(m.Get(i, j)); a > max {
				max = a
			}
		}
	}
	return
}

// MulVec returns m*x.
func (m *HMatrix) MulVec(x []complex128) (y []complex128) {
	if len(x) != m.NC {
		panic(fmt.Errorf("dimension mismatch: %d columns, vector length %d", m.NC, len(x)))
	}
	y = make([]complex128, m.NR)
	for i := 0; i < m.NR; i++ {
		var sum complex128
		for j := 0; j < m.NC; j++ {
			sum += m.Get(i, j) * x[j]
		}
		y[i] = sum
	}
	return
}

func (m *HMatrix) Print(formatO ...string) (out string) {
	var (
		format = "%8.4f "
	)
	if len(formatO) != 0 {
		format = formatO[0]
	}
	out = fmt.Sprintf("%s = [%dx%d]\n", m.name, m.NR, m.NC)
	for i := 0; i < m.NR; i++ {
		for j := 0; j < m.NC; j++ {
			out += fmt.Sprintf(format, m.Get(i, j))
		}
		out += "\n"
	}
	return
}
