package ldu

import (
	"fmt"
)

// Matrix is a square sparse matrix stored as diagonal, upper and lower
// coefficients on the faces of a Mesh. upper[f] multiplies psi[upperAddr[f]]
// into row lowerAddr[f]; lower[f] multiplies psi[lowerAddr[f]] into row
// upperAddr[f]. A matrix with no lower coefficients is symmetric, one with
// only a diagonal is diagonal.
type Matrix struct {
	mesh  *Mesh
	diag  []float64
	upper []float64
	lower []float64
}

func NewMatrix(mesh *Mesh) *Matrix {
	return &Matrix{mesh: mesh}
}

func NewDiagonalMatrix(mesh *Mesh, diag []float64) (m *Matrix, err error) {
	m = &Matrix{mesh: mesh}
	if err = m.checkSize("diagonal", diag, mesh.NCells()); err != nil {
		return nil, err
	}
	m.diag = diag
	return
}

func NewSymmetricMatrix(mesh *Mesh, diag, upper []float64) (m *Matrix, err error) {
	if m, err = NewDiagonalMatrix(mesh, diag); err != nil {
		return
	}
	if err = m.checkSize("upper", upper, mesh.Addr().NFaces()); err != nil {
		return nil, err
	}
	m.upper = upper
	return
}

func NewAsymmetricMatrix(mesh *Mesh, diag, upper, lower []float64) (m *Matrix, err error) {
	if m, err = NewSymmetricMatrix(mesh, diag, upper); err != nil {
		return
	}
	if err = m.checkSize("lower", lower, mesh.Addr().NFaces()); err != nil {
		return nil, err
	}
	m.lower = lower
	return
}

func (m *Matrix) checkSize(name string, coeffs []float64, n int) (err error) {
	if len(coeffs) != n {
		err = fmt.Errorf("%w: %s coefficients have length %d, expected %d", ErrTopology, name, len(coeffs), n)
	}
	return
}

func (m *Matrix) Mesh() *Mesh       { return m.mesh }
func (m *Matrix) Addr() *Addressing { return m.mesh.Addr() }
func (m *Matrix) NCells() int       { return m.mesh.NCells() }
func (m *Matrix) Diagonal() bool    { return m.diag != nil && m.upper == nil && m.lower == nil }
func (m *Matrix) Symmetric() bool   { return m.diag != nil && m.upper != nil && m.lower == nil }
func (m *Matrix) Asymmetric() bool  { return m.diag != nil && m.lower != nil }

func (m *Matrix) Diag() []float64 {
	if m.diag == nil {
		m.diag = make([]float64, m.NCells())
	}
	return m.diag
}

func (m *Matrix) Upper() []float64 {
	if m.upper == nil {
		if m.lower != nil {
			m.upper = make([]float64, len(m.lower))
			copy(m.upper, m.lower)
		} else {
			m.upper = make([]float64, m.Addr().NFaces())
		}
	}
	return m.upper
}

// Lower returns the lower coefficients. For a symmetric matrix this is the
// upper slice itself and must be treated as read only; use SetAsymmetric to
// get a separate lower that can be written.
func (m *Matrix) Lower() []float64 {
	if m.lower != nil {
		return m.lower
	}
	return m.Upper()
}

// SetAsymmetric gives the matrix its own lower coefficients, starting as a
// copy of upper, and returns them.
func (m *Matrix) SetAsymmetric() []float64 {
	if m.lower == nil {
		up := m.Upper()
		m.lower = make([]float64, len(up))
		copy(m.lower, up)
	}
	return m.lower
}

// Type is the key used to look up solvers by matrix type.
func (m *Matrix) Type() MatrixType {
	if m.Asymmetric() {
		return AsymmetricMatrix
	}
	return SymmetricMatrix
}

type MatrixType uint8

const (
	SymmetricMatrix MatrixType = iota
	AsymmetricMatrix
)

func (mt MatrixType) String() string {
	if mt == AsymmetricMatrix {
		return "asymmetric"
	}
	return "symmetric"
}
