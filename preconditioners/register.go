// Package preconditioners holds the approximate inverses used by the Krylov
// solvers: none, diagonal, DIC, DILU and the symmetric Gauss-Seidel forms.
package preconditioners

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/notargets/gofvm/ldu"
)

var (
	sym  = ldu.SymmetricMatrix
	asym = ldu.AsymmetricMatrix
)

// Register adds every preconditioner of this package to r.
func Register(r *ldu.Registry) {
	r.AddPreconditioner("none", NewNone, sym, asym)
	r.AddPreconditioner("diagonal", NewDiagonal, sym, asym)
	r.AddPreconditioner("DIC", NewDIC, sym)
	r.AddPreconditioner("DILU", NewDILU, asym)
	r.AddPreconditioner("SSGS", NewSSGS, sym)
	r.AddPreconditioner("USGS", NewUSGS, sym, asym)
}

func checkTriangular(name string, m *ldu.Matrix) (err error) {
	if !m.Addr().UpperTriangular() {
		err = fmt.Errorf("%w: %s needs faces ordered by owner with owner < neighbour", ldu.ErrTopology, name)
	}
	return
}

// None is the identity.
type None struct{}

func NewNone(*ldu.SolverBase, ldu.Controls) (ldu.Preconditioner, error) { return None{}, nil }

func (None) Precondition(wA, rA []float64, _ int)  { copy(wA, rA) }
func (None) PreconditionT(wT, rT []float64, _ int) { copy(wT, rT) }

// Diagonal scales by the reciprocal of the diagonal.
type Diagonal struct {
	rD []float64
}

func NewDiagonal(sol *ldu.SolverBase, _ ldu.Controls) (ldu.Preconditioner, error) {
	diag := sol.Matrix.Diag()
	rD := make([]float64, len(diag))
	for c, d := range diag {
		rD[c] = 1 / d
	}
	return &Diagonal{rD: rD}, nil
}

func (dp *Diagonal) Precondition(wA, rA []float64, _ int) {
	floats.MulTo(wA, dp.rD, rA)
}

func (dp *Diagonal) PreconditionT(wT, rT []float64, cmpt int) { dp.Precondition(wT, rT, cmpt) }
