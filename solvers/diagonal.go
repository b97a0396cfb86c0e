package solvers

import (
	"context"

	"gonum.org/v1/gonum/floats"

	"github.com/notargets/gofvm/ldu"
)

// Diagonal solves a matrix with no off-diagonal coefficients by division.
// Interfaces are ignored.
type Diagonal struct {
	*ldu.SolverBase
}

func NewDiagonal(base *ldu.SolverBase) (ldu.Solver, error) {
	return &Diagonal{SolverBase: base}, nil
}

func (s *Diagonal) Solve(ctx context.Context, psi, source []float64, _ int) (sp ldu.SolverPerformance, err error) {
	sp = ldu.NewSolverPerformance("diagonal", s.FieldName)
	if err = ldu.CheckContext(ctx); err != nil {
		return
	}
	diag := s.Matrix.Diag()
	floats.DivTo(psi, source, diag)
	sp.Converged = true
	return
}
