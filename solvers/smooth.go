package solvers

import (
	"context"

	"gonum.org/v1/gonum/floats"

	"github.com/notargets/gofvm/ldu"
)

// SmoothSolver iterates a smoother, nSweeps at a time, until the residual
// converges. A negative nSweeps asks for exactly -nSweeps sweeps with no
// residual evaluation at all.
type SmoothSolver struct {
	*ldu.SolverBase
}

func NewSmoothSolver(base *ldu.SolverBase) (ldu.Solver, error) {
	return &SmoothSolver{SolverBase: base}, nil
}

func (s *SmoothSolver) Solve(ctx context.Context, psi, source []float64, cmpt int) (sp ldu.SolverPerformance, err error) {
	var (
		sm      ldu.Smoother
		nSweeps = s.Controls.NSweeps
	)
	sp = ldu.NewSolverPerformance(s.Controls.Smoother, s.FieldName)
	if nSweeps < 0 {
		if sm, err = s.Registry.NewSmoother(s.System, s.Controls); err != nil {
			return
		}
		if err = ldu.CheckContext(ctx); err != nil {
			return
		}
		sm.Smooth(psi, source, cmpt, -nSweeps)
		sp.NIterations -= nSweeps
		return
	}
	if nSweeps == 0 {
		nSweeps = 1
	}
	var (
		comm       = s.Comm()
		Apsi       = make([]float64, len(psi))
		tmp        = make([]float64, len(psi))
		normFactor float64
	)
	s.Matrix.Amul(Apsi, psi, s.InterfaceBouCoeffs, s.Interfaces, cmpt)
	normFactor = s.NormFactor(psi, source, Apsi, tmp)
	floats.SubTo(tmp, source, Apsi)
	sp.InitialResidual = ldu.GSumMag(comm, tmp) / normFactor
	sp.FinalResidual = sp.InitialResidual
	if !s.Start(&sp) {
		return
	}
	if sm, err = s.Registry.NewSmoother(s.System, s.Controls); err != nil {
		return
	}
	for {
		if err = ldu.CheckContext(ctx); err != nil {
			return
		}
		sm.Smooth(psi, source, cmpt, nSweeps)
		s.Matrix.Residual(tmp, psi, source, s.InterfaceBouCoeffs, s.Interfaces, cmpt)
		sp.FinalResidual = ldu.GSumMag(comm, tmp) / normFactor

		sp.NIterations += nSweeps
		if !s.Continue(&sp) {
			break
		}
	}
	return
}
