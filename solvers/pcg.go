package solvers

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/notargets/gofvm/ldu"
)

// PCG is the preconditioned conjugate gradient solver for symmetric
// matrices.
type PCG struct {
	krylov
}

func NewPCG(base *ldu.SolverBase) (ldu.Solver, error) {
	return &PCG{krylov{base}}, nil
}

func (s *PCG) Solve(ctx context.Context, psi, source []float64, cmpt int) (sp ldu.SolverPerformance, err error) {
	var (
		comm          = s.Comm()
		nCells        = len(psi)
		pA            = make([]float64, nCells)
		wA            = make([]float64, nCells)
		rA            = make([]float64, nCells)
		wArA, wArAold = ldu.Great, ldu.Great
		pc            ldu.Preconditioner
		normFactor    float64
	)
	sp = ldu.NewSolverPerformance(s.perfName(), s.FieldName)
	normFactor, sp.InitialResidual = s.initialResidual(psi, source, rA, wA, pA, cmpt)
	sp.FinalResidual = sp.InitialResidual
	if !s.Start(&sp) {
		return
	}
	if pc, err = s.Registry.NewPreconditioner(s.SolverBase, s.Controls); err != nil {
		return
	}
	for {
		if err = ldu.CheckContext(ctx); err != nil {
			return
		}
		wArAold = wArA
		pc.Precondition(wA, rA, cmpt)
		wArA = ldu.GSumProd(comm, wA, rA)
		if sp.NIterations == 0 {
			copy(pA, wA)
		} else {
			beta := wArA / wArAold
			floats.AddScaledTo(pA, wA, beta, pA)
		}
		s.Matrix.Amul(wA, pA, s.InterfaceBouCoeffs, s.Interfaces, cmpt)
		wApA := ldu.GSumProd(comm, wA, pA)
		if sp.CheckSingularity(math.Abs(wApA) / normFactor) {
			break
		}
		alpha := wArA / wApA
		floats.AddScaled(psi, alpha, pA)
		floats.AddScaled(rA, -alpha, wA)
		sp.FinalResidual = ldu.GSumMag(comm, rA) / normFactor
		s.Debugf("PCG iteration %d residual %g", sp.NIterations+1, sp.FinalResidual)

		sp.NIterations++
		if !s.Continue(&sp) {
			break
		}
	}
	return
}
