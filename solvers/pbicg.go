package solvers

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/notargets/gofvm/ldu"
)

// PBiCG is the preconditioned bi-conjugate gradient solver for asymmetric
// matrices. It iterates on A and on A^T together, so it needs the transpose
// preconditioner and the internal interface coefficients.
type PBiCG struct {
	krylov
}

func NewPBiCG(base *ldu.SolverBase) (ldu.Solver, error) {
	return &PBiCG{krylov{base}}, nil
}

func (s *PBiCG) Solve(ctx context.Context, psi, source []float64, cmpt int) (sp ldu.SolverPerformance, err error) {
	var (
		comm          = s.Comm()
		nCells        = len(psi)
		pA, wA, rA    = make([]float64, nCells), make([]float64, nCells), make([]float64, nCells)
		pT, wT, rT    = make([]float64, nCells), make([]float64, nCells), make([]float64, nCells)
		wArT, wArTold = ldu.Great, ldu.Great
		pc            ldu.Preconditioner
		normFactor    float64
	)
	sp = ldu.NewSolverPerformance(s.perfName(), s.FieldName)
	s.Matrix.Tmul(wT, psi, s.InterfaceIntCoeffs, s.Interfaces, cmpt)
	floats.SubTo(rT, source, wT)
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
		wArTold = wArT
		pc.Precondition(wA, rA, cmpt)
		pc.PreconditionT(wT, rT, cmpt)
		wArT = ldu.GSumProd(comm, wA, rT)
		if sp.NIterations == 0 {
			copy(pA, wA)
			copy(pT, wT)
		} else {
			beta := wArT / wArTold
			floats.AddScaledTo(pA, wA, beta, pA)
			floats.AddScaledTo(pT, wT, beta, pT)
		}
		s.Matrix.Amul(wA, pA, s.InterfaceBouCoeffs, s.Interfaces, cmpt)
		s.Matrix.Tmul(wT, pT, s.InterfaceIntCoeffs, s.Interfaces, cmpt)
		wApT := ldu.GSumProd(comm, wA, pT)
		if sp.CheckSingularity(math.Abs(wApT) / normFactor) {
			break
		}
		alpha := wArT / wApT
		floats.AddScaled(psi, alpha, pA)
		floats.AddScaled(rA, -alpha, wA)
		floats.AddScaled(rT, -alpha, wT)
		sp.FinalResidual = ldu.GSumMag(comm, rA) / normFactor

		sp.NIterations++
		if !s.Continue(&sp) {
			break
		}
	}
	return
}
