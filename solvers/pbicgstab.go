package solvers

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/notargets/gofvm/ldu"
)

// PBiCGStab is the stabilised bi-conjugate gradient solver with right
// preconditioning. It works for symmetric and asymmetric matrices and never
// multiplies by the transpose.
type PBiCGStab struct {
	krylov
}

func NewPBiCGStab(base *ldu.SolverBase) (ldu.Solver, error) {
	return &PBiCGStab{krylov{base}}, nil
}

func (s *PBiCGStab) Solve(ctx context.Context, psi, source []float64, cmpt int) (sp ldu.SolverPerformance, err error) {
	var (
		comm       = s.Comm()
		nCells     = len(psi)
		yA, pA, rA = make([]float64, nCells), make([]float64, nCells), make([]float64, nCells)
		normFactor float64
	)
	sp = ldu.NewSolverPerformance(s.perfName(), s.FieldName)
	normFactor, sp.InitialResidual = s.initialResidual(psi, source, rA, yA, pA, cmpt)
	sp.FinalResidual = sp.InitialResidual
	if !s.Start(&sp) {
		return
	}
	var (
		AyA, sA, zA, tA     = make([]float64, nCells), make([]float64, nCells), make([]float64, nCells), make([]float64, nCells)
		rA0                 = append([]float64(nil), rA...)
		rA0rA, alpha, omega float64
		pc                  ldu.Preconditioner
	)
	if pc, err = s.Registry.NewPreconditioner(s.SolverBase, s.Controls); err != nil {
		return
	}
	// restart takes rA as the new shadow residual and search direction
	restart := func() {
		copy(rA0, rA)
		copy(pA, rA)
		rA0rA = ldu.GSumSqr(comm, rA)
	}
	direction := func() float64 {
		pc.Precondition(yA, pA, cmpt)
		s.Matrix.Amul(AyA, yA, s.InterfaceBouCoeffs, s.Interfaces, cmpt)
		return ldu.GSumProd(comm, rA0, AyA)
	}
loop:
	for {
		if err = ldu.CheckContext(ctx); err != nil {
			return
		}
		rA0rAold := rA0rA
		rA0rA = ldu.GSumProd(comm, rA0, rA)
		fresh := true
		switch {
		case sp.NIterations == 0:
			copy(pA, rA)
		case math.Abs(rA0rA) < ldu.VSmall:
			s.Debugf("PBiCGStab: rA orthogonal to the shadow residual, restart at iteration %d", sp.NIterations)
			restart()
		default:
			if sp.CheckSingularity(math.Abs(omega)) {
				break loop
			}
			beta := (rA0rA / rA0rAold) * (alpha / omega)
			floats.AddScaled(pA, -omega, AyA)
			floats.Scale(beta, pA)
			floats.Add(pA, rA)
			fresh = false
		}
		if sp.CheckSingularity(math.Abs(rA0rA)) {
			break
		}
		rA0AyA := direction()
		if !fresh && math.Abs(rA0AyA) < ldu.VSmall {
			s.Debugf("PBiCGStab: A p orthogonal to the shadow residual, restart at iteration %d", sp.NIterations)
			restart()
			if sp.CheckSingularity(math.Abs(rA0rA)) {
				break
			}
			rA0AyA = direction()
		}
		alpha = rA0rA / rA0AyA

		floats.AddScaledTo(sA, rA, -alpha, AyA)
		sp.FinalResidual = ldu.GSumMag(comm, sA) / normFactor
		if !sp.Valid() {
			sp.Converged = false
			sp.NIterations++
			return
		}
		if sp.NIterations+1 >= s.Controls.MinIter &&
			sp.CheckConvergence(s.Controls.Tolerance, s.Controls.RelTol) {
			floats.AddScaled(psi, alpha, yA)
			sp.NIterations++
			return
		}

		pc.Precondition(zA, sA, cmpt)
		s.Matrix.Amul(tA, zA, s.InterfaceBouCoeffs, s.Interfaces, cmpt)
		omega = ldu.GSumProd(comm, tA, sA) / ldu.Stabilise(ldu.GSumSqr(comm, tA), ldu.VSmall)

		floats.AddScaled(psi, alpha, yA)
		floats.AddScaled(psi, omega, zA)
		floats.AddScaledTo(rA, sA, -omega, tA)
		sp.FinalResidual = ldu.GSumMag(comm, rA) / normFactor

		sp.NIterations++
		if !s.Continue(&sp) {
			break
		}
	}
	return
}
