// Package solvers holds the iterative drivers: the Krylov methods, the smooth
// solver and the trivial diagonal solver.
package solvers

import (
	"gonum.org/v1/gonum/floats"

	"github.com/notargets/gofvm/ldu"
)

var (
	sym  = ldu.SymmetricMatrix
	asym = ldu.AsymmetricMatrix
)

// Register adds every solver of this package to r.
func Register(r *ldu.Registry) {
	r.AddSolver("diagonal", NewDiagonal, sym, asym)
	r.AddSolver("PCG", NewPCG, sym)
	r.AddSolver("PBiCG", NewPBiCG, asym)
	r.AddSolver("PBiCGStab", NewPBiCGStab, sym, asym)
	r.AddSolver("smoothSolver", NewSmoothSolver, sym, asym)
}

// krylov is the shared part of the preconditioned solvers.
type krylov struct {
	*ldu.SolverBase
}

// perfName prefixes the solver name with the preconditioner in use, so a
// DIC preconditioned PCG reports as DICPCG.
func (k krylov) perfName() string {
	name := k.Controls.Preconditioner.Name
	if name == "none" || len(name) == 0 {
		return k.Name
	}
	return name + k.Name
}

// initialResidual computes rA = source - A psi and returns the norm factor
// together with the normalised residual. Apsi and tmp are scratch fields.
func (k krylov) initialResidual(psi, source, rA, Apsi, tmp []float64, cmpt int) (normFactor, residual float64) {
	k.Matrix.Amul(Apsi, psi, k.InterfaceBouCoeffs, k.Interfaces, cmpt)
	floats.SubTo(rA, source, Apsi)
	normFactor = k.NormFactor(psi, source, Apsi, tmp)
	residual = ldu.GSumMag(k.Comm(), rA) / normFactor
	return
}
