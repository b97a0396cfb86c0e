// Package selection builds the registry of every solver, preconditioner and
// smoother, and drives single solves through it.
package selection

import (
	"context"

	"github.com/notargets/gofvm/gamg"
	"github.com/notargets/gofvm/ldu"
	"github.com/notargets/gofvm/preconditioners"
	"github.com/notargets/gofvm/smoothers"
	"github.com/notargets/gofvm/solvers"
)

// NewRegistry returns a registry holding everything this module provides.
func NewRegistry() (r *ldu.Registry) {
	r = ldu.NewRegistry()
	preconditioners.Register(r)
	smoothers.Register(r)
	solvers.Register(r)
	gamg.Register(r)
	return
}

// Solve builds the solver named in controls for sys and runs it. The
// performance is logged by the master rank only.
func Solve(ctx context.Context, r *ldu.Registry, sys ldu.System, controls ldu.Controls,
	psi, source []float64, cmpt int) (sp ldu.SolverPerformance, err error) {
	var (
		sol ldu.Solver
	)
	if sol, err = r.NewSolver(sys, controls); err != nil {
		return
	}
	if sp, err = sol.Solve(ctx, psi, source, cmpt); err != nil {
		return
	}
	if sys.Comm().Master() {
		sp.Print(r.Log)
	}
	return
}
