// Package gamg implements agglomeration multigrid: the coarsening of a mesh
// into a hierarchy of levels by pairwise cell merging, the coarse matrices
// and interfaces, and the V-cycle used both as a solver and as a
// preconditioner.
package gamg

import (
	"github.com/notargets/gofvm/ldu"
)

// Register adds the GAMG solver and preconditioner to r. The coarsest level
// and the smoothers are built through r, so r must also hold the solvers
// and smoothers they name.
func Register(r *ldu.Registry) {
	r.AddSolver("GAMG", NewGAMG, ldu.SymmetricMatrix, ldu.AsymmetricMatrix)
	r.AddPreconditioner("GAMG", NewPreconditioner, ldu.SymmetricMatrix, ldu.AsymmetricMatrix)
}
