package gamg

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gofvm/ldu"
)

// directSolver solves the coarsest level with a dense LU factorisation. The
// factors are computed per component on first use, since transforming
// patches couple each component differently.
type directSolver struct {
	sys ldu.System
	lu  map[int]*mat.LU
}

func newDirectSolver(sys ldu.System) *directSolver {
	return &directSolver{sys: sys, lu: make(map[int]*mat.LU)}
}

func (ds *directSolver) factorize(cmpt int) (lu *mat.LU, err error) {
	var ok bool
	if lu, ok = ds.lu[cmpt]; ok {
		return
	}
	dok, err := ds.sys.Matrix.CoupledDOK(ds.sys.InterfaceBouCoeffs, ds.sys.Interfaces, cmpt)
	if err != nil {
		return nil, fmt.Errorf("direct coarsest solve: %w", err)
	}
	lu = new(mat.LU)
	lu.Factorize(dok.ToDense())
	ds.lu[cmpt] = lu
	return
}

func (ds *directSolver) solve(x, b []float64, cmpt int) (err error) {
	var (
		lu *mat.LU
		n  = len(b)
	)
	if lu, err = ds.factorize(cmpt); err != nil {
		return
	}
	err = lu.SolveVecTo(mat.NewVecDense(n, x), false, mat.NewVecDense(n, b))
	// An ill conditioned coarsest level still gives a usable correction
	var cond mat.Condition
	if errors.As(err, &cond) {
		err = nil
	}
	return
}
