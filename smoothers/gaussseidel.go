// Package smoothers holds the relaxation schemes used by the smooth solver
// and by the multigrid cycle.
package smoothers

import (
	"fmt"

	"github.com/notargets/gofvm/ldu"
)

var (
	sym  = ldu.SymmetricMatrix
	asym = ldu.AsymmetricMatrix
)

// Register adds every smoother of this package to r.
func Register(r *ldu.Registry) {
	r.AddSmoother("none", NewNone, sym, asym)
	r.AddSmoother("GaussSeidel", NewGaussSeidel, sym, asym)
	r.AddSmoother("symGaussSeidel", NewSymGaussSeidel, sym, asym)
	r.AddSmoother("SSGS", NewSymGaussSeidel, sym)
	r.AddSmoother("USGS", NewSymGaussSeidel, sym, asym)
	r.AddSmoother("DIC", NewDIC, sym)
	r.AddSmoother("DILU", NewDILU, asym)
	r.AddSmoother("DICGaussSeidel", NewDICGaussSeidel, sym)
	r.AddSmoother("DILUGaussSeidel", NewDILUGaussSeidel, asym)
}

func checkTriangular(name string, m *ldu.Matrix) (err error) {
	if !m.Addr().UpperTriangular() {
		err = fmt.Errorf("%w: %s smoother needs faces ordered by owner with owner < neighbour", ldu.ErrTopology, name)
	}
	return
}

// None leaves psi as it is.
type None struct{}

func NewNone(ldu.System, ldu.Controls) (ldu.Smoother, error) { return None{}, nil }

func (None) Smooth(_, _ []float64, _ int, _ int) {}

// GaussSeidel relaxes cell by cell in ascending order. Coupled interfaces are
// treated explicitly: their contribution from the current psi is moved to
// the source once per sweep.
type GaussSeidel struct {
	sys        ldu.System
	mBouCoeffs [][]float64
	bPrime     []float64
	symmetric  bool
}

func NewGaussSeidel(sys ldu.System, _ ldu.Controls) (ldu.Smoother, error) {
	return newGaussSeidel("GaussSeidel", sys, false)
}

// NewSymGaussSeidel returns the smoother that follows every forward sweep
// with a backward one.
func NewSymGaussSeidel(sys ldu.System, _ ldu.Controls) (ldu.Smoother, error) {
	return newGaussSeidel("symGaussSeidel", sys, true)
}

func newGaussSeidel(name string, sys ldu.System, symmetric bool) (gs *GaussSeidel, err error) {
	if err = checkTriangular(name, sys.Matrix); err != nil {
		return
	}
	gs = &GaussSeidel{
		sys:        sys,
		mBouCoeffs: ldu.NegateCoeffs(sys.InterfaceBouCoeffs),
		bPrime:     make([]float64, sys.Matrix.NCells()),
		symmetric:  symmetric,
	}
	return
}

func (gs *GaussSeidel) Smooth(psi, source []float64, cmpt int, nSweeps int) {
	var (
		m        = gs.sys.Matrix
		u        = m.Addr().UpperAddr()
		ownStart = m.Addr().OwnerStartAddr()
		diag     = m.Diag()
		upper    = m.Upper()
		lower    = m.Lower()
		bPrime   = gs.bPrime
		nCells   = m.NCells()
	)
	relax := func(c int) {
		fStart, fEnd := ownStart[c], ownStart[c+1]
		psii := bPrime[c]
		for f := fStart; f < fEnd; f++ {
			psii -= upper[f] * psi[u[f]]
		}
		psii /= diag[c]
		for f := fStart; f < fEnd; f++ {
			bPrime[u[f]] -= lower[f] * psii
		}
		psi[c] = psii
	}
	for sweep := 0; sweep < nSweeps; sweep++ {
		copy(bPrime, source)
		m.InitMatrixInterfaces(gs.mBouCoeffs, gs.sys.Interfaces, psi, bPrime, cmpt)
		m.UpdateMatrixInterfaces(gs.mBouCoeffs, gs.sys.Interfaces, psi, bPrime, cmpt)
		for c := 0; c < nCells; c++ {
			relax(c)
		}
		if gs.symmetric {
			for c := nCells - 1; c >= 0; c-- {
				relax(c)
			}
		}
	}
}
