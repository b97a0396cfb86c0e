package preconditioners

import (
	"github.com/notargets/gofvm/ldu"
)

// SSGS applies one symmetric Gauss-Seidel sweep pair starting from zero,
// which is the inverse of M = (D + L) D^-1 (D + U). It walks faces by owner
// and carries the lower contributions forward in a modified source.
type SSGS struct {
	m      *ldu.Matrix
	bPrime []float64
}

func NewSSGS(sol *ldu.SolverBase, _ ldu.Controls) (ldu.Preconditioner, error) {
	if err := checkTriangular("SSGS", sol.Matrix); err != nil {
		return nil, err
	}
	return &SSGS{m: sol.Matrix, bPrime: make([]float64, sol.Matrix.NCells())}, nil
}

func (gs *SSGS) Precondition(wA, rA []float64, _ int) {
	var (
		m        = gs.m
		u        = m.Addr().UpperAddr()
		ownStart = m.Addr().OwnerStartAddr()
		diag     = m.Diag()
		upper    = m.Upper()
		lower    = m.Lower()
		bPrime   = gs.bPrime
		nCells   = m.NCells()
	)
	clear(wA)
	copy(bPrime, rA)
	for c := 0; c < nCells; c++ {
		fStart, fEnd := ownStart[c], ownStart[c+1]
		wAi := bPrime[c]
		for f := fStart; f < fEnd; f++ {
			wAi -= upper[f] * wA[u[f]]
		}
		wAi /= diag[c]
		for f := fStart; f < fEnd; f++ {
			bPrime[u[f]] -= lower[f] * wAi
		}
		wA[c] = wAi
	}
	// The backward sweep keeps the lower contributions of the forward sweep
	for c := nCells - 1; c >= 0; c-- {
		fStart, fEnd := ownStart[c], ownStart[c+1]
		wAi := bPrime[c]
		for f := fStart; f < fEnd; f++ {
			wAi -= upper[f] * wA[u[f]]
		}
		wA[c] = wAi / diag[c]
	}
}

func (gs *SSGS) PreconditionT(wT, rT []float64, cmpt int) { gs.Precondition(wT, rT, cmpt) }

// USGS is the same preconditioner for matrices whose lower and upper
// coefficients differ. The forward elimination runs row by row through the
// losort order, and the transpose swaps the roles of lower and upper.
type USGS struct {
	m *ldu.Matrix
	y []float64
}

func NewUSGS(sol *ldu.SolverBase, _ ldu.Controls) (ldu.Preconditioner, error) {
	if err := checkTriangular("USGS", sol.Matrix); err != nil {
		return nil, err
	}
	return &USGS{m: sol.Matrix, y: make([]float64, sol.Matrix.NCells())}, nil
}

func (gs *USGS) Precondition(wA, rA []float64, _ int) {
	gs.sweep(wA, rA, gs.m.Lower(), gs.m.Upper())
}

func (gs *USGS) PreconditionT(wT, rT []float64, _ int) {
	gs.sweep(wT, rT, gs.m.Upper(), gs.m.Lower())
}

// sweep solves (D + L) y = r then (D + U) w = D y, where L holds lowerC at
// (upper, lower) positions and U holds upperC at (lower, upper) positions.
func (gs *USGS) sweep(w, r, lowerC, upperC []float64) {
	var (
		addr     = gs.m.Addr()
		l, u     = addr.LowerAddr(), addr.UpperAddr()
		losort   = addr.LosortAddr()
		lsStart  = addr.LosortStartAddr()
		ownStart = addr.OwnerStartAddr()
		diag     = gs.m.Diag()
		y        = gs.y
		nCells   = gs.m.NCells()
	)
	for c := 0; c < nCells; c++ {
		yc := r[c]
		for i := lsStart[c]; i < lsStart[c+1]; i++ {
			sf := losort[i]
			yc -= lowerC[sf] * y[l[sf]]
		}
		y[c] = yc / diag[c]
	}
	for c := nCells - 1; c >= 0; c-- {
		var sum float64
		for f := ownStart[c]; f < ownStart[c+1]; f++ {
			sum += upperC[f] * w[u[f]]
		}
		w[c] = y[c] - sum/diag[c]
	}
}
