package preconditioners

import (
	"gonum.org/v1/gonum/floats"

	"github.com/notargets/gofvm/ldu"
)

// DILU is the diagonal incomplete LU preconditioner for asymmetric
// matrices.
type DILU struct {
	m  *ldu.Matrix
	rD []float64
}

func NewDILU(sol *ldu.SolverBase, controls ldu.Controls) (ldu.Preconditioner, error) {
	return NewDILUFromMatrix(sol.Matrix, controls.PivotGuard)
}

func NewDILUFromMatrix(m *ldu.Matrix, pivotGuard float64) (dilu *DILU, err error) {
	if err = checkTriangular("DILU", m); err != nil {
		return
	}
	dilu = &DILU{m: m, rD: DILUReciprocalD(m, pivotGuard)}
	return
}

func DILUReciprocalD(m *ldu.Matrix, pivotGuard float64) (rD []float64) {
	var (
		l, u  = m.Addr().LowerAddr(), m.Addr().UpperAddr()
		upper = m.Upper()
		lower = m.Lower()
	)
	rD = make([]float64, m.NCells())
	copy(rD, m.Diag())
	for f := range l {
		rD[u[f]] -= upper[f] * lower[f] / (rD[l[f]] + pivotGuard)
	}
	for c := range rD {
		rD[c] = 1 / rD[c]
	}
	return
}

func (dilu *DILU) RD() []float64 { return dilu.rD }

func (dilu *DILU) Precondition(wA, rA []float64, _ int) {
	var (
		addr   = dilu.m.Addr()
		l, u   = addr.LowerAddr(), addr.UpperAddr()
		losort = addr.LosortAddr()
		upper  = dilu.m.Upper()
		lower  = dilu.m.Lower()
		rD     = dilu.rD
	)
	floats.MulTo(wA, rD, rA)
	for _, sf := range losort {
		wA[u[sf]] -= rD[u[sf]] * lower[sf] * wA[l[sf]]
	}
	for f := len(l) - 1; f >= 0; f-- {
		wA[l[f]] -= rD[l[f]] * upper[f] * wA[u[f]]
	}
}

func (dilu *DILU) PreconditionT(wT, rT []float64, _ int) {
	var (
		addr   = dilu.m.Addr()
		l, u   = addr.LowerAddr(), addr.UpperAddr()
		losort = addr.LosortAddr()
		upper  = dilu.m.Upper()
		lower  = dilu.m.Lower()
		rD     = dilu.rD
	)
	floats.MulTo(wT, rD, rT)
	for f := range l {
		wT[u[f]] -= rD[u[f]] * upper[f] * wT[l[f]]
	}
	for i := len(losort) - 1; i >= 0; i-- {
		sf := losort[i]
		wT[l[sf]] -= rD[l[sf]] * lower[sf] * wT[u[sf]]
	}
}
