package preconditioners

import (
	"gonum.org/v1/gonum/floats"

	"github.com/notargets/gofvm/ldu"
)

// DIC is the diagonal incomplete Cholesky preconditioner for symmetric
// matrices: M = (D* + L) D*^-1 (D* + U) with D* chosen so that the diagonal
// of M matches that of A.
type DIC struct {
	m  *ldu.Matrix
	rD []float64
}

func NewDIC(sol *ldu.SolverBase, controls ldu.Controls) (ldu.Preconditioner, error) {
	return NewDICFromMatrix(sol.Matrix, controls.PivotGuard)
}

func NewDICFromMatrix(m *ldu.Matrix, pivotGuard float64) (dic *DIC, err error) {
	if err = checkTriangular("DIC", m); err != nil {
		return
	}
	dic = &DIC{m: m, rD: DICReciprocalD(m, pivotGuard)}
	return
}

// DICReciprocalD returns 1/D* for the incomplete Cholesky factorization.
// pivotGuard is added to every pivot before dividing by it.
func DICReciprocalD(m *ldu.Matrix, pivotGuard float64) (rD []float64) {
	var (
		l, u  = m.Addr().LowerAddr(), m.Addr().UpperAddr()
		upper = m.Upper()
	)
	rD = make([]float64, m.NCells())
	copy(rD, m.Diag())
	for f := range l {
		rD[u[f]] -= upper[f] * upper[f] / (rD[l[f]] + pivotGuard)
	}
	for c := range rD {
		rD[c] = 1 / rD[c]
	}
	return
}

func (dic *DIC) RD() []float64 { return dic.rD }

func (dic *DIC) Precondition(wA, rA []float64, _ int) {
	var (
		l, u  = dic.m.Addr().LowerAddr(), dic.m.Addr().UpperAddr()
		upper = dic.m.Upper()
		rD    = dic.rD
	)
	floats.MulTo(wA, rD, rA)
	for f := range l {
		wA[u[f]] -= rD[u[f]] * upper[f] * wA[l[f]]
	}
	for f := len(l) - 1; f >= 0; f-- {
		wA[l[f]] -= rD[l[f]] * upper[f] * wA[u[f]]
	}
}

func (dic *DIC) PreconditionT(wT, rT []float64, cmpt int) { dic.Precondition(wT, rT, cmpt) }
