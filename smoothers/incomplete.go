package smoothers

import (
	"gonum.org/v1/gonum/floats"

	"github.com/notargets/gofvm/ldu"
	"github.com/notargets/gofvm/preconditioners"
)

// DIC corrects psi by the incomplete Cholesky solve of the current residual.
type DIC struct {
	sys ldu.System
	rD  []float64
	rA  []float64
}

func NewDIC(sys ldu.System, controls ldu.Controls) (ldu.Smoother, error) {
	if err := checkTriangular("DIC", sys.Matrix); err != nil {
		return nil, err
	}
	return &DIC{
		sys: sys,
		rD:  preconditioners.DICReciprocalD(sys.Matrix, controls.PivotGuard),
		rA:  make([]float64, sys.Matrix.NCells()),
	}, nil
}

func (sm *DIC) Smooth(psi, source []float64, cmpt int, nSweeps int) {
	var (
		m     = sm.sys.Matrix
		l, u  = m.Addr().LowerAddr(), m.Addr().UpperAddr()
		upper = m.Upper()
		rD    = sm.rD
		rA    = sm.rA
	)
	for sweep := 0; sweep < nSweeps; sweep++ {
		m.Residual(rA, psi, source, sm.sys.InterfaceBouCoeffs, sm.sys.Interfaces, cmpt)
		floats.Mul(rA, rD)
		for f := range l {
			rA[u[f]] -= rD[u[f]] * upper[f] * rA[l[f]]
		}
		for f := len(l) - 1; f >= 0; f-- {
			rA[l[f]] -= rD[l[f]] * upper[f] * rA[u[f]]
		}
		floats.Add(psi, rA)
	}
}

// DILU is the asymmetric counterpart of DIC.
type DILU struct {
	sys ldu.System
	rD  []float64
	rA  []float64
}

func NewDILU(sys ldu.System, controls ldu.Controls) (ldu.Smoother, error) {
	if err := checkTriangular("DILU", sys.Matrix); err != nil {
		return nil, err
	}
	return &DILU{
		sys: sys,
		rD:  preconditioners.DILUReciprocalD(sys.Matrix, controls.PivotGuard),
		rA:  make([]float64, sys.Matrix.NCells()),
	}, nil
}

func (sm *DILU) Smooth(psi, source []float64, cmpt int, nSweeps int) {
	var (
		m     = sm.sys.Matrix
		l, u  = m.Addr().LowerAddr(), m.Addr().UpperAddr()
		upper = m.Upper()
		lower = m.Lower()
		rD    = sm.rD
		rA    = sm.rA
	)
	for sweep := 0; sweep < nSweeps; sweep++ {
		m.Residual(rA, psi, source, sm.sys.InterfaceBouCoeffs, sm.sys.Interfaces, cmpt)
		floats.Mul(rA, rD)
		for f := range l {
			rA[u[f]] -= rD[u[f]] * lower[f] * rA[l[f]]
		}
		for f := len(l) - 1; f >= 0; f-- {
			rA[l[f]] -= rD[l[f]] * upper[f] * rA[u[f]]
		}
		floats.Add(psi, rA)
	}
}

// chain runs two smoothers one after the other, each for nSweeps.
type chain struct {
	first, second ldu.Smoother
}

func (ch chain) Smooth(psi, source []float64, cmpt int, nSweeps int) {
	ch.first.Smooth(psi, source, cmpt, nSweeps)
	ch.second.Smooth(psi, source, cmpt, nSweeps)
}

func NewDICGaussSeidel(sys ldu.System, controls ldu.Controls) (ldu.Smoother, error) {
	dic, err := NewDIC(sys, controls)
	if err != nil {
		return nil, err
	}
	gs, err := NewGaussSeidel(sys, controls)
	if err != nil {
		return nil, err
	}
	return chain{first: dic, second: gs}, nil
}

func NewDILUGaussSeidel(sys ldu.System, controls ldu.Controls) (ldu.Smoother, error) {
	dilu, err := NewDILU(sys, controls)
	if err != nil {
		return nil, err
	}
	gs, err := NewGaussSeidel(sys, controls)
	if err != nil {
		return nil, err
	}
	return chain{first: dilu, second: gs}, nil
}
