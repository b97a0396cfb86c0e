package ldu

import "gonum.org/v1/gonum/floats"

// Amul computes Apsi = A psi, including the coupled interface contribution.
func (m *Matrix) Amul(Apsi, psi []float64, interfaceBouCoeffs [][]float64,
	interfaces InterfaceFields, cmpt int) {
	var (
		l, u  = m.Addr().LowerAddr(), m.Addr().UpperAddr()
		diag  = m.Diag()
		upper = m.Upper()
		lower = m.Lower()
	)
	m.InitMatrixInterfaces(interfaceBouCoeffs, interfaces, psi, Apsi, cmpt)
	floats.MulTo(Apsi, diag, psi)
	for f := range l {
		Apsi[u[f]] += lower[f] * psi[l[f]]
		Apsi[l[f]] += upper[f] * psi[u[f]]
	}
	m.UpdateMatrixInterfaces(interfaceBouCoeffs, interfaces, psi, Apsi, cmpt)
}

// Tmul computes Tpsi = A^T psi. The interface contribution uses the internal
// coefficients, which play the role of the boundary coefficients of the
// transposed system.
func (m *Matrix) Tmul(Tpsi, psi []float64, interfaceIntCoeffs [][]float64,
	interfaces InterfaceFields, cmpt int) {
	var (
		l, u  = m.Addr().LowerAddr(), m.Addr().UpperAddr()
		diag  = m.Diag()
		upper = m.Upper()
		lower = m.Lower()
	)
	m.InitMatrixInterfaces(interfaceIntCoeffs, interfaces, psi, Tpsi, cmpt)
	floats.MulTo(Tpsi, diag, psi)
	for f := range l {
		Tpsi[u[f]] += upper[f] * psi[l[f]]
		Tpsi[l[f]] += lower[f] * psi[u[f]]
	}
	m.UpdateMatrixInterfaces(interfaceIntCoeffs, interfaces, psi, Tpsi, cmpt)
}

// Residual computes rA = source - A psi.
func (m *Matrix) Residual(rA, psi, source []float64, interfaceBouCoeffs [][]float64,
	interfaces InterfaceFields, cmpt int) {
	var (
		l, u       = m.Addr().LowerAddr(), m.Addr().UpperAddr()
		diag       = m.Diag()
		upper      = m.Upper()
		lower      = m.Lower()
		mBouCoeffs = NegateCoeffs(interfaceBouCoeffs)
	)
	// The interface update subtracts, the negated coefficients undo that
	m.InitMatrixInterfaces(mBouCoeffs, interfaces, psi, rA, cmpt)
	floats.MulTo(rA, diag, psi)
	floats.SubTo(rA, source, rA)
	for f := range l {
		rA[u[f]] -= lower[f] * psi[l[f]]
		rA[l[f]] -= upper[f] * psi[u[f]]
	}
	m.UpdateMatrixInterfaces(mBouCoeffs, interfaces, psi, rA, cmpt)
}

// ResidualField allocates and returns source - A psi.
func (m *Matrix) ResidualField(psi, source []float64, interfaceBouCoeffs [][]float64,
	interfaces InterfaceFields, cmpt int) (rA []float64) {
	rA = make([]float64, m.NCells())
	m.Residual(rA, psi, source, interfaceBouCoeffs, interfaces, cmpt)
	return
}

// SumA computes the row sums of A. Interface boundary coefficients count as
// off diagonal entries of the row.
func (m *Matrix) SumA(sumA []float64, interfaceBouCoeffs [][]float64, interfaces InterfaceFields) {
	var (
		l, u  = m.Addr().LowerAddr(), m.Addr().UpperAddr()
		diag  = m.Diag()
		upper = m.Upper()
		lower = m.Lower()
	)
	copy(sumA, diag)
	for f := range l {
		sumA[u[f]] += lower[f]
		sumA[l[f]] += upper[f]
	}
	for p := range interfaces {
		if !interfaces.Set(p) {
			continue
		}
		for i, c := range m.Addr().PatchAddr(p) {
			sumA[c] -= interfaceBouCoeffs[p][i]
		}
	}
}
