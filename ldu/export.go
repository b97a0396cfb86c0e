package ldu

import (
	"fmt"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

// LocalInterfaceField is implemented by interface fields whose neighbour
// cells live on this rank, which lets their coupling be assembled into an
// explicit matrix.
type LocalInterfaceField interface {
	InterfaceField
	NeighbourFaceCells() []int
	// CoupleScale is the factor applied to the neighbour value of component
	// cmpt before it is multiplied by the coupling coefficient.
	CoupleScale(cmpt int) float64
}

// ToDOK assembles the face coefficients into a dictionary of keys matrix.
func (m *Matrix) ToDOK() (dok *sparse.DOK) {
	var (
		n     = m.NCells()
		l, u  = m.Addr().LowerAddr(), m.Addr().UpperAddr()
		diag  = m.Diag()
		upper = m.Upper()
		lower = m.Lower()
	)
	dok = sparse.NewDOK(n, n)
	add := func(i, j int, v float64) { dok.Set(i, j, dok.At(i, j)+v) }
	for c := range diag {
		add(c, c, diag[c])
	}
	for f := range l {
		add(l[f], u[f], upper[f])
		add(u[f], l[f], lower[f])
	}
	return
}

// CoupledDOK is ToDOK plus the coupling of every rank local interface. It
// fails when an interface couples to another rank.
func (m *Matrix) CoupledDOK(interfaceBouCoeffs [][]float64, interfaces InterfaceFields,
	cmpt int) (dok *sparse.DOK, err error) {
	dok = m.ToDOK()
	for p := range interfaces {
		if !interfaces.Set(p) {
			continue
		}
		lif, ok := interfaces[p].(LocalInterfaceField)
		if !ok {
			return nil, fmt.Errorf("%w: interface %d couples to another rank", ErrTopology, p)
		}
		var (
			fc    = lif.Interface().FaceCells()
			nbr   = lif.NeighbourFaceCells()
			scale = lif.CoupleScale(cmpt)
		)
		for i := range fc {
			dok.Set(fc[i], nbr[i], dok.At(fc[i], nbr[i])-scale*interfaceBouCoeffs[p][i])
		}
	}
	return
}

func (m *Matrix) ToCSR() *sparse.CSR {
	return m.ToDOK().ToCSR()
}

// ToDense returns the internal coefficients as a dense matrix, for checks
// and for direct solution of small systems.
func (m *Matrix) ToDense() *mat.Dense {
	return m.ToDOK().ToDense()
}
