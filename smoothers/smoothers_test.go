package smoothers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gofvm/coupled"
	"github.com/notargets/gofvm/ldu"
)

func gridSystem(t *testing.T, nx, ny int, asym bool) ldu.System {
	var (
		lower, upper []int
		n            = nx * ny
	)
	for c := 0; c < n; c++ {
		i, j := c%nx, c/nx
		if i+1 < nx {
			lower, upper = append(lower, c), append(upper, c+1)
		}
		if j+1 < ny {
			lower, upper = append(lower, c), append(upper, c+nx)
		}
	}
	mesh, err := ldu.NewMesh(n, lower, upper, nil, nil)
	require.NoError(t, err)
	m := ldu.NewMatrix(mesh)
	diag := m.Diag()
	for c := range diag {
		diag[c] = 4.2
	}
	up := m.Upper()
	for f := range up {
		up[f] = -1
	}
	if asym {
		lo := m.SetAsymmetric()
		for f := range lo {
			lo[f] = -0.6
		}
	}
	return ldu.System{FieldName: "T", Matrix: m}
}

func denseSolve(t *testing.T, A mat.Matrix, b []float64) []float64 {
	var x mat.VecDense
	require.NoError(t, x.SolveVec(A, mat.NewVecDense(len(b), b)))
	return x.RawVector().Data
}

func rhs(n int) (b []float64) {
	b = make([]float64, n)
	for i := range b {
		b[i] = float64(i%3) + 0.5
	}
	return
}

func residualNorm(sys ldu.System, psi, b []float64) float64 {
	r := sys.Matrix.ResidualField(psi, b, sys.InterfaceBouCoeffs, sys.Interfaces, 0)
	return floats.Norm(r, 2)
}

func TestSmoothers(t *testing.T) {
	reg := ldu.NewRegistry()
	Register(reg)
	build := func(sys ldu.System, name string) ldu.Smoother {
		ctl := ldu.DefaultControls()
		ctl.Smoother = name
		sm, err := reg.NewSmoother(sys, ctl)
		require.NoError(t, err, name)
		return sm
	}
	{ // Every smoother converges to the direct solution
		for _, asym := range []bool{false, true} {
			sys := gridSystem(t, 5, 4, asym)
			b := rhs(20)
			exact := denseSolve(t, sys.Matrix.ToDense(), b)
			names := []string{"GaussSeidel", "symGaussSeidel", "USGS"}
			if asym {
				names = append(names, "DILU", "DILUGaussSeidel")
			} else {
				names = append(names, "SSGS", "DIC", "DICGaussSeidel")
			}
			for _, name := range names {
				sm := build(sys, name)
				psi := make([]float64, 20)
				initial := residualNorm(sys, psi, b)
				for iter := 0; iter < 10; iter++ {
					sm.Smooth(psi, b, 0, 1)
				}
				assert.Less(t, residualNorm(sys, psi, b), 0.1*initial, name)
				sm.Smooth(psi, b, 0, 100)
				assert.InDeltaSlice(t, exact, psi, 1e-9, name)
			}
		}
	}
	{ // One DIC sweep solves a chain exactly
		mesh, err := ldu.NewMesh(5, []int{0, 1, 2, 3}, []int{1, 2, 3, 4}, nil, nil)
		require.NoError(t, err)
		m, err := ldu.NewSymmetricMatrix(mesh, []float64{2, 2, 2, 2, 2}, []float64{-1, -1, -1, -1})
		require.NoError(t, err)
		psi := make([]float64, 5)
		build(ldu.System{Matrix: m}, "DIC").Smooth(psi, []float64{1, 0, 0, 0, 1}, 0, 1)
		assert.InDeltaSlice(t, []float64{1, 1, 1, 1, 1}, psi, 1e-12)
	}
	{ // Cyclic coupling is relaxed explicitly and still converges
		ifs := make(ldu.Interfaces, 2)
		a, c, err := coupled.NewCyclicPair(ifs, 0, 1, []int{5}, []int{0}, nil)
		require.NoError(t, err)
		mesh, err := ldu.NewMesh(6, []int{0, 1, 2, 3, 4}, []int{1, 2, 3, 4, 5}, ifs, nil)
		require.NoError(t, err)
		m, err := ldu.NewSymmetricMatrix(mesh, []float64{2.5, 2.5, 2.5, 2.5, 2.5, 2.5}, []float64{-1, -1, -1, -1, -1})
		require.NoError(t, err)
		sys := ldu.System{
			Matrix:             m,
			InterfaceBouCoeffs: [][]float64{{1}, {1}},
			Interfaces: ldu.InterfaceFields{
				coupled.NewCyclicInterfaceField(a, 0), coupled.NewCyclicInterfaceField(c, 0),
			},
		}
		require.NoError(t, sys.Prepare())
		dok, err := m.CoupledDOK(sys.InterfaceBouCoeffs, sys.Interfaces, 0)
		require.NoError(t, err)
		b := rhs(6)
		exact := denseSolve(t, dok.ToDense(), b)
		for _, name := range []string{"GaussSeidel", "symGaussSeidel", "DIC"} {
			psi := make([]float64, 6)
			build(sys, name).Smooth(psi, b, 0, 200)
			assert.InDeltaSlice(t, exact, psi, 1e-9, name)
		}
	}
	{ // none is the identity for either matrix type
		for _, asym := range []bool{false, true} {
			sys := gridSystem(t, 3, 3, asym)
			psi := rhs(9)
			build(sys, "none").Smooth(psi, make([]float64, 9), 0, 5)
			assert.Equal(t, rhs(9), psi)
		}
	}
	{ // Misuse
		sys := gridSystem(t, 3, 3, true)
		ctl := ldu.DefaultControls()
		ctl.Smoother = "DIC"
		_, err := reg.NewSmoother(sys, ctl)
		assert.True(t, errors.Is(err, ldu.ErrUnknownType))

		mesh, err := ldu.NewMesh(3, []int{1, 0}, []int{2, 1}, nil, nil)
		require.NoError(t, err)
		m, err := ldu.NewSymmetricMatrix(mesh, []float64{2, 2, 2}, []float64{-1, -1})
		require.NoError(t, err)
		ctl.Smoother = "GaussSeidel"
		_, err = reg.NewSmoother(ldu.System{Matrix: m}, ctl)
		assert.True(t, errors.Is(err, ldu.ErrTopology))
	}
}
