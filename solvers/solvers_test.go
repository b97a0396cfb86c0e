package solvers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gofvm/coupled"
	"github.com/notargets/gofvm/ldu"
	"github.com/notargets/gofvm/preconditioners"
	"github.com/notargets/gofvm/smoothers"
)

func newRegistry() (r *ldu.Registry) {
	r = ldu.NewRegistry()
	preconditioners.Register(r)
	smoothers.Register(r)
	Register(r)
	return
}

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
		diag[c] = 4.1 + 0.05*float64(c%4)
	}
	up := m.Upper()
	for f := range up {
		up[f] = -1
	}
	if asym {
		lo := m.SetAsymmetric()
		for f := range lo {
			lo[f] = -0.7 - 0.01*float64(f%3)
		}
	}
	return ldu.System{FieldName: "T", Matrix: m}
}

func rhs(n int) (b []float64) {
	b = make([]float64, n)
	for i := range b {
		b[i] = float64(i%4) - 0.5
	}
	return
}

func denseSolve(t *testing.T, A mat.Matrix, b []float64) []float64 {
	var x mat.VecDense
	require.NoError(t, x.SolveVec(A, mat.NewVecDense(len(b), b)))
	return x.RawVector().Data
}

func controls(solver, precon, smoother string) (ctl ldu.Controls) {
	ctl = ldu.DefaultControls()
	ctl.Solver = solver
	ctl.Preconditioner.Name = precon
	ctl.Smoother = smoother
	ctl.Tolerance = 1e-13
	ctl.RelTol = 0
	return
}

func solve(t *testing.T, reg *ldu.Registry, sys ldu.System, ctl ldu.Controls, psi, b []float64) ldu.SolverPerformance {
	sol, err := reg.NewSolver(sys, ctl)
	require.NoError(t, err)
	sp, err := sol.Solve(context.Background(), psi, b, 0)
	require.NoError(t, err)
	return sp
}

func TestSolvers(t *testing.T) {
	reg := newRegistry()
	{ // Every solver reaches the direct solution on symmetric and asymmetric grids
		cases := map[bool][]ldu.Controls{
			false: {
				controls("PCG", "none", ""),
				controls("PCG", "diagonal", ""),
				controls("PCG", "DIC", ""),
				controls("PCG", "SSGS", ""),
				controls("PBiCGStab", "DIC", ""),
				controls("smoothSolver", "", "symGaussSeidel"),
				controls("smoothSolver", "", "DICGaussSeidel"),
			},
			true: {
				controls("PBiCG", "DILU", ""),
				controls("PBiCG", "USGS", ""),
				controls("PBiCG", "diagonal", ""),
				controls("PBiCGStab", "DILU", ""),
				controls("PBiCGStab", "none", ""),
				controls("smoothSolver", "", "GaussSeidel"),
				controls("smoothSolver", "", "DILU"),
			},
		}
		for asym, ctls := range cases {
			sys := gridSystem(t, 6, 5, asym)
			b := rhs(30)
			exact := denseSolve(t, sys.Matrix.ToDense(), b)
			for _, ctl := range ctls {
				psi := make([]float64, 30)
				sp := solve(t, reg, sys, ctl, psi, b)
				name := sp.SolverName
				assert.True(t, sp.Converged, name)
				assert.False(t, sp.Singular, name)
				assert.Less(t, sp.FinalResidual, 1e-13, name)
				assert.Greater(t, sp.NIterations, 0, name)
				assert.InDeltaSlice(t, exact, psi, 1e-10, name)
			}
		}
	}
	{ // Conjugate gradients finish within n iterations and report the preconditioner
		sys := gridSystem(t, 6, 5, false)
		ctl := controls("PCG", "DIC", "")
		ctl.Tolerance = 1e-10
		sp := solve(t, reg, sys, ctl, make([]float64, 30), rhs(30))
		assert.Equal(t, "DICPCG", sp.SolverName)
		assert.LessOrEqual(t, sp.NIterations, 30)
		assert.Equal(t, "PCG", solve(t, reg, sys, controls("PCG", "none", ""), make([]float64, 30), rhs(30)).SolverName)
	}
	{ // Relative tolerance stops early
		sys := gridSystem(t, 6, 5, true)
		ctl := controls("PBiCGStab", "DILU", "")
		ctl.RelTol = 0.1
		sp := solve(t, reg, sys, ctl, make([]float64, 30), rhs(30))
		assert.True(t, sp.Converged)
		assert.Less(t, sp.FinalResidual, 0.1*sp.InitialResidual)
		assert.Greater(t, sp.FinalResidual, 1e-13)
	}
	{ // A converged start does no work, unless minIter asks for it
		sys := gridSystem(t, 4, 4, false)
		ctl := controls("smoothSolver", "", "GaussSeidel")
		ctl.Tolerance = 2
		sp := solve(t, reg, sys, ctl, make([]float64, 16), rhs(16))
		assert.Equal(t, 0, sp.NIterations)
		assert.InDelta(t, 1, sp.InitialResidual, 1e-12)
		ctl.MinIter = 3
		sp = solve(t, reg, sys, ctl, make([]float64, 16), rhs(16))
		assert.Equal(t, 3, sp.NIterations)
		assert.Less(t, sp.FinalResidual, sp.InitialResidual)
	}
	{ // Negative nSweeps is a fixed number of sweeps with no residual
		sys := gridSystem(t, 4, 4, false)
		ctl := controls("smoothSolver", "", "symGaussSeidel")
		ctl.NSweeps = -5
		psi := make([]float64, 16)
		sp := solve(t, reg, sys, ctl, psi, rhs(16))
		assert.Equal(t, 5, sp.NIterations)
		assert.Equal(t, 0.0, sp.InitialResidual)
		assert.NotEqual(t, make([]float64, 16), psi)
	}
	{ // A diagonal matrix always gets the diagonal solver
		mesh, err := ldu.NewMesh(3, nil, nil, nil, nil)
		require.NoError(t, err)
		m, err := ldu.NewDiagonalMatrix(mesh, []float64{2, 4, 8})
		require.NoError(t, err)
		psi := make([]float64, 3)
		sp := solve(t, reg, ldu.System{FieldName: "p", Matrix: m}, controls("PCG", "DIC", ""), psi, []float64{1, 1, 1})
		assert.Equal(t, "diagonal", sp.SolverName)
		assert.True(t, sp.Converged)
		assert.Equal(t, []float64{0.5, 0.25, 0.125}, psi)
	}
	{ // Cyclic coupling is part of the operator the Krylov solvers see
		ifs := make(ldu.Interfaces, 2)
		a, c, err := coupled.NewCyclicPair(ifs, 0, 1, []int{7}, []int{0}, nil)
		require.NoError(t, err)
		mesh, err := ldu.NewMesh(8, []int{0, 1, 2, 3, 4, 5, 6}, []int{1, 2, 3, 4, 5, 6, 7}, ifs, nil)
		require.NoError(t, err)
		m, err := ldu.NewSymmetricMatrix(mesh, []float64{2.5, 2.5, 2.5, 2.5, 2.5, 2.5, 2.5, 2.5},
			[]float64{-1, -1, -1, -1, -1, -1, -1})
		require.NoError(t, err)
		sys := ldu.System{
			FieldName:          "T",
			Matrix:             m,
			InterfaceBouCoeffs: [][]float64{{1}, {1}},
			Interfaces: ldu.InterfaceFields{
				coupled.NewCyclicInterfaceField(a, 0), coupled.NewCyclicInterfaceField(c, 0),
			},
		}
		require.NoError(t, sys.Prepare())
		dok, err := m.CoupledDOK(sys.InterfaceBouCoeffs, sys.Interfaces, 0)
		require.NoError(t, err)
		b := rhs(8)
		exact := denseSolve(t, dok.ToDense(), b)
		for _, ctl := range []ldu.Controls{controls("PCG", "DIC", ""), controls("PBiCGStab", "DIC", "")} {
			psi := make([]float64, 8)
			sp := solve(t, reg, sys, ctl, psi, b)
			assert.True(t, sp.Converged, sp.SolverName)
			assert.InDeltaSlice(t, exact, psi, 1e-10, sp.SolverName)
		}
	}
	{ // Cancellation and misuse
		sys := gridSystem(t, 4, 4, false)
		sol, err := reg.NewSolver(sys, controls("PCG", "DIC", ""))
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = sol.Solve(ctx, make([]float64, 16), rhs(16), 0)
		assert.True(t, errors.Is(err, context.Canceled))

		_, err = reg.NewSolver(gridSystem(t, 3, 3, true), controls("PCG", "DILU", ""))
		assert.True(t, errors.Is(err, ldu.ErrUnknownType))
		sol, err = reg.NewSolver(gridSystem(t, 3, 3, true), controls("PBiCG", "DIC", ""))
		require.NoError(t, err)
		_, err = sol.Solve(context.Background(), make([]float64, 9), rhs(9), 0)
		assert.True(t, errors.Is(err, ldu.ErrUnknownType))
	}
}
