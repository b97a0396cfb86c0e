package gamg

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gofvm/coupled"
	"github.com/notargets/gofvm/ldu"
	"github.com/notargets/gofvm/preconditioners"
	"github.com/notargets/gofvm/smoothers"
	"github.com/notargets/gofvm/solvers"
)

func newRegistry() (r *ldu.Registry) {
	r = ldu.NewRegistry()
	preconditioners.Register(r)
	smoothers.Register(r)
	solvers.Register(r)
	Register(r)
	return
}

// chainSystem is a 1D Laplacian with diagonal d and unit couplings. The
// periodic form closes the chain with a cyclic pair.
func chainSystem(t *testing.T, n int, d, dEnd float64, periodic bool) ldu.System {
	var (
		lower, upper = make([]int, n-1), make([]int, n-1)
		diag         = make([]float64, n)
		coeffs       = make([]float64, n-1)
		ifs          ldu.Interfaces
		fields       ldu.InterfaceFields
		bou          [][]float64
	)
	for f := range lower {
		lower[f], upper[f], coeffs[f] = f, f+1, -1
	}
	for c := range diag {
		diag[c] = d
	}
	diag[0], diag[n-1] = dEnd, dEnd
	if periodic {
		ifs = make(ldu.Interfaces, 2)
		a, b, err := coupled.NewCyclicPair(ifs, 0, 1, []int{n - 1}, []int{0}, nil)
		require.NoError(t, err)
		fields = ldu.InterfaceFields{coupled.NewCyclicInterfaceField(a, 0), coupled.NewCyclicInterfaceField(b, 0)}
		bou = [][]float64{{1}, {1}}
	}
	mesh, err := ldu.NewMesh(n, lower, upper, ifs, nil)
	require.NoError(t, err)
	m, err := ldu.NewSymmetricMatrix(mesh, diag, coeffs)
	require.NoError(t, err)
	sys := ldu.System{FieldName: "T", Matrix: m, InterfaceBouCoeffs: bou, Interfaces: fields}
	require.NoError(t, sys.Prepare())
	return sys
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
		diag[c] = 4.2
	}
	up := m.Upper()
	for f := range up {
		up[f] = -1 - 0.1*float64(f%3)
	}
	if asym {
		lo := m.SetAsymmetric()
		for f := range lo {
			lo[f] = -0.6
		}
	}
	return ldu.System{FieldName: "T", Matrix: m}
}

func controls() (ctl ldu.Controls) {
	ctl = ldu.DefaultControls()
	ctl.Solver = "GAMG"
	ctl.Smoother = "GaussSeidel"
	ctl.Tolerance = 1e-11
	return
}

func newTestGAMG(t *testing.T, sys ldu.System, ctl ldu.Controls) *GAMG {
	g, err := newGAMG(&ldu.SolverBase{
		System:   sys,
		Name:     "GAMG",
		Controls: ctl,
		Registry: newRegistry(),
		Log:      logrus.StandardLogger(),
	})
	require.NoError(t, err)
	return g
}

func coupledDense(t *testing.T, sys ldu.System) *mat.Dense {
	dok, err := sys.Matrix.CoupledDOK(sys.InterfaceBouCoeffs, sys.Interfaces, 0)
	require.NoError(t, err)
	return dok.ToDense()
}

// galerkin returns P^T A P for the piecewise constant prolongation P.
func galerkin(A *mat.Dense, restrict []int, nCoarse int) *mat.Dense {
	var (
		n, _  = A.Dims()
		P     = mat.NewDense(n, nCoarse, nil)
		AP, C mat.Dense
	)
	for c, cc := range restrict {
		P.Set(c, cc, 1)
	}
	AP.Mul(A, P)
	C.Mul(P.T(), &AP)
	return &C
}

func rhs(n int) (b []float64) {
	b = make([]float64, n)
	for i := range b {
		b[i] = float64(i%4) - 1.5
	}
	return
}

func denseSolve(t *testing.T, A mat.Matrix, b []float64) []float64 {
	var x mat.VecDense
	require.NoError(t, x.SolveVec(A, mat.NewVecDense(len(b), b)))
	return x.RawVector().Data
}

func TestPairAgglomerate(t *testing.T) {
	var (
		n            = 64
		lower, upper = make([]int, n-1), make([]int, n-1)
		weights      = make([]float64, n-1)
	)
	for f := range lower {
		lower[f], upper[f], weights[f] = f, f+1, 1
	}
	{ // A chain pairs neighbours in either direction
		for _, forward := range []bool{true, false} {
			restrict, nCoarse := pairAgglomerate(n, lower, upper, weights, forward)
			assert.Equal(t, 32, nCoarse)
			for c := range restrict {
				assert.Equal(t, c/2, restrict[c])
			}
		}
	}
	{ // A leftover cell joins its neighbour's group
		restrict, nCoarse := pairAgglomerate(5, lower[:4], upper[:4], weights[:4], true)
		assert.Equal(t, 2, nCoarse)
		assert.Equal(t, []int{0, 0, 1, 1, 1}, restrict)
	}
	{ // The heaviest face wins
		// Cells 0 1 on the bottom row of a square, 2 3 on the top
		restrict, nCoarse := pairAgglomerate(4, []int{0, 0, 1, 2}, []int{1, 2, 3, 3}, []float64{1, 5, 1, 1}, true)
		assert.Equal(t, 2, nCoarse)
		assert.Equal(t, []int{0, 1, 0, 1}, restrict)
	}
	{ // Isolated cells become their own group
		restrict, nCoarse := pairAgglomerate(3, nil, nil, nil, true)
		assert.Equal(t, 3, nCoarse)
		assert.Equal(t, []int{0, 1, 2}, restrict)
	}
}

func TestAgglomerateFaces(t *testing.T) {
	sys := gridSystem(t, 4, 4, false)
	addr := sys.Matrix.Addr()
	// Columns of two cells merged into one coarse cell
	restrict := make([]int, 16)
	for c := range restrict {
		restrict[c] = (c/4)*2 + (c%4)/2
	}
	cf, err := agglomerateFaces(addr.LowerAddr(), addr.UpperAddr(), restrict, 8)
	require.NoError(t, err)
	assert.Equal(t, 10, len(cf.lower))
	for f := range cf.lower {
		assert.Less(t, cf.lower[f], cf.upper[f])
		if f > 0 {
			assert.LessOrEqual(t, cf.lower[f-1], cf.lower[f])
		}
	}
	var inside int
	for f, face := range cf.restrict {
		rl, ru := restrict[addr.Lower(f)], restrict[addr.Upper(f)]
		if face < 0 {
			inside++
			assert.Equal(t, rl, -1-face)
			assert.Equal(t, rl, ru)
			continue
		}
		assert.Equal(t, min(rl, ru), cf.lower[face])
		assert.Equal(t, max(rl, ru), cf.upper[face])
		assert.Equal(t, rl > ru, cf.flip[f])
	}
	assert.Equal(t, 8, inside)

	// A reversed fine face is flipped
	cf, err = agglomerateFaces([]int{1}, []int{0}, []int{0, 1}, 2)
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, cf.flip)
	assert.Equal(t, []int{0}, cf.lower)
	assert.Equal(t, []int{1}, cf.upper)
}

func TestHierarchy(t *testing.T) {
	{ // Every level satisfies the agglomeration invariants and the coarse
		// matrices are the Galerkin products of the fine ones
		for _, asym := range []bool{false, true} {
			sys := gridSystem(t, 8, 8, asym)
			ctl := controls()
			ctl.NCellsInCoarsestLevel = 4
			g := newTestGAMG(t, sys, ctl)
			agg := g.Agglomeration()
			require.Greater(t, agg.NLevels(), 2)
			for k := 0; k+1 < agg.NLevels(); k++ {
				var (
					restrict = agg.RestrictAddressing(k)
					nFine    = agg.Mesh(k).NCells()
					nCoarse  = agg.Mesh(k + 1).NCells()
					members  = make([]int, nCoarse)
				)
				require.Len(t, restrict, nFine)
				for _, cc := range restrict {
					require.True(t, cc >= 0 && cc < nCoarse)
					members[cc]++
				}
				for cc := range members {
					assert.Greater(t, members[cc], 0)
				}
				assert.Less(t, nCoarse, nFine)
				assert.True(t, agg.Mesh(k+1).Addr().UpperTriangular())
				assert.Len(t, agg.FaceRestrictAddressing(k), agg.Mesh(k).Addr().NFaces())

				fine, coarse := g.Levels()[k], g.Levels()[k+1]
				assert.Equal(t, asym, coarse.Matrix.Asymmetric())
				expect := galerkin(fine.Matrix.ToDense(), restrict, nCoarse)
				assert.True(t, mat.EqualApprox(expect, coarse.Matrix.ToDense(), 1e-12), "level %d", k+1)
				assert.InDelta(t, mat.Sum(fine.Matrix.ToDense()), mat.Sum(coarse.Matrix.ToDense()), 1e-10)
			}
			assert.GreaterOrEqual(t, agg.Mesh(agg.NLevels()-1).NCells(), 4)
		}
	}
	{ // Cyclic patches are carried to the coarse levels
		sys := chainSystem(t, 64, 2.2, 2.2, true)
		ctl := controls()
		ctl.NCellsInCoarsestLevel = 16
		g := newTestGAMG(t, sys, ctl)
		require.Equal(t, 3, g.Agglomeration().NLevels())
		for k := 0; k+1 < len(g.Levels()); k++ {
			fine, coarse := g.Levels()[k], g.Levels()[k+1]
			restrict := g.Agglomeration().RestrictAddressing(k)
			expect := galerkin(coupledDense(t, fine), restrict, coarse.Matrix.NCells())
			assert.True(t, mat.EqualApprox(expect, coupledDense(t, coarse), 1e-12))
			assert.Equal(t, [][]float64{{1}, {1}}, coarse.InterfaceBouCoeffs)
			assert.Equal(t, []int{0}, g.Agglomeration().PatchFaceRestrictAddressing(k, 0))
		}
		coarsest := g.Agglomeration().Mesh(2)
		assert.Equal(t, []int{15}, coarsest.Interfaces()[0].FaceCells())
		assert.Equal(t, []int{0}, coarsest.Interfaces()[1].FaceCells())
	}
	{ // Too few cells to coarsen leaves a single level
		g := newTestGAMG(t, chainSystem(t, 8, 2.2, 2.2, false), controls())
		assert.Equal(t, 1, g.Agglomeration().NLevels())
	}
	{ // mergeLevels folds several pair passes into one level
		ctl := controls()
		ctl.MergeLevels = 2
		ctl.NCellsInCoarsestLevel = 16
		g := newTestGAMG(t, chainSystem(t, 64, 2.2, 2.2, false), ctl)
		require.Equal(t, 2, g.Agglomeration().NLevels())
		assert.Equal(t, 16, g.Agglomeration().Mesh(1).NCells())
	}
	{ // The reduction ratio and level count stop coarsening
		ctl := controls()
		ctl.NCellsInCoarsestLevel = 1
		ctl.MinReductionRatio = 2.5
		g := newTestGAMG(t, chainSystem(t, 64, 2.2, 2.2, false), ctl)
		assert.Equal(t, 1, g.Agglomeration().NLevels())
		ctl.MinReductionRatio = 1
		ctl.MaxLevels = 3
		g = newTestGAMG(t, chainSystem(t, 64, 2.2, 2.2, false), ctl)
		assert.Equal(t, 3, g.Agglomeration().NLevels())
	}
}

func TestAgglomerationCache(t *testing.T) {
	sys := gridSystem(t, 6, 6, false)
	ctl := controls()
	a1, err := Agglomerate(sys.Matrix, ctl)
	require.NoError(t, err)
	a2, err := Agglomerate(sys.Matrix, ctl)
	require.NoError(t, err)
	assert.Same(t, a1, a2)
	sys.Matrix.Mesh().Clear()
	a3, err := Agglomerate(sys.Matrix, ctl)
	require.NoError(t, err)
	assert.NotSame(t, a1, a3)
	ctl.CacheAgglomeration = false
	a4, err := Agglomerate(sys.Matrix, ctl)
	require.NoError(t, err)
	assert.NotSame(t, a3, a4)

	ctl.Agglomerator = "faceAreaPair"
	_, err = Agglomerate(sys.Matrix, ctl)
	assert.Error(t, err)
	ctl.Agglomerator = "metis"
	_, err = Agglomerate(sys.Matrix, ctl)
	assert.True(t, errors.Is(err, ldu.ErrUnknownType))
}

func TestFaceAreaPair(t *testing.T) {
	sys := gridSystem(t, 6, 6, false)
	addr := sys.Matrix.Addr()
	areas := make([]r3.Vec, addr.NFaces())
	for f := range areas {
		if addr.Upper(f)-addr.Lower(f) == 1 {
			areas[f] = r3.Vec{X: 1}
		} else {
			areas[f] = r3.Vec{Y: 1}
		}
	}
	mesh := sys.Matrix.Mesh()
	assert.True(t, errors.Is(SetFaceAreas(mesh, areas[:3]), ldu.ErrTopology))
	require.NoError(t, SetFaceAreas(mesh, areas))
	ctl := controls()
	ctl.Agglomerator = "faceAreaPair"
	ctl.NCellsInCoarsestLevel = 4
	a, err := Agglomerate(sys.Matrix, ctl)
	require.NoError(t, err)
	assert.Equal(t, "faceAreaPair", a.Agglomerator())
	// The y faces are weighted slightly higher, so the first pass pairs
	// cells vertically
	restrict := a.RestrictAddressing(0)
	for c := 0; c < 6; c++ {
		assert.Equal(t, restrict[c], restrict[c+6])
	}
}

func TestTwoLevelVcycle(t *testing.T) {
	sys := chainSystem(t, 64, 2, 3, false)
	ctl := controls()
	ctl.NCellsInCoarsestLevel = 20
	ctl.Tolerance = 1e-14
	ctl.MaxIter = 1
	sol, err := newRegistry().NewSolver(sys, ctl)
	require.NoError(t, err)
	g := sol.(*GAMG)
	require.Equal(t, 2, g.Agglomeration().NLevels())
	assert.Equal(t, 32, g.Agglomeration().Mesh(1).NCells())

	b := make([]float64, 64)
	for i := range b {
		b[i] = 1
	}
	sp, err := sol.Solve(context.Background(), make([]float64, 64), b, 0)
	require.NoError(t, err)
	// A single V-cycle at least halves the residual
	assert.Equal(t, 1, sp.NIterations)
	assert.False(t, sp.Converged)
	assert.Less(t, sp.FinalResidual, 0.5*sp.InitialResidual)
}

func TestCoarsestLevelFailure(t *testing.T) {
	var (
		reg = newRegistry()
		sys = chainSystem(t, 64, 2, 3, false)
		ctl = controls()
		cc  = ldu.DefaultControls()
		b   = make([]float64, 64)
	)
	for i := range b {
		b[i] = 1
	}
	cc.Solver, cc.Preconditioner.Name = "PCG", "ILU0"
	cc.Tolerance = 1e-12
	ctl.NCellsInCoarsestLevel = 20
	ctl.CoarsestLevelCorr = &cc
	sol, err := reg.NewSolver(sys, ctl)
	require.NoError(t, err)
	_, err = sol.Solve(context.Background(), make([]float64, 64), b, 0)
	assert.ErrorIs(t, err, ldu.ErrUnknownType)

	// The preconditioner interface has no error return
	pc, err := NewPreconditioner(&ldu.SolverBase{System: sys, Registry: reg, Log: reg.Log}, ctl)
	require.NoError(t, err)
	assert.Panics(t, func() { pc.Precondition(make([]float64, 64), b, 0) })
}

func TestSolve(t *testing.T) {
	reg := newRegistry()
	type testCase struct {
		name string
		sys  ldu.System
		ctl  ldu.Controls
	}
	var (
		cases []testCase
		with  = func(f func(*ldu.Controls)) ldu.Controls {
			ctl := controls()
			f(&ctl)
			return ctl
		}
	)
	cases = append(cases,
		testCase{"chain", chainSystem(t, 64, 2.2, 3, false), controls()},
		testCase{"periodic chain", chainSystem(t, 64, 2.2, 2.2, true), controls()},
		testCase{"grid", gridSystem(t, 8, 8, false), controls()},
		testCase{"asymmetric grid", gridSystem(t, 8, 8, true), controls()},
		testCase{"interpolated", gridSystem(t, 8, 8, false), with(func(c *ldu.Controls) {
			c.InterpolateCorrection = true
		})},
		testCase{"pre-smoothed", gridSystem(t, 8, 8, false), with(func(c *ldu.Controls) {
			c.NPreSweeps = 2
			c.Smoother = "symGaussSeidel"
		})},
		testCase{"direct coarsest", gridSystem(t, 8, 8, true), with(func(c *ldu.Controls) {
			c.DirectSolveCoarsest = true
		})},
		testCase{"direct periodic", chainSystem(t, 64, 2.2, 2.2, true), with(func(c *ldu.Controls) {
			c.DirectSolveCoarsest = true
			c.CacheAgglomeration = false
		})},
		testCase{"DIC smoothed", gridSystem(t, 8, 8, false), with(func(c *ldu.Controls) {
			c.Smoother = "DICGaussSeidel"
		})},
		testCase{"GAMG preconditioned PCG", gridSystem(t, 8, 8, false), with(func(c *ldu.Controls) {
			c.Solver = "PCG"
			c.Preconditioner.Name = "GAMG"
		})},
		testCase{"GAMG preconditioned PBiCGStab", gridSystem(t, 8, 8, true), with(func(c *ldu.Controls) {
			c.Solver = "PBiCGStab"
			c.Preconditioner.Name = "GAMG"
		})},
	)
	for _, tc := range cases {
		var (
			n     = tc.sys.Matrix.NCells()
			b     = rhs(n)
			exact = denseSolve(t, coupledDense(t, tc.sys), b)
			psi   = make([]float64, n)
		)
		sol, err := reg.NewSolver(tc.sys, tc.ctl)
		require.NoError(t, err, tc.name)
		sp, err := sol.Solve(context.Background(), psi, b, 0)
		require.NoError(t, err, tc.name)
		assert.True(t, sp.Converged, tc.name)
		assert.Less(t, sp.FinalResidual, 1e-11, tc.name)
		assert.InDeltaSlice(t, exact, psi, 1e-7, tc.name)
	}
	{ // A single level falls back to the coarsest solver
		sys := chainSystem(t, 8, 2.2, 2.2, false)
		psi := make([]float64, 8)
		sol, err := reg.NewSolver(sys, controls())
		require.NoError(t, err)
		sp, err := sol.Solve(context.Background(), psi, rhs(8), 0)
		require.NoError(t, err)
		assert.True(t, sp.Converged)
		assert.InDeltaSlice(t, denseSolve(t, sys.Matrix.ToDense(), rhs(8)), psi, 1e-8)
	}
	{ // Cancellation
		sol, err := reg.NewSolver(gridSystem(t, 8, 8, false), controls())
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = sol.Solve(ctx, make([]float64, 64), rhs(64), 0)
		assert.True(t, errors.Is(err, context.Canceled))
	}
}
