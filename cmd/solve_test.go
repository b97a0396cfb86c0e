package cmd

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gofvm/InputParameters"
	"github.com/notargets/gofvm/ldu"
)

func TestRunSolve(t *testing.T) {
	logger, hook := test.NewNullLogger()
	{ // Decomposed rod
		cp := InputParameters.NewCaseParameters()
		require.NoError(t, cp.Parse([]byte(`
Title: Test Case
Model: diffusion1D
NCells: 40
Left: 2
Right: -2
NProcs: 3
CommsType: scheduled
Solvers:
  T:
    solver: GAMG
    smoother: symGaussSeidel
    tolerance: 1e-12
    nCellsInCoarsestLevel: 3
`)))
		cp.Print()
		res, err := RunSolve(context.Background(), cp, logger)
		require.NoError(t, err)
		res.Print()
		assert.Equal(t, "GAMG", res.Perf.SolverName)
		assert.Equal(t, ldu.Scheduled, res.Comms)
		assert.True(t, res.Perf.Converged)
		assert.Less(t, res.MaxError, 1e-8)
		require.Len(t, res.Psi, 40)
		assert.InDeltaSlice(t, res.Exact, res.Psi, 1e-8)
		// Only the master logs
		assert.Len(t, hook.Entries, 1)
		assert.Contains(t, hook.LastEntry().Message, "GAMG: Solving for T")
	}
	{ // Periodic convection, default controls for an unlisted field
		cp := InputParameters.NewCaseParameters()
		require.NoError(t, cp.Parse([]byte(`
Model: laplace2D
Nx: 10
Ny: 8
Periodic: true
Field: phi
Solvers:
  phi:
    solver: PBiCGStab
    preconditioner: DILU
    tolerance: 1e-10
`)))
		cp.Convection = 1.5
		res, err := RunSolve(context.Background(), cp, logger)
		require.NoError(t, err)
		assert.Equal(t, "DILUPBiCGStab", res.Perf.SolverName)
		assert.Equal(t, "phi", res.Perf.FieldName)
		assert.True(t, res.Perf.Converged)
		require.Len(t, res.Psi, 10)
		for _, v := range res.Psi {
			assert.Greater(t, v, 0.)
		}
		cp.NProcs = 2
		_, err = RunSolve(context.Background(), cp, logger)
		assert.Error(t, err)
	}
	{ // Unknown model
		cp := InputParameters.NewCaseParameters()
		cp.Model = "navierStokes"
		_, err := RunSolve(context.Background(), cp, logger)
		assert.ErrorIs(t, err, ldu.ErrUnknownType)
	}
}

func TestRunBench(t *testing.T) {
	b := &Bench{Nx: 8, Ny: 6, Repeat: 3, Preconditioner: "GAMG"}
	results, err := RunBench(b)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "Amul", results[0].Kernel)
	assert.Equal(t, "CSRAmul", results[1].Kernel)
	assert.Equal(t, "GAMG", results[2].Kernel)
	assert.Zero(t, results[2].Instructions)
	PrintBench(b, results)

	b.Preconditioner = "DILU"
	_, err = RunBench(b)
	assert.ErrorIs(t, err, ldu.ErrUnknownType)
	b.Repeat = 0
	_, err = RunBench(b)
	assert.Error(t, err)
}
