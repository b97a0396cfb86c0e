package InputParameters

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gofvm/ldu"
)

const caseFile = `
Title: "Heated rod"
Model: diffusion1D
NCells: 64
NProcs: 4
CommsType: scheduled
Solvers:
  T:
    solver: GAMG
    smoother: GaussSeidel
    tolerance: 1e-8
    relTol: 0.01
    nCellsInCoarsestLevel: 4
  p:
    solver: PCG
    preconditioner:
      preconditioner: GAMG
      smoother: DICGaussSeidel
      nVcycles: 1
`

func TestParse(t *testing.T) {
	{ // A full case file over the defaults
		cp := NewCaseParameters()
		require.NoError(t, cp.Parse([]byte(caseFile)))
		assert.Equal(t, "Heated rod", cp.Title)
		assert.Equal(t, 64, cp.NCells)
		assert.Equal(t, 4, cp.NProcs)
		assert.Equal(t, 1.0, cp.Length)
		assert.Equal(t, "T", cp.Field)
		ct, err := cp.Comms()
		require.NoError(t, err)
		assert.Equal(t, ldu.Scheduled, ct)

		ctl, ok := cp.Controls("T")
		require.True(t, ok)
		assert.Equal(t, "GAMG", ctl.Solver)
		assert.Equal(t, 1e-8, ctl.Tolerance)
		assert.Equal(t, 0.01, ctl.RelTol)
		assert.Equal(t, 4, ctl.NCellsInCoarsestLevel)
		// Keys left out keep their defaults
		assert.Equal(t, 1000, ctl.MaxIter)
		assert.Equal(t, 2, ctl.NPostSweeps)

		ctl, ok = cp.Controls("p")
		require.True(t, ok)
		assert.Equal(t, "PCG", ctl.Solver)
		assert.Equal(t, "GAMG", ctl.Preconditioner.Name)
		pc := ctl.PreconditionerControls()
		assert.Equal(t, "DICGaussSeidel", pc.Smoother)
		assert.Equal(t, 1, pc.NVcycles)

		ctl, ok = cp.Controls("U")
		assert.False(t, ok)
		assert.Equal(t, "PCG", ctl.Solver)
		assert.Equal(t, "DIC", ctl.Preconditioner.Name)
	}
	{ // Bad values
		cp := NewCaseParameters()
		err := cp.Parse([]byte("CommsType: carrierPigeon\n"))
		assert.True(t, errors.Is(err, ldu.ErrUnknownType))
		assert.Error(t, NewCaseParameters().Parse([]byte("NProcs: 0\n")))
		assert.Error(t, NewCaseParameters().Parse([]byte("Solvers:\n  T:\n    maxLevels: 0\n")))
		assert.Error(t, NewCaseParameters().Parse([]byte("NCells: [1, 2]\n")))
		assert.Error(t, NewCaseParameters().Parse([]byte("Cells: 10\n")))
	}
	{ // Grid sizes come through under their own keys
		cp := NewCaseParameters()
		require.NoError(t, cp.Parse([]byte("NCells: 64\nNx: 8\nNy: 3\n")))
		assert.Equal(t, 64, cp.NCells)
		assert.Equal(t, 8, cp.Nx)
		assert.Equal(t, 3, cp.Ny)
		// YAML 1.1 reads a bare N as false, which is never a case key
		cp = NewCaseParameters()
		err := cp.Parse([]byte("N: 64\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "false")
		assert.Equal(t, 100, cp.NCells)
	}
}
