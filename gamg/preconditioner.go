package gamg

import (
	"context"
	"fmt"

	"github.com/notargets/gofvm/ldu"
)

// Preconditioner applies nVcycles V-cycles to A w = r starting from w = 0.
type Preconditioner struct {
	gamg             *GAMG
	cycle            *vcycle
	nVcycles         int
	AwA              []float64
	finestCorrection []float64
	finestResidual   []float64
}

func NewPreconditioner(sol *ldu.SolverBase, controls ldu.Controls) (ldu.Preconditioner, error) {
	var (
		n    = sol.Matrix.NCells()
		base = &ldu.SolverBase{
			System:   sol.System,
			Name:     "GAMG",
			Controls: controls,
			Registry: sol.Registry,
			Log:      sol.Log,
		}
	)
	g, err := newGAMG(base)
	if err != nil {
		return nil, err
	}
	cycle, err := g.newVcycle()
	if err != nil {
		return nil, err
	}
	return &Preconditioner{
		gamg:             g,
		cycle:            cycle,
		nVcycles:         controls.NVcycles,
		AwA:              make([]float64, n),
		finestCorrection: make([]float64, n),
		finestResidual:   make([]float64, n),
	}, nil
}

func (p *Preconditioner) Precondition(wA, rA []float64, cmpt int) {
	var (
		g = p.gamg
	)
	clear(wA)
	copy(p.finestResidual, rA)
	for cycle := 0; cycle < p.nVcycles; cycle++ {
		err := p.cycle.run(context.Background(), wA, rA, p.AwA, p.finestCorrection, p.finestResidual, cmpt)
		if err != nil {
			panic(fmt.Errorf("GAMG preconditioner for %s: %w", g.FieldName, err))
		}
		if cycle < p.nVcycles-1 {
			g.Matrix.Residual(p.finestResidual, wA, rA, g.InterfaceBouCoeffs, g.Interfaces, cmpt)
		}
	}
}

// PreconditionT uses the V-cycle of A in place of that of A^T, which is
// exact only for symmetric matrices.
func (p *Preconditioner) PreconditionT(wT, rT []float64, cmpt int) {
	p.Precondition(wT, rT, cmpt)
}
