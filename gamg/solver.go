package gamg

import (
	"context"

	"gonum.org/v1/gonum/floats"

	"github.com/notargets/gofvm/ldu"
)

// GAMG is the geometric agglomerated algebraic multigrid solver. It runs
// V-cycles over the agglomeration hierarchy until the finest level
// residual converges.
type GAMG struct {
	*ldu.SolverBase
	agglomeration   *Agglomeration
	levels          []ldu.System // levels[0] is the system being solved
	scaleCorrection bool
	coarsest        ldu.Solver
	direct          *directSolver
}

func NewGAMG(base *ldu.SolverBase) (ldu.Solver, error) {
	return newGAMG(base)
}

func newGAMG(base *ldu.SolverBase) (g *GAMG, err error) {
	if len(base.Controls.Smoother) == 0 {
		base.Controls.Smoother = "GaussSeidel"
	}
	var (
		agg *Agglomeration
	)
	if agg, err = Agglomerate(base.Matrix, base.Controls); err != nil {
		return
	}
	g = &GAMG{
		SolverBase:      base,
		agglomeration:   agg,
		levels:          []ldu.System{base.System},
		scaleCorrection: base.Controls.ScaleCorrectionFor(base.Matrix.Type()),
	}
	for k := 0; k+1 < agg.NLevels(); k++ {
		var coarse ldu.System
		agg.Mesh(k + 1).CommsType = base.Matrix.Mesh().CommsType
		if coarse, err = agg.restrictSystem(g.levels[k], k); err != nil {
			return nil, err
		}
		g.levels = append(g.levels, coarse)
	}
	if err = g.initCoarsest(); err != nil {
		return nil, err
	}
	return
}

// Levels returns the system of every level, finest first.
func (g *GAMG) Levels() []ldu.System { return g.levels }

func (g *GAMG) Agglomeration() *Agglomeration { return g.agglomeration }

func (g *GAMG) initCoarsest() (err error) {
	var (
		sys = g.levels[len(g.levels)-1]
		ctl = g.Controls
	)
	if ctl.DirectSolveCoarsest {
		if !sys.Comm().Parallel() {
			g.direct = newDirectSolver(sys)
			return
		}
		g.Log.WithField("field", g.FieldName).
			Warn("directSolveCoarsest needs a serial run, solving the coarsest level iteratively")
	}
	var cc ldu.Controls
	if ctl.CoarsestLevelCorr != nil {
		cc = *ctl.CoarsestLevelCorr
	} else {
		cc = ldu.DefaultControls()
		cc.Tolerance, cc.RelTol = ctl.Tolerance, ctl.RelTol
		if sys.Matrix.Asymmetric() {
			cc.Solver, cc.Preconditioner.Name = "PBiCGStab", "DILU"
		} else {
			cc.Solver, cc.Preconditioner.Name = "PCG", "DIC"
		}
	}
	sys.FieldName = "coarsestLevelCorr"
	g.coarsest, err = g.Registry.NewSolver(sys, cc)
	return
}

func (g *GAMG) Solve(ctx context.Context, psi, source []float64, cmpt int) (sp ldu.SolverPerformance, err error) {
	var (
		comm             = g.Comm()
		nCells           = len(psi)
		Apsi             = make([]float64, nCells)
		finestCorrection = make([]float64, nCells)
		finestResidual   = make([]float64, nCells)
		cycle            *vcycle
	)
	sp = ldu.NewSolverPerformance("GAMG", g.FieldName)
	g.Matrix.Amul(Apsi, psi, g.InterfaceBouCoeffs, g.Interfaces, cmpt)
	normFactor := g.NormFactor(psi, source, Apsi, finestCorrection)
	floats.SubTo(finestResidual, source, Apsi)
	sp.InitialResidual = ldu.GSumMag(comm, finestResidual) / normFactor
	sp.FinalResidual = sp.InitialResidual
	g.Debugf("normalisation factor %g", normFactor)
	if !g.Start(&sp) {
		return
	}
	if cycle, err = g.newVcycle(); err != nil {
		return
	}
	for {
		if err = ldu.CheckContext(ctx); err != nil {
			return
		}
		if err = cycle.run(ctx, psi, source, Apsi, finestCorrection, finestResidual, cmpt); err != nil {
			return
		}
		g.Matrix.Amul(Apsi, psi, g.InterfaceBouCoeffs, g.Interfaces, cmpt)
		floats.SubTo(finestResidual, source, Apsi)
		sp.FinalResidual = ldu.GSumMag(comm, finestResidual) / normFactor
		g.Debugf("V-cycle %d residual %g", sp.NIterations+1, sp.FinalResidual)

		sp.NIterations++
		if !g.Continue(&sp) {
			break
		}
	}
	return
}

// solveCoarsest solves the coarsest level for corr from zero.
func (g *GAMG) solveCoarsest(ctx context.Context, corr, source []float64, cmpt int) (err error) {
	if g.direct != nil {
		return g.direct.solve(corr, source, cmpt)
	}
	clear(corr)
	sp, err := g.coarsest.Solve(ctx, corr, source, cmpt)
	if err == nil && g.Controls.Debug >= 2 {
		sp.Print(g.Log)
	}
	return
}
