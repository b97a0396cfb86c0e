package gamg

import (
	"context"

	"gonum.org/v1/gonum/floats"

	"github.com/notargets/gofvm/ldu"
	"github.com/notargets/gofvm/pstream"
)

// vcycle holds the per level work fields and smoothers of one solve.
// Index k runs over levels, so corr[0] and src[0] are unused.
type vcycle struct {
	g         *GAMG
	smoothers []ldu.Smoother
	corr      [][]float64
	src       [][]float64
	acf       [][]float64
	pre       [][]float64
}

func (g *GAMG) newVcycle() (v *vcycle, err error) {
	var (
		nLevels = len(g.levels)
	)
	v = &vcycle{
		g:         g,
		smoothers: make([]ldu.Smoother, nLevels),
		corr:      make([][]float64, nLevels),
		src:       make([][]float64, nLevels),
		acf:       make([][]float64, nLevels),
		pre:       make([][]float64, nLevels),
	}
	for k, sys := range g.levels {
		if v.smoothers[k], err = g.Registry.NewSmoother(sys, g.Controls); err != nil {
			return nil, err
		}
		if k == 0 {
			continue
		}
		n := sys.Matrix.NCells()
		v.corr[k], v.src[k], v.acf[k] = make([]float64, n), make([]float64, n), make([]float64, n)
		if g.Controls.NPreSweeps > 0 {
			v.pre[k] = make([]float64, n)
		}
	}
	return
}

/*
run applies one V-cycle to psi. On entry finestResidual holds source - A psi;
Apsi and finestCorrection are scratch. Going down, the residual is
restricted level by level, optionally pre-smoothing the correction on each
intermediate level. The coarsest level is solved, and going up each
correction is prolonged, optionally interpolated, scaled and post-smoothed.
*/
func (v *vcycle) run(ctx context.Context, psi, source, Apsi, finestCorrection, finestResidual []float64,
	cmpt int) (err error) {
	var (
		g        = v.g
		ctl      = g.Controls
		agg      = g.agglomeration
		coarsest = len(g.levels) - 1
		nPre     = ctl.NPreSweeps
	)
	if nPre > 0 {
		v.smoothers[0].Smooth(psi, source, cmpt, nPre)
		g.Matrix.Residual(finestResidual, psi, source, g.InterfaceBouCoeffs, g.Interfaces, cmpt)
	}
	if coarsest == 0 {
		if err = g.solveCoarsest(ctx, finestCorrection, finestResidual, cmpt); err != nil {
			return
		}
		floats.Add(psi, finestCorrection)
		v.smoothers[0].Smooth(psi, source, cmpt, ctl.NFinestSweeps)
		return
	}

	agg.RestrictField(v.src[1], finestResidual, 0)
	for k := 1; k < coarsest; k++ {
		if nPre > 0 {
			lvl := g.levels[k]
			clear(v.corr[k])
			v.smoothers[k].Smooth(v.corr[k], v.src[k], cmpt,
				min(nPre+ctl.PreSweepsLevelMultiplier*(k-1), ctl.MaxPreSweeps))
			// Scaling on the level below the coarsest evaluates to one
			if g.scaleCorrection && k < coarsest-1 {
				v.scale(k, v.corr[k], v.acf[k], v.src[k], cmpt)
			}
			lvl.Matrix.Amul(v.acf[k], v.corr[k], lvl.InterfaceBouCoeffs, lvl.Interfaces, cmpt)
			floats.Sub(v.src[k], v.acf[k])
		}
		agg.RestrictField(v.src[k+1], v.src[k], k)
	}

	if err = g.solveCoarsest(ctx, v.corr[coarsest], v.src[coarsest], cmpt); err != nil {
		return
	}

	for k := coarsest - 1; k >= 1; k-- {
		if nPre > 0 {
			copy(v.pre[k], v.corr[k])
		}
		agg.ProlongField(v.corr[k], v.corr[k+1], k)
		if ctl.InterpolateCorrection {
			v.interpolateCoarse(k, v.corr[k], v.acf[k], v.corr[k+1], cmpt)
		}
		if g.scaleCorrection && (ctl.InterpolateCorrection || k < coarsest-1) {
			v.scale(k, v.corr[k], v.acf[k], v.src[k], cmpt)
		}
		if nPre > 0 {
			floats.Add(v.corr[k], v.pre[k])
		}
		v.smoothers[k].Smooth(v.corr[k], v.src[k], cmpt,
			min(ctl.NPostSweeps+ctl.PostSweepsLevelMultiplier*(k-1), ctl.MaxPostSweeps))
	}

	agg.ProlongField(finestCorrection, v.corr[1], 0)
	if ctl.InterpolateCorrection {
		v.interpolateCoarse(0, finestCorrection, Apsi, v.corr[1], cmpt)
	}
	if g.scaleCorrection {
		v.scale(0, finestCorrection, Apsi, finestResidual, cmpt)
	}
	floats.Add(psi, finestCorrection)
	v.smoothers[0].Smooth(psi, source, cmpt, ctl.NFinestSweeps)
	return
}

// scale replaces the correction field on level k by the multiple that
// minimises the energy norm of the error, followed by one Jacobi step.
// Acf is scratch.
func (v *vcycle) scale(k int, field, Acf, source []float64, cmpt int) {
	var (
		lvl  = v.g.levels[k]
		diag = lvl.Matrix.Diag()
	)
	lvl.Matrix.Amul(Acf, field, lvl.InterfaceBouCoeffs, lvl.Interfaces, cmpt)
	sums := pstream.AllReduceSlice(lvl.Comm(),
		[]float64{floats.Dot(source, field), floats.Dot(Acf, field)}, pstream.SumOp)
	sf := sums[0] / ldu.Stabilise(sums[1], ldu.VSmall)
	v.g.Debugf("level %d scaling factor %g", k, sf)
	for c := range field {
		field[c] = sf*field[c] + (source[c]-sf*Acf[c])/diag[c]
	}
}

// interpolate replaces psi on level k by the Jacobi estimate built from the
// off diagonal part of the matrix alone. Apsi is scratch.
func (v *vcycle) interpolate(k int, psi, Apsi []float64, cmpt int) {
	var (
		lvl   = v.g.levels[k]
		m     = lvl.Matrix
		l, u  = m.Addr().LowerAddr(), m.Addr().UpperAddr()
		diag  = m.Diag()
		upper = m.Upper()
		lower = m.Lower()
	)
	clear(Apsi)
	m.InitMatrixInterfaces(lvl.InterfaceBouCoeffs, lvl.Interfaces, psi, Apsi, cmpt)
	for f := range l {
		Apsi[u[f]] += lower[f] * psi[l[f]]
		Apsi[l[f]] += upper[f] * psi[u[f]]
	}
	m.UpdateMatrixInterfaces(lvl.InterfaceBouCoeffs, lvl.Interfaces, psi, Apsi, cmpt)
	floats.DivTo(psi, Apsi, diag)
	floats.Scale(-1, psi)
}

// interpolateCoarse is interpolate followed by a correction that restores
// the diagonal weighted mean of each coarse cell to the coarse value psiC.
func (v *vcycle) interpolateCoarse(k int, psi, Apsi, psiC []float64, cmpt int) {
	var (
		restrict = v.g.agglomeration.RestrictAddressing(k)
		diag     = v.g.levels[k].Matrix.Diag()
		corrC    = make([]float64, len(psiC))
		diagC    = make([]float64, len(psiC))
	)
	v.interpolate(k, psi, Apsi, cmpt)
	for c, cc := range restrict {
		corrC[cc] += diag[c] * psi[c]
		diagC[cc] += diag[c]
	}
	for cc := range corrC {
		corrC[cc] = psiC[cc] - corrC[cc]/diagC[cc]
	}
	for c, cc := range restrict {
		psi[c] += corrC[cc]
	}
}
