// Package model_problems assembles the finite volume systems solved by the
// command line tool and used to exercise the solvers end to end.
package model_problems

import (
	"math"

	"github.com/notargets/gofvm/ldu"
)

// Problem is one rank's share of an assembled system.
type Problem struct {
	ldu.System
	Source []float64
	// Cells maps each local cell to its global number
	Cells []int
	// Exact is the discrete solution when it is known in closed form
	Exact []float64
}

func (p *Problem) NCells() int { return len(p.Source) }

// SetCommsType selects the protocol used for the interface updates.
func (p *Problem) SetCommsType(ct ldu.CommsType) { p.Matrix.Mesh().CommsType = ct }

// MaxError returns the largest deviation of psi from the exact solution.
func (p *Problem) MaxError(psi []float64) (maxErr float64) {
	for c, e := range p.Exact {
		if d := math.Abs(psi[c] - e); d > maxErr {
			maxErr = d
		}
	}
	return
}
