package ldu

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

const (
	Small  = 1.0e-20
	VSmall = 1.0e-300
	Great  = 1.0e20
)

// SolverPerformance is the record returned by every solve.
type SolverPerformance struct {
	SolverName      string
	FieldName       string
	InitialResidual float64
	FinalResidual   float64
	NIterations     int
	Converged       bool
	Singular        bool
}

func NewSolverPerformance(solverName, fieldName string) SolverPerformance {
	return SolverPerformance{SolverName: solverName, FieldName: fieldName}
}

// CheckConvergence marks the solve converged when the final residual is
// below the absolute tolerance, or below relTol times the initial residual.
func (sp *SolverPerformance) CheckConvergence(tolerance, relTol float64) bool {
	sp.Converged = sp.FinalResidual < tolerance ||
		(relTol > Small && sp.FinalResidual < relTol*sp.InitialResidual)
	return sp.Converged
}

func (sp *SolverPerformance) CheckSingularity(residual float64) bool {
	sp.Singular = residual < VSmall
	return sp.Singular
}

// Valid reports whether the residuals are finite.
func (sp SolverPerformance) Valid() bool {
	for _, r := range []float64{sp.InitialResidual, sp.FinalResidual} {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return false
		}
	}
	return true
}

func (sp SolverPerformance) Fields() logrus.Fields {
	return logrus.Fields{
		"solver":     sp.SolverName,
		"field":      sp.FieldName,
		"initial":    sp.InitialResidual,
		"final":      sp.FinalResidual,
		"iterations": sp.NIterations,
		"singular":   sp.Singular,
	}
}

func (sp SolverPerformance) String() string {
	return fmt.Sprintf("%s: Solving for %s, Initial residual = %g, Final residual = %g, No Iterations %d",
		sp.SolverName, sp.FieldName, sp.InitialResidual, sp.FinalResidual, sp.NIterations)
}

func (sp SolverPerformance) Print(log logrus.FieldLogger) {
	entry := log.WithFields(sp.Fields())
	switch {
	case !sp.Valid():
		entry.Warn(sp.String() + ", residual is not finite")
	case sp.Singular:
		entry.Warn(sp.String() + ", matrix is singular")
	default:
		entry.Info(sp.String())
	}
}
