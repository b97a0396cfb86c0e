package ldu

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/notargets/gofvm/pstream"
)

// System is one linear system A psi = source, together with the coupled
// interfaces that extend A across patches.
type System struct {
	FieldName string
	Matrix    *Matrix
	// InterfaceBouCoeffs multiply the neighbour values in A psi.
	InterfaceBouCoeffs [][]float64
	// InterfaceIntCoeffs multiply the neighbour values in A^T psi. When left
	// nil the coupling is taken to be symmetric.
	InterfaceIntCoeffs [][]float64
	Interfaces         InterfaceFields
}

// Prepare checks the interface coefficients against the interfaces and
// fills in symmetric internal coefficients when none were given.
func (s *System) Prepare() (err error) {
	if s.Matrix == nil {
		return fmt.Errorf("%w: system %q has no matrix", ErrTopology, s.FieldName)
	}
	if len(s.Interfaces) == 0 {
		return
	}
	if err = CheckPatchCoeffs(s.Interfaces, s.InterfaceBouCoeffs); err != nil {
		return
	}
	if s.InterfaceIntCoeffs == nil {
		s.InterfaceIntCoeffs = s.InterfaceBouCoeffs
	}
	return CheckPatchCoeffs(s.Interfaces, s.InterfaceIntCoeffs)
}

func (s System) Comm() *pstream.Comm { return s.Matrix.Mesh().Comm() }

type Solver interface {
	// Solve updates psi in place. It checks ctx once per outer iteration and
	// returns its error if it was cancelled.
	Solve(ctx context.Context, psi, source []float64, cmpt int) (SolverPerformance, error)
	Base() *SolverBase
}

type Preconditioner interface {
	// Precondition computes wA = M^-1 rA.
	Precondition(wA, rA []float64, cmpt int)
	// PreconditionT computes wT = M^-T rT.
	PreconditionT(wT, rT []float64, cmpt int)
}

type Smoother interface {
	// Smooth applies nSweeps relaxation sweeps to psi in place.
	Smooth(psi, source []float64, cmpt int, nSweeps int)
}

// SolverBase carries what every solver shares: the system, the controls and
// the registry used to build preconditioners and nested solvers.
type SolverBase struct {
	System
	Name     string
	Controls Controls
	Registry *Registry
	Log      logrus.FieldLogger
}

func (s *SolverBase) Base() *SolverBase { return s }

// NormFactor is the scale that turns a residual sum into a normalised
// residual. It compares A psi and source against A applied to the average of
// psi, so that a uniform offset in psi does not count as error.
func (s *SolverBase) NormFactor(psi, source, Apsi, tmpField []float64) float64 {
	var (
		comm = s.Comm()
		sum  float64
	)
	s.Matrix.SumA(tmpField, s.InterfaceBouCoeffs, s.Interfaces)
	avg := GAverage(comm, psi)
	for c := range tmpField {
		xRef := tmpField[c] * avg
		sum += math.Abs(Apsi[c]-xRef) + math.Abs(source[c]-xRef)
	}
	return pstream.AllReduce(comm, sum, pstream.SumOp) + Small
}

// Start reports whether the iteration loop has to run at all.
func (s *SolverBase) Start(sp *SolverPerformance) bool {
	return s.Controls.MinIter > 0 || !sp.CheckConvergence(s.Controls.Tolerance, s.Controls.RelTol)
}

// Continue is the loop test shared by the iterative solvers: iterate until
// converged or out of iterations, but at least minIter times. A residual
// that is no longer finite stops the loop unconverged.
func (s *SolverBase) Continue(sp *SolverPerformance) bool {
	if !sp.Valid() {
		sp.Converged = false
		return false
	}
	return (sp.NIterations < s.Controls.MaxIter &&
		!sp.CheckConvergence(s.Controls.Tolerance, s.Controls.RelTol)) ||
		sp.NIterations < s.Controls.MinIter
}

func (s *SolverBase) Debugf(format string, args ...any) {
	if s.Controls.Debug > 0 {
		s.Log.WithField("field", s.FieldName).Debugf(format, args...)
	}
}

// CheckContext returns the context error, if any, without blocking.
func CheckContext(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
