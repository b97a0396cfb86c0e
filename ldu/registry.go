package ldu

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

type (
	SolverConstructor         func(base *SolverBase) (Solver, error)
	PreconditionerConstructor func(sol *SolverBase, controls Controls) (Preconditioner, error)
	SmootherConstructor       func(sys System, controls Controls) (Smoother, error)
)

// Registry maps names to constructors, separately for symmetric and
// asymmetric matrices.
type Registry struct {
	mu              sync.RWMutex
	solvers         [2]map[string]SolverConstructor
	preconditioners [2]map[string]PreconditionerConstructor
	smoothers       [2]map[string]SmootherConstructor
	Log             logrus.FieldLogger
}

func NewRegistry() (r *Registry) {
	r = &Registry{Log: logrus.StandardLogger()}
	for i := range r.solvers {
		r.solvers[i] = make(map[string]SolverConstructor)
		r.preconditioners[i] = make(map[string]PreconditionerConstructor)
		r.smoothers[i] = make(map[string]SmootherConstructor)
	}
	return
}

func (r *Registry) AddSolver(name string, ctor SolverConstructor, mts ...MatrixType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, mt := range mts {
		r.solvers[mt][name] = ctor
	}
}

func (r *Registry) AddPreconditioner(name string, ctor PreconditionerConstructor, mts ...MatrixType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, mt := range mts {
		r.preconditioners[mt][name] = ctor
	}
}

func (r *Registry) AddSmoother(name string, ctor SmootherConstructor, mts ...MatrixType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, mt := range mts {
		r.smoothers[mt][name] = ctor
	}
}

// NewSolver builds the solver named by controls for sys. A diagonal matrix
// always gets the "diagonal" solver.
func (r *Registry) NewSolver(sys System, controls Controls) (sol Solver, err error) {
	if err = sys.Prepare(); err != nil {
		return
	}
	if err = controls.Check(); err != nil {
		return nil, fmt.Errorf("solver controls for %s: %w", sys.FieldName, err)
	}
	var (
		mt   = sys.Matrix.Type()
		name = controls.Solver
	)
	if sys.Matrix.Diagonal() {
		name = "diagonal"
	}
	r.mu.RLock()
	ctor, ok := r.solvers[mt][name]
	valid := keys(r.solvers[mt])
	r.mu.RUnlock()
	if !ok {
		return nil, r.unknown("solver", name, mt, valid)
	}
	return ctor(&SolverBase{
		System:   sys,
		Name:     name,
		Controls: controls,
		Registry: r,
		Log:      r.Log,
	})
}

// NewPreconditioner builds the preconditioner named in the solver controls.
// An empty name means "none".
func (r *Registry) NewPreconditioner(sol *SolverBase, controls Controls) (pc Preconditioner, err error) {
	var (
		mt   = sol.Matrix.Type()
		name = controls.Preconditioner.Name
	)
	if len(name) == 0 {
		name = "none"
	}
	r.mu.RLock()
	ctor, ok := r.preconditioners[mt][name]
	valid := keys(r.preconditioners[mt])
	r.mu.RUnlock()
	if !ok {
		return nil, r.unknown("preconditioner", name, mt, valid)
	}
	return ctor(sol, controls.PreconditionerControls())
}

func (r *Registry) NewSmoother(sys System, controls Controls) (sm Smoother, err error) {
	var (
		mt   = sys.Matrix.Type()
		name = controls.Smoother
	)
	r.mu.RLock()
	ctor, ok := r.smoothers[mt][name]
	valid := keys(r.smoothers[mt])
	r.mu.RUnlock()
	if !ok {
		return nil, r.unknown("smoother", name, mt, valid)
	}
	return ctor(sys, controls)
}

func (r *Registry) unknown(kind, name string, mt MatrixType, valid []string) error {
	return fmt.Errorf("%w: unknown %s %s %q, valid choices are [%s]",
		ErrUnknownType, mt, kind, name, strings.Join(valid, ", "))
}

func keys[T any](m map[string]T) (names []string) {
	names = make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return
}
