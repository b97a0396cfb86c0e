package ldu

import (
	"encoding/json"
	"fmt"
)

// Controls is the solver control dictionary. It decodes from the YAML case
// file through its JSON tags; keys that are absent keep their defaults.
type Controls struct {
	Solver         string   `json:"solver"`
	Preconditioner Selector `json:"preconditioner,omitempty"`
	Smoother       string   `json:"smoother,omitempty"`

	Tolerance  float64 `json:"tolerance"`
	RelTol     float64 `json:"relTol"`
	MaxIter    int     `json:"maxIter"`
	MinIter    int     `json:"minIter"`
	NSweeps    int     `json:"nSweeps"`
	PivotGuard float64 `json:"pivotGuard"`
	Debug      int     `json:"debug,omitempty"`

	// Agglomeration
	NCellsInCoarsestLevel int     `json:"nCellsInCoarsestLevel"`
	MaxLevels             int     `json:"maxLevels"`
	MergeLevels           int     `json:"mergeLevels"`
	MinReductionRatio     float64 `json:"minReductionRatio"`
	MaxInterfaceRatio     float64 `json:"maxInterfaceRatio"`
	Agglomerator          string  `json:"agglomerator"`
	CacheAgglomeration    bool    `json:"cacheAgglomeration"`

	// V-cycle
	NPreSweeps                int       `json:"nPreSweeps"`
	PreSweepsLevelMultiplier  int       `json:"preSweepsLevelMultiplier"`
	MaxPreSweeps              int       `json:"maxPreSweeps"`
	NPostSweeps               int       `json:"nPostSweeps"`
	PostSweepsLevelMultiplier int       `json:"postSweepsLevelMultiplier"`
	MaxPostSweeps             int       `json:"maxPostSweeps"`
	NFinestSweeps             int       `json:"nFinestSweeps"`
	InterpolateCorrection     bool      `json:"interpolateCorrection"`
	ScaleCorrection           *bool     `json:"scaleCorrection,omitempty"`
	DirectSolveCoarsest       bool      `json:"directSolveCoarsest"`
	CoarsestLevelCorr         *Controls `json:"coarsestLevelCorr,omitempty"`
	NVcycles                  int       `json:"nVcycles"`
}

func DefaultControls() Controls {
	return Controls{
		Preconditioner: Selector{Name: "none"},
		Tolerance:      1e-6,
		MaxIter:        1000,
		NSweeps:        1,
		PivotGuard:     1e-15,

		NCellsInCoarsestLevel: 10,
		MaxLevels:             50,
		MergeLevels:           1,
		MinReductionRatio:     1.0,
		Agglomerator:          "algebraicPair",
		CacheAgglomeration:    true,

		PreSweepsLevelMultiplier:  1,
		MaxPreSweeps:              4,
		NPostSweeps:               2,
		PostSweepsLevelMultiplier: 1,
		MaxPostSweeps:             4,
		NFinestSweeps:             2,
		NVcycles:                  2,
	}
}

func (c *Controls) UnmarshalJSON(data []byte) (err error) {
	type plain Controls
	p := plain(DefaultControls())
	if err = json.Unmarshal(data, &p); err != nil {
		return
	}
	*c = Controls(p)
	return
}

// ScaleCorrectionFor resolves the scaleCorrection switch, which defaults to
// on for symmetric matrices only.
func (c Controls) ScaleCorrectionFor(mt MatrixType) bool {
	if c.ScaleCorrection != nil {
		return *c.ScaleCorrection
	}
	return mt == SymmetricMatrix
}

// PreconditionerControls returns the controls handed to the preconditioner:
// its own block when one was given, otherwise these controls.
func (c Controls) PreconditionerControls() Controls {
	if c.Preconditioner.Controls != nil {
		return *c.Preconditioner.Controls
	}
	return c
}

func (c Controls) Check() (err error) {
	switch {
	case c.Tolerance < 0, c.RelTol < 0:
		err = fmt.Errorf("tolerance %g and relTol %g must not be negative", c.Tolerance, c.RelTol)
	case c.MaxIter < 0, c.MinIter < 0:
		err = fmt.Errorf("maxIter %d and minIter %d must not be negative", c.MaxIter, c.MinIter)
	case c.MaxLevels < 1:
		err = fmt.Errorf("maxLevels must be at least 1, have %d", c.MaxLevels)
	case c.MergeLevels < 1:
		err = fmt.Errorf("mergeLevels must be at least 1, have %d", c.MergeLevels)
	case c.NVcycles < 1:
		err = fmt.Errorf("nVcycles must be at least 1, have %d", c.NVcycles)
	}
	return
}

// Selector names a preconditioner. In a case file it is either a bare name
// or a block carrying its own controls plus a "preconditioner" key.
type Selector struct {
	Name     string
	Controls *Controls
}

func (s *Selector) UnmarshalJSON(data []byte) (err error) {
	var name string
	if err = json.Unmarshal(data, &name); err == nil {
		s.Name, s.Controls = name, nil
		return
	}
	ctl := new(Controls)
	if err = json.Unmarshal(data, ctl); err != nil {
		return fmt.Errorf("preconditioner must be a name or a block: %w", err)
	}
	s.Name, s.Controls = ctl.Preconditioner.Name, ctl
	return
}

func (s Selector) MarshalJSON() ([]byte, error) {
	if s.Controls == nil {
		return json.Marshal(s.Name)
	}
	ctl := *s.Controls
	ctl.Preconditioner = Selector{Name: s.Name}
	return json.Marshal(ctl)
}
