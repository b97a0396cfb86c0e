package InputParameters

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ghodss/yaml"

	"github.com/notargets/gofvm/ldu"
)

// CaseParameters are obtained from the YAML case file
type CaseParameters struct {
	Title       string                  `json:"Title"`
	Model       string                  `json:"Model"`  // diffusion1D or laplace2D
	NCells      int                     `json:"NCells"` // Cells in 1D
	Nx          int                     `json:"Nx"`
	Ny          int                     `json:"Ny"`
	Length      float64                 `json:"Length"`
	Diffusivity float64                 `json:"Diffusivity"`
	Left        float64                 `json:"Left"`
	Right       float64                 `json:"Right"`
	Periodic    bool                    `json:"Periodic"`
	Convection  float64                 `json:"Convection"` // Non zero makes the 2D operator asymmetric
	NProcs      int                     `json:"NProcs"`
	CommsType   string                  `json:"CommsType"`
	Field       string                  `json:"Field"`
	Solvers     map[string]ldu.Controls `json:"Solvers"` // Keyed by field name
}

func NewCaseParameters() *CaseParameters {
	return &CaseParameters{
		Title:       "untitled",
		Model:       "diffusion1D",
		NCells:      100,
		Nx:          32,
		Ny:          32,
		Length:      1,
		Diffusivity: 1,
		Right:       1,
		NProcs:      1,
		Field:       "T",
	}
}

// Parse overlays the case file on the defaults. Unknown keys are rejected,
// which also catches keys YAML reads as booleans (N, y, on, ...).
func (cp *CaseParameters) Parse(data []byte) (err error) {
	var js []byte
	if js, err = yaml.YAMLToJSON(data); err != nil {
		return
	}
	dec := json.NewDecoder(bytes.NewReader(js))
	dec.DisallowUnknownFields()
	if err = dec.Decode(cp); err != nil {
		return fmt.Errorf("case file: %w", err)
	}
	if cp.NProcs < 1 {
		return fmt.Errorf("NProcs must be at least 1, have %d", cp.NProcs)
	}
	if _, err = cp.Comms(); err != nil {
		return
	}
	for name, ctl := range cp.Solvers {
		if err = ctl.Check(); err != nil {
			return fmt.Errorf("solver controls for %s: %w", name, err)
		}
	}
	return
}

func (cp *CaseParameters) Comms() (ldu.CommsType, error) {
	return ldu.ParseCommsType(cp.CommsType)
}

// Controls returns the solver controls for a field, or the defaults when
// the case file has none.
func (cp *CaseParameters) Controls(field string) (ctl ldu.Controls, ok bool) {
	if ctl, ok = cp.Solvers[field]; !ok {
		ctl = ldu.DefaultControls()
		ctl.Solver, ctl.Preconditioner.Name = "PCG", "DIC"
	}
	return
}

func (cp *CaseParameters) Print() {
	ct, _ := cp.Comms()
	fmt.Printf("\"%s\"\t\t= Title\n", cp.Title)
	fmt.Printf("[%s]\t\t= Model\n", cp.Model)
	switch cp.Model {
	case "laplace2D":
		fmt.Printf("[%d x %d]\t\t= Cells\n", cp.Nx, cp.Ny)
		fmt.Printf("%8.5f\t\t= Convection\n", cp.Convection)
		fmt.Printf("[%v]\t\t\t= Periodic\n", cp.Periodic)
	default:
		fmt.Printf("[%d]\t\t\t= Cells\n", cp.NCells)
		fmt.Printf("%8.5f\t\t= Length\n", cp.Length)
		fmt.Printf("%8.5f\t\t= Diffusivity\n", cp.Diffusivity)
	}
	fmt.Printf("[%d]\t\t\t= Processors\n", cp.NProcs)
	fmt.Printf("[%s]\t\t= Comms Type\n", ct)
	keys := make([]string, len(cp.Solvers))
	i := 0
	for k := range cp.Solvers {
		keys[i] = k
		i++
	}
	sort.Strings(keys)
	for _, key := range keys {
		ctl := cp.Solvers[key]
		fmt.Printf("Solvers[%s] = %s %s, tolerance %g, relTol %g\n",
			key, ctl.Solver, ctl.Preconditioner.Name, ctl.Tolerance, ctl.RelTol)
	}
}
