/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/gofvm/InputParameters"
	"github.com/notargets/gofvm/ldu"
	"github.com/notargets/gofvm/model_problems"
	"github.com/notargets/gofvm/pstream"
	"github.com/notargets/gofvm/selection"
)

type ModelSolve struct {
	ICFile  string
	Graph   bool
	Delay   time.Duration
	Profile string
}

// SolveCmd represents the solve command
var SolveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Assemble a model problem and solve it with the configured linear solver",
	Long: `
Assembles the model problem named in the case file, decomposes it over the
requested number of ranks and solves it, printing the solver performance.

gofvm solve -I case.yaml --np 4 --comms scheduled`,
	Run: func(cmd *cobra.Command, args []string) {
		ms := &ModelSolve{}
		ms.ICFile, _ = cmd.Flags().GetString("inputConditionsFile")
		ms.Graph, _ = cmd.Flags().GetBool("graph")
		dr, _ := cmd.Flags().GetInt("delay")
		ms.Delay = time.Duration(dr) * time.Millisecond
		ms.Profile, _ = cmd.Flags().GetString("profile")
		cp := processInput(ms)
		if viper.IsSet("np") {
			cp.NProcs = viper.GetInt("np")
		}
		if viper.IsSet("comms") {
			cp.CommsType = viper.GetString("comms")
		}
		switch ms.Profile {
		case "":
		case "cpu":
			defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
		case "mem":
			defer profile.Start(profile.MemProfile, profile.ProfilePath(".")).Stop()
		default:
			logrus.Fatalf("unknown profile %q, valid choices are cpu, mem", ms.Profile)
		}
		cp.Print()
		res, err := RunSolve(context.Background(), cp, logrus.StandardLogger())
		if err != nil {
			logrus.Fatal(err)
		}
		res.Print()
		if ms.Graph {
			res.Plot(ms.Delay)
		}
	},
}

func init() {
	rootCmd.AddCommand(SolveCmd)
	SolveCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML case file naming the model problem and the solver controls")
	SolveCmd.Flags().IntP("np", "n", 1, "number of ranks to decompose the model problem over")
	SolveCmd.Flags().StringP("comms", "c", "nonBlocking", "interface communication: blocking, scheduled or nonBlocking")
	SolveCmd.Flags().BoolP("graph", "g", false, "display the converged solution")
	SolveCmd.Flags().IntP("delay", "d", 5000, "milliseconds to display the graph")
	SolveCmd.Flags().StringP("profile", "p", "", "write a cpu or mem profile")
	_ = viper.BindPFlag("np", SolveCmd.Flags().Lookup("np"))
	_ = viper.BindPFlag("comms", SolveCmd.Flags().Lookup("comms"))
}

func processInput(ms *ModelSolve) (cp *InputParameters.CaseParameters) {
	var (
		err  error
		data []byte
	)
	if len(ms.ICFile) == 0 {
		err = fmt.Errorf("must supply a case file (-I, --inputConditionsFile)")
		fmt.Printf("error: %s\n", err.Error())
		exampleFile := `
########################################
Title: "Heated rod"
Model: diffusion1D # Can be laplace2D
NCells: 1000
NProcs: 4
CommsType: nonBlocking
Solvers:
  T:
    solver: GAMG
    smoother: GaussSeidel
    tolerance: 1e-8
    relTol: 0
########################################
`
		fmt.Printf("Example File:%s\n", exampleFile)
		os.Exit(1)
	}
	if data, err = os.ReadFile(ms.ICFile); err != nil {
		logrus.Fatal(err)
	}
	cp = InputParameters.NewCaseParameters()
	if err = cp.Parse(data); err != nil {
		logrus.Fatalf("reading %s: %v", ms.ICFile, err)
	}
	return
}

// SolveResult is the gathered outcome of one model problem solve.
type SolveResult struct {
	Title    string
	X, Psi   []float64 // For laplace2D, the horizontal centre line
	Exact    []float64
	Perf     ldu.SolverPerformance
	MaxError float64
	NProcs   int
	Comms    ldu.CommsType
	Elapsed  time.Duration
}

// RunSolve assembles and solves the model problem of a case.
func RunSolve(ctx context.Context, cp *InputParameters.CaseParameters, log logrus.FieldLogger) (res *SolveResult, err error) {
	var (
		r   = selection.NewRegistry()
		ctl ldu.Controls
	)
	r.Log = log
	res = &SolveResult{Title: cp.Title, NProcs: cp.NProcs}
	if res.Comms, err = cp.Comms(); err != nil {
		return
	}
	ctl, _ = cp.Controls(cp.Field)
	start := time.Now()
	switch cp.Model {
	case "diffusion1D":
		err = solveDiffusion(ctx, r, cp, ctl, res)
	case "laplace2D":
		err = solveLaplace(ctx, r, cp, ctl, res)
	default:
		err = fmt.Errorf("%w: unknown model %q, valid choices are diffusion1D, laplace2D", ldu.ErrUnknownType, cp.Model)
	}
	res.Elapsed = time.Since(start)
	return
}

func solveDiffusion(ctx context.Context, r *ldu.Registry, cp *InputParameters.CaseParameters, ctl ldu.Controls,
	res *SolveResult) (err error) {
	var (
		d  = model_problems.NewDiffusion1D(cp.NCells, cp.Length, cp.Diffusivity, cp.Left, cp.Right)
		mu sync.Mutex
	)
	res.X = d.X()
	err = pstream.NewWorld(cp.NProcs).Run(func(comm *pstream.Comm) (err error) {
		var (
			p  *model_problems.Problem
			sp ldu.SolverPerformance
		)
		if p, err = d.Decompose(comm); err != nil {
			return
		}
		p.FieldName = cp.Field
		p.SetCommsType(res.Comms)
		psi := make([]float64, p.NCells())
		if sp, err = selection.Solve(ctx, r, p.System, ctl, psi, p.Source, 0); err != nil {
			return
		}
		maxErr := pstream.AllReduce(comm, p.MaxError(psi), pstream.MaxOp)
		if global := d.Gather(comm, psi); global != nil {
			mu.Lock()
			res.Psi, res.Perf, res.MaxError = global, sp, maxErr
			mu.Unlock()
		}
		return
	})
	if err != nil {
		return
	}
	res.Exact = make([]float64, cp.NCells)
	for i, x := range res.X {
		res.Exact[i] = d.ExactAt(x)
	}
	return
}

func solveLaplace(ctx context.Context, r *ldu.Registry, cp *InputParameters.CaseParameters, ctl ldu.Controls,
	res *SolveResult) (err error) {
	if cp.NProcs != 1 {
		return fmt.Errorf("laplace2D runs on a single rank, have NProcs %d", cp.NProcs)
	}
	var (
		lp = &model_problems.Laplace2D{Nx: cp.Nx, Ny: cp.Ny, Periodic: cp.Periodic, Convection: cp.Convection}
		p  *model_problems.Problem
	)
	if p, err = lp.System(); err != nil {
		return
	}
	p.FieldName = cp.Field
	p.SetCommsType(res.Comms)
	psi := make([]float64, p.NCells())
	if res.Perf, err = selection.Solve(ctx, r, p.System, ctl, psi, p.Source, 0); err != nil {
		return
	}
	j := cp.Ny / 2
	res.X, res.Psi = make([]float64, cp.Nx), make([]float64, cp.Nx)
	for i := range res.X {
		res.X[i] = (float64(i) + 0.5) / float64(cp.Nx)
		res.Psi[i] = psi[lp.Cell(i, j)]
	}
	return
}

func (res *SolveResult) Print() {
	fmt.Printf("%-20s %-16s %6s %-12s %12s %12s %6s %12s %10s\n",
		"Case", "Solver", "Ranks", "Comms", "Initial", "Final", "Iters", "Max Error", "Time")
	fmt.Printf("%-20s %-16s %6d %-12s %12.4e %12.4e %6d %12.4e %10s\n",
		res.Title, res.Perf.SolverName, res.NProcs, res.Comms, res.Perf.InitialResidual, res.Perf.FinalResidual,
		res.Perf.NIterations, res.MaxError, res.Elapsed.Round(time.Microsecond))
	if !res.Perf.Converged {
		fmt.Printf("Solver did not converge\n")
	}
}

func (res *SolveResult) Plot(delay time.Duration) {
	var (
		fmin, fmax = res.Psi[0], res.Psi[0]
	)
	for _, f := range append(res.Psi, res.Exact...) {
		fmin, fmax = min(fmin, f), max(fmax, f)
	}
	pad := 0.05*(fmax-fmin) + 1e-12
	lc := NewLineChart(1024, 768, res.X[0], res.X[len(res.X)-1], fmin-pad, fmax+pad)
	if res.Exact != nil {
		lc.Plot(0, res.X, res.Exact, 1, "exact")
	}
	lc.Plot(delay, res.X, res.Psi, -1, res.Perf.FieldName)
}
