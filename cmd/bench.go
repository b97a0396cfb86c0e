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
	"fmt"
	"time"

	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/notargets/gofvm/ldu"
	"github.com/notargets/gofvm/model_problems"
	"github.com/notargets/gofvm/selection"
	"github.com/notargets/gofvm/utils"
)

type Bench struct {
	Nx, Ny         int
	Repeat         int
	Preconditioner string
	Perf           bool
	Profile        bool
}

// BenchCmd represents the bench command
var BenchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Time the matrix product and preconditioning kernels",
	Long: `
Times A psi, face addressed and row compressed, and one preconditioner application on a 2D Laplacian, optionally
counting hardware instructions (linux only).

gofvm bench --nx 512 --ny 512 --perf`,
	Run: func(cmd *cobra.Command, args []string) {
		b := &Bench{}
		b.Nx, _ = cmd.Flags().GetInt("nx")
		b.Ny, _ = cmd.Flags().GetInt("ny")
		b.Repeat, _ = cmd.Flags().GetInt("repeat")
		b.Preconditioner, _ = cmd.Flags().GetString("preconditioner")
		b.Perf, _ = cmd.Flags().GetBool("perf")
		b.Profile, _ = cmd.Flags().GetBool("profile")
		if b.Profile {
			defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
		}
		results, err := RunBench(b)
		if err != nil {
			logrus.Fatal(err)
		}
		PrintBench(b, results)
	},
}

func init() {
	rootCmd.AddCommand(BenchCmd)
	BenchCmd.Flags().Int("nx", 256, "cells in x")
	BenchCmd.Flags().Int("ny", 256, "cells in y")
	BenchCmd.Flags().IntP("repeat", "r", 100, "kernel calls per measurement")
	BenchCmd.Flags().String("preconditioner", "DIC", "preconditioner to time")
	BenchCmd.Flags().Bool("perf", false, "count hardware instructions with perf events")
	BenchCmd.Flags().Bool("profile", false, "write a cpu profile")
}

type BenchResult struct {
	Kernel       string
	PerCall      time.Duration
	Instructions uint64 // Per call, zero unless counted
}

func RunBench(b *Bench) (results []BenchResult, err error) {
	var (
		p   *model_problems.Problem
		pc  ldu.Preconditioner
		r   = selection.NewRegistry()
		ctl = ldu.DefaultControls()
	)
	if b.Repeat < 1 {
		return nil, fmt.Errorf("repeat must be at least 1, have %d", b.Repeat)
	}
	if p, err = model_problems.NewLaplace2D(b.Nx, b.Ny).System(); err != nil {
		return
	}
	ctl.Solver, ctl.Preconditioner.Name = "PCG", b.Preconditioner
	if pc, err = r.NewPreconditioner(&ldu.SolverBase{System: p.System, Controls: ctl, Registry: r, Log: r.Log}, ctl); err != nil {
		return
	}
	var (
		n    = p.NCells()
		psi  = make([]float64, n)
		Apsi = make([]float64, n)
		wA   = make([]float64, n)
		y    = make([]float64, n)
		csr  = p.Matrix.ToCSR()
	)
	copy(psi, p.Source)
	kernels := []struct {
		name string
		f    func()
	}{
		{"Amul", func() { p.Matrix.Amul(Apsi, psi, p.InterfaceBouCoeffs, p.Interfaces, 0) }},
		// Row compressed product of the same operator, for comparison
		{"CSRAmul", func() {
			clear(y)
			csr.MulVecTo(y, false, psi)
		}},
		{b.Preconditioner, func() { pc.Precondition(wA, psi, 0) }},
	}
	for _, k := range kernels {
		run := func() {
			for i := 0; i < b.Repeat; i++ {
				k.f()
			}
		}
		res := BenchResult{Kernel: k.name}
		start := time.Now()
		run()
		res.PerCall = time.Since(start) / time.Duration(b.Repeat)
		if b.Perf {
			var count uint64
			if count, err = countInstructions(run); err != nil {
				return
			}
			res.Instructions = count / uint64(b.Repeat)
		}
		results = append(results, res)
	}
	return
}

func PrintBench(b *Bench, results []BenchResult) {
	fmt.Printf("[%d x %d]\t\t= Cells\n", b.Nx, b.Ny)
	fmt.Printf("[%d]\t\t\t= Calls per measurement\n", b.Repeat)
	fmt.Printf("%-16s %14s %16s\n", "Kernel", "Time/call", "Instructions/call")
	for _, res := range results {
		fmt.Printf("%-16s %14s %16d\n", res.Kernel, res.PerCall, res.Instructions)
	}
	fmt.Println(utils.GetMemUsage())
}
