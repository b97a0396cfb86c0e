package ldu

import (
	"gonum.org/v1/gonum/floats"

	"github.com/notargets/gofvm/pstream"
)

// Global reductions over all ranks. Each rank contributes its local part.

func GSumMag(comm *pstream.Comm, v []float64) float64 {
	return pstream.AllReduce(comm, floats.Norm(v, 1), pstream.SumOp)
}

func GSumProd(comm *pstream.Comm, a, b []float64) float64 {
	return pstream.AllReduce(comm, floats.Dot(a, b), pstream.SumOp)
}

func GSumSqr(comm *pstream.Comm, v []float64) float64 {
	return pstream.AllReduce(comm, floats.Dot(v, v), pstream.SumOp)
}

func GAverage(comm *pstream.Comm, v []float64) float64 {
	var (
		sums = pstream.AllReduceSlice(comm, []float64{floats.Sum(v), float64(len(v))}, pstream.SumOp)
	)
	if sums[1] == 0 {
		return 0
	}
	return sums[0] / sums[1]
}

// Stabilise moves v away from zero by at least small, keeping its sign.
func Stabilise(v, small float64) float64 {
	if v < 0 {
		return v - small
	}
	return v + small
}
