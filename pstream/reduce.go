package pstream

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

type Number interface {
	constraints.Integer | constraints.Float
}

type Op uint8

const (
	SumOp Op = iota
	MinOp
	MaxOp
)

func (op Op) String() string {
	switch op {
	case SumOp:
		return "sum"
	case MinOp:
		return "min"
	case MaxOp:
		return "max"
	}
	return fmt.Sprintf("Op(%d)", uint8(op))
}

// Reserved tag for collectives, user tags are non-negative.
const reduceTag = -1

func combine[T Number](op Op, a, b T) T {
	switch op {
	case SumOp:
		return a + b
	case MinOp:
		if b < a {
			return b
		}
		return a
	case MaxOp:
		if b > a {
			return b
		}
		return a
	}
	panic(fmt.Errorf("pstream: unknown reduction %v", op))
}

// AllReduce combines v over all ranks. Ranks are folded into the result in
// rank order on the master, so sums are reproducible from run to run.
func AllReduce[T Number](c *Comm, v T, op Op) T {
	return AllReduceSlice(c, []T{v}, op)[0]
}

// AllReduceSlice combines each element of v over all ranks.
func AllReduceSlice[T Number](c *Comm, v []T, op Op) (res []T) {
	res = clone(v)
	if !c.Parallel() {
		return
	}
	if c.Master() {
		buf := make([]T, len(v))
		for rank := 1; rank < c.NProcs(); rank++ {
			Recv(c, rank, reduceTag, buf)
			for i := range res {
				res[i] = combine(op, res[i], buf[i])
			}
		}
		for rank := 1; rank < c.NProcs(); rank++ {
			Send(c, rank, reduceTag, res)
		}
		return
	}
	Send(c, 0, reduceTag, v)
	Recv(c, 0, reduceTag, res)
	return
}
