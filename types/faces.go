package types

import (
	"fmt"
	"math"
)

/*
FaceKey is an always positive number that stores the two cells of a face as
indices in a way that can be compared. A face between cells [4] and [0] is
always stored as [0,4], in the ascending order of the index values, so both
orientations of the same face hash to the same key.
*/
type FaceKey uint64

func NewFaceKey(cells [2]int) (packed FaceKey) {
	// This packs two index coordinates into two 32 bit unsigned integers to act as a hash and an indirect access method
	var (
		limit = math.MaxUint32
	)
	for _, cell := range cells {
		if cell < 0 || cell > limit {
			panic(fmt.Errorf("unable to pack two ints into a uint64, have %d and %d as inputs",
				cells[0], cells[1]))
		}
	}
	var i1, i2 int
	if cells[0] <= cells[1] {
		i1, i2 = cells[0], cells[1]
	} else {
		i1, i2 = cells[1], cells[0]
	}
	packed = FaceKey(i1 + i2<<32)
	return
}

func (fk FaceKey) GetCells(rev bool) (cells [2]int) {
	var (
		fkTmp FaceKey
	)
	fkTmp = fk >> 32
	cells[1] = int(fkTmp)
	cells[0] = int(fk - fkTmp*(1<<32))
	if rev {
		cells[0], cells[1] = cells[1], cells[0]
	}
	return
}

/*
A CellPair stores two cells in their original order, so that the direction
of a coupled face can be recovered. The pair (a,b) and (b,a) are distinct.
*/
type CellPair int64

func NewCellPair(cells [2]int) (packed CellPair) {
	// This packs two index coordinates into two 31 bit unsigned integers to act as a hash and an indirect access method
	var (
		limit = math.MaxUint32 >> 1 // leaves room for the sign bit of an int64
		sign  bool
	)
	for _, cell := range cells {
		if cell < 0 || cell > limit {
			panic(fmt.Errorf("unable to pack two ints into an int64, have %d and %d as inputs",
				cells[0], cells[1]))
		}
	}
	var i1, i2 int
	if cells[0] <= cells[1] {
		i1, i2 = cells[0], cells[1]
	} else {
		sign = true
		i1, i2 = cells[1], cells[0]
	}
	packed = CellPair(i1 + i2<<32)
	if sign {
		packed = -packed
	}
	return
}

func (p CellPair) GetCells() (cells [2]int) {
	var (
		pTmp CellPair
		sign bool
	)
	if p < 0 {
		sign = true
		p = -p
	}
	pTmp = p >> 32
	cells[1] = int(pTmp)
	cells[0] = int(p - pTmp*(1<<32))
	if sign {
		cells[0], cells[1] = cells[1], cells[0]
	}
	return
}

func (p CellPair) GetKey() (fk FaceKey) {
	fk = NewFaceKey(p.GetCells())
	return
}
