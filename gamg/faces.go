package gamg

import (
	"fmt"

	"github.com/notargets/gofvm/ldu"
	"github.com/notargets/gofvm/types"
)

// coarseFaces is the face addressing of a coarse level.
type coarseFaces struct {
	lower, upper []int
	// restrict maps every fine face to its coarse face. A face that falls
	// inside a coarse cell c is stored as -(c+1).
	restrict []int
	// flip is set for fine faces whose owner became the coarse neighbour.
	flip []bool
}

/*
agglomerateFaces merges the faces of a fine level given the fine to coarse
cell map. Fine faces joining the same two coarse cells become one coarse
face, created at the first fine face that joins them. The coarse faces are
then renumbered into upper triangular order: grouped by owner, owner below
neighbour, and in order of creation within one owner.
*/
func agglomerateFaces(lowerAddr, upperAddr, restrict []int, nCoarse int) (cf coarseFaces, err error) {
	var (
		nFine      = len(lowerAddr)
		coarseFace = make(map[types.FaceKey]int)
		owner      []int
		neighbour  []int
	)
	cf.restrict = make([]int, nFine)
	for f := 0; f < nFine; f++ {
		rl, ru := restrict[lowerAddr[f]], restrict[upperAddr[f]]
		if rl == ru {
			cf.restrict[f] = -(rl + 1)
			continue
		}
		key := types.NewFaceKey([2]int{rl, ru})
		face, ok := coarseFace[key]
		if !ok {
			face = len(owner)
			coarseFace[key] = face
			cells := key.GetCells(false)
			owner, neighbour = append(owner, cells[0]), append(neighbour, cells[1])
		}
		cf.restrict[f] = face
	}

	// Counting sort by owner keeps creation order within an owner
	var (
		nCoarseFaces = len(owner)
		start        = make([]int, nCoarse+1)
		faceMap      = make([]int, nCoarseFaces)
	)
	for _, o := range owner {
		start[o+1]++
	}
	for c := 0; c < nCoarse; c++ {
		start[c+1] += start[c]
	}
	cf.lower, cf.upper = make([]int, nCoarseFaces), make([]int, nCoarseFaces)
	for face, o := range owner {
		nf := start[o]
		start[o]++
		faceMap[face] = nf
		cf.lower[nf], cf.upper[nf] = o, neighbour[face]
	}

	cf.flip = make([]bool, nFine)
	for f, face := range cf.restrict {
		if face < 0 {
			continue
		}
		face = faceMap[face]
		cf.restrict[f] = face
		rl, ru := restrict[lowerAddr[f]], restrict[upperAddr[f]]
		switch {
		case cf.lower[face] == rl && cf.upper[face] == ru:
		case cf.lower[face] == ru && cf.upper[face] == rl:
			cf.flip[f] = true
		default:
			return cf, fmt.Errorf("%w: fine face %d (%d,%d) does not match coarse face %d (%d,%d)",
				ldu.ErrTopology, f, rl, ru, face, cf.lower[face], cf.upper[face])
		}
	}
	return
}

// restrictFaceField sums a fine face field onto the coarse faces. Faces
// inside a coarse cell are dropped.
func restrictFaceField(coarse, fine []float64, faceRestrict []int) {
	clear(coarse)
	for f, face := range faceRestrict {
		if face >= 0 {
			coarse[face] += fine[f]
		}
	}
}
