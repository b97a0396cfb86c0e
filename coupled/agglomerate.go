// Package coupled implements the interfaces that extend a matrix across
// patches: processor patches between ranks and cyclic patches that join two
// boundaries of the same rank.
package coupled

import (
	"github.com/notargets/gofvm/types"
)

/*
agglomerateFaces groups the faces of a fine patch into coarse faces. Fine
faces whose (local coarse cell, neighbour coarse cell) pair is the same
become one coarse face. The pair is always formed from the owner side so
that both sides of a coupled patch, walking their faces in the same order,
number the coarse faces identically.
*/
func agglomerateFaces(localRestrict, nbrRestrict []int, owner bool) (faceCells, faceRestrict []int) {
	var (
		coarseFace = make(map[types.CellPair]int)
	)
	faceRestrict = make([]int, len(localRestrict))
	for i := range localRestrict {
		var key types.CellPair
		if owner {
			key = types.NewCellPair([2]int{localRestrict[i], nbrRestrict[i]})
		} else {
			key = types.NewCellPair([2]int{nbrRestrict[i], localRestrict[i]})
		}
		cf, ok := coarseFace[key]
		if !ok {
			cf = len(faceCells)
			coarseFace[key] = cf
			faceCells = append(faceCells, localRestrict[i])
		}
		faceRestrict[i] = cf
	}
	return
}

// AgglomerateCoeffs sums fine patch coefficients onto the coarse faces given
// by faceRestrict.
func AgglomerateCoeffs(faceRestrict []int, nCoarseFaces int, fine []float64) (coarse []float64) {
	coarse = make([]float64, nCoarseFaces)
	for i, cf := range faceRestrict {
		coarse[cf] += fine[i]
	}
	return
}
