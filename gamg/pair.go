package gamg

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gofvm/ldu"
)

// Agglomerator supplies the face weights that drive pairwise
// agglomeration of the finest level. Strong faces are merged first.
type Agglomerator interface {
	Name() string
	FaceWeights(m *ldu.Matrix) ([]float64, error)
}

var agglomerators = map[string]Agglomerator{
	"algebraicPair": AlgebraicPair{},
	"faceAreaPair":  FaceAreaPair{},
}

func lookupAgglomerator(name string) (Agglomerator, error) {
	if a, ok := agglomerators[name]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("%w: unknown agglomerator %q, valid choices are [algebraicPair, faceAreaPair]",
		ldu.ErrUnknownType, name)
}

// AlgebraicPair weighs faces by the magnitude of their matrix coefficient,
// the larger of upper and lower for an asymmetric matrix.
type AlgebraicPair struct{}

func (AlgebraicPair) Name() string { return "algebraicPair" }

func (AlgebraicPair) FaceWeights(m *ldu.Matrix) (w []float64, err error) {
	upper := m.Upper()
	w = make([]float64, len(upper))
	for f, u := range upper {
		w[f] = math.Abs(u)
	}
	if m.Asymmetric() {
		for f, l := range m.Lower() {
			w[f] = math.Max(w[f], math.Abs(l))
		}
	}
	return
}

const faceAreasKey = "faceAreas"

// SetFaceAreas attaches the face area vectors used by the faceAreaPair
// agglomerator to mesh, one per internal face.
func SetFaceAreas(mesh *ldu.Mesh, areas []r3.Vec) error {
	if len(areas) != mesh.Addr().NFaces() {
		return fmt.Errorf("%w: %d face areas for %d faces", ldu.ErrTopology, len(areas), mesh.Addr().NFaces())
	}
	mesh.Cache.Remove(faceAreasKey)
	_, err := mesh.Cache.GetOrCompute(faceAreasKey, func() (any, error) { return areas, nil })
	return err
}

// FaceAreaPair weighs faces by their area. The components are scaled
// slightly differently so that ties on a regular mesh break the same way
// everywhere.
type FaceAreaPair struct{}

func (FaceAreaPair) Name() string { return "faceAreaPair" }

func (FaceAreaPair) FaceWeights(m *ldu.Matrix) (w []float64, err error) {
	obj, ok := m.Mesh().Cache.Get(faceAreasKey)
	if !ok {
		return nil, fmt.Errorf("faceAreaPair agglomeration needs face areas, see SetFaceAreas")
	}
	areas := obj.([]r3.Vec)
	w = make([]float64, len(areas))
	for f, sf := range areas {
		mag := r3.Norm(sf)
		if mag == 0 {
			continue
		}
		sf = r3.Scale(1/math.Sqrt(mag), sf)
		w[f] = r3.Norm(r3.Vec{X: sf.X, Y: 1.01 * sf.Y, Z: 1.02 * sf.Z})
	}
	return
}

/*
pairAgglomerate makes one pass of pairwise agglomeration. Each cell not yet
grouped is paired with the ungrouped neighbour across its heaviest face.
A cell whose neighbours are all grouped joins the group across its heaviest
face, and an isolated cell becomes a group of its own. Cells are visited in
ascending order when forward is set and in descending order otherwise. A
backward pass numbers its coarse cells from the top down, so the coarse
cells always come out in ascending order of their fine cells.
*/
func pairAgglomerate(nCells int, lowerAddr, upperAddr []int, weights []float64,
	forward bool) (restrict []int, nCoarse int) {
	var (
		nFaces    = len(lowerAddr)
		offsets   = make([]int, nCells+1)
		cellFaces = make([]int, 2*nFaces)
		count     = make([]int, nCells)
	)
	for f := 0; f < nFaces; f++ {
		offsets[upperAddr[f]+1]++
		offsets[lowerAddr[f]+1]++
	}
	for c := 0; c < nCells; c++ {
		offsets[c+1] += offsets[c]
	}
	for f := 0; f < nFaces; f++ {
		u := upperAddr[f]
		cellFaces[offsets[u]+count[u]] = f
		count[u]++
	}
	for f := 0; f < nFaces; f++ {
		l := lowerAddr[f]
		cellFaces[offsets[l]+count[l]] = f
		count[l]++
	}

	restrict = make([]int, nCells)
	for c := range restrict {
		restrict[c] = -1
	}
	cellAt := func(i int) int {
		if forward {
			return i
		}
		return nCells - i - 1
	}
	for i := 0; i < nCells; i++ {
		c := cellAt(i)
		if restrict[c] >= 0 {
			continue
		}
		var (
			match     = -1
			maxWeight = -ldu.Great
		)
		for _, f := range cellFaces[offsets[c]:offsets[c+1]] {
			if restrict[upperAddr[f]] < 0 && restrict[lowerAddr[f]] < 0 && weights[f] > maxWeight {
				match, maxWeight = f, weights[f]
			}
		}
		if match >= 0 {
			restrict[upperAddr[match]] = nCoarse
			restrict[lowerAddr[match]] = nCoarse
			nCoarse++
			continue
		}
		// Every neighbour is taken, join the strongest neighbouring group
		maxWeight = -ldu.Great
		for _, f := range cellFaces[offsets[c]:offsets[c+1]] {
			if weights[f] > maxWeight {
				match, maxWeight = f, weights[f]
			}
		}
		if match >= 0 {
			restrict[c] = max(restrict[upperAddr[match]], restrict[lowerAddr[match]])
		}
	}
	for i := 0; i < nCells; i++ {
		if c := cellAt(i); restrict[c] < 0 {
			restrict[c] = nCoarse
			nCoarse++
		}
	}
	if !forward {
		for c := range restrict {
			restrict[c] = nCoarse - 1 - restrict[c]
		}
	}
	return
}
