package gamg

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/notargets/gofvm/ldu"
	"github.com/notargets/gofvm/pstream"
)

// Agglomeration is the multigrid hierarchy of meshes. Level 0 is the mesh
// of the system being solved; level k+1 is built from level k by merging
// cells.
type Agglomeration struct {
	meshes            []*ldu.Mesh
	restrict          [][]int   // restrict[k] maps level k cells to level k+1 cells
	faceRestrict      [][]int   // level k faces to level k+1 faces, see coarseFaces
	faceFlip          [][]bool  // per level k face
	patchFaceRestrict [][][]int // per level k patch
	agglomerator      string
}

func (a *Agglomeration) NLevels() int                       { return len(a.meshes) }
func (a *Agglomeration) Mesh(k int) *ldu.Mesh               { return a.meshes[k] }
func (a *Agglomeration) Agglomerator() string               { return a.agglomerator }
func (a *Agglomeration) RestrictAddressing(k int) []int     { return a.restrict[k] }
func (a *Agglomeration) FaceRestrictAddressing(k int) []int { return a.faceRestrict[k] }
func (a *Agglomeration) FaceFlipMap(k int) []bool           { return a.faceFlip[k] }

// PatchFaceRestrictAddressing maps the faces of patch p on level k to the
// faces of the same patch on level k+1.
func (a *Agglomeration) PatchFaceRestrictAddressing(k, p int) []int {
	return a.patchFaceRestrict[k][p]
}

// RestrictField sums the level k field ff onto level k+1.
func (a *Agglomeration) RestrictField(cf, ff []float64, k int) {
	for i := range cf {
		cf[i] = 0
	}
	for c, cc := range a.restrict[k] {
		cf[cc] += ff[c]
	}
}

// ProlongField injects the level k+1 field cf into level k.
func (a *Agglomeration) ProlongField(ff, cf []float64, k int) {
	for c, cc := range a.restrict[k] {
		ff[c] = cf[cc]
	}
}

// Agglomerate returns the hierarchy for the mesh of m. When the controls ask
// for caching it is built once per mesh and kept in the mesh cache.
func Agglomerate(m *ldu.Matrix, controls ldu.Controls) (a *Agglomeration, err error) {
	var (
		agg Agglomerator
	)
	if agg, err = lookupAgglomerator(controls.Agglomerator); err != nil {
		return
	}
	if !controls.CacheAgglomeration {
		return NewAgglomeration(m, agg, controls)
	}
	key := fmt.Sprintf("GAMGAgglomeration:%s:%d:%d:%d", agg.Name(),
		controls.NCellsInCoarsestLevel, controls.MergeLevels, controls.MaxLevels)
	obj, err := m.Mesh().Cache.GetOrCompute(key, func() (any, error) {
		return NewAgglomeration(m, agg, controls)
	})
	if err != nil {
		return
	}
	return obj.(*Agglomeration), nil
}

/*
NewAgglomeration coarsens the mesh of m level by level with agg's face
weights. Each level is the result of mergeLevels pairwise passes.
Coarsening stops when a pass would leave fewer than nCellsInCoarsestLevel
cells per rank, when it does not reduce the cell count by minReductionRatio,
when too large a share of the coarse cells sits on coupled patches, or at
maxLevels. Every decision is taken on global counts, so all ranks build the
same number of levels.
*/
func NewAgglomeration(m *ldu.Matrix, agg Agglomerator, controls ldu.Controls) (a *Agglomeration, err error) {
	var (
		fine    = m.Mesh()
		comm    = fine.Comm()
		forward = true
		weights []float64
	)
	if weights, err = agg.FaceWeights(m); err != nil {
		return
	}
	a = &Agglomeration{meshes: []*ldu.Mesh{fine}, agglomerator: agg.Name()}
	for len(a.meshes) < controls.MaxLevels {
		var (
			level    = a.meshes[len(a.meshes)-1]
			addr     = level.Addr()
			nCells   = addr.NCells()
			lower    = addr.LowerAddr()
			upper    = addr.UpperAddr()
			w        = weights
			restrict []int
			nCoarse  int
		)
		for pass := 0; pass < controls.MergeLevels; pass++ {
			r, nc := pairAgglomerate(nCells, lower, upper, w, forward)
			if !continueAgglomerating(comm, controls, nCells, nc) {
				break
			}
			forward = !forward
			if restrict == nil {
				restrict = r
			} else {
				for c, cc := range restrict {
					restrict[c] = r[cc]
				}
			}
			nCoarse = nc
			if pass == controls.MergeLevels-1 {
				break
			}
			var cf coarseFaces
			if cf, err = agglomerateFaces(lower, upper, r, nc); err != nil {
				return
			}
			cw := make([]float64, len(cf.lower))
			restrictFaceField(cw, w, cf.restrict)
			nCells, lower, upper, w = nc, cf.lower, cf.upper, cw
		}
		if restrict == nil {
			break
		}
		if controls.MaxInterfaceRatio > 0 &&
			interfaceRatio(level, restrict, nCoarse) > controls.MaxInterfaceRatio {
			break
		}
		if weights, err = a.addLevel(restrict, nCoarse, weights); err != nil {
			return nil, err
		}
	}
	if logrus.IsLevelEnabled(logrus.DebugLevel) && comm.Master() {
		a.logSummary()
	}
	return
}

// continueAgglomerating accepts a pass from nFine to nCoarse cells.
func continueAgglomerating(comm *pstream.Comm, controls ldu.Controls, nFine, nCoarse int) bool {
	var (
		counts = pstream.AllReduceSlice(comm, []int{nFine, nCoarse}, pstream.SumOp)
	)
	nFine, nCoarse = counts[0], counts[1]
	switch {
	case nCoarse < comm.NProcs()*controls.NCellsInCoarsestLevel:
		return false
	case nCoarse >= nFine:
		return false
	case float64(nFine) < controls.MinReductionRatio*float64(nCoarse):
		return false
	}
	return true
}

// interfaceRatio is the global share of coarse cells that touch a coupled
// patch.
func interfaceRatio(level *ldu.Mesh, restrict []int, nCoarse int) float64 {
	var (
		onPatch = make([]bool, nCoarse)
		n       int
	)
	for _, ifc := range level.Interfaces() {
		if ifc == nil {
			continue
		}
		for _, c := range ifc.FaceCells() {
			if cc := restrict[c]; !onPatch[cc] {
				onPatch[cc] = true
				n++
			}
		}
	}
	counts := pstream.AllReduceSlice(level.Comm(), []int{n, nCoarse}, pstream.SumOp)
	if counts[1] == 0 {
		return 0
	}
	return float64(counts[0]) / float64(counts[1])
}

// addLevel builds the mesh above the current coarsest one and returns the
// face weights restricted onto it.
func (a *Agglomeration) addLevel(restrict []int, nCoarse int, weights []float64) (cw []float64, err error) {
	var (
		fine = a.meshes[len(a.meshes)-1]
		addr = fine.Addr()
		cf   coarseFaces
	)
	for c, cc := range restrict {
		if cc < 0 || cc >= nCoarse {
			return nil, fmt.Errorf("%w: cell %d restricts to %d outside [0,%d)", ldu.ErrTopology, c, cc, nCoarse)
		}
	}
	if cf, err = agglomerateFaces(addr.LowerAddr(), addr.UpperAddr(), restrict, nCoarse); err != nil {
		return
	}

	var (
		fineIfs     = fine.Interfaces()
		coarseIfs   = make(ldu.Interfaces, len(fineIfs))
		patchRestr  = make([][]int, len(fineIfs))
		transferred = make([][]int, len(fineIfs))
	)
	for p := range fineIfs {
		if fineIfs.Set(p) {
			fineIfs[p].InitInternalFieldTransfer(ldu.NonBlocking, restrict)
		}
	}
	for p := range fineIfs {
		if fineIfs.Set(p) {
			transferred[p] = fineIfs[p].InternalFieldTransfer(ldu.NonBlocking, restrict)
		}
	}
	for p := range fineIfs {
		if !fineIfs.Set(p) {
			continue
		}
		local := ldu.PatchInternalField(fineIfs[p].FaceCells(), restrict)
		if coarseIfs[p], err = fineIfs[p].Agglomerate(p, coarseIfs, local, transferred[p]); err != nil {
			return
		}
		patchRestr[p] = coarseIfs[p].FaceRestrictAddressing()
	}

	var coarse *ldu.Mesh
	if coarse, err = ldu.NewMesh(nCoarse, cf.lower, cf.upper, coarseIfs, fine.Comm()); err != nil {
		return
	}
	coarse.CommsType = fine.CommsType
	a.meshes = append(a.meshes, coarse)
	a.restrict = append(a.restrict, restrict)
	a.faceRestrict = append(a.faceRestrict, cf.restrict)
	a.faceFlip = append(a.faceFlip, cf.flip)
	a.patchFaceRestrict = append(a.patchFaceRestrict, patchRestr)

	cw = make([]float64, len(cf.lower))
	restrictFaceField(cw, weights, cf.restrict)
	return
}

func (a *Agglomeration) logSummary() {
	log := logrus.WithField("agglomerator", a.agglomerator)
	for k, m := range a.meshes {
		var nPatchFaces int
		for _, ifc := range m.Interfaces() {
			if ifc != nil {
				nPatchFaces += len(ifc.FaceCells())
			}
		}
		log.Debugf("level %d: %d cells, %d faces, %d interface faces",
			k, m.NCells(), m.Addr().NFaces(), nPatchFaces)
	}
}
