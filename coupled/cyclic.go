package coupled

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gofvm/ldu"
)

// CyclicInterface couples one boundary of the mesh to another on the same
// rank. The two halves are created together by NewCyclicPair and find each
// other through the shared interface list.
type CyclicInterface struct {
	faceCells    []int
	index        int
	nbrIndex     int
	interfaces   ldu.Interfaces
	forwardT     *r3.Mat
	reverse      bool
	faceRestrict []int
}

// NewCyclicPair stores the two halves of a cyclic coupling in slots i and j
// of interfaces. Face k of one half is coupled to face k of the other.
// forwardT, when not nil, rotates values from half j into the frame of half
// i; half j uses its transpose.
func NewCyclicPair(interfaces ldu.Interfaces, i, j int, faceCellsI, faceCellsJ []int,
	forwardT *r3.Mat) (a, b *CyclicInterface, err error) {
	switch {
	case i == j:
		err = fmt.Errorf("%w: cyclic patch %d cannot be its own neighbour", ldu.ErrTopology, i)
	case i < 0 || j < 0 || i >= len(interfaces) || j >= len(interfaces):
		err = fmt.Errorf("%w: cyclic slots %d, %d outside %d interfaces", ldu.ErrTopology, i, j, len(interfaces))
	case len(faceCellsI) != len(faceCellsJ):
		err = fmt.Errorf("%w: cyclic halves have %d and %d faces", ldu.ErrTopology, len(faceCellsI), len(faceCellsJ))
	}
	if err != nil {
		return
	}
	a = &CyclicInterface{faceCells: faceCellsI, index: i, nbrIndex: j, interfaces: interfaces, forwardT: forwardT}
	b = &CyclicInterface{faceCells: faceCellsJ, index: j, nbrIndex: i, interfaces: interfaces, forwardT: forwardT,
		reverse: true}
	interfaces[i], interfaces[j] = a, b
	return
}

func (ci *CyclicInterface) FaceCells() []int              { return ci.faceCells }
func (ci *CyclicInterface) FaceRestrictAddressing() []int { return ci.faceRestrict }
func (ci *CyclicInterface) Owner() bool                   { return ci.index < ci.nbrIndex }
func (ci *CyclicInterface) DoTransform() bool             { return ci.forwardT != nil }
func (ci *CyclicInterface) PatchInfo() ldu.PatchInfo      { return ldu.GlobalPatch }

func (ci *CyclicInterface) Neighbour() *CyclicInterface {
	return ci.interfaces[ci.nbrIndex].(*CyclicInterface)
}

// Transform maps a vector from the neighbour half into this half.
func (ci *CyclicInterface) Transform(v r3.Vec) r3.Vec {
	if ci.forwardT == nil {
		return v
	}
	if ci.reverse {
		return ci.forwardT.MulVecTrans(v)
	}
	return ci.forwardT.MulVec(v)
}

// CoupleScale is the factor the transformation applies to component cmpt
// of a field of the given rank.
func (ci *CyclicInterface) CoupleScale(cmpt, rank int) float64 {
	if ci.forwardT == nil || rank == 0 {
		return 1
	}
	return math.Pow(ci.forwardT.At(cmpt, cmpt), float64(rank))
}

func (ci *CyclicInterface) InitInternalFieldTransfer(ldu.CommsType, []int) {
}

func (ci *CyclicInterface) InternalFieldTransfer(_ ldu.CommsType, iF []int) []int {
	return ldu.PatchInternalField(ci.Neighbour().faceCells, iF)
}

func (ci *CyclicInterface) Agglomerate(index int, coarse ldu.Interfaces, localRestrict,
	nbrRestrict []int) (ldu.Interface, error) {
	if len(localRestrict) != len(ci.faceCells) || len(nbrRestrict) != len(ci.faceCells) {
		return nil, fmt.Errorf("%w: cyclic patch %d has %d faces, restrict maps have %d and %d",
			ldu.ErrTopology, ci.index, len(ci.faceCells), len(localRestrict), len(nbrRestrict))
	}
	cc := &CyclicInterface{
		index:      index,
		nbrIndex:   ci.nbrIndex,
		interfaces: coarse,
		forwardT:   ci.forwardT,
		reverse:    ci.reverse,
	}
	cc.faceCells, cc.faceRestrict = agglomerateFaces(localRestrict, nbrRestrict, ci.Owner())
	return cc, nil
}

// CyclicInterfaceField couples psi across a cyclic pair, applying the
// transformation to the neighbour values of non scalar fields.
type CyclicInterfaceField struct {
	patch *CyclicInterface
	rank  int
}

func NewCyclicInterfaceField(patch *CyclicInterface, rank int) *CyclicInterfaceField {
	return &CyclicInterfaceField{patch: patch, rank: rank}
}

func (cf *CyclicInterfaceField) Interface() ldu.Interface     { return cf.patch }
func (cf *CyclicInterfaceField) Rank() int                    { return cf.rank }
func (cf *CyclicInterfaceField) NeighbourFaceCells() []int    { return cf.patch.Neighbour().faceCells }
func (cf *CyclicInterfaceField) CoupleScale(cmpt int) float64 { return cf.patch.CoupleScale(cmpt, cf.rank) }

func (cf *CyclicInterfaceField) InitInterfaceMatrixUpdate(_, _, _ []float64, _ int, _ ldu.CommsType) {
}

func (cf *CyclicInterfaceField) UpdateInterfaceMatrix(result, psi, coeffs []float64, cmpt int, _ ldu.CommsType) {
	var (
		fc    = cf.patch.faceCells
		nbr   = cf.NeighbourFaceCells()
		scale = cf.CoupleScale(cmpt)
	)
	for i, c := range fc {
		result[c] -= coeffs[i] * scale * psi[nbr[i]]
	}
}

func (cf *CyclicInterfaceField) Coarsen(coarse ldu.Interface) (ldu.InterfaceField, error) {
	ci, ok := coarse.(*CyclicInterface)
	if !ok {
		return nil, fmt.Errorf("%w: cyclic field cannot sit on a %T", ldu.ErrTopology, coarse)
	}
	return NewCyclicInterfaceField(ci, cf.rank), nil
}
