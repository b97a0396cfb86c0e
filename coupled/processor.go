package coupled

import (
	"fmt"

	"github.com/notargets/gofvm/ldu"
	"github.com/notargets/gofvm/pstream"
)

// ProcessorInterface joins the cells of this rank to those of a neighbour
// rank. The two sides must list their faces in the same order and share the
// tag, which must be unique among patches between the same two ranks.
type ProcessorInterface struct {
	faceCells    []int
	comm         *pstream.Comm
	nbrRank      int
	tag          int
	faceRestrict []int
	recvBuf      []int
}

func NewProcessorInterface(comm *pstream.Comm, faceCells []int, nbrRank, tag int) (pi *ProcessorInterface, err error) {
	if nbrRank < 0 || nbrRank >= comm.NProcs() || nbrRank == comm.MyRank() {
		return nil, fmt.Errorf("%w: rank %d cannot couple to rank %d of %d",
			ldu.ErrTopology, comm.MyRank(), nbrRank, comm.NProcs())
	}
	pi = &ProcessorInterface{
		faceCells: faceCells,
		comm:      comm,
		nbrRank:   nbrRank,
		tag:       tag,
	}
	return
}

func (pi *ProcessorInterface) FaceCells() []int              { return pi.faceCells }
func (pi *ProcessorInterface) FaceRestrictAddressing() []int { return pi.faceRestrict }
func (pi *ProcessorInterface) NeighbourRank() int            { return pi.nbrRank }
func (pi *ProcessorInterface) Owner() bool                   { return pi.comm.MyRank() < pi.nbrRank }
func (pi *ProcessorInterface) Comm() *pstream.Comm           { return pi.comm }

func (pi *ProcessorInterface) PatchInfo() ldu.PatchInfo {
	return ldu.PatchInfo{NeighbourRank: pi.nbrRank, Tag: pi.tag, Owner: pi.Owner()}
}

func (pi *ProcessorInterface) InitInternalFieldTransfer(commsType ldu.CommsType, iF []int) {
	send := ldu.PatchInternalField(pi.faceCells, iF)
	switch commsType {
	case ldu.NonBlocking:
		pi.recvBuf = make([]int, len(pi.faceCells))
		pstream.Isend(pi.comm, pi.nbrRank, pi.tag, send)
		pstream.Irecv(pi.comm, pi.nbrRank, pi.tag, pi.recvBuf)
	default:
		pstream.Send(pi.comm, pi.nbrRank, pi.tag, send)
	}
}

func (pi *ProcessorInterface) InternalFieldTransfer(commsType ldu.CommsType, _ []int) (nbr []int) {
	switch commsType {
	case ldu.NonBlocking:
		pi.comm.WaitAll()
		nbr, pi.recvBuf = pi.recvBuf, nil
	default:
		nbr = make([]int, len(pi.faceCells))
		pstream.Recv(pi.comm, pi.nbrRank, pi.tag, nbr)
	}
	return
}

func (pi *ProcessorInterface) Agglomerate(_ int, _ ldu.Interfaces, localRestrict,
	nbrRestrict []int) (ldu.Interface, error) {
	if len(localRestrict) != len(pi.faceCells) || len(nbrRestrict) != len(pi.faceCells) {
		return nil, fmt.Errorf("%w: processor patch to rank %d has %d faces, restrict maps have %d and %d",
			ldu.ErrTopology, pi.nbrRank, len(pi.faceCells), len(localRestrict), len(nbrRestrict))
	}
	coarse := &ProcessorInterface{
		comm:    pi.comm,
		nbrRank: pi.nbrRank,
		tag:     pi.tag,
	}
	coarse.faceCells, coarse.faceRestrict = agglomerateFaces(localRestrict, nbrRestrict, pi.Owner())
	return coarse, nil
}

// ProcessorInterfaceField exchanges the patch values of psi with the
// neighbour rank.
type ProcessorInterfaceField struct {
	patch   *ProcessorInterface
	rank    int
	recvBuf []float64
}

func NewProcessorInterfaceField(patch *ProcessorInterface, rank int) *ProcessorInterfaceField {
	return &ProcessorInterfaceField{
		patch:   patch,
		rank:    rank,
		recvBuf: make([]float64, len(patch.faceCells)),
	}
}

func (pf *ProcessorInterfaceField) Interface() ldu.Interface { return pf.patch }
func (pf *ProcessorInterfaceField) Rank() int                { return pf.rank }

func (pf *ProcessorInterfaceField) InitInterfaceMatrixUpdate(_, psi, _ []float64, _ int, commsType ldu.CommsType) {
	var (
		pi   = pf.patch
		send = ldu.PatchInternalField(pi.faceCells, psi)
	)
	switch commsType {
	case ldu.Blocking:
		pstream.Send(pi.comm, pi.nbrRank, pi.tag, send)
	case ldu.NonBlocking:
		pstream.Isend(pi.comm, pi.nbrRank, pi.tag, send)
		pstream.Irecv(pi.comm, pi.nbrRank, pi.tag, pf.recvBuf)
	case ldu.Scheduled:
		pstream.Ssend(pi.comm, pi.nbrRank, pi.tag, send)
	}
}

func (pf *ProcessorInterfaceField) UpdateInterfaceMatrix(result, _, coeffs []float64, _ int, commsType ldu.CommsType) {
	pi := pf.patch
	switch commsType {
	case ldu.NonBlocking:
		if pi.comm.Outstanding() > 0 {
			pi.comm.WaitAll()
		}
	default:
		pstream.Recv(pi.comm, pi.nbrRank, pi.tag, pf.recvBuf)
	}
	for i, c := range pi.faceCells {
		result[c] -= coeffs[i] * pf.recvBuf[i]
	}
}

func (pf *ProcessorInterfaceField) Coarsen(coarse ldu.Interface) (ldu.InterfaceField, error) {
	pi, ok := coarse.(*ProcessorInterface)
	if !ok {
		return nil, fmt.Errorf("%w: processor field cannot sit on a %T", ldu.ErrTopology, coarse)
	}
	return NewProcessorInterfaceField(pi, pf.rank), nil
}
