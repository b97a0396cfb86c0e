package ldu

import (
	"fmt"

	"github.com/notargets/gofvm/pstream"
	"github.com/notargets/gofvm/utils"
)

// Mesh bundles everything a matrix needs to know about its topology: the
// addressing, the coupled interfaces, the communicator and the cache that
// holds objects derived from the topology.
type Mesh struct {
	addr       *Addressing
	interfaces Interfaces
	comm       *pstream.Comm
	// CommsType is the communication protocol used for interface updates.
	CommsType CommsType
	// Cache holds demand driven objects such as multigrid agglomerations.
	// It is emptied by Clear, which must be called after a topology change.
	Cache *utils.ObjectCache
}

// NewMesh builds the addressing for nCells cells and the given internal
// faces, taking the patch cells from interfaces. A nil comm means a serial
// run.
func NewMesh(nCells int, lowerAddr, upperAddr []int, interfaces Interfaces, comm *pstream.Comm) (m *Mesh, err error) {
	var (
		patchAddr = make([][]int, len(interfaces))
		patchInfo = make([]PatchInfo, len(interfaces))
		addr      *Addressing
	)
	if comm == nil {
		comm = pstream.Serial()
	}
	for p, ifc := range interfaces {
		if ifc == nil {
			patchInfo[p] = GlobalPatch
			continue
		}
		patchAddr[p] = ifc.FaceCells()
		patchInfo[p] = ifc.PatchInfo()
		if nbr := patchInfo[p].NeighbourRank; nbr >= comm.NProcs() || nbr == comm.MyRank() {
			return nil, fmt.Errorf("%w: interface %d couples rank %d to rank %d of %d",
				ErrTopology, p, comm.MyRank(), nbr, comm.NProcs())
		}
	}
	if addr, err = NewAddressing(nCells, lowerAddr, upperAddr, patchAddr, patchInfo); err != nil {
		return
	}
	m = &Mesh{
		addr:       addr,
		interfaces: interfaces,
		comm:       comm,
		CommsType:  NonBlocking,
		Cache:      utils.NewObjectCache(),
	}
	return
}

func (m *Mesh) Addr() *Addressing      { return m.addr }
func (m *Mesh) Interfaces() Interfaces { return m.interfaces }
func (m *Mesh) Comm() *pstream.Comm    { return m.comm }
func (m *Mesh) NCells() int            { return m.addr.NCells() }

// Clear drops every cached object derived from this mesh.
func (m *Mesh) Clear() {
	m.Cache.Clear()
}
