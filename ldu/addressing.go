package ldu

import (
	"fmt"
	"sort"

	"github.com/notargets/gofvm/utils"
)

// PatchInfo tells the addressing how an interface patch is coupled.
type PatchInfo struct {
	// NeighbourRank is the rank on the other side of a processor patch, or -1
	// when the coupling is resolved on this rank (cyclic, or an unset slot).
	NeighbourRank int
	// Tag distinguishes several patches between the same two ranks. Both
	// sides of a pair must use the same tag.
	Tag int
	// Owner is true on the side that drives the ordering of a coupled pair.
	Owner bool
}

func (pi PatchInfo) Remote() bool { return pi.NeighbourRank >= 0 }

var GlobalPatch = PatchInfo{NeighbourRank: -1}

// Addressing is the face based topology of a linear system: the owner
// (lower) and neighbour (upper) cell of each internal face, and the cells
// touched by each interface patch. It is immutable; a topology change means
// a new Addressing.
type Addressing struct {
	nCells    int
	lowerAddr []int
	upperAddr []int
	patchAddr [][]int
	patchInfo []PatchInfo

	losort          *utils.Lazy[[]int]
	ownerStart      *utils.Lazy[[]int]
	losortStart     *utils.Lazy[[]int]
	upperTriangular *utils.Lazy[bool]
	schedule        *utils.Lazy[Schedule]
}

func NewAddressing(nCells int, lowerAddr, upperAddr []int, patchAddr [][]int,
	patchInfo []PatchInfo) (la *Addressing, err error) {
	if nCells < 0 {
		return nil, fmt.Errorf("%w: negative cell count %d", ErrTopology, nCells)
	}
	if len(lowerAddr) != len(upperAddr) {
		return nil, fmt.Errorf("%w: lower address length %d differs from upper address length %d",
			ErrTopology, len(lowerAddr), len(upperAddr))
	}
	for f := range lowerAddr {
		l, u := lowerAddr[f], upperAddr[f]
		if l < 0 || l >= nCells || u < 0 || u >= nCells {
			return nil, fmt.Errorf("%w: face %d addresses cells (%d,%d) outside [0,%d)",
				ErrTopology, f, l, u, nCells)
		}
		if l == u {
			return nil, fmt.Errorf("%w: face %d has the same owner and neighbour %d", ErrTopology, f, l)
		}
	}
	if patchInfo == nil {
		patchInfo = make([]PatchInfo, len(patchAddr))
		for p := range patchInfo {
			patchInfo[p] = GlobalPatch
		}
	}
	if len(patchInfo) != len(patchAddr) {
		return nil, fmt.Errorf("%w: %d patch descriptions for %d patches",
			ErrTopology, len(patchInfo), len(patchAddr))
	}
	for p, pa := range patchAddr {
		for i, c := range pa {
			if c < 0 || c >= nCells {
				return nil, fmt.Errorf("%w: patch %d face %d addresses cell %d outside [0,%d)",
					ErrTopology, p, i, c, nCells)
			}
		}
	}
	la = &Addressing{
		nCells:    nCells,
		lowerAddr: lowerAddr,
		upperAddr: upperAddr,
		patchAddr: patchAddr,
		patchInfo: patchInfo,
	}
	la.losort = utils.NewLazy(la.calcLosort)
	la.ownerStart = utils.NewLazy(la.calcOwnerStart)
	la.losortStart = utils.NewLazy(la.calcLosortStart)
	la.upperTriangular = utils.NewLazy(la.calcUpperTriangular)
	la.schedule = utils.NewLazy(la.calcSchedule)
	return
}

func (la *Addressing) NCells() int               { return la.nCells }
func (la *Addressing) NFaces() int               { return len(la.lowerAddr) }
func (la *Addressing) NPatches() int             { return len(la.patchAddr) }
func (la *Addressing) LowerAddr() []int          { return la.lowerAddr }
func (la *Addressing) UpperAddr() []int          { return la.upperAddr }
func (la *Addressing) Lower(f int) int           { return la.lowerAddr[f] }
func (la *Addressing) Upper(f int) int           { return la.upperAddr[f] }
func (la *Addressing) PatchAddr(p int) []int     { return la.patchAddr[p] }
func (la *Addressing) PatchCell(p, i int) int    { return la.patchAddr[p][i] }
func (la *Addressing) PatchInfo(p int) PatchInfo { return la.patchInfo[p] }

// LosortAddr lists the faces ordered by their upper (neighbour) cell.
func (la *Addressing) LosortAddr() []int { return la.losort.Get() }

// OwnerStartAddr gives, for each cell, the first face it owns. It is only
// meaningful for faces ordered by owner, see UpperTriangular.
func (la *Addressing) OwnerStartAddr() []int { return la.ownerStart.Get() }

// LosortStartAddr gives, for each cell, the first entry of LosortAddr whose
// face has that cell as neighbour.
func (la *Addressing) LosortStartAddr() []int { return la.losortStart.Get() }

// UpperTriangular reports whether every face has lower < upper and faces are
// ordered by their lower cell. The factorizing preconditioners and the
// Gauss-Seidel sweeps rely on this ordering.
func (la *Addressing) UpperTriangular() bool { return la.upperTriangular.Get() }

// PatchSchedule is the fixed interface visit order used by scheduled
// communication.
func (la *Addressing) PatchSchedule() Schedule { return la.schedule.Get() }

// RemotePatches lists patches coupled to another rank.
func (la *Addressing) RemotePatches() (patches []int) {
	for p, pi := range la.patchInfo {
		if pi.Remote() {
			patches = append(patches, p)
		}
	}
	return
}

func (la *Addressing) calcLosort() (losort []int) {
	var (
		nNbrOfFace = make([]int, la.nCells+1)
	)
	for _, u := range la.upperAddr {
		nNbrOfFace[u+1]++
	}
	for c := 0; c < la.nCells; c++ {
		nNbrOfFace[c+1] += nNbrOfFace[c]
	}
	losort = make([]int, len(la.upperAddr))
	for f, u := range la.upperAddr {
		losort[nNbrOfFace[u]] = f
		nNbrOfFace[u]++
	}
	return
}

func (la *Addressing) calcOwnerStart() (ownStart []int) {
	ownStart = make([]int, la.nCells+1)
	for _, l := range la.lowerAddr {
		ownStart[l+1]++
	}
	for c := 0; c < la.nCells; c++ {
		ownStart[c+1] += ownStart[c]
	}
	return
}

func (la *Addressing) calcLosortStart() (lsrtStart []int) {
	lsrtStart = make([]int, la.nCells+1)
	for _, u := range la.upperAddr {
		lsrtStart[u+1]++
	}
	for c := 0; c < la.nCells; c++ {
		lsrtStart[c+1] += lsrtStart[c]
	}
	return
}

func (la *Addressing) calcUpperTriangular() bool {
	for f := range la.lowerAddr {
		if la.lowerAddr[f] >= la.upperAddr[f] {
			return false
		}
		if f > 0 && la.lowerAddr[f] < la.lowerAddr[f-1] {
			return false
		}
	}
	return true
}

// ScheduleEntry is one step of the scheduled communication order: either
// the init (send) or the update (receive and apply) phase of a patch.
type ScheduleEntry struct {
	Patch int
	Init  bool
}

type Schedule struct {
	// Entries covers the processor patches, two entries per patch.
	Entries []ScheduleEntry
	// Global lists the patches beyond the schedule, coupled on this rank.
	// They are always evaluated as blocking.
	Global []int
}

/*
calcSchedule orders the processor patches by (neighbour rank, tag). Every
rank then walks its pairs in the same global order, which is what keeps the
synchronous exchange deadlock free: the smallest unfinished pair always has
both of its ranks waiting on it. Within a pair the non-owner (higher rank)
sends first and the owner receives first.
*/
func (la *Addressing) calcSchedule() (sched Schedule) {
	var (
		remote []int
	)
	for p, pi := range la.patchInfo {
		if pi.Remote() {
			remote = append(remote, p)
		} else {
			sched.Global = append(sched.Global, p)
		}
	}
	sort.SliceStable(remote, func(i, j int) bool {
		pi, pj := la.patchInfo[remote[i]], la.patchInfo[remote[j]]
		if pi.NeighbourRank != pj.NeighbourRank {
			return pi.NeighbourRank < pj.NeighbourRank
		}
		return pi.Tag < pj.Tag
	})
	sched.Entries = make([]ScheduleEntry, 0, 2*len(remote))
	for _, p := range remote {
		if la.patchInfo[p].Owner {
			sched.Entries = append(sched.Entries,
				ScheduleEntry{Patch: p, Init: false}, ScheduleEntry{Patch: p, Init: true})
		} else {
			sched.Entries = append(sched.Entries,
				ScheduleEntry{Patch: p, Init: true}, ScheduleEntry{Patch: p, Init: false})
		}
	}
	return
}
