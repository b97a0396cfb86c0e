package model_problems

import (
	"fmt"

	"github.com/notargets/gofvm/coupled"
	"github.com/notargets/gofvm/ldu"
	"github.com/notargets/gofvm/pstream"
	"github.com/notargets/gofvm/utils"
)

const gatherTag = 1 << 20

// Diffusion1D is steady diffusion on a rod with fixed end temperatures,
// discretised with N cell centred control volumes. The discrete solution is
// the exact linear ramp between the two end values.
type Diffusion1D struct {
	N           int
	Length      float64
	Diffusivity float64
	Left, Right float64
}

func NewDiffusion1D(N int, length, diffusivity, left, right float64) *Diffusion1D {
	return &Diffusion1D{
		N:           N,
		Length:      length,
		Diffusivity: diffusivity,
		Left:        left,
		Right:       right,
	}
}

func (d *Diffusion1D) dx() float64 { return d.Length / float64(d.N) }

// X returns the cell centres.
func (d *Diffusion1D) X() (x []float64) {
	x = make([]float64, d.N)
	for i := range x {
		x[i] = (float64(i) + 0.5) * d.dx()
	}
	return
}

func (d *Diffusion1D) ExactAt(x float64) float64 {
	return d.Left + (d.Right-d.Left)*x/d.Length
}

// System assembles the whole rod on a single rank.
func (d *Diffusion1D) System() (p *Problem, err error) {
	return d.Decompose(pstream.Serial())
}

// Decompose assembles the part of the rod owned by the rank of comm. The rod
// is split into contiguous ranges, each joined to its neighbours by one
// processor face.
func (d *Diffusion1D) Decompose(comm *pstream.Comm) (p *Problem, err error) {
	var (
		np   = comm.NProcs()
		rank = comm.MyRank()
		k    = d.Diffusivity / d.dx()
	)
	switch {
	case d.N < 1:
		return nil, fmt.Errorf("%w: diffusion needs at least one cell, have %d", ldu.ErrTopology, d.N)
	case np > d.N:
		return nil, fmt.Errorf("%w: cannot split %d cells over %d ranks", ldu.ErrTopology, d.N, np)
	case d.Length <= 0 || d.Diffusivity <= 0:
		return nil, fmt.Errorf("length %g and diffusivity %g must be positive", d.Length, d.Diffusivity)
	}
	var (
		kMin, kMax   = utils.NewPartitionMap(np, d.N).GetBucketRange(rank)
		n            = kMax - kMin
		lower, upper = make([]int, n-1), make([]int, n-1)
		diag         = make([]float64, n)
		coeffs       = make([]float64, n-1)
		source       = make([]float64, n)
		ifs          ldu.Interfaces
		fields       ldu.InterfaceFields
		bou          [][]float64
	)
	for f := range lower {
		lower[f], upper[f], coeffs[f] = f, f+1, -k
		diag[f] += k
		diag[f+1] += k
	}
	addProcessor := func(cell, nbr int) (err error) {
		var pi *coupled.ProcessorInterface
		// One face between each pair of ranks, the tag is the lower rank
		if pi, err = coupled.NewProcessorInterface(comm, []int{cell}, nbr, min(rank, nbr)); err != nil {
			return
		}
		ifs = append(ifs, pi)
		fields = append(fields, coupled.NewProcessorInterfaceField(pi, 0))
		bou = append(bou, []float64{k})
		diag[cell] += k
		return
	}
	if rank == 0 {
		diag[0] += 2 * k
		source[0] += 2 * k * d.Left
	} else if err = addProcessor(0, rank-1); err != nil {
		return
	}
	if rank == np-1 {
		diag[n-1] += 2 * k
		source[n-1] += 2 * k * d.Right
	} else if err = addProcessor(n-1, rank+1); err != nil {
		return
	}
	var (
		mesh *ldu.Mesh
		m    *ldu.Matrix
	)
	if mesh, err = ldu.NewMesh(n, lower, upper, ifs, comm); err != nil {
		return
	}
	if m, err = ldu.NewSymmetricMatrix(mesh, diag, coeffs); err != nil {
		return
	}
	p = &Problem{
		System: ldu.System{
			FieldName:          "T",
			Matrix:             m,
			InterfaceBouCoeffs: bou,
			Interfaces:         fields,
		},
		Source: source,
		Cells:  make([]int, n),
		Exact:  make([]float64, n),
	}
	x := d.X()
	for c := range p.Cells {
		p.Cells[c] = kMin + c
		p.Exact[c] = d.ExactAt(x[kMin+c])
	}
	err = p.Prepare()
	return
}

// Gather collects a decomposed field on the master rank, which gets the
// whole field back. Every other rank gets nil.
func (d *Diffusion1D) Gather(comm *pstream.Comm, local []float64) (global []float64) {
	if !comm.Master() {
		pstream.Send(comm, 0, gatherTag, local)
		return
	}
	var (
		pm = utils.NewPartitionMap(comm.NProcs(), d.N)
	)
	global = make([]float64, d.N)
	for rank := 0; rank < comm.NProcs(); rank++ {
		kMin, kMax := pm.GetBucketRange(rank)
		if rank == 0 {
			copy(global[kMin:kMax], local)
			continue
		}
		pstream.Recv(comm, rank, gatherTag, global[kMin:kMax])
	}
	return
}
