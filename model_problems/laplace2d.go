package model_problems

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gofvm/coupled"
	"github.com/notargets/gofvm/gamg"
	"github.com/notargets/gofvm/ldu"
)

// Laplace2D is a uniformly heated unit square held at zero on its walls.
// With Periodic set the left and right walls are replaced by a cyclic
// coupling, and a non zero Convection adds first order upwind transport in
// x, which makes the operator asymmetric.
type Laplace2D struct {
	Nx, Ny     int
	Periodic   bool
	Convection float64
}

func NewLaplace2D(nx, ny int) *Laplace2D {
	return &Laplace2D{Nx: nx, Ny: ny}
}

func (lp *Laplace2D) Cell(i, j int) int { return i + j*lp.Nx }

// System assembles the serial system. The face area vectors are attached to
// the mesh for area based agglomeration.
func (lp *Laplace2D) System() (p *Problem, err error) {
	if lp.Nx < 2 || lp.Ny < 2 {
		return nil, fmt.Errorf("%w: grid of %d x %d cells is too small", ldu.ErrTopology, lp.Nx, lp.Ny)
	}
	var (
		n            = lp.Nx * lp.Ny
		hx, hy       = 1 / float64(lp.Nx), 1 / float64(lp.Ny)
		kx, ky       = hy / hx, hx / hy
		flux         = lp.Convection * hy
		fOut, fIn    = math.Max(flux, 0), math.Min(flux, 0)
		lower, upper []int
		areas        []r3.Vec
		diag         = make([]float64, n)
		source       = make([]float64, n)
		up, lo       []float64
	)
	for j := 0; j < lp.Ny; j++ {
		for i := 0; i < lp.Nx; i++ {
			c := lp.Cell(i, j)
			source[c] = hx * hy
			if i+1 < lp.Nx {
				lower, upper = append(lower, c), append(upper, c+1)
				areas = append(areas, r3.Vec{X: hy})
				up, lo = append(up, -kx+fIn), append(lo, -kx-fOut)
				diag[c] += kx + fOut
				diag[c+1] += kx - fIn
			}
			if j+1 < lp.Ny {
				lower, upper = append(lower, c), append(upper, c+lp.Nx)
				areas = append(areas, r3.Vec{Y: hx})
				up, lo = append(up, -ky), append(lo, -ky)
				diag[c] += ky
				diag[c+lp.Nx] += ky
			}
			// Walls are half a cell away
			if j == 0 || j == lp.Ny-1 {
				diag[c] += 2 * ky
			}
			if !lp.Periodic {
				switch i {
				case 0:
					diag[c] += 2*kx - fIn
				case lp.Nx - 1:
					diag[c] += 2*kx + fOut
				}
			}
		}
	}
	var (
		ifs    ldu.Interfaces
		fields ldu.InterfaceFields
		bou    [][]float64
		intl   [][]float64
	)
	if lp.Periodic {
		var (
			east, west = make([]int, lp.Ny), make([]int, lp.Ny)
			a, b       *coupled.CyclicInterface
		)
		for j := range east {
			east[j], west[j] = lp.Cell(lp.Nx-1, j), lp.Cell(0, j)
			diag[east[j]] += kx + fOut
			diag[west[j]] += kx - fIn
		}
		ifs = make(ldu.Interfaces, 2)
		if a, b, err = coupled.NewCyclicPair(ifs, 0, 1, east, west, nil); err != nil {
			return
		}
		fields = ldu.InterfaceFields{coupled.NewCyclicInterfaceField(a, 0), coupled.NewCyclicInterfaceField(b, 0)}
		// The east cell owns the wrapped face, as it would as an internal face
		eastBou, westBou := constant(lp.Ny, kx-fIn), constant(lp.Ny, kx+fOut)
		bou = [][]float64{eastBou, westBou}
		intl = [][]float64{westBou, eastBou}
	}
	var (
		mesh *ldu.Mesh
		m    *ldu.Matrix
	)
	if mesh, err = ldu.NewMesh(n, lower, upper, ifs, nil); err != nil {
		return
	}
	if lp.Convection == 0 {
		m, err = ldu.NewSymmetricMatrix(mesh, diag, up)
	} else {
		m, err = ldu.NewAsymmetricMatrix(mesh, diag, up, lo)
	}
	if err != nil {
		return
	}
	if err = gamg.SetFaceAreas(mesh, areas); err != nil {
		return
	}
	p = &Problem{
		System: ldu.System{
			FieldName:          "T",
			Matrix:             m,
			InterfaceBouCoeffs: bou,
			InterfaceIntCoeffs: intl,
			Interfaces:         fields,
		},
		Source: source,
		Cells:  make([]int, n),
	}
	for c := range p.Cells {
		p.Cells[c] = c
	}
	err = p.Prepare()
	return
}

func constant(n int, val float64) (v []float64) {
	v = make([]float64, n)
	for i := range v {
		v[i] = val
	}
	return
}
