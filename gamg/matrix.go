package gamg

import (
	"fmt"

	"github.com/notargets/gofvm/coupled"
	"github.com/notargets/gofvm/ldu"
)

// restrictSystem builds the level k+1 system from the level k system fine.
// Diagonals are summed over the merged cells. Fine faces inside a coarse
// cell add both their coefficients to its diagonal, the other faces add to
// their coarse face, swapping upper and lower when the face was flipped.
func (a *Agglomeration) restrictSystem(fine ldu.System, k int) (coarse ldu.System, err error) {
	var (
		mesh         = a.meshes[k+1]
		faceRestrict = a.faceRestrict[k]
		flip         = a.faceFlip[k]
		fm           = fine.Matrix
		m            = ldu.NewMatrix(mesh)
		diag         = m.Diag()
		upper        = m.Upper()
		fineUpper    = fm.Upper()
	)
	a.RestrictField(diag, fm.Diag(), k)
	if fm.Asymmetric() {
		var (
			lower     = m.SetAsymmetric()
			fineLower = fm.Lower()
		)
		for f, cf := range faceRestrict {
			switch {
			case cf < 0:
				diag[-1-cf] += fineUpper[f] + fineLower[f]
			case flip[f]:
				upper[cf] += fineLower[f]
				lower[cf] += fineUpper[f]
			default:
				upper[cf] += fineUpper[f]
				lower[cf] += fineLower[f]
			}
		}
	} else {
		for f, cf := range faceRestrict {
			if cf < 0 {
				diag[-1-cf] += 2 * fineUpper[f]
			} else {
				upper[cf] += fineUpper[f]
			}
		}
	}

	var (
		coarseIfs = mesh.Interfaces()
		nPatches  = len(fine.Interfaces)
	)
	coarse = ldu.System{
		FieldName:          fine.FieldName,
		Matrix:             m,
		InterfaceBouCoeffs: make([][]float64, nPatches),
		InterfaceIntCoeffs: make([][]float64, nPatches),
		Interfaces:         make(ldu.InterfaceFields, nPatches),
	}
	for p := range fine.Interfaces {
		if !fine.Interfaces.Set(p) {
			continue
		}
		if !coarseIfs.Set(p) {
			return coarse, fmt.Errorf("%w: interface field %d has no patch on level %d", ldu.ErrTopology, p, k+1)
		}
		if coarse.Interfaces[p], err = fine.Interfaces[p].Coarsen(coarseIfs[p]); err != nil {
			return
		}
		var (
			restrict = a.patchFaceRestrict[k][p]
			nFaces   = len(coarseIfs[p].FaceCells())
		)
		coarse.InterfaceBouCoeffs[p] = coupled.AgglomerateCoeffs(restrict, nFaces, fine.InterfaceBouCoeffs[p])
		coarse.InterfaceIntCoeffs[p] = coupled.AgglomerateCoeffs(restrict, nFaces, fine.InterfaceIntCoeffs[p])
	}
	return
}
