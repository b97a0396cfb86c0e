package ldu

import (
	"fmt"
)

// Interface is the topology side of a coupled boundary patch: the cells it
// touches and how to move cell indexed integers across it. Processor and
// cyclic patches implement it.
type Interface interface {
	FaceCells() []int
	PatchInfo() PatchInfo
	// InitInternalFieldTransfer starts moving the patch values of iF to the
	// other side, InternalFieldTransfer completes it and returns the values
	// from the other side, one per patch face.
	InitInternalFieldTransfer(commsType CommsType, iF []int)
	InternalFieldTransfer(commsType CommsType, iF []int) []int
	// Agglomerate builds the coarse version of this patch, stored in slot
	// index of coarse. localRestrict and neighbourRestrict are the fine to
	// coarse cell maps seen from each side, one entry per patch face.
	Agglomerate(index int, coarse Interfaces, localRestrict, neighbourRestrict []int) (Interface, error)
	// FaceRestrictAddressing maps fine patch faces onto coarse patch faces.
	// It is nil on a patch that was not produced by Agglomerate.
	FaceRestrictAddressing() []int
}

// InterfaceField is the value side of a coupled patch: it applies the
// neighbour contribution coeffs*psi(neighbour) to a matrix product. The
// update subtracts, so passing the negated boundary coefficients adds.
type InterfaceField interface {
	Interface() Interface
	// Rank of the field being coupled, 0 for scalars. Transforming patches
	// use it to rotate the exchanged component.
	Rank() int
	InitInterfaceMatrixUpdate(result, psi, coeffs []float64, cmpt int, commsType CommsType)
	UpdateInterfaceMatrix(result, psi, coeffs []float64, cmpt int, commsType CommsType)
	// Coarsen returns the field for the coarse version of this patch.
	Coarsen(coarse Interface) (InterfaceField, error)
}

// Interfaces is indexed by patch. Unset slots are nil and are skipped.
type Interfaces []Interface

func (ifs Interfaces) Set(i int) bool { return i < len(ifs) && ifs[i] != nil }

// InterfaceFields is indexed like the Interfaces it couples.
type InterfaceFields []InterfaceField

func (iff InterfaceFields) Set(i int) bool { return i < len(iff) && iff[i] != nil }

// PatchInternalField gathers the values of iF at the patch cells.
func PatchInternalField[T any](faceCells []int, iF []T) (pif []T) {
	pif = make([]T, len(faceCells))
	for i, c := range faceCells {
		pif[i] = iF[c]
	}
	return
}

// CheckPatchCoeffs validates a set of interface coefficients against the
// patches they will be applied to.
func CheckPatchCoeffs(interfaces InterfaceFields, coeffs [][]float64) (err error) {
	if len(coeffs) != len(interfaces) {
		return fmt.Errorf("%w: %d coefficient sets for %d interfaces", ErrTopology, len(coeffs), len(interfaces))
	}
	for p, iff := range interfaces {
		if iff == nil {
			continue
		}
		if nf := len(iff.Interface().FaceCells()); len(coeffs[p]) != nf {
			return fmt.Errorf("%w: interface %d has %d faces and %d coefficients",
				ErrTopology, p, nf, len(coeffs[p]))
		}
	}
	return
}

// NegateCoeffs returns a negated copy of a set of interface coefficients.
func NegateCoeffs(coeffs [][]float64) (neg [][]float64) {
	neg = make([][]float64, len(coeffs))
	for p, c := range coeffs {
		if c == nil {
			continue
		}
		neg[p] = make([]float64, len(c))
		for i, v := range c {
			neg[p][i] = -v
		}
	}
	return
}
