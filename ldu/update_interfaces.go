package ldu

// InitMatrixInterfaces starts the interface contribution to result. With
// blocking or non-blocking communication every interface starts here so the
// exchange overlaps the internal face loop that follows. Scheduled
// communication does all of its work in UpdateMatrixInterfaces.
func (m *Matrix) InitMatrixInterfaces(coupleCoeffs [][]float64, interfaces InterfaceFields,
	psi, result []float64, cmpt int) {
	var (
		commsType = m.mesh.CommsType
	)
	switch commsType {
	case Blocking, NonBlocking:
		for p := range interfaces {
			if interfaces.Set(p) {
				interfaces[p].InitInterfaceMatrixUpdate(result, psi, coupleCoeffs[p], cmpt, commsType)
			}
		}
	case Scheduled:
		// Cyclic and other rank local patches have nothing to overlap
		for _, p := range m.Addr().PatchSchedule().Global {
			if interfaces.Set(p) {
				interfaces[p].InitInterfaceMatrixUpdate(result, psi, coupleCoeffs[p], cmpt, Blocking)
			}
		}
	}
}

// UpdateMatrixInterfaces completes the interface contribution to result:
// result[faceCells[i]] -= coupleCoeffs[p][i] * psiNeighbour[i].
func (m *Matrix) UpdateMatrixInterfaces(coupleCoeffs [][]float64, interfaces InterfaceFields,
	psi, result []float64, cmpt int) {
	var (
		commsType = m.mesh.CommsType
		comm      = m.mesh.Comm()
	)
	switch commsType {
	case Blocking:
		for p := range interfaces {
			if interfaces.Set(p) {
				interfaces[p].UpdateInterfaceMatrix(result, psi, coupleCoeffs[p], cmpt, commsType)
			}
		}
	case NonBlocking:
		if comm.Parallel() {
			comm.WaitAll()
		}
		for p := range interfaces {
			if interfaces.Set(p) {
				interfaces[p].UpdateInterfaceMatrix(result, psi, coupleCoeffs[p], cmpt, commsType)
			}
		}
	case Scheduled:
		sched := m.Addr().PatchSchedule()
		for _, entry := range sched.Entries {
			p := entry.Patch
			if !interfaces.Set(p) {
				continue
			}
			if entry.Init {
				interfaces[p].InitInterfaceMatrixUpdate(result, psi, coupleCoeffs[p], cmpt, commsType)
			} else {
				interfaces[p].UpdateInterfaceMatrix(result, psi, coupleCoeffs[p], cmpt, commsType)
			}
		}
		for _, p := range sched.Global {
			if interfaces.Set(p) {
				interfaces[p].UpdateInterfaceMatrix(result, psi, coupleCoeffs[p], cmpt, Blocking)
			}
		}
	}
}
