package coupled

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gofvm/ldu"
	"github.com/notargets/gofvm/pstream"
)

func TestCyclic(t *testing.T) {
	{ // A periodic chain of four cells has no row sum
		ifs := make(ldu.Interfaces, 2)
		a, b, err := NewCyclicPair(ifs, 0, 1, []int{3}, []int{0}, nil)
		require.NoError(t, err)
		assert.True(t, a.Owner())
		assert.False(t, b.Owner())
		assert.Equal(t, b, a.Neighbour())
		mesh, err := ldu.NewMesh(4, []int{0, 1, 2}, []int{1, 2, 3}, ifs, nil)
		require.NoError(t, err)
		m, err := ldu.NewSymmetricMatrix(mesh, []float64{2, 2, 2, 2}, []float64{-1, -1, -1})
		require.NoError(t, err)
		fields := ldu.InterfaceFields{NewCyclicInterfaceField(a, 0), NewCyclicInterfaceField(b, 0)}
		bou := [][]float64{{1}, {1}}
		Apsi := make([]float64, 4)
		m.Amul(Apsi, []float64{3, 3, 3, 3}, bou, fields, 0)
		assert.InDeltaSlice(t, []float64{0, 0, 0, 0}, Apsi, 1e-14)
		m.Amul(Apsi, []float64{1, 2, 3, 4}, bou, fields, 0)
		assert.InDeltaSlice(t, []float64{-4, 0, 0, 4}, Apsi, 1e-14)

		dok, err := m.CoupledDOK(bou, fields, 0)
		require.NoError(t, err)
		assert.Equal(t, -1., dok.At(3, 0))
		assert.Equal(t, -1., dok.At(0, 3))

		assert.Equal(t, []int{1}, a.InternalFieldTransfer(ldu.Blocking, []int{1, 2, 3, 4}))
	}
	{ // Transforms undo each other across the pair
		ifs := make(ldu.Interfaces, 2)
		rot := r3.NewMat([]float64{0, -1, 0, 1, 0, 0, 0, 0, 1})
		a, b, err := NewCyclicPair(ifs, 0, 1, []int{0}, []int{1}, rot)
		require.NoError(t, err)
		assert.True(t, a.DoTransform())
		v := r3.Vec{X: 1, Y: 2, Z: 3}
		w := a.Transform(v)
		assert.InDelta(t, -2., w.X, 1e-14)
		assert.InDelta(t, 1., w.Y, 1e-14)
		back := b.Transform(w)
		assert.InDelta(t, v.X, back.X, 1e-14)
		assert.InDelta(t, v.Y, back.Y, 1e-14)
		assert.InDelta(t, v.Z, back.Z, 1e-14)

		mirror := r3.NewMat([]float64{1, 0, 0, 0, -1, 0, 0, 0, 1})
		a, _, err = NewCyclicPair(ifs, 0, 1, []int{0}, []int{1}, mirror)
		require.NoError(t, err)
		assert.Equal(t, -1., NewCyclicInterfaceField(a, 1).CoupleScale(1))
		assert.Equal(t, 1., NewCyclicInterfaceField(a, 1).CoupleScale(0))
		assert.Equal(t, 1., NewCyclicInterfaceField(a, 2).CoupleScale(1))
		assert.Equal(t, 1., NewCyclicInterfaceField(a, 0).CoupleScale(1))
	}
	{ // Both halves number their coarse faces the same way
		ifs := make(ldu.Interfaces, 2)
		a, b, err := NewCyclicPair(ifs, 0, 1, []int{4, 5, 6, 7}, []int{0, 1, 2, 3}, nil)
		require.NoError(t, err)
		restrict := []int{0, 0, 1, 1, 2, 2, 3, 3}
		coarse := make(ldu.Interfaces, 2)
		aLocal := ldu.PatchInternalField(a.FaceCells(), restrict)
		bLocal := ldu.PatchInternalField(b.FaceCells(), restrict)
		ca, err := a.Agglomerate(0, coarse, aLocal, a.InternalFieldTransfer(ldu.Blocking, restrict))
		require.NoError(t, err)
		cb, err := b.Agglomerate(1, coarse, bLocal, b.InternalFieldTransfer(ldu.Blocking, restrict))
		require.NoError(t, err)
		coarse[0], coarse[1] = ca, cb
		assert.Equal(t, []int{2, 3}, ca.FaceCells())
		assert.Equal(t, []int{0, 1}, cb.FaceCells())
		assert.Equal(t, []int{0, 0, 1, 1}, ca.FaceRestrictAddressing())
		assert.Equal(t, ca.FaceRestrictAddressing(), cb.FaceRestrictAddressing())
		assert.Equal(t, cb, ca.(*CyclicInterface).Neighbour())
		assert.Equal(t, []float64{3, 7}, AgglomerateCoeffs(ca.FaceRestrictAddressing(), 2, []float64{1, 2, 3, 4}))

		fa, err := NewCyclicInterfaceField(a, 0).Coarsen(ca)
		require.NoError(t, err)
		assert.Equal(t, ca, fa.Interface())
	}
	{
		ifs := make(ldu.Interfaces, 2)
		_, _, err := NewCyclicPair(ifs, 0, 1, []int{0, 1}, []int{2}, nil)
		assert.True(t, errors.Is(err, ldu.ErrTopology))
		_, _, err = NewCyclicPair(ifs, 1, 1, nil, nil, nil)
		assert.True(t, errors.Is(err, ldu.ErrTopology))
	}
}

// Two ranks each hold two cells of the chain 0-1-2-3
func splitChain(c *pstream.Comm) (m *ldu.Matrix, fields ldu.InterfaceFields, err error) {
	var (
		nbr       = 1 - c.MyRank()
		faceCells = []int{1}
		pi        *ProcessorInterface
		mesh      *ldu.Mesh
	)
	if c.MyRank() == 1 {
		faceCells = []int{0}
	}
	if pi, err = NewProcessorInterface(c, faceCells, nbr, 0); err != nil {
		return
	}
	if mesh, err = ldu.NewMesh(2, []int{0}, []int{1}, ldu.Interfaces{pi}, c); err != nil {
		return
	}
	if m, err = ldu.NewSymmetricMatrix(mesh, []float64{2, 2}, []float64{-1}); err != nil {
		return
	}
	fields = ldu.InterfaceFields{NewProcessorInterfaceField(pi, 0)}
	return
}

func TestProcessor(t *testing.T) {
	for _, ct := range []ldu.CommsType{ldu.Blocking, ldu.NonBlocking, ldu.Scheduled} {
		var (
			results [2][]float64
			w       = pstream.NewWorld(2)
		)
		err := w.Run(func(c *pstream.Comm) error {
			m, fields, err := splitChain(c)
			if err != nil {
				return err
			}
			m.Mesh().CommsType = ct
			psi := []float64{1, 2}
			if c.MyRank() == 1 {
				psi = []float64{3, 4}
			}
			Apsi := make([]float64, 2)
			for iter := 0; iter < 3; iter++ {
				m.Amul(Apsi, psi, [][]float64{{1}}, fields, 0)
			}
			results[c.MyRank()] = Apsi
			if c.Outstanding() != 0 {
				return errors.New("requests left outstanding")
			}
			return nil
		})
		require.NoError(t, err, ct.String())
		assert.InDeltaSlice(t, []float64{0, 0}, results[0], 1e-14, ct.String())
		assert.InDeltaSlice(t, []float64{0, 5}, results[1], 1e-14, ct.String())
	}
	{ // Restriction maps cross the patch and give matching coarse faces
		var (
			restrict [2][]int
			faces    [2][]int
			w        = pstream.NewWorld(2)
		)
		err := w.Run(func(c *pstream.Comm) error {
			faceCells := []int{0, 1, 2}
			pi, err := NewProcessorInterface(c, faceCells, 1-c.MyRank(), 7)
			if err != nil {
				return err
			}
			local := []int{0, 0, 1}
			if c.MyRank() == 1 {
				local = []int{0, 1, 1}
			}
			for _, ct := range []ldu.CommsType{ldu.Blocking, ldu.NonBlocking} {
				pi.InitInternalFieldTransfer(ct, local)
				nbr := pi.InternalFieldTransfer(ct, local)
				coarse, err := pi.Agglomerate(0, nil, local, nbr)
				if err != nil {
					return err
				}
				restrict[c.MyRank()] = coarse.FaceRestrictAddressing()
				faces[c.MyRank()] = coarse.FaceCells()
			}
			return nil
		})
		require.NoError(t, err)
		// pairs (0,0) (0,1) (1,1) are all distinct
		assert.Equal(t, []int{0, 1, 2}, restrict[0])
		assert.Equal(t, restrict[0], restrict[1])
		assert.Equal(t, []int{0, 0, 1}, faces[0])
		assert.Equal(t, []int{0, 1, 1}, faces[1])
	}
	{
		w := pstream.NewWorld(2)
		err := w.Run(func(c *pstream.Comm) error {
			_, err := NewProcessorInterface(c, nil, c.MyRank(), 0)
			return err
		})
		assert.True(t, errors.Is(err, ldu.ErrTopology))
	}
}
