package TurbDiffusion

import (
	"github.com/notargets/turbflux/geometry2D"

	"gonum.org/v1/gonum/mat"
)

/*
LeastSquaresGradients computes the gradient of every nodal scalar from its edge neighbors,
weighting each neighbor by 1/|dx|^2. Values are NPoint x NVar, the result is NPoint x NVar x NDim.
A node whose neighbors do not span the plane gets a zero gradient.
*/
func LeastSquaresGradients(dm *geometry2D.DualMesh, values [][]float64) (grads [][][]float64) {
	var (
		Np   = dm.NumPoints()
		NDim = dm.NDim
		NVar int
	)
	if Np > 0 {
		NVar = len(values[0])
	}
	data := make([]float64, Np*NVar*NDim)
	grads = make([][][]float64, Np)
	for i := range grads {
		grads[i] = make([][]float64, NVar)
		for k := range grads[i] {
			offset := (i*NVar + k) * NDim
			grads[i][k] = data[offset : offset+NDim]
		}
	}
	var (
		A  = mat.NewSymDense(NDim, nil)
		b  = make([]*mat.VecDense, NVar)
		x  = mat.NewVecDense(NDim, nil)
		dx = make([]float64, NDim)
	)
	for k := range b {
		b[k] = mat.NewVecDense(NDim, nil)
	}
	for i, edges := range dm.NodeEdges() {
		A.Zero()
		for k := range b {
			b[k].Zero()
		}
		for _, e := range edges {
			j := dm.EdgeNodes[e][0]
			if j == i {
				j = dm.EdgeNodes[e][1]
			}
			var dist2 float64
			for d := 0; d < NDim; d++ {
				dx[d] = dm.Coords[j][d] - dm.Coords[i][d]
				dist2 += dx[d] * dx[d]
			}
			if dist2 == 0 {
				continue
			}
			w := 1 / dist2
			for d1 := 0; d1 < NDim; d1++ {
				for d2 := d1; d2 < NDim; d2++ {
					A.SetSym(d1, d2, A.At(d1, d2)+w*dx[d1]*dx[d2])
				}
			}
			for k := range b {
				du := values[j][k] - values[i][k]
				for d := 0; d < NDim; d++ {
					b[k].SetVec(d, b[k].AtVec(d)+w*dx[d]*du)
				}
			}
		}
		for k := range b {
			if err := x.SolveVec(A, b[k]); err != nil {
				// Singular neighborhood, the gradient stays zero
				continue
			}
			for d := 0; d < NDim; d++ {
				grads[i][k][d] = x.AtVec(d)
			}
		}
	}
	return
}
