package TurbDiffusion

import (
	"math"

	"github.com/notargets/turbflux/geometry2D"
	"github.com/notargets/turbflux/utils"

	"gonum.org/v1/gonum/floats"
)

/*
Assembler accumulates edge fluxes into the nodal residual and, when implicit, the nodal
Jacobian. The flux of edge (i,j) leaves node i and enters node j:

	R[i] -= F, R[j] += F
	J(i,i) -= Ji, J(i,j) -= Jj, J(j,i) += Ji, J(j,j) += Jj
*/
type Assembler struct {
	NPoint, NVar int
	Residual     []float64          // NPoint x NVar, node major
	Jacobian     *utils.BlockSparse // Nil for explicit runs
}

func NewAssembler(dm *geometry2D.DualMesh, nVar int, implicit bool) (as *Assembler) {
	np := dm.NumPoints()
	as = &Assembler{
		NPoint:   np,
		NVar:     nVar,
		Residual: make([]float64, np*nVar),
	}
	if implicit {
		addresses := make([][2]int, 0, np+2*dm.NumEdges())
		for i := 0; i < np; i++ {
			addresses = append(addresses, [2]int{i, i})
		}
		for _, nodes := range dm.EdgeNodes {
			i, j := nodes[0], nodes[1]
			addresses = append(addresses, [2]int{i, j}, [2]int{j, i})
		}
		as.Jacobian = utils.NewBlockSparse(np, np, nVar, nVar, addresses)
	}
	return
}

func (as *Assembler) Reset() {
	for i := range as.Residual {
		as.Residual[i] = 0
	}
	if as.Jacobian != nil {
		as.Jacobian.Zero()
	}
}

// AddEdge scatters one edge result. Jacobians of an explicit result are ignored.
func (as *Assembler) AddEdge(i, j int, res FluxResult) {
	var (
		Ri = as.Residual[i*as.NVar : (i+1)*as.NVar]
		Rj = as.Residual[j*as.NVar : (j+1)*as.NVar]
	)
	for k, f := range res.Flux {
		Ri[k] -= f
		Rj[k] += f
	}
	if as.Jacobian == nil || res.JacobianI == nil {
		return
	}
	as.Jacobian.AddToBlock(i, i, -1, res.JacobianI)
	as.Jacobian.AddToBlock(i, j, -1, res.JacobianJ)
	as.Jacobian.AddToBlock(j, i, 1, res.JacobianI)
	as.Jacobian.AddToBlock(j, j, 1, res.JacobianJ)
}

// NodeResidual is a view of the residual of one node.
func (as *Assembler) NodeResidual(i int) []float64 {
	return as.Residual[i*as.NVar : (i+1)*as.NVar]
}

// ResidualNorm is the L2 norm of the whole residual.
func (as *Assembler) ResidualNorm() float64 {
	return floats.Norm(as.Residual, 2)
}

// ScalarNorms returns the L2 norm of the residual of each transported scalar.
func (as *Assembler) ScalarNorms() (norms []float64) {
	norms = make([]float64, as.NVar)
	for i := 0; i < as.NPoint; i++ {
		for k, r := range as.NodeResidual(i) {
			norms[k] += r * r
		}
	}
	for k := range norms {
		norms[k] = math.Sqrt(norms[k])
	}
	return
}

// Sum adds the residual over all nodes, per scalar.
func (as *Assembler) Sum() (sum []float64) {
	sum = make([]float64, as.NVar)
	for i := 0; i < as.NPoint; i++ {
		floats.Add(sum, as.NodeResidual(i))
	}
	return
}
