package TurbDiffusion

import (
	"fmt"

	"github.com/notargets/turbflux/geometry2D"
	"github.com/notargets/turbflux/types"

	"gonum.org/v1/gonum/floats"
)

// EdgeGeometry holds views of the two endpoint coordinates and the face normal of an edge.
// The normal is not unit length, its magnitude is the face area.
type EdgeGeometry struct {
	CoordI, CoordJ, Normal []float64
}

// MeshEdgeGeometry returns the geometry of edge e of the dual mesh without copying.
func MeshEdgeGeometry(dm *geometry2D.DualMesh, e int) EdgeGeometry {
	xi, xj, n := dm.EdgeCoords(e)
	return EdgeGeometry{CoordI: xi, CoordJ: xj, Normal: n}
}

// NodeState is the per node input of the kernel.
type NodeState struct {
	Density          float64
	LaminarViscosity float64 // Dynamic
	EddyViscosity    float64 // Dynamic
	F1               float64 // Blending weight, two equation model only
	TurbVar          []float64
	TurbVarGrad      [][]float64 // NVar x NDim
}

// FluxResult holds views into the kernel's buffers, valid until its next evaluation.
// The Jacobians are nil unless the kernel is implicit.
type FluxResult struct {
	Flux                 []float64
	JacobianI, JacobianJ [][]float64
}

/*
AvgGradScalar computes the viscous flux of the turbulence transport scalars across one edge
of a vertex centered finite volume mesh, using the average of the two nodal gradients.
With gradient correction enabled the average gradient's component along the edge is replaced
by the finite difference of the two nodal values, which suppresses odd-even decoupling.

Every buffer is allocated at construction. An instance is not safe for concurrent use, use
one instance per goroutine.
*/
type AvgGradScalar struct {
	NDim, NVar      int
	Model           types.TurbModel
	Constants       ClosureConstants
	CorrectGradient bool
	Implicit        bool

	closure closure

	edgeVector    []float64
	distIJ2       float64
	projVectorIJ  float64
	projNormal    []float64
	projEdge      []float64
	projCorrected []float64

	flux       []float64
	jacI, jacJ [][]float64

	scalars [6]float64 // Staging for declared scalar inputs
}

var noTape = NoTape{}

func NewAvgGradScalar(nDim int, model types.TurbModel, consts ClosureConstants,
	correctGradient, implicit bool) (ag *AvgGradScalar) {
	cl, ok := closures[model]
	if !ok {
		panic(fmt.Errorf("unable to build a diffusion kernel for turbulence model %s", model.Print()))
	}
	if nDim < 1 {
		panic(fmt.Errorf("invalid spatial dimension %d", nDim))
	}
	nVar := model.NumVars()
	ag = &AvgGradScalar{
		NDim:            nDim,
		NVar:            nVar,
		Model:           model,
		Constants:       consts,
		CorrectGradient: correctGradient,
		Implicit:        implicit,
		closure:         cl,
		edgeVector:      make([]float64, nDim),
		projNormal:      make([]float64, nVar),
		projEdge:        make([]float64, nVar),
		projCorrected:   make([]float64, nVar),
		flux:            make([]float64, nVar),
	}
	if implicit {
		ag.jacI = newBlock(nVar)
		ag.jacJ = newBlock(nVar)
	}
	return
}

func newBlock(n int) (block [][]float64) {
	data := make([]float64, n*n)
	block = make([][]float64, n)
	for i := range block {
		block[i] = data[i*n : (i+1)*n]
	}
	return
}

// ComputeResidual evaluates the diffusive flux from node i to node j and, when implicit, its
// derivative with respect to the conservative turbulence variables of both nodes.
// The evaluation is declared to tape as one elementary operation; a nil tape records nothing.
func (ag *AvgGradScalar) ComputeResidual(geom EdgeGeometry, nodeI, nodeJ *NodeState,
	tape Recorder) (res FluxResult) {
	if tape == nil {
		tape = noTape
	}
	ag.declareInputs(geom, nodeI, nodeJ, tape)

	ag.projectGradients(geom, nodeI, nodeJ)
	ag.closure.finish(ag, nodeI, nodeJ)

	tape.DeclareOutput(ag.flux...)

	res.Flux = ag.flux
	if ag.Implicit {
		res.JacobianI, res.JacobianJ = ag.jacI, ag.jacJ
	}
	return
}

func (ag *AvgGradScalar) declareInputs(geom EdgeGeometry, nodeI, nodeJ *NodeState, tape Recorder) {
	tape.DeclareInput(geom.CoordI...)
	tape.DeclareInput(geom.CoordJ...)
	tape.DeclareInput(geom.Normal...)
	for k := 0; k < ag.NVar; k++ {
		tape.DeclareInput(nodeI.TurbVarGrad[k]...)
	}
	for k := 0; k < ag.NVar; k++ {
		tape.DeclareInput(nodeJ.TurbVarGrad[k]...)
	}
	if ag.CorrectGradient {
		tape.DeclareInput(nodeI.TurbVar[:ag.NVar]...)
		tape.DeclareInput(nodeJ.TurbVar[:ag.NVar]...)
	}
	if ag.closure.blended {
		ag.scalars[0], ag.scalars[1] = nodeI.F1, nodeJ.F1
		tape.DeclareInput(ag.scalars[:2]...)
	}
	ag.scalars[0], ag.scalars[1], ag.scalars[2] = nodeI.Density, nodeI.LaminarViscosity, nodeI.EddyViscosity
	ag.scalars[3], ag.scalars[4], ag.scalars[5] = nodeJ.Density, nodeJ.LaminarViscosity, nodeJ.EddyViscosity
	tape.DeclareInput(ag.scalars[:6]...)
}

/*
projectGradients computes, per scalar k, the mean nodal gradient projected on the face normal
and on the edge vector, and the corrected normal projection

	corrected[k] = normal[k] - edge[k]*w + (T_j[k] - T_i[k])*w,  w = (dx . n) / |dx|^2

A zero length edge gives w = 0, so the corrected projection falls back to the normal one.
*/
func (ag *AvgGradScalar) projectGradients(geom EdgeGeometry, nodeI, nodeJ *NodeState) {
	for d := 0; d < ag.NDim; d++ {
		ag.edgeVector[d] = geom.CoordJ[d] - geom.CoordI[d]
	}
	var (
		dist2 = floats.Dot(ag.edgeVector, ag.edgeVector)
		proj  = floats.Dot(ag.edgeVector, geom.Normal)
	)
	if dist2 == 0 {
		proj = 0
	} else {
		proj /= dist2
	}
	ag.distIJ2, ag.projVectorIJ = dist2, proj

	for k := 0; k < ag.NVar; k++ {
		var (
			gI, gJ = nodeI.TurbVarGrad[k], nodeJ.TurbVarGrad[k]
			pn, pe float64
		)
		for d := 0; d < ag.NDim; d++ {
			mean := 0.5 * (gI[d] + gJ[d])
			pn += mean * geom.Normal[d]
			pe += mean * ag.edgeVector[d]
		}
		ag.projNormal[k] = pn
		ag.projCorrected[k] = pn
		if ag.CorrectGradient {
			ag.projEdge[k] = pe
			ag.projCorrected[k] -= pe*proj - (nodeJ.TurbVar[k]-nodeI.TurbVar[k])*proj
		} else {
			ag.projEdge[k] = 0
		}
	}
}

// ProjNormal is the mean gradient projected on the face normal, per scalar, from the last evaluation.
func (ag *AvgGradScalar) ProjNormal() []float64 { return ag.projNormal }

// ProjEdge is the mean gradient projected on the edge vector. It is zero without gradient correction.
func (ag *AvgGradScalar) ProjEdge() []float64 { return ag.projEdge }

func (ag *AvgGradScalar) ProjCorrected() []float64 { return ag.projCorrected }

func (ag *AvgGradScalar) DistIJ2() float64 { return ag.distIJ2 }

func (ag *AvgGradScalar) ProjVectorIJ() float64 { return ag.projVectorIJ }
