package TurbDiffusion

import (
	"fmt"
	"sync"
	"time"

	"github.com/notargets/turbflux/geometry2D"
	"github.com/notargets/turbflux/types"
	"github.com/notargets/turbflux/utils"

	"github.com/sirupsen/logrus"
)

// KernelConfig selects the closure and the options shared by every kernel of a sweep.
type KernelConfig struct {
	Model           types.TurbModel
	Constants       ClosureConstants
	CorrectGradient bool
	Implicit        bool
}

/*
Sweep evaluates every edge of a dual mesh and assembles the result.
The edges are split into contiguous partitions, each owned by one goroutine with its own
kernel and recorder. Every edge writes its result into a private slot, the slots are then
reduced serially into the Assembler, so the result does not depend on the parallel degree.
*/
type Sweep struct {
	Mesh       *geometry2D.DualMesh
	Config     KernelConfig
	Partitions *utils.PartitionMap
	Kernels    []*AvgGradScalar
	Recorders  []Recorder
	Assembler  *Assembler
	Log        logrus.FieldLogger

	NVar       int
	flux       [][]float64   // Per edge flux slot
	jacI, jacJ [][][]float64 // Per edge Jacobian slots
}

func NewSweep(dm *geometry2D.DualMesh, kc KernelConfig, ProcLimit int) (sw *Sweep) {
	var (
		Ne   = dm.NumEdges()
		NVar = kc.Model.NumVars()
		NP   = utils.ParallelDegreeFor(ProcLimit, Ne)
	)
	sw = &Sweep{
		Mesh:       dm,
		Config:     kc,
		Partitions: utils.NewPartitionMap(NP, Ne),
		Kernels:    make([]*AvgGradScalar, NP),
		Recorders:  make([]Recorder, NP),
		Assembler:  NewAssembler(dm, NVar, kc.Implicit),
		Log:        logrus.StandardLogger(),
		NVar:       NVar,
	}
	for np := 0; np < NP; np++ {
		sw.Kernels[np] = NewAvgGradScalar(dm.NDim, kc.Model, kc.Constants, kc.CorrectGradient, kc.Implicit)
		sw.Recorders[np] = NoTape{}
	}
	sw.flux = make([][]float64, Ne)
	fData := make([]float64, Ne*NVar)
	for e := range sw.flux {
		sw.flux[e] = fData[e*NVar : (e+1)*NVar]
	}
	if kc.Implicit {
		sw.jacI, sw.jacJ = make([][][]float64, Ne), make([][][]float64, Ne)
		for e := 0; e < Ne; e++ {
			sw.jacI[e], sw.jacJ[e] = newBlock(NVar), newBlock(NVar)
		}
	}
	return
}

// SetRecorders installs one recorder per partition, built by newRecorder.
func (sw *Sweep) SetRecorders(newRecorder func() Recorder) {
	for np := range sw.Recorders {
		sw.Recorders[np] = newRecorder()
	}
}

func (sw *Sweep) ParallelDegree() int { return sw.Partitions.ParallelDegree }

// Run evaluates all edges for the node states and returns the assembled result. The Assembler
// is reused between calls and reset at the start of each one.
func (sw *Sweep) Run(nodes []NodeState) (as *Assembler) {
	var (
		pm    = sw.Partitions
		NP    = pm.ParallelDegree
		wg    = sync.WaitGroup{}
		start = time.Now()
	)
	if len(nodes) != sw.Mesh.NumPoints() {
		panic(fmt.Errorf("have %d node states for %d mesh points", len(nodes), sw.Mesh.NumPoints()))
	}
	for np := 0; np < NP; np++ {
		wg.Add(1)
		go func(np int) {
			sw.computeBucket(np, nodes)
			wg.Done()
		}(np)
	}
	wg.Wait()
	edgeTime := time.Since(start)

	as = sw.Assembler
	as.Reset()
	for e, nodePair := range sw.Mesh.EdgeNodes {
		res := FluxResult{Flux: sw.flux[e]}
		if sw.Config.Implicit {
			res.JacobianI, res.JacobianJ = sw.jacI[e], sw.jacJ[e]
		}
		as.AddEdge(nodePair[0], nodePair[1], res)
	}
	sw.Log.WithFields(logrus.Fields{
		"edges":      sw.Mesh.NumEdges(),
		"partitions": NP,
		"edgeTime":   edgeTime,
		"totalTime":  time.Since(start),
	}).Debug("edge sweep complete")
	return
}

func (sw *Sweep) computeBucket(np int, nodes []NodeState) {
	var (
		kernel     = sw.Kernels[np]
		tape       = sw.Recorders[np]
		kMin, kMax = sw.Partitions.GetBucketRange(np)
	)
	for e := kMin; e < kMax; e++ {
		var (
			nodePair = sw.Mesh.EdgeNodes[e]
			res      = kernel.ComputeResidual(MeshEdgeGeometry(sw.Mesh, e),
				&nodes[nodePair[0]], &nodes[nodePair[1]], tape)
		)
		copy(sw.flux[e], res.Flux)
		if kernel.Implicit {
			for k := 0; k < sw.NVar; k++ {
				copy(sw.jacI[e][k], res.JacobianI[k])
				copy(sw.jacJ[e][k], res.JacobianJ[k])
			}
		}
	}
}
