package TurbDiffusion

import (
	"math"
	"testing"

	"github.com/notargets/turbflux/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNode(rho, mu, muT, F1 float64, tv []float64, grad [][]float64) *NodeState {
	return &NodeState{
		Density:          rho,
		LaminarViscosity: mu,
		EddyViscosity:    muT,
		F1:               F1,
		TurbVar:          tv,
		TurbVarGrad:      grad,
	}
}

func assertNear(t *testing.T, expected, actual float64) {
	t.Helper()
	tol := 1.e-13 * math.Max(1, math.Abs(expected))
	assert.InDeltaf(t, expected, actual, tol, "expected %g, got %g", expected, actual)
}

func TestAvgGradScalarSA(t *testing.T) {
	geom := EdgeGeometry{CoordI: []float64{0, 0}, CoordJ: []float64{1, 0}, Normal: []float64{1, 0}}
	{ // Test literal single equation flux without correction
		ag := NewAvgGradScalar(2, types.TURB_SA, DefaultClosureConstants(types.TURB_SA), false, true)
		nI := newNode(1, 1.e-5, 0, 0, []float64{2.e-5}, [][]float64{{1, 0}})
		nJ := newNode(1, 1.e-5, 0, 0, []float64{2.e-5}, [][]float64{{1, 0}})
		res := ag.ComputeResidual(geom, nI, nJ, nil)
		assert.Equal(t, 1., ag.ProjNormal()[0])
		assert.Equal(t, 1., ag.ProjCorrected()[0])
		assert.Equal(t, 1., ag.ProjVectorIJ())
		nuE := EffectiveViscositySA(1.e-5, 1.e-5, 2.e-5, 2.e-5)
		assertNear(t, 3.e-5, nuE)
		assert.InEpsilon(t, 4.5e-5, res.Flux[0], 1.e-14)
		assert.Equal(t, nuE*1./(2./3.), res.Flux[0])
		require.NotNil(t, res.JacobianI)
		assertNear(t, (0.5-3.e-5)*1.5, res.JacobianI[0][0])
		assertNear(t, (0.5+3.e-5)*1.5, res.JacobianJ[0][0])
	}
	{ // Explicit kernels have no Jacobians
		ag := NewAvgGradScalar(2, types.TURB_SA, DefaultClosureConstants(types.TURB_SA), false, false)
		nI := newNode(1, 1.e-5, 0, 0, []float64{2.e-5}, [][]float64{{1, 0}})
		res := ag.ComputeResidual(geom, nI, nI, NoTape{})
		assert.Nil(t, res.JacobianI)
		assert.Nil(t, res.JacobianJ)
		assert.Len(t, res.Flux, 1)
	}
}

func TestAvgGradScalarCorrection(t *testing.T) {
	var (
		geom = EdgeGeometry{CoordI: []float64{0, 0}, CoordJ: []float64{2, 0}, Normal: []float64{1, 1}}
		nI   = newNode(1, 1, 0, 0, []float64{1}, [][]float64{{1, 2}})
		nJ   = newNode(1, 1, 0, 0, []float64{3}, [][]float64{{3, 4}})
		cc   = ClosureConstants{Sigma: 1, CN1: CN1}
	)
	{ // Test corrected projection, mean gradient (2,3), w = 0.5
		ag := NewAvgGradScalar(2, types.TURB_SA, cc, true, true)
		res := ag.ComputeResidual(geom, nI, nJ, nil)
		assert.Equal(t, 4., ag.DistIJ2())
		assert.Equal(t, 0.5, ag.ProjVectorIJ())
		assert.Equal(t, 5., ag.ProjNormal()[0])
		assert.Equal(t, 4., ag.ProjEdge()[0])
		assert.Equal(t, 4., ag.ProjCorrected()[0])
		// nu_e = 0.5*(1+1+1+3)
		assert.Equal(t, 12., res.Flux[0])
		assert.Equal(t, 0.5, res.JacobianI[0][0])
		assert.Equal(t, 3.5, res.JacobianJ[0][0])
	}
	{ // Without correction the edge projection is not formed
		ag := NewAvgGradScalar(2, types.TURB_SA, cc, false, false)
		res := ag.ComputeResidual(geom, nI, nJ, nil)
		assert.Equal(t, 0., ag.ProjEdge()[0])
		assert.Equal(t, ag.ProjNormal()[0], ag.ProjCorrected()[0])
		assert.Equal(t, 15., res.Flux[0])
	}
	{ // Negative model: flux from the normal projection, Jacobian from the corrected one
		ag := NewAvgGradScalar(2, types.TURB_SA_NEG, cc, true, true)
		res := ag.ComputeResidual(geom, nI, nJ, nil)
		// nu_tilde_ij = 2 > 0, nu_e = 1 + 2
		assert.Equal(t, 15., res.Flux[0])
		assert.Equal(t, 0.5, res.JacobianI[0][0])
		assert.Equal(t, 3.5, res.JacobianJ[0][0])
	}
}

func TestZeroLengthEdge(t *testing.T) {
	geom := EdgeGeometry{CoordI: []float64{0.5, 0.5}, CoordJ: []float64{0.5, 0.5}, Normal: []float64{0.3, -0.2}}
	for _, model := range []types.TurbModel{types.TURB_SA, types.TURB_SA_NEG, types.TURB_SST} {
		var (
			nVar = model.NumVars()
			tvI  = []float64{1, 2}[:nVar]
			tvJ  = []float64{5, 7}[:nVar]
			gI   = [][]float64{{1, 2}, {3, 4}}[:nVar]
			gJ   = [][]float64{{-1, 0.5}, {2, 2}}[:nVar]
			ag   = NewAvgGradScalar(2, model, DefaultClosureConstants(model), true, true)
		)
		res := ag.ComputeResidual(geom, newNode(1, 0.1, 0.2, 0.4, tvI, gI), newNode(1.2, 0.1, 0.3, 0.6, tvJ, gJ), nil)
		assert.Equal(t, 0., ag.ProjVectorIJ())
		assert.Equal(t, 0., ag.DistIJ2())
		for k := 0; k < nVar; k++ {
			assert.Equal(t, ag.ProjNormal()[k], ag.ProjCorrected()[k])
			assert.False(t, math.IsNaN(res.Flux[k]))
			for kk := 0; kk < nVar; kk++ {
				assert.False(t, math.IsNaN(res.JacobianI[k][kk]))
				assert.False(t, math.IsNaN(res.JacobianJ[k][kk]))
			}
		}
	}
}

func TestEffectiveViscositySANeg(t *testing.T) {
	{ // Positive branch matches the single equation closure
		assert.Equal(t, EffectiveViscositySA(1, 3, 2, 4), EffectiveViscositySANeg(1, 3, 2, 4, CN1))
	}
	{ // Zero mean working variable gives the molecular value
		assert.Equal(t, 2., EffectiveViscositySANeg(1, 3, 1, -1, CN1))
	}
	{ // Continuity across zero
		nu := 1.e-5
		for _, eps := range []float64{1.e-8, 1.e-10, 1.e-12} {
			pos := EffectiveViscositySANeg(nu, nu, eps, eps, CN1)
			neg := EffectiveViscositySANeg(nu, nu, -eps, -eps, CN1)
			assert.InDelta(t, pos, neg, 2.5*eps)
			assert.InDelta(t, nu, neg, 1.5*eps)
		}
	}
	{ // Xi = -1, fn = 15/17
		assert.InDelta(t, 2./17., EffectiveViscositySANeg(1, 1, -1, -1, CN1), 1.e-15)
	}
	{ // Damping is monotone, the effective viscosity stays positive for moderate negative values
		prev := math.Inf(1)
		for _, nt := range []float64{-0.1, -0.5, -1, -1.5} {
			nuE := EffectiveViscositySANeg(1, 1, nt, nt, CN1)
			assert.True(t, nuE < prev)
			assert.True(t, nuE > 0)
			prev = nuE
		}
	}
}

func TestAvgGradScalarSST(t *testing.T) {
	var (
		geom = EdgeGeometry{CoordI: []float64{0, 0}, CoordJ: []float64{1, 0}, Normal: []float64{1, 0}}
		grad = [][]float64{{1, 0}, {0, 1}}
		nI   = newNode(2, 1, 2, 0.5, []float64{1, 10}, grad)
		nJ   = newNode(2, 1, 2, 0.5, []float64{1, 10}, grad)
		ag   = NewAvgGradScalar(2, types.TURB_SST, DefaultClosureConstants(types.TURB_SST), false, true)
		tape = NewTape()
	)
	res := ag.ComputeResidual(geom, nI, nJ, tape)
	var (
		diffKine  = 1 + (0.5*SigmaK1+0.5*SigmaK2)*2
		diffOmega = 1 + (0.5*SigmaOm1+0.5*SigmaOm2)*2
	)
	assertNear(t, 2.85, diffKine)
	assertNear(t, diffKine, BlendedDiffusivity(0.5, 1, 2, SigmaK1, SigmaK2))
	assertNear(t, diffKine, res.Flux[0])
	assert.Equal(t, 0., res.Flux[1])
	{ // Antisymmetric diagonal Jacobians for equal densities, no coupling between k and omega
		for k := 0; k < 2; k++ {
			assert.Equal(t, -res.JacobianJ[k][k], res.JacobianI[k][k])
		}
		assert.Equal(t, 0., res.JacobianI[0][1])
		assert.Equal(t, 0., res.JacobianI[1][0])
		assert.Equal(t, 0., res.JacobianJ[0][1])
		assert.Equal(t, 0., res.JacobianJ[1][0])
		assertNear(t, -diffKine/2, res.JacobianI[0][0])
		assertNear(t, -diffOmega/2, res.JacobianI[1][1])
	}
	{ // Unequal densities scale each side separately
		nJ.Density = 4
		res = ag.ComputeResidual(geom, nI, nJ, nil)
		assertNear(t, -diffKine/2, res.JacobianI[0][0])
		assertNear(t, diffKine/4, res.JacobianJ[0][0])
	}
	{ // Blending weights are declared between the gradients and the node primitives
		blocks := tape.InputBlocks()
		require.Len(t, blocks, 9)
		assert.Equal(t, 2, blocks[7])
		inputs := tape.Inputs()
		assert.Equal(t, []float64{0.5, 0.5}, inputs[14:16])
	}
}

func TestConservationUnderReversal(t *testing.T) {
	var (
		xi    = []float64{0.1, -0.3}
		xj    = []float64{1.3, 0.4}
		n     = []float64{0.7, -0.2}
		negN  = []float64{-0.7, 0.2}
		gI    = [][]float64{{0.3, -1.1}, {2.5, 0.7}}
		gJ    = [][]float64{{-0.4, 0.9}, {1.5, -0.2}}
		tvI   = []float64{3.e-4, 12}
		tvJ   = []float64{-1.e-4, 40}
		fwd   = EdgeGeometry{CoordI: xi, CoordJ: xj, Normal: n}
		rev   = EdgeGeometry{CoordI: xj, CoordJ: xi, Normal: negN}
		model = []types.TurbModel{types.TURB_SA, types.TURB_SA_NEG, types.TURB_SST}
	)
	for _, m := range model {
		for _, correct := range []bool{false, true} {
			var (
				nVar = m.NumVars()
				nI   = newNode(1.1, 1.8e-5, 3.e-4, 0.3, tvI[:nVar], gI[:nVar])
				nJ   = newNode(0.9, 1.7e-5, 5.e-4, 0.8, tvJ[:nVar], gJ[:nVar])
				ag   = NewAvgGradScalar(2, m, DefaultClosureConstants(m), correct, true)
			)
			r1 := ag.ComputeResidual(fwd, nI, nJ, nil)
			var (
				flux = append([]float64{}, r1.Flux...)
				jacJ = make([]float64, nVar)
			)
			for k := 0; k < nVar; k++ {
				jacJ[k] = r1.JacobianJ[k][k]
			}
			r2 := ag.ComputeResidual(rev, nJ, nI, nil)
			for k := 0; k < nVar; k++ {
				assertNear(t, -flux[k], r2.Flux[k])
				assertNear(t, -jacJ[k], r2.JacobianI[k][k])
			}
		}
	}
}

func TestTapeBracket(t *testing.T) {
	var (
		geom = EdgeGeometry{CoordI: []float64{0, 1}, CoordJ: []float64{2, 3}, Normal: []float64{4, 5}}
		gI   = [][]float64{{6, 7}, {8, 9}}
		gJ   = [][]float64{{10, 11}, {12, 13}}
	)
	cases := []struct {
		model   types.TurbModel
		correct bool
		nIn     int
		nBlocks int
	}{
		{types.TURB_SA, false, 16, 6},
		{types.TURB_SA, true, 18, 8},
		{types.TURB_SA_NEG, false, 16, 6},
		{types.TURB_SST, false, 22, 9},
		{types.TURB_SST, true, 26, 11},
	}
	tape := NewTape()
	for _, c := range cases {
		var (
			nVar = c.model.NumVars()
			nI   = newNode(20, 21, 22, 0.1, []float64{30, 31}[:nVar], gI[:nVar])
			nJ   = newNode(23, 24, 25, 0.2, []float64{32, 33}[:nVar], gJ[:nVar])
			ag   = NewAvgGradScalar(2, c.model, DefaultClosureConstants(c.model), c.correct, false)
		)
		tape.Reset()
		res := ag.ComputeResidual(geom, nI, nJ, tape)
		assert.Equalf(t, c.nIn, tape.NumInputs(), "model %s", c.model.Print())
		assert.Len(t, tape.InputBlocks(), c.nBlocks)
		assert.Equal(t, []int{nVar}, tape.OutputBlocks())
		assert.Equal(t, res.Flux, tape.Outputs())
		inputs := tape.Inputs()
		assert.Equal(t, []float64{0, 1, 2, 3, 4, 5}, inputs[:6])
		assert.Equal(t, []float64{6, 7}, inputs[6:8])
		assert.Equal(t, []float64{20, 21, 22, 23, 24, 25}, inputs[len(inputs)-6:])
		if c.correct {
			off := 6 + 4*nVar
			assert.Equal(t, 30., inputs[off])
			assert.Equal(t, 32., inputs[off+nVar])
		}
	}
}

func TestKernelConstruction(t *testing.T) {
	cc := DefaultClosureConstants(types.TURB_SA)
	assert.Panics(t, func() { NewAvgGradScalar(2, types.TURB_None, cc, false, false) })
	assert.Panics(t, func() { NewAvgGradScalar(0, types.TURB_SA, cc, false, false) })
	ag := NewAvgGradScalar(3, types.TURB_SST, DefaultClosureConstants(types.TURB_SST), true, true)
	assert.Equal(t, 2, ag.NVar)
	assert.Equal(t, 3, ag.NDim)
	{ // Jacobian rows share one backing array
		assert.Equal(t, 2, cap(ag.jacI[0])-cap(ag.jacI[1]))
	}
	{ // 3D edge, nodal values consistent with the gradients leave the projection unchanged
		grad := [][]float64{{0, 0, 1}, {0, 0, 2}}
		geom := EdgeGeometry{CoordI: []float64{0, 0, 0}, CoordJ: []float64{0, 0, 2}, Normal: []float64{0, 0, 3}}
		nI := newNode(1, 1, 0, 1, []float64{0, 0}, grad)
		nJ := newNode(1, 1, 0, 1, []float64{2, 4}, grad)
		res := ag.ComputeResidual(geom, nI, nJ, nil)
		assert.Equal(t, 1.5, ag.ProjVectorIJ())
		assert.Equal(t, []float64{3, 6}, ag.ProjNormal())
		assert.Equal(t, []float64{2, 4}, ag.ProjEdge())
		assert.Equal(t, []float64{3, 6}, ag.ProjCorrected())
		assert.Equal(t, 3., res.Flux[0])
		assert.Equal(t, 6., res.Flux[1])
	}
}

func TestClosureConstants(t *testing.T) {
	{ // Defaults
		cc := DefaultClosureConstants(types.TURB_SA_NEG)
		assert.Equal(t, 2./3., cc.Sigma)
		assert.Equal(t, 16., cc.CN1)
		assert.NoError(t, cc.Validate(types.TURB_SA_NEG))
		sst := DefaultClosureConstants(types.TURB_SST)
		assert.Equal(t, [4]float64{0.85, 1, 0.5, 0.856}, [4]float64{sst.SigmaK1, sst.SigmaK2, sst.SigmaOm1, sst.SigmaOm2})
		assert.NoError(t, sst.Validate(types.TURB_SST))
		assert.Error(t, sst.Validate(types.TURB_SA))
	}
	{ // Overrides
		cc, err := NewClosureConstants(types.TURB_SA, map[string]float64{"Sigma": 0.5})
		require.NoError(t, err)
		assert.Equal(t, 0.5, cc.Sigma)
		_, err = NewClosureConstants(types.TURB_SA, map[string]float64{"kappa": 0.41})
		assert.Error(t, err)
		_, err = NewClosureConstants(types.TURB_SA_NEG, map[string]float64{"cn1": 0})
		assert.Error(t, err)
		_, err = NewClosureConstants(types.TURB_SST, map[string]float64{"SigmaOm2": math.NaN()})
		assert.Error(t, err)
		_, err = NewClosureConstants(types.TURB_None, nil)
		assert.Error(t, err)
	}
}

func TestKernelAllocations(t *testing.T) {
	var (
		geom = EdgeGeometry{CoordI: []float64{0, 0}, CoordJ: []float64{1, 0.5}, Normal: []float64{1, 0.2}}
		grad = [][]float64{{1, 0}, {0, 1}}
	)
	for _, model := range []types.TurbModel{types.TURB_SA, types.TURB_SA_NEG, types.TURB_SST} {
		var (
			nVar = model.NumVars()
			nI   = newNode(1, 1.e-5, 1.e-4, 0.5, []float64{-1.e-5, 1}[:nVar], grad[:nVar])
			nJ   = newNode(1, 1.e-5, 1.e-4, 0.5, []float64{2.e-5, 1}[:nVar], grad[:nVar])
			ag   = NewAvgGradScalar(2, model, DefaultClosureConstants(model), true, true)
		)
		allocs := testing.AllocsPerRun(100, func() {
			ag.ComputeResidual(geom, nI, nJ, nil)
		})
		assert.Equalf(t, 0., allocs, "model %s", model.Print())
	}
}

func BenchmarkAvgGradScalar(b *testing.B) {
	var (
		geom = EdgeGeometry{CoordI: []float64{0, 0}, CoordJ: []float64{1, 0.5}, Normal: []float64{1, 0.2}}
		grad = [][]float64{{1, 0}, {0, 1}}
		nI   = newNode(1, 1.e-5, 1.e-4, 0.5, []float64{1.e-5, 1}, grad)
		nJ   = newNode(1, 1.e-5, 1.e-4, 0.5, []float64{2.e-5, 1}, grad)
	)
	for _, model := range []types.TurbModel{types.TURB_SA, types.TURB_SA_NEG, types.TURB_SST} {
		ag := NewAvgGradScalar(2, model, DefaultClosureConstants(model), true, true)
		b.Run(model.Print(), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				ag.ComputeResidual(geom, nI, nJ, nil)
			}
		})
	}
}
