package TurbDiffusion

import (
	"github.com/notargets/turbflux/types"
	"github.com/notargets/turbflux/utils"
)

// A closure turns the projected gradients of the last evaluation into flux and Jacobians.
type closure struct {
	finish  func(ag *AvgGradScalar, nodeI, nodeJ *NodeState)
	blended bool // Reads the F1 blending weight of both nodes
}

var closures = map[types.TurbModel]closure{
	types.TURB_SA:     {finish: finishSA},
	types.TURB_SA_NEG: {finish: finishSANeg},
	types.TURB_SST:    {finish: finishSST, blended: true},
}

// EffectiveViscositySA is the mean of the molecular kinematic viscosities and the working variables.
func EffectiveViscositySA(nuI, nuJ, nuTildeI, nuTildeJ float64) float64 {
	return 0.5 * (nuI + nuJ + nuTildeI + nuTildeJ)
}

/*
EffectiveViscositySANeg follows EffectiveViscositySA for a positive mean working variable.
Otherwise the working variable is damped by

	fn = (cn1 + Xi^3) / (cn1 - Xi^3),  Xi = nuTilde_ij / nu_ij

which tends to one as nuTilde_ij approaches zero, so the result is continuous there.
The mean molecular viscosity nu_ij must be positive.
*/
func EffectiveViscositySANeg(nuI, nuJ, nuTildeI, nuTildeJ, cn1 float64) (nuE float64) {
	var (
		nuIJ      = 0.5 * (nuI + nuJ)
		nuTildeIJ = 0.5 * (nuTildeI + nuTildeJ)
	)
	if nuTildeIJ > 0 {
		return nuIJ + nuTildeIJ
	}
	Xi3 := utils.POW(nuTildeIJ/nuIJ, 3)
	fn := (cn1 + Xi3) / (cn1 - Xi3)
	return nuIJ + fn*nuTildeIJ
}

// BlendedDiffusivity is lam + sigma*eddy with sigma blended between the inner and outer values by F1.
func BlendedDiffusivity(F1, lam, eddy, inner, outer float64) float64 {
	return lam + (F1*inner+(1-F1)*outer)*eddy
}

func finishSA(ag *AvgGradScalar, nodeI, nodeJ *NodeState) {
	var (
		sigma = ag.Constants.Sigma
		nuE   = EffectiveViscositySA(nodeI.LaminarViscosity/nodeI.Density,
			nodeJ.LaminarViscosity/nodeJ.Density, nodeI.TurbVar[0], nodeJ.TurbVar[0])
	)
	ag.flux[0] = nuE * ag.projCorrected[0] / sigma
	if ag.Implicit {
		ag.oneEquationJacobian(nuE)
	}
}

// The negative model takes the flux from the uncorrected projection.
func finishSANeg(ag *AvgGradScalar, nodeI, nodeJ *NodeState) {
	var (
		sigma = ag.Constants.Sigma
		nuE   = EffectiveViscositySANeg(nodeI.LaminarViscosity/nodeI.Density,
			nodeJ.LaminarViscosity/nodeJ.Density, nodeI.TurbVar[0], nodeJ.TurbVar[0], ag.Constants.CN1)
	)
	ag.flux[0] = nuE * ag.projNormal[0] / sigma
	if ag.Implicit {
		ag.oneEquationJacobian(nuE)
	}
}

// oneEquationJacobian uses the thin shear layer approximation of the gradient derivatives.
func (ag *AvgGradScalar) oneEquationJacobian(nuE float64) {
	var (
		sigma = ag.Constants.Sigma
		half  = 0.5 * ag.projCorrected[0]
		w     = nuE * ag.projVectorIJ
	)
	ag.jacI[0][0] = (half - w) / sigma
	ag.jacJ[0][0] = (half + w) / sigma
}

func finishSST(ag *AvgGradScalar, nodeI, nodeJ *NodeState) {
	var (
		cc   = ag.Constants
		mean = func(inner, outer float64) float64 {
			return 0.5 * (BlendedDiffusivity(nodeI.F1, nodeI.LaminarViscosity, nodeI.EddyViscosity, inner, outer) +
				BlendedDiffusivity(nodeJ.F1, nodeJ.LaminarViscosity, nodeJ.EddyViscosity, inner, outer))
		}
		diffKine  = mean(cc.SigmaK1, cc.SigmaK2)
		diffOmega = mean(cc.SigmaOm1, cc.SigmaOm2)
	)
	ag.flux[0] = diffKine * ag.projCorrected[0]
	ag.flux[1] = diffOmega * ag.projCorrected[1]
	if ag.Implicit {
		// The conservative variables are rho*k and rho*omega, off-diagonal terms vanish
		wI := ag.projVectorIJ / nodeI.Density
		ag.jacI[0][0], ag.jacI[0][1] = -diffKine*wI, 0
		ag.jacI[1][0], ag.jacI[1][1] = 0, -diffOmega*wI
		wJ := ag.projVectorIJ / nodeJ.Density
		ag.jacJ[0][0], ag.jacJ[0][1] = diffKine*wJ, 0
		ag.jacJ[1][0], ag.jacJ[1][1] = 0, diffOmega*wJ
	}
}
