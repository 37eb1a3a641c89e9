package TurbDiffusion

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/notargets/turbflux/types"
)

const (
	SigmaSA  = 2.0 / 3.0 // Diffusion Prandtl number of the Spalart Allmaras equation
	CN1      = 16.0      // Negative Spalart Allmaras blending constant
	SigmaK1  = 0.85      // Menter SST, inner (k-omega) region
	SigmaK2  = 1.0       // Menter SST, outer (k-epsilon) region
	SigmaOm1 = 0.5
	SigmaOm2 = 0.856
)

// ClosureConstants are fixed once per kernel. Only the fields used by the selected model matter.
type ClosureConstants struct {
	Sigma                                float64
	CN1                                  float64
	SigmaK1, SigmaK2, SigmaOm1, SigmaOm2 float64
}

func DefaultClosureConstants(model types.TurbModel) (cc ClosureConstants) {
	switch model {
	case types.TURB_SA:
		cc.Sigma = SigmaSA
	case types.TURB_SA_NEG:
		cc.Sigma = SigmaSA
		cc.CN1 = CN1
	case types.TURB_SST:
		cc.SigmaK1, cc.SigmaK2 = SigmaK1, SigmaK2
		cc.SigmaOm1, cc.SigmaOm2 = SigmaOm1, SigmaOm2
	}
	return
}

func (cc *ClosureConstants) fields() map[string]*float64 {
	return map[string]*float64{
		"sigma":    &cc.Sigma,
		"cn1":      &cc.CN1,
		"sigmak1":  &cc.SigmaK1,
		"sigmak2":  &cc.SigmaK2,
		"sigmaom1": &cc.SigmaOm1,
		"sigmaom2": &cc.SigmaOm2,
	}
}

func (cc ClosureConstants) required(model types.TurbModel) (names []string) {
	switch model {
	case types.TURB_SA:
		names = []string{"sigma"}
	case types.TURB_SA_NEG:
		names = []string{"sigma", "cn1"}
	case types.TURB_SST:
		names = []string{"sigmak1", "sigmak2", "sigmaom1", "sigmaom2"}
	}
	return
}

// NewClosureConstants starts from the model defaults and applies overrides keyed by constant
// name (case insensitive), then validates the result.
func NewClosureConstants(model types.TurbModel, overrides map[string]float64) (cc ClosureConstants, err error) {
	cc = DefaultClosureConstants(model)
	fields := cc.fields()
	keys := make([]string, 0, len(overrides))
	for key := range overrides {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		f, ok := fields[strings.ToLower(key)]
		if !ok {
			err = fmt.Errorf("unknown closure constant %q", key)
			return
		}
		*f = overrides[key]
	}
	err = cc.Validate(model)
	return
}

// Validate checks the constants the model reads. It runs at construction time, never per edge.
func (cc ClosureConstants) Validate(model types.TurbModel) (err error) {
	names := cc.required(model)
	if len(names) == 0 {
		return fmt.Errorf("no diffusion closure for turbulence model %s", model.Print())
	}
	fields := cc.fields()
	for _, name := range names {
		val := *fields[name]
		if math.IsNaN(val) || math.IsInf(val, 0) || val <= 0 {
			return fmt.Errorf("closure constant %s = %v must be positive and finite for %s",
				name, val, model.Print())
		}
	}
	return
}
