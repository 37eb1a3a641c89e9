package InputParameters

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/notargets/turbflux/model_problems/TurbDiffusion"
	"github.com/notargets/turbflux/types"

	"github.com/BurntSushi/toml"
	"github.com/ghodss/yaml"
)

// Parameters obtained from the YAML or TOML input file. Keys match the field names.
type InputParameters struct {
	Title           string             `yaml:"Title" toml:"Title"`
	TurbModel       string             `yaml:"TurbModel" toml:"TurbModel"`
	CorrectGradient bool               `yaml:"CorrectGradient" toml:"CorrectGradient"`
	ImplicitSolver  bool               `yaml:"ImplicitSolver" toml:"ImplicitSolver"`
	ProcLimit       int                `yaml:"ProcLimit" toml:"ProcLimit"`
	MaxIterations   int                `yaml:"MaxIterations" toml:"MaxIterations"`
	Constants       map[string]float64 `yaml:"Constants" toml:"Constants"` // Overrides of the closure constants, e.g. Sigma, CN1
	Fields          map[string]string  `yaml:"Fields" toml:"Fields"`       // Node field expressions in x and y
}

const ExampleFile = `
########################################
Title: "Flat plate diffusion"
TurbModel: SA # Can be SA, SA_NEG or SST
CorrectGradient: true
ImplicitSolver: true
ProcLimit: 0 # Zero uses every CPU
MaxIterations: 10
Constants:
  Sigma: 0.6666666667
Fields:
  Density: "1"
  LaminarViscosity: "0.0000181"
  TurbVar0: "0.00005*(1 + 0.1*y)"
########################################
`

func (ip *InputParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, ip)
}

func (ip *InputParameters) ParseTOML(data []byte) (err error) {
	_, err = toml.Decode(string(data), ip)
	return
}

// ReadFile reads and validates an input file, TOML for a .toml extension and YAML otherwise.
func ReadFile(fileName string) (ip *InputParameters, err error) {
	var (
		data []byte
	)
	if data, err = os.ReadFile(fileName); err != nil {
		return nil, fmt.Errorf("unable to read input file: %w", err)
	}
	ip = &InputParameters{}
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".toml":
		err = ip.ParseTOML(data)
	default:
		err = ip.Parse(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", fileName, err)
	}
	if err = ip.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}
	return
}

// Validate checks the model and constants and fills defaults.
func (ip *InputParameters) Validate() (err error) {
	var (
		model types.TurbModel
	)
	if model, err = types.ParseTurbModel(ip.TurbModel); err != nil {
		return
	}
	if _, err = TurbDiffusion.NewClosureConstants(model, ip.Constants); err != nil {
		return
	}
	if _, err = TurbDiffusion.NewFieldFunctions(ip.Fields); err != nil {
		return
	}
	if ip.ProcLimit < 0 {
		return fmt.Errorf("ProcLimit must not be negative, have %d", ip.ProcLimit)
	}
	if ip.MaxIterations <= 0 {
		ip.MaxIterations = 1
	}
	return
}

func (ip *InputParameters) Model() types.TurbModel {
	model, _ := types.ParseTurbModel(ip.TurbModel)
	return model
}

// KernelConfig resolves the closure constants for the kernels of a sweep.
func (ip *InputParameters) KernelConfig() (kc TurbDiffusion.KernelConfig, err error) {
	kc = TurbDiffusion.KernelConfig{
		Model:           ip.Model(),
		CorrectGradient: ip.CorrectGradient,
		Implicit:        ip.ImplicitSolver,
	}
	kc.Constants, err = TurbDiffusion.NewClosureConstants(kc.Model, ip.Constants)
	return
}

func (ip *InputParameters) FieldFunctions() (*TurbDiffusion.FieldFunctions, error) {
	return TurbDiffusion.NewFieldFunctions(ip.Fields)
}

func (ip *InputParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", ip.Title)
	fmt.Printf("[%s]\t\t\t= Turbulence Model\n", ip.Model().Print())
	fmt.Printf("%v\t\t\t= Gradient Correction\n", ip.CorrectGradient)
	fmt.Printf("%v\t\t\t= Implicit Solver\n", ip.ImplicitSolver)
	fmt.Printf("[%d]\t\t\t\t= Process Limit\n", ip.ProcLimit)
	fmt.Printf("[%d]\t\t\t\t= Max Iterations\n", ip.MaxIterations)
	keys := make([]string, 0, len(ip.Constants))
	for k := range ip.Constants {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("Constants[%s] = %v\n", key, ip.Constants[key])
	}
	keys = keys[:0]
	for k := range ip.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("Fields[%s] = %s\n", key, ip.Fields[key])
	}
}
