/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/notargets/turbflux/InputParameters"
	"github.com/notargets/turbflux/geometry2D"
	"github.com/notargets/turbflux/model_problems/TurbDiffusion"
	"github.com/notargets/turbflux/readfiles"
	"github.com/notargets/turbflux/utils"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type ModelFlux struct {
	GridFile string
	ICFile   string
	Parallel int  // Overrides ProcLimit of the input file when positive
	Tape     bool // Record the differentiation bracket of every edge
	Perf     bool // Count CPU instructions of one sweep
}

// Summary of a run, logged at the end and returned for testing.
type FluxRun struct {
	Partitions  int
	Edges       int
	ScalarNorms []float64
	JacobianNNZ int
	SweepTime   time.Duration // Mean over iterations
	TapeInputs  int           // First partition, last iteration
	TapeOutputs int
}

// FluxCmd represents the flux command
var FluxCmd = &cobra.Command{
	Use:   "flux",
	Short: "Evaluate and assemble turbulence diffusion fluxes on an SU2 or Gambit mesh",
	Long: `
Reads a two dimensional SU2 or Gambit neutral mesh and an input file, builds the median dual edges, initializes
node states from field expressions and sweeps every edge MaxIterations times.

turbflux flux -F mesh.su2 -I input.yaml [--parallel N] [--tape] [--perf]`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		mf := &ModelFlux{
			GridFile: viper.GetString("flux.gridFile"),
			ICFile:   viper.GetString("flux.inputConditionsFile"),
			Parallel: viper.GetInt("flux.parallel"),
			Tape:     viper.GetBool("flux.tape"),
			Perf:     viper.GetBool("flux.perf"),
		}
		ip := processInput(mf)
		_, err = RunFlux(mf, ip, logrus.StandardLogger())
		return
	},
}

func processInput(mf *ModelFlux) (ip *InputParameters.InputParameters) {
	var (
		err      error
		willExit bool
	)
	if len(mf.GridFile) == 0 {
		err := fmt.Errorf("must supply a grid file (-F, --gridFile) in .su2 or .neu format")
		fmt.Printf("error: %s\n", err.Error())
		willExit = true
	}
	if len(mf.ICFile) == 0 {
		err := fmt.Errorf("must supply an input parameters file (-I, --inputConditionsFile) in YAML or TOML format")
		fmt.Printf("error: %s\n", err.Error())
		fmt.Printf("Example File:%s\n", InputParameters.ExampleFile)
		willExit = true
	}
	if willExit {
		os.Exit(1)
	}
	if ip, err = InputParameters.ReadFile(mf.ICFile); err != nil {
		fmt.Printf("error: %s\n", err.Error())
		os.Exit(1)
	}
	return
}

func init() {
	rootCmd.AddCommand(FluxCmd)
	FluxCmd.Flags().StringP("gridFile", "F", "", "Grid file to read in SU2 (.su2) or Gambit neutral (.neu) format")
	FluxCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML or TOML file for input parameters like:\n\t- TurbModel\n\t- Field expressions")
	FluxCmd.Flags().IntP("parallel", "p", 0, "number of edge partitions, overrides ProcLimit")
	FluxCmd.Flags().Bool("tape", false, "record the inputs and outputs declared by every edge evaluation")
	FluxCmd.Flags().Bool("perf", false, "count CPU instructions of one sweep (Linux only)")
	for _, name := range []string{"gridFile", "inputConditionsFile", "parallel", "tape", "perf"} {
		_ = viper.BindPFlag("flux."+name, FluxCmd.Flags().Lookup(name))
	}
}

func RunFlux(mf *ModelFlux, ip *InputParameters.InputParameters, log logrus.FieldLogger) (fr *FluxRun, err error) {
	var (
		grid  *readfiles.Grid
		nodes []TurbDiffusion.NodeState
		ff    *TurbDiffusion.FieldFunctions
		kc    TurbDiffusion.KernelConfig
		tapes []*TurbDiffusion.Tape
	)
	if err = ip.Validate(); err != nil {
		return
	}
	if grid, err = readfiles.ReadGrid(mf.GridFile, false); err != nil {
		return
	}
	dm := geometry2D.NewDualMesh(grid.Coords, grid.Tris)
	if ff, err = ip.FieldFunctions(); err != nil {
		return
	}
	if nodes, err = TurbDiffusion.InitializeNodes(dm, ip.Model(), ff); err != nil {
		return
	}
	if kc, err = ip.KernelConfig(); err != nil {
		return
	}
	procLimit := ip.ProcLimit
	if mf.Parallel > 0 {
		procLimit = mf.Parallel
	}
	sw := TurbDiffusion.NewSweep(dm, kc, procLimit)
	sw.Log = log
	if mf.Tape {
		sw.SetRecorders(func() TurbDiffusion.Recorder {
			tp := TurbDiffusion.NewTape()
			tapes = append(tapes, tp)
			return tp
		})
	}
	log.WithFields(logrus.Fields{
		"title":      ip.Title,
		"model":      kc.Model.Print(),
		"points":     dm.NumPoints(),
		"edges":      dm.NumEdges(),
		"partitions": sw.ParallelDegree(),
		"implicit":   kc.Implicit,
		"correct":    kc.CorrectGradient,
	}).Info("starting edge sweeps")

	var (
		as      *TurbDiffusion.Assembler
		elapsed time.Duration
	)
	for iter := 0; iter < ip.MaxIterations; iter++ {
		for _, tp := range tapes {
			tp.Reset()
		}
		start := time.Now()
		as = sw.Run(nodes)
		elapsed += time.Since(start)
		if utils.IsNan(as.Residual) {
			return nil, fmt.Errorf("NaN residual in iteration %d", iter)
		}
	}
	fr = &FluxRun{
		Partitions:  sw.ParallelDegree(),
		Edges:       dm.NumEdges(),
		ScalarNorms: as.ScalarNorms(),
		SweepTime:   elapsed / time.Duration(ip.MaxIterations),
	}
	if as.Jacobian != nil {
		br, bc := as.Jacobian.BlockDims()
		fr.JacobianNNZ = as.Jacobian.NumBlocks() * br * bc
	}
	if len(tapes) != 0 {
		fr.TapeInputs, fr.TapeOutputs = tapes[0].NumInputs(), tapes[0].NumOutputs()
	}
	log.WithFields(logrus.Fields{
		"residualNorms": fr.ScalarNorms,
		"jacobianNNZ":   fr.JacobianNNZ,
		"sweepTime":     fr.SweepTime,
		"tapeInputs":    fr.TapeInputs,
		"tapeOutputs":   fr.TapeOutputs,
		"memory":        utils.GetMemUsage(),
	}).Info("edge sweeps complete")

	if mf.Perf {
		var instructions uint64
		if instructions, err = countInstructions(func() error {
			sw.Run(nodes)
			return nil
		}); err != nil {
			log.WithError(err).Warn("unable to count CPU instructions")
			err = nil
		} else {
			log.WithField("instructions", instructions).Info("one sweep")
		}
	}
	return
}
