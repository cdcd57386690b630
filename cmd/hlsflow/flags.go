package main

import (
	"fmt"

	"github.com/ReconfigureIO/hlsflow/converter"
	"github.com/ReconfigureIO/hlsflow/fixedpoint"
	"github.com/ReconfigureIO/hlsflow/hlsconfig"
	"github.com/ReconfigureIO/hlsflow/pipeline"
	"github.com/ReconfigureIO/hlsflow/qnn"
	"github.com/spf13/cobra"
)

// modelFlags are the flags shared by every command that configures and
// converts a model.
type modelFlags struct {
	granularity  string
	precision    string
	reuse        int
	largestReuse int
	overrides    []string

	output      string
	part        string
	project     string
	clock       float64
	ioType      string
	rounding    string
	saturation  string
	quantizeFor []string

	changed func(name string) bool
}

func (f *modelFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.granularity, "granularity", string(hlsconfig.GranularityName), "configuration granularity: model, type or name")
	fs.StringVar(&f.precision, "precision", hlsconfig.DefaultPlan.Precision, "global fixed-point precision")
	fs.IntVar(&f.reuse, "reuse", hlsconfig.DefaultPlan.ReuseFactor, "global reuse factor")
	fs.IntVar(&f.largestReuse, "largest-reuse", hlsconfig.DefaultPlan.LargestReuseFactor, "reuse factor of the largest layer")
	fs.StringArrayVarP(&f.overrides, "set", "s", nil, "configuration override scope.key=value, repeatable")

	fs.StringVarP(&f.output, "output", "o", "hls_project", "project output directory")
	fs.StringVar(&f.part, "part", converter.DefaultPart, "FPGA part")
	fs.StringVar(&f.project, "project", converter.DefaultProjectName, "HLS project name")
	fs.Float64Var(&f.clock, "clock", converter.DefaultClockPeriod, "clock period in ns")
	fs.StringVar(&f.ioType, "io-type", converter.DefaultIOType, "io_parallel or io_stream")
	mode := hlsconfig.ActivationRounding
	fs.StringVar(&f.rounding, "rounding", mode.Rounding.String(), "rounding mode of the --quantize-layers results")
	fs.StringVar(&f.saturation, "saturation", mode.Saturation.String(), "saturation mode of the --quantize-layers results")
	fs.StringSliceVar(&f.quantizeFor, "quantize-layers", mode.Layers, "HLS layer kinds whose results are rounded and saturated, empty for none")
	f.changed = fs.Changed
}

func (f *modelFlags) plan() *hlsconfig.Plan {
	return &hlsconfig.Plan{
		Precision:          f.precision,
		ReuseFactor:        f.reuse,
		LargestReuseFactor: f.largestReuse,
	}
}

func (f *modelFlags) parseOverrides() ([]hlsconfig.Override, error) {
	var overrides []hlsconfig.Override
	for _, s := range f.overrides {
		o, err := hlsconfig.ParseOverride(s)
		if err != nil {
			return nil, err
		}
		overrides = append(overrides, o)
	}
	return overrides, nil
}

func (f *modelFlags) convertOptions() (converter.Options, error) {
	opts := converter.Options{
		OutputDir:   f.output,
		Part:        f.part,
		ProjectName: f.project,
		ClockPeriod: f.clock,
		IOType:      f.ioType,
	}
	if len(f.quantizeFor) == 0 {
		for _, name := range []string{"rounding", "saturation"} {
			if f.changed != nil && f.changed(name) {
				return opts, fmt.Errorf("--%s needs at least one --quantize-layers kind", name)
			}
		}
		return opts, nil
	}
	mode := hlsconfig.QuantizationMode{Layers: f.quantizeFor}
	var err error
	if mode.Rounding, err = fixedpoint.ParseRounding(f.rounding); err != nil {
		return opts, err
	}
	if mode.Saturation, err = fixedpoint.ParseSaturation(f.saturation); err != nil {
		return opts, err
	}
	opts.QuantizationMode = mode
	return opts, nil
}

// configure loads the model at path and derives its configuration.
func (f *modelFlags) configure(path string) (*qnn.Model, *hlsconfig.Config, error) {
	overrides, err := f.parseOverrides()
	if err != nil {
		return nil, nil, err
	}
	m, err := qnn.Load(path, qnn.DefaultRegistry)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := pipeline.Configure(m, hlsconfig.Granularity(f.granularity), *f.plan(), overrides...)
	if err != nil {
		return nil, nil, err
	}
	return m, cfg, nil
}
