package converter

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"

	"github.com/ReconfigureIO/hlsflow/emulator"
)

type firmwareLayer struct {
	emulator.LayerSpec
	Input     string
	InputType string
	InputSize string
}

func (l firmwareLayer) Out() string  { return "layer" + itoa(l.Index) + "_out" }
func (l firmwareLayer) Size() string { return "N_LAYER_" + itoa(l.Index) }
func (l firmwareLayer) Type() string { return "layer" + itoa(l.Index) + "_t" }

func (l firmwareLayer) StrategyEnum() string {
	if l.Strategy == "Resource" {
		return "nnet::resource"
	}
	return "nnet::latency"
}

type firmwareData struct {
	Manifest
	Layers []firmwareLayer
}

func (d firmwareData) Output() firmwareLayer { return d.Layers[len(d.Layers)-1] }

func newFirmwareData(m Manifest) firmwareData {
	d := firmwareData{Manifest: m}
	input, inputType, inputSize := "input_1", "input_t", "N_INPUT_1_1"
	for _, ls := range m.Network.Layers {
		fl := firmwareLayer{LayerSpec: ls, Input: input, InputType: inputType, InputSize: inputSize}
		d.Layers = append(d.Layers, fl)
		input, inputType, inputSize = fl.Out(), fl.Type(), fl.Size()
	}
	return d
}

var firmwareFuncs = template.FuncMap{
	"upper": strings.ToUpper,
	"mul":   func(a, b int) int { return a * b },
	"base":  filepath.Base,
}

var firmwareTemplates = map[string]*template.Template{
	"firmware/defines.h":               template.Must(template.New("defines").Funcs(firmwareFuncs).Parse(definesTemplate)),
	"firmware/parameters.h":            template.Must(template.New("parameters").Funcs(firmwareFuncs).Parse(parametersTemplate)),
	"firmware/{{.ProjectName}}.h":      template.Must(template.New("header").Funcs(firmwareFuncs).Parse(headerTemplate)),
	"firmware/{{.ProjectName}}.cpp":    template.Must(template.New("source").Funcs(firmwareFuncs).Parse(sourceTemplate)),
	BuildScript:                        template.Must(template.New("build").Funcs(firmwareFuncs).Parse(buildTemplate)),
	SynthScript:                        template.Must(template.New("synth").Funcs(firmwareFuncs).Parse(synthTemplate)),
	BuildLib:                           template.Must(template.New("lib").Funcs(firmwareFuncs).Parse(buildLibTemplate)),
}

func writeFirmware(p *Project) error {
	data := newFirmwareData(p.Manifest)
	for name, tmpl := range firmwareTemplates {
		name = strings.Replace(name, "{{.ProjectName}}", p.Manifest.ProjectName, 1)
		var b strings.Builder
		if err := tmpl.Execute(&b, data); err != nil {
			return err
		}
		mode := os.FileMode(0644)
		if name == BuildLib {
			mode = 0755
		}
		if err := ioutil.WriteFile(p.path(name), []byte(b.String()), mode); err != nil {
			return err
		}
	}
	return nil
}

const definesTemplate = `#ifndef DEFINES_H_
#define DEFINES_H_

#include "ap_fixed.h"
#include "ap_int.h"
#include "nnet_utils/nnet_types.h"
#include <cstddef>
#include <cstdio>

// hls-fpga-machine-learning insert numbers
#define N_INPUT_1_1 {{.Network.InputSize}}
{{- range .Layers}}
#define {{.Size}} {{.NOut}}
{{- end}}

// hls-fpga-machine-learning insert layer-precision
typedef {{.Network.InputType}} input_t;
{{- range .Layers}}
typedef {{.ResultType}} {{.Type}};
{{- if eq .Kind "Dense"}}
typedef {{.WeightType}} weight{{.Index}}_t;
typedef {{.BiasType}} bias{{.Index}}_t;
{{- end}}
{{- if .TableType}}
typedef {{.TableType}} table{{.Index}}_t;
{{- end}}
{{- end}}
typedef {{.Output.Type}} result_t;

#endif
`

const parametersTemplate = `#ifndef PARAMETERS_H_
#define PARAMETERS_H_

#include "ap_fixed.h"
#include "ap_int.h"

#include "nnet_utils/nnet_code_gen.h"
#include "nnet_utils/nnet_helpers.h"
// hls-fpga-machine-learning insert includes
#include "nnet_utils/nnet_activation.h"
#include "nnet_utils/nnet_dense.h"

// hls-fpga-machine-learning insert weights
{{- range .Layers}}{{if eq .Kind "Dense"}}
#include "weights/w{{.Index}}.h"
#include "weights/b{{.Index}}.h"
{{- end}}{{end}}

// hls-fpga-machine-learning insert layer-config
{{- range .Layers}}
// {{.Name}}
{{- if eq .Kind "Dense"}}
struct config{{.Index}} : nnet::dense_config {
    static const unsigned n_in = {{.NIn}};
    static const unsigned n_out = {{.NOut}};
    static const unsigned io_type = nnet::{{$.IOType}};
    static const unsigned strategy = {{.StrategyEnum}};
    static const unsigned reuse_factor = {{.ReuseFactor}};
    static const unsigned n_zeros = 0;
    static const unsigned n_nonzeros = {{mul .NIn .NOut}};
    static const unsigned multiplier_limit = DIV_ROUNDUP(n_in * n_out, reuse_factor) - n_zeros / reuse_factor;
    static const bool store_weights_in_bram = false;
    typedef {{.AccumType}} accum_t;
    typedef bias{{.Index}}_t bias_t;
    typedef weight{{.Index}}_t weight_t;
    typedef ap_uint<1> index_t;
    template<class data_T, class res_T, class CONFIG_T>
    using product = nnet::product::mult<data_T, res_T>;
};
{{- else}}
struct {{.Activation}}_config{{.Index}} : nnet::activ_config {
    static const unsigned n_in = {{.NIn}};
    static const unsigned table_size = {{if .TableSize}}{{.TableSize}}{{else}}1024{{end}};
    static const unsigned io_type = nnet::{{$.IOType}};
    static const unsigned reuse_factor = {{.ReuseFactor}};
{{- if .TableType}}
    typedef table{{.Index}}_t exp_table_t;
    typedef table{{.Index}}_t inv_table_t;
{{- end}}
{{- if eq .Kind "Softmax"}}
    static const nnet::softmax_implementation implementation = nnet::softmax_implementation::{{if eq .Strategy "Stable"}}stable{{else}}latency{{end}};
{{- end}}
};
{{- end}}
{{- end}}

#endif
`

const headerTemplate = `#ifndef {{upper .ProjectName}}_H_
#define {{upper .ProjectName}}_H_

#include "ap_fixed.h"
#include "ap_int.h"
#include "hls_stream.h"

#include "defines.h"

// Prototype of top level function for C-synthesis
void {{.ProjectName}}(
    input_t input_1[N_INPUT_1_1],
    result_t {{.Output.Out}}[{{.Output.Size}}]
);

#endif
`

const sourceTemplate = `#include <iostream>

#include "{{.ProjectName}}.h"
#include "parameters.h"

void {{.ProjectName}}(
    input_t input_1[N_INPUT_1_1],
    result_t {{.Output.Out}}[{{.Output.Size}}]
) {

    // hls-fpga-machine-learning insert IO
    #pragma HLS ARRAY_RESHAPE variable=input_1 complete dim=0
    #pragma HLS ARRAY_PARTITION variable={{.Output.Out}} complete dim=0
    #pragma HLS INTERFACE ap_vld port=input_1,{{.Output.Out}}
    #pragma HLS PIPELINE

#ifndef __SYNTHESIS__
    static bool loaded_weights = false;
    if (!loaded_weights) {
        // hls-fpga-machine-learning insert load weights
{{- range .Layers}}{{if eq .Kind "Dense"}}
        nnet::load_weights_from_txt<weight{{.Index}}_t, {{mul .NIn .NOut}}>(w{{.Index}}, "{{base .WeightFile}}");
        nnet::load_weights_from_txt<bias{{.Index}}_t, {{.NOut}}>(b{{.Index}}, "{{base .BiasFile}}");
{{- end}}{{end}}
        loaded_weights = true;
    }
#endif

    // hls-fpga-machine-learning insert layers
{{range .Layers}}
{{- if ne .Out $.Output.Out}}
    {{.Type}} {{.Out}}[{{.Size}}];
    #pragma HLS ARRAY_PARTITION variable={{.Out}} complete dim=0
{{- end}}
{{- if eq .Kind "Dense"}}
    nnet::dense<{{.InputType}}, {{.Type}}, config{{.Index}}>({{.Input}}, {{.Out}}, w{{.Index}}, b{{.Index}}); // {{.Name}}
{{- else if eq .Kind "Softmax"}}
    nnet::softmax<{{.InputType}}, {{.Type}}, softmax_config{{.Index}}>({{.Input}}, {{.Out}}); // {{.Name}}
{{- else}}
    nnet::{{.Activation}}<{{.InputType}}, {{.Type}}, {{.Activation}}_config{{.Index}}>({{.Input}}, {{.Out}}); // {{.Name}}
{{- end}}
{{end}}
}
`

const buildTemplate = `#################
#    HLS4ML
#################
array set opt {
    reset      0
    csim       1
    synth      1
    cosim      1
    validation 1
    export     0
    vsynth     0
    fifo_opt   0
}

set tcldir [file dirname [info script]]

foreach arg $::argv {
    foreach o [lsort [array names opt]] {
        regexp "$o=+(\\w+)" $arg unused opt($o)
    }
}

proc report_time { op_name time_start time_end } {
    set time_taken [expr $time_end - $time_start]
    set time_s [expr ($time_taken / 1000) % 60]
    set time_m [expr ($time_taken / (1000*60)) % 60]
    set time_h [expr ($time_taken / (1000*60*60)) % 24]
    puts "***** ${op_name} COMPLETED IN ${time_h}h${time_m}m${time_s}s *****"
}

file mkdir tb_data

open_project -reset {{.ProjectName}}_prj
set_top {{.ProjectName}}
add_files firmware/{{.ProjectName}}.cpp -cflags "-std=c++0x"
open_solution -reset "solution1"
catch {config_array_partition -maximum_size 4096}
config_compile -name_max_length 80
set_part {{"{"}}{{.Part}}{{"}"}}
config_schedule -enable_dsp_full_reg=false
create_clock -period {{.ClockPeriod}} -name default

if {$opt(csim)} {
    puts "***** C SIMULATION *****"
    set time_start [clock clicks -milliseconds]
    csim_design
    set time_end [clock clicks -milliseconds]
    report_time "C SIMULATION" $time_start $time_end
}

if {$opt(synth)} {
    puts "***** C/RTL SYNTHESIS *****"
    set time_start [clock clicks -milliseconds]
    csynth_design
    set time_end [clock clicks -milliseconds]
    report_time "C/RTL SYNTHESIS" $time_start $time_end
}

if {$opt(cosim)} {
    puts "***** C/RTL SIMULATION *****"
    set time_start [clock clicks -milliseconds]
    cosim_design -trace_level all
    set time_end [clock clicks -milliseconds]
    report_time "C/RTL SIMULATION" $time_start $time_end
}

if {$opt(export)} {
    puts "***** EXPORT IP *****"
    set time_start [clock clicks -milliseconds]
    export_design -format ip_catalog
    set time_end [clock clicks -milliseconds]
    report_time "EXPORT IP" $time_start $time_end
}

if {$opt(vsynth)} {
    puts "***** VIVADO SYNTHESIS *****"
    if {[file exist {{.ProjectName}}_prj/solution1/syn/vhdl]} {
        set time_start [clock clicks -milliseconds]
        exec vivado -mode batch -source vivado_synth.tcl >@ stdout
        set time_end [clock clicks -milliseconds]
        report_time "VIVADO SYNTHESIS" $time_start $time_end
    } else {
        puts "ERROR: Cannot find generated VHDL files. Did you run C synthesis?"
        exit 1
    }
}

exit
`

const synthTemplate = `set tcldir [file dirname [info script]]
set project_name "{{.ProjectName}}"
set part "{{.Part}}"

add_files ${project_name}_prj/solution1/syn/vhdl
synth_design -top ${project_name} -part ${part}
opt_design -retarget -propconst -sweep -bram_power_opt -shift_register_opt
report_utilization -file vivado_synth.rpt
report_timing_summary -file vivado_synth_timing.rpt
`

const buildLibTemplate = `#!/bin/bash
set -e

CC=${CXX:-g++}
CFLAGS="-O3 -fPIC -std=c++11 -fno-gnu-unique"
INCFLAGS="-Ifirmware/ap_types/ -Ifirmware/"
PROJECT={{.ProjectName}}
LIB_STAMP=${LIB_STAMP:-$(date +%s)}

${CC} ${CFLAGS} ${INCFLAGS} -c firmware/${PROJECT}.cpp -o ${PROJECT}.o
${CC} ${CFLAGS} ${INCFLAGS} -shared ${PROJECT}.o -o firmware/${PROJECT}-${LIB_STAMP}.so
rm -f *.o
`

func itoa(i int) string {
	return strconv.Itoa(i)
}
