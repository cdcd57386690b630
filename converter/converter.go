// Package converter turns a model and its HLS configuration into a hardware
// project directory, and compiles the project's fixed-point emulation.
package converter

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ReconfigureIO/hlsflow/emulator"
	"github.com/ReconfigureIO/hlsflow/fixedpoint"
	"github.com/ReconfigureIO/hlsflow/hlsconfig"
	"github.com/ReconfigureIO/hlsflow/qnn"
	"github.com/abiosoft/errs"
	log "github.com/sirupsen/logrus"
)

// Files written into a project directory.
const (
	ConfigFile   = "hls4ml_config.yml"
	ManifestFile = "project.json"
	BuildScript  = "build_prj.tcl"
	SynthScript  = "vivado_synth.tcl"
	BuildLib     = "build_lib.sh"
	FirmwareDir  = "firmware"
	WeightsDir   = "firmware/weights"
)

// Options control project generation.
type Options struct {
	OutputDir   string
	Part        string
	ProjectName string
	// ClockPeriod is in nanoseconds.
	ClockPeriod      float64
	IOType           string
	QuantizationMode hlsconfig.QuantizationMode
}

// Defaults for unset Options fields.
const (
	DefaultPart        = "xcvu13p-flga2577-2-e"
	DefaultProjectName = "myproject"
	DefaultClockPeriod = 5
	DefaultIOType      = "io_parallel"
)

func (o Options) withDefaults() Options {
	if o.Part == "" {
		o.Part = DefaultPart
	}
	if o.ProjectName == "" {
		o.ProjectName = DefaultProjectName
	}
	if o.ClockPeriod == 0 {
		o.ClockPeriod = DefaultClockPeriod
	}
	if o.IOType == "" {
		o.IOType = DefaultIOType
	}
	return o
}

// Manifest is the project.json record of a generated project.
type Manifest struct {
	ProjectName      string                     `json:"project_name"`
	Part             string                     `json:"part"`
	ClockPeriod      float64                    `json:"clock_period"`
	IOType           string                     `json:"io_type"`
	QuantizationMode hlsconfig.QuantizationMode `json:"quantization_mode"`
	Network          emulator.Spec              `json:"network"`
}

// ConversionError names the layer and setting that could not be converted.
type ConversionError struct {
	Layer   string
	Setting string
	Err     error
}

func (e *ConversionError) Error() string {
	msg := "convert"
	if e.Layer != "" {
		msg += " layer " + e.Layer
	}
	if e.Setting != "" {
		msg += " " + e.Setting
	}
	return msg + ": " + e.Err.Error()
}

func (e *ConversionError) Unwrap() error { return e.Err }

// Convert generates the project for m configured by cfg in opts.OutputDir.
// The returned project holds the directory lock until Close.
func Convert(m *qnn.Model, cfg *hlsconfig.Config, opts Options) (*Project, error) {
	opts = opts.withDefaults()
	if opts.OutputDir == "" {
		return nil, &ConversionError{Setting: "OutputDir", Err: fmt.Errorf("no output directory")}
	}
	dir, err := filepath.Abs(opts.OutputDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(dir, WeightsDir), 0755); err != nil {
		return nil, err
	}
	lock, err := acquireLock(dir)
	if err != nil {
		return nil, err
	}

	p, err := convert(m, cfg, opts, dir)
	if err != nil {
		lock.release()
		return nil, err
	}
	p.lock = lock
	return p, nil
}

func convert(m *qnn.Model, cfg *hlsconfig.Config, opts Options, dir string) (*Project, error) {
	cfg = cfg.Clone()
	cfg.Bind(m)
	if err := cfg.Validate(); err != nil {
		return nil, &ConversionError{Setting: "config", Err: err}
	}

	l := log.WithFields(log.Fields{"project": opts.ProjectName, "dir": dir})
	b := &builder{cfg: cfg, opts: opts, log: l}
	net, weights, err := b.network(m)
	if err != nil {
		return nil, err
	}

	p := &Project{
		Dir: dir,
		Manifest: Manifest{
			ProjectName:      opts.ProjectName,
			Part:             opts.Part,
			ClockPeriod:      opts.ClockPeriod,
			IOType:           opts.IOType,
			QuantizationMode: opts.QuantizationMode,
			Network:          *net,
		},
		Config: cfg,
	}

	var e errs.Group
	e.Add(func() error { return cfg.Save(p.path(ConfigFile)) })
	e.Add(func() error { return writeJSON(p.path(ManifestFile), &p.Manifest) })
	e.Add(func() error { return writeWeights(dir, weights) })
	e.Add(func() error { return writeFirmware(p) })
	if err := e.Exec(); err != nil {
		return nil, err
	}
	l.WithField("layers", len(net.Layers)).Info("project generated")
	return p, nil
}

type builder struct {
	cfg  *hlsconfig.Config
	opts Options
	log  *log.Entry
}

// weightFile is the content of one weights file.
type weightFile struct {
	name   string
	values []float64
}

// network maps the model onto HLS layers. Index 1 is the input, as in the
// generated weight file names.
func (b *builder) network(m *qnn.Model) (*emulator.Spec, []weightFile, error) {
	inputName, inputClass := "input", ""
	if len(m.Layers) > 0 {
		if in, ok := m.Layers[0].(*qnn.InputLayer); ok {
			inputName, inputClass = in.Name(), in.Class()
		}
	}
	inputType, err := b.precision(inputName, inputClass, hlsconfig.PartResult, "")
	if err != nil {
		return nil, nil, err
	}
	net := &emulator.Spec{Name: m.Name, InputSize: m.InputSize(), InputType: inputType}

	var weights []weightFile
	size := m.InputSize()
	index := 1
	for _, l := range m.Layers {
		switch l := l.(type) {
		case *qnn.InputLayer, *qnn.Flatten, *qnn.Dropout:
			continue
		case *qnn.Dense:
			index++
			ls, w, err := b.dense(l, index, size)
			if err != nil {
				return nil, nil, err
			}
			net.Layers = append(net.Layers, *ls)
			weights = append(weights, w...)
			size = ls.NOut
			if l.Activation != qnn.Linear {
				index++
				act, err := b.activation(l.Name()+"_"+l.Activation, "", l.Activation, index, size)
				if err != nil {
					return nil, nil, err
				}
				net.Layers = append(net.Layers, *act)
			}
		case *qnn.Activation:
			index++
			act, err := b.activation(l.Name(), l.Class(), l.Function, index, size)
			if err != nil {
				return nil, nil, err
			}
			net.Layers = append(net.Layers, *act)
		default:
			return nil, nil, &ConversionError{Layer: l.Name(), Setting: "class", Err: fmt.Errorf("unsupported layer class %s", l.Class())}
		}
	}
	if len(net.Layers) == 0 {
		return nil, nil, &ConversionError{Err: fmt.Errorf("model %s has no layers to convert", m.Name)}
	}
	return net, weights, nil
}

// precision resolves and checks a precision descriptor, applying the
// quantization mode to results of the given kind.
func (b *builder) precision(layer, class, part, kind string) (string, error) {
	desc := b.cfg.Precision(layer, class, part)
	t, err := fixedpoint.Parse(desc)
	if err != nil {
		return "", &ConversionError{Layer: layer, Setting: hlsconfig.KeyPrecision + "." + part, Err: err}
	}
	if part == hlsconfig.PartResult {
		t = b.opts.QuantizationMode.Apply(kind, t)
	}
	return t.String(), nil
}

func (b *builder) dense(d *qnn.Dense, index, nIn int) (*emulator.LayerSpec, []weightFile, error) {
	if d.InputSize != nIn {
		return nil, nil, &ConversionError{Layer: d.Name(), Setting: "shape", Err: fmt.Errorf("expects %d inputs, previous layer produces %d", d.InputSize, nIn)}
	}
	ls := &emulator.LayerSpec{
		Index:      index,
		Name:       d.Name(),
		Kind:       emulator.KindDense,
		NIn:        d.InputSize,
		NOut:       d.Units,
		Strategy:   string(b.cfg.Strategy(d.Name(), d.Class())),
		WeightFile: filepath.Join(WeightsDir, "w"+strconv.Itoa(index)+".txt"),
		BiasFile:   filepath.Join(WeightsDir, "b"+strconv.Itoa(index)+".txt"),
	}
	var err error
	for _, p := range []struct {
		dst  *string
		part string
	}{
		{&ls.WeightType, hlsconfig.PartWeight},
		{&ls.BiasType, hlsconfig.PartBias},
		{&ls.AccumType, hlsconfig.PartAccum},
		{&ls.ResultType, hlsconfig.PartResult},
	} {
		if *p.dst, err = b.precision(d.Name(), d.Class(), p.part, emulator.KindDense); err != nil {
			return nil, nil, err
		}
	}

	rf := b.cfg.ReuseFactor(d.Name(), d.Class())
	ls.ReuseFactor = closestReuseFactor(ls.NIn, ls.NOut, rf)
	if ls.ReuseFactor != rf {
		b.log.WithFields(log.Fields{
			"layer":        d.Name(),
			"reuse_factor": rf,
			"using":        ls.ReuseFactor,
		}).Warn("invalid reuse factor, using the closest valid value")
	}

	wt := fixedpoint.MustParse(ls.WeightType)
	bt := fixedpoint.MustParse(ls.BiasType)
	kernel := make([]float64, 0, ls.NIn*ls.NOut)
	for _, row := range d.Kernel {
		for _, w := range row {
			kernel = append(kernel, wt.QuantizeFloat(w))
		}
	}
	bias := make([]float64, len(d.Bias))
	for i, v := range d.Bias {
		bias[i] = bt.QuantizeFloat(v)
	}
	return ls, []weightFile{{ls.WeightFile, kernel}, {ls.BiasFile, bias}}, nil
}

func (b *builder) activation(name, class, fn string, index, size int) (*emulator.LayerSpec, error) {
	kind := emulator.KindActivation
	switch fn {
	case qnn.Linear, qnn.ReLU, qnn.Sigmoid, qnn.Tanh:
	case qnn.Softmax:
		kind = emulator.KindSoftmax
	default:
		return nil, &ConversionError{Layer: name, Setting: "activation", Err: fmt.Errorf("unsupported activation %q", fn)}
	}
	ls := &emulator.LayerSpec{
		Index:       index,
		Name:        name,
		Kind:        kind,
		Activation:  fn,
		NIn:         size,
		NOut:        size,
		ReuseFactor: b.cfg.ReuseFactor(name, class),
		Strategy:    string(b.cfg.Strategy(name, class)),
	}
	var err error
	if ls.ResultType, err = b.precision(name, class, hlsconfig.PartResult, kind); err != nil {
		return nil, err
	}
	if fn != qnn.Linear && fn != qnn.ReLU {
		ls.TableSize = b.cfg.TableSize(name, class)
		ls.TableType = emulator.DefaultTableType
	}
	return ls, nil
}

func writeWeights(dir string, files []weightFile) error {
	for _, f := range files {
		parts := make([]string, len(f.values))
		for i, v := range f.values {
			parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		content := strings.Join(parts, ", ") + "\n"
		if err := ioutil.WriteFile(filepath.Join(dir, f.name), []byte(content), 0644); err != nil {
			return err
		}
	}
	return nil
}

func readWeights(path string) ([]float64, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var values []float64
	for _, field := range strings.Split(strings.TrimSpace(string(b)), ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %v", path, err)
		}
		values = append(values, v)
	}
	return values, nil
}

func writeJSON(path string, v interface{}) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := f.Close()
		if err == nil {
			err = closeErr
		}
	}()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
