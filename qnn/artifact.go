package qnn

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Artifact is the serialized form of a model.
type Artifact struct {
	Name       string      `json:"name"`
	InputShape []int       `json:"input_shape,omitempty"`
	Layers     []LayerSpec `json:"layers"`
}

// LayerSpec is the serialized form of a layer. Config is decoded by the
// layer's constructor.
type LayerSpec struct {
	ClassName string              `json:"class_name"`
	Name      string              `json:"name"`
	Config    jsoniter.RawMessage `json:"config,omitempty"`
	Weights   *WeightSpec         `json:"weights,omitempty"`
}

func (s LayerSpec) decodeConfig(v interface{}) error {
	if len(s.Config) == 0 {
		return nil
	}
	if err := json.Unmarshal(s.Config, v); err != nil {
		return fmt.Errorf("config: %v", err)
	}
	return nil
}

// WeightSpec holds a layer's parameters.
type WeightSpec struct {
	Kernel [][]float64 `json:"kernel"`
	Bias   []float64   `json:"bias,omitempty"`
}

type inputConfig struct {
	Shape           []int  `json:"shape,omitempty"`
	BatchInputShape []*int `json:"batch_input_shape,omitempty"`
}

func (c inputConfig) shape() []int {
	if len(c.Shape) > 0 {
		return c.Shape
	}
	var shape []int
	for _, d := range c.BatchInputShape {
		if d != nil {
			shape = append(shape, *d)
		}
	}
	return shape
}

type dropoutConfig struct {
	Rate float64 `json:"rate"`
}

type denseConfig struct {
	Units           int           `json:"units"`
	Activation      string        `json:"activation,omitempty"`
	KernelQuantizer quantizerSpec `json:"kernel_quantizer,omitempty"`
	BiasQuantizer   quantizerSpec `json:"bias_quantizer,omitempty"`
}

type activationConfig struct {
	Activation quantizerSpec `json:"activation"`
}

// quantizerSpec accepts both the QKeras string spelling and the
// {"class_name": ..., "config": {...}} object form.
type quantizerSpec string

func (q *quantizerSpec) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*q = quantizerSpec(s)
		return nil
	}
	var obj struct {
		ClassName string                 `json:"class_name"`
		Config    map[string]interface{} `json:"config"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	// Keys the quantizers do not read, such as use_stochastic_rounding,
	// are skipped. Null leaves the argument at its default.
	var args []string
	for _, k := range []string{"bits", "integer", "symmetric", "keep_negative", "alpha"} {
		v, ok := obj.Config[k]
		if !ok || v == nil {
			continue
		}
		switch v := v.(type) {
		case float64:
			args = append(args, k+"="+strconv.FormatFloat(v, 'g', -1, 64))
		case bool:
			args = append(args, k+"="+strconv.FormatBool(v))
		case string:
			args = append(args, k+"="+v)
		default:
			return fmt.Errorf("%s: %s: unsupported value %v", obj.ClassName, k, v)
		}
	}
	*q = quantizerSpec(obj.ClassName + "(" + strings.Join(args, ",") + ")")
	return nil
}

func mustRaw(v interface{}) jsoniter.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// LoadError is returned when a model artifact cannot be loaded.
type LoadError struct {
	Path  string
	Layer string
	Err   error
}

func (e *LoadError) Error() string {
	msg := "load model"
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Layer != "" {
		msg += ": layer " + e.Layer
	}
	return msg + ": " + e.Err.Error()
}

func (e *LoadError) Unwrap() error { return e.Err }

// Load reads the artifact at path and reconstructs the model using the
// constructors in r.
func Load(path string, r *Registry) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer f.Close()

	m, err := Decode(f, r)
	if lerr, ok := err.(*LoadError); ok {
		lerr.Path = path
	}
	return m, err
}

// Decode reads an artifact from rd and reconstructs the model.
func Decode(rd io.Reader, r *Registry) (*Model, error) {
	var a Artifact
	if err := json.NewDecoder(rd).Decode(&a); err != nil {
		return nil, &LoadError{Err: fmt.Errorf("corrupt artifact: %v", err)}
	}
	return Build(&a, r)
}

// Build reconstructs a model from a decoded artifact.
func Build(a *Artifact, r *Registry) (*Model, error) {
	if r == nil {
		r = DefaultRegistry
	}
	if len(a.Layers) == 0 {
		return nil, &LoadError{Err: fmt.Errorf("artifact declares no layers")}
	}

	m := &Model{Name: a.Name, InputShape: a.InputShape}
	if len(m.InputShape) == 0 && a.Layers[0].ClassName == "InputLayer" {
		var conf inputConfig
		if err := a.Layers[0].decodeConfig(&conf); err != nil {
			return nil, &LoadError{Layer: a.Layers[0].Name, Err: err}
		}
		m.InputShape = conf.shape()
	}
	if m.InputSize() == 0 {
		return nil, &LoadError{Err: fmt.Errorf("artifact does not declare an input shape")}
	}

	seen := map[string]bool{}
	size := m.InputSize()
	for _, spec := range a.Layers {
		if spec.Name == "" {
			return nil, &LoadError{Err: fmt.Errorf("%s layer without a name", spec.ClassName)}
		}
		if seen[spec.Name] {
			return nil, &LoadError{Layer: spec.Name, Err: fmt.Errorf("duplicate layer name")}
		}
		seen[spec.Name] = true

		construct, ok := r.Constructor(spec.ClassName)
		if !ok {
			return nil, &LoadError{Layer: spec.Name, Err: fmt.Errorf("unregistered layer class %q", spec.ClassName)}
		}
		l, err := construct(r, spec, size)
		if err != nil {
			return nil, &LoadError{Layer: spec.Name, Err: err}
		}
		m.Layers = append(m.Layers, l)
		size = l.OutputSize()
	}
	return m, nil
}

// Encode writes m as an artifact.
func Encode(w io.Writer, m *Model) error {
	a := Artifact{Name: m.Name, InputShape: m.InputShape}
	for _, l := range m.Layers {
		a.Layers = append(a.Layers, l.Spec())
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", " ")
	return enc.Encode(a)
}

// Save writes m as an artifact to path.
func Save(path string, m *Model) (err error) {
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
	return Encode(f, m)
}
