package qnn

import (
	"fmt"
	"sort"
)

// Constructor builds a layer from its artifact spec given the size of the
// previous layer's output.
type Constructor func(r *Registry, spec LayerSpec, inputSize int) (Layer, error)

// Registry maps artifact class names to layer constructors and quantizer
// names to quantizer constructors. It is populated once, before loading.
type Registry struct {
	layers     map[string]Constructor
	quantizers map[string]QuantizerConstructor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		layers:     map[string]Constructor{},
		quantizers: map[string]QuantizerConstructor{},
	}
}

// DefaultRegistry knows the Keras core layers and the QKeras layers and
// quantizers used by quantization-aware models.
var DefaultRegistry = QKerasRegistry()

// QKerasRegistry returns a new registry with the Keras core and QKeras
// objects registered.
func QKerasRegistry() *Registry {
	r := NewRegistry()
	r.Register("InputLayer", newInputLayer)
	r.Register("Flatten", newFlatten)
	r.Register("Dropout", newDropout)
	r.Register("Dense", newDense)
	r.Register("QDense", newDense)
	r.Register("Activation", newActivation)
	r.Register("QActivation", newActivation)
	r.Register("Softmax", newSoftmax)
	r.RegisterQuantizer("quantized_bits", NewQuantizedBits)
	r.RegisterQuantizer("quantized_relu", NewQuantizedReLU)
	return r
}

// Register adds or replaces the constructor for class.
func (r *Registry) Register(class string, c Constructor) {
	r.layers[class] = c
}

// RegisterQuantizer adds or replaces the constructor for a quantizer name.
func (r *Registry) RegisterQuantizer(name string, c QuantizerConstructor) {
	r.quantizers[name] = c
}

// Constructor returns the constructor registered for class.
func (r *Registry) Constructor(class string) (Constructor, bool) {
	c, ok := r.layers[class]
	return c, ok
}

// Classes lists the registered layer classes.
func (r *Registry) Classes() []string {
	var names []string
	for name := range r.layers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Quantizer builds a quantizer from its QKeras spelling.
func (r *Registry) Quantizer(spec string) (Quantizer, error) {
	name, args, err := parseQuantizerString(spec)
	if err != nil {
		return nil, err
	}
	c, ok := r.quantizers[name]
	if !ok {
		return nil, fmt.Errorf("unregistered quantizer %q", name)
	}
	return c(args)
}

func newInputLayer(r *Registry, spec LayerSpec, inputSize int) (Layer, error) {
	var conf inputConfig
	if err := spec.decodeConfig(&conf); err != nil {
		return nil, err
	}
	shape := conf.shape()
	if len(shape) == 0 {
		shape = []int{inputSize}
	}
	if inputSize != 0 && shapeSize(shape) != inputSize {
		return nil, fmt.Errorf("input shape %v does not match model input size %d", shape, inputSize)
	}
	return &InputLayer{LayerName: spec.Name, Shape: shape}, nil
}

func newFlatten(r *Registry, spec LayerSpec, inputSize int) (Layer, error) {
	return &Flatten{LayerName: spec.Name, Size: inputSize}, nil
}

func newDropout(r *Registry, spec LayerSpec, inputSize int) (Layer, error) {
	var conf dropoutConfig
	if err := spec.decodeConfig(&conf); err != nil {
		return nil, err
	}
	return &Dropout{LayerName: spec.Name, Rate: conf.Rate, Size: inputSize}, nil
}

func newDense(r *Registry, spec LayerSpec, inputSize int) (Layer, error) {
	var conf denseConfig
	if err := spec.decodeConfig(&conf); err != nil {
		return nil, err
	}
	if spec.Weights == nil {
		return nil, fmt.Errorf("missing weights")
	}
	d := &Dense{LayerName: spec.Name, Activation: conf.Activation}
	if d.Activation == "" {
		d.Activation = Linear
	}
	if !validActivation(d.Activation) {
		return nil, fmt.Errorf("unsupported activation %q", d.Activation)
	}

	var err error
	if conf.KernelQuantizer != "" {
		if d.KernelQuantizer, err = r.Quantizer(string(conf.KernelQuantizer)); err != nil {
			return nil, err
		}
	}
	if conf.BiasQuantizer != "" {
		if d.BiasQuantizer, err = r.Quantizer(string(conf.BiasQuantizer)); err != nil {
			return nil, err
		}
	}
	if spec.ClassName == "QDense" && d.KernelQuantizer == nil {
		return nil, fmt.Errorf("QDense without kernel_quantizer")
	}

	if err := d.setWeights(spec.Weights.Kernel, spec.Weights.Bias); err != nil {
		return nil, err
	}
	if d.InputSize != inputSize {
		return nil, fmt.Errorf("kernel expects %d inputs, previous layer produces %d", d.InputSize, inputSize)
	}
	if conf.Units != 0 && conf.Units != d.Units {
		return nil, fmt.Errorf("units=%d but kernel has %d columns", conf.Units, d.Units)
	}
	return d, nil
}

func newActivation(r *Registry, spec LayerSpec, inputSize int) (Layer, error) {
	var conf activationConfig
	if err := spec.decodeConfig(&conf); err != nil {
		return nil, err
	}
	l := &Activation{LayerName: spec.Name, Size: inputSize}
	fn := string(conf.Activation)
	if validActivation(fn) {
		l.Function = fn
		return l, nil
	}
	q, err := r.Quantizer(fn)
	if err != nil {
		return nil, fmt.Errorf("activation %q: %v", fn, err)
	}
	l.Quantizer = q
	l.Function = quantizerFunction(q)
	return l, nil
}

func newSoftmax(r *Registry, spec LayerSpec, inputSize int) (Layer, error) {
	return &Activation{LayerName: spec.Name, Function: Softmax, Size: inputSize}, nil
}
