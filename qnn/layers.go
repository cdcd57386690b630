package qnn

import (
	"fmt"
	"math"
)

// Supported activation function names.
const (
	Linear  = "linear"
	ReLU    = "relu"
	Softmax = "softmax"
	Sigmoid = "sigmoid"
	Tanh    = "tanh"
)

// InputLayer declares the model input.
type InputLayer struct {
	LayerName string
	Shape     []int
}

func (l *InputLayer) Name() string                  { return l.LayerName }
func (l *InputLayer) Class() string                 { return "InputLayer" }
func (l *InputLayer) OutputSize() int               { return shapeSize(l.Shape) }
func (l *InputLayer) Forward(x []float64) []float64 { return x }

func (l *InputLayer) Spec() LayerSpec {
	return LayerSpec{ClassName: l.Class(), Name: l.LayerName, Config: mustRaw(inputConfig{Shape: l.Shape})}
}

// Flatten reshapes to a vector, which is a no-op on flat samples.
type Flatten struct {
	LayerName string
	Size      int
}

func (l *Flatten) Name() string                  { return l.LayerName }
func (l *Flatten) Class() string                 { return "Flatten" }
func (l *Flatten) OutputSize() int               { return l.Size }
func (l *Flatten) Forward(x []float64) []float64 { return x }
func (l *Flatten) Spec() LayerSpec               { return LayerSpec{ClassName: l.Class(), Name: l.LayerName} }

// Dropout is an identity at inference time.
type Dropout struct {
	LayerName string
	Rate      float64
	Size      int
}

func (l *Dropout) Name() string                  { return l.LayerName }
func (l *Dropout) Class() string                 { return "Dropout" }
func (l *Dropout) OutputSize() int               { return l.Size }
func (l *Dropout) Forward(x []float64) []float64 { return x }

func (l *Dropout) Spec() LayerSpec {
	return LayerSpec{ClassName: l.Class(), Name: l.LayerName, Config: mustRaw(dropoutConfig{Rate: l.Rate})}
}

// Dense is a fully connected layer. With quantizers set it is a QDense, and
// Kernel and Bias hold the already quantized values.
type Dense struct {
	LayerName       string
	Units           int
	InputSize       int
	Kernel          [][]float64 // [input][unit]
	Bias            []float64
	Activation      string
	KernelQuantizer Quantizer
	BiasQuantizer   Quantizer
}

// NewQDense builds a QDense, quantizing kernel and bias.
func NewQDense(name string, kernel [][]float64, bias []float64, kq, bq Quantizer) (*Dense, error) {
	d := &Dense{
		LayerName:       name,
		Activation:      Linear,
		KernelQuantizer: kq,
		BiasQuantizer:   bq,
	}
	if err := d.setWeights(kernel, bias); err != nil {
		return nil, err
	}
	return d, nil
}

func (l *Dense) setWeights(kernel [][]float64, bias []float64) error {
	if len(kernel) == 0 || len(kernel[0]) == 0 {
		return fmt.Errorf("empty kernel")
	}
	l.InputSize = len(kernel)
	l.Units = len(kernel[0])
	l.Kernel = make([][]float64, len(kernel))
	for i, row := range kernel {
		if len(row) != l.Units {
			return fmt.Errorf("kernel row %d has %d columns, expected %d", i, len(row), l.Units)
		}
		l.Kernel[i] = make([]float64, len(row))
		for j, w := range row {
			if l.KernelQuantizer != nil {
				w = l.KernelQuantizer.Quantize(w)
			}
			l.Kernel[i][j] = w
		}
	}
	l.Bias = make([]float64, l.Units)
	if bias != nil && len(bias) != l.Units {
		return fmt.Errorf("bias has %d entries, expected %d", len(bias), l.Units)
	}
	for j := range l.Bias {
		var b float64
		if bias != nil {
			b = bias[j]
		}
		if l.BiasQuantizer != nil {
			b = l.BiasQuantizer.Quantize(b)
		}
		l.Bias[j] = b
	}
	return nil
}

func (l *Dense) Name() string { return l.LayerName }

func (l *Dense) Class() string {
	if l.KernelQuantizer != nil || l.BiasQuantizer != nil {
		return "QDense"
	}
	return "Dense"
}

func (l *Dense) OutputSize() int { return l.Units }

// Params is the number of weights and biases.
func (l *Dense) Params() int { return l.InputSize*l.Units + l.Units }

func (l *Dense) Forward(x []float64) []float64 {
	y := make([]float64, l.Units)
	copy(y, l.Bias)
	for i, xi := range x {
		if xi == 0 {
			continue
		}
		row := l.Kernel[i]
		for j := range y {
			y[j] += xi * row[j]
		}
	}
	return activate(l.Activation, y)
}

func (l *Dense) Spec() LayerSpec {
	conf := denseConfig{Units: l.Units, Activation: l.Activation}
	if l.KernelQuantizer != nil {
		conf.KernelQuantizer = quantizerSpec(l.KernelQuantizer.String())
	}
	if l.BiasQuantizer != nil {
		conf.BiasQuantizer = quantizerSpec(l.BiasQuantizer.String())
	}
	return LayerSpec{
		ClassName: l.Class(),
		Name:      l.LayerName,
		Config:    mustRaw(conf),
		Weights:   &WeightSpec{Kernel: l.Kernel, Bias: l.Bias},
	}
}

// Activation applies an element-wise (or softmax) function. With a
// Quantizer set it is a QActivation.
type Activation struct {
	LayerName string
	Function  string
	Quantizer Quantizer
	Size      int
}

func (l *Activation) Name() string { return l.LayerName }

func (l *Activation) Class() string {
	if l.Quantizer != nil {
		return "QActivation"
	}
	return "Activation"
}

func (l *Activation) OutputSize() int { return l.Size }

func (l *Activation) Forward(x []float64) []float64 {
	if l.Quantizer == nil {
		return activate(l.Function, append([]float64(nil), x...))
	}
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = l.Quantizer.Quantize(v)
	}
	return y
}

func (l *Activation) Spec() LayerSpec {
	act := l.Function
	if l.Quantizer != nil {
		act = l.Quantizer.String()
	}
	return LayerSpec{ClassName: l.Class(), Name: l.LayerName, Config: mustRaw(activationConfig{Activation: quantizerSpec(act)})}
}

// Function names the activation a quantizer implies.
func quantizerFunction(q Quantizer) string {
	if _, ok := q.(*QuantizedReLU); ok {
		return ReLU
	}
	return Linear
}

func activate(fn string, y []float64) []float64 {
	switch fn {
	case ReLU:
		for i, v := range y {
			if v < 0 {
				y[i] = 0
			}
		}
	case Sigmoid:
		for i, v := range y {
			y[i] = 1 / (1 + math.Exp(-v))
		}
	case Tanh:
		for i, v := range y {
			y[i] = math.Tanh(v)
		}
	case Softmax:
		max := math.Inf(-1)
		for _, v := range y {
			max = math.Max(max, v)
		}
		var sum float64
		for i, v := range y {
			y[i] = math.Exp(v - max)
			sum += y[i]
		}
		for i := range y {
			y[i] /= sum
		}
	}
	return y
}

func validActivation(fn string) bool {
	switch fn {
	case Linear, ReLU, Softmax, Sigmoid, Tanh:
		return true
	}
	return false
}
