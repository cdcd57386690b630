// Package qnn loads quantization-aware (QKeras style) neural network
// artifacts and runs the floating point reference forward pass.
package qnn

import (
	"fmt"
)

// Layer is one stage of a sequential model.
type Layer interface {
	Name() string
	// Class is the artifact class name, e.g. "QDense".
	Class() string
	OutputSize() int
	Forward(x []float64) []float64
	// Spec encodes the layer back to its artifact form.
	Spec() LayerSpec
}

// Model is a sequential network.
type Model struct {
	Name       string
	InputShape []int
	Layers     []Layer
}

// InputSize is the flattened size of a single input sample.
func (m *Model) InputSize() int {
	return shapeSize(m.InputShape)
}

// OutputSize is the size of the final layer's output.
func (m *Model) OutputSize() int {
	if len(m.Layers) == 0 {
		return m.InputSize()
	}
	return m.Layers[len(m.Layers)-1].OutputSize()
}

// Layer returns the layer called name.
func (m *Model) Layer(name string) (Layer, bool) {
	for _, l := range m.Layers {
		if l.Name() == name {
			return l, true
		}
	}
	return nil, false
}

// Predict runs one sample through the model.
func (m *Model) Predict(x []float64) ([]float64, error) {
	if len(x) != m.InputSize() {
		return nil, fmt.Errorf("model %s: expected %d inputs, got %d", m.Name, m.InputSize(), len(x))
	}
	out := append([]float64(nil), x...)
	for _, l := range m.Layers {
		out = l.Forward(out)
	}
	return out, nil
}

// PredictBatch runs every sample in xs through the model.
func (m *Model) PredictBatch(xs [][]float64) ([][]float64, error) {
	out := make([][]float64, len(xs))
	for i, x := range xs {
		y, err := m.Predict(x)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %v", i, err)
		}
		out[i] = y
	}
	return out, nil
}

func shapeSize(shape []int) int {
	if len(shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
