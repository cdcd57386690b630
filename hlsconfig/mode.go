package hlsconfig

import (
	"github.com/ReconfigureIO/hlsflow/fixedpoint"
)

// QuantizationMode overrides the rounding and saturation of the result type
// of every layer whose HLS kind is listed in Layers. It is passed to the
// converter alongside the Config.
type QuantizationMode struct {
	Layers     []string                  `json:"layers" yaml:"layers"`
	Rounding   fixedpoint.RoundingMode   `json:"rounding" yaml:"rounding"`
	Saturation fixedpoint.SaturationMode `json:"saturation" yaml:"saturation"`
}

// ActivationRounding rounds to nearest and saturates activation outputs.
var ActivationRounding = QuantizationMode{
	Layers:     []string{"Activation"},
	Rounding:   fixedpoint.RND,
	Saturation: fixedpoint.Sat,
}

// Applies reports whether layers of kind are affected.
func (q QuantizationMode) Applies(kind string) bool {
	for _, l := range q.Layers {
		if l == kind {
			return true
		}
	}
	return false
}

// Apply returns t with the mode's rounding and saturation if kind is
// affected, else t unchanged.
func (q QuantizationMode) Apply(kind string, t fixedpoint.Type) fixedpoint.Type {
	if !q.Applies(kind) {
		return t
	}
	return t.WithModes(q.Rounding, q.Saturation)
}
