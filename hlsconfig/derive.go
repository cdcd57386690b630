package hlsconfig

import (
	"fmt"

	"github.com/ReconfigureIO/hlsflow/qnn"
)

// FromModel derives the base configuration of m. Layers take the precision
// their quantizers declare; everything else inherits the Model scope.
func FromModel(m *qnn.Model, g Granularity) (*Config, error) {
	c := &Config{
		Model: ModelConfig{
			Precision:   DefaultPrecision,
			ReuseFactor: DefaultReuseFactor,
			Strategy:    Latency,
		},
	}
	switch g {
	case GranularityModel:
	case GranularityType:
		c.LayerType = map[string]*LayerConfig{}
		for _, l := range m.Layers {
			if _, ok := c.LayerType[l.Class()]; !ok {
				c.LayerType[l.Class()] = layerConfig(l)
			}
		}
	case GranularityName:
		c.LayerName = map[string]*LayerConfig{}
		for _, l := range m.Layers {
			c.LayerName[l.Name()] = layerConfig(l)
			c.Order = append(c.Order, l.Name())
		}
	default:
		return nil, fmt.Errorf("unknown granularity %q", g)
	}
	return c, nil
}

func layerConfig(l qnn.Layer) *LayerConfig {
	lc := &LayerConfig{Class: l.Class()}
	switch l := l.(type) {
	case *qnn.Dense:
		if l.KernelQuantizer != nil {
			lc.Precision.Weight = l.KernelQuantizer.Type().String()
		}
		if l.BiasQuantizer != nil {
			lc.Precision.Bias = l.BiasQuantizer.Type().String()
		}
	case *qnn.Activation:
		if l.Quantizer != nil {
			lc.Precision.Result = l.Quantizer.Type().String()
		}
	}
	return lc
}

// Bind sets the layer classes of c from m, which YAML files do not record.
func (c *Config) Bind(m *qnn.Model) {
	for _, l := range m.Layers {
		if lc, ok := c.LayerName[l.Name()]; ok {
			lc.Class = l.Class()
		}
	}
	for class, lc := range c.LayerType {
		lc.Class = class
	}
}

// LargestLayer returns the name of the dense layer with the most
// parameters.
func LargestLayer(m *qnn.Model) (string, bool) {
	var best *qnn.Dense
	for _, l := range m.Layers {
		if d, ok := l.(*qnn.Dense); ok && (best == nil || d.Params() > best.Params()) {
			best = d
		}
	}
	if best == nil {
		return "", false
	}
	return best.Name(), true
}

// smallestLayer returns the dense layer with the fewest parameters other
// than the largest.
func smallestLayer(m *qnn.Model, largest string) (string, bool) {
	var best *qnn.Dense
	for _, l := range m.Layers {
		if d, ok := l.(*qnn.Dense); ok && d.Name() != largest && (best == nil || d.Params() < best.Params()) {
			best = d
		}
	}
	if best == nil {
		return "", false
	}
	return best.Name(), true
}

func finalSoftmax(m *qnn.Model) (string, bool) {
	for i := len(m.Layers) - 1; i >= 0; i-- {
		if a, ok := m.Layers[i].(*qnn.Activation); ok && a.Function == qnn.Softmax {
			return a.Name(), true
		}
	}
	return "", false
}

// Plan is the standard sequence of overrides: global precision, reuse factor
// and Resource strategy; a coarser reuse factor on the largest layer;
// Latency on a smaller layer; Stable on the final softmax.
type Plan struct {
	Precision          string
	ReuseFactor        int
	LargestReuseFactor int
}

// DefaultPlan is the plan used when none is configured.
var DefaultPlan = Plan{
	Precision:          DefaultPrecision,
	ReuseFactor:        1,
	LargestReuseFactor: 64,
}

// Overrides returns the plan's overrides for m in application order. Steps
// whose target layer does not exist in m are left out.
func (p Plan) Overrides(m *qnn.Model) []Override {
	overrides := []Override{
		Set(ModelScope, KeyPrecision, p.Precision),
		Set(ModelScope, KeyReuseFactor, p.ReuseFactor),
		Set(ModelScope, KeyStrategy, Resource),
	}
	largest, ok := LargestLayer(m)
	if ok {
		overrides = append(overrides, Set(largest, KeyReuseFactor, p.LargestReuseFactor))
	}
	if small, ok := smallestLayer(m, largest); ok {
		overrides = append(overrides, Set(small, KeyStrategy, Latency))
	}
	if sm, ok := finalSoftmax(m); ok {
		overrides = append(overrides, Set(sm, KeyStrategy, Stable))
	}
	return overrides
}
