// Package hlsconfig holds the HLS implementation settings of a model: numeric
// precision, reuse factor and strategy, globally and per layer.
package hlsconfig

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	validator "gopkg.in/validator.v2"
)

// Strategy selects how the HLS code for a layer is generated.
type Strategy string

const (
	Latency  Strategy = "Latency"
	Resource Strategy = "Resource"
	Stable   Strategy = "Stable"
)

// ParseStrategy parses a strategy name, ignoring case.
func ParseStrategy(s string) (Strategy, error) {
	for _, st := range []Strategy{Latency, Resource, Stable} {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown strategy %q", s)
}

func isStrategy(v interface{}, param string) error {
	st := reflect.ValueOf(v)
	if st.Kind() != reflect.String {
		return errors.New("isStrategy only validates strings")
	}
	if st.String() == "" {
		return nil
	}
	_, err := ParseStrategy(st.String())
	return err
}

func init() {
	validator.SetValidationFunc("is_strategy", isStrategy)
}

// Granularity controls which scopes FromModel creates.
type Granularity string

const (
	// GranularityModel creates the Model scope only.
	GranularityModel Granularity = "model"
	// GranularityType adds one scope per layer class.
	GranularityType Granularity = "type"
	// GranularityName adds one scope per named layer.
	GranularityName Granularity = "name"
)

const (
	DefaultPrecision   = "ap_fixed<16,6>"
	DefaultReuseFactor = 1
	DefaultTableSize   = 1024
)

// ModelScope is the scope name of the global settings.
const ModelScope = "Model"

// ModelConfig holds the global settings.
type ModelConfig struct {
	Precision   string   `yaml:"Precision" validate:"nonzero"`
	ReuseFactor int      `yaml:"ReuseFactor" validate:"min=1"`
	Strategy    Strategy `yaml:"Strategy" validate:"is_strategy"`
}

// PrecisionSet holds the precision descriptors of a layer. Empty fields
// inherit from Default, then from the enclosing scope.
type PrecisionSet struct {
	Default string `yaml:"default,omitempty"`
	Weight  string `yaml:"weight,omitempty"`
	Bias    string `yaml:"bias,omitempty"`
	Result  string `yaml:"result,omitempty"`
	Accum   string `yaml:"accum,omitempty"`
}

// Precision parts addressable by Precision.<part> override keys.
const (
	PartWeight = "weight"
	PartBias   = "bias"
	PartResult = "result"
	PartAccum  = "accum"
)

func (p *PrecisionSet) part(name string) *string {
	switch name {
	case "", "default":
		return &p.Default
	case PartWeight:
		return &p.Weight
	case PartBias:
		return &p.Bias
	case PartResult:
		return &p.Result
	case PartAccum:
		return &p.Accum
	}
	return nil
}

// Get returns the descriptor for part, falling back to Default.
func (p PrecisionSet) Get(part string) string {
	if v := p.part(part); v != nil && *v != "" {
		return *v
	}
	return p.Default
}

// LayerConfig holds the settings of a single layer or layer class. Zero
// values inherit from the enclosing scope.
type LayerConfig struct {
	Class       string       `yaml:"-"`
	Precision   PrecisionSet `yaml:"Precision,omitempty"`
	ReuseFactor int          `yaml:"ReuseFactor,omitempty" validate:"min=0"`
	Strategy    Strategy     `yaml:"Strategy,omitempty" validate:"is_strategy"`
	TableSize   int          `yaml:"table_size,omitempty" validate:"min=0"`
}

func (l *LayerConfig) clone() *LayerConfig {
	c := *l
	return &c
}

// Config is the configuration of one model. LayerName is keyed by layer
// name and LayerType by layer class; Order keeps the layer names in model
// order.
type Config struct {
	Model     ModelConfig
	LayerType map[string]*LayerConfig
	LayerName map[string]*LayerConfig
	Order     []string
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := &Config{
		Model:     c.Model,
		LayerType: cloneLayers(c.LayerType),
		LayerName: cloneLayers(c.LayerName),
		Order:     append([]string(nil), c.Order...),
	}
	return out
}

func cloneLayers(in map[string]*LayerConfig) map[string]*LayerConfig {
	if in == nil {
		return nil
	}
	out := make(map[string]*LayerConfig, len(in))
	for k, v := range in {
		out[k] = v.clone()
	}
	return out
}

func sortedKeys(m map[string]*LayerConfig) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// scopes returns the layer entries that apply to a layer, most specific
// first.
func (c *Config) scopes(layer, class string) []*LayerConfig {
	var out []*LayerConfig
	if l, ok := c.LayerName[layer]; ok {
		out = append(out, l)
		if class == "" {
			class = l.Class
		}
	}
	if l, ok := c.LayerType[class]; ok && class != "" {
		out = append(out, l)
	}
	return out
}

// Precision resolves the descriptor for part of a layer: the layer's own
// setting, then its class, then the model default.
func (c *Config) Precision(layer, class, part string) string {
	for _, l := range c.scopes(layer, class) {
		if v := l.Precision.Get(part); v != "" {
			return v
		}
	}
	return c.Model.Precision
}

// ReuseFactor resolves the reuse factor of a layer.
func (c *Config) ReuseFactor(layer, class string) int {
	for _, l := range c.scopes(layer, class) {
		if l.ReuseFactor != 0 {
			return l.ReuseFactor
		}
	}
	return c.Model.ReuseFactor
}

// Strategy resolves the strategy of a layer.
func (c *Config) Strategy(layer, class string) Strategy {
	for _, l := range c.scopes(layer, class) {
		if l.Strategy != "" {
			return l.Strategy
		}
	}
	return c.Model.Strategy
}

// TableSize resolves the lookup table size of an activation layer.
func (c *Config) TableSize(layer, class string) int {
	for _, l := range c.scopes(layer, class) {
		if l.TableSize != 0 {
			return l.TableSize
		}
	}
	return DefaultTableSize
}

// Validate checks every scope's fields.
func (c *Config) Validate() error {
	if err := validator.Validate(c.Model); err != nil {
		return fmt.Errorf("%s: %v", ModelScope, err)
	}
	for _, name := range c.Order {
		l, ok := c.LayerName[name]
		if !ok {
			return fmt.Errorf("layer %s is ordered but not configured", name)
		}
		if err := validator.Validate(l); err != nil {
			return fmt.Errorf("%s: %v", name, err)
		}
	}
	for _, class := range sortedKeys(c.LayerType) {
		if err := validator.Validate(c.LayerType[class]); err != nil {
			return fmt.Errorf("%s: %v", class, err)
		}
	}
	return nil
}
