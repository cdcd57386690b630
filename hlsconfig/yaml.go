package hlsconfig

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// MarshalYAML writes a precision set with only a default as a scalar, the
// way hls4ml writes it.
func (p PrecisionSet) MarshalYAML() (interface{}, error) {
	if p.Default != "" && p == (PrecisionSet{Default: p.Default}) {
		return p.Default, nil
	}
	type plain PrecisionSet
	return plain(p), nil
}

// UnmarshalYAML accepts a scalar descriptor or a mapping of parts.
func (p *PrecisionSet) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		*p = PrecisionSet{Default: s}
		return nil
	}
	type plain PrecisionSet
	return unmarshal((*plain)(p))
}

type file struct {
	Model     ModelConfig   `yaml:"Model"`
	LayerType yaml.MapSlice `yaml:"LayerType,omitempty"`
	LayerName yaml.MapSlice `yaml:"LayerName,omitempty"`
}

// Write encodes c in the hls4ml_config.yml layout, layers in model order.
func (c *Config) Write(w io.Writer) error {
	f := file{Model: c.Model}
	for _, name := range c.Order {
		f.LayerName = append(f.LayerName, yaml.MapItem{Key: name, Value: c.LayerName[name]})
	}
	for _, class := range sortedKeys(c.LayerType) {
		f.LayerType = append(f.LayerType, yaml.MapItem{Key: class, Value: c.LayerType[class]})
	}
	b, err := yaml.Marshal(f)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// Decode reads a configuration written by Write. Layer classes are not
// recorded; see Bind.
func Decode(r io.Reader) (*Config, error) {
	b, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}

	c := &Config{Model: f.Model}
	if f.LayerName != nil {
		c.LayerName = map[string]*LayerConfig{}
		for _, item := range f.LayerName {
			name := fmt.Sprint(item.Key)
			lc, err := decodeLayer(item.Value)
			if err != nil {
				return nil, errors.Wrapf(err, "layer %s", name)
			}
			c.LayerName[name] = lc
			c.Order = append(c.Order, name)
		}
	}
	if f.LayerType != nil {
		c.LayerType = map[string]*LayerConfig{}
		for _, item := range f.LayerType {
			class := fmt.Sprint(item.Key)
			lc, err := decodeLayer(item.Value)
			if err != nil {
				return nil, errors.Wrapf(err, "layer type %s", class)
			}
			lc.Class = class
			c.LayerType[class] = lc
		}
	}
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return c, nil
}

func decodeLayer(v interface{}) (*LayerConfig, error) {
	b, err := yaml.Marshal(v)
	if err != nil {
		return nil, err
	}
	lc := &LayerConfig{}
	if err := yaml.UnmarshalStrict(b, lc); err != nil {
		return nil, err
	}
	return lc, nil
}

// Read decodes the configuration file at path.
func Read(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Save writes c to path.
func (c *Config) Save(path string) (err error) {
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
	return c.Write(f)
}
