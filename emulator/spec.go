// Package emulator is a bit-accurate software model of the fixed-point
// network the converter generates. It mirrors the arithmetic of the HLS
// dense, activation and softmax kernels.
package emulator

import (
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Layer kinds.
const (
	KindDense      = "Dense"
	KindActivation = "Activation"
	KindSoftmax    = "Softmax"
)

// Strategies that change the emulated arithmetic.
const (
	StrategyLatency = "Latency"
	StrategyStable  = "Stable"
)

// DefaultTableType is the precision of activation lookup tables.
const DefaultTableType = "ap_fixed<18,8,AP_RND,AP_SAT>"

// Spec describes a network: its input type and its layers in order.
type Spec struct {
	Name      string      `json:"name"`
	InputSize int         `json:"input_size"`
	InputType string      `json:"input_type"`
	Layers    []LayerSpec `json:"layers"`
}

// LayerSpec describes one layer. Dense layers carry their weights either by
// file name, relative to the project, or inline once compiled.
type LayerSpec struct {
	Index       int    `json:"index"`
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Activation  string `json:"activation,omitempty"`
	NIn         int    `json:"n_in"`
	NOut        int    `json:"n_out"`
	ReuseFactor int    `json:"reuse_factor"`
	Strategy    string `json:"strategy"`

	WeightType string `json:"weight_type,omitempty"`
	BiasType   string `json:"bias_type,omitempty"`
	AccumType  string `json:"accum_type,omitempty"`
	ResultType string `json:"result_type"`
	TableType  string `json:"table_type,omitempty"`
	TableSize  int    `json:"table_size,omitempty"`

	WeightFile string    `json:"weight_file,omitempty"`
	BiasFile   string    `json:"bias_file,omitempty"`
	Kernel     []float64 `json:"kernel,omitempty"`
	Bias       []float64 `json:"bias,omitempty"`
}

// ReadSpec decodes the spec at path.
func ReadSpec(path string) (*Spec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var s Spec
	if err := json.NewDecoder(f).Decode(&s); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return &s, nil
}

// WriteSpec encodes s to path.
func WriteSpec(path string, s *Spec) (err error) {
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
	return enc.Encode(s)
}
