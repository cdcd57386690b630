package qnn

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ReconfigureIO/hlsflow/fixedpoint"
)

// Quantizer reproduces a QKeras quantizer on float64 values.
type Quantizer interface {
	// Quantize maps x onto the quantizer's grid, rounding to nearest-even
	// and clipping to its range.
	Quantize(x float64) float64
	// Type is the HLS type that holds every quantized value exactly.
	Type() fixedpoint.Type
	// String is the QKeras spelling, e.g. "quantized_bits(8,0,alpha=1)".
	String() string
}

// QuantizerArgs are the arguments of a quantizer, either positional as in
// "quantized_bits(8,0)" or named as in "quantized_bits(bits=8)".
type QuantizerArgs struct {
	Positional []float64
	Named      map[string]float64
}

// Get returns the argument at position pos or named name, else def.
func (a QuantizerArgs) Get(pos int, name string, def float64) float64 {
	if v, ok := a.Named[name]; ok {
		return v
	}
	if pos < len(a.Positional) {
		return a.Positional[pos]
	}
	return def
}

// QuantizerConstructor builds a quantizer from its arguments.
type QuantizerConstructor func(args QuantizerArgs) (Quantizer, error)

// QuantizedBits is QKeras' quantized_bits with alpha=1.
type QuantizedBits struct {
	Bits         int
	Integer      int
	Symmetric    bool
	KeepNegative bool
}

// NewQuantizedBits is the QuantizerConstructor for quantized_bits.
func NewQuantizedBits(args QuantizerArgs) (Quantizer, error) {
	q := &QuantizedBits{
		Bits:         int(args.Get(0, "bits", 8)),
		Integer:      int(args.Get(1, "integer", 0)),
		Symmetric:    args.Get(2, "symmetric", 0) != 0,
		KeepNegative: args.Get(3, "keep_negative", 1) != 0,
	}
	if alpha := args.Get(4, "alpha", 1); alpha != 1 && !math.IsNaN(alpha) {
		return nil, fmt.Errorf("quantized_bits: alpha=%v is not supported, only alpha=1", alpha)
	}
	if q.Bits < 1 || q.Bits > fixedpoint.MaxWidth {
		return nil, fmt.Errorf("quantized_bits: bits=%d out of range", q.Bits)
	}
	return q, nil
}

func (q *QuantizedBits) sign() int {
	if q.KeepNegative {
		return 1
	}
	return 0
}

func (q *QuantizedBits) Quantize(x float64) float64 {
	frac := q.Bits - q.sign() - q.Integer
	var lo, hi float64
	if q.KeepNegative {
		hi = math.Ldexp(1, q.Bits-1) - 1
		lo = -math.Ldexp(1, q.Bits-1)
		if q.Symmetric {
			lo = -hi
		}
	} else {
		hi = math.Ldexp(1, q.Bits) - 1
	}
	v := math.RoundToEven(math.Ldexp(x, frac))
	return math.Ldexp(math.Max(lo, math.Min(hi, v)), -frac)
}

func (q *QuantizedBits) Type() fixedpoint.Type {
	return fixedpoint.Type{
		Width:   q.Bits,
		Integer: q.Integer + q.sign(),
		Signed:  q.KeepNegative,
	}
}

func (q *QuantizedBits) String() string {
	return fmt.Sprintf("quantized_bits(%d,%d,%d,%d,alpha=1)", q.Bits, q.Integer, b2i(q.Symmetric), b2i(q.KeepNegative))
}

// QuantizedReLU is QKeras' quantized_relu.
type QuantizedReLU struct {
	Bits    int
	Integer int
}

// NewQuantizedReLU is the QuantizerConstructor for quantized_relu.
func NewQuantizedReLU(args QuantizerArgs) (Quantizer, error) {
	q := &QuantizedReLU{
		Bits:    int(args.Get(0, "bits", 8)),
		Integer: int(args.Get(1, "integer", 0)),
	}
	if q.Bits < 1 || q.Bits > fixedpoint.MaxWidth {
		return nil, fmt.Errorf("quantized_relu: bits=%d out of range", q.Bits)
	}
	return q, nil
}

func (q *QuantizedReLU) Quantize(x float64) float64 {
	frac := q.Bits - q.Integer
	hi := math.Ldexp(1, q.Bits) - 1
	v := math.RoundToEven(math.Ldexp(x, frac))
	return math.Ldexp(math.Max(0, math.Min(hi, v)), -frac)
}

func (q *QuantizedReLU) Type() fixedpoint.Type {
	return fixedpoint.UFixed(q.Bits, q.Integer)
}

func (q *QuantizedReLU) String() string {
	return fmt.Sprintf("quantized_relu(%d,%d)", q.Bits, q.Integer)
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

var quantizerRE = regexp.MustCompile(`^(\w+)\((.*)\)$`)

// parseQuantizerString splits "quantized_bits(8,0,alpha=1)" into a name and
// its arguments.
func parseQuantizerString(s string) (string, QuantizerArgs, error) {
	args := QuantizerArgs{Named: map[string]float64{}}
	s = strings.Replace(strings.TrimSpace(s), " ", "", -1)
	m := quantizerRE.FindStringSubmatch(s)
	if m == nil {
		// A bare name such as "relu".
		return s, args, nil
	}
	if m[2] == "" {
		return m[1], args, nil
	}
	for _, part := range strings.Split(m[2], ",") {
		name := ""
		if i := strings.Index(part, "="); i >= 0 {
			name, part = part[:i], part[i+1:]
		}
		v, err := parseArg(part)
		if err != nil {
			return "", args, fmt.Errorf("%s: argument %q: %v", m[1], part, err)
		}
		if name == "" {
			args.Positional = append(args.Positional, v)
		} else {
			args.Named[name] = v
		}
	}
	return m[1], args, nil
}

func parseArg(s string) (float64, error) {
	switch strings.ToLower(s) {
	case "true":
		return 1, nil
	case "false":
		return 0, nil
	case "none":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
