package emulator

import (
	"fmt"
	"math"

	"github.com/ReconfigureIO/hlsflow/fixedpoint"
)

// Network is a compiled fixed-point network.
type Network struct {
	Spec   *Spec
	input  fixedpoint.Type
	layers []layer
}

type layer interface {
	// forward maps raw inputs with frac fractional bits to raw outputs of
	// the layer's result type.
	forward(x []int64, frac int) []int64
	result() fixedpoint.Type
}

// Build compiles s. Dense layers must carry inline weights.
func Build(s *Spec) (*Network, error) {
	input, err := parseType(s.InputType)
	if err != nil {
		return nil, fmt.Errorf("input: %v", err)
	}
	n := &Network{Spec: s, input: input}
	size := s.InputSize
	for _, ls := range s.Layers {
		if ls.NIn != size {
			return nil, fmt.Errorf("layer %s: expects %d inputs, previous layer produces %d", ls.Name, ls.NIn, size)
		}
		var l layer
		switch ls.Kind {
		case KindDense:
			l, err = newDense(ls)
		case KindActivation:
			l, err = newActivation(ls)
		case KindSoftmax:
			l, err = newSoftmax(ls)
		default:
			err = fmt.Errorf("unsupported kind %q", ls.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("layer %s: %v", ls.Name, err)
		}
		n.layers = append(n.layers, l)
		size = ls.NOut
	}
	return n, nil
}

func parseType(s string) (fixedpoint.Type, error) {
	t, err := fixedpoint.Parse(s)
	if err != nil {
		return t, err
	}
	return t, t.Emulatable()
}

// Predict runs one sample through the network. Inputs are quantized to the
// input type first.
func (n *Network) Predict(x []float64) ([]float64, error) {
	if len(x) != n.Spec.InputSize {
		return nil, fmt.Errorf("expected %d inputs, got %d", n.Spec.InputSize, len(x))
	}
	raw := make([]int64, len(x))
	for i, v := range x {
		raw[i] = n.input.Quantize(v)
	}
	t := n.input
	for _, l := range n.layers {
		raw = l.forward(raw, t.Frac())
		t = l.result()
	}
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = t.Float(v)
	}
	return out, nil
}

// PredictBatch runs every sample in xs through the network.
func (n *Network) PredictBatch(xs [][]float64) ([][]float64, error) {
	out := make([][]float64, len(xs))
	for i, x := range xs {
		y, err := n.Predict(x)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %v", i, err)
		}
		out[i] = y
	}
	return out, nil
}

type dense struct {
	nIn, nOut                      int
	weight, bias, accum, resultTyp fixedpoint.Type
	w, b                           []int64
}

func newDense(ls LayerSpec) (*dense, error) {
	d := &dense{nIn: ls.NIn, nOut: ls.NOut}
	var err error
	for _, p := range []struct {
		t    *fixedpoint.Type
		desc string
		what string
	}{
		{&d.weight, ls.WeightType, "weight"},
		{&d.bias, ls.BiasType, "bias"},
		{&d.accum, ls.AccumType, "accum"},
		{&d.resultTyp, ls.ResultType, "result"},
	} {
		if *p.t, err = parseType(p.desc); err != nil {
			return nil, fmt.Errorf("%s type: %v", p.what, err)
		}
	}
	if len(ls.Kernel) != ls.NIn*ls.NOut {
		return nil, fmt.Errorf("kernel has %d values, expected %d", len(ls.Kernel), ls.NIn*ls.NOut)
	}
	if len(ls.Bias) != ls.NOut {
		return nil, fmt.Errorf("bias has %d values, expected %d", len(ls.Bias), ls.NOut)
	}
	d.w = make([]int64, len(ls.Kernel))
	for i, v := range ls.Kernel {
		d.w[i] = d.weight.Quantize(v)
	}
	d.b = make([]int64, len(ls.Bias))
	for i, v := range ls.Bias {
		d.b[i] = d.bias.Quantize(v)
	}
	return d, nil
}

func (d *dense) result() fixedpoint.Type { return d.resultTyp }

// forward casts every product to the accumulator type and accumulates in
// it, then casts the sums to the result type.
func (d *dense) forward(x []int64, frac int) []int64 {
	accFrac := d.accum.Frac()
	prodFrac := frac + d.weight.Frac()
	acc := make([]int64, d.nOut)
	for j := range acc {
		acc[j] = d.accum.Cast(d.b[j], d.bias.Frac())
	}
	for i, xi := range x {
		if xi == 0 {
			continue
		}
		row := d.w[i*d.nOut : (i+1)*d.nOut]
		for j, w := range row {
			p := d.accum.Cast(xi*w, prodFrac)
			acc[j] = d.accum.Cast(acc[j]+p, accFrac)
		}
	}
	out := make([]int64, d.nOut)
	for j, a := range acc {
		out[j] = d.resultTyp.Cast(a, accFrac)
	}
	return out
}

type activation struct {
	fn        string
	resultTyp fixedpoint.Type
	table     *table
}

func newActivation(ls LayerSpec) (*activation, error) {
	a := &activation{fn: ls.Activation}
	var err error
	if a.resultTyp, err = parseType(ls.ResultType); err != nil {
		return nil, fmt.Errorf("result type: %v", err)
	}
	switch a.fn {
	case "linear", "relu":
	case "sigmoid":
		a.table, err = newTable(ls, -8, 8, func(x float64) float64 { return 1 / (1 + math.Exp(-x)) })
	case "tanh":
		a.table, err = newTable(ls, -4, 4, math.Tanh)
	default:
		err = fmt.Errorf("unsupported activation %q", a.fn)
	}
	if err != nil {
		return nil, err
	}
	if ls.NOut != ls.NIn {
		return nil, fmt.Errorf("activation changes size from %d to %d", ls.NIn, ls.NOut)
	}
	return a, nil
}

func (a *activation) result() fixedpoint.Type { return a.resultTyp }

func (a *activation) forward(x []int64, frac int) []int64 {
	out := make([]int64, len(x))
	for i, v := range x {
		switch a.fn {
		case "relu":
			if v < 0 {
				v = 0
			}
			out[i] = a.resultTyp.Cast(v, frac)
		case "linear":
			out[i] = a.resultTyp.Cast(v, frac)
		default:
			out[i] = a.resultTyp.Cast(a.table.lookup(v, frac), a.table.typ.Frac())
		}
	}
	return out
}

type softmax struct {
	stable    bool
	resultTyp fixedpoint.Type
	exp       *table
}

func newSoftmax(ls LayerSpec) (*softmax, error) {
	s := &softmax{stable: ls.Strategy == StrategyStable}
	var err error
	if s.resultTyp, err = parseType(ls.ResultType); err != nil {
		return nil, fmt.Errorf("result type: %v", err)
	}
	if s.exp, err = newTable(ls, -8, 8, math.Exp); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *softmax) result() fixedpoint.Type { return s.resultTyp }

// forward looks up exp of every input, subtracting the maximum first with
// the Stable strategy, sums in the table type and scales every term by the
// quantized inverse of the sum.
func (s *softmax) forward(x []int64, frac int) []int64 {
	var xmax int64
	if s.stable && len(x) > 0 {
		xmax = x[0]
		for _, v := range x[1:] {
			if v > xmax {
				xmax = v
			}
		}
	}
	t := s.exp.typ
	e := make([]int64, len(x))
	var sum int64
	for i, v := range x {
		e[i] = s.exp.lookup(v-xmax, frac)
		sum = t.Cast(sum+e[i], t.Frac())
	}
	inv := t.MaxRaw()
	if sum > 0 {
		inv = t.Quantize(1 / t.Float(sum))
	}
	out := make([]int64, len(x))
	for i, v := range e {
		out[i] = s.resultTyp.Cast(v*inv, 2*t.Frac())
	}
	return out
}

// table samples f at size points over [lo, hi) in the table type.
type table struct {
	lo, hi float64
	typ    fixedpoint.Type
	values []int64
}

func newTable(ls LayerSpec, lo, hi float64, f func(float64) float64) (*table, error) {
	size := ls.TableSize
	if size == 0 {
		size = 1024
	}
	if size < 2 {
		return nil, fmt.Errorf("table size %d too small", size)
	}
	desc := ls.TableType
	if desc == "" {
		desc = DefaultTableType
	}
	typ, err := parseType(desc)
	if err != nil {
		return nil, fmt.Errorf("table type: %v", err)
	}
	t := &table{lo: lo, hi: hi, typ: typ, values: make([]int64, size)}
	step := (hi - lo) / float64(size)
	for i := range t.values {
		t.values[i] = typ.Quantize(f(lo + float64(i)*step))
	}
	return t, nil
}

// lookup returns the entry for raw, a value with frac fractional bits,
// clamping to the table's range.
func (t *table) lookup(raw int64, frac int) int64 {
	x := math.Ldexp(float64(raw), -frac)
	idx := int(math.Floor((x - t.lo) * float64(len(t.values)) / (t.hi - t.lo)))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(t.values) {
		idx = len(t.values) - 1
	}
	return t.values[idx]
}
