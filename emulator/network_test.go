package emulator

import (
	"math"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"
)

func denseSpec(accum string) *Spec {
	return &Spec{
		Name:      "dense",
		InputSize: 2,
		InputType: "ap_fixed<16,6>",
		Layers: []LayerSpec{{
			Name:       "fc1",
			Kind:       KindDense,
			NIn:        2,
			NOut:       1,
			WeightType: "ap_fixed<8,1>",
			BiasType:   "ap_fixed<8,1>",
			AccumType:  accum,
			ResultType: "ap_fixed<16,6>",
			Kernel:     []float64{0.75, 0.75},
			Bias:       []float64{0.75},
		}},
	}
}

func TestDenseReLU(t *testing.T) {
	s := &Spec{
		Name:      "small",
		InputSize: 2,
		InputType: "ap_fixed<16,6>",
		Layers: []LayerSpec{
			{
				Name:       "fc1",
				Kind:       KindDense,
				NIn:        2,
				NOut:       2,
				WeightType: "ap_fixed<8,1>",
				BiasType:   "ap_fixed<8,1>",
				AccumType:  "ap_fixed<16,6>",
				ResultType: "ap_fixed<16,6>",
				Kernel:     []float64{0.5, -0.25, 0.125, 0.75},
				Bias:       []float64{0.25, 0},
			},
			{
				Name:       "relu1",
				Kind:       KindActivation,
				Activation: "relu",
				NIn:        2,
				NOut:       2,
				ResultType: "ap_ufixed<4,2>",
			},
		},
	}
	n, err := Build(s)
	assert.NilError(t, err)

	y, err := n.Predict([]float64{1, 0.5})
	assert.NilError(t, err)
	// 0.8125 truncates to 0.75 on the 1/4 grid.
	assert.DeepEqual(t, y, []float64{0.75, 0})

	y, err = n.Predict([]float64{-1, 0})
	assert.NilError(t, err)
	assert.DeepEqual(t, y, []float64{0, 0.25})

	_, err = n.Predict([]float64{1})
	assert.ErrorContains(t, err, "expected 2 inputs")
}

func TestAccumulatorOverflow(t *testing.T) {
	cases := []struct {
		accum    string
		expected float64
	}{
		{"ap_fixed<16,6>", 2.25},
		{"ap_fixed<6,2,AP_TRN,AP_SAT>", 1.9375},
		{"ap_fixed<6,2>", -1.75},
	}
	for _, c := range cases {
		n, err := Build(denseSpec(c.accum))
		assert.NilError(t, err)
		y, err := n.Predict([]float64{1, 1})
		assert.NilError(t, err)
		if y[0] != c.expected {
			t.Errorf("%s: expected %v, got %v", c.accum, c.expected, y[0])
		}
	}
}

func softmaxSpec(strategy string) *Spec {
	return &Spec{
		Name:      "softmax",
		InputSize: 4,
		InputType: "ap_fixed<16,6>",
		Layers: []LayerSpec{{
			Name:       "softmax",
			Kind:       KindSoftmax,
			NIn:        4,
			NOut:       4,
			Strategy:   strategy,
			ResultType: "ap_fixed<16,6>",
		}},
	}
}

func TestSoftmax(t *testing.T) {
	stable, err := Build(softmaxSpec(StrategyStable))
	assert.NilError(t, err)
	latency, err := Build(softmaxSpec(StrategyLatency))
	assert.NilError(t, err)

	for _, n := range []*Network{stable, latency} {
		y, err := n.Predict([]float64{0, 0, 0, 0})
		assert.NilError(t, err)
		assert.DeepEqual(t, y, []float64{0.25, 0.25, 0.25, 0.25})
	}

	y, err := stable.Predict([]float64{10, 9, -20, -20})
	assert.NilError(t, err)
	expected := math.Exp(1) / (math.Exp(1) + 1)
	if math.Abs(y[0]-expected) > 0.01 || y[0] <= y[1] {
		t.Errorf("stable: expected p0 near %v, got %v", expected, y)
	}
	if math.Abs(y[0]+y[1]+y[2]+y[3]-1) > 0.01 {
		t.Errorf("stable: outputs do not sum to 1: %v", y)
	}

	// Without the max subtraction both large inputs saturate the table.
	y, err = latency.Predict([]float64{10, 9, -20, -20})
	assert.NilError(t, err)
	assert.Equal(t, y[0], y[1])
}

func TestTableActivations(t *testing.T) {
	s := &Spec{
		Name:      "act",
		InputSize: 3,
		InputType: "ap_fixed<16,6>",
		Layers: []LayerSpec{{
			Name:       "sigmoid",
			Kind:       KindActivation,
			Activation: "sigmoid",
			NIn:        3,
			NOut:       3,
			ResultType: "ap_fixed<16,6>",
		}},
	}
	n, err := Build(s)
	assert.NilError(t, err)
	y, err := n.Predict([]float64{-30, 0, 30})
	assert.NilError(t, err)
	for i, expected := range []float64{0, 0.5, 1} {
		if math.Abs(y[i]-expected) > 0.01 {
			t.Errorf("sigmoid output %d: expected about %v, got %v", i, expected, y[i])
		}
	}
}

func TestBuildErrors(t *testing.T) {
	wide := denseSpec("ap_fixed<48,16>")
	_, err := Build(wide)
	assert.ErrorContains(t, err, "wider than")

	short := denseSpec("ap_fixed<16,6>")
	short.Layers[0].Kernel = short.Layers[0].Kernel[:1]
	_, err = Build(short)
	assert.ErrorContains(t, err, "kernel has 1 values")

	mismatch := denseSpec("ap_fixed<16,6>")
	mismatch.InputSize = 3
	_, err = Build(mismatch)
	assert.ErrorContains(t, err, "expects 2 inputs")

	unknown := softmaxSpec(StrategyStable)
	unknown.Layers[0].Kind = "Conv2D"
	_, err = Build(unknown)
	assert.ErrorContains(t, err, `unsupported kind "Conv2D"`)

	badType := softmaxSpec(StrategyStable)
	badType.InputType = "float"
	_, err = Build(badType)
	assert.ErrorContains(t, err, "input")
}

func TestSpecRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "net.emu.json")
	s := denseSpec("ap_fixed<16,6>")
	assert.NilError(t, WriteSpec(path, s))
	decoded, err := ReadSpec(path)
	assert.NilError(t, err)
	assert.DeepEqual(t, decoded, s)
}
