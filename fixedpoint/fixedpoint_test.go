package fixedpoint

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in       string
		expected Type
		str      string
	}{
		{"ap_fixed<16,6>", Type{Width: 16, Integer: 6, Signed: true}, "ap_fixed<16,6>"},
		{"fixed<18, 8>", Type{Width: 18, Integer: 8, Signed: true}, "ap_fixed<18,8>"},
		{"ap_ufixed<8,3,AP_RND,AP_SAT>", Type{Width: 8, Integer: 3, Rounding: RND, Saturation: Sat}, "ap_ufixed<8,3,AP_RND,AP_SAT>"},
		{"ap_fixed<8,1,AP_RND_CONV>", Type{Width: 8, Integer: 1, Signed: true, Rounding: RNDConv}, "ap_fixed<8,1,AP_RND_CONV,AP_WRAP>"},
		{"ap_int<8>", Type{Width: 8, Integer: 8, Signed: true}, "ap_int<8>"},
		{"ap_uint<1>", Type{Width: 1, Integer: 1}, "ap_uint<1>"},
		{"ap_fixed<16,6,AP_RND,AP_SAT,0>", Type{Width: 16, Integer: 6, Signed: true, Rounding: RND, Saturation: Sat}, "ap_fixed<16,6,AP_RND,AP_SAT>"},
	}
	for _, c := range cases {
		actual, err := Parse(c.in)
		if err != nil {
			t.Errorf("Parse(%q): %v", c.in, err)
			continue
		}
		if actual != c.expected {
			t.Errorf("Parse(%q): expected %+v, got %+v", c.in, c.expected, actual)
		}
		if actual.String() != c.str {
			t.Errorf("String(): expected %q, got %q", c.str, actual.String())
		}
	}
}

func TestParseInvalid(t *testing.T) {
	for _, in := range []string{
		"",
		"float",
		"ap_fixed<16>",
		"ap_fixed<a,6>",
		"ap_fixed<16,6,AP_NOPE>",
		"ap_fixed<16,6,AP_RND,AP_NOPE>",
		"ap_int<8,2>",
		"ap_fixed<0,0>",
		"ap_fixed<2000,6>",
	} {
		_, err := Parse(in)
		if err == nil {
			t.Errorf("Parse(%q): expected error", in)
			continue
		}
		if _, ok := err.(*ParseError); !ok {
			t.Errorf("Parse(%q): expected *ParseError, got %T", in, err)
		}
	}
}

func TestQuantizeRounding(t *testing.T) {
	// ap_fixed<8,4> has a resolution of 1/16.
	base := Fixed(8, 4)
	step := base.Resolution()
	cases := []struct {
		mode     RoundingMode
		in       float64
		expected float64
	}{
		{TRN, 1.5 * step, 1 * step},
		{TRN, -1.5 * step, -2 * step},
		{TRNZero, -1.5 * step, -1 * step},
		{RND, 1.5 * step, 2 * step},
		{RND, -1.5 * step, -1 * step},
		{RND, 1.25 * step, 1 * step},
		{RNDZero, 1.5 * step, 1 * step},
		{RNDZero, -1.5 * step, -1 * step},
		{RNDMinInf, 1.5 * step, 1 * step},
		{RNDMinInf, -1.5 * step, -2 * step},
		{RNDInf, 1.5 * step, 2 * step},
		{RNDInf, -1.5 * step, -2 * step},
		{RNDConv, 1.5 * step, 2 * step},
		{RNDConv, 2.5 * step, 2 * step},
		{RNDConv, -2.5 * step, -2 * step},
		{RNDConv, 2.75 * step, 3 * step},
	}
	for _, c := range cases {
		typ := base.WithModes(c.mode, Wrap)
		actual := typ.QuantizeFloat(c.in)
		if actual != c.expected {
			t.Errorf("%s: Quantize(%v) expected %v, got %v", c.mode, c.in, c.expected, actual)
		}
	}
}

func TestQuantizeOverflow(t *testing.T) {
	cases := []struct {
		typ      Type
		in       float64
		expected float64
	}{
		{Fixed(8, 4).WithModes(TRN, Sat), 100, Fixed(8, 4).Max()},
		{Fixed(8, 4).WithModes(TRN, Sat), -100, -8},
		{Fixed(8, 4).WithModes(TRN, SatZero), 100, 0},
		{Fixed(8, 4).WithModes(TRN, SatSym), -100, -Fixed(8, 4).Max()},
		// 8.5 wraps to -7.5 in a 4 integer bit signed type.
		{Fixed(8, 4), 8.5, -7.5},
		{UFixed(8, 3).WithModes(RND, Sat), -1, 0},
		{UFixed(8, 3).WithModes(RND, Sat), 9, UFixed(8, 3).Max()},
		{UFixed(4, 4), 17, 1},
	}
	for _, c := range cases {
		actual := c.typ.QuantizeFloat(c.in)
		if actual != c.expected {
			t.Errorf("%s: Quantize(%v) expected %v, got %v", c.typ, c.in, c.expected, actual)
		}
	}
}

func TestCastMatchesQuantize(t *testing.T) {
	src := Fixed(24, 8)
	for _, mode := range []RoundingMode{TRN, TRNZero, RND, RNDZero, RNDMinInf, RNDInf, RNDConv} {
		dst := Fixed(10, 4).WithModes(mode, Sat)
		for _, f := range []float64{0, 0.3, -0.3, 1.03125, -1.03125, 2.0078125, 7.99, -8.5, 12.25} {
			raw := src.Quantize(f)
			exact := src.Float(raw)
			assert.Equal(t, dst.Cast(raw, src.Frac()), dst.Quantize(exact), "%s cast of %v", dst, f)
		}
	}
}

func TestCastWidens(t *testing.T) {
	narrow := Fixed(8, 1)
	wide := Fixed(16, 6)
	raw := narrow.Quantize(-0.75)
	assert.Equal(t, wide.Float(wide.Cast(raw, narrow.Frac())), -0.75)
}

func TestEmulatable(t *testing.T) {
	assert.NilError(t, MustParse("ap_fixed<32,16>").Emulatable())
	assert.ErrorContains(t, MustParse("ap_fixed<48,16>").Emulatable(), "wider")
}
