// Package fixedpoint models Vivado HLS arbitrary precision fixed-point types
// (ap_fixed, ap_ufixed, ap_int, ap_uint) and their quantisation and overflow
// behaviour, on an int64 raw representation.
package fixedpoint

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// MaxWidth is the widest type the int64 emulation can multiply without
// overflowing an intermediate product.
const MaxWidth = 32

// RoundingMode is the quantisation mode applied when bits are dropped below
// the least significant bit of a type.
type RoundingMode int

const (
	TRN RoundingMode = iota
	TRNZero
	RND
	RNDZero
	RNDMinInf
	RNDInf
	RNDConv
)

var roundingNames = map[RoundingMode]string{
	TRN:       "AP_TRN",
	TRNZero:   "AP_TRN_ZERO",
	RND:       "AP_RND",
	RNDZero:   "AP_RND_ZERO",
	RNDMinInf: "AP_RND_MIN_INF",
	RNDInf:    "AP_RND_INF",
	RNDConv:   "AP_RND_CONV",
}

func (m RoundingMode) String() string {
	if s, ok := roundingNames[m]; ok {
		return s
	}
	return fmt.Sprintf("RoundingMode(%d)", int(m))
}

// ParseRounding parses names like "AP_RND".
func ParseRounding(s string) (RoundingMode, error) {
	for m, name := range roundingNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return m, nil
		}
	}
	return TRN, fmt.Errorf("unknown rounding mode %q", s)
}

func (m RoundingMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *RoundingMode) UnmarshalText(b []byte) error {
	v, err := ParseRounding(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// SaturationMode is the overflow mode applied when a value does not fit in
// the integer bits of a type.
type SaturationMode int

const (
	Wrap SaturationMode = iota
	Sat
	SatZero
	SatSym
)

var saturationNames = map[SaturationMode]string{
	Wrap:    "AP_WRAP",
	Sat:     "AP_SAT",
	SatZero: "AP_SAT_ZERO",
	SatSym:  "AP_SAT_SYM",
}

func (m SaturationMode) String() string {
	if s, ok := saturationNames[m]; ok {
		return s
	}
	return fmt.Sprintf("SaturationMode(%d)", int(m))
}

// ParseSaturation parses names like "AP_SAT".
func ParseSaturation(s string) (SaturationMode, error) {
	for m, name := range saturationNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return m, nil
		}
	}
	return Wrap, fmt.Errorf("unknown saturation mode %q", s)
}

func (m SaturationMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *SaturationMode) UnmarshalText(b []byte) error {
	v, err := ParseSaturation(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Type is a fixed-point type: Width total bits of which Integer are above the
// binary point (including the sign bit when Signed).
type Type struct {
	Width      int
	Integer    int
	Signed     bool
	Rounding   RoundingMode
	Saturation SaturationMode
}

// Fixed returns a signed ap_fixed<width,integer> with default modes.
func Fixed(width, integer int) Type {
	return Type{Width: width, Integer: integer, Signed: true}
}

// UFixed returns an unsigned ap_ufixed<width,integer> with default modes.
func UFixed(width, integer int) Type {
	return Type{Width: width, Integer: integer}
}

// ParseError is returned for malformed precision descriptors.
type ParseError struct {
	Descriptor string
	Reason     string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid precision %q: %s", e.Descriptor, e.Reason)
}

var descriptorRE = regexp.MustCompile(`^(?:ap_)?(u?)(fixed|int)<([^>]*)>$`)

// Parse parses an HLS precision descriptor such as "ap_fixed<16,6>",
// "ap_ufixed<8,3,AP_RND,AP_SAT>", "fixed<18,8>" or "ap_int<8>".
func Parse(s string) (Type, error) {
	desc := strings.Replace(strings.TrimSpace(s), " ", "", -1)
	m := descriptorRE.FindStringSubmatch(desc)
	if m == nil {
		return Type{}, &ParseError{Descriptor: s, Reason: "not an ap_fixed/ap_int descriptor"}
	}
	t := Type{Signed: m[1] == ""}
	params := strings.Split(m[3], ",")

	width, err := strconv.Atoi(params[0])
	if err != nil {
		return Type{}, &ParseError{Descriptor: s, Reason: "width is not an integer"}
	}
	t.Width = width

	if m[2] == "int" {
		if len(params) != 1 {
			return Type{}, &ParseError{Descriptor: s, Reason: "ap_int takes a single width parameter"}
		}
		t.Integer = width
	} else {
		if len(params) < 2 || len(params) > 5 {
			return Type{}, &ParseError{Descriptor: s, Reason: "ap_fixed takes width, integer and optional modes"}
		}
		if t.Integer, err = strconv.Atoi(params[1]); err != nil {
			return Type{}, &ParseError{Descriptor: s, Reason: "integer bits is not an integer"}
		}
		if len(params) > 2 {
			if t.Rounding, err = ParseRounding(params[2]); err != nil {
				return Type{}, &ParseError{Descriptor: s, Reason: err.Error()}
			}
		}
		if len(params) > 3 {
			if t.Saturation, err = ParseSaturation(params[3]); err != nil {
				return Type{}, &ParseError{Descriptor: s, Reason: err.Error()}
			}
		}
		// The fifth parameter (saturation bits) is accepted and ignored.
	}

	if t.Width < 1 || t.Width > 1024 {
		return Type{}, &ParseError{Descriptor: s, Reason: "width must be between 1 and 1024"}
	}
	return t, nil
}

// MustParse is like Parse but panics on error. For package-level defaults.
func MustParse(s string) Type {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t Type) String() string {
	u := ""
	if !t.Signed {
		u = "u"
	}
	if t.Integer == t.Width && t.Rounding == TRN && t.Saturation == Wrap {
		return fmt.Sprintf("ap_%sint<%d>", u, t.Width)
	}
	if t.Rounding == TRN && t.Saturation == Wrap {
		return fmt.Sprintf("ap_%sfixed<%d,%d>", u, t.Width, t.Integer)
	}
	return fmt.Sprintf("ap_%sfixed<%d,%d,%s,%s>", u, t.Width, t.Integer, t.Rounding, t.Saturation)
}

// Emulatable reports whether values of t fit the int64 emulation.
func (t Type) Emulatable() error {
	if t.Width > MaxWidth {
		return fmt.Errorf("%s is wider than %d bits", t, MaxWidth)
	}
	if f := t.Frac(); f > 2*MaxWidth || f < -MaxWidth {
		return fmt.Errorf("%s has an unsupported binary point", t)
	}
	return nil
}

// WithModes returns a copy of t with the given rounding and saturation modes.
func (t Type) WithModes(r RoundingMode, s SaturationMode) Type {
	t.Rounding = r
	t.Saturation = s
	return t
}

// Frac is the number of fractional bits, which may be negative.
func (t Type) Frac() int {
	return t.Width - t.Integer
}

// MinRaw is the smallest raw value representable.
func (t Type) MinRaw() int64 {
	if t.Signed {
		return -(int64(1) << uint(t.Width-1))
	}
	return 0
}

// MaxRaw is the largest raw value representable.
func (t Type) MaxRaw() int64 {
	if t.Signed {
		return int64(1)<<uint(t.Width-1) - 1
	}
	return int64(1)<<uint(t.Width) - 1
}

// Resolution is the value of one least significant bit.
func (t Type) Resolution() float64 {
	return math.Ldexp(1, -t.Frac())
}

// Max is the largest representable value.
func (t Type) Max() float64 {
	return math.Ldexp(float64(t.MaxRaw()), -t.Frac())
}

// Min is the smallest representable value.
func (t Type) Min() float64 {
	return math.Ldexp(float64(t.MinRaw()), -t.Frac())
}

// Float converts a raw value of type t to float64.
func (t Type) Float(raw int64) float64 {
	return math.Ldexp(float64(raw), -t.Frac())
}

// Quantize converts f to a raw value of type t using t's rounding and
// saturation modes.
func (t Type) Quantize(f float64) int64 {
	if math.IsNaN(f) {
		return 0
	}
	s := math.Ldexp(f, t.Frac())
	r := roundFloat(s, t.Rounding)

	// Values beyond int64 are overflows whatever the width.
	if r >= math.Ldexp(1, 62) || r <= -math.Ldexp(1, 62) {
		if r > 0 {
			return t.overflow(math.MaxInt64 >> 1)
		}
		return t.overflow(math.MinInt64 >> 1)
	}
	return t.overflow(int64(r))
}

// QuantizeFloat is Quantize followed by Float.
func (t Type) QuantizeFloat(f float64) float64 {
	return t.Float(t.Quantize(f))
}

// Cast converts raw, a value with frac fractional bits, to type t.
func (t Type) Cast(raw int64, frac int) int64 {
	shift := frac - t.Frac()
	if shift <= 0 {
		if -shift >= 62 {
			if raw == 0 {
				return 0
			}
			if raw > 0 {
				return t.overflow(math.MaxInt64 >> 1)
			}
			return t.overflow(math.MinInt64 >> 1)
		}
		shifted := raw << uint(-shift)
		if shifted>>uint(-shift) != raw {
			if raw > 0 {
				return t.overflow(math.MaxInt64 >> 1)
			}
			return t.overflow(math.MinInt64 >> 1)
		}
		return t.overflow(shifted)
	}
	if shift >= 63 {
		// Everything is below the LSB.
		return t.overflow(roundShift(raw, 62, t.Rounding))
	}
	return t.overflow(roundShift(raw, uint(shift), t.Rounding))
}

func (t Type) overflow(raw int64) int64 {
	lo, hi := t.MinRaw(), t.MaxRaw()
	if raw >= lo && raw <= hi {
		return raw
	}
	switch t.Saturation {
	case Sat:
		if raw < lo {
			return lo
		}
		return hi
	case SatZero:
		return 0
	case SatSym:
		if raw < lo {
			if t.Signed {
				return -hi
			}
			return lo
		}
		return hi
	default:
		return wrap(raw, t.Width, t.Signed)
	}
}

func wrap(raw int64, width int, signed bool) int64 {
	if width >= 64 {
		return raw
	}
	mask := uint64(1)<<uint(width) - 1
	u := uint64(raw) & mask
	if signed && u&(uint64(1)<<uint(width-1)) != 0 {
		return int64(u | ^mask)
	}
	return int64(u)
}

// roundShift divides raw by 2^shift rounding according to mode.
func roundShift(raw int64, shift uint, mode RoundingMode) int64 {
	q := raw >> shift
	rem := raw - q<<shift
	if rem == 0 {
		return q
	}
	half := int64(1) << (shift - 1)
	switch mode {
	case TRNZero:
		if raw < 0 {
			return q + 1
		}
	case RND:
		if rem >= half {
			return q + 1
		}
	case RNDZero:
		if rem > half || (rem == half && raw < 0) {
			return q + 1
		}
	case RNDMinInf:
		if rem > half {
			return q + 1
		}
	case RNDInf:
		if rem > half || (rem == half && raw > 0) {
			return q + 1
		}
	case RNDConv:
		if rem > half || (rem == half && q&1 == 1) {
			return q + 1
		}
	}
	return q
}

func roundFloat(s float64, mode RoundingMode) float64 {
	fl := math.Floor(s)
	frac := s - fl
	if frac == 0 {
		return fl
	}
	switch mode {
	case TRNZero:
		return math.Trunc(s)
	case RND:
		if frac >= 0.5 {
			return fl + 1
		}
	case RNDZero:
		if frac > 0.5 || (frac == 0.5 && s < 0) {
			return fl + 1
		}
	case RNDMinInf:
		if frac > 0.5 {
			return fl + 1
		}
	case RNDInf:
		if frac > 0.5 || (frac == 0.5 && s > 0) {
			return fl + 1
		}
	case RNDConv:
		if frac > 0.5 || (frac == 0.5 && math.Mod(fl, 2) != 0) {
			return fl + 1
		}
	}
	return fl
}
