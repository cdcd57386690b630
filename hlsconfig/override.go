package hlsconfig

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Override keys.
const (
	KeyPrecision   = "Precision"
	KeyReuseFactor = "ReuseFactor"
	KeyStrategy    = "Strategy"
	KeyTableSize   = "TableSize"
)

// ErrUnknownConfigTarget matches every *UnknownTargetError.
var ErrUnknownConfigTarget = errors.New("unknown config target")

// UnknownTargetError is returned when an override addresses a scope or key
// the configuration does not have.
type UnknownTargetError struct {
	Scope string
	Key   string
}

func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("%s: %s.%s", ErrUnknownConfigTarget, e.Scope, e.Key)
}

// Is reports whether target is ErrUnknownConfigTarget.
func (e *UnknownTargetError) Is(target error) bool {
	return target == ErrUnknownConfigTarget
}

// Override sets one key of one scope. Scope is ModelScope, a layer name or,
// for type granularity, a layer class.
type Override struct {
	Scope string
	Key   string
	Value string
}

// Set builds an override, formatting value with fmt.
func Set(scope, key string, value interface{}) Override {
	return Override{Scope: scope, Key: key, Value: fmt.Sprint(value)}
}

func (o Override) String() string {
	return o.Scope + "." + o.Key + "=" + o.Value
}

// ParseOverride parses "scope.key=value", e.g. "fc1.ReuseFactor=64" or
// "fc1.Precision.weight=ap_fixed<8,1>".
func ParseOverride(s string) (Override, error) {
	eq := strings.Index(s, "=")
	if eq < 0 {
		return Override{}, fmt.Errorf("override %q: expected scope.key=value", s)
	}
	target, value := s[:eq], s[eq+1:]
	dot := strings.Index(target, ".")
	if dot <= 0 || dot == len(target)-1 {
		return Override{}, fmt.Errorf("override %q: expected scope.key=value", s)
	}
	return Override{Scope: target[:dot], Key: target[dot+1:], Value: value}, nil
}

// Apply applies overrides in order. Either every override is applied or, on
// the first error, none is and c is left unchanged. Later overrides of the
// same scope and key win.
func (c *Config) Apply(overrides ...Override) error {
	next := c.Clone()
	for _, o := range overrides {
		if err := next.apply(o); err != nil {
			return err
		}
	}
	*c = *next
	return nil
}

func (c *Config) apply(o Override) error {
	if o.Scope == ModelScope {
		return c.applyModel(o)
	}
	l, ok := c.LayerName[o.Scope]
	if !ok {
		l, ok = c.LayerType[o.Scope]
	}
	if !ok {
		return &UnknownTargetError{Scope: o.Scope, Key: o.Key}
	}
	return applyLayer(l, o)
}

func (c *Config) applyModel(o Override) error {
	switch o.Key {
	case KeyPrecision:
		c.Model.Precision = o.Value
	case KeyReuseFactor:
		rf, err := parseReuseFactor(o)
		if err != nil {
			return err
		}
		c.Model.ReuseFactor = rf
	case KeyStrategy:
		st, err := ParseStrategy(o.Value)
		if err != nil {
			return fmt.Errorf("%s: %v", o, err)
		}
		c.Model.Strategy = st
	default:
		return &UnknownTargetError{Scope: o.Scope, Key: o.Key}
	}
	return nil
}

func applyLayer(l *LayerConfig, o Override) error {
	switch {
	case o.Key == KeyPrecision || strings.HasPrefix(o.Key, KeyPrecision+"."):
		part := strings.TrimPrefix(strings.TrimPrefix(o.Key, KeyPrecision), ".")
		if !hasPart(l.Class, part) {
			return &UnknownTargetError{Scope: o.Scope, Key: o.Key}
		}
		*l.Precision.part(part) = o.Value
	case o.Key == KeyReuseFactor:
		rf, err := parseReuseFactor(o)
		if err != nil {
			return err
		}
		l.ReuseFactor = rf
	case o.Key == KeyStrategy:
		st, err := ParseStrategy(o.Value)
		if err != nil {
			return fmt.Errorf("%s: %v", o, err)
		}
		l.Strategy = st
	case o.Key == KeyTableSize && hasTable(l.Class):
		n, err := strconv.Atoi(o.Value)
		if err != nil || n < 1 {
			return fmt.Errorf("%s: table size must be a positive integer", o)
		}
		l.TableSize = n
	default:
		return &UnknownTargetError{Scope: o.Scope, Key: o.Key}
	}
	return nil
}

func parseReuseFactor(o Override) (int, error) {
	rf, err := strconv.Atoi(o.Value)
	if err != nil || rf < 1 {
		return 0, fmt.Errorf("%s: reuse factor must be a positive integer", o)
	}
	return rf, nil
}

// hasPart reports whether layers of class carry the precision part.
func hasPart(class, part string) bool {
	switch part {
	case "", "default", PartResult, PartAccum:
		return true
	case PartWeight, PartBias:
		return class == "" || class == "Dense" || class == "QDense"
	}
	return false
}

func hasTable(class string) bool {
	return class == "" || class == "Activation" || class == "QActivation" || class == "Softmax"
}
