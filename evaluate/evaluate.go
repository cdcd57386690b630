// Package evaluate compares the classification accuracy of the floating
// point reference model with the project's fixed-point emulation.
package evaluate

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Predictor returns class probabilities for one sample. Both *qnn.Model and
// *converter.Project are predictors.
type Predictor interface {
	Predict(x []float64) ([]float64, error)
}

// Dataset is a feature matrix with one-hot labels.
type Dataset struct {
	X [][]float64
	Y [][]float64
}

// Len is the number of samples.
func (d *Dataset) Len() int { return len(d.X) }

// Slice returns the first n samples, or all of them if there are fewer.
func (d *Dataset) Slice(n int) *Dataset {
	if n > len(d.X) || n < 0 {
		n = len(d.X)
	}
	return &Dataset{X: d.X[:n], Y: d.Y[:n]}
}

// Validate checks that every sample has a label.
func (d *Dataset) Validate() error {
	if len(d.X) != len(d.Y) {
		return fmt.Errorf("dataset has %d samples and %d labels", len(d.X), len(d.Y))
	}
	if len(d.X) == 0 {
		return errors.New("dataset is empty")
	}
	return nil
}

// Argmax is the index of the largest value, the first on a tie.
func Argmax(v []float64) int {
	best := 0
	for i := range v {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

// Accuracy is the fraction of predictions whose argmax matches the label's.
func Accuracy(pred, labels [][]float64) (float64, error) {
	if len(pred) != len(labels) {
		return 0, fmt.Errorf("%d predictions for %d labels", len(pred), len(labels))
	}
	if len(pred) == 0 {
		return 0, errors.New("no predictions")
	}
	correct := 0
	for i := range pred {
		if Argmax(pred[i]) == Argmax(labels[i]) {
			correct++
		}
	}
	return float64(correct) / float64(len(pred)), nil
}

// Result holds the two accuracies and their absolute difference.
type Result struct {
	Float      float64 `json:"float"`
	Fixed      float64 `json:"fixed"`
	Divergence float64 `json:"divergence"`
}

// Compare runs ds through the reference and the emulation and reports both
// accuracies. It stops early if ctx is cancelled.
func Compare(ctx context.Context, ref, emu Predictor, ds *Dataset) (*Result, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	floatPred, err := predict(ctx, ref, ds, "reference")
	if err != nil {
		return nil, err
	}
	fixedPred, err := predict(ctx, emu, ds, "emulation")
	if err != nil {
		return nil, err
	}

	r := &Result{}
	if r.Float, err = Accuracy(floatPred, ds.Y); err != nil {
		return nil, err
	}
	if r.Fixed, err = Accuracy(fixedPred, ds.Y); err != nil {
		return nil, err
	}
	r.Divergence = r.Float - r.Fixed
	if r.Divergence < 0 {
		r.Divergence = -r.Divergence
	}
	log.WithFields(log.Fields{
		"samples": ds.Len(),
		"float":   r.Float,
		"fixed":   r.Fixed,
		"stage":   "evaluate",
	}).Info("accuracy")
	return r, nil
}

func predict(ctx context.Context, p Predictor, ds *Dataset, name string) ([][]float64, error) {
	out := make([][]float64, len(ds.X))
	for i, x := range ds.X {
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		y, err := p.Predict(x)
		if err != nil {
			return nil, fmt.Errorf("%s: sample %d: %v", name, i, err)
		}
		out[i] = y
	}
	return out, nil
}

// DefaultTolerance is the accuracy divergence accepted without a warning.
const DefaultTolerance = 0.02

// ErrAccuracyDivergence is returned by a failing policy check.
var ErrAccuracyDivergence = errors.New("fixed-point accuracy diverges from the reference")

// Policy decides what a divergence above Tolerance does: it is always
// logged, and fails the check only with FailOnDivergence.
type Policy struct {
	Tolerance        float64 `env:"HLSFLOW_ACCURACY_TOLERANCE" envDefault:"0.02"`
	FailOnDivergence bool    `env:"HLSFLOW_FAIL_ON_DIVERGENCE"`
}

// DefaultPolicy warns on a divergence above DefaultTolerance.
var DefaultPolicy = Policy{Tolerance: DefaultTolerance}

// Check applies the policy to r.
func (p Policy) Check(r *Result) error {
	if r.Divergence <= p.Tolerance {
		return nil
	}
	log.WithFields(log.Fields{
		"divergence": r.Divergence,
		"tolerance":  p.Tolerance,
		"stage":      "evaluate",
	}).Warn("fixed-point accuracy diverges from the reference")
	if p.FailOnDivergence {
		return fmt.Errorf("%w: %.4f > %.4f", ErrAccuracyDivergence, r.Divergence, p.Tolerance)
	}
	return nil
}
