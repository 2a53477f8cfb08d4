// Package scaler standardizes the single input feature to zero mean and unit
// variance. A Standard is fitted once, on training data only, and then used
// unchanged for validation, test and inference inputs.
package scaler

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ErrEmptyInput is returned when fitting on no data.
var ErrEmptyInput = errors.New("scaler: cannot fit on empty input")

// ErrNotFitted is returned when transforming with an unfitted scaler.
var ErrNotFitted = errors.New("scaler: not fitted")

// Standard is a fitted standardization transform. Fields are exported for
// gob encoding.
type Standard struct {
	Mean   float64
	Scale  float64
	Fitted bool
}

// Fit computes the population mean and standard deviation of xs. A zero
// deviation is replaced by 1 so constant inputs map to 0.
func Fit(xs []float64) (*Standard, error) {
	if len(xs) == 0 {
		return nil, ErrEmptyInput
	}
	mean, std := stat.PopMeanStdDev(xs, nil)
	if std == 0 || math.IsNaN(std) {
		std = 1
	}
	return &Standard{Mean: mean, Scale: std, Fitted: true}, nil
}

// Transform scales a single value.
func (s *Standard) Transform(x float64) (float64, error) {
	if s == nil || !s.Fitted {
		return 0, ErrNotFitted
	}
	return (x - s.Mean) / s.Scale, nil
}

// TransformAll scales every value of xs into a new slice.
func (s *Standard) TransformAll(xs []float64) ([]float64, error) {
	if s == nil || !s.Fitted {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = (x - s.Mean) / s.Scale
	}
	return out, nil
}

// IsFitted reports whether the scaler can transform.
func (s *Standard) IsFitted() bool {
	return s != nil && s.Fitted
}
