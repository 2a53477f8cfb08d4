package regressor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Linear is y = Intercept + Slope·x.
type Linear struct {
	Intercept float64
	Slope     float64
	IsFitted  bool
}

// FitLinear solves ordinary least squares with an intercept.
func FitLinear(xs, ys []float64) (*Linear, error) {
	if err := checkTrainingData(xs, ys); err != nil {
		return nil, err
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	if math.IsNaN(alpha) || math.IsNaN(beta) {
		return nil, fmt.Errorf("regressor: linear fit is degenerate")
	}
	return &Linear{Intercept: alpha, Slope: beta, IsFitted: true}, nil
}

func (m *Linear) Kind() Kind { return KindLinear }

func (m *Linear) Predict(x float64) float64 {
	return m.Intercept + m.Slope*x
}

func (m *Linear) Fitted() bool { return m != nil && m.IsFitted }
