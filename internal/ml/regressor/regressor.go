// Package regressor implements the four single-feature regression models the
// forecaster ensembles: ordinary least squares, a random forest, gradient
// boosted trees and a small feed-forward network. Every model exposes the same
// Regressor capability so callers never branch on the concrete type.
package regressor

import (
	"errors"
	"fmt"
	"math"
)

// Kind names a model slot in a model set.
type Kind string

const (
	KindLinear       Kind = "linear"
	KindRandomForest Kind = "random_forest"
	KindXGBoost      Kind = "xgboost"
	KindNeural       Kind = "neural"
)

// Kinds lists every model slot in reporting order.
var Kinds = []Kind{KindLinear, KindRandomForest, KindXGBoost, KindNeural}

// ErrNotFitted is returned by fitting helpers when a model cannot be used.
var ErrNotFitted = errors.New("regressor: not fitted")

// Regressor predicts a target from one already-scaled feature.
type Regressor interface {
	Kind() Kind
	Predict(x float64) float64
	Fitted() bool
}

// Validator is implemented by models whose decoded structure can be
// inconsistent, such as tree indices or layer shapes.
type Validator interface {
	Validate() error
}

// MeanAbsoluteError scores r on (xs, ys).
func MeanAbsoluteError(r Regressor, xs, ys []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var total float64
	for i, x := range xs {
		total += math.Abs(r.Predict(x) - ys[i])
	}
	return total / float64(len(xs))
}

func checkTrainingData(xs, ys []float64) error {
	if len(xs) == 0 {
		return fmt.Errorf("regressor: empty training data")
	}
	if len(xs) != len(ys) {
		return fmt.Errorf("regressor: %d inputs but %d targets", len(xs), len(ys))
	}
	return nil
}
