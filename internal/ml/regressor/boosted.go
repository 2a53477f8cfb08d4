package regressor

import (
	"context"

	"gonum.org/v1/gonum/stat"
)

// BoostParams configures gradient boosted trees.
type BoostParams struct {
	Rounds       int
	LearningRate float64
	MaxDepth     int
	// Lambda is the L2 penalty on leaf weights.
	Lambda float64
	// MinChildWeight is the minimum hessian sum per child; with squared
	// error every sample contributes 1.
	MinChildWeight float64
}

// DefaultBoostParams matches the production ensemble: 100 rounds at 0.1,
// depth 6.
func DefaultBoostParams() BoostParams {
	return BoostParams{Rounds: 100, LearningRate: 0.1, MaxDepth: 6, Lambda: 1, MinChildWeight: 1}
}

// Boosted is an additive model of shrunken regression trees on top of a base
// score.
type Boosted struct {
	Base     float64
	Trees    []Tree
	IsFitted bool
}

// FitBoosted fits squared-error gradient boosting. Each round grows a tree on
// the current gradients with leaf weight -G/(H+λ) scaled by the learning
// rate.
func FitBoosted(ctx context.Context, xs, ys []float64, p BoostParams) (*Boosted, error) {
	if err := checkTrainingData(xs, ys); err != nil {
		return nil, err
	}
	sx, sy := sortByInput(xs, ys)
	base := stat.Mean(sy, nil)

	preds := make([]float64, len(sy))
	for i := range preds {
		preds[i] = base
	}
	grad := make([]float64, len(sy))

	b := &treeBuilder{
		xs:       sx,
		vs:       grad,
		maxDepth: p.MaxDepth,
		minSplit: 2,
		minChild: p.MinChildWeight,
		score:    func(g, h float64) float64 { return g * g / (h + p.Lambda) },
		leaf:     func(g, h float64) float64 { return -g / (h + p.Lambda) * p.LearningRate },
		onLeaf: func(lo, hi int, value float64) {
			for i := lo; i < hi; i++ {
				preds[i] += value
			}
		},
	}

	trees := make([]Tree, 0, p.Rounds)
	for range p.Rounds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := range grad {
			grad[i] = preds[i] - sy[i]
		}
		trees = append(trees, b.grow())
	}
	return &Boosted{Base: base, Trees: trees, IsFitted: true}, nil
}

func (m *Boosted) Kind() Kind { return KindXGBoost }

func (m *Boosted) Predict(x float64) float64 {
	out := m.Base
	for _, t := range m.Trees {
		out += t.Predict(x)
	}
	return out
}

func (m *Boosted) Fitted() bool { return m != nil && m.IsFitted }

func (m *Boosted) Validate() error { return validateTrees(m.Trees) }
