package testutil

import (
	"time"

	"carboncast/internal/forecast/models"
	"carboncast/internal/ml/regressor"
	"carboncast/internal/ml/scaler"
	"carboncast/pkg/domain"
)

// StubOutputs are the constant predictions of a stub model set.
type StubOutputs struct {
	Linear, RandomForest, XGBoost, Neural float64
}

// StubModelSet returns a ready model set whose four models predict constants,
// behind an identity scaler. It avoids training in tests that only exercise
// the serving path.
func StubModelSet(sector domain.Sector, out StubOutputs) *models.ModelSet {
	set := &models.ModelSet{
		Sector: sector,
		Scaler: &scaler.Standard{Mean: 0, Scale: 1, Fitted: true},
		Models: map[regressor.Kind]regressor.Regressor{
			regressor.KindLinear: &regressor.Linear{Intercept: out.Linear, IsFitted: true},
			regressor.KindRandomForest: &regressor.Forest{Trees: []regressor.Tree{
				{Nodes: []regressor.Node{{Leaf: true, Value: out.RandomForest}}},
			}},
			regressor.KindXGBoost: &regressor.Boosted{Base: out.XGBoost, IsFitted: true},
			regressor.KindNeural: &regressor.Network{Layers: []regressor.Dense{
				{In: 1, Out: 1, W: []float64{0}, B: []float64{out.Neural}},
			}},
		},
		TrainedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		TestMAE:   map[regressor.Kind]float64{},
	}
	if err := set.Stamp(); err != nil {
		panic(err)
	}
	return set
}

// UniformStub returns a StubModelSet where every model predicts v.
func UniformStub(sector domain.Sector, v float64) *models.ModelSet {
	return StubModelSet(sector, StubOutputs{Linear: v, RandomForest: v, XGBoost: v, Neural: v})
}
