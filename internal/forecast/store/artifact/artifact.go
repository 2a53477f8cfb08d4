// Package artifact persists model sets. Every sector is stored as six
// artifacts (three gob-encoded classical models, the network's JSON weights,
// the gob-encoded scaler and a JSON metadata record) and a set is only ever
// loaded whole.
package artifact

import (
	"bytes"
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"carboncast/internal/forecast/models"
	"carboncast/internal/ml/regressor"
	"carboncast/internal/ml/scaler"
	"carboncast/pkg/domain"
	"carboncast/pkg/platform/sentinel"
)

const (
	FileLinear       = "linear.gob"
	FileRandomForest = "random_forest.gob"
	FileXGBoost      = "xgboost.gob"
	FileNeural       = "neural.json"
	FileScaler       = "scaler.gob"
	FileMeta         = "meta.json"
)

// Files lists the artifacts that make up one model set.
var Files = []string{FileLinear, FileRandomForest, FileXGBoost, FileNeural, FileScaler, FileMeta}

// setMeta records what the model files alone cannot: the content version the
// set was served under and its training report.
type setMeta struct {
	Version   string                     `json:"version"`
	TrainedAt time.Time                  `json:"trained_at"`
	TestMAE   map[regressor.Kind]float64 `json:"test_mae,omitempty"`
}

// Store persists model sets per sector.
type Store interface {
	Save(ctx context.Context, sector domain.Sector, set *models.ModelSet) error
	Load(ctx context.Context, sector domain.Sector) (*models.ModelSet, error)
	LoadAll(ctx context.Context) LoadResult
}

// LoadResult reports a LoadAll pass. AllLoaded is true only when every
// sector loaded.
type LoadResult struct {
	Sets      map[domain.Sector]*models.ModelSet
	Errors    map[domain.Sector]error
	AllLoaded bool
}

// blobs maps artifact file names to their encoded bytes.
type blobs map[string][]byte

func encodeSet(set *models.ModelSet) (blobs, error) {
	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("encode model set: %w", err)
	}
	out := make(blobs, len(Files))

	gobbed := map[string]any{
		FileLinear:       set.Models[regressor.KindLinear],
		FileRandomForest: set.Models[regressor.KindRandomForest],
		FileXGBoost:      set.Models[regressor.KindXGBoost],
		FileScaler:       set.Scaler,
	}
	for name, v := range gobbed {
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(v); err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}
		out[name] = buf.Bytes()
	}

	nn, err := json.Marshal(set.Models[regressor.KindNeural])
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", FileNeural, err)
	}
	out[FileNeural] = nn

	meta, err := json.Marshal(setMeta{Version: set.Version, TrainedAt: set.TrainedAt.UTC(), TestMAE: set.TestMAE})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", FileMeta, err)
	}
	out[FileMeta] = meta
	return out, nil
}

func decodeSet(sector domain.Sector, b blobs) (*models.ModelSet, error) {
	for _, name := range Files {
		if _, ok := b[name]; !ok {
			return nil, fmt.Errorf("%s/%s: %w", sector, name, sentinel.ErrNotFound)
		}
	}

	var (
		linear  regressor.Linear
		forest  regressor.Forest
		boosted regressor.Boosted
		sc      scaler.Standard
		net     regressor.Network
	)
	targets := []struct {
		name string
		v    any
	}{
		{FileLinear, &linear},
		{FileRandomForest, &forest},
		{FileXGBoost, &boosted},
		{FileScaler, &sc},
	}
	for _, t := range targets {
		if err := gob.NewDecoder(bytes.NewReader(b[t.name])).Decode(t.v); err != nil {
			return nil, fmt.Errorf("%s/%s: %w: %v", sector, t.name, sentinel.ErrCorrupt, err)
		}
	}
	if err := json.Unmarshal(b[FileNeural], &net); err != nil {
		return nil, fmt.Errorf("%s/%s: %w: %v", sector, FileNeural, sentinel.ErrCorrupt, err)
	}
	var meta setMeta
	if err := json.Unmarshal(b[FileMeta], &meta); err != nil {
		return nil, fmt.Errorf("%s/%s: %w: %v", sector, FileMeta, sentinel.ErrCorrupt, err)
	}
	if meta.TestMAE == nil {
		meta.TestMAE = map[regressor.Kind]float64{}
	}

	set := &models.ModelSet{
		Sector: sector,
		Scaler: &sc,
		Models: map[regressor.Kind]regressor.Regressor{
			regressor.KindLinear:       &linear,
			regressor.KindRandomForest: &forest,
			regressor.KindXGBoost:      &boosted,
			regressor.KindNeural:       &net,
		},
		TrainedAt: meta.TrainedAt,
		Version:   meta.Version,
		TestMAE:   meta.TestMAE,
	}
	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", sector, sentinel.ErrCorrupt, err)
	}
	for _, k := range regressor.Kinds {
		if v, ok := set.Models[k].(regressor.Validator); ok {
			if err := v.Validate(); err != nil {
				return nil, fmt.Errorf("%s/%s: %w: %v", sector, k, sentinel.ErrCorrupt, err)
			}
		}
	}
	fp, err := models.Fingerprint(set)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", sector, sentinel.ErrCorrupt, err)
	}
	if fp != set.Version {
		return nil, fmt.Errorf("%s: %w: artifacts do not match recorded version %s", sector, sentinel.ErrCorrupt, set.Version)
	}
	return set, nil
}

// loadAll runs load for every sector in parallel. A failing sector never
// cancels the others.
func loadAll(ctx context.Context, load func(context.Context, domain.Sector) (*models.ModelSet, error)) LoadResult {
	sectors := domain.AllSectors()
	res := LoadResult{
		Sets:   make(map[domain.Sector]*models.ModelSet, len(sectors)),
		Errors: make(map[domain.Sector]error),
	}
	var mu sync.Mutex
	var g errgroup.Group
	for _, s := range sectors {
		g.Go(func() error {
			set, err := load(ctx, s)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Errors[s] = err
				return nil
			}
			res.Sets[s] = set
			return nil
		})
	}
	_ = g.Wait()
	res.AllLoaded = len(res.Errors) == 0
	return res
}
