package artifact

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carboncast/internal/forecast/models"
	"carboncast/internal/ml/regressor"
	"carboncast/internal/ml/scaler"
	"carboncast/pkg/domain"
	"carboncast/pkg/platform/sentinel"
	"carboncast/pkg/testutil"
)

// fittedSet trains small real models so the round trip covers every field
// the encoders touch.
func fittedSet(t *testing.T, sector domain.Sector) *models.ModelSet {
	t.Helper()
	ctx := context.Background()
	xs := make([]float64, 60)
	ys := make([]float64, 60)
	for i := range xs {
		xs[i] = float64(i)
		ys[i] = 3*float64(i) + float64(i%7)
	}
	sc, err := scaler.Fit(xs)
	require.NoError(t, err)
	zs, err := sc.TransformAll(xs)
	require.NoError(t, err)

	lin, err := regressor.FitLinear(zs, ys)
	require.NoError(t, err)
	forest, err := regressor.FitForest(ctx, zs, ys, regressor.ForestParams{Trees: 4, MaxDepth: 4, Seed: 1})
	require.NoError(t, err)
	bp := regressor.DefaultBoostParams()
	bp.Rounds = 10
	boosted, err := regressor.FitBoosted(ctx, zs, ys, bp)
	require.NoError(t, err)
	np := regressor.DefaultNetworkParams()
	np.Epochs = 2
	net, _, err := regressor.FitNetwork(ctx, zs, ys, zs, ys, np)
	require.NoError(t, err)

	set := &models.ModelSet{
		Sector: sector,
		Scaler: sc,
		Models: map[regressor.Kind]regressor.Regressor{
			regressor.KindLinear:       lin,
			regressor.KindRandomForest: forest,
			regressor.KindXGBoost:      boosted,
			regressor.KindNeural:       net,
		},
		TrainedAt: time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC),
		TestMAE: map[regressor.Kind]float64{
			regressor.KindLinear:       1.5,
			regressor.KindRandomForest: 2.25,
			regressor.KindXGBoost:      1.75,
			regressor.KindNeural:       3,
		},
	}
	require.NoError(t, set.Stamp())
	return set
}

func assertSamePredictions(t *testing.T, want, got *models.ModelSet) {
	t.Helper()
	assert.Equal(t, want.Sector, got.Sector)
	assert.Equal(t, *want.Scaler, *got.Scaler)
	assert.Equal(t, want.Version, got.Version)
	assert.True(t, want.TrainedAt.Equal(got.TrainedAt), "trained at %v, loaded %v", want.TrainedAt, got.TrainedAt)
	assert.Equal(t, want.TestMAE, got.TestMAE)
	for _, x := range []float64{-1.5, 0, 0.3, 2} {
		for _, k := range regressor.Kinds {
			assert.Equal(t, want.Models[k].Predict(x), got.Models[k].Predict(x), "%s at %v", k, x)
		}
	}
}

func TestFSStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewFSStore(t.TempDir())
	want := fittedSet(t, domain.SectorElectricity)

	require.NoError(t, store.Save(ctx, domain.SectorElectricity, want))
	for _, name := range Files {
		assert.FileExists(t, filepath.Join(store.Root(), "electricity", name))
		assert.NoFileExists(t, filepath.Join(store.Root(), "electricity", name+".tmp"))
	}

	got, err := store.Load(ctx, domain.SectorElectricity)
	require.NoError(t, err)
	assert.True(t, got.Ready())
	assertSamePredictions(t, want, got)
}

func TestFSStore_SaveOverwrites(t *testing.T) {
	ctx := context.Background()
	store := NewFSStore(t.TempDir())
	sector := domain.SectorTransport

	require.NoError(t, store.Save(ctx, sector, testutil.UniformStub(sector, 1)))
	require.NoError(t, store.Save(ctx, sector, testutil.UniformStub(sector, 7)))

	got, err := store.Load(ctx, sector)
	require.NoError(t, err)
	assert.Equal(t, 7.0, got.Models[regressor.KindLinear].Predict(0))
}

func TestFSStore_MissingArtifactFailsWholeLoad(t *testing.T) {
	ctx := context.Background()
	store := NewFSStore(t.TempDir())
	sector := domain.SectorManufacturing
	require.NoError(t, store.Save(ctx, sector, testutil.UniformStub(sector, 2)))
	require.NoError(t, os.Remove(filepath.Join(store.Root(), string(sector), FileNeural)))

	_, err := store.Load(ctx, sector)
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestFSStore_CorruptArtifact(t *testing.T) {
	ctx := context.Background()
	store := NewFSStore(t.TempDir())
	sector := domain.SectorConstruction
	require.NoError(t, store.Save(ctx, sector, testutil.UniformStub(sector, 2)))
	path := filepath.Join(store.Root(), string(sector), FileScaler)
	require.NoError(t, os.WriteFile(path, []byte("not gob"), 0o600))

	_, err := store.Load(ctx, sector)
	assert.ErrorIs(t, err, sentinel.ErrCorrupt)
}

func TestFSStore_LoadRejectsStructurallyBrokenModels(t *testing.T) {
	ctx := context.Background()
	sector := domain.SectorConstruction

	testutil.Given(t, "a forest tree whose split points back at itself", func(t *testing.T) {
		store := NewFSStore(t.TempDir())
		set := testutil.UniformStub(sector, 2)
		set.Models[regressor.KindRandomForest] = &regressor.Forest{Trees: []regressor.Tree{
			{Nodes: []regressor.Node{{Threshold: 0, Left: 0, Right: 1}, {Leaf: true, Value: 2}}},
		}}
		require.NoError(t, set.Stamp())
		require.NoError(t, store.Save(ctx, sector, set))

		testutil.Then(t, "loading reports corruption instead of serving it", func(t *testing.T) {
			_, err := store.Load(ctx, sector)
			require.Error(t, err)
			assert.ErrorIs(t, err, sentinel.ErrCorrupt)
			assert.Contains(t, err.Error(), string(regressor.KindRandomForest))
		})
	})

	testutil.Given(t, "network weights whose last layer has no outputs", func(t *testing.T) {
		store := NewFSStore(t.TempDir())
		require.NoError(t, store.Save(ctx, sector, testutil.UniformStub(sector, 2)))
		path := filepath.Join(store.Root(), string(sector), FileNeural)
		require.NoError(t, os.WriteFile(path, []byte(`{"format":"carboncast.mlp/v1","layers":[{"in":1,"out":0,"weights":[],"biases":[]}]}`), 0o600))

		testutil.Then(t, "loading reports corruption", func(t *testing.T) {
			_, err := store.Load(ctx, sector)
			assert.ErrorIs(t, err, sentinel.ErrCorrupt)
		})
	})
}

func TestFSStore_LoadChecksRecordedVersion(t *testing.T) {
	ctx := context.Background()
	store := NewFSStore(t.TempDir())
	sector := domain.SectorTransport
	require.NoError(t, store.Save(ctx, sector, testutil.UniformStub(sector, 4)))

	// Models from one save paired with metadata from another.
	other := NewFSStore(t.TempDir())
	require.NoError(t, other.Save(ctx, sector, testutil.UniformStub(sector, 5)))
	meta, err := os.ReadFile(filepath.Join(other.Root(), string(sector), FileMeta))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(store.Root(), string(sector), FileMeta), meta, 0o600))

	_, err = store.Load(ctx, sector)
	assert.ErrorIs(t, err, sentinel.ErrCorrupt)

	require.NoError(t, os.Remove(filepath.Join(store.Root(), string(sector), FileMeta)))
	_, err = store.Load(ctx, sector)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestFSStore_VersionSurvivesReload(t *testing.T) {
	ctx := context.Background()
	sector := domain.SectorElectricity
	set := testutil.UniformStub(sector, 3)
	store := NewFSStore(t.TempDir())
	require.NoError(t, store.Save(ctx, sector, set))

	// A fresh store over the same directory stands in for a restart or a
	// second replica.
	a, err := NewFSStore(store.Root()).Load(ctx, sector)
	require.NoError(t, err)
	b, err := NewFSStore(store.Root()).Load(ctx, sector)
	require.NoError(t, err)
	assert.Equal(t, set.Version, a.Version)
	assert.Equal(t, a.Version, b.Version)
	assert.NotEqual(t, testutil.UniformStub(sector, 4).Version, a.Version)
}

func TestFSStore_SaveRejectsIncompleteSet(t *testing.T) {
	store := NewFSStore(t.TempDir())
	set := testutil.UniformStub(domain.SectorAgriculture, 1)
	delete(set.Models, regressor.KindXGBoost)

	assert.Error(t, store.Save(context.Background(), domain.SectorAgriculture, set))
	assert.NoDirExists(t, filepath.Join(store.Root(), "agriculture"))
}

func TestFSStore_LoadAllReportsPartialAvailability(t *testing.T) {
	ctx := context.Background()
	store := NewFSStore(t.TempDir())
	require.NoError(t, store.Save(ctx, domain.SectorElectricity, testutil.UniformStub(domain.SectorElectricity, 1)))
	require.NoError(t, store.Save(ctx, domain.SectorAgriculture, testutil.UniformStub(domain.SectorAgriculture, 1)))

	res := store.LoadAll(ctx)
	assert.False(t, res.AllLoaded)
	assert.Len(t, res.Sets, 2)
	assert.Len(t, res.Errors, 3)
	assert.Contains(t, res.Sets, domain.SectorElectricity)
	assert.ErrorIs(t, res.Errors[domain.SectorTransport], sentinel.ErrNotFound)

	for _, s := range domain.AllSectors() {
		require.NoError(t, store.Save(ctx, s, testutil.UniformStub(s, 1)))
	}
	assert.True(t, store.LoadAll(ctx).AllLoaded)
}

type memoryS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryS3() *memoryS3 {
	return &memoryS3{objects: map[string][]byte{}}
}

func (m *memoryS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *memoryS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestS3Store_RoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newMemoryS3()
	store := NewS3StoreWithClient(fake, "models", "carboncast/v1")
	want := fittedSet(t, domain.SectorAgriculture)

	require.NoError(t, store.Save(ctx, domain.SectorAgriculture, want))
	assert.Contains(t, fake.objects, "models/carboncast/v1/agriculture/neural.json")
	assert.Contains(t, fake.objects, "models/carboncast/v1/agriculture/scaler.gob")

	got, err := store.Load(ctx, domain.SectorAgriculture)
	require.NoError(t, err)
	assertSamePredictions(t, want, got)
}

func TestS3Store_MissingObject(t *testing.T) {
	store := NewS3StoreWithClient(newMemoryS3(), "models", "")

	_, err := store.Load(context.Background(), domain.SectorElectricity)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	res := store.LoadAll(context.Background())
	assert.False(t, res.AllLoaded)
	assert.Len(t, res.Errors, len(domain.AllSectors()))
}
