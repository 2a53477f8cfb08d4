package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carboncast/internal/ml/regressor"
	"carboncast/pkg/domain"
	dErrors "carboncast/pkg/domain-errors"
	"carboncast/pkg/testutil"
)

func TestRegistry_StartsUninitialized(t *testing.T) {
	r := New()
	for _, s := range domain.AllSectors() {
		assert.Equal(t, StateUninitialized, r.State(s))
	}
	assert.False(t, r.AllReady())

	_, err := r.Snapshot(domain.SectorElectricity)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotReady))
}

func TestRegistry_TrainingLifecycle(t *testing.T) {
	testutil.Given(t, "an uninitialized sector", func(t *testing.T) {
		r := New()
		sector := domain.SectorTransport

		testutil.When(t, "training starts", func(t *testing.T) {
			require.NoError(t, r.BeginTraining(sector))

			testutil.Then(t, "the sector is training and not servable", func(t *testing.T) {
				assert.Equal(t, StateTraining, r.State(sector))
				_, err := r.Snapshot(sector)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeNotReady))
			})

			testutil.Then(t, "a second training is rejected", func(t *testing.T) {
				err := r.BeginTraining(sector)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
			})
		})

		testutil.When(t, "the set is installed", func(t *testing.T) {
			require.NoError(t, r.Install(sector, testutil.UniformStub(sector, 10)))

			testutil.Then(t, "the sector is ready with generation 1", func(t *testing.T) {
				snap, err := r.Snapshot(sector)
				require.NoError(t, err)
				assert.Equal(t, StateReady, snap.State)
				assert.Equal(t, uint64(1), snap.Generation)
			})
		})
	})
}

func TestRegistry_AbortRestoresPreviousState(t *testing.T) {
	r := New()
	sector := domain.SectorAgriculture

	require.NoError(t, r.BeginTraining(sector))
	r.Abort(sector)
	assert.Equal(t, StateUninitialized, r.State(sector))

	original := testutil.UniformStub(sector, 1)
	require.NoError(t, r.Install(sector, original))
	require.NoError(t, r.BeginTraining(sector))
	r.Abort(sector)

	snap, err := r.Snapshot(sector)
	require.NoError(t, err)
	assert.Same(t, original, snap.Set, "a failed retrain keeps the previous set")
}

func TestRegistry_InstallRejectsIncompleteSets(t *testing.T) {
	r := New()
	sector := domain.SectorConstruction

	partial := testutil.UniformStub(sector, 1)
	delete(partial.Models, regressor.KindNeural)
	err := r.Install(sector, partial)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	assert.Equal(t, StateUninitialized, r.State(sector))

	unfitted := testutil.UniformStub(sector, 1)
	unfitted.Scaler.Fitted = false
	assert.Error(t, r.Install(sector, unfitted))

	wrongSector := testutil.UniformStub(domain.SectorTransport, 1)
	assert.Error(t, r.Install(sector, wrongSector))
}

func TestRegistry_InstallIsolatesSectors(t *testing.T) {
	r := New()
	for _, s := range domain.AllSectors() {
		require.NoError(t, r.Install(s, testutil.UniformStub(s, 5)))
	}
	before, err := r.Snapshot(domain.SectorElectricity)
	require.NoError(t, err)

	require.NoError(t, r.BeginTraining(domain.SectorTransport))
	require.NoError(t, r.Install(domain.SectorTransport, testutil.UniformStub(domain.SectorTransport, 9)))

	after, err := r.Snapshot(domain.SectorElectricity)
	require.NoError(t, err)
	assert.Same(t, before.Set, after.Set)
	assert.Equal(t, before.Generation, after.Generation)

	transport, err := r.Snapshot(domain.SectorTransport)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), transport.Generation)
	assert.True(t, r.AllReady())
}

func TestRegistry_UnknownSector(t *testing.T) {
	r := New()
	_, err := r.Snapshot(domain.Sector("mining"))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	assert.Error(t, r.BeginTraining(domain.Sector("mining")))
}

func TestRegistry_ConcurrentReadersAndWriter(t *testing.T) {
	r := New()
	sector := domain.SectorElectricity
	require.NoError(t, r.Install(sector, testutil.UniformStub(sector, 1)))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				snap, err := r.Snapshot(sector)
				if err == nil {
					assert.True(t, snap.Set.Ready())
				}
			}
		}()
	}
	for i := range 50 {
		if r.BeginTraining(sector) == nil {
			_ = r.Install(sector, testutil.UniformStub(sector, float64(i)))
		}
	}
	wg.Wait()
	assert.Equal(t, StateReady, r.State(sector))
}
