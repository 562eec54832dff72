package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrissnell/flarewatch/internal/flare"
	"github.com/chrissnell/flarewatch/pkg/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(config.StorageData{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "runs.db"),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func sampleFlares() []flare.FlareRecord {
	return []flare.FlareRecord{
		{StartTime: 50, Class: "5.0B", StartPoint: 49.2, PeakTime: 54, EndTime: 61.7, PeakRate: 15, BackgroundLevel: 10, RiseRate: 10},
		{StartTime: 300, Class: "2.1C", StartPoint: 298.4, PeakTime: 306, EndTime: 340.1, PeakRate: 31, BackgroundLevel: 10, RiseRate: 11},
	}
}

func TestSaveAndLoadRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := &Run{Source: "ch2_xsm_20210915.csv", SampleCount: 86400, BinWidth: 60, KernelWidth: 10}
	require.NoError(t, store.SaveRun(ctx, run, sampleFlares()))

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, 2, run.FlareCount)
	assert.False(t, run.CreatedAt.IsZero())

	loaded, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Source, loaded.Source)
	assert.Equal(t, 86400, loaded.SampleCount)
	assert.Equal(t, 2, loaded.FlareCount)

	flares, err := store.GetFlares(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, sampleFlares(), flares)
}

func TestSaveRunWithoutFlares(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := &Run{Source: "quiet.csv"}
	require.NoError(t, store.SaveRun(ctx, run, nil))

	flares, err := store.GetFlares(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, flares)
}

func TestListRunsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"a.csv", "b.csv", "c.csv"} {
		run := &Run{Source: name, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, store.SaveRun(ctx, run, nil))
	}

	runs, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c.csv", runs[0].Source)
	assert.Equal(t, "b.csv", runs[1].Source)

	all, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDeleteRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := &Run{Source: "flare.csv"}
	require.NoError(t, store.SaveRun(ctx, run, sampleFlares()))
	require.NoError(t, store.DeleteRun(ctx, run.ID))

	_, err := store.GetRun(ctx, run.ID)
	assert.ErrorIs(t, err, ErrRunNotFound)

	var remaining int64
	require.NoError(t, store.db.Model(&Flare{}).Where("run_id = ?", run.ID).Count(&remaining).Error)
	assert.Zero(t, remaining)

	assert.ErrorIs(t, store.DeleteRun(ctx, run.ID), ErrRunNotFound)
}

func TestMissingRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetRun(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = store.GetFlares(ctx, "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(config.StorageData{Driver: "mysql", DSN: "x"}, nil)
	assert.Error(t, err)
}
