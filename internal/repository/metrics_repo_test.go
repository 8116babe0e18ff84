package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ngmgroup/ngm-hub-core/pkg/database"
)

func newMetricsRepo(t *testing.T) *MetricsRepository {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.NewMemory(logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.NewMigrator(db, logger).Run())

	return NewMetricsRepository(db.DB, logger)
}

func TestMetricsCountByMethod(t *testing.T) {
	repo := newMetricsRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.LogScan(ctx, "scan", "native_text", true, 1.0, 840, 12))
	require.NoError(t, repo.LogScan(ctx, "scan", "native_text", true, 1.0, 512, 9))
	require.NoError(t, repo.LogScan(ctx, "scan", "local_ocr", false, 0.61, 40, 1800))

	counts, err := repo.CountByMethod(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"native_text": 2, "local_ocr": 1}, counts)
}

func TestMetricsCountByMethodEmpty(t *testing.T) {
	repo := newMetricsRepo(t)

	counts, err := repo.CountByMethod(context.Background())
	require.NoError(t, err)
	assert.Empty(t, counts)
}
