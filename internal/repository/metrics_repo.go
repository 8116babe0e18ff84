package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// MetricsRepository persists one row per scan attempt to ocr_metrics.
// It satisfies scan.MetricsSink; callers treat writes as fire-and-forget.
type MetricsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMetricsRepository creates a new metrics repository
func NewMetricsRepository(db *sql.DB, logger *zap.Logger) *MetricsRepository {
	return &MetricsRepository{
		db:     db,
		logger: logger,
	}
}

// LogScan records one scan attempt
func (r *MetricsRepository) LogScan(ctx context.Context, agent, method string, success bool, confidence float64, charCount int, elapsedMs int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ocr_metrics (agent, extraction_method, success, confidence, char_count, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?)
	`, agent, method, success, confidence, charCount, elapsedMs)
	if err != nil {
		return fmt.Errorf("failed to log scan metric: %w", err)
	}
	return nil
}

// CountByMethod returns how many scans used each extraction method
func (r *MetricsRepository) CountByMethod(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT extraction_method, COUNT(*) FROM ocr_metrics GROUP BY extraction_method")
	if err != nil {
		return nil, fmt.Errorf("failed to count metrics: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var method string
		var n int
		if err := rows.Scan(&method, &n); err != nil {
			return nil, fmt.Errorf("failed to scan metric count: %w", err)
		}
		out[method] = n
	}
	return out, rows.Err()
}
