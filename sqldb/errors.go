package sqldb

import (
	"context"
	"fmt"

	"github.com/ridge/quartz/tlog"
	"go.uber.org/zap"
)

// BatchError is returned when a statement batch fails
type BatchError struct {
	Query string
	Rows  [][]any

	// Row is the index of the failed row; -1 if the statement could not be
	// prepared
	Row int
	Err error
}

func (e *BatchError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("failed to prepare %s: %v", e.Query, e.Err)
	}
	return fmt.Sprintf("batch %s failed at row %d of %d: %v", e.Query, e.Row+1, len(e.Rows), e.Err)
}

// Unwrap returns the driver error
func (e *BatchError) Unwrap() error {
	return e.Err
}

func batchFailed(ctx context.Context, query string, rows [][]any, row int, err error) error {
	logger := tlog.Get(ctx)
	logger.Error("Batch failed", zap.String("query", query), zap.Int("row", row), zap.Int("rows", len(rows)), zap.Error(err))
	for i, r := range rows {
		logger.Error("Batch row", zap.Int("index", i), zap.Any("values", r))
	}
	return &BatchError{Query: query, Rows: rows, Row: row, Err: err}
}
