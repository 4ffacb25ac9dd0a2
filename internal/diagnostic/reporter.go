// Package diagnostic is the non-fatal anomaly channel of the engine.
package diagnostic

import (
	"context"

	"github.com/oshokin/quarantine-engine/internal/logger"
	"github.com/oshokin/quarantine-engine/internal/metrics"
)

// LogReporter reports anomalies as warnings and counts them per category.
type LogReporter struct {
	// ctx carries the named logger.
	ctx context.Context
}

// NewLogReporter creates a reporter logging through the logger in ctx.
func NewLogReporter(ctx context.Context) *LogReporter {
	return &LogReporter{ctx: logger.WithName(ctx, "diagnostic")}
}

// Report records a non-fatal anomaly.
func (r *LogReporter) Report(category, message string) {
	metrics.AnomaliesTotal.WithLabelValues(category).Inc()
	logger.WarnKV(r.ctx, "Anomaly detected", "category", category, "message", message)
}
