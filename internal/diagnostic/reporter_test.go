package diagnostic

import (
	"bytes"
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/oshokin/quarantine-engine/internal/logger"
	"github.com/oshokin/quarantine-engine/internal/metrics"
)

// TestLogReporter_Report verifies the anomaly is logged and counted.
func TestLogReporter_Report(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	ctx := logger.ToContext(context.Background(), logger.New(zapcore.DebugLevel, zapcore.AddSync(&buf)))
	before := testutil.ToFloat64(metrics.AnomaliesTotal.WithLabelValues("test_category"))

	NewLogReporter(ctx).Report("test_category", "something odd")

	require.Contains(t, buf.String(), "something odd")
	require.Contains(t, buf.String(), "diagnostic")
	require.InDelta(t, before+1, testutil.ToFloat64(metrics.AnomaliesTotal.WithLabelValues("test_category")), 0.001)
}
