// Package metrics provides Prometheus metrics for the quarantine engine.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DerivationsTotal counts status derivations run by the engine.
	DerivationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quarantine_derivations_total",
		Help: "Total number of quarantine status derivations.",
	})

	// StatusForwardedTotal counts distinct statuses forwarded downstream, by kind.
	StatusForwardedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quarantine_status_forwarded_total",
		Help: "Total number of distinct quarantine statuses forwarded, by kind.",
	}, []string{"kind"})

	// BannerRaisedTotal counts quarantine-end banners raised on lapse.
	BannerRaisedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quarantine_end_banner_raised_total",
		Help: "Total number of quarantine-end banners raised.",
	})

	// ReminderOperationsTotal counts reminder scheduler calls, by reminder and operation.
	ReminderOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quarantine_reminder_operations_total",
		Help: "Total number of reminder operations, by reminder (self_retest/quarantine_end) and op (armed/kept/canceled/fired).",
	}, []string{"reminder", "op"})

	// AnomaliesTotal counts non-fatal anomalies reported to the diagnostic channel.
	AnomaliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quarantine_anomalies_total",
		Help: "Total number of diagnostic anomalies, by category.",
	}, []string{"category"})

	// RulesReloadTotal counts rules file reloads, by result.
	RulesReloadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quarantine_rules_reload_total",
		Help: "Total number of quarantine rules reloads, by result (changed/unchanged/failed).",
	}, []string{"result"})
)

// shutdownTimeout bounds the graceful stop of the metrics listener.
const shutdownTimeout = 5 * time.Second

// Handler returns the HTTP handler exposing the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("serve metrics: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown metrics: %w", err)
	}

	return nil
}
