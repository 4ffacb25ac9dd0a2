package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	api "github.com/oshokin/quarantine-engine/internal/api/grpc/quarantine"
	"github.com/oshokin/quarantine-engine/internal/config"
	"github.com/oshokin/quarantine-engine/internal/diagnostic"
	"github.com/oshokin/quarantine-engine/internal/domain/quarantine"
	"github.com/oshokin/quarantine-engine/internal/logger"
	"github.com/oshokin/quarantine-engine/internal/metrics"
	"github.com/oshokin/quarantine-engine/internal/reminder"
	"github.com/oshokin/quarantine-engine/internal/repository/events"
	"github.com/oshokin/quarantine-engine/internal/rules"
	"github.com/oshokin/quarantine-engine/internal/service/engine"
	"github.com/oshokin/quarantine-engine/internal/version"
)

// Options controls the quarantine-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the gRPC server.
	ListenAddress string
	// EventsFile overrides the Event Store JSON path from the settings.
	EventsFile string
	// RulesFile overrides the quarantine rules YAML path from the settings.
	RulesFile string
	// MetricsAddress overrides the Prometheus listen address from the settings.
	MetricsAddress string
}

// ErrNoServerAddress indicates missing server configuration.
var ErrNoServerAddress = errors.New("no server address configured")

// Run starts the engine and the gRPC server and blocks until ctx is canceled
// or a component fails. Loads configuration first, then applies overrides.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "quarantine-server")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	applyOverrides(settings, opts)

	if err = logger.Configure(settings.LogLevel); err != nil {
		return fmt.Errorf("configure logger: %w", err)
	}

	listenAddress, err := resolveListenAddress(settings.ServerAddress, opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	return serve(ctx, settings, lis)
}

// applyOverrides replaces settings with non-empty command line values.
func applyOverrides(settings *config.Config, opts *Options) {
	if opts.EventsFile != "" {
		settings.EventsFile = opts.EventsFile
	}

	if opts.RulesFile != "" {
		settings.RulesFile = opts.RulesFile
	}

	if opts.MetricsAddress != "" {
		settings.MetricsAddress = opts.MetricsAddress
	}
}

// serve runs every component on lis until ctx is done. The listener is
// closed on return.
func serve(ctx context.Context, settings *config.Config, lis net.Listener) error {
	defer func() {
		_ = lis.Close()
	}()

	store, err := events.Open(ctx, events.NewFileRepository(settings.EventsFile))
	if err != nil {
		return fmt.Errorf("open event store: %w", err)
	}

	holder, watcher, err := newRulesProvider(settings.RulesFile)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}

	scheduler := reminder.NewTimerScheduler(
		ctx,
		reminder.LogNotifier{},
		reminder.WithSelfRetestInterval(settings.RetestInterval),
	)
	defer scheduler.Close()

	quarantineEngine := engine.New(
		store,
		holder,
		scheduler,
		engine.WithDebounce(settings.Debounce),
		engine.WithReporter(diagnostic.NewLogReporter(ctx)),
	)

	handler := api.NewServer(quarantineEngine)
	grpcServer := grpc.NewServer()
	api.RegisterQuarantineServiceServer(grpcServer, handler)

	effective := holder.Get().Effective()

	logger.InfoKV(ctx, "Quarantine server listening",
		"version", version.Short(),
		"listen_address", lis.Addr().String(),
		"events_file", settings.EventsFile,
		"rules_file", settings.RulesFile,
		"red_hours", *effective.RedWarningQuarantineHours,
		"yellow_hours", *effective.YellowWarningQuarantineHours,
		"self_diagnosed_hours", *effective.SelfDiagnosedQuarantineHours,
	)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return quarantineEngine.Run(groupCtx)
	})

	if watcher != nil {
		group.Go(func() error {
			return watcher.Run(groupCtx)
		})
	}

	if settings.MetricsAddress != "" {
		group.Go(func() error {
			logger.InfoKV(ctx, "Serving metrics", "metrics_address", settings.MetricsAddress)
			return metrics.Serve(groupCtx, settings.MetricsAddress)
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		handler.Shutdown()
		grpcServer.GracefulStop()

		return nil
	})

	group.Go(func() error {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC: %w", err)
		}

		return nil
	})

	err = group.Wait()

	logger.Info(ctx, "Quarantine server stopped")

	return err
}

// newRulesProvider returns a holder with the built-in defaults when path is
// empty, otherwise a holder loaded from path and a watcher that keeps it current.
func newRulesProvider(path string) (*rules.Holder, *rules.Watcher, error) {
	if path == "" {
		return rules.NewHolder(quarantine.DefaultRules()), nil, nil
	}

	initial, err := rules.LoadFile(path)
	if err != nil {
		return nil, nil, err
	}

	holder := rules.NewHolder(initial)

	return holder, rules.NewWatcher(path, holder), nil
}

// resolveListenAddress determines the listen address for the gRPC server.
// If override is provided, uses it directly. Otherwise extracts port from configAddr.
// Returns appropriate listen address (e.g., ":8080" for port-only binding).
func resolveListenAddress(configAddr, override string) (string, error) {
	// Use override address if provided (e.g., ":9090", "0.0.0.0:8080").
	if override != "" {
		return override, nil
	}

	if configAddr == "" {
		return "", ErrNoServerAddress
	}

	_, port, err := net.SplitHostPort(configAddr)
	if err != nil {
		return "", fmt.Errorf("invalid server address format %q: %w", configAddr, err)
	}

	// Return port-only listen address to bind on all interfaces.
	return ":" + port, nil
}
