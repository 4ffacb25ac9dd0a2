package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/quarantine-engine/internal/config"
	"github.com/oshokin/quarantine-engine/internal/service/server"
	"github.com/oshokin/quarantine-engine/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// eventsFile overrides where the Event Store is persisted.
	eventsFile string
	// rulesFile overrides the quarantine rules YAML.
	rulesFile string
	// metricsAddress overrides the Prometheus listen address.
	metricsAddress string

	// rootCmd represents the base command for running the quarantine server.
	rootCmd = &cobra.Command{
		Use:   "quarantine-server [listen-address]",
		Short: "Run the quarantine engine behind a gRPC API.",
		Long: `Starts the quarantine engine and the gRPC server that records events and streams statuses.

Only the port from server_addr in the settings is used for listening (e.g., :8080).
Listen address can be provided as argument to override it (e.g., :9090, 0.0.0.0:8080).
Recorded events are persisted to a JSON file and survive restarts.
When a rules file is configured it is watched and reloaded on change.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			return server.Run(ctx, &server.Options{
				ConfigPath:     configPath,
				ListenAddress:  listenAddress,
				EventsFile:     eventsFile,
				RulesFile:      rulesFile,
				MetricsAddress: metricsAddress,
			})
		},
	}
)

// Execute runs the quarantine-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVarP(&eventsFile, "events-file", "e", "", "path to persist recorded events (overrides settings)")
	flags.StringVarP(&rulesFile, "rules-file", "r", "", "path to quarantine rules YAML (overrides settings)")
	flags.StringVarP(&metricsAddress, "metrics-addr", "m", "", "Prometheus listen address (overrides settings)")
}
