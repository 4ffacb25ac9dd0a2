package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	api "github.com/oshokin/quarantine-engine/internal/api/grpc/quarantine"
	"github.com/oshokin/quarantine-engine/internal/config"
	"github.com/oshokin/quarantine-engine/internal/service/client"
	"github.com/oshokin/quarantine-engine/internal/version"
)

var (
	// cfgPath stores the configuration file path.
	cfgPath string
	// serverAddress overrides the address from the settings.
	serverAddress string
	// retry keeps retrying mutations while the server is unavailable.
	retry bool
	// at is the RFC 3339 instant of a recorded event.
	at string

	// rootCmd represents the base command of the quarantine control tool.
	rootCmd = &cobra.Command{
		Use:   "quarantine-ctl",
		Short: "Inspect and drive a quarantine server.",
		Long: `Records and revokes quarantine events, prints or follows the derived status
and manages the quarantine-end banner on a running quarantine-server.`,
		SilenceUsage: true,
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Print the current quarantine status.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithSignals(func(ctx context.Context) error {
				return client.Status(ctx, options(cmd))
			})
		},
	}

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Follow quarantine status changes until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithSignals(func(ctx context.Context) error {
				return client.Watch(ctx, options(cmd))
			})
		},
	}

	recordCmd = &cobra.Command{
		Use:   "record {medical|self-diagnosis|contact <red|yellow>|self-monitoring}",
		Short: "Record a quarantine event.",
		Long: `Records a quarantine event. The event instant defaults to the server clock
and can be set with --at in RFC 3339 format. Contacts require a severity.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			event, err := api.ParseEvent(args[0])
			if err != nil {
				return err
			}

			var severity string
			if len(args) > 1 {
				severity = args[1]
			}

			var instant time.Time
			if at != "" {
				if instant, err = time.Parse(time.RFC3339, at); err != nil {
					return fmt.Errorf("parse --at: %w", err)
				}
			}

			return runWithSignals(func(ctx context.Context) error {
				return client.Record(ctx, options(cmd), event, severity, instant)
			})
		},
	}

	revokeCmd = &cobra.Command{
		Use:   "revoke {medical|self-diagnosis|self-monitoring}",
		Short: "Revoke a previously recorded event.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			event, err := api.ParseEvent(args[0])
			if err != nil {
				return err
			}

			return runWithSignals(func(ctx context.Context) error {
				return client.Revoke(ctx, options(cmd), event)
			})
		},
	}

	bannerCmd = &cobra.Command{
		Use:   "banner",
		Short: "Inspect or acknowledge the quarantine-end banner.",
	}

	bannerShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Print whether the quarantine-end banner is raised.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithSignals(func(ctx context.Context) error {
				return client.ShowBanner(ctx, options(cmd))
			})
		},
	}

	bannerAckCmd = &cobra.Command{
		Use:   "ack",
		Short: "Acknowledge and clear the quarantine-end banner.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithSignals(func(ctx context.Context) error {
				return client.AckBanner(ctx, options(cmd))
			})
		},
	}
)

// Execute runs the quarantine-ctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// options builds client options from the persistent flags.
func options(cmd *cobra.Command) *client.Options {
	return &client.Options{
		ConfigPath:    cfgPath,
		ServerAddress: serverAddress,
		Retry:         retry,
		Out:           cmd.OutOrStdout(),
	}
}

// runWithSignals runs fn with a context canceled on SIGINT or SIGTERM.
func runWithSignals(fn func(ctx context.Context) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	return fn(ctx)
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVarP(&serverAddress, "server", "s", "", "server address (overrides settings)")
	flags.BoolVar(&retry, "retry", false, "keep retrying while the server is unavailable")

	recordCmd.Flags().StringVar(&at, "at", "", "event instant in RFC 3339 format (default: now)")

	bannerCmd.AddCommand(bannerShowCmd, bannerAckCmd)
	rootCmd.AddCommand(statusCmd, watchCmd, recordCmd, revokeCmd, bannerCmd)
}
