package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	api "github.com/oshokin/quarantine-engine/internal/api/grpc/quarantine"
	"github.com/oshokin/quarantine-engine/internal/config"
	"github.com/oshokin/quarantine-engine/internal/domain/quarantine"
	"github.com/oshokin/quarantine-engine/internal/logger"
	"github.com/oshokin/quarantine-engine/internal/service/common"
)

// Options configures how quarantine-ctl reaches the server.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string

	// ServerAddress overrides server address from config when specified.
	ServerAddress string

	// Retry keeps retrying mutations while the server is unavailable.
	Retry bool

	// Out receives the printed results.
	Out io.Writer
}

// defaultRetryInterval defines the delay between attempts while the server is unavailable.
const defaultRetryInterval = 1 * time.Second

// errSeverityRequired is returned when a contact is recorded without a severity.
var errSeverityRequired = errors.New("contact requires a severity (red or yellow)")

// Status prints the current quarantine status.
func Status(ctx context.Context, opts *Options) error {
	return withClient(ctx, opts, func(ctx context.Context, client *common.Client) error {
		current, err := client.GetStatus(ctx)
		if err != nil {
			return err
		}

		_, err = fmt.Fprintln(opts.Out, FormatStatus(current))

		return err
	})
}

// Watch prints every forwarded status until ctx is done.
func Watch(ctx context.Context, opts *Options) error {
	return withClient(ctx, opts, func(ctx context.Context, client *common.Client) error {
		err := client.WatchStatus(ctx, func(current quarantine.Status) error {
			_, err := fmt.Fprintf(opts.Out, "%s  %s\n", time.Now().Format(time.RFC3339), FormatStatus(current))
			return err
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}

		return err
	})
}

// Record records an event. severity is required for contacts and ignored
// otherwise; a zero at lets the server stamp the event.
func Record(ctx context.Context, opts *Options, event api.Event, severity string, at time.Time) error {
	request := api.EventRequest{Event: event, At: at}

	if event == api.EventContact {
		if severity == "" {
			return errSeverityRequired
		}

		parsed, err := quarantine.ParseSeverity(severity)
		if err != nil {
			return err
		}

		request.Severity = parsed
	}

	return withClient(ctx, opts, func(ctx context.Context, client *common.Client) error {
		return retry(ctx, opts.Retry, func() error {
			return client.RecordEvent(ctx, request)
		})
	})
}

// Revoke clears an event.
func Revoke(ctx context.Context, opts *Options, event api.Event) error {
	return withClient(ctx, opts, func(ctx context.Context, client *common.Client) error {
		return retry(ctx, opts.Retry, func() error {
			return client.RevokeEvent(ctx, event)
		})
	})
}

// ShowBanner prints whether the quarantine-end banner is raised.
func ShowBanner(ctx context.Context, opts *Options) error {
	return withClient(ctx, opts, func(ctx context.Context, client *common.Client) error {
		show, err := client.Banner(ctx)
		if err != nil {
			return err
		}

		message := "no quarantine-end banner"
		if show {
			message = "quarantine ended: banner is raised"
		}

		_, err = fmt.Fprintln(opts.Out, message)

		return err
	})
}

// AckBanner clears the quarantine-end banner.
func AckBanner(ctx context.Context, opts *Options) error {
	return withClient(ctx, opts, func(ctx context.Context, client *common.Client) error {
		return retry(ctx, opts.Retry, func() error {
			return client.SetBanner(ctx, false)
		})
	})
}

// FormatStatus converts a status to a readable line.
func FormatStatus(current quarantine.Status) string {
	switch current.Kind {
	case quarantine.KindJailedForever:
		return "quarantined, no end (medical confirmation)"
	case quarantine.KindJailedLimited:
		reason := "self-diagnosis"
		if current.ByContact {
			reason = "contact"
		}

		return fmt.Sprintf("quarantined until %s (%s)", current.End.Format(time.RFC3339), reason)
	case quarantine.KindFree:
		if current.SelfMonitoring {
			return "free, self-monitoring"
		}

		return "free"
	default:
		return current.String()
	}
}

// withClient loads settings, connects and runs fn with a named logger context.
func withClient(ctx context.Context, opts *Options, fn func(context.Context, *common.Client) error) error {
	ctx = logger.WithName(ctx, "quarantine-ctl")

	serverAddress, timeout, err := resolveServer(opts)
	if err != nil {
		return err
	}

	client, err := common.Dial(ctx, serverAddress, common.WithCallTimeout(timeout))
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	logger.DebugKV(ctx, "Connected", "server_address", serverAddress)

	return fn(ctx, client)
}

// resolveServer picks the server address and call timeout. A missing settings
// file is tolerated when the address is given explicitly.
func resolveServer(opts *Options) (string, time.Duration, error) {
	cfg, err := config.Load(opts.ConfigPath)

	switch {
	case err == nil:
		if opts.ServerAddress != "" {
			return opts.ServerAddress, cfg.Timeout, nil
		}

		return cfg.ServerAddress, cfg.Timeout, nil
	case opts.ServerAddress != "" && errors.Is(err, fs.ErrNotExist):
		return opts.ServerAddress, config.DefaultTimeout, nil
	default:
		return "", 0, err
	}
}

// retry runs attempt once, or until it stops failing with Unavailable when enabled.
func retry(ctx context.Context, enabled bool, attempt func() error) error {
	err := attempt()
	if !enabled || status.Code(err) != codes.Unavailable {
		return err
	}

	ticker := time.NewTicker(defaultRetryInterval)
	defer ticker.Stop()

	for {
		logger.WarnKV(ctx, "Server unavailable, retrying", "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			err = attempt()
			if status.Code(err) != codes.Unavailable {
				return err
			}
		}
	}
}
