//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	api "github.com/oshokin/quarantine-engine/internal/api/grpc/quarantine"
	"github.com/oshokin/quarantine-engine/internal/config"
	domain "github.com/oshokin/quarantine-engine/internal/domain/quarantine"
)

// Client wraps the gRPC QuarantineService client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the quarantine server.
	conn *grpc.ClientConn
	// api is the QuarantineService client.
	api *api.QuarantineServiceClient

	// callTimeout is the default timeout for individual unary calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// errAddressRequired is returned when a required address value is missing.
var errAddressRequired = errors.New("address must be provided")

// Dial establishes a gRPC connection to the quarantine server.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial quarantine server: %w", err)
	}

	return newClient(conn, opts...), nil
}

func newClient(conn *grpc.ClientConn, opts ...Option) *Client {
	client := &Client{
		conn:        conn,
		api:         api.NewQuarantineServiceClient(conn),
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// GetStatus retrieves the current quarantine status.
func (c *Client) GetStatus(ctx context.Context) (domain.Status, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.api.GetStatus(callCtx, new(emptypb.Empty))
	if err != nil {
		return domain.Status{}, fmt.Errorf("get status: %w", err)
	}

	status, err := api.StatusFromStruct(response)
	if err != nil {
		return domain.Status{}, fmt.Errorf("decode status: %w", err)
	}

	return status, nil
}

// WatchStatus calls fn for every forwarded status until ctx is done,
// the server ends the stream, or fn returns an error.
func (c *Client) WatchStatus(ctx context.Context, fn func(domain.Status) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.api.WatchStatus(ctx, new(emptypb.Empty))
	if err != nil {
		return fmt.Errorf("watch status: %w", err)
	}

	for {
		document, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			return fmt.Errorf("receive status: %w", err)
		}

		status, err := api.StatusFromStruct(document)
		if err != nil {
			return fmt.Errorf("decode status: %w", err)
		}

		if err := fn(status); err != nil {
			return err
		}
	}
}

// RecordEvent records an event on the server.
func (c *Client) RecordEvent(ctx context.Context, request api.EventRequest) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	if _, err := c.api.RecordEvent(callCtx, request.ToStruct()); err != nil {
		return fmt.Errorf("record %s: %w", request.Event, err)
	}

	return nil
}

// RevokeEvent clears an event on the server.
func (c *Client) RevokeEvent(ctx context.Context, event api.Event) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	if _, err := c.api.RevokeEvent(callCtx, api.EventRequest{Event: event}.ToStruct()); err != nil {
		return fmt.Errorf("revoke %s: %w", event, err)
	}

	return nil
}

// Banner reports whether the quarantine-end banner should be shown.
func (c *Client) Banner(ctx context.Context) (bool, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.api.GetBanner(callCtx, new(emptypb.Empty))
	if err != nil {
		return false, fmt.Errorf("get banner: %w", err)
	}

	return response.GetValue(), nil
}

// SetBanner sets or clears the quarantine-end banner.
func (c *Client) SetBanner(ctx context.Context, show bool) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	if _, err := c.api.SetBanner(callCtx, wrapperspb.Bool(show)); err != nil {
		return fmt.Errorf("set banner: %w", err)
	}

	return nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
