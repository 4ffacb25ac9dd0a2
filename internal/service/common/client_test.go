//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	api "github.com/oshokin/quarantine-engine/internal/api/grpc/quarantine"
	domain "github.com/oshokin/quarantine-engine/internal/domain/quarantine"
	"github.com/oshokin/quarantine-engine/internal/reminder"
	"github.com/oshokin/quarantine-engine/internal/repository/events"
	"github.com/oshokin/quarantine-engine/internal/rules"
	"github.com/oshokin/quarantine-engine/internal/service/engine"
)

var errStopWatching = errors.New("stop watching")

// TestDial_ValidatesAddress verifies that Dial rejects empty addresses.
func TestDial_ValidatesAddress(t *testing.T) {
	t.Parallel()

	c, err := Dial(context.Background(), "")
	require.Error(t, err)
	require.Nil(t, c)
}

// TestClient_callContext checks timeout vs cancel-only behavior of callContext.
func TestClient_callContext(t *testing.T) {
	t.Parallel()

	c := &Client{
		callTimeout: 0,
	}

	ctx, cancel := c.callContext(context.Background())
	cancel()

	require.NotNil(t, ctx)

	c.callTimeout = 10 * time.Millisecond

	ctx, cancel = c.callContext(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	require.WithinDuration(t, time.Now().Add(10*time.Millisecond), deadline, 30*time.Millisecond)
}

// TestClient_AgainstEngine drives a running engine through the client.
func TestClient_AgainstEngine(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := startEngineServer(ctx, t)

	require.Eventually(t, func() bool {
		status, err := client.GetStatus(ctx)
		return err == nil && status.Equal(domain.Free(false))
	}, 5*time.Second, 10*time.Millisecond)

	contact := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)

	err := client.RecordEvent(ctx, api.EventRequest{
		Event:    api.EventContact,
		Severity: domain.SeverityYellow,
		At:       contact,
	})
	require.NoError(t, err)

	want := domain.JailedLimited(contact.Add(168*time.Hour), true)

	err = client.WatchStatus(ctx, func(status domain.Status) error {
		if status.Equal(want) {
			return errStopWatching
		}

		return nil
	})
	require.ErrorIs(t, err, errStopWatching)

	require.Error(t, client.RevokeEvent(ctx, api.EventContact))
	require.NoError(t, client.RecordEvent(ctx, api.EventRequest{Event: api.EventMedical}))

	require.Eventually(t, func() bool {
		status, err := client.GetStatus(ctx)
		return err == nil && status.Kind == domain.KindJailedForever
	}, 5*time.Second, 10*time.Millisecond)

	show, err := client.Banner(ctx)
	require.NoError(t, err)
	require.False(t, show)

	require.NoError(t, client.SetBanner(ctx, true))

	show, err = client.Banner(ctx)
	require.NoError(t, err)
	require.True(t, show)
}

// startEngineServer runs an engine behind an in-memory gRPC server.
func startEngineServer(ctx context.Context, t *testing.T) *Client {
	t.Helper()

	scheduler := reminder.NewTimerScheduler(ctx, reminder.LogNotifier{})
	quarantineEngine := engine.New(
		events.NewMemoryStore(),
		rules.NewHolder(domain.DefaultRules()),
		scheduler,
		engine.WithDebounce(time.Millisecond),
	)

	engineCtx, stopEngine := context.WithCancel(ctx)
	engineDone := make(chan struct{})

	go func() {
		defer close(engineDone)

		_ = quarantineEngine.Run(engineCtx)
	}()

	listener := bufconn.Listen(1 << 20)
	handler := api.NewServer(quarantineEngine)

	grpcServer := grpc.NewServer()
	api.RegisterQuarantineServiceServer(grpcServer, handler)

	go func() {
		_ = grpcServer.Serve(listener)
	}()

	conn, err := grpc.NewClient(
		"passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	client := newClient(conn, WithCallTimeout(time.Second))

	t.Cleanup(func() {
		_ = client.Close()

		handler.Shutdown()
		grpcServer.Stop()
		stopEngine()
		<-engineDone
		scheduler.Close()
	})

	return client
}
