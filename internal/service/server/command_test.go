package server

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	api "github.com/oshokin/quarantine-engine/internal/api/grpc/quarantine"
	"github.com/oshokin/quarantine-engine/internal/config"
	"github.com/oshokin/quarantine-engine/internal/domain/quarantine"
	"github.com/oshokin/quarantine-engine/internal/repository/events"
	"github.com/oshokin/quarantine-engine/internal/rules"
	"github.com/oshokin/quarantine-engine/internal/service/common"
)

// TestResolveListenAddress covers override, port extraction and failures.
func TestResolveListenAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		configAddr string
		override   string
		want       string
		wantErr    bool
	}{
		{"override wins", "server.local:8080", "0.0.0.0:9090", "0.0.0.0:9090", false},
		{"port from config", "server.local:8080", "", ":8080", false},
		{"missing", "", "", "", true},
		{"malformed", "server.local", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := resolveListenAddress(tt.configAddr, tt.override)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

// TestApplyOverrides ensures only non-empty options replace settings.
func TestApplyOverrides(t *testing.T) {
	t.Parallel()

	settings := &config.Config{
		EventsFile:     "events.json",
		RulesFile:      "rules.yaml",
		MetricsAddress: ":9090",
	}

	applyOverrides(settings, &Options{EventsFile: "other.json"})

	require.Equal(t, "other.json", settings.EventsFile)
	require.Equal(t, "rules.yaml", settings.RulesFile)
	require.Equal(t, ":9090", settings.MetricsAddress)
}

// TestNewRulesProvider covers built-in defaults and file-backed rules.
func TestNewRulesProvider(t *testing.T) {
	t.Parallel()

	holder, watcher, err := newRulesProvider("")
	require.NoError(t, err)
	require.Nil(t, watcher)
	require.True(t, holder.Get().Equal(quarantine.DefaultRules()))

	path := filepath.Join(t.TempDir(), "rules.yaml")
	custom := quarantine.Rules{RedWarningQuarantineHours: quarantine.Hours(48)}
	require.NoError(t, rules.SaveFile(path, custom))

	holder, watcher, err = newRulesProvider(path)
	require.NoError(t, err)
	require.NotNil(t, watcher)
	require.True(t, holder.Get().Equal(custom))

	_, _, err = newRulesProvider(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

// TestServe_EndToEnd runs the full process on a loopback listener.
func TestServe_EndToEnd(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rulesPath := filepath.Join(dir, "rules.yaml")
	require.NoError(t, rules.SaveFile(rulesPath, quarantine.Rules{YellowWarningQuarantineHours: quarantine.Hours(24)}))

	settings := &config.Config{
		ServerAddress: "127.0.0.1:0",
		EventsFile:    filepath.Join(dir, "events.json"),
		RulesFile:     rulesPath,
		Debounce:      time.Millisecond,
	}
	require.NoError(t, config.Validate(settings))

	lc := net.ListenConfig{}

	lis, err := lc.Listen(context.Background(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)

	go func() {
		done <- serve(ctx, settings, lis)
	}()

	client, err := common.Dial(ctx, lis.Addr().String(), common.WithCallTimeout(time.Second))
	require.NoError(t, err)

	defer func() {
		_ = client.Close()
	}()

	contact := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)

	require.Eventually(t, func() bool {
		return client.RecordEvent(ctx, api.EventRequest{
			Event:    api.EventContact,
			Severity: quarantine.SeverityYellow,
			At:       contact,
		}) == nil
	}, 5*time.Second, 20*time.Millisecond)

	want := quarantine.JailedLimited(contact.Add(24*time.Hour), true)

	require.Eventually(t, func() bool {
		status, err := client.GetStatus(ctx)
		return err == nil && status.Equal(want)
	}, 5*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}

	_, err = os.Stat(settings.EventsFile)
	require.NoError(t, err)

	store, err := events.Open(context.Background(), events.NewFileRepository(settings.EventsFile))
	require.NoError(t, err)
	require.True(t, store.Time(events.KeyLastYellowContact).Get().Equal(contact))
}
