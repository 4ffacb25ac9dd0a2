package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestValidate checks required fields and format validations for Config.
func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		settings *Config
		wantErr  bool
	}{
		{"nil", nil, true},
		{"missing socket", new(Config), true},
		{"bad socket", &Config{ServerAddress: "bad:address"}, true},
		{"bad metrics", &Config{ServerAddress: "127.0.0.1:0", MetricsAddress: "nope"}, true},
		{"negative debounce", &Config{ServerAddress: "127.0.0.1:0", Debounce: -time.Second}, true},
		{"unknown level", &Config{ServerAddress: "127.0.0.1:0", LogLevel: "loud"}, true},
		{"minimal", &Config{ServerAddress: "127.0.0.1:0"}, false},
		{"metrics", &Config{ServerAddress: "127.0.0.1:0", MetricsAddress: ":9090"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := Validate(tt.settings)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
		})
	}
}

// TestValidate_FillsDefaults ensures omitted values receive their defaults.
func TestValidate_FillsDefaults(t *testing.T) {
	t.Parallel()

	settings := &Config{ServerAddress: "127.0.0.1:50051"}
	require.NoError(t, Validate(settings))

	require.Equal(t, DefaultEventsFilename, settings.EventsFile)
	require.Equal(t, DefaultTimeout, settings.Timeout)
	require.Equal(t, DefaultDebounce, settings.Debounce)
	require.Equal(t, DefaultRetestInterval, settings.RetestInterval)
	require.Equal(t, DefaultLogLevel, settings.LogLevel)
	require.Empty(t, settings.RulesFile)
}

// TestLoad_ParsesDurations reads a hand-written settings file.
func TestLoad_ParsesDurations(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	contents := "server_addr: 127.0.0.1:50051\n" +
		"rules_file: rules.yaml\n" +
		"timeout: 2s\n" +
		"debounce: 75ms\n" +
		"retest_interval: 12h\n" +
		"log_level: debug\n"

	require.NoError(t, os.WriteFile(path, []byte(contents), DefaultFilePermissions))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "rules.yaml", loaded.RulesFile)
	require.Equal(t, 2*time.Second, loaded.Timeout)
	require.Equal(t, 75*time.Millisecond, loaded.Debounce)
	require.Equal(t, 12*time.Hour, loaded.RetestInterval)
	require.Equal(t, "debug", loaded.LogLevel)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	settings := &Config{
		ServerAddress:  "127.0.0.1:50051",
		EventsFile:     filepath.Join(dir, "events.json"),
		MetricsAddress: "127.0.0.1:9090",
		RetestInterval: time.Hour,
	}

	require.NoError(t, Save(path, settings))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, *settings, *loaded)

	// File exists.
	_, err = os.Stat(path)
	require.NoError(t, err)
}

// TestLoad_Missing reports a read error for absent files.
func TestLoad_Missing(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
