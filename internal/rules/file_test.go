package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/quarantine-engine/internal/domain/quarantine"
)

// TestLoadFile_PartialKeepsDefaults checks that missing keys stay absent.
func TestLoadFile_PartialKeepsDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("red_warning_quarantine_hours: 240\n"), 0o600))

	rules, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, 240, *rules.RedWarningQuarantineHours)
	require.Nil(t, rules.YellowWarningQuarantineHours)
	require.EqualValues(t, quarantine.DefaultYellowWarningQuarantineHours, rules.YellowWarningQuarantine().Hours())
}

// TestLoadFile_Rejects covers invalid inputs.
func TestLoadFile_Rejects(t *testing.T) {
	t.Parallel()

	_, err := LoadFile("")
	require.Error(t, err)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("self_diagnosed_quarantine_hours: -1\n"), 0o600))

	_, err = LoadFile(path)
	require.ErrorIs(t, err, quarantine.ErrNonPositiveHours)
}

// TestSaveLoadRoundtrip ensures rules are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rules.yaml")
	want := quarantine.Rules{
		RedWarningQuarantineHours:    quarantine.Hours(300),
		SelfDiagnosedQuarantineHours: quarantine.Hours(72),
	}

	require.NoError(t, SaveFile(path, want))

	got, err := LoadFile(path)
	require.NoError(t, err)
	require.True(t, want.Equal(got))
}

// writeRaw replaces the file contents verbatim.
func writeRaw(path, contents string) error {
	return os.WriteFile(path, []byte(contents), 0o600)
}
