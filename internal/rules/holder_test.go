package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/quarantine-engine/internal/domain/quarantine"
)

// TestHolder_ObserveAndSet verifies the current value is replayed and only real changes are published.
func TestHolder_ObserveAndSet(t *testing.T) {
	t.Parallel()

	h := NewHolder(quarantine.DefaultRules())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := h.Observe(ctx)
	require.True(t, (<-ch).Equal(quarantine.DefaultRules()))

	require.False(t, h.Set(quarantine.Rules{}))

	select {
	case r := <-ch:
		t.Fatalf("unexpected rules %+v", r)
	default:
	}

	custom := quarantine.Rules{YellowWarningQuarantineHours: quarantine.Hours(100)}
	require.True(t, h.Set(custom))
	require.True(t, (<-ch).Equal(custom))
	require.True(t, h.Get().Equal(custom))
}

// TestHolder_GetReturnsCopy ensures callers cannot mutate the active rules.
func TestHolder_GetReturnsCopy(t *testing.T) {
	t.Parallel()

	h := NewHolder(quarantine.Rules{RedWarningQuarantineHours: quarantine.Hours(10)})

	got := h.Get()
	*got.RedWarningQuarantineHours = 99

	require.Equal(t, 10, *h.Get().RedWarningQuarantineHours)
}
