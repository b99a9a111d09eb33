package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOccurredAtStampsUnsetTimes(t *testing.T) {
	got := occurredAt(time.Time{})
	require.False(t, got.IsZero())
	require.WithinDuration(t, time.Now().UTC(), got, time.Minute)
}

func TestOccurredAtKeepsExplicitTimes(t *testing.T) {
	fixed := time.Date(2026, 8, 15, 9, 30, 0, 0, time.UTC)
	require.Equal(t, fixed, occurredAt(fixed))
}
