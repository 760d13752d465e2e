package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHistoryEntryStampsTimeWhenUnset(t *testing.T) {
	before := time.Now()
	entry := HistoryEntry{Module: "EVIDENCIA", Action: HistorySubmit}.withDefaults()
	require.False(t, entry.At.IsZero())
	require.False(t, entry.At.Before(before))
	require.False(t, entry.At.After(time.Now()))
}

func TestHistoryEntryKeepsExplicitTime(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	entry := HistoryEntry{Module: "PLANO_ACAO", Action: HistoryApprove, At: at}.withDefaults()
	require.Equal(t, at, entry.At)
}
