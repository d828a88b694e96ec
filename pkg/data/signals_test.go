package data

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perceptrader/mt5-trader/pkg/types"
)

func writeCSV(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "EURUSD.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadSignals(t *testing.T) {
	path := writeCSV(t, "timestamp,signal\n2024-01-08 10:00:00,1\n2024-01-08 11:00:00,0\n2024-01-08 12:00:00,-1\n")

	signals, err := NewSignalProvider().LoadSignals(path)
	require.NoError(t, err)
	require.Len(t, signals, 3)

	assert.Equal(t, 1, signals[0].Value)
	assert.Equal(t, 0, signals[1].Value)
	assert.Equal(t, -1, signals[2].Value)
	assert.Equal(t, time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC), signals[0].Timestamp)
}

func TestLoadSignalsUnixTimestamps(t *testing.T) {
	path := writeCSV(t, "timestamp,signal\n1704708000,1\n1704711600000,-1\n")

	signals, err := NewSignalProvider().LoadSignals(path)
	require.NoError(t, err)
	require.Len(t, signals, 2)
	assert.Equal(t, signals[0].Timestamp.Add(time.Hour), signals[1].Timestamp)
}

func TestLoadSignalsRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"out of range", "timestamp,signal\n2024-01-08 10:00:00,2\n"},
		{"not a number", "timestamp,signal\n2024-01-08 10:00:00,buy\n"},
		{"bad timestamp", "timestamp,signal\nyesterday,1\n"},
		{"missing column", "timestamp,signal\n2024-01-08 10:00:00\n"},
		{"out of order", "timestamp,signal\n2024-01-08 11:00:00,1\n2024-01-08 10:00:00,1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSignalProvider().LoadSignals(writeCSV(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadSignalsEmptyFile(t *testing.T) {
	signals, err := NewSignalProvider().LoadSignals(writeCSV(t, ""))
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestValidateTimeSequence(t *testing.T) {
	ordered := []types.Signal{
		{Timestamp: time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC)},
		{Timestamp: time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC)}, // equal is fine
		{Timestamp: time.Date(2024, 1, 8, 11, 0, 0, 0, time.UTC)},
	}
	assert.NoError(t, ValidateTimeSequence(ordered))
}

func TestFindSignalFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "signals"), 0o755))
	path := filepath.Join(root, "signals", "EURUSD.csv")
	require.NoError(t, os.WriteFile(path, []byte("timestamp,signal\n"), 0o644))

	assert.Equal(t, path, FindSignalFile(root, "EURUSD"))
	assert.Empty(t, FindSignalFile(root, "GBPUSD"))
}
