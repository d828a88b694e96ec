// Package data loads pre-generated signal streams from CSV files. The
// signal generator is an external collaborator; this package only reads
// its output.
package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/perceptrader/mt5-trader/pkg/types"
)

// CSVColumnMapping defines the column positions of a signal file
type CSVColumnMapping struct {
	TimestampCol int
	SignalCol    int
	MinColumns   int
	DateFormat   string
}

// DefaultCSVFormat is a two-column timestamp,signal layout
var DefaultCSVFormat = CSVColumnMapping{
	TimestampCol: 0,
	SignalCol:    1,
	MinColumns:   2,
	DateFormat:   "2006-01-02 15:04:05",
}

// SignalProvider loads signal streams from CSV files
type SignalProvider struct {
	format CSVColumnMapping
}

// NewSignalProvider creates a provider with the default column format
func NewSignalProvider() *SignalProvider {
	return &SignalProvider{format: DefaultCSVFormat}
}

// NewSignalProviderWithFormat creates a provider with a custom format
func NewSignalProviderWithFormat(format CSVColumnMapping) *SignalProvider {
	return &SignalProvider{format: format}
}

// LoadSignals reads one symbol's signal stream from a CSV file
func (p *SignalProvider) LoadSignals(filename string) ([]types.Signal, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Skip header
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}

	var signals []types.Signal
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++

		if len(record) < p.format.MinColumns {
			return nil, fmt.Errorf("line %d: expected at least %d columns, got %d",
				line, p.format.MinColumns, len(record))
		}

		ts, err := parseTimestamp(record[p.format.TimestampCol], p.format.DateFormat)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		value, err := strconv.Atoi(record[p.format.SignalCol])
		if err != nil {
			return nil, fmt.Errorf("line %d: bad signal value %q", line, record[p.format.SignalCol])
		}
		if value < -1 || value > 1 {
			return nil, fmt.Errorf("line %d: signal must be -1, 0 or 1, got %d", line, value)
		}

		signals = append(signals, types.Signal{Timestamp: ts, Value: value})
	}

	if err := ValidateTimeSequence(signals); err != nil {
		return nil, err
	}
	return signals, nil
}

// parseTimestamp accepts the configured date format or a unix timestamp
// in seconds or milliseconds.
func parseTimestamp(s, format string) (time.Time, error) {
	if ts, err := time.Parse(format, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		if unix > 1e12 {
			return time.UnixMilli(unix).UTC(), nil
		}
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("bad timestamp %q", s)
}

// ValidateTimeSequence ensures signals are in chronological order
func ValidateTimeSequence(signals []types.Signal) error {
	for i := 1; i < len(signals); i++ {
		if signals[i].Timestamp.Before(signals[i-1].Timestamp) {
			return fmt.Errorf("signals out of order at index %d: %s before %s",
				i, signals[i].Timestamp, signals[i-1].Timestamp)
		}
	}
	return nil
}

// FindSignalFile locates the signal file for a symbol.
// Structure: {dataRoot}/signals/{symbol}.csv
// Returns empty string if no file is found
func FindSignalFile(dataRoot, symbol string) string {
	path := filepath.Join(dataRoot, "signals", symbol+".csv")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
