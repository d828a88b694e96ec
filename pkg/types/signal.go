package types

import "time"

// Signal is one bar of an externally generated signal stream.
// Value is -1 (sell), 0 (no action) or +1 (buy).
type Signal struct {
	Timestamp time.Time
	Value     int
}
