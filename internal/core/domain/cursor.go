package domain

import "time"

// Cursor is the highest block number whose events have been fully and
// durably reconciled, including custody side effects. It is advanced
// only after every event in a range is resolved or deliberately skipped.
type Cursor struct {
	ChainID   string
	Block     uint64
	UpdatedAt time.Time
}
