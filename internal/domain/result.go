package domain

import "time"

// StoredResult is one persisted generation or regeneration. Rows are written
// once and never updated.
type StoredResult struct {
	ID        int64     `json:"id"`
	QueryTime time.Time `json:"query_time"`
	Input     string    `json:"input"`
	Output    string    `json:"output"`
}
