package domain

import "context"

// ResultRepository is an append-only store of input/output pairs.
// Implementations must be safe for concurrent use and assign identities
// atomically per row.
type ResultRepository interface {
	Append(ctx context.Context, input, output string) (int64, error)
	// ListAll returns every row, most recent first.
	ListAll(ctx context.Context) ([]StoredResult, error)
	// GetByID returns ErrNotFound when no row has the given id.
	GetByID(ctx context.Context, id int64) (*StoredResult, error)
}
