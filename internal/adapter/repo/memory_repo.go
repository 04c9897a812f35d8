package repo

import (
	"context"
	"sync"
	"time"

	"schemagen/internal/domain"
)

// MemoryResultRepository keeps results in process memory. It is meant for
// local development and tests; rows are lost on restart.
type MemoryResultRepository struct {
	mu     sync.RWMutex
	rows   []domain.StoredResult
	nextID int64
	now    func() time.Time
}

// NewMemoryResultRepository returns an empty in-memory repository. A nil now
// function defaults to the UTC wall clock.
func NewMemoryResultRepository(now func() time.Time) *MemoryResultRepository {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &MemoryResultRepository{now: now}
}

func (r *MemoryResultRepository) Append(ctx context.Context, input, output string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.rows = append(r.rows, domain.StoredResult{
		ID:        r.nextID,
		QueryTime: r.now(),
		Input:     input,
		Output:    output,
	})
	return r.nextID, nil
}

func (r *MemoryResultRepository) ListAll(ctx context.Context) ([]domain.StoredResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.StoredResult, len(r.rows))
	copy(out, r.rows)
	sortNewestFirst(out)
	return out, nil
}

func (r *MemoryResultRepository) GetByID(ctx context.Context, id int64) (*domain.StoredResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, row := range r.rows {
		if row.ID == id {
			res := row
			return &res, nil
		}
	}
	return nil, domain.ErrNotFound
}

var _ domain.ResultRepository = (*MemoryResultRepository)(nil)
