package repo

import (
	"context"
	"fmt"

	"schemagen/internal/domain"
	"schemagen/internal/infra"
	"schemagen/internal/sqlinline"
)

// ResultRepositoryPG implements domain.ResultRepository on PostgreSQL.
type ResultRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewResultRepository creates a result repository backed by PostgreSQL.
func NewResultRepository(sql infra.SQLExecutor) *ResultRepositoryPG {
	return &ResultRepositoryPG{sql: sql}
}

// EnsureSchema creates the results table when it does not exist yet.
func (r *ResultRepositoryPG) EnsureSchema(ctx context.Context) error {
	if _, err := r.sql.Exec(ctx, sqlinline.QCreateSchemaResults); err != nil {
		return fmt.Errorf("create schema_results: %w", err)
	}
	return nil
}

// Append inserts a row; the database assigns id and query_time.
func (r *ResultRepositoryPG) Append(ctx context.Context, input, output string) (int64, error) {
	var id int64
	if err := r.sql.QueryRow(ctx, sqlinline.QInsertSchemaResult, input, output).Scan(&id); err != nil {
		return 0, fmt.Errorf("%w: insert schema result: %v", domain.ErrPersistenceFailed, err)
	}
	return id, nil
}

// ListAll returns every stored result, newest first.
func (r *ResultRepositoryPG) ListAll(ctx context.Context) ([]domain.StoredResult, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QSelectSchemaResults)
	if err != nil {
		return nil, fmt.Errorf("list schema results: %w", err)
	}
	defer rows.Close()
	results := []domain.StoredResult{}
	for rows.Next() {
		var res domain.StoredResult
		if err := rows.Scan(&res.ID, &res.QueryTime, &res.Input, &res.Output); err != nil {
			return nil, fmt.Errorf("scan schema result: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list schema results: %w", err)
	}
	return results, nil
}

// GetByID fetches one stored result.
func (r *ResultRepositoryPG) GetByID(ctx context.Context, id int64) (*domain.StoredResult, error) {
	var res domain.StoredResult
	err := r.sql.QueryRow(ctx, sqlinline.QSelectSchemaResultByID, id).Scan(&res.ID, &res.QueryTime, &res.Input, &res.Output)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get schema result %d: %w", id, err)
	}
	return &res, nil
}

var _ domain.ResultRepository = (*ResultRepositoryPG)(nil)
