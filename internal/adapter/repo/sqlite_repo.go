package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"schemagen/internal/domain"
	"schemagen/internal/infra"
	"schemagen/internal/sqlinline"
)

const sqliteTimeLayout = "2006-01-02 15:04:05.000000000"

// ResultRepositorySQLite implements domain.ResultRepository on a local
// SQLite file.
type ResultRepositorySQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLiteResultRepository opens (creating if needed) the database file at
// path and ensures the results table exists.
func OpenSQLiteResultRepository(ctx context.Context, path string) (*ResultRepositorySQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single connection serialises writers, which keeps AUTOINCREMENT
	// assignment and busy handling trivial.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA journal_mode = WAL"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init sqlite %s: %w", path, err)
		}
	}
	repo := &ResultRepositorySQLite{db: db, now: func() time.Time { return time.Now().UTC() }}
	if _, err := repo.exec(ctx, sqlinline.QSQLiteCreateSchemaResults); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init sqlite %s: %w", path, err)
	}
	return repo, nil
}

// Close releases the database handle.
func (r *ResultRepositorySQLite) Close() error {
	return r.db.Close()
}

func (r *ResultRepositorySQLite) Append(ctx context.Context, input, output string) (int64, error) {
	res, err := r.exec(ctx, sqlinline.QSQLiteInsertSchemaResult, r.now().Format(sqliteTimeLayout), input, output)
	if err != nil {
		return 0, fmt.Errorf("%w: insert schema result: %v", domain.ErrPersistenceFailed, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: read inserted id: %v", domain.ErrPersistenceFailed, err)
	}
	return id, nil
}

func (r *ResultRepositorySQLite) ListAll(ctx context.Context) ([]domain.StoredResult, error) {
	query, err := sqliteStatement(sqlinline.QSQLiteSelectSchemaResults)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list schema results: %w", err)
	}
	defer rows.Close()
	results := []domain.StoredResult{}
	for rows.Next() {
		res, err := scanSQLiteResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list schema results: %w", err)
	}
	return results, nil
}

func (r *ResultRepositorySQLite) GetByID(ctx context.Context, id int64) (*domain.StoredResult, error) {
	query, err := sqliteStatement(sqlinline.QSQLiteSelectSchemaResultByID)
	if err != nil {
		return nil, err
	}
	res, err := scanSQLiteResult(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return res, nil
}

func (r *ResultRepositorySQLite) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	stmt, err := sqliteStatement(query)
	if err != nil {
		return nil, err
	}
	return r.db.ExecContext(ctx, stmt, args...)
}

// sqliteStatement strips the audit marker, rejecting untagged queries the
// same way the postgres runner does.
func sqliteStatement(query string) (string, error) {
	_, stmt, err := infra.ExtractMarker(query)
	return stmt, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteResult(row rowScanner) (*domain.StoredResult, error) {
	var res domain.StoredResult
	var queryTime any
	if err := row.Scan(&res.ID, &queryTime, &res.Input, &res.Output); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan schema result: %w", err)
	}
	ts, err := parseSQLiteTime(queryTime)
	if err != nil {
		return nil, fmt.Errorf("scan schema result %d: %w", res.ID, err)
	}
	res.QueryTime = ts
	return &res, nil
}

// parseSQLiteTime accepts both the driver's native time values and the text
// forms written by this repository or by CURRENT_TIMESTAMP.
func parseSQLiteTime(v any) (time.Time, error) {
	var text string
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		text = t
	case []byte:
		text = string(t)
	case nil:
		return time.Time{}, nil
	default:
		return time.Time{}, fmt.Errorf("unsupported query_time type %T", v)
	}
	for _, layout := range []string{sqliteTimeLayout, time.DateTime, time.RFC3339Nano} {
		if ts, err := time.ParseInLocation(layout, text, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid query_time %q", text)
}

var _ domain.ResultRepository = (*ResultRepositorySQLite)(nil)
