package executor

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Config holds execution limits for the Postgres executor.
type Config struct {
	// RowCap is the maximum number of rows returned from a single query.
	// Rows beyond the cap are discarded, not an error.
	RowCap int

	// StatementTimeoutSeconds is applied with SET LOCAL inside the
	// read-only transaction.
	StatementTimeoutSeconds int
}

// Postgres executes read-only statements against a Postgres database.
// Every query runs inside a read-only transaction with a statement timeout,
// so a templating bug can never mutate data.
type Postgres struct {
	db     *sql.DB
	cfg    Config
	logger *slog.Logger
}

// Open connects to the database at the given URL using the pgx stdlib driver.
func Open(url string, cfg Config, logger *slog.Logger) (*Postgres, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return NewPostgres(db, cfg, logger), nil
}

// NewPostgres wraps an existing database handle. Used directly by tests.
func NewPostgres(db *sql.DB, cfg Config, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.RowCap <= 0 {
		cfg.RowCap = 50000
	}
	if cfg.StatementTimeoutSeconds <= 0 {
		cfg.StatementTimeoutSeconds = 60
	}
	return &Postgres{db: db, cfg: cfg, logger: logger}
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// Ping verifies the database connection.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Query runs a single read-only SELECT and returns the ordered columns and
// rows. Statements that are not a single SELECT are rejected before any
// round trip.
func (p *Postgres) Query(ctx context.Context, sqlText string) ([]string, [][]any, error) {
	if err := ValidateReadOnly(sqlText); err != nil {
		return nil, nil, err
	}

	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, nil, &ExecutionError{Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	timeout := fmt.Sprintf("SET LOCAL statement_timeout = '%ds'", p.cfg.StatementTimeoutSeconds)
	if _, err := tx.ExecContext(ctx, timeout); err != nil {
		return nil, nil, &ExecutionError{Err: err}
	}

	rows, err := tx.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, nil, &ExecutionError{Err: err}
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, &ExecutionError{Err: err}
	}

	var result [][]any
	for rows.Next() {
		if len(result) >= p.cfg.RowCap {
			p.logger.Warn("row cap reached, truncating result set", "cap", p.cfg.RowCap)
			break
		}

		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, &ExecutionError{Err: err}
		}

		// Convert []byte to string for readability downstream.
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result = append(result, values)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, &ExecutionError{Err: err}
	}

	// Rows must be drained and closed before the transaction can commit.
	_ = rows.Close()

	if err := tx.Commit(); err != nil {
		return nil, nil, &ExecutionError{Err: err}
	}

	return columns, result, nil
}
