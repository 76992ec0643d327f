package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/document-ocr-service/internal/core/domain"
)

type RunRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *RunRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082501)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS ocr_runs (
	id TEXT PRIMARY KEY,
	file_id TEXT NOT NULL,
	ocr_option TEXT NOT NULL,
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ocr_runs_status ON ocr_runs(status);
CREATE INDEX IF NOT EXISTS idx_ocr_runs_created_at ON ocr_runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_ocr_runs_file ON ocr_runs(file_id, ocr_option);

CREATE TABLE IF NOT EXISTS ocr_files (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	file_id TEXT NOT NULL,
	ocr_option TEXT NOT NULL,
	status TEXT NOT NULL,
	ocr_path TEXT NOT NULL DEFAULT '',
	formatted_docx_path TEXT NOT NULL DEFAULT '',
	raw_docx_path TEXT NOT NULL DEFAULT '',
	failed_batches INTEGER NOT NULL DEFAULT 0,
	missing_text_pages TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	UNIQUE (file_id, ocr_option)
);

CREATE INDEX IF NOT EXISTS idx_ocr_files_run ON ocr_files(run_id);

CREATE TABLE IF NOT EXISTS ocr_registered_files (
	run_id TEXT NOT NULL,
	file_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	path TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, file_id)
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *RunRepository) Create(ctx context.Context, run *domain.Run) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO ocr_runs (id, file_id, ocr_option, status, error_message, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, run.ID, run.FileID, string(run.Option), string(run.Status), run.ErrorMessage, run.CreatedAt, run.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (r *RunRepository) GetByID(ctx context.Context, id string) (*domain.Run, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, file_id, ocr_option, status, error_message, created_at, updated_at
FROM ocr_runs
WHERE id = $1
`, id)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrRunNotFound, "get run", err)
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return &run, nil
}

func (r *RunRepository) UpdateStatus(ctx context.Context, id string, status domain.RunStatus, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE ocr_runs
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run status rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrRunNotFound, "update run status", sql.ErrNoRows)
	}
	return nil
}

func (r *RunRepository) ListRecent(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, file_id, ocr_option, status, error_message, created_at, updated_at
FROM ocr_runs
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (domain.Run, error) {
	var run domain.Run
	var option, status string
	err := row.Scan(
		&run.ID,
		&run.FileID,
		&option,
		&status,
		&run.ErrorMessage,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if err != nil {
		return domain.Run{}, err
	}
	run.Option = domain.OCROption(option)
	run.Status = domain.RunStatus(status)
	return run, nil
}
