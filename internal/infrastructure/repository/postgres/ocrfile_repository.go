package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/document-ocr-service/internal/core/domain"
)

type OCRFileRepository struct {
	db *sql.DB
}

func NewOCRFileRepository(db *sql.DB) *OCRFileRepository {
	return &OCRFileRepository{db: db}
}

// GetOrCreate inserts rec unless a record for (file_id, ocr_option) already
// exists and returns the surviving record either way. The unique constraint
// makes the insert race-safe across workers.
func (r *OCRFileRepository) GetOrCreate(ctx context.Context, rec *domain.OCRFile) (*domain.OCRFile, error) {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO ocr_files (
	id, run_id, file_id, ocr_option, status,
	ocr_path, formatted_docx_path, raw_docx_path, failed_batches, missing_text_pages,
	created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (file_id, ocr_option) DO NOTHING
`,
		rec.ID, rec.RunID, rec.FileID, string(rec.Option), string(rec.Status),
		rec.OCRPath, rec.FormattedDocxPath, rec.RawDocxPath, rec.FailedBatches, rec.MissingTextPages,
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert ocr file: %w", err)
	}
	return r.GetByFile(ctx, rec.FileID, rec.Option)
}

func (r *OCRFileRepository) GetByRunID(ctx context.Context, runID string) (*domain.OCRFile, error) {
	row := r.db.QueryRowContext(ctx, selectOCRFile+`WHERE run_id = $1`, runID)
	return r.scanOne(row, "get ocr file by run")
}

func (r *OCRFileRepository) GetByFile(ctx context.Context, fileID string, option domain.OCROption) (*domain.OCRFile, error) {
	row := r.db.QueryRowContext(ctx, selectOCRFile+`WHERE file_id = $1 AND ocr_option = $2`, fileID, string(option))
	return r.scanOne(row, "get ocr file")
}

func (r *OCRFileRepository) UpdateStatus(ctx context.Context, id string, status domain.FileStatus) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE ocr_files
SET status = $2, updated_at = $3
WHERE id = $1
`, id, string(status), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update ocr file status: %w", err)
	}
	return requireRow(result, "update ocr file status")
}

func (r *OCRFileRepository) SetMergedArtifact(ctx context.Context, id, ocrPath string, failedBatches int, missingTextPages string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE ocr_files
SET ocr_path = $2, failed_batches = $3, missing_text_pages = $4, updated_at = $5
WHERE id = $1
`, id, ocrPath, failedBatches, missingTextPages, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set merged artifact: %w", err)
	}
	return requireRow(result, "set merged artifact")
}

func (r *OCRFileRepository) SetFormattedDocx(ctx context.Context, id, path string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE ocr_files
SET formatted_docx_path = $2, updated_at = $3
WHERE id = $1
`, id, path, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set formatted docx: %w", err)
	}
	return requireRow(result, "set formatted docx")
}

func (r *OCRFileRepository) SetRawDocx(ctx context.Context, id, path string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE ocr_files
SET raw_docx_path = $2, updated_at = $3
WHERE id = $1
`, id, path, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set raw docx: %w", err)
	}
	return requireRow(result, "set raw docx")
}

// SaveRegisteredOutput is idempotent: re-registering the same artifact after
// a retried run refreshes the row instead of duplicating it.
func (r *OCRFileRepository) SaveRegisteredOutput(ctx context.Context, runID string, rf domain.RegisteredFile) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO ocr_registered_files (run_id, file_id, filename, path, created_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (run_id, file_id) DO UPDATE SET filename = EXCLUDED.filename, path = EXCLUDED.path
`, runID, rf.FileID, rf.Filename, rf.Path, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save registered output: %w", err)
	}
	return nil
}

func (r *OCRFileRepository) ListRegisteredOutputs(ctx context.Context, runID string) ([]domain.RegisteredFile, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT file_id, filename, path
FROM ocr_registered_files
WHERE run_id = $1
ORDER BY created_at
`, runID)
	if err != nil {
		return nil, fmt.Errorf("list registered outputs: %w", err)
	}
	defer rows.Close()

	out := make([]domain.RegisteredFile, 0)
	for rows.Next() {
		var rf domain.RegisteredFile
		if err := rows.Scan(&rf.FileID, &rf.Filename, &rf.Path); err != nil {
			return nil, fmt.Errorf("scan registered output: %w", err)
		}
		out = append(out, rf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registered outputs: %w", err)
	}
	return out, nil
}

const selectOCRFile = `
SELECT id, run_id, file_id, ocr_option, status,
	ocr_path, formatted_docx_path, raw_docx_path, failed_batches, missing_text_pages,
	created_at, updated_at
FROM ocr_files
`

func (r *OCRFileRepository) scanOne(row rowScanner, operation string) (*domain.OCRFile, error) {
	var rec domain.OCRFile
	var option, status string
	err := row.Scan(
		&rec.ID, &rec.RunID, &rec.FileID, &option, &status,
		&rec.OCRPath, &rec.FormattedDocxPath, &rec.RawDocxPath, &rec.FailedBatches, &rec.MissingTextPages,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrFileNotFound, operation, err)
		}
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	rec.Option = domain.OCROption(option)
	rec.Status = domain.FileStatus(status)
	return &rec, nil
}

func requireRow(result sql.Result, operation string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrFileNotFound, operation, sql.ErrNoRows)
	}
	return nil
}
