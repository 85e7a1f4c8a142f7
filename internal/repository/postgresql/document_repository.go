package postgresql

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"document-analyzer-service/internal/entity"
	"document-analyzer-service/internal/extractor"
)

var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    id                UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    filename          TEXT,
    raw_text          TEXT NOT NULL DEFAULT '',
    parsed_vendor     TEXT,
    parsed_invoice_no TEXT,
    parsed_date       TEXT,
    parsed_total      TEXT,
    job_id            UUID,
    status            TEXT NOT NULL DEFAULT 'PENDING',
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS documents_job_id_idx ON documents (job_id);
`

type DocumentRepository struct {
	pool *pgxpool.Pool
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{pool: pool}
}

// InitSchema creates the documents table if it does not exist yet.
func (r *DocumentRepository) InitSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, schema)
	return err
}

// Create inserts a new PENDING record with empty text and no parsed fields.
func (r *DocumentRepository) Create(ctx context.Context, filename *string) (uuid.UUID, error) {
	const q = `
INSERT INTO documents (filename, status)
VALUES ($1, 'PENDING')
RETURNING id;
`
	var id uuid.UUID
	if err := r.pool.QueryRow(ctx, q, filename).Scan(&id); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

const documentColumns = `
id, filename, raw_text, parsed_vendor, parsed_invoice_no, parsed_date,
parsed_total, job_id, status, created_at, updated_at
`

func scanDocument(row pgx.Row) (*entity.Document, error) {
	var (
		doc        entity.Document
		statusText string
		createdAt  time.Time
		updatedAt  time.Time
	)
	if err := row.Scan(
		&doc.ID,
		&doc.Filename,
		&doc.RawText,
		&doc.Parsed.Vendor,
		&doc.Parsed.InvoiceNo,
		&doc.Parsed.Date,
		&doc.Parsed.Total,
		&doc.JobID,
		&statusText,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	doc.Status = entity.DocumentStatus(statusText)
	doc.CreatedAt = createdAt
	doc.UpdatedAt = updatedAt
	return &doc, nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	const q = `SELECT ` + documentColumns + ` FROM documents WHERE id = $1;`

	doc, err := scanDocument(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (r *DocumentRepository) List(ctx context.Context, offset, limit int) ([]*entity.Document, error) {
	const q = `SELECT ` + documentColumns + ` FROM documents ORDER BY created_at, id OFFSET $1 LIMIT $2;`

	rows, err := r.pool.Query(ctx, q, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]*entity.Document, 0, limit)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// SetJobID records the dispatched job on the record. Set at most once.
func (r *DocumentRepository) SetJobID(ctx context.Context, id, jobID uuid.UUID) error {
	const q = `UPDATE documents SET job_id=$2, updated_at=now() WHERE id=$1 AND job_id IS NULL;`

	tag, err := r.pool.Exec(ctx, q, id, jobID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkSucceeded writes the terminal SUCCESS state: raw text, all four
// parsed fields and status land in a single UPDATE, so a concurrent
// reader never sees text or fields on a still-PENDING record. The
// status guard makes the transition once-only.
func (r *DocumentRepository) MarkSucceeded(ctx context.Context, id uuid.UUID, rawText string, fields extractor.Fields) error {
	const q = `
UPDATE documents
SET raw_text=$2,
    parsed_vendor=$3,
    parsed_invoice_no=$4,
    parsed_date=$5,
    parsed_total=$6,
    status='SUCCESS',
    updated_at=now()
WHERE id=$1 AND status='PENDING';
`
	tag, err := r.pool.Exec(ctx, q, id, rawText, fields.Vendor, fields.InvoiceNo, fields.Date, fields.Total)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFailed writes the terminal FAILED state. Text and parsed fields
// stay empty.
func (r *DocumentRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE documents SET status='FAILED', updated_at=now() WHERE id=$1 AND status='PENDING';`

	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
