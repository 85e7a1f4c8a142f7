package entity

import (
	"time"

	"github.com/google/uuid"
)

type DocumentStatus string

const (
	StatusPending DocumentStatus = "PENDING"
	StatusSuccess DocumentStatus = "SUCCESS"
	StatusFailed  DocumentStatus = "FAILED"
)

// Terminal reports whether no further status transition is permitted.
func (s DocumentStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// ParsedFields holds the best-effort structured fields pulled out of a
// document's text. A nil field means the extractor found nothing for it.
type ParsedFields struct {
	Vendor    *string `json:"vendor"`
	InvoiceNo *string `json:"invoice_no"`
	Date      *string `json:"date"`
	Total     *string `json:"total"`
}

// Document is one uploaded document and its extraction outcome.
// RawText and Parsed are empty until a processing run succeeds;
// a FAILED document keeps them empty.
type Document struct {
	ID        uuid.UUID      `json:"id"`
	Filename  *string        `json:"filename,omitempty"`
	RawText   string         `json:"raw_text"`
	Parsed    ParsedFields   `json:"parsed"`
	JobID     *uuid.UUID     `json:"job_id,omitempty"`
	Status    DocumentStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
