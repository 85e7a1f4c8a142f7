package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"document-analyzer-service/internal/entity"
	"document-analyzer-service/internal/extractor"
	"document-analyzer-service/internal/repository/postgresql"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrFileNotFound     = errors.New("file not found")
	// ErrAlreadyProcessed marks a redelivered claim for a record that
	// already reached a terminal status. The pool acks it without
	// touching the job record.
	ErrAlreadyProcessed = errors.New("document already processed")
)

// DocumentRepo is the record-store port the state machine mutates
// (implementation: postgresql.DocumentRepository).
type DocumentRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error)
	MarkSucceeded(ctx context.Context, id uuid.UUID, rawText string, fields extractor.Fields) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
}

// Processor drives one document through its single processing attempt:
// PENDING -> SUCCESS on a clean run, PENDING -> FAILED on any failure.
// Terminal states are final; there is no retry here.
type Processor struct {
	repo DocumentRepo
	log  *zap.Logger
}

func NewProcessor(repo DocumentRepo, log *zap.Logger) *Processor {
	return &Processor{repo: repo, log: log}
}

// Process reads the file, runs extraction and writes the terminal state.
// On success it returns the extracted fields; on failure the record has
// been best-effort marked FAILED and the cause is returned so the caller
// can mark the job failed too.
func (p *Processor) Process(ctx context.Context, documentID uuid.UUID, filePath string) (*extractor.Fields, error) {
	doc, err := p.repo.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, postgresql.ErrNotFound) {
			return nil, fmt.Errorf("document %s: %w", documentID, ErrDocumentNotFound)
		}
		return nil, fmt.Errorf("load document %s: %w", documentID, err)
	}

	if doc.Status.Terminal() {
		return nil, fmt.Errorf("document %s is %s: %w", documentID, doc.Status, ErrAlreadyProcessed)
	}

	if _, err := os.Stat(filePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, p.fail(ctx, documentID, fmt.Errorf("%s: %w", filePath, ErrFileNotFound))
		}
		return nil, p.fail(ctx, documentID, fmt.Errorf("stat %s: %w", filePath, err))
	}

	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, p.fail(ctx, documentID, fmt.Errorf("read %s: %w", filePath, err))
	}

	text := decode(raw)
	if !utf8.Valid(raw) {
		p.log.Warn("decode fallback: invalid utf-8 replaced",
			zap.String("document_id", documentID.String()),
			zap.String("file_path", filePath),
		)
	}

	fields := extractor.Extract(text)

	if err := p.repo.MarkSucceeded(ctx, documentID, text, fields); err != nil {
		return nil, p.fail(ctx, documentID, fmt.Errorf("persist result: %w", err))
	}
	return &fields, nil
}

// decode interprets raw bytes as UTF-8, replacing invalid sequences with
// the replacement character. Same bytes always yield the same string.
func decode(raw []byte) string {
	return strings.ToValidUTF8(string(raw), "�")
}

// fail best-effort marks the record FAILED and returns the original
// cause. A failed status write is logged and does not mask the cause.
func (p *Processor) fail(ctx context.Context, documentID uuid.UUID, cause error) error {
	if err := p.repo.MarkFailed(ctx, documentID); err != nil {
		p.log.Error("mark failed write did not land",
			zap.String("document_id", documentID.String()),
			zap.Error(err),
		)
	}
	return cause
}
