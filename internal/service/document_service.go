package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"document-analyzer-service/internal/entity"
)

// DocumentRepository is the record-store port (implementation:
// postgresql.DocumentRepository).
type DocumentRepository interface {
	Create(ctx context.Context, filename *string) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error)
	List(ctx context.Context, offset, limit int) ([]*entity.Document, error)
	SetJobID(ctx context.Context, id, jobID uuid.UUID) error
}

type DocumentService struct {
	repo       DocumentRepository
	dispatcher Dispatcher
	storageDir string
	log        *zap.Logger
}

func NewDocumentService(repo DocumentRepository, dispatcher Dispatcher, storageDir string, log *zap.Logger) *DocumentService {
	return &DocumentService{
		repo:       repo,
		dispatcher: dispatcher,
		storageDir: storageDir,
		log:        log,
	}
}

type UploadResult struct {
	DocumentID uuid.UUID
	JobID      uuid.UUID
}

// Upload saves the blob, creates a PENDING record, stamps a fresh job id
// on it and only then submits the job. The record (with its job id) is
// committed before dispatch, so a status query can never observe a job
// whose record does not exist yet.
func (s *DocumentService) Upload(ctx context.Context, filename string, content io.Reader) (*UploadResult, error) {
	fileID := uuid.New()
	if filename == "" {
		filename = "upload-" + fileID.String()
	}
	filename = filepath.Base(filename)

	savedPath := filepath.Join(s.storageDir, fileID.String()+"-"+filename)
	if err := saveFile(savedPath, content); err != nil {
		return nil, fmt.Errorf("save uploaded file: %w", err)
	}

	docID, err := s.repo.Create(ctx, &filename)
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	jobID := uuid.New()
	if err := s.repo.SetJobID(ctx, docID, jobID); err != nil {
		return nil, fmt.Errorf("set job id: %w", err)
	}

	job := entity.Job{ID: jobID, DocumentID: docID, FilePath: savedPath}
	if err := s.dispatcher.Submit(ctx, job); err != nil {
		// Record stays PENDING with a job id that never ran; callers
		// treat indefinitely-PENDING records as abandoned.
		return nil, fmt.Errorf("submit job: %w", err)
	}

	s.log.Info("document uploaded",
		zap.String("document_id", docID.String()),
		zap.String("job_id", jobID.String()),
		zap.String("filename", filename),
	)
	return &UploadResult{DocumentID: docID, JobID: jobID}, nil
}

func saveFile(path string, content io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s *DocumentService) GetDocument(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *DocumentService) ListDocuments(ctx context.Context, offset, limit int) ([]*entity.Document, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	return s.repo.List(ctx, offset, limit)
}

func (s *DocumentService) GetJobStatus(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	job, err := s.dispatcher.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("job status lookup: %w", err)
	}
	return job, nil
}
