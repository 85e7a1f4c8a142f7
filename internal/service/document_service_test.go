package service_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"document-analyzer-service/internal/entity"
	"document-analyzer-service/internal/repository/postgresql"
	"document-analyzer-service/internal/service"
)

// ---- fakes ----

type fakeRepo struct {
	ops []string

	createID   uuid.UUID
	createErr  error
	lastJobID  uuid.UUID
	setJobErr  error
	lastOffset int
	lastLimit  int
}

func (r *fakeRepo) Create(ctx context.Context, filename *string) (uuid.UUID, error) {
	r.ops = append(r.ops, "create")
	if r.createErr != nil {
		return uuid.Nil, r.createErr
	}
	return r.createID, nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	return nil, postgresql.ErrNotFound
}

func (r *fakeRepo) List(ctx context.Context, offset, limit int) ([]*entity.Document, error) {
	r.lastOffset = offset
	r.lastLimit = limit
	return nil, nil
}

func (r *fakeRepo) SetJobID(ctx context.Context, id, jobID uuid.UUID) error {
	r.ops = append(r.ops, "set_job_id")
	r.lastJobID = jobID
	return r.setJobErr
}

type fakeDispatcher struct {
	ops       *[]string
	submitted []entity.Job
	submitErr error
}

func (d *fakeDispatcher) Submit(ctx context.Context, job entity.Job) error {
	if d.ops != nil {
		*d.ops = append(*d.ops, "submit")
	}
	if d.submitErr != nil {
		return d.submitErr
	}
	d.submitted = append(d.submitted, job)
	return nil
}

func (d *fakeDispatcher) GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	return nil, service.ErrJobNotFound
}

// ---- tests ----

func TestUpload_CommitsRecordAndJobIDBeforeDispatch(t *testing.T) {
	docID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	repo := &fakeRepo{createID: docID}
	disp := &fakeDispatcher{ops: &repo.ops}
	svc := service.NewDocumentService(repo, disp, t.TempDir(), zap.NewNop())

	res, err := svc.Upload(context.Background(), "invoice.txt", strings.NewReader("Total: $1.00\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"create", "set_job_id", "submit"}
	if len(repo.ops) != len(want) {
		t.Fatalf("ops = %v, want %v", repo.ops, want)
	}
	for i := range want {
		if repo.ops[i] != want[i] {
			t.Fatalf("ops = %v, want %v", repo.ops, want)
		}
	}

	if res.DocumentID != docID {
		t.Fatalf("document id = %s, want %s", res.DocumentID, docID)
	}
	if res.JobID != repo.lastJobID {
		t.Fatalf("returned job id %s differs from persisted %s", res.JobID, repo.lastJobID)
	}

	if len(disp.submitted) != 1 {
		t.Fatalf("expected one submitted job, got %d", len(disp.submitted))
	}
	job := disp.submitted[0]
	if job.ID != res.JobID || job.DocumentID != docID {
		t.Fatalf("job ids mismatch: %+v", job)
	}

	content, err := os.ReadFile(job.FilePath)
	if err != nil {
		t.Fatalf("saved file unreadable: %v", err)
	}
	if string(content) != "Total: $1.00\n" {
		t.Fatalf("saved file content = %q", content)
	}
}

func TestUpload_EmptyFilenameGetsGenerated(t *testing.T) {
	repo := &fakeRepo{createID: uuid.New()}
	disp := &fakeDispatcher{}
	svc := service.NewDocumentService(repo, disp, t.TempDir(), zap.NewNop())

	res, err := svc.Upload(context.Background(), "", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.JobID == uuid.Nil {
		t.Fatal("job id not assigned")
	}
}

func TestUpload_DispatchFailureSurfaces(t *testing.T) {
	repo := &fakeRepo{createID: uuid.New()}
	disp := &fakeDispatcher{submitErr: errors.New("broker down")}
	svc := service.NewDocumentService(repo, disp, t.TempDir(), zap.NewNop())

	_, err := svc.Upload(context.Background(), "a.txt", strings.NewReader("x"))
	if err == nil || !strings.Contains(err.Error(), "broker down") {
		t.Fatalf("expected dispatch error, got %v", err)
	}
}

func TestListDocuments_ClampsPaging(t *testing.T) {
	repo := &fakeRepo{}
	svc := service.NewDocumentService(repo, &fakeDispatcher{}, t.TempDir(), zap.NewNop())

	cases := []struct {
		offset, limit         int
		wantOffset, wantLimit int
	}{
		{-5, 0, 0, 50},
		{0, -1, 0, 50},
		{10, 999, 10, 200},
		{3, 7, 3, 7},
	}
	for _, tc := range cases {
		if _, err := svc.ListDocuments(context.Background(), tc.offset, tc.limit); err != nil {
			t.Fatalf("list: %v", err)
		}
		if repo.lastOffset != tc.wantOffset || repo.lastLimit != tc.wantLimit {
			t.Fatalf("offset/limit = %d/%d, want %d/%d",
				repo.lastOffset, repo.lastLimit, tc.wantOffset, tc.wantLimit)
		}
	}
}
