package worker_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"document-analyzer-service/internal/entity"
	"document-analyzer-service/internal/worker"
)

type fakeQueue struct {
	mu sync.Mutex

	ids     []string
	jobs    map[uuid.UUID]*entity.Job
	acked   []string
	started map[uuid.UUID]bool
	states  map[uuid.UUID]entity.JobState
	results map[uuid.UUID]json.RawMessage
	errs    map[uuid.UUID]string

	ackDone chan struct{}
	ackOnce sync.Once
}

func newFakeQueue(jobs ...*entity.Job) *fakeQueue {
	q := &fakeQueue{
		jobs:    map[uuid.UUID]*entity.Job{},
		started: map[uuid.UUID]bool{},
		states:  map[uuid.UUID]entity.JobState{},
		results: map[uuid.UUID]json.RawMessage{},
		errs:    map[uuid.UUID]string{},
		ackDone: make(chan struct{}),
	}
	for _, j := range jobs {
		q.jobs[j.ID] = j
		q.ids = append(q.ids, j.ID.String())
	}
	return q
}

func (q *fakeQueue) ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error) {
	q.mu.Lock()
	if len(q.ids) > 0 {
		id := q.ids[0]
		q.ids = q.ids[1:]
		q.mu.Unlock()
		return id, nil
	}
	q.mu.Unlock()
	<-ctx.Done()
	return "", ctx.Err()
}

func (q *fakeQueue) Ack(ctx context.Context, jobID string) error {
	q.mu.Lock()
	q.acked = append(q.acked, jobID)
	q.mu.Unlock()
	q.ackOnce.Do(func() { close(q.ackDone) })
	return nil
}

func (q *fakeQueue) RequeueStale(ctx context.Context, max int64) (int64, error) {
	return 0, nil
}

func (q *fakeQueue) GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.jobs[id], nil
}

func (q *fakeQueue) MarkStarted(ctx context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.started[id] = true
	q.states[id] = entity.JobStarted
	return nil
}

func (q *fakeQueue) MarkSuccess(ctx context.Context, id uuid.UUID, result json.RawMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.states[id] = entity.JobSuccess
	q.results[id] = result
	return nil
}

func (q *fakeQueue) MarkFailure(ctx context.Context, id uuid.UUID, errText string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.states[id] = entity.JobFailure
	q.errs[id] = errText
	return nil
}

func runPoolUntilAck(t *testing.T, queue *fakeQueue, repo *fakeDocRepo) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := worker.NewPool(queue, worker.NewProcessor(repo, zap.NewNop()), 1, zap.NewNop())
	go pool.Run(ctx)

	select {
	case <-queue.ackDone:
	case <-time.After(5 * time.Second):
		t.Fatal("job was never acked")
	}
	cancel()
}

func TestPool_SuccessfulJobMarkedAndAcked(t *testing.T) {
	doc := pendingDoc()
	repo := newFakeDocRepo(doc)
	path := writeTempFile(t, []byte("Vendor: Acme Ltd\nTotal: $2,000.00\n"))

	job := &entity.Job{ID: uuid.New(), DocumentID: doc.ID, FilePath: path, State: entity.JobPending}
	queue := newFakeQueue(job)

	runPoolUntilAck(t, queue, repo)

	queue.mu.Lock()
	defer queue.mu.Unlock()
	if !queue.started[job.ID] {
		t.Fatal("job never marked STARTED")
	}
	if queue.states[job.ID] != entity.JobSuccess {
		t.Fatalf("job state = %s, want SUCCESS", queue.states[job.ID])
	}
	var result struct {
		Vendor *string `json:"vendor"`
		Total  *string `json:"total"`
	}
	if err := json.Unmarshal(queue.results[job.ID], &result); err != nil {
		t.Fatalf("invalid result payload: %v", err)
	}
	if result.Vendor == nil || *result.Vendor != "Acme Ltd" {
		t.Fatalf("result vendor = %v", result.Vendor)
	}
	if len(queue.acked) != 1 || queue.acked[0] != job.ID.String() {
		t.Fatalf("acked = %v", queue.acked)
	}
}

func TestPool_FailedJobCarriesError(t *testing.T) {
	doc := pendingDoc()
	repo := newFakeDocRepo(doc)

	job := &entity.Job{ID: uuid.New(), DocumentID: doc.ID, FilePath: "/nowhere/doc.txt", State: entity.JobPending}
	queue := newFakeQueue(job)

	runPoolUntilAck(t, queue, repo)

	queue.mu.Lock()
	defer queue.mu.Unlock()
	if queue.states[job.ID] != entity.JobFailure {
		t.Fatalf("job state = %s, want FAILURE", queue.states[job.ID])
	}
	if queue.errs[job.ID] == "" {
		t.Fatal("failure must carry the error text")
	}
	if repo.failed[doc.ID] != 1 {
		t.Fatalf("record must be FAILED, writes=%d", repo.failed[doc.ID])
	}
}

func TestPool_RedeliveredTerminalJobSkipped(t *testing.T) {
	doc := pendingDoc()
	repo := newFakeDocRepo(doc)

	job := &entity.Job{ID: uuid.New(), DocumentID: doc.ID, FilePath: "/nowhere/doc.txt", State: entity.JobSuccess}
	queue := newFakeQueue(job)

	runPoolUntilAck(t, queue, repo)

	queue.mu.Lock()
	defer queue.mu.Unlock()
	if queue.started[job.ID] {
		t.Fatal("terminal job must not be restarted")
	}
	if queue.states[job.ID] != "" && queue.states[job.ID] != entity.JobSuccess {
		t.Fatalf("job state overwritten: %s", queue.states[job.ID])
	}
	if repo.writes() != 0 {
		t.Fatal("redelivery must not touch the record")
	}
}
