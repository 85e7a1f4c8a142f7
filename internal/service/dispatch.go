package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"document-analyzer-service/internal/entity"
)

var ErrJobNotFound = errors.New("job not found")

// Dispatcher is the upload-side view of work dispatch: hand over a job,
// look its status up later.
type Dispatcher interface {
	Submit(ctx context.Context, job entity.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error)
}

// WorkerQueue is the worker-side view: claim ids, load and mark job
// records, ack, and requeue stale claims.
type WorkerQueue interface {
	ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error)
	Ack(ctx context.Context, jobID string) error
	RequeueStale(ctx context.Context, max int64) (int64, error)
	GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	MarkStarted(ctx context.Context, id uuid.UUID) error
	MarkSuccess(ctx context.Context, id uuid.UUID, result json.RawMessage) error
	MarkFailure(ctx context.Context, id uuid.UUID, errText string) error
}

// RedisDispatcher keeps each job record in a hash under keyPrefix+id and
// delivers ids through a reliable list pair:
// Claim: BRPopLPush queueKey -> processingKey
// Ack:   LRem from processingKey
// A reaper moves stale processing entries back to the queue, so delivery
// is at-least-once; the record store's status guards absorb redelivery.
type RedisDispatcher struct {
	rdb           *redis.Client
	keyPrefix     string
	queueKey      string
	processingKey string
	ttl           time.Duration
}

func NewRedisDispatcher(rdb *redis.Client, keyPrefix, queueKey, processingKey string, ttl time.Duration) *RedisDispatcher {
	return &RedisDispatcher{
		rdb:           rdb,
		keyPrefix:     keyPrefix,
		queueKey:      queueKey,
		processingKey: processingKey,
		ttl:           ttl,
	}
}

func (d *RedisDispatcher) jobKey(id uuid.UUID) string {
	return d.keyPrefix + id.String()
}

// Submit writes the job record first and only then enqueues the id, so a
// claimed id always resolves to a record.
func (d *RedisDispatcher) Submit(ctx context.Context, job entity.Job) error {
	key := d.jobKey(job.ID)

	if err := d.rdb.HSet(ctx, key,
		"document_id", job.DocumentID.String(),
		"file_path", job.FilePath,
		"state", string(entity.JobPending),
	).Err(); err != nil {
		return err
	}
	if d.ttl > 0 {
		if err := d.rdb.Expire(ctx, key, d.ttl).Err(); err != nil {
			return err
		}
	}
	return d.rdb.LPush(ctx, d.queueKey, job.ID.String()).Err()
}

func (d *RedisDispatcher) GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	vals, err := d.rdb.HGetAll(ctx, d.jobKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, ErrJobNotFound
	}

	job := &entity.Job{
		ID:       id,
		FilePath: vals["file_path"],
		State:    entity.JobState(vals["state"]),
		Error:    vals["error"],
	}
	if docID, err := uuid.Parse(vals["document_id"]); err == nil {
		job.DocumentID = docID
	}
	if res := vals["result"]; res != "" {
		job.Result = json.RawMessage(res)
	}
	return job, nil
}

// ClaimBlocking pops one job id, moving it to the processing list.
// Returns redis.Nil when nothing arrived within the timeout.
func (d *RedisDispatcher) ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error) {
	return d.rdb.BRPopLPush(ctx, d.queueKey, d.processingKey, timeout).Result()
}

func (d *RedisDispatcher) Ack(ctx context.Context, jobID string) error {
	return d.rdb.LRem(ctx, d.processingKey, 1, jobID).Err()
}

// RequeueStale moves up to max entries from processing back to the queue.
func (d *RedisDispatcher) RequeueStale(ctx context.Context, max int64) (int64, error) {
	var moved int64
	for i := int64(0); i < max; i++ {
		id, err := d.rdb.RPopLPush(ctx, d.processingKey, d.queueKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				break
			}
			return moved, err
		}
		if id != "" {
			moved++
		}
	}
	return moved, nil
}

func (d *RedisDispatcher) MarkStarted(ctx context.Context, id uuid.UUID) error {
	return d.rdb.HSet(ctx, d.jobKey(id), "state", string(entity.JobStarted)).Err()
}

func (d *RedisDispatcher) MarkSuccess(ctx context.Context, id uuid.UUID, result json.RawMessage) error {
	if len(result) == 0 {
		result = json.RawMessage(`{}`)
	}
	return d.rdb.HSet(ctx, d.jobKey(id),
		"state", string(entity.JobSuccess),
		"result", string(result),
	).Err()
}

func (d *RedisDispatcher) MarkFailure(ctx context.Context, id uuid.UUID, errText string) error {
	return d.rdb.HSet(ctx, d.jobKey(id),
		"state", string(entity.JobFailure),
		"error", errText,
	).Err()
}
