package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"document-analyzer-service/internal/entity"
	"document-analyzer-service/internal/service"
)

type Pool struct {
	queue      service.WorkerQueue
	processor  *Processor
	workers    int
	claimDelay time.Duration
	log        *zap.Logger
}

func NewPool(queue service.WorkerQueue, processor *Processor, workers int, log *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	return &Pool{
		queue:      queue,
		processor:  processor,
		workers:    workers,
		claimDelay: 5 * time.Second,
		log:        log,
	}
}

func (p *Pool) Run(ctx context.Context) {
	p.log.Info("worker pool started", zap.Int("workers", p.workers))

	jobCh := make(chan string)

	for i := 0; i < p.workers; i++ {
		go func(n int) {
			log := p.log.With(zap.Int("worker", n))
			for jobID := range jobCh {
				p.handle(ctx, log, jobID)

				// Ack regardless: the job record already carries its
				// terminal state. If handle died before marking it,
				// the reaper redelivers the id.
				if err := p.queue.Ack(ctx, jobID); err != nil {
					log.Error("ack failed", zap.String("job_id", jobID), zap.Error(err))
				}
			}
		}(i + 1)
	}

	for {
		select {
		case <-ctx.Done():
			close(jobCh)
			p.log.Info("worker pool stopped")
			return
		default:
			jobID, err := p.queue.ClaimBlocking(ctx, p.claimDelay)
			if err != nil {
				// timeout / redis.Nil / ctx cancel
				continue
			}
			select {
			case jobCh <- jobID:
			case <-ctx.Done():
				close(jobCh)
				return
			}
		}
	}
}

func (p *Pool) handle(ctx context.Context, log *zap.Logger, jobID string) {
	start := time.Now()

	id, err := uuid.Parse(jobID)
	if err != nil {
		log.Error("unparseable job id", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	log = log.With(zap.String("job_id", jobID))

	job, err := p.queue.GetJob(ctx, id)
	if err != nil {
		log.Error("job record lookup failed", zap.Error(err))
		return
	}

	if job.State == entity.JobSuccess || job.State == entity.JobFailure {
		log.Info("redelivered claim for finished job, skipping")
		return
	}

	if err := p.queue.MarkStarted(ctx, id); err != nil {
		log.Error("mark started failed", zap.Error(err))
		return
	}

	fields, procErr := p.processor.Process(ctx, job.DocumentID, job.FilePath)
	if procErr != nil {
		if errors.Is(procErr, ErrAlreadyProcessed) {
			log.Info("redelivered claim for terminal record, skipping",
				zap.String("document_id", job.DocumentID.String()),
			)
			return
		}
		if err := p.queue.MarkFailure(ctx, id, procErr.Error()); err != nil {
			log.Error("mark failure failed", zap.Error(err))
		}
		log.Warn("job failed",
			zap.String("document_id", job.DocumentID.String()),
			zap.Duration("duration", time.Since(start)),
			zap.Error(procErr),
		)
		return
	}

	result, err := json.Marshal(fields)
	if err != nil {
		result = json.RawMessage(`{}`)
	}
	if err := p.queue.MarkSuccess(ctx, id, result); err != nil {
		log.Error("mark success failed", zap.Error(err))
		return
	}

	log.Info("job done",
		zap.String("document_id", job.DocumentID.String()),
		zap.Duration("duration", time.Since(start)),
	)
}
