// Package worker runs background jobs pulled from the Redis queue.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/aura-webinar/portal/internal/apperr"
	"github.com/aura-webinar/portal/internal/roster"
	"github.com/aura-webinar/portal/pkg/queue"
)

// ObjectReader fetches archived roster files.
type ObjectReader interface {
	GetObjectStream(ctx context.Context, bucket, key string) (io.ReadCloser, string, error)
}

// Importer parses and stores a roster file.
type Importer interface {
	ImportCSV(ctx context.Context, r io.Reader) (roster.ImportResult, error)
}

// JobQueue is the queue the processor consumes.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// RosterProcessor processes roster import jobs: download from S3, parse, insert.
type RosterProcessor struct {
	importer Importer
	objects  ObjectReader
	queue    JobQueue
	backoff  time.Duration
	logger   *zap.Logger
}

// NewRosterProcessor creates a roster import processor.
func NewRosterProcessor(importer Importer, objects ObjectReader, q JobQueue, logger *zap.Logger) *RosterProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterProcessor{importer: importer, objects: objects, queue: q, backoff: queue.RetryBackoff, logger: logger}
}

// errPermanent marks failures that retrying cannot fix.
var errPermanent = errors.New("permanent job failure")

// Process executes one roster import job.
func (p *RosterProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeRosterImport {
		return fmt.Errorf("%w: unknown job type %s", errPermanent, job.Type)
	}
	var payload queue.RosterImportPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("%w: unmarshal payload: %v", errPermanent, err)
	}

	body, _, err := p.objects.GetObjectStream(ctx, payload.Bucket, payload.Key)
	if err != nil {
		return fmt.Errorf("download roster: %w", err)
	}
	defer body.Close()

	res, err := p.importer.ImportCSV(ctx, body)
	if err != nil {
		if _, ok := apperr.AsValidation(err); ok {
			return fmt.Errorf("%w: %v", errPermanent, err)
		}
		return fmt.Errorf("import roster: %w", err)
	}

	p.logger.Info("roster import completed",
		zap.String("job_id", job.ID),
		zap.String("key", payload.Key),
		zap.String("requested_by", payload.RequestedBy),
		zap.Int("inserted", res.InsertedCount),
		zap.Int("total", res.TotalCount))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *RosterProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("roster worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			if errors.Is(err, errPermanent) {
				p.logger.Error("job dropped", zap.String("job_id", job.ID), zap.Error(err))
				continue
			}
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *RosterProcessor) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(p.backoff):
	}
}
