package job

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel/trace"
)

type FollowupResolver interface {
	ResolvePendingFollowups(ctx context.Context, limit int) (int, error)
}

// FollowupJob periodically re-analyzes impact results whose later timeframes
// were still in the future when first computed.
type FollowupJob struct {
	tracer       trace.Tracer
	service      FollowupResolver
	pollInterval time.Duration
	batchSize    int
}

func NewFollowupJob(tracer trace.Tracer, service FollowupResolver, pollInterval time.Duration, batchSize int) *FollowupJob {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &FollowupJob{tracer: tracer, service: service, pollInterval: pollInterval, batchSize: batchSize}
}

func (j *FollowupJob) Start(ctx context.Context) {
	if j.service == nil {
		log.Println("Followup job disabled: no service")
		<-ctx.Done()
		return
	}
	j.runOnce(ctx)
	ticker := time.NewTicker(j.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *FollowupJob) runOnce(ctx context.Context) {
	_, span := j.tracer.Start(ctx, "followup-job.run-once")
	defer span.End()

	resolved, err := j.service.ResolvePendingFollowups(ctx, j.batchSize)
	if err != nil {
		log.Printf("Followup resolver error: %v", err)
		return
	}
	if resolved > 0 {
		log.Printf("Followup resolver updated %d impact results", resolved)
	}
}
