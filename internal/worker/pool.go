package worker

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"bruhbug-service/internal/entity"
	"bruhbug-service/internal/service"
)

// TaskProcessor is what the pool runs for every claimed task.
type TaskProcessor interface {
	Process(ctx context.Context, task entity.Task) (*Outcome, error)
}

type Pool struct {
	queue      service.Queue
	processor  TaskProcessor
	workers    int
	claimDelay time.Duration
	log        *zap.Logger
}

func NewPool(queue service.Queue, processor TaskProcessor, workers int, claimDelay time.Duration, log *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if claimDelay <= 0 {
		claimDelay = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool{
		queue:      queue,
		processor:  processor,
		workers:    workers,
		claimDelay: claimDelay,
		log:        log.Named("pool"),
	}
}

// Run claims tasks until ctx is done, then waits for in-flight tasks to finish.
// Every claimed task is processed once and acked whatever the outcome: there is
// no automatic retry of a worker invocation.
func (p *Pool) Run(ctx context.Context) {
	p.log.Info("worker pool started", zap.Int("workers", p.workers))

	claims := make(chan service.Claim)
	done := make(chan struct{})

	for i := 0; i < p.workers; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			for c := range claims {
				p.handle(ctx, n, c)
			}
		}(i + 1)
	}

	defer func() {
		close(claims)
		for i := 0; i < p.workers; i++ {
			<-done
		}
		p.log.Info("worker pool stopped")
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		c, err := p.queue.ClaimBlocking(ctx, p.claimDelay)
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				p.log.Warn("claim failed", zap.Error(err))
				sleep(ctx, time.Second)
			}
			continue
		}
		select {
		case claims <- c:
		case <-ctx.Done():
			// claimed but not started: leave it in processing for RequeueStale
			return
		}
	}
}

func (p *Pool) handle(ctx context.Context, n int, c service.Claim) {
	log := p.log.With(zap.Int("worker", n), zap.String("job_id", c.Task.DocumentID))

	out, err := p.processor.Process(ctx, c.Task)
	if err != nil {
		log.Warn("process task failed", zap.Error(err))
	} else if werr := out.Wait(context.WithoutCancel(ctx)); werr != nil {
		log.Warn("persist failed", zap.Error(werr))
	}

	// ack in any case: the job either produced a record or was abandoned
	if ackErr := p.queue.Ack(context.WithoutCancel(ctx), c); ackErr != nil {
		log.Warn("ack failed", zap.Error(ackErr))
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
