package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"bruhbug-service/internal/entity"
	"bruhbug-service/internal/llm"
	"bruhbug-service/internal/metrics"
)

type RecordWriter interface {
	Create(ctx context.Context, rec *entity.BugRecord) error
}

// IdentityResolver looks up the display preferences of a user.
type IdentityResolver interface {
	Profile(ctx context.Context, userID string) (entity.Preferences, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, ev entity.RecordEvent) error
}

type Options struct {
	Identity       IdentityResolver
	Events         EventPublisher
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
	GenerateLimit  time.Duration
	PersistTimeout time.Duration
}

// Processor turns one task into one bug record.
type Processor struct {
	gen            llm.Generator
	repo           RecordWriter
	identity       IdentityResolver
	events         EventPublisher
	metrics        *metrics.Metrics
	log            *zap.Logger
	generateLimit  time.Duration
	persistTimeout time.Duration
}

// NewProcessor accepts a nil generator: every task is then rejected as a
// validation error, the way a missing API key is reported.
func NewProcessor(gen llm.Generator, repo RecordWriter, opts Options) *Processor {
	p := &Processor{
		gen:            gen,
		repo:           repo,
		identity:       opts.Identity,
		events:         opts.Events,
		metrics:        opts.Metrics,
		log:            opts.Logger,
		generateLimit:  opts.GenerateLimit,
		persistTimeout: opts.PersistTimeout,
	}
	if p.metrics == nil {
		p.metrics = metrics.Nop()
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	p.log = p.log.Named("worker")
	if p.generateLimit <= 0 {
		p.generateLimit = 30 * time.Second
	}
	if p.persistTimeout <= 0 {
		p.persistTimeout = 10 * time.Second
	}
	return p
}

// Outcome carries the generated roast and, separately, the persistence result.
// The roast is usable before the write is confirmed.
type Outcome struct {
	Roast string
	JobID string

	done chan struct{}
	err  error
}

// Persisted is closed once the record write finished.
func (o *Outcome) Persisted() <-chan struct{} { return o.done }

// Err is the write result (nil or wrapping entity.ErrPersistence). Valid after Persisted is closed.
func (o *Outcome) Err() error {
	select {
	case <-o.done:
		return o.err
	default:
		return nil
	}
}

// Wait blocks until the write finished or ctx is done.
func (o *Outcome) Wait(ctx context.Context) error {
	select {
	case <-o.done:
		return o.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Process validates the task, generates the roast and starts the record write.
// It returns as soon as the roast text is known; the write continues even if
// ctx is cancelled afterwards.
func (p *Processor) Process(ctx context.Context, task entity.Task) (*Outcome, error) {
	start := time.Now()
	log := p.log.With(zap.String("job_id", task.DocumentID))

	desc, err := p.validate(task)
	if err != nil {
		p.metrics.GenerationFailures.WithLabelValues("validation").Inc()
		log.Warn("task rejected", zap.Error(err))
		return nil, err
	}

	roast, err := p.generate(ctx, desc)
	if err != nil {
		reason := "stream"
		if errors.Is(err, errEmptyRoast) {
			reason = "empty"
		}
		p.metrics.GenerationFailures.WithLabelValues(reason).Inc()
		log.Warn("generation failed",
			zap.String("status", "error"),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.Error(err),
		)
		return nil, err
	}
	p.metrics.RoastsGenerated.Inc()
	log.Info("roast generated", zap.Int64("duration_ms", time.Since(start).Milliseconds()))

	name, handle, avatar := p.snapshot(ctx, task.OwnerID)
	rec := &entity.BugRecord{
		ID:            task.DocumentID,
		OwnerID:       task.OwnerID,
		Description:   desc,
		DisplayName:   name,
		DisplayHandle: handle,
		AvatarRef:     avatar,
		Result:        &roast,
		Shared:        task.Shared,
	}

	out := &Outcome{Roast: roast, JobID: task.DocumentID, done: make(chan struct{})}
	go func() {
		defer close(out.done)
		out.err = p.persist(context.WithoutCancel(ctx), rec, start)
	}()
	return out, nil
}

var errEmptyRoast = errors.New("no roast generated")

func (p *Processor) validate(task entity.Task) (string, error) {
	if p.gen == nil {
		return "", fmt.Errorf("%w: generation credential missing", entity.ErrValidation)
	}
	if strings.TrimSpace(task.DocumentID) == "" {
		return "", fmt.Errorf("%w: documentId is required", entity.ErrValidation)
	}
	if strings.TrimSpace(task.OwnerID) == "" {
		return "", fmt.Errorf("%w: owner is required", entity.ErrValidation)
	}
	return entity.NormalizeDescription(task.Description)
}

func (p *Processor) generate(ctx context.Context, desc string) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, p.generateLimit)
	defer cancel()

	text, err := llm.Collect(p.gen.Stream(genCtx, llm.RoastPrompt(desc)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", entity.ErrGeneration, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: %w", entity.ErrGeneration, errEmptyRoast)
	}
	return text, nil
}

// snapshot never fails: identity is best effort and must not block the record.
func (p *Processor) snapshot(ctx context.Context, ownerID string) (name, handle, avatar string) {
	var prefs entity.Preferences
	if p.identity != nil {
		got, err := p.identity.Profile(ctx, ownerID)
		if err != nil {
			p.log.Debug("profile lookup failed, using defaults", zap.String("owner_id", ownerID), zap.Error(err))
		} else {
			prefs = got
		}
	}
	return prefs.Snapshot()
}

func (p *Processor) persist(ctx context.Context, rec *entity.BugRecord, start time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, p.persistTimeout)
	defer cancel()
	log := p.log.With(zap.String("job_id", rec.ID))

	if err := p.repo.Create(ctx, rec); err != nil {
		p.metrics.RecordWrites.WithLabelValues("error").Inc()
		log.Error("record write failed, roast lost", zap.Error(err))
		return fmt.Errorf("%w: %v", entity.ErrPersistence, err)
	}
	p.metrics.RecordWrites.WithLabelValues("ok").Inc()

	if p.events != nil {
		ev := entity.RecordEvent{Type: entity.EventCreate, RecordID: rec.ID, Record: rec}
		if err := p.events.Publish(ctx, ev); err != nil {
			// pollers still find the record
			log.Warn("publish event failed", zap.Error(err))
		}
	}

	log.Info("record saved",
		zap.String("status", "done"),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return nil
}

// Roast is the direct invocation path: it returns the roast text without
// waiting for the record write, which completes on its own.
func (p *Processor) Roast(ctx context.Context, task entity.Task) (string, error) {
	out, err := p.Process(ctx, task)
	if err != nil {
		return "", err
	}
	return out.Roast, nil
}
