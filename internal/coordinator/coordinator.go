// Package coordinator turns a bug description into a dispatched job and an armed watch.
package coordinator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"bruhbug-service/internal/entity"
	"bruhbug-service/internal/idgen"
	"bruhbug-service/internal/session"
	"bruhbug-service/internal/watch"
)

// Dispatcher triggers the worker and returns once the trigger was accepted.
type Dispatcher interface {
	Dispatch(ctx context.Context, task entity.Task) error
}

type Watcher interface {
	Watch(ctx context.Context, jobID string, opts ...watch.Option) (*watch.Handle, error)
}

type Coordinator struct {
	session  *session.Context
	dispatch Dispatcher
	watcher  Watcher
	newID    func() string
	log      *zap.Logger
}

func New(sess *session.Context, dispatch Dispatcher, watcher Watcher, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		session:  sess,
		dispatch: dispatch,
		watcher:  watcher,
		newID:    idgen.NewID,
		log:      log.Named("coordinator"),
	}
}

// Submission is one dispatched job and the watch waiting for its record.
type Submission struct {
	JobID string
	*watch.Handle
}

type submitOptions struct {
	shared     bool
	onComplete func(watch.Result)
}

type SubmitOption func(*submitOptions)

// Shared sets the record's visibility. Records are shared unless told otherwise.
func Shared(shared bool) SubmitOption {
	return func(o *submitOptions) { o.shared = shared }
}

func OnComplete(fn func(watch.Result)) SubmitOption {
	return func(o *submitOptions) { o.onComplete = fn }
}

// Submit dispatches the worker for description without waiting for it and
// arms one watch for the minted job id. ctx bounds the dispatch call and the
// watch. A dispatch failure returns entity.ErrDispatch and arms nothing.
func (c *Coordinator) Submit(ctx context.Context, description string, opts ...SubmitOption) (*Submission, error) {
	o := submitOptions{shared: true}
	for _, opt := range opts {
		opt(&o)
	}

	user := c.session.Current()
	if user == nil || user.ID == "" {
		return nil, entity.ErrAuthRequired
	}
	desc, err := entity.NormalizeDescription(description)
	if err != nil {
		return nil, err
	}

	jobID := c.newID()
	log := c.log.With(zap.String("job_id", jobID))

	task := entity.Task{Description: desc, DocumentID: jobID, OwnerID: user.ID, Shared: o.shared}
	if err := c.dispatch.Dispatch(ctx, task); err != nil {
		log.Warn("dispatch failed", zap.Error(err))
		if errors.Is(err, entity.ErrDispatch) || errors.Is(err, entity.ErrAuthRequired) || errors.Is(err, entity.ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", entity.ErrDispatch, err)
	}

	var wopts []watch.Option
	if o.onComplete != nil {
		wopts = append(wopts, watch.OnComplete(o.onComplete))
	}
	h, err := c.watcher.Watch(ctx, jobID, wopts...)
	if err != nil {
		return nil, fmt.Errorf("arm watch: %w", err)
	}
	log.Debug("submission dispatched")
	return &Submission{JobID: jobID, Handle: h}, nil
}
