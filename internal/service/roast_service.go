package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bruhbug-service/internal/entity"
	"bruhbug-service/internal/idgen"
	"bruhbug-service/internal/metrics"
)

// BugRepository is the storage port (implementation: postgresql.BugRepository).
type BugRepository interface {
	GetByID(ctx context.Context, id string) (*entity.BugRecord, error)
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]*entity.BugRecord, error)
	ListPublic(ctx context.Context, excludeOwnerID string, limit int) ([]*entity.BugRecord, error)
}

// TaskQueue only adds tasks; claiming belongs to the worker pool.
type TaskQueue interface {
	Enqueue(ctx context.Context, task entity.Task) error
}

// Roaster runs the worker inline and returns the roast before the write completes.
type Roaster interface {
	Roast(ctx context.Context, task entity.Task) (string, error)
}

// DefaultListLimit is the window size of list reads.
const DefaultListLimit = 50

type RoastService struct {
	repo    BugRepository
	queue   TaskQueue
	roaster Roaster
	metrics *metrics.Metrics
}

// NewRoastService wires the service. roaster may be nil when the direct path is disabled.
func NewRoastService(repo BugRepository, queue TaskQueue, roaster Roaster, m *metrics.Metrics) *RoastService {
	if m == nil {
		m = metrics.Nop()
	}
	return &RoastService{repo: repo, queue: queue, roaster: roaster, metrics: m}
}

type SubmitRequest struct {
	Description string
	DocumentID  string
	Shared      bool
}

func (s *RoastService) task(user *entity.User, req SubmitRequest) (entity.Task, error) {
	if user == nil || user.ID == "" {
		return entity.Task{}, entity.ErrAuthRequired
	}
	desc, err := entity.NormalizeDescription(req.Description)
	if err != nil {
		return entity.Task{}, err
	}
	docID := strings.TrimSpace(req.DocumentID)
	if !idgen.Valid(docID) {
		return entity.Task{}, fmt.Errorf("%w: documentId must be a uuid", entity.ErrValidation)
	}
	return entity.Task{Description: desc, DocumentID: docID, OwnerID: user.ID, Shared: req.Shared}, nil
}

// Trigger enqueues the worker for req and returns without waiting for it.
func (s *RoastService) Trigger(ctx context.Context, user *entity.User, req SubmitRequest) error {
	task, err := s.task(user, req)
	if err != nil {
		return err
	}
	if err := s.queue.Enqueue(ctx, task); err != nil {
		if errors.Is(err, entity.ErrDuplicate) {
			s.metrics.Dispatches.WithLabelValues("duplicate").Inc()
			return err
		}
		s.metrics.Dispatches.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: %v", entity.ErrDispatch, err)
	}
	s.metrics.Dispatches.WithLabelValues("ok").Inc()
	return nil
}

// Roast runs the worker inline and returns the roast text. The record write
// completes independently of the returned value.
func (s *RoastService) Roast(ctx context.Context, user *entity.User, req SubmitRequest) (string, error) {
	task, err := s.task(user, req)
	if err != nil {
		return "", err
	}
	if s.roaster == nil {
		return "", fmt.Errorf("%w: direct invocation disabled", entity.ErrDispatch)
	}
	return s.roaster.Roast(ctx, task)
}

// GetRecord returns the record if viewer may see it. Records hidden from the
// viewer are reported as not found. A nil viewer is anonymous.
func (s *RoastService) GetRecord(ctx context.Context, viewer *entity.User, id string) (*entity.BugRecord, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rec.VisibleTo(viewerID(viewer)) {
		return nil, entity.ErrNotFound
	}
	return rec, nil
}

// MyRecords lists everything the user owns, newest first.
func (s *RoastService) MyRecords(ctx context.Context, user *entity.User, limit int) ([]*entity.BugRecord, error) {
	if user == nil || user.ID == "" {
		return nil, entity.ErrAuthRequired
	}
	return s.repo.ListByOwner(ctx, user.ID, normLimit(limit))
}

// PublicFeed lists shared, completed records not owned by viewer, newest first.
func (s *RoastService) PublicFeed(ctx context.Context, viewer *entity.User, limit int) ([]*entity.BugRecord, error) {
	return s.repo.ListPublic(ctx, viewerID(viewer), normLimit(limit))
}

func viewerID(u *entity.User) string {
	if u == nil {
		return ""
	}
	return u.ID
}

func normLimit(limit int) int {
	if limit <= 0 || limit > DefaultListLimit {
		return DefaultListLimit
	}
	return limit
}
