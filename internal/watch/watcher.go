package watch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"bruhbug-service/internal/entity"
)

// ErrCanceled is the result of a watch stopped by its owner before it resolved.
var ErrCanceled = errors.New("watch cancelled")

// Fetcher reads one record. A missing record is entity.ErrNotFound.
type Fetcher interface {
	GetRecord(ctx context.Context, id string) (*entity.BugRecord, error)
}

// Subscriber opens a stream of record events. The stream is closed when the
// connection drops or ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context) (<-chan entity.RecordEvent, error)
}

// Channel names the detection path that resolved a watch.
type Channel string

const (
	ChannelPush     Channel = "push"
	ChannelPoll     Channel = "poll"
	ChannelDeadline Channel = "deadline"
	ChannelCancel   Channel = "cancel"
)

type Result struct {
	JobID   string
	Roast   string
	Record  *entity.BugRecord
	Channel Channel
	Err     error
}

type Option func(*Handle)

// OnComplete registers fn to run once when the watch resolves. It never runs
// for a cancelled watch.
func OnComplete(fn func(Result)) Option {
	return func(h *Handle) { h.onComplete = fn }
}

type Watcher struct {
	cfg   Config
	fetch Fetcher
	sub   Subscriber
	log   *zap.Logger
}

// New builds a watcher. fetch is required when cfg.Poll is set, sub when cfg.Push is set.
func New(cfg Config, fetch Fetcher, sub Subscriber, log *zap.Logger) (*Watcher, error) {
	cfg = cfg.sanitize()
	if cfg.Poll && fetch == nil {
		return nil, fmt.Errorf("%w: poll channel needs a fetcher", entity.ErrValidation)
	}
	if cfg.Push && sub == nil {
		return nil, fmt.Errorf("%w: push channel needs a subscriber", entity.ErrValidation)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{cfg: cfg, fetch: fetch, sub: sub, log: log.Named("watch")}, nil
}

func (w *Watcher) Config() Config { return w.cfg }

type state int

const (
	armed state = iota
	resolved
	cancelled
)

// Handle is one armed watch. All of its goroutines and timers stop on the
// first resolution or on Cancel.
type Handle struct {
	jobID      string
	onComplete func(Result)
	log        *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}

	mu     sync.Mutex
	state  state
	result Result
}

type pollReport struct {
	rec       *entity.BugRecord
	attempts  int
	exhausted bool
}

// Watch arms a watch for jobID and returns immediately. Cancelling ctx
// cancels the watch.
func (w *Watcher) Watch(ctx context.Context, jobID string, opts ...Option) (*Handle, error) {
	if jobID == "" {
		return nil, fmt.Errorf("%w: job id is required", entity.ErrValidation)
	}

	wctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		jobID:  jobID,
		log:    w.log.With(zap.String("job_id", jobID)),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}

	deadline := time.NewTimer(w.cfg.Deadline)

	var polls chan pollReport
	if w.cfg.Poll {
		polls = make(chan pollReport, 1)
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			w.poll(wctx, h, polls)
		}()
	}

	// poll and deadline stay live while the dial is in flight
	var dialed chan dialResult
	if w.cfg.Push {
		dialed = make(chan dialResult, 1)
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			ch, err := w.sub.Subscribe(wctx)
			dialed <- dialResult{events: ch, err: err}
		}()
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer deadline.Stop()
		w.run(wctx, h, deadline, polls, dialed)
	}()

	h.log.Debug("watch armed",
		zap.Bool("push", w.cfg.Push),
		zap.Bool("poll", w.cfg.Poll),
		zap.Duration("deadline", w.cfg.Deadline))
	return h, nil
}

type dialResult struct {
	events <-chan entity.RecordEvent
	err    error
}

func (w *Watcher) run(ctx context.Context, h *Handle, deadline *time.Timer, polls <-chan pollReport, dialed <-chan dialResult) {
	var events <-chan entity.RecordEvent
	for {
		select {
		case <-ctx.Done():
			h.settle(Result{JobID: h.jobID, Channel: ChannelCancel, Err: ErrCanceled}, false)
			return

		case d := <-dialed:
			dialed = nil
			switch {
			case d.err == nil:
				events = d.events
			case ctx.Err() != nil:
			case !w.cfg.Poll:
				h.settle(Result{JobID: h.jobID, Channel: ChannelPush, Err: fmt.Errorf("%w: subscribe: %v", entity.ErrTransport, d.err)}, true)
				return
			default:
				h.log.Warn("subscribe failed, relying on poll", zap.Error(d.err))
			}

		case ev, ok := <-events:
			if !ok {
				h.log.Debug("event stream closed")
				events = nil
				continue
			}
			if res, ok := h.match(ev); ok {
				h.settle(res, true)
				return
			}

		case rep, ok := <-polls:
			if !ok {
				polls = nil
				continue
			}
			if !rep.exhausted {
				h.settle(h.success(ChannelPoll, rep.rec), true)
				return
			}
			if res, ok := h.drain(events, nil, dialed); ok {
				h.settle(res, true)
				return
			}
			h.log.Info("poll budget exhausted", zap.Int("attempts", rep.attempts))
			h.settle(h.timeout("poll budget exhausted"), true)
			return

		case <-deadline.C:
			if res, ok := h.drain(events, polls, dialed); ok {
				h.settle(res, true)
				return
			}
			h.log.Info("watch deadline reached")
			h.settle(h.timeout("deadline"), true)
			return
		}
	}
}

// drain picks up a success already delivered but not yet selected, so a
// success in the same tick wins over a failure. A dial that completed in the
// same tick contributes the events it already buffered.
func (h *Handle) drain(events <-chan entity.RecordEvent, polls <-chan pollReport, dialed <-chan dialResult) (Result, bool) {
	if dialed != nil && events == nil {
		select {
		case d := <-dialed:
			if d.err == nil {
				events = d.events
			}
		default:
		}
	}
	for events != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if res, ok := h.match(ev); ok {
				return res, true
			}
		default:
			events = nil
		}
	}
	if polls != nil {
		select {
		case rep, ok := <-polls:
			if ok && !rep.exhausted {
				return h.success(ChannelPoll, rep.rec), true
			}
		default:
		}
	}
	return Result{}, false
}

func (h *Handle) match(ev entity.RecordEvent) (Result, bool) {
	if ev.RecordID != h.jobID || ev.Record == nil {
		return Result{}, false
	}
	if _, ok := ev.Record.Roast(); !ok {
		return Result{}, false
	}
	return h.success(ChannelPush, ev.Record), true
}

func (h *Handle) success(ch Channel, rec *entity.BugRecord) Result {
	roast, _ := rec.Roast()
	return Result{JobID: h.jobID, Roast: roast, Record: rec, Channel: ch}
}

func (h *Handle) timeout(cause string) Result {
	ch := ChannelDeadline
	if cause != "deadline" {
		ch = ChannelPoll
	}
	return Result{JobID: h.jobID, Channel: ch, Err: &entity.TimeoutError{JobID: h.jobID, Cause: cause}}
}

// poll waits out the grace delay, then fetches up to PollAttempts times.
// Absent and empty records both mean "not yet"; fetch errors are counted and dropped.
func (w *Watcher) poll(ctx context.Context, h *Handle, out chan<- pollReport) {
	defer close(out)

	if !sleep(ctx, w.cfg.PollGrace) {
		return
	}
	for attempt := 1; ; attempt++ {
		rec, err := w.fetchOnce(ctx, h.jobID)
		if ctx.Err() != nil {
			return
		}
		switch {
		case err == nil:
			if _, ok := rec.Roast(); ok {
				send(ctx, out, pollReport{rec: rec, attempts: attempt})
				return
			}
		case errors.Is(err, entity.ErrNotFound):
		default:
			h.log.Debug("poll fetch failed", zap.Int("attempt", attempt), zap.Error(err))
		}

		if attempt >= w.cfg.PollAttempts {
			send(ctx, out, pollReport{attempts: attempt, exhausted: true})
			return
		}
		if !sleep(ctx, w.cfg.PollInterval) {
			return
		}
	}
}

func (w *Watcher) fetchOnce(ctx context.Context, id string) (*entity.BugRecord, error) {
	fctx, cancel := context.WithTimeout(ctx, w.cfg.FetchTimeout)
	defer cancel()
	return w.fetch.GetRecord(fctx, id)
}

func send(ctx context.Context, out chan<- pollReport, rep pollReport) {
	select {
	case out <- rep:
	case <-ctx.Done():
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// settle is the single resolve gate. Only the first caller changes state.
func (h *Handle) settle(res Result, notify bool) bool {
	h.mu.Lock()
	if h.state != armed {
		h.mu.Unlock()
		return false
	}
	if notify {
		h.state = resolved
	} else {
		h.state = cancelled
	}
	h.result = res
	h.mu.Unlock()

	h.cancel()
	close(h.done)
	if notify && h.onComplete != nil {
		h.onComplete(res)
	}
	return true
}

// Cancel stops an armed watch and waits for its goroutines to exit. The
// completion callback never runs afterwards. It reports false when the watch
// had already resolved.
func (h *Handle) Cancel() bool {
	if !h.settle(Result{JobID: h.jobID, Channel: ChannelCancel, Err: ErrCanceled}, false) {
		return false
	}
	h.wg.Wait()
	return true
}

func (h *Handle) JobID() string { return h.jobID }

// Done is closed once the watch resolves or is cancelled.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Result returns the outcome and whether the watch has finished.
func (h *Handle) Result() (Result, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result, h.state != armed
}

// Wait blocks until the watch finishes or ctx is done. The returned error is
// the watch's own error (nil on success) or ctx.Err().
func (h *Handle) Wait(ctx context.Context) (Result, error) {
	select {
	case <-h.done:
		res, _ := h.Result()
		return res, res.Err
	case <-ctx.Done():
		return Result{JobID: h.jobID}, ctx.Err()
	}
}
