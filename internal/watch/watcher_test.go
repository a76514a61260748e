package watch_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"bruhbug-service/internal/entity"
	"bruhbug-service/internal/watch"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const jobID = "33333333-3333-3333-3333-333333333333"

func completed(id, roast string) *entity.BugRecord {
	return &entity.BugRecord{ID: id, OwnerID: "U", Description: "bug", Result: &roast, Shared: true}
}

type fetchStep struct {
	rec *entity.BugRecord
	err error
}

// scriptedFetcher returns steps in order and repeats the last one.
type scriptedFetcher struct {
	mu    sync.Mutex
	steps []fetchStep
	calls int
}

func (f *scriptedFetcher) GetRecord(ctx context.Context, id string) (*entity.BugRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.steps) == 0 {
		return nil, entity.ErrNotFound
	}
	i := f.calls - 1
	if i >= len(f.steps) {
		i = len(f.steps) - 1
	}
	return f.steps[i].rec, f.steps[i].err
}

func (f *scriptedFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSubscriber struct {
	events chan entity.RecordEvent
	err    error
	delay  time.Duration
	// preload is delivered immediately on subscribe.
	preload []entity.RecordEvent
}

func newSubscriber() *fakeSubscriber {
	return &fakeSubscriber{events: make(chan entity.RecordEvent, 16)}
}

func (f *fakeSubscriber) Subscribe(ctx context.Context) (<-chan entity.RecordEvent, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make(chan entity.RecordEvent, len(f.preload)+1)
	for _, ev := range f.preload {
		out <- ev
	}
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-f.events:
				if !ok {
					return
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

type callbackRecorder struct {
	mu      sync.Mutex
	results []watch.Result
}

func (c *callbackRecorder) fn(r watch.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
}

func (c *callbackRecorder) all() []watch.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]watch.Result(nil), c.results...)
}

func fastConfig() watch.Config {
	return watch.Config{
		Push:         true,
		Poll:         true,
		Deadline:     time.Second,
		PollGrace:    5 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
		PollAttempts: 8,
		FetchTimeout: 50 * time.Millisecond,
	}
}

func wait(t *testing.T, h *watch.Handle) watch.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	res, err := h.Wait(ctx)
	require.False(t, errors.Is(err, context.DeadlineExceeded), "watch did not finish")
	return res
}

func TestWatch_PushResolvesOnMatchingCompletedRecord(t *testing.T) {
	cfg := fastConfig().WithMode(watch.ModePush)
	sub := newSubscriber()
	w, err := watch.New(cfg, nil, sub, nil)
	require.NoError(t, err)

	cb := &callbackRecorder{}
	h, err := w.Watch(context.Background(), jobID, watch.OnComplete(cb.fn))
	require.NoError(t, err)

	empty := ""
	sub.events <- entity.RecordEvent{Type: entity.EventCreate, RecordID: "other", Record: completed("other", "not mine")}
	sub.events <- entity.RecordEvent{Type: entity.EventCreate, RecordID: jobID, Record: &entity.BugRecord{ID: jobID, Result: &empty}}
	sub.events <- entity.RecordEvent{Type: entity.EventCreate, RecordID: jobID, Record: completed(jobID, "  nice bug 🐛 ")}

	res := wait(t, h)
	assert.NoError(t, res.Err)
	assert.Equal(t, watch.ChannelPush, res.Channel)
	assert.Equal(t, "nice bug 🐛", res.Roast)
	assert.Equal(t, jobID, res.JobID)

	assert.Eventually(t, func() bool { return len(cb.all()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestWatch_PollTreatsAbsentAndEmptyAsNotYet(t *testing.T) {
	empty := "   "
	fetch := &scriptedFetcher{steps: []fetchStep{
		{err: entity.ErrNotFound},
		{err: entity.ErrNotFound},
		{rec: &entity.BugRecord{ID: jobID, Result: &empty}},
		{rec: completed(jobID, "roasted")},
	}}
	w, err := watch.New(fastConfig().WithMode(watch.ModePoll), fetch, nil, nil)
	require.NoError(t, err)

	h, err := w.Watch(context.Background(), jobID)
	require.NoError(t, err)

	res := wait(t, h)
	require.NoError(t, res.Err)
	assert.Equal(t, watch.ChannelPoll, res.Channel)
	assert.Equal(t, "roasted", res.Roast)
	assert.Equal(t, 4, fetch.count())
}

func TestWatch_PollSwallowsFetchErrors(t *testing.T) {
	fetch := &scriptedFetcher{steps: []fetchStep{
		{err: errors.New("connection refused")},
		{err: context.DeadlineExceeded},
		{rec: completed(jobID, "roasted")},
	}}
	w, err := watch.New(fastConfig().WithMode(watch.ModePoll), fetch, nil, nil)
	require.NoError(t, err)

	h, err := w.Watch(context.Background(), jobID)
	require.NoError(t, err)

	res := wait(t, h)
	assert.NoError(t, res.Err)
	assert.Equal(t, 3, fetch.count())
}

func TestWatch_PollBudgetExhaustedIsTimeout(t *testing.T) {
	cfg := fastConfig().WithMode(watch.ModePoll)
	cfg.PollAttempts = 3
	fetch := &scriptedFetcher{steps: []fetchStep{{err: entity.ErrNotFound}, {err: errors.New("boom")}, {err: entity.ErrNotFound}}}
	w, err := watch.New(cfg, fetch, nil, nil)
	require.NoError(t, err)

	cb := &callbackRecorder{}
	h, err := w.Watch(context.Background(), jobID, watch.OnComplete(cb.fn))
	require.NoError(t, err)

	res := wait(t, h)
	require.Error(t, res.Err)
	assert.True(t, errors.Is(res.Err, entity.ErrTimeout))
	assert.Equal(t, entity.TimeoutMessage, res.Err.Error())

	var te *entity.TimeoutError
	require.True(t, errors.As(res.Err, &te))
	assert.Equal(t, "poll budget exhausted", te.Cause)
	assert.Equal(t, jobID, te.JobID)

	// no attempts beyond the budget
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 3, fetch.count())
	assert.Len(t, cb.all(), 1)
}

func TestWatch_DeadlineForceResolvesTimeout(t *testing.T) {
	cfg := fastConfig().WithMode(watch.ModePush)
	cfg.Deadline = 30 * time.Millisecond
	w, err := watch.New(cfg, nil, newSubscriber(), nil)
	require.NoError(t, err)

	start := time.Now()
	h, err := w.Watch(context.Background(), jobID)
	require.NoError(t, err)

	res := wait(t, h)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Equal(t, watch.ChannelDeadline, res.Channel)
	var te *entity.TimeoutError
	require.True(t, errors.As(res.Err, &te))
	assert.Equal(t, "deadline", te.Cause)
}

func TestWatch_DeadlineBeatsSlowPoll(t *testing.T) {
	cfg := fastConfig()
	cfg.Deadline = 20 * time.Millisecond
	cfg.PollGrace = time.Hour
	w, err := watch.New(cfg, &scriptedFetcher{}, newSubscriber(), nil)
	require.NoError(t, err)

	h, err := w.Watch(context.Background(), jobID)
	require.NoError(t, err)

	res := wait(t, h)
	assert.True(t, errors.Is(res.Err, entity.ErrTimeout))
	assert.Equal(t, watch.ChannelDeadline, res.Channel)
}

func TestWatch_ResolvesExactlyOnceWhenBothChannelsObserve(t *testing.T) {
	cfg := fastConfig()
	cfg.PollGrace = 0
	cfg.Deadline = 40 * time.Millisecond
	fetch := &scriptedFetcher{steps: []fetchStep{{rec: completed(jobID, "same roast")}}}
	sub := newSubscriber()
	sub.preload = []entity.RecordEvent{{Type: entity.EventCreate, RecordID: jobID, Record: completed(jobID, "same roast")}}
	w, err := watch.New(cfg, fetch, sub, nil)
	require.NoError(t, err)

	cb := &callbackRecorder{}
	h, err := w.Watch(context.Background(), jobID, watch.OnComplete(cb.fn))
	require.NoError(t, err)

	res := wait(t, h)
	require.NoError(t, res.Err)
	assert.Equal(t, "same roast", res.Roast)

	// outlive the deadline and several poll intervals
	sub.events <- entity.RecordEvent{Type: entity.EventCreate, RecordID: jobID, Record: completed(jobID, "same roast")}
	time.Sleep(3 * cfg.Deadline)

	got := cb.all()
	require.Len(t, got, 1)
	assert.Equal(t, res, got[0])
	assert.False(t, h.Cancel(), "already resolved")

	final, ok := h.Result()
	assert.True(t, ok)
	assert.Equal(t, res, final)
}

func TestWatch_SlowSubscribeDoesNotDelayPollOrDeadline(t *testing.T) {
	t.Run("poll success while dialing", func(t *testing.T) {
		cfg := fastConfig()
		cfg.PollGrace = 0
		sub := newSubscriber()
		sub.delay = 2 * time.Second
		fetch := &scriptedFetcher{steps: []fetchStep{{rec: completed(jobID, "polled")}}}
		w, err := watch.New(cfg, fetch, sub, nil)
		require.NoError(t, err)

		start := time.Now()
		h, err := w.Watch(context.Background(), jobID)
		require.NoError(t, err)

		res := wait(t, h)
		elapsed := time.Since(start)
		require.NoError(t, res.Err)
		assert.Equal(t, watch.ChannelPoll, res.Channel)
		assert.Equal(t, "polled", res.Roast)
		assert.Less(t, elapsed, 500*time.Millisecond)
	})

	t.Run("deadline while dialing", func(t *testing.T) {
		cfg := fastConfig().WithMode(watch.ModePush)
		cfg.Deadline = 100 * time.Millisecond
		sub := newSubscriber()
		sub.delay = 2 * time.Second
		w, err := watch.New(cfg, nil, sub, nil)
		require.NoError(t, err)

		start := time.Now()
		h, err := w.Watch(context.Background(), jobID)
		require.NoError(t, err)

		res := wait(t, h)
		elapsed := time.Since(start)
		assert.ErrorIs(t, res.Err, entity.ErrTimeout)
		assert.Equal(t, watch.ChannelDeadline, res.Channel)
		assert.Less(t, elapsed, time.Second)
	})

	t.Run("slow dial failure in push only mode", func(t *testing.T) {
		sub := &fakeSubscriber{err: errors.New("handshake timeout"), delay: 30 * time.Millisecond}
		w, err := watch.New(fastConfig().WithMode(watch.ModePush), nil, sub, nil)
		require.NoError(t, err)

		h, err := w.Watch(context.Background(), jobID)
		require.NoError(t, err)

		res := wait(t, h)
		assert.ErrorIs(t, res.Err, entity.ErrTransport)
		assert.Equal(t, watch.ChannelPush, res.Channel)
	})
}

func TestWatch_CancelThenSilence(t *testing.T) {
	sub := newSubscriber()
	fetch := &scriptedFetcher{}
	w, err := watch.New(fastConfig(), fetch, sub, nil)
	require.NoError(t, err)

	var fired atomic.Int32
	h, err := w.Watch(context.Background(), jobID, watch.OnComplete(func(watch.Result) { fired.Add(1) }))
	require.NoError(t, err)

	assert.True(t, h.Cancel())
	assert.False(t, h.Cancel())

	select {
	case <-h.Done():
	default:
		t.Fatal("done must be closed after cancel")
	}

	calls := fetch.count()
	sub.events <- entity.RecordEvent{Type: entity.EventCreate, RecordID: jobID, Record: completed(jobID, "late")}
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, int32(0), fired.Load())
	assert.Equal(t, calls, fetch.count(), "poller stopped")

	res, ok := h.Result()
	assert.True(t, ok)
	assert.ErrorIs(t, res.Err, watch.ErrCanceled)
	assert.Equal(t, watch.ChannelCancel, res.Channel)
}

func TestWatch_ParentContextCancelIsSilent(t *testing.T) {
	w, err := watch.New(fastConfig().WithMode(watch.ModePush), nil, newSubscriber(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var fired atomic.Int32
	h, err := w.Watch(ctx, jobID, watch.OnComplete(func(watch.Result) { fired.Add(1) }))
	require.NoError(t, err)

	cancel()
	res := wait(t, h)
	assert.ErrorIs(t, res.Err, watch.ErrCanceled)
	assert.Equal(t, int32(0), fired.Load())
}

func TestWatch_CancelFromCallbackDoesNotDeadlock(t *testing.T) {
	cfg := fastConfig().WithMode(watch.ModePoll)
	cfg.PollGrace = 0
	w, err := watch.New(cfg, &scriptedFetcher{steps: []fetchStep{{rec: completed(jobID, "r")}}}, nil, nil)
	require.NoError(t, err)

	var h *watch.Handle
	ready := make(chan struct{})
	cancelled := make(chan bool, 1)
	h, err = w.Watch(context.Background(), jobID, watch.OnComplete(func(watch.Result) {
		<-ready
		cancelled <- h.Cancel()
	}))
	require.NoError(t, err)
	close(ready)

	select {
	case got := <-cancelled:
		assert.False(t, got)
	case <-time.After(2 * time.Second):
		t.Fatal("cancel inside callback blocked")
	}
}

func TestWatch_SubscribeFailure(t *testing.T) {
	t.Run("push only surfaces transport error", func(t *testing.T) {
		sub := &fakeSubscriber{err: errors.New("dial tcp: refused")}
		w, err := watch.New(fastConfig().WithMode(watch.ModePush), nil, sub, nil)
		require.NoError(t, err)

		h, err := w.Watch(context.Background(), jobID)
		require.NoError(t, err)

		res := wait(t, h)
		assert.ErrorIs(t, res.Err, entity.ErrTransport)
	})

	t.Run("poll carries on", func(t *testing.T) {
		sub := &fakeSubscriber{err: errors.New("dial tcp: refused")}
		fetch := &scriptedFetcher{steps: []fetchStep{{err: entity.ErrNotFound}, {rec: completed(jobID, "via poll")}}}
		w, err := watch.New(fastConfig(), fetch, sub, nil)
		require.NoError(t, err)

		h, err := w.Watch(context.Background(), jobID)
		require.NoError(t, err)

		res := wait(t, h)
		require.NoError(t, res.Err)
		assert.Equal(t, watch.ChannelPoll, res.Channel)
	})
}

func TestWatch_DroppedStreamFallsBackToPoll(t *testing.T) {
	sub := newSubscriber()
	close(sub.events)
	fetch := &scriptedFetcher{steps: []fetchStep{{err: entity.ErrNotFound}, {err: entity.ErrNotFound}, {rec: completed(jobID, "via poll")}}}
	w, err := watch.New(fastConfig(), fetch, sub, nil)
	require.NoError(t, err)

	h, err := w.Watch(context.Background(), jobID)
	require.NoError(t, err)

	res := wait(t, h)
	require.NoError(t, res.Err)
	assert.Equal(t, "via poll", res.Roast)
}

func TestWatch_WaitHonoursContext(t *testing.T) {
	w, err := watch.New(fastConfig().WithMode(watch.ModePush), nil, newSubscriber(), nil)
	require.NoError(t, err)

	h, err := w.Watch(context.Background(), jobID)
	require.NoError(t, err)
	defer h.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = h.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, done := h.Result()
	assert.False(t, done)
}

func TestNewAndWatch_Validation(t *testing.T) {
	_, err := watch.New(fastConfig(), nil, newSubscriber(), nil)
	assert.ErrorIs(t, err, entity.ErrValidation)

	_, err = watch.New(fastConfig(), &scriptedFetcher{}, nil, nil)
	assert.ErrorIs(t, err, entity.ErrValidation)

	w, err := watch.New(fastConfig().WithMode(watch.ModePoll), &scriptedFetcher{}, nil, nil)
	require.NoError(t, err)
	_, err = w.Watch(context.Background(), "")
	assert.ErrorIs(t, err, entity.ErrValidation)
}

func TestParseMode(t *testing.T) {
	tests := map[string]watch.Mode{
		"push":      watch.ModePush,
		"POLL":      watch.ModePoll,
		"push+poll": watch.ModePushPoll,
		"poll+push": watch.ModePushPoll,
		"":          watch.ModePushPoll,
	}
	for in, want := range tests {
		got, err := watch.ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := watch.ParseMode("carrier-pigeon")
	assert.ErrorIs(t, err, entity.ErrValidation)

	cfg := watch.DefaultConfig().WithMode(watch.ModePoll)
	assert.False(t, cfg.Push)
	assert.True(t, cfg.Poll)
	assert.Equal(t, 10*time.Second, cfg.Deadline)
	assert.Equal(t, 8, cfg.PollAttempts)
}
