package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"bruhbug-service/internal/entity"
)

type Queue interface {
	Enqueue(ctx context.Context, task entity.Task) error
	ClaimBlocking(ctx context.Context, timeout time.Duration) (Claim, error)
	Ack(ctx context.Context, claim Claim) error
	RequeueStale(ctx context.Context, max int64) (int64, error)
}

// Claim is a task moved to the processing list. Raw is the exact list value, needed for Ack.
type Claim struct {
	Task entity.Task
	Raw  string
}

type QueueKeys struct {
	QueueKey      string
	ProcessingKey string
	// GuardPrefix namespaces the one-shot dispatch guard keys (prefix + document id).
	GuardPrefix string
}

// redisTaskQueue implements a reliable queue using Redis lists.
// Claim: BRPOPLPUSH queue -> processing
// Ack:   LREM from processing
// Enqueue sets a per-document guard key with SET NX first, so a document id is
// dispatched at most once while the guard lives.
type redisTaskQueue struct {
	rdb      redis.UniversalClient
	keys     QueueKeys
	guardTTL time.Duration
}

func NewRedisTaskQueue(rdb redis.UniversalClient, keys QueueKeys, guardTTL time.Duration) Queue {
	if guardTTL <= 0 {
		guardTTL = 24 * time.Hour
	}
	return &redisTaskQueue{rdb: rdb, keys: keys, guardTTL: guardTTL}
}

func (q *redisTaskQueue) Enqueue(ctx context.Context, task entity.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	ok, err := q.rdb.SetNX(ctx, q.keys.GuardPrefix+task.DocumentID, 1, q.guardTTL).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: document %s", entity.ErrDuplicate, task.DocumentID)
	}

	if err := q.rdb.LPush(ctx, q.keys.QueueKey, data).Err(); err != nil {
		// release the guard so a retry with the same id is possible
		_ = q.rdb.Del(ctx, q.keys.GuardPrefix+task.DocumentID).Err()
		return err
	}
	return nil
}

// ClaimBlocking waits up to timeout for a task. It returns redis.Nil when nothing arrived.
// A timeout <= 0 blocks until a task arrives or ctx is done.
func (q *redisTaskQueue) ClaimBlocking(ctx context.Context, timeout time.Duration) (Claim, error) {
	if timeout < 0 {
		timeout = 0
	}
	raw, err := q.rdb.BRPopLPush(ctx, q.keys.QueueKey, q.keys.ProcessingKey, timeout).Result()
	if err != nil {
		return Claim{}, err
	}

	var task entity.Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		// poison entry: drop it from processing so the reaper does not loop on it
		_ = q.rdb.LRem(ctx, q.keys.ProcessingKey, 1, raw).Err()
		return Claim{}, fmt.Errorf("decode task: %w", err)
	}
	return Claim{Task: task, Raw: raw}, nil
}

func (q *redisTaskQueue) Ack(ctx context.Context, claim Claim) error {
	return q.rdb.LRem(ctx, q.keys.ProcessingKey, 1, claim.Raw).Err()
}

// RequeueStale moves up to max items from processing back to the queue.
// Only safe when no worker is running, e.g. at startup after a crash.
func (q *redisTaskQueue) RequeueStale(ctx context.Context, max int64) (int64, error) {
	var moved int64
	for i := int64(0); i < max; i++ {
		_, err := q.rdb.RPopLPush(ctx, q.keys.ProcessingKey, q.keys.QueueKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				break
			}
			return moved, err
		}
		moved++
	}
	return moved, nil
}
