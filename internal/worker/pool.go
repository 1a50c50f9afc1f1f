// Package worker delivers personalization notifications in the background so
// profile writes never wait on the personalization service.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ekaai-backend/internal/clientstate"
	"ekaai-backend/internal/logger"
	"ekaai-backend/internal/models"
)

const (
	// PersonalizationQueue is the Redis list onboarding notifications wait in.
	PersonalizationQueue = "ekaai:jobs:onboarding"

	maxAttempts   = 3
	popTimeout    = 5 * time.Second
	notifyTimeout = 10 * time.Second
)

var ErrEmpty = errors.New("worker: queue empty")

// Queue is a FIFO of serialized jobs.
type Queue interface {
	Push(ctx context.Context, payload string) error
	// Pop waits up to timeout and returns ErrEmpty if nothing arrived.
	Pop(ctx context.Context, timeout time.Duration) (string, error)
}

type RedisQueue struct {
	client *redis.Client
	key    string
}

func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	return &RedisQueue{client: client, key: key}
}

func (q *RedisQueue) Push(ctx context.Context, payload string) error {
	return q.client.RPush(ctx, q.key, payload).Err()
}

func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (string, error) {
	result, err := q.client.BLPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrEmpty
	}
	if err != nil {
		return "", err
	}
	if len(result) < 2 {
		return "", ErrEmpty
	}
	return result[1], nil
}

// MemoryQueue is an in-process queue for development and tests.
type MemoryQueue struct {
	ch chan string
}

func NewMemoryQueue(size int) *MemoryQueue {
	return &MemoryQueue{ch: make(chan string, size)}
}

func (q *MemoryQueue) Push(ctx context.Context, payload string) error {
	select {
	case q.ch <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Pop(ctx context.Context, timeout time.Duration) (string, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case payload := <-q.ch:
		return payload, nil
	case <-t.C:
		return "", ErrEmpty
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Notifier sends one notification with the user's bearer token.
type Notifier func(ctx context.Context, accessToken string, n models.OnboardingNotification) error

type job struct {
	ID           string                        `json:"id"`
	Token        string                        `json:"token"`
	Notification models.OnboardingNotification `json:"notification"`
	Attempts     int                           `json:"attempts"`
}

type Pool struct {
	queue       Queue
	sealer      *clientstate.Sealer
	notify      Notifier
	workerCount int
	log         *zap.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewPool(queue Queue, sealer *clientstate.Sealer, notify Notifier, workerCount int) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		queue:       queue,
		sealer:      sealer,
		notify:      notify,
		workerCount: workerCount,
		log:         logger.Named("worker"),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// NotifyOnboarding queues a notification. The token is sealed while queued.
func (p *Pool) NotifyOnboarding(ctx context.Context, accessToken string, n models.OnboardingNotification) error {
	j := job{ID: uuid.NewString(), Notification: n}
	sealed, err := p.sealer.Seal(accessToken, jobAD(j.ID))
	if err != nil {
		return fmt.Errorf("seal token: %w", err)
	}
	j.Token = sealed
	return p.push(ctx, &j)
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.log.Info("worker pool started", zap.Int("workers", p.workerCount))
}

// Stop waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.cancel()
		p.wg.Wait()
	})
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		if p.ctx.Err() != nil {
			p.log.Debug("worker shutting down", zap.Int("worker", id))
			return
		}

		payload, err := p.queue.Pop(p.ctx, popTimeout)
		if errors.Is(err, ErrEmpty) {
			continue
		}
		if err != nil {
			if p.ctx.Err() == nil {
				p.log.Warn("queue pop failed", zap.Int("worker", id), zap.Error(err))
				time.Sleep(time.Second)
			}
			continue
		}

		var j job
		if err := json.Unmarshal([]byte(payload), &j); err != nil {
			p.log.Error("failed to parse job", zap.Int("worker", id), zap.Error(err))
			continue
		}
		p.process(&j)
	}
}

func (p *Pool) process(j *job) {
	token, err := p.sealer.Open(j.Token, jobAD(j.ID))
	if err != nil {
		p.log.Error("job token unreadable, dropping", zap.String("job_id", j.ID))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	if err := p.notify(ctx, token, j.Notification); err != nil {
		p.handleFailure(j, err)
		return
	}
	p.log.Debug("personalization notified", zap.String("job_id", j.ID), zap.String("user_id", j.Notification.UserID))
}

func (p *Pool) handleFailure(j *job, err error) {
	j.Attempts++
	if j.Attempts >= maxAttempts {
		p.log.Error("personalization notify failed, giving up",
			zap.String("job_id", j.ID),
			zap.String("user_id", j.Notification.UserID),
			zap.Int("attempts", j.Attempts),
			zap.Error(err),
		)
		return
	}
	p.log.Warn("personalization notify failed, retrying",
		zap.String("job_id", j.ID),
		zap.Int("attempts", j.Attempts),
		zap.Error(err),
	)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.push(ctx, j); err != nil {
		p.log.Error("requeue failed", zap.String("job_id", j.ID), zap.Error(err))
	}
}

func (p *Pool) push(ctx context.Context, j *job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return err
	}
	return p.queue.Push(ctx, string(data))
}

func jobAD(id string) string {
	return "personalization/" + id
}
