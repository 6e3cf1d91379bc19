package run

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"backend-runnersurfers/internal/profile"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Entry is one run waiting to reach the persistence collaborator.
type Entry struct {
	ID        uuid.UUID          `json:"id"`
	UserID    string             `json:"user_id"`
	Run       Run                `json:"run"`
	Stats     profile.StatsDelta `json:"stats"`
	RunSaved  bool               `json:"run_saved"`
	Attempts  int                `json:"attempts"`
	LastError string             `json:"last_error,omitempty"`
	QueuedAt  time.Time          `json:"queued_at"`
}

func NewEntry(userID string, r Run, stats profile.StatsDelta, now time.Time) Entry {
	return Entry{ID: uuid.New(), UserID: userID, Run: r, Stats: stats, QueuedAt: now}
}

// Outbox is a FIFO of undelivered entries plus a dead-letter list.
type Outbox interface {
	Push(ctx context.Context, e Entry) error
	Take(ctx context.Context, max int) ([]Entry, error)
	Bury(ctx context.Context, e Entry) error
	Len(ctx context.Context) (int, error)
}

type MemoryOutbox struct {
	mu      sync.Mutex
	entries []Entry
	dead    []Entry
}

func NewMemoryOutbox() *MemoryOutbox {
	return &MemoryOutbox{}
}

func (m *MemoryOutbox) Push(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *MemoryOutbox) Take(_ context.Context, max int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if max <= 0 || max > len(m.entries) {
		max = len(m.entries)
	}
	out := append([]Entry(nil), m.entries[:max]...)
	m.entries = m.entries[max:]
	return out, nil
}

func (m *MemoryOutbox) Bury(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dead = append(m.dead, e)
	return nil
}

func (m *MemoryOutbox) Len(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries), nil
}

// Dead returns a copy of the dead-letter list.
func (m *MemoryOutbox) Dead() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.dead...)
}

const (
	outboxKey     = "runs:outbox"
	deadLetterKey = "runs:outbox:dead"
)

// RedisOutbox stores entries as JSON in a redis list so they survive restarts.
type RedisOutbox struct {
	rdb *redis.Client
}

func NewRedisOutbox(rdb *redis.Client) *RedisOutbox {
	return &RedisOutbox{rdb: rdb}
}

func (r *RedisOutbox) Push(ctx context.Context, e Entry) error {
	payload, err := sonic.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode outbox entry: %w", err)
	}
	return r.rdb.RPush(ctx, outboxKey, payload).Err()
}

func (r *RedisOutbox) Take(ctx context.Context, max int) ([]Entry, error) {
	if max <= 0 {
		max = 100
	}
	raw, err := r.rdb.LPopCount(ctx, outboxKey, max).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("take outbox: %w", err)
	}

	out := make([]Entry, 0, len(raw))
	for _, s := range raw {
		var e Entry
		if err := sonic.UnmarshalString(s, &e); err != nil {
			_ = r.rdb.RPush(ctx, deadLetterKey, s).Err()
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *RedisOutbox) Bury(ctx context.Context, e Entry) error {
	payload, err := sonic.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode outbox entry: %w", err)
	}
	return r.rdb.RPush(ctx, deadLetterKey, payload).Err()
}

func (r *RedisOutbox) Len(ctx context.Context) (int, error) {
	n, err := r.rdb.LLen(ctx, outboxKey).Result()
	return int(n), err
}
