package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"task-board/domain"
)

type backend interface {
	List(ctx context.Context) ([]domain.Task, error)
	Create(ctx context.Context, t domain.Task) (string, error)
	Update(ctx context.Context, id string, p domain.Patch) error
	Delete(ctx context.Context, id string) error
}

// Cache wraps a remote store with a Redis-backed copy of the task list.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
	key   string
}

// NewCache creates a caching wrapper for the board's task list. A nil client
// disables caching.
func NewCache(base backend, client *redis.Client, ttl time.Duration, board string) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{
		base:  base,
		redis: client,
		ttl:   ttl,
		key:   tasksCacheKey(board),
	}
}

func (c *Cache) List(ctx context.Context) ([]domain.Task, error) {
	if tasks, ok := c.loadTasksFromCache(ctx); ok {
		return tasks, nil
	}

	tasks, err := c.base.List(ctx)
	if err != nil {
		return nil, err
	}

	c.storeTasks(ctx, tasks)
	return tasks, nil
}

func (c *Cache) Create(ctx context.Context, t domain.Task) (string, error) {
	id, err := c.base.Create(ctx, t)
	if err != nil {
		return "", err
	}
	c.evict(ctx)
	return id, nil
}

func (c *Cache) Update(ctx context.Context, id string, p domain.Patch) error {
	if err := c.base.Update(ctx, id, p); err != nil {
		return err
	}
	c.evict(ctx)
	return nil
}

func (c *Cache) Delete(ctx context.Context, id string) error {
	if err := c.base.Delete(ctx, id); err != nil {
		return err
	}
	c.evict(ctx)
	return nil
}

func (c *Cache) loadTasksFromCache(ctx context.Context) ([]domain.Task, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, c.key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, c.key).Err()
		}
		return nil, false
	}
	var tasks []domain.Task
	if err := sonic.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, c.key).Err()
		return nil, false
	}
	return tasks, true
}

func (c *Cache) storeTasks(ctx context.Context, tasks []domain.Task) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(tasks)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, c.key, data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, c.key).Result()
}

func tasksCacheKey(board string) string {
	return "tasks:" + board
}
