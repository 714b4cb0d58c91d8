package affiliate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// Cache stores the fetched roster for a while so registrations do not hit the
// affiliate API every time.
type Cache interface {
	// Get reports ok=false on a miss or an expired entry.
	Get(ctx context.Context, key string) (roster []string, ok bool, err error)
	Set(ctx context.Context, key string, roster []string, ttl time.Duration) error
}

type memoryEntry struct {
	roster    []string
	expiresAt time.Time
}

type MemoryCache struct {
	clock Clock

	mu      sync.RWMutex
	entries map[string]memoryEntry
}

func NewMemoryCache(clock Clock) *MemoryCache {
	if clock == nil {
		clock = SystemClock
	}
	return &MemoryCache{clock: clock, entries: make(map[string]memoryEntry)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || !c.clock.Now().Before(entry.expiresAt) {
		return nil, false, nil
	}
	return entry.roster, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, roster []string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = memoryEntry{roster: roster, expiresAt: c.clock.Now().Add(ttl)}
	return nil
}

// RedisCache shares the roster between instances. Expiry is left to Redis.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// DialRedis parses a redis:// or rediss:// URL and checks the server answers.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]string, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var roster []string
	if err := json.Unmarshal(val, &roster); err != nil {
		return nil, false, fmt.Errorf("corrupt cached roster: %w", err)
	}
	return roster, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, roster []string, ttl time.Duration) error {
	val, err := json.Marshal(roster)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, val, ttl).Err()
}
