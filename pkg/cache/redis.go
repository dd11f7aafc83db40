// pkg/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"incident-quiz/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrMiss is returned when a key is not cached.
var ErrMiss = errors.New("cache miss")

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCache{
		client: client,
		ttl:    ttl,
	}
}

func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func templateKey(categoryID uint) string {
	return fmt.Sprintf("quiz_template:category:%d", categoryID)
}

// SetTemplate stores a fully loaded template under its category.
func (c *RedisCache) SetTemplate(ctx context.Context, tpl *models.QuizTemplate) error {
	data, err := json.Marshal(tpl)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, templateKey(tpl.CategoryID), data, c.ttl).Err()
}

func (c *RedisCache) GetTemplate(ctx context.Context, categoryID uint) (*models.QuizTemplate, error) {
	data, err := c.client.Get(ctx, templateKey(categoryID)).Bytes()
	if err == redis.Nil {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}

	var tpl models.QuizTemplate
	if err := json.Unmarshal(data, &tpl); err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (c *RedisCache) DeleteTemplate(ctx context.Context, categoryID uint) error {
	return c.client.Del(ctx, templateKey(categoryID)).Err()
}

// Lock is a best-effort mutual exclusion across replicas based on SETNX.
// Each holder stores its own token so that only the holder can release.
type Lock struct {
	client *redis.Client
}

func NewLock(client *redis.Client) *Lock {
	return &Lock{client: client}
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func lockKey(key string) string {
	return "lock:" + key
}

// Acquire returns the holder token, or false when another holder owns key.
func (l *Lock) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, lockKey(key), token, ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

// Release deletes key if token still holds it. A lock that expired and was
// taken by someone else is left alone.
func (l *Lock) Release(ctx context.Context, key, token string) error {
	return releaseScript.Run(ctx, l.client, []string{lockKey(key)}, token).Err()
}
