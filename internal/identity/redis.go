package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Key prefixes under the configured namespace.
const (
	keyForward = "fwd:" // fwd:<msgID|kind|peer> -> short id
	keyReverse = "rev:" // rev:<short id> -> JSON Key
)

// maxProbe bounds collision probing when claiming an id.
const maxProbe = 64

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	URL      string // redis://host:port
	Password string
	DB       int
}

// Connect opens and pings a Redis client.
func Connect(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis url not configured")
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	opts.DB = cfg.DB
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.MaxRetries = 3

	c := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		c.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return c, nil
}

// RedisRegistry shares short id assignments between bridge processes through
// Redis. Entries expire after ttl. A MemoryRegistry fronts every lookup, and
// when Redis fails the registry degrades to that local cache instead of
// failing the caller.
type RedisRegistry struct {
	client *redis.Client
	local  *MemoryRegistry
	prefix string
	ttl    time.Duration
	log    zerolog.Logger
}

// NewRedisRegistry wraps client. prefix namespaces all keys (e.g. "onebot:msg:").
func NewRedisRegistry(client *redis.Client, local *MemoryRegistry, prefix string, ttl time.Duration, log zerolog.Logger) *RedisRegistry {
	if local == nil {
		local = NewMemoryRegistry(DefaultCapacity)
	}
	return &RedisRegistry{
		client: client,
		local:  local,
		prefix: prefix,
		ttl:    ttl,
		log:    log.With().Str("component", "identity-redis").Logger(),
	}
}

func (r *RedisRegistry) forwardKey(k Key) string {
	return r.prefix + keyForward + k.String()
}

func (r *RedisRegistry) reverseKey(id int32) string {
	return r.prefix + keyReverse + strconv.FormatInt(int64(id), 10)
}

func (r *RedisRegistry) Assign(ctx context.Context, key Key) (int32, error) {
	if id, ok := r.local.Lookup(ctx, key); ok {
		return id, nil
	}

	fwd := r.forwardKey(key)
	val, err := r.client.Get(ctx, fwd).Result()
	if err == nil {
		if id, perr := strconv.ParseInt(val, 10, 32); perr == nil {
			r.local.put(key, int32(id))
			return int32(id), nil
		}
	} else if err != redis.Nil {
		return r.fallback(ctx, key, err)
	}

	raw, err := json.Marshal(key)
	if err != nil {
		return 0, err
	}
	id := hashID(key)
	for i := 0; i < maxProbe; i++ {
		claimed, err := r.client.SetNX(ctx, r.reverseKey(id), raw, r.ttl).Result()
		if err != nil {
			return r.fallback(ctx, key, err)
		}
		if !claimed {
			owner, err := r.client.Get(ctx, r.reverseKey(id)).Result()
			if err != nil && err != redis.Nil {
				return r.fallback(ctx, key, err)
			}
			if owner != string(raw) {
				id = nextID(id)
				continue
			}
		}
		if err := r.client.Set(ctx, fwd, id, r.ttl).Err(); err != nil {
			r.log.Warn().Err(err).Str("key", key.String()).Msg("Failed to write forward mapping")
		}
		r.local.put(key, id)
		return id, nil
	}
	return 0, fmt.Errorf("no free short id for %s after %d probes", key, maxProbe)
}

func (r *RedisRegistry) fallback(ctx context.Context, key Key, cause error) (int32, error) {
	r.log.Warn().Err(cause).Str("key", key.String()).Msg("Redis unavailable, assigning locally")
	return r.local.Assign(ctx, key)
}

func (r *RedisRegistry) Lookup(ctx context.Context, key Key) (int32, bool) {
	if id, ok := r.local.Lookup(ctx, key); ok {
		return id, true
	}
	val, err := r.client.Get(ctx, r.forwardKey(key)).Result()
	if err != nil {
		if err != redis.Nil {
			r.log.Warn().Err(err).Str("key", key.String()).Msg("Forward lookup failed")
		}
		return 0, false
	}
	id, err := strconv.ParseInt(val, 10, 32)
	if err != nil {
		return 0, false
	}
	r.local.put(key, int32(id))
	return int32(id), true
}

func (r *RedisRegistry) Resolve(ctx context.Context, id int32) (Key, bool) {
	if key, ok := r.local.Resolve(ctx, id); ok {
		return key, true
	}
	val, err := r.client.Get(ctx, r.reverseKey(id)).Result()
	if err != nil {
		if err != redis.Nil {
			r.log.Warn().Err(err).Int32("id", id).Msg("Reverse lookup failed")
		}
		return Key{}, false
	}
	var key Key
	if err := json.Unmarshal([]byte(val), &key); err != nil {
		return Key{}, false
	}
	r.local.put(key, id)
	return key, true
}

func (r *RedisRegistry) Len() int {
	return r.local.Len()
}
