package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"beatrice-server-go/internal/domain/orchestrator"
	"beatrice-server-go/internal/platform/config"
)

// DialRedis connects and pings the configured redis server.
func DialRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// RedisMemory 以 redis 字符串键保存记忆，ttlSec 映射为 EX
type RedisMemory struct {
	orchestrator.Descriptor
	client redis.Cmdable
	prefix string
}

// NewRedisMemory takes a redis.Cmdable from cfg.Client; extra "prefix" namespaces keys.
func NewRedisMemory(cfg orchestrator.ProviderConfig) *RedisMemory {
	client, _ := cfg.Client.(redis.Cmdable)
	return &RedisMemory{
		Descriptor: orchestrator.NewDescriptor("redis-memory", false, memoryOps),
		client:     client,
		prefix:     cfg.String("prefix", ""),
	}
}

func (r *RedisMemory) key(scope orchestrator.MemoryScope, key string) string {
	return r.prefix + orchestrator.StoreKey(scope, key)
}

func (r *RedisMemory) Note(ctx context.Context, in orchestrator.MemoryNoteIn) (*orchestrator.MemoryNoteOut, error) {
	if r.client == nil {
		return nil, errors.New("redis-memory: client not configured")
	}
	if err := checkKey(in.Scope, in.Key); err != nil {
		return nil, err
	}
	value, err := encode(in.Value)
	if err != nil {
		return nil, err
	}
	var ttl time.Duration
	if in.TTLSec > 0 {
		ttl = time.Duration(in.TTLSec) * time.Second
	}
	if err := r.client.Set(ctx, r.key(in.Scope, in.Key), value, ttl).Err(); err != nil {
		return nil, err
	}
	return &orchestrator.MemoryNoteOut{OK: true}, nil
}

func (r *RedisMemory) Read(ctx context.Context, in orchestrator.MemoryReadIn) (*orchestrator.MemoryReadOut, error) {
	if r.client == nil {
		return nil, errors.New("redis-memory: client not configured")
	}
	if err := checkKey(in.Scope, in.Key); err != nil {
		return nil, err
	}
	raw, err := r.client.Get(ctx, r.key(in.Scope, in.Key)).Result()
	if errors.Is(err, redis.Nil) {
		return &orchestrator.MemoryReadOut{Found: false}, nil
	}
	if err != nil {
		return nil, err
	}
	value, err := decode(raw)
	if err != nil {
		return nil, err
	}
	return &orchestrator.MemoryReadOut{Value: value, Found: true}, nil
}
