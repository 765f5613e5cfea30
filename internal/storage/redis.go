package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"campus-match-go/internal/config"
	"campus-match-go/internal/constants"
	"campus-match-go/internal/matcher"
	"campus-match-go/internal/tracing"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrNotFound is returned when a key is not found in Redis.
// It wraps the underlying redis.Nil error for abstraction.
var ErrNotFound = redis.Nil

// 为Redis操作定义专用tracer
var redisTracer = otel.Tracer("campus-match-go/storage/redis")

// Redis操作前缀采样率配置
var redisKeySamplingRates = map[string]float64{
	"app:match:ranking:": 0.1, // 匹配排名缓存采样10%
	"app:match:event:":   0.1, // 事件幂等标记采样10%
	"app:digest:lock:":   0.5, // 摘要锁操作采样50%
}

var (
	rnd      *rand.Rand
	rndMutex sync.Mutex
)

func init() {
	source := rand.NewSource(time.Now().UnixNano())
	rnd = rand.New(source)
}

// shouldSampleRedisOp 根据key前缀决定是否需要创建span
func shouldSampleRedisOp(key string) bool {
	if key == "" {
		return false
	}

	for prefix, rate := range redisKeySamplingRates {
		if strings.HasPrefix(key, prefix) {
			return randFloat() < rate
		}
	}

	// 默认采样率5%
	return randFloat() < 0.05
}

func randFloat() float64 {
	rndMutex.Lock()
	defer rndMutex.Unlock()
	return rnd.Float64()
}

// Redis wraps the Redis client
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter creates a new Redis client connection
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,

		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: time.Duration(cfg.MinRetryBackoffMS) * time.Millisecond,
		MaxRetryBackoff: time.Duration(cfg.MaxRetryBackoffMS) * time.Millisecond,

		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute,
		ConnMaxIdleTime: time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute,
	}

	client := redis.NewClient(opt)

	// 添加OpenTelemetry钩子, 记录所有Redis操作
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return &Redis{
		Client: client,
		config: cfg,
	}, nil
}

// Close closes the Redis client connection
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping checks the Redis connection
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Ping(ctx).Err()
}

// 匹配方向，用作排名缓存key的组成部分
const (
	DirectionPostingsForProfile = "postings_for_profile"
	DirectionProfilesForPosting = "profiles_for_posting"
)

// CacheMatchRanking 缓存一次匹配请求的排名结果 (JSON STRING)
func (r *Redis) CacheMatchRanking(ctx context.Context, direction, ownerID string, results []matcher.MatchResult, ttl time.Duration) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	key := fmt.Sprintf(constants.KeyMatchRanking, direction, ownerID)

	var span trace.Span
	if shouldSampleRedisOp(key) {
		ctx, span = redisTracer.Start(ctx, "Redis.CacheMatchRanking",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("db.system", "redis"),
				attribute.String("db.redis.key", tracing.SafeRedisKey(key)),
				attribute.Int("ranking.size", len(results)),
			))
		defer span.End()
	}

	payload, err := json.Marshal(results)
	if err != nil {
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return fmt.Errorf("序列化匹配排名失败: %w", err)
	}

	if ttl <= 0 {
		ttl = constants.MatchCacheDuration
	}
	if err := r.Client.Set(ctx, key, payload, ttl).Err(); err != nil {
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return fmt.Errorf("写入匹配排名缓存失败: %w", err)
	}
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
	return nil
}

// GetCachedMatchRanking 读取匹配排名缓存，未命中返回ErrNotFound
func (r *Redis) GetCachedMatchRanking(ctx context.Context, direction, ownerID string) ([]matcher.MatchResult, error) {
	if r.Client == nil {
		return nil, fmt.Errorf("redis client is not initialized")
	}
	key := fmt.Sprintf(constants.KeyMatchRanking, direction, ownerID)

	payload, err := r.Client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("读取匹配排名缓存失败: %w", err)
	}

	var results []matcher.MatchResult
	if err := json.Unmarshal(payload, &results); err != nil {
		// 缓存内容损坏时删除并当作未命中处理
		r.Client.Del(ctx, key)
		return nil, ErrNotFound
	}
	return results, nil
}

// InvalidateMatchRanking 删除单个方向的匹配排名缓存
func (r *Redis) InvalidateMatchRanking(ctx context.Context, direction, ownerID string) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	key := fmt.Sprintf(constants.KeyMatchRanking, direction, ownerID)
	return r.Client.Del(ctx, key).Err()
}

// InvalidateProfileMatches 档案权重变化后失效该学生的排名缓存
func (r *Redis) InvalidateProfileMatches(ctx context.Context, profileID string) error {
	return r.InvalidateMatchRanking(ctx, DirectionPostingsForProfile, profileID)
}

// AcquireDigestLock 获取周摘要批处理的分布式锁
// 返回true表示获取成功，false表示锁已被其他实例持有
func (r *Redis) AcquireDigestLock(ctx context.Context, weekStart string, ttl time.Duration) (bool, error) {
	if r.Client == nil {
		return false, fmt.Errorf("redis client is not initialized")
	}
	key := fmt.Sprintf(constants.KeyDigestLock, weekStart)

	var span trace.Span
	if shouldSampleRedisOp(key) {
		ctx, span = redisTracer.Start(ctx, "Redis.AcquireDigestLock",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("db.system", "redis"),
				attribute.String("db.redis.key", tracing.SafeRedisKey(key)),
			))
		defer span.End()
	}

	acquired, err := r.Client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return false, fmt.Errorf("获取摘要锁失败: %w", err)
	}
	if span != nil {
		span.SetAttributes(attribute.Bool("lock.acquired", acquired))
		span.SetStatus(codes.Ok, "")
	}
	return acquired, nil
}

// ReleaseDigestLock 释放周摘要批处理的分布式锁
func (r *Redis) ReleaseDigestLock(ctx context.Context, weekStart string) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	key := fmt.Sprintf(constants.KeyDigestLock, weekStart)
	return r.Client.Del(ctx, key).Err()
}

// MarkEventProcessed 为交互事件打幂等标记
// 返回true表示首次处理，false表示该事件已被处理过
func (r *Redis) MarkEventProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	if r.Client == nil {
		return false, fmt.Errorf("redis client is not initialized")
	}
	key := fmt.Sprintf(constants.KeyProcessedEvent, eventID)
	first, err := r.Client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("写入事件幂等标记失败: %w", err)
	}
	return first, nil
}

// UnmarkEventProcessed 处理失败后回滚幂等标记，允许消息重投后重试
func (r *Redis) UnmarkEventProcessed(ctx context.Context, eventID string) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	key := fmt.Sprintf(constants.KeyProcessedEvent, eventID)
	return r.Client.Del(ctx, key).Err()
}
