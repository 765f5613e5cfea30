package digest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"campus-match-go/internal/config"
	"campus-match-go/internal/logger"
	"campus-match-go/internal/matcher"
	"campus-match-go/internal/storage"
	"campus-match-go/internal/storage/models"
	"campus-match-go/internal/tracing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var digestTracer = otel.Tracer("campus-match-go/digest")

// VectorSource 提供参与匹配的档案与帖子向量
type VectorSource interface {
	ListProfileVectors(ctx context.Context) ([]*matcher.ProfileVector, error)
	ListActivePostingVectors(ctx context.Context, now time.Time) ([]*matcher.ProfileVector, error)
}

// EntryStore 持久化摘要条目
type EntryStore interface {
	UpsertDigestEntries(ctx context.Context, entries []models.MatchDigestEntry) error
}

// Locker 批处理的分布式锁，防止多实例同时重跑
type Locker interface {
	AcquireDigestLock(ctx context.Context, weekStart string, ttl time.Duration) (bool, error)
	ReleaseDigestLock(ctx context.Context, weekStart string) error
}

// Publisher 批处理完成后向下游发布事件
type Publisher interface {
	PublishJSON(ctx context.Context, exchangeName, routingKey string, data interface{}, persistent bool) error
}

// Builder 周摘要批处理器
// 对每个学生档案跑一轮帖子匹配，把达标的Top N结果落库
type Builder struct {
	engine *matcher.Engine
	source VectorSource
	store  EntryStore

	// 可选依赖，为nil时跳过对应步骤
	locker    Locker
	publisher Publisher

	cfg        config.DigestConfig
	exchange   string
	routingKey string

	// 时钟注入点，测试时可固定当前时间
	now func() time.Time
}

// NewBuilder 创建周摘要批处理器
func NewBuilder(engine *matcher.Engine, source VectorSource, store EntryStore, cfg config.DigestConfig) *Builder {
	if engine == nil {
		engine = matcher.NewEngine(nil)
	}
	if cfg.TopN <= 0 {
		cfg.TopN = 10
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = 0.5
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Builder{
		engine: engine,
		source: source,
		store:  store,
		cfg:    cfg,
		now:    time.Now,
	}
}

// WithLocker 设置分布式锁
func (b *Builder) WithLocker(locker Locker) *Builder {
	b.locker = locker
	return b
}

// WithPublisher 设置完成事件发布器
func (b *Builder) WithPublisher(publisher Publisher, exchange, routingKey string) *Builder {
	b.publisher = publisher
	b.exchange = exchange
	b.routingKey = routingKey
	return b
}

// WithClock 替换当前时间来源
func (b *Builder) WithClock(now func() time.Time) *Builder {
	if now != nil {
		b.now = now
	}
	return b
}

// WeekStart 计算t所在周的起点：周一本地零点
func WeekStart(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	// time.Weekday以周日为0，换算成周一为0的偏移
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// profileResult 单个档案的批处理产出
type profileResult struct {
	entries []models.MatchDigestEntry
	err     error
}

// Run 执行一轮周摘要批处理，返回写入的条目数
// 同一周重跑时，唯一键 (profile_id, posting_id, week_start) 保证幂等更新
func (b *Builder) Run(ctx context.Context) (int, error) {
	now := b.now()
	weekStart := WeekStart(now)
	weekKey := weekStart.Format("2006-01-02")

	ctx, span := digestTracer.Start(ctx, "Digest.Run",
		trace.WithAttributes(attribute.String("digest.week_start", weekKey)))
	defer span.End()

	if b.locker != nil {
		ttl := time.Duration(b.cfg.LockTTLMinutes) * time.Minute
		if ttl <= 0 {
			ttl = 30 * time.Minute
		}
		acquired, err := b.locker.AcquireDigestLock(ctx, weekKey, ttl)
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeRedis)
			return 0, fmt.Errorf("获取摘要锁失败: %w", err)
		}
		if !acquired {
			logger.Warn().Str("week_start", weekKey).Msg("摘要批处理已在其他实例运行，跳过本轮")
			span.SetStatus(codes.Ok, "lock held elsewhere")
			return 0, nil
		}
		defer func() {
			if err := b.locker.ReleaseDigestLock(ctx, weekKey); err != nil {
				logger.Warn().Err(err).Str("week_start", weekKey).Msg("释放摘要锁失败")
			}
		}()
	}

	postings, err := b.source.ListActivePostingVectors(ctx, now)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return 0, fmt.Errorf("加载机会帖子失败: %w", err)
	}
	profiles, err := b.source.ListProfileVectors(ctx)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return 0, fmt.Errorf("加载学生档案失败: %w", err)
	}

	// 摘要固定走主题重叠策略：去掉embedding，阈值0.5是按重叠分档标定的
	postings = topicOnlyVectors(postings)

	span.SetAttributes(
		attribute.Int("digest.profile_count", len(profiles)),
		attribute.Int("digest.posting_count", len(postings)),
	)

	if len(profiles) == 0 || len(postings) == 0 {
		logger.Info().Str("week_start", weekKey).Msg("没有可参与匹配的档案或帖子，本轮为空")
		span.SetStatus(codes.Ok, "nothing to match")
		return 0, nil
	}

	jobs := make(chan *matcher.ProfileVector)
	results := make(chan profileResult, len(profiles))

	var wg sync.WaitGroup
	for w := 0; w < b.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for profile := range jobs {
				results <- b.buildForProfile(profile, postings, weekStart)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, profile := range profiles {
			select {
			case <-ctx.Done():
				return
			case jobs <- profile:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var entries []models.MatchDigestEntry
	profileSet := make(map[string]bool)
	failed := 0
	for result := range results {
		if result.err != nil {
			failed++
			continue
		}
		for _, entry := range result.entries {
			profileSet[entry.ProfileID] = true
		}
		entries = append(entries, result.entries...)
	}

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	if err := b.store.UpsertDigestEntries(ctx, entries); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return 0, err
	}

	logger.Info().
		Str("week_start", weekKey).
		Int("entries", len(entries)).
		Int("profiles", len(profileSet)).
		Int("failed_profiles", failed).
		Msg("周摘要批处理完成")

	if b.publisher != nil && b.exchange != "" {
		message := storage.DigestCompletedMessage{
			WeekStart:    weekStart,
			EntryCount:   len(entries),
			ProfileCount: len(profileSet),
			CompletedAt:  b.now(),
		}
		if err := b.publisher.PublishJSON(ctx, b.exchange, b.routingKey, message, true); err != nil {
			// 发布失败不影响已落库的结果
			logger.Error().Err(err).Str("week_start", weekKey).Msg("发布摘要完成事件失败")
		}
	}

	span.SetAttributes(attribute.Int("digest.entry_count", len(entries)))
	span.SetStatus(codes.Ok, "")
	return len(entries), nil
}

// topicOnly 返回去掉embedding的向量副本，保证打分只走主题重叠策略
func topicOnly(v *matcher.ProfileVector) *matcher.ProfileVector {
	if v == nil || len(v.Embedding) == 0 {
		return v
	}
	clone := *v
	clone.Embedding = nil
	return &clone
}

func topicOnlyVectors(vectors []*matcher.ProfileVector) []*matcher.ProfileVector {
	out := make([]*matcher.ProfileVector, len(vectors))
	for i, v := range vectors {
		out[i] = topicOnly(v)
	}
	return out
}

// buildForProfile 对单个档案跑匹配并裁剪为Top N条目
func (b *Builder) buildForProfile(profile *matcher.ProfileVector, postings []*matcher.ProfileVector, weekStart time.Time) profileResult {
	matches, err := b.engine.ScoreTargetsForSource(topicOnly(profile), postings, b.cfg.MinScore)
	if err != nil {
		logger.Error().Err(err).Str("profile_id", profile.OwnerID).Msg("档案匹配失败，跳过该档案")
		return profileResult{err: err}
	}

	if len(matches) > b.cfg.TopN {
		matches = matches[:b.cfg.TopN]
	}

	entries := make([]models.MatchDigestEntry, 0, len(matches))
	for _, match := range matches {
		entries = append(entries, models.MatchDigestEntry{
			ProfileID: match.SourceID,
			PostingID: match.TargetID,
			WeekStart: weekStart,
			Score:     match.Score,
		})
	}
	return profileResult{entries: entries}
}
