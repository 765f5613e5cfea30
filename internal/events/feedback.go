package events

import (
	"context"
	"fmt"
	"time"

	"campus-match-go/internal/logger"
	"campus-match-go/internal/matcher"
	"campus-match-go/internal/storage"
	"campus-match-go/internal/storage/models"
	"campus-match-go/internal/taxonomy"
	"campus-match-go/internal/tracing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var eventsTracer = otel.Tracer("campus-match-go/events")

// ProfileStore 反馈处理需要的数据库操作
type ProfileStore interface {
	GetProfile(ctx context.Context, profileID string) (*models.StudentProfile, error)
	GetPosting(ctx context.Context, postingID string) (*models.OpportunityPosting, error)
	UpdateProfileTopics(ctx context.Context, profileID string, topics []matcher.TopicWeight) error
	SaveInteractionEvent(ctx context.Context, event *models.InteractionEvent) (bool, error)
}

// CacheInvalidator 权重变化后失效相关缓存
type CacheInvalidator interface {
	InvalidateProfileMatches(ctx context.Context, profileID string) error
}

// EventMarker 事件幂等标记的快路径，命中即跳过数据库写入。
// 标记只是加速器，最终的幂等判定仍以SQL主键冲突为准
type EventMarker interface {
	MarkEventProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
	UnmarkEventProcessed(ctx context.Context, eventID string) error
}

// processedEventTTL 幂等标记的存活时间，过期后回退SQL判定
const processedEventTTL = 24 * time.Hour

// FeedbackService 把交互事件转化为档案兴趣权重的调整
type FeedbackService struct {
	store    ProfileStore
	cache    CacheInvalidator // 可选
	marker   EventMarker      // 可选
	taxonomy *taxonomy.Table
}

// NewFeedbackService 创建反馈处理服务
func NewFeedbackService(store ProfileStore, table *taxonomy.Table) *FeedbackService {
	if table == nil {
		table = taxonomy.DefaultTable()
	}
	return &FeedbackService{
		store:    store,
		taxonomy: table,
	}
}

// WithCache 设置缓存失效器
func (s *FeedbackService) WithCache(cache CacheInvalidator) *FeedbackService {
	s.cache = cache
	return s
}

// WithEventMarker 设置事件幂等标记的快路径
func (s *FeedbackService) WithEventMarker(marker EventMarker) *FeedbackService {
	s.marker = marker
	return s
}

// Apply 应用一条交互事件
// 事件按EventID幂等：重复投递的事件不会二次调整权重
func (s *FeedbackService) Apply(ctx context.Context, event storage.InteractionEventMessage) (err error) {
	ctx, span := eventsTracer.Start(ctx, "Feedback.Apply")
	defer span.End()
	span.SetAttributes(
		attribute.String("event.id", event.EventID),
		attribute.String("event.kind", event.Kind),
		attribute.String("profile.id", event.ProfileID),
	)

	kind, err := matcher.ParseInteractionKind(event.Kind)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return fmt.Errorf("无法识别的交互类型 '%s': %w", event.Kind, err)
	}

	if event.EventID == "" || event.ProfileID == "" || event.PostingID == "" {
		err := fmt.Errorf("交互事件缺少必需字段: event_id=%q profile_id=%q posting_id=%q",
			event.EventID, event.ProfileID, event.PostingID)
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return err
	}

	// Redis快路径：标记已存在直接跳过，省掉一次冲突写入。
	// 标记写失败不阻断处理，回退到下方的SQL判定
	marked := false
	if s.marker != nil {
		first, markErr := s.marker.MarkEventProcessed(ctx, event.EventID, processedEventTTL)
		switch {
		case markErr != nil:
			logger.Warn().Err(markErr).Str("event_id", event.EventID).Msg("写入事件幂等标记失败，回退数据库判定")
		case !first:
			logger.Debug().Str("event_id", event.EventID).Msg("交互事件已处理过（标记命中），跳过")
			span.SetStatus(codes.Ok, "duplicate event")
			return nil
		default:
			marked = true
		}
		// 处理失败时回滚标记，消息重投后还能重试
		defer func() {
			if err != nil && marked {
				if unmarkErr := s.marker.UnmarkEventProcessed(ctx, event.EventID); unmarkErr != nil {
					logger.Warn().Err(unmarkErr).Str("event_id", event.EventID).Msg("回滚事件幂等标记失败")
				}
			}
		}()
	}

	// 先落审计记录，主键冲突说明事件已处理过
	created, err := s.store.SaveInteractionEvent(ctx, &models.InteractionEvent{
		EventID:   event.EventID,
		ProfileID: event.ProfileID,
		PostingID: event.PostingID,
		Kind:      string(kind),
	})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return err
	}
	if !created {
		logger.Debug().Str("event_id", event.EventID).Msg("交互事件已处理过，跳过")
		span.SetStatus(codes.Ok, "duplicate event")
		return nil
	}

	profile, err := s.store.GetProfile(ctx, event.ProfileID)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return fmt.Errorf("加载学生档案失败: %w", err)
	}
	posting, err := s.store.GetPosting(ctx, event.PostingID)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return fmt.Errorf("加载机会帖子失败: %w", err)
	}

	currentRecords, err := models.TopicWeightsFromJSON(profile.InterestTopicsJSON)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		return fmt.Errorf("解析档案兴趣主题失败: %w", err)
	}
	current := make([]matcher.TopicWeight, len(currentRecords))
	for i, r := range currentRecords {
		current[i] = matcher.NewTopicWeight(r.Topic, r.Weight)
	}

	postingRecords, err := models.TopicWeightsFromJSON(posting.TopicsJSON)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		return fmt.Errorf("解析帖子主题失败: %w", err)
	}
	rawTopics := make([]string, len(postingRecords))
	for i, r := range postingRecords {
		rawTopics[i] = r.Topic
	}
	topics := s.taxonomy.CanonicalizeAll(rawTopics)

	updated := matcher.AdjustVector(current, topics, kind)
	if err := s.store.UpdateProfileTopics(ctx, event.ProfileID, updated); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return fmt.Errorf("更新档案兴趣权重失败: %w", err)
	}

	// 权重变了，旧的排名缓存作废。失效失败只记日志，缓存会自然过期
	if s.cache != nil {
		if err := s.cache.InvalidateProfileMatches(ctx, event.ProfileID); err != nil {
			logger.Warn().Err(err).Str("profile_id", event.ProfileID).Msg("失效匹配缓存失败")
		}
	}

	logger.Info().
		Str("event_id", event.EventID).
		Str("profile_id", event.ProfileID).
		Str("posting_id", event.PostingID).
		Str("kind", string(kind)).
		Int("topics_adjusted", len(topics)).
		Msg("交互事件已应用")

	span.SetStatus(codes.Ok, "")
	return nil
}
