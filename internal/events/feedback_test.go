package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"campus-match-go/internal/matcher"
	"campus-match-go/internal/storage"
	"campus-match-go/internal/storage/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProfileStore 内存实现，记录写入调用
type fakeProfileStore struct {
	profile *models.StudentProfile
	posting *models.OpportunityPosting

	savedEvents   map[string]bool
	updatedTopics []matcher.TopicWeight
	updateCalls   int
	saveErr       error
}

func newFakeProfileStore() *fakeProfileStore {
	return &fakeProfileStore{savedEvents: make(map[string]bool)}
}

func (f *fakeProfileStore) GetProfile(ctx context.Context, profileID string) (*models.StudentProfile, error) {
	if f.profile == nil {
		return nil, errors.New("profile not found")
	}
	return f.profile, nil
}

func (f *fakeProfileStore) GetPosting(ctx context.Context, postingID string) (*models.OpportunityPosting, error) {
	if f.posting == nil {
		return nil, errors.New("posting not found")
	}
	return f.posting, nil
}

func (f *fakeProfileStore) UpdateProfileTopics(ctx context.Context, profileID string, topics []matcher.TopicWeight) error {
	f.updateCalls++
	f.updatedTopics = topics
	return nil
}

func (f *fakeProfileStore) SaveInteractionEvent(ctx context.Context, event *models.InteractionEvent) (bool, error) {
	if f.saveErr != nil {
		return false, f.saveErr
	}
	if f.savedEvents[event.EventID] {
		return false, nil
	}
	f.savedEvents[event.EventID] = true
	return true, nil
}

// fakeMarker 内存版的事件幂等标记
type fakeMarker struct {
	seen     map[string]bool
	markErr  error
	unmarked []string
}

func newFakeMarker() *fakeMarker {
	return &fakeMarker{seen: make(map[string]bool)}
}

func (f *fakeMarker) MarkEventProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	if f.markErr != nil {
		return false, f.markErr
	}
	if f.seen[eventID] {
		return false, nil
	}
	f.seen[eventID] = true
	return true, nil
}

func (f *fakeMarker) UnmarkEventProcessed(ctx context.Context, eventID string) error {
	delete(f.seen, eventID)
	f.unmarked = append(f.unmarked, eventID)
	return nil
}

// fakeCache 记录失效调用
type fakeCache struct {
	invalidated []string
}

func (f *fakeCache) InvalidateProfileMatches(ctx context.Context, profileID string) error {
	f.invalidated = append(f.invalidated, profileID)
	return nil
}

func profileWithTopics(t *testing.T, topics []models.TopicWeightRecord) *models.StudentProfile {
	t.Helper()
	topicsJSON, err := models.TopicWeightsToJSON(topics)
	require.NoError(t, err)
	return &models.StudentProfile{ProfileID: "profile-1", InterestTopicsJSON: topicsJSON}
}

func postingWithTopics(t *testing.T, topics []models.TopicWeightRecord) *models.OpportunityPosting {
	t.Helper()
	topicsJSON, err := models.TopicWeightsToJSON(topics)
	require.NoError(t, err)
	return &models.OpportunityPosting{PostingID: "posting-1", TopicsJSON: topicsJSON}
}

func validEvent(kind string) storage.InteractionEventMessage {
	return storage.InteractionEventMessage{
		EventID:   "event-1",
		ProfileID: "profile-1",
		PostingID: "posting-1",
		Kind:      kind,
	}
}

// TestApplyPositiveAdjustsWeight 验证正反馈提升已有主题的权重
func TestApplyPositiveAdjustsWeight(t *testing.T) {
	store := newFakeProfileStore()
	store.profile = profileWithTopics(t, []models.TopicWeightRecord{
		{Topic: "Machine Learning", Weight: 0.5},
	})
	// 帖子主题是同义词，应先归一化到规范主题再调整
	store.posting = postingWithTopics(t, []models.TopicWeightRecord{
		{Topic: "ml", Weight: 1.0},
	})
	cache := &fakeCache{}

	service := NewFeedbackService(store, nil).WithCache(cache)
	err := service.Apply(context.Background(), validEvent("positive"))
	require.NoError(t, err)

	require.Equal(t, 1, store.updateCalls)
	require.Len(t, store.updatedTopics, 1)
	assert.Equal(t, "Machine Learning", store.updatedTopics[0].Topic)
	assert.InDelta(t, 0.6, store.updatedTopics[0].Weight, 1e-9)

	assert.Equal(t, []string{"profile-1"}, cache.invalidated, "权重变化后应失效匹配缓存")
}

// TestApplySeedsNewTopic 验证档案中不存在的主题按种子权重入场
func TestApplySeedsNewTopic(t *testing.T) {
	store := newFakeProfileStore()
	store.profile = profileWithTopics(t, nil)
	store.posting = postingWithTopics(t, []models.TopicWeightRecord{
		{Topic: "Robotics", Weight: 1.0},
	})

	service := NewFeedbackService(store, nil)
	err := service.Apply(context.Background(), validEvent("positive"))
	require.NoError(t, err)

	require.Len(t, store.updatedTopics, 1)
	assert.Equal(t, "Robotics", store.updatedTopics[0].Topic)
	assert.InDelta(t, 0.4, store.updatedTopics[0].Weight, 1e-9, "种子权重0.3加正反馈0.1")
}

// TestApplyDuplicateEventIsNoop 验证重复事件不会二次调整
func TestApplyDuplicateEventIsNoop(t *testing.T) {
	store := newFakeProfileStore()
	store.profile = profileWithTopics(t, []models.TopicWeightRecord{
		{Topic: "Machine Learning", Weight: 0.5},
	})
	store.posting = postingWithTopics(t, []models.TopicWeightRecord{
		{Topic: "Machine Learning", Weight: 1.0},
	})

	service := NewFeedbackService(store, nil)
	event := validEvent("strong_positive")

	require.NoError(t, service.Apply(context.Background(), event))
	require.NoError(t, service.Apply(context.Background(), event))

	assert.Equal(t, 1, store.updateCalls, "重复事件不应再次更新权重")
}

// TestApplyMarkerHitSkipsPersist 验证标记命中的事件不再触发数据库写入
func TestApplyMarkerHitSkipsPersist(t *testing.T) {
	store := newFakeProfileStore()
	marker := newFakeMarker()
	marker.seen["event-1"] = true

	service := NewFeedbackService(store, nil).WithEventMarker(marker)
	err := service.Apply(context.Background(), validEvent("positive"))
	require.NoError(t, err)

	assert.Empty(t, store.savedEvents, "标记命中时不应写入审计记录")
	assert.Equal(t, 0, store.updateCalls)
}

// TestApplyUnmarksOnPersistFailure 验证处理失败后回滚标记，重投可重试
func TestApplyUnmarksOnPersistFailure(t *testing.T) {
	store := newFakeProfileStore()
	store.saveErr = errors.New("db down")
	marker := newFakeMarker()

	service := NewFeedbackService(store, nil).WithEventMarker(marker)
	err := service.Apply(context.Background(), validEvent("positive"))
	require.Error(t, err)

	assert.Equal(t, []string{"event-1"}, marker.unmarked)
	assert.False(t, marker.seen["event-1"], "失败后标记应被清除")
}

// TestApplyMarkerErrorFallsBackToDB 验证标记不可用时退回数据库判定
func TestApplyMarkerErrorFallsBackToDB(t *testing.T) {
	store := newFakeProfileStore()
	store.profile = profileWithTopics(t, nil)
	store.posting = postingWithTopics(t, []models.TopicWeightRecord{
		{Topic: "Robotics", Weight: 1.0},
	})
	marker := newFakeMarker()
	marker.markErr = errors.New("redis down")

	service := NewFeedbackService(store, nil).WithEventMarker(marker)
	err := service.Apply(context.Background(), validEvent("positive"))
	require.NoError(t, err)

	assert.True(t, store.savedEvents["event-1"], "标记失败时仍应走完整处理")
	assert.Equal(t, 1, store.updateCalls)
}

// TestApplyRejectsUnknownKind 验证未知交互类型直接报错
func TestApplyRejectsUnknownKind(t *testing.T) {
	service := NewFeedbackService(newFakeProfileStore(), nil)
	err := service.Apply(context.Background(), validEvent("viewed"))
	assert.Error(t, err)
}

// TestApplyRejectsMissingFields 验证缺字段的事件直接报错
func TestApplyRejectsMissingFields(t *testing.T) {
	service := NewFeedbackService(newFakeProfileStore(), nil)
	event := validEvent("positive")
	event.ProfileID = ""
	err := service.Apply(context.Background(), event)
	assert.Error(t, err)
}

// TestConsumerHandleAcksPoisonMessage 验证JSON损坏的消息被确认丢弃
func TestConsumerHandleAcksPoisonMessage(t *testing.T) {
	service := NewFeedbackService(newFakeProfileStore(), nil)
	consumer := &Consumer{service: service}

	handled := consumer.handle(context.Background())([]byte("{not json"))
	assert.True(t, handled, "无法解析的消息重投也不会成功，应确认丢弃")
}

// TestConsumerHandleRequeuesOnFailure 验证处理失败的消息重新入队
func TestConsumerHandleRequeuesOnFailure(t *testing.T) {
	store := newFakeProfileStore()
	store.saveErr = errors.New("db down")
	service := NewFeedbackService(store, nil)
	consumer := &Consumer{service: service}

	body := []byte(`{"event_id":"event-1","profile_id":"profile-1","posting_id":"posting-1","kind":"positive"}`)
	handled := consumer.handle(context.Background())(body)
	assert.False(t, handled, "持久化失败时应拒绝消息等待重投")
}
