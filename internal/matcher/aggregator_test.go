package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func topicVector(ownerID string, topics ...string) *ProfileVector {
	tws := make([]TopicWeight, len(topics))
	for i, topic := range topics {
		tws[i] = TopicWeight{Topic: topic, Weight: 0.8}
	}
	return NewProfileVector(ownerID, tws, nil, Metadata{})
}

// TestScoreTargetsForSourceRanking 验证正向入口的过滤、排序与方向
func TestScoreTargetsForSourceRanking(t *testing.T) {
	engine := NewEngine(nil)
	source := topicVector("profile-1", "Machine Learning", "Healthcare")

	candidates := []*ProfileVector{
		topicVector("posting-weak", "urban transit planning"),        // 无重叠 → 过滤
		topicVector("posting-exact", "Machine Learning"),             // 满分
		topicVector("posting-partial", "Machine Learning", "Finance"), // 部分覆盖
	}

	results, err := engine.ScoreTargetsForSource(source, candidates, 0)
	require.NoError(t, err)
	require.Len(t, results, 2, "无重叠的候选应被策略阈值过滤")

	assert.Equal(t, "posting-exact", results[0].TargetID, "分数最高的候选应排在首位")
	assert.Equal(t, "profile-1", results[0].SourceID)
	assert.Greater(t, results[0].Score, results[1].Score)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
	}
}

// TestScoreSourcesForTargetDirection 验证反向入口的结果方向字段
func TestScoreSourcesForTargetDirection(t *testing.T) {
	engine := NewEngine(nil)
	target := topicVector("posting-1", "Data Science")
	candidates := []*ProfileVector{
		topicVector("profile-a", "Data Science"),
		topicVector("profile-b", "Finance"),
	}

	results, err := engine.ScoreSourcesForTarget(target, candidates, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "profile-a", results[0].SourceID)
	assert.Equal(t, "posting-1", results[0].TargetID)
}

// TestAggregatorExplicitThresholdNarrows 验证调用方阈值在策略下限之上收窄
func TestAggregatorExplicitThresholdNarrows(t *testing.T) {
	engine := NewEngine(nil)
	source := topicVector("profile-1", "Machine Learning", "Healthcare", "Finance")
	// 只命中1/3主题的候选：质量1.0、覆盖1.0（目标侧单主题），组合分1.0；
	// 换一个部分质量的候选制造中等分数
	candidates := []*ProfileVector{
		topicVector("posting-high", "Machine Learning"),
		topicVector("posting-mid", "machine learning models", "quantum chemistry"),
	}

	all, err := engine.ScoreTargetsForSource(source, candidates, 0)
	require.NoError(t, err)
	require.NotEmpty(t, all)

	narrowed, err := engine.ScoreTargetsForSource(source, candidates, 0.9)
	require.NoError(t, err)
	for _, r := range narrowed {
		assert.GreaterOrEqual(t, r.Score, 0.9, "显式阈值必须在策略下限之上再过滤一次")
	}
	assert.LessOrEqual(t, len(narrowed), len(all))
}

// TestAggregatorStableTieOrder 验证平分时保持候选集原始顺序
func TestAggregatorStableTieOrder(t *testing.T) {
	engine := NewEngine(nil)
	source := topicVector("profile-1", "Robotics")
	// 两个候选与来源的匹配完全对称，分数必然相等
	candidates := []*ProfileVector{
		topicVector("posting-first", "Robotics"),
		topicVector("posting-second", "Robotics"),
	}

	results, err := engine.ScoreTargetsForSource(source, candidates, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, results[0].Score, results[1].Score)
	assert.Equal(t, "posting-first", results[0].TargetID, "平分必须保持候选原始顺序")
	assert.Equal(t, "posting-second", results[1].TargetID)
}

// TestAggregatorEligibilityBeforeScoring 验证资格过滤先于打分生效
func TestAggregatorEligibilityBeforeScoring(t *testing.T) {
	engine := NewEngine(nil)
	source := NewProfileVector("profile-1",
		[]TopicWeight{{Topic: "AI", Weight: 1}}, nil,
		Metadata{Major: "History", Year: "freshman"})

	ineligible := NewProfileVector("posting-gated",
		[]TopicWeight{{Topic: "AI", Weight: 1}}, nil,
		Metadata{RequiredMajors: "Computer Science", RequiredYears: "junior"})
	open := NewProfileVector("posting-open",
		[]TopicWeight{{Topic: "AI", Weight: 1}}, nil, Metadata{})

	results, err := engine.ScoreTargetsForSource(source, []*ProfileVector{ineligible, open}, 0)
	require.NoError(t, err)
	require.Len(t, results, 1, "不满足硬性要求的候选不应出现在结果中")
	assert.Equal(t, "posting-open", results[0].TargetID)
}

// TestAggregatorEmptySource 验证不可打分的来源产出空结果而非错误
func TestAggregatorEmptySource(t *testing.T) {
	engine := NewEngine(nil)
	empty := NewProfileVector("profile-empty", nil, nil, Metadata{})

	results, err := engine.ScoreTargetsForSource(empty, []*ProfileVector{topicVector("posting-1", "AI")}, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

// TestAggregatorDimensionMismatchFailsLoudly 验证embedding维度不一致向上冒错
func TestAggregatorDimensionMismatchFailsLoudly(t *testing.T) {
	engine := NewEngine(nil)
	source := NewProfileVector("profile-1", nil, []float64{1, 0}, Metadata{})
	bad := NewProfileVector("posting-bad", nil, []float64{1, 0, 0}, Metadata{})

	_, err := engine.ScoreTargetsForSource(source, []*ProfileVector{bad}, 0)
	require.Error(t, err, "维度不一致必须大声失败")
}
