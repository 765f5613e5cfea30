package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCosineSimilarityBasics 验证余弦相似度的基本性质
func TestCosineSimilarityBasics(t *testing.T) {
	cos, err := CosineSimilarity([]float64{1, 0}, []float64{1, 0})
	require.NoError(t, err)
	assert.Equal(t, 1.0, cos, "同向单位向量的余弦应为1")

	cos, err = CosineSimilarity([]float64{1, 0}, []float64{-1, 0})
	require.NoError(t, err)
	assert.Equal(t, -1.0, cos, "反向向量的余弦应为-1")

	cos, err = CosineSimilarity([]float64{1, 0}, []float64{0, 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, cos, "正交向量的余弦应为0")
}

// TestCosineSimilarityDimensionMismatch 验证维度不一致必须显式失败
func TestCosineSimilarityDimensionMismatch(t *testing.T) {
	_, err := CosineSimilarity([]float64{1, 0}, []float64{1, 0, 0})
	require.Error(t, err, "维度不一致属于程序性错误，不允许静默降级")
}

// TestCosineSimilaritySelf 验证任意向量与自身的归一化分数为1
func TestCosineSimilaritySelf(t *testing.T) {
	vectors := [][]float64{
		{1, 0},
		{0.3, -0.7, 0.2},
		{0.1, 0.1, 0.1, 0.1},
	}
	for _, v := range vectors {
		cos, err := CosineSimilarity(v, v)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, NormalizeCosine(cos), 1e-9, "向量与自身的归一化分数应为1.0")
	}
}

// TestNormalizeCosineRange 验证归一化后分数落在 [0,1]
func TestNormalizeCosineRange(t *testing.T) {
	assert.Equal(t, 1.0, NormalizeCosine(1))
	assert.Equal(t, 0.0, NormalizeCosine(-1))
	assert.Equal(t, 0.5, NormalizeCosine(0))
}

// TestScorePairEmbeddingPreferred 验证双方都带embedding时优先走embedding策略
func TestScorePairEmbeddingPreferred(t *testing.T) {
	cfg := DefaultConfig()
	source := NewProfileVector("profile-1", []TopicWeight{{Topic: "AI", Weight: 0.9}}, []float64{1, 0}, Metadata{})
	target := NewProfileVector("posting-1", []TopicWeight{{Topic: "Finance", Weight: 0.9}}, []float64{1, 0}, Metadata{})

	ps, err := cfg.scorePair(source, target)
	require.NoError(t, err)
	assert.True(t, ps.keep, "归一化分数1.0应高于0.35阈值")
	assert.InDelta(t, 1.0, ps.score, 1e-9)
	assert.Empty(t, ps.matchedTopics, "embedding策略不产出主题明细")
}

// TestScorePairEmbeddingBelowThreshold 验证低于0.35的embedding匹配被丢弃
func TestScorePairEmbeddingBelowThreshold(t *testing.T) {
	cfg := DefaultConfig()
	source := NewProfileVector("p", nil, []float64{1, 0}, Metadata{})
	target := NewProfileVector("o", nil, []float64{-1, 0}, Metadata{})

	ps, err := cfg.scorePair(source, target)
	require.NoError(t, err)
	assert.False(t, ps.keep, "反向向量归一化分数0应低于0.35阈值")
	assert.Equal(t, 0.0, ps.score)
}

// TestScorePairFallbackToTopicOverlap 验证任一侧缺embedding时回退主题重叠策略
func TestScorePairFallbackToTopicOverlap(t *testing.T) {
	cfg := DefaultConfig()
	// 规格场景：画像主题 ["AI","Healthcare"]，帖子主题 ["AI"]
	// 目标侧总数1，matchedCount=1，avgQuality=1.0，coverage=1.0 → 1.0×0.6+1.0×0.4 = 1.0
	source := NewProfileVector("profile-1", []TopicWeight{
		{Topic: "AI", Weight: 0.9},
		{Topic: "Healthcare", Weight: 0.8},
	}, nil, Metadata{})
	target := NewProfileVector("posting-1", []TopicWeight{{Topic: "AI", Weight: 1.0}}, nil, Metadata{})

	ps, err := cfg.scorePair(source, target)
	require.NoError(t, err)
	assert.True(t, ps.keep)
	assert.InDelta(t, 1.0, ps.score, 1e-9)
	assert.Equal(t, []string{"AI"}, ps.matchedTopics, "明细应记录来源侧贡献匹配的主题原文")
}

// TestScorePairOverlapBelowThreshold 验证低于0.25的重叠匹配被丢弃
func TestScorePairOverlapBelowThreshold(t *testing.T) {
	cfg := DefaultConfig()
	source := NewProfileVector("p", []TopicWeight{{Topic: "urban planning", Weight: 0.9}}, nil, Metadata{})
	target := NewProfileVector("o", []TopicWeight{{Topic: "protein folding", Weight: 0.9}}, nil, Metadata{})

	ps, err := cfg.scorePair(source, target)
	require.NoError(t, err)
	assert.False(t, ps.keep)
	assert.Equal(t, 0.0, ps.score)
}

// TestScorePairUnscorableYieldsNothing 验证既无主题又无embedding时返回空而非错误
func TestScorePairUnscorableYieldsNothing(t *testing.T) {
	cfg := DefaultConfig()
	source := NewProfileVector("p", nil, nil, Metadata{})
	target := NewProfileVector("o", []TopicWeight{{Topic: "AI", Weight: 1}}, nil, Metadata{})

	ps, err := cfg.scorePair(source, target)
	require.NoError(t, err, "空输入按约定静默降级，不算错误")
	assert.False(t, ps.keep)
}

// TestTopicOverlapScoreBounds 验证组合分数始终落在 [0,1]
func TestTopicOverlapScoreBounds(t *testing.T) {
	cfg := DefaultConfig()
	source := NewProfileVector("p", []TopicWeight{
		{Topic: "machine learning", Weight: 1},
		{Topic: "data science", Weight: 1},
		{Topic: "python", Weight: 1},
	}, nil, Metadata{})
	target := NewProfileVector("o", []TopicWeight{
		{Topic: "machine learning", Weight: 1},
		{Topic: "data science", Weight: 1},
	}, nil, Metadata{})

	score, _ := cfg.topicOverlapScore(source, target)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
}
