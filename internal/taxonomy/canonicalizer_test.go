package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCanonicalizeExactTaxonomyMatch 验证与分类法本身的大小写不敏感精确匹配
func TestCanonicalizeExactTaxonomyMatch(t *testing.T) {
	table := DefaultTable()

	topic, ok := table.Canonicalize("machine learning")
	require.True(t, ok)
	assert.Equal(t, TopicMachineLearning, topic)

	topic, ok = table.Canonicalize("  HEALTHCARE  ")
	require.True(t, ok)
	assert.Equal(t, TopicHealthcare, topic)
}

// TestCanonicalizeSynonymMatch 验证同义词表精确匹配
func TestCanonicalizeSynonymMatch(t *testing.T) {
	table := DefaultTable()

	cases := map[string]Topic{
		"nlp":            TopicArtificialIntelligence,
		"deep learning":  TopicMachineLearning,
		"biotech":        TopicBiomedicalResearch,
		"fintech":        TopicFinance,
		"edtech":         TopicEducation,
		"renewable energy": TopicSustainability,
	}
	for raw, want := range cases {
		topic, ok := table.Canonicalize(raw)
		require.True(t, ok, "同义词 %q 应可归一", raw)
		assert.Equal(t, want, topic, "同义词 %q 归一结果不符", raw)
	}
}

// TestCanonicalizeSubstringContainment 验证双向子串包含规则
func TestCanonicalizeSubstringContainment(t *testing.T) {
	table := DefaultTable()

	// 输入包含同义词键 "deep learning"
	topic, ok := table.Canonicalize("deep learning for genomics pipelines")
	require.True(t, ok)
	assert.Equal(t, TopicMachineLearning, topic)

	// 同义词键 "quantitative trading" 包含输入的情况走不到，
	// 但输入包含键 "startup" 应命中创业主题
	topic, ok = table.Canonicalize("early stage startup internship")
	require.True(t, ok)
	assert.Equal(t, TopicEntrepreneurship, topic)
}

// TestCanonicalizeKeywordBuckets 验证关键词兜底规则及其优先级
func TestCanonicalizeKeywordBuckets(t *testing.T) {
	table := DefaultTable()

	// 医疗类关键词
	for _, raw := range []string{"rural clinic outreach", "hospital operations", "chronic disease prevention", "novel cancer treatment"} {
		topic, ok := table.Canonicalize(raw)
		require.True(t, ok, "%q 应被医疗兜底规则命中", raw)
		assert.Equal(t, TopicHealthcare, topic, "%q", raw)
	}

	// 医疗优先级高于AI：同时含"clinical"与"neural"的短语归入医疗
	topic, ok := table.Canonicalize("clinical neural screening")
	require.True(t, ok)
	assert.Equal(t, TopicHealthcare, topic, "兜底规则必须按固定优先级检查")

	// 通用 engineering 兜底
	topic, ok = table.Canonicalize("platform engineering rotation")
	require.True(t, ok)
	assert.Equal(t, TopicSoftwareEngineering, topic)
}

// TestCanonicalizeUnmapped 验证未命中时返回未映射而不是报错
func TestCanonicalizeUnmapped(t *testing.T) {
	table := DefaultTable()

	for _, raw := range []string{"", "   ", "underwater basket weaving", "zzzzqqq"} {
		_, ok := table.Canonicalize(raw)
		assert.False(t, ok, "%q 不应被归一", raw)
	}
}

// TestCanonicalizeAllKeepsLiterals 验证批量归一时未映射短语按字面保留
func TestCanonicalizeAllKeepsLiterals(t *testing.T) {
	table := DefaultTable()

	out := table.CanonicalizeAll([]string{"nlp", "underwater basket weaving", "  ", "biotech"})
	require.Len(t, out, 3, "空白短语应被丢弃")
	assert.Equal(t, string(TopicArtificialIntelligence), out[0])
	assert.Equal(t, "underwater basket weaving", out[1], "未映射短语必须按字面保留，双方相同短语仍可精确匹配")
	assert.Equal(t, string(TopicBiomedicalResearch), out[2])
}

// TestCanonicalizeIsTotal 验证任意噪声输入都能安全返回
func TestCanonicalizeIsTotal(t *testing.T) {
	table := DefaultTable()
	noisy := []string{"!!!", "12345", "ai/ml & data\nscience", "\t\r\n", "🤖 robots"}
	for _, raw := range noisy {
		assert.NotPanics(t, func() { table.Canonicalize(raw) }, "输入 %q 不应panic", raw)
	}
}
