package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestMatchQualityExactMatch 验证归一化后相等的主题返回满分
func TestMatchQualityExactMatch(t *testing.T) {
	assert.Equal(t, 1.0, MatchQuality("python", "python"), "相同泛化词应返回1.0")
	assert.Equal(t, 1.0, MatchQuality("Machine Learning", "machine learning"), "大小写不敏感")
	assert.Equal(t, 1.0, MatchQuality("  AI  ", "ai"), "首尾空白应被忽略")
}

// TestMatchQualityGenericVersusSpecific 验证泛化词与具体短语的整词包含规则
func TestMatchQualityGenericVersusSpecific(t *testing.T) {
	// 泛化词"python"没有以整词形式出现在具体短语中 → 0
	assert.Equal(t, 0.0, MatchQuality("python", "tensorflow deep learning"), "未内嵌的泛化词不应产生匹配")

	// 泛化词"engineering"整词内嵌于"mechanical engineering" → 0.4
	assert.Equal(t, 0.4, MatchQuality("mechanical engineering", "engineering"), "整词内嵌应返回0.4")
	// 可交换性
	assert.Equal(t, 0.4, MatchQuality("engineering", "mechanical engineering"), "交换参数结果应一致")

	// "python"作为整词出现在具体短语中
	assert.Equal(t, 0.4, MatchQuality("python", "python backend services"))
}

// TestMatchQualityGenericPair 验证两个不同泛化词之间没有信号
func TestMatchQualityGenericPair(t *testing.T) {
	assert.Equal(t, 0.0, MatchQuality("python", "java"))
	assert.Equal(t, 0.0, MatchQuality("engineering", "marketing"))
}

// TestMatchQualitySpecificOverlap 验证具体短语词集交叠的分档
func TestMatchQualitySpecificOverlap(t *testing.T) {
	// 交叠 {trading}，较短词集大小2 → 比例0.5 < 0.6 → 0
	assert.Equal(t, 0.0, MatchQuality("quantitative trading strategies", "algorithmic trading"),
		"交叠比例低于0.6的具体短语对必须返回0")

	// 完全没有公共词 → 0
	assert.Equal(t, 0.0, MatchQuality("protein folding simulation", "urban transit planning"))

	// 词集完全重合但字符串不等（词序不同）→ 比例1.0 → 封顶1.0
	assert.InDelta(t, 1.0, MatchQuality("learning machine", "machine learning"), 1e-9)

	// 3词短语与包含其全部词的4词短语：较短词集3，交叠3 → 比例1.0
	assert.InDelta(t, 1.0, MatchQuality("machine learning protein folding", "protein folding machine learning research"), 1e-9)
}

// TestMatchQualityCommutative 验证对任意输入可交换
func TestMatchQualityCommutative(t *testing.T) {
	pairs := [][2]string{
		{"python", "tensorflow deep learning"},
		{"machine learning for protein folding", "protein folding"},
		{"quantitative trading strategies", "algorithmic trading"},
		{"engineering", "mechanical engineering"},
		{"", "anything"},
		{"data", "data"},
	}
	for _, p := range pairs {
		assert.Equal(t, MatchQuality(p[0], p[1]), MatchQuality(p[1], p[0]),
			"MatchQuality(%q,%q)应与参数顺序无关", p[0], p[1])
	}
}

// TestMatchQualityRange 验证返回值始终落在 [0,1]
func TestMatchQualityRange(t *testing.T) {
	samples := []string{"", "ai", "python", "machine learning", "deep learning for medical imaging", "a b c d e f"}
	for _, a := range samples {
		for _, b := range samples {
			q := MatchQuality(a, b)
			assert.GreaterOrEqual(t, q, 0.0)
			assert.LessOrEqual(t, q, 1.0)
		}
	}
}

// TestMatchQualitySelfIdentity 验证任意非空主题与自身比较为满分
func TestMatchQualitySelfIdentity(t *testing.T) {
	for _, s := range []string{"ai", "python", "machine learning for protein folding", "健康管理"} {
		assert.Equal(t, 1.0, MatchQuality(s, s), "主题与自身比较必须返回1.0: %q", s)
	}
}
