package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAdjustVectorDeltas 验证三类交互信号的调整量
func TestAdjustVectorDeltas(t *testing.T) {
	current := []TopicWeight{{Topic: "AI", Weight: 0.5}}

	adjusted := AdjustVector(current, []string{"AI"}, InteractionStrongPositive)
	require.Len(t, adjusted, 1)
	assert.InDelta(t, 0.7, adjusted[0].Weight, 1e-9, "strong_positive应增加0.20")

	adjusted = AdjustVector(current, []string{"AI"}, InteractionPositive)
	assert.InDelta(t, 0.6, adjusted[0].Weight, 1e-9, "positive应增加0.10")

	adjusted = AdjustVector(current, []string{"AI"}, InteractionNegative)
	assert.InDelta(t, 0.35, adjusted[0].Weight, 1e-9, "negative应减少0.15")
}

// TestAdjustVectorSeedsNewTopics 验证新主题以种子权重0.30入场后再叠加
func TestAdjustVectorSeedsNewTopics(t *testing.T) {
	adjusted := AdjustVector(nil, []string{"Robotics"}, InteractionPositive)
	require.Len(t, adjusted, 1)
	assert.Equal(t, "Robotics", adjusted[0].Topic)
	assert.InDelta(t, 0.4, adjusted[0].Weight, 1e-9, "种子0.30 + 0.10")

	adjusted = AdjustVector(nil, []string{"Robotics"}, InteractionNegative)
	require.Len(t, adjusted, 1)
	assert.InDelta(t, 0.15, adjusted[0].Weight, 1e-9, "种子0.30 - 0.15")
}

// TestAdjustVectorClampAndDrop 验证权重收敛到 [0,1] 且归零主题被剔除
func TestAdjustVectorClampAndDrop(t *testing.T) {
	// 反复负反馈不能把权重压到0以下，压到0后主题被剔除
	vec := []TopicWeight{{Topic: "Finance", Weight: 0.2}}
	vec = AdjustVector(vec, []string{"Finance"}, InteractionNegative)
	require.Len(t, vec, 1)
	assert.InDelta(t, 0.05, vec[0].Weight, 1e-9)
	vec = AdjustVector(vec, []string{"Finance"}, InteractionNegative)
	assert.Empty(t, vec, "权重被压到0后主题应被剔除")

	vec = []TopicWeight{{Topic: "Finance", Weight: 0.1}}
	vec = AdjustVector(vec, []string{"Finance"}, InteractionNegative)
	assert.Empty(t, vec, "权重≤0的主题必须从向量中消失")

	// 反复强正反馈不能把权重推过1
	vec = []TopicWeight{{Topic: "AI", Weight: 0.95}}
	for i := 0; i < 5; i++ {
		vec = AdjustVector(vec, []string{"AI"}, InteractionStrongPositive)
	}
	require.Len(t, vec, 1)
	assert.Equal(t, 1.0, vec[0].Weight, "权重封顶1.0")
}

// TestAdjustVectorSortsDescending 验证结果按权重降序
func TestAdjustVectorSortsDescending(t *testing.T) {
	current := []TopicWeight{
		{Topic: "AI", Weight: 0.4},
		{Topic: "Healthcare", Weight: 0.9},
		{Topic: "Finance", Weight: 0.6},
	}
	adjusted := AdjustVector(current, []string{"AI"}, InteractionStrongPositive)
	require.Len(t, adjusted, 3)
	for i := 1; i < len(adjusted); i++ {
		assert.GreaterOrEqual(t, adjusted[i-1].Weight, adjusted[i].Weight, "结果必须按权重降序")
	}
}

// TestAdjustVectorPure 验证输入向量不被修改
func TestAdjustVectorPure(t *testing.T) {
	current := []TopicWeight{{Topic: "AI", Weight: 0.5}}
	_ = AdjustVector(current, []string{"AI", "Robotics"}, InteractionStrongPositive)
	assert.Equal(t, 0.5, current[0].Weight, "AdjustVector是纯变换，不得修改输入")
	assert.Len(t, current, 1)
}

// TestParseInteractionKind 验证交互类别解析
func TestParseInteractionKind(t *testing.T) {
	for _, valid := range []string{"strong_positive", "positive", "negative"} {
		kind, err := ParseInteractionKind(valid)
		require.NoError(t, err)
		assert.Equal(t, InteractionKind(valid), kind)
	}
	_, err := ParseInteractionKind("meh")
	assert.Error(t, err)
}
