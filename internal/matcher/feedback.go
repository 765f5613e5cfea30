package matcher

import (
	"fmt"
	"sort"
)

// InteractionKind 隐式交互信号的类别。
type InteractionKind string

const (
	// InteractionStrongPositive 强正反馈，例如报名/投递
	InteractionStrongPositive InteractionKind = "strong_positive"
	// InteractionPositive 一般正反馈，例如点击查看详情
	InteractionPositive InteractionKind = "positive"
	// InteractionNegative 负反馈，例如明确忽略
	InteractionNegative InteractionKind = "negative"
)

// 各交互类别对主题权重的调整量，以及新主题的种子权重。
const (
	deltaStrongPositive = 0.20
	deltaPositive       = 0.10
	deltaNegative       = -0.15
	seedWeight          = 0.30
)

// ParseInteractionKind 校验并解析交互类别字符串。
func ParseInteractionKind(s string) (InteractionKind, error) {
	switch InteractionKind(s) {
	case InteractionStrongPositive, InteractionPositive, InteractionNegative:
		return InteractionKind(s), nil
	default:
		return "", fmt.Errorf("未知的交互类别: %q", s)
	}
}

func (k InteractionKind) delta() float64 {
	switch k {
	case InteractionStrongPositive:
		return deltaStrongPositive
	case InteractionPositive:
		return deltaPositive
	case InteractionNegative:
		return deltaNegative
	default:
		return 0
	}
}

// AdjustVector 根据一次交互信号改写主题权重向量，返回新向量，不修改输入。
// 受影响主题已存在则叠加调整量，不存在则以种子权重0.30入场后再叠加；
// 结果收敛到 [0,1]，权重≤0的主题剔除，最终按权重降序排列。
// 纯变换：返回向量的持久化由调用方/外部存储负责。
func AdjustVector(current []TopicWeight, topics []string, kind InteractionKind) []TopicWeight {
	delta := kind.delta()

	adjusted := make([]TopicWeight, len(current))
	copy(adjusted, current)

	index := make(map[string]int, len(adjusted))
	for i, tw := range adjusted {
		index[tw.Topic] = i
	}

	for _, topic := range topics {
		if topic == "" {
			continue
		}
		if i, ok := index[topic]; ok {
			adjusted[i].Weight = clampWeight(adjusted[i].Weight + delta)
		} else {
			index[topic] = len(adjusted)
			adjusted = append(adjusted, TopicWeight{Topic: topic, Weight: clampWeight(seedWeight + delta)})
		}
	}

	// 剔除权重归零的主题
	kept := adjusted[:0]
	for _, tw := range adjusted {
		if tw.Weight > 0 {
			kept = append(kept, tw)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Weight > kept[j].Weight
	})
	return kept
}
