package matcher

import "sort"

// TopicWeight 主题及其权重，权重在归一化后落在 [0,1]。
type TopicWeight struct {
	Topic  string  `json:"topic"`
	Weight float64 `json:"weight"`
}

// NewTopicWeight 构造一个主题权重项。
// 上游产出的越界权重按约定收敛到 [0,1]，而不是拒绝。
func NewTopicWeight(topic string, weight float64) TopicWeight {
	return TopicWeight{Topic: topic, Weight: clampWeight(weight)}
}

// NormalizeTopicWeights 归一化主题权重向量：
// 越界权重收敛到 [0,1]，权重为0的项从向量中剔除，空主题名丢弃。
// 返回新切片，不修改输入。
func NormalizeTopicWeights(topics []TopicWeight) []TopicWeight {
	out := make([]TopicWeight, 0, len(topics))
	for _, tw := range topics {
		if tw.Topic == "" {
			continue
		}
		w := clampWeight(tw.Weight)
		if w <= 0 {
			continue
		}
		out = append(out, TopicWeight{Topic: tw.Topic, Weight: w})
	}
	return out
}

func clampWeight(w float64) float64 {
	if w < 0 {
		return 0
	}
	if w > 1 {
		return 1
	}
	return w
}

// Metadata 参与资格过滤的结构化属性。
// Major/Year 描述候选人自身；RequiredMajors/RequiredYears 是目标侧声明的
// 硬性要求（逗号分隔列表），两组字段分别挂在匹配对的不同侧。
type Metadata struct {
	Major          string `json:"major,omitempty"`
	Year           string `json:"year,omitempty"`
	RequiredMajors string `json:"required_majors,omitempty"`
	RequiredYears  string `json:"required_years,omitempty"`
}

// ProfileVector 参与匹配的一方（学生画像或机会帖子）的向量表示。
// 由外部协作方在创建/上传时构造一次，对本核心只读；
// 唯一的改写入口是反馈调整器，它返回新的主题权重向量由外部存储落库。
type ProfileVector struct {
	OwnerID   string        `json:"owner_id"`
	Topics    []TopicWeight `json:"topics"`
	Embedding []float64     `json:"embedding,omitempty"` // 上游embedding服务产出，定长且对本核心不透明
	Metadata  Metadata      `json:"metadata"`
}

// NewProfileVector 构造向量并应用权重归一化约定。
func NewProfileVector(ownerID string, topics []TopicWeight, embedding []float64, meta Metadata) *ProfileVector {
	return &ProfileVector{
		OwnerID:   ownerID,
		Topics:    NormalizeTopicWeights(topics),
		Embedding: embedding,
		Metadata:  meta,
	}
}

// HasEmbedding 双方都满足该条件时走embedding策略。
func (v *ProfileVector) HasEmbedding() bool {
	return v != nil && len(v.Embedding) > 0
}

// HasTopics 主题列表非空才参与重叠打分。
func (v *ProfileVector) HasTopics() bool {
	return v != nil && len(v.Topics) > 0
}

// Scorable 既没有主题又没有embedding的实体产出空结果，不算错误。
func (v *ProfileVector) Scorable() bool {
	return v.HasEmbedding() || v.HasTopics()
}

// TopicStrings 返回主题字符串列表，顺序与向量一致。
func (v *ProfileVector) TopicStrings() []string {
	out := make([]string, len(v.Topics))
	for i, tw := range v.Topics {
		out[i] = tw.Topic
	}
	return out
}

// MatchResult 一次匹配的产物，按需重算，本核心不负责持久化。
// MatchedTopics 记录来源侧实际贡献了匹配的主题原文（非规范形式）。
type MatchResult struct {
	SourceID      string   `json:"source_id"`
	TargetID      string   `json:"target_id"`
	Score         float64  `json:"score"`
	MatchedTopics []string `json:"matched_topics"`
}

// SortResultsDescending 按分数降序稳定排序。
// 分数相同的结果保持候选集原始顺序，不引入未定义的次级排序键。
func SortResultsDescending(results []MatchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
