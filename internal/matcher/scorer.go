package matcher

import (
	"fmt"
	"math"
)

// 两种打分策略各自的默认下限与组合权重。
const (
	DefaultEmbeddingMinScore = 0.35
	DefaultOverlapMinScore   = 0.25
	DefaultQualityWeight     = 0.6
	DefaultCoverageWeight    = 0.4
)

// Config 打分引擎的阈值与权重配置。
// 构造一次后只读，打分路径上没有共享可变状态，可并发调用。
type Config struct {
	EmbeddingMinScore float64 `yaml:"embedding_min_score"` // embedding策略的最低保留分
	OverlapMinScore   float64 `yaml:"overlap_min_score"`   // 主题重叠策略的最低保留分
	QualityWeight     float64 `yaml:"quality_weight"`      // 平均质量在组合分中的权重
	CoverageWeight    float64 `yaml:"coverage_weight"`     // 覆盖率在组合分中的权重
	StrictEligibility bool    `yaml:"strict_eligibility"`  // 资格过滤严格模式（缺失属性视为不合格）
}

// DefaultConfig 返回与线上行为一致的默认配置。
func DefaultConfig() *Config {
	return &Config{
		EmbeddingMinScore: DefaultEmbeddingMinScore,
		OverlapMinScore:   DefaultOverlapMinScore,
		QualityWeight:     DefaultQualityWeight,
		CoverageWeight:    DefaultCoverageWeight,
	}
}

// CosineSimilarity 计算两个定长向量的余弦相似度，取值 [-1,1]。
// 维度不一致属于程序性错误，必须显式失败而不是静默降级。
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("embedding维度不一致: %d != %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("embedding不能为空")
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// NormalizeCosine 把余弦相似度从 [-1,1] 映射到 [0,1]。
func NormalizeCosine(cos float64) float64 {
	return (cos + 1) / 2
}

// pairScore 单个匹配对的打分结果。
type pairScore struct {
	score         float64
	matchedTopics []string
	keep          bool // 是否越过所用策略的最低保留分
}

// scorePair 对一个 (来源, 目标) 对打分。
// 双方都带embedding时优先走embedding策略，否则回退主题重叠策略；
// 两侧都既无主题又无embedding时返回keep=false，按约定不算错误。
func (c *Config) scorePair(source, target *ProfileVector) (pairScore, error) {
	if source.HasEmbedding() && target.HasEmbedding() {
		cos, err := CosineSimilarity(source.Embedding, target.Embedding)
		if err != nil {
			return pairScore{}, err
		}
		score := NormalizeCosine(cos)
		return pairScore{
			score: score,
			keep:  score >= c.EmbeddingMinScore,
		}, nil
	}

	if !source.HasTopics() || !target.HasTopics() {
		return pairScore{}, nil
	}

	score, matched := c.topicOverlapScore(source, target)
	return pairScore{
		score:         score,
		matchedTopics: matched,
		keep:          score >= c.OverlapMinScore,
	}, nil
}

// topicOverlapScore 主题重叠策略。
// 以目标侧（帖子侧）的每个主题为基准，在来源侧找单个最优匹配；
// 组合分 = min(1, 平均质量×QualityWeight + 覆盖率×CoverageWeight)，
// 覆盖率按目标侧主题总数计算。返回值二是来源侧贡献了匹配的主题原文。
func (c *Config) topicOverlapScore(source, target *ProfileVector) (float64, []string) {
	fromTopics := target.TopicStrings()
	toTopics := source.TopicStrings()

	matchedCount := 0
	totalQuality := 0.0
	contributed := make(map[string]bool)
	var matchedSourceTopics []string

	for _, from := range fromTopics {
		best := 0.0
		bestPartner := ""
		for _, to := range toTopics {
			if q := MatchQuality(from, to); q > best {
				best = q
				bestPartner = to
			}
		}
		if best > 0 {
			matchedCount++
			totalQuality += best
			if !contributed[bestPartner] {
				contributed[bestPartner] = true
				matchedSourceTopics = append(matchedSourceTopics, bestPartner)
			}
		}
	}

	if matchedCount == 0 {
		return 0, nil
	}

	avgQuality := totalQuality / float64(matchedCount)
	coverage := float64(matchedCount) / float64(len(fromTopics))
	score := avgQuality*c.QualityWeight + coverage*c.CoverageWeight
	if score > 1 {
		score = 1
	}
	return score, matchedSourceTopics
}
