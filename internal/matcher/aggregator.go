package matcher

// Engine 匹配聚合引擎：双向入口共用一套 过滤→打分→阈值→排序 流程。
// 两个方向曾经是两份近似复制的实现，阈值常量各自漂移，这里统一为
// 单个按(来源,候选集)参数化的引擎。Engine只读，可并发使用。
type Engine struct {
	cfg  *Config
	elig *EligibilityFilter
}

// NewEngine 构造匹配引擎。cfg为nil时使用默认配置。
func NewEngine(cfg *Config) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Engine{
		cfg:  cfg,
		elig: NewEligibilityFilter(cfg.StrictEligibility),
	}
}

// Config 返回引擎使用的配置（只读）。
func (e *Engine) Config() *Config { return e.cfg }

// ScoreTargetsForSource 为一个来源（学生画像）对一组目标候选（机会帖子）打分。
// threshold > 0 时在策略自身下限之上再收窄一次。
// 结果按分数降序，平分保持候选集原始顺序。
func (e *Engine) ScoreTargetsForSource(source *ProfileVector, candidates []*ProfileVector, threshold float64) ([]MatchResult, error) {
	if source == nil || !source.Scorable() {
		return nil, nil
	}

	results := make([]MatchResult, 0, len(candidates))
	for _, target := range candidates {
		if target == nil || !target.Scorable() {
			continue
		}
		// 资格过滤先于打分：目标声明要求，来源提供属性
		if !e.elig.Eligible(source, target) {
			continue
		}
		ps, err := e.cfg.scorePair(source, target)
		if err != nil {
			return nil, err
		}
		if !ps.keep || (threshold > 0 && ps.score < threshold) {
			continue
		}
		results = append(results, MatchResult{
			SourceID:      source.OwnerID,
			TargetID:      target.OwnerID,
			Score:         ps.score,
			MatchedTopics: ps.matchedTopics,
		})
	}

	SortResultsDescending(results)
	return results, nil
}

// ScoreSourcesForTarget 反方向入口：为一个目标（机会帖子）对一组来源候选
// （学生画像）打分。流程与正向完全一致，只是资格过滤与结果方向互换。
func (e *Engine) ScoreSourcesForTarget(target *ProfileVector, candidates []*ProfileVector, threshold float64) ([]MatchResult, error) {
	if target == nil || !target.Scorable() {
		return nil, nil
	}

	results := make([]MatchResult, 0, len(candidates))
	for _, source := range candidates {
		if source == nil || !source.Scorable() {
			continue
		}
		if !e.elig.Eligible(source, target) {
			continue
		}
		ps, err := e.cfg.scorePair(source, target)
		if err != nil {
			return nil, err
		}
		if !ps.keep || (threshold > 0 && ps.score < threshold) {
			continue
		}
		results = append(results, MatchResult{
			SourceID:      source.OwnerID,
			TargetID:      target.OwnerID,
			Score:         ps.score,
			MatchedTopics: ps.matchedTopics,
		})
	}

	SortResultsDescending(results)
	return results, nil
}
