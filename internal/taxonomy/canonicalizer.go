package taxonomy

import "strings"

// Canonicalize 将一个任意的原始主题短语归一到规范主题。
// 解析顺序（命中即返回）：
//  1. 与分类法本身的大小写不敏感精确匹配
//  2. 与同义词表的大小写不敏感精确匹配
//  3. 与同义词表键的双向子串包含
//  4. 按优先级检查关键词兜底规则
//
// 以上全部未命中时返回 ok=false，调用方应把原始短语当作字面主题继续使用。
// 该函数必须纯且总是返回：输入来自模型产出或模式抽取，可能是任意噪声文本。
func (t *Table) Canonicalize(raw string) (Topic, bool) {
	phrase := strings.ToLower(strings.TrimSpace(raw))
	if phrase == "" {
		return "", false
	}

	// 1. 分类法自身精确匹配
	if topic, ok := t.canonical[phrase]; ok {
		return topic, true
	}

	// 2. 同义词表精确匹配
	if topic, ok := t.synonyms[phrase]; ok {
		return topic, true
	}

	// 3. 双向子串包含：输入包含某个同义词键，或某个键包含输入
	for _, key := range t.ordered {
		if strings.Contains(phrase, key) || strings.Contains(key, phrase) {
			return t.synonyms[key], true
		}
	}

	// 4. 关键词兜底规则，按固定优先级
	for _, bucket := range t.buckets {
		for _, kw := range bucket.keywords {
			if strings.Contains(phrase, kw) {
				return bucket.topic, true
			}
		}
	}

	return "", false
}

// CanonicalizeAll 批量归一一组原始短语。
// 无法归一的短语按字面值保留，保证重叠打分时相同短语仍可精确匹配。
func (t *Table) CanonicalizeAll(raws []string) []string {
	out := make([]string, 0, len(raws))
	for _, raw := range raws {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		if topic, ok := t.Canonicalize(trimmed); ok {
			out = append(out, string(topic))
		} else {
			out = append(out, trimmed)
		}
	}
	return out
}
