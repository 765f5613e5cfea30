package matcher

import "strings"

// 主题间匹配质量的档位常量。
// 两个泛化词的命中(0.3)和泛化词内嵌于具体短语(0.4)使用不同的惩罚值，
// 这是有意保留的调参结果，不做统一。
const (
	qualityExact             = 1.0
	qualityGenericPair       = 0.3
	qualityGenericInSpecific = 0.4
	specificOverlapFloor     = 0.6  // 具体短语词集交叠的最低比例
	specificQualityBase      = 0.7  // 达到下限时的起始质量
	specificQualityScale     = 0.75 // 超出下限部分的线性放大系数
)

// genericTerms 泛化词集合：单个宽泛的技术/过程名词和裸编程语言名。
// 这些词单独出现时信息量太低，不足以支撑一次高置信匹配。
var genericTerms = map[string]bool{
	"engineering": true, "technology": true, "software": true, "programming": true,
	"development": true, "research": true, "science": true, "analysis": true,
	"analytics": true, "data": true, "design": true, "management": true,
	"marketing": true, "business": true, "consulting": true, "innovation": true,
	"leadership": true, "communication": true, "writing": true, "teaching": true,
	"python": true, "java": true, "javascript": true, "typescript": true,
	"golang": true, "go": true, "rust": true, "ruby": true, "swift": true,
	"kotlin": true, "sql": true, "matlab": true, "excel": true,
	"c": true, "c++": true, "c#": true, "r": true, "html": true, "css": true,
}

// MatchQuality 计算两个主题字符串的相似质量，取值 [0,1]。
// 该函数对参数可交换：MatchQuality(a,b) == MatchQuality(b,a)。
//
// 分档逻辑：
//   - 归一化后完全相等 → 1.0
//   - 双方都是泛化词 → 相同为0.3，否则0
//   - 一方泛化一方具体 → 泛化词以整词形式出现在具体短语中为0.4，否则0；
//     裸"python"不会仅凭字母重合去匹配一条高度具体的描述
//   - 双方都具体 → 词集交叠比例达到0.6起按线性档 [0.7,1.0] 计分，否则0
func MatchQuality(a, b string) float64 {
	left := strings.ToLower(strings.TrimSpace(a))
	right := strings.ToLower(strings.TrimSpace(b))
	if left == "" || right == "" {
		return 0
	}
	if left == right {
		return qualityExact
	}

	leftGeneric := isGenericTerm(left)
	rightGeneric := isGenericTerm(right)

	switch {
	case leftGeneric && rightGeneric:
		// 两个不同的泛化词之间没有可用信号
		if left == right {
			return qualityGenericPair
		}
		return 0
	case leftGeneric != rightGeneric:
		generic, specific := left, right
		if rightGeneric {
			generic, specific = right, left
		}
		if containsAllWords(specific, generic) {
			return qualityGenericInSpecific
		}
		return 0
	default:
		return specificOverlapQuality(left, right)
	}
}

// isGenericTerm 单个词且落在泛化词集合内。
func isGenericTerm(phrase string) bool {
	words := strings.Fields(phrase)
	return len(words) == 1 && genericTerms[words[0]]
}

// containsAllWords 判断phrase的词集是否以整词形式包含query的全部词。
func containsAllWords(phrase, query string) bool {
	words := wordSet(phrase)
	for _, qw := range strings.Fields(query) {
		if !words[qw] {
			return false
		}
	}
	return true
}

// specificOverlapQuality 具体短语对具体短语：
// 以较短词集为基数计算交叠比例，达到下限后线性映射到 [0.7,1.0]。
func specificOverlapQuality(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	shorter, longer := setA, setB
	if len(setB) < len(setA) {
		shorter, longer = setB, setA
	}
	if len(shorter) == 0 {
		return 0
	}

	matched := 0
	for word := range shorter {
		if longer[word] {
			matched++
		}
	}
	if matched == 0 {
		return 0
	}

	overlap := float64(matched) / float64(len(shorter))
	if overlap < specificOverlapFloor {
		return 0
	}
	q := specificQualityBase + (overlap-specificOverlapFloor)*specificQualityScale
	if q > 1 {
		q = 1
	}
	return q
}

func wordSet(phrase string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(phrase) {
		set[w] = true
	}
	return set
}
