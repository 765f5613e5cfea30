package matcher

import "strings"

// EligibilityFilter 资格过滤器：在任何打分发生之前裁掉不满足
// 硬性结构化要求的匹配对，避免浪费计算。纯谓词，可并发调用。
type EligibilityFilter struct {
	// strict 为true时，目标声明了要求而来源缺失对应属性将被判不合格。
	// 默认false：缺失属性跳过该项检查（视为未知，而非不合格）。
	strict bool
}

// NewEligibilityFilter 构造资格过滤器。
func NewEligibilityFilter(strict bool) *EligibilityFilter {
	return &EligibilityFilter{strict: strict}
}

// Eligible 判断 (来源, 目标) 对是否允许进入打分。
// 目标侧通过 RequiredMajors/RequiredYears 声明要求，来源侧提供 Major/Year：
//   - 专业要求：来源专业与任一要求专业双向子串匹配即通过
//   - 年级要求：trim+小写后与任一要求年级精确相等才通过
func (f *EligibilityFilter) Eligible(source, target *ProfileVector) bool {
	if source == nil || target == nil {
		return false
	}
	if !f.majorEligible(source.Metadata.Major, target.Metadata.RequiredMajors) {
		return false
	}
	if !f.yearEligible(source.Metadata.Year, target.Metadata.RequiredYears) {
		return false
	}
	return true
}

func (f *EligibilityFilter) majorEligible(major, required string) bool {
	requiredList := splitCSV(required)
	if len(requiredList) == 0 {
		return true
	}
	major = strings.ToLower(strings.TrimSpace(major))
	if major == "" {
		return !f.strict
	}
	for _, req := range requiredList {
		if strings.Contains(major, req) || strings.Contains(req, major) {
			return true
		}
	}
	return false
}

func (f *EligibilityFilter) yearEligible(year, required string) bool {
	requiredList := splitCSV(required)
	if len(requiredList) == 0 {
		return true
	}
	year = strings.ToLower(strings.TrimSpace(year))
	if year == "" {
		return !f.strict
	}
	for _, req := range requiredList {
		if year == req {
			return true
		}
	}
	return false
}

// splitCSV 拆分逗号分隔的要求列表，各项trim+小写，空项丢弃。
func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
