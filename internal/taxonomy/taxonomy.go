package taxonomy

import (
	"sort"
	"strings"
)

// Topic 固定主题分类法中的一个规范主题。
// 分类法在进程生命周期内不可变，所有上游提取出的原始主题短语
// 最终都会被归一到这里的某个成员，或者保持未映射状态。
type Topic string

const (
	TopicArtificialIntelligence Topic = "Artificial Intelligence"
	TopicMachineLearning        Topic = "Machine Learning"
	TopicDataScience            Topic = "Data Science"
	TopicSoftwareEngineering    Topic = "Software Engineering"
	TopicWebDevelopment         Topic = "Web Development"
	TopicMobileDevelopment      Topic = "Mobile Development"
	TopicCybersecurity          Topic = "Cybersecurity"
	TopicRobotics               Topic = "Robotics"
	TopicHealthcare             Topic = "Healthcare"
	TopicBiomedicalResearch     Topic = "Biomedical Research"
	TopicMechanicalEngineering  Topic = "Mechanical Engineering"
	TopicElectricalEngineering  Topic = "Electrical Engineering"
	TopicFinance                Topic = "Finance"
	TopicEntrepreneurship       Topic = "Entrepreneurship"
	TopicSustainability         Topic = "Sustainability"
	TopicEducation              Topic = "Education"
	TopicDesign                 Topic = "Design"
	TopicAcademicResearch       Topic = "Academic Research"
)

// AllTopics 返回分类法的全部成员，顺序固定。
func AllTopics() []Topic {
	return []Topic{
		TopicArtificialIntelligence,
		TopicMachineLearning,
		TopicDataScience,
		TopicSoftwareEngineering,
		TopicWebDevelopment,
		TopicMobileDevelopment,
		TopicCybersecurity,
		TopicRobotics,
		TopicHealthcare,
		TopicBiomedicalResearch,
		TopicMechanicalEngineering,
		TopicElectricalEngineering,
		TopicFinance,
		TopicEntrepreneurship,
		TopicSustainability,
		TopicEducation,
		TopicDesign,
		TopicAcademicResearch,
	}
}

// keywordBucket 关键词兜底规则。
// 当同义词表无法命中时，按固定优先级检查短语是否包含任一关键词。
type keywordBucket struct {
	keywords []string
	topic    Topic
}

// Table 规范化所需的静态映射表。
// 构造一次后只读，可以被任意多个goroutine并发使用。
type Table struct {
	canonical map[string]Topic // 小写规范主题名 -> 主题
	synonyms  map[string]Topic // 小写同义短语 -> 主题
	ordered   []string         // 同义词键的确定性遍历顺序（长键优先）
	buckets   []keywordBucket  // 按优先级排列的关键词兜底规则
}

// NewTable 基于给定的同义词映射和兜底规则构造映射表。
// 规范主题自身的小写形式会自动加入精确匹配集合。
func NewTable(synonyms map[string]Topic, buckets []keywordBucket) *Table {
	t := &Table{
		canonical: make(map[string]Topic, len(AllTopics())),
		synonyms:  make(map[string]Topic, len(synonyms)),
		buckets:   buckets,
	}
	for _, topic := range AllTopics() {
		t.canonical[strings.ToLower(string(topic))] = topic
	}
	for phrase, topic := range synonyms {
		t.synonyms[strings.ToLower(phrase)] = topic
	}
	// 子串匹配的遍历顺序必须确定：长键优先，同长度按字典序。
	// 避免map遍历的随机性导致同一短语在不同进程里归到不同主题。
	t.ordered = make([]string, 0, len(t.synonyms))
	for key := range t.synonyms {
		t.ordered = append(t.ordered, key)
	}
	sort.Slice(t.ordered, func(i, j int) bool {
		if len(t.ordered[i]) != len(t.ordered[j]) {
			return len(t.ordered[i]) > len(t.ordered[j])
		}
		return t.ordered[i] < t.ordered[j]
	})
	return t
}

// DefaultTable 返回内置的同义词表和关键词兜底规则。
// 表内容是手工整理的，覆盖上游模型产出中最常见的变体写法。
func DefaultTable() *Table {
	synonyms := map[string]Topic{
		"ai":                      TopicArtificialIntelligence,
		"artificial intelligence": TopicArtificialIntelligence,
		"genai":                   TopicArtificialIntelligence,
		"generative ai":           TopicArtificialIntelligence,
		"llm":                     TopicArtificialIntelligence,
		"large language models":   TopicArtificialIntelligence,
		"nlp":                     TopicArtificialIntelligence,
		"natural language processing": TopicArtificialIntelligence,
		"computer vision":             TopicArtificialIntelligence,

		"ml":               TopicMachineLearning,
		"machine learning": TopicMachineLearning,
		"deep learning":    TopicMachineLearning,
		"neural networks":  TopicMachineLearning,
		"reinforcement learning": TopicMachineLearning,

		"data science":      TopicDataScience,
		"data analytics":    TopicDataScience,
		"data analysis":     TopicDataScience,
		"big data":          TopicDataScience,
		"data engineering":  TopicDataScience,
		"data visualization": TopicDataScience,
		"statistics":        TopicDataScience,

		"software engineering": TopicSoftwareEngineering,
		"software development": TopicSoftwareEngineering,
		"computer science":     TopicSoftwareEngineering,
		"programming":          TopicSoftwareEngineering,
		"backend development":  TopicSoftwareEngineering,
		"distributed systems":  TopicSoftwareEngineering,
		"cloud computing":      TopicSoftwareEngineering,
		"devops":               TopicSoftwareEngineering,

		"web development":    TopicWebDevelopment,
		"frontend":           TopicWebDevelopment,
		"frontend development": TopicWebDevelopment,
		"full stack":         TopicWebDevelopment,
		"full stack development": TopicWebDevelopment,

		"mobile development": TopicMobileDevelopment,
		"ios development":    TopicMobileDevelopment,
		"android development": TopicMobileDevelopment,
		"app development":    TopicMobileDevelopment,

		"cybersecurity":        TopicCybersecurity,
		"cyber security":       TopicCybersecurity,
		"information security": TopicCybersecurity,
		"network security":     TopicCybersecurity,

		"robotics":           TopicRobotics,
		"autonomous systems": TopicRobotics,
		"mechatronics":       TopicRobotics,
		"embedded systems":   TopicRobotics,

		"healthcare":      TopicHealthcare,
		"health care":     TopicHealthcare,
		"public health":   TopicHealthcare,
		"medicine":        TopicHealthcare,
		"digital health":  TopicHealthcare,
		"health tech":     TopicHealthcare,

		"biomedical research":    TopicBiomedicalResearch,
		"biomedical engineering": TopicBiomedicalResearch,
		"biotech":                TopicBiomedicalResearch,
		"biotechnology":          TopicBiomedicalResearch,
		"bioinformatics":         TopicBiomedicalResearch,
		"genomics":               TopicBiomedicalResearch,

		"mechanical engineering": TopicMechanicalEngineering,
		"aerospace engineering":  TopicMechanicalEngineering,
		"cad":                    TopicMechanicalEngineering,

		"electrical engineering": TopicElectricalEngineering,
		"circuit design":         TopicElectricalEngineering,
		"signal processing":      TopicElectricalEngineering,

		"finance":                TopicFinance,
		"fintech":                TopicFinance,
		"quantitative finance":   TopicFinance,
		"investment banking":     TopicFinance,
		"quantitative trading":   TopicFinance,
		"economics":              TopicFinance,

		"entrepreneurship": TopicEntrepreneurship,
		"startups":         TopicEntrepreneurship,
		"startup":          TopicEntrepreneurship,
		"venture capital":  TopicEntrepreneurship,
		"product management": TopicEntrepreneurship,

		"sustainability":     TopicSustainability,
		"climate change":     TopicSustainability,
		"renewable energy":   TopicSustainability,
		"clean energy":       TopicSustainability,
		"environmental science": TopicSustainability,

		"education":  TopicEducation,
		"edtech":     TopicEducation,
		"teaching":   TopicEducation,
		"tutoring":   TopicEducation,

		"design":            TopicDesign,
		"ux design":         TopicDesign,
		"ui design":         TopicDesign,
		"graphic design":    TopicDesign,
		"product design":    TopicDesign,
		"human computer interaction": TopicDesign,

		"research":          TopicAcademicResearch,
		"academic research": TopicAcademicResearch,
		"research assistant": TopicAcademicResearch,
		"lab research":      TopicAcademicResearch,
	}

	// 兜底规则按固定优先级排列：越靠前越先检查。
	// 医疗类词汇优先于AI类，避免"clinical machine learning"被错误归入AI。
	buckets := []keywordBucket{
		{keywords: []string{"health", "clinic", "hospital", "disease", "treatment", "patient", "medical"}, topic: TopicHealthcare},
		{keywords: []string{"bio", "gene", "protein", "molecular"}, topic: TopicBiomedicalResearch},
		{keywords: []string{"artificial intelligence", "machine learning", "neural", "llm", "deep learning"}, topic: TopicArtificialIntelligence},
		{keywords: []string{"data", "analytics", "statistic"}, topic: TopicDataScience},
		{keywords: []string{"security", "crypto", "privacy"}, topic: TopicCybersecurity},
		{keywords: []string{"robot", "drone", "autonomous"}, topic: TopicRobotics},
		{keywords: []string{"software", "coding", "developer", "computer"}, topic: TopicSoftwareEngineering},
		{keywords: []string{"mechanical", "aerospace", "manufactur"}, topic: TopicMechanicalEngineering},
		{keywords: []string{"electrical", "electronics", "circuit"}, topic: TopicElectricalEngineering},
		{keywords: []string{"finance", "financial", "trading", "invest", "banking"}, topic: TopicFinance},
		{keywords: []string{"startup", "founder", "venture", "business"}, topic: TopicEntrepreneurship},
		{keywords: []string{"climate", "energy", "environment", "sustainab"}, topic: TopicSustainability},
		{keywords: []string{"teach", "education", "mentor", "tutor"}, topic: TopicEducation},
		{keywords: []string{"design", "ux", "ui"}, topic: TopicDesign},
		{keywords: []string{"research", "thesis", "publication"}, topic: TopicAcademicResearch},
		{keywords: []string{"engineering"}, topic: TopicSoftwareEngineering},
	}

	return NewTable(synonyms, buckets)
}
