package handler

import (
	"context"
	"strings"

	"campus-match-go/internal/taxonomy"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// TopicHandler 负责主题归一化的查询接口。
type TopicHandler struct {
	taxonomy *taxonomy.Table
}

// NewTopicHandler 创建一个新的 TopicHandler 实例。
func NewTopicHandler(table *taxonomy.Table) *TopicHandler {
	if table == nil {
		table = taxonomy.DefaultTable()
	}
	return &TopicHandler{taxonomy: table}
}

// canonicalizedTopic 单个主题的归一化结果
type canonicalizedTopic struct {
	Raw       string `json:"raw"`
	Canonical string `json:"canonical"`
	Mapped    bool   `json:"mapped"` // false表示保留了原始字面量
}

// HandleCanonicalize 把一个或多个自由文本主题解析为规范主题。
// GET /api/v1/topics/canonicalize?topics=ml,deep+learning
func (h *TopicHandler) HandleCanonicalize(ctx context.Context, c *app.RequestContext) {
	topicsParam := c.Query("topics")
	if topicsParam == "" {
		topicsParam = c.Query("topic")
	}
	if topicsParam == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "topics 参数不能为空"})
		return
	}

	raws := strings.Split(topicsParam, ",")
	results := make([]canonicalizedTopic, 0, len(raws))
	for _, raw := range raws {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		canonical, mapped := h.taxonomy.Canonicalize(raw)
		item := canonicalizedTopic{Raw: raw, Mapped: mapped}
		if mapped {
			item.Canonical = string(canonical)
		} else {
			// 未命中任何规范主题时保留原始字面量参与匹配
			item.Canonical = raw
		}
		results = append(results, item)
	}

	c.JSON(consts.StatusOK, map[string]interface{}{
		"data":  results,
		"count": len(results),
	})
}

// HandleListTopics 返回全部规范主题。
// GET /api/v1/topics
func (h *TopicHandler) HandleListTopics(ctx context.Context, c *app.RequestContext) {
	topics := taxonomy.AllTopics()
	names := make([]string, len(topics))
	for i, topic := range topics {
		names[i] = string(topic)
	}
	c.JSON(consts.StatusOK, map[string]interface{}{
		"data":  names,
		"count": len(names),
	})
}
