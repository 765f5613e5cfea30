package handler

import (
	"context"
	"log"
	"os"
	"time"

	"campus-match-go/internal/config"
	"campus-match-go/internal/events"
	"campus-match-go/internal/matcher"
	"campus-match-go/internal/storage"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/gofrs/uuid/v5"
)

// FeedbackHandler 负责接收显式提交的交互反馈。
type FeedbackHandler struct {
	cfg     *config.Config
	storage *storage.Storage
	service *events.FeedbackService
	logger  *log.Logger
}

// NewFeedbackHandler 创建一个新的 FeedbackHandler 实例。
func NewFeedbackHandler(cfg *config.Config, storage *storage.Storage, service *events.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{
		cfg:     cfg,
		storage: storage,
		service: service,
		logger:  log.New(os.Stdout, "[FeedbackHandler] ", log.LstdFlags|log.Lshortfile),
	}
}

// feedbackRequest 反馈请求体
type feedbackRequest struct {
	EventID   string `json:"event_id"` // 可选，为空时服务端生成
	ProfileID string `json:"profile_id"`
	PostingID string `json:"posting_id"`
	Kind      string `json:"kind"` // strong_positive / positive / negative
	Source    string `json:"source"`
}

// HandleSubmitFeedback 接收一条交互反馈。
// 配置了消息队列时异步投递，否则同步应用。
// POST /api/v1/feedback
func (h *FeedbackHandler) HandleSubmitFeedback(ctx context.Context, c *app.RequestContext) {
	var req feedbackRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "请求体解析失败"})
		return
	}
	if req.ProfileID == "" || req.PostingID == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "profile_id 和 posting_id 不能为空"})
		return
	}
	if _, err := matcher.ParseInteractionKind(req.Kind); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "kind 必须是 strong_positive / positive / negative 之一"})
		return
	}

	eventID := req.EventID
	if eventID == "" {
		newUUID, err := uuid.NewV7()
		if err != nil {
			h.logger.Printf("生成事件UUID失败: %v", err)
			c.JSON(consts.StatusInternalServerError, map[string]string{"error": "生成事件ID失败"})
			return
		}
		eventID = newUUID.String()
	}

	message := storage.InteractionEventMessage{
		EventID:    eventID,
		ProfileID:  req.ProfileID,
		PostingID:  req.PostingID,
		Kind:       req.Kind,
		OccurredAt: time.Now().Unix(),
		Source:     req.Source,
	}

	// 优先走消息队列，让消费者统一处理；未配置MQ时降级为同步应用
	if h.storage.RabbitMQ != nil && h.cfg.RabbitMQ.InteractionEventsExchange != "" {
		err := h.storage.RabbitMQ.PublishJSON(ctx,
			h.cfg.RabbitMQ.InteractionEventsExchange,
			h.cfg.RabbitMQ.InteractionRoutingKey,
			message, true)
		if err != nil {
			h.logger.Printf("投递交互事件失败 for EventID %s: %v", eventID, err)
			c.JSON(consts.StatusInternalServerError, map[string]string{"error": "投递反馈事件失败"})
			return
		}
		c.JSON(consts.StatusAccepted, map[string]interface{}{
			"message":  "反馈已接收",
			"event_id": eventID,
			"status":   "queued",
		})
		return
	}

	if err := h.service.Apply(ctx, message); err != nil {
		h.logger.Printf("应用交互事件失败 for EventID %s: %v", eventID, err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "应用反馈失败"})
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{
		"message":  "反馈已应用",
		"event_id": eventID,
		"status":   "applied",
	})
}
