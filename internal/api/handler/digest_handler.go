package handler

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"campus-match-go/internal/digest"
	"campus-match-go/internal/logger"
	"campus-match-go/internal/storage/models"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// DigestEntryStore 摘要条目的查询与投递回执
type DigestEntryStore interface {
	GetDigestEntries(ctx context.Context, profileID string, weekStart time.Time) ([]models.MatchDigestEntry, error)
	MarkDigestEntriesSent(ctx context.Context, profileID string, weekStart time.Time) error
}

// DigestHandler 负责周摘要的触发、查询与投递回执。
type DigestHandler struct {
	builder *digest.Builder
	entries DigestEntryStore
	logger  *log.Logger
}

// NewDigestHandler 创建一个新的 DigestHandler 实例。
func NewDigestHandler(builder *digest.Builder, entries DigestEntryStore) *DigestHandler {
	return &DigestHandler{
		builder: builder,
		entries: entries,
		logger:  log.New(os.Stdout, "[DigestHandler] ", log.LstdFlags|log.Lshortfile),
	}
}

// HandleRunDigest 手动触发一轮周摘要批处理。
// 批处理在后台执行，接口立即返回。
// POST /api/v1/digest/run
func (h *DigestHandler) HandleRunDigest(ctx context.Context, c *app.RequestContext) {
	go func() {
		// 独立于请求生命周期的后台任务
		runCtx := logger.WithContext(context.Background())
		count, err := h.builder.Run(runCtx)
		if err != nil {
			logger.Error().Err(err).Msg("手动触发的周摘要批处理失败")
			return
		}
		logger.Info().Int("entries", count).Msg("手动触发的周摘要批处理完成")
	}()

	c.JSON(consts.StatusAccepted, map[string]interface{}{
		"message": "周摘要批处理已触发",
		"status":  "running",
	})
}

// digestEntryItem 摘要条目的返回结构
type digestEntryItem struct {
	PostingID string    `json:"posting_id"`
	Title     string    `json:"title,omitempty"`
	Category  string    `json:"category,omitempty"`
	EventDate *string   `json:"event_date,omitempty"`
	Score     float64   `json:"score"`
	Sent      bool      `json:"sent"`
	WeekStart time.Time `json:"week_start"`
}

// weekStartFromQuery 解析week参数并归一到所在周的周一，缺省取当前周
func weekStartFromQuery(c *app.RequestContext) (time.Time, error) {
	weekParam := c.Query("week")
	if weekParam == "" {
		return digest.WeekStart(time.Now()), nil
	}
	parsed, err := time.ParseInLocation("2006-01-02", weekParam, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("week 参数格式应为 YYYY-MM-DD")
	}
	return digest.WeekStart(parsed), nil
}

// HandleGetProfileDigest 查询某个学生某一周的摘要。
// 不传week参数时取当前周。
// GET /api/v1/profiles/:profile_id/digest?week=2026-08-24
func (h *DigestHandler) HandleGetProfileDigest(ctx context.Context, c *app.RequestContext) {
	profileID := c.Param("profile_id")
	if profileID == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "profile_id 不能为空"})
		return
	}

	weekStart, err := weekStartFromQuery(c)
	if err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	entries, err := h.entries.GetDigestEntries(ctx, profileID, weekStart)
	if err != nil {
		h.logger.Printf("查询周摘要失败 for ProfileID %s: %v", profileID, err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "查询周摘要失败"})
		return
	}

	items := make([]digestEntryItem, 0, len(entries))
	for _, entry := range entries {
		item := digestEntryItem{
			PostingID: entry.PostingID,
			Score:     entry.Score,
			Sent:      entry.Sent,
			WeekStart: entry.WeekStart,
		}
		if entry.Posting != nil {
			item.Title = entry.Posting.Title
			item.Category = entry.Posting.Category
			if entry.Posting.EventDate != nil {
				formatted := entry.Posting.EventDate.Format("2006-01-02 15:04:05")
				item.EventDate = &formatted
			}
		}
		items = append(items, item)
	}

	c.JSON(consts.StatusOK, map[string]interface{}{
		"profile_id": profileID,
		"week_start": weekStart.Format("2006-01-02"),
		"data":       items,
		"count":      len(items),
	})
}

// HandleMarkDigestSent 接收外部投递服务的发送回执，标记该周条目为已发送。
// POST /api/v1/profiles/:profile_id/digest/sent?week=2026-08-24
func (h *DigestHandler) HandleMarkDigestSent(ctx context.Context, c *app.RequestContext) {
	profileID := c.Param("profile_id")
	if profileID == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "profile_id 不能为空"})
		return
	}

	weekStart, err := weekStartFromQuery(c)
	if err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if err := h.entries.MarkDigestEntriesSent(ctx, profileID, weekStart); err != nil {
		h.logger.Printf("标记周摘要已发送失败 for ProfileID %s: %v", profileID, err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "标记周摘要已发送失败"})
		return
	}

	c.JSON(consts.StatusOK, map[string]interface{}{
		"profile_id": profileID,
		"week_start": weekStart.Format("2006-01-02"),
		"status":     "sent",
	})
}
