package handler

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"campus-match-go/internal/config"
	"campus-match-go/internal/constants"
	"campus-match-go/internal/matcher"
	"campus-match-go/internal/storage"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"gorm.io/gorm"
)

// MatchHandler 负责处理双向匹配请求。
type MatchHandler struct {
	cfg     *config.Config
	storage *storage.Storage
	engine  *matcher.Engine
	logger  *log.Logger
}

// NewMatchHandler 创建一个新的 MatchHandler 实例。
func NewMatchHandler(cfg *config.Config, storage *storage.Storage, engine *matcher.Engine) *MatchHandler {
	return &MatchHandler{
		cfg:     cfg,
		storage: storage,
		engine:  engine,
		logger:  log.New(os.Stdout, "[MatchHandler] ", log.LstdFlags|log.Lshortfile),
	}
}

// matchRequest 匹配请求体，两个方向共用
type matchRequest struct {
	ProfileID string  `json:"profile_id"`
	PostingID string  `json:"posting_id"`
	Limit     int     `json:"limit"`
	Threshold float64 `json:"threshold"` // 0表示只用策略自身的最低分
}

// matchResultItem 单条匹配结果
type matchResultItem struct {
	SourceID      string   `json:"source_id"`
	TargetID      string   `json:"target_id"`
	Score         float64  `json:"score"`
	MatchedTopics []string `json:"matched_topics,omitempty"`
}

func toResultItems(results []matcher.MatchResult) []matchResultItem {
	items := make([]matchResultItem, len(results))
	for i, r := range results {
		items[i] = matchResultItem{
			SourceID:      r.SourceID,
			TargetID:      r.TargetID,
			Score:         r.Score,
			MatchedTopics: r.MatchedTopics,
		}
	}
	return items
}

func (h *MatchHandler) cacheTTL() time.Duration {
	if h.cfg != nil && h.cfg.Redis.MatchCacheExpireMinutes > 0 {
		return time.Duration(h.cfg.Redis.MatchCacheExpireMinutes) * time.Minute
	}
	return constants.MatchCacheDuration
}

// HandlePostingsForProfile 为学生档案推荐机会帖子。
// POST /api/v1/match/postings
func (h *MatchHandler) HandlePostingsForProfile(ctx context.Context, c *app.RequestContext) {
	var req matchRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "请求体解析失败"})
		return
	}
	if req.ProfileID == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "profile_id 不能为空"})
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = constants.DefaultMatchCandidateLimit
	}

	// 阈值为0时直接查缓存；带显式阈值的请求各不相同，不走缓存
	if req.Threshold == 0 && h.storage.Redis != nil {
		cached, err := h.storage.Redis.GetCachedMatchRanking(ctx, storage.DirectionPostingsForProfile, req.ProfileID)
		if err == nil {
			h.logger.Printf("匹配缓存命中 for ProfileID: %s, %d 条结果", req.ProfileID, len(cached))
			if len(cached) > limit {
				cached = cached[:limit]
			}
			c.JSON(consts.StatusOK, map[string]interface{}{
				"message":     "匹配成功 (来自缓存)",
				"data":        toResultItems(cached),
				"profile_id":  req.ProfileID,
				"total_count": len(cached),
			})
			return
		}
		if !errors.Is(err, storage.ErrNotFound) {
			h.logger.Printf("读取匹配缓存失败 for ProfileID %s: %v", req.ProfileID, err)
		}
	}

	source, err := h.storage.MySQL.GetProfileVector(ctx, req.ProfileID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(consts.StatusNotFound, map[string]string{"error": "未找到该学生档案"})
		} else {
			h.logger.Printf("加载学生档案失败 for ProfileID %s: %v", req.ProfileID, err)
			c.JSON(consts.StatusInternalServerError, map[string]string{"error": "加载学生档案失败"})
		}
		return
	}

	candidates, err := h.storage.MySQL.ListActivePostingVectors(ctx, time.Now())
	if err != nil {
		h.logger.Printf("加载机会帖子失败: %v", err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "加载机会帖子失败"})
		return
	}

	results, err := h.engine.ScoreTargetsForSource(source, candidates, req.Threshold)
	if err != nil {
		h.logger.Printf("匹配计算失败 for ProfileID %s: %v", req.ProfileID, err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "匹配计算失败"})
		return
	}

	// 只缓存未裁剪的全量排名，分页裁剪留给读取方
	if req.Threshold == 0 && h.storage.Redis != nil {
		if err := h.storage.Redis.CacheMatchRanking(ctx, storage.DirectionPostingsForProfile, req.ProfileID, results, h.cacheTTL()); err != nil {
			h.logger.Printf("写入匹配缓存失败 for ProfileID %s: %v", req.ProfileID, err)
		}
	}

	total := len(results)
	if len(results) > limit {
		results = results[:limit]
	}
	c.JSON(consts.StatusOK, map[string]interface{}{
		"message":     "匹配成功",
		"data":        toResultItems(results),
		"profile_id":  req.ProfileID,
		"total_count": total,
	})
}

// HandleProfilesForPosting 为机会帖子寻找合适的学生档案。
// POST /api/v1/match/profiles
func (h *MatchHandler) HandleProfilesForPosting(ctx context.Context, c *app.RequestContext) {
	var req matchRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "请求体解析失败"})
		return
	}
	if req.PostingID == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "posting_id 不能为空"})
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = constants.DefaultMatchCandidateLimit
	}

	if req.Threshold == 0 && h.storage.Redis != nil {
		cached, err := h.storage.Redis.GetCachedMatchRanking(ctx, storage.DirectionProfilesForPosting, req.PostingID)
		if err == nil {
			h.logger.Printf("匹配缓存命中 for PostingID: %s, %d 条结果", req.PostingID, len(cached))
			if len(cached) > limit {
				cached = cached[:limit]
			}
			c.JSON(consts.StatusOK, map[string]interface{}{
				"message":     "匹配成功 (来自缓存)",
				"data":        toResultItems(cached),
				"posting_id":  req.PostingID,
				"total_count": len(cached),
			})
			return
		}
		if !errors.Is(err, storage.ErrNotFound) {
			h.logger.Printf("读取匹配缓存失败 for PostingID %s: %v", req.PostingID, err)
		}
	}

	target, err := h.storage.MySQL.GetPostingVector(ctx, req.PostingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(consts.StatusNotFound, map[string]string{"error": "未找到该机会帖子"})
		} else {
			h.logger.Printf("加载机会帖子失败 for PostingID %s: %v", req.PostingID, err)
			c.JSON(consts.StatusInternalServerError, map[string]string{"error": "加载机会帖子失败"})
		}
		return
	}

	candidates, err := h.storage.MySQL.ListProfileVectors(ctx)
	if err != nil {
		h.logger.Printf("加载学生档案失败: %v", err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "加载学生档案失败"})
		return
	}

	results, err := h.engine.ScoreSourcesForTarget(target, candidates, req.Threshold)
	if err != nil {
		h.logger.Printf("匹配计算失败 for PostingID %s: %v", req.PostingID, err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "匹配计算失败"})
		return
	}

	if req.Threshold == 0 && h.storage.Redis != nil {
		if err := h.storage.Redis.CacheMatchRanking(ctx, storage.DirectionProfilesForPosting, req.PostingID, results, h.cacheTTL()); err != nil {
			h.logger.Printf("写入匹配缓存失败 for PostingID %s: %v", req.PostingID, err)
		}
	}

	total := len(results)
	if len(results) > limit {
		results = results[:limit]
	}
	c.JSON(consts.StatusOK, map[string]interface{}{
		"message":     "匹配成功",
		"data":        toResultItems(results),
		"posting_id":  req.PostingID,
		"total_count": total,
	})
}
