package router

import (
	"context"

	"campus-match-go/internal/api/handler"
	"campus-match-go/internal/ratelimit"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// Handlers 聚合路由需要的全部处理器
type Handlers struct {
	Match    *handler.MatchHandler
	Topic    *handler.TopicHandler
	Feedback *handler.FeedbackHandler
	Digest   *handler.DigestHandler

	// MatchLimiter 限制全量打分接口的突发流量，可为nil
	MatchLimiter *ratelimit.TokenBucket
}

// rateLimitMiddleware 令牌耗尽时返回429
func rateLimitMiddleware(bucket *ratelimit.TokenBucket) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		if bucket != nil && !bucket.Allow() {
			ctx.AbortWithStatusJSON(consts.StatusTooManyRequests, utils.H{
				"error":       "匹配请求过于频繁，请稍后重试",
				"retry_after": 1,
			})
			return
		}
		ctx.Next(c)
	}
}

// RegisterRoutes 注册 API 路由
func RegisterRoutes(h *server.Hertz, handlers *Handlers) {
	api := h.Group("/api/v1")

	// 双向匹配，带限流
	match := api.Group("/match", rateLimitMiddleware(handlers.MatchLimiter))
	match.POST("/postings", handlers.Match.HandlePostingsForProfile)
	match.POST("/profiles", handlers.Match.HandleProfilesForPosting)

	// 主题归一化
	api.GET("/topics", handlers.Topic.HandleListTopics)
	api.GET("/topics/canonicalize", handlers.Topic.HandleCanonicalize)

	// 交互反馈
	api.POST("/feedback", handlers.Feedback.HandleSubmitFeedback)

	// 周摘要
	api.POST("/digest/run", handlers.Digest.HandleRunDigest)
	api.GET("/profiles/:profile_id/digest", handlers.Digest.HandleGetProfileDigest)
	api.POST("/profiles/:profile_id/digest/sent", handlers.Digest.HandleMarkDigestSent)

	// 健康检查
	api.GET("/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})
}
