package constants

import "time"

const (
	// ServiceName 服务名，用于日志与追踪标识
	ServiceName = "campus-match-go"

	// PostingStatusActive 可参与匹配的帖子状态
	PostingStatusActive = "ACTIVE"
	// PostingStatusClosed 已关闭的帖子状态
	PostingStatusClosed = "CLOSED"

	// DefaultMatchCandidateLimit 单次匹配请求返回的默认上限
	DefaultMatchCandidateLimit = 20

	// MatchCacheDuration 匹配结果缓存的默认有效期
	MatchCacheDuration = 30 * time.Minute
)
