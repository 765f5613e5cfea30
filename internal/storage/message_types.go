package storage

import "time"

// InteractionEventMessage 交互事件消息
// 学生对某个机会帖子的行为信号（报名、点击、忽略）
type InteractionEventMessage struct {
	EventID   string `json:"event_id"`   // 事件UUID，用作幂等键
	ProfileID string `json:"profile_id"` // 学生档案ID
	PostingID string `json:"posting_id"` // 机会帖子ID
	Kind      string `json:"kind"`       // strong_positive / positive / negative

	// 可选字段
	OccurredAt int64  `json:"occurred_at,omitempty"` // 行为发生的Unix时间戳
	Source     string `json:"source,omitempty"`      // 来源渠道 (web, app, email)
}

// DigestCompletedMessage 周摘要批处理完成消息
// 供下游通知服务消费，触发邮件/站内信发送
type DigestCompletedMessage struct {
	WeekStart    time.Time `json:"week_start"`    // 本周起点（周一本地零点）
	EntryCount   int       `json:"entry_count"`   // 本次写入的摘要条目总数
	ProfileCount int       `json:"profile_count"` // 覆盖的学生档案数量
	CompletedAt  time.Time `json:"completed_at"`  // 批处理完成时间
}
