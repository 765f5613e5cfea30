package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// MatchModulePrefix 匹配模块
	MatchModulePrefix = "match"
	// DigestModulePrefix 摘要模块
	DigestModulePrefix = "digest"

	// EntityRanking 排名结果实体
	EntityRanking = "ranking"
	// EntityLock 分布式锁实体
	EntityLock = "lock"
	// EntityEvent 已处理事件实体
	EntityEvent = "event"

	// KeyMatchRanking 某个来源在某个方向上的匹配排名缓存 (STRING, JSON)
	// 格式: app:match:ranking:{direction}:{ownerID}
	KeyMatchRanking = AppPrefix + ":" + MatchModulePrefix + ":" + EntityRanking + ":%s:%s"

	// KeyDigestLock 周摘要批处理的分布式锁 (STRING)
	// 格式: app:digest:lock:{weekStart}
	KeyDigestLock = AppPrefix + ":" + DigestModulePrefix + ":" + EntityLock + ":%s"

	// KeyProcessedEvent 交互事件幂等标记 (STRING)
	// 格式: app:match:event:{eventID}
	KeyProcessedEvent = AppPrefix + ":" + MatchModulePrefix + ":" + EntityEvent + ":%s"
)
