package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"campus-match-go/internal/config"
	"campus-match-go/internal/constants"
	"campus-match-go/internal/matcher"
	"campus-match-go/internal/storage/models"
	"campus-match-go/internal/tracing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var mysqlTracer = otel.Tracer("campus-match-go/storage/mysql")

// GormTracingPlugin 是一个GORM插件，用于向OpenTelemetry中添加数据库操作的追踪点
type GormTracingPlugin struct {
	tracer         trace.Tracer
	dbName         string
	dbSystem       string
	disableErrSkip bool
}

// Name 返回插件名称
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 注册GORM回调以启用追踪
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("CREATE")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after()); err != nil {
		return err
	}

	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after()); err != nil {
		return err
	}

	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("UPDATE")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after()); err != nil {
		return err
	}

	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("DELETE")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after()); err != nil {
		return err
	}

	if err := cb.Row().Before("gorm:row").Register("otel:before_row", p.before("ROW")); err != nil {
		return err
	}
	if err := cb.Row().After("gorm:row").Register("otel:after_row", p.after()); err != nil {
		return err
	}

	if err := cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("RAW")); err != nil {
		return err
	}
	if err := cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after()); err != nil {
		return err
	}

	return nil
}

// before 返回在GORM操作之前执行的回调函数
func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		if p.disableErrSkip && db.Statement.SkipHooks {
			return
		}

		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}

		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}

		spanName := fmt.Sprintf("%s %s", operation, tableName)
		opts := []trace.SpanStartOption{
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", tableName),
			),
		}

		sqlStatement := db.Statement.SQL.String()
		if sqlStatement != "" {
			opts = append(opts, trace.WithAttributes(
				attribute.String("db.statement", tracing.SafeSQL(sqlStatement)),
			))
		}

		newCtx, span := p.tracer.Start(ctx, spanName, opts...)

		// 将span保存在DB上下文中，以便在after回调中使用
		db.Statement.Context = context.WithValue(newCtx, "otel-span", span)
	}
}

// after 返回在GORM操作之后执行的回调函数
func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value("otel-span").(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))

		// ErrRecordNotFound 属于业务正常分支，不计为错误
		if db.Error != nil {
			if db.Error == gorm.ErrRecordNotFound {
				span.SetAttributes(attribute.String("error.type", "record_not_found"))
				span.SetStatus(codes.Ok, "record not found")
			} else {
				span.SetAttributes(attribute.String("error.type", "database_error"))
				span.SetAttributes(attribute.String("error.message", db.Error.Error()))
				span.RecordError(db.Error)
				span.SetStatus(codes.Error, db.Error.Error())
			}
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}

// NewGormTracingPlugin 创建一个新的GORM追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer:         mysqlTracer,
		dbName:         dbName,
		dbSystem:       "mysql",
		disableErrSkip: true,
	}
}

// WithDisableErrSkip 设置是否禁用错误跳过
func (p *GormTracingPlugin) WithDisableErrSkip(disable bool) *GormTracingPlugin {
	p.disableErrSkip = disable
	return p
}

// MySQL 提供关系数据库功能
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 创建MySQL客户端
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	var logLevel logger.LogLevel
	switch cfg.LogLevel {
	case 1:
		logLevel = logger.Silent
	case 2:
		logLevel = logger.Error
	case 3:
		logLevel = logger.Warn
	case 4:
		logLevel = logger.Info
	default:
		logLevel = logger.Info
	}

	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logLevel),
		PrepareStmt:                              true,
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	m := &MySQL{
		db:  db,
		cfg: cfg,
	}

	tracingPlugin := NewGormTracingPlugin(cfg.Database).WithDisableErrSkip(true)
	if err := db.Use(tracingPlugin); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	if err := m.autoMigrateSchema(); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	log.Println("成功连接到MySQL并自动迁移数据库结构")
	return m, nil
}

// autoMigrateSchema 使用GORM自动迁移数据库表结构
func (m *MySQL) autoMigrateSchema() error {
	currentLogger := m.db.Logger

	// 迁移期间关闭SQL日志打印
	silentLogger := logger.New(
		log.New(log.Writer(), "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	silentDB := m.db.Session(&gorm.Session{Logger: silentLogger})

	err := silentDB.AutoMigrate(
		&models.StudentProfile{},
		&models.OpportunityPosting{},
		&models.MatchDigestEntry{},
		&models.InteractionEvent{},
	)

	m.db = m.db.Session(&gorm.Session{Logger: currentLogger})

	if err != nil {
		return fmt.Errorf("GORM自动迁移失败: %w", err)
	}
	return nil
}

// DB 返回GORM数据库连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return sqlDB.Close()
}

// GetProfile 通过ProfileID获取学生档案
func (m *MySQL) GetProfile(ctx context.Context, profileID string) (*models.StudentProfile, error) {
	var profile models.StudentProfile
	if err := m.db.WithContext(ctx).Where("profile_id = ?", profileID).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetPosting 通过PostingID获取机会帖子
func (m *MySQL) GetPosting(ctx context.Context, postingID string) (*models.OpportunityPosting, error) {
	var posting models.OpportunityPosting
	if err := m.db.WithContext(ctx).Where("posting_id = ?", postingID).First(&posting).Error; err != nil {
		return nil, err
	}
	return &posting, nil
}

// GetProfileVector 加载单个学生档案并转换为匹配向量
func (m *MySQL) GetProfileVector(ctx context.Context, profileID string) (*matcher.ProfileVector, error) {
	profile, err := m.GetProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	return ProfileToVector(profile)
}

// GetPostingVector 加载单个机会帖子并转换为匹配向量
func (m *MySQL) GetPostingVector(ctx context.Context, postingID string) (*matcher.ProfileVector, error) {
	posting, err := m.GetPosting(ctx, postingID)
	if err != nil {
		return nil, err
	}
	return PostingToVector(posting)
}

// ListProfileVectors 加载全部学生档案并转换为匹配向量
// 单条转换失败只跳过该条，不影响整批
func (m *MySQL) ListProfileVectors(ctx context.Context) ([]*matcher.ProfileVector, error) {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.ListProfileVectors",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var profiles []models.StudentProfile
	if err := m.db.WithContext(ctx).Order("profile_id").Find(&profiles).Error; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("查询学生档案失败: %w", err)
	}

	vectors := make([]*matcher.ProfileVector, 0, len(profiles))
	for i := range profiles {
		vector, err := ProfileToVector(&profiles[i])
		if err != nil {
			span.AddEvent("skip_invalid_profile", trace.WithAttributes(
				attribute.String("profile_id", profiles[i].ProfileID),
				attribute.String("error.message", tracing.SafeAttributeValue("error.message", err.Error(), tracing.DefaultMaxLength)),
			))
			continue
		}
		vectors = append(vectors, vector)
	}

	span.SetAttributes(attribute.Int("profile.count", len(vectors)))
	span.SetStatus(codes.Ok, "")
	return vectors, nil
}

// ListActivePostingVectors 加载可参与匹配的机会帖子并转换为匹配向量
// 只取ACTIVE状态，且活动日期为空或不早于now的帖子
func (m *MySQL) ListActivePostingVectors(ctx context.Context, now time.Time) ([]*matcher.ProfileVector, error) {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.ListActivePostingVectors",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var postings []models.OpportunityPosting
	err := m.db.WithContext(ctx).
		Where("status = ?", constants.PostingStatusActive).
		Where("event_date IS NULL OR event_date >= ?", now).
		Order("posting_id").
		Find(&postings).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("查询机会帖子失败: %w", err)
	}

	vectors := make([]*matcher.ProfileVector, 0, len(postings))
	for i := range postings {
		vector, err := PostingToVector(&postings[i])
		if err != nil {
			span.AddEvent("skip_invalid_posting", trace.WithAttributes(
				attribute.String("posting_id", postings[i].PostingID),
				attribute.String("error.message", tracing.SafeAttributeValue("error.message", err.Error(), tracing.DefaultMaxLength)),
			))
			continue
		}
		vectors = append(vectors, vector)
	}

	span.SetAttributes(attribute.Int("posting.count", len(vectors)))
	span.SetStatus(codes.Ok, "")
	return vectors, nil
}

// UpdateProfileTopics 覆盖写入学生档案的兴趣主题权重
func (m *MySQL) UpdateProfileTopics(ctx context.Context, profileID string, topics []matcher.TopicWeight) error {
	records := make([]models.TopicWeightRecord, len(topics))
	for i, tw := range topics {
		records[i] = models.TopicWeightRecord{Topic: tw.Topic, Weight: tw.Weight}
	}
	topicsJSON, err := models.TopicWeightsToJSON(records)
	if err != nil {
		return fmt.Errorf("序列化兴趣主题失败: %w", err)
	}
	return m.db.WithContext(ctx).
		Model(&models.StudentProfile{}).
		Where("profile_id = ?", profileID).
		Update("interest_topics_json", topicsJSON).Error
}

// UpsertDigestEntries 批量写入周摘要条目
// 命中 (profile_id, posting_id, week_start) 唯一键时更新分数，保证重跑幂等
func (m *MySQL) UpsertDigestEntries(ctx context.Context, entries []models.MatchDigestEntry) error {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.UpsertDigestEntries",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		semconv.DBSystemMySQL,
		attribute.String("db.name", m.cfg.Database),
		attribute.String("db.operation", "INSERT_ON_DUPLICATE"),
		attribute.String("db.sql.table", "match_digest_entries"),
		attribute.Int("batch.size", len(entries)),
	)

	if len(entries) == 0 {
		span.SetStatus(codes.Ok, "no entries to upsert")
		return nil
	}

	err := m.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns: []clause.Column{
				{Name: "profile_id"},
				{Name: "posting_id"},
				{Name: "week_start"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"score", "updated_at"}),
		}).Create(&entries).Error

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("写入周摘要条目失败: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetDigestEntries 按周读取某个学生的摘要条目，分数降序
func (m *MySQL) GetDigestEntries(ctx context.Context, profileID string, weekStart time.Time) ([]models.MatchDigestEntry, error) {
	var entries []models.MatchDigestEntry
	err := m.db.WithContext(ctx).
		Preload("Posting").
		Where("profile_id = ? AND week_start = ?", profileID, weekStart).
		Order("score DESC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("查询周摘要失败: %w", err)
	}
	return entries, nil
}

// MarkDigestEntriesSent 将某个学生某周的摘要条目标记为已发送
func (m *MySQL) MarkDigestEntriesSent(ctx context.Context, profileID string, weekStart time.Time) error {
	return m.db.WithContext(ctx).
		Model(&models.MatchDigestEntry{}).
		Where("profile_id = ? AND week_start = ?", profileID, weekStart).
		Update("sent", true).Error
}

// SaveInteractionEvent 保存交互事件审计记录
// EventID主键冲突时不做任何事并返回false，实现消费幂等
func (m *MySQL) SaveInteractionEvent(ctx context.Context, event *models.InteractionEvent) (bool, error) {
	result := m.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).Create(event)
	if result.Error != nil {
		return false, fmt.Errorf("保存交互事件失败: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ProfileToVector 将学生档案行转换为匹配向量
func ProfileToVector(profile *models.StudentProfile) (*matcher.ProfileVector, error) {
	records, err := models.TopicWeightsFromJSON(profile.InterestTopicsJSON)
	if err != nil {
		return nil, fmt.Errorf("解析兴趣主题失败: %w", err)
	}
	embedding, err := models.EmbeddingFromBytes(profile.Embedding)
	if err != nil {
		return nil, err
	}

	topics := make([]matcher.TopicWeight, len(records))
	for i, r := range records {
		topics[i] = matcher.NewTopicWeight(r.Topic, r.Weight)
	}

	return &matcher.ProfileVector{
		OwnerID:   profile.ProfileID,
		Topics:    matcher.NormalizeTopicWeights(topics),
		Embedding: embedding,
		Metadata: matcher.Metadata{
			Major: profile.Major,
			Year:  profile.Year,
		},
	}, nil
}

// PostingToVector 将机会帖子行转换为匹配向量
func PostingToVector(posting *models.OpportunityPosting) (*matcher.ProfileVector, error) {
	records, err := models.TopicWeightsFromJSON(posting.TopicsJSON)
	if err != nil {
		return nil, fmt.Errorf("解析帖子主题失败: %w", err)
	}
	embedding, err := models.EmbeddingFromBytes(posting.Embedding)
	if err != nil {
		return nil, err
	}

	topics := make([]matcher.TopicWeight, len(records))
	for i, r := range records {
		topics[i] = matcher.NewTopicWeight(r.Topic, r.Weight)
	}

	return &matcher.ProfileVector{
		OwnerID:   posting.PostingID,
		Topics:    matcher.NormalizeTopicWeights(topics),
		Embedding: embedding,
		Metadata: matcher.Metadata{
			RequiredMajors: posting.RequiredMajors,
			RequiredYears:  posting.RequiredYears,
		},
	}, nil
}

// IsRecordNotFound 判断错误是否为记录不存在
func IsRecordNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
