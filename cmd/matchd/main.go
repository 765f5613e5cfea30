package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campus-match-go/internal/api/handler"
	"campus-match-go/internal/api/router"
	"campus-match-go/internal/config"
	"campus-match-go/internal/digest"
	"campus-match-go/internal/events"
	"campus-match-go/internal/matcher"
	"campus-match-go/internal/ratelimit"
	"campus-match-go/internal/storage"
	"campus-match-go/internal/taxonomy"
	"campus-match-go/internal/tracing"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	appCoreLogger "campus-match-go/internal/logger"
)

var version = "1.0.0" //nolint:gochecknoglobals

func main() {
	initLogger()

	var configPath string
	var runDigestOnce bool
	pflag.StringVarP(&configPath, "config", "c", "", "Path to config file")
	pflag.BoolVar(&runDigestOnce, "run-digest", false, "Run one weekly digest batch and exit")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		glog.Fatalf("加载配置失败: %v", err)
	}
	glog.Info("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, &cfg.Tracing)
	if err != nil {
		glog.Fatalf("初始化链路追踪失败: %v", err)
	}
	defer func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := shutdownTracing(shutdownCtx); err != nil {
			glog.Warnf("关闭链路追踪失败: %v", err)
		}
	}()

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	glog.Info("存储服务初始化成功")

	if storageManager.MySQL == nil {
		glog.Fatalf("MySQL是必需依赖，请检查配置")
	}

	engine := matcher.NewEngine(&matcher.Config{
		EmbeddingMinScore: cfg.Matcher.EmbeddingMinScore,
		OverlapMinScore:   cfg.Matcher.OverlapMinScore,
		QualityWeight:     cfg.Matcher.QualityWeight,
		CoverageWeight:    cfg.Matcher.CoverageWeight,
		StrictEligibility: cfg.Matcher.StrictEligibility,
	})
	glog.Info("匹配引擎初始化成功")

	digestBuilder := digest.NewBuilder(engine, storageManager.MySQL, storageManager.MySQL, cfg.Digest)
	if storageManager.Redis != nil {
		digestBuilder.WithLocker(storageManager.Redis)
	}
	if storageManager.RabbitMQ != nil && cfg.RabbitMQ.DigestEventsExchange != "" {
		digestBuilder.WithPublisher(storageManager.RabbitMQ, cfg.RabbitMQ.DigestEventsExchange, cfg.RabbitMQ.DigestRoutingKey)
	}

	// 一次性批处理模式：跑完一轮周摘要后直接退出
	if runDigestOnce {
		count, err := digestBuilder.Run(ctx)
		if err != nil {
			glog.Fatalf("周摘要批处理失败: %v", err)
		}
		glog.Infof("周摘要批处理完成，写入 %d 条", count)
		return
	}

	taxonomyTable := taxonomy.DefaultTable()

	feedbackService := events.NewFeedbackService(storageManager.MySQL, taxonomyTable)
	if storageManager.Redis != nil {
		feedbackService.WithCache(storageManager.Redis).WithEventMarker(storageManager.Redis)
	}

	var consumer *events.Consumer
	if storageManager.RabbitMQ != nil && cfg.RabbitMQ.InteractionQueue != "" {
		consumer = events.NewConsumer(storageManager.RabbitMQ, feedbackService, &cfg.RabbitMQ)
		if err := consumer.Start(ctx); err != nil {
			glog.Fatalf("启动交互事件消费者失败: %v", err)
		}
		defer consumer.Stop()
	} else {
		glog.Warn("未配置交互事件队列，反馈将走同步路径")
	}

	handlers := &router.Handlers{
		Match:    handler.NewMatchHandler(cfg, storageManager, engine),
		Topic:    handler.NewTopicHandler(taxonomyTable),
		Feedback: handler.NewFeedbackHandler(cfg, storageManager, feedbackService),
		Digest:   handler.NewDigestHandler(digestBuilder, storageManager.MySQL),

		MatchLimiter: ratelimit.NewTokenBucket(cfg.Server.MatchRateQPM, 0),
	}

	tracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		tracer,
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))

	router.RegisterRoutes(h, handlers)
	glog.Info("HTTP路由注册成功")

	glog.Infof("HTTP 服务器启动中，版本: %s, 监听地址: %s", version, cfg.Server.Address)

	go func() {
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	if consumer != nil {
		consumer.Stop()
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Fatalf("服务器关闭失败: %v", err)
	}
	glog.Info("优雅退出完成")
}

func initLogger() {
	consoleWriter := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	}

	level := zerolog.InfoLevel
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = "15:04:05"

	logger := zerolog.New(consoleWriter).With().Timestamp().Caller().Logger()

	// 同步到应用内的全局logger和zerolog的标准封装
	appCoreLogger.Logger = logger
	zlog.Logger = logger

	// Hertz的日志走zerolog适配器，保证输出格式统一
	hertzCompatibleLogger := hertzadapter.From(appCoreLogger.Logger)
	glog.SetLogger(hertzCompatibleLogger)
	glog.SetLevel(glog.LevelInfo)
}
