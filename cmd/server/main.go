// Package main 是检索服务的入口点。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fatwa-rag-go/internal/bootstrap"
	"fatwa-rag-go/internal/config"
	"fatwa-rag-go/internal/handler"
	"fatwa-rag-go/internal/middleware"
	"fatwa-rag-go/internal/pipeline"
	"fatwa-rag-go/internal/repository"
	"fatwa-rag-go/internal/service"
	"fatwa-rag-go/pkg/kafka"
	"fatwa-rag-go/pkg/llm"
	"fatwa-rag-go/pkg/log"
	"fatwa-rag-go/pkg/storage"
	"fatwa-rag-go/pkg/token"

	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "config file")
	flag.Parse()

	// 1. 初始化配置
	config.Init(*configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. 初始化后端连接
	backends, err := bootstrap.Open(ctx, cfg, bootstrap.Options{Redis: true})
	if err != nil {
		log.Fatalf("后端初始化失败: %v", err)
	}
	defer backends.Close()
	if err := backends.EnsureIndices(ctx); err != nil {
		log.Fatalf("创建向量索引失败: %v", err)
	}

	minioClient, err := storage.NewClient(ctx, cfg.MinIO)
	if err != nil {
		log.Fatalf("MinIO 初始化失败: %v", err)
	}
	kafka.InitProducer(cfg.Kafka)

	// 4. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours)
	conversationRepo := repository.NewConversationRepository(
		backends.Redis,
		cfg.Conversation.MaxMessages,
		time.Duration(cfg.Conversation.TTLHours)*time.Hour,
	)
	retrievalService := backends.NewRetrievalService()
	conversationService := service.NewConversationService(conversationRepo)
	chatService := service.NewChatService(retrievalService, llm.NewClient(cfg.LLM), conversationService, cfg.LLM, cfg.Retrieval)

	// 5. 导入流水线与后台 Kafka 消费者
	processor := backends.NewProcessor(storage.NewObjectStore(minioClient, cfg.MinIO.BucketName))
	go kafka.StartConsumer(ctx, cfg.Kafka, processor, backends.Redis)

	if cfg.Ingestion.SeedDir != "" {
		go seedFromDir(ctx, processor, cfg.Ingestion.SeedDir)
	}

	// 6. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 7. 注册路由
	apiV1 := r.Group("/api/v1")
	{
		apiV1.GET("/retrieve", handler.NewRetrievalHandler(retrievalService).Retrieve)
		apiV1.GET("/conversations/:session", handler.NewConversationHandler(conversationService).GetConversation)

		admin := apiV1.Group("/admin")
		admin.Use(middleware.AdminAuthMiddleware(jwtManager))
		{
			admin.POST("/ingest", handler.NewIngestHandler(kafka.ProduceIngestTask).Enqueue)
		}
	}
	r.GET("/chat/:lang", handler.NewChatHandler(chatService).Handle)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 先停止消费者和种子导入
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}
	if err := kafka.CloseProducer(); err != nil {
		log.Warnf("关闭 Kafka 生产者失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}

// seedFromDir 导入目录下的 dump 文件。导入按文档 id 覆盖写，重复执行是幂等的。
func seedFromDir(ctx context.Context, processor *pipeline.Processor, dir string) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		log.Infof("seedFromDir: 目录 '%s' 不存在或不可用，跳过初始化导入", dir)
		return
	}
	stats, err := processor.IngestDir(ctx, dir, pipeline.DefaultDumpPattern, "")
	if err != nil {
		log.Warnf("seedFromDir: 导入失败: %v", err)
		return
	}
	log.Infof("seedFromDir: 导入完成, 文档 %d, 分块 %d, 跳过 %d", stats.Documents, stats.Chunks, stats.Skipped)
}
