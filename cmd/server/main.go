package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/han-fei/hostguard/internal/alerting"
	"github.com/han-fei/hostguard/internal/analysis"
	"github.com/han-fei/hostguard/internal/api"
	"github.com/han-fei/hostguard/internal/broadcast"
	"github.com/han-fei/hostguard/internal/config"
	"github.com/han-fei/hostguard/internal/recovery"
	"github.com/han-fei/hostguard/internal/storage"
)

func main() {
	// 解析命令行参数
	configPath := flag.String("config", "configs/server.yaml", "配置文件路径")
	flag.Parse()

	// 加载配置
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 创建Redis存储
	redisStorage, err := storage.NewRedisStorage(cfg.Storage.Redis)
	if err != nil {
		log.Fatalf("创建Redis存储失败: %v", err)
	}
	defer redisStorage.Close()

	// 告警存储：配置了Postgres DSN时落库，否则落Redis
	var alertStore storage.AlertStore = redisStorage
	if cfg.Storage.Postgres.DSN != "" {
		pgStore, err := storage.NewPostgresAlertStore(cfg.Storage.Postgres)
		if err != nil {
			log.Fatalf("创建Postgres告警存储失败: %v", err)
		}
		defer pgStore.Close()
		alertStore = pgStore
		log.Printf("告警存储使用Postgres")
	}

	// 创建广播端
	hub := broadcast.NewHub(cfg.Broadcast.WebSocket)
	hub.Start()
	defer hub.Stop()

	kafkaPublisher := broadcast.NewKafkaPublisher(cfg.Broadcast.Kafka)
	defer kafkaPublisher.Close()

	broadcaster := broadcast.NewMultiBroadcaster(hub, kafkaPublisher)

	// 创建通知管线
	dedup := alerting.NewDeduplicator(redisStorage, cfg.Alerting.DedupWindow.Std())
	dispatcher := alerting.NewDispatcher(cfg.Alerting, dedup,
		alerting.NewEmailChannel(cfg.Alerting.Email),
		alerting.NewWebhookChannel(cfg.Alerting.Webhook),
	)
	dispatcher.Start()
	defer dispatcher.Stop()

	factory := alerting.NewFactory(alertStore, broadcaster, dispatcher)

	// 创建分析管线
	scorer := analysis.NewScorer(cfg.Analysis)
	analyzer := analysis.NewAnalyzer(cfg.Analysis, scorer, factory, redisStorage)

	retrainCtx, cancelRetrain := context.WithCancel(context.Background())
	defer cancelRetrain()
	go scorer.Run(retrainCtx)

	// 创建恢复引擎
	engine := recovery.NewEngine(cfg.Recovery, redisStorage, redisStorage, factory, recovery.NewShellExecutor())
	engine.Start()
	defer engine.Stop()

	// 注册HTTP路由
	router := mux.NewRouter()
	handler := api.NewHandler(analyzer, dedup, redisStorage, engine, hub)
	handler.RegisterRoutes(router)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("HTTP服务已启动: %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP服务异常退出: %v", err)
		}
	}()

	// 等待退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Printf("收到信号 %v，开始优雅停机", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP服务停机失败: %v", err)
	}
}
