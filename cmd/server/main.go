package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/palemoky/exploding-kittens/internal/config"
	"github.com/palemoky/exploding-kittens/internal/logger"
	"github.com/palemoky/exploding-kittens/internal/server"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("加载配置文件失败，使用默认配置: %v", err)
		cfg = config.Default()
	}

	if err := logger.Init(cfg.Server.LogDir); err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer logger.Close()
	logger.LogInfo("服务器启动，日志文件: %s", logger.GetLogPath())

	// 创建服务器
	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("创建服务器失败: %v", err)
	}

	// 优雅关闭
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Println("🐱 Exploding Kittens 服务器启动中...")
	if err := srv.Start(ctx); err != nil {
		logger.LogError("服务器异常退出: %v", err)
		log.Printf("服务器异常退出: %v", err)
	}
}
