package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"backend/internal/app"
	"backend/internal/config"
	"backend/internal/logger"
)

func main() {
	configPath := pflag.StringP("config", "c", "config.yaml", "配置文件路径")
	port := pflag.IntP("port", "p", 0, "HTTP端口，覆盖配置文件")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("配置加载失败: %v", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	application := app.NewApp(cfg)
	if err := application.Initialize(); err != nil {
		logger.Error("初始化失败: %v", err)
		os.Exit(1)
	}
	if err := application.Start(); err != nil {
		logger.Error("启动失败: %v", err)
		os.Exit(1)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := application.Stop(ctx); err != nil {
		logger.Error("停止失败: %v", err)
	}
}
