package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/jopatk123/myweb-realtime/internal/config"
	"github.com/jopatk123/myweb-realtime/internal/server"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（默认读 MYWEB_CONFIG）")
	flag.Parse()

	// .env 不存在时静默忽略
	_ = godotenv.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	if os.Getenv("MYWEB_DEBUG") != "" {
		logger.SetLevel(logrus.DebugLevel)
	}

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		logger.WithError(err).Warn("加载配置失败，使用默认配置")
		cfg = config.Default()
	}

	srv, err := server.NewServer(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("创建服务器失败")
	}

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("正在关闭服务器...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.WithError(err).Error("关闭服务器出错")
		}
		os.Exit(0)
	}()

	logger.Info("🐍 贪吃蛇联机服务器启动中...")
	if err := srv.Start(); err != nil {
		logger.WithError(err).Fatal("服务器启动失败")
	}
}
