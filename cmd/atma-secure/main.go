package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"atma-secure/internal/app"
	"atma-secure/internal/config"
	"atma-secure/internal/consumer"
	httpapi "atma-secure/internal/http"
	"atma-secure/internal/service"

	"atma-secure/common/logger"

	"go.uber.org/zap"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化Logger
	lg, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "atma-secure")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer lg.Sync()

	lg.Info("Starting atma-secure service",
		zap.String("event_log_backend", cfg.EventLog.Backend),
		zap.Int("recipients", len(cfg.Alert.Recipients)),
		zap.Bool("mqtt_enabled", cfg.MQTT.Enabled),
		zap.Bool("redis_enabled", cfg.Redis.Enabled),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("Failed to initialize service", zap.Error(err))
	}
	defer a.Close()

	router := httpapi.NewRouter(lg)
	router.RegisterAlertRoutes(httpapi.NewAlertHandler(a.Controller, cfg.Alert.HelplineNumber, lg))
	router.RegisterEventRoutes(httpapi.NewEventHandler(a.Audit, lg))
	router.RegisterHealthRoutes()

	srv := service.NewServer(cfg.HTTP.Addr, router, lg)
	go func() {
		if err := srv.Start(); err != nil {
			lg.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 摄像头设备通过 MQTT 上报抓拍
	var captures *consumer.CaptureConsumer
	if a.MQTT != nil && cfg.MQTT.CaptureTopic != "" {
		captures = consumer.NewCaptureConsumer(a.MQTT, a.Controller, cfg.MQTT.CaptureTopic, cfg.MQTT.QoS, lg)
		go func() {
			if err := captures.Start(ctx); err != nil {
				lg.Error("Capture consumer failed", zap.Error(err))
			}
		}()
	}

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	lg.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	// 优雅关闭
	cancel()
	if captures != nil {
		captures.Stop()
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		lg.Error("Error during shutdown", zap.Error(err))
	}

	lg.Info("Service stopped")
}
