package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"talkdoc/internal/api"
	"talkdoc/internal/app/bootstrap"
	"talkdoc/internal/metrics"
	"talkdoc/internal/platform/config"
	applog "talkdoc/internal/platform/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Config load failed: %v\n", err)
		os.Exit(1)
	}

	applog.Init(applog.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})
	defer applog.Sync()

	m := metrics.New()
	providers := bootstrap.RegisterLLMProviders(cfg.LLM)

	comps, err := bootstrap.BuildChatService(context.Background(), cfg, providers, m)
	if err != nil {
		applog.Fatalf("❌ Failed to build document chat service: %v", err)
	}
	defer comps.Close()

	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = cfg.Server.Host
	serverConfig.Port = cfg.Server.Port
	serverConfig.ReadTimeout = time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second
	serverConfig.WriteTimeout = time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second
	serverConfig.MaxUploadBytes = cfg.RAG.MaxFileBytes()
	serverConfig.AllowedOrigins = cfg.Server.AllowedOrigins
	server := api.NewServer(serverConfig, comps.Service, m)

	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		applog.Info("🔄 Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
		defer cancel()

		if err := server.Stop(ctx); err != nil {
			applog.Errorf("❌ Server shutdown error: %v", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		applog.Fatalf("❌ Server error: %v", err)
	}
	// Start 在 Shutdown 开始时即返回，等待进行中的请求处理完
	<-done

	applog.Info("👋 Server stopped")
}
