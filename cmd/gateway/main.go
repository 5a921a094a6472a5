package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voicegate/config"
	"voicegate/internal/application"
	"voicegate/internal/infra/bot"
	"voicegate/internal/infra/ffmpeg"
	"voicegate/internal/infra/files"
	"voicegate/internal/infra/identity"
	"voicegate/internal/infra/qa"
	"voicegate/internal/infra/speech"
	"voicegate/internal/metrics"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	mediaTimeout, err := time.ParseDuration(cfg.Transcode.MediaTimeout)
	if err != nil {
		logger.Warn("invalid media timeout, using default", "error", err, "value", cfg.Transcode.MediaTimeout)
		mediaTimeout = 90 * time.Second
	}

	if err := os.MkdirAll(cfg.Files.WorkDir, 0o755); err != nil {
		logger.Error("creating work dir", "error", err, "dir", cfg.Files.WorkDir)
		os.Exit(1)
	}

	appMetrics := metrics.New()

	tokens := identity.NewTokenProvider(
		cfg.Identity.TenantID,
		cfg.Identity.ClientID,
		cfg.Identity.ClientSecret,
		cfg.Identity.Scope,
		cfg.Identity.TokenURL,
	)
	fetcher := files.NewFetcher(tokens, logger)
	transcoder := ffmpeg.NewTranscoder(cfg.Transcode.FFmpegPath, logger)
	recognizer := speech.NewRecognizer(cfg.Speech.Endpoint, cfg.Speech.APIKey, cfg.Speech.Language, logger)
	answerer := qa.NewClient(cfg.QA.Endpoint, cfg.QA.APIKey)

	pipeline := application.NewPipeline(
		fetcher,
		transcoder,
		recognizer,
		answerer,
		cfg.Files.WorkDir,
		mediaTimeout,
		appMetrics,
		logger,
	)

	connector := bot.NewConnector(tokens)
	server := bot.NewServer(cfg.Server.Addr, pipeline, connector, cfg.Server.RateLimit, appMetrics, logger)

	if err := server.Start(); err != nil {
		logger.Error("starting listener", "error", err)
		os.Exit(1)
	}

	logger.Info("voice gateway started",
		"addr", cfg.Server.Addr,
		"language", cfg.Speech.Language,
		"work_dir", cfg.Files.WorkDir,
	)

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("stopping listener", "error", err)
	}

	logger.Info("voice gateway stopped")
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
