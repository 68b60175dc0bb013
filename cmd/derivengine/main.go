// Package main is the entry point for the Deriv automated trading engine:
// a single broker session, seven configurable strategies, and the thin
// HTTP/push-socket surface that watches and steers it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/quantedge/derivengine/internal/api"
	"github.com/quantedge/derivengine/internal/config"
	"github.com/quantedge/derivengine/internal/engine"
	"github.com/quantedge/derivengine/pkg/types"
)

func main() {
	configPath := flag.String("config", "./config.json", "path to the engine configuration file")
	host := flag.String("host", "0.0.0.0", "API server host")
	port := flag.Int("port", 8080, "API server port")
	metricsPort := flag.Int("metrics-port", 9090, "Prometheus metrics port (reserved, served on the same listener)")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	logger := setupLogger(*logLevel)
	defer logger.Sync()

	logger.Info("starting derivengine",
		zap.String("config", *configPath),
		zap.String("host", *host),
		zap.Int("port", *port),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfgLoader, err := config.New(logger, *configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	serverCfg := types.ServerConfig{
		Host:           *host,
		Port:           *port,
		WebSocketPath:  "/ws",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxConnections: 100,
		EnableMetrics:  true,
		MetricsPort:    *metricsPort,
	}

	eng := engine.New(logger, types.DefaultBrokerConfig(), nil)
	server := api.NewServer(logger, serverCfg, eng, cfgLoader, eng.ApplyConfig)
	eng.SetEmitFunc(server.Emit)

	cfgLoader.OnChange(eng.ApplyConfig)

	eng.Start(ctx, cfgLoader.Current())

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("api server error", zap.Error(err))
		}
	}()

	logger.Info("derivengine started",
		zap.String("http", fmt.Sprintf("http://%s:%d/api/v1", *host, *port)),
		zap.String("ws", fmt.Sprintf("ws://%s:%d/ws", *host, *port)),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutdown signal received")

	cancel()
	eng.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("error during api server shutdown", zap.Error(err))
	}

	logger.Info("derivengine stopped")
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
