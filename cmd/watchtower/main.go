package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"watchtower/internal/engine"
	"watchtower/pkg/logger"
)

func main() {
	appConfig, err := engine.LoadConfig("./.env")
	if err != nil {
		log.Printf("load config error: %v", err)
		os.Exit(1)
	}

	// set up logger
	_ = os.MkdirAll("./log", 0o755)
	fileSyncer, err := logger.NewReopenableWriteSyncer("./log/watchtower.log")
	if err != nil {
		log.Fatal(fmt.Sprintf("open log file error: %v", err))
	}
	zapLogger := logger.NewLogger(appConfig.Server.LogLevel, fileSyncer).With(zap.String("service.name", "watchtower"))
	defer zapLogger.Sync()
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGHUP)
	go func() {
		for {
			<-c
			zapLogger.Info("receive logrotate SIGHUP, reloading log file")
			if e := fileSyncer.Reload(); e != nil {
				zapLogger.Error("failed to reload log file", zap.Error(e))
			} else {
				zapLogger.Info("successfully reloaded log file")
			}
		}
	}()

	eng, err := engine.New(appConfig, zapLogger)
	if err != nil {
		zapLogger.Error("failed to start engine", zap.Error(err))
		zapLogger.Sync()
		if errors.Is(err, engine.ErrStateInit) {
			os.Exit(2)
		}
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	eng.Run(ctx)
}
