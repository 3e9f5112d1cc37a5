package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/slambench/runner/internal/archive"
	"github.com/slambench/runner/internal/config"
	"github.com/slambench/runner/internal/files"
	"github.com/slambench/runner/internal/rabbitmq"
	"github.com/slambench/runner/internal/supervisor"
)

func panicErr(err error) {
	if err != nil {
		panic(err)
	}
}

func setupLogger(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelWarn
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      lvl,
		TimeFormat: time.TimeOnly,
	})))
}

func main() {
	cfg, err := config.NewConfig()
	panicErr(err)
	setupLogger(cfg.LogLevel)

	sup := supervisor.New(supervisor.Config{})

	var storage *files.FileStorage
	if cfg.MinIOHost != "" {
		storage = files.NewFileStorage(files.Config{
			Url:      cfg.MinIOHost,
			Login:    cfg.MinIOLogin,
			Password: cfg.MinIOPassword,
			Bucket:   cfg.MinIOBucket,
		})
	}
	var archiver *archive.Archiver
	if storage != nil || cfg.RetainDir != "" {
		archiver = archive.New(storage, cfg.RetainDir)
	}

	listener, err := rabbitmq.NewRabbitMQHandler(rabbitmq.RabbitMqHandlerConfig{
		Login:    cfg.RabbitMQUser,
		Password: cfg.RabbitMQPassword,
		Host:     cfg.RabbitMQHost,
		Port:     cfg.RabbitMQPort,
	}, sup, archiver)
	panicErr(err)
	panicErr(listener.Start())
	slog.Info("app started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	listener.Close()
}
