package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tradersage/bastion/internal/config"
	"github.com/tradersage/bastion/internal/database"
	"github.com/tradersage/bastion/internal/logger"
	"github.com/tradersage/bastion/internal/server"
	"github.com/tradersage/bastion/internal/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init(true, os.Stdout)
		logger.Log().WithError(err).Fatal("load config")
	}

	// Structured logs go to stdout and a rotated file.
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		cfg.LogDir = filepath.Join("data", "logs")
		_ = os.MkdirAll(cfg.LogDir, 0o755)
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, "bastion.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	logger.Init(cfg.Environment == "development", io.MultiWriter(os.Stdout, rotator))

	log := logger.Log()
	log.WithField("version", version.Full()).Infof("starting %s", version.Name)

	if cfg.Security.JWTSecret == "" {
		// Sessions issued before a restart will not survive it.
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			log.WithError(err).Fatal("generate session secret")
		}
		cfg.Security.JWTSecret = hex.EncodeToString(buf)
		log.Warn("BASTION_JWT_SECRET not set, generated an ephemeral secret")
	}

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}

	srv, err := server.New(db, cfg)
	if err != nil {
		log.WithError(err).Fatal("build server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithField("port", cfg.HTTPPort).Info("listening")
	if err := srv.Run(ctx); err != nil {
		log.WithError(err).Fatal("server error")
	}
	log.Info("shutdown complete")
}
