package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/viniciushammett/go-weblog-analyzer/internal/api"
	"github.com/viniciushammett/go-weblog-analyzer/internal/auth"
	"github.com/viniciushammett/go-weblog-analyzer/internal/config"
	"github.com/viniciushammett/go-weblog-analyzer/internal/detector"
	"github.com/viniciushammett/go-weblog-analyzer/internal/ingest"
	"github.com/viniciushammett/go-weblog-analyzer/internal/logger"
	"github.com/viniciushammett/go-weblog-analyzer/internal/metrics"
	"github.com/viniciushammett/go-weblog-analyzer/internal/ml"
	"github.com/viniciushammett/go-weblog-analyzer/internal/notify"
	"github.com/viniciushammett/go-weblog-analyzer/internal/store"
	"github.com/viniciushammett/go-weblog-analyzer/internal/tracing"
)

func main() {
	cfg, err := config.Load(env("CONFIG_PATH", "configs/config.yaml"))
	if err != nil {
		logger.New("info").Fatal().Err(err).Msg("load config")
	}
	log := logger.NewWithFile(cfg.Log.Level, logger.File{
		Path: cfg.Log.File, MaxSizeMB: cfg.Log.MaxSizeMB, MaxBackups: cfg.Log.MaxBackups, MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	metrics.MustRegister()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	closer, err := tracing.Init(ctx, tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  cfg.Tracing.ServiceName,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SampleRatio:  cfg.Tracing.SampleRatio,
	})
	if err != nil {
		log.Error().Err(err).Msg("tracing init failed")
		closer = func(context.Context) error { return nil }
	}
	defer func() { _ = closer(context.Background()) }()

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
		log.Fatal().Err(err).Msg("create storage dir")
	}
	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer db.Close()

	files, err := ingest.New(cfg.Upload.Dir, cfg.Upload.CacheTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("upload dir")
	}

	scorer := ml.NewScorer(ml.LoadResources(cfg.Model.Dir))

	notifier := notify.Multi{
		notify.NewSlack(cfg.Slack.Enabled, cfg.Slack.Webhook),
		notify.NewEmail(notify.EmailConfig{
			Enabled:  cfg.Mail.Enabled,
			Host:     cfg.Mail.SMTPServer,
			Port:     cfg.Mail.SMTPPort,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
			To:       cfg.Mail.AlertEmail,
		}),
	}

	det := detector.New(log, scorer, db, notifier)

	jwt, err := auth.NewJWT(cfg.JWT.Secret, cfg.JWT.TTL)
	if err != nil {
		log.Fatal().Err(err).Msg("jwt")
	}

	srv := api.NewServer(api.Deps{
		Log:      log,
		Store:    db,
		Files:    files,
		Detector: det,
		Users:    auth.NewUsers(db, jwt),
		Guard:    auth.Guard{JWT: jwt, Static: cfg.AuthToken},
	}, api.Config{
		Addr:           cfg.Server.Addr,
		CORSOrigins:    cfg.Server.CORSOrigins,
		ReadTimeout:    cfg.Server.ReadTimeout,
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
	})
	if err := srv.Run(ctx); err != nil {
		log.Error().Err(err).Msg("server stopped")
	}
}

func env(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
