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

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/civic-incident-reporting/internal/auth"
	"github.com/iliyamo/civic-incident-reporting/internal/config"
	"github.com/iliyamo/civic-incident-reporting/internal/database"
	"github.com/iliyamo/civic-incident-reporting/internal/handler"
	"github.com/iliyamo/civic-incident-reporting/internal/logger"
	"github.com/iliyamo/civic-incident-reporting/internal/mailer"
	"github.com/iliyamo/civic-incident-reporting/internal/metrics"
	"github.com/iliyamo/civic-incident-reporting/internal/middleware"
	"github.com/iliyamo/civic-incident-reporting/internal/queue"
	"github.com/iliyamo/civic-incident-reporting/internal/repository"
	"github.com/iliyamo/civic-incident-reporting/internal/router"
	"github.com/iliyamo/civic-incident-reporting/internal/service"
	"github.com/iliyamo/civic-incident-reporting/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger is not configured yet
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = zl.Sync() }()
	log := zl.Sugar()

	if err := run(cfg, log); err != nil {
		log.Fatalw("server stopped", "error", err)
	}
}

func run(cfg config.Config, log *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dsn := database.DSN(cfg.DB.User, cfg.DB.Pass, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name)
	if cfg.AutoMigrate {
		if err := database.Migrate(dsn); err != nil {
			return err
		}
		log.Infow("migrations applied")
	}
	db, err := database.Open(dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	rdb, err := config.NewRedisClient()
	if err != nil {
		return err
	}
	if rdb == nil {
		log.Warnw("redis unavailable, using in-process rate limiting and no response cache")
	} else {
		defer rdb.Close()
	}
	rlCfg, err := config.LoadRateLimitConfig()
	if err != nil {
		return err
	}
	cacheCfg, err := config.LoadCacheConfig()
	if err != nil {
		return err
	}

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:     []byte(cfg.Token.Secret),
		Issuer:     cfg.Token.Issuer,
		AccessTTL:  cfg.Token.AccessTTL,
		RefreshTTL: cfg.Token.RefreshTTL,
		ResetTTL:   cfg.Token.ResetTTL,
	})
	if err != nil {
		return err
	}
	creds, err := auth.NewCredentials(cfg.Token.BcryptCost)
	if err != nil {
		return err
	}

	files, err := storage.NewLocal(cfg.UploadDir, "/uploads")
	if err != nil {
		return err
	}

	sender := mailer.New(cfg.SMTP, log)
	var notifier service.Notifier = service.NotifierFunc(sender.Send)
	if cfg.AMQP.URL != "" {
		pub := queue.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Queue, log)
		defer pub.Close()
		notifier = pub

		consumer := &queue.Consumer{URL: cfg.AMQP.URL, Queue: cfg.AMQP.Queue, Sender: sender, Log: log}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Errorw("notification consumer stopped", "error", err)
			}
		}()
		log.Infow("notifications routed through rabbitmq", "queue", cfg.AMQP.Queue)
	}

	users := repository.NewUserRepo(db)
	incidents := repository.NewIncidentRepo(db)
	comments := repository.NewCommentRepo(db)
	media := repository.NewMediaRepo(db)

	accounts := service.NewAccountService(users, creds, tokens, notifier, cfg.BaseURL, log)
	incidentSvc := service.NewIncidentService(incidents, comments, media, users, files, notifier, log)
	ledger := service.NewLedgerService(users, log)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log))
	e.Use(metrics.Middleware())
	e.Static("/uploads", cfg.UploadDir)

	router.RegisterRoutes(e, handler.Health(db))
	router.RegisterAPI(e, router.Handlers{
		Auth:      handler.NewAuthHandler(accounts, log),
		Incidents: handler.NewIncidentHandler(incidentSvc, log),
		Users:     handler.NewUserHandler(ledger, log),
	}, router.Guards{
		Authenticator: accounts,
		RateLimit:     middleware.NewTokenBucket(rlCfg, rdb, log),
		Cache:         middleware.NewRedisCache(cacheCfg, rdb, log),
		MaxUpload:     cfg.MaxUpload,
	})

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.Infow("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
