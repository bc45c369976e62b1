// Command seedadmin creates the first administrator account. It refuses to
// run once any admin exists.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/iliyamo/civic-incident-reporting/internal/auth"
	"github.com/iliyamo/civic-incident-reporting/internal/config"
	"github.com/iliyamo/civic-incident-reporting/internal/database"
	"github.com/iliyamo/civic-incident-reporting/internal/logger"
	"github.com/iliyamo/civic-incident-reporting/internal/mailer"
	"github.com/iliyamo/civic-incident-reporting/internal/repository"
	"github.com/iliyamo/civic-incident-reporting/internal/service"
)

func main() {
	var in service.SignupInput
	flag.StringVar(&in.Name, "name", envOr("ADMIN_NAME", "Administrator"), "admin display name")
	flag.StringVar(&in.Email, "email", os.Getenv("ADMIN_EMAIL"), "admin email")
	flag.StringVar(&in.Phone, "phone", os.Getenv("ADMIN_PHONE"), "admin phone")
	flag.StringVar(&in.Password, "password", os.Getenv("ADMIN_PASSWORD"), "admin password")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
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

	dsn := database.DSN(cfg.DB.User, cfg.DB.Pass, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name)
	if cfg.AutoMigrate {
		if err := database.Migrate(dsn); err != nil {
			log.Fatalw("migrate", "error", err)
		}
	}
	db, err := database.Open(dsn)
	if err != nil {
		log.Fatalw("open database", "error", err)
	}
	defer db.Close()

	creds, err := auth.NewCredentials(cfg.Token.BcryptCost)
	if err != nil {
		log.Fatalw("credentials", "error", err)
	}
	tokens, err := auth.NewTokenService(auth.TokenConfig{Secret: []byte(cfg.Token.Secret), Issuer: cfg.Token.Issuer})
	if err != nil {
		log.Fatalw("tokens", "error", err)
	}
	notifier := service.NotifierFunc(mailer.New(cfg.SMTP, log).Send)
	accounts := service.NewAccountService(repository.NewUserRepo(db), creds, tokens, notifier, cfg.BaseURL, log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	u, err := accounts.SeedAdmin(ctx, in)
	switch {
	case errors.Is(err, service.ErrAdminExists):
		log.Warnw("admin already exists, nothing to do")
	case err != nil:
		log.Fatalw("seed admin", "error", err)
	default:
		log.Infow("admin created", "id", u.ID, "email", u.Email)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
