// The auth-service owns identities, credentials, and token issuance. It is
// the only service holding the refresh and reset signing keys.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/ksbk/notehub/auth"
	"github.com/ksbk/notehub/blob"
	"github.com/ksbk/notehub/config"
	"github.com/ksbk/notehub/middleware/jwtware"
	"github.com/ksbk/notehub/zaplog"
)

const usersSchema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	phone TEXT,
	password_hash TEXT NOT NULL,
	user_role TEXT NOT NULL DEFAULT 'user',
	avatar_url TEXT,
	refresh_token TEXT,
	refresh_token_expiry TIMESTAMP,
	reset_token TEXT,
	reset_token_expiry TIMESTAMP,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG"), "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath, ":8080")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := zaplog.New("auth-service")
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	if cfg.Debug {
		fmt.Println("============")
		fmt.Println(print.MaybePrettyJSON(cfg))
		fmt.Println("============")
	}

	ctx := context.Background()

	db, err := openDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	repo := auth.NewRepositoryManager(db)
	repo.MustValidate()

	auther := auth.NewAuthenticator(repo, &cfg.Auth).
		WithLogger(logger).
		WithMailer(auth.NewSMTPMailer(cfg.SMTP).WithLogger(logger)).
		WithResetLinkBase(cfg.Auth.ResetLinkBase)

	profiles := auth.NewProfileService(repo, mustBlobStore(ctx, cfg, logger)).
		WithLogger(logger)

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			AppName:           "auth-service",
			EnablePrintRoutes: cfg.Debug,
		}))
	})

	r := srv.Router()

	r.Get("/healthz", func(ctx router.Context) error {
		return ctx.JSON(router.StatusOK, router.ViewContext{"status": "ok"})
	})

	auth.RegisterAuthRoutes(r.Group("/"),
		auth.WithControllerAuther(auther),
		auth.WithControllerLogger(logger),
		auth.WithControllerDebug(cfg.Debug),
	)

	gate := jwtware.New(jwtware.Config{
		TokenValidator: auth.NewGateValidator(auther.TokenIssuer()),
		ContextKey:     cfg.Auth.GetContextKey(),
		TokenLookup:    cfg.Auth.GetTokenLookup(),
		AuthScheme:     cfg.Auth.GetAuthScheme(),
	})
	r.Use(gate)

	auth.RegisterProfileRoutes(r.Group("/"),
		auth.WithProfileService(profiles),
		auth.WithProfileLogger(logger),
		auth.WithProfileContextKey(cfg.Auth.GetContextKey()),
	)

	logger.Info("auth-service listening", "addr", cfg.Server.Addr)
	srv.Serve(cfg.Server.Addr)

	sig := waitExitSignal()
	logger.Info("shutting down", "signal", sig.String())
}

func openDB(ctx context.Context, dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if _, err := db.ExecContext(ctx, usersSchema); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func mustBlobStore(ctx context.Context, cfg *config.AppConfig, logger *zaplog.Logger) auth.BlobStore {
	if cfg.Blob.BaseEndpoint == "" && cfg.Blob.AccessKey == "" {
		logger.Warn("blob storage not configured, avatar support disabled")
		return nil
	}

	store, err := blob.NewS3Store(ctx, cfg.Blob)
	if err != nil {
		log.Fatalf("init blob store: %v", err)
	}
	return store
}

func waitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
