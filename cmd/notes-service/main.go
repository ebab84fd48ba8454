// The notes-service owns note content. It trusts access tokens minted by the
// auth-service: provisioning it with the shared access signing key is the
// whole of the cross-service trust setup. It never sees credentials, refresh
// tokens, or the identity store.
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
	"github.com/ksbk/notehub/config"
	"github.com/ksbk/notehub/middleware/jwtware"
	"github.com/ksbk/notehub/notes"
	"github.com/ksbk/notehub/zaplog"
)

const notesSchema = `
CREATE TABLE IF NOT EXISTS notes (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	title TEXT NOT NULL,
	content TEXT,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_notes_owner ON notes (owner_id);`

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG"), "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath, ":8081")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := zaplog.New("notes-service")
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

	service := notes.NewService(notes.NewNotesRepository(db)).
		WithLogger(logger)

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			AppName:           "notes-service",
			EnablePrintRoutes: cfg.Debug,
		}))
	})

	r := srv.Router()

	r.Get("/healthz", func(ctx router.Context) error {
		return ctx.JSON(router.StatusOK, router.ViewContext{"status": "ok"})
	})

	// only the access key crosses the service boundary
	gate := jwtware.New(jwtware.Config{
		TokenValidator: auth.NewGateValidatorFromConfig(&cfg.Auth),
		ContextKey:     cfg.Auth.GetContextKey(),
		TokenLookup:    cfg.Auth.GetTokenLookup(),
		AuthScheme:     cfg.Auth.GetAuthScheme(),
	})
	r.Use(gate)

	notes.RegisterNotesRoutes(r.Group("/"),
		notes.WithControllerService(service),
		notes.WithControllerLogger(logger),
		notes.WithControllerContextKey(cfg.Auth.GetContextKey()),
	)

	logger.Info("notes-service listening", "addr", cfg.Server.Addr)
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
	if _, err := db.ExecContext(ctx, notesSchema); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
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
