package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/FLG2005/todo-api/internal/auth"
	"github.com/FLG2005/todo-api/internal/cache"
	"github.com/FLG2005/todo-api/internal/catalog"
	"github.com/FLG2005/todo-api/internal/config"
	"github.com/FLG2005/todo-api/internal/db"
	api "github.com/FLG2005/todo-api/internal/http"
	"github.com/FLG2005/todo-api/internal/repo"
	"github.com/FLG2005/todo-api/internal/service"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect db: %v", err)
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, cfg.MigrationsDir); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		cat, err = catalog.Load(cfg.CatalogPath)
		if err != nil {
			log.Fatalf("failed to load catalog: %v", err)
		}
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatalf("invalid TIMEZONE %q: %v", cfg.Timezone, err)
	}

	snapshots, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	if snapshots != nil {
		defer snapshots.Close()
		log.Printf("snapshot cache enabled at %s", cfg.RedisAddr)
	}

	authManager := auth.NewManager(cfg.JWTSecret)
	repository := repo.New(pool)
	svc := service.New(repository, authManager, cat, snapshots, loc)

	handler := &api.API{
		Repo:    repository,
		Service: svc,
		Auth:    authManager,
		Catalog: cat,
		Origins: []string{cfg.CORSOrigin},
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
}
