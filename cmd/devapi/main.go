package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"boardsync/internal/auth"
	"boardsync/internal/idempotency"
	"boardsync/internal/server"
	"boardsync/internal/storage/sqlite"
	"boardsync/internal/util"
)

func main() {
	addrFlag := flag.String("addr", util.EnvOrDefault("DEVAPI_ADDR", ":8080"), "HTTP listen address")
	dbFlag := flag.String("db", util.EnvOrDefault("DEVAPI_DB_PATH", "data/devapi.db"), "Path to sqlite database file")
	secretFlag := flag.String("jwt-secret", util.EnvOrDefault("DEVAPI_JWT_SECRET", ""), "HS256 secret for bearer tokens")
	redisFlag := flag.String("redis", util.EnvOrDefault("DEVAPI_REDIS_URL", ""), "Redis URL for idempotency keys; empty keeps them in memory")
	seedFlag := flag.String("seed-user", "", "Create this user if missing and log a token for it")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ttl, err := util.EnvDuration("DEVAPI_DEDUPE_TTL", 24*time.Hour)
	if err != nil {
		logger.Error("invalid dedupe ttl", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if *secretFlag == "" {
		logger.Error("jwt secret is required (DEVAPI_JWT_SECRET)")
		os.Exit(1)
	}

	store, err := sqlite.Open(*dbFlag, logger)
	if err != nil {
		logger.Error("unable to open database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	var dedupe idempotency.Deduper = idempotency.NewMemoryDeduper(ttl)
	if *redisFlag != "" {
		opts, err := redis.ParseURL(*redisFlag)
		if err != nil {
			logger.Error("invalid redis url", slog.String("error", err.Error()))
			os.Exit(1)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		dedupe = idempotency.NewRedisDeduper(rdb, ttl)
	}

	if *seedFlag != "" {
		if err := seed(context.Background(), store, []byte(*secretFlag), *seedFlag, logger); err != nil {
			logger.Error("seed failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	srv := server.New(store, auth.NewVerifier([]byte(*secretFlag)), dedupe, logger)

	httpServer := &http.Server{
		Addr:    *addrFlag,
		Handler: srv.Engine(),
	}

	go func() {
		logger.Info("starting server", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped unexpectedly", slog.String("error", err.Error()))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown server", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}

func seed(ctx context.Context, store *sqlite.Store, secret []byte, username string, logger *slog.Logger) error {
	user, err := store.UserByName(ctx, username)
	if errors.Is(err, sqlite.ErrNotFound) {
		user, err = store.CreateUser(ctx, username, "user")
	}
	if err != nil {
		return err
	}
	projects, err := store.ListProjects(ctx, user.ID)
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		p, err := store.CreateProject(ctx, user.ID, "Demo", "seeded board", nil)
		if err != nil {
			return err
		}
		projects = append(projects, p)
	}
	token, err := auth.MintDevToken(secret, user.ID, 30*24*time.Hour)
	if err != nil {
		return err
	}
	logger.Info("seeded user",
		slog.Int64("id", user.ID),
		slog.String("username", user.Username),
		slog.Int64("project", projects[0].ID),
		slog.String("token", token))
	return nil
}
