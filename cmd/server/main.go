// Command server runs the videotube document API.
//
// Configuration comes from the environment (optionally a .env file); see
// internal/config for every variable. The minimum is:
//
//	JWT_SECRET=$(openssl rand -hex 32) go run ./cmd/server
package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sakif/videotube/internal/cache"
	"github.com/sakif/videotube/internal/config"
	"github.com/sakif/videotube/internal/repository"
	"github.com/sakif/videotube/internal/repository/cached"
	"github.com/sakif/videotube/internal/repository/sqlite"
	"github.com/sakif/videotube/internal/schema"
	"github.com/sakif/videotube/internal/server"
	"github.com/sakif/videotube/internal/store"
	"github.com/sakif/videotube/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	log, err := logger.New(cfg.App.LogLevel, os.Stdout)
	if err != nil {
		logrus.WithError(err).Fatal("invalid LOG_LEVEL")
	}

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	engine, err := openEngine(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}

	st := store.New(engine, log)

	srv, err := server.New(cfg, st, nil, log)
	if err != nil {
		st.Close()
		log.WithError(err).Fatal("failed to create server")
	}

	// Start blocks until SIGINT/SIGTERM and closes the store on the way out.
	if err := srv.Start(); err != nil {
		log.WithError(err).Fatal("server error")
	}
}

// openEngine opens SQLite and, when REDIS_ENABLED is set, puts the Redis
// read-through cache in front of it. An unreachable Redis is logged and
// skipped; the database alone is enough to serve.
func openEngine(cfg *config.Config, log *logrus.Logger) (repository.Engine, error) {
	if cfg.Database.Path != ":memory:" {
		dir := filepath.Dir(cfg.Database.Path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sqlite.New(cfg.Database.Path, schema.Collections(), schema.UniqueIndexes()...)
	if err != nil {
		return nil, err
	}

	if !cfg.Redis.Enabled {
		return db, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rc, err := cache.NewRedisCache(ctx, cache.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		log.WithError(err).WithField("addr", cfg.Redis.Addr()).Warn("redis unavailable, serving without cache")
		return db, nil
	}

	log.WithField("addr", cfg.Redis.Addr()).Info("document cache enabled")
	return cached.New(db, rc, cfg.Redis.KeyPrefix, cfg.Redis.CacheTTL, log), nil
}
