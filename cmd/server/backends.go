package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/geoimport/internal/config"
	"github.com/JonMunkholm/geoimport/internal/core"
	"github.com/JonMunkholm/geoimport/internal/database"
	"github.com/JonMunkholm/geoimport/internal/lock"
	"github.com/JonMunkholm/geoimport/internal/storage"
	"github.com/JonMunkholm/geoimport/internal/tasks"
	"github.com/JonMunkholm/geoimport/internal/web"
)

// backends are the collaborators selected by configuration.
type backends struct {
	repo      core.Repository
	resources core.ResourceManager
	catalog   web.Catalog
	imports   core.ImportStore
	locker    core.Locker
	runner    core.TaskRunner
	files     storage.Store

	closers []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// build connects every configured backend. On error, whatever was already
// opened is closed.
func build(ctx context.Context, cfg *config.Config) (*backends, error) {
	b := &backends{}
	for _, step := range []func(context.Context, *config.Config) error{
		b.buildStore,
		b.buildLocker,
		b.buildRunner,
		b.buildFiles,
	} {
		if err := step(ctx, cfg); err != nil {
			b.close()
			return nil, err
		}
	}
	return b, nil
}

func (b *backends) buildStore(ctx context.Context, cfg *config.Config) error {
	if cfg.Database.InMemory() {
		mem := core.NewMemoryStore()
		b.repo, b.resources, b.catalog, b.imports = mem, mem, mem, mem
		slog.Warn("using in-memory store, data is lost on restart")
		return nil
	}

	pool, err := database.Connect(ctx, database.PoolConfig{
		URL:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		return err
	}
	b.closers = append(b.closers, pool.Close)

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		slog.Info("database schema applied")
	}

	store := database.NewStore(pool)
	b.repo, b.resources, b.catalog, b.imports = store, store, store, store
	slog.Info("connected to database", "max_conns", cfg.Database.MaxConns)
	return nil
}

func (b *backends) buildLocker(ctx context.Context, cfg *config.Config) error {
	switch strings.ToLower(cfg.Lock.Backend) {
	case "redis":
		rdb, err := lock.Dial(ctx, cfg.Lock.RedisAddr)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, func() { _ = rdb.Close() })
		b.locker = lock.NewRedis(rdb, lock.RedisOptions{
			Prefix:  cfg.Lock.Prefix,
			TTL:     cfg.Lock.TTL,
			MaxWait: cfg.Lock.MaxWait,
		})
		slog.Info("using redis resource locks", "addr", cfg.Lock.RedisAddr)
	default:
		b.locker = lock.NewKeyed()
	}
	return nil
}

func (b *backends) buildRunner(ctx context.Context, cfg *config.Config) error {
	switch strings.ToLower(cfg.Tasks.Backend) {
	case "temporal":
		t, err := tasks.DialTemporal(ctx, tasks.TemporalConfig{
			Address:   cfg.Tasks.TemporalAddress,
			Namespace: cfg.Tasks.TemporalNamespace,
			TaskQueue: cfg.Tasks.TemporalTaskQueue,
		})
		if err != nil {
			return err
		}
		b.closers = append(b.closers, t.Close)
		b.runner = t
		slog.Info("submitting tasks to temporal",
			"address", cfg.Tasks.TemporalAddress,
			"task_queue", cfg.Tasks.TemporalTaskQueue,
		)
	default:
		b.runner = tasks.NewInline()
	}
	return nil
}

func (b *backends) buildFiles(ctx context.Context, cfg *config.Config) error {
	switch strings.ToLower(cfg.Storage.Backend) {
	case "minio":
		m, err := storage.NewMinIO(ctx, storage.MinIOConfig{
			EndpointURL:     cfg.Storage.MinIOEndpoint,
			AccessKeyID:     cfg.Storage.MinIOAccessKey,
			SecretAccessKey: cfg.Storage.MinIOSecretKey,
			Bucket:          cfg.Storage.MinIOBucket,
			Region:          cfg.Storage.MinIORegion,
			UseSSL:          cfg.Storage.MinIOUseSSL,
		})
		if err != nil {
			return err
		}
		b.files = m
		slog.Info("storing uploads in object storage", "bucket", cfg.Storage.MinIOBucket)
	default:
		l, err := storage.NewLocal(cfg.Storage.LocalRoot)
		if err != nil {
			return err
		}
		b.files = l
		slog.Info("storing uploads locally", "root", l.Root())
	}
	return nil
}
