package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vbonduro/showroom/internal/blobstore"
	"github.com/vbonduro/showroom/internal/blobstore/local"
	"github.com/vbonduro/showroom/internal/blobstore/s3"
	"github.com/vbonduro/showroom/internal/cache"
	"github.com/vbonduro/showroom/internal/cache/lru"
	"github.com/vbonduro/showroom/internal/cache/memory"
	cachesqlite "github.com/vbonduro/showroom/internal/cache/sqlite"
	"github.com/vbonduro/showroom/internal/config"
	"github.com/vbonduro/showroom/internal/db"
	"github.com/vbonduro/showroom/internal/inventory"
	"github.com/vbonduro/showroom/internal/inventory/feed"
	"github.com/vbonduro/showroom/internal/logging"
	"github.com/vbonduro/showroom/internal/metrics"
	"github.com/vbonduro/showroom/internal/store"
)

// app holds the components shared by the subcommands. The caller must defer
// Close.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	database   *sql.DB
	cache      cache.Store
	blobs      blobstore.BlobStore
	mediaStore *store.MediaStore
	syncer     *inventory.Syncer
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	cleanup    func()
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger, cleanup, err := logging.New("showroom", cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Printf("failed to initialize logger: %v", err)
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, cleanup: cleanup}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context) error {
	var err error
	if a.cfg.TestMode {
		a.logger.Warn("test mode: using an ephemeral in-memory database")
		a.database, err = db.OpenForTesting()
	} else {
		a.database, err = db.Open(a.cfg.DBPath)
	}
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	a.cache, err = a.newCache()
	if err != nil {
		return err
	}

	a.blobs, err = a.newBlobStore(ctx)
	if err != nil {
		return err
	}

	a.registry = prometheus.NewRegistry()
	a.metrics, err = metrics.New(a.registry)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	a.mediaStore = store.NewMediaStore(a.database)
	a.syncer = inventory.NewSyncer(a.newFeed(), a.mediaStore, a.cache, inventory.Options{
		TTL:            a.cfg.InventoryTTL,
		RefreshTimeout: a.cfg.InventoryRefreshTimeout,
		Metrics:        a.metrics,
		Logger:         a.logger,
	})
	return nil
}

func (a *app) newCache() (cache.Store, error) {
	var backing cache.Store
	switch a.cfg.CacheBackend {
	case "memory":
		a.logger.Info("using in-memory cache")
		backing = memory.NewMemoryStore()
	default:
		a.logger.Info("using sqlite cache", "timeout", a.cfg.CacheTimeout)
		backing = cachesqlite.NewSQLiteStore(a.database, a.cfg.CacheTimeout)
	}

	if a.cfg.CacheLRUSize == 0 {
		return backing, nil
	}
	front, err := lru.New(backing, a.cfg.CacheLRUSize)
	if err != nil {
		return nil, fmt.Errorf("creating lru cache: %w", err)
	}
	return front, nil
}

func (a *app) newBlobStore(ctx context.Context) (blobstore.BlobStore, error) {
	switch a.cfg.BlobBackend {
	case "s3":
		a.logger.Info("using s3 blob store", "bucket", a.cfg.S3Bucket, "region", a.cfg.S3Region)
		bs, err := s3.NewS3BlobStore(ctx, s3.Options{
			Bucket:    a.cfg.S3Bucket,
			Region:    a.cfg.S3Region,
			Endpoint:  a.cfg.S3Endpoint,
			AccessKey: a.cfg.S3AccessKey,
			SecretKey: a.cfg.S3SecretKey,
			PublicURL: a.cfg.BlobPublicURL,
		})
		if err != nil {
			return nil, fmt.Errorf("initializing s3 blob store: %w", err)
		}
		return bs, nil
	default:
		a.logger.Info("using local blob store", "path", a.cfg.BlobLocalPath)
		bs, err := local.NewLocalBlobStore(a.cfg.BlobLocalPath, a.cfg.BlobPublicURL)
		if err != nil {
			return nil, fmt.Errorf("initializing local blob store: %w", err)
		}
		return bs, nil
	}
}

func (a *app) newFeed() inventory.Feed {
	if a.cfg.FeedURL != "" {
		a.logger.Info("using http inventory feed", "url", a.cfg.FeedURL)
		return feed.NewHTTPFeed(a.cfg.FeedURL, &http.Client{Timeout: a.cfg.InventoryRefreshTimeout + 5*time.Second})
	}
	a.logger.Info("using file inventory feed", "path", a.cfg.FeedFile)
	return feed.NewFileFeed(a.cfg.FeedFile)
}

func (a *app) Close() {
	if a.database != nil {
		if err := a.database.Close(); err != nil {
			a.logger.Error("failed to close database", "error", err)
		}
	}
	if a.cleanup != nil {
		a.cleanup()
	}
}
