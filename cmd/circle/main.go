package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	v1 "github.com/Behappytocode/circle/cmd/circle/router/v1"
	blobadapter "github.com/Behappytocode/circle/internal/infrastructure/blob/adapter"
	cacheadapter "github.com/Behappytocode/circle/internal/infrastructure/cache/adapter"
	cacheport "github.com/Behappytocode/circle/internal/infrastructure/cache/port"
	"github.com/Behappytocode/circle/internal/infrastructure/database"
	"github.com/Behappytocode/circle/internal/infrastructure/feed"
	queueadapter "github.com/Behappytocode/circle/internal/infrastructure/queue/adapter"
	"github.com/Behappytocode/circle/internal/pkg/circle/application/roster"
	"github.com/Behappytocode/circle/internal/pkg/circle/application/upload"
	repoadapter "github.com/Behappytocode/circle/internal/pkg/circle/persistence/repository/adapter"
	httpHandler "github.com/Behappytocode/circle/internal/pkg/circle/presentation/http"
)

func main() {
	// .env is optional; containers get their env from the orchestrator.
	_ = godotenv.Load()

	log, err := newLogger()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := database.NewPoolFromEnv(connectCtx)
	cancel()
	if err != nil {
		if errors.Is(err, database.ErrNotConfigured) {
			// First run without credentials: serve the setup responder
			// instead of crashing so the client can show its setup view.
			runUnconfigured(ctx, log)
			return
		}
		log.Fatal("database connect failed", zap.Error(err))
	}
	defer pool.Close()

	// Cache is optional; without redis the gate loses its stale fallback
	// and sessions fall back to the in-memory store.
	var cache cacheport.Cache
	redisCache, err := cacheadapter.NewRedisAdapter()
	if err != nil {
		log.Warn("redis unavailable, using in-memory cache", zap.Error(err))
		cache = cacheadapter.NewMemCache()
	} else {
		cache = redisCache
		defer redisCache.Close()
	}

	hub := feed.NewHub(log)
	defer hub.Close()

	var bridge *feed.RedisBridge
	if redisCache != nil {
		bridge = feed.NewRedisBridge(redisCache.Client(), hub, log)
		go func() {
			if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error("feed bridge stopped", zap.Error(err))
			}
		}()
	}
	// CIRCLE_FEED=redis runs a relay-only node that receives events from
	// a peer's listener instead of holding its own LISTEN connection.
	if os.Getenv("CIRCLE_FEED") != "redis" {
		listener := feed.NewPgListener(pool, hub, bridge, log)
		go func() {
			if err := listener.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error("feed listener stopped", zap.Error(err))
			}
		}()
	} else if bridge == nil {
		log.Fatal("CIRCLE_FEED=redis requires REDIS_URL")
	}

	store := repoadapter.NewPgDataStore(pool)
	auth := repoadapter.NewPgAuth(pool, cache)

	blobStore, err := blobadapter.OpenCloudStore(ctx, bucketConfigsFromEnv())
	if err != nil {
		log.Fatal("blob store open failed", zap.Error(err))
	}
	defer blobStore.Close()
	uploader := upload.New(blobStore, log)

	// The task queue handles admin maintenance; messaging never touches
	// it. Without redis the purge endpoint reports unavailable.
	var rosterSvc *roster.Roster
	queueClient, err := queueadapter.NewAsynqClientFromEnv()
	if err != nil {
		log.Warn("task queue unavailable, admin purge disabled", zap.Error(err))
		rosterSvc = roster.New(store, nil, log)
	} else {
		defer queueClient.Close()
		rosterSvc = roster.New(store, queueClient, log)

		worker, err := queueadapter.NewAsynqServer(log)
		if err != nil {
			log.Fatal("task worker init failed", zap.Error(err))
		}
		roster.RegisterPurgeAccountTask(worker, store, log)
		go func() {
			if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error("task worker stopped", zap.Error(err))
			}
		}()
	}

	r := gin.Default()
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	v1.RegisterRoutes(r, httpHandler.Deps{
		Store:    store,
		Auth:     auth,
		Feed:     hub,
		Cache:    cache,
		Uploader: uploader,
		Roster:   rosterSvc,
		Log:      log,
	})

	serve(ctx, log, r)
}

func newLogger() (*zap.Logger, error) {
	if os.Getenv("CIRCLE_ENV") == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// bucketConfigsFromEnv maps the logical attachment buckets to gocloud
// URLs. Defaults keep a fresh checkout working without object storage.
func bucketConfigsFromEnv() map[string]blobadapter.BucketConfig {
	base := os.Getenv("CIRCLE_MEDIA_BASE_URL")
	cfg := func(urlEnv, fallback, bucket string) blobadapter.BucketConfig {
		url := os.Getenv(urlEnv)
		if url == "" {
			url = fallback
		}
		public := ""
		if base != "" {
			public = base + "/" + bucket
		}
		return blobadapter.BucketConfig{URL: url, PublicBase: public}
	}
	return map[string]blobadapter.BucketConfig{
		upload.BucketImages: cfg("BLOB_IMAGES_URL", "mem://images", upload.BucketImages),
		upload.BucketVoice:  cfg("BLOB_VOICE_URL", "mem://voice-notes", upload.BucketVoice),
	}
}

// runUnconfigured answers every route with the setup state until the
// process restarts with a database URL.
func runUnconfigured(ctx context.Context, log *zap.Logger) {
	log.Warn("CIRCLE_DB_URL is not set, serving setup responder")
	r := gin.Default()
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unconfigured"})
	})
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "unconfigured"})
	})
	serve(ctx, log, r)
}

func serve(ctx context.Context, log *zap.Logger, handler http.Handler) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{Addr: ":" + port, Handler: handler}

	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown incomplete", zap.Error(err))
	}
	log.Info("bye")
}
