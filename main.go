package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apirest "github.com/ventwave/ventboard/api/rest"
	"github.com/ventwave/ventboard/api/sse"
	"github.com/ventwave/ventboard/audit"
	"github.com/ventwave/ventboard/cache"
	"github.com/ventwave/ventboard/config"
	dbadapter "github.com/ventwave/ventboard/db"
	"github.com/ventwave/ventboard/metrics"
	mw "github.com/ventwave/ventboard/middleware"
	"github.com/ventwave/ventboard/model"
	"github.com/ventwave/ventboard/plugin/hook"
	"github.com/ventwave/ventboard/resource"
	"github.com/ventwave/ventboard/scheduler"
	"github.com/ventwave/ventboard/vent/account"
	"github.com/ventwave/ventboard/vent/cosmetics"
	"github.com/ventwave/ventboard/vent/ledger"
	"github.com/ventwave/ventboard/vent/rant"
	"github.com/ventwave/ventboard/vent/reaction"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	if cfg.Security.JWTSecret == "" {
		log.Fatalf("security.jwt_secret is required")
	}
	// Warn loudly if admin endpoints will be disabled.
	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized", zap.String("mode", cfg.Database.Mode))

	// ---- Audit ----
	journal := audit.New(db, cfg.Audit.BufferSize, logger)
	defer journal.Stop(context.Background())

	// ---- Cache / PubSub ----
	cacheConfig := cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	}
	c, err := cache.NewCache(cacheConfig)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	pubsub, err := cache.NewPubSub(cacheConfig)
	if err != nil {
		log.Fatalf("pubsub: %v", err)
	}
	logger.Info("Cache initialized", zap.Bool("redis", cfg.Cache.RedisAddr != ""))

	// ---- Services ----
	hooks := hook.NewHookCenter(logger)
	l := ledger.New(db, cfg.Rewards, journal, logger)
	accounts := account.New(db, int64(cfg.Rewards.StarterBalance), journal, logger)
	google := account.NewGoogle(cfg.OAuth)
	if google == nil {
		logger.Info("Google sign-in disabled")
	}
	rants := rant.New(db, l, hooks, cfg.Feed, logger)
	trending := rant.NewTrending(db, c, rants, cfg.Feed, logger)
	reactions := reaction.New(db, l, hooks, logger)
	catalog := cosmetics.NewCatalog(db, c, logger)
	store := cosmetics.NewStore(db, catalog, journal, logger)
	sseH := sse.NewHandler(pubsub, logger)

	trending.RegisterHooks(hooks)
	sseH.RegisterHooks(hooks)
	if n := rant.RegisterWordFilter(hooks, cfg.Feed.BlockedWords); n > 0 {
		logger.Info("Word filter enabled", zap.Int("words", n))
	}

	// ---- Store catalog ----
	if cfg.Server.SeedCatalog {
		res := resource.NewLoader(cfg.Server.DataPath)
		if err := res.Load(); err != nil {
			log.Fatalf("catalog: %v", err)
		}
		n, err := catalog.Seed(context.Background(), res.Items)
		if err != nil {
			log.Fatalf("catalog seed: %v", err)
		}
		logger.Info("Store catalog seeded", zap.Int("items", n), zap.String("source", res.Source))
	}

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()

	sched.AddTicker("trending_rebuild", cfg.Feed.TrendingRefresh, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Feed.TrendingRefresh)
		defer cancel()
		if n, err := trending.Rebuild(ctx); err != nil {
			logger.Warn("trending rebuild failed", zap.Error(err))
		} else {
			logger.Debug("trending rebuilt", zap.Int("rants", n))
		}
	})
	if err := sched.AddCron("journal_prune", cfg.Audit.PruneCron, func() {
		n, err := journal.Prune(context.Background(), cfg.Audit.Retention)
		if err != nil {
			logger.Warn("journal prune failed", zap.Error(err))
			return
		}
		logger.Info("journal pruned", zap.Int64("rows", n))
	}); err != nil {
		log.Fatalf("scheduler: %v", err)
	}
	sched.RunNow("trending_rebuild")

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger), metrics.Middleware())
	r.Use(mw.CORS(cfg.Server.ClientOrigin))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	// Health check
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// ---- REST API routes ----
	authH := apirest.NewAuthHandler(accounts, google, c, cfg.Security, cfg.Server.ClientOrigin, logger)
	rantH := apirest.NewRantHandler(rants, trending, reactions)
	storeH := apirest.NewStoreHandler(catalog, store)
	adminH := apirest.NewAdminHandler(db, catalog, l, journal, sched, sseH, cfg.Server.DataPath, logger)

	auth := mw.Auth(cfg.Security, c)
	optional := mw.OptionalAuth(cfg.Security, c)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/register", authH.Register)
		authG.POST("/login", authH.Login)
		authG.POST("/logout", auth, authH.Logout)
		authG.POST("/refresh", auth, authH.Refresh)
		authG.GET("/session", optional, authH.Session)
		authG.GET("/google", authH.GoogleStart)
		authG.GET("/google/callback", authH.GoogleCallback)

		rantsG := api.Group("/rants")
		rantsG.GET("", optional, rantH.List)
		rantsG.GET("/trending", rantH.Trending)
		rantsG.GET("/:id", optional, rantH.Get)
		rantsG.POST("", optional, rantH.Create)
		rantsG.POST("/:id/react", optional, rantH.React)
		rantsG.POST("/:id/reply", optional, rantH.Reply)
		rantsG.POST("/:id/reply/:replyId", optional, rantH.Reply)

		api.GET("/store/items", storeH.Items)

		meG := api.Group("/me")
		meG.Use(auth)
		meG.GET("", authH.Me)
		meG.GET("/inventory", storeH.Inventory)
		meG.POST("/buy", storeH.Buy)
		meG.POST("/equip", storeH.Equip)

		adminG := api.Group("/admin")
		adminG.Use(mw.IPWhitelist(cfg.Security.AdminIPs), mw.AdminKey(cfg.Server.AdminKey))
		adminG.GET("/stats", adminH.Stats)
		adminG.POST("/catalog/reseed", adminH.ReseedCatalog)
		adminG.POST("/users/:id/ve", adminH.AdjustVE)
		adminG.POST("/users/:id/ban", adminH.BanUser)
		adminG.GET("/journal", adminH.Journal)
		adminG.GET("/scheduler", adminH.ListSchedulerTasks)
		adminG.POST("/scheduler/:name/run", adminH.RunSchedulerTask)
		adminG.POST("/announce", adminH.Announce)
	}

	// ---- SSE ----
	r.GET("/sse", sseH.ServeSSE)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
