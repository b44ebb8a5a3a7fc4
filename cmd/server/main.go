// Package main runs the webinar portal HTTP and websocket server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/aura-webinar/portal/config"
	"github.com/aura-webinar/portal/internal/auth"
	"github.com/aura-webinar/portal/internal/chat"
	"github.com/aura-webinar/portal/internal/middleware"
	"github.com/aura-webinar/portal/internal/presence"
	"github.com/aura-webinar/portal/internal/realtime"
	"github.com/aura-webinar/portal/internal/roster"
	"github.com/aura-webinar/portal/internal/settings"
	"github.com/aura-webinar/portal/internal/worker"
	"github.com/aura-webinar/portal/pkg/database"
	"github.com/aura-webinar/portal/pkg/queue"
	"github.com/aura-webinar/portal/pkg/redis"
	"github.com/aura-webinar/portal/pkg/response"
	"github.com/aura-webinar/portal/pkg/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolConfig{
		MaxConns:        int32(cfg.Database.MaxConns),
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	// Redis is optional: it relays websocket events and chat changes between instances
	// and backs the roster import queue.
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
	}

	var s3Client *storage.S3
	if cfg.AWS.Enabled() {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			RostersBucket:   cfg.AWS.RostersBucket,
			Endpoint:        cfg.AWS.Endpoint,
		}, logger)
		if err != nil {
			logger.Warn("S3 client not available, roster uploads are imported inline", zap.Error(err))
			s3Client = nil
		}
	}

	// Identity gate
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	gate := auth.NewGate(jwtService, cfg.Admin.Email)
	adminCreds, err := auth.NewAdminCredentials(cfg.Admin.Password, cfg.Admin.PasswordHash)
	if err != nil {
		logger.Fatal("admin credentials", zap.Error(err))
	}
	if !adminCreds.Enabled() {
		logger.Warn("no administrator password configured, admin login disabled")
	}
	cookies := auth.CookieOptions{Secure: cfg.Cookie.Secure}

	// Roster (login allowlist)
	rosterSvc := roster.NewService(roster.NewRepository(pool), logger)
	var jobQueue *queue.Queue
	if rdb != nil {
		jobQueue = queue.NewQueue(rdb.Client, logger)
	}
	if s3Client != nil && jobQueue != nil {
		rosterSvc.WithArchive(s3Client, jobQueue)
	}
	authHandler := auth.NewHandler(gate, adminCreds, rosterSvc, cookies, logger)
	rosterHandler := roster.NewHandler(rosterSvc)

	// Realtime hub, relayed through Redis when available
	var hubRelay realtime.Relay
	var chatRelay chat.Relay
	if rdb != nil {
		pubsub := realtime.NewRedisPubSub(rdb.Client, logger)
		hubRelay = pubsub
		chatRelay = pubsub
	}
	hub := realtime.NewHub(logger, hubRelay)
	defer hub.Close()

	// Settings
	settingsSvc := settings.NewService(settings.NewRepository(pool), logger)
	settingsHandler := settings.NewHandler(settingsSvc, hub)

	// Presence
	tracker := presence.NewTracker(presence.NewRepository(pool), cfg.Presence.Window, logger)
	broadcaster := presence.NewBroadcaster(tracker, hub, presence.BroadcasterConfig{
		Interval:      cfg.Presence.BroadcastInterval,
		PurgeInterval: cfg.Presence.PurgeInterval,
		PurgeAfter:    cfg.Presence.PurgeAfter,
	}, logger)
	hub.SetPresence(presence.Hooks{Tracker: tracker, Broadcaster: broadcaster})
	presenceHandler := presence.NewHandler(tracker, broadcaster.Nudge)

	// Chat and moderation
	broker := chat.NewBroker(chatRelay, logger)
	if err := broker.Start(); err != nil {
		logger.Fatal("chat relay", zap.Error(err))
	}
	defer broker.Close()
	engine := chat.NewEngine(chat.NewRepository(pool), settingsSvc, gate, broker, logger).
		WithHistoryLimit(cfg.Chat.HistoryLimit)
	engine.OnMessageChange(func(change chat.Change) {
		hub.Broadcast(change.Event(), change.Message)
	})
	moderator := chat.NewModerator(engine, gate, logger)
	chatHandler := chat.NewHandler(engine, moderator)

	router := newRouter(cfg, logger, routes{
		gate:     gate,
		cookies:  cookies,
		auth:     authHandler,
		roster:   rosterHandler,
		settings: settingsHandler,
		presence: presenceHandler,
		chat:     chatHandler,
		health:   healthHandler(pool, rdb),
		ws:       realtime.ServeWs(hub, gate, realtime.NewUpgrader(cfg.Server.AllowedOrigins()), logger),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	broadcaster.Start(ctx)
	defer broadcaster.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.Worker.InProcess && s3Client != nil && jobQueue != nil {
		processor := worker.NewRosterProcessor(rosterSvc, s3Client, jobQueue, logger)
		g.Go(func() error {
			processor.Run(gctx)
			return nil
		})
		logger.Info("roster worker started")
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server", zap.Error(err))
	}
	logger.Info("server stopped")
}

type routes struct {
	gate     *auth.Gate
	cookies  auth.CookieOptions
	auth     *auth.Handler
	roster   *roster.Handler
	settings *settings.Handler
	presence *presence.Handler
	chat     *chat.Handler
	health   gin.HandlerFunc
	ws       gin.HandlerFunc
}

func newRouter(cfg *config.Config, logger *zap.Logger, r routes) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", r.health)

	// Public
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", r.auth.Login)
		authGroup.POST("/logout", r.auth.Logout)
	}
	router.GET("/settings/public", r.settings.GetPublic)

	// WebSocket authenticates itself (cookie or token query)
	router.GET("/ws", r.ws)

	// Session required
	api := router.Group("")
	api.Use(middleware.Session(r.gate, r.cookies))
	{
		api.GET("/auth/me", r.auth.Me)
		api.GET("/settings", r.settings.Get)

		api.POST("/session/ping", r.presence.Ping)
		api.GET("/session/count", r.presence.Count)

		api.GET("/chat", r.chat.List)
		api.POST("/chat", r.chat.Submit)
		api.POST("/chat/moderate", r.chat.Moderate)
	}

	// Administrator only
	admin := router.Group("/admin")
	admin.Use(middleware.Session(r.gate, r.cookies), middleware.RequireAdmin())
	{
		admin.GET("/settings", r.settings.Get)
		admin.POST("/settings", r.settings.Update)

		admin.GET("/users", r.roster.List)
		admin.DELETE("/users/:id", r.roster.Delete)
		admin.POST("/roster", r.roster.Add)
		admin.POST("/roster/upload", r.roster.Upload)
		admin.DELETE("/roster", r.roster.Clear)
	}
	return router
}

// healthHandler reports database and Redis reachability.
func healthHandler(pool *pgxpool.Pool, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, response.Body{Success: false, Error: "database unavailable"})
			return
		}
		if rdb != nil {
			if err := rdb.Check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, response.Body{Success: false, Error: "redis unavailable"})
				return
			}
		}
		response.OK(c, gin.H{"status": "ok"})
	}
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
