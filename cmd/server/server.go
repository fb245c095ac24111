package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"versioned-notes/internal/auth"
	"versioned-notes/internal/config"
	"versioned-notes/internal/db"
	"versioned-notes/internal/metrics"
	"versioned-notes/internal/middleware"
	"versioned-notes/internal/note"
	"versioned-notes/internal/user"
	"versioned-notes/internal/worker"
	"versioned-notes/redis"
)

// app holds everything the router needs
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	db       *gorm.DB
	cache    *redis.Cache
	pool     *worker.WorkerPool
	registry *prometheus.Registry
}

func newRouter(a *app) *gin.Engine {
	m := metrics.New(a.registry)

	// Initialize repository and services
	noteStore := note.NewStore(a.db)
	noteService := note.NewService(noteStore, a.cache, a.pool, m, a.log, a.cfg.CacheTTL)
	userRepo := user.NewRepository(a.db)
	userService := user.NewService(userRepo, noteService, a.log)

	jwt := auth.NewJWT(a.cfg.JWTSecret, a.cfg.JWTTTL)
	authMiddleware := &middleware.Auth{UserService: userService, JWT: jwt}

	// Initialize handler
	noteHandler := note.NewHandler(noteService)
	userHandler := user.NewHandler(userService, jwt, a.log)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.AccessLog(a.log, m))
	router.Use(middleware.ErrorHandler(a.log))

	// cors setting
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: false,
	}
	if a.cfg.IsProduction() {
		// Restrict origins in production
		corsConfig.AllowOrigins = []string{a.cfg.FrontendAddress}
	} else {
		// Allow all origins in development
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		sqlDB, err := a.db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "cache": a.cache.Enabled()})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	// User routes
	router.POST("/register", userHandler.Register)
	router.POST("/login", userHandler.Login)

	authed := router.Group("/", authMiddleware.AuthMiddleWare())
	authed.DELETE("/logout", userHandler.Logout)
	authed.GET("/profile", userHandler.GetProfile)

	// Note routes
	authed.POST("/notes", noteHandler.Create)
	authed.GET("/notes", noteHandler.List)
	authed.GET("/notes/:id", noteHandler.Show)
	authed.PUT("/notes/:id", noteHandler.Update)
	authed.DELETE("/notes/:id", noteHandler.Delete)
	authed.GET("/notes/:id/revisions", noteHandler.Revisions)

	// Admin routes
	admin := authed.Group("/admin", authMiddleware.RequireAdmin())
	admin.GET("/users", userHandler.ListUsers)
	admin.GET("/users/:id/notes", noteHandler.OwnerNotes)
	admin.DELETE("/users/:id", userHandler.BanUser)

	return router
}

func runServer(ctx context.Context) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	conn, err := db.Connect(cfg, log)
	if err != nil {
		return err
	}
	defer db.Close(conn, log)

	// Migrate database schema
	if err := db.Migrate(conn, log); err != nil {
		return err
	}
	if !cfg.IsProduction() {
		// Seed database with initial data (for development)
		if err := db.SeedData(ctx, conn, log); err != nil {
			log.Warn("seeding failed", zap.Error(err))
		}
	}

	// Initialize Redis
	redisClient := redis.NewClient(ctx, cfg.RedisAddress, log)
	if redisClient != nil {
		defer redisClient.Close()
	}

	pool := worker.NewWorkerPool(cfg.WorkerPoolSize, 1000, 5*time.Second, log.Named("worker"))

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	router := newRouter(&app{
		cfg:      cfg,
		log:      log,
		db:       conn,
		cache:    redis.NewCache(redisClient, log.Named("cache")),
		pool:     pool,
		registry: registry,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server
	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		if err != nil {
			pool.Shutdown()
			return fmt.Errorf("server failed to start: %w", err)
		}
	}
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", zap.Error(err))
	}
	// let queued cache fills finish before redis and the db close
	pool.Shutdown()

	log.Info("Server shutdown complete")
	return nil
}
