// Package main runs the activity mapping HTTP server with WebSocket rooms
// and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/markothell/holoscopic-app-sub000/config"
	"github.com/markothell/holoscopic-app-sub000/internal/activities"
	"github.com/markothell/holoscopic-app-sub000/internal/auth"
	"github.com/markothell/holoscopic-app-sub000/internal/comments"
	"github.com/markothell/holoscopic-app-sub000/internal/middleware"
	"github.com/markothell/holoscopic-app-sub000/internal/presence"
	"github.com/markothell/holoscopic-app-sub000/internal/ratings"
	"github.com/markothell/holoscopic-app-sub000/internal/realtime"
	"github.com/markothell/holoscopic-app-sub000/internal/submissions"
	"github.com/markothell/holoscopic-app-sub000/pkg/database"
	"github.com/markothell/holoscopic-app-sub000/pkg/queue"
	"github.com/markothell/holoscopic-app-sub000/pkg/redis"
	"github.com/markothell/holoscopic-app-sub000/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	presenceStore := presence.NewStore(rdb.Client)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub, presenceStore)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Repositories
	activityRepo := activities.NewRepository(pool)
	ratingRepo := ratings.NewRepository(pool)
	commentRepo := comments.NewRepository(pool)

	// Submissions: the single write path shared by REST and the socket.
	submissionSvc := submissions.NewService(activityRepo, ratingRepo, commentRepo, hub, logger)
	submissionHandler := submissions.NewHandler(submissionSvc)

	// Activities
	activityHandler := activities.NewHandler(activityRepo, ratingRepo, commentRepo, hub, presenceStore, jobQueue, logger)

	jwtValidate := func(token string) (uuid.UUID, string, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return uuid.Nil, "", err
		}
		return claims.UserID, claims.Username, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Protected API (JWT required)
	api := router.Group("/api")
	api.Use(middleware.JWT(jwtService))
	{
		// Activities
		api.GET("/activities", activityHandler.List)
		api.POST("/activities", middleware.RequireRole("admin"), activityHandler.Create)
		api.GET("/activities/:id", activityHandler.GetByID)
		api.GET("/activities/:id/participants", activityHandler.Participants)
		api.PATCH("/activities/:id", activityHandler.Update)
		api.PATCH("/activities/:id/status", activityHandler.UpdateStatus)
		api.DELETE("/activities/:id", middleware.RequireRole("admin"), activityHandler.Delete)

		// Submissions (REST mirror of the socket events)
		api.POST("/activities/:id/rating", submissionHandler.SubmitRating)
		api.POST("/activities/:id/comment", submissionHandler.SubmitComment)
		api.POST("/activities/:id/comments/:commentId/vote", submissionHandler.Vote)
		api.DELETE("/activities/:id/slots/:slotNumber", submissionHandler.ClearSlot)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtValidate, submissionSvc))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
