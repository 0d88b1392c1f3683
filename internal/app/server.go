// internal/app/server.go
package app

import (
	"context"
	"fmt"
	"time"

	"medboard-service/internal/config"
	"medboard-service/internal/db"
	authHandler "medboard-service/internal/handlers/auth"
	"medboard-service/internal/middleware"
	"medboard-service/internal/pkg/jwt"
	"medboard-service/internal/pkg/session"
	"medboard-service/internal/repository/postgres"
	authService "medboard-service/internal/service/auth"
	"medboard-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	cfg         config.AppConfig
	engine      *gin.Engine
	logger      *zap.Logger
	authService *authService.AuthService
}

func NewServer() *Server {
	cfg := config.Load()
	engine := gin.New()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx := context.Background()

	// ----- Logger -----
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()
	s.logger = logger

	// ----- PostgreSQL -----
	pool, err := db.NewPostgresPool(ctx, s.cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	logger.Info("connected to PostgreSQL")

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		DB:       s.cfg.RedisDB,
		PoolSize: 10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("connected to Redis")

	// ----- JWT Manager -----
	jwtManager, err := jwt.LoadAndBuild(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to load JWT manager: %w", err)
	}

	// ----- Session Manager & Rate Limiter -----
	sessionManager := session.NewManager(redisClient, logger)
	rateLimiter := session.NewRateLimiter(redisClient)

	// ----- Repositories -----
	authRepo := postgres.NewAuthRepository(pool)

	// ----- WebSocket Hub -----
	hub := websocket.NewHub(logger)
	go hub.Run(ctx)

	// ----- Services -----
	svc := authService.NewAuthService(
		authRepo,
		jwtManager,
		sessionManager,
		rateLimiter,
		hub,
		redisClient,
		logger,
	)
	s.authService = svc

	// ----- Super Admin Bootstrap -----
	if err := s.initializeSuperAdmin(); err != nil {
		// startup survives a failed bootstrap; an operator can retry
		logger.Error("failed to initialize super admin", zap.Error(err))
	}

	// ----- Handlers -----
	authHandlerInst := authHandler.NewAuthHandler(svc, logger)
	wsHandlerInst := websocket.NewHandler(hub, func(ctx context.Context, token string) (int64, string, error) {
		claims, err := svc.VerifyToken(ctx, token)
		if err != nil {
			return 0, "", err
		}
		return claims.IdentityID, claims.ID, nil
	}, logger)

	// ----- Middlewares -----
	authMiddleware := middleware.NewAuthMiddleware(svc)

	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(),
	)

	// ----- Router -----
	SetupRouter(s.engine, &Handlers{
		AuthHandler:    authHandlerInst,
		WSHandler:      wsHandlerInst,
		AuthMiddleware: authMiddleware,
	})

	logger.Info("server starting", zap.String("addr", s.cfg.HTTPAddr))
	return s.engine.Run(s.cfg.HTTPAddr)
}

// initializeSuperAdmin creates the super admin account if it doesn't exist.
func (s *Server) initializeSuperAdmin() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.authService.EnsureSuperAdmin(ctx,
		s.cfg.SuperAdminUsername,
		s.cfg.SuperAdminPassword,
		s.cfg.SuperAdminEmail,
	)
}
