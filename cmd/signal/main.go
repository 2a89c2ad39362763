package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.uber.org/zap"

	"fancast/internal/core/domain"
	"fancast/internal/core/ports"
	"fancast/internal/core/services"
	httphandlers "fancast/internal/handlers/http"
	"fancast/internal/infrastructure/distributed"
	"fancast/internal/infrastructure/middleware"
	"fancast/internal/infrastructure/monitoring"
	"fancast/internal/infrastructure/payments"
	"fancast/internal/infrastructure/realtime"
	repositories "fancast/internal/infrastructure/repositories"
	"fancast/internal/infrastructure/repositories/memory"
	"fancast/pkg/config"
	"fancast/pkg/logger"
	"fancast/pkg/tracing"
	"fancast/pkg/utils"
)

func main() {
	// .env is optional; real deployments inject env directly
	_ = godotenv.Load()

	configPath := os.Getenv("FANCAST_CONFIG")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		panic(err)
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	tracerProvider, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "fancast-signal",
		JaegerURL:   cfg.Tracing.JaegerURL,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repoFactory, err := repositories.NewRepositoryFactory(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	defer repoFactory.Close()

	streamRepo := repoFactory.CreateStreamRepository()
	postRepo := repoFactory.CreatePostRepository()
	subscriptionRepo := repoFactory.CreateSubscriptionRepository()
	purchaseRepo := repoFactory.CreatePurchaseRepository()
	identityRepo := repoFactory.CreateIdentityRepository()
	conversationRepo := repoFactory.CreateConversationRepository()

	if os.Getenv("FANCAST_DEV_SEED") == "true" {
		seedDevData(identityRepo, log)
	}

	accessService := services.NewAccessService(subscriptionRepo, purchaseRepo, log)
	authService := services.NewAuthService(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
		identityRepo,
	)
	paymentProcessor := payments.NewSandboxProcessor(log)

	metrics := monitoring.NewPrometheusCollector()

	registry := realtime.NewRegistry()
	hub := realtime.NewHub(metrics, log)
	relay := realtime.NewRelay(registry, hub, metrics, log)

	// When Redis is up, notification fanout crosses process boundaries.
	var fanout ports.NotificationFanout = hub
	if redisClient := repoFactory.RedisClient(); redisClient != nil {
		instanceID := utils.NewConnectionID()
		bridge := distributed.NewNotificationBridge(fanout, redisClient, instanceID, log)
		fanout = bridge
		go func() {
			if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
				log.Errorw("notification bridge stopped", "error", err)
			}
		}()
		log.Infow("notification bridge enabled", "instance_id", instanceID)
	}

	sessionDeps := realtime.SessionDeps{
		Registry:          registry,
		Hub:               hub,
		Relay:             relay,
		Streams:           streamRepo,
		Identities:        identityRepo,
		Conversations:     conversationRepo,
		Access:            accessService,
		Metrics:           metrics,
		Logger:            log,
		MessagesPerSecond: cfg.RateLimiting.WebSocket.MessagesPerSecond,
		MessageBurst:      cfg.RateLimiting.WebSocket.Burst,
	}

	connCfg := realtime.ConnectionConfig{
		PingInterval: cfg.Signal.PingInterval,
		PongTimeout:  cfg.Signal.PongTimeout,
		WriteTimeout: cfg.Signal.WriteTimeout,
		SendBuffer:   cfg.Signal.SendBuffer,
	}

	wsServer := realtime.NewServer(authService, sessionDeps, connCfg, cfg.Auth.AllowedOrigins)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}

	authHandler := httphandlers.NewAuthHandler(authService, identityRepo, cfg.Auth.AccessTokenTTL)
	authHandler.SetupRoutes(router)

	streamHandler := httphandlers.NewStreamHandler(httphandlers.StreamHandlerDeps{
		Streams:       streamRepo,
		Subscriptions: subscriptionRepo,
		Purchases:     purchaseRepo,
		Identities:    identityRepo,
		Access:        accessService,
		Payments:      paymentProcessor,
		Fanout:        fanout,
		Registry:      registry,
		Relay:         relay,
		AuthService:   authService,
		Logger:        log,
	})
	streamHandler.SetupRoutes(router)

	postHandler := httphandlers.NewPostHandler(httphandlers.PostHandlerDeps{
		Posts:         postRepo,
		Subscriptions: subscriptionRepo,
		Purchases:     purchaseRepo,
		Identities:    identityRepo,
		Access:        accessService,
		Payments:      paymentProcessor,
		Fanout:        fanout,
		AuthService:   authService,
		Logger:        log,
	})
	postHandler.SetupRoutes(router)

	webrtcHandler := httphandlers.NewWebRTCHandler(cfg)
	webrtcHandler.SetupRoutes(router)

	healthHandler := httphandlers.NewHealthHandler(repoFactory, hub, registry)
	healthHandler.SetupRoutes(router)

	router.GET(cfg.Signal.Path, func(c *gin.Context) {
		wsServer.HandleWebSocket(c.Writer, c.Request)
	})

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting fancast signal server on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("received shutdown signal", "signal", sig)
	}

	log.Info("shutting down fancast signal server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("error force closing server", "error", closeErr)
		}
	} else {
		log.Info("server shutdown gracefully")
	}

	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error shutting down tracer provider", "error", err)
	}
}

// seedDevData registers a few identities so tokens can be minted
// against an empty backend. Development only.
func seedDevData(identityRepo ports.IdentityRepository, log *zap.SugaredLogger) {
	repo, ok := identityRepo.(*memory.MemoryIdentityRepository)
	if !ok {
		return
	}

	identities := []*domain.Identity{
		{ID: "creator-1", DisplayName: "Demo Creator", Role: domain.RoleCreator},
		{ID: "viewer-1", DisplayName: "Demo Viewer", Role: domain.RoleStudent},
		{ID: "viewer-2", DisplayName: "Second Viewer", Role: domain.RoleStudent},
	}
	for _, identity := range identities {
		repo.Put(identity)
	}
	log.Infow("seeded development identities", "count", len(identities))
}
