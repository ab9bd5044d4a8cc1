package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"badminton_club/internal/billing"
	"badminton_club/internal/config"
	"badminton_club/internal/handlers"
	"badminton_club/internal/logging"
	authMiddleware "badminton_club/internal/middleware"
	"badminton_club/internal/mq"
	"badminton_club/internal/obs"
	"badminton_club/internal/services"
	"badminton_club/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logging.Must(cfg.Env, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, "badminton-api", cfg.Env, cfg.OTLPEndpoint, log)
	if err != nil {
		log.Warn("tracing disabled", zap.Error(err))
	} else {
		defer func() { _ = shutdownTracer(context.Background()) }()
	}

	// Initialize Database
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	db, err := services.InitDB(cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := services.AutoMigrate(db, log); err != nil {
		log.Fatal("failed to run database migrations", zap.Error(err))
	}
	st := store.NewGormStore(db)

	// Redis is optional: without it fee quotes are not cached and locks are
	// process-local.
	var cache *services.RedisCache
	var locker services.Locker = services.NewLocalLocker()
	if cfg.RedisURL != "" {
		cache, err = services.NewRedisCache(cfg.RedisURL, log)
		if err != nil {
			log.Warn("redis unavailable, using in-process locks", zap.Error(err))
			cache = nil
		} else {
			defer cache.Close()
			locker = cache
		}
	}

	var pub mq.Publisher = mq.Nop{}
	if cfg.AMQPURL != "" {
		amqpPub, err := mq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Warn("amqp unavailable, domain events disabled", zap.Error(err))
		} else {
			defer amqpPub.Close()
			pub = amqpPub
		}
	}

	schedule, err := cfg.Fees.Schedule()
	if err != nil {
		log.Fatal("invalid fee schedule", zap.Error(err))
	}
	calc := billing.NewCalculator(schedule)
	converter := billing.NewConverter(calc, billing.WithMonthFromDueDate(cfg.ConversionMonthFromDueDate))

	feeService := services.NewFeeService(calc, st, log)
	if cache != nil {
		feeService = feeService.WithCache(cache, cfg.MonthlyFeeCacheTTL)
	}
	sessionService := services.NewSessionPaymentService(calc, st, pub, log)
	reconcileService := services.NewReconcileService(st, locker, pub, log)
	conversionService := services.NewConversionService(converter, st, locker, pub, log)
	membershipService := services.NewMembershipService(calc, st, pub, log)
	memberService := services.NewMemberService(st)

	var gatewayService *services.GatewayService
	if cfg.MidtransServerKey != "" {
		midtransClient := services.NewMidtransService(cfg.MidtransServerKey, cfg.MidtransIsProduction)
		gatewayService = services.NewGatewayService(midtransClient, st, locker, pub, log)
	} else {
		log.Warn("MIDTRANS_SERVER_KEY not set, online payment disabled")
	}

	var assistant *services.AssistantService
	if cfg.AssistantURL != "" {
		assistant = services.NewAssistantService(cfg.AssistantURL, cfg.AssistantAPIKey, cfg.AssistantModel, cfg.AssistantRPS, log)
	}

	// Auth
	var auth echo.MiddlewareFunc
	if cfg.AuthDisabled {
		log.Warn("AUTH_DISABLED is set, API is unauthenticated")
		auth = authMiddleware.AllowAll()
	} else {
		authClient, err := services.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
		if err != nil {
			log.Warn("firebase initialization failed, API requests will be rejected", zap.Error(err))
			auth = authMiddleware.RequireAuth(nil)
		} else {
			auth = authMiddleware.RequireAuth(authClient)
		}
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = handlers.NewRequestValidator()
	e.HTTPErrorHandler = authMiddleware.NewErrorHandler(log)

	// Middleware
	e.Use(authMiddleware.RequestLogger(log))
	e.Use(middleware.Recover())

	handlers.Register(e, handlers.Handlers{
		Fees:      handlers.NewFeeHandler(feeService, sessionService),
		Members:   handlers.NewMemberHandler(memberService, membershipService, reconcileService),
		Payments:  handlers.NewPaymentHandler(conversionService, reconcileService, gatewayService, cfg.AppURL, log),
		Assistant: handlers.NewAssistantHandler(assistant),
	}, auth)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	go func() {
		log.Info("server starting", zap.String("port", cfg.Port))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}
}
