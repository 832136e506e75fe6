package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/quizroom/quizroom-api/internal/auth"
	"github.com/quizroom/quizroom-api/internal/config"
	"github.com/quizroom/quizroom-api/internal/database"
	"github.com/quizroom/quizroom-api/internal/handlers"
	"github.com/quizroom/quizroom-api/internal/ledger"
	"github.com/quizroom/quizroom-api/internal/logger"
	"github.com/quizroom/quizroom-api/internal/middleware"
	"github.com/quizroom/quizroom-api/internal/queue"
	"github.com/quizroom/quizroom-api/internal/telemetry"
	"github.com/quizroom/quizroom-api/internal/token"
	"github.com/quizroom/quizroom-api/internal/ws"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

const serviceName = "quizroom-api"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = zapLogger.Sync()
	}()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	// Optional tracing
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(context.Background(), serviceName, cfg.OTELEndpoint)
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
				defer func() {
					shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer shutdownCancel()
					if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
		}
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_database")

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Migrate(migrateCtx); err != nil {
		migrateCancel()
		zapLogger.Fatal("failed_to_run_migrations", zap.Error(err))
	}
	migrateCancel()
	zapLogger.Info("migrations_applied")

	// One Redis connection backs both the refresh ledger and the rate limiter
	redisClient, err := ledger.Connect(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_redis")

	// RabbitMQ is optional: an empty URL disables audit publishing. When a
	// URL is configured, retry with backoff to ride out broker startup.
	var eventQueue queue.EventQueue
	if cfg.RabbitMQURL != "" {
		const maxRetries = 10
		const initialDelay = 2 * time.Second
		var lastErr error

		for attempt := 0; attempt < maxRetries; attempt++ {
			q, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL)
			if err == nil {
				eventQueue = q
				zapLogger.Info("connected_to_rabbitmq")
				break
			}

			lastErr = err
			delay := initialDelay * time.Duration(1<<uint(attempt))
			if delay > 30*time.Second {
				delay = 30 * time.Second
			}
			zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", maxRetries),
				zap.Error(err),
				zap.Duration("retry_delay", delay),
			)
			time.Sleep(delay)
		}

		if eventQueue == nil {
			zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries",
				zap.Int("max_retries", maxRetries),
				zap.Error(lastErr),
			)
		}
		defer func() {
			if err := eventQueue.Close(); err != nil {
				zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
			}
		}()
	} else {
		zapLogger.Info("audit_publishing_disabled")
	}

	// Repositories
	userRepo := database.NewUserRepository(db)
	questionRepo := database.NewQuestionRepository(db)
	resultRepo := database.NewResultRepository(db)

	// Token plumbing
	codec, err := token.NewCodec(cfg.JWTSecret)
	if err != nil {
		zapLogger.Fatal("failed_to_create_token_codec", zap.Error(err))
	}
	refreshLedger := ledger.New(redisClient, cfg.RefreshTokenTTL)
	tokenService := auth.NewService(codec, refreshLedger, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	// Chat hub
	hub := ws.NewHub(zapLogger)
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go hub.Run(hubCtx)

	// Handlers
	authHandler := handlers.NewAuthHandler(userRepo, tokenService, eventQueue, zapLogger)
	quizHandler := handlers.NewQuizHandler(questionRepo, resultRepo, zapLogger)
	healthChecker := handlers.NewHealthChecker(db, redisClient, eventQueue)
	chatHandler := ws.NewHandler(hub, cfg.FrontendURL, zapLogger)

	rateLimitMW, err := middleware.RateLimit(redisClient, cfg.RateLimit)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limiter", zap.Error(err))
	}
	authGate := middleware.Auth(codec, zapLogger)

	r := mux.NewRouter()

	// Middleware executes in registration order, outermost first
	zapLogger.Info("setting_up_middleware")
	if cfg.OTELEnabled {
		r.Use(otelmux.Middleware(serviceName))
	}
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(middleware.CORS(cfg.FrontendURL))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Audit(zapLogger))
	r.Use(middleware.Logging(zapLogger))

	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")

	// Session routes. The request timeout stays off the websocket path
	// because http.TimeoutHandler buffers responses, which breaks upgrades.
	authRouter := r.PathPrefix("/auth").Subrouter()
	authRouter.Use(middleware.Timeout(middleware.DefaultRequestTimeout))
	authRouter.Use(rateLimitMW)
	authRouter.HandleFunc("/createUser", authHandler.CreateUser).Methods("POST")
	authRouter.HandleFunc("/loginUser", authHandler.LoginUser).Methods("POST")
	authRouter.HandleFunc("/refresh", authHandler.Refresh).Methods("POST")
	authRouter.HandleFunc("/logout", authHandler.Logout).Methods("POST")

	protectedAuthRouter := authRouter.PathPrefix("").Subrouter()
	protectedAuthRouter.Use(authGate)
	protectedAuthRouter.HandleFunc("/selfData", authHandler.SelfData).Methods("GET")

	// Quiz routes
	quizRouter := r.PathPrefix("/quiz").Subrouter()
	quizRouter.Use(middleware.Timeout(middleware.DefaultRequestTimeout))
	quizRouter.HandleFunc("", quizHandler.GetQuiz).Methods("GET")
	quizRouter.HandleFunc("/random", quizHandler.GetRandomQuestion).Methods("GET")

	protectedQuizRouter := quizRouter.PathPrefix("").Subrouter()
	protectedQuizRouter.Use(authGate)
	protectedQuizRouter.HandleFunc("/createQuiz", quizHandler.CreateQuiz).Methods("POST")
	protectedQuizRouter.HandleFunc("/practice", quizHandler.CheckPractice).Methods("POST")
	protectedQuizRouter.HandleFunc("/submit", quizHandler.SubmitResult).Methods("POST")
	protectedQuizRouter.HandleFunc("/GetResultHistory", quizHandler.GetResultHistory).Methods("GET")

	// Chat
	wsRouter := r.PathPrefix("/ws").Subrouter()
	wsRouter.Use(authGate)
	wsRouter.HandleFunc("/chat", chatHandler.ServeChat).Methods("GET")

	// Preflight requests are answered even on routes without OPTIONS
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   0, // websocket connections outlive any write deadline
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	hubCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Fatal("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}
