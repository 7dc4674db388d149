// CareerMate AI - interview practice backend
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/careermate/internal/api"
	"github.com/ashureev/careermate/internal/archive"
	"github.com/ashureev/careermate/internal/coach"
	"github.com/ashureev/careermate/internal/config"
	"github.com/ashureev/careermate/internal/events"
	"github.com/ashureev/careermate/internal/identity"
	"github.com/ashureev/careermate/internal/interview"
	"github.com/ashureev/careermate/internal/llm"
	"github.com/ashureev/careermate/internal/middleware"
	"github.com/ashureev/careermate/internal/speech"
	"github.com/ashureev/careermate/internal/store"
	"github.com/ashureev/careermate/internal/transcript"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(),
		"store", cfg.StoreBackend, "llm", cfg.LLMProvider)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	var kv store.KV = repo
	var health api.Pinger = repo
	if cfg.StoreBackend == "redis" {
		rs, err := store.NewRedis(ctx, &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.Retention)
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer func() { _ = rs.Close() }()
		kv, health = rs, rs
		slog.Info("Redis session store connected", "addr", cfg.RedisAddr)
	}

	svc, err := newCoach(ctx, cfg, logger)
	if err != nil {
		slog.Error("Failed to initialize LLM provider", "error", err)
		os.Exit(1)
	}

	uploads, err := newArchive(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize upload archive", "error", err)
		os.Exit(1)
	}

	publisher := newPublisher(cfg, logger)
	defer func() { _ = publisher.Close() }()

	transcripts, err := transcript.New(transcript.Config{
		Enabled:   cfg.Transcript.Enabled,
		Dir:       cfg.Transcript.Dir,
		QueueSize: cfg.Transcript.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize transcript logger", "error", err)
		os.Exit(1)
	}
	defer func() { _ = transcripts.Close() }()

	// Hosted interview sessions.
	mgr := interview.NewManager(svc, func(userID, sessionID string) interview.Storage {
		return store.Scoped(kv, userID, sessionID)
	}, interview.WithConfig(interview.Config{
		QuestionQuota:  cfg.Interview.QuestionQuota,
		TypingDelay:    cfg.Interview.TypingDelay,
		AdvanceDelay:   cfg.Interview.AdvanceDelay,
		SettleDelay:    cfg.Interview.SettleDelay,
		RequestTimeout: cfg.Interview.RequestTimeout,
	}), interview.WithLogger(logger))
	defer mgr.CloseAll()
	mgr.OnComplete(completionHandler(publisher, transcripts))

	// Initialize handlers.
	backendHandler := api.NewBackendHandler(svc, kv, logger,
		api.WithArchive(uploads),
		api.WithUploadLimit(cfg.UploadMaxBytes))
	sessionHandler := api.NewSessionHandler(mgr, kv, speech.Chain(svc), logger)
	healthHandler := api.NewHealthHandler(health, cfg.LLMProvider)
	wsHandler := api.NewSessionStream(mgr, cfg.AllowedOrigins(), cfg.IsDevelopment(), logger)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	limiter.StartEviction(ctx)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	r.Use(identity.Middleware(repo, cfg.IsDevelopment()))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		api.Error(w, http.StatusNotFound, "Route not found")
	})

	// Public routes.
	healthHandler.RegisterRoutes(r)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(limiter, func(req *http.Request) string {
			return identity.UserIDFromContext(req.Context())
		}))
		backendHandler.RegisterRoutes(r)
		sessionHandler.RegisterRoutes(r)
	})

	// WebSocket endpoint.
	r.Get("/ws/session", wsHandler.ServeHTTP)

	// WriteTimeout stays 0 so websocket streams are not cut off.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	interview.StartSweeper(ctx, mgr, cfg.SessionTTL, time.Minute)
	startRetentionWorker(ctx, repo, cfg.Retention, time.Hour)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

func newCoach(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*coach.Service, error) {
	if cfg.LLMProvider != "gemini" {
		slog.Warn("No LLM configured, serving mock interview responses")
		return coach.New(nil, nil, logger), nil
	}
	gem, err := llm.NewGemini(ctx, cfg.GeminiKey, cfg.GeminiModel)
	if err != nil {
		return nil, err
	}
	slog.Info("Gemini provider ready", "model", gem.Model())
	return coach.New(gem, gem, logger), nil
}

func newArchive(ctx context.Context, cfg *config.Config) (archive.Archive, error) {
	if cfg.S3.Bucket != "" {
		a, err := archive.NewS3(ctx, archive.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			Bucket:    cfg.S3.Bucket,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    "uploads",
		})
		if err != nil {
			return nil, err
		}
		slog.Info("Resume uploads archived to S3", "bucket", cfg.S3.Bucket)
		return a, nil
	}
	if cfg.UploadDir == "" {
		return archive.Nop{}, nil
	}
	return archive.NewDir(cfg.UploadDir)
}

func newPublisher(cfg *config.Config, logger *slog.Logger) events.Publisher {
	if cfg.AMQPURL == "" {
		return events.Nop{}
	}
	p, err := events.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange, logger)
	if err != nil {
		slog.Warn("Failed to connect to RabbitMQ, completion events disabled", "error", err)
		return events.Nop{}
	}
	slog.Info("Publishing interview events", "exchange", cfg.AMQPExchange)
	return p
}

// completionHandler publishes and records each finished interview. Both run
// off the engine's notification path.
func completionHandler(pub events.Publisher, log transcript.Logger) interview.CompletionHandler {
	return func(userID, sessionID string, st interview.State) {
		now := time.Now().UTC()
		for _, ev := range transcript.SessionEvents(userID, sessionID, st.Session, st.AverageScore, now) {
			log.Log(ev)
		}

		scored := 0
		for _, t := range st.History {
			if t.Score != nil {
				scored++
			}
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err := pub.PublishCompleted(ctx, events.InterviewCompleted{
				UserID:          userID,
				SessionID:       sessionID,
				Questions:       len(st.History),
				ScoredQuestions: scored,
				AverageScore:    st.AverageScore,
				CompletedAt:     now,
			})
			if err != nil {
				slog.Warn("Failed to publish completion event", "error", err, "user_id", userID, "session_id", sessionID)
			}
		}()
	}
}

// startRetentionWorker deletes session values not written within retention.
func startRetentionWorker(ctx context.Context, repo store.Repository, retention, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Retention worker started", "interval", interval, "retention", retention)
		for {
			select {
			case <-ticker.C:
				n, err := repo.CleanupExpiredValues(ctx, retention)
				if err != nil {
					slog.Warn("Retention cleanup failed", "error", err)
					continue
				}
				if n > 0 {
					slog.Info("Retention cleanup removed values", "count", n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
