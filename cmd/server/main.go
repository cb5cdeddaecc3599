// Package main is the entry point for the waste management backend server.
// It provides a REST API for the complaint lifecycle (submission, worker
// interest and acceptance, status updates, expiry), citizen ratings of
// completed work, and a websocket chat room per complaint.
//
// Architecture:
//   - Complaint status changes are compare-and-set in the store, so
//     concurrent accepts resolve to exactly one winner
//   - Pending complaints expire after COMPLAINT_TTL_HOURS, both inline on
//     every mutation and by a background sweep
//   - Worker ratings are kept as an exact (sum, count) pair updated in the
//     same transaction as the rating row, audited against a Merkle tree of
//     the rating log
//   - Chat messages are persisted before they are broadcast; with REDIS_URL
//     set, broadcasts fan out across instances over Redis pub/sub
package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Pranaya-sht/waste-management-system/internal/chat"
	"github.com/Pranaya-sht/waste-management-system/internal/config"
	"github.com/Pranaya-sht/waste-management-system/internal/database"
	"github.com/Pranaya-sht/waste-management-system/internal/handlers"
	"github.com/Pranaya-sht/waste-management-system/internal/middleware"
	"github.com/Pranaya-sht/waste-management-system/internal/services"
	"github.com/Pranaya-sht/waste-management-system/internal/store"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type redisPinger struct{ client *redis.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.client.Ping(ctx).Err() }

func main() {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize structured logger
	logger, _ := zap.NewProduction()
	if cfg.Environment == "development" {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	sugar.Infow("Starting waste management server",
		"port", cfg.Port,
		"env", cfg.Environment,
		"store", cfg.StoreDriver,
		"redis", cfg.RedisURL != "",
		"complaint_ttl", cfg.ComplaintTTL,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage
	var st store.Store
	switch cfg.StoreDriver {
	case "postgres":
		db, err := database.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			sugar.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if err := database.Migrate(ctx, db); err != nil {
			sugar.Fatalf("Failed to apply schema: %v", err)
		}
		st = store.NewPostgres(db)
	default:
		sugar.Warn("Using in-memory store; data is lost on restart")
		st = store.NewMemory()
	}

	// Redis (optional)
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			sugar.Fatalf("Invalid REDIS_URL: %v", err)
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			sugar.Fatalf("Failed to connect to redis: %v", err)
		}
	}

	// Initialize services
	activitySvc := services.NewActivityLogService(st, sugar)
	complaintSvc := services.NewComplaintService(st, activitySvc, sugar, services.ComplaintOptions{
		TTL:             cfg.ComplaintTTL,
		RequireLocation: cfg.RequireLocation,
	})
	ratingSvc := services.NewRatingService(st, activitySvc, sugar)
	approvalSvc := services.NewApprovalService(st, activitySvc, sugar)
	chatSvc := services.NewChatService(st, sugar)
	merkleSvc := services.NewMerkleService(sugar)

	// Chat hub: with Redis, broadcasts go through pub/sub so every instance
	// delivers them; otherwise the hub delivers locally.
	var hub *chat.Hub
	if rdb != nil {
		publisher := chat.NewRedisPublisher(rdb, sugar)
		hub = chat.NewHub(chatSvc, sugar, chat.WithPublisher(publisher))
		go publisher.Listen(ctx, hub)
	} else {
		hub = chat.NewHub(chatSvc, sugar)
	}

	// Start background workers
	go services.NewExpiryWorker(complaintSvc, sugar).Start(ctx, cfg.ExpirySweepEvery)
	go services.NewIntegrityWorker(merkleSvc, ratingSvc, st, sugar).Start(ctx, cfg.IntegrityRebuildEvery)

	// Rate limiting is shared across instances when Redis is available
	var limiter middleware.Limiter = middleware.NewMemoryLimiter(cfg.RateLimitRPM, time.Minute)
	var redisCheck handlers.Pinger
	if rdb != nil {
		limiter = middleware.NewRedisLimiter(rdb, cfg.RateLimitRPM, time.Minute)
		redisCheck = redisPinger{client: rdb}
	}

	// Initialize handlers
	complaintHandler := handlers.NewComplaintHandler(complaintSvc, sugar)
	ratingHandler := handlers.NewRatingHandler(ratingSvc, sugar)
	activityHandler := handlers.NewActivityHandler(activitySvc, complaintSvc, sugar)
	chatHandler := handlers.NewChatHandler(chatSvc, hub, cfg.AllowedOrigins, cfg.ChatSendBuffer, sugar)
	userHandler := handlers.NewUserHandler(approvalSvc, sugar)
	integrityHandler := handlers.NewIntegrityHandler(merkleSvc, sugar)
	healthHandler := handlers.NewHealthHandler(st, redisCheck, merkleSvc, sugar)

	// Build router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.RateLimit(limiter, sugar))

	requireAuth := middleware.RequireAuth(cfg.JWTSecret, st, sugar)

	// API Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check
		r.Get("/health", healthHandler.Check)
		r.Get("/health/ready", healthHandler.Ready)

		// Integrity endpoints (Merkle tree over the rating log)
		r.Route("/integrity", func(r chi.Router) {
			r.Get("/root", integrityHandler.GetRoot)
			r.Get("/proof/{index}", integrityHandler.GetProof)
			r.Post("/verify", integrityHandler.Verify)
		})

		// Websocket chat; long-lived, so outside the request timeout
		r.With(requireAuth).Get("/ws/chat/{room}", chatHandler.Connect)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(chimw.Timeout(30 * time.Second))

			r.Route("/complaints", func(r chi.Router) {
				r.Post("/", complaintHandler.Submit)
				r.Get("/", complaintHandler.List)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", complaintHandler.Get)
					r.Post("/interest", complaintHandler.Interest)
					r.Post("/accept", complaintHandler.Accept)
					r.Post("/assign_workers", complaintHandler.AssignWorkers)
					r.Post("/update_status", complaintHandler.UpdateStatus)
					r.Post("/rate", ratingHandler.Rate)
					r.Get("/messages", chatHandler.History)
					r.Get("/activity", activityHandler.ByComplaint)
				})
			})

			r.Route("/users/{id}", func(r chi.Router) {
				r.Post("/approve", userHandler.Approve)
				r.Post("/unapprove_worker", userHandler.UnapproveWorker)
			})

			r.Route("/workers/{id}", func(r chi.Router) {
				r.Get("/rating", ratingHandler.WorkerRating)
				r.Post("/rating/recompute", ratingHandler.Recompute)
			})
		})
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		sugar.Infof("Server listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	sugar.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorf("Forced shutdown: %v", err)
	}

	sugar.Info("Server stopped")
}
