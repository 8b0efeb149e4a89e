package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/abdshekho/msa-sub001/internal/api"
	"github.com/abdshekho/msa-sub001/internal/auth"
	"github.com/abdshekho/msa-sub001/internal/config"
	"github.com/abdshekho/msa-sub001/internal/media"
	"github.com/abdshekho/msa-sub001/internal/store"
	"github.com/abdshekho/msa-sub001/internal/telemetry"
)

const healthPath = "/api/v1/healthz"

func runServe(ctx context.Context) error {
	log.Println("INFO: Starting service...")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	log.Printf("INFO: Configuration loaded for APP_ENV: %s, LogLevel: %s", cfg.AppEnv, cfg.LogLevel)

	dbStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	if cfg.Postgres.AutoMigrate {
		if err := dbStore.Migrate(ctx); err != nil {
			dbStore.Close()
			return err
		}
	}

	redisClient := connectRedis(ctx, cfg.Redis)

	shutdownTracing, err := telemetry.Setup(cfg.Tracing.Enabled, cfg.Tracing.ServiceName, cfg.AppEnv)
	if err != nil {
		dbStore.Close()
		return err
	}

	// --- Initialize API Handlers ---
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	revoker := auth.NewRevoker(redisClient)
	var google *auth.GoogleProvider
	if cfg.Google.Enabled() {
		google = auth.NewGoogleProvider(cfg.Google)
		log.Println("INFO: Google sign-in enabled.")
	}
	mediaStore := media.NewStore(cfg.Uploads.Root, cfg.Uploads.PublicPrefix, cfg.Uploads.JPEGQuality, cfg.Uploads.MaxDimension, cfg.Uploads.MaxPixels)

	httpAPIHandler := api.NewHTTPHandler(api.Dependencies{
		Categories:      dbStore,
		Brands:          dbStore,
		Products:        dbStore,
		Carts:           dbStore,
		Orders:          dbStore,
		Users:           dbStore,
		Tokens:          tokens,
		Gate:            auth.NewAuthenticator(tokens, revoker, dbStore, cfg.Auth.CookieName, cfg.Auth.SignInURL),
		Revoker:         revoker,
		Limiter:         auth.NewRateLimiter(redisClient, cfg.Redis.RateLimitCount, cfg.Redis.RateLimitWindow),
		Google:          google,
		Media:           mediaStore,
		MaxUploadBytes:  cfg.Uploads.MaxBytes,
		CookieName:      cfg.Auth.CookieName,
		SecureCookie:    cfg.Auth.SecureCookie,
		OAuthSuccessURL: cfg.Google.SuccessURL,
	})

	// --- Setup & Start HTTP Server ---
	httpRouter := chi.NewRouter()
	setupBaseMiddleware(httpRouter, cfg)
	registerHealthCheck(httpRouter, dbStore, redisClient)
	registerUploads(httpRouter, cfg.Uploads.PublicPrefix, mediaStore.Root())
	httpAPIHandler.RegisterRoutes(httpRouter)

	httpServer := &http.Server{
		Addr:         ":" + cfg.HttpServer.Port,
		Handler:      httpRouter,
		ReadTimeout:  cfg.HttpServer.TimeoutRead,
		WriteTimeout: cfg.HttpServer.TimeoutWrite,
		IdleTimeout:  cfg.HttpServer.TimeoutIdle,
	}

	go func() {
		log.Printf("INFO: HTTP server listening on port %s", cfg.HttpServer.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: HTTP server ListenAndServe error: %v", err)
		}
		log.Println("INFO: HTTP server has stopped.")
	}()

	// --- Setup & Start gRPC Server ---
	grpcServer, healthServer := setupGRPCServer()
	grpcListener, err := net.Listen("tcp", ":"+cfg.GrpcServer.Port)
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC on port %s: %w", cfg.GrpcServer.Port, err)
	}

	go func() {
		log.Printf("INFO: gRPC server listening on port %s", cfg.GrpcServer.Port)
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Fatalf("FATAL: gRPC server Serve error: %v", err)
		}
		log.Println("INFO: gRPC server has stopped.")
	}()

	// --- Graceful Shutdown ---
	waitForShutdown(shutdownResources{
		httpServer:      httpServer,
		grpcServer:      grpcServer,
		healthServer:    healthServer,
		dbStore:         dbStore,
		redisClient:     redisClient,
		shutdownTracing: shutdownTracing,
	})
	log.Println("INFO: Service shutdown sequence finished.")
	return nil
}

// connectRedis returns nil when Redis is not configured or unreachable;
// revocation and rate limiting are then disabled.
func connectRedis(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	if cfg.Addr == "" {
		log.Println("WARN: REDIS_ADDR not set; token revocation and rate limiting are disabled.")
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Printf("WARN: Redis at %s unreachable, continuing without it: %v", cfg.Addr, err)
		client.Close()
		return nil
	}
	log.Printf("INFO: Connected to Redis at %s", cfg.Addr)
	return client
}

func setupBaseMiddleware(router *chi.Mux, cfg *config.Config) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(cfg.HttpServer.RequestTimeout))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.HttpServer.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Use(telemetry.Middleware(cfg.Tracing.ServiceName, healthPath))
	log.Println("INFO: Base HTTP middleware registered.")
}

func registerHealthCheck(router *chi.Mux, dbStore *store.PostgresStore, redisClient *redis.Client) {
	router.Get(healthPath, func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		dbStatus := "healthy"
		if err := dbStore.Ping(ctx); err != nil {
			dbStatus = "unhealthy"
			log.Printf("WARN: Health check DB ping failed: %v", err)
		}
		redisStatus := "disabled"
		if redisClient != nil {
			redisStatus = "healthy"
			if err := redisClient.Ping(ctx).Err(); err != nil {
				redisStatus = "unhealthy"
				log.Printf("WARN: Health check Redis ping failed: %v", err)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK) // payload carries the per-dependency status
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":      "healthy",
			"serviceName": defaultAppName,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"database":    dbStatus,
			"redis":       redisStatus,
		})
	})
	log.Printf("INFO: HTTP health check registered at %s", healthPath)
}

// registerUploads serves stored images read-only. Directory listings are refused.
func registerUploads(router *chi.Mux, prefix, root string) {
	files := http.StripPrefix(prefix, http.FileServer(http.Dir(root)))
	router.Get(prefix+"/*", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
	log.Printf("INFO: Serving uploads from %s at %s", root, prefix)
}

func setupGRPCServer() (*grpc.Server, *health.Server) {
	s := grpc.NewServer()

	// Register gRPC Health Checking Protocol service.
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(s, healthServer)
	log.Println("INFO: gRPC health check service registered.")

	reflection.Register(s)
	log.Println("INFO: gRPC reflection service registered.")

	return s, healthServer
}

type shutdownResources struct {
	httpServer      *http.Server
	grpcServer      *grpc.Server
	healthServer    *health.Server
	dbStore         *store.PostgresStore
	redisClient     *redis.Client
	shutdownTracing func(context.Context) error
}

func waitForShutdown(res shutdownResources) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	receivedSignal := <-sigChan
	log.Printf("INFO: Received signal: %s. Starting graceful shutdown...", receivedSignal)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	res.healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	log.Println("INFO: Attempting to gracefully shut down gRPC server...")
	stoppedGrpc := make(chan struct{})
	go func() {
		res.grpcServer.GracefulStop()
		close(stoppedGrpc)
	}()

	log.Println("INFO: Attempting to gracefully shut down HTTP server...")
	if err := res.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARN: HTTP server graceful shutdown failed: %v", err)
	} else {
		log.Println("INFO: HTTP server gracefully shut down.")
	}

	select {
	case <-stoppedGrpc:
		log.Println("INFO: gRPC server gracefully shut down.")
	case <-shutdownCtx.Done():
		log.Printf("WARN: gRPC server graceful shutdown timed out: %v", shutdownCtx.Err())
		res.grpcServer.Stop()
		log.Println("INFO: gRPC server forced stop.")
	}

	if err := res.shutdownTracing(shutdownCtx); err != nil {
		log.Printf("WARN: Error flushing traces: %v", err)
	}
	if res.redisClient != nil {
		if err := res.redisClient.Close(); err != nil {
			log.Printf("WARN: Error closing Redis client: %v", err)
		}
	}
	if err := res.dbStore.Close(); err != nil {
		log.Printf("WARN: Error closing database connection: %v", err)
	}

	log.Println("INFO: Graceful shutdown sequence completed.")
}
