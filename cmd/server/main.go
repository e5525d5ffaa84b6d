package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	attendancehandler "punchgate/internal/attendance/handler"
	attendanceservice "punchgate/internal/attendance/service"
	"punchgate/internal/audit"
	"punchgate/internal/datastore"
	identityhandler "punchgate/internal/identity/handler"
	identityservice "punchgate/internal/identity/service"
	sessionstore "punchgate/internal/identity/store/session"
	userstore "punchgate/internal/identity/store/user"
	jwttoken "punchgate/internal/jwt_token"
	payrollhandler "punchgate/internal/payroll/handler"
	payrollservice "punchgate/internal/payroll/service"
	"punchgate/internal/pipeline"
	"punchgate/internal/platform/config"
	"punchgate/internal/platform/httpserver"
	"punchgate/internal/platform/logger"
	"punchgate/internal/platform/metrics"
	platformmongo "punchgate/internal/platform/mongo"
	platformredis "punchgate/internal/platform/redis"
	"punchgate/internal/registry"
	tenantmodels "punchgate/internal/tenantdir/models"
	tenantservice "punchgate/internal/tenantdir/service"
	tenantstore "punchgate/internal/tenantdir/store"
	"punchgate/pkg/platform/httputil"
	"punchgate/pkg/platform/middleware/metadata"
)

// main wires the authorization core: stores, registry, pipeline, handlers.
// Backends not configured via environment fall back to in-memory stores so a
// bare `go run` serves a working dev instance.
func main() {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Global identity backend: postgres when configured.
	var users identityservice.UserStore = userstore.NewInMemory()
	if cfg.PostgresURL != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			log.Error("failed to connect postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		users = userstore.NewPostgres(pool)
	}

	// Session liveness backend: redis when configured.
	var sessions identityservice.SessionStore = sessionstore.NewInMemory()
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		sessions = sessionstore.NewRedis(redisClient.Client)
	}

	// Mongo hosts both the tenant directory and the per-tenant databases.
	mongoClient, err := platformmongo.New(ctx, cfg.MongoURI)
	if err != nil {
		log.Error("failed to connect mongo", "error", err)
		os.Exit(1)
	}
	var directory tenantservice.DirectoryStore = tenantstore.NewInMemory()
	var connector registry.Connector = registry.ConnectorFunc(
		func(_ context.Context, tenant *tenantmodels.Tenant) (*datastore.Handle, error) {
			return datastore.NewMemoryHandle(tenant.ID, tenant.DatastoreName), nil
		})
	if mongoClient != nil {
		defer func() { _ = mongoClient.Close(context.Background()) }()
		directory = tenantstore.NewMongo(mongoClient.Database(cfg.DirectoryDB))
		connector = registry.ConnectorFunc(
			func(_ context.Context, tenant *tenantmodels.Tenant) (*datastore.Handle, error) {
				return datastore.NewMongoHandle(mongoClient.Client, tenant.ID, tenant.DatastoreName), nil
			})
	}

	// Audit trail: memory sink by default, Kafka when brokers are configured.
	var sink audit.Sink = audit.NewMemoryStore()
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := audit.NewKafkaSink(cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			log.Error("failed to create kafka audit sink", "error", err)
			os.Exit(1)
		}
		defer kafkaSink.Close()
		sink = kafkaSink
	}
	publisher := audit.NewPublisher(256, log)
	go func() {
		if err := audit.NewWorker(sink, publisher.Inbox(), log).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit worker stopped", "error", err)
		}
	}()

	reg := registry.New(connector, registry.WithLogger(log), registry.WithMetrics(m))

	tokens := jwttoken.NewService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	identity := identityservice.New(users, sessions, tokens, log,
		identityservice.WithTenantSwitch(directory, reg),
		identityservice.WithAudit(publisher),
		identityservice.WithMetrics(m),
	)
	tenants := tenantservice.NewResolver(directory, log)
	pipe := pipeline.New(identity, tenants, reg, log, m)

	guard := payrollservice.NewLockGuard(log,
		payrollservice.WithMetrics(m),
		payrollservice.WithAudit(publisher),
	)

	router := chi.NewRouter()
	router.Use(chimiddleware.Recoverer)
	router.Use(metadata.RequestID)
	router.Use(metadata.ClientMetadata)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]any{
			"tenant_connections": reg.Size(),
		}
		status := "ok"
		if redisClient != nil {
			checks["redis"] = "ok"
			if err := redisClient.Health(r.Context()); err != nil {
				checks["redis"] = "unreachable"
				status = "degraded"
			}
		}
		if mongoClient != nil {
			checks["mongo"] = "ok"
			if err := mongoClient.Health(r.Context()); err != nil {
				checks["mongo"] = "unreachable"
				status = "degraded"
			}
		}
		httputil.WriteSuccess(w, checks, status)
	})
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	router.Route("/api", func(r chi.Router) {
		// Identity endpoints need authentication only: tenant switch must work
		// for a user whose tenant cannot yet be resolved.
		r.Group(func(r chi.Router) {
			r.Use(pipe.Require(pipeline.Options{}))
			identityhandler.New(identity, log).Register(r)
		})

		// Data endpoints run the full gate chain.
		r.Group(func(r chi.Router) {
			r.Use(pipe.Require(pipeline.Options{
				RequireDatabaseUser: cfg.RequireDatabaseUser,
				RequireTenant:       cfg.RequireTenant,
			}))
			attendancehandler.New(attendanceservice.New(guard, log), log).Register(r)
			payrollhandler.New(guard, publisher, log).Register(r)
		})
	})

	srv := httpserver.New(cfg.Addr, router)
	go func() {
		log.Info("punchgate listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
