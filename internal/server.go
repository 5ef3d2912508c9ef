package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/2beens/runcoach/internal/account"
	"github.com/2beens/runcoach/internal/auth"
	"github.com/2beens/runcoach/internal/config"
	"github.com/2beens/runcoach/internal/db"
	"github.com/2beens/runcoach/internal/fitness"
	fitnessmcp "github.com/2beens/runcoach/internal/fitness/mcp"
	"github.com/2beens/runcoach/internal/fitsync"
	"github.com/2beens/runcoach/internal/garmin/connect"
	"github.com/2beens/runcoach/internal/middleware"
	"github.com/2beens/runcoach/internal/misc"
	"github.com/2beens/runcoach/internal/telemetry/metrics"
	"github.com/2beens/runcoach/internal/telemetry/tracing"
	"github.com/2beens/runcoach/internal/users"
	"github.com/2beens/runcoach/internal/vault"
	"github.com/2beens/runcoach/internal/workouts"
	"github.com/2beens/runcoach/internal/workouts/ai"
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config  *config.Config
	secrets *config.Secrets
	dbPool  *pgxpool.Pool
	vault   *vault.Vault

	redisClient  *redis.Client
	authService  *auth.Service
	resolver     *auth.SessionResolver
	aiProvider   ai.Provider
	tracedClient *http.Client

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	Secrets                 *config.Secrets
	VersionInfo             string
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	// fail fast on a bad encryption key
	credentialVault, err := vault.NewFromHex(params.Secrets.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("credential vault: %w", err)
	}

	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:         params.Config.PostgresHost,
		DBPort:         params.Config.PostgresPort,
		DBName:         params.Config.PostgresDBName,
		DBUser:         params.Config.PostgresUser,
		DBPassword:     params.Secrets.DBPassword,
		TracingEnabled: params.HoneycombTracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	}

	pgxpoolCollector := pgxpoolprometheus.NewCollector(
		dbPool,
		map[string]string{"db_name": params.Config.PostgresDBName},
	)
	promRegistry := metrics.SetupPrometheus(pgxpoolCollector)
	metricsManager := metrics.NewManager("runcoach", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(params.Config.RedisHost, params.Config.RedisPort),
		Password: params.Secrets.RedisPassword,
		DB:       0, // use default DB
	})

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	authService := auth.NewService(auth.DefaultTTL, rdb)
	go func() {
		ticker := time.NewTicker(8 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				authService.ScanAndClean(ctx)
			}
		}
	}()

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "runcoach-backend", rdb)
	if err != nil {
		return nil, err
	}

	tracedHttpClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	aiProvider, err := ai.NewProvider(ctx, params.Config, params.Secrets, tracedHttpClient)
	if err != nil {
		return nil, fmt.Errorf("ai provider: %w", err)
	}

	return &Server{
		config:       params.Config,
		secrets:      params.Secrets,
		versionInfo:  params.VersionInfo,
		dbPool:       dbPool,
		vault:        credentialVault,
		redisClient:  rdb,
		authService:  authService,
		resolver:     auth.NewSessionResolver(auth.DefaultTTL, rdb),
		aiProvider:   aiProvider,
		tracedClient: tracedHttpClient,

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}, nil
}

func (s *Server) routerSetup() (*mux.Router, error) {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("main-router"))

	reqRateLimiter := redis_rate.NewLimiter(s.redisClient)

	usersRepo := users.NewRepo(s.dbPool)
	activityRepo := fitness.NewActivityRepo(s.dbPool)
	healthRepo := fitness.NewHealthRepo(s.dbPool)
	profileRepo := fitness.NewCachedProfileRepo(
		fitness.NewProfileRepo(s.dbPool),
		s.config.ProfileCacheSizeMB,
		s.config.ProfileCacheTTLSeconds,
	)

	garminConnector := fitsync.NewConnector(
		connect.Factory{
			BaseURL:    s.config.GarminBaseURL,
			SSOURL:     s.config.GarminSSOURL,
			HTTPClient: s.tracedClient,
		},
		func(op string) {
			s.metricsManager.CounterAdapterFallbacks.WithLabelValues(op).Inc()
		},
	)

	miscHandler := misc.NewHandler(s.versionInfo)
	miscHandler.SetupRoutes(r)

	accountHandler := account.NewHandler(usersRepo, s.vault, garminConnector)
	r.HandleFunc("/garmin/connect", accountHandler.HandleConnect).Methods("POST", "OPTIONS").Name("garmin-connect")
	r.HandleFunc("/garmin/connect", accountHandler.HandleDisconnect).Methods("DELETE").Name("garmin-disconnect")
	r.HandleFunc("/garmin/status", accountHandler.HandleStatus).Methods("GET").Name("garmin-status")

	syncService := fitsync.NewService(
		usersRepo,
		activityRepo,
		healthRepo,
		profileRepo,
		s.vault,
		garminConnector,
		s.metricsManager,
	)
	syncHandler := fitsync.NewHandler(syncService)
	syncRouter := r.PathPrefix("/garmin/sync").Subrouter()
	syncRouter.HandleFunc("", syncHandler.HandleSync).Methods("POST", "OPTIONS").Name("garmin-sync")
	syncRouter.Use(middleware.RateLimit(reqRateLimiter, "sync", s.config.SyncRateLimitPerMin, s.metricsManager))

	fitnessHandler := fitness.NewHandler(profileRepo, activityRepo, healthRepo)
	r.HandleFunc("/fitness/profile", fitnessHandler.HandleProfile).Methods("GET").Name("fitness-profile")
	r.HandleFunc("/fitness/paces", fitnessHandler.HandlePaces).Methods("GET").Name("fitness-paces")
	r.HandleFunc("/activities", fitnessHandler.HandleActivities).Methods("GET").Name("list-activities")
	r.HandleFunc("/health/readings", fitnessHandler.HandleHealthReadings).Methods("GET").Name("list-health-readings")

	workoutsService := workouts.NewService(
		s.aiProvider,
		workouts.NewRepo(s.dbPool),
		profileRepo,
		activityRepo,
		healthRepo,
		syncService,
		s.config.WorkoutSystemPrompt,
		s.metricsManager,
	)
	workoutsHandler := workouts.NewHandler(workoutsService)
	workoutsHandler.SetupRoutes(r, reqRateLimiter, s.config.GenerateRateLimitPerMin, s.metricsManager)

	mcpServer := fitnessmcp.NewServer(s.dbPool, profileRepo, activityRepo, healthRepo)
	r.PathPrefix("/mcp").Handler(fitnessmcp.NewHTTPHandler(mcpServer, s.secrets.MCPSecretHash)).Name("mcp")

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "DELETE", "OPTIONS").Name("unknown")

	authMiddleware := middleware.NewAuthMiddlewareHandler(s.resolver)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors(s.config.AllowedOrigins))
	r.Use(authMiddleware.AuthCheck())
	r.Use(middleware.DrainAndCloseRequest())

	return r, nil
}

func (s *Server) Serve(host string, port int) {
	router, err := s.routerSetup()
	if err != nil {
		log.Fatalf("failed to setup router: %s", err)
	}

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler: router,
		Addr:    ipAndPort,
		// must outlast the AI request timeout
		WriteTimeout: s.config.AITimeout() + 30*time.Second,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{},
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	// stop taking requests before closing what they use
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown http server")
		}
		log.Warnln("server shut down")
	}

	if closer, ok := s.aiProvider.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.Errorf("failed to close ai provider: %s", err)
		}
	}

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown metrics http server")
		}
		log.Warnln("metrics server shut down")
	}
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
