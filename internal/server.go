package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/2beens/formcheck/internal/analysis"
	"github.com/2beens/formcheck/internal/config"
	"github.com/2beens/formcheck/internal/form"
	"github.com/2beens/formcheck/internal/middleware"
	"github.com/2beens/formcheck/internal/pose"
	"github.com/2beens/formcheck/internal/session"
	"github.com/2beens/formcheck/internal/telemetry/metrics"
	"github.com/2beens/formcheck/internal/telemetry/tracing"
	"github.com/2beens/formcheck/pkg"
)

const serviceName = "formcheck"

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string
	startedAt         time.Time

	config      *config.Config
	evaluator   *form.Evaluator
	tracker     *session.Tracker
	redisClient *redis.Client

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	VersionInfo             string
	RedisPassword           string
	HoneycombTracingEnabled bool
}

type HealthResponse struct {
	Status  string `json:"status"`
	Redis   string `json:"redis"`
	Uptime  string `json:"uptime"`
	Version string `json:"version,omitempty"`
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg := params.Config

	promRegistry := metrics.SetupPrometheus()
	metricsManager := metrics.NewManager("formcheck", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
		Password: params.RedisPassword,
		DB:       0, // use default DB
	})

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, serviceName, rdb)
	if err != nil {
		return nil, fmt.Errorf("honeycomb setup: %w", err)
	}

	registry, err := form.NewRegistry(form.DefaultProfiles(cfg.Calibration)...)
	if err != nil {
		return nil, fmt.Errorf("exercise registry: %w", err)
	}
	evaluator := form.NewEvaluator(registry, cfg.Calibration, pose.ExtractOptions{
		MinVisibility: cfg.KeypointMinVisibility,
	})
	log.Debugf("loaded %d exercise profiles: %v", registry.Len(), registry.Exercises())

	tracker := session.NewTracker(session.TrackerParams{
		Evaluator:      evaluator,
		CacheSizeMB:    cfg.SessionCacheSizeMB,
		TTL:            cfg.SessionTTL,
		RepThreshold:   cfg.RepThreshold,
		Tempo:          cfg.Tempo,
		MetricsManager: metricsManager,
	})

	return &Server{
		config:      cfg,
		versionInfo: params.VersionInfo,
		startedAt:   time.Now(),
		evaluator:   evaluator,
		tracker:     tracker,
		redisClient: rdb,

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}, nil
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("formcheck-router"))

	r.HandleFunc("/health", s.handleHealth).Methods("GET").Name("health")

	reqRateLimiter := redis_rate.NewLimiter(s.redisClient)

	analysisHandler := analysis.NewHandler(s.evaluator, s.metricsManager)
	analysisHandler.SetupRoutes(r, reqRateLimiter, s.metricsManager, s.config.RateLimitPerMin)

	sessionHandler := session.NewHandler(s.tracker)
	sessionHandler.SetupRoutes(r, reqRateLimiter, s.metricsManager, s.config.RateLimitPerMin)

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "DELETE", "OPTIONS").Name("unknown")

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors(s.config.CorsAllowedOrigins))
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Redis:   "ok",
		Uptime:  time.Since(s.startedAt).Round(time.Second).String(),
		Version: s.versionInfo,
	}
	status := http.StatusOK

	if err := s.redisClient.Ping(r.Context()).Err(); err != nil {
		log.Errorf("health check, redis ping: %s", err)
		resp.Status = "degraded"
		resp.Redis = err.Error()
		status = http.StatusServiceUnavailable
	}

	respBytes, err := json.Marshal(resp)
	if err != nil {
		log.Errorf("failed to marshal health response: %s", err)
		http.Error(w, "failed to marshal health response", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respBytes, status)
}

func (s *Server) Serve(host string, port int) {
	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      s.routerSetup(),
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", otelhttp.NewHandler(
		promhttp.HandlerFor(s.promRegistry, promhttp.HandlerOpts{}),
		"metrics",
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:              metricsAddr,
		Handler:           metricsRouter,
		ReadHeaderTimeout: 10 * time.Second,
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

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown http server")
		}
		log.Warnln("server shut down")
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown metrics http server")
		}
		log.Warnln("metrics server shut down")
	}

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
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
