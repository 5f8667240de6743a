package main

import (
	"flag"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/limitd/limitd/core"
	handler "github.com/limitd/limitd/handler/http"
	"github.com/limitd/limitd/platform/metrics"
	"github.com/limitd/limitd/platform/redis"
	"github.com/limitd/limitd/service/ban"
	"github.com/limitd/limitd/service/limiter"
)

// Logging and telemetry identifiers.
const (
	component        = "limitd"
	namespaceService = "service"
	storeService     = "redis"
)

// Versions.
const (
	versionCurrent = "0.1"
)

// Timeouts
const (
	defaultReadTimeout  = 5 * time.Second
	defaultWriteTimeout = 30 * time.Second
)

// Buildtime vars.
var (
	revision = "0000000-dev"
)

func main() {
	var (
		begin = time.Now()

		banEnabled    = flag.Bool("ban.enabled", true, "Kill switch for offense tracking and bans")
		disposition   = flag.String("store.disposition", "", "Behaviour when the store is unreachable (open|closed)")
		listenAddr    = flag.String("listen.addr", ":8083", "HTTP bind address for the guarded proxy")
		policyFile    = flag.String("policy.file", "policy.json", "Path to the admission policy file")
		redisAddr     = flag.String("redis.addr", ":6379", "Redis address to connect to")
		redisPassword = flag.String("redis.password", "", "Redis password to authenticate with")
		telemetryAddr = flag.String("telemetry.addr", ":9000", "HTTP bind address where prometheus telemetry is exposed")
		upstreamURL   = flag.String("upstream.url", "", "URL of the origin requests are proxied to")
	)
	flag.Parse()

	// Setup logging.
	logger := log.With(
		log.NewJSONLogger(os.Stdout),
		"caller", log.Caller(3),
		"component", component,
		"revision", revision,
	)

	hostname, err := os.Hostname()
	if err != nil {
		logger.Log("err", err, "lifecycle", "abort")
		os.Exit(1)
	}

	logger = log.With(logger, "host", hostname)

	// Setup instrumentation.
	go func(addr string) {
		logger.Log(
			"duration", time.Since(begin).Nanoseconds(),
			"lifecycle", "start",
			"listen", addr,
			"sub", "telemetry",
		)

		http.Handle("/metrics", promhttp.Handler())

		err := http.ListenAndServe(addr, nil)
		if err != nil {
			logger.Log("err", err, "lifecycle", "abort", "sub", "telemetry")
			os.Exit(1)
		}
	}(*telemetryAddr)

	serviceErrCount, serviceOpCount, serviceOpLatency := metrics.KeyMetrics(
		namespaceService,
		metrics.FieldComponent,
		metrics.FieldMethod,
		metrics.FieldService,
		metrics.FieldStore,
	)

	// Setup policy.
	policy, err := loadPolicy(*policyFile)
	if err != nil {
		logger.Log("err", err, "lifecycle", "abort", "policy", *policyFile)
		os.Exit(1)
	}

	opts := core.Opts{
		BansEnabled: *banEnabled && policy.BansEnabled,
		Disposition: *disposition,
		SiteWide:    policy.SiteWide,
	}

	if err := opts.Validate(); err != nil {
		logger.Log("err", err, "lifecycle", "abort")
		os.Exit(1)
	}

	upstream, err := url.Parse(*upstreamURL)
	if err != nil || upstream.Host == "" {
		logger.Log(
			"err", "upstream.url must be a resolvable URL",
			"lifecycle", "abort",
			"upstream", *upstreamURL,
		)
		os.Exit(1)
	}

	// Setup clients.
	redisPool := redis.Pool(*redisAddr, *redisPassword)

	// Setup services.
	var limits limiter.Service
	limits = limiter.RedisService(redisPool)
	limits = limiter.InstrumentServiceMiddleware(
		component,
		storeService,
		serviceErrCount,
		serviceOpCount,
		serviceOpLatency,
	)(limits)
	limits = limiter.LogMiddleware(logger, storeService)(limits)

	var bans ban.Service
	bans = ban.RedisService(redisPool, policy.Ban)
	bans = ban.InstrumentServiceMiddleware(
		component,
		storeService,
		serviceErrCount,
		serviceOpCount,
		serviceOpLatency,
	)(bans)
	bans = ban.LogMiddleware(logger, storeService)(bans)

	// Setup middlewares.
	var (
		withTelemetry = handler.Chain(
			handler.CtxPrepare(versionCurrent),
			handler.Log(logger),
			handler.Instrument(component),
			handler.SecureHeaders(),
			handler.DebugHeaders(revision, hostname),
		)
		withAdmission = handler.Chain(
			withTelemetry,
			handler.Admit(
				core.AdmissionCheck(policy.Index, limits, bans, opts),
				logger,
			),
		)
	)

	// Setup Router.
	router := mux.NewRouter()

	router.Methods("GET").Path("/health").Name("health").HandlerFunc(
		handler.Wrap(
			withTelemetry,
			handler.Health(redisPool),
		),
	)

	router.PathPrefix("/").Name("proxy").HandlerFunc(
		handler.Wrap(
			withAdmission,
			handler.Proxy(httputil.NewSingleHostReverseProxy(upstream)),
		),
	)

	// Setup server.
	server := &http.Server{
		Addr:         *listenAddr,
		Handler:      router,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	}

	logger.Log(
		"duration", time.Since(begin).Nanoseconds(),
		"lifecycle", "start",
		"listen", *listenAddr,
		"rules", policy.Index.Len(),
		"sub", "proxy",
		"upstream", upstream.String(),
	)

	err = server.ListenAndServe()
	if err != nil {
		logger.Log("err", err, "lifecycle", "abort", "sub", "proxy")
		os.Exit(1)
	}
}
