package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/kit/log"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/limitd/limitd/core"
	"github.com/limitd/limitd/platform/identity"
	"github.com/limitd/limitd/platform/metrics"
)

// Admit guards every request with the admission engine: banned callers are
// refused, exhausted budgets are limited, everything else passes through
// with the binding rule reported in the RateLimit headers.
func Admit(check core.AdmissionCheckFunc, logger log.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
			id := clientIdentity(r)

			decision, err := check(r.URL.Path, id)
			if err != nil {
				// The disposition is already applied, the failure still
				// has to hit the log.
				_ = logger.Log(
					"err", err,
					"identity", identity.Hash(id),
					"path", r.URL.Path,
				)

				if decision == nil {
					respondError(w, 0, err)
					return
				}
			}

			if decision.Policy != "" {
				w.Header().Set("RateLimit-Policy", decision.Policy)
				w.Header().Set("RateLimit", fmt.Sprintf(
					"limit=%d, remaining=%d, reset=%d",
					decision.Limit,
					decision.Remaining,
					int64(decision.Reset/time.Second),
				))
			}

			if decision.Allowed {
				next(ctx, w, r)
				return
			}

			retryAfter := int64(decision.RetryAfter / time.Second)
			if retryAfter < 1 {
				retryAfter = 1
			}

			w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))

			if decision.Banned {
				respondDenied(
					w, r,
					http.StatusForbidden,
					"access blocked due to repeated abuse",
					retryAfter,
				)
				return
			}

			respondDenied(
				w, r,
				http.StatusTooManyRequests,
				"rate limit exceeded",
				retryAfter,
			)
		}
	}
}

// CtxPrepare adds a baseline of information to the Context currently:
// * api version
// * route name
func CtxPrepare(version string) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
			route := "unknown"

			if current := mux.CurrentRoute(r); current != nil {
				route = current.GetName()
			}

			ctx = routeInContext(ctx, route)
			ctx = versionInContext(ctx, version)

			next(ctx, w, r)
		}
	}
}

// DebugHeaders adds extra information encoded in a custom header namespace
// for potential tracing and debugging post-mortem.
func DebugHeaders(rev, host string) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Limitd-Host", host)
			w.Header().Set("X-Limitd-Revision", rev)

			next(ctx, w, r)
		}
	}
}

// Instrument observes key aspects of a request/response and exposes
// Prometheus metrics.
func Instrument(
	component string,
) Middleware {
	var (
		namespace         = "handler"
		subsystemRequest  = "request"
		subsystemResponse = "response"
		fieldKeys         = []string{
			metrics.FieldComponent,
			metrics.FieldVersion,
			metrics.FieldRoute,
			metrics.FieldStatus,
		}
		requestCount = kitprometheus.NewCounterFrom(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemRequest,
			Name:      "count",
			Help:      "Number of requests received",
		}, fieldKeys)
		requestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystemRequest,
				Name:      "latency_seconds",
				Help:      "Total duration of requests in seconds",
			},
			fieldKeys,
		)
		responseBytes = kitprometheus.NewCounterFrom(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemResponse,
			Name:      "bytes",
			Help:      "Bytes returned as response bodies",
		}, fieldKeys)
	)

	prometheus.MustRegister(requestLatency)

	return func(next Handler) Handler {
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
			var (
				begin     = time.Now()
				resr      = newResponseRecorder(w)
				routeName = routeFromContext(ctx)
				version   = versionFromContext(ctx)
			)

			next(ctx, resr, r)

			status := strconv.Itoa(resr.statusCode)

			requestCount.With(
				metrics.FieldComponent, component,
				metrics.FieldRoute, routeName,
				metrics.FieldStatus, status,
				metrics.FieldVersion, version,
			).Add(1)
			responseBytes.With(
				metrics.FieldComponent, component,
				metrics.FieldRoute, routeName,
				metrics.FieldStatus, status,
				metrics.FieldVersion, version,
			).Add(float64(resr.contentLength))
			requestLatency.With(prometheus.Labels{
				metrics.FieldComponent: component,
				metrics.FieldRoute:     routeName,
				metrics.FieldStatus:    status,
				metrics.FieldVersion:   version,
			}).Observe(time.Since(begin).Seconds())
		}
	}
}

// Log logs information per single request-response.
func Log(logger log.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
			var (
				begin   = time.Now()
				reqr    = newRequestRecorder(r)
				resr    = newResponseRecorder(w)
				route   = routeFromContext(ctx)
				version = versionFromContext(ctx)
			)

			next(ctx, resr, r)

			_ = logger.Log(
				"duration_ns", time.Since(begin).Nanoseconds(),
				"request", reqr,
				"response", resr,
				"route", route,
				"version", version,
			)
		}
	}
}

// SecureHeaders adds a list of commonly recognised best-practice security
// headers.
func SecureHeaders() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Strict-Transport-Security", "max-age=63072000")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")

			next(ctx, w, r)
		}
	}
}

// clientIdentity resolves the caller to the identity string all counters
// and bans key on. Forwarded headers are never consulted, the gateway
// keys on its own transport peer.
func clientIdentity(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}

	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}

	return "unknown"
}

func respondDenied(
	w http.ResponseWriter,
	r *http.Request,
	statusCode int,
	detail string,
	retryAfter int64,
) {
	if jsonRequested(r) {
		kind := "rate_limit_exceeded"

		if statusCode == http.StatusForbidden {
			kind = "forbidden"
		}

		respondJSON(w, statusCode, denyError{
			Error:      kind,
			Detail:     detail,
			RetryAfter: retryAfter,
		})
		return
	}

	if statusCode == http.StatusForbidden {
		respondHTML(w, statusCode, pageBanned)
		return
	}

	respondHTML(w, statusCode, pageLimited(retryAfter))
}

type requestRecorder struct {
	Header           map[string][]string `json:"header"`
	Host             string              `json:"host"`
	Method           string              `json:"method"`
	Proto            string              `json:"proto"`
	RemoteAddr       string              `json:"remoteAddr"`
	RequestURI       string              `json:"requestURI"`
	TransferEncoding []string            `json:"transferEncoding"`
	URL              string              `json:"url"`
}

func newRequestRecorder(r *http.Request) *requestRecorder {
	return &requestRecorder{
		Header:           r.Header,
		Host:             r.Host,
		Method:           strings.ToLower(r.Method),
		Proto:            r.Proto,
		RemoteAddr:       r.RemoteAddr,
		RequestURI:       r.RequestURI,
		TransferEncoding: r.TransferEncoding,
		URL:              r.URL.String(),
	}
}

type responseRecorder struct {
	http.ResponseWriter `json:"-"`

	contentLength int
	statusCode    int
}

func newResponseRecorder(w http.ResponseWriter) *responseRecorder {
	return &responseRecorder{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (rc *responseRecorder) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ContentLength int                 `json:"contentLength"`
		Headers       map[string][]string `json:"header"`
		StatusCode    int                 `json:"statusCode"`
	}{
		ContentLength: rc.contentLength,
		Headers:       rc.ResponseWriter.Header(),
		StatusCode:    rc.statusCode,
	})
}

func (rc *responseRecorder) Write(b []byte) (int, error) {
	n, err := rc.ResponseWriter.Write(b)

	rc.contentLength += n

	return n, err
}

func (rc *responseRecorder) WriteHeader(code int) {
	rc.statusCode = code
	rc.ResponseWriter.WriteHeader(code)
}
