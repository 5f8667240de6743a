package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httputil"
	"strings"

	"github.com/gomodule/redigo/redis"
)

// Handler is the gateway specific http.HandlerFunc expecting a context.Context.
type Handler func(context.Context, http.ResponseWriter, *http.Request)

// Middleware can be used to chain Handlers with different responsibilities.
type Middleware func(Handler) Handler

// Chain takes a variadic number of Middlewares and returns a combined
// Middleware.
func Chain(ms ...Middleware) Middleware {
	return func(handler Handler) Handler {
		for i := len(ms) - 1; i >= 0; i-- {
			handler = ms[i](handler)
		}

		return handler
	}
}

// Wrap takes a Middleware and Handler and returns an http.HandlerFunc.
func Wrap(
	middleware Middleware,
	handler Handler,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		middleware(handler)(r.Context(), w, r)
	}
}

// Health checks for liveliness of the backing store and responds with
// status.
func Health(rClient *redis.Pool) Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		res := struct {
			Healthy  bool            `json:"healthy"`
			Services map[string]bool `json:"services"`
		}{
			Healthy: true,
			Services: map[string]bool{
				"redis": true,
			},
		}

		conn := rClient.Get()
		defer conn.Close()

		if err := conn.Err(); err != nil {
			res.Healthy = false
			res.Services["redis"] = false

			respondJSON(w, http.StatusInternalServerError, &res)
			return
		}

		respondJSON(w, http.StatusOK, &res)
	}
}

// Proxy forwards admitted requests to the upstream.
func Proxy(p *httputil.ReverseProxy) Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		p.ServeHTTP(w, r.WithContext(ctx))
	}
}

var denyAgents = []string{
	"curl",
	"httpie",
	"insomnia",
	"postman",
	"python-requests",
	"wget",
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type denyError struct {
	Error      string `json:"error"`
	Detail     string `json:"detail"`
	RetryAfter int64  `json:"retry_after"`
}

// jsonRequested sniffs if the client prefers a JSON body over the styled
// error page.
func jsonRequested(r *http.Request) bool {
	accept := r.Header.Get("Accept")

	if strings.Contains(accept, "application/json") ||
		strings.Contains(accept, "text/json") {
		return true
	}

	ua := strings.ToLower(r.Header.Get("User-Agent"))

	for _, agent := range denyAgents {
		if strings.Contains(ua, agent) {
			return true
		}
	}

	return false
}

func respondError(w http.ResponseWriter, code int, err error) {
	respondJSON(w, http.StatusInternalServerError, struct {
		Errors []apiError `json:"errors"`
	}{
		Errors: []apiError{
			{Code: code, Message: err.Error()},
		},
	})
}

func respondHTML(w http.ResponseWriter, statusCode int, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	_, _ = w.Write([]byte(body))
}

func respondJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}
