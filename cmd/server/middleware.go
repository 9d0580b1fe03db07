package main

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

func (s *server) withInternalAuth(next http.HandlerFunc) http.HandlerFunc {
	shared := s.cfg.InternalSharedSecret
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get("X-Internal-Auth")
		if subtle.ConstantTimeCompare([]byte(got), []byte(shared)) != 1 {
			writeErr(w, http.StatusUnauthorized, "unauthorized", "Invalid authentication")
			return
		}
		next(w, r)
	}
}

func (s *server) withConcurrencyLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.requestSem.Acquire(r.Context(), 1); err != nil {
			writeErr(w, http.StatusServiceUnavailable, "capacity", "Service at capacity")
			return
		}
		defer s.requestSem.Release(1)

		s.metrics.incActive()
		defer s.metrics.decActive()

		next(w, r)
	}
}

func (s *server) withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := getClientIP(r)
		limiter := s.getRateLimiter(ip)

		if !limiter.Allow() {
			w.Header().Set("Retry-After", "60")
			writeErr(w, http.StatusTooManyRequests, "rate_limit", "Rate limit exceeded")
			return
		}
		next(w, r)
	}
}

func (s *server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.log.Error("panic", "err", err, "path", sanitizeLogString(r.URL.Path))
				writeErr(w, http.StatusInternalServerError, "internal_error", "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &wrapWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(ww, r)

		s.log.Info("request",
			"method", r.Method,
			"path", sanitizeLogString(r.URL.Path),
			"status", ww.status,
			"elapsed", time.Since(start))
	})
}

type wrapWriter struct {
	http.ResponseWriter
	status int
}

func (w *wrapWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *server) getRateLimiter(ip string) *rate.Limiter {
	if v, ok := s.limiters.Load(ip); ok {
		return v.(*rate.Limiter)
	}

	every := s.cfg.RateLimitEvery
	if every <= 0 {
		every = 600 * time.Millisecond // ~100/min
	}
	burst := s.cfg.RateLimitBurst
	if burst <= 0 {
		burst = 20
	}

	v, _ := s.limiters.LoadOrStore(ip, rate.NewLimiter(rate.Every(every), burst))
	return v.(*rate.Limiter)
}

func getClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		if idx := strings.Index(ip, ","); idx > 0 {
			return strings.TrimSpace(ip[:idx])
		}
		return strings.TrimSpace(ip)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return strings.TrimSpace(ip)
	}

	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}
