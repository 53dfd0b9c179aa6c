package httpapi

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voicebridge/asr-server/internal/errs"
	"github.com/voicebridge/asr-server/internal/ratelimit"
)

// withQuota wraps h with the fixed-window rate limit for class, keyed by
// the caller's API key (falling back to remote address for unauthenticated
// endpoints). §6.1 names the default quota per endpoint class.
func (s *Server) withQuota(class ratelimit.Class, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			h(w, r)
			return
		}
		key := requestKey(r)
		if ok, retryAfter := s.limiter.Allow(class, key); !ok {
			writeError(w, errs.RateLimitedWithRetry(retryAfter))
			return
		}
		h(w, r)
	}
}

// withAuth gates h behind X-API-Key when apiKey is non-empty; auth is a
// no-op when the server was started without an API key configured.
func (s *Server) withAuth(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			h(w, r)
			return
		}
		if r.Header.Get("X-API-Key") != s.apiKey {
			writeError(w, errs.New(errs.Unauthenticated, "missing or invalid API key"))
			return
		}
		h(w, r)
	}
}

// withAdminAuth gates dictionary-admin endpoints behind the admin key.
func (s *Server) withAdminAuth(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.adminKey == "" {
			h(w, r)
			return
		}
		if r.Header.Get("X-API-Key") != s.adminKey {
			writeError(w, errs.New(errs.Forbidden, "admin API key required"))
			return
		}
		h(w, r)
	}
}

func withLogging(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		h(rw, r)
		logrus.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.status,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("http request")
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// requestKey identifies the rate-limit source: the API key if present,
// otherwise the remote address.
func requestKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	return r.RemoteAddr
}
