package api

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/orbitdash/orbitdash/pkg/types"
)

// admit returns middleware that runs every request through the governor
// under the given endpoint class and emits the quota headers. Rejected
// requests are answered immediately with 429 and a Retry-After.
func (s *Server) admit(class string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := clientIdentity(r)
			result := s.governor.Admit(identity, class, time.Now())

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			switch result.Decision {
			case types.DecisionDeny:
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfterSeconds()))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			case types.DecisionBan:
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfterSeconds()))
				writeError(w, http.StatusTooManyRequests, "temporarily banned for repeated violations")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// clientIdentity derives the rate-limit identity from connection metadata.
// middleware.RealIP has already folded X-Forwarded-For into RemoteAddr.
func clientIdentity(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// requestLogger logs one line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.status,
			"duration", time.Since(start),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
