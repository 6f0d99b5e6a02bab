package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"finboard/internal/dashboard"
	"finboard/internal/log"
)

// Invalidator announces cache invalidations to other instances.
type Invalidator interface {
	PublishInvalidation(ctx context.Context, entity, userID string) error
}

// Config wires the server to the rest of the application. Sessions is
// required; everything else has a usable zero value.
type Config struct {
	Addr     string
	Sessions *dashboard.Sessions
	Location *time.Location
	Logger   *log.Logger

	// Publisher is optional; without it invalidations stay local.
	Publisher Invalidator
	// Ready reports backing store health for /readyz.
	Ready func(ctx context.Context) error

	RateLimitPerMinute int
	Now                func() time.Time
}

type Server struct {
	http.Server

	sessions  *dashboard.Sessions
	publisher Invalidator
	ready     func(ctx context.Context) error
	loc       *time.Location
	now       func() time.Time
	logger    *log.Logger

	rateLimiter  *rateLimiter
	metrics      *securityMetrics
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(cfg Config) *Server {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Discard()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Server{
		sessions:    cfg.Sessions,
		publisher:   cfg.Publisher,
		ready:       cfg.Ready,
		loc:         cfg.Location,
		now:         cfg.Now,
		logger:      cfg.Logger.WithComponent(log.ComponentHTTP),
		rateLimiter: newRateLimiter(cfg.RateLimitPerMinute, cfg.Now),
		metrics:     &securityMetrics{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/entities/{entity}", s.handleEntity)
	mux.HandleFunc("POST /api/cache/clear", s.handleClearCache)
	mux.HandleFunc("POST /api/cache/invalidate", s.handleInvalidate)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.withRequestContext(s.withSecurityHeaders(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Start serves until Shutdown. It blocks like ListenAndServe.
func (s *Server) Start() error {
	go s.rateLimiter.startCleanup(5 * time.Minute)
	s.logger.Info("HTTP server listening", "addr", s.Addr)
	return s.ListenAndServe()
}

// Shutdown stops the cleanup goroutine and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// requestID honours a well-formed incoming X-Request-ID and mints one
// otherwise.
func requestID(r *http.Request) string {
	if id, err := uuid.Parse(r.Header.Get("X-Request-ID")); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// withRequestContext attaches the request id and a request-scoped logger,
// and logs start and completion.
func (s *Server) withRequestContext(next http.Handler) http.Handler {
	logged := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.now()
		ctx := r.Context()
		clientIP := extractClientIP(r)

		logger := log.FromContext(ctx)
		if user := userID(r); user != "" {
			logger = logger.With(log.FieldUserID, user)
			ctx = log.NewContext(ctx, logger)
			r = r.WithContext(ctx)
		}
		logger.LogHTTPStart(ctx, r, clientIP)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		logger.LogHTTPEnd(ctx, r, rw.statusCode, s.now().Sub(start).Milliseconds(), clientIP)
	})
	withLogger := log.Middleware(s.logger, func(r *http.Request) string {
		return requestIDFrom(r.Context())
	})(logged)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := requestID(r)
		w.Header().Set("X-Request-ID", id)
		withLogger.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// withSecurityHeaders adds security headers, flags scanners and rate-limits
// mutating requests per user, or per client IP when anonymous.
func (s *Server) withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		clientIP := extractClientIP(r)

		if detectSuspiciousRequest(r, s.metrics) {
			log.FromContext(ctx).WarnContext(ctx, "Suspicious request",
				log.FieldClientIP, clientIP,
				log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.UserAgent())
		}

		setSecurityHeaders(w.Header())

		if r.Method == http.MethodPost {
			key := userID(r)
			if key == "" {
				key = clientIP
			}
			if !s.rateLimiter.allow(key, s.metrics) {
				log.FromContext(ctx).WarnContext(ctx, "Rate limit exceeded", log.FieldClientIP, clientIP, log.FieldPath, r.URL.Path)
				w.Header().Set("Retry-After", "60")
				writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded", RequestID: requestIDFrom(ctx)})
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// responseWriter captures the status code for request logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
