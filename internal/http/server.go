package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"conti/internal/cache"
	"conti/internal/core"
	applog "conti/internal/log"
	"conti/internal/middleware/ratelimit"
	"conti/internal/middleware/security"
	"conti/internal/middleware/trace"
	"conti/internal/services"
)

// HealthChecker reports whether the storage backend is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// appMetrics tracks coarse application counters exposed on /metrics.
type appMetrics struct {
	startedAt          time.Time
	transactionsPosted int64
	cacheHits          int64
	cacheMisses        int64
}

type Server struct {
	http.Server

	ledger  *services.LedgerService
	reports *services.ReportService
	fixed   *services.FixedExpenseService
	health  HealthChecker

	limiter  *ratelimit.Limiter
	detector *security.Detector
	headers  *security.HeadersMiddleware
	tracer   *trace.Middleware
	slogger  *applog.StructuredLogger

	// Ad-hoc statement responses are cached briefly; cacheGen is
	// bumped on every posting so stale entries become unreachable.
	statementCache *cache.LRUCache[*core.Statement]
	cacheManager   *cache.Manager
	cacheGen       atomic.Int64

	listLimit int
	metrics   appMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, ledger *services.LedgerService, reports *services.ReportService, fixed *services.FixedExpenseService, health HealthChecker, listLimit int) *Server {
	mux := http.NewServeMux()

	detector := security.NewDetector()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		ledger:   ledger,
		reports:  reports,
		fixed:    fixed,
		health:   health,
		limiter:  ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		detector: detector,
		headers:  security.NewHeadersMiddleware(security.APIHeadersConfig()),
		tracer:   trace.NewMiddleware(),
		slogger:  applog.NewStructuredLogger(applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)),

		statementCache: cache.NewLRUCache[*core.Statement](100, 5*time.Minute),
		cacheManager:   cache.NewManager(),
		listLimit:      listLimit,
		metrics:        appMetrics{startedAt: time.Now()},
	}

	s.cacheManager.Register(s.statementCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("GET /api/transactions/{guid}", s.handleGetTransaction)
	mux.HandleFunc("PUT /api/transactions/{guid}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{guid}", s.handleDeleteTransaction)

	mux.HandleFunc("POST /api/accounts", s.handleCreateAccount)
	mux.HandleFunc("GET /api/accounts", s.handleListAccounts)
	mux.HandleFunc("GET /api/accounts/{guid}", s.handleGetAccount)
	mux.HandleFunc("PUT /api/accounts/{guid}", s.handleUpdateAccount)
	mux.HandleFunc("DELETE /api/accounts/{guid}", s.handleDeleteAccount)
	mux.HandleFunc("GET /api/accounts/{guid}/balance", s.handleAccountBalance)

	mux.HandleFunc("GET /api/reports/{kind}", s.handleStatement)
	mux.HandleFunc("GET /api/reports/monthly/{kind}", s.handleMonthlyReport)
	mux.HandleFunc("POST /api/reports/monthly/rebuild", s.handleRebuildMonthlyReport)
	mux.HandleFunc("GET /api/cashflow-types", s.handleCashflowTypes)

	mux.HandleFunc("POST /api/fixed-expenses", s.handleCreateFixedExpense)
	mux.HandleFunc("GET /api/fixed-expenses", s.handleListFixedExpenses)
	mux.HandleFunc("GET /api/fixed-expenses/{id}", s.handleGetFixedExpense)
	mux.HandleFunc("PUT /api/fixed-expenses/{id}", s.handleUpdateFixedExpense)
	mux.HandleFunc("DELETE /api/fixed-expenses/{id}", s.handleDeleteFixedExpense)
	mux.HandleFunc("POST /api/fixed-expenses/{id}/execute", s.handleExecuteFixedExpense)
	mux.HandleFunc("POST /api/fixed-expenses/execute-due", s.handleExecuteDue)

	var handler http.Handler = mux
	handler = s.rateLimitMutations(handler)
	handler = s.requestLogging(handler)
	handler = s.tracer.Middleware(handler)
	handler = s.headers.Middleware(handler)
	s.Server.Handler = handler

	return s
}

// statusWriter captures the response status for request logging.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// requestLogging logs every request start and completion through the
// structured logger. Runs inside the trace middleware so the request
// ID is available.
func (s *Server) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := s.detector.ExtractClientIP(r)
		requestID := trace.GetRequestID(r.Context())
		s.slogger.LogHTTPStart(r.Context(), r, requestID, clientIP)

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)

		s.slogger.LogHTTPEnd(r.Context(), r, requestID, sw.status, time.Since(start).Milliseconds(), clientIP)
	})
}

// rateLimitMutations applies per-IP rate limiting to mutating requests
// and flags suspicious ones. Reads stay unthrottled.
func (s *Server) rateLimitMutations(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			slog.WarnContext(r.Context(), "Suspicious request detected",
				"method", r.Method, "path", r.URL.Path, "client_ip", s.detector.ExtractClientIP(r))
		}

		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodDelete:
			clientIP := s.detector.ExtractClientIP(r)
			if !s.limiter.Allow(clientIP) {
				slog.WarnContext(r.Context(), "Rate limit exceeded",
					"client_ip", clientIP, "method", r.Method, "path", r.URL.Path)
				w.Header().Set("Retry-After", "60")
				writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded, retry later")
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// invalidateStatements makes every cached ad-hoc statement unreachable.
// Called after any posting, update or delete.
func (s *Server) invalidateStatements() {
	s.cacheGen.Add(1)
}

func (s *Server) cachedStatement(ctx context.Context, key string) (*core.Statement, bool) {
	stmt, ok := s.statementCache.Get(key)
	if ok {
		atomic.AddInt64(&s.metrics.cacheHits, 1)
		slog.DebugContext(ctx, "Statement cache hit", "key", key)
		return stmt, true
	}
	atomic.AddInt64(&s.metrics.cacheMisses, 1)
	return nil, false
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.cacheManager != nil {
			s.cacheManager.Stop()
		}
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
