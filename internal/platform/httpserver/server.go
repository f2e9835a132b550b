package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	httpSwagger "github.com/swaggo/http-swagger"

	viewsettlement "savemore/contexts/community-experience/view-settlement"
	starledger "savemore/contexts/finance-core/star-ledger"
	"savemore/internal/platform/auth"
	_ "savemore/internal/platform/httpserver/docs"
	"savemore/internal/platform/metrics"
)

const moduleName = "internal/platform/httpserver"

type Dependencies struct {
	Ledger             starledger.Module
	Viewing            viewsettlement.Module
	Auth               *auth.Verifier
	Metrics            *metrics.Collector
	RateLimitPerMinute int
	// Ready reports backing store health for /healthz. Nil means always ready.
	Ready  func(ctx context.Context) error
	Logger *slog.Logger
}

type Server struct {
	mux      *http.ServeMux
	handler  http.Handler
	logger   *slog.Logger
	addr     string
	ledger   starledger.Module
	viewing  viewsettlement.Module
	auth     *auth.Verifier
	metrics  *metrics.Collector
	limiter  *viewerLimiter
	upgrader websocket.Upgrader
	ready    func(ctx context.Context) error

	baseCtx    context.Context
	cancelBase context.CancelFunc
	httpServer *http.Server
}

func New(deps Dependencies, addr string) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}
	verifier := deps.Auth
	if verifier == nil {
		verifier = auth.NewVerifier("")
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		mux:     http.NewServeMux(),
		logger:  logger,
		addr:    addr,
		ledger:  deps.Ledger,
		viewing: deps.Viewing,
		auth:    verifier,
		metrics: deps.Metrics,
		limiter: newViewerLimiter(deps.RateLimitPerMinute),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		ready:      deps.Ready,
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}
	s.registerRoutes()
	s.handler = s.mux
	if s.metrics != nil {
		s.handler = s.metrics.Middleware(s.mux)
	}
	return s
}

// Handler returns the routed handler including request metrics.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", moduleName,
		"layer", "platform",
		"addr", s.addr,
	)
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.baseCtx },
	}
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests, ends live viewing sessions and waits
// for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancelBase()
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("http server stopping",
		"event", "http_server_stopping",
		"module", moduleName,
		"layer", "platform",
	)
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}

	s.mux.HandleFunc("POST /v1/ledger/views", s.handleProcessView)
	s.mux.HandleFunc("GET /v1/ledger/balances/{user_id}", s.handleGetBalance)
	s.mux.HandleFunc("GET /v1/ledger/users/{user_id}/entries", s.handleListEntries)
	s.mux.HandleFunc("POST /v1/ledger/content", s.handlePublishContent)
	s.mux.HandleFunc("GET /v1/ledger/content/{content_id}", s.handleGetContent)
	s.mux.HandleFunc("POST /v1/ledger/stars/spend", s.handleSpendStars)
	s.mux.HandleFunc("POST /v1/ledger/voice-credits/deduct", s.handleDeductVoiceCredits)
	s.mux.HandleFunc("POST /v1/ledger/groups", s.handleRegisterGroup)
	s.mux.HandleFunc("POST /v1/ledger/groups/{group_id}/join", s.handleJoinGroup)
	s.mux.HandleFunc("POST /v1/ledger/admin/stars/credit", s.handleCreditStars)

	s.mux.HandleFunc("GET /v1/viewing/session", s.handleViewingSession)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.Warn("health check failed",
				"event", "http_health_check_failed",
				"module", moduleName,
				"layer", "platform",
				"error", err.Error(),
			)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// principal authenticates r, writing a 401 when it cannot.
func (s *Server) principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	principal, err := s.auth.Authenticate(r)
	if err != nil {
		code := "unauthenticated"
		if errors.Is(err, auth.ErrExpiredToken) {
			code = "token_expired"
		} else if errors.Is(err, auth.ErrInvalidToken) {
			code = "invalid_token"
		}
		writeError(w, http.StatusUnauthorized, code, err.Error())
		return auth.Principal{}, false
	}
	return principal, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return false
	}
	return true
}

func idempotencyKey(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("Idempotency-Key"))
}
