// Package server exposes the duplex turn endpoint and its HTTP auxiliary
// surface over an Orchestrator.
package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/nexus-agent/orchestrator/internal/history/store"
	"github.com/nexus-agent/orchestrator/internal/observability"
	"github.com/nexus-agent/orchestrator/internal/orchestrator"
	"github.com/nexus-agent/orchestrator/internal/server/conn"
)

// AuthConfig controls the optional bearer-token handshake on the duplex
// endpoint. When Secret is empty, authentication is disabled and every
// connection is accepted.
type AuthConfig struct {
	Secret string
}

func (a AuthConfig) enabled() bool { return a.Secret != "" }

func (a AuthConfig) validate(token string) bool {
	if !a.enabled() || token == "" {
		return false
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return []byte(a.Secret), nil
	})
	return err == nil && parsed.Valid
}

// Server wires the Connection Manager and Agent Orchestrator to an
// HTTP mux: the duplex endpoint at /messaging/ws, and the auxiliary
// conversation routes (list, messages, delete).
type Server struct {
	Orchestrator *orchestrator.Orchestrator
	Store        store.Store
	Conns        *conn.Manager
	Auth         AuthConfig
	Logger       *slog.Logger

	// Metrics is optional; every call site nil-checks it before recording,
	// so a Server built without metrics behaves exactly as before.
	Metrics *observability.Metrics

	// StructLogger is optional; when set, a failed turn is logged through
	// it with the frame's request_id attached instead of through Logger,
	// so the failure can be correlated back to the client's original
	// request. Nil-safe like Metrics.
	StructLogger *observability.Logger

	upgrader websocket.Upgrader
}

// New builds a Server ready to be registered on an http.ServeMux.
func New(orch *orchestrator.Orchestrator, st store.Store, auth AuthConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Orchestrator: orch,
		Store:        st,
		Conns:        conn.New(),
		Auth:         auth,
		Logger:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8192,
			WriteBufferSize: 8192,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Mux returns an http.ServeMux with every route this package exposes
// registered: the duplex endpoint, the conversation auxiliary routes and
// /health.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/messaging/ws", s.handleWS)
	mux.HandleFunc("/messaging/conversations", s.withHTTPMetrics("/messaging/conversations", s.handleConversations))
	mux.HandleFunc("/messaging/conversations/", s.withHTTPMetrics("/messaging/conversations/", s.handleConversationByID))
	mux.HandleFunc("/health", s.withHTTPMetrics("/health", s.handleHealth))
	return mux
}

// withHTTPMetrics wraps an HTTP handler to record its latency and outcome,
// labeling by the route pattern rather than the raw path so a per-ID
// conversation route doesn't blow up metric cardinality. A no-op passthrough
// when the server was built without metrics.
func (s *Server) withHTTPMetrics(routePattern string, next http.HandlerFunc) http.HandlerFunc {
	if s.Metrics == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next(rec, r)
		s.Metrics.RecordHTTPRequest(r.Method, routePattern, strconv.Itoa(rec.status), time.Since(start).Seconds())
	}
}

// statusRecorder captures the status code written by a wrapped handler,
// since http.ResponseWriter doesn't expose it after the fact.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

const writeWait = 10 * time.Second
const pongWait = 45 * time.Second
const tickInterval = 15 * time.Second
