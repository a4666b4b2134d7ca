package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nexus-agent/orchestrator/internal/events"
	"github.com/nexus-agent/orchestrator/internal/observability"
	"github.com/nexus-agent/orchestrator/internal/orchestrator"
	"github.com/nexus-agent/orchestrator/internal/server/conn"
)

// inboundFrame is the wire shape of a client-to-server turn request, per
// the duplex endpoint's external interface: {content, conversation_id?}.
// request_id is an additive, optional echo field (see events.ErrorPayload).
type inboundFrame struct {
	Content        string `json:"content"`
	ConversationID *int64 `json:"conversation_id,omitempty"`
	RequestID      string `json:"request_id,omitempty"`
}

// session drives one accepted duplex connection: a blocking reader loop
// on the calling goroutine and a non-blocking writer goroutine fed by an
// outbound channel, the standard upgrade->read/write-goroutine split.
type session struct {
	srv  *Server
	ws   *websocket.Conn
	id   conn.ID
	send chan []byte

	ctx    context.Context
	cancel context.CancelFunc

	openedAt time.Time
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.Auth.enabled() {
		token := bearerToken(r)
		if !s.Auth.validate(token) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	sess := &session{
		srv:      s,
		ws:       wsConn,
		id:       s.Conns.Connect(),
		send:     make(chan []byte, 64),
		ctx:      ctx,
		cancel:   cancel,
		openedAt: time.Now(),
	}
	if s.Metrics != nil {
		s.Metrics.ConnectionOpened("websocket")
	}
	sess.run()
}

func errInvalidFrame(cause error) error {
	return fmt.Errorf("invalid frame: %w", cause)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[len("bearer "):])
	}
	return ""
}

// run owns the connection's lifecycle: it starts the writer goroutine,
// then loops reading frames and invoking the orchestrator until the
// client disconnects. No per-connection store session is opened; every
// connection uses the Server's one shared Store.
func (s *session) run() {
	defer s.close()
	go s.writeLoop()
	s.readLoop()
}

func (s *session) close() {
	s.cancel()
	close(s.send)
	_ = s.ws.Close()
	s.srv.Conns.Disconnect(s.id)
	if s.srv.Metrics != nil {
		s.srv.Metrics.ConnectionClosed("websocket", time.Since(s.openedAt).Seconds())
	}
}

func (s *session) readLoop() {
	s.ws.SetReadLimit(1 << 20)
	_ = s.ws.SetReadDeadline(time.Now().Add(pongWait))
	s.ws.SetPongHandler(func(string) error {
		return s.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	go s.startTicking()

	for {
		messageType, data, err := s.ws.ReadMessage()
		if err != nil {
			// ConnectionLost: cleanup with no envelope emission.
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		s.handleFrame(data)
	}
}

func (s *session) handleFrame(data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		events.NewEmitter(s.currentConversationID(), trackingSink{session: s}).ErrorWithRequestID(s.ctx, errInvalidFrame(err), "")
		return
	}

	turnFrame := orchestrator.Frame{
		Content:        frame.Content,
		ConversationID: frame.ConversationID,
		RequestID:      frame.RequestID,
	}
	if frame.ConversationID == nil {
		if existing, ok := s.srv.Conns.Conversation(s.id); ok {
			turnFrame.ConversationID = &existing
		}
	}

	err := s.srv.Orchestrator.HandleTurn(s.ctx, turnFrame, trackingSink{session: s})
	if err == nil {
		return
	}

	// AgentFatal and plain I/O errors both abort the turn and disconnect.
	// For AgentFatal the empty AGENT row was already deleted by HandleTurn
	// itself; a plain I/O error leaves whatever rows were already written.
	var convID int64
	if fatal, ok := err.(*orchestrator.AgentFatalError); ok {
		convID = fatal.ConversationID
	}
	if s.srv.Metrics != nil {
		s.srv.Metrics.RecordError("server", "turn_failed")
	}
	if s.srv.StructLogger != nil {
		logCtx := observability.AddRequestID(s.ctx, frame.RequestID)
		s.srv.StructLogger.WithContext(logCtx).Error(logCtx, "turn failed", "conversation_id", convID, "error", err)
	}
	events.NewEmitter(convID, trackingSink{session: s}).ErrorWithRequestID(s.ctx, err, frame.RequestID)
	s.cancel()
}

// trackingSink wraps a session as an events.Sink, recording whichever
// conversation id the orchestrator is emitting for so later frames on the
// same connection default to it without the client repeating
// conversation_id (C8's one-active-conversation-per-connection invariant).
type trackingSink struct {
	session *session
}

func (t trackingSink) Emit(ctx context.Context, e events.Envelope) {
	if e.ConversationID != 0 {
		t.session.srv.Conns.SetConversation(t.session.id, e.ConversationID)
	}
	t.session.emit(e)
}

func (s *session) currentConversationID() int64 {
	id, _ := s.srv.Conns.Conversation(s.id)
	return id
}

func (s *session) emit(e events.Envelope) {
	data, err := json.Marshal(e)
	if err != nil {
		s.srv.Logger.Error("marshal envelope", "error", err)
		return
	}
	select {
	case s.send <- data:
	default:
		s.srv.Logger.Warn("dropping envelope, send buffer full", "conn", s.id)
	}
}

func (s *session) writeLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case data, ok := <-s.send:
			if !ok {
				return
			}
			_ = s.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}

func (s *session) startTicking() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			_ = s.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.ws.WriteMessage(websocket.PingMessage, nil)
		}
	}
}
