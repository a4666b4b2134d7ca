package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nexus-agent/orchestrator/internal/agent"
	"github.com/nexus-agent/orchestrator/internal/events"
	"github.com/nexus-agent/orchestrator/internal/history/store"
	"github.com/nexus-agent/orchestrator/internal/orchestrator"
)

type echoProvider struct{}

func (echoProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	ch := make(chan *agent.CompletionChunk, 1)
	ch <- &agent.CompletionChunk{Text: "hello back"}
	close(ch)
	return ch, nil
}
func (echoProvider) Name() string        { return "echo" }
func (echoProvider) SupportsTools() bool { return false }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	st := store.NewMemoryStore()
	orch := orchestrator.New(st, agent.NewToolRegistry(), echoProvider{}, nil, nil, "test-model", "be helpful")
	srv := New(orch, st, AuthConfig{}, nil)
	ts := httptest.NewServer(srv.Mux())
	t.Cleanup(ts.Close)
	return ts
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/messaging/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) events.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	var e events.Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		t.Fatalf("unmarshal envelope: %v (%s)", err, data)
	}
	return e
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestWSColdStartSendsConversationCreatedThenMessageComplete(t *testing.T) {
	ts := newTestServer(t)
	conn := dialWS(t, ts)

	if err := conn.WriteJSON(map[string]any{"content": "hello"}); err != nil {
		t.Fatalf("write frame: %v", err)
	}

	first := readEnvelope(t, conn)
	if first.Type != events.KindConversationCreated {
		t.Fatalf("first envelope = %s, want %s", first.Type, events.KindConversationCreated)
	}

	var last events.Envelope
	for i := 0; i < 5; i++ {
		last = readEnvelope(t, conn)
		if last.Type == events.KindMessageComplete {
			break
		}
	}
	if last.Type != events.KindMessageComplete {
		t.Fatalf("expected to observe message_complete, last seen = %s", last.Type)
	}
}

func TestWSEmptyContentEmitsError(t *testing.T) {
	ts := newTestServer(t)
	conn := dialWS(t, ts)

	if err := conn.WriteJSON(map[string]any{"content": "   "}); err != nil {
		t.Fatalf("write frame: %v", err)
	}

	envelope := readEnvelope(t, conn)
	if envelope.Type != events.KindError {
		t.Fatalf("envelope = %s, want %s", envelope.Type, events.KindError)
	}
}

func TestListConversationsEmpty(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/messaging/conversations")
	if err != nil {
		t.Fatalf("GET /messaging/conversations: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out []conversationSummary
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected no conversations, got %d", len(out))
	}
}

func TestGetConversationMessagesNotFound(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/messaging/conversations/999/messages")
	if err != nil {
		t.Fatalf("GET messages: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestDeleteConversationNotFound(t *testing.T) {
	ts := newTestServer(t)
	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/messaging/conversations/999", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
