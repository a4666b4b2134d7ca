package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/nexus-agent/orchestrator/internal/history/store"
)

// conversationSummary is the wire shape returned by GET
// /messaging/conversations, adding message_count to models.Conversation's
// fields (grounded on the original handler's ConversationRead response
// model).
type conversationSummary struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
	MessageCount int    `json:"message_count,omitempty"`
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	convs, err := s.Store.ListConversations(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]conversationSummary, 0, len(convs))
	for _, c := range convs {
		messages, err := s.Store.ListMessages(r.Context(), c.ID, 0)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		out = append(out, conversationSummary{
			ID:           c.ID,
			Title:        c.Title,
			CreatedAt:    c.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			UpdatedAt:    c.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
			MessageCount: len(messages),
		})
	}

	writeJSON(w, http.StatusOK, out)
}

// handleConversationByID serves both GET .../{id}/messages and
// DELETE .../{id}.
func (s *Server) handleConversationByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/messaging/conversations/")
	idPart, sub, hasSub := strings.Cut(rest, "/")

	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		http.Error(w, "invalid conversation id", http.StatusBadRequest)
		return
	}

	switch {
	case r.Method == http.MethodGet && hasSub && sub == "messages":
		s.getConversationMessages(w, r, id)
	case r.Method == http.MethodDelete && !hasSub:
		s.deleteConversation(w, r, id)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) getConversationMessages(w http.ResponseWriter, r *http.Request, id int64) {
	if _, err := s.Store.GetConversation(r.Context(), id); err == store.ErrNotFound {
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	messages, err := s.Store.ListMessages(r.Context(), id, 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (s *Server) deleteConversation(w http.ResponseWriter, r *http.Request, id int64) {
	if err := s.Store.DeleteConversation(r.Context(), id); err == store.ErrNotFound {
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "conversation deleted"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
