package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dgallion1/casegest/internal/chat"
	"github.com/dgallion1/casegest/internal/extract"
)

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	answer, err := s.deps.Chat.Ask(r.Context(), req.Message)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"response": answer})
	case errors.Is(err, chat.ErrEmptyQuestion):
		jsonError(w, "No message provided", http.StatusBadRequest)
	case errors.Is(err, extract.ErrTimeout):
		s.log.Warn("chat timed out", "error", err)
		jsonError(w, "Error processing chat message", http.StatusGatewayTimeout)
	case errors.Is(err, extract.ErrServiceUnavailable):
		s.log.Warn("chat backend unavailable", "error", err)
		jsonError(w, "Error processing chat message", http.StatusServiceUnavailable)
	default:
		s.log.Error("chat failed", "error", err)
		jsonError(w, "Error processing chat message", http.StatusBadGateway)
	}
}
