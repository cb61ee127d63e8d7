package api

import (
	"net/http"
)

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.LLM == nil {
		jsonError(w, "llm stats unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"backend": s.deps.LLM.Name(),
		"breaker": s.deps.LLM.BreakerState(),
		"stats":   s.deps.LLM.Stats(),
	})
}
