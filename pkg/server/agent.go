package server

import "net/http"

// handleAgentInfo exposes pipeline and endpoint metadata for tooling.
// The dialogue pipeline is a single model step: the full session history
// in, one reply turn out.
func (s *Server) handleAgentInfo(w http.ResponseWriter, _ *http.Request) error {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        "real-estate-agent-gateway",
		"version":     "1.0.0",
		"description": "Conversational webhook gateway for the real estate agent",
		"pipeline": map[string]any{
			"steps": []string{"chatbot"},
			"type":  "single-step",
		},
		"endpoints": map[string]string{
			"chat":        "/chat",
			"completions": "/chat/completions",
			"vapi":        "/vapi/webhook",
			"sessions":    "/sessions/{id}",
			"health":      "/health",
			"token":       "/oauth/token",
		},
		"authentication": map[string]string{
			"type":   "bearer",
			"header": "Authorization",
		},
	})
	return nil
}
