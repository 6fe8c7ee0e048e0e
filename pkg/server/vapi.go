package server

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/cbhirsch/real-estate-agent-chatbot/pkg/auth"
	"github.com/cbhirsch/real-estate-agent-chatbot/pkg/chat"
)

// vapiRequest is the voice-platform webhook payload. Context is opaque
// call metadata and is passed through untouched.
type vapiRequest struct {
	SessionID   string          `json:"session_id"`
	UserMessage string          `json:"user_message"`
	Context     json.RawMessage `json:"context,omitempty"`
}

type vapiResponse struct {
	Response  string          `json:"response"`
	SessionID string          `json:"session_id"`
	Status    string          `json:"status"`
	Context   json.RawMessage `json:"context,omitempty"`
}

// handleVapiWebhook serves the voice-platform webhook.
//
// Authorization here is a presence-only check and is NOT a security
// boundary: the platform's webhook signature is not verified. This is a
// known gap inherited from the upstream integration, left unresolved
// rather than papered over with an invented scheme.
func (s *Server) handleVapiWebhook(w http.ResponseWriter, r *http.Request) error {
	if r.Header.Get("Authorization") == "" {
		return errors.Wrap(auth.ErrUnauthorized, "missing authorization header")
	}

	var req vapiRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return errors.Wrapf(errBadRequest, "invalid request body: %v", err)
	}
	if req.SessionID == "" {
		return errors.Wrap(errBadRequest, "session_id is required")
	}
	if req.UserMessage == "" {
		return errors.Wrap(errBadRequest, "user_message is required")
	}

	reply, err := s.exchange(r.Context(), req.SessionID, chat.User(req.UserMessage))
	if err != nil {
		return err
	}

	writeJSON(w, http.StatusOK, vapiResponse{
		Response:  reply.Content,
		SessionID: req.SessionID,
		Status:    "success",
		Context:   req.Context,
	})
	return nil
}
