package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cbhirsch/real-estate-agent-chatbot/pkg/auth"
	"github.com/cbhirsch/real-estate-agent-chatbot/pkg/chat"
)

// chatRequest is the direct REST transport's request body.
type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// chatResponse is the direct REST transport's response body.
type chatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) error {
	if _, err := s.verifier.Verify(auth.BearerToken(r)); err != nil {
		return err
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return errors.Wrapf(errBadRequest, "invalid request body: %v", err)
	}
	if req.Message == "" {
		return errors.Wrap(errBadRequest, "message is required")
	}

	key := req.SessionID
	if key == "" {
		key = uuid.NewString()
	}

	reply, err := s.exchange(r.Context(), key, chat.User(req.Message))
	if err != nil {
		return err
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Response:  reply.Content,
		SessionID: key,
		Status:    "success",
	})
	return nil
}

// sessionResponse is the turn-history dump for GET /sessions/{id}.
type sessionResponse struct {
	SessionID string        `json:"session_id"`
	Messages  []chat.Turn   `json:"messages"`
	Usage     *sessionUsage `json:"usage,omitempty"`
}

type sessionUsage struct {
	PromptChars int64 `json:"prompt_chars"`
	ReplyChars  int64 `json:"reply_chars"`
	Exchanges   int64 `json:"exchanges"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) error {
	if _, err := s.verifier.VerifyStatic(auth.BearerToken(r)); err != nil {
		return err
	}

	id := r.PathValue("id")
	sess, err := s.store.Get(id)
	if err != nil {
		return err
	}

	u := s.usage.Get(id)
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID: id,
		Messages:  sess.Turns(),
		Usage: &sessionUsage{
			PromptChars: u.PromptChars,
			ReplyChars:  u.ReplyChars,
			Exchanges:   u.Exchanges,
		},
	})
	return nil
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) error {
	if _, err := s.verifier.VerifyStatic(auth.BearerToken(r)); err != nil {
		return err
	}

	id := r.PathValue("id")
	if err := s.store.Delete(id); err != nil {
		return err
	}
	s.usage.Clear(id)

	s.logger.Info().Str("session_id", id).Msg("session deleted")
	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "deleted",
		"session_id": id,
	})
	return nil
}
