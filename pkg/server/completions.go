package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cbhirsch/real-estate-agent-chatbot/pkg/auth"
	"github.com/cbhirsch/real-estate-agent-chatbot/pkg/chat"
)

// completionsRequest is the OpenAI-completions-compatible request shape.
// Roles outside the closed user/assistant set are rejected at decode time.
type completionsRequest struct {
	Model    string      `json:"model,omitempty"`
	Messages []chat.Turn `json:"messages"`
}

type completionsChoice struct {
	Index        int       `json:"index"`
	Message      chat.Turn `json:"message"`
	FinishReason string    `json:"finish_reason"`
}

type completionsUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type completionsResponse struct {
	ID      string              `json:"id"`
	Object  string              `json:"object"`
	Created int64               `json:"created"`
	Model   string              `json:"model,omitempty"`
	Choices []completionsChoice `json:"choices"`
	Usage   completionsUsage    `json:"usage"`
}

// handleCompletions is the stateless transport: the caller supplies the
// whole history as role/content pairs, the exchange runs under a fresh
// generated session key, and any previously stored session is ignored.
// Token counts are rendered text lengths, not tokenizer output.
func (s *Server) handleCompletions(w http.ResponseWriter, r *http.Request) error {
	if _, err := s.verifier.Verify(auth.BearerToken(r)); err != nil {
		return err
	}

	var req completionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return errors.Wrapf(errBadRequest, "invalid request body: %v", err)
	}
	if len(req.Messages) == 0 {
		return errors.Wrap(errBadRequest, "messages is required")
	}

	// Reconstruct the history in a freshly keyed session so the exchange
	// path (locking, accounting) is the same as the stateful transports.
	key := uuid.NewString()
	history := req.Messages[:len(req.Messages)-1]
	last := req.Messages[len(req.Messages)-1]
	for _, turn := range history {
		s.store.Append(key, turn)
	}

	reply, err := s.exchange(r.Context(), key, last)
	if err != nil {
		return err
	}

	promptChars := 0
	for _, m := range req.Messages {
		promptChars += len(m.Content)
	}

	writeJSON(w, http.StatusOK, completionsResponse{
		ID:      "chatcmpl-" + key,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []completionsChoice{{
			Index:        0,
			Message:      reply,
			FinishReason: "stop",
		}},
		Usage: completionsUsage{
			PromptTokens:     promptChars,
			CompletionTokens: len(reply.Content),
			TotalTokens:      promptChars + len(reply.Content),
		},
	})
	return nil
}
